package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
backend: memory
http:
  addr: ":9090"
auth:
  jwt_secret: "s3cret"
mongo:
  database: "carechat_test"
kafka:
  brokers: ["k1:9092", "k2:9092"]
  notification_topic: "unread"
vendor:
  base_url: "https://vendor.example"
  page_size: 20
  credentials:
    default:
      account_sid: "AC1"
      auth_token: "tok"
      service_sid: "IS1"
policy:
  unread_threshold: 45m
  read_index_tolerance: 3
  participant_cutover: "2023-06-01T00:00:00Z"
  lock_retry_delays: ["500ms"]
  alert_expiration_minutes:
    Sepsis: 15
`

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "carechat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "carechat_test", cfg.Mongo.Database)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "unread", cfg.Kafka.NotificationTopic)
	assert.Equal(t, 20, cfg.Vendor.PageSize)
	assert.Equal(t, "IS1", cfg.Vendor.Credentials["default"].ServiceSID)

	p := cfg.Policy
	assert.Equal(t, 45*time.Minute, p.UnreadThreshold)
	assert.Equal(t, int64(3), p.ReadIndexTolerance)
	assert.Equal(t, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), p.ParticipantCutover)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, p.LockRetryDelays)
	assert.Equal(t, 15, p.AlertExpirationMinutes["Sepsis"])
	assert.Equal(t, 30, p.AlertExpirationMinutes["Urgent"])
	assert.Equal(t, 26*time.Hour, p.SweepWindow)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CARECHAT_HTTP_ADDR", ":7070")
	t.Setenv("CARECHAT_KAFKA_BROKERS", "a:1, b:2")
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
}

func TestLoadValidation(t *testing.T) {
	_, err := Load(writeConfig(t, "backend: memory\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "backend: bogus\nauth: {jwt_secret: x}\n"))
	assert.Error(t, err)

	// infra backend needs a postgres dsn
	infra := sampleYAML + "\n"
	infra = "backend: infra\n" + infra[len("\nbackend: memory\n"):]
	_, err = Load(writeConfig(t, infra))
	assert.Error(t, err)

	// 锁租约装不下取消息加回写两次供应商往返
	short := sampleYAML + "  lock_ttl: 20s\n"
	_, err = Load(writeConfig(t, short))
	assert.Error(t, err)
	fast := strings.Replace(short, "  page_size: 20\n", "  page_size: 20\n  timeout: 5s\n", 1)
	cfg, err := Load(writeConfig(t, fast))
	require.NoError(t, err)
	assert.Equal(t, 16*time.Second, cfg.Policy.LockHold())
}

func TestPolicyHolderUpdate(t *testing.T) {
	h := NewPolicyHolder(DefaultPolicy())

	require.NoError(t, h.Update([]byte("unread_threshold: 10m\nsweep_concurrency: 2\n")))
	assert.Equal(t, 10*time.Minute, h.Current().UnreadThreshold)
	assert.Equal(t, 2, h.Current().SweepConcurrency)
	assert.Equal(t, int64(2), h.Current().ReadIndexTolerance)

	// invalid update keeps the previous snapshot
	assert.Error(t, h.Update([]byte("sweep_concurrency: 0\n")))
	assert.Equal(t, 2, h.Current().SweepConcurrency)

	assert.Error(t, h.Update([]byte("::not yaml")))
}

func TestPolicyHolderIsolatesCallers(t *testing.T) {
	h := NewPolicyHolder(DefaultPolicy())
	p := h.Current()
	p.AlertAudience["Urgent"][0] = "Hacker"
	p.AlertExpirationMinutes["Urgent"] = 1

	assert.Equal(t, "Provider", h.Current().AlertAudience["Urgent"][0])
	assert.Equal(t, 30, h.Current().AlertExpirationMinutes["Urgent"])
}
