package tools

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// 环境变量覆盖（见 global/config.applyEnv）：
// CARECHAT_HTTP_ADDR, CARECHAT_REDIS_ADDR, CARECHAT_MONGO_URI,
// CARECHAT_PG_DSN, CARECHAT_NATS_SERVERS, CARECHAT_KAFKA_BROKERS,
// CARECHAT_VENDOR_BASE_URL, CARECHAT_JWT_SECRET, CARECHAT_LOG_LEVEL

func GetEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func GetEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func GetEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "true" || v == "1" || v == "yes"
}

func GetEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// SplitList 逗号分隔，去空白与空项
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
