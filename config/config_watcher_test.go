package config

import (
	"testing"
	"time"

	appcfg "CareChat/global/config"

	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	content  string
	listener func(namespace, group, dataId, data string)
	canceled bool
}

func (f *fakeSource) GetConfig(vo.ConfigParam) (string, error) { return f.content, nil }

func (f *fakeSource) ListenConfig(p vo.ConfigParam) error {
	f.listener = p.OnChange
	return nil
}

func (f *fakeSource) CancelListenConfig(vo.ConfigParam) error {
	f.canceled = true
	return nil
}

func TestWatcherAppliesPolicyUpdates(t *testing.T) {
	holder := appcfg.NewPolicyHolder(appcfg.DefaultPolicy())
	src := &fakeSource{content: "unread_threshold: 45m\n"}
	w := NewWatcher(src, "carechat-policy.yaml", "DEFAULT_GROUP", holder.Update)

	require.NoError(t, w.Start())
	assert.Equal(t, 45*time.Minute, holder.Current().UnreadThreshold)
	require.NotNil(t, src.listener)

	src.listener("", "DEFAULT_GROUP", "carechat-policy.yaml", "read_index_tolerance: 5\n")
	assert.EqualValues(t, 5, holder.Current().ReadIndexTolerance)
	assert.Equal(t, 45*time.Minute, holder.Current().UnreadThreshold)

	// 非法配置被拒绝，旧值保留
	src.listener("", "DEFAULT_GROUP", "carechat-policy.yaml", "sweep_concurrency: 0\n")
	assert.Equal(t, 8, holder.Current().SweepConcurrency)
	assert.Equal(t, "read_index_tolerance: 5\n", w.Current())

	require.NoError(t, w.Stop())
	assert.True(t, src.canceled)
}
