// Package config 从 Nacos 拉取并监听策略配置，变化时回调。
package config

import (
	"sync"

	appcfg "CareChat/global/config"
	"CareChat/logger"
	"CareChat/tools/errs"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"go.uber.org/zap"
)

// Source config_client.IConfigClient 中用到的部分
type Source interface {
	GetConfig(param vo.ConfigParam) (string, error)
	ListenConfig(params vo.ConfigParam) error
	CancelListenConfig(params vo.ConfigParam) error
}

var _ Source = (config_client.IConfigClient)(nil)

func NewNacosClient(c appcfg.NacosConfig) (config_client.IConfigClient, error) {
	cc := constant.NewClientConfig(
		constant.WithNamespaceId(c.Namespace),
		constant.WithTimeoutMs(5000),
		constant.WithNotLoadCacheAtStart(true),
		constant.WithLogLevel("warn"),
		constant.WithCacheDir("nacos/cache"),
		constant.WithLogDir("nacos/log"),
		constant.WithUsername(c.Username),
		constant.WithPassword(c.Password),
	)
	cli, err := clients.NewConfigClient(vo.NacosClientParam{
		ClientConfig:  cc,
		ServerConfigs: []constant.ServerConfig{*constant.NewServerConfig(c.Host, c.Port)},
	})
	if err != nil {
		return nil, errs.WrapMsg(err, "nacos config client", "host", c.Host)
	}
	return cli, nil
}

// Watcher 首次拉取 + 持续监听；回调失败只记日志，保留旧配置
type Watcher struct {
	src      Source
	param    vo.ConfigParam
	onChange func(data []byte) error

	mu      sync.RWMutex
	current string
}

func NewWatcher(src Source, dataID, group string, onChange func(data []byte) error) *Watcher {
	w := &Watcher{src: src, onChange: onChange}
	w.param = vo.ConfigParam{
		DataId: dataID,
		Group:  group,
		OnChange: func(_, _, _, data string) {
			w.apply(data)
		},
	}
	return w
}

func (w *Watcher) Start() error {
	content, err := w.src.GetConfig(vo.ConfigParam{DataId: w.param.DataId, Group: w.param.Group})
	if err != nil {
		return errs.WrapMsg(err, "nacos get config", "dataId", w.param.DataId)
	}
	if content != "" {
		w.apply(content)
	}
	if err := w.src.ListenConfig(w.param); err != nil {
		return errs.WrapMsg(err, "nacos listen", "dataId", w.param.DataId)
	}
	return nil
}

func (w *Watcher) Stop() error {
	return w.src.CancelListenConfig(vo.ConfigParam{DataId: w.param.DataId, Group: w.param.Group})
}

func (w *Watcher) apply(data string) {
	if err := w.onChange([]byte(data)); err != nil {
		logger.Warn("nacos config rejected", zap.String("dataId", w.param.DataId), zap.Error(err))
		return
	}
	w.mu.Lock()
	w.current = data
	w.mu.Unlock()
	logger.Info("nacos config applied", zap.String("dataId", w.param.DataId))
}

// Current 最近一次成功应用的原始内容
func (w *Watcher) Current() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}
