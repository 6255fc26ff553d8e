// Package index 维护会话与参与者的已读、已发送水位，并与供应商侧游标对齐。
//
// 信任方向：消息顺序以供应商为准；已读/已发送水位一旦在本地确认，以本地为准，
// 推送给供应商的失败只记日志，由定时对账补推。
package index

import (
	"CareChat/global/config"
	chatstore "CareChat/module/chat/store"
	notifystore "CareChat/module/notify/store"
	"CareChat/service/convo"
	"CareChat/tools/clock"
)

type Tracker struct {
	convs   chatstore.Store
	notes   notifystore.Store
	vendors convo.Provider
	policy  config.PolicySource
	clock   clock.Clock
}

func NewTracker(convs chatstore.Store, notes notifystore.Store, vendors convo.Provider, policy config.PolicySource, c clock.Clock) *Tracker {
	if c == nil {
		c = clock.Real()
	}
	return &Tracker{convs: convs, notes: notes, vendors: vendors, policy: policy, clock: c}
}
