package main

import (
	"context"
	"time"

	"CareChat/global"
	"CareChat/global/config"
	"CareChat/module/annotation"
	chatstore "CareChat/module/chat/store"
	"CareChat/module/events"
	"CareChat/module/index"
	"CareChat/module/notify"
	notifystore "CareChat/module/notify/store"
	"CareChat/module/reconcile"
	"CareChat/module/webhook"
	"CareChat/service/kafka"
	redis "CareChat/service/storage/redis"
	"CareChat/service/convo"
	"CareChat/tools/clock"
	"CareChat/tools/safe"
)

// app 组装好的业务对象
type app struct {
	policy *config.PolicyHolder
	clock  clock.Clock

	convs chatstore.Store
	notes notifystore.Store

	tracker    *index.Tracker
	annotation *annotation.Service
	reconciler *reconcile.Reconciler
	checker    *notify.Checker
	remover    reconcile.ParticipantRemover
	scheduler  *reconcile.Scheduler

	close func()
}

type backend struct {
	convs    chatstore.Store
	notes    notifystore.Store
	locker   annotation.Locker
	lease    reconcile.Lease
	events   events.Publisher
	notifier notify.Notifier
	close    func()
}

func infraBackend(ctx context.Context, cfg *config.AppConfig, c clock.Clock) (*backend, error) {
	infra, err := global.ConfigAll(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := events.RegisterRoutes(); err != nil {
		infra.Close()
		return nil, err
	}
	rdb := redis.GetRedis()
	b := &backend{
		convs:    chatstore.NewMongoStore(infra.Mongo, c.Now),
		notes:    notifystore.NewPgStore(infra.Pg, cfg.Postgres.OperationTimeout),
		locker:   annotation.NewRedisLocker(rdb, "carechat:lock:message", cfg.Policy.LockTTL),
		lease:    annotation.NewRedisLocker(rdb, "carechat:lease", cfg.Scheduler.LeaseTTL),
		events:   events.NewNatsPublisher(),
		notifier: notify.NewKafkaNotifier(kafka.Producer(), cfg.Kafka.NotificationTopic),
		close:    infra.Close,
	}
	return b, nil
}

func memoryBackend(cfg *config.AppConfig, c clock.Clock) *backend {
	return &backend{
		convs:    chatstore.NewMemStore(c.Now),
		notes:    notifystore.NewMemStore(),
		locker:   annotation.NewMemoryLocker(cfg.Policy.LockTTL, c),
		lease:    annotation.NewMemoryLocker(cfg.Scheduler.LeaseTTL, c),
		events:   events.LogPublisher{},
		notifier: notify.LogNotifier{},
		close:    func() {},
	}
}

func newApp(ctx context.Context, cfg *config.AppConfig, vendors convo.Provider, c clock.Clock) (*app, error) {
	safe.MustNotNil(vendors, "vendor provider")
	safe.MustNotNil(c, "clock")
	var (
		b   *backend
		err error
	)
	switch cfg.Backend {
	case config.BackendInfra:
		if b, err = infraBackend(ctx, cfg, c); err != nil {
			return nil, err
		}
	default:
		b = memoryBackend(cfg, c)
	}

	if err := b.convs.EnsureIndexes(ctx); err != nil {
		b.close()
		return nil, err
	}
	if err := b.notes.EnsureSchema(ctx); err != nil {
		b.close()
		return nil, err
	}

	policy := config.NewPolicyHolder(cfg.Policy)
	tracker := index.NewTracker(b.convs, b.notes, vendors, policy, c)
	remover := reconcile.LocalRemover{Convs: b.convs, Events: b.events, Clock: c}
	rec := reconcile.New(b.convs, vendors, tracker, remover, policy, c)
	checker := notify.NewChecker(b.convs, b.notes, b.notifier, policy, c)

	a := &app{
		policy:     policy,
		clock:      c,
		convs:      b.convs,
		notes:      b.notes,
		tracker:    tracker,
		annotation: annotation.NewService(b.convs, vendors, b.locker, policy, c, b.events),
		reconciler: rec,
		checker:    checker,
		remover:    remover,
		close:      b.close,
	}
	a.scheduler = reconcile.NewScheduler(b.lease, cfg.Scheduler.LeaseKey,
		func() time.Duration { return policy.Current().SweepInterval }, c,
		reconcile.Job{Name: "reconcile", Run: func(ctx context.Context) error {
			_, err := rec.SweepRecent(ctx)
			return err
		}},
		reconcile.Job{Name: "unread", Run: func(ctx context.Context) error {
			_, err := checker.SweepRecent(ctx)
			return err
		}},
	)
	return a, nil
}

func (a *app) webhook() *webhook.Handler {
	return webhook.NewHandler(a.tracker, a.convs, a.remover)
}

func newVendors(cfg *config.AppConfig) *convo.Sessions {
	r := convo.NewRetrier()
	return convo.NewSessions(cfg.Vendor.HTTPConfig, convo.StaticCredentials(cfg.Vendor.Credentials),
		func(c convo.Client) convo.Client { return convo.WithRetry(c, r) })
}
