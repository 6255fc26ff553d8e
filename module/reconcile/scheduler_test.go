package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"CareChat/module/annotation"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerRunsOnlyWithLease(t *testing.T) {
	ctx := context.Background()
	lease := annotation.NewMemoryLocker(time.Minute, nil)
	runs := 0
	job := Job{Name: "count", Run: func(context.Context) error { runs++; return nil }}
	s := NewScheduler(lease, "sweep", func() time.Duration { return time.Hour }, nil, job)

	assert.True(t, s.Tick(ctx))
	assert.Equal(t, 1, runs)
	assert.False(t, lease.Held("sweep"), "lease released after the round")

	// 另一实例持有租约
	_, ok, _ := lease.Acquire(ctx, "sweep")
	assert.True(t, ok)
	assert.False(t, s.Tick(ctx))
	assert.Equal(t, 1, runs)
}

func TestSchedulerContinuesAfterJobFailure(t *testing.T) {
	lease := annotation.NewMemoryLocker(time.Minute, nil)
	var order []string
	s := NewScheduler(lease, "sweep", func() time.Duration { return time.Hour }, nil,
		Job{Name: "a", Run: func(context.Context) error { order = append(order, "a"); return errors.New("x") }},
		Job{Name: "b", Run: func(context.Context) error { order = append(order, "b"); return nil }},
	)
	s.Tick(context.Background())
	assert.Equal(t, []string{"a", "b"}, order)
}
