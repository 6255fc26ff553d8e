package ids

import (
	"testing"
	"time"

	"CareChat/tools/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorMonotonicUnderFrozenClock(t *testing.T) {
	fc := clock.Fake(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	g := NewGenerator(7, fc)

	seen := make(map[int64]struct{})
	var last int64
	for i := 0; i < 5000; i++ {
		id := g.Next()
		require.Greater(t, id, last)
		last = id
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 5000)
	// 4096 ids per millisecond, so the sequence overflowed once
	assert.Equal(t, []time.Duration{time.Millisecond}, fc.Waits())
	assert.Equal(t, int64(7), (last>>12)&0x3FF)
}
