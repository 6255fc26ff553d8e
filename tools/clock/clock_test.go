package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClockRecordsWaits(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := Fake(start)

	assert.Equal(t, start, c.Now())

	fired := <-c.After(2 * time.Second)
	assert.Equal(t, start.Add(2*time.Second), fired)

	c.Sleep(time.Second)
	c.Advance(time.Minute)

	assert.Equal(t, start.Add(time.Minute+3*time.Second), c.Now())
	assert.Equal(t, []time.Duration{2 * time.Second, time.Second}, c.Waits())
}

func TestFakeClockNonPositiveWait(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := Fake(start)

	<-c.After(0)
	c.Sleep(-time.Second)

	assert.Equal(t, start, c.Now())
	assert.Len(t, c.Waits(), 2)
}
