package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock_AdvanceFiresDueTimersInOrder(t *testing.T) {
	clock := NewManualClock(t0)
	var fired []string

	clock.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	clock.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	clock.AfterFunc(2*time.Second, func() { fired = append(fired, "c") })
	clock.AfterFunc(5*time.Second, func() { fired = append(fired, "late") })

	clock.Advance(2 * time.Second)

	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, t0.Add(2*time.Second), clock.Now())
	assert.Equal(t, 1, clock.Pending())
}

func TestManualClock_StoppedTimerNeverFires(t *testing.T) {
	clock := NewManualClock(t0)
	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	clock.Advance(time.Minute)

	assert.False(t, fired)
	assert.Equal(t, 0, clock.Pending())
}

func TestManualClock_TimerMayScheduleAnother(t *testing.T) {
	clock := NewManualClock(t0)
	count := 0
	var tick func()
	tick = func() {
		count++
		clock.AfterFunc(time.Second, tick)
	}
	clock.AfterFunc(time.Second, tick)

	clock.Advance(time.Second)
	clock.Advance(time.Second)

	assert.Equal(t, 2, count)
	assert.Equal(t, 1, clock.Pending())
}

func TestSystemClock(t *testing.T) {
	var clock SystemClock
	done := make(chan struct{})

	before := time.Now()
	clock.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("system clock timer did not fire")
	}
	assert.False(t, clock.Now().Before(before))
}
