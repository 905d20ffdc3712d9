package timer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/timer"
)

func TestBlockingTrueYieldsApproximatelyOnInterval(t *testing.T) {
	tm := timer.NewBlocking(20 * time.Millisecond)
	start := time.Now()
	assert.True(t, tm.True(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestBlockingTrueReturnsFalseOnCancel(t *testing.T) {
	tm := timer.NewBlocking(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, tm.True(ctx))
}

func TestBlockingZeroIntervalNeverSleeps(t *testing.T) {
	tm := timer.NewBlocking(0)
	start := time.Now()
	assert.True(t, tm.True(context.Background()))
	assert.Less(t, time.Since(start), 5*time.Millisecond)
}

func TestCooperativeNextFires(t *testing.T) {
	tm := timer.NewCooperative(10 * time.Millisecond)
	select {
	case <-tm.Next():
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestCooperativeSetIntervalRebasesNextYield(t *testing.T) {
	tm := timer.NewCooperative(time.Hour)
	tm.SetInterval(5 * time.Millisecond)
	select {
	case <-tm.Next():
	case <-time.After(time.Second):
		t.Fatal("rebase did not take effect")
	}
}
