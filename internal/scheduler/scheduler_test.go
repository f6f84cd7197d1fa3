package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct{ calls atomic.Int32 }

func (c *countingRefresher) Refresh(ctx context.Context) error {
	c.calls.Add(1)
	return nil
}

type countingSweeper struct {
	daily, stall, disk atomic.Int32
}

func (c *countingSweeper) Daily(ctx context.Context) error             { c.daily.Add(1); return nil }
func (c *countingSweeper) StallSweep(ctx context.Context) error        { c.stall.Add(1); return nil }
func (c *countingSweeper) DiskPressureSweep(ctx context.Context) error { c.disk.Add(1); return nil }

func TestStartPerformsImmediateSynchronousRefresh(t *testing.T) {
	clock := clockwork.NewFakeClock()
	refresher := &countingRefresher{}
	sweeper := &countingSweeper{}
	s := New(refresher, sweeper, clock, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	defer s.Stop()

	require.Equal(t, int32(1), refresher.calls.Load())
}

func TestRefreshLoopTicksOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	refresher := &countingRefresher{}
	sweeper := &countingSweeper{}
	s := New(refresher, sweeper, clock, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	clock.BlockUntil(4)
	clock.Advance(time.Minute)

	assert.Eventually(t, func() bool { return refresher.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}
