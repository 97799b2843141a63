package timing

import (
	"context"
	"sync"
	"time"

	"github.com/sarchlab/quantasim/sim/hooking"
)

// DefaultTimeUnit is the real duration of one time unit on a WallClock. With
// the default delays it paces a dispatch at one second.
const DefaultTimeUnit = 10 * time.Millisecond

// A WallClock paces the simulation against real time. Each time unit lasts
// Unit of host time. Now reports the simulated time units waited so far, not
// the host time, so that a paused process does not skew the timeline.
type WallClock struct {
	hooking.HookableBase

	unit time.Duration

	timeLock sync.RWMutex
	now      VTime
}

// NewWallClock creates a WallClock. A non-positive unit falls back to
// DefaultTimeUnit.
func NewWallClock(unit time.Duration) *WallClock {
	if unit <= 0 {
		unit = DefaultTimeUnit
	}

	return &WallClock{unit: unit}
}

// Unit returns the host duration of one time unit.
func (c *WallClock) Unit() time.Duration {
	return c.unit
}

// Now returns the simulated time.
func (c *WallClock) Now() VTime {
	c.timeLock.RLock()
	defer c.timeLock.RUnlock()

	return c.now
}

// Wait sleeps for d time units, or returns early with the context error.
func (c *WallClock) Wait(ctx context.Context, d VTime) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.invoke(HookPosBeforeWait, d)

	timer := time.NewTimer(time.Duration(d) * c.unit)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	c.timeLock.Lock()
	c.now += d
	c.timeLock.Unlock()

	c.invoke(HookPosAfterWait, d)

	return nil
}

func (c *WallClock) invoke(pos *hooking.HookPos, d VTime) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   d,
	})
}
