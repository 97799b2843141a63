package timing

import (
	"context"
	"sync"

	"github.com/sarchlab/quantasim/sim/hooking"
)

// A VirtualClock lets time pass instantly. Waiting only moves the clock
// forward, so a simulation runs as fast as the host allows and always produces
// the same timeline.
type VirtualClock struct {
	hooking.HookableBase

	timeLock sync.RWMutex
	now      VTime
}

// NewVirtualClock creates a VirtualClock at time 0.
func NewVirtualClock() *VirtualClock {
	return &VirtualClock{}
}

// Now returns the current simulated time.
func (c *VirtualClock) Now() VTime {
	return c.readNow()
}

// Wait advances the clock by d.
func (c *VirtualClock) Wait(ctx context.Context, d VTime) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.invoke(HookPosBeforeWait, d)

	c.timeLock.Lock()
	c.now += d
	c.timeLock.Unlock()

	c.invoke(HookPosAfterWait, d)

	return nil
}

func (c *VirtualClock) readNow() VTime {
	c.timeLock.RLock()
	t := c.now
	c.timeLock.RUnlock()

	return t
}

func (c *VirtualClock) invoke(pos *hooking.HookPos, d VTime) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   d,
	})
}
