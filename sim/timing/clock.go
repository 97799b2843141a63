// Package timing provides the clocks that pace a simulation.
package timing

import (
	"context"

	"github.com/sarchlab/quantasim/sim/hooking"
)

// VTime is a point in, or a span of, simulated time, counted in time units.
type VTime uint64

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	Now() VTime
}

// A Clock is the only way for simulated components to let time pass.
type Clock interface {
	TimeTeller

	// Wait blocks until d time units have passed or ctx is done. The clock does
	// not advance past a cancelled wait.
	Wait(ctx context.Context, d VTime) error
}

// HookPosBeforeWait is a hook position that triggers before a clock starts
// waiting. The hook item is the duration of the wait.
var HookPosBeforeWait = &hooking.HookPos{Name: "BeforeWait"}

// HookPosAfterWait is a hook position that triggers after a wait completes.
// The hook item is the duration of the wait.
var HookPosAfterWait = &hooking.HookPos{Name: "AfterWait"}
