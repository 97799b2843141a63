package cpu

import (
	"fmt"
	"sync"

	"github.com/sarchlab/quantasim"
	"github.com/sarchlab/quantasim/sim/timing"
)

// DefaultQuantum is the number of time units a process may hold the CPU per
// dispatch.
const DefaultQuantum = 100

// Builder can build ExecutionUnits.
type Builder struct {
	clock               timing.Clock
	lock                sync.Locker
	quantum             int
	dispatchDelay       timing.VTime
	interruptDelay      timing.VTime
	chargeInterruptOnce bool
}

// MakeBuilder returns a Builder with the default quantum and delays.
func MakeBuilder() Builder {
	return Builder{
		quantum:        DefaultQuantum,
		dispatchDelay:  100,
		interruptDelay: 300,
	}
}

// WithClock sets the clock that paces the execution unit.
func (b Builder) WithClock(clock timing.Clock) Builder {
	b.clock = clock
	return b
}

// WithStateLock sets the lock that guards the process table and the queues.
// It must be the same lock the scheduler uses.
func (b Builder) WithStateLock(lock sync.Locker) Builder {
	b.lock = lock
	return b
}

// WithQuantum sets the time units charged per slice.
func (b Builder) WithQuantum(quantum int) Builder {
	b.quantum = quantum
	return b
}

// WithDispatchDelay sets the simulated work time of every dispatch.
func (b Builder) WithDispatchDelay(d timing.VTime) Builder {
	b.dispatchDelay = d
	return b
}

// WithInterruptDelay sets the time it takes to service an interrupt.
func (b Builder) WithInterruptDelay(d timing.VTime) Builder {
	b.interruptDelay = d
	return b
}

// WithChargeInterruptOnce makes a dispatch that services an interrupt charge
// a single quantum. By default the process is charged once when the interrupt
// is raised and again by the Normal slice that follows.
func (b Builder) WithChargeInterruptOnce(once bool) Builder {
	b.chargeInterruptOnce = once
	return b
}

// Build creates an ExecutionUnit. It panics with ErrInvalidArgument if the
// quantum is not positive.
func (b Builder) Build(name string) *ExecutionUnit {
	if b.quantum <= 0 {
		panic(fmt.Errorf("%w: quantum must be positive, got %d",
			quantasim.ErrInvalidArgument, b.quantum))
	}

	u := &ExecutionUnit{
		name:                name,
		clock:               b.clock,
		lock:                b.lock,
		quantum:             b.quantum,
		dispatchDelay:       b.dispatchDelay,
		interruptDelay:      b.interruptDelay,
		chargeInterruptOnce: b.chargeInterruptOnce,
	}

	if u.clock == nil {
		u.clock = timing.NewVirtualClock()
	}

	if u.lock == nil {
		u.lock = &sync.Mutex{}
	}

	return u
}
