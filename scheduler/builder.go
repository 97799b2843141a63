package scheduler

import (
	"github.com/sarchlab/quantasim/config"
	"github.com/sarchlab/quantasim/cpu"
	"github.com/sarchlab/quantasim/process"
	"github.com/sarchlab/quantasim/sim/queueing"
	"github.com/sarchlab/quantasim/sim/timing"
)

// Builder can build Schedulers.
type Builder struct {
	clock               timing.Clock
	quantum             int
	dispatchDelay       timing.VTime
	interruptDelay      timing.VTime
	idlePollInterval    timing.VTime
	idlePolicy          IdlePolicy
	chargeInterruptOnce bool
	exitWhenDrained     bool
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		quantum:          cpu.DefaultQuantum,
		dispatchDelay:    100,
		interruptDelay:   300,
		idlePollInterval: 500,
		idlePolicy:       IdleBlock,
	}
}

// WithConfig copies every scheduling setting from c, including the clock.
func (b Builder) WithConfig(c config.Config) Builder {
	b.quantum = c.Quantum
	b.dispatchDelay = c.DispatchDelay
	b.interruptDelay = c.InterruptDelay
	b.idlePollInterval = c.IdlePollInterval
	b.chargeInterruptOnce = c.ChargeInterruptOnce
	b.exitWhenDrained = c.ExitWhenDrained

	b.idlePolicy = IdleBlock
	if c.IdlePolicy == config.IdlePolicyPoll {
		b.idlePolicy = IdlePoll
	}

	if c.Clock == config.ClockWall {
		b.clock = timing.NewWallClock(c.TimeUnit)
	} else {
		b.clock = timing.NewVirtualClock()
	}

	return b
}

// WithClock sets the clock of the scheduler and its execution unit.
func (b Builder) WithClock(clock timing.Clock) Builder {
	b.clock = clock
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

// WithIdlePolicy sets how the scheduler waits when it has nothing to run.
func (b Builder) WithIdlePolicy(policy IdlePolicy) Builder {
	b.idlePolicy = policy
	return b
}

// WithIdlePollInterval sets the time between two checks for new processes
// under the IdlePoll policy.
func (b Builder) WithIdlePollInterval(d timing.VTime) Builder {
	b.idlePollInterval = d
	return b
}

// WithChargeInterruptOnce makes servicing an interrupt cost one quantum
// instead of two.
func (b Builder) WithChargeInterruptOnce(once bool) Builder {
	b.chargeInterruptOnce = once
	return b
}

// WithExitWhenDrained makes Run return once no process is left instead of
// waiting for new ones.
func (b Builder) WithExitWhenDrained(exit bool) Builder {
	b.exitWhenDrained = exit
	return b
}

// Build creates a Scheduler. It panics with ErrInvalidArgument if the quantum
// is not positive. Settings from outside the program should go through
// config.Validate first, which reports the same problem as an error.
func (b Builder) Build(name string) *Scheduler {
	clock := b.clock
	if clock == nil {
		clock = timing.NewVirtualClock()
	}

	s := &Scheduler{
		name:             name,
		clock:            clock,
		table:            process.NewTable(),
		ready:            queueing.NewQueue(name + ".Ready"),
		blocked:          queueing.NewQueue(name + ".Blocked"),
		idlePolicy:       b.idlePolicy,
		idlePollInterval: b.idlePollInterval,
		exitWhenDrained:  b.exitWhenDrained,
		arrival:          make(chan struct{}, 1),
	}

	s.cpu = cpu.MakeBuilder().
		WithClock(clock).
		WithStateLock(&s.lock).
		WithQuantum(b.quantum).
		WithDispatchDelay(b.dispatchDelay).
		WithInterruptDelay(b.interruptDelay).
		WithChargeInterruptOnce(b.chargeInterruptOnce).
		Build(name + ".CPU")

	return s
}
