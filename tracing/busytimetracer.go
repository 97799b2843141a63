package tracing

import (
	"sync"

	"github.com/sarchlab/quantasim/scheduler"
	"github.com/sarchlab/quantasim/sim/hooking"
	"github.com/sarchlab/quantasim/sim/timing"
)

type interval struct {
	start timing.VTime
	open  bool
}

// BusyTimeTracer measures how long the CPU spends running dispatches and how
// long the scheduler sits idle.
type BusyTimeTracer struct {
	timeTeller timing.TimeTeller

	lock     sync.Mutex
	dispatch interval
	idle     interval
	busyTime timing.VTime
	idleTime timing.VTime
}

// NewBusyTimeTracer creates a new BusyTimeTracer.
func NewBusyTimeTracer(timeTeller timing.TimeTeller) *BusyTimeTracer {
	return &BusyTimeTracer{
		timeTeller: timeTeller,
	}
}

// BusyTime returns the total time spent in dispatches.
func (t *BusyTimeTracer) BusyTime() timing.VTime {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.busyTime
}

// IdleTime returns the total time spent waiting for processes.
func (t *BusyTimeTracer) IdleTime() timing.VTime {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.idleTime
}

// Func starts or ends an interval.
func (t *BusyTimeTracer) Func(ctx hooking.HookCtx) {
	switch {
	case ctx.Pos == scheduler.HookPosDispatch:
		t.start(&t.dispatch)
	case isFinalOutcome(ctx.Pos):
		t.end(&t.dispatch, &t.busyTime)
	case ctx.Pos == scheduler.HookPosIdleEnter:
		t.start(&t.idle)
	case ctx.Pos == scheduler.HookPosIdleExit:
		t.end(&t.idle, &t.idleTime)
	}
}

// Terminate closes the intervals that are still open, such as a dispatch
// cut short by a cancelled run.
func (t *BusyTimeTracer) Terminate() {
	t.end(&t.dispatch, &t.busyTime)
	t.end(&t.idle, &t.idleTime)
}

func (t *BusyTimeTracer) start(i *interval) {
	now := t.timeTeller.Now()

	t.lock.Lock()
	defer t.lock.Unlock()

	i.start = now
	i.open = true
}

func (t *BusyTimeTracer) end(i *interval, total *timing.VTime) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if !i.open {
		return
	}

	*total += t.timeTeller.Now() - i.start
	i.open = false
}
