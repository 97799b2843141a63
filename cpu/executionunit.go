// Package cpu implements the execution unit, which runs one process for one
// quantum and decides where the process goes next.
package cpu

import (
	"context"
	"log"
	"sync"

	"github.com/sarchlab/quantasim/process"
	"github.com/sarchlab/quantasim/sim/hooking"
	"github.com/sarchlab/quantasim/sim/queueing"
	"github.com/sarchlab/quantasim/sim/timing"
)

// HookPosCompleted triggers when a process finishes.
var HookPosCompleted = &hooking.HookPos{Name: "Process Completed"}

// HookPosRequeued triggers when a process goes back to the ready queue.
var HookPosRequeued = &hooking.HookPos{Name: "Process Requeued"}

// HookPosBlocked triggers when a process moves to the blocked queue.
var HookPosBlocked = &hooking.HookPos{Name: "Process Blocked"}

// HookPosInterruptRaised triggers when an Interrupt process starts waiting
// for its interrupt to be serviced.
var HookPosInterruptRaised = &hooking.HookPos{Name: "Interrupt Raised"}

// HookPosInterruptHandled triggers when an interrupt has been serviced and the
// process resumes.
var HookPosInterruptHandled = &hooking.HookPos{Name: "Interrupt Handled"}

// Queues are the structures that a dispatch reads and modifies.
type Queues struct {
	Table   *process.Table
	Ready   *queueing.Queue
	Blocked *queueing.Queue
}

// An ExecutionUnit is the single simulated CPU.
//
// All the mutations of a dispatch happen while holding the state lock. Clock
// waits happen without it, so that observers can take snapshots while a
// process is being serviced.
type ExecutionUnit struct {
	hooking.HookableBase

	name                string
	clock               timing.Clock
	lock                sync.Locker
	quantum             int
	dispatchDelay       timing.VTime
	interruptDelay      timing.VTime
	chargeInterruptOnce bool
}

// Name returns the name of the execution unit.
func (u *ExecutionUnit) Name() string {
	return u.name
}

// Quantum returns the number of time units charged per slice.
func (u *ExecutionUnit) Quantum() int {
	return u.quantum
}

// RunQuantum runs p, which must be the head of the ready queue, for one
// quantum.
//
// The returned error is only ever the context error of an interrupted clock
// wait. A dispatch interrupted during its work delay leaves every structure
// untouched. A dispatch interrupted while an interrupt is being serviced
// leaves the process Blocked in the blocked queue.
func (u *ExecutionUnit) RunQuantum(
	ctx context.Context,
	p *process.Process,
	q Queues,
) (Outcome, error) {
	o := Outcome{
		PID:   p.ID(),
		Path:  p.Category(),
		Start: u.clock.Now(),
	}

	if err := u.clock.Wait(ctx, u.dispatchDelay); err != nil {
		return o, err
	}

	u.lock.Lock()
	u.detachFromReadyHead(p, q.Ready)

	switch p.Category() {
	case process.IO:
		u.runIO(p, q, &o)
	case process.Interrupt:
		if err := u.serviceInterrupt(ctx, p, q, &o); err != nil {
			u.lock.Unlock()
			return o, err
		}

		u.runNormal(p, q, &o, !u.chargeInterruptOnce)
	case process.Normal:
		u.runNormal(p, q, &o, true)
	default:
		log.Panicf("process %d has unknown category %s",
			p.ID(), p.Category())
	}

	o.End = u.clock.Now()
	o.IdleEligible = q.Ready.IsEmpty() && q.Blocked.IsEmpty()

	u.lock.Unlock()

	return o, nil
}

func (u *ExecutionUnit) detachFromReadyHead(
	p *process.Process,
	ready *queueing.Queue,
) {
	head, err := ready.Dequeue()
	if err != nil {
		log.Panicf("dispatching process %d: %v", p.ID(), err)
	}

	if head != p.ID() {
		log.Panicf("dispatching process %d, but the ready queue head is %d",
			p.ID(), head)
	}
}

// runIO lets an IO process give up the rest of its slice. An IO process that
// arrives with no time left completes instead.
func (u *ExecutionUnit) runIO(
	p *process.Process,
	q Queues,
	o *Outcome,
) {
	if p.IsTerminal() {
		o.record(Completed)
		u.invoke(HookPosCompleted, p, o)

		return
	}

	u.charge(p, o)
	u.block(p, q.Blocked)

	o.record(Blocked)
	u.invoke(HookPosBlocked, p, o)
}

// serviceInterrupt charges the slice, parks the process in the blocked queue
// for the interrupt delay, and brings it back as a Normal process. It is
// called and returns with the state lock held, releasing it only while the
// interrupt is being serviced.
func (u *ExecutionUnit) serviceInterrupt(
	ctx context.Context,
	p *process.Process,
	q Queues,
	o *Outcome,
) error {
	u.charge(p, o)
	u.block(p, q.Blocked)
	u.invoke(HookPosInterruptRaised, p, nil)

	u.lock.Unlock()
	err := u.clock.Wait(ctx, u.interruptDelay)
	u.lock.Lock()

	if err != nil {
		return err
	}

	if !q.Blocked.Remove(p.ID()) {
		log.Panicf("process %d left the blocked queue during its interrupt",
			p.ID())
	}

	p.SetState(process.Running)
	p.SetCategory(process.Normal)

	o.Path = process.Normal
	o.InterruptHandled = true
	o.record(InterruptHandled)
	u.invoke(HookPosInterruptHandled, p, o)

	return nil
}

// runNormal charges a Normal slice. The process either completes or goes to
// the tail of the ready queue. Every other queued process then waited one more
// cycle.
func (u *ExecutionUnit) runNormal(
	p *process.Process,
	q Queues,
	o *Outcome,
	charge bool,
) {
	if charge {
		u.charge(p, o)
	}

	if p.IsTerminal() {
		o.record(Completed)
		u.invoke(HookPosCompleted, p, o)
	} else {
		p.SetState(process.Ready)
		u.mustEnqueue(q.Ready, p)

		o.record(Requeued)
		u.invoke(HookPosRequeued, p, o)
	}

	u.countWaitingCycles(p.ID(), q)
}

func (u *ExecutionUnit) charge(p *process.Process, o *Outcome) {
	p.DecrementRemaining(u.quantum)
	o.Charged += u.quantum
}

func (u *ExecutionUnit) block(p *process.Process, blocked *queueing.Queue) {
	p.SetState(process.Blocked)
	u.mustEnqueue(blocked, p)
}

func (u *ExecutionUnit) mustEnqueue(q *queueing.Queue, p *process.Process) {
	if err := q.Enqueue(p.ID()); err != nil {
		log.Panicf("process %d: %v", p.ID(), err)
	}
}

func (u *ExecutionUnit) countWaitingCycles(serviced process.PID, q Queues) {
	for _, queue := range []*queueing.Queue{q.Ready, q.Blocked} {
		for _, pid := range queue.Elements() {
			if pid == serviced {
				continue
			}

			q.Table.MustGet(pid).IncrementCycles()
		}
	}
}

func (u *ExecutionUnit) invoke(
	pos *hooking.HookPos,
	p *process.Process,
	o *Outcome,
) {
	if u.NumHooks() == 0 {
		return
	}

	ctx := hooking.HookCtx{
		Domain: u,
		Pos:    pos,
		Item:   p.Snapshot(),
	}

	if o != nil {
		ctx.Detail = *o
	}

	u.InvokeHook(ctx)
}
