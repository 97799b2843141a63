// Package scheduler implements the dispatch loop of the simulated CPU.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/sarchlab/quantasim"
	"github.com/sarchlab/quantasim/cpu"
	"github.com/sarchlab/quantasim/process"
	"github.com/sarchlab/quantasim/sim/hooking"
	"github.com/sarchlab/quantasim/sim/queueing"
	"github.com/sarchlab/quantasim/sim/timing"
)

// ErrStalled is returned by a scheduler that exits when drained if only
// blocked processes are left. Blocked processes are promoted only after a
// Normal slice, so nothing can ever run again.
var ErrStalled = errors.New("scheduler stalled with only blocked processes")

var (
	// HookPosAdmit triggers when an admitted process enters the ready queue.
	HookPosAdmit = &hooking.HookPos{Name: "Admit"}

	// HookPosDispatch triggers when the head of the ready queue is handed to
	// the execution unit.
	HookPosDispatch = &hooking.HookPos{Name: "Dispatch"}

	// HookPosPromote triggers when the head of the blocked queue moves to the
	// ready queue.
	HookPosPromote = &hooking.HookPos{Name: "Promote"}

	// HookPosIdleEnter triggers when the scheduler runs out of processes.
	HookPosIdleEnter = &hooking.HookPos{Name: "Idle Enter"}

	// HookPosIdleTick triggers on every check for new processes under the
	// IdlePoll policy. The item is the poll interval.
	HookPosIdleTick = &hooking.HookPos{Name: "Idle Tick"}

	// HookPosIdleExit triggers when new processes end an idle period.
	HookPosIdleExit = &hooking.HookPos{Name: "Idle Exit"}

	// HookPosStalled triggers when only blocked processes are left. The item
	// is the list of blocked PIDs.
	HookPosStalled = &hooking.HookPos{Name: "Stalled"}
)

// IdlePolicy decides how the scheduler waits for new processes.
type IdlePolicy int

const (
	// IdleBlock sleeps until a process is admitted.
	IdleBlock IdlePolicy = iota

	// IdlePoll checks for new processes once every poll interval.
	IdlePoll
)

func (p IdlePolicy) String() string {
	switch p {
	case IdleBlock:
		return "block"
	case IdlePoll:
		return "poll"
	default:
		return fmt.Sprintf("idle-policy(%d)", int(p))
	}
}

// A Scheduler owns the process table and the ready and blocked queues, and
// feeds the execution unit from the ready queue.
//
// Run is the only goroutine that changes scheduling state. Other goroutines
// hand processes over with Admit and observe with Snapshot.
type Scheduler struct {
	hooking.HookableBase

	name  string
	clock timing.Clock
	cpu   *cpu.ExecutionUnit

	lock       sync.RWMutex
	table      *process.Table
	ready      *queueing.Queue
	blocked    *queueing.Queue
	idle       bool
	completed  int
	dispatches int

	idlePolicy       IdlePolicy
	idlePollInterval timing.VTime
	exitWhenDrained  bool

	inboxLock sync.Mutex
	inbox     []*process.Process
	arrival   chan struct{}

	pauseLock sync.Mutex
	paused    bool
	resume    chan struct{}

	running atomic.Bool
}

// Name returns the name of the scheduler.
func (s *Scheduler) Name() string {
	return s.name
}

// Clock returns the clock that paces the scheduler.
func (s *Scheduler) Clock() timing.Clock {
	return s.clock
}

// CPU returns the execution unit.
func (s *Scheduler) CPU() *cpu.ExecutionUnit {
	return s.cpu
}

// InstallHook registers a hook with the scheduler, its execution unit and
// both of its queues.
//
// Most hooks are invoked while the scheduler holds its state lock. A hook
// must use the snapshot in HookCtx.Item and must not call Snapshot, Process,
// Admit or any other Scheduler method, which would deadlock. Hooks installed
// on the clock run outside the lock.
func (s *Scheduler) InstallHook(hook hooking.Hook) {
	s.AcceptHook(hook)
	s.cpu.AcceptHook(hook)
	s.ready.AcceptHook(hook)
	s.blocked.AcceptHook(hook)
}

// Admit hands a process over to the scheduler. It is safe to call from any
// goroutine, before or during Run. The process enters the ready queue before
// the next dispatch.
func (s *Scheduler) Admit(p *process.Process) error {
	if p == nil {
		return fmt.Errorf("%w: nil process", quantasim.ErrInvalidArgument)
	}

	if p.IsTerminal() {
		return fmt.Errorf("%w: process %d has no remaining time",
			quantasim.ErrInvalidArgument, p.ID())
	}

	s.inboxLock.Lock()
	defer s.inboxLock.Unlock()

	if s.isKnown(p.ID()) {
		return fmt.Errorf("%w: process %d already admitted",
			quantasim.ErrInvalidArgument, p.ID())
	}

	p.SetState(process.Ready)
	s.inbox = append(s.inbox, p)

	select {
	case s.arrival <- struct{}{}:
	default:
	}

	return nil
}

// isKnown must be called with the inbox lock held.
func (s *Scheduler) isKnown(pid process.PID) bool {
	for _, pending := range s.inbox {
		if pending.ID() == pid {
			return true
		}
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	_, found := s.table.Get(pid)

	return found
}

// Pause stops the scheduler before its next dispatch. A dispatch that is
// already running finishes.
func (s *Scheduler) Pause() {
	s.pauseLock.Lock()
	defer s.pauseLock.Unlock()

	if s.paused {
		return
	}

	s.paused = true
	s.resume = make(chan struct{})
}

// Continue resumes a paused scheduler.
func (s *Scheduler) Continue() {
	s.pauseLock.Lock()
	defer s.pauseLock.Unlock()

	if !s.paused {
		return
	}

	s.paused = false
	close(s.resume)
}

// Paused returns true if the scheduler is paused.
func (s *Scheduler) Paused() bool {
	s.pauseLock.Lock()
	defer s.pauseLock.Unlock()

	return s.paused
}

func (s *Scheduler) waitIfPaused(ctx context.Context) error {
	s.pauseLock.Lock()
	if !s.paused {
		s.pauseLock.Unlock()
		return nil
	}
	resume := s.resume
	s.pauseLock.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-resume:
		return nil
	}
}

// Run dispatches processes until ctx is done. If the scheduler exits when
// drained, Run also returns nil once both queues are empty, or ErrStalled if
// only blocked processes remain.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: scheduler %s is already running",
			quantasim.ErrInvalidArgument, s.name)
	}
	defer s.running.Store(false)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.waitIfPaused(ctx); err != nil {
			return err
		}

		s.admitPending()

		p, status := s.next()

		var err error
		switch status {
		case statusRunnable:
			err = s.dispatch(ctx, p)
		case statusDrained:
			if s.exitWhenDrained {
				return nil
			}

			err = s.idleWait(ctx)
		case statusStalled:
			if s.exitWhenDrained {
				return ErrStalled
			}

			err = s.stallWait(ctx)
		}

		if err != nil {
			return err
		}
	}
}

type loopStatus int

const (
	statusRunnable loopStatus = iota
	statusDrained
	statusStalled
)

// admitPending moves the processes in the inbox to the tail of the ready
// queue, in the order they were admitted.
func (s *Scheduler) admitPending() {
	s.inboxLock.Lock()
	defer s.inboxLock.Unlock()

	if len(s.inbox) == 0 {
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	for _, p := range s.inbox {
		if err := s.table.Add(p); err != nil {
			log.Panicf("admitting process %d: %v", p.ID(), err)
		}

		if err := s.ready.Enqueue(p.ID()); err != nil {
			log.Panicf("admitting process %d: %v", p.ID(), err)
		}

		s.invoke(HookPosAdmit, p.Snapshot())
	}

	s.inbox = nil
}

func (s *Scheduler) hasPending() bool {
	s.inboxLock.Lock()
	defer s.inboxLock.Unlock()

	return len(s.inbox) > 0
}

// next marks the head of the ready queue as running.
func (s *Scheduler) next() (*process.Process, loopStatus) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.ready.IsEmpty() {
		if s.blocked.IsEmpty() {
			return nil, statusDrained
		}

		return nil, statusStalled
	}

	pid, err := s.ready.Peek()
	if err != nil {
		log.Panic(err)
	}

	p := s.table.MustGet(pid)
	p.SetState(process.Running)
	p.IncrementCycles()

	s.invoke(HookPosDispatch, p.Snapshot())

	return p, statusRunnable
}

func (s *Scheduler) dispatch(ctx context.Context, p *process.Process) error {
	o, err := s.cpu.RunQuantum(ctx, p, cpu.Queues{
		Table:   s.table,
		Ready:   s.ready,
		Blocked: s.blocked,
	})

	s.lock.Lock()
	defer s.lock.Unlock()

	if err != nil {
		if s.ready.Contains(p.ID()) {
			p.SetState(process.Ready)
			p.DecrementCycles()
		}

		return err
	}

	s.dispatches++

	if o.Kind == cpu.Completed {
		s.table.Remove(p.ID())
		s.completed++
	}

	if o.FromNormalSlice() && !s.blocked.IsEmpty() {
		s.promote()
	}

	return nil
}

// promote moves the head of the blocked queue to the tail of the ready queue.
func (s *Scheduler) promote() {
	pid, err := s.blocked.Dequeue()
	if err != nil {
		log.Panic(err)
	}

	p := s.table.MustGet(pid)
	p.SetState(process.Ready)

	if err := s.ready.Enqueue(pid); err != nil {
		log.Panicf("promoting process %d: %v", pid, err)
	}

	s.invoke(HookPosPromote, p.Snapshot())
}

func (s *Scheduler) idleWait(ctx context.Context) error {
	s.setIdle(true)
	s.invoke(HookPosIdleEnter, nil)

	err := s.waitForArrival(ctx)

	s.setIdle(false)
	if err == nil {
		s.invoke(HookPosIdleExit, nil)
	}

	return err
}

func (s *Scheduler) stallWait(ctx context.Context) error {
	s.lock.RLock()
	blocked := s.blocked.Elements()
	s.lock.RUnlock()

	s.invoke(HookPosStalled, blocked)

	return s.waitForArrival(ctx)
}

func (s *Scheduler) waitForArrival(ctx context.Context) error {
	for !s.hasPending() {
		if err := s.waitOnce(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (s *Scheduler) waitOnce(ctx context.Context) error {
	if s.idlePolicy == IdlePoll {
		s.invoke(HookPosIdleTick, s.idlePollInterval)
		return s.clock.Wait(ctx, s.idlePollInterval)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.arrival:
		return nil
	}
}

func (s *Scheduler) setIdle(idle bool) {
	s.lock.Lock()
	s.idle = idle
	s.lock.Unlock()
}

func (s *Scheduler) invoke(pos *hooking.HookPos, item any) {
	if s.NumHooks() == 0 {
		return
	}

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    pos,
		Item:   item,
	})
}
