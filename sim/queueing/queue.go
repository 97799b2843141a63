// Package queueing provides the FIFO queues that hold processes waiting for
// the CPU or for their blocking condition to clear.
package queueing

import (
	"fmt"

	"github.com/sarchlab/quantasim"
	"github.com/sarchlab/quantasim/process"
	"github.com/sarchlab/quantasim/sim/hooking"
)

// HookPosEnqueue marks when a process is appended to a queue.
var HookPosEnqueue = &hooking.HookPos{Name: "Queue Enqueue"}

// HookPosDequeue marks when a process leaves a queue.
var HookPosDequeue = &hooking.HookPos{Name: "Queue Dequeue"}

// A Queue is a FIFO of process IDs. Insertion order is the scheduling order.
//
// A Queue never holds the same PID twice. It is not safe for concurrent use;
// the scheduler guards its queues with a single lock.
type Queue struct {
	hooking.HookableBase

	name     string
	elements []process.PID
	members  map[process.PID]struct{}
}

// NewQueue creates an empty queue.
func NewQueue(name string) *Queue {
	return &Queue{
		name:    name,
		members: make(map[process.PID]struct{}),
	}
}

// Name returns the name of the queue.
func (q *Queue) Name() string {
	return q.name
}

// Enqueue appends pid at the tail.
func (q *Queue) Enqueue(pid process.PID) error {
	if _, found := q.members[pid]; found {
		return fmt.Errorf("%w: process %d is already in %s",
			quantasim.ErrInvalidArgument, pid, q.name)
	}

	q.elements = append(q.elements, pid)
	q.members[pid] = struct{}{}

	q.invoke(HookPosEnqueue, pid)

	return nil
}

// Dequeue removes and returns the head.
func (q *Queue) Dequeue() (process.PID, error) {
	if len(q.elements) == 0 {
		return 0, fmt.Errorf("%w: dequeue from %s",
			quantasim.ErrEmptyQueue, q.name)
	}

	pid := q.elements[0]
	q.elements[0] = 0
	q.elements = q.elements[1:]
	delete(q.members, pid)

	q.invoke(HookPosDequeue, pid)

	return pid, nil
}

// Peek returns the head without removing it.
func (q *Queue) Peek() (process.PID, error) {
	if len(q.elements) == 0 {
		return 0, fmt.Errorf("%w: peek into %s",
			quantasim.ErrEmptyQueue, q.name)
	}

	return q.elements[0], nil
}

// Remove takes pid out of the queue wherever it is and keeps the order of the
// other elements. It returns false if pid is not queued.
func (q *Queue) Remove(pid process.PID) bool {
	if _, found := q.members[pid]; !found {
		return false
	}

	for i, e := range q.elements {
		if e != pid {
			continue
		}

		q.elements = append(q.elements[:i:i], q.elements[i+1:]...)
		delete(q.members, pid)

		q.invoke(HookPosDequeue, pid)

		return true
	}

	return false
}

// Contains tells if pid is in the queue.
func (q *Queue) Contains(pid process.PID) bool {
	_, found := q.members[pid]
	return found
}

// Size returns the number of queued processes.
func (q *Queue) Size() int {
	return len(q.elements)
}

// IsEmpty returns true if nothing is queued.
func (q *Queue) IsEmpty() bool {
	return len(q.elements) == 0
}

// Elements returns a copy of the queued PIDs, head first.
func (q *Queue) Elements() []process.PID {
	elements := make([]process.PID, len(q.elements))
	copy(elements, q.elements)

	return elements
}

func (q *Queue) invoke(pos *hooking.HookPos, pid process.PID) {
	if q.NumHooks() == 0 {
		return
	}

	q.InvokeHook(hooking.HookCtx{
		Domain: q,
		Pos:    pos,
		Item:   pid,
	})
}
