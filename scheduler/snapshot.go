package scheduler

import (
	"github.com/sarchlab/quantasim/process"
	"github.com/sarchlab/quantasim/sim/timing"
)

// Snapshot is a consistent view of the scheduler at one moment.
type Snapshot struct {
	Name       string             `json:"name"`
	Now        timing.VTime       `json:"now"`
	Ready      []process.PID      `json:"ready"`
	Blocked    []process.PID      `json:"blocked"`
	Processes  []process.Snapshot `json:"processes"`
	Pending    int                `json:"pending"`
	Completed  int                `json:"completed"`
	Dispatches int                `json:"dispatches"`
	Idle       bool               `json:"idle"`
	Paused     bool               `json:"paused"`
}

// Snapshot copies the queues and the live processes. It never observes a
// dispatch halfway through a state change.
func (s *Scheduler) Snapshot() Snapshot {
	paused := s.Paused()

	s.inboxLock.Lock()
	pending := len(s.inbox)
	s.inboxLock.Unlock()

	s.lock.RLock()
	defer s.lock.RUnlock()

	return Snapshot{
		Name:       s.name,
		Now:        s.clock.Now(),
		Ready:      s.ready.Elements(),
		Blocked:    s.blocked.Elements(),
		Processes:  s.table.Snapshots(),
		Pending:    pending,
		Completed:  s.completed,
		Dispatches: s.dispatches,
		Idle:       s.idle,
		Paused:     paused,
	}
}

// Process returns a snapshot of a live process.
func (s *Scheduler) Process(pid process.PID) (process.Snapshot, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	p, found := s.table.Get(pid)
	if !found {
		return process.Snapshot{}, false
	}

	return p.Snapshot(), true
}

// Completed returns the number of processes that have finished.
func (s *Scheduler) Completed() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.completed
}

// Dispatches returns the number of quanta dispatched so far.
func (s *Scheduler) Dispatches() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.dispatches
}
