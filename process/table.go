package process

import (
	"fmt"
	"log"
	"sort"

	"github.com/sarchlab/quantasim"
)

// A Table owns every live process. Queues only keep PIDs and look processes up
// here, so there is exactly one copy of the mutable state of each process.
//
// Table is not safe for concurrent use. The scheduler guards it together with
// its queues.
type Table struct {
	processes map[PID]*Process
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{
		processes: make(map[PID]*Process),
	}
}

// Add puts a process into the table.
func (t *Table) Add(p *Process) error {
	if p == nil {
		return fmt.Errorf("%w: nil process", quantasim.ErrInvalidArgument)
	}

	if _, found := t.processes[p.ID()]; found {
		return fmt.Errorf("%w: process %d already exists",
			quantasim.ErrInvalidArgument, p.ID())
	}

	t.processes[p.ID()] = p

	return nil
}

// Get looks up a process.
func (t *Table) Get(pid PID) (*Process, bool) {
	p, found := t.processes[pid]
	return p, found
}

// MustGet looks up a process that is known to be live. A missing process means
// the queues and the table went out of sync.
func (t *Table) MustGet(pid PID) *Process {
	p, found := t.processes[pid]
	if !found {
		log.Panicf("process %d is queued but not in the process table", pid)
	}

	return p
}

// Remove drops a process from the table. It returns false if the process is
// not in the table.
func (t *Table) Remove(pid PID) bool {
	if _, found := t.processes[pid]; !found {
		return false
	}

	delete(t.processes, pid)

	return true
}

// Len returns the number of live processes.
func (t *Table) Len() int {
	return len(t.processes)
}

// Snapshots returns a copy of every live process, ordered by PID.
func (t *Table) Snapshots() []Snapshot {
	snapshots := make([]Snapshot, 0, len(t.processes))
	for _, p := range t.processes {
		snapshots = append(snapshots, p.Snapshot())
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].ID < snapshots[j].ID
	})

	return snapshots
}
