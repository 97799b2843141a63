// Package process defines the unit of work that the scheduler moves between
// the ready and the blocked queue.
package process

import (
	"fmt"
	"log"
	"strings"

	"github.com/sarchlab/quantasim"
)

// PID identifies a process. PIDs are assigned by whoever creates the process
// and never change.
type PID int

// Category is the schedulable kind of a process.
type Category int

// The categories a process can belong to.
const (
	Normal Category = iota
	IO
	Interrupt
)

var categoryNames = map[Category]string{
	Normal:    "normal",
	IO:        "io",
	Interrupt: "interrupt",
}

func (c Category) String() string {
	name, ok := categoryNames[c]
	if !ok {
		return fmt.Sprintf("category(%d)", int(c))
	}

	return name
}

// ParseCategory converts a category name, such as "io", to a Category.
func ParseCategory(name string) (Category, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for c, n := range categoryNames {
		if n == lower {
			return c, nil
		}
	}

	return Normal, fmt.Errorf("%w: unknown category %q",
		quantasim.ErrInvalidArgument, name)
}

// State is the lifecycle state of a process.
type State int

// The states that a process can be in.
const (
	Ready State = iota
	Running
	Blocked
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// A Process is one unit of work.
//
// The fields are mutated only by the execution unit and by the scheduler's
// promotion step. Observers should use Snapshot rather than holding on to the
// process.
type Process struct {
	id        PID
	remaining int
	category  Category
	state     State
	cycles    int
}

// New creates a Ready process.
func New(id PID, remaining int, category Category) *Process {
	return &Process{
		id:        id,
		remaining: remaining,
		category:  category,
		state:     Ready,
	}
}

// ID returns the process ID.
func (p *Process) ID() PID {
	return p.id
}

// Remaining returns the number of time units left before the process
// completes.
func (p *Process) Remaining() int {
	return p.remaining
}

// Category returns the current category of the process.
func (p *Process) Category() Category {
	return p.category
}

// State returns the current state of the process.
func (p *Process) State() State {
	return p.state
}

// Cycles returns how many quanta the process has waited for or received.
func (p *Process) Cycles() int {
	return p.cycles
}

// IsTerminal returns true if the process has no time left. A terminal process
// must never be scheduled again.
func (p *Process) IsTerminal() bool {
	return p.remaining <= 0
}

// SetState changes the state of the process.
func (p *Process) SetState(s State) {
	p.state = s
}

// SetCategory reclassifies the process.
func (p *Process) SetCategory(c Category) {
	p.category = c
}

// DecrementRemaining charges the process for one quantum. The remaining time
// is allowed to go below zero.
func (p *Process) DecrementRemaining(quantum int) {
	if quantum < 0 {
		log.Panicf("process %d: cannot charge a negative quantum %d",
			p.id, quantum)
	}

	p.remaining -= quantum
}

// IncrementCycles adds one to the cycle counter.
func (p *Process) IncrementCycles() {
	p.cycles++
}

// DecrementCycles takes back a cycle counted for a dispatch that never ran.
func (p *Process) DecrementCycles() {
	if p.cycles == 0 {
		log.Panicf("process %d: cycle counter is already zero", p.id)
	}

	p.cycles--
}

func (p *Process) String() string {
	return fmt.Sprintf("process %d (%s, %s, remaining %d, cycles %d)",
		p.id, p.category, p.state, p.remaining, p.cycles)
}

// Snapshot is a copy of the observable fields of a process at one moment.
type Snapshot struct {
	ID        PID    `json:"id"`
	Remaining int    `json:"remaining"`
	Category  string `json:"category"`
	State     string `json:"state"`
	Cycles    int    `json:"cycles"`
}

// Snapshot copies the current fields of the process.
func (p *Process) Snapshot() Snapshot {
	return Snapshot{
		ID:        p.id,
		Remaining: p.remaining,
		Category:  p.category.String(),
		State:     p.state.String(),
		Cycles:    p.cycles,
	}
}
