package cpu

import (
	"fmt"

	"github.com/sarchlab/quantasim/process"
	"github.com/sarchlab/quantasim/sim/timing"
)

// OutcomeKind tells what happened to a process during a dispatch.
type OutcomeKind int

// The outcomes of a dispatch.
const (
	// Completed means the process ran out of time and left both queues.
	Completed OutcomeKind = iota

	// Requeued means the process went back to the tail of the ready queue.
	Requeued

	// Blocked means the process went to the tail of the blocked queue.
	Blocked

	// InterruptHandled means the simulated interrupt of the process was
	// serviced and the process now runs as a Normal process.
	InterruptHandled
)

func (k OutcomeKind) String() string {
	switch k {
	case Completed:
		return "completed"
	case Requeued:
		return "requeued"
	case Blocked:
		return "blocked"
	case InterruptHandled:
		return "interrupt-handled"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome describes one dispatch.
type Outcome struct {
	PID process.PID

	// Kind is the final disposition: Completed, Requeued or Blocked.
	Kind OutcomeKind

	// Steps lists every outcome in the order it happened. An Interrupt
	// process yields InterruptHandled followed by the Normal-path outcome.
	Steps []OutcomeKind

	// Path is the category branch that produced Kind.
	Path process.Category

	// InterruptHandled is set when the dispatch serviced an interrupt.
	InterruptHandled bool

	// Charged is the total number of time units taken from the process.
	Charged int

	// Start and End bound the dispatch on the clock.
	Start timing.VTime
	End   timing.VTime

	// IdleEligible is set when both queues are empty after the dispatch.
	IdleEligible bool
}

// FromNormalSlice returns true if the final disposition came from the Normal
// branch, including a process that was reclassified from Interrupt in the
// same dispatch.
func (o Outcome) FromNormalSlice() bool {
	return o.Path == process.Normal
}

func (o *Outcome) record(kind OutcomeKind) {
	o.Steps = append(o.Steps, kind)

	if kind != InterruptHandled {
		o.Kind = kind
	}
}
