package tracing

import (
	"sync"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/quantasim/cpu"
	"github.com/sarchlab/quantasim/datarecording"
	"github.com/sarchlab/quantasim/sim/hooking"
	"github.com/sarchlab/quantasim/sim/timing"
)

// The tables that a DBTracer writes.
const (
	EventTable = "quantasim_events"
	RunTable   = "quantasim_runs"
)

// EventRecord is one row of the event table.
type EventRecord struct {
	RunID     string
	Seq       uint64
	Time      uint64
	Event     string
	Location  string
	PID       int
	Category  string
	State     string
	Remaining int
	Cycles    int
	Outcome   string
	Charged   int
}

// RunRecord is one row of the run table. It is written when the tracer
// terminates.
type RunRecord struct {
	RunID     string
	StartTime uint64
	EndTime   uint64
	Events    uint64
	Completed uint64
}

// DBTracer stores every hook invocation as an EventRecord.
type DBTracer struct {
	lock       sync.Mutex
	runID      string
	timeTeller timing.TimeTeller
	backend    datarecording.DataRecorder

	startTime  timing.VTime
	seq        uint64
	completed  uint64
	terminated bool
}

// NewDBTracer creates the tables of a run and returns a tracer that fills
// them. The run record is written at exit if Terminate is never called.
func NewDBTracer(
	runID string,
	timeTeller timing.TimeTeller,
	backend datarecording.DataRecorder,
) *DBTracer {
	tables := backend.ListTables()
	if !contains(tables, EventTable) {
		backend.CreateTable(EventTable, EventRecord{})
	}

	if !contains(tables, RunTable) {
		backend.CreateTable(RunTable, RunRecord{})
	}

	t := &DBTracer{
		runID:      runID,
		timeTeller: timeTeller,
		backend:    backend,
		startTime:  timeTeller.Now(),
	}

	atexit.Register(t.Terminate)

	return t
}

// RunID returns the ID that tags every row of this tracer.
func (t *DBTracer) RunID() string {
	return t.runID
}

// Func records the hook.
func (t *DBTracer) Func(ctx hooking.HookCtx) {
	e := NewEvent(ctx, t.timeTeller.Now())

	t.lock.Lock()
	defer t.lock.Unlock()

	if t.terminated {
		return
	}

	t.seq++

	r := EventRecord{
		RunID:    t.runID,
		Seq:      t.seq,
		Time:     uint64(e.Time),
		Event:    e.What,
		Location: e.Where,
		PID:      -1,
	}

	if e.HasPID {
		r.PID = int(e.PID)
	}

	if e.Process != nil {
		r.Category = e.Process.Category
		r.State = e.Process.State
		r.Remaining = e.Process.Remaining
		r.Cycles = e.Process.Cycles
	}

	if e.Outcome != nil {
		r.Outcome = e.Outcome.Kind.String()
		r.Charged = e.Outcome.Charged
	}

	if ctx.Pos == cpu.HookPosCompleted {
		t.completed++
	}

	t.backend.InsertData(EventTable, r)
}

// Terminate writes the run record and flushes. Later hooks are ignored.
func (t *DBTracer) Terminate() {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.terminated {
		return
	}

	t.terminated = true

	t.backend.InsertData(RunTable, RunRecord{
		RunID:     t.runID,
		StartTime: uint64(t.startTime),
		EndTime:   uint64(t.timeTeller.Now()),
		Events:    t.seq,
		Completed: t.completed,
	})
	t.backend.Flush()
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}

	return false
}
