package tracing

import (
	"sort"
	"sync"

	"github.com/sarchlab/quantasim/cpu"
	"github.com/sarchlab/quantasim/process"
	"github.com/sarchlab/quantasim/sim/hooking"
)

// A Completion records a finished process.
type Completion struct {
	PID      process.PID
	Category string
	Cycles   int
}

// Summary is what a CountTracer collected.
type Summary struct {
	Counts      map[string]uint64
	Completions []Completion
}

// CountTracer counts how many times each hook position is triggered and
// which processes completed.
type CountTracer struct {
	lock        sync.Mutex
	names       []string
	counts      map[string]uint64
	completions []Completion
}

// NewCountTracer creates a new CountTracer.
func NewCountTracer() *CountTracer {
	return &CountTracer{
		counts: make(map[string]uint64),
	}
}

// Func counts the hook.
func (t *CountTracer) Func(ctx hooking.HookCtx) {
	t.lock.Lock()
	defer t.lock.Unlock()

	name := ctx.Pos.Name
	if _, ok := t.counts[name]; !ok {
		t.names = append(t.names, name)
	}
	t.counts[name]++

	if ctx.Pos != cpu.HookPosCompleted {
		return
	}

	if s, ok := ctx.Item.(process.Snapshot); ok {
		t.completions = append(t.completions, Completion{
			PID:      s.ID,
			Category: s.Category,
			Cycles:   s.Cycles,
		})
	}
}

// Names returns the hook position names seen so far, in the order they first
// appeared.
func (t *CountTracer) Names() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]string(nil), t.names...)
}

// Count returns how many times the hook position with the given name
// triggered.
func (t *CountTracer) Count(name string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.counts[name]
}

// Summary copies the counts and the completions, ordered by completion.
func (t *CountTracer) Summary() Summary {
	t.lock.Lock()
	defer t.lock.Unlock()

	s := Summary{
		Counts:      make(map[string]uint64, len(t.counts)),
		Completions: append([]Completion(nil), t.completions...),
	}

	for name, count := range t.counts {
		s.Counts[name] = count
	}

	return s
}

// SortedNames returns the names in the summary alphabetically.
func (s Summary) SortedNames() []string {
	names := make([]string, 0, len(s.Counts))
	for name := range s.Counts {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
