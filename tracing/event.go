// Package tracing provides hooks that observe a running scheduler.
package tracing

import (
	"github.com/sarchlab/quantasim/cpu"
	"github.com/sarchlab/quantasim/process"
	"github.com/sarchlab/quantasim/sim/hooking"
	"github.com/sarchlab/quantasim/sim/timing"
)

// Named is implemented by every component that raises hooks.
type Named interface {
	Name() string
}

// An Event is a flattened hook invocation.
type Event struct {
	Time  timing.VTime
	What  string
	Where string

	// PID is set together with HasPID. Process is only filled when the hook
	// carries a process snapshot.
	PID        process.PID
	HasPID     bool
	Process    *process.Snapshot
	Outcome    *cpu.Outcome
	Blocked    []process.PID
	IdleLength timing.VTime
}

// NewEvent decodes a hook context.
func NewEvent(ctx hooking.HookCtx, now timing.VTime) Event {
	e := Event{
		Time: now,
		What: ctx.Pos.Name,
	}

	if named, ok := ctx.Domain.(Named); ok {
		e.Where = named.Name()
	}

	switch item := ctx.Item.(type) {
	case process.Snapshot:
		e.PID = item.ID
		e.HasPID = true
		e.Process = &item
	case process.PID:
		e.PID = item
		e.HasPID = true
	case []process.PID:
		e.Blocked = item
	case timing.VTime:
		e.IdleLength = item
	}

	if o, ok := ctx.Detail.(cpu.Outcome); ok {
		e.Outcome = &o
	}

	return e
}

// isFinalOutcome tells if pos ends a dispatch.
func isFinalOutcome(pos *hooking.HookPos) bool {
	switch pos {
	case cpu.HookPosCompleted, cpu.HookPosRequeued, cpu.HookPosBlocked:
		return true
	default:
		return false
	}
}
