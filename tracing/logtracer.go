package tracing

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/quantasim/scheduler"
	"github.com/sarchlab/quantasim/sim/hooking"
	"github.com/sarchlab/quantasim/sim/queueing"
	"github.com/sarchlab/quantasim/sim/timing"
)

// LogTracer writes every hook invocation to a logrus logger. Queue traffic
// and idle ticks are logged at debug level.
type LogTracer struct {
	logger     logrus.FieldLogger
	timeTeller timing.TimeTeller
}

// NewLogTracer creates a LogTracer.
func NewLogTracer(
	logger logrus.FieldLogger,
	timeTeller timing.TimeTeller,
) *LogTracer {
	return &LogTracer{
		logger:     logger,
		timeTeller: timeTeller,
	}
}

// Func logs the hook.
func (t *LogTracer) Func(ctx hooking.HookCtx) {
	e := NewEvent(ctx, t.timeTeller.Now())
	entry := t.logger.WithFields(fields(e))

	switch ctx.Pos {
	case queueing.HookPosEnqueue, queueing.HookPosDequeue,
		scheduler.HookPosIdleTick,
		timing.HookPosBeforeWait, timing.HookPosAfterWait:
		entry.Debug(e.What)
	case scheduler.HookPosStalled:
		entry.Warn(e.What)
	default:
		entry.Info(e.What)
	}
}

func fields(e Event) logrus.Fields {
	f := logrus.Fields{
		"sim_time": uint64(e.Time),
	}

	if e.Where != "" {
		f["where"] = e.Where
	}

	if e.HasPID {
		f["pid"] = int(e.PID)
	}

	if e.Process != nil {
		f["category"] = e.Process.Category
		f["state"] = e.Process.State
		f["remaining"] = e.Process.Remaining
		f["cycles"] = e.Process.Cycles
	}

	if e.Outcome != nil {
		f["outcome"] = e.Outcome.Kind.String()
		f["charged"] = e.Outcome.Charged
	}

	if e.Blocked != nil {
		f["blocked"] = e.Blocked
	}

	return f
}
