package tracing

import (
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/quantasim/cpu"
	"github.com/sarchlab/quantasim/process"
	"github.com/sarchlab/quantasim/scheduler"
	"github.com/sarchlab/quantasim/sim/hooking"
	"github.com/sarchlab/quantasim/sim/queueing"
	"github.com/sarchlab/quantasim/sim/timing"
)

var _ = Describe("LogTracer", func() {
	var (
		logHook *test.Hook
		clock   *timing.VirtualClock
		t       *LogTracer
	)

	BeforeEach(func() {
		var logger *logrus.Logger
		logger, logHook = test.NewNullLogger()
		logger.SetLevel(logrus.DebugLevel)

		clock = timing.NewVirtualClock()
		t = NewLogTracer(logger, clock)
	})

	It("should log a dispatch outcome with process fields", func() {
		p := process.New(121, 50, process.Normal)
		queue := queueing.NewQueue("Ready")

		t.Func(hooking.HookCtx{
			Domain: queue,
			Pos:    cpu.HookPosCompleted,
			Item:   p.Snapshot(),
			Detail: cpu.Outcome{Kind: cpu.Completed, Charged: 100},
		})

		entry := logHook.LastEntry()
		Expect(entry.Level).To(Equal(logrus.InfoLevel))
		Expect(entry.Message).To(Equal("Process Completed"))
		Expect(entry.Data).To(HaveKeyWithValue("pid", 121))
		Expect(entry.Data).To(HaveKeyWithValue("where", "Ready"))
		Expect(entry.Data).To(HaveKeyWithValue("category", "normal"))
		Expect(entry.Data).To(HaveKeyWithValue("remaining", 50))
		Expect(entry.Data).To(HaveKeyWithValue("outcome", "completed"))
		Expect(entry.Data).To(HaveKeyWithValue("charged", 100))
	})

	It("should log queue traffic at debug level", func() {
		t.Func(hooking.HookCtx{
			Pos:  queueing.HookPosEnqueue,
			Item: process.PID(3),
		})

		entry := logHook.LastEntry()
		Expect(entry.Level).To(Equal(logrus.DebugLevel))
		Expect(entry.Data).To(HaveKeyWithValue("pid", 3))
		Expect(entry.Data).NotTo(HaveKey("category"))
	})

	It("should warn when stalled", func() {
		t.Func(hooking.HookCtx{
			Pos:  scheduler.HookPosStalled,
			Item: []process.PID{4, 5},
		})

		entry := logHook.LastEntry()
		Expect(entry.Level).To(Equal(logrus.WarnLevel))
		Expect(entry.Data).To(HaveKeyWithValue("blocked", []process.PID{4, 5}))
	})
})
