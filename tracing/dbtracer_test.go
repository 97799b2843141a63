package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/quantasim/cpu"
	"github.com/sarchlab/quantasim/process"
	"github.com/sarchlab/quantasim/scheduler"
	"github.com/sarchlab/quantasim/sim/hooking"
	"github.com/sarchlab/quantasim/sim/timing"
)

var _ = Describe("DBTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		backend    *MockDataRecorder
		t          *DBTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		backend = NewMockDataRecorder(mockCtrl)

		backend.EXPECT().ListTables().Return(nil)
		backend.EXPECT().CreateTable(EventTable, EventRecord{})
		backend.EXPECT().CreateTable(RunTable, RunRecord{})
		timeTeller.EXPECT().Now().Return(timing.VTime(0))

		t = NewDBTracer("run", timeTeller, backend)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should reuse existing tables", func() {
		backend.EXPECT().ListTables().Return([]string{EventTable, RunTable})
		timeTeller.EXPECT().Now().Return(timing.VTime(0))

		other := NewDBTracer("other", timeTeller, backend)

		Expect(other.RunID()).To(Equal("other"))
	})

	It("should write a row per hook", func() {
		p := process.New(120, 100, process.Normal)
		p.DecrementRemaining(100)

		timeTeller.EXPECT().Now().Return(timing.VTime(100))
		backend.EXPECT().InsertData(EventTable, EventRecord{
			RunID:     "run",
			Seq:       1,
			Time:      100,
			Event:     "Process Completed",
			PID:       120,
			Category:  "normal",
			State:     "ready",
			Remaining: 0,
			Outcome:   "completed",
			Charged:   100,
		})

		t.Func(hooking.HookCtx{
			Pos:    cpu.HookPosCompleted,
			Item:   p.Snapshot(),
			Detail: cpu.Outcome{Kind: cpu.Completed, Charged: 100},
		})
	})

	It("should mark rows without a process", func() {
		timeTeller.EXPECT().Now().Return(timing.VTime(5))
		backend.EXPECT().InsertData(EventTable, EventRecord{
			RunID: "run",
			Seq:   1,
			Time:  5,
			Event: "Idle Enter",
			PID:   -1,
		})

		t.Func(hooking.HookCtx{Pos: scheduler.HookPosIdleEnter})
	})

	It("should write the run record once on terminate", func() {
		timeTeller.EXPECT().Now().Return(timing.VTime(100))
		backend.EXPECT().InsertData(EventTable, gomock.Any())
		t.Func(hooking.HookCtx{
			Pos:  cpu.HookPosCompleted,
			Item: process.New(1, 100, process.Normal).Snapshot(),
		})

		timeTeller.EXPECT().Now().Return(timing.VTime(300))
		backend.EXPECT().InsertData(RunTable, RunRecord{
			RunID:     "run",
			StartTime: 0,
			EndTime:   300,
			Events:    1,
			Completed: 1,
		})
		backend.EXPECT().Flush()

		t.Terminate()
		t.Terminate()

		timeTeller.EXPECT().Now().Return(timing.VTime(400))
		t.Func(hooking.HookCtx{Pos: scheduler.HookPosIdleEnter})
	})
})
