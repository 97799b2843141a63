package scheduler

import (
	"context"
	"math/rand"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/quantasim"
	"github.com/sarchlab/quantasim/config"
	"github.com/sarchlab/quantasim/cpu"
	"github.com/sarchlab/quantasim/process"
	"github.com/sarchlab/quantasim/sim/hooking"
	"github.com/sarchlab/quantasim/sim/timing"
)

type dispatchRecorder struct {
	lock sync.Mutex
	pids []process.PID
}

func (r *dispatchRecorder) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosDispatch {
		return
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	r.pids = append(r.pids, ctx.Item.(process.Snapshot).ID)
}

func (r *dispatchRecorder) dispatched() []process.PID {
	r.lock.Lock()
	defer r.lock.Unlock()

	return append([]process.PID(nil), r.pids...)
}

var _ = Describe("Scheduler", func() {
	var (
		ctx      context.Context
		clock    *timing.VirtualClock
		s        *Scheduler
		recorder *dispatchRecorder
	)

	BeforeEach(func() {
		ctx = context.Background()
		clock = timing.NewVirtualClock()
		recorder = &dispatchRecorder{}
		s = MakeBuilder().
			WithClock(clock).
			WithExitWhenDrained(true).
			Build("Scheduler")
		s.InstallHook(recorder)
	})

	It("should panic if the quantum is not positive", func() {
		Expect(func() {
			MakeBuilder().WithQuantum(0).Build("Scheduler")
		}).To(PanicWith(MatchError(quantasim.ErrInvalidArgument)))
	})

	Context("when admitting", func() {
		It("should reject a nil process", func() {
			Expect(s.Admit(nil)).To(MatchError(quantasim.ErrInvalidArgument))
		})

		It("should reject a process without remaining time", func() {
			err := s.Admit(process.New(1, 0, process.Normal))

			Expect(err).To(MatchError(quantasim.ErrInvalidArgument))
		})

		It("should reject a duplicated PID", func() {
			Expect(s.Admit(process.New(1, 100, process.Normal))).To(Succeed())

			err := s.Admit(process.New(1, 200, process.IO))

			Expect(err).To(MatchError(quantasim.ErrInvalidArgument))
			Expect(s.Snapshot().Pending).To(Equal(1))
		})

		It("should keep the admission order", func() {
			for _, pid := range []process.PID{3, 1, 2} {
				Expect(s.Admit(process.New(pid, 100, process.Normal))).
					To(Succeed())
			}

			Expect(s.Run(ctx)).To(Succeed())
			Expect(recorder.dispatched()).To(Equal([]process.PID{3, 1, 2}))
		})
	})

	It("should complete a Normal process in ceil(remaining/quantum) slices", func() {
		Expect(s.Admit(process.New(1, 250, process.Normal))).To(Succeed())

		Expect(s.Run(ctx)).To(Succeed())

		snapshot := s.Snapshot()
		Expect(snapshot.Dispatches).To(Equal(3))
		Expect(snapshot.Completed).To(Equal(1))
		Expect(snapshot.Processes).To(BeEmpty())
		Expect(snapshot.Now).To(Equal(timing.VTime(300)))
	})

	It("should round robin Normal processes", func() {
		Expect(s.Admit(process.New(1, 200, process.Normal))).To(Succeed())
		Expect(s.Admit(process.New(2, 100, process.Normal))).To(Succeed())
		Expect(s.Admit(process.New(3, 200, process.Normal))).To(Succeed())

		Expect(s.Run(ctx)).To(Succeed())

		Expect(recorder.dispatched()).
			To(Equal([]process.PID{1, 2, 3, 1, 3}))
	})

	Context("when promoting", func() {
		var (
			promoted  []process.Snapshot
			readyTail []process.PID
		)

		BeforeEach(func() {
			promoted = nil
			readyTail = nil

			s.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
				if ctx.Pos != HookPosPromote {
					return
				}

				// Promote hooks run inside the dispatch, which holds the
				// state lock, so the queue can be read directly.
				ready := s.ready.Elements()
				promoted = append(promoted, ctx.Item.(process.Snapshot))
				readyTail = append(readyTail, ready[len(ready)-1])
			}))
		})

		promotedPIDs := func() []process.PID {
			pids := make([]process.PID, 0, len(promoted))
			for _, p := range promoted {
				pids = append(pids, p.ID)
			}

			return pids
		}

		It("should move the blocked head to the ready tail after a Normal slice",
			func() {
				Expect(s.Admit(process.New(1, 100, process.IO))).To(Succeed())
				Expect(s.Admit(process.New(2, 300, process.Normal))).
					To(Succeed())

				Expect(s.Run(ctx)).To(Succeed())

				Expect(recorder.dispatched()).
					To(Equal([]process.PID{1, 2, 2, 1, 2}))
				Expect(promotedPIDs()).To(Equal([]process.PID{1}))
				Expect(promoted[0].State).To(Equal(process.Ready.String()))
				Expect(readyTail).To(Equal([]process.PID{1}))
				Expect(s.Snapshot().Completed).To(Equal(2))
			})

		It("should promote after an interrupt that ends in a Normal slice",
			func() {
				Expect(s.Admit(process.New(1, 100, process.IO))).To(Succeed())
				Expect(s.Admit(process.New(2, 300, process.Interrupt))).
					To(Succeed())

				Expect(s.Run(ctx)).To(Succeed())

				Expect(recorder.dispatched()).
					To(Equal([]process.PID{1, 2, 2, 1}))
				Expect(promotedPIDs()).To(Equal([]process.PID{1}))
				Expect(promoted[0].State).To(Equal(process.Ready.String()))
				Expect(readyTail).To(Equal([]process.PID{1}))
				Expect(s.Snapshot().Completed).To(Equal(2))
			})

		It("should not promote after an IO process completes", func() {
			Expect(s.Admit(process.New(1, 100, process.IO))).To(Succeed())
			Expect(s.Admit(process.New(2, 100, process.Normal))).To(Succeed())
			Expect(s.Admit(process.New(3, 100, process.IO))).To(Succeed())

			err := s.Run(ctx)

			Expect(err).To(MatchError(ErrStalled))
			Expect(recorder.dispatched()).
				To(Equal([]process.PID{1, 2, 3, 1}))
			Expect(promotedPIDs()).To(Equal([]process.PID{1}))

			snapshot := s.Snapshot()
			Expect(snapshot.Completed).To(Equal(2))
			Expect(snapshot.Blocked).To(Equal([]process.PID{3}))
		})
	})

	It("should service an interrupt and finish the process as Normal", func() {
		Expect(s.Admit(process.New(1, 300, process.Interrupt))).To(Succeed())

		Expect(s.Run(ctx)).To(Succeed())

		snapshot := s.Snapshot()
		Expect(snapshot.Dispatches).To(Equal(2))
		Expect(snapshot.Completed).To(Equal(1))
		Expect(snapshot.Now).To(Equal(timing.VTime(100 + 300 + 100)))
	})

	It("should report a stall when only blocked processes are left", func() {
		Expect(s.Admit(process.New(1, 300, process.IO))).To(Succeed())
		Expect(s.Admit(process.New(2, 300, process.Normal))).To(Succeed())

		err := s.Run(ctx)

		Expect(err).To(MatchError(ErrStalled))
		Expect(recorder.dispatched()).
			To(Equal([]process.PID{1, 2, 2, 1, 2, 1}))

		snapshot := s.Snapshot()
		Expect(snapshot.Ready).To(BeEmpty())
		Expect(snapshot.Blocked).To(Equal([]process.PID{1}))
		Expect(snapshot.Processes).To(HaveLen(1))
		Expect(snapshot.Processes[0].Remaining).To(Equal(0))
	})

	It("should keep queue membership and the terminal state consistent", func() {
		rng := rand.New(rand.NewSource(7))
		categories := []process.Category{
			process.Normal, process.Normal, process.IO, process.Interrupt,
		}
		for i := 0; i < 30; i++ {
			Expect(s.Admit(process.New(
				process.PID(i),
				100*(1+rng.Intn(5)),
				categories[rng.Intn(len(categories))],
			))).To(Succeed())
		}

		var lock sync.Mutex
		completed := make(map[process.PID]bool)
		s.CPU().AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos != cpu.HookPosCompleted {
				return
			}

			lock.Lock()
			completed[ctx.Item.(process.Snapshot).ID] = true
			lock.Unlock()
		}))

		checks := 0
		clock.AcceptHook(hooking.HookFunc(func(hooking.HookCtx) {
			snapshot := s.Snapshot()
			checks++

			seen := make(map[process.PID]int)
			for _, pid := range snapshot.Ready {
				seen[pid]++
			}
			for _, pid := range snapshot.Blocked {
				seen[pid]++
			}

			lock.Lock()
			defer lock.Unlock()

			for pid, count := range seen {
				Expect(count).To(Equal(1), "process %d is queued twice", pid)
				Expect(completed[pid]).To(BeFalse(),
					"completed process %d is queued", pid)
			}

			for _, p := range snapshot.Processes {
				Expect(completed[p.ID]).To(BeFalse())
			}
		}))

		err := s.Run(ctx)

		Expect(err).To(Or(Succeed(), MatchError(ErrStalled)))
		Expect(checks).To(BeNumerically(">", 30))
		Expect(len(completed) + len(s.Snapshot().Processes)).To(Equal(30))
	})

	It("should run with settings from a config", func() {
		c := config.Default()
		c.Quantum = 50
		c.ExitWhenDrained = true
		s = MakeBuilder().WithConfig(c).Build("Scheduler")

		Expect(s.CPU().Quantum()).To(Equal(50))
		Expect(s.Admit(process.New(1, 100, process.Normal))).To(Succeed())
		Expect(s.Run(ctx)).To(Succeed())
		Expect(s.Dispatches()).To(Equal(2))
	})

	Context("when nothing is left to run", func() {
		var (
			cancel context.CancelFunc
			done   chan error
		)

		start := func() {
			var runCtx context.Context
			runCtx, cancel = context.WithCancel(ctx)
			done = make(chan error, 1)

			go func() {
				done <- s.Run(runCtx)
			}()
		}

		AfterEach(func() {
			cancel()
			Eventually(done).Should(Receive(MatchError(context.Canceled)))
		})

		It("should sleep until a process is admitted", func() {
			s = MakeBuilder().WithClock(clock).Build("Scheduler")
			start()

			Eventually(func() bool { return s.Snapshot().Idle }).
				Should(BeTrue())
			Consistently(clock.Now).Should(Equal(timing.VTime(0)))

			Expect(s.Admit(process.New(1, 100, process.Normal))).To(Succeed())

			Eventually(s.Completed).Should(Equal(1))
			Eventually(func() bool { return s.Snapshot().Idle }).
				Should(BeTrue())
		})

		It("should poll the clock under the poll policy", func() {
			s = MakeBuilder().
				WithClock(clock).
				WithIdlePolicy(IdlePoll).
				WithIdlePollInterval(500).
				Build("Scheduler")
			start()

			Eventually(clock.Now).Should(BeNumerically(">=", 1000))

			Expect(s.Admit(process.New(1, 100, process.Normal))).To(Succeed())

			Eventually(s.Completed).Should(Equal(1))
		})

		It("should not dispatch while paused", func() {
			s = MakeBuilder().WithClock(clock).Build("Scheduler")
			s.Pause()
			Expect(s.Admit(process.New(1, 100, process.Normal))).To(Succeed())
			start()

			Consistently(s.Dispatches).Should(Equal(0))
			Expect(s.Snapshot().Paused).To(BeTrue())

			s.Continue()

			Eventually(s.Completed).Should(Equal(1))
		})
	})

	Context("when the dispatch is cancelled", func() {
		var (
			mockCtrl  *gomock.Controller
			mockClock *MockClock
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			mockClock = NewMockClock(mockCtrl)
			mockClock.EXPECT().Now().Return(timing.VTime(0)).AnyTimes()

			s = MakeBuilder().WithClock(mockClock).Build("Scheduler")
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should leave the process ready at the head", func() {
			Expect(s.Admit(process.New(1, 200, process.Normal))).To(Succeed())
			Expect(s.Admit(process.New(2, 200, process.Normal))).To(Succeed())
			mockClock.EXPECT().
				Wait(gomock.Any(), timing.VTime(100)).
				Return(context.Canceled)

			err := s.Run(ctx)

			Expect(err).To(MatchError(context.Canceled))
			Expect(s.Dispatches()).To(Equal(0))

			snapshot := s.Snapshot()
			Expect(snapshot.Ready).To(Equal([]process.PID{1, 2}))
			Expect(snapshot.Processes[0].State).
				To(Equal(process.Ready.String()))
			Expect(snapshot.Processes[0].Remaining).To(Equal(200))
			Expect(snapshot.Processes[0].Cycles).To(Equal(0))
		})
	})
})
