package timing

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/quantasim/sim/hooking"
)

var _ = Describe("VirtualClock", func() {
	var clock *VirtualClock

	BeforeEach(func() {
		clock = NewVirtualClock()
	})

	It("should advance instantly", func() {
		Expect(clock.Wait(context.Background(), 100)).To(Succeed())
		Expect(clock.Wait(context.Background(), 300)).To(Succeed())

		Expect(clock.Now()).To(Equal(VTime(400)))
	})

	It("should not advance on a cancelled context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := clock.Wait(ctx, 100)

		Expect(err).To(MatchError(context.Canceled))
		Expect(clock.Now()).To(Equal(VTime(0)))
	})

	It("should invoke hooks around a wait", func() {
		var seen []string
		clock.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			Expect(ctx.Item).To(Equal(VTime(50)))
			seen = append(seen, ctx.Pos.Name)
		}))

		Expect(clock.Wait(context.Background(), 50)).To(Succeed())

		Expect(seen).To(Equal([]string{"BeforeWait", "AfterWait"}))
	})
})

var _ = Describe("WallClock", func() {
	It("should fall back to the default unit", func() {
		Expect(NewWallClock(0).Unit()).To(Equal(DefaultTimeUnit))
	})

	It("should sleep for the scaled duration", func() {
		clock := NewWallClock(time.Millisecond)

		start := time.Now()
		Expect(clock.Wait(context.Background(), 5)).To(Succeed())

		Expect(time.Since(start)).To(BeNumerically(">=", 5*time.Millisecond))
		Expect(clock.Now()).To(Equal(VTime(5)))
	})

	It("should stop waiting when the context is done", func() {
		clock := NewWallClock(time.Hour)
		ctx, cancel := context.WithTimeout(
			context.Background(), 10*time.Millisecond)
		defer cancel()

		err := clock.Wait(ctx, 1)

		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(clock.Now()).To(Equal(VTime(0)))
	})
})
