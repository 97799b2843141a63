package process

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/quantasim"
)

var _ = Describe("Process", func() {
	var p *Process

	BeforeEach(func() {
		p = New(7, 250, Interrupt)
	})

	It("should start ready", func() {
		Expect(p.ID()).To(Equal(PID(7)))
		Expect(p.Remaining()).To(Equal(250))
		Expect(p.Category()).To(Equal(Interrupt))
		Expect(p.State()).To(Equal(Ready))
		Expect(p.Cycles()).To(Equal(0))
		Expect(p.IsTerminal()).To(BeFalse())
	})

	It("should charge quanta past zero", func() {
		p.DecrementRemaining(100)
		Expect(p.Remaining()).To(Equal(150))

		p.DecrementRemaining(100)
		p.DecrementRemaining(100)
		Expect(p.Remaining()).To(Equal(-50))
		Expect(p.IsTerminal()).To(BeTrue())
	})

	It("should panic on a negative quantum", func() {
		Expect(func() { p.DecrementRemaining(-1) }).To(Panic())
		Expect(p.Remaining()).To(Equal(250))
	})

	It("should allow a zero quantum", func() {
		p.DecrementRemaining(0)
		Expect(p.Remaining()).To(Equal(250))
	})

	It("should update state, category and cycles", func() {
		p.SetState(Blocked)
		p.SetCategory(Normal)
		p.IncrementCycles()
		p.IncrementCycles()

		Expect(p.State()).To(Equal(Blocked))
		Expect(p.Category()).To(Equal(Normal))
		Expect(p.Cycles()).To(Equal(2))
	})

	It("should take back a cycle", func() {
		p.IncrementCycles()
		p.DecrementCycles()

		Expect(p.Cycles()).To(Equal(0))
		Expect(func() { p.DecrementCycles() }).To(Panic())
	})

	It("should take snapshots by value", func() {
		s := p.Snapshot()
		p.DecrementRemaining(100)

		Expect(s).To(Equal(Snapshot{
			ID:        7,
			Remaining: 250,
			Category:  "interrupt",
			State:     "ready",
			Cycles:    0,
		}))
	})

	DescribeTable("parsing categories",
		func(name string, expected Category) {
			c, err := ParseCategory(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(Equal(expected))
		},
		Entry("normal", "normal", Normal),
		Entry("upper case io", "IO", IO),
		Entry("padded interrupt", " Interrupt ", Interrupt),
	)

	It("should reject unknown categories", func() {
		_, err := ParseCategory("realtime")
		Expect(errors.Is(err, quantasim.ErrInvalidArgument)).To(BeTrue())
	})
})
