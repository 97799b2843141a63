// Package workload creates sample processes to feed a scheduler.
package workload

import (
	"math/rand"

	"github.com/sarchlab/quantasim/config"
	"github.com/sarchlab/quantasim/process"
)

var categories = []process.Category{
	process.Normal,
	process.IO,
	process.Interrupt,
}

// A Generator draws random processes. The same seed always yields the same
// processes.
//
// At most MaxSpecial of the generated processes are IO or Interrupt
// processes. Later draws of a special category become Normal, which keeps a
// sample run from stalling on blocked work for long.
type Generator struct {
	rng        *rand.Rand
	nextPID    process.PID
	maxSpecial int
	special    int
	execTimes  []int
}

// NewGenerator creates a Generator from the workload settings.
func NewGenerator(c config.Workload) *Generator {
	execTimes := c.ExecTimes
	if len(execTimes) == 0 {
		execTimes = config.Default().Workload.ExecTimes
	}

	return &Generator{
		rng:        rand.New(rand.NewSource(c.Seed)),
		nextPID:    process.PID(c.BasePID),
		maxSpecial: c.MaxSpecial,
		execTimes:  append([]int(nil), execTimes...),
	}
}

// Generate returns n new processes with consecutive PIDs.
func (g *Generator) Generate(n int) []*process.Process {
	processes := make([]*process.Process, 0, n)

	for i := 0; i < n; i++ {
		processes = append(processes, g.next())
	}

	return processes
}

func (g *Generator) next() *process.Process {
	execTime := g.execTimes[g.rng.Intn(len(g.execTimes))]
	category := categories[g.rng.Intn(len(categories))]

	if category != process.Normal {
		if g.special >= g.maxSpecial {
			category = process.Normal
		} else {
			g.special++
		}
	}

	p := process.New(g.nextPID, execTime, category)
	g.nextPID++

	return p
}
