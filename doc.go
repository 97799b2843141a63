// Package quantasim simulates a single-CPU, quantum-based process scheduler.
//
// Processes come in three categories. Normal processes compute until their
// remaining time runs out, IO processes give up the CPU after every slice and
// wait in the blocked queue, and Interrupt processes block for a fixed
// interrupt-service time before continuing as Normal processes. The
// subpackages are layered leaf-first:
//
//	process      the process entity and the table that owns every process
//	sim/queueing FIFO queues of process IDs
//	cpu          the execution unit that runs one quantum
//	scheduler    the dispatch loop, fairness promotion and idle wait
//
// Time never comes from the host directly. Every delay goes through a
// sim/timing Clock, so tests run on a virtual clock while the CLI can pace a
// run against the wall clock.
package quantasim
