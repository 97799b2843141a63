// Command quantasim runs the quantum scheduler simulation.
package main

import "github.com/sarchlab/quantasim/quantasim/cmd"

func main() {
	cmd.Execute()
}
