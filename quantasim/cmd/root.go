// Package cmd provides the command-line interface for quantasim.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quantasim",
	Short: "quantasim simulates a single CPU that runs processes in quanta.",
	Long: `quantasim simulates a single CPU that runs processes in quanta. ` +
		`Processes wait in a ready queue, IO and interrupt work parks them in ` +
		`a blocked queue, and a run can be recorded to SQLite and watched ` +
		`from a web page.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
