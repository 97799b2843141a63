package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/quantasim/datarecording"
	"github.com/sarchlab/quantasim/tracing"
)

var reportCmd = &cobra.Command{
	Use:   "report <recording.sqlite3>",
	Short: "Print the runs and events stored in a recording.",
	Long: "`report` lists the runs of a recording made with `run --record`. " +
		"With --run, it prints the events of that run, optionally only " +
		"those of one process.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, err := datarecording.NewReader(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		reader.MapTable(tracing.RunTable, tracing.RunRecord{})
		reader.MapTable(tracing.EventTable, tracing.EventRecord{})

		runID, _ := cmd.Flags().GetString("run")
		if runID == "" {
			return reportRuns(cmd, reader)
		}

		return reportEvents(cmd, reader, runID)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	f := reportCmd.Flags()
	f.String("run", "", "ID of the run whose events to print")
	f.Int("pid", -1, "only print the events of this process")
	f.Int("limit", 0, "print at most this many events")
	f.Int("offset", 0, "skip this many events")
}

func reportRuns(cmd *cobra.Command, reader datarecording.DataReader) error {
	runs, _, err := reader.Query(cmd.Context(), tracing.RunTable,
		datarecording.QueryParams{OrderBy: "StartTime"})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-20s %10s %10s %8s %9s\n",
		"RUN", "START", "END", "EVENTS", "COMPLETED")

	for _, r := range runs {
		run := r.(*tracing.RunRecord)
		fmt.Fprintf(out, "%-20s %10d %10d %8d %9d\n",
			run.RunID, run.StartTime, run.EndTime, run.Events, run.Completed)
	}

	return nil
}

func reportEvents(
	cmd *cobra.Command,
	reader datarecording.DataReader,
	runID string,
) error {
	f := cmd.Flags()
	pid, _ := f.GetInt("pid")
	limit, _ := f.GetInt("limit")
	offset, _ := f.GetInt("offset")

	params := datarecording.QueryParams{
		Where:   "RunID = ?",
		Args:    []any{runID},
		OrderBy: "Seq",
		Limit:   limit,
		Offset:  offset,
	}

	if pid >= 0 {
		params.Where += " AND PID = ?"
		params.Args = append(params.Args, pid)
	}

	events, total, err := reader.Query(cmd.Context(), tracing.EventTable,
		params)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, e := range events {
		printEvent(out, e.(*tracing.EventRecord))
	}

	fmt.Fprintf(out, "%d of %d events\n", len(events), total)

	return nil
}

func printEvent(out io.Writer, e *tracing.EventRecord) {
	line := strings.Builder{}
	fmt.Fprintf(&line, "%8d %-18s %-22s", e.Time, e.Event, e.Location)

	if e.PID >= 0 {
		fmt.Fprintf(&line, " pid=%d", e.PID)
	}

	if e.Category != "" {
		fmt.Fprintf(&line, " %s %s remaining=%d cycles=%d",
			e.Category, e.State, e.Remaining, e.Cycles)
	}

	if e.Outcome != "" {
		fmt.Fprintf(&line, " outcome=%s charged=%d", e.Outcome, e.Charged)
	}

	fmt.Fprintln(out, line.String())
}
