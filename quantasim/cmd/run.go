package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/quantasim/config"
	"github.com/sarchlab/quantasim/cpu"
	"github.com/sarchlab/quantasim/datarecording"
	"github.com/sarchlab/quantasim/monitoring"
	"github.com/sarchlab/quantasim/scheduler"
	"github.com/sarchlab/quantasim/sim/hooking"
	"github.com/sarchlab/quantasim/sim/id"
	"github.com/sarchlab/quantasim/tracing"
	"github.com/sarchlab/quantasim/workload"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler on a generated workload.",
	Long: "`run` loads the settings, admits a generated workload and " +
		"dispatches until every process is done. With a monitor, the run " +
		"keeps waiting for processes admitted over HTTP until interrupted.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		return runSimulation(ctx, c, monitorRequested(cmd, c), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("config", "", "YAML file with the run settings")
	f.StringSlice("env-file", []string{".env"},
		"files with QUANTASIM_* variables to load")
	f.Int64("seed", 0, "seed of the workload generator")
	f.Int("count", 0, "number of processes to generate")
	f.Int("quantum", 0, "time units a process may run per dispatch")
	f.Bool("wall", false, "pace the run with the wall clock")
	f.Bool("exit-when-drained", false,
		"return once no process is left instead of waiting for admissions")
	f.String("record", "", "record the run into <path>.sqlite3")
	f.Bool("monitor", false, "serve the monitoring page")
	f.Int("monitor-port", 0, "port of the monitoring page")
	f.Bool("open-browser", false, "open the monitoring page in a browser")
	f.String("log-level", "", "log level (panic, fatal, error, warn, info, "+
		"debug, trace)")
	f.Bool("log-json", false, "log in JSON")
}

// loadConfig layers the settings: defaults, the YAML file, environment
// variables and finally the flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	f := cmd.Flags()

	envFiles, _ := f.GetStringSlice("env-file")
	if err := config.LoadEnv(envFiles...); err != nil {
		return config.Config{}, err
	}

	c := config.Default()

	if path, _ := f.GetString("config"); path != "" {
		var err error

		c, err = config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
	}

	if err := c.ApplyEnv(); err != nil {
		return config.Config{}, err
	}

	applyFlags(cmd, &c)

	if err := c.Validate(); err != nil {
		return config.Config{}, err
	}

	return c, nil
}

func applyFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()

	if f.Changed("seed") {
		c.Workload.Seed, _ = f.GetInt64("seed")
	}

	if f.Changed("count") {
		c.Workload.Count, _ = f.GetInt("count")
	}

	if f.Changed("quantum") {
		c.Quantum, _ = f.GetInt("quantum")
	}

	if wall, _ := f.GetBool("wall"); wall {
		c.Clock = config.ClockWall
	}

	if f.Changed("exit-when-drained") {
		c.ExitWhenDrained, _ = f.GetBool("exit-when-drained")
	}

	if f.Changed("record") {
		c.Record.Path, _ = f.GetString("record")
	}

	if f.Changed("monitor-port") {
		c.Monitor.Port, _ = f.GetInt("monitor-port")
	}

	if f.Changed("open-browser") {
		c.Monitor.OpenBrowser, _ = f.GetBool("open-browser")
	}

	if f.Changed("log-level") {
		c.Log.Level, _ = f.GetString("log-level")
	}

	if f.Changed("log-json") {
		c.Log.JSON, _ = f.GetBool("log-json")
	}
}

func monitorRequested(cmd *cobra.Command, c config.Config) bool {
	enabled, _ := cmd.Flags().GetBool("monitor")
	return enabled || c.Monitor.Port != 0
}

func newLogger(c config.Log, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)

	if c.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger, nil
}

type runTracers struct {
	counts *tracing.CountTracer
	busy   *tracing.BusyTimeTracer
	db     *tracing.DBTracer
}

func runSimulation(
	ctx context.Context,
	c config.Config,
	withMonitor bool,
	out io.Writer,
) error {
	logger, err := newLogger(c.Log, os.Stderr)
	if err != nil {
		return err
	}

	if !withMonitor {
		c.ExitWhenDrained = true
	}

	s := scheduler.MakeBuilder().WithConfig(c).Build("Scheduler")

	tracers, recorder, err := attachTracers(s, c, logger)
	if err != nil {
		return err
	}

	if withMonitor {
		m, err := startMonitor(s, c)
		if err != nil {
			return err
		}

		defer shutdownMonitor(m, logger)
	}

	generator := workload.NewGenerator(c.Workload)
	for _, p := range generator.Generate(c.Workload.Count) {
		if err := s.Admit(p); err != nil {
			return err
		}
	}

	start := time.Now()
	runErr := s.Run(ctx)

	tracers.busy.Terminate()

	if tracers.db != nil {
		tracers.db.Terminate()

		if err := recorder.Close(); err != nil {
			logger.WithError(err).Error("closing the recording")
		}
	}

	switch {
	case runErr == nil:
	case errors.Is(runErr, scheduler.ErrStalled):
		logger.Warn("processes are left blocked with nothing to run")
	case errors.Is(runErr, context.Canceled):
		logger.Info("run interrupted")
	default:
		return runErr
	}

	printSummary(out, s, tracers, time.Since(start))

	return nil
}

func attachTracers(
	s *scheduler.Scheduler,
	c config.Config,
	logger *logrus.Logger,
) (runTracers, datarecording.DataRecorder, error) {
	t := runTracers{
		counts: tracing.NewCountTracer(),
		busy:   tracing.NewBusyTimeTracer(s.Clock()),
	}

	logTracer := tracing.NewLogTracer(logger, s.Clock())

	s.InstallHook(logTracer)
	s.InstallHook(t.counts)
	s.InstallHook(t.busy)

	if clock, ok := s.Clock().(hooking.Hookable); ok {
		clock.AcceptHook(logTracer)
	}

	if c.Record.Path == "" {
		return t, nil, nil
	}

	recorder, err := datarecording.New(c.Record.Path)
	if err != nil {
		return runTracers{}, nil, err
	}

	runID := id.NewParallelIDGenerator().Generate()
	t.db = tracing.NewDBTracer(runID, s.Clock(), recorder)
	s.InstallHook(t.db)

	logger.WithField("run_id", runID).Info("recording run")

	return t, recorder, nil
}

func startMonitor(
	s *scheduler.Scheduler,
	c config.Config,
) (*monitoring.Monitor, error) {
	m := monitoring.NewMonitor().WithOpenBrowser(c.Monitor.OpenBrowser)
	if c.Monitor.Port != 0 {
		m.WithPortNumber(c.Monitor.Port)
	}

	m.RegisterScheduler(s)

	bar := m.CreateProgressBar("Processes", 0)
	s.InstallHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
		switch ctx.Pos {
		case scheduler.HookPosAdmit:
			bar.IncrementTotal(1)
		case cpu.HookPosCompleted:
			bar.IncrementFinished(1)
		}
	}))

	if _, err := m.StartServer(); err != nil {
		return nil, err
	}

	return m, nil
}

func shutdownMonitor(m *monitoring.Monitor, logger logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("stopping the monitor")
	}
}

func printSummary(
	out io.Writer,
	s *scheduler.Scheduler,
	t runTracers,
	elapsed time.Duration,
) {
	snapshot := s.Snapshot()
	summary := t.counts.Summary()

	fmt.Fprintf(out, "Simulated time: %d\n", snapshot.Now)
	fmt.Fprintf(out, "Wall time: %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "Dispatches: %d\n", snapshot.Dispatches)
	fmt.Fprintf(out, "Busy time: %d\n", t.busy.BusyTime())
	fmt.Fprintf(out, "Idle time: %d\n", t.busy.IdleTime())
	fmt.Fprintf(out, "Completed: %d\n", snapshot.Completed)

	for _, c := range summary.Completions {
		fmt.Fprintf(out, "  PID %d (%s) after %d cycles\n",
			c.PID, c.Category, c.Cycles)
	}

	if len(snapshot.Ready) > 0 || len(snapshot.Blocked) > 0 {
		fmt.Fprintf(out, "Left ready: %v, blocked: %v\n",
			snapshot.Ready, snapshot.Blocked)
	}

	fmt.Fprintln(out, "Hooks:")

	for _, name := range summary.SortedNames() {
		fmt.Fprintf(out, "  %s: %d\n", name, summary.Counts[name])
	}
}
