// Package config loads the settings of a simulation run.
//
// Settings are layered. Default provides the values that reproduce the
// classic pacing, a YAML file may override any of them, and QUANTASIM_*
// environment variables, optionally read from .env files, override the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/quantasim"
	"github.com/sarchlab/quantasim/sim/timing"
)

// The idle policies.
const (
	IdlePolicyBlock = "block"
	IdlePolicyPoll  = "poll"
)

// The clock kinds.
const (
	ClockVirtual = "virtual"
	ClockWall    = "wall"
)

// EnvPrefix is the prefix of every environment variable that overrides a
// setting.
const EnvPrefix = "QUANTASIM_"

// Config holds every setting of a run.
type Config struct {
	Quantum             int          `yaml:"quantum"`
	DispatchDelay       timing.VTime `yaml:"dispatch_delay"`
	InterruptDelay      timing.VTime `yaml:"interrupt_delay"`
	IdlePollInterval    timing.VTime `yaml:"idle_poll_interval"`
	IdlePolicy          string       `yaml:"idle_policy"`
	ChargeInterruptOnce bool         `yaml:"charge_interrupt_once"`
	ExitWhenDrained     bool         `yaml:"exit_when_drained"`

	Clock    string        `yaml:"clock"`
	TimeUnit time.Duration `yaml:"time_unit"`

	Workload Workload `yaml:"workload"`
	Record   Record   `yaml:"record"`
	Monitor  Monitor  `yaml:"monitor"`
	Log      Log      `yaml:"log"`
}

// Workload configures the sample workload that is loaded before a run.
type Workload struct {
	Seed       int64 `yaml:"seed"`
	Count      int   `yaml:"count"`
	BasePID    int   `yaml:"base_pid"`
	MaxSpecial int   `yaml:"max_special"`
	ExecTimes  []int `yaml:"exec_times"`
}

// Record configures the SQLite run recorder. An empty path disables it.
type Record struct {
	Path string `yaml:"path"`
}

// Monitor configures the HTTP monitor. Port 0 disables it.
type Monitor struct {
	Port        int  `yaml:"port"`
	OpenBrowser bool `yaml:"open_browser"`
}

// Log configures the run log.
type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Quantum:          100,
		DispatchDelay:    100,
		InterruptDelay:   300,
		IdlePollInterval: 500,
		IdlePolicy:       IdlePolicyBlock,
		Clock:            ClockVirtual,
		TimeUnit:         timing.DefaultTimeUnit,
		Workload: Workload{
			Seed:       1,
			Count:      5,
			BasePID:    120,
			MaxSpecial: 2,
			ExecTimes:  []int{100, 200, 300},
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads a YAML file on top of the default settings.
func Load(path string) (Config, error) {
	c := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}

	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parsing %s: %w", path, err)
	}

	return c, nil
}

// LoadEnv reads .env files into the process environment. Files that do not
// exist are skipped. Variables that are already set are kept.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}

	return nil
}

// ApplyEnv overrides settings from QUANTASIM_* environment variables, such as
// QUANTASIM_QUANTUM or QUANTASIM_WORKLOAD_SEED.
func (c *Config) ApplyEnv() error {
	setters := []struct {
		key string
		set func(string) error
	}{
		{"QUANTUM", intSetter(&c.Quantum)},
		{"DISPATCH_DELAY", vtimeSetter(&c.DispatchDelay)},
		{"INTERRUPT_DELAY", vtimeSetter(&c.InterruptDelay)},
		{"IDLE_POLL_INTERVAL", vtimeSetter(&c.IdlePollInterval)},
		{"IDLE_POLICY", stringSetter(&c.IdlePolicy)},
		{"CHARGE_INTERRUPT_ONCE", boolSetter(&c.ChargeInterruptOnce)},
		{"EXIT_WHEN_DRAINED", boolSetter(&c.ExitWhenDrained)},
		{"CLOCK", stringSetter(&c.Clock)},
		{"TIME_UNIT", durationSetter(&c.TimeUnit)},
		{"WORKLOAD_SEED", int64Setter(&c.Workload.Seed)},
		{"WORKLOAD_COUNT", intSetter(&c.Workload.Count)},
		{"WORKLOAD_BASE_PID", intSetter(&c.Workload.BasePID)},
		{"WORKLOAD_MAX_SPECIAL", intSetter(&c.Workload.MaxSpecial)},
		{"RECORD_PATH", stringSetter(&c.Record.Path)},
		{"MONITOR_PORT", intSetter(&c.Monitor.Port)},
		{"MONITOR_OPEN_BROWSER", boolSetter(&c.Monitor.OpenBrowser)},
		{"LOG_LEVEL", stringSetter(&c.Log.Level)},
		{"LOG_JSON", boolSetter(&c.Log.JSON)},
	}

	for _, s := range setters {
		value, found := os.LookupEnv(EnvPrefix + s.key)
		if !found {
			continue
		}

		if err := s.set(strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("%w: %s%s=%q: %v",
				quantasim.ErrInvalidArgument, EnvPrefix, s.key, value, err)
		}
	}

	return nil
}

// Validate checks that the settings can build a scheduler.
func (c Config) Validate() error {
	var problems []string

	if c.Quantum <= 0 {
		problems = append(problems,
			fmt.Sprintf("quantum must be positive, got %d", c.Quantum))
	}

	switch c.IdlePolicy {
	case IdlePolicyBlock, IdlePolicyPoll:
	default:
		problems = append(problems,
			fmt.Sprintf("unknown idle policy %q", c.IdlePolicy))
	}

	if c.IdlePolicy == IdlePolicyPoll && c.IdlePollInterval == 0 {
		problems = append(problems, "idle poll interval must be positive")
	}

	switch c.Clock {
	case ClockVirtual, ClockWall:
	default:
		problems = append(problems, fmt.Sprintf("unknown clock %q", c.Clock))
	}

	if c.Workload.Count < 0 {
		problems = append(problems, "workload count must not be negative")
	}

	for _, t := range c.Workload.ExecTimes {
		if t <= 0 {
			problems = append(problems,
				fmt.Sprintf("execution time must be positive, got %d", t))
		}
	}

	if c.Workload.Count > 0 && len(c.Workload.ExecTimes) == 0 {
		problems = append(problems, "workload needs at least one execution time")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s",
			quantasim.ErrInvalidArgument, strings.Join(problems, "; "))
	}

	return nil
}

func stringSetter(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func intSetter(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}

		*dst = n

		return nil
	}
}

func int64Setter(dst *int64) func(string) error {
	return func(v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}

		*dst = n

		return nil
	}
}

func vtimeSetter(dst *timing.VTime) func(string) error {
	return func(v string) error {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return err
		}

		*dst = timing.VTime(n)

		return nil
	}
}

func boolSetter(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}

		*dst = b

		return nil
	}
}

func durationSetter(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}

		*dst = d

		return nil
	}
}
