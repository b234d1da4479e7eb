// Package config loads the YAML run configuration. Every field has a
// usable default, so a run needs no config file at all; the file only
// overrides what it mentions.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/radioscan-network/radioscan/pkg/scan"
	"github.com/radioscan-network/radioscan/pkg/session"
)

// Include selects which radio families an action is applied to.
type Include struct {
	EH bool `yaml:"eh"`
	BU bool `yaml:"bu"`
	TU bool `yaml:"tu"`
	TG bool `yaml:"tg"`
}

// SessionOverrides adjusts the per-session transport parameters. Zero
// values keep the built-in defaults.
type SessionOverrides struct {
	Port           int     `yaml:"port"`
	TCPTimeoutSecs float64 `yaml:"tcp_timeout_secs"`
	SettleSecs     float64 `yaml:"settle_secs"`
	ReadSecs       float64 `yaml:"read_secs"`
	PromptRetries  int     `yaml:"prompt_retries"`
	TerminalHeight int     `yaml:"terminal_height"`
}

// Config is one run's configuration.
type Config struct {
	// BatchSize is how many radios go into one batch before results are
	// flushed. Zero means everything in a single batch.
	BatchSize int `yaml:"batch_size"`

	// Concurrency bounds simultaneous sessions within a batch.
	Concurrency int `yaml:"concurrency"`

	Include Include `yaml:"include"`

	// IncludeRemoteCNs extends the action over tunnel-reachable client
	// nodes of mesh radios.
	IncludeRemoteCNs bool `yaml:"include_remote_cns"`

	// TimeShiftHours is added to the local clock before clock sets, for
	// radios deployed in other time zones.
	TimeShiftHours float64 `yaml:"time_shift_hours"`

	// OutputDir receives the CSV result files.
	OutputDir string `yaml:"output_dir"`

	// RedisAddr, when set, additionally mirrors results into Redis.
	RedisAddr string `yaml:"redis_addr"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	Session SessionOverrides `yaml:"session"`
}

// Default returns the configuration used when no file is given: all
// families included, twenty radios at a time in one big batch, results
// in the working directory.
func Default() *Config {
	return &Config{
		Concurrency: 20,
		Include:     Include{EH: true, BU: true, TU: true, TG: true},
		OutputDir:   ".",
		LogLevel:    "info",
	}
}

// Load reads path and applies it over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects values no run can work with.
func (c *Config) Validate() error {
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must not be negative, got %d", c.BatchSize)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	if !c.Include.EH && !c.Include.BU && !c.Include.TU && !c.Include.TG {
		return fmt.Errorf("at least one radio family must be included")
	}
	return nil
}

// TimeShift returns the clock offset as a duration.
func (c *Config) TimeShift() time.Duration {
	return time.Duration(c.TimeShiftHours * float64(time.Hour))
}

// SessionParams returns the transport defaults with the configured
// overrides applied.
func (c *Config) SessionParams() session.Params {
	p := session.DefaultParams()
	if c.Session.Port > 0 {
		p.Port = c.Session.Port
	}
	if c.Session.TCPTimeoutSecs > 0 {
		p.TCPTimeout = secs(c.Session.TCPTimeoutSecs)
	}
	if c.Session.SettleSecs > 0 {
		p.SettleTime = secs(c.Session.SettleSecs)
	}
	if c.Session.ReadSecs > 0 {
		p.ReadTimeout = secs(c.Session.ReadSecs)
	}
	if c.Session.PromptRetries > 0 {
		p.PromptRetries = c.Session.PromptRetries
	}
	if c.Session.TerminalHeight > 0 {
		p.TerminalHeight = c.Session.TerminalHeight
	}
	return p
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Options maps the configuration onto run options. The action, run ID
// and script come from the command line, not the config file.
func (c *Config) Options(action scan.Action, runID string, script []string) scan.Options {
	return scan.Options{
		Action:         action,
		RunID:          runID,
		BatchSize:      c.BatchSize,
		Concurrency:    c.Concurrency,
		Script:         script,
		IncludeEH:      c.Include.EH,
		IncludeBU:      c.Include.BU,
		IncludeTU:      c.Include.TU,
		IncludeTG:      c.Include.TG,
		IncludeRemotes: c.IncludeRemoteCNs,
		TimeShift:      c.TimeShift(),
		Session:        c.SessionParams(),
	}
}
