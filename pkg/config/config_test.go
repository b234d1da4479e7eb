package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/radioscan-network/radioscan/pkg/scan"
	"github.com/radioscan-network/radioscan/pkg/session"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "radioscan.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if c.BatchSize != 0 {
		t.Errorf("BatchSize = %d, want 0 (single batch)", c.BatchSize)
	}
	if !c.Include.EH || !c.Include.BU || !c.Include.TU || !c.Include.TG {
		t.Errorf("Include = %+v, want all families", c.Include)
	}
	if p := c.SessionParams(); p != session.DefaultParams() {
		t.Errorf("SessionParams = %+v, want defaults", p)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
batch_size: 50
concurrency: 10
include:
  eh: true
  tg: true
include_remote_cns: true
time_shift_hours: -2.5
output_dir: /var/lib/radioscan
redis_addr: localhost:6379
log_level: debug
session:
  tcp_timeout_secs: 3
  prompt_retries: 2
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if c.BatchSize != 50 || c.Concurrency != 10 {
		t.Errorf("batch/concurrency = %d/%d", c.BatchSize, c.Concurrency)
	}
	if !c.Include.EH || c.Include.BU || c.Include.TU || !c.Include.TG {
		t.Errorf("Include = %+v", c.Include)
	}
	if !c.IncludeRemoteCNs {
		t.Error("IncludeRemoteCNs not set")
	}
	if got := c.TimeShift(); got != -150*time.Minute {
		t.Errorf("TimeShift = %v, want -2h30m", got)
	}
	if c.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q", c.RedisAddr)
	}

	p := c.SessionParams()
	if p.TCPTimeout != 3*time.Second {
		t.Errorf("TCPTimeout = %v", p.TCPTimeout)
	}
	if p.PromptRetries != 2 {
		t.Errorf("PromptRetries = %d", p.PromptRetries)
	}
	// Untouched parameters keep their defaults.
	if p.Port != 22 || p.SettleTime != session.DefaultParams().SettleTime {
		t.Errorf("unexpected override bleed: %+v", p)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "concurrency: 5\n")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Concurrency != 5 {
		t.Errorf("Concurrency = %d", c.Concurrency)
	}
	if c.OutputDir != "." || c.LogLevel != "info" {
		t.Errorf("defaults lost: output_dir=%q log_level=%q", c.OutputDir, c.LogLevel)
	}
	if !c.Include.EH {
		t.Error("default family includes lost")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "batch_size: [oops\n", "parsing config YAML"},
		{"negative batch", "batch_size: -1\n", "batch_size"},
		{"zero concurrency", "concurrency: 0\n", "concurrency"},
		{"no families", "include: {eh: false, bu: false, tu: false, tg: false}\n", "family"},
		{"empty output dir", "output_dir: \"\"\n", "output_dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err == nil {
		t.Fatal("Load of missing file did not fail")
	}
}

func TestOptions(t *testing.T) {
	c := Default()
	c.BatchSize = 100
	c.IncludeRemoteCNs = true
	opts := c.Options(scan.ActionCollect, "run-1", nil)

	if opts.Action != scan.ActionCollect || opts.RunID != "run-1" {
		t.Errorf("opts = %+v", opts)
	}
	if opts.BatchSize != 100 || !opts.IncludeRemotes {
		t.Errorf("opts = %+v", opts)
	}
	if opts.Session != session.DefaultParams() {
		t.Errorf("Session = %+v", opts.Session)
	}
}
