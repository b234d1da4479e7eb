// Radioscan - batch scanner for radio networks
//
// A CLI tool that sweeps IP ranges over SSH and, for every radio it
// finds, identifies the product family and optionally collects metrics,
// runs command scripts, or sets the clock. Mesh radios are scanned
// through, reaching client nodes that have no routable address of their
// own.
//
//	radioscan -f radios.txt scan                  # identify everything
//	radioscan -f radios.txt collect -r            # metrics incl. remote CNs
//	radioscan -f radios.txt script "show system"  # run commands
//	radioscan -f radios.txt set-clock --shift -2  # sync clocks, UTC-2
//
// The address file lists one target per line: a single IPv4 address, a
// range ("10.0.0.10 - 10.0.0.50") or a CIDR block, with optional
// "username = x" / "password = y" lines applying to subsequent targets.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/radioscan-network/radioscan/pkg/config"
	"github.com/radioscan-network/radioscan/pkg/settings"
	"github.com/radioscan-network/radioscan/pkg/util"
	"github.com/radioscan-network/radioscan/pkg/version"
)

var (
	// Global flags
	configPath  string
	networkFile string
	outputDir   string
	redisAddr   string
	batchSize   int
	concurrency int
	remoteCNs   bool
	askPassword bool
	verbose     bool
	jsonLogs    bool

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "radioscan",
	Short:             "Batch scanner for radio networks",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Radioscan sweeps IP ranges over SSH and works every radio it finds.

Targets come from an address file (-f); what happens to each radio is
the subcommand. Results are written as CSV files per batch, and
optionally mirrored into Redis.

  radioscan -f radios.txt scan
  radioscan -f radios.txt collect --remote-cns
  radioscan -f radios.txt script "show system" "show sw"
  radioscan -f radios.txt set-clock --shift -2`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isSettingsOrHelp(cmd) {
			return nil
		}

		// User settings fill in flags that were not given.
		userSettings, err := settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}
		if networkFile == "" {
			networkFile = userSettings.AddressFile
		}
		if configPath == "" {
			configPath = userSettings.ConfigFile
		}
		if outputDir == "" {
			outputDir = userSettings.OutputDir
		}
		if redisAddr == "" {
			redisAddr = userSettings.RedisAddr
		}

		if configPath != "" {
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
		} else {
			cfg = config.Default()
		}

		// Command-line flags win over the config file.
		if outputDir != "" {
			cfg.OutputDir = outputDir
		}
		if redisAddr != "" {
			cfg.RedisAddr = redisAddr
		}
		if cmd.Flags().Changed("batch") {
			cfg.BatchSize = batchSize
		}
		if cmd.Flags().Changed("concurrency") {
			cfg.Concurrency = concurrency
		}
		if remoteCNs {
			cfg.IncludeRemoteCNs = true
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if verbose {
			cfg.LogLevel = "debug"
		}
		if jsonLogs {
			cfg.LogJSON = true
		}
		if cfg.LogJSON {
			util.SetJSONFormat()
		}
		return util.SetLogLevel(cfg.LogLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML)")
	rootCmd.PersistentFlags().StringVarP(&networkFile, "file", "f", "", "Address file listing radios to work")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "Directory for CSV result files")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "", "Redis address to mirror results into (host:port)")
	rootCmd.PersistentFlags().IntVarP(&batchSize, "batch", "b", 0, "Radios per batch (0 = single batch)")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 0, "Simultaneous sessions per batch")
	rootCmd.PersistentFlags().BoolVarP(&remoteCNs, "remote-cns", "r", false, "Also work remote client nodes behind mesh radios")
	rootCmd.PersistentFlags().BoolVarP(&askPassword, "ask-password", "p", false, "Prompt for a password overriding the address file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "JSON log format")

	rootCmd.AddCommand(
		newScanCmd(),
		newCollectCmd(),
		newScriptCmd(),
		newSetClockCmd(),
		settingsCmd,
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("radioscan %s\n", version.Info())
			},
		},
	)
}

// isSettingsOrHelp reports whether cmd runs without a loaded config:
// settings subcommands, version, help and completion.
func isSettingsOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "settings", "version", "help", "completion":
			return true
		}
	}
	return false
}
