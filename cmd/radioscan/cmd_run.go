package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/radioscan-network/radioscan/pkg/cli"
	"github.com/radioscan-network/radioscan/pkg/credentials"
	"github.com/radioscan-network/radioscan/pkg/family"
	"github.com/radioscan-network/radioscan/pkg/scan"
	"github.com/radioscan-network/radioscan/pkg/util"
)

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Identify every radio in the address file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(scan.ActionScan, nil)
		},
	}
}

func newCollectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Collect metrics from every radio",
		Long: `Collect gathers the per-family metric set from every radio: show
command outputs for the point-to-point and multihaul lines, the parsed
full dump for mesh radios. With --remote-cns, mesh radios are scanned
through and their client nodes collected as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(scan.ActionCollect, nil)
		},
	}
}

func newScriptCmd() *cobra.Command {
	var scriptFile string

	cmd := &cobra.Command{
		Use:   "script [command]...",
		Short: "Run CLI commands on every radio",
		Long: `Script sends the given commands, in order, to every included radio.
Commands come from the arguments or from a file (-F) with one command
per line; blank lines and '#' comments are skipped.

  radioscan -f radios.txt script "show system" "show sw"
  radioscan -f radios.txt script -F commands.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			script := args
			if scriptFile != "" {
				fromFile, err := readScript(scriptFile)
				if err != nil {
					return err
				}
				script = append(fromFile, script...)
			}
			if len(script) == 0 {
				return fmt.Errorf("no commands given: pass them as arguments or via -F")
			}
			return runAction(scan.ActionScript, script)
		},
	}
	cmd.Flags().StringVarP(&scriptFile, "script-file", "F", "", "File with one command per line")
	return cmd
}

func newSetClockCmd() *cobra.Command {
	var shiftHours float64

	cmd := &cobra.Command{
		Use:   "set-clock",
		Short: "Set every radio's date and time from the local clock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("shift") {
				cfg.TimeShiftHours = shiftHours
			}
			return runAction(scan.ActionSyncClock, nil)
		},
	}
	cmd.Flags().Float64Var(&shiftHours, "shift", 0, "Hours added to the local clock (radios in other time zones)")
	return cmd
}

// readScript loads commands from a file, one per line.
func readScript(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script file: %w", err)
	}
	var script []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		script = append(script, line)
	}
	return script, nil
}

// loadCredentials reads and parses the address file, applying the
// interactive password override if requested.
func loadCredentials() (credentials.List, error) {
	if networkFile == "" {
		return nil, fmt.Errorf("no address file given: use -f")
	}
	data, err := os.ReadFile(networkFile)
	if err != nil {
		return nil, fmt.Errorf("reading address file: %w", err)
	}
	creds := credentials.Parse(string(data))
	if len(creds) == 0 {
		return nil, fmt.Errorf("no valid target addresses in %s", networkFile)
	}

	if askPassword {
		fmt.Fprint(os.Stderr, "Password: ")
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("reading password: %w", err)
		}
		for i := range creds {
			creds[i].Password = string(secret)
		}
	}
	return creds, nil
}

// tally counts results per family for the end-of-run summary. It sits in
// the sink chain next to the file sinks.
type tally struct {
	families map[family.Family]int
	total    int
	failed   int
}

func (t *tally) WriteBatch(ctx context.Context, batch int, results []scan.DeviceResult) error {
	for _, res := range results {
		t.total++
		t.families[res.Family]++
		if res.Error != "" {
			t.failed++
		}
	}
	return nil
}

func (t *tally) Close() error { return nil }

func (t *tally) print() {
	table := cli.NewTable("FAMILY", "RADIOS")
	for _, f := range []family.Family{family.EH, family.BU, family.TU, family.TG, family.Unknown} {
		if n := t.families[f]; n > 0 {
			table.Row(string(f), strconv.Itoa(n))
		}
	}
	table.Flush()

	fmt.Printf("\n%d addresses worked, ", t.total)
	if t.failed > 0 {
		fmt.Println(cli.Red(fmt.Sprintf("%d with errors", t.failed)))
	} else {
		fmt.Println(cli.Green("no errors"))
	}
}

// runAction is the shared driver behind every subcommand: load targets,
// assemble the sink chain, run the batches, print the summary.
func runAction(action scan.Action, script []string) error {
	creds, err := loadCredentials()
	if err != nil {
		return err
	}

	csvSink, err := scan.NewCSVSink(cfg.OutputDir)
	if err != nil {
		return err
	}
	counts := &tally{families: map[family.Family]int{}}
	sinks := scan.MultiSink{csvSink, counts}

	runID := uuid.NewString()
	if cfg.RedisAddr != "" {
		sinks = append(sinks, scan.NewRedisSink(cfg.RedisAddr, runID))
	}
	defer sinks.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	util.Infof("run %s: %s over %d addresses", runID, action, len(creds))
	if err := scan.NewRunner(cfg.Options(action, runID, script), sinks).Run(ctx, creds); err != nil {
		return err
	}

	counts.print()
	return nil
}
