// Package commander layers radio-aware operations on top of a CLI session:
// running scripts, discovering tunnel-reachable remotes, collecting metric
// records, and synchronizing clocks. Everything a command did or failed to
// do is accumulated on the Commander for the caller to sink.
package commander

import (
	"fmt"
	"strings"
	"time"

	"github.com/radioscan-network/radioscan/pkg/credentials"
	"github.com/radioscan-network/radioscan/pkg/family"
	"github.com/radioscan-network/radioscan/pkg/session"
	"github.com/radioscan-network/radioscan/pkg/showparse"
	"github.com/radioscan-network/radioscan/pkg/util"
)

// CLI is the session surface the commander drives. *session.Session
// implements it; tests substitute scripted fakes.
type CLI interface {
	Send(cmd string) string
	TunnelIn(name string) error
	TunnelOut() error
	Identity() session.Identity
	LastError() string
}

// Command is one command interaction with one radio: the text sent, where
// it went, what came back, and whether the response indicates success.
type Command struct {
	Command   string
	TargetID  string
	Response  string
	Success   bool
	Timestamp time.Time
}

// errorMarkers are the substrings the radio CLIs use to flag a rejected
// command. The response still arrives, so success cannot be inferred from
// transport behavior alone.
var errorMarkers = []string{
	"Ambiguous command",
	"CLI syntax error",
	"Validate failed",
	"Error:",
	"Invalid",
}

// Succeeded reports whether a response indicates a successfully executed
// command. An empty response is always a failure.
func Succeeded(response string) bool {
	if response == "" {
		return false
	}
	for _, marker := range errorMarkers {
		if strings.Contains(response, marker) {
			return false
		}
	}
	return true
}

// MetricRow is one parsed record destined for a metrics sink, labeled with
// the route it was collected over and the reporting radio's name.
type MetricRow struct {
	Target string
	Name   string
	Record showparse.Record
}

// Commander drives one radio (and, through tunnels, its remotes) and
// accumulates the results.
type Commander struct {
	cred credentials.Credential
	cli  CLI

	// Family is the product family of the connected radio.
	Family family.Family
	// Commands records every command sent, in order.
	Commands []Command
	// Errors accumulates failure descriptions.
	Errors []string
	// Remotes holds the tunnel-reachable client nodes after discovery.
	Remotes []string
	// Metrics holds the parsed records after collection.
	Metrics []MetricRow
}

// New wraps an established session. The family is classified from the
// session's derived identity.
func New(cli CLI, cred credentials.Credential) *Commander {
	c := &Commander{
		cred:   cred,
		cli:    cli,
		Family: family.Classify(cli.Identity().Model),
	}
	if lastErr := cli.LastError(); lastErr != "" {
		c.Errors = append(c.Errors, lastErr)
	}
	return c
}

// target returns the default route label: "addr: name".
func (c *Commander) target() string {
	return fmt.Sprintf("%s: %s", c.cred.Addr, c.cli.Identity().Name)
}

// Run sends each command in order and records the outcome. targetID labels
// the results; pass "" for the default "addr: name" label. A failed
// command does not stop the script.
func (c *Commander) Run(commands []string, targetID string) []Command {
	if targetID == "" {
		targetID = c.target()
	}
	results := make([]Command, 0, len(commands))
	for _, text := range commands {
		cmd := Command{Command: text, TargetID: targetID}
		cmd.Response = c.cli.Send(text)
		cmd.Timestamp = time.Now()
		cmd.Success = Succeeded(cmd.Response)
		if !cmd.Success {
			if cmd.Response == "" {
				c.Errors = append(c.Errors, fmt.Sprintf("Command: '%s' to '%s' failed", text, targetID))
			} else {
				c.Errors = append(c.Errors,
					fmt.Sprintf("Command: '%s' to '%s' raised an error: '%s'", text, targetID, cmd.Response))
			}
		}
		results = append(results, cmd)
	}
	c.Commands = append(c.Commands, results...)
	return results
}

// RunOnRemotes sends the script to every discovered remote, tunneling in
// and back out per remote. A remote that cannot be tunneled into is
// skipped; the rest still run.
func (c *Commander) RunOnRemotes(commands []string) []Command {
	var results []Command
	for _, remote := range c.Remotes {
		if err := c.cli.TunnelIn(remote); err != nil {
			c.Errors = append(c.Errors, fmt.Sprintf("cannot reach remote '%s': %v", remote, err))
			continue
		}
		targetID := fmt.Sprintf("%s -> %s", c.target(), remote)
		results = append(results, c.Run(commands, targetID)...)
		if err := c.cli.TunnelOut(); err != nil {
			c.Errors = append(c.Errors, fmt.Sprintf("cannot return from remote '%s': %v", remote, err))
			return results
		}
	}
	return results
}

// DiscoverRemotes queries a mesh radio for the client nodes with an active
// link and stores their names in Remotes. Only the TG dialect has tunnel
// targets; other families discover nothing.
func (c *Commander) DiscoverRemotes() []string {
	c.Remotes = nil
	if c.Family != family.TG {
		return nil
	}
	results := c.Run([]string{"show radio-common", "show radio-dn"}, "")
	links, err := showparse.ParseTGLinks(results[0].Response + "\n" + results[1].Response)
	if err != nil {
		c.Errors = append(c.Errors, fmt.Sprintf("cannot decode link tables for '%s': %v", c.target(), err))
		return nil
	}
	for _, link := range links {
		if link.Status == "active" && link.Type == "cn" {
			c.Remotes = append(c.Remotes, link.Remote)
		}
	}
	util.WithTarget(c.target()).Debugf("discovered %d remote client nodes", len(c.Remotes))
	return c.Remotes
}

// CollectMetrics gathers the family's show commands and decodes them into
// metric rows. For mesh radios the consolidated dump is decoded section by
// section, and with includeRemotes the collection repeats over every
// discovered remote. Undecodable output contributes no rows, only errors.
func (c *Commander) CollectMetrics(includeRemotes bool) []MetricRow {
	switch {
	case c.Family == family.TG:
		c.collectMeshMetrics("")
		if includeRemotes {
			for _, remote := range c.Remotes {
				if err := c.cli.TunnelIn(remote); err != nil {
					c.Errors = append(c.Errors, fmt.Sprintf("cannot reach remote '%s': %v", remote, err))
					continue
				}
				c.collectMeshMetrics(remote)
				if err := c.cli.TunnelOut(); err != nil {
					c.Errors = append(c.Errors, fmt.Sprintf("cannot return from remote '%s': %v", remote, err))
					break
				}
			}
		}
	case c.Family.Radio():
		c.collectTableMetrics()
	}
	return c.Metrics
}

// collectTableMetrics runs the per-command regex tables of the older
// dialects and merges everything into one flat record per radio.
func (c *Commander) collectTableMetrics() {
	merged := showparse.Record{Section: strings.ToLower(string(c.Family))}
	merged.Set("ip_addr", c.cred.Addr.String())
	for _, result := range c.Run(c.Family.MetricCommands(), "") {
		spec, ok := showparse.SpecFor(result.Command)
		if !ok {
			continue
		}
		merged.Merge(spec.Parse(result.Response))
	}
	c.Metrics = append(c.Metrics, MetricRow{
		Target: c.target(),
		Name:   c.cli.Identity().Name,
		Record: merged,
	})
}

// collectMeshMetrics decodes one consolidated dump into per-section rows.
// remote is "" when collecting from the directly-addressed radio.
func (c *Commander) collectMeshMetrics(remote string) {
	targetID := ""
	if remote != "" {
		targetID = fmt.Sprintf("%s -> %s", c.target(), remote)
	}
	results := c.Run([]string{"show"}, targetID)
	if targetID == "" {
		targetID = results[0].TargetID
	}
	if !results[0].Success {
		return
	}
	show, err := showparse.ParseTG(results[0].Response)
	if err != nil {
		c.Errors = append(c.Errors, fmt.Sprintf("cannot decode show dump for '%s': %v", targetID, err))
		return
	}
	add := func(rec showparse.Record) {
		if len(rec.Fields) == 0 {
			return
		}
		c.Metrics = append(c.Metrics, MetricRow{Target: targetID, Name: show.Name, Record: rec})
	}
	for _, rec := range show.Interfaces {
		add(rec)
	}
	for _, rec := range show.IPs {
		add(rec)
	}
	add(show.Inventory)
	add(show.Node)
	for _, rec := range show.Sectors {
		add(rec)
	}
	for _, link := range show.Links {
		add(link.Record())
	}
	add(show.System)
}

// SyncClock sets the radio's date and time to the local clock plus shift.
// With includeRemotes, mesh remotes are set one by one with a fresh
// timestamp per remote, since tunneling takes long enough to skew a
// timestamp taken up front.
func (c *Commander) SyncClock(shift time.Duration, includeRemotes bool) {
	commands := c.Family.ClockCommands(time.Now().Add(shift))
	if commands == nil {
		return
	}
	c.Run(commands, "")
	if c.Family != family.TG || !includeRemotes {
		return
	}
	for _, remote := range c.Remotes {
		if err := c.cli.TunnelIn(remote); err != nil {
			c.Errors = append(c.Errors, fmt.Sprintf("cannot reach remote '%s': %v", remote, err))
			continue
		}
		targetID := fmt.Sprintf("%s -> %s", c.target(), remote)
		c.Run(c.Family.ClockCommands(time.Now().Add(shift)), targetID)
		if err := c.cli.TunnelOut(); err != nil {
			c.Errors = append(c.Errors, fmt.Sprintf("cannot return from remote '%s': %v", remote, err))
			return
		}
	}
}
