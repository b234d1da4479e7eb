// Package family classifies radio models into product families and carries
// the per-family command tables: which show commands to collect, and how
// each family's CLI expresses a clock set.
package family

import (
	"fmt"
	"strings"
	"time"
)

// Family is a product line sharing one CLI dialect.
type Family string

const (
	// EH is the point-to-point Etherhaul line.
	EH Family = "EH"
	// BU is a multihaul base unit.
	BU Family = "BU"
	// TU is a multihaul terminal unit.
	TU Family = "TU"
	// TG is the mesh terragraph line.
	TG Family = "TG"
	// Unknown is anything that does not classify.
	Unknown Family = "Unknown"
)

// classRule maps a model-name prefix to a family. Rules are ordered:
// the first match wins, so the specific MH models precede the MH catch-all.
type classRule struct {
	prefixes []string
	family   Family
}

var classRules = []classRule{
	{[]string{"EH"}, EH},
	{[]string{"MH-B100"}, BU},
	{[]string{"MH-T200", "MH-T201"}, TU},
	{[]string{"MH-"}, TG},
}

// Classify maps a model name to its family. Empty or unmatched models
// classify as Unknown.
func Classify(model string) Family {
	for _, rule := range classRules {
		for _, p := range rule.prefixes {
			if strings.HasPrefix(model, p) {
				return rule.family
			}
		}
	}
	return Unknown
}

// Radio reports whether the family is a known radio product line.
func (f Family) Radio() bool {
	return f == EH || f == BU || f == TU || f == TG
}


// MetricCommands returns the show commands collected from this family, in
// issue order. The mesh line answers one consolidated "show" dump; the
// older dialects need one command per subsystem. Unknown families have
// nothing to collect.
func (f Family) MetricCommands() []string {
	switch f {
	case EH:
		return []string{
			"show system",
			"show sw",
			"show inventory 1",
			"show rf",
			"show rf-debug",
			"show eth eth1",
			"show eth eth2",
			"show eth eth3",
			"show eth eth4",
			"show lldp-remote",
			"show log",
		}
	case BU:
		return []string{
			"show system",
			"show sw",
			"show inventory 1",
			"show eth eth1",
			"show eth eth2",
			"show eth eth3",
			"show lldp-remote",
			"show log",
			"show base-unit",
			"show remote-terminal-unit",
		}
	case TU:
		return []string{
			"show system",
			"show sw",
			"show inventory 1",
			"show eth eth1",
			"show eth eth2",
			"show eth eth3",
			"show lldp-remote",
			"show log",
			"show terminal-unit",
		}
	case TG:
		return []string{"show"}
	default:
		return nil
	}
}

// ClockCommands returns the CLI commands that set the radio's clock to ts,
// in issue order. The dialects disagree on both the verb and the date
// separator.
func (f Family) ClockCommands(ts time.Time) []string {
	switch f {
	case EH, BU, TU:
		return []string{
			fmt.Sprintf("set system time %s", ts.Format("15:04:05")),
			fmt.Sprintf("set system date %s", ts.Format("2006.01.02")),
		}
	case TG:
		return []string{
			fmt.Sprintf("set time %s", ts.Format("15:04:05")),
			fmt.Sprintf("set date %s", ts.Format("2006-01-02")),
		}
	default:
		return nil
	}
}
