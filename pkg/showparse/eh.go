package showparse

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Param describes how to extract one token from a show response: a regex
// with capture groups, and optionally a tail length for log-style commands
// whose value is the last few lines rather than a single match.
type Param struct {
	Name       string
	Regex      *regexp.Regexp
	TailLength int
	Format     func(string) string
}

// CommandSpec pairs a show command with the params extracted from its
// response.
type CommandSpec struct {
	Command string
	Params  []Param
}

// Parse extracts the command's params from a response. Every param yields a
// field; params that do not match yield an empty value, so the record
// shape is stable across radios.
func (cs CommandSpec) Parse(response string) Record {
	rec := Record{Section: cs.Command}
	for _, p := range cs.Params {
		value := ""
		if m := p.Regex.FindStringSubmatch(response); m != nil {
			if p.TailLength > 0 {
				value = tailLines(m[len(m)-1], p.TailLength)
			} else {
				// Alternated regexes fill different groups; take the
				// last one that matched.
				for i := len(m) - 1; i >= 1; i-- {
					if m[i] != "" {
						value = m[i]
						break
					}
				}
			}
		}
		if value != "" && p.Format != nil {
			value = p.Format(value)
		}
		rec.Fields = append(rec.Fields, Field{Key: p.Name, Value: value})
	}
	return rec
}

// tailLines joins the last n non-blank-trimmed lines of text with "; ".
func tailLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	if n > len(lines) {
		n = len(lines)
	}
	return strings.Join(lines[len(lines)-n:], "; ")
}

// uptimeToDays converts "days:hours:minutes:seconds" into fractional days
// rounded to two decimals. Unconvertible input is passed through.
func uptimeToDays(uptime string) string {
	parts := strings.Split(uptime, ":")
	if len(parts) != 4 {
		return uptime
	}
	days, err1 := strconv.ParseFloat(parts[0], 64)
	hours, err2 := strconv.ParseFloat(parts[1], 64)
	minutes, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return uptime
	}
	total := math.Round((days+hours/24+minutes/1440)*100) / 100
	return strconv.FormatFloat(total, 'f', -1, 64)
}

// ehSpecs maps each show command of the older CLI dialects to its
// extraction table. The regexes mirror the column layout the firmware has
// kept stable across releases.
var ehSpecs = map[string]CommandSpec{}

func register(spec CommandSpec) {
	ehSpecs[spec.Command] = spec
}

// SpecFor returns the extraction table for a show command of the older
// dialects, or false for commands decoded elsewhere.
func SpecFor(command string) (CommandSpec, bool) {
	spec, ok := ehSpecs[command]
	return spec, ok
}

func init() {
	register(CommandSpec{
		Command: "show system",
		Params: []Param{
			{Name: "system_descrip", Regex: regexp.MustCompile(`system description\s*:\s(\S*)\s`)},
			{Name: "system_name", Regex: regexp.MustCompile(`system name\s*:\s(\S*)\s`)},
			{Name: "system_location", Regex: regexp.MustCompile(`system location\s*:\s(\S*)\s`)},
			{Name: "system_date", Regex: regexp.MustCompile(`system date\s*:\s(\S*)\s`)},
			{Name: "system_time", Regex: regexp.MustCompile(`system time\s*:\s(\S*)\s`)},
			{Name: "system_up_days", Regex: regexp.MustCompile(`system uptime\s*:\s(\S*)\s`), Format: uptimeToDays},
		},
	})

	// The software bank table has no labels, only columns; the active bank
	// is whichever row is running or waiting to accept.
	activeSW := `(?m)^\d\s*\S*?([0-9]+\.[0-9]+\.[0-9]+).*yes\s+no` +
		`|^\d\s*\S*?([0-9]+\.[0-9]+\.[0-9]+).*yes\s+yes` +
		`|^\d\s*\S*?([0-9]+\.[0-9]+\.[0-9]+).*wait-accept\s+no` +
		`|^\d\s*\S*?([0-9]+\.[0-9]+\.[0-9]+).*wait-accept\s+yes`
	offlineSW := `(?m)^\d\s*\S*?([0-9]+\.[0-9]+\.[0-9]+).*no\s+no` +
		`|^\d\s*\S*?([0-9]+\.[0-9]+\.[0-9]+).*no\s+yes`
	register(CommandSpec{
		Command: "show sw",
		Params: []Param{
			{Name: "sw_active", Regex: regexp.MustCompile(activeSW)},
			{Name: "sw_offline", Regex: regexp.MustCompile(offlineSW)},
		},
	})

	register(CommandSpec{
		Command: "show inventory 1",
		Params: []Param{
			{Name: "inventory_sn", Regex: regexp.MustCompile(`inventory 1 serial\s*:\s(\S*)\s`)},
		},
	})

	register(CommandSpec{
		Command: "show rf",
		Params: []Param{
			{Name: "rf_oper", Regex: regexp.MustCompile(`rf operational\s*:\s(\S*)\s`)},
			{Name: "rf_cinr", Regex: regexp.MustCompile(`rf cinr\s*:\s(\S*)\s`)},
			{Name: "rf_rssi", Regex: regexp.MustCompile(`rf rssi\s*:\s(\S*)\s`)},
			{Name: "rf_freq", Regex: regexp.MustCompile(`rf (tx-frequency|frequency)\s*:\s(\S*)\s`)},
			{Name: "rf_mode", Regex: regexp.MustCompile(`rf mode\s*:\s(\S*)\s`)},
		},
	})

	register(CommandSpec{
		Command: "show rf-debug",
		Params: []Param{
			{Name: "rfdebug_ptx", Regex: regexp.MustCompile(`rf-debug tx-power\s*:\s(\S*)\s`)},
			{Name: "rfdebug_distance", Regex: regexp.MustCompile(`rf-debug link-length\s*:\s(\S*)\s`)},
		},
	})

	for _, port := range []string{"eth1", "eth2", "eth3", "eth4"} {
		register(CommandSpec{
			Command: "show eth " + port,
			Params: []Param{
				{Name: port + "_oper", Regex: regexp.MustCompile(port + `\s+operational\s*:\s(\S*)\s`)},
				{Name: port + "_speed", Regex: regexp.MustCompile(port + `\s+eth-act-type\s*:\s(\S*)\s`)},
			},
		})
	}

	register(CommandSpec{
		Command: "show lldp-remote",
		Params: []Param{
			{Name: "lldp_remote", Regex: regexp.MustCompile(`lldp-remote eth0 0 chassis-id\s*:\s(\S*)\s`)},
		},
	})

	register(CommandSpec{
		Command: "show log",
		Params: []Param{
			{Name: "events_log", Regex: regexp.MustCompile(`(?s)(.*)`), TailLength: 2},
		},
	})

	register(CommandSpec{
		Command: "show user-activity-log",
		Params: []Param{
			{Name: "events_log", Regex: regexp.MustCompile(`(?s)(.*)`), TailLength: 1},
		},
	})

	register(CommandSpec{
		Command: "show base-unit",
		Params: []Param{
			{Name: "bu_mac", Regex: regexp.MustCompile(`self-mac\s*:\s(\S*)\s`)},
			{Name: "bu_freq", Regex: regexp.MustCompile(`frequency\s*:\s(\S*)\s`)},
			{Name: "bu_guest", Regex: regexp.MustCompile(`guest-connection\s*:\s(\S*)\s`)},
		},
	})

	register(CommandSpec{
		Command: "show terminal-unit",
		Params: []Param{
			{Name: "tu_mac", Regex: regexp.MustCompile(`self-mac\s*:\s(\S*)\s`)},
			{Name: "tu_status", Regex: regexp.MustCompile(`status\s*:\s(\S*)\s`)},
			{Name: "tu_bu_mac", Regex: regexp.MustCompile(`base-unit-mac\s*:\s(\S*)\s`)},
			{Name: "tu_tx_msc", Regex: regexp.MustCompile(`tx-mcs\s*:\s(\S*)\s`)},
			{Name: "tu_rssi", Regex: regexp.MustCompile(`rssi\s*:\s(\S*)\s`)},
			{Name: "tu_sig_quality", Regex: regexp.MustCompile(`signal-quality\s*:\s(\S*)\s`)},
			{Name: "tu_connect_days", Regex: regexp.MustCompile(`connect-time\s*:\s(\S*)\s`), Format: uptimeToDays},
		},
	})

	// A base unit reports up to eight attached terminal units.
	rtu := CommandSpec{Command: "show remote-terminal-unit"}
	for idx := 1; idx <= 8; idx++ {
		prefix := fmt.Sprintf("rtu%d_", idx)
		row := fmt.Sprintf(`%d `, idx)
		rtu.Params = append(rtu.Params,
			Param{Name: prefix + "mac", Regex: regexp.MustCompile(row + `mac\s*:\s(\S*)\s`)},
			Param{Name: prefix + "status", Regex: regexp.MustCompile(row + `status\s*:\s(\S*)\s`)},
			Param{Name: prefix + "assoc", Regex: regexp.MustCompile(row + `association\s*:\s(\S*)\s`)},
			Param{Name: prefix + "tx_msc", Regex: regexp.MustCompile(row + `tx-mcs\s*:\s(\S*)\s`)},
			Param{Name: prefix + "rssi", Regex: regexp.MustCompile(row + `rssi\s*:\s(\S*)\s`)},
			Param{Name: prefix + "sig_quality", Regex: regexp.MustCompile(row + `signal-quality\s*:\s(\S*)\s`)},
			Param{Name: prefix + "connect_days", Regex: regexp.MustCompile(row + `connect-time\s*:\s(\S*)\s`), Format: uptimeToDays},
		)
	}
	register(rtu)
}
