package showparse

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// TGShow is the decoded form of a mesh radio's consolidated "show" dump,
// broken into the sections the dump carries. Configured-but-down links are
// merged in from the dn section with status "disconnected".
type TGShow struct {
	Name       string
	System     Record
	Inventory  Record
	Interfaces []Record
	IPs        []Record
	Node       Record
	Sectors    []Record
	Links      []TGLink
}

// TGLink is one radio link, merged from the live (radio-common) and
// configured (radio-dn) views. All values are kept as the CLI printed them.
type TGLink struct {
	Remote    string
	Admin     string
	Role      string
	Status    string // active or disconnected
	Uptime    string
	Type      string // "cn", or "dn" plus the control superframe
	CfgLocal  string
	CfgRemote string
	ActLocal  string
	ActRemote string
	RSSI      string
	SNR       string
	MCSTx     string
	MCSRx     string
	TilesTx   string
	TilesRx   string
	PERTx     string
	PERRx     string
	BeamTx    string
	BeamRx    string
}

// Record renders the link as a flat record for sinks.
func (l TGLink) Record() Record {
	return Record{Section: "links", Fields: []Field{
		{"remote", l.Remote},
		{"admin", l.Admin},
		{"role", l.Role},
		{"status", l.Status},
		{"uptime", l.Uptime},
		{"type", l.Type},
		{"cfg_lsec", l.CfgLocal},
		{"cfg_rsec", l.CfgRemote},
		{"act_lsec", l.ActLocal},
		{"act_rsec", l.ActRemote},
		{"rssi", l.RSSI},
		{"snr", l.SNR},
		{"mcs_tx", l.MCSTx},
		{"mcs_rx", l.MCSRx},
		{"tiles_tx", l.TilesTx},
		{"tiles_rx", l.TilesRx},
		{"per_tx", l.PERTx},
		{"per_rx", l.PERRx},
		{"beam_index_tx", l.BeamTx},
		{"beam_index_rx", l.BeamRx},
	}}
}

// ActiveCNs returns the names of client nodes with an active link, i.e.
// the remotes reachable by tunneling from this radio.
func (s *TGShow) ActiveCNs() []string {
	var names []string
	for _, l := range s.Links {
		if l.Status == "active" && l.Type == "cn" {
			names = append(names, l.Remote)
		}
	}
	return names
}

// ParseTG decodes a consolidated "show" dump of a mesh radio.
func ParseTG(dump string) (*TGShow, error) {
	doc, err := decodeDump(dump)
	if err != nil {
		return nil, err
	}
	s := &TGShow{}
	s.System, s.Name = tokeniseSystem(doc)
	s.Inventory = tokeniseInventory(doc)
	s.Interfaces = tokeniseInterfaces(doc)
	s.IPs = tokeniseIPs(doc)
	s.Node = tokeniseNode(doc)
	s.Sectors = tokeniseSectors(doc, s.Node)
	s.Links = tokeniseLinks(doc)
	return s, nil
}

// ParseTGLinks decodes only the link sections. Remote discovery feeds it
// the concatenated "show radio-common" and "show radio-dn" responses.
func ParseTGLinks(dump string) ([]TGLink, error) {
	doc, err := decodeDump(dump)
	if err != nil {
		return nil, err
	}
	return tokeniseLinks(doc), nil
}

var (
	reColonSpace = regexp.MustCompile(`: `)
	reKeyValue   = regexp.MustCompile(`(\s*)(\S+)\s(.+);`)
	reKeyOnly    = regexp.MustCompile(`(\s*)(\S+);`)
	reOpenBrace  = regexp.MustCompile(`(\s*)(.+)\s{`)
	reCloseBrace = regexp.MustCompile(`.*}`)
)

// toYAML rewrites the quasi-YAML "show" dump into real YAML: "key value;"
// becomes a list-item mapping, "name {" opens a nested list, "}" is
// dropped. Indentation is preserved so nesting survives the rewrite.
func toYAML(dump string) string {
	lines := strings.Split(dump, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = reColonSpace.ReplaceAllString(line, ":")
		conv := reKeyValue.ReplaceAllString(line, "${1}- ${2}: ${3}")
		if conv == line {
			conv = reKeyOnly.ReplaceAllString(line, "${1}- ${2}: ")
		}
		if conv == line {
			conv = reOpenBrace.ReplaceAllString(line, "${1}- ${2}: ")
		}
		if conv == line {
			conv = reCloseBrace.ReplaceAllString(conv, "")
		}
		out = append(out, conv)
	}
	return strings.Join(out, "\n")
}

// decodeDump rewrites and YAML-decodes a dump into its top-level section
// list.
func decodeDump(dump string) ([]any, error) {
	var doc any
	if err := yaml.Unmarshal([]byte(toYAML(dump)), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	list, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: dump has no section list", ErrDecode)
	}
	return list, nil
}

// gkv returns the key and value of a single-item mapping, or ("", nil).
func gkv(item any) (string, any) {
	if m, ok := item.(map[string]any); ok {
		for k, v := range m {
			return k, v
		}
	}
	return "", nil
}

// valueByKey scans a list of single-item mappings and returns the value of
// the first whose key contains keyID. Older firmware emits duplicate plain
// keys ("address"); newer firmware folds the value into the key ("address
// 10.0.0.1"), so matching is by substring.
func valueByKey(list any, keyID string) any {
	items, ok := list.([]any)
	if !ok {
		return nil
	}
	for _, item := range items {
		if k, v := gkv(item); strings.Contains(k, keyID) {
			return v
		}
	}
	return nil
}

// scalar renders a decoded YAML scalar as the CLI printed it.
func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(v)
	}
}

var reSWVersion = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)\D+(\d+)`)

// canonSWVersion reduces a firmware version string to major.minor.patch,
// optionally keeping the build number.
func canonSWVersion(ver string, shortest bool) string {
	if ver == "" {
		return "unavail"
	}
	m := reSWVersion.FindStringSubmatch(ver)
	if m == nil {
		return "unknown"
	}
	short := m[1] + "." + m[2] + "." + m[3]
	if shortest {
		return short
	}
	return short + "-" + m[4]
}

func tokeniseSystem(doc []any) (Record, string) {
	system := valueByKey(doc, "system")
	name := scalar(valueByKey(system, "name"))
	if name == "" {
		name = "unknown"
	}
	state := valueByKey(system, "state")

	uptime := scalar(valueByKey(state, "uptime"))
	// Firmware drops the leading zero of five-digit day counters.
	if parts := strings.Split(uptime, ":"); len(parts) == 4 && len(parts[0]) == 4 {
		uptime = "0" + uptime
	}

	swActive, swPassive := "", ""
	if banks, ok := valueByKey(state, "banks-info").([]any); ok {
		for _, bank := range banks {
			_, info := gkv(bank)
			version := canonSWVersion(scalar(valueByKey(info, "software-version")), true)
			switch scalar(valueByKey(info, "status")) {
			case "active":
				swActive = version
			case "passive":
				swPassive = version
			}
		}
	}

	gps := valueByKey(state, "gps")
	rec := Record{Section: "system", Fields: []Field{
		{"product", scalar(valueByKey(state, "product"))},
		{"uptime", uptime},
		{"datetime", scalar(valueByKey(state, "date-and-time"))},
		{"location", strings.ReplaceAll(scalar(valueByKey(system, "location")), ",", ";")},
		{"sw_active", swActive},
		{"sw_passive", swPassive},
		{"gps_mode", scalar(valueByKey(gps, "fix-mode"))},
		{"gps_sats", scalar(valueByKey(gps, "fix-satellites-number"))},
	}}
	return rec, name
}

func tokeniseInventory(doc []any) Record {
	rec := Record{Section: "inventory"}
	items, ok := valueByKey(doc, "inventory").([]any)
	if !ok {
		return rec
	}
	// The radio itself is the one inventory item without a parent.
	for _, item := range items {
		_, details := gkv(item)
		if scalar(valueByKey(details, "parent")) != "" {
			continue
		}
		rec.Fields = []Field{
			{"sn", scalar(valueByKey(details, "serial-num"))},
			{"model", scalar(valueByKey(details, "model-name"))},
			{"hw_rev", scalar(valueByKey(details, "hardware-rev"))},
			{"sw_ver", canonSWVersion(scalar(valueByKey(details, "software-rev")), false)},
		}
		return rec
	}
	return rec
}

var (
	rePortsKey   = regexp.MustCompile(`^ports (.+)`)
	reRFIfaceKey = regexp.MustCompile(`^rf-interface (.+)`)
)

func tokeniseInterfaces(doc []any) []Record {
	items, ok := valueByKey(doc, "interfaces").([]any)
	if !ok || len(items) == 0 {
		return nil
	}
	var recs []Record
	for _, item := range items[1:] { // first entry is the host interface
		title, data := gkv(item)
		port := scalar(valueByKey(data, "name"))
		if port == "" {
			if m := rePortsKey.FindStringSubmatch(title); m != nil {
				port = m[1]
			} else if m := reRFIfaceKey.FindStringSubmatch(title); m != nil {
				port = m[1]
			} else {
				port = "unknown"
			}
		}
		state := valueByKey(data, "state")
		status := scalar(valueByKey(state, "oper-status"))
		if scalar(valueByKey(data, "admin-status")) == "down" {
			status = "user-disabled"
		}
		duplex := scalar(valueByKey(state, "actual-duplex-mode"))
		switch duplex {
		case "full":
			duplex = "FD"
		case "half":
			duplex = "HD"
		}
		recs = append(recs, Record{Section: "interfaces", Fields: []Field{
			{"port", port},
			{"status", status},
			{"dup", duplex},
			{"speed", scalar(valueByKey(state, "actual-port-speed"))},
		}})
	}
	return recs
}

var reAddressKey = regexp.MustCompile(`^address (.+)`)

func tokeniseIPs(doc []any) []Record {
	ipv4, ok := valueByKey(valueByKey(doc, "ip"), "ipv4").([]any)
	if !ok {
		return nil
	}
	var recs []Record
	gateway := ""
	for _, item := range ipv4 {
		title, details := gkv(item)
		if title == "default-gateway" {
			gateway = scalar(details)
			continue
		}
		address := scalar(valueByKey(details, "ip"))
		if address == "" {
			if m := reAddressKey.FindStringSubmatch(title); m != nil {
				address = m[1]
			}
		}
		vlan := ""
		if cvlan := scalar(valueByKey(details, "c-vlan")); cvlan != "" {
			vlan = "c" + cvlan
		}
		recs = append(recs, Record{Section: "ip", Fields: []Field{
			{"address", address},
			{"pref", scalar(valueByKey(details, "prefix-length"))},
			{"vlan", vlan},
			{"gateway", ""},
		}})
	}
	// Attach the default gateway to the address whose subnet contains it.
	if gw, err := netip.ParseAddr(gateway); err == nil {
		for i := range recs {
			cidr := recs[i].Get("address") + "/" + recs[i].Get("pref")
			if prefix, err := netip.ParsePrefix(cidr); err == nil && prefix.Masked().Contains(gw) {
				recs[i].Set("gateway", gateway)
				break
			}
		}
	}
	return recs
}

func tokeniseNode(doc []any) Record {
	common := valueByKey(valueByKey(doc, "radio-common"), "node-config")
	dn := valueByKey(valueByKey(doc, "radio-dn"), "node-config")
	if common == nil && dn == nil {
		return Record{Section: "node"}
	}
	profile := valueByKey(dn, "default-radio-profile")

	polarity := scalar(valueByKey(profile, "polarity"))
	if polarity == "unspecified" {
		polarity = "unspec"
	}
	txGolay := scalar(valueByKey(profile, "tx-golay-index"))
	if txGolay == "unspecified" {
		txGolay = "unspec"
	}
	rxGolay := scalar(valueByKey(profile, "rx-golay-index"))
	if rxGolay == "unspecified" {
		rxGolay = "unspec"
	}

	return Record{Section: "node", Fields: []Field{
		{"popdn", scalar(valueByKey(dn, "is-pop-dn"))},
		{"sync", scalar(valueByKey(dn, "sync-mode"))},
		{"mode", scalar(valueByKey(common, "operation-mode"))},
		{"sched", scalar(valueByKey(common, "link-distance"))},
		{"ptx", scalar(valueByKey(common, "tx-power-control"))},
		{"freq", scalar(valueByKey(profile, "frequency"))},
		{"pol", polarity},
		{"gol", txGolay + "|" + rxGolay},
	}}
}

var reSectorKey = regexp.MustCompile(`^sector (.+)`)

type tgSectorCommon struct {
	index, admin, freqActual, antenna, sync, tempModem, tempRF string
}

type tgSectorDN struct {
	index, freqConfig, polarity, golay string
}

func sectorIndex(title string, details any) string {
	index := scalar(valueByKey(details, "index"))
	if index == "" {
		if m := reSectorKey.FindStringSubmatch(title); m != nil {
			index = m[1]
		}
	}
	return index
}

func tokeniseSectors(doc []any, node Record) []Record {
	var commons []tgSectorCommon
	if list, ok := valueByKey(valueByKey(doc, "radio-common"), "sectors-config").([]any); ok {
		for _, item := range list {
			title, details := gkv(item)
			sec := tgSectorCommon{
				index: sectorIndex(title, details),
				admin: scalar(valueByKey(details, "admin-status")),
			}
			if sec.admin != "down" {
				state := valueByKey(details, "state")
				sec.freqActual = scalar(valueByKey(state, "frequency"))
				sec.antenna = scalar(valueByKey(state, "antenna-mode"))
				sec.sync = scalar(valueByKey(state, "sync-mode"))
				temps := valueByKey(state, "temperatures")
				sec.tempModem = scalar(valueByKey(temps, "modem-temperature"))
				sec.tempRF = scalar(valueByKey(valueByKey(temps, "rf"), "rf-temperature"))
			}
			commons = append(commons, sec)
		}
	}

	var dns []tgSectorDN
	if list, ok := valueByKey(valueByKey(doc, "radio-dn"), "sectors-config").([]any); ok {
		for _, item := range list {
			title, details := gkv(item)
			profile := valueByKey(details, "radio-profile")
			sec := tgSectorDN{
				index:      sectorIndex(title, details),
				freqConfig: scalar(valueByKey(profile, "frequency")),
				polarity:   scalar(valueByKey(profile, "polarity")),
			}
			// Unspecified sector settings inherit the node defaults.
			if strings.EqualFold(sec.freqConfig, "unspecified") {
				sec.freqConfig = node.Get("freq")
			}
			if strings.EqualFold(sec.polarity, "unspecified") {
				sec.polarity = node.Get("pol")
			}
			txGolay := scalar(valueByKey(profile, "tx-golay-index"))
			rxGolay := scalar(valueByKey(profile, "rx-golay-index"))
			if txGolay == "unspecified" && rxGolay == "unspecified" {
				sec.golay = node.Get("gol")
			} else {
				sec.golay = txGolay + "|" + rxGolay
			}
			dns = append(dns, sec)
		}
	}

	mergeSector := func(common *tgSectorCommon, dn *tgSectorDN) Record {
		rec := Record{Section: "sectors", Fields: []Field{
			{"sec", ""}, {"admin", ""}, {"cfg_f", ""}, {"pol", ""}, {"gol", ""},
			{"act_f", ""}, {"ant", ""}, {"sync", ""}, {"Tmdm", ""}, {"Trf", ""},
		}}
		if common != nil {
			rec.Set("sec", common.index)
			rec.Set("admin", common.admin)
			rec.Set("act_f", common.freqActual)
			rec.Set("ant", common.antenna)
			rec.Set("sync", common.sync)
			rec.Set("Tmdm", common.tempModem)
			rec.Set("Trf", common.tempRF)
		}
		if dn != nil {
			if rec.Get("sec") == "" {
				rec.Set("sec", dn.index)
			}
			rec.Set("cfg_f", dn.freqConfig)
			rec.Set("pol", dn.polarity)
			rec.Set("gol", dn.golay)
		}
		// Flag a live frequency that contradicts the configured one.
		actual, config := rec.Get("act_f"), rec.Get("cfg_f")
		if actual != "" && config != "" {
			if actual == config {
				rec.Set("act_f", actual+" (ok)")
			} else {
				rec.Set("act_f", actual+" (KO!)")
			}
		}
		return rec
	}

	var recs []Record
	seen := map[string]bool{}
	for i := range commons {
		seen[commons[i].index] = true
		var match *tgSectorDN
		for j := range dns {
			if dns[j].index == commons[i].index {
				match = &dns[j]
				break
			}
		}
		recs = append(recs, mergeSector(&commons[i], match))
	}
	for j := range dns {
		if !seen[dns[j].index] {
			recs = append(recs, mergeSector(nil, &dns[j]))
		}
	}
	return recs
}

var (
	reActiveKey       = regexp.MustCompile(`^active (.+)`)
	reDisconnectedKey = regexp.MustCompile(`^disconnected (.+)`)
	reConfiguredKey   = regexp.MustCompile(`^configured (.+)`)
	reLocalSectorKey  = regexp.MustCompile(`^local-sector (.+)`)
	reRemoteSectorKey = regexp.MustCompile(`^remote-sector (.+)`)
)

// secondsToUptime renders a seconds counter as "ddddd:hh:mm:ss".
func secondsToUptime(sec int) string {
	d := sec / 86400
	h := sec % 86400 / 3600
	m := sec % 3600 / 60
	s := sec % 60
	return fmt.Sprintf("%05d:%02d:%02d:%02d", d, h, m, s)
}

func tokeniseLinks(doc []any) []TGLink {
	var commons []TGLink
	if list, ok := valueByKey(valueByKey(doc, "radio-common"), "links").([]any); ok {
		for _, item := range list {
			title, details := gkv(item)
			var link TGLink
			switch {
			case title == "active" || title == "disconnected":
				link.Status = title
				link.Remote = scalar(valueByKey(details, "remote-assigned-name"))
			default:
				if m := reActiveKey.FindStringSubmatch(title); m != nil {
					link.Status, link.Remote = "active", m[1]
				} else if m := reDisconnectedKey.FindStringSubmatch(title); m != nil {
					link.Status, link.Remote = "disconnected", m[1]
				} else {
					continue
				}
			}
			if link.Status == "active" {
				switch v := valueByKey(details, "link-uptime").(type) {
				case string:
					link.Uptime = v
				case int:
					link.Uptime = secondsToUptime(v)
				case nil:
				default:
					link.Uptime = fmt.Sprint(v)
				}
				role := scalar(valueByKey(details, "local-role"))
				if len(role) > 4 {
					role = role[:4]
				}
				link.Role = role
				link.ActLocal = scalar(valueByKey(details, "actual-local-sector-index"))
				link.ActRemote = scalar(valueByKey(details, "actual-remote-sector-index"))
				link.RSSI = scalar(valueByKey(details, "rssi"))
				link.SNR = scalar(valueByKey(details, "snr"))
				link.MCSTx = scalar(valueByKey(details, "mcs-tx"))
				link.MCSRx = scalar(valueByKey(details, "mcs-rx"))
				link.TilesTx = scalar(valueByKey(details, "active-tile-count-tx"))
				link.TilesRx = scalar(valueByKey(details, "active-tile-count-rx"))
				link.PERTx = scalar(valueByKey(details, "tx-per"))
				link.PERRx = scalar(valueByKey(details, "rx-per"))
				link.BeamTx = scalar(valueByKey(details, "beam-index-tx"))
				link.BeamRx = scalar(valueByKey(details, "beam-index-rx"))
			}
			commons = append(commons, link)
		}
	}

	var dns []TGLink
	if list, ok := valueByKey(valueByKey(doc, "radio-dn"), "links").([]any); ok {
		for _, item := range list {
			title, details := gkv(item)
			var link TGLink
			if title == "configured" {
				link.Remote = scalar(valueByKey(details, "remote-assigned-name"))
			} else if m := reConfiguredKey.FindStringSubmatch(title); m != nil {
				link.Remote = m[1]
			} else {
				continue
			}
			link.Admin = scalar(valueByKey(details, "admin-status"))
			switch scalar(valueByKey(details, "responder-node-type")) {
			case "cn":
				link.Type = "cn"
			case "dn":
				link.Type = "dn" + scalar(valueByKey(details, "control-superframe"))
			}
			if items, ok := details.([]any); ok {
				for _, sub := range items {
					subTitle, subDetails := gkv(sub)
					if strings.Contains(subTitle, "local-sector") {
						sector := scalar(valueByKey(subDetails, "index"))
						if sector == "" {
							if m := reLocalSectorKey.FindStringSubmatch(subTitle); m != nil {
								sector = m[1]
							}
						}
						link.CfgLocal += sector
					} else if strings.Contains(subTitle, "remote-sector") {
						sector := scalar(valueByKey(subDetails, "index"))
						if sector == "" {
							if m := reRemoteSectorKey.FindStringSubmatch(subTitle); m != nil {
								sector = m[1]
							}
						}
						link.CfgRemote += sector
					}
				}
			}
			dns = append(dns, link)
		}
	}

	// Pair up the live and configured views by remote name. Links that are
	// only configured come out as disconnected.
	var links []TGLink
	seen := map[string]bool{}
	for _, common := range commons {
		seen[common.Remote] = true
		merged := common
		for _, dn := range dns {
			if dn.Remote == common.Remote {
				merged.Admin = dn.Admin
				merged.Type = dn.Type
				merged.CfgLocal = dn.CfgLocal
				merged.CfgRemote = dn.CfgRemote
				break
			}
		}
		links = append(links, merged)
	}
	for _, dn := range dns {
		if !seen[dn.Remote] {
			dn.Status = "disconnected"
			links = append(links, dn)
		}
	}
	return links
}
