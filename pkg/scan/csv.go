package scan

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/radioscan-network/radioscan/pkg/family"
	"github.com/radioscan-network/radioscan/pkg/util"
)

// maxResponseLen bounds command responses in the script results file;
// full responses would make the CSV unreadable.
const maxResponseLen = 50

// CSVSink writes batch results as CSV files under one directory. Every
// filename is prefixed with the flush timestamp and the batch number, so
// consecutive batches and consecutive runs never clobber each other. The
// timestamp alone is not enough: a batch of fast failures flushes in well
// under a second.
type CSVSink struct {
	dir string
	now func() time.Time
}

// NewCSVSink creates the output directory if needed.
func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &CSVSink{dir: dir, now: time.Now}, nil
}

func (c *CSVSink) WriteBatch(ctx context.Context, batch int, results []DeviceResult) error {
	prefix := fmt.Sprintf("%s_b%03d", c.now().Format("20060102_150405"), batch)

	if err := c.writeScan(prefix, results); err != nil {
		return err
	}
	if err := c.writeCommands(prefix, results); err != nil {
		return err
	}
	if err := c.writeErrors(prefix, results); err != nil {
		return err
	}
	for _, f := range []family.Family{family.EH, family.BU, family.TU} {
		if err := c.writeFamilyMetrics(prefix, f, results); err != nil {
			return err
		}
	}
	return c.writeMeshMetrics(prefix, results)
}

// Close is a no-op: every batch is fully flushed when written.
func (c *CSVSink) Close() error { return nil }

// writeFile writes one CSV, or nothing at all when there are no rows.
func (c *CSVSink) writeFile(name string, header []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	path := filepath.Join(c.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	util.Debugf("wrote %d rows to %s", len(rows), path)
	return f.Close()
}

func (c *CSVSink) writeScan(prefix string, results []DeviceResult) error {
	header := []string{"ip_addr", "radio_type", "model", "name", "sw", "sn", "last_non_cmd_error"}
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		family := ""
		if res.Family.Radio() {
			family = string(res.Family)
		}
		rows = append(rows, []string{
			res.Addr, family, res.Model, res.Name, res.Software, res.Serial, res.Error,
		})
	}
	return c.writeFile(prefix+"_scan_results.csv", header, rows)
}

func (c *CSVSink) writeCommands(prefix string, results []DeviceResult) error {
	header := []string{"target_id", "command", "success", "response"}
	var rows [][]string
	for _, res := range results {
		for _, cmd := range res.Commands {
			response := truncateResponse(cmd.Response)
			rows = append(rows, []string{
				cmd.TargetID, cmd.Command, strconv.FormatBool(cmd.Success), response,
			})
		}
	}
	return c.writeFile(prefix+"_cmds_results.csv", header, rows)
}

// truncateResponse caps a response at maxResponseLen bytes without
// splitting a multi-byte character.
func truncateResponse(response string) string {
	if len(response) <= maxResponseLen {
		return response
	}
	cut := maxResponseLen
	for cut > 0 && !utf8.RuneStart(response[cut]) {
		cut--
	}
	return response[:cut] + "..."
}

func (c *CSVSink) writeErrors(prefix string, results []DeviceResult) error {
	header := []string{"ip_addr", "error"}
	var rows [][]string
	for _, res := range results {
		for _, e := range res.Errors {
			rows = append(rows, []string{res.Addr, e})
		}
	}
	return c.writeFile(prefix+"_errors.csv", header, rows)
}

// writeFamilyMetrics writes the single merged record per radio of the
// older dialects, one file per family.
func (c *CSVSink) writeFamilyMetrics(prefix string, f family.Family, results []DeviceResult) error {
	var header []string
	var rows [][]string
	for _, res := range results {
		if res.Family != f {
			continue
		}
		for _, row := range res.Metrics {
			if header == nil {
				header = row.Record.Keys()
			}
			rows = append(rows, row.Record.Values())
		}
	}
	name := fmt.Sprintf("%s_show_%s.csv", prefix, strings.ToLower(string(f)))
	return c.writeFile(name, header, rows)
}

// writeMeshMetrics splits mesh metric rows into one file per dump
// section, each row labeled with the flush date, the route it was
// collected over, and the reporting radio's name.
func (c *CSVSink) writeMeshMetrics(prefix string, results []DeviceResult) error {
	type sectionFile struct {
		header []string
		rows   [][]string
	}
	sections := map[string]*sectionFile{}
	order := []string{}
	date := c.now().Format("20060102_150405")

	for _, res := range results {
		if res.Family != family.TG {
			continue
		}
		for _, row := range res.Metrics {
			sf := sections[row.Record.Section]
			if sf == nil {
				sf = &sectionFile{
					header: append([]string{"date", "route", "name"}, row.Record.Keys()...),
				}
				sections[row.Record.Section] = sf
				order = append(order, row.Record.Section)
			}
			sf.rows = append(sf.rows, append([]string{date, row.Target, row.Name}, row.Record.Values()...))
		}
	}

	for _, section := range order {
		sf := sections[section]
		name := fmt.Sprintf("%s_show_tg_%s.csv", prefix, section)
		if err := c.writeFile(name, sf.header, sf.rows); err != nil {
			return err
		}
	}
	return nil
}
