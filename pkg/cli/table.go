package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

// Table renders column-aligned terminal output, used for run summaries
// and settings listings. Nothing is printed until the first row arrives,
// so a run that found no radios stays silent instead of emitting a bare
// header.
type Table struct {
	w       *tabwriter.Writer
	headers []string
	prefix  string
	started bool
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{
		w:       tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0),
		headers: headers,
	}
}

// WithPrefix indents every line (headers, divider, rows) with prefix,
// for nesting a table under a surrounding report.
func (t *Table) WithPrefix(prefix string) *Table {
	t.prefix = prefix
	return t
}

// Row adds one row. The header and divider lines are emitted ahead of
// the first row.
func (t *Table) Row(values ...string) {
	t.start()
	fmt.Fprintln(t.w, t.prefix+strings.Join(values, "\t"))
}

// Flush writes the buffered table. A table that never saw a row writes
// nothing.
func (t *Table) Flush() {
	if !t.started {
		return
	}
	t.w.Flush()
}

func (t *Table) start() {
	if t.started {
		return
	}
	t.started = true
	fmt.Fprintln(t.w, t.prefix+strings.Join(t.headers, "\t"))
	dividers := make([]string, len(t.headers))
	for i, h := range t.headers {
		dividers[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(t.w, t.prefix+strings.Join(dividers, "\t"))
}
