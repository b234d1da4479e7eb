package cli

import (
	"os"
	"strings"
	"testing"
)

// captureStdout runs fn with os.Stdout redirected to a pipe and returns
// everything fn wrote.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()
	w.Close()

	out := make([]byte, 0, 1024)
	buf := make([]byte, 1024)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			break
		}
	}
	return string(out)
}

func TestTable_Basic(t *testing.T) {
	out := captureStdout(t, func() {
		tbl := NewTable("NAME", "VALUE")
		tbl.Row("alpha", "1")
		tbl.Row("beta", "22")
		tbl.Flush()
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4 (header, divider, 2 rows):\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "NAME") || !strings.Contains(lines[0], "VALUE") {
		t.Errorf("header line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "----") {
		t.Errorf("divider line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "alpha") {
		t.Errorf("first row = %q", lines[2])
	}
}

func TestTable_EmptyProducesNoOutput(t *testing.T) {
	out := captureStdout(t, func() {
		tbl := NewTable("NAME", "VALUE")
		tbl.Flush()
	})
	if out != "" {
		t.Errorf("empty table wrote %q, want nothing", out)
	}
}

func TestTable_Prefix(t *testing.T) {
	out := captureStdout(t, func() {
		tbl := NewTable("COL").WithPrefix("  ")
		tbl.Row("x")
		tbl.Flush()
	})
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if !strings.HasPrefix(line, "  ") {
			t.Errorf("line %q missing prefix", line)
		}
	}
}
