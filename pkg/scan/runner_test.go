package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/radioscan-network/radioscan/pkg/credentials"
	"github.com/radioscan-network/radioscan/pkg/family"
	"github.com/radioscan-network/radioscan/pkg/session"
	"github.com/radioscan-network/radioscan/pkg/util"
)

func init() {
	util.SetLogOutput(io.Discard)
}

// scriptedTransport answers like a point-to-point radio terminal: banner
// at connect, prompt on empty lines, canned responses otherwise.
type scriptedTransport struct {
	banner    string
	prompt    string
	responses map[string]string
	pending   string
}

func (t *scriptedTransport) Send(line string) error {
	cmd := strings.TrimSpace(line)
	if cmd == "" {
		t.pending = "\n" + t.prompt
		return nil
	}
	t.pending = cmd + "\n" + t.responses[cmd] + "\n" + t.prompt
	return nil
}

func (t *scriptedTransport) Recv(wait time.Duration) (string, error) {
	out := t.pending
	t.pending = ""
	return out, nil
}

func (t *scriptedTransport) Ready() bool    { return t.pending != "" }
func (t *scriptedTransport) Banner() string { return t.banner }
func (t *scriptedTransport) Close() error   { return nil }

// recordSink captures every flushed batch.
type recordSink struct {
	mu      sync.Mutex
	batches [][]DeviceResult
	closed  bool
}

func (s *recordSink) WriteBatch(ctx context.Context, batch int, results []DeviceResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, results)
	return nil
}

func (s *recordSink) Close() error {
	s.closed = true
	return nil
}

func testDialer(down map[string]bool) session.Dialer {
	return func(addr, username, password string, params session.Params) (session.Transport, error) {
		if down[addr] {
			return nil, errors.New("dial tcp " + addr + ":22: connect: connection refused")
		}
		return &scriptedTransport{
			banner: "EH-1200FX, S/N: F100200300, Ver: 7.6.4",
			prompt: "radio-" + addr + ">",
		}, nil
	}
}

func fastParams() session.Params {
	p := session.DefaultParams()
	p.SettleTime = 0
	p.ReadTimeout = 5 * time.Millisecond
	p.PromptRetries = 2
	return p
}

func TestRunBatchesAndFlush(t *testing.T) {
	creds := credentials.Parse("10.0.0.1\n10.0.0.2\n10.0.0.3")
	sink := &recordSink{}
	r := NewRunner(Options{
		Action:      ActionScan,
		BatchSize:   2,
		Concurrency: 2,
		IncludeEH:   true,
		Session:     fastParams(),
	}, sink, WithDialer(testDialer(map[string]bool{"10.0.0.2": true})))

	if err := r.Run(context.Background(), creds); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.batches) != 2 {
		t.Fatalf("got %d batch flushes, want 2", len(sink.batches))
	}
	if len(sink.batches[0]) != 2 || len(sink.batches[1]) != 1 {
		t.Fatalf("batch sizes = %d,%d, want 2,1",
			len(sink.batches[0]), len(sink.batches[1]))
	}

	// Results stay in credential order regardless of worker scheduling.
	first := sink.batches[0]
	if first[0].Addr != "10.0.0.1" || first[1].Addr != "10.0.0.2" {
		t.Errorf("batch order = %s,%s", first[0].Addr, first[1].Addr)
	}

	if first[0].Family != family.EH || first[0].Model != "EH-1200FX" {
		t.Errorf("reachable radio = %+v", first[0])
	}
	if first[0].Serial != "F100200300" {
		t.Errorf("serial = %q", first[0].Serial)
	}

	// The unreachable radio still yields a result row.
	if first[1].Family != family.Unknown {
		t.Errorf("unreachable radio family = %v", first[1].Family)
	}
	if first[1].Error == "" {
		t.Error("unreachable radio has no error")
	}
}

// eventLog records dial and flush events across goroutines so a test can
// assert on their interleaving.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

type orderSink struct {
	log *eventLog
}

func (s *orderSink) WriteBatch(ctx context.Context, batch int, results []DeviceResult) error {
	s.log.add(fmt.Sprintf("flush %d", batch))
	return nil
}

func (s *orderSink) Close() error { return nil }

func TestRunFlushBarrier(t *testing.T) {
	// A batch must be flushed before any radio of the next batch is
	// dialed, and only after all of its own radios finished.
	log := &eventLog{}
	dialer := func(addr, username, password string, params session.Params) (session.Transport, error) {
		log.add("dial " + addr)
		return testDialer(nil)(addr, username, password, params)
	}
	r := NewRunner(Options{
		Action:      ActionScan,
		BatchSize:   2,
		Concurrency: 2,
		IncludeEH:   true,
		Session:     fastParams(),
	}, &orderSink{log: log}, WithDialer(dialer))

	creds := credentials.Parse("10.0.0.1\n10.0.0.2\n10.0.0.3\n10.0.0.4")
	if err := r.Run(context.Background(), creds); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(log.events) != 6 {
		t.Fatalf("events = %v, want 4 dials and 2 flushes", log.events)
	}
	pos := map[string]int{}
	for i, e := range log.events {
		pos[e] = i
	}
	flush0, ok := pos["flush 0"]
	if !ok {
		t.Fatalf("batch 0 never flushed: %v", log.events)
	}
	for _, e := range []string{"dial 10.0.0.1", "dial 10.0.0.2"} {
		if pos[e] > flush0 {
			t.Errorf("%s after its batch flush: %v", e, log.events)
		}
	}
	for _, e := range []string{"dial 10.0.0.3", "dial 10.0.0.4"} {
		if pos[e] < flush0 {
			t.Errorf("%s before the previous batch flushed: %v", e, log.events)
		}
	}
	if pos["flush 1"] < flush0 {
		t.Errorf("flushes out of order: %v", log.events)
	}
}

func TestRunSequential(t *testing.T) {
	creds := credentials.Parse("10.0.0.1\n10.0.0.2")
	sink := &recordSink{}
	r := NewRunner(Options{
		Action:      ActionScan,
		BatchSize:   10,
		Concurrency: 1,
		IncludeEH:   true,
		Session:     fastParams(),
	}, sink, WithDialer(testDialer(nil)))

	if err := r.Run(context.Background(), creds); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.batches) != 1 || len(sink.batches[0]) != 2 {
		t.Fatalf("batches = %+v, want one batch of 2", sink.batches)
	}
}

func TestRunScriptAction(t *testing.T) {
	dialer := func(addr, username, password string, params session.Params) (session.Transport, error) {
		return &scriptedTransport{
			banner: "EH-1200FX, S/N: F1, Ver: 7.6.4",
			prompt: "radio>",
			responses: map[string]string{
				"show system": "system uptime : 0001:00:00:00",
			},
		}, nil
	}
	sink := &recordSink{}
	r := NewRunner(Options{
		Action:      ActionScript,
		Script:      []string{"show system"},
		BatchSize:   10,
		Concurrency: 1,
		IncludeEH:   true,
		Session:     fastParams(),
	}, sink, WithDialer(dialer))

	if err := r.Run(context.Background(), credentials.Parse("10.0.0.1")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := sink.batches[0][0]
	if len(res.Commands) != 1 || !res.Commands[0].Success {
		t.Fatalf("commands = %+v", res.Commands)
	}
	if res.Commands[0].Response != "system uptime : 0001:00:00:00" {
		t.Errorf("response = %q", res.Commands[0].Response)
	}
}

func TestRunExcludedFamily(t *testing.T) {
	sink := &recordSink{}
	r := NewRunner(Options{
		Action:      ActionScript,
		Script:      []string{"show system"},
		BatchSize:   10,
		Concurrency: 1,
		IncludeEH:   false, // radio is identified but the script must not run
		Session:     fastParams(),
	}, sink, WithDialer(testDialer(nil)))

	if err := r.Run(context.Background(), credentials.Parse("10.0.0.1")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	res := sink.batches[0][0]
	if res.Family != family.EH {
		t.Errorf("family = %v, excluded radios must still be identified", res.Family)
	}
	if len(res.Commands) != 0 {
		t.Errorf("script ran against excluded family: %+v", res.Commands)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &recordSink{}
	r := NewRunner(Options{
		Action:    ActionScan,
		BatchSize: 1,
		Session:   fastParams(),
	}, sink, WithDialer(testDialer(nil)))

	err := r.Run(ctx, credentials.Parse("10.0.0.1\n10.0.0.2"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	if len(sink.batches) != 0 {
		t.Errorf("cancelled run flushed %d batches", len(sink.batches))
	}
}

func TestLastNonCommandError(t *testing.T) {
	tests := []struct {
		name string
		errs []string
		want string
	}{
		{"empty", nil, ""},
		{"plain", []string{"no route to host"}, "no route to host"},
		{"command errors skipped", []string{"auth failed", "Command: 'x' to 'y' failed"}, "auth failed"},
		{"only command errors", []string{"Command: 'x' to 'y' failed"}, ""},
		{"latest wins", []string{"first", "second"}, "second"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lastNonCommandError(tt.errs); got != tt.want {
				t.Errorf("lastNonCommandError(%v) = %q, want %q", tt.errs, got, tt.want)
			}
		})
	}
}
