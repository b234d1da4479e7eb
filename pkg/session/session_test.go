package session

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/radioscan-network/radioscan/pkg/util"
)

func init() {
	util.SetLogOutput(io.Discard)
}

// fakeRadio models one radio's CLI: its prompt, its canned command
// responses, and the remote radios reachable from it via "connect".
type fakeRadio struct {
	prompt    string
	responses map[string]string
	remotes   map[string]*fakeRadio
}

// fakeTransport simulates the interactive terminal of a chain of radios.
// "connect <name>" descends into a remote, "quit" pops back out, and every
// other command is answered from the current radio's response table with
// the command echoed and the prompt appended, the way a real terminal does.
type fakeTransport struct {
	banner  string
	stack   []*fakeRadio
	pending string
	sendErr error
	closed  bool
}

func (t *fakeTransport) current() *fakeRadio { return t.stack[len(t.stack)-1] }

func (t *fakeTransport) Send(line string) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	cmd := strings.TrimSpace(line)

	switch {
	case cmd == "":
		t.pending = "\n" + t.current().prompt
	case strings.HasPrefix(cmd, "connect "):
		name := strings.TrimPrefix(cmd, "connect ")
		if r, ok := t.current().remotes[name]; ok {
			t.stack = append(t.stack, r)
			t.pending = cmd + "\n" + r.prompt
		} else {
			t.pending = cmd + "\nError: node not found\n" + t.current().prompt
		}
	case cmd == "quit" && len(t.stack) > 1:
		t.stack = t.stack[:len(t.stack)-1]
		t.pending = cmd + "\n" + t.current().prompt
	default:
		resp := t.current().responses[cmd]
		t.pending = cmd + "\n" + resp + "\n" + t.current().prompt
	}
	return nil
}

func (t *fakeTransport) Recv(wait time.Duration) (string, error) {
	out := t.pending
	t.pending = ""
	return out, nil
}

func (t *fakeTransport) Ready() bool   { return t.pending != "" }
func (t *fakeTransport) Banner() string { return t.banner }
func (t *fakeTransport) Close() error  { t.closed = true; return nil }

func testParams() Params {
	p := DefaultParams()
	p.SettleTime = 0
	p.ReadTimeout = 10 * time.Millisecond
	p.PromptRetries = 2
	return p
}

func newTestSession(t *testing.T, tr *fakeTransport) *Session {
	t.Helper()
	s := New("10.0.0.1", "admin", "admin",
		WithParams(testParams()),
		WithDialer(func(addr, username, password string, params Params) (Transport, error) {
			return tr, nil
		}))
	return s
}

func TestSendDisconnected(t *testing.T) {
	s := New("10.0.0.1", "admin", "admin", WithParams(testParams()))
	if got := s.Send("show system"); got != "" {
		t.Errorf("Send on disconnected session = %q, want empty", got)
	}
	if s.Connected() {
		t.Error("session reports connected without a transport")
	}
}

func TestStripResponse(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		cmd    string
		prompt string
		want   string
	}{
		{"echo and prompt", "show system\nuptime: 5 days\nradio-7>", "show system", "radio-7>", "uptime: 5 days"},
		{"prompt repeated", "out\nradio-7>radio-7>", "", "radio-7>", "out"},
		{"no prompt given", "show x\ndata\nradio-7>", "show x", "", "data\nradio-7>"},
		{"already stripped", "uptime: 5 days", "", "radio-7>", "uptime: 5 days"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripResponse(tt.raw, tt.cmd, tt.prompt)
			if got != tt.want {
				t.Errorf("StripResponse = %q, want %q", got, tt.want)
			}
			// Stripping again must be a no-op.
			if again := StripResponse(got, "", tt.prompt); again != got {
				t.Errorf("second strip changed %q to %q", got, again)
			}
		})
	}
}

func TestIdentifyViaBanner(t *testing.T) {
	tr := &fakeTransport{
		banner: "EH-1200FX, S/N: F339400327, Ver: 7.6.4 16169",
		stack:  []*fakeRadio{{prompt: "rooftop-east>"}},
	}
	s := newTestSession(t, tr)
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.Identify(); err != nil {
		t.Fatalf("Identify: %v", err)
	}
	id := s.Identity()
	if id.Model != "EH-1200FX" {
		t.Errorf("Model = %q, want EH-1200FX", id.Model)
	}
	if id.Serial != "F339400327" {
		t.Errorf("Serial = %q, want F339400327", id.Serial)
	}
	if id.Software != "7.6.4 16169" {
		t.Errorf("Software = %q, want 7.6.4 16169", id.Software)
	}
	if id.Name != "rooftop-east" {
		t.Errorf("Name = %q, want rooftop-east", id.Name)
	}
	if s.State() != StateIdentified {
		t.Errorf("state = %v, want identified", s.State())
	}
}

func TestIdentifyViaMeshPrompt(t *testing.T) {
	tr := &fakeTransport{
		stack: []*fakeRadio{{prompt: "MH-B100@pop-1>"}},
	}
	s := newTestSession(t, tr)
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.Identify(); err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if id := s.Identity(); id.Model != "MH-B100" || id.Name != "pop-1" {
		t.Errorf("identity = %+v, want MH-B100@pop-1", id)
	}
}

func TestIdentifyInventoryFallback(t *testing.T) {
	// No banner and a plain prompt: identity comes from one inventory query.
	tr := &fakeTransport{
		stack: []*fakeRadio{{
			prompt: "lab-unit>",
			responses: map[string]string{
				"show inventory 1": "inventory 1 desc      : EH-8010FX\ninventory 1 serial    : FA98003219\ninventory 1 sw-rev    : 10.6.2",
			},
		}},
	}
	s := newTestSession(t, tr)
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.Identify(); err != nil {
		t.Fatalf("Identify: %v", err)
	}
	id := s.Identity()
	if id.Model != "EH-8010FX" || id.Serial != "FA98003219" || id.Software != "10.6.2" {
		t.Errorf("identity = %+v, want EH-8010FX/FA98003219/10.6.2", id)
	}
	if id.Name != "lab-unit" {
		t.Errorf("Name = %q, want lab-unit", id.Name)
	}
}

func TestIdentifyUnrecognized(t *testing.T) {
	tr := &fakeTransport{
		banner: "Ubuntu 22.04 LTS",
		stack:  []*fakeRadio{{prompt: "$"}}, // no '>' prompt to be found
	}
	s := newTestSession(t, tr)
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	err := s.Identify()
	if !errors.Is(err, util.ErrUnrecognized) {
		t.Fatalf("Identify error = %v, want ErrUnrecognized", err)
	}
	if s.LastError() == "" {
		t.Error("LastError empty after unrecognized radio")
	}
	if s.State() != StateConnected {
		t.Errorf("state = %v, want connected", s.State())
	}
}

func TestConnectErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		dialErr error
		want    error
	}{
		{"auth", errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none password]"), util.ErrAuthFailed},
		{"refused", errors.New("dial tcp 10.0.0.1:22: connect: connection refused"), util.ErrConnectionRefused},
		{"protocol", errors.New("ssh: handshake failed: EOF"), util.ErrProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("10.0.0.1", "admin", "admin",
				WithParams(testParams()),
				WithDialer(func(addr, username, password string, params Params) (Transport, error) {
					return nil, tt.dialErr
				}))
			err := s.Connect()
			if !errors.Is(err, tt.want) {
				t.Errorf("Connect error = %v, want %v in chain", err, tt.want)
			}
			if s.Connected() {
				t.Error("session connected after dial failure")
			}
			if s.LastError() == "" {
				t.Error("LastError empty after dial failure")
			}
		})
	}
}

func meshChainTransport() *fakeTransport {
	cn := &fakeRadio{prompt: "MH-T200@cn-7>"}
	return &fakeTransport{
		stack: []*fakeRadio{{
			prompt:  "MH-B100@pop-1>",
			remotes: map[string]*fakeRadio{"cn-7": cn},
		}},
	}
}

func TestTunnelInOut(t *testing.T) {
	s := newTestSession(t, meshChainTransport())
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.Identify(); err != nil {
		t.Fatalf("Identify: %v", err)
	}

	if err := s.TunnelIn("cn-7"); err != nil {
		t.Fatalf("TunnelIn: %v", err)
	}
	if s.TunnelDepth() != 1 {
		t.Errorf("depth = %d, want 1", s.TunnelDepth())
	}
	if id := s.Identity(); id.Name != "cn-7" || id.Model != "MH-T200" {
		t.Errorf("identity after tunnel = %+v, want MH-T200@cn-7", id)
	}
	if got := s.TunnelStack(); len(got) != 1 || got[0] != "pop-1" {
		t.Errorf("stack = %v, want [pop-1]", got)
	}
	if !strings.HasSuffix(s.Target(), ":cn-7") {
		t.Errorf("Target = %q, want :cn-7 suffix", s.Target())
	}

	if err := s.TunnelOut(); err != nil {
		t.Fatalf("TunnelOut: %v", err)
	}
	if s.TunnelDepth() != 0 {
		t.Errorf("depth after out = %d, want 0", s.TunnelDepth())
	}
	if id := s.Identity(); id.Name != "pop-1" {
		t.Errorf("identity after out = %+v, want pop-1", id)
	}
}

func TestTunnelInRollback(t *testing.T) {
	s := newTestSession(t, meshChainTransport())
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.Identify(); err != nil {
		t.Fatalf("Identify: %v", err)
	}
	before := s.Identity()

	err := s.TunnelIn("no-such-node")
	if !errors.Is(err, util.ErrTunnelFailed) {
		t.Fatalf("TunnelIn error = %v, want ErrTunnelFailed", err)
	}
	if s.TunnelDepth() != 0 {
		t.Errorf("depth after failed tunnel = %d, want 0", s.TunnelDepth())
	}
	if got := s.Identity(); got != before {
		t.Errorf("identity after failed tunnel = %+v, want %+v", got, before)
	}
	if s.LastError() == "" {
		t.Error("LastError empty after failed tunnel")
	}
	// Session must remain usable against the original radio.
	if got := s.SendKeepPrompt(""); !strings.Contains(got, "MH-B100@pop-1>") {
		t.Errorf("post-rollback prompt exchange = %q, want original prompt", got)
	}
}

func TestTunnelOutAtTop(t *testing.T) {
	s := newTestSession(t, meshChainTransport())
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.Identify(); err != nil {
		t.Fatalf("Identify: %v", err)
	}
	before := s.Identity()

	if err := s.TunnelOut(); !errors.Is(err, util.ErrTunnelDepth) {
		t.Fatalf("TunnelOut at depth 0 = %v, want ErrTunnelDepth", err)
	}
	if got := s.Identity(); got != before {
		t.Errorf("identity changed by failed TunnelOut: %+v", got)
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	tr := meshChainTransport()
	s := newTestSession(t, tr)
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.Identify(); err != nil {
		t.Fatalf("Identify: %v", err)
	}

	s.Disconnect()
	if !tr.closed {
		t.Error("transport not closed")
	}
	if s.Connected() || s.State() != StateDisconnected {
		t.Error("session still connected after Disconnect")
	}
	if !s.Identity().Empty() {
		t.Errorf("identity survives Disconnect: %+v", s.Identity())
	}
	s.Disconnect() // second call must be a no-op
	if got := s.Send("show system"); got != "" {
		t.Errorf("Send after Disconnect = %q, want empty", got)
	}
}
