// Package session manages one CLI session with one radio over an SSH
// virtual terminal: connecting, deriving the radio's identity from its
// banner and prompt, sending commands, and tunneling into remote radios
// reachable only through the connected one.
package session

import (
	"errors"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/radioscan-network/radioscan/pkg/util"
)

// State is the connection state of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected // transport up, radio not identified
	StateIdentified
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateIdentified:
		return "identified"
	default:
		return "unknown"
	}
}

// Session is an exclusive CLI session with one radio. It is owned by a
// single worker for its lifetime and must not be shared across goroutines.
type Session struct {
	Addr     string
	Username string
	Password string

	params Params
	rules  *IdentityRules
	dial   Dialer

	tr     Transport
	state  State
	banner string
	prompt string
	id     Identity
	tunnel []string // names of radios tunneled through, outermost first
	lastErr string

	log *logrus.Entry
}

// Option configures a Session.
type Option func(*Session)

// WithParams overrides the default timeouts and retry counts.
func WithParams(p Params) Option {
	return func(s *Session) { s.params = p }
}

// WithIdentityRules overrides the default identity pattern table.
func WithIdentityRules(r *IdentityRules) Option {
	return func(s *Session) { s.rules = r }
}

// WithDialer overrides the transport dialer. Used by tests.
func WithDialer(d Dialer) Option {
	return func(s *Session) { s.dial = d }
}

// New creates a disconnected session for the given radio.
func New(addr, username, password string, opts ...Option) *Session {
	s := &Session{
		Addr:     addr,
		Username: username,
		Password: password,
		params:   DefaultParams(),
		rules:    DefaultIdentityRules(),
		dial:     DialSSH,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = util.WithTarget(s.Target())
	return s
}

// Target returns the logging label for the session: "user@addr", or
// "user@addr:name" when tunneled into a remote radio.
func (s *Session) Target() string {
	if len(s.tunnel) > 0 {
		return s.Username + "@" + s.Addr + ":" + s.id.Name
	}
	return s.Username + "@" + s.Addr
}

// State returns the current connection state.
func (s *Session) State() State { return s.state }

// Identity returns the derived identity of the radio currently at the end
// of the tunnel chain (the directly-addressed radio at depth zero).
func (s *Session) Identity() Identity { return s.id }

// Banner returns the SSH banner received at connect time, if any.
func (s *Session) Banner() string { return s.banner }

// Prompt returns the derived CLI prompt, if any.
func (s *Session) Prompt() string { return s.prompt }

// LastError returns the most recent failure description, or "".
func (s *Session) LastError() string { return s.lastErr }

// Connected reports whether the transport is up.
func (s *Session) Connected() bool { return s.state >= StateConnected && s.tr != nil }

// Connect establishes the SSH transport and interactive terminal and reads
// the banner. On failure the session stays Disconnected with LastError set;
// the returned error carries the failure class (auth, refused, timeout,
// protocol) for callers that branch on it.
func (s *Session) Connect() error {
	if s.Connected() {
		return nil
	}
	s.lastErr = ""
	s.state = StateConnecting
	s.log.Debug("connecting")

	tr, err := s.dial(s.Addr, s.Username, s.Password, s.params)
	if err != nil {
		err = classifyDialError(err)
		s.lastErr = err.Error()
		s.state = StateDisconnected
		s.log.Errorf("connect failed: %v", err)
		return err
	}

	s.tr = tr
	s.banner = tr.Banner()
	s.state = StateConnected
	s.log.Debug("connected, shell terminal established")
	return nil
}

// classifyDialError maps transport failures onto the session error
// taxonomy while keeping the underlying cause in the chain.
func classifyDialError(err error) error {
	var netErr net.Error
	switch {
	case strings.Contains(err.Error(), "unable to authenticate"),
		strings.Contains(err.Error(), "permission denied"):
		return errors.Join(util.ErrAuthFailed, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return errors.Join(util.ErrTransportTimeout, err)
	case strings.Contains(err.Error(), "connection refused"):
		return errors.Join(util.ErrConnectionRefused, err)
	default:
		return errors.Join(util.ErrProtocol, err)
	}
}

// Identify derives the radio's identity from the banner and/or prompt.
// When the banner is absent it falls back to one inventory query; some
// firmware/hardware combinations do not send a banner at all. If nothing
// is derivable the session stays Connected with ErrUnrecognized.
func (s *Session) Identify() error {
	if !s.Connected() {
		s.lastErr = util.ErrNotConnected.Error()
		return util.ErrNotConnected
	}
	s.elicitPrompt()
	s.deriveIdentity()
	if s.id.Model == "" && s.id.Name == "" {
		s.lastErr = "not a recognized radio"
		return util.ErrUnrecognized
	}
	s.state = StateIdentified
	return nil
}

// elicitPrompt sends empty lines until the CLI prompt is echoed back, up
// to the configured retry bound.
func (s *Session) elicitPrompt() {
	s.prompt = ""
	for retry := 0; retry < s.params.PromptRetries; retry++ {
		out := s.send("", false)
		if m := s.rules.Prompt.FindStringSubmatch(out); m != nil {
			s.prompt = m[1]
			return
		}
	}
}

// deriveIdentity populates the identity fields from banner and prompt.
func (s *Session) deriveIdentity() {
	s.id = Identity{}

	if s.banner != "" {
		s.id = s.rules.parseBanner(s.banner)
		if s.id.Model != "" {
			s.log.Debugf("identified via banner as model %s sn %s sw %s", s.id.Model, s.id.Serial, s.id.Software)
		} else {
			s.lastErr = "may not be a radio - banner: '" + s.banner + "'"
			s.log.Info(s.lastErr)
		}
	}

	if s.prompt == "" {
		return
	}
	if m := s.rules.PromptMesh.FindStringSubmatch(s.prompt); m != nil {
		s.id.Model = m[1]
		s.id.Name = m[2]
		s.log.Debugf("identified via prompt as %s@%s", s.id.Model, s.id.Name)
		return
	}
	if m := s.rules.PromptPlain.FindStringSubmatch(s.prompt); m != nil {
		if s.id.Model != "" {
			// Banner carried the model; prompt carries the name.
			s.id.Name = m[1]
			return
		}
		// Banner absent: fall back to one inventory query.
		response := s.send(s.rules.InventoryCommand, true)
		inv := s.rules.parseInventory(response)
		if inv.Model != "" {
			s.id = inv
			s.id.Name = m[1]
			s.log.Debugf("identified via inventory as %s@%s", s.id.Model, s.id.Name)
			return
		}
		s.lastErr = "may not be a radio - prompt: '" + s.prompt + "'"
		s.log.Info(s.lastErr)
		return
	}
	s.lastErr = "may not be a radio - prompt: '" + s.prompt + "'"
	s.log.Info(s.lastErr)
}

// Send delivers one command and returns its output with the echoed command
// and every trailing prompt occurrence stripped. An empty string is the
// uniform "no answer" signal: transport failure, read timeout, or a
// disconnected session all yield "" and never an error or panic.
func (s *Session) Send(cmd string) string {
	return s.send(cmd, true)
}

// SendKeepPrompt is Send without prompt stripping, used when the prompt
// itself is the interesting output.
func (s *Session) SendKeepPrompt(cmd string) string {
	return s.send(cmd, false)
}

func (s *Session) send(cmd string, stripPrompt bool) string {
	cmd = strings.TrimSpace(cmd)
	if !s.Connected() {
		s.log.Warnf("command '%s' not sent: session disconnected", cmd)
		return ""
	}

	// Drain residual output from a previous exchange.
	if s.tr.Ready() {
		s.tr.Recv(0)
	}

	if err := s.tr.Send(cmd + "\n"); err != nil {
		s.log.Warnf("command '%s' may not have been sent: %v", cmd, err)
		return ""
	}

	time.Sleep(s.params.SettleTime)
	raw, err := s.tr.Recv(s.params.ReadTimeout)
	if err != nil {
		s.log.Warnf("command '%s' read failed: %v", cmd, err)
		return ""
	}
	if raw == "" {
		s.log.Warnf("no response to command '%s'", cmd)
		return ""
	}
	if cmd != "" {
		s.log.Debugf("sent command: '%s'", cmd)
	}

	prompt := ""
	if stripPrompt {
		prompt = s.prompt
	}
	return StripResponse(raw, cmd, prompt)
}

// StripResponse removes the echoed command and, when prompt is non-empty,
// every occurrence of the prompt from the raw terminal output. It is
// idempotent: stripping an already-stripped response is a no-op.
func StripResponse(raw, cmd, prompt string) string {
	out := raw
	if cmd != "" {
		out = strings.Replace(out, cmd, "", 1)
	}
	if prompt != "" {
		for strings.Contains(out, prompt) {
			out = strings.ReplaceAll(out, prompt, "")
		}
	}
	return strings.TrimSpace(out)
}

// Disconnect closes the transport and resets all derived state. It is
// idempotent and safe to call in any state.
func (s *Session) Disconnect() {
	if s.tr != nil {
		s.tr.Close()
		s.tr = nil
		s.log.Debug("disconnected")
	}
	s.banner = ""
	s.prompt = ""
	s.id = Identity{}
	s.tunnel = nil
	s.state = StateDisconnected
	s.log = util.WithTarget(s.Target())
}
