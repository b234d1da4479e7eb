package session

import (
	"github.com/radioscan-network/radioscan/pkg/util"
)

// TunnelDepth returns how many radios deep the session currently is.
// Depth zero means the directly-addressed radio.
func (s *Session) TunnelDepth() int { return len(s.tunnel) }

// TunnelStack returns a copy of the names of the radios tunneled through,
// outermost first.
func (s *Session) TunnelStack() []string {
	if len(s.tunnel) == 0 {
		return nil
	}
	out := make([]string, len(s.tunnel))
	copy(out, s.tunnel)
	return out
}

// TunnelIn hops into the named remote radio through the current one and
// re-identifies. The hop is transactional: if the radio reached does not
// report the expected name, the stack, prompt and identity are restored to
// their pre-hop values and a TunnelError is returned. Commands sent after a
// failed hop still address the radio that was current before the attempt.
func (s *Session) TunnelIn(name string) error {
	if !s.Connected() {
		s.lastErr = util.ErrNotConnected.Error()
		return util.ErrNotConnected
	}

	savedID := s.id
	savedPrompt := s.prompt

	s.log.Debugf("tunneling into %s", name)
	s.Send("connect " + name)
	s.tunnel = append(s.tunnel, savedID.Name)

	if err := s.Identify(); err != nil || s.id.Name != name {
		s.tunnel = s.tunnel[:len(s.tunnel)-1]
		s.id = savedID
		s.prompt = savedPrompt
		s.lastErr = "failed to tunnel into " + name
		s.log.Warn(s.lastErr)
		return util.NewTunnelError(name, util.ErrTunnelFailed)
	}

	s.log = util.WithTarget(s.Target())
	s.log.Debugf("tunneled into %s", name)
	return nil
}

// TunnelOut hops back out to the previous radio in the chain and
// re-identifies. At depth zero it returns ErrTunnelDepth without touching
// the session.
func (s *Session) TunnelOut() error {
	if !s.Connected() {
		s.lastErr = util.ErrNotConnected.Error()
		return util.ErrNotConnected
	}
	if len(s.tunnel) == 0 {
		return util.ErrTunnelDepth
	}

	s.Send("quit")
	s.tunnel = s.tunnel[:len(s.tunnel)-1]
	s.log = util.WithTarget(s.Target())

	if err := s.Identify(); err != nil {
		s.lastErr = "failed to tunnel out: " + err.Error()
		s.log.Warn(s.lastErr)
		return util.NewTunnelError("", err)
	}
	s.log.Debugf("tunneled out to %s", s.id.Name)
	return nil
}
