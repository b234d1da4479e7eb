package session

import "time"

// Params bounds every blocking operation on a session. The terminal stream
// has no framing, so all waits are fixed windows rather than completions;
// a hung radio can cost at most the sum of these timeouts per command.
type Params struct {
	// Port is the SSH port on the radio.
	Port int

	// TCPTimeout bounds the TCP connect and SSH handshake.
	TCPTimeout time.Duration

	// SettleTime is how long to wait after writing a command before the
	// first read, giving the radio time to produce output.
	SettleTime time.Duration

	// ReadTimeout bounds each read for buffered output.
	ReadTimeout time.Duration

	// PromptRetries is how many empty lines to send when eliciting the
	// CLI prompt.
	PromptRetries int

	// TerminalHeight is the requested PTY row count. Tall terminals avoid
	// pagination of long show outputs.
	TerminalHeight int
}

// DefaultParams returns the field-proven timeout set.
func DefaultParams() Params {
	return Params{
		Port:           22,
		TCPTimeout:     5500 * time.Millisecond,
		SettleTime:     time.Second,
		ReadTimeout:    time.Second,
		PromptRetries:  5,
		TerminalHeight: 5000,
	}
}
