package session

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/radioscan-network/radioscan/pkg/util"
)

// Transport is one interactive virtual terminal to a radio. The stream is
// raw: there is no framing between one command's output and the next, so
// callers pair every write with a bounded read.
type Transport interface {
	// Send writes one line of input to the terminal.
	Send(line string) error

	// Recv returns whatever terminal output is available, waiting up to
	// wait for the first byte. It returns an empty string if nothing
	// arrived within the window.
	Recv(wait time.Duration) (string, error)

	// Ready reports whether buffered output is already available.
	Ready() bool

	// Banner returns the pre-authentication banner, if the radio sent one.
	Banner() string

	Close() error
}

// Dialer opens a Transport to addr using the given login.
type Dialer func(addr, username, password string, params Params) (Transport, error)

// sshTransport drives an SSH interactive shell with a requested PTY.
// Output is pumped into an internal buffer by a reader goroutine so Recv
// can poll with a deadline instead of blocking on the stream.
type sshTransport struct {
	client *ssh.Client
	sess   *ssh.Session
	stdin  io.WriteCloser
	banner string

	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

// DialSSH is the production Dialer. It connects with password
// authentication, requests a vt100 PTY and starts a shell.
func DialSSH(addr, username, password string, params Params) (Transport, error) {
	t := &sshTransport{}

	config := &ssh.ClientConfig{
		User: username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
		},
		// Radios ship with per-unit host keys that are never distributed,
		// so verification is not possible in the field.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         params.TCPTimeout,
		BannerCallback: func(message string) error {
			t.banner = strings.TrimSpace(message)
			return nil
		},
	}

	client, err := ssh.Dial("tcp", fmt.Sprintf("%s:%d", addr, params.Port), config)
	if err != nil {
		return nil, util.NewTransportError("dial", addr, err)
	}
	t.client = client

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, util.NewTransportError("shell", addr, err)
	}
	t.sess = sess

	// The CLI only behaves interactively with a PTY. A tall terminal avoids
	// pagination of long show outputs.
	if err := sess.RequestPty("vt100", params.TerminalHeight, 80, ssh.TerminalModes{}); err != nil {
		sess.Close()
		client.Close()
		return nil, util.NewTransportError("shell", addr, err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, util.NewTransportError("shell", addr, err)
	}
	t.stdin = stdin

	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, util.NewTransportError("shell", addr, err)
	}

	if err := sess.Shell(); err != nil {
		sess.Close()
		client.Close()
		return nil, util.NewTransportError("shell", addr, err)
	}

	go t.pump(stdout)

	return t, nil
}

// pump copies shell output into the receive buffer until the stream ends.
func (t *sshTransport) pump(stdout io.Reader) {
	chunk := make([]byte, 32*1024)
	for {
		n, err := stdout.Read(chunk)
		if n > 0 {
			t.mu.Lock()
			t.buf.Write(chunk[:n])
			t.mu.Unlock()
		}
		if err != nil {
			t.mu.Lock()
			t.closed = true
			t.mu.Unlock()
			return
		}
	}
}

func (t *sshTransport) Send(line string) error {
	if _, err := io.WriteString(t.stdin, line); err != nil {
		return util.NewTransportError("write", t.client.RemoteAddr().String(), err)
	}
	return nil
}

func (t *sshTransport) Recv(wait time.Duration) (string, error) {
	deadline := time.Now().Add(wait)
	for {
		t.mu.Lock()
		if t.buf.Len() > 0 {
			out := t.buf.String()
			t.buf.Reset()
			t.mu.Unlock()
			return out, nil
		}
		closed := t.closed
		t.mu.Unlock()

		if closed {
			return "", util.NewTransportError("read", t.client.RemoteAddr().String(), io.EOF)
		}
		if !time.Now().Before(deadline) {
			return "", nil
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func (t *sshTransport) Ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.Len() > 0
}

func (t *sshTransport) Banner() string {
	return t.banner
}

func (t *sshTransport) Close() error {
	if t.sess != nil {
		t.sess.Close()
	}
	return t.client.Close()
}
