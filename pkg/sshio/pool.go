// Package sshio talks to real devices over SSH. All device conversations
// go through a bounded pool so a large project cannot open an unbounded
// number of sessions at once.
package sshio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/netval-app/netval/pkg/util"
	"github.com/netval-app/netval/pkg/vault"
)

const (
	// ConnectTimeout bounds the TCP+SSH handshake.
	ConnectTimeout = 15 * time.Second
	// CommandTimeout bounds a single show command.
	CommandTimeout = 30 * time.Second
	// lineSettle is the pause between config lines in an interactive
	// shell, giving slow control planes time to accept each one.
	lineSettle = 250 * time.Millisecond

	// DefaultMaxConnections caps concurrent device sessions when the
	// settings file does not say otherwise.
	DefaultMaxConnections = 5
)

// Conn is one live device conversation. Run executes a single show
// command; Configure enters configuration mode, applies lines one at a
// time, then saves.
type Conn interface {
	Run(ctx context.Context, cmd string) (string, error)
	Configure(ctx context.Context, lines []string, onLine func(string)) error
	Close() error
}

// Dialer opens a Conn to addr with the given credential material. Tests
// substitute a fake; production uses DialSSH.
type Dialer func(ctx context.Context, addr string, cred vault.Material) (Conn, error)

// Pool bounds concurrent SSH sessions with a semaphore.
type Pool struct {
	sem  chan struct{}
	dial Dialer
}

// NewPool creates a pool of at most max concurrent sessions. A nil dial
// uses the real SSH dialer.
func NewPool(max int, dial Dialer) *Pool {
	if max <= 0 {
		max = DefaultMaxConnections
	}
	if dial == nil {
		dial = DialSSH
	}
	return &Pool{sem: make(chan struct{}, max), dial: dial}
}

// WithConn acquires a pool slot, dials the device, runs fn, and releases
// the slot. The device name is only used for error reporting.
func (p *Pool) WithConn(ctx context.Context, device, addr string, cred vault.Material, fn func(Conn) error) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.sem }()

	conn, err := p.dial(ctx, addr, cred)
	if err != nil {
		phase := "connect"
		if strings.Contains(err.Error(), "unable to authenticate") {
			phase = "auth"
		}
		return util.NewSSHError(device, phase, err)
	}
	defer conn.Close()
	return fn(conn)
}

// sshConn is the x/crypto/ssh implementation. Sessions are created
// per-call; the underlying client connection is reused.
type sshConn struct {
	client *ssh.Client
}

// DialSSH opens an SSH client connection with password and, when a key
// path is stored, public-key authentication.
// Campus pre-deployment gear rarely has stable host keys, so they are
// not verified.
func DialSSH(ctx context.Context, addr string, cred vault.Material) (Conn, error) {
	var methods []ssh.AuthMethod
	if cred.KeyPath != "" {
		key, err := os.ReadFile(cred.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("reading key %s: %w", cred.KeyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parsing key %s: %w", cred.KeyPath, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if cred.Password != "" {
		methods = append(methods, ssh.Password(cred.Password))
	}

	config := &ssh.ClientConfig{
		User:            cred.Username,
		Auth:            methods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         ConnectTimeout,
	}
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("SSH dial %s: %w", addr, err)
	}
	return &sshConn{client: client}, nil
}

func (c *sshConn) Run(ctx context.Context, cmd string) (string, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("SSH session: %w", err)
	}
	defer session.Close()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.CombinedOutput(cmd)
		done <- result{out, err}
	}()

	timer := time.NewTimer(CommandTimeout)
	defer timer.Stop()
	select {
	case r := <-done:
		if r.err != nil {
			return string(r.out), fmt.Errorf("SSH exec '%s': %w", cmd, r.err)
		}
		return string(r.out), nil
	case <-timer.C:
		return "", fmt.Errorf("SSH exec '%s': timed out after %s", cmd, CommandTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Configure drives an interactive shell: configure terminal, the given
// lines with a settle pause between each, then end and write memory.
func (c *sshConn) Configure(ctx context.Context, lines []string, onLine func(string)) error {
	session, err := c.client.NewSession()
	if err != nil {
		return fmt.Errorf("SSH session: %w", err)
	}
	defer session.Close()

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("vt100", 80, 200, modes); err != nil {
		return fmt.Errorf("requesting pty: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := session.Shell(); err != nil {
		return fmt.Errorf("starting shell: %w", err)
	}

	// Drain device output so the session never blocks on a full pipe.
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			_ = scanner.Text()
		}
	}()

	script := make([]string, 0, len(lines)+3)
	script = append(script, "configure terminal")
	script = append(script, lines...)
	script = append(script, "end", "write memory", "exit")

	for _, line := range script {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := io.WriteString(stdin, line+"\n"); err != nil {
			return fmt.Errorf("sending '%s': %w", line, err)
		}
		if onLine != nil {
			onLine(line)
		}
		time.Sleep(lineSettle)
	}
	stdin.Close()

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()
	timer := time.NewTimer(CommandTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("closing shell: %w", err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("shell did not exit within %s", CommandTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *sshConn) Close() error {
	return c.client.Close()
}
