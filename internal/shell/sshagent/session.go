// Package sshagent runs a short-lived ssh-agent holding a deployment key.
package sshagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/artpar/harbor/internal/core/crypto"
	"github.com/artpar/harbor/internal/core/deployment"
	"github.com/artpar/harbor/internal/shell/runner"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/sys/unix"
)

// DefaultSettle is the delay after key registration before the key is used.
const DefaultSettle = 5 * time.Second

// Options configures an Agent.
type Options struct {
	AgentProgram string        // default ssh-agent
	AddProgram   string        // default ssh-add
	Settle       time.Duration // negative disables the delay; zero uses DefaultSettle
}

// Agent starts credential agent sessions.
type Agent struct {
	opts   Options
	logger *slog.Logger
}

// New creates an Agent.
func New(opts Options, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.AgentProgram == "" {
		opts.AgentProgram = "ssh-agent"
	}
	if opts.AddProgram == "" {
		opts.AddProgram = "ssh-add"
	}
	if opts.Settle == 0 {
		opts.Settle = DefaultSettle
	}
	return &Agent{opts: opts, logger: logger}
}

// Start spawns an agent and registers keyPath with it.
//
// The returned Session must be stopped by the caller on every path, typically
// with defer session.Stop(). If registration fails the agent is stopped before
// Start returns.
func (a *Agent) Start(ctx context.Context, keyPath string) (*Session, error) {
	out, err := runner.Output(ctx, deployment.CommandSpec{Program: a.opts.AgentProgram, Args: []string{"-s"}})
	if err != nil {
		return nil, &deployment.AgentError{Op: "start agent", Output: out, Err: fmt.Errorf("%w: %w", deployment.ErrAgentSpawn, err)}
	}

	coords, err := deployment.ParseAgentOutput(out)
	if err != nil {
		return nil, err
	}

	session := &Session{coords: coords, logger: a.logger}
	a.logger.Debug("spawned ssh-agent", "sock", coords.Socket, "pid", coords.PID)

	fingerprint, err := keyFingerprint(keyPath)
	if err != nil {
		a.logger.Debug("could not read key fingerprint", "key", keyPath, "error", err)
	}

	add := deployment.CommandSpec{
		Program: a.opts.AddProgram,
		Args:    []string{keyPath},
		Env:     coords.Env(),
	}
	if out, err := runner.Output(ctx, add); err != nil {
		session.Stop()
		return nil, &deployment.AgentError{Op: "add key " + keyPath, Output: out, Err: err}
	}

	if a.opts.Settle > 0 {
		select {
		case <-ctx.Done():
			session.Stop()
			return nil, ctx.Err()
		case <-time.After(a.opts.Settle):
		}
	}

	blobs, err := listIdentities(coords.Socket)
	switch {
	case err != nil:
		a.logger.Debug("could not list agent identities", "sock", coords.Socket, "error", err)
	case fingerprint != "" && !crypto.ContainsFingerprint(blobs, fingerprint):
		a.logger.Warn("key not listed by ssh-agent", "key", keyPath, "fingerprint", fingerprint)
	default:
		a.logger.Debug("agent ready", "identities", len(blobs), "fingerprint", fingerprint)
	}

	return session, nil
}

// listIdentities returns the public keys held by the agent listening on socket.
func listIdentities(socket string) ([][]byte, error) {
	conn, err := net.DialTimeout("unix", socket, time.Second)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	keys, err := agent.NewClient(conn).List()
	if err != nil {
		return nil, err
	}
	blobs := make([][]byte, 0, len(keys))
	for _, k := range keys {
		blobs = append(blobs, k.Blob)
	}
	return blobs, nil
}

// keyFingerprint reads the fingerprint of the private key at path, falling
// back to the matching .pub file.
func keyFingerprint(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	fingerprint, err := crypto.Fingerprint(data)
	if err == nil {
		return fingerprint, nil
	}
	pub, pubErr := os.ReadFile(path + ".pub")
	if pubErr != nil {
		return "", err
	}
	return crypto.AuthorizedKeyFingerprint(pub)
}

// =============================================================================
// Session
// =============================================================================

// Session is a running agent owned by one deployment run.
type Session struct {
	coords  deployment.AgentCoordinates
	logger  *slog.Logger
	once    sync.Once
	stopErr error
}

// Socket returns the agent socket path.
func (s *Session) Socket() string {
	return s.coords.Socket
}

// PID returns the agent process id.
func (s *Session) PID() int {
	return s.coords.PID
}

// Env returns the variables that let child processes use the agent.
func (s *Session) Env() map[string]string {
	if s == nil {
		return nil
	}
	return s.coords.Env()
}

// Stop terminates the agent. Stopping a nil session, stopping twice, or
// stopping an agent that already exited is a no-op.
func (s *Session) Stop() error {
	if s == nil || s.coords.PID <= 0 {
		return nil
	}
	s.once.Do(func() {
		s.logger.Debug("clean up - killing ssh-agent", "pid", s.coords.PID)
		err := unix.Kill(s.coords.PID, unix.SIGTERM)
		if err != nil && !errors.Is(err, unix.ESRCH) {
			s.stopErr = fmt.Errorf("kill ssh-agent %d: %w", s.coords.PID, err)
		}
	})
	return s.stopErr
}
