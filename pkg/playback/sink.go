package playback

import (
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/niahub/voicecli/pkg/errorsx"
)

// DefaultCloseTimeout bounds how long Close waits for the player to
// drain and exit before it is forcibly killed.
const DefaultCloseTimeout = 30 * time.Second

// ErrNoPlayer is returned by Open when discovery found no player binary.
// Callers treat it as a degraded condition, not a turn failure.
var ErrNoPlayer = errors.New("no audio player available")

// Sink owns one player subprocess for the duration of one turn. It is
// opened lazily on the first reply chunk and must be closed on every
// exit path of the turn that opened it.
type Sink struct {
	spec         LaunchSpec
	closeTimeout time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	closed bool
}

type SinkOptions struct {
	CloseTimeout time.Duration
	Logger       *slog.Logger
}

func NewSink(spec LaunchSpec) *Sink {
	return NewSinkWithOptions(spec, SinkOptions{})
}

func NewSinkWithOptions(spec LaunchSpec, opts SinkOptions) *Sink {
	timeout := opts.CloseTimeout
	if timeout <= 0 {
		timeout = DefaultCloseTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{spec: spec, closeTimeout: timeout, logger: logger}
}

// Open spawns the player subprocess. It returns ErrNoPlayer when no
// binary was discovered at startup.
func (s *Sink) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.spec.Available {
		return ErrNoPlayer
	}
	if s.cmd != nil {
		return nil
	}
	cmd := exec.Command(s.spec.Path, s.spec.Args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonPlaybackSpawn)
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return errorsx.Wrap(err, errorsx.ReasonPlaybackSpawn)
	}
	s.cmd = cmd
	s.stdin = stdin
	return nil
}

// Write forwards one reply chunk to the player. Writes after the player
// has gone away (broken pipe) or after Close are discarded: audio
// underrun is not a turn failure.
func (s *Sink) Write(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.stdin == nil {
		return nil
	}
	if _, err := s.stdin.Write(chunk); err != nil {
		if isPipeGone(err) {
			s.logger.Debug("player pipe closed early, discarding chunk", "bytes", len(chunk))
			return nil
		}
		return err
	}
	return nil
}

// Close closes the player's stdin, waits up to the close timeout for a
// graceful exit, and kills the process if it overstays. Safe to call
// when Open was never called or failed, and idempotent.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cmd := s.cmd
	stdin := s.stdin
	s.cmd = nil
	s.stdin = nil
	s.mu.Unlock()

	if cmd == nil {
		return nil
	}
	if stdin != nil {
		_ = stdin.Close()
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(s.closeTimeout):
		s.logger.Warn("player did not exit in time, killing", "timeout", s.closeTimeout)
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
		return nil
	}
}

func isPipeGone(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, io.EOF)
}
