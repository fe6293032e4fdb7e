// Package ptyrun runs an interactive program on a pseudo-terminal and
// captures what it draws, for programs that only render in interactive mode
// and never say when they are done.
package ptyrun

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultStallTimeout = 10 * time.Second
	DefaultPollInterval = 300 * time.Millisecond
	DefaultDrainWait    = time.Second

	// Term is forced into the child environment so it renders in color mode.
	Term = "xterm-256color"
)

// ErrPTYAllocation is returned (wrapped) when no pseudo-terminal can be opened.
var ErrPTYAllocation = errors.New("allocate pseudo-terminal")

// TimeoutError reports a run that ended without the program completing.
// Stalled is set when output had started and then stopped arriving while the
// program was still running, which usually means it is waiting for input.
type TimeoutError struct {
	Output  []byte
	Stalled bool
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Stalled {
		return fmt.Sprintf("no output for too long after %s (waiting for input?)", e.Elapsed.Round(time.Millisecond))
	}
	return fmt.Sprintf("timed out after %s", e.Elapsed.Round(time.Millisecond))
}

// Runner holds the bounds of a run. The zero value is not usable; use New.
type Runner struct {
	Timeout      time.Duration
	StallTimeout time.Duration
	PollInterval time.Duration
	DrainWait    time.Duration
	Size         pty.Winsize

	// Complete reports whether the output so far is a finished screen. When it
	// returns true the runner drains for DrainWait and stops.
	Complete func(output []byte) bool

	logger *slog.Logger
}

func New(logger *slog.Logger) *Runner {
	return &Runner{
		Timeout:      DefaultTimeout,
		StallTimeout: DefaultStallTimeout,
		PollInterval: DefaultPollInterval,
		DrainWait:    DefaultDrainWait,
		Size:         pty.Winsize{Rows: 50, Cols: 120},
		logger:       logger,
	}
}

// Run starts binary with args in dir, attached to a fresh pseudo-terminal,
// and returns everything it wrote. A nil error means the program either
// satisfied Complete or exited on its own; callers decide whether the output
// is usable. Every path closes the terminal and kills and reaps the child.
func (r *Runner) Run(binary string, args []string, dir string) ([]byte, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPTYAllocation, err)
	}
	if err := pty.Setsize(ptmx, &r.Size); err != nil {
		r.logger.Debug("pty: setsize failed", "err", err)
	}

	cmd := exec.Command(binary, args...)
	cmd.Dir = dir
	cmd.Env = withTerm(os.Environ())
	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = tty
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}

	if err := cmd.Start(); err != nil {
		tty.Close()
		ptmx.Close()
		return nil, fmt.Errorf("start %s: %w", binary, err)
	}
	// The child holds its own copy of the subordinate end.
	tty.Close()

	pid := cmd.Process.Pid
	exited := make(chan struct{})
	go func() {
		err := cmd.Wait()
		r.logger.Debug("pty: child reaped", "pid", pid, "err", err)
		close(exited)
	}()
	defer func() {
		ptmx.Close()
		// The child is a session leader; take its whole group down.
		if err := unix.Kill(-pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			r.logger.Debug("pty: kill failed", "pid", pid, "err", err)
		}
	}()

	fd := int(ptmx.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("set nonblocking: %w", err)
	}
	r.logger.Debug("pty: started", "binary", binary, "pid", pid, "dir", dir)

	return r.readLoop(fd, exited)
}

func (r *Runner) readLoop(fd int, exited <-chan struct{}) ([]byte, error) {
	var out []byte
	buf := make([]byte, 64*1024)
	start := time.Now()
	lastData := start

	for {
		// Check exit before reading: anything written before exit is already
		// buffered and the read below will see it.
		done := isClosed(exited)
		n := r.readAvailable(fd, buf, &out)

		switch {
		case n == 0 && done:
			r.logger.Debug("pty: child exited", "bytes", len(out))
			return out, nil
		case n > 0:
			lastData = time.Now()
			r.logger.Debug("pty: chunk", "bytes", n, "total", len(out))
			if r.Complete != nil && r.Complete(out) {
				time.Sleep(r.DrainWait)
				r.readAvailable(fd, buf, &out)
				r.logger.Debug("pty: complete", "bytes", len(out), "elapsed", time.Since(start))
				return out, nil
			}
		case len(out) > 0 && !done && time.Since(lastData) > r.StallTimeout:
			return nil, &TimeoutError{Output: out, Stalled: true, Elapsed: time.Since(start)}
		}

		if time.Since(start) > r.Timeout {
			return nil, &TimeoutError{Output: out, Elapsed: time.Since(start)}
		}
		time.Sleep(r.PollInterval)
	}
}

// readAvailable reads until the descriptor would block and returns how many
// bytes it appended.
func (r *Runner) readAvailable(fd int, buf []byte, out *[]byte) int {
	total := 0
	for {
		n, err := unix.Read(fd, buf)
		if n > 0 {
			*out = append(*out, buf[:n]...)
			total += n
		}
		if err != nil {
			// EIO means the subordinate side has no writers left.
			if !errors.Is(err, unix.EAGAIN) && !errors.Is(err, unix.EIO) && !errors.Is(err, unix.EINTR) {
				r.logger.Debug("pty: read failed", "err", err)
			}
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return total
		}
		if n <= 0 {
			return total
		}
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func withTerm(env []string) []string {
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if strings.HasPrefix(kv, "TERM=") {
			continue
		}
		out = append(out, kv)
	}
	return append(out, "TERM="+Term)
}
