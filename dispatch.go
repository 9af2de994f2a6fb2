package steamcmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// CommandSpec is one console command plus the delay to observe after
// sending it, before the next command in the sequence is issued. Order of a
// []CommandSpec is significant: insertion order is execution order.
type CommandSpec struct {
	// Text is the console command, without line terminator
	Text string
	// Delay is the pause after sending Text before the next command
	Delay time.Duration
}

// ParseCommandSpec parses the structured command syntax "TEXT[@DURATION]".
// The delay is taken from the final '@' only when its suffix parses as a
// duration, so command text containing '@' still round-trips:
//
//	"quit"            -> {quit, 0}
//	"say bye@10s"     -> {say bye, 10s}
//	"mail admin@host" -> {mail admin@host, 0}
func ParseCommandSpec(s string) (CommandSpec, error) {
	if i := strings.LastIndex(s, "@"); i >= 0 {
		if d, err := time.ParseDuration(s[i+1:]); err == nil {
			if d < 0 {
				return CommandSpec{}, fmt.Errorf("%w: negative delay %q", ErrInvalidCommand, s[i+1:])
			}
			text := s[:i]
			if text == "" {
				return CommandSpec{}, fmt.Errorf("%w: empty command before delay %q", ErrInvalidCommand, s[i+1:])
			}
			return CommandSpec{Text: text, Delay: d}, nil
		}
	}
	if s == "" {
		return CommandSpec{}, fmt.Errorf("%w: empty command", ErrInvalidCommand)
	}
	return CommandSpec{Text: s}, nil
}

// String renders the command back into the structured "TEXT[@DURATION]" syntax
func (s CommandSpec) String() string {
	if s.Delay > 0 {
		return fmt.Sprintf("%s@%s", s.Text, s.Delay)
	}
	return s.Text
}

// DelaySum returns the total configured delay of a sequence, excluding the
// final command's delay (nothing follows it). Useful for sizing the service
// manager's stop timeout.
func DelaySum(specs []CommandSpec) time.Duration {
	var sum time.Duration
	for i, spec := range specs {
		if i < len(specs)-1 {
			sum += spec.Delay
		}
	}
	return sum
}

// Dispatcher drives an ordered command sequence into one instance's input
// channel. One Dispatcher invocation is one dispatch session: it owns its
// position in the sequence exclusively and is discarded after use. Command
// emission is strictly sequential; the inter-command delay is a deliberate
// serialization point and no two writes are ever in flight concurrently.
//
// The Dispatcher is a one-shot best-effort notifier, not a reliable
// delivery protocol. Its only consumer is a shutdown hook running under a
// bounded service-manager stop timeout, so it fails fast on the first
// delivery error and cooperatively abandons remaining commands when its
// context expires.
type Dispatcher struct {
	// Writer delivers individual command lines
	Writer LineWriter

	// PID of the target process. Advisory: used only for liveness logging,
	// never to gate dispatch.
	PID int

	// Log receives dispatch progress. Injected by the caller; defaults to
	// a logger that discards everything.
	Log *logrus.Logger
}

// DispatchOption configures a Dispatcher
type DispatchOption func(*Dispatcher)

// WithPID records the target process's PID for liveness logging
func WithPID(pid int) DispatchOption {
	return func(d *Dispatcher) {
		d.PID = pid
	}
}

// WithLogger sets the logger dispatch progress is reported to
func WithLogger(log *logrus.Logger) DispatchOption {
	return func(d *Dispatcher) {
		if log != nil {
			d.Log = log
		}
	}
}

// NewDispatcher creates a Dispatcher that delivers commands through w
func NewDispatcher(w LineWriter, opts ...DispatchOption) *Dispatcher {
	d := &Dispatcher{
		Writer: w,
		Log:    discardLogger(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// discardLogger returns a logger that drops all output
func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// Dispatch sends specs in order, sleeping each command's delay before the
// next, and returns the number of commands delivered.
//
// Policy is fail-fast: the first delivery error aborts the remaining
// sequence, since later commands (typically the shutdown confirmation) are
// meaningless if an earlier warning broadcast never arrived. No delay is
// observed after the last command.
//
// Cancellation is cooperative: between commands the context is consulted
// and remaining commands are skipped once it expires; a write already in
// progress is not preempted. Context expiry is returned wrapped so callers
// can distinguish it — partial delivery under a stop timeout is expected
// behavior, not a delivery failure.
func (d *Dispatcher) Dispatch(ctx context.Context, specs []CommandSpec) (int, error) {
	if d.PID > 0 && !processAlive(d.PID) {
		d.Log.WithField("pid", d.PID).Warn("target process not running; channel reader may be gone")
	}

	sent := 0
	for n, spec := range specs {
		select {
		case <-ctx.Done():
			d.Log.WithField("sent", sent).Warn("dispatch deadline reached; skipping remaining commands")
			return sent, fmt.Errorf("dispatch aborted after %d of %d commands: %w", sent, len(specs), ctx.Err())
		default:
		}

		if err := d.Writer.WriteLine(ctx, spec.Text); err != nil {
			d.Log.WithError(err).WithField("command", spec.Text).Error("command delivery failed; aborting remaining sequence")
			return sent, err
		}
		sent++
		d.Log.WithFields(logrus.Fields{"command": spec.Text, "sent": sent}).Debug("command delivered")

		if n == len(specs)-1 || spec.Delay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			d.Log.WithField("sent", sent).Warn("dispatch deadline reached; skipping remaining commands")
			return sent, fmt.Errorf("dispatch aborted after %d of %d commands: %w", sent, len(specs), ctx.Err())
		case <-time.After(spec.Delay):
		}
	}

	return sent, nil
}

// processAlive reports whether a process with the given PID exists. Signal
// 0 performs the existence check without delivering anything; EPERM still
// means the process is there.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
