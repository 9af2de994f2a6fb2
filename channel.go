package steamcmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gamestack/go-steamcmd/internal/unix"
)

// LineWriter delivers a single console command line to a server's input
// channel.
type LineWriter interface {
	WriteLine(ctx context.Context, line string) error
}

// ChannelWriter writes console commands into the named channel bound to a
// server process's standard input. The channel is created by the instance's
// socket unit before the server starts; the writer never creates, deletes,
// or holds it open across commands. A server console reading from the
// channel expects one line per message, so each WriteLine opens, writes a
// single line, and releases the channel.
type ChannelWriter struct {
	// Path is the channel path, normally ServerInstance.ChannelPath()
	Path string

	// DialTimeout is the timeout for establishing socket connections
	DialTimeout time.Duration

	// WriteTimeout is the timeout for writing a single line
	WriteTimeout time.Duration

	// BackoffMin is the minimum duration between write attempts
	BackoffMin time.Duration

	// BackoffMax is the maximum duration between write attempts
	BackoffMax time.Duration

	// MaxAttempts bounds open/write attempts within one WriteLine
	MaxAttempts int

	// mu serializes writes; the channel is not designed for concurrent writers
	mu sync.Mutex
}

// ChannelOption configures a ChannelWriter
type ChannelOption func(*ChannelWriter)

// WithDialTimeout sets the timeout for channel socket connections
func WithDialTimeout(d time.Duration) ChannelOption {
	return func(w *ChannelWriter) {
		w.DialTimeout = d
	}
}

// WithWriteTimeout sets the timeout for a single line write
func WithWriteTimeout(d time.Duration) ChannelOption {
	return func(w *ChannelWriter) {
		w.WriteTimeout = d
	}
}

// WithBackoff sets the minimum and maximum backoff between write attempts
func WithBackoff(minBackoff, maxBackoff time.Duration) ChannelOption {
	return func(w *ChannelWriter) {
		w.BackoffMin = minBackoff
		w.BackoffMax = maxBackoff
	}
}

// WithMaxAttempts sets the maximum number of attempts within one WriteLine
func WithMaxAttempts(n int) ChannelOption {
	return func(w *ChannelWriter) {
		w.MaxAttempts = n
	}
}

// NewChannelWriter creates a ChannelWriter for the channel at path. The
// channel does not need to exist yet; absence is reported per write as
// ErrChannelNotReady.
func NewChannelWriter(path string, opts ...ChannelOption) *ChannelWriter {
	w := &ChannelWriter{
		Path:         path,
		DialTimeout:  DefaultDialTimeout,
		WriteTimeout: DefaultWriteTimeout,
		BackoffMin:   DefaultBackoffMin,
		BackoffMax:   DefaultBackoffMax,
		MaxAttempts:  DefaultMaxAttempts,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteLine appends exactly one line to the channel: line plus the channel's
// line terminator, which the caller must not supply. The channel is opened
// for this write only (local socket first, FIFO fallback) and closed before
// returning. Attempts are bounded by MaxAttempts with exponential backoff;
// the final error distinguishes a channel that was never ready
// (ErrChannelNotReady) from an I/O failure after open (ErrChannelWriteFailed).
func (w *ChannelWriter) WriteLine(ctx context.Context, line string) error {
	if strings.ContainsAny(line, "\r\n") {
		return &OpError{
			Op:   OpWrite,
			Path: w.Path,
			Err:  fmt.Errorf("%w: embedded line terminator", ErrInvalidCommand),
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	payload := []byte(line + "\n")

	var lastErr error
	backoff := w.BackoffMin

	for attempt := 0; attempt < w.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &OpError{Op: OpWrite, Path: w.Path, Err: ctx.Err()}
			case <-time.After(backoff):
			}

			backoff *= 2
			if backoff > w.BackoffMax {
				backoff = w.BackoffMax
			}
		}

		conn, err := net.DialTimeout("unix", w.Path, w.DialTimeout)
		if err == nil {
			if w.WriteTimeout > 0 {
				_ = conn.SetWriteDeadline(time.Now().Add(w.WriteTimeout))
			}

			_, werr := conn.Write(payload)
			_ = conn.Close()
			if werr == nil {
				return nil
			}
			lastErr = fmt.Errorf("%w: %v", ErrChannelWriteFailed, werr)
			continue
		}

		file, err := os.OpenFile(w.Path, os.O_WRONLY|unix.ONonblock, 0)
		if err == nil {
			_, werr := file.Write(payload)
			_ = file.Close()
			if werr == nil {
				return nil
			}
			lastErr = fmt.Errorf("%w: %v", ErrChannelWriteFailed, werr)
			continue
		}

		if unix.IsNotReady(err) {
			lastErr = fmt.Errorf("%w: %v", ErrChannelNotReady, err)
		} else {
			lastErr = err
		}
	}

	if lastErr == nil {
		lastErr = ErrChannelNotReady
	}
	return &OpError{Op: OpWrite, Path: w.Path, Err: lastErr}
}

// Ensure ChannelWriter implements LineWriter
var _ LineWriter = (*ChannelWriter)(nil)
