package steamcmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// WaitReady blocks until the channel at path exists, the timeout elapses,
// or ctx is cancelled. At boot or restart the stop hook can race the socket
// unit that creates the channel; waiting on the parent directory closes
// that race without polling.
//
// Existence is necessary but not sufficient for delivery — the channel may
// still lack a reader — so WaitReady narrows the not-ready window rather
// than guaranteeing the first write succeeds. Timeout is reported as
// ErrChannelNotReady.
func WaitReady(ctx context.Context, path string, timeout time.Duration) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return &OpError{Op: OpWrite, Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return &OpError{Op: OpWrite, Path: path, Err: err}
	}

	found := make(chan struct{})

	// Stopper context manages the watch goroutine's lifetime
	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() {
		_ = watcher.Close()
	})

	sctx.Go(func(sctx *stopper.Context) error {
		for {
			select {
			case <-sctx.Stopping():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Name == path && event.Op&(fsnotify.Create|fsnotify.Chmod) != 0 {
					close(found)
					return nil
				}

			case _, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				// Transient watch errors don't invalidate the timeout bound;
				// keep waiting.
			}
		}
	})

	stop := func() {
		sctx.Stop(100 * time.Millisecond)
		_ = sctx.Wait()
	}

	// The channel may have appeared between the first stat and the watch
	// being established.
	if _, err := os.Stat(path); err == nil {
		stop()
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result error
	select {
	case <-found:
	case <-ctx.Done():
		result = ctx.Err()
	case <-timer.C:
		result = fmt.Errorf("%w: channel absent after %s", ErrChannelNotReady, timeout)
	}

	stop()

	if result != nil {
		return &OpError{Op: OpWrite, Path: path, Err: result}
	}
	return nil
}

// IsDeadline reports whether err is a cooperative-cancellation outcome
// (deadline or cancellation) rather than a delivery failure. Stop hooks use
// this to keep their exit status zero on partial delivery under time
// pressure.
func IsDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
