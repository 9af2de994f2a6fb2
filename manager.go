package steamcmd

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Manager dispatches stop sequences to multiple server instances
// concurrently, for host-level operations like maintenance shutdowns.
// Instances are fully independent — distinct channels, distinct processes —
// so the only coordination is the concurrency cap.
type Manager struct {
	// Concurrency is the maximum number of concurrent dispatch sessions
	Concurrency int
	// Timeout is the per-instance dispatch timeout
	Timeout time.Duration
	// Log is handed to each per-instance Dispatcher
	Log *logrus.Logger
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithConcurrency sets the maximum number of concurrent dispatch sessions
func WithConcurrency(n int) ManagerOption {
	return func(m *Manager) {
		m.Concurrency = n
	}
}

// WithManagerTimeout sets the per-instance dispatch timeout
func WithManagerTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.Timeout = d
	}
}

// WithManagerLogger sets the logger handed to per-instance dispatchers
func WithManagerLogger(log *logrus.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.Log = log
		}
	}
}

// NewManager creates a Manager with default settings
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		Concurrency: 4,
		Timeout:     time.Minute,
		Log:         discardLogger(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.Concurrency < 1 {
		m.Concurrency = 1
	}

	return m
}

// StopAll dispatches each instance's stop sequence to its own channel.
// Per-instance failures are collected, not fatal to siblings: one server
// with a dead channel must not keep the rest of the host from shutting
// down cleanly.
func (m *Manager) StopAll(ctx context.Context, instances ...*ServerInstance) error {
	if len(instances) == 0 {
		return nil
	}

	sem := make(chan struct{}, m.Concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	merr := &MultiError{}

	for _, instance := range instances {
		wg.Add(1)
		go func(inst *ServerInstance) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				merr.Add(ctx.Err())
				mu.Unlock()
				return
			}

			opCtx := ctx
			if m.Timeout > 0 {
				var cancel context.CancelFunc
				opCtx, cancel = context.WithTimeout(ctx, m.Timeout)
				defer cancel()
			}

			d := NewDispatcher(NewChannelWriter(inst.ChannelPath()), WithLogger(m.Log))
			if _, err := d.Dispatch(opCtx, inst.Server.StopSequence); err != nil && !IsDeadline(err) {
				mu.Lock()
				merr.Add(err)
				mu.Unlock()
			}
		}(instance)
	}

	wg.Wait()

	return merr.Err()
}
