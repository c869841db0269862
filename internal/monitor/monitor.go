// Package monitor polls inventory progress while the monitor view is open.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jfloresavalos/InvBF/internal/inventory"
)

// DefaultInterval is used when no interval is configured.
const DefaultInterval = 15 * time.Second

// Fetcher returns the current inventory progress.
type Fetcher interface {
	Progress(ctx context.Context) (inventory.Progress, error)
}

// Sink receives each poll outcome.
type Sink interface {
	SetProgress(progress inventory.Progress, err error)
}

// Monitor owns at most one polling goroutine at a time.
type Monitor struct {
	fetch    Fetcher
	sink     Sink
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a stopped Monitor.
func New(fetch Fetcher, sink Sink, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{fetch: fetch, sink: sink, interval: interval}
}

// Start polls immediately and then every interval until Stop or ctx is done.
// A running poller is stopped first.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			m.poll(runCtx)
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop cancels the running poller and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

// Running reports whether a poller is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done == nil {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

func (m *Monitor) stopLocked() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
	m.done = nil
}

func (m *Monitor) poll(ctx context.Context) {
	progress, err := m.fetch.Progress(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("progress poll failed")
	}
	m.sink.SetProgress(progress, err)
}
