package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jfloresavalos/InvBF/internal/inventory"
	"github.com/jfloresavalos/InvBF/internal/state"
)

const (
	defaultLivenessInterval = 30 * time.Second
	maxBackoff              = 30 * time.Second
)

// Prober answers whether the authority is reachable.
type Prober interface {
	ActiveSession(ctx context.Context) (*inventory.Session, error)
}

// StartLiveness launches a background goroutine that probes the authority and
// records the outcome for the online indicator. It never reloads core data.
// It returns immediately; the returned channel closes when the goroutine exits.
func StartLiveness(ctx context.Context, store *state.Store, probe Prober, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = defaultLivenessInterval
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		failures := 0
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			_, err := probe.ActiveSession(ctx)
			if ctx.Err() != nil {
				return
			}
			store.RecordLiveness(err)
			if err != nil {
				failures++
				log.Debug().Err(err).Int("failures", failures).Msg("liveness probe failed")
			} else {
				failures = 0
			}
			timer.Reset(calculateBackoff(failures, interval))
		}
	}()
	return done
}

// calculateBackoff doubles the interval per consecutive failure, capped at
// maxBackoff. An interval already above the cap is used as is.
func calculateBackoff(failures int, interval time.Duration) time.Duration {
	if failures <= 0 {
		return interval
	}
	limit := maxBackoff
	if interval > limit {
		limit = interval
	}
	if failures > 16 {
		return limit
	}
	backoff := interval << failures
	if backoff <= 0 || backoff > limit {
		return limit
	}
	return backoff
}
