package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docmill/docmill/internal/config"
	"github.com/docmill/docmill/internal/logging"
)

// ErrRateLimited is returned when a caller exhausts its window allowance.
var ErrRateLimited = errors.New("rate limit exceeded")

// Action classifies requests into independently limited buckets.
type Action string

const (
	ActionUpload     Action = "upload"
	ActionConversion Action = "conversion"
	ActionDownload   Action = "download"
)

// Store counts hits per key within a fixed window. Take reports whether the
// hit was admitted; the counter is only advanced on admission.
type Store interface {
	Take(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
}

// Limiter enforces per-client fixed-window ceilings for each action class.
type Limiter struct {
	store  Store
	window time.Duration
	limits map[Action]int64
}

// New builds a Limiter with env-overridable ceilings. Defaults: 10 uploads,
// 5 conversions, 20 downloads per 60 seconds.
func New(store Store) *Limiter {
	return &Limiter{
		store:  store,
		window: config.GetDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		limits: map[Action]int64{
			ActionUpload:     int64(config.GetInt("RATE_LIMIT_UPLOAD", 10)),
			ActionConversion: int64(config.GetInt("RATE_LIMIT_CONVERSION", 5)),
			ActionDownload:   int64(config.GetInt("RATE_LIMIT_DOWNLOAD", 20)),
		},
	}
}

// NewWithLimits builds a Limiter with explicit ceilings, for tests and
// embedded use.
func NewWithLimits(store Store, window time.Duration, limits map[Action]int64) *Limiter {
	return &Limiter{store: store, window: window, limits: limits}
}

// Allow records one hit for client/action and reports whether it is within
// the ceiling. Store failures admit the request: losing a counter backend
// must not take the service down with it.
func (l *Limiter) Allow(ctx context.Context, clientID string, action Action) error {
	limit, ok := l.limits[action]
	if !ok || limit <= 0 {
		return nil
	}

	key := fmt.Sprintf("ratelimit:%s:%s", action, clientID)
	admitted, err := l.store.Take(ctx, key, limit, l.window)
	if err != nil {
		logging.Logf("[RATELIMIT] store error for %s, admitting request: %v", key, err)
		return nil
	}
	if !admitted {
		return fmt.Errorf("%w: %s limit is %d per %s", ErrRateLimited, action, limit, l.window)
	}
	return nil
}
