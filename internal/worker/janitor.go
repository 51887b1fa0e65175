package worker

import (
	"context"
	"time"

	"payment-service/internal/store"
	"payment-service/internal/util"

	"go.uber.org/zap"
)

// Janitor purges expired idempotency records on an interval. Purging only
// targets rows past their TTL, so it runs safely alongside live claims.
type Janitor struct {
	store    *store.Store
	interval time.Duration
	logger   *zap.Logger
}

// NewJanitor creates a new janitor
func NewJanitor(st *store.Store, interval time.Duration) *Janitor {
	return &Janitor{
		store:    st,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// Run purges until ctx is cancelled
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := j.store.PurgeExpired(ctx)
			if err != nil {
				j.logger.Error("Failed to purge expired idempotency keys", zap.Error(err))
				continue
			}
			if count > 0 {
				util.KeysPurgedTotal.Add(float64(count))
				j.logger.Info("Purged expired idempotency keys", zap.Int64("count", count))
			}
		}
	}
}
