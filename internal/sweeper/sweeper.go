// Package sweeper materializes intent expiry and trims terminal rows on a
// fixed interval. Expiry is also checked inline on every read and create, so
// the sweep is hygiene, not a correctness dependency.
package sweeper

import (
	"context"
	"log"
	"time"

	"chatlink-service/internal/observability"
	"chatlink-service/internal/repositories"
)

type Sweeper struct {
	intents   repositories.IntentRepository
	interval  time.Duration
	retention time.Duration
}

func New(intents repositories.IntentRepository, interval, retention time.Duration) *Sweeper {
	return &Sweeper{intents: intents, interval: interval, retention: retention}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	expired, err := s.intents.SweepExpired(ctx)
	if err != nil {
		log.Printf("sweeper: expire: %v", err)
	} else if expired > 0 {
		observability.AddIntentsExpired(expired)
		log.Printf("sweeper: expired %d link intents", expired)
	}

	purged, err := s.intents.PurgeTerminal(ctx, s.retention)
	if err != nil {
		log.Printf("sweeper: purge: %v", err)
	} else if purged > 0 {
		log.Printf("sweeper: purged %d terminal link intents", purged)
	}
}
