package ledger

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultSweepInterval is how often the janitor looks for expired
// reservations.
const DefaultSweepInterval = 30 * time.Second

// RunJanitor sweeps expired reservations every interval until ctx is
// cancelled.  Store errors are logged and retried on the next tick.
func (l *Ledger) RunJanitor(ctx context.Context, interval time.Duration) error {
	if l.advisory {
		<-ctx.Done()
		return nil
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := l.Sweep(ctx)
			if err != nil {
				log.Error().Str("component", "ledger").Err(err).Msg("sweep expired reservations")
			}
			if n > 0 {
				log.Info().Str("component", "ledger").Int("expired", n).Msg("evicted expired reservations")
			}
		}
	}
}
