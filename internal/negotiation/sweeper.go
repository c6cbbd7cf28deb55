package negotiation

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/ride-negotiation/internal/clock"
	"github.com/example/ride-negotiation/internal/logging"
	"github.com/example/ride-negotiation/internal/observability"
)

// Sweep purges every ride created at or before now minus the retention
// window, along with its offers and messages. Status is not considered.
// It returns the number of rides removed.
func (s *Store) Sweep(now time.Time) int {
	cutoff := now.Add(-s.retention)
	var purged int
	_ = s.run("sweep", func() error {
		for _, r := range s.tables.Rides() {
			if r.CreatedAt.After(cutoff) {
				continue
			}
			s.tables.DeleteRide(r.ID)
			s.emit(Event{Kind: EventRidePurged, RideID: r.ID, At: now})
			purged++
		}
		return nil
	})
	if purged > 0 {
		observability.RidesPurged.Add(float64(purged))
		s.logger.Info("retention sweep", "purged", purged, "cutoff", cutoff)
	}
	return purged
}

// Sweeper calls Store.Sweep once on start and then on every tick.
type Sweeper struct {
	store    *Store
	clock    clock.Clock
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(store *Store, clk clock.Clock, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Sweeper{store: store, clock: clk, interval: interval, logger: logger}
}

// Run blocks until ctx is done.
func (w *Sweeper) Run(ctx context.Context) error {
	t := w.clock.NewTicker(w.interval)
	defer t.Stop()

	w.store.Sweep(w.clock.Now())
	w.logger.Info("retention sweeper started", "interval", w.interval, "retention", w.store.Retention())
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("retention sweeper stopped")
			return nil
		case now := <-t.C():
			w.store.Sweep(now)
		}
	}
}
