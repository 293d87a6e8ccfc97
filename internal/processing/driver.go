package processing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"photoflow/internal/models"
)

// Driver runs ticks: one start-or-advance pass over every pending photo.
// It is shared by the manual trigger endpoint, the event stream, and the
// background scheduler; concurrent ticks race benignly on photo rows
// (last write wins), the simulator itself stays consistent.
type Driver struct {
	sim   *Simulator
	store PhotoStore
	log   zerolog.Logger
}

func NewDriver(sim *Simulator, store PhotoStore, log zerolog.Logger) *Driver {
	return &Driver{
		sim:   sim,
		store: store,
		log:   log.With().Str("component", "driver").Logger(),
	}
}

// RunTick advances every queued or processing photo once. The first store
// failure aborts the tick; photos already updated keep their new state and
// the rest are retried naturally on the next tick.
func (d *Driver) RunTick(ctx context.Context) error {
	photos, err := d.store.ListProcessing(ctx)
	if err != nil {
		return fmt.Errorf("list pending photos: %w", err)
	}

	for _, photo := range photos {
		switch photo.Status {
		case models.PhotoStatusQueued:
			if err := d.sim.Start(ctx, photo.ID); err != nil {
				return fmt.Errorf("start %s: %w", photo.ID, err)
			}
		case models.PhotoStatusProcessing:
			if _, err := d.sim.Advance(ctx, photo.ID); err != nil {
				return fmt.Errorf("advance %s: %w", photo.ID, err)
			}
		}
	}
	return nil
}

// Snapshot returns the pending photos after a tick, for publishing to clients.
func (d *Driver) Snapshot(ctx context.Context) ([]models.Photo, error) {
	return d.store.ListProcessing(ctx)
}
