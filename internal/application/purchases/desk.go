package purchases

import (
	"context"
	"sync"
	"time"

	"energy-exchange/internal/application/backend"
	"energy-exchange/internal/application/listings"

	"github.com/rs/zerolog/log"
)

// BackendFactory builds the backend for a mode.
type BackendFactory func(mode backend.Mode) (backend.Backend, error)

// Desk owns the active orchestrator and is where callers switch between
// live and simulated settlement. A switch never carries attempts over:
// idle ones are abandoned, processing ones finish on the backend they
// started with.
type Desk struct {
	store   listings.Store
	guard   Guard
	factory BackendFactory

	mu      sync.RWMutex
	current *Orchestrator
}

func NewDesk(store listings.Store, guard Guard, factory BackendFactory, mode backend.Mode) (*Desk, error) {
	d := &Desk{store: store, guard: guard, factory: factory}
	if err := d.SetMode(mode); err != nil {
		return nil, err
	}
	return d, nil
}

// Orchestrator returns the orchestrator for the current mode.
func (d *Desk) Orchestrator() *Orchestrator {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

func (d *Desk) Mode() backend.Mode {
	return d.Orchestrator().Mode()
}

// SetMode switches settlement to mode. Selecting the active mode is a no-op.
func (d *Desk) SetMode(mode backend.Mode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current != nil && d.current.Mode() == mode {
		return nil
	}
	b, err := d.factory(mode)
	if err != nil {
		return err
	}
	prev := "none"
	if d.current != nil {
		prev = string(d.current.Mode())
	}
	d.current = NewOrchestrator(d.store, d.guard, b)
	log.Info().Str("from", prev).Str("to", string(mode)).Msg("transaction mode switched")
	return nil
}

// RunJanitor prunes stale attempts every interval until ctx is done.
func (d *Desk) RunJanitor(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := d.Orchestrator().Prune(time.Now().Add(-maxAge)); n > 0 {
				log.Debug().Int("pruned", n).Msg("stale purchase attempts dropped")
			}
		}
	}
}
