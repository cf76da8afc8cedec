package purchases

import (
	"context"
	"sync"

	"energy-exchange/internal/domain"

	"github.com/google/uuid"
)

// Guard grants at most one holder per listing id. TryAcquire never waits:
// a held id returns domain.ErrAlreadyLocked. The returned release func is
// safe to call more than once.
type Guard interface {
	TryAcquire(ctx context.Context, listingID uuid.UUID) (release func(), err error)
}

// LocalGuard guards listings within a single process.
type LocalGuard struct {
	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

func NewLocalGuard() *LocalGuard {
	return &LocalGuard{held: make(map[uuid.UUID]struct{})}
}

func (g *LocalGuard) TryAcquire(_ context.Context, listingID uuid.UUID) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.held[listingID]; ok {
		return nil, domain.ErrAlreadyLocked
	}
	g.held[listingID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, listingID)
			g.mu.Unlock()
		})
	}, nil
}

// Held reports whether listingID is currently guarded.
func (g *LocalGuard) Held(listingID uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.held[listingID]
	return ok
}
