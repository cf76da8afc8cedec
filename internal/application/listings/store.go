package listings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"energy-exchange/internal/domain"

	"github.com/google/uuid"
)

// Reader is the read side backends need to check a listing.
type Reader interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Listing, error)
}

// Store owns every listing record. Only the purchase orchestrator calls
// SetAvailability; everything else reads.
type Store interface {
	Reader
	// List returns a snapshot in insertion order. Callers re-sort.
	List(ctx context.Context) ([]domain.Listing, error)
	Add(ctx context.Context, l domain.Listing) (uuid.UUID, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
}

// EventLister is implemented by stores that keep an audit trail.
type EventLister interface {
	Events(ctx context.Context, id uuid.UUID) ([]domain.ListingEvent, error)
}

// MemoryStore is a process-local Store. Snapshots are copies, so a reader
// never sees a half-updated listing.
type MemoryStore struct {
	mu   sync.RWMutex
	rows []domain.Listing
	byID map[uuid.UUID]int
	last time.Time
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[uuid.UUID]int),
		now:  time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	return s.rows[i], nil
}

func (s *MemoryStore) List(_ context.Context) ([]domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Listing, len(s.rows))
	copy(out, s.rows)
	return out, nil
}

func (s *MemoryStore) Add(_ context.Context, l domain.Listing) (uuid.UUID, error) {
	if err := l.Validate(); err != nil {
		return uuid.Nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ListingID == uuid.Nil {
		l.ListingID = uuid.New()
	}
	if _, dup := s.byID[l.ListingID]; dup {
		return uuid.Nil, fmt.Errorf("%w: duplicate listing id %s", domain.ErrInvalidListing, l.ListingID)
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.nextTimestamp()
	}
	l.Available = true
	l.Seq = uint(len(s.rows) + 1)

	s.byID[l.ListingID] = len(s.rows)
	s.rows = append(s.rows, l)
	return l.ListingID, nil
}

func (s *MemoryStore) SetAvailability(_ context.Context, id uuid.UUID, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if available && !s.rows[i].Available {
		return domain.ErrRelistForbidden
	}
	s.rows[i].Available = available
	return nil
}

// Len returns the number of listings ever added.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// nextTimestamp must be called with mu held. Timestamps strictly increase
// so "newest" never depends on clock resolution.
func (s *MemoryStore) nextTimestamp() time.Time {
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}
