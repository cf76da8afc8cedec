package listings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"energy-exchange/internal/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormStore persists listings (Postgres in production, SQLite in tests).
// Every mutation writes a ListingEvent in the same transaction.
type GormStore struct {
	DB *gorm.DB

	// mu serialises Add so CreatedAt follows seq order within this instance.
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func (s *GormStore) Get(ctx context.Context, id uuid.UUID) (domain.Listing, error) {
	var listing domain.Listing
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", id).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, fmt.Errorf("get listing: %w", err)
	}
	return listing, nil
}

func (s *GormStore) List(ctx context.Context) ([]domain.Listing, error) {
	var listings []domain.Listing
	if err := s.DB.WithContext(ctx).Order("seq ASC").Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	return listings, nil
}

func (s *GormStore) Add(ctx context.Context, l domain.Listing) (uuid.UUID, error) {
	if err := l.Validate(); err != nil {
		return uuid.Nil, err
	}
	l.Seq = 0
	l.Available = true

	s.mu.Lock()
	defer s.mu.Unlock()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.nextTimestamp()
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&l).Error; err != nil {
			return err
		}
		eventData, _ := json.Marshal(map[string]interface{}{
			"source":        l.Source,
			"energy_amount": l.Amount,
			"price":         l.Price,
			"seller":        l.Seller,
			"location":      l.Location,
		})
		return tx.Create(&domain.ListingEvent{
			ListingID: l.ListingID,
			EventType: domain.ListingEventCreated,
			EventData: datatypes.JSON(eventData),
		}).Error
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("add listing: %w", err)
	}
	return l.ListingID, nil
}

// nextTimestamp must be called with mu held. Postgres keeps microseconds,
// so the step is one microsecond.
func (s *GormStore) nextTimestamp() time.Time {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	t := now().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *GormStore) SetAvailability(ctx context.Context, id uuid.UUID, available bool) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var listing domain.Listing
		if err := tx.Where("listing_id = ?", id).First(&listing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("set availability: %w", err)
		}
		if available {
			if !listing.Available {
				return domain.ErrRelistForbidden
			}
			return nil
		}
		if !listing.Available {
			return nil
		}

		// Conditional so two writers racing past the read above produce one SOLD event.
		res := tx.Model(&domain.Listing{}).
			Where("listing_id = ? AND available = ?", id, true).
			Update("available", false)
		if res.Error != nil {
			return fmt.Errorf("set availability: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		eventData, _ := json.Marshal(map[string]interface{}{
			"price":         listing.Price,
			"energy_amount": listing.Amount,
		})
		return tx.Create(&domain.ListingEvent{
			ListingID: id,
			EventType: domain.ListingEventSold,
			EventData: datatypes.JSON(eventData),
		}).Error
	})
}

// Events returns the audit trail of one listing, oldest first.
func (s *GormStore) Events(ctx context.Context, id uuid.UUID) ([]domain.ListingEvent, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	var events []domain.ListingEvent
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", id).Order("created_at ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list listing events: %w", err)
	}
	return events, nil
}
