package backend

import (
	"context"
	"strings"
	"time"

	"energy-exchange/internal/application/listings"
	"energy-exchange/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const reasonUnavailable = "listing unavailable"

// Simulated settles every purchase locally. It lets the exchange run
// without a connected ledger.
type Simulated struct {
	Listings listings.Reader
	Now      func() time.Time
}

func NewSimulated(r listings.Reader) *Simulated {
	return &Simulated{Listings: r, Now: time.Now}
}

func (s *Simulated) Mode() Mode { return ModeSimulated }

func (s *Simulated) Purchase(ctx context.Context, listingID uuid.UUID, buyerID string, price decimal.Decimal) (*domain.Receipt, error) {
	listing, err := s.Listings.Get(ctx, listingID)
	if err != nil || !listing.Available {
		return nil, domain.BackendFailure(reasonUnavailable)
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return &domain.Receipt{
		TxHash:      "sim-" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		ListingID:   listingID,
		BuyerID:     buyerID,
		Price:       price,
		Mode:        string(ModeSimulated),
		ConfirmedAt: now().UTC(),
	}, nil
}
