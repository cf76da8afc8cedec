package backend

import (
	"context"
	"fmt"
	"strings"

	"energy-exchange/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Mode selects which Backend executes purchases.
type Mode string

const (
	ModeSimulated Mode = "simulated"
	ModeLive      Mode = "live"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeSimulated, ModeLive:
		return m, nil
	case "demo":
		return ModeSimulated, nil
	case "blockchain":
		return ModeLive, nil
	}
	return "", fmt.Errorf("unknown transaction mode %q", s)
}

// Backend executes the monetary side of a purchase. A non-nil error is
// always a *domain.BackendError; callers never need to know which Backend
// they hold.
type Backend interface {
	Purchase(ctx context.Context, listingID uuid.UUID, buyerID string, price decimal.Decimal) (*domain.Receipt, error)
	Mode() Mode
}
