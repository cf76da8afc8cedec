package listings

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"energy-exchange/internal/domain"
)

var ErrInvalidCriteria = errors.New("Invalid query criteria")

// SortKey names an ordering. Values match what the marketplace UI sends.
type SortKey string

const (
	SortNewest     SortKey = "newest"
	SortPriceLow   SortKey = "price-low"
	SortPriceHigh  SortKey = "price-high"
	SortAmountHigh SortKey = "amount-high"
)

// ParseSortKey maps "" to SortNewest and rejects unknown names.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortNewest, nil
	case SortNewest, SortPriceLow, SortPriceHigh, SortAmountHigh:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown sort %q", ErrInvalidCriteria, s)
}

// Criteria is a filter plus an ordering. A nil Source or empty Text means
// no filter on that field.
type Criteria struct {
	Source *domain.EnergySource
	Text   string
	Sort   SortKey
}

// Query filters snapshot down to available listings matching c and sorts
// the result. It never modifies snapshot. Equal keys keep snapshot order.
func Query(c Criteria, snapshot []domain.Listing) []domain.Listing {
	text := strings.ToLower(c.Text)
	out := make([]domain.Listing, 0, len(snapshot))
	for _, l := range snapshot {
		if !l.Available {
			continue
		}
		if c.Source != nil && l.Source != *c.Source {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(l.Location), text) {
			continue
		}
		out = append(out, l)
	}

	var less func(a, b domain.Listing) bool
	switch c.Sort {
	case SortPriceLow:
		less = func(a, b domain.Listing) bool { return a.Price.LessThan(b.Price) }
	case SortPriceHigh:
		less = func(a, b domain.Listing) bool { return a.Price.GreaterThan(b.Price) }
	case SortAmountHigh:
		less = func(a, b domain.Listing) bool { return a.Amount.GreaterThan(b.Amount) }
	default:
		less = func(a, b domain.Listing) bool { return a.CreatedAt.After(b.CreatedAt) }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
