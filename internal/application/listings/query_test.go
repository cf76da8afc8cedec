package listings

import (
	"testing"
	"time"

	"energy-exchange/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var queryBase = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func row(source domain.EnergySource, amount, price string, location string, minute int, available bool) domain.Listing {
	return domain.Listing{
		ListingID: uuid.New(),
		Source:    source,
		Amount:    decimal.RequireFromString(amount),
		Price:     decimal.RequireFromString(price),
		Seller:    "seller",
		Location:  location,
		Available: available,
		CreatedAt: queryBase.Add(time.Duration(minute) * time.Minute),
	}
}

func ids(ls []domain.Listing) []uuid.UUID {
	out := make([]uuid.UUID, len(ls))
	for i, l := range ls {
		out[i] = l.ListingID
	}
	return out
}

func sourcePtr(s domain.EnergySource) *domain.EnergySource { return &s }

func TestParseSortKey(t *testing.T) {
	k, err := ParseSortKey("")
	require.NoError(t, err)
	assert.Equal(t, SortNewest, k)

	k, err = ParseSortKey("Price-Low")
	require.NoError(t, err)
	assert.Equal(t, SortPriceLow, k)

	_, err = ParseSortKey("cheapest")
	assert.ErrorIs(t, err, ErrInvalidCriteria)
}

func TestQuery_OnlyAvailable(t *testing.T) {
	a := row(domain.SourceSolar, "10", "1", "Austin", 0, true)
	b := row(domain.SourceSolar, "10", "1", "Austin", 1, false)
	got := Query(Criteria{}, []domain.Listing{a, b})
	assert.Equal(t, []uuid.UUID{a.ListingID}, ids(got))
}

func TestQuery_EmptySnapshot(t *testing.T) {
	got := Query(Criteria{Sort: SortPriceHigh}, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestQuery_SourceAndLocationFilter(t *testing.T) {
	snapshot := []domain.Listing{
		row(domain.SourceSolar, "10", "1", "Austin, TX", 0, true),
		row(domain.SourceWind, "10", "1", "Austin, TX", 1, true),
		row(domain.SourceSolar, "10", "1", "Denver, CO", 2, true),
	}
	got := Query(Criteria{Source: sourcePtr(domain.SourceSolar), Text: "aUSTin"}, snapshot)
	assert.Equal(t, []uuid.UUID{snapshot[0].ListingID}, ids(got))

	got = Query(Criteria{Text: "co"}, snapshot)
	assert.Equal(t, []uuid.UUID{snapshot[2].ListingID}, ids(got))
}

func TestQuery_Sorts(t *testing.T) {
	oldCheap := row(domain.SourceSolar, "5", "0.2", "A", 0, true)
	midPricey := row(domain.SourceWind, "50", "3", "B", 1, true)
	newMid := row(domain.SourceHydro, "20", "1.5", "C", 2, true)
	snapshot := []domain.Listing{oldCheap, midPricey, newMid}

	assert.Equal(t, []uuid.UUID{newMid.ListingID, midPricey.ListingID, oldCheap.ListingID},
		ids(Query(Criteria{Sort: SortNewest}, snapshot)))
	assert.Equal(t, []uuid.UUID{oldCheap.ListingID, newMid.ListingID, midPricey.ListingID},
		ids(Query(Criteria{Sort: SortPriceLow}, snapshot)))
	assert.Equal(t, []uuid.UUID{midPricey.ListingID, newMid.ListingID, oldCheap.ListingID},
		ids(Query(Criteria{Sort: SortPriceHigh}, snapshot)))
	assert.Equal(t, []uuid.UUID{midPricey.ListingID, newMid.ListingID, oldCheap.ListingID},
		ids(Query(Criteria{Sort: SortAmountHigh}, snapshot)))
}

func TestQuery_StableOnTies(t *testing.T) {
	snapshot := []domain.Listing{
		row(domain.SourceSolar, "10", "2", "A", 0, true),
		row(domain.SourceSolar, "10", "2", "B", 1, true),
		row(domain.SourceSolar, "10", "2", "C", 2, true),
	}
	assert.Equal(t, ids(snapshot), ids(Query(Criteria{Sort: SortPriceLow}, snapshot)))
	assert.Equal(t, ids(snapshot), ids(Query(Criteria{Sort: SortAmountHigh}, snapshot)))
}

func TestQuery_DeterministicAndPure(t *testing.T) {
	snapshot := []domain.Listing{
		row(domain.SourceSolar, "3", "9", "A", 3, true),
		row(domain.SourceWind, "1", "2", "B", 1, true),
		row(domain.SourceBiomass, "7", "4", "C", 2, false),
		row(domain.SourceHydro, "2", "2", "D", 0, true),
	}
	original := ids(snapshot)
	c := Criteria{Sort: SortPriceLow}
	first := Query(c, snapshot)
	second := Query(c, snapshot)
	assert.Equal(t, ids(first), ids(second))
	assert.Equal(t, original, ids(snapshot))
	assert.Len(t, first, 3)
}

func TestQuery_DecimalPrecision(t *testing.T) {
	a := row(domain.SourceSolar, "1", "0.30000000000000001", "A", 0, true)
	b := row(domain.SourceSolar, "1", "0.3", "B", 1, true)
	got := Query(Criteria{Sort: SortPriceLow}, []domain.Listing{a, b})
	assert.Equal(t, []uuid.UUID{b.ListingID, a.ListingID}, ids(got))
}
