package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EnergySource is the generation type behind a listing.
type EnergySource string

const (
	SourceSolar   EnergySource = "solar"
	SourceWind    EnergySource = "wind"
	SourceHydro   EnergySource = "hydro"
	SourceBiomass EnergySource = "biomass"
)

// EnergySources lists every accepted source in display order.
var EnergySources = []EnergySource{SourceSolar, SourceWind, SourceHydro, SourceBiomass}

// ParseEnergySource accepts any casing ("Solar" is what sellers mint on the ledger).
func ParseEnergySource(s string) (EnergySource, error) {
	src := EnergySource(strings.ToLower(strings.TrimSpace(s)))
	if !src.Valid() {
		return "", fmt.Errorf("%w: unknown energy source %q", ErrInvalidListing, s)
	}
	return src, nil
}

func (s EnergySource) Valid() bool {
	switch s {
	case SourceSolar, SourceWind, SourceHydro, SourceBiomass:
		return true
	}
	return false
}

// Listing is a sellable unit of energy. Only Available ever changes after
// creation, and only from true to false.
type Listing struct {
	Seq       uint            `gorm:"column:seq;primaryKey;autoIncrement" json:"-"`
	ListingID uuid.UUID       `gorm:"column:listing_id;type:uuid;uniqueIndex;not null" json:"listing_id"`
	Source    EnergySource    `gorm:"column:source;type:varchar(16);not null" json:"source"`
	Amount    decimal.Decimal `gorm:"column:energy_amount;type:decimal(24,6);not null" json:"energy_amount"`
	Price     decimal.Decimal `gorm:"column:price;type:decimal(36,18);not null" json:"price"`
	Seller    string          `gorm:"column:seller;not null" json:"seller"`
	Location  string          `gorm:"column:location" json:"location"`
	Available bool            `gorm:"column:available;not null" json:"available"`
	CreatedAt time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (Listing) TableName() string {
	return "EnergyListings"
}

// BeforeCreate sets listing_id if the caller left it empty.
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ListingID == uuid.Nil {
		l.ListingID = uuid.New()
	}
	return nil
}

// Validate enforces the creation rules every store applies on Add.
func (l Listing) Validate() error {
	if !l.Source.Valid() {
		return fmt.Errorf("%w: unknown energy source %q", ErrInvalidListing, l.Source)
	}
	if !l.Amount.IsPositive() {
		return fmt.Errorf("%w: energy amount must be positive", ErrInvalidListing)
	}
	if !l.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidListing)
	}
	if strings.TrimSpace(l.Seller) == "" {
		return fmt.Errorf("%w: seller is required", ErrInvalidListing)
	}
	return nil
}
