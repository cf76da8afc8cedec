package backend

import (
	"context"
	"errors"
	"time"

	"energy-exchange/internal/application/ledger"
	"energy-exchange/internal/application/listings"
	"energy-exchange/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	reasonTimeout           = "ledger timeout"
	reasonRejected          = "transaction rejected"
	reasonInsufficientFunds = "insufficient funds"
	reasonLedgerError       = "ledger error"
)

// Live settles purchases on the ledger through an injected client.
type Live struct {
	Client   ledger.Client
	Listings listings.Reader
}

func (l *Live) Mode() Mode { return ModeLive }

func (l *Live) Purchase(ctx context.Context, listingID uuid.UUID, buyerID string, price decimal.Decimal) (*domain.Receipt, error) {
	listing, err := l.Listings.Get(ctx, listingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.BackendFailure(reasonUnavailable)
		}
		return nil, domain.BackendFailure("listing lookup failed")
	}

	op := ledger.NewTransfer(listingID, string(listing.Source), listing.Seller, buyerID, listing.Amount, price)
	txr, err := l.submit(ctx, op)
	if err != nil {
		reason := classify(err)
		log.Warn().Err(err).Str("listing_id", listingID.String()).Str("reason", reason).Msg("ledger declined purchase")
		return nil, domain.BackendFailure(reason)
	}
	if txr == nil || txr.TxHash == "" {
		return nil, domain.BackendFailure(reasonLedgerError)
	}
	if txr.Reverted() {
		return nil, domain.BackendFailure(reasonRejected)
	}
	return &domain.Receipt{
		TxHash:      txr.TxHash,
		ListingID:   listingID,
		BuyerID:     buyerID,
		Price:       price,
		Mode:        string(ModeLive),
		BlockNumber: txr.BlockNumber,
		ConfirmedAt: time.Now().UTC(),
	}, nil
}

// submit turns a panicking client into an ordinary error.
func (l *Live) submit(ctx context.Context, op ledger.Operation) (txr *ledger.TransactionReceipt, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("listing_id", op.ListingID.String()).Msg("ledger client panicked")
			txr, err = nil, errors.New("ledger client panic")
		}
	}()
	return l.Client.Submit(ctx, op)
}

func classify(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return reasonTimeout
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return reasonInsufficientFunds
	case errors.Is(err, ledger.ErrRejected):
		return reasonRejected
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return reasonTimeout
	}
	return reasonLedgerError
}
