package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PurchaseState string

const (
	StateIdle       PurchaseState = "idle"
	StateConfirming PurchaseState = "confirming"
	StateProcessing PurchaseState = "processing"
	StateSucceeded  PurchaseState = "succeeded"
	StateFailed     PurchaseState = "failed"
)

// Terminal reports whether no further transition can happen without a retry.
func (s PurchaseState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// PurchaseAttempt tracks one buyer trying to take one listing. It is never persisted.
type PurchaseAttempt struct {
	AttemptID uuid.UUID     `json:"attempt_id"`
	ListingID uuid.UUID     `json:"listing_id"`
	BuyerID   string        `json:"buyer_id"`
	State     PurchaseState `json:"state"`
	Failure   string        `json:"failure,omitempty"`
	Retryable bool          `json:"retryable"`
	Receipt   *Receipt      `json:"receipt,omitempty"`
	Mode      string        `json:"mode"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Receipt is the proof a backend hands back for a completed purchase.
type Receipt struct {
	TxHash      string          `json:"tx_hash"`
	ListingID   uuid.UUID       `json:"listing_id"`
	BuyerID     string          `json:"buyer_id"`
	Price       decimal.Decimal `json:"price"`
	Mode        string          `json:"mode"`
	BlockNumber uint64          `json:"block_number,omitempty"`
	ConfirmedAt time.Time       `json:"confirmed_at"`
}
