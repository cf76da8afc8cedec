package ledger

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"
)

var (
	ErrRejected          = errors.New("ledger: transaction rejected")
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
)

// tokenDecimals is the fixed-point scale the ledger uses for token and energy quantities.
const tokenDecimals = 18

type OperationKind string

const (
	OpMint     OperationKind = "mint"
	OpTransfer OperationKind = "transfer"
)

// Operation is one ledger write. Quantities are base-10 integers in the
// ledger's 18-decimal fixed point.
type Operation struct {
	Kind       OperationKind `json:"kind"`
	ListingRef common.Hash   `json:"listing_ref"`
	ListingID  uuid.UUID     `json:"listing_id"`
	Source     string        `json:"source,omitempty"`
	From       string        `json:"from"`
	To         string        `json:"to"`
	EnergyWei  string        `json:"energy"`
	ValueWei   string        `json:"value"`
}

// TransactionReceipt is what the ledger returns for an applied operation.
type TransactionReceipt struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	Status      string `json:"status"`
}

// Reverted reports whether the ledger mined the transaction but did not apply it.
func (r *TransactionReceipt) Reverted() bool {
	return strings.EqualFold(r.Status, "reverted") || strings.EqualFold(r.Status, "failed")
}

// Client submits operations. It must either apply an operation fully and
// return a receipt, or return an error.
type Client interface {
	Submit(ctx context.Context, op Operation) (*TransactionReceipt, error)
}

// ToWei converts a token or kWh quantity into 18-decimal fixed point.
// Digits beyond 18 decimals are truncated.
func ToWei(d decimal.Decimal) *big.Int {
	return d.Shift(tokenDecimals).Truncate(0).BigInt()
}

// FromWei is the inverse of ToWei.
func FromWei(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -tokenDecimals)
}

// ListingRef is the keccak256 of the listing id, the key the contract indexes listings by.
func ListingRef(id uuid.UUID) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(id[:])
	return common.BytesToHash(h.Sum(nil))
}

// NormalizeAccount returns the checksummed form of hex addresses and
// leaves any other account identifier untouched.
func NormalizeAccount(account string) string {
	account = strings.TrimSpace(account)
	if common.IsHexAddress(account) {
		return common.HexToAddress(account).Hex()
	}
	return account
}

// NewTransfer builds the operation that moves a listing's energy to buyer for price.
func NewTransfer(listingID uuid.UUID, source, seller, buyer string, energy, price decimal.Decimal) Operation {
	return Operation{
		Kind:       OpTransfer,
		ListingRef: ListingRef(listingID),
		ListingID:  listingID,
		Source:     source,
		From:       NormalizeAccount(seller),
		To:         NormalizeAccount(buyer),
		EnergyWei:  ToWei(energy).String(),
		ValueWei:   ToWei(price).String(),
	}
}
