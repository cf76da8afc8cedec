package purchases

import (
	"context"
	"errors"
	"sync"
	"time"

	"energy-exchange/internal/application/backend"
	"energy-exchange/internal/application/listings"
	"energy-exchange/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Orchestrator drives purchase attempts through
// idle -> confirming -> processing -> succeeded | failed.
// It is the only writer of listing availability.
type Orchestrator struct {
	store   listings.Store
	guard   Guard
	backend backend.Backend
	now     func() time.Time

	mu       sync.Mutex
	attempts map[uuid.UUID]*domain.PurchaseAttempt
}

func NewOrchestrator(store listings.Store, guard Guard, b backend.Backend) *Orchestrator {
	return &Orchestrator{
		store:    store,
		guard:    guard,
		backend:  b,
		now:      time.Now,
		attempts: make(map[uuid.UUID]*domain.PurchaseAttempt),
	}
}

func (o *Orchestrator) Mode() backend.Mode {
	return o.backend.Mode()
}

// Begin opens an idle attempt on listingID. Nothing is locked yet.
func (o *Orchestrator) Begin(ctx context.Context, listingID uuid.UUID, buyerID string) (domain.PurchaseAttempt, error) {
	if err := o.checkAvailable(ctx, listingID); err != nil {
		return domain.PurchaseAttempt{}, err
	}
	now := o.now().UTC()
	a := &domain.PurchaseAttempt{
		AttemptID: uuid.New(),
		ListingID: listingID,
		BuyerID:   buyerID,
		State:     domain.StateIdle,
		Mode:      string(o.Mode()),
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.mu.Lock()
	o.attempts[a.AttemptID] = a
	o.mu.Unlock()

	log.Debug().Str("attempt_id", a.AttemptID.String()).Str("listing_id", listingID.String()).Str("mode", a.Mode).Msg("purchase attempt opened")
	return *a, nil
}

// Review moves an idle attempt to confirming.
func (o *Orchestrator) Review(attemptID uuid.UUID) (domain.PurchaseAttempt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.attempts[attemptID]
	if !ok {
		return domain.PurchaseAttempt{}, domain.ErrAttemptNotFound
	}
	switch a.State {
	case domain.StateIdle:
		o.transition(a, domain.StateConfirming)
	case domain.StateConfirming:
	default:
		return *a, domain.ErrInvalidStateTransition
	}
	return *a, nil
}

// Confirm runs the purchase. It returns once the attempt is succeeded or
// failed; cancelling ctx after this point does not abort the backend call.
func (o *Orchestrator) Confirm(ctx context.Context, attemptID uuid.UUID) (domain.PurchaseAttempt, error) {
	o.mu.Lock()
	a, ok := o.attempts[attemptID]
	if !ok {
		o.mu.Unlock()
		return domain.PurchaseAttempt{}, domain.ErrAttemptNotFound
	}
	if a.State != domain.StateIdle && a.State != domain.StateConfirming {
		snapshot := *a
		o.mu.Unlock()
		return snapshot, domain.ErrInvalidStateTransition
	}
	o.transition(a, domain.StateProcessing)
	listingID, buyerID := a.ListingID, a.BuyerID
	o.mu.Unlock()

	receipt, err := o.process(context.WithoutCancel(ctx), attemptID, listingID, buyerID)
	return o.resolve(attemptID, receipt, err)
}

// Purchase is Begin followed by Confirm. A failed purchase leaves nothing
// behind; calling Purchase again is the retry.
func (o *Orchestrator) Purchase(ctx context.Context, listingID uuid.UUID, buyerID string) (domain.PurchaseAttempt, error) {
	a, err := o.Begin(ctx, listingID, buyerID)
	if err != nil {
		return a, err
	}
	res, err := o.Confirm(ctx, a.AttemptID)
	if err != nil {
		o.mu.Lock()
		delete(o.attempts, a.AttemptID)
		o.mu.Unlock()
	}
	return res, err
}

// Cancel drops an attempt that is not processing.
func (o *Orchestrator) Cancel(attemptID uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if a.State == domain.StateProcessing {
		return domain.ErrInvalidStateTransition
	}
	delete(o.attempts, attemptID)
	log.Debug().Str("attempt_id", attemptID.String()).Str("state", string(a.State)).Msg("purchase attempt cancelled")
	return nil
}

// Retry puts a failed attempt back to idle after re-checking the listing.
// If the listing was sold meanwhile the attempt is dropped.
func (o *Orchestrator) Retry(ctx context.Context, attemptID uuid.UUID) (domain.PurchaseAttempt, error) {
	o.mu.Lock()
	a, ok := o.attempts[attemptID]
	if !ok {
		o.mu.Unlock()
		return domain.PurchaseAttempt{}, domain.ErrAttemptNotFound
	}
	if a.State != domain.StateFailed {
		snapshot := *a
		o.mu.Unlock()
		return snapshot, domain.ErrInvalidStateTransition
	}
	listingID := a.ListingID
	o.mu.Unlock()

	if err := o.checkAvailable(ctx, listingID); err != nil {
		o.mu.Lock()
		delete(o.attempts, attemptID)
		o.mu.Unlock()
		return domain.PurchaseAttempt{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok = o.attempts[attemptID]
	if !ok {
		return domain.PurchaseAttempt{}, domain.ErrAttemptNotFound
	}
	if a.State != domain.StateFailed {
		return *a, domain.ErrInvalidStateTransition
	}
	a.Failure = ""
	a.Retryable = false
	o.transition(a, domain.StateIdle)
	return *a, nil
}

// Attempt returns the current state of an open attempt.
func (o *Orchestrator) Attempt(attemptID uuid.UUID) (domain.PurchaseAttempt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.attempts[attemptID]
	if !ok {
		return domain.PurchaseAttempt{}, domain.ErrAttemptNotFound
	}
	return *a, nil
}

// Prune drops idle, confirming and failed attempts untouched since before cutoff.
func (o *Orchestrator) Prune(cutoff time.Time) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for id, a := range o.attempts {
		if a.State != domain.StateProcessing && a.UpdatedAt.Before(cutoff) {
			delete(o.attempts, id)
			n++
		}
	}
	return n
}

// process holds the guard for the backend call and the commit. When the
// backend settled but the commit failed, the guard is kept so the listing
// cannot be settled again before reconciliation. A RedisGuard frees it at
// TTL; a LocalGuard keeps it until restart.
func (o *Orchestrator) process(ctx context.Context, attemptID, listingID uuid.UUID, buyerID string) (*domain.Receipt, error) {
	release, err := o.guard.TryAcquire(ctx, listingID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyLocked) {
			return nil, domain.ErrAlreadyLocked
		}
		log.Error().Err(err).Str("listing_id", listingID.String()).Msg("purchase guard unavailable")
		return nil, domain.BackendFailure("guard unavailable")
	}
	held := false
	defer func() {
		if !held {
			release()
		}
	}()

	listing, err := o.store.Get(ctx, listingID)
	if err != nil {
		return nil, storeError(err)
	}
	if !listing.Available {
		return nil, domain.ErrAlreadyUnavailable
	}

	receipt, err := o.invoke(ctx, listingID, buyerID, listing.Price)
	if err != nil {
		return nil, err
	}

	if err := o.store.SetAvailability(ctx, listingID, false); err != nil {
		held = true
		log.Error().Err(err).
			Str("attempt_id", attemptID.String()).
			Str("listing_id", listingID.String()).
			Str("tx_hash", receipt.TxHash).
			Str("mode", string(o.Mode())).
			Msg("backend settled purchase but listing commit failed; guard held for reconciliation")
		return nil, domain.BackendFailure("commit failed")
	}
	return receipt, nil
}

// invoke calls the backend and folds panics and foreign errors into BackendError.
func (o *Orchestrator) invoke(ctx context.Context, listingID uuid.UUID, buyerID string, price decimal.Decimal) (receipt *domain.Receipt, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("listing_id", listingID.String()).Str("mode", string(o.Mode())).Msg("transaction backend panicked")
			receipt, err = nil, domain.BackendFailure("unexpected backend error")
		}
	}()
	receipt, err = o.backend.Purchase(ctx, listingID, buyerID, price)
	if err != nil {
		var be *domain.BackendError
		if errors.As(err, &be) {
			return nil, be
		}
		return nil, domain.BackendFailure("unexpected backend error")
	}
	if receipt == nil {
		return nil, domain.BackendFailure("backend returned no receipt")
	}
	return receipt, nil
}

func (o *Orchestrator) resolve(attemptID uuid.UUID, receipt *domain.Receipt, err error) (domain.PurchaseAttempt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	a := o.attempts[attemptID]
	if err == nil {
		a.Receipt = receipt
		o.transition(a, domain.StateSucceeded)
		delete(o.attempts, attemptID)
		log.Info().Str("attempt_id", attemptID.String()).Str("listing_id", a.ListingID.String()).Str("tx_hash", receipt.TxHash).Str("mode", a.Mode).Msg("purchase succeeded")
		return *a, nil
	}
	a.Failure = domain.FailureReason(err)
	a.Retryable = domain.Retryable(err)
	o.transition(a, domain.StateFailed)
	log.Warn().Err(err).Str("attempt_id", attemptID.String()).Str("listing_id", a.ListingID.String()).Str("mode", a.Mode).Msg("purchase failed")
	return *a, err
}

func (o *Orchestrator) checkAvailable(ctx context.Context, listingID uuid.UUID) error {
	listing, err := o.store.Get(ctx, listingID)
	if err != nil {
		return storeError(err)
	}
	if !listing.Available {
		return domain.ErrAlreadyUnavailable
	}
	return nil
}

// transition must be called with mu held.
func (o *Orchestrator) transition(a *domain.PurchaseAttempt, to domain.PurchaseState) {
	log.Debug().Str("attempt_id", a.AttemptID.String()).Str("from", string(a.State)).Str("to", string(to)).Msg("purchase transition")
	a.State = to
	a.UpdatedAt = o.now().UTC()
}

func storeError(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrNotFound
	}
	log.Error().Err(err).Msg("listing store error")
	return domain.BackendFailure("listing store unavailable")
}
