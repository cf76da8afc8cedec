package domain

import "errors"

var (
	ErrInvalidListing         = errors.New("Invalid listing")
	ErrNotFound               = errors.New("Listing not found")
	ErrAlreadyUnavailable     = errors.New("Listing is no longer available")
	ErrAlreadyLocked          = errors.New("Listing is being purchased by another buyer")
	ErrBackendFailure         = errors.New("Transaction failed")
	ErrInvalidStateTransition = errors.New("Invalid purchase state transition")
	ErrAttemptNotFound        = errors.New("Purchase attempt not found")
	ErrRelistForbidden        = errors.New("Sold listing cannot be made available again")
)

// BackendError is how a transaction backend declines a purchase. Reason is
// safe to show to a buyer; raw client errors never end up in it.
type BackendError struct {
	Reason string
}

func (e *BackendError) Error() string {
	return ErrBackendFailure.Error() + ": " + e.Reason
}

func (e *BackendError) Unwrap() error {
	return ErrBackendFailure
}

// BackendFailure builds a *BackendError.
func BackendFailure(reason string) error {
	return &BackendError{Reason: reason}
}

// FailureReason returns the buyer-facing reason carried by err, or the error text.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be.Reason
	}
	return err.Error()
}

// Retryable reports whether the buyer may start over on the same listing.
// Lost races and declined transactions are retryable; bad input and
// state-machine misuse are not.
func Retryable(err error) bool {
	return errors.Is(err, ErrBackendFailure) ||
		errors.Is(err, ErrAlreadyLocked) ||
		errors.Is(err, ErrAlreadyUnavailable)
}
