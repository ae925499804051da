package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by every resource-specific not-found error.
var ErrNotFound = errors.New("not found")

var (
	// Ledger errors
	ErrUnbalanced        = errors.New("journal entry is unbalanced: debits must equal credits")
	ErrUnknownAccount    = errors.New("account is unknown, inactive or belongs to another restaurant")
	ErrInvalidLine       = errors.New("journal line must carry exactly one non-zero, non-negative side")
	ErrTooFewLines       = errors.New("journal entry needs at least two lines")
	ErrAlreadyReversed   = errors.New("journal entry has already been reversed")
	ErrReferenceConflict = errors.New("an active journal entry already exists for this reference")
	ErrDuplicateCode     = errors.New("account code already exists for this restaurant")

	// Categorization errors
	ErrAlreadyCategorized = errors.New("event is already categorized")
	ErrAlreadyReconciled  = errors.New("event is already reconciled")
	ErrPeriodClosed       = errors.New("event date falls in a closed fiscal period")
	ErrInvalidTransition  = errors.New("transition not allowed from current event status")
	ErrEventSplit         = errors.New("event is split; reclassify its allocations instead")
	ErrInvalidSource      = errors.New("unknown event source")

	// Split and transfer errors
	ErrSplitMismatch   = errors.New("split amounts must equal the event total")
	ErrAmountMismatch  = errors.New("transfer amounts must offset each other")
	ErrCrossRestaurant = errors.New("events belong to different restaurants")
	ErrSameEvent       = errors.New("cannot pair an event with itself")
	ErrInvalidAmount   = errors.New("amount must be a positive, finite number")
	ErrSameAccount     = errors.New("transfer events must use different cash accounts")

	// Rule and boundary errors
	ErrInvalidRule     = errors.New("invalid categorization rule")
	ErrInvalidBoundary = errors.New("invalid reconciliation boundary")

	// Not found errors
	ErrAccountNotFound  = fmt.Errorf("account %w", ErrNotFound)
	ErrEntryNotFound    = fmt.Errorf("journal entry %w", ErrNotFound)
	ErrEventNotFound    = fmt.Errorf("event %w", ErrNotFound)
	ErrRuleNotFound     = fmt.Errorf("rule %w", ErrNotFound)
	ErrBoundaryNotFound = fmt.Errorf("reconciliation boundary %w", ErrNotFound)
)

// Kind is a stable, machine-readable error category for callers that branch
// on failures without importing every sentinel.
type Kind string

const (
	KindUnbalanced         Kind = "unbalanced"
	KindUnknownAccount     Kind = "unknown_account"
	KindAlreadyCategorized Kind = "already_categorized"
	KindAlreadyReconciled  Kind = "already_reconciled"
	KindPeriodClosed       Kind = "period_closed"
	KindSplitMismatch      Kind = "split_mismatch"
	KindAmountMismatch     Kind = "amount_mismatch"
	KindCrossRestaurant    Kind = "cross_restaurant"
	KindUnauthorized       Kind = "unauthorized"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindInvalid            Kind = "invalid"
	KindInternal           Kind = "internal"
)

// ErrorKind classifies err into one of the error kinds.
func ErrorKind(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnbalanced):
		return KindUnbalanced
	case errors.Is(err, ErrUnknownAccount):
		return KindUnknownAccount
	case errors.Is(err, ErrAlreadyCategorized):
		return KindAlreadyCategorized
	case errors.Is(err, ErrAlreadyReconciled):
		return KindAlreadyReconciled
	case errors.Is(err, ErrPeriodClosed):
		return KindPeriodClosed
	case errors.Is(err, ErrSplitMismatch):
		return KindSplitMismatch
	case errors.Is(err, ErrAmountMismatch):
		return KindAmountMismatch
	case errors.Is(err, ErrCrossRestaurant):
		return KindCrossRestaurant
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrExpiredToken),
		errors.Is(err, ErrInsufficientRole):
		return KindUnauthorized
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyReversed), errors.Is(err, ErrReferenceConflict), errors.Is(err, ErrDuplicateCode),
		errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrEventSplit):
		return KindConflict
	case errors.Is(err, ErrInvalidLine), errors.Is(err, ErrTooFewLines), errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidRule), errors.Is(err, ErrSameEvent), errors.Is(err, ErrInvalidAccountName),
		errors.Is(err, ErrInvalidAccountCode), errors.Is(err, ErrInvalidAccountType), errors.Is(err, ErrInvalidIDFormat),
		errors.Is(err, ErrAmountTooLarge), errors.Is(err, ErrSameAccount), errors.Is(err, ErrInvalidSource),
		errors.Is(err, ErrInvalidBoundary):
		return KindInvalid
	default:
		return KindInternal
	}
}
