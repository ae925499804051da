package domain

import (
	"time"
)

// TransferCandidateWindow bounds the date gap between two legs of a transfer.
const TransferCandidateWindow = 3 * 24 * time.Hour

// ValidateTransferPair checks that a and b can be linked as one transfer.
func ValidateTransferPair(a, b *ExternalEvent) error {
	if a.ID == b.ID {
		return ErrSameEvent
	}
	if a.RestaurantID != b.RestaurantID {
		return ErrCrossRestaurant
	}
	if a.Amount.IsZero() || b.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if a.Amount.Add(b.Amount).Abs().GreaterThan(TransferTolerance()) {
		return ErrAmountMismatch
	}
	if a.CashAccountID == b.CashAccountID {
		return ErrSameAccount
	}
	return nil
}

// OrderTransferLegs returns the events as (inflow, outflow).
func OrderTransferLegs(a, b *ExternalEvent) (inflow, outflow *ExternalEvent) {
	if a.IsOutflow() {
		return b, a
	}
	return a, b
}

// TransferReference keys a transfer posting on the lower event id so both
// orderings of the pair claim the same reference.
func TransferReference(a, b *ExternalEvent) Reference {
	id := a.ID
	if b.ID < id {
		id = b.ID
	}
	return Reference{Kind: RefTransfer, ID: id}
}

// TransferLines debits the inflow's cash account and credits the outflow's.
func TransferLines(a, b *ExternalEvent, description string) []JournalLine {
	inflow, outflow := OrderTransferLegs(a, b)
	amount := outflow.Magnitude()
	return []JournalLine{
		DebitLine(inflow.CashAccountID, amount, description),
		CreditLine(outflow.CashAccountID, amount, description),
	}
}

// IsTransferPairOf reports whether a is already linked to b.
func (e *ExternalEvent) IsTransferPairOf(other *ExternalEvent) bool {
	return e.IsTransfer && e.TransferPairID != nil && *e.TransferPairID == other.ID
}

// IsTransferCandidate reports whether other looks like the opposite leg of e.
func (e *ExternalEvent) IsTransferCandidate(other *ExternalEvent) bool {
	if e.ID == other.ID || e.RestaurantID != other.RestaurantID || e.CashAccountID == other.CashAccountID {
		return false
	}
	if e.Status != EventStatusForReview || other.Status != EventStatusForReview {
		return false
	}
	if e.IsOutflow() == other.IsOutflow() {
		return false
	}
	if e.Amount.Add(other.Amount).Abs().GreaterThan(TransferTolerance()) {
		return false
	}
	gap := e.Date.Sub(other.Date)
	if gap < 0 {
		gap = -gap
	}
	return gap <= TransferCandidateWindow
}

// CheckTransfer guards linking e to other. done is true when the two events
// are already linked to each other.
func (e *ExternalEvent) CheckTransfer(other *ExternalEvent) (done bool, err error) {
	if e.IsTransferPairOf(other) && other.IsTransferPairOf(e) {
		return true, nil
	}
	for _, ev := range []*ExternalEvent{e, other} {
		if ev.reconciled() {
			return false, ErrAlreadyReconciled
		}
		switch ev.Status {
		case EventStatusForReview:
		case EventStatusCategorized:
			return false, ErrAlreadyCategorized
		default:
			return false, ErrInvalidTransition
		}
	}
	return false, nil
}
