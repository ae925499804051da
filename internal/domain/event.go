package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EventSource identifies the collaborator that produced an external event.
type EventSource string

const (
	SourceBankTransaction EventSource = "bank_transaction"
	SourcePOSSale         EventSource = "pos_sale"
)

// IsValid reports whether s is a known source.
func (s EventSource) IsValid() bool {
	return s == SourceBankTransaction || s == SourcePOSSale
}

// ReferenceKind returns the journal reference kind used when posting events
// from this source.
func (s EventSource) ReferenceKind() ReferenceKind {
	if s == SourcePOSSale {
		return RefPOSSale
	}
	return RefBankTransaction
}

// EventStatus is the categorization lifecycle state of an external event.
type EventStatus string

const (
	EventStatusForReview   EventStatus = "for_review"
	EventStatusCategorized EventStatus = "categorized"
	EventStatusExcluded    EventStatus = "excluded"
	EventStatusReconciled  EventStatus = "reconciled"
)

// IsValid reports whether s is a known status.
func (s EventStatus) IsValid() bool {
	switch s {
	case EventStatusForReview, EventStatusCategorized, EventStatusExcluded, EventStatusReconciled:
		return true
	}
	return false
}

// ExternalEvent is a bank transaction or POS sale awaiting or past
// categorization. Amount is signed: negative is an outflow.
type ExternalEvent struct {
	ID                string
	RestaurantID      string
	Source            EventSource
	CashAccountID     string
	Amount            decimal.Decimal
	Date              time.Time
	Description       string
	ItemName          string
	Payee             string
	CounterpartyID    *string
	Status            EventStatus
	CategoryAccountID *string
	IsSplit           bool
	IsTransfer        bool
	TransferPairID    *string
	IsReconciled      bool
	MatchedRuleID     *string
	RuleEvaluatedAt   *time.Time
	Note              string
	ExcludedReason    string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsOutflow reports whether money left the cash account.
func (e *ExternalEvent) IsOutflow() bool {
	return e.Amount.IsNegative()
}

// Magnitude is the absolute event amount.
func (e *ExternalEvent) Magnitude() decimal.Decimal {
	return e.Amount.Abs()
}

// Reference is the journal reference used for the event's category posting.
func (e *ExternalEvent) Reference() Reference {
	return Reference{Kind: e.Source.ReferenceKind(), ID: e.ID}
}

// SplitReference is the journal reference used for the event's split posting.
func (e *ExternalEvent) SplitReference() Reference {
	return Reference{Kind: RefSplit, ID: e.ID}
}

// IsPosted reports whether the event has ledger activity on its cash account.
func (e *ExternalEvent) IsPosted() bool {
	return e.Status == EventStatusCategorized || e.Status == EventStatusReconciled
}

func (e *ExternalEvent) reconciled() bool {
	return e.IsReconciled || e.Status == EventStatusReconciled
}

// CheckCategorize guards a transition to categorized. done is true when the
// event is already categorized to accountID, which callers treat as success.
func (e *ExternalEvent) CheckCategorize(accountID string) (done bool, err error) {
	if e.reconciled() {
		return false, ErrAlreadyReconciled
	}
	switch e.Status {
	case EventStatusForReview:
		return false, nil
	case EventStatusCategorized:
		if !e.IsSplit && !e.IsTransfer && e.CategoryAccountID != nil && *e.CategoryAccountID == accountID {
			return true, nil
		}
		return false, ErrAlreadyCategorized
	default:
		return false, ErrInvalidTransition
	}
}

// CheckReclassify guards a category change. noop is true when the event is
// already categorized to newAccountID.
func (e *ExternalEvent) CheckReclassify(newAccountID string) (noop bool, err error) {
	if e.reconciled() {
		return false, ErrAlreadyReconciled
	}
	if e.Status != EventStatusCategorized {
		return false, ErrInvalidTransition
	}
	if e.IsSplit {
		return false, ErrEventSplit
	}
	if e.IsTransfer || e.CategoryAccountID == nil {
		return false, ErrInvalidTransition
	}
	return *e.CategoryAccountID == newAccountID, nil
}

// CheckExclude guards exclusion. noop is true for an already excluded event.
func (e *ExternalEvent) CheckExclude() (noop bool, err error) {
	if e.reconciled() {
		return false, ErrAlreadyReconciled
	}
	switch e.Status {
	case EventStatusExcluded:
		return true, nil
	case EventStatusCategorized:
		return false, ErrAlreadyCategorized
	case EventStatusForReview:
		return false, nil
	default:
		return false, ErrInvalidTransition
	}
}

// CheckMarkReconciled guards the statement-matching transition.
func (e *ExternalEvent) CheckMarkReconciled() (noop bool, err error) {
	if e.reconciled() {
		return true, nil
	}
	if e.Status != EventStatusCategorized {
		return false, ErrInvalidTransition
	}
	return false, nil
}

// CheckUncategorize guards returning a categorized event to review.
func (e *ExternalEvent) CheckUncategorize() error {
	if e.reconciled() {
		return ErrAlreadyReconciled
	}
	if e.Status != EventStatusCategorized || e.IsTransfer {
		return ErrInvalidTransition
	}
	return nil
}

// CheckSplit guards a split. done is true when the event is already split.
func (e *ExternalEvent) CheckSplit() (done bool, err error) {
	if e.reconciled() {
		return false, ErrAlreadyReconciled
	}
	switch e.Status {
	case EventStatusForReview:
		return false, nil
	case EventStatusCategorized:
		if e.IsSplit {
			return true, nil
		}
		return false, ErrAlreadyCategorized
	default:
		return false, ErrInvalidTransition
	}
}

// CategoryLines builds the lines of a category posting. An outflow debits the
// category and credits cash; an inflow debits cash and credits the category.
func (e *ExternalEvent) CategoryLines(categoryAccountID string) []JournalLine {
	amount := e.Magnitude()
	if e.IsOutflow() {
		return []JournalLine{
			DebitLine(categoryAccountID, amount, e.Description),
			CreditLine(e.CashAccountID, amount, e.Description),
		}
	}
	return []JournalLine{
		DebitLine(e.CashAccountID, amount, e.Description),
		CreditLine(categoryAccountID, amount, e.Description),
	}
}

// ReclassificationLines moves only the category leg from oldAccountID to
// newAccountID. The cash leg of the original posting is left in place.
func (e *ExternalEvent) ReclassificationLines(oldAccountID, newAccountID, reason string) []JournalLine {
	amount := e.Magnitude()
	if e.IsOutflow() {
		return []JournalLine{
			DebitLine(newAccountID, amount, reason),
			CreditLine(oldAccountID, amount, reason),
		}
	}
	return []JournalLine{
		DebitLine(oldAccountID, amount, reason),
		CreditLine(newAccountID, amount, reason),
	}
}

// SplitLines builds one line per allocation plus one offsetting cash line.
// Allocations must already sum to the event magnitude.
func (e *ExternalEvent) SplitLines(allocations []SplitAllocation) []JournalLine {
	lines := make([]JournalLine, 0, len(allocations)+1)
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Amount)
		if e.IsOutflow() {
			lines = append(lines, DebitLine(a.AccountID, a.Amount, a.Description))
		} else {
			lines = append(lines, CreditLine(a.AccountID, a.Amount, a.Description))
		}
	}
	if e.IsOutflow() {
		lines = append(lines, CreditLine(e.CashAccountID, total, e.Description))
	} else {
		lines = append(lines, DebitLine(e.CashAccountID, total, e.Description))
	}
	return lines
}

// MarkCategorized moves the event to categorized against accountID.
func (e *ExternalEvent) MarkCategorized(accountID, note string, now time.Time) {
	e.Status = EventStatusCategorized
	e.CategoryAccountID = &accountID
	if note != "" {
		e.Note = note
	}
	e.UpdatedAt = now
}

// MarkSplit moves the event to categorized as a split parent.
func (e *ExternalEvent) MarkSplit(now time.Time) {
	e.Status = EventStatusCategorized
	e.CategoryAccountID = nil
	e.IsSplit = true
	e.UpdatedAt = now
}

// MarkTransfer moves the event to categorized as one leg of a transfer.
func (e *ExternalEvent) MarkTransfer(pairID string, now time.Time) {
	e.Status = EventStatusCategorized
	e.CategoryAccountID = nil
	e.IsTransfer = true
	e.TransferPairID = &pairID
	e.UpdatedAt = now
}

// MarkExcluded moves the event to excluded.
func (e *ExternalEvent) MarkExcluded(reason string, now time.Time) {
	e.Status = EventStatusExcluded
	e.ExcludedReason = reason
	e.UpdatedAt = now
}

// MarkReconciled flags the event as matched against a statement.
func (e *ExternalEvent) MarkReconciled(now time.Time) {
	e.Status = EventStatusReconciled
	e.IsReconciled = true
	e.UpdatedAt = now
}

// MarkForReview returns the event to review and clears any posting state.
func (e *ExternalEvent) MarkForReview(now time.Time) {
	e.Status = EventStatusForReview
	e.CategoryAccountID = nil
	e.IsSplit = false
	e.UpdatedAt = now
}

// SplitAllocation is one requested slice of a split.
type SplitAllocation struct {
	AccountID   string
	Amount      decimal.Decimal
	Description string
}

// NormalizeAllocations checks allocations against total and folds any
// residual within SplitTolerance into the last allocation so the resulting
// entry balances exactly.
func NormalizeAllocations(total decimal.Decimal, allocations []SplitAllocation) ([]SplitAllocation, error) {
	if len(allocations) == 0 {
		return nil, ErrSplitMismatch
	}
	total = total.Abs()
	sum := decimal.Zero
	for _, a := range allocations {
		if a.AccountID == "" {
			return nil, ErrUnknownAccount
		}
		if err := ValidateAmount(a.Amount); err != nil {
			return nil, err
		}
		sum = sum.Add(a.Amount)
	}

	residual := total.Sub(sum)
	if residual.Abs().GreaterThan(SplitTolerance(total)) {
		return nil, fmt.Errorf("%w: allocated %s of %s", ErrSplitMismatch, sum.StringFixed(2), total.StringFixed(2))
	}

	out := make([]SplitAllocation, len(allocations))
	copy(out, allocations)
	if !residual.IsZero() {
		last := &out[len(out)-1]
		last.Amount = last.Amount.Add(residual)
		if !last.Amount.IsPositive() {
			return nil, ErrSplitMismatch
		}
	}
	return out, nil
}

// EventSplit is a persisted child allocation of a split event. Rows are kept
// after the split is undone and point at the reversing entry.
type EventSplit struct {
	ID              string
	EventID         string
	RestaurantID    string
	AccountID       string
	Amount          decimal.Decimal
	Description     string
	EntryID         string
	ReversedEntryID *string
	CreatedAt       time.Time
}

// Reclassification records a category change for audit and reporting.
type Reclassification struct {
	ID           string
	RestaurantID string
	EventID      string
	OldAccountID string
	NewAccountID string
	Reason       string
	EntryID      string
	CreatedBy    string
	CreatedAt    time.Time
}
