package domain

import (
	"slices"
	"time"
)

// Event types
const (
	EventTypeEntryPosted       = "journal.entry_posted"
	EventTypeEntryReversed     = "journal.entry_reversed"
	EventTypeEventCategorized  = "event.categorized"
	EventTypeEventReclassified = "event.reclassified"
	EventTypeEventExcluded     = "event.excluded"
	EventTypeEventSplit        = "event.split"
	EventTypeTransferLinked    = "event.transfer_linked"
	EventTypeRuleBatchFailure  = "rules.batch_failure"
	EventTypeBoundaryViolation = "reconciliation.violation"
	EventTypeBoundaryAdjusted  = "reconciliation.adjusted"
	EventTypeAccountCreated    = "account.created"
	EventTypeBalancesRebuilt   = "balances.rebuilt"
)

// Aggregate types
const (
	AggregateTypeEntry    = "journal_entry"
	AggregateTypeEvent    = "external_event"
	AggregateTypeRule     = "categorization_rule"
	AggregateTypeBoundary = "reconciliation_boundary"
	AggregateTypeAccount  = "account"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	RestaurantID  string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// OpsSignalTypes lists the event types routed to the operator inbox.
var OpsSignalTypes = []string{EventTypeRuleBatchFailure, EventTypeBoundaryViolation, EventTypeBoundaryAdjusted}

// IsOpsSignal reports whether the event should raise an operator-visible alert.
func (e *OutboxEvent) IsOpsSignal() bool {
	return slices.Contains(OpsSignalTypes, e.EventType)
}

// EntryPostedEvent payload
type EntryPostedEvent struct {
	EntryID       string   `json:"entry_id"`
	EntryNumber   string   `json:"entry_number"`
	ReferenceKind string   `json:"reference_kind"`
	ReferenceID   string   `json:"reference_id"`
	Total         string   `json:"total"`
	AccountIDs    []string `json:"account_ids"`
	EntryDate     string   `json:"entry_date"`
}

// EntryReversedEvent payload
type EntryReversedEvent struct {
	ReversalEntryID string `json:"reversal_entry_id"`
	OriginalEntryID string `json:"original_entry_id"`
	Total           string `json:"total"`
}

// RuleBatchFailureEvent payload
type RuleBatchFailureEvent struct {
	EventID   string `json:"event_id"`
	RuleID    string `json:"rule_id"`
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}

// BoundaryEvent payload, used for both violation and adjustment signals.
type BoundaryEvent struct {
	CashAccountID     string `json:"cash_account_id"`
	BalanceStartDate  string `json:"balance_start_date"`
	EarliestDate      string `json:"earliest_date"`
	EventCount        int    `json:"event_count"`
	Adjustment        string `json:"adjustment"`
	NewOpeningBalance string `json:"new_opening_balance"`
	EntryID           string `json:"entry_id,omitempty"`
}
