package domain

import (
	"encoding/json"
	"time"
)

// AuditLog is an append-only record of a mutating operation.
type AuditLog struct {
	ID           string
	RestaurantID string
	UserID       string // Who performed the action
	Action       AuditAction
	ResourceType string // journal_entry, external_event, rule, boundary, account
	ResourceID   string
	RequestID    string
	Reason       string
	BeforeState  JSON
	AfterState   JSON
	Status       AuditStatus
	ErrorMessage string
	CreatedAt    time.Time
}

// JSON is a type alias for JSON data
type JSON map[string]any

// AuditAction represents different types of auditable actions
type AuditAction string

const (
	// Account actions
	AuditActionAccountCreate     AuditAction = "account.create"
	AuditActionAccountDeactivate AuditAction = "account.deactivate"
	AuditActionAccountActivate   AuditAction = "account.activate"
	AuditActionChartSeed         AuditAction = "account.seed_chart"

	// Ledger actions
	AuditActionEntryPost    AuditAction = "entry.post"
	AuditActionEntryReverse AuditAction = "entry.reverse"

	// Event actions
	AuditActionEventIngest       AuditAction = "event.ingest"
	AuditActionEventCategorize   AuditAction = "event.categorize"
	AuditActionEventReclassify   AuditAction = "event.reclassify"
	AuditActionEventExclude      AuditAction = "event.exclude"
	AuditActionEventReconcile    AuditAction = "event.reconcile"
	AuditActionEventUncategorize AuditAction = "event.uncategorize"
	AuditActionEventSplit        AuditAction = "event.split"
	AuditActionEventTransfer     AuditAction = "event.transfer"

	// Rule actions
	AuditActionRuleCreate     AuditAction = "rule.create"
	AuditActionRuleUpdate     AuditAction = "rule.update"
	AuditActionRuleDeactivate AuditAction = "rule.deactivate"

	// Reconciliation actions
	AuditActionBoundarySet    AuditAction = "boundary.set"
	AuditActionBoundaryAdjust AuditAction = "boundary.adjust"
	AuditActionBalanceRebuild AuditAction = "balance.rebuild"
)

// AuditStatus represents the status of an audited action
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
	AuditStatusError   AuditStatus = "error"
)

// MarshalState converts a domain object to JSON for audit logging
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": "failed to marshal state"}
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return JSON{"error": "failed to unmarshal state"}
	}

	if obj, ok := decoded.(map[string]any); ok {
		return JSON(obj)
	}
	return JSON{"items": decoded}
}

// AuditFilter defines filters for querying audit logs
type AuditFilter struct {
	RestaurantID string
	UserID       string
	Action       AuditAction
	ResourceType string
	ResourceID   string
	StartDate    *time.Time
	EndDate      *time.Time
	Limit        int
	Offset       int
}
