package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tableledger/internal/domain"
)

// AccountRepository defines data access for the chart of accounts.
type AccountRepository interface {
	Create(ctx context.Context, tx Transaction, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByCode(ctx context.Context, restaurantID, code string) (*domain.Account, error)
	// GetByIDsForShare locks the accounts against deactivation for the
	// lifetime of tx. Missing ids are omitted from the result.
	GetByIDsForShare(ctx context.Context, tx Transaction, ids []string) ([]*domain.Account, error)
	List(ctx context.Context, restaurantID string, includeInactive bool) ([]*domain.Account, error)
	SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error
	UpdateBalance(ctx context.Context, tx Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error
}

// EntryRepository defines data access for journal entries and their lines.
type EntryRepository interface {
	// Create inserts the entry and its lines.
	Create(ctx context.Context, tx Transaction, entry *domain.JournalEntry) error
	GetByID(ctx context.Context, id string) (*domain.JournalEntry, error)
	// FindByReference returns the active entry for ref or ErrEntryNotFound.
	// A nil tx reads committed state.
	FindByReference(ctx context.Context, tx Transaction, restaurantID string, ref domain.Reference) (*domain.JournalEntry, error)
	// ClaimReference records entryID as the active entry for ref and fails
	// with ErrReferenceConflict when another entry holds it.
	ClaimReference(ctx context.Context, tx Transaction, restaurantID string, ref domain.Reference, entryID string) error
	ReleaseReference(ctx context.Context, tx Transaction, restaurantID string, ref domain.Reference) error
	NextEntryNumber(ctx context.Context, tx Transaction, restaurantID string) (int64, error)
	List(ctx context.Context, restaurantID string, limit, offset int) ([]*domain.JournalEntry, error)
	// SumByAccount totals the account's lines on entries dated on or before asOf.
	SumByAccount(ctx context.Context, accountID string, asOf time.Time) (LineTotals, error)
}

// LineTotals is the debit and credit sum of a set of journal lines.
type LineTotals struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// LedgerRepository defines data access for ledger-wide aggregates.
type LedgerRepository interface {
	CheckConsistency(ctx context.Context, restaurantID string) (totalDebit, totalCredit decimal.Decimal, err error)
	// SumLinesByAccount totals lines per account for entries dated on or before asOf.
	SumLinesByAccount(ctx context.Context, restaurantID string, asOf time.Time) (map[string]LineTotals, error)
}

// EventFilter narrows event listings.
type EventFilter struct {
	RestaurantID string
	Status       *domain.EventStatus
	Limit        int
	Offset       int
}

// EventRepository defines data access for external events.
type EventRepository interface {
	Create(ctx context.Context, event *domain.ExternalEvent) error
	GetByID(ctx context.Context, id string) (*domain.ExternalEvent, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.ExternalEvent, error)
	Update(ctx context.Context, tx Transaction, event *domain.ExternalEvent) error
	List(ctx context.Context, filter EventFilter) ([]*domain.ExternalEvent, error)
	// ListUnevaluated returns for_review events the rule engine has not seen.
	ListUnevaluated(ctx context.Context, restaurantID string, limit int) ([]*domain.ExternalEvent, error)
	SetRuleMatch(ctx context.Context, eventID string, ruleID *string, evaluatedAt time.Time) error
	// ListMatched returns for_review events whose stored match is one of ruleIDs.
	ListMatched(ctx context.Context, restaurantID string, ruleIDs []string, limit int) ([]*domain.ExternalEvent, error)
	// ListPostedBefore returns categorized or reconciled events on the cash
	// account dated strictly before the given date.
	ListPostedBefore(ctx context.Context, restaurantID, cashAccountID string, before time.Time) ([]*domain.ExternalEvent, error)
	ListForReviewBetween(ctx context.Context, restaurantID string, from, to time.Time) ([]*domain.ExternalEvent, error)

	CreateSplits(ctx context.Context, tx Transaction, splits []*domain.EventSplit) error
	// ReleaseSplits links the event's active split rows to the entry that
	// reversed them. Released rows drop out of ListSplits.
	ReleaseSplits(ctx context.Context, tx Transaction, eventID, reversalEntryID string) error
	ListSplits(ctx context.Context, eventID string) ([]*domain.EventSplit, error)

	CreateReclassification(ctx context.Context, tx Transaction, r *domain.Reclassification) error
	// ListReclassifications reads through tx when it is not nil.
	ListReclassifications(ctx context.Context, tx Transaction, eventID string) ([]*domain.Reclassification, error)
}

// RuleRepository defines data access for categorization rules.
type RuleRepository interface {
	Create(ctx context.Context, rule *domain.CategorizationRule) error
	Update(ctx context.Context, rule *domain.CategorizationRule) error
	GetByID(ctx context.Context, id string) (*domain.CategorizationRule, error)
	List(ctx context.Context, restaurantID string, includeInactive bool) ([]*domain.CategorizationRule, error)
	IncrementMatchCount(ctx context.Context, id string, n int) error
	IncrementApplyCount(ctx context.Context, id string, appliedAt time.Time) error
}

// BoundaryRepository defines data access for reconciliation boundaries.
type BoundaryRepository interface {
	Get(ctx context.Context, restaurantID string) (*domain.ReconciliationBoundary, error)
	GetForUpdate(ctx context.Context, tx Transaction, restaurantID string) (*domain.ReconciliationBoundary, error)
	Upsert(ctx context.Context, tx Transaction, boundary *domain.ReconciliationBoundary) error
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	// ListSignals returns the restaurant's newest ops signals first.
	ListSignals(ctx context.Context, restaurantID string, limit int) ([]*domain.OutboxEvent, error)
	DeletePublished(ctx context.Context, before time.Time) error
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
	GetByResourceID(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error)
}

// Authorizer resolves a principal's role on a restaurant.
type Authorizer interface {
	RoleFor(ctx context.Context, principal domain.Principal, restaurantID string) (domain.Role, error)
}

// FiscalCalendar reports whether a date falls in a closed fiscal period.
type FiscalCalendar interface {
	IsClosed(ctx context.Context, restaurantID string, date time.Time) (bool, error)
}

// BalanceCache stores computed point-in-time balances under a per-account
// version. Get reports the current version on a miss; Set stores under that
// version so a value computed before an invalidation is never served after it.
type BalanceCache interface {
	Get(ctx context.Context, accountID string, asOf time.Time) (balance decimal.Decimal, version int64, found bool, err error)
	Set(ctx context.Context, accountID string, version int64, asOf time.Time, balance decimal.Decimal) error
	// Invalidate makes every cached balance of the accounts unreachable.
	Invalidate(ctx context.Context, accountIDs ...string) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs a unit of work on transient conflicts.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claim so a failed request can be retried with the same key.
	Release(ctx context.Context, key string) error
}
