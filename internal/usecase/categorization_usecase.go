package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/infrastructure/metrics"
)

// Categorization origins, used as a metric label.
const (
	OriginManual = "manual"
	OriginRule   = "rule"
)

// CategorizationUseCase moves external events through their lifecycle and
// posts the matching journal entries.
type CategorizationUseCase struct {
	txManager   TransactionManager
	retrier     Retrier
	authz       Authorizer
	calendar    FiscalCalendar
	accountRepo AccountRepository
	eventRepo   EventRepository
	entryRepo   EntryRepository
	ledger      *LedgerUseCase
	outboxRepo  OutboxRepository
	auditRepo   AuditRepository
	balances    BalanceRefresher
	idGen       IDGenerator
	logger      zerolog.Logger
	metrics     *metrics.Metrics
}

// NewCategorizationUseCase creates a new CategorizationUseCase.
func NewCategorizationUseCase(
	txManager TransactionManager,
	retrier Retrier,
	authz Authorizer,
	calendar FiscalCalendar,
	accountRepo AccountRepository,
	eventRepo EventRepository,
	entryRepo EntryRepository,
	ledger *LedgerUseCase,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	balances BalanceRefresher,
	idGen IDGenerator,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) *CategorizationUseCase {
	return &CategorizationUseCase{
		txManager:   txManager,
		retrier:     retrier,
		authz:       authz,
		calendar:    calendar,
		accountRepo: accountRepo,
		eventRepo:   eventRepo,
		entryRepo:   entryRepo,
		ledger:      ledger,
		outboxRepo:  outboxRepo,
		auditRepo:   auditRepo,
		balances:    balances,
		idGen:       idGen,
		logger:      logger,
		metrics:     metrics,
	}
}

// IngestEventInput represents a bank transaction or POS sale handed over by
// a sync collaborator.
type IngestEventInput struct {
	RestaurantID   string
	Source         domain.EventSource
	CashAccountID  string
	Amount         decimal.Decimal
	Date           time.Time
	Description    string
	ItemName       string
	Payee          string
	CounterpartyID *string
}

// IngestEvent stores a new event in for_review.
func (uc *CategorizationUseCase) IngestEvent(ctx context.Context, principal domain.Principal, input IngestEventInput) (*domain.ExternalEvent, error) {
	if err := requireBookkeeper(ctx, uc.authz, principal, input.RestaurantID); err != nil {
		return nil, err
	}

	if !input.Source.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSource, input.Source)
	}

	amount := input.Amount
	if amount.IsZero() {
		return nil, domain.ErrInvalidAmount
	}
	if err := domain.ValidateAmount(amount.Abs()); err != nil {
		return nil, err
	}

	cash, err := uc.accountRepo.GetByID(ctx, input.CashAccountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAccount, input.CashAccountID)
		}
		return nil, err
	}
	if !cash.UsableBy(input.RestaurantID) || !cash.IsCashLike() {
		return nil, fmt.Errorf("%w: %s is not a cash account", domain.ErrUnknownAccount, input.CashAccountID)
	}

	now := time.Now().UTC()
	event := &domain.ExternalEvent{
		ID:             uc.idGen.Generate(),
		RestaurantID:   input.RestaurantID,
		Source:         input.Source,
		CashAccountID:  input.CashAccountID,
		Amount:         amount,
		Date:           domain.DateOf(input.Date),
		Description:    input.Description,
		ItemName:       input.ItemName,
		Payee:          input.Payee,
		CounterpartyID: input.CounterpartyID,
		Status:         domain.EventStatusForReview,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if input.Date.IsZero() {
		event.Date = domain.DateOf(now)
	}

	if err := uc.eventRepo.Create(ctx, event); err != nil {
		return nil, err
	}

	audit := newAuditLog(ctx, uc.idGen.Generate(), principal, event.RestaurantID,
		domain.AuditActionEventIngest, domain.AggregateTypeEvent, event.ID, nil, event)
	if err := uc.auditRepo.Create(ctx, audit); err != nil {
		uc.logger.Warn().Err(err).Str("event_id", event.ID).Msg("failed to write audit log")
	}

	if uc.metrics != nil {
		uc.metrics.EventsIngested.WithLabelValues(string(event.Source)).Inc()
	}

	return event, nil
}

// CategorizeInput represents input for categorizing an event.
type CategorizeInput struct {
	EventID   string
	AccountID string
	Note      string
}

// Categorize posts the event against a category account. Categorizing an
// event again to the same account returns the existing entry.
func (uc *CategorizationUseCase) Categorize(ctx context.Context, principal domain.Principal, input CategorizeInput) (*domain.JournalEntry, error) {
	entry, _, err := uc.categorize(ctx, principal, input, OriginManual)
	return entry, err
}

// categorize reports created=false when the event already carried the
// same category and the existing entry was returned.
func (uc *CategorizationUseCase) categorize(ctx context.Context, principal domain.Principal, input CategorizeInput, origin string) (*domain.JournalEntry, bool, error) {
	start := time.Now()

	event, err := uc.eventRepo.GetByID(ctx, input.EventID)
	if err != nil {
		return nil, false, err
	}
	if err := requireBookkeeper(ctx, uc.authz, principal, event.RestaurantID); err != nil {
		return nil, false, err
	}

	var (
		entry   *domain.JournalEntry
		created bool
	)
	err = retryInTx(ctx, uc.retrier, uc.txManager, func(ctx context.Context, tx Transaction) error {
		created = false

		ev, err := uc.eventRepo.GetByIDForUpdate(ctx, tx, input.EventID)
		if err != nil {
			return err
		}

		done, err := ev.CheckCategorize(input.AccountID)
		if err != nil {
			return err
		}
		if done {
			entry, err = uc.entryRepo.FindByReference(ctx, tx, ev.RestaurantID, ev.Reference())
			return err
		}

		if err := checkPeriodOpen(ctx, uc.calendar, ev.RestaurantID, ev.Date); err != nil {
			return err
		}

		entry, err = uc.ledger.PostInTx(ctx, tx, PostEntryInput{
			RestaurantID: ev.RestaurantID,
			EntryDate:    ev.Date,
			Description:  ev.Description,
			Reference:    ev.Reference(),
			Lines:        ev.CategoryLines(input.AccountID),
			CreatedBy:    principalID(principal),
		})
		if err != nil {
			return err
		}

		before := *ev
		ev.MarkCategorized(input.AccountID, input.Note, time.Now().UTC())
		if err := uc.eventRepo.Update(ctx, tx, ev); err != nil {
			return err
		}

		outbox := newOutboxEvent(uc.idGen.Generate(), ev.RestaurantID, domain.AggregateTypeEvent, ev.ID,
			domain.EventTypeEventCategorized, map[string]any{
				"account_id": input.AccountID,
				"entry_id":   entry.ID,
				"origin":     origin,
			})
		if err := uc.outboxRepo.Create(ctx, tx, outbox); err != nil {
			return err
		}

		audit := newAuditLog(ctx, uc.idGen.Generate(), principal, ev.RestaurantID,
			domain.AuditActionEventCategorize, domain.AggregateTypeEvent, ev.ID, before, ev)
		if err := uc.auditRepo.CreateTx(ctx, tx, audit); err != nil {
			return err
		}

		created = true
		return nil
	})
	observeOperation(uc.metrics, "categorize", start, err)
	if err != nil {
		return nil, false, err
	}

	if created {
		refreshAfterCommit(ctx, uc.logger, uc.balances, entry.RestaurantID, entry.AccountIDs())
		if uc.metrics != nil {
			uc.metrics.Categorizations.WithLabelValues(origin).Inc()
		}
	}

	return entry, created, nil
}

// ReclassifyInput represents input for moving a categorized event to
// another category account.
type ReclassifyInput struct {
	EventID      string
	NewAccountID string
	Reason       string
}

// Reclassify moves the category leg of a categorized event to a new
// account. The original posting is left untouched. Reclassifying to the
// current account is a no-op and returns nil.
func (uc *CategorizationUseCase) Reclassify(ctx context.Context, principal domain.Principal, input ReclassifyInput) (*domain.Reclassification, error) {
	start := time.Now()

	event, err := uc.eventRepo.GetByID(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	if err := requireBookkeeper(ctx, uc.authz, principal, event.RestaurantID); err != nil {
		return nil, err
	}

	var (
		rec   *domain.Reclassification
		entry *domain.JournalEntry
	)
	err = retryInTx(ctx, uc.retrier, uc.txManager, func(ctx context.Context, tx Transaction) error {
		rec, entry = nil, nil

		ev, err := uc.eventRepo.GetByIDForUpdate(ctx, tx, input.EventID)
		if err != nil {
			return err
		}

		noop, err := ev.CheckReclassify(input.NewAccountID)
		if err != nil || noop {
			return err
		}

		if err := checkPeriodOpen(ctx, uc.calendar, ev.RestaurantID, ev.Date); err != nil {
			return err
		}

		oldAccountID := *ev.CategoryAccountID
		recID := uc.idGen.Generate()

		description := "Reclassification of " + ev.Description
		if input.Reason != "" {
			description += ": " + input.Reason
		}

		entry, err = uc.ledger.PostInTx(ctx, tx, PostEntryInput{
			RestaurantID: ev.RestaurantID,
			EntryDate:    ev.Date,
			Description:  description,
			Reference:    domain.Reference{Kind: domain.RefReclassification, ID: recID},
			Lines:        ev.ReclassificationLines(oldAccountID, input.NewAccountID, input.Reason),
			CreatedBy:    principalID(principal),
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		rec = &domain.Reclassification{
			ID:           recID,
			RestaurantID: ev.RestaurantID,
			EventID:      ev.ID,
			OldAccountID: oldAccountID,
			NewAccountID: input.NewAccountID,
			Reason:       input.Reason,
			EntryID:      entry.ID,
			CreatedBy:    principalID(principal),
			CreatedAt:    now,
		}
		if err := uc.eventRepo.CreateReclassification(ctx, tx, rec); err != nil {
			return err
		}

		before := *ev
		ev.CategoryAccountID = &rec.NewAccountID
		ev.UpdatedAt = now
		if err := uc.eventRepo.Update(ctx, tx, ev); err != nil {
			return err
		}

		outbox := newOutboxEvent(uc.idGen.Generate(), ev.RestaurantID, domain.AggregateTypeEvent, ev.ID,
			domain.EventTypeEventReclassified, map[string]any{
				"old_account_id": oldAccountID,
				"new_account_id": input.NewAccountID,
				"entry_id":       entry.ID,
			})
		if err := uc.outboxRepo.Create(ctx, tx, outbox); err != nil {
			return err
		}

		// The audit row shares the reclassification's id so the entry
		// reference points at it.
		audit := newAuditLog(ctx, recID, principal, ev.RestaurantID,
			domain.AuditActionEventReclassify, domain.AggregateTypeEvent, ev.ID, before, ev)
		audit.Reason = input.Reason
		return uc.auditRepo.CreateTx(ctx, tx, audit)
	})
	observeOperation(uc.metrics, "reclassify", start, err)
	if err != nil {
		return nil, err
	}

	if rec != nil {
		refreshAfterCommit(ctx, uc.logger, uc.balances, entry.RestaurantID, entry.AccountIDs())
		if uc.metrics != nil {
			uc.metrics.Reclassifications.Inc()
		}
	}

	return rec, nil
}

// Exclude marks a for_review event as not belonging in the books.
func (uc *CategorizationUseCase) Exclude(ctx context.Context, principal domain.Principal, eventID, reason string) (*domain.ExternalEvent, error) {
	return uc.transition(ctx, principal, eventID, "exclude", func(ctx context.Context, tx Transaction, ev *domain.ExternalEvent) error {
		noop, err := ev.CheckExclude()
		if err != nil || noop {
			return err
		}

		before := *ev
		ev.MarkExcluded(reason, time.Now().UTC())
		if err := uc.eventRepo.Update(ctx, tx, ev); err != nil {
			return err
		}

		outbox := newOutboxEvent(uc.idGen.Generate(), ev.RestaurantID, domain.AggregateTypeEvent, ev.ID,
			domain.EventTypeEventExcluded, map[string]any{"reason": reason})
		if err := uc.outboxRepo.Create(ctx, tx, outbox); err != nil {
			return err
		}

		audit := newAuditLog(ctx, uc.idGen.Generate(), principal, ev.RestaurantID,
			domain.AuditActionEventExclude, domain.AggregateTypeEvent, ev.ID, before, ev)
		audit.Reason = reason
		return uc.auditRepo.CreateTx(ctx, tx, audit)
	})
}

// MarkReconciled flags a categorized event as matched against a bank
// statement. Reconciled events can no longer change.
func (uc *CategorizationUseCase) MarkReconciled(ctx context.Context, principal domain.Principal, eventID string) (*domain.ExternalEvent, error) {
	return uc.transition(ctx, principal, eventID, "reconcile", func(ctx context.Context, tx Transaction, ev *domain.ExternalEvent) error {
		noop, err := ev.CheckMarkReconciled()
		if err != nil || noop {
			return err
		}

		before := *ev
		ev.MarkReconciled(time.Now().UTC())
		if err := uc.eventRepo.Update(ctx, tx, ev); err != nil {
			return err
		}

		audit := newAuditLog(ctx, uc.idGen.Generate(), principal, ev.RestaurantID,
			domain.AuditActionEventReconcile, domain.AggregateTypeEvent, ev.ID, before, ev)
		return uc.auditRepo.CreateTx(ctx, tx, audit)
	})
}

// Uncategorize reverses every active posting of a categorized event and
// returns it to review. Transfer legs cannot be uncategorized.
func (uc *CategorizationUseCase) Uncategorize(ctx context.Context, principal domain.Principal, eventID, reason string) (*domain.ExternalEvent, error) {
	var touched []string

	ev, err := uc.transition(ctx, principal, eventID, "uncategorize", func(ctx context.Context, tx Transaction, ev *domain.ExternalEvent) error {
		touched = nil

		if err := ev.CheckUncategorize(); err != nil {
			return err
		}
		if err := checkPeriodOpen(ctx, uc.calendar, ev.RestaurantID, ev.Date); err != nil {
			return err
		}

		refs := []domain.Reference{ev.Reference()}
		if ev.IsSplit {
			refs = []domain.Reference{ev.SplitReference()}
		} else {
			recs, err := uc.eventRepo.ListReclassifications(ctx, tx, ev.ID)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				refs = append(refs, domain.Reference{Kind: domain.RefReclassification, ID: rec.ID})
			}
		}

		for _, ref := range refs {
			original, err := uc.entryRepo.FindByReference(ctx, tx, ev.RestaurantID, ref)
			if errors.Is(err, domain.ErrEntryNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			reversal, err := uc.ledger.ReverseInTx(ctx, tx, original, reason, principalID(principal))
			if err != nil {
				return err
			}
			touched = mergeAccountIDs(touched, reversal.AccountIDs())

			if ref.Kind == domain.RefSplit {
				if err := uc.eventRepo.ReleaseSplits(ctx, tx, ev.ID, reversal.ID); err != nil {
					return err
				}
			}
		}

		before := *ev
		ev.MarkForReview(time.Now().UTC())
		ev.MatchedRuleID = nil
		if err := uc.eventRepo.Update(ctx, tx, ev); err != nil {
			return err
		}

		audit := newAuditLog(ctx, uc.idGen.Generate(), principal, ev.RestaurantID,
			domain.AuditActionEventUncategorize, domain.AggregateTypeEvent, ev.ID, before, ev)
		audit.Reason = reason
		return uc.auditRepo.CreateTx(ctx, tx, audit)
	})
	if err != nil {
		return nil, err
	}

	refreshAfterCommit(ctx, uc.logger, uc.balances, ev.RestaurantID, touched)

	return ev, nil
}

// transition runs a status change under the event row lock.
func (uc *CategorizationUseCase) transition(
	ctx context.Context,
	principal domain.Principal,
	eventID, operation string,
	apply func(ctx context.Context, tx Transaction, ev *domain.ExternalEvent) error,
) (*domain.ExternalEvent, error) {
	start := time.Now()

	event, err := uc.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := requireBookkeeper(ctx, uc.authz, principal, event.RestaurantID); err != nil {
		return nil, err
	}

	var result *domain.ExternalEvent
	err = retryInTx(ctx, uc.retrier, uc.txManager, func(ctx context.Context, tx Transaction) error {
		ev, err := uc.eventRepo.GetByIDForUpdate(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if err := apply(ctx, tx, ev); err != nil {
			return err
		}
		result = ev
		return nil
	})
	observeOperation(uc.metrics, operation, start, err)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetEvent retrieves an event by ID.
func (uc *CategorizationUseCase) GetEvent(ctx context.Context, id string) (*domain.ExternalEvent, error) {
	return uc.eventRepo.GetByID(ctx, id)
}

// ListEvents lists a restaurant's events, optionally by status.
func (uc *CategorizationUseCase) ListEvents(ctx context.Context, filter EventFilter) ([]*domain.ExternalEvent, error) {
	filter.Limit, filter.Offset, _ = domain.ValidatePagination(filter.Limit, filter.Offset)
	return uc.eventRepo.List(ctx, filter)
}

// ListReclassifications returns the category history of an event.
func (uc *CategorizationUseCase) ListReclassifications(ctx context.Context, eventID string) ([]*domain.Reclassification, error) {
	return uc.eventRepo.ListReclassifications(ctx, nil, eventID)
}
