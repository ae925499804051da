package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/infrastructure/metrics"
)

// SplitUseCase divides one event across several category accounts.
type SplitUseCase struct {
	txManager  TransactionManager
	retrier    Retrier
	authz      Authorizer
	calendar   FiscalCalendar
	eventRepo  EventRepository
	entryRepo  EntryRepository
	ledger     *LedgerUseCase
	outboxRepo OutboxRepository
	auditRepo  AuditRepository
	balances   BalanceRefresher
	idGen      IDGenerator
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// NewSplitUseCase creates a new SplitUseCase.
func NewSplitUseCase(
	txManager TransactionManager,
	retrier Retrier,
	authz Authorizer,
	calendar FiscalCalendar,
	eventRepo EventRepository,
	entryRepo EntryRepository,
	ledger *LedgerUseCase,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	balances BalanceRefresher,
	idGen IDGenerator,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) *SplitUseCase {
	return &SplitUseCase{
		txManager:  txManager,
		retrier:    retrier,
		authz:      authz,
		calendar:   calendar,
		eventRepo:  eventRepo,
		entryRepo:  entryRepo,
		ledger:     ledger,
		outboxRepo: outboxRepo,
		auditRepo:  auditRepo,
		balances:   balances,
		idGen:      idGen,
		logger:     logger,
		metrics:    metrics,
	}
}

// SplitInput represents input for splitting an event.
type SplitInput struct {
	EventID     string
	Allocations []domain.SplitAllocation
}

// Split posts one entry with a line per allocation and one offsetting cash
// line. Allocations may miss the event total by at most the split tolerance;
// the residual is folded into the last allocation. Splitting an already
// split event returns the existing entry.
func (uc *SplitUseCase) Split(ctx context.Context, principal domain.Principal, input SplitInput) (*domain.JournalEntry, error) {
	entry, _, err := uc.split(ctx, principal, input)
	return entry, err
}

func (uc *SplitUseCase) split(ctx context.Context, principal domain.Principal, input SplitInput) (*domain.JournalEntry, bool, error) {
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

		done, err := ev.CheckSplit()
		if err != nil {
			return err
		}
		if done {
			entry, err = uc.entryRepo.FindByReference(ctx, tx, ev.RestaurantID, ev.SplitReference())
			return err
		}

		allocations, err := domain.NormalizeAllocations(ev.Amount, input.Allocations)
		if err != nil {
			return err
		}

		if err := checkPeriodOpen(ctx, uc.calendar, ev.RestaurantID, ev.Date); err != nil {
			return err
		}

		entry, err = uc.ledger.PostInTx(ctx, tx, PostEntryInput{
			RestaurantID: ev.RestaurantID,
			EntryDate:    ev.Date,
			Description:  "Split: " + ev.Description,
			Reference:    ev.SplitReference(),
			Lines:        ev.SplitLines(allocations),
			CreatedBy:    principalID(principal),
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		splits := make([]*domain.EventSplit, len(allocations))
		for i, a := range allocations {
			splits[i] = &domain.EventSplit{
				ID:           uc.idGen.Generate(),
				EventID:      ev.ID,
				RestaurantID: ev.RestaurantID,
				AccountID:    a.AccountID,
				Amount:       a.Amount,
				Description:  a.Description,
				EntryID:      entry.ID,
				CreatedAt:    now,
			}
		}
		if err := uc.eventRepo.CreateSplits(ctx, tx, splits); err != nil {
			return err
		}

		before := *ev
		ev.MarkSplit(now)
		if err := uc.eventRepo.Update(ctx, tx, ev); err != nil {
			return err
		}

		outbox := newOutboxEvent(uc.idGen.Generate(), ev.RestaurantID, domain.AggregateTypeEvent, ev.ID,
			domain.EventTypeEventSplit, map[string]any{
				"entry_id":    entry.ID,
				"allocations": len(allocations),
			})
		if err := uc.outboxRepo.Create(ctx, tx, outbox); err != nil {
			return err
		}

		audit := newAuditLog(ctx, uc.idGen.Generate(), principal, ev.RestaurantID,
			domain.AuditActionEventSplit, domain.AggregateTypeEvent, ev.ID, before, splits)
		if err := uc.auditRepo.CreateTx(ctx, tx, audit); err != nil {
			return err
		}

		created = true
		return nil
	})
	observeOperation(uc.metrics, "split", start, err)
	if err != nil {
		return nil, false, err
	}

	if created {
		refreshAfterCommit(ctx, uc.logger, uc.balances, entry.RestaurantID, entry.AccountIDs())
		if uc.metrics != nil {
			uc.metrics.Splits.Inc()
		}
	}

	return entry, created, nil
}

// ListSplits returns the child allocations of a split event.
func (uc *SplitUseCase) ListSplits(ctx context.Context, eventID string) ([]*domain.EventSplit, error) {
	return uc.eventRepo.ListSplits(ctx, eventID)
}
