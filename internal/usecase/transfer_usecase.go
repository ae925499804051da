package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/infrastructure/metrics"
)

// TransferUseCase links two events that are the legs of one movement of
// money between the restaurant's own cash accounts.
type TransferUseCase struct {
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

// NewTransferUseCase creates a new TransferUseCase.
func NewTransferUseCase(
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
) *TransferUseCase {
	return &TransferUseCase{
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

// MarkAsTransfer posts one entry moving the amount from the outflow's cash
// account to the inflow's and marks both events as linked transfer legs.
// Linking an already linked pair again returns the existing entry.
func (uc *TransferUseCase) MarkAsTransfer(ctx context.Context, principal domain.Principal, eventAID, eventBID string) (*domain.JournalEntry, error) {
	start := time.Now()

	a, err := uc.eventRepo.GetByID(ctx, eventAID)
	if err != nil {
		return nil, err
	}
	b, err := uc.eventRepo.GetByID(ctx, eventBID)
	if err != nil {
		return nil, err
	}

	if err := requireBookkeeper(ctx, uc.authz, principal, a.RestaurantID); err != nil {
		return nil, err
	}

	if err := domain.ValidateTransferPair(a, b); err != nil {
		observeOperation(uc.metrics, "transfer", start, err)
		return nil, err
	}

	// Lock in id order so two concurrent links of the same pair cannot deadlock.
	ids := []string{eventAID, eventBID}
	sort.Strings(ids)

	var (
		entry   *domain.JournalEntry
		created bool
	)
	err = retryInTx(ctx, uc.retrier, uc.txManager, func(ctx context.Context, tx Transaction) error {
		created = false

		first, err := uc.eventRepo.GetByIDForUpdate(ctx, tx, ids[0])
		if err != nil {
			return err
		}
		second, err := uc.eventRepo.GetByIDForUpdate(ctx, tx, ids[1])
		if err != nil {
			return err
		}

		done, err := first.CheckTransfer(second)
		if err != nil {
			return err
		}
		if done {
			entry, err = uc.entryRepo.FindByReference(ctx, tx, first.RestaurantID, domain.TransferReference(first, second))
			return err
		}

		if err := domain.ValidateTransferPair(first, second); err != nil {
			return err
		}

		inflow, outflow := domain.OrderTransferLegs(first, second)
		for _, ev := range []*domain.ExternalEvent{outflow, inflow} {
			if err := checkPeriodOpen(ctx, uc.calendar, ev.RestaurantID, ev.Date); err != nil {
				return err
			}
		}

		description := "Transfer: " + outflow.Description
		entry, err = uc.ledger.PostInTx(ctx, tx, PostEntryInput{
			RestaurantID: outflow.RestaurantID,
			EntryDate:    outflow.Date,
			Description:  description,
			Reference:    domain.TransferReference(first, second),
			Lines:        domain.TransferLines(first, second, description),
			CreatedBy:    principalID(principal),
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		before := []domain.ExternalEvent{*first, *second}
		first.MarkTransfer(second.ID, now)
		second.MarkTransfer(first.ID, now)
		for _, ev := range []*domain.ExternalEvent{first, second} {
			if err := uc.eventRepo.Update(ctx, tx, ev); err != nil {
				return err
			}
		}

		outbox := newOutboxEvent(uc.idGen.Generate(), outflow.RestaurantID, domain.AggregateTypeEvent, outflow.ID,
			domain.EventTypeTransferLinked, map[string]any{
				"outflow_event_id": outflow.ID,
				"inflow_event_id":  inflow.ID,
				"entry_id":         entry.ID,
				"amount":           outflow.Magnitude().String(),
			})
		if err := uc.outboxRepo.Create(ctx, tx, outbox); err != nil {
			return err
		}

		audit := newAuditLog(ctx, uc.idGen.Generate(), principal, outflow.RestaurantID,
			domain.AuditActionEventTransfer, domain.AggregateTypeEvent, outflow.ID, before,
			[]*domain.ExternalEvent{first, second})
		if err := uc.auditRepo.CreateTx(ctx, tx, audit); err != nil {
			return err
		}

		created = true
		return nil
	})
	observeOperation(uc.metrics, "transfer", start, err)
	if err != nil {
		return nil, err
	}

	if created {
		refreshAfterCommit(ctx, uc.logger, uc.balances, entry.RestaurantID, entry.AccountIDs())
		if uc.metrics != nil {
			uc.metrics.TransfersLinked.Inc()
		}
	}

	return entry, nil
}

// FindTransferCandidates lists for_review events that look like the other
// leg of eventID: opposite sign, equal magnitude, another cash account and
// dated within three days.
func (uc *TransferUseCase) FindTransferCandidates(ctx context.Context, eventID string) ([]*domain.ExternalEvent, error) {
	event, err := uc.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	from := event.Date.Add(-domain.TransferCandidateWindow)
	to := event.Date.Add(domain.TransferCandidateWindow)
	events, err := uc.eventRepo.ListForReviewBetween(ctx, event.RestaurantID, from, to)
	if err != nil {
		return nil, err
	}

	candidates := make([]*domain.ExternalEvent, 0)
	for _, other := range events {
		if event.IsTransferCandidate(other) {
			candidates = append(candidates, other)
		}
	}

	return candidates, nil
}
