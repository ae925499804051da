package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/infrastructure/logger"
	"github.com/iho/tableledger/internal/infrastructure/metrics"
)

// ReconciliationUseCase guards the reconciliation boundary and reports
// drift between cached and derived balances.
type ReconciliationUseCase struct {
	txManager    TransactionManager
	retrier      Retrier
	authz        Authorizer
	accountRepo  AccountRepository
	boundaryRepo BoundaryRepository
	eventRepo    EventRepository
	entryRepo    EntryRepository
	ledgerRepo   LedgerRepository
	ledger       *LedgerUseCase
	balances     *BalanceUseCase
	outboxRepo   OutboxRepository
	auditRepo    AuditRepository
	idGen        IDGenerator
	logger       zerolog.Logger
	metrics      *metrics.Metrics
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(
	txManager TransactionManager,
	retrier Retrier,
	authz Authorizer,
	accountRepo AccountRepository,
	boundaryRepo BoundaryRepository,
	eventRepo EventRepository,
	entryRepo EntryRepository,
	ledgerRepo LedgerRepository,
	ledger *LedgerUseCase,
	balances *BalanceUseCase,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		txManager:    txManager,
		retrier:      retrier,
		authz:        authz,
		accountRepo:  accountRepo,
		boundaryRepo: boundaryRepo,
		eventRepo:    eventRepo,
		entryRepo:    entryRepo,
		ledgerRepo:   ledgerRepo,
		ledger:       ledger,
		balances:     balances,
		outboxRepo:   outboxRepo,
		auditRepo:    auditRepo,
		idGen:        idGen,
		logger:       logger,
		metrics:      metrics,
	}
}

// SetBoundaryInput represents the initial opening balance of a restaurant.
type SetBoundaryInput struct {
	RestaurantID     string
	CashAccountID    string
	EquityAccountID  string
	BalanceStartDate time.Time
	OpeningBalance   decimal.Decimal
}

// SetBoundary stores the reconciliation boundary and posts the opening
// balance against equity. A previous opening entry is reversed first.
func (uc *ReconciliationUseCase) SetBoundary(ctx context.Context, principal domain.Principal, input SetBoundaryInput) (*domain.ReconciliationBoundary, error) {
	if err := requireBookkeeper(ctx, uc.authz, principal, input.RestaurantID); err != nil {
		return nil, err
	}

	if input.BalanceStartDate.IsZero() {
		return nil, fmt.Errorf("%w: balance start date is required", domain.ErrInvalidBoundary)
	}
	if !input.OpeningBalance.IsZero() {
		if err := domain.ValidateAmount(input.OpeningBalance.Abs()); err != nil {
			return nil, err
		}
	}
	if err := uc.checkBoundaryAccounts(ctx, input); err != nil {
		return nil, err
	}

	var (
		boundary *domain.ReconciliationBoundary
		touched  []string
	)
	err := retryInTx(ctx, uc.retrier, uc.txManager, func(ctx context.Context, tx Transaction) error {
		touched = nil

		previous, err := uc.boundaryRepo.GetForUpdate(ctx, tx, input.RestaurantID)
		if err != nil && !errors.Is(err, domain.ErrBoundaryNotFound) {
			return err
		}

		openingRef := domain.Reference{Kind: domain.RefOpeningBalance, ID: input.RestaurantID}
		if previous != nil && previous.OpeningEntryID != nil {
			original, err := uc.entryRepo.FindByReference(ctx, tx, input.RestaurantID, openingRef)
			switch {
			case err == nil:
				reversal, err := uc.ledger.ReverseInTx(ctx, tx, original, "opening balance replaced", principalID(principal))
				if err != nil {
					return err
				}
				touched = mergeAccountIDs(touched, reversal.AccountIDs())
			case !errors.Is(err, domain.ErrEntryNotFound):
				return err
			}
		}

		boundary = &domain.ReconciliationBoundary{
			RestaurantID:     input.RestaurantID,
			BalanceStartDate: domain.DateOf(input.BalanceStartDate),
			OpeningBalance:   input.OpeningBalance,
			CashAccountID:    input.CashAccountID,
			EquityAccountID:  input.EquityAccountID,
			UpdatedAt:        time.Now().UTC(),
		}

		if lines := boundary.AdjustmentLines(input.OpeningBalance, "Opening balance"); lines != nil {
			entry, err := uc.ledger.PostInTx(ctx, tx, PostEntryInput{
				RestaurantID: input.RestaurantID,
				EntryDate:    boundary.BalanceStartDate,
				Description:  "Opening balance",
				Reference:    openingRef,
				Lines:        lines,
				CreatedBy:    principalID(principal),
			})
			if err != nil {
				return err
			}
			boundary.OpeningEntryID = &entry.ID
			touched = mergeAccountIDs(touched, entry.AccountIDs())
		}

		if err := uc.boundaryRepo.Upsert(ctx, tx, boundary); err != nil {
			return err
		}

		audit := newAuditLog(ctx, uc.idGen.Generate(), principal, input.RestaurantID,
			domain.AuditActionBoundarySet, domain.AggregateTypeBoundary, input.RestaurantID, previous, boundary)
		return uc.auditRepo.CreateTx(ctx, tx, audit)
	})
	if err != nil {
		return nil, err
	}

	refreshAfterCommit(ctx, uc.logger, uc.balances, input.RestaurantID, touched)

	return boundary, nil
}

func (uc *ReconciliationUseCase) checkBoundaryAccounts(ctx context.Context, input SetBoundaryInput) error {
	cash, err := uc.accountRepo.GetByID(ctx, input.CashAccountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrUnknownAccount, input.CashAccountID)
		}
		return err
	}
	if !cash.UsableBy(input.RestaurantID) || !cash.IsCashLike() {
		return fmt.Errorf("%w: %s is not a cash account", domain.ErrUnknownAccount, input.CashAccountID)
	}

	equity, err := uc.accountRepo.GetByID(ctx, input.EquityAccountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrUnknownAccount, input.EquityAccountID)
		}
		return err
	}
	if !equity.UsableBy(input.RestaurantID) || equity.Type != domain.AccountTypeEquity {
		return fmt.Errorf("%w: %s is not an equity account", domain.ErrUnknownAccount, input.EquityAccountID)
	}

	return nil
}

// GetBoundary returns the restaurant's boundary.
func (uc *ReconciliationUseCase) GetBoundary(ctx context.Context, restaurantID string) (*domain.ReconciliationBoundary, error) {
	return uc.boundaryRepo.Get(ctx, restaurantID)
}

// CheckBoundary reports posted events on the boundary's cash account dated
// before the balance start date. It returns nil when the boundary holds or
// no boundary is set. It never writes.
func (uc *ReconciliationUseCase) CheckBoundary(ctx context.Context, restaurantID string) (*domain.ViolationReport, error) {
	boundary, err := uc.boundaryRepo.Get(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, domain.ErrBoundaryNotFound) {
			return nil, nil
		}
		return nil, err
	}

	events, err := uc.eventRepo.ListPostedBefore(ctx, restaurantID, boundary.CashAccountID, boundary.BalanceStartDate)
	if err != nil {
		return nil, err
	}

	report := boundary.DetectViolation(events)
	if report != nil && uc.metrics != nil {
		uc.metrics.BoundaryViolations.Inc()
	}

	return report, nil
}

// ApplyAdjustment repairs a boundary violation: it posts one adjustment
// entry against equity dated at the earliest offending event, moves the
// start date back to that date, updates the opening balance and rebuilds
// balances. With no violation it writes nothing and returns nil.
func (uc *ReconciliationUseCase) ApplyAdjustment(ctx context.Context, principal domain.Principal, restaurantID string) (*domain.ViolationReport, error) {
	if err := requireBookkeeper(ctx, uc.authz, principal, restaurantID); err != nil {
		return nil, err
	}

	var report *domain.ViolationReport
	err := retryInTx(ctx, uc.retrier, uc.txManager, func(ctx context.Context, tx Transaction) error {
		report = nil

		boundary, err := uc.boundaryRepo.GetForUpdate(ctx, tx, restaurantID)
		if err != nil {
			if errors.Is(err, domain.ErrBoundaryNotFound) {
				return nil
			}
			return err
		}

		events, err := uc.eventRepo.ListPostedBefore(ctx, restaurantID, boundary.CashAccountID, boundary.BalanceStartDate)
		if err != nil {
			return err
		}

		found := boundary.DetectViolation(events)
		if found == nil {
			return nil
		}

		description := fmt.Sprintf("Reconciliation adjustment: %d events before %s",
			found.EventCount, boundary.BalanceStartDate.Format(time.DateOnly))
		if lines := boundary.AdjustmentLines(found.Adjustment, description); lines != nil {
			entry, err := uc.ledger.PostInTx(ctx, tx, PostEntryInput{
				RestaurantID: restaurantID,
				EntryDate:    found.EarliestDate,
				Description:  description,
				Reference:    domain.Reference{Kind: domain.RefReconciliationAdjustment, ID: uc.idGen.Generate()},
				Lines:        lines,
				CreatedBy:    principalID(principal),
			})
			if err != nil {
				return err
			}
			found.EntryID = &entry.ID
		}

		before := *boundary
		boundary.BalanceStartDate = found.EarliestDate
		boundary.OpeningBalance = found.NewOpeningBalance
		boundary.UpdatedAt = time.Now().UTC()
		if err := uc.boundaryRepo.Upsert(ctx, tx, boundary); err != nil {
			return err
		}

		payload := boundaryEventPayload(found)
		for _, eventType := range []string{domain.EventTypeBoundaryViolation, domain.EventTypeBoundaryAdjusted} {
			signal := newOutboxEvent(uc.idGen.Generate(), restaurantID, domain.AggregateTypeBoundary, restaurantID,
				eventType, payload)
			if err := uc.outboxRepo.Create(ctx, tx, signal); err != nil {
				return err
			}
		}

		audit := newAuditLog(ctx, uc.idGen.Generate(), principal, restaurantID,
			domain.AuditActionBoundaryAdjust, domain.AggregateTypeBoundary, restaurantID, before, boundary)
		if err := uc.auditRepo.CreateTx(ctx, tx, audit); err != nil {
			return err
		}

		report = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, nil
	}

	if uc.metrics != nil {
		uc.metrics.BoundaryAdjustments.Inc()
	}

	log := logger.WithContext(ctx, uc.logger)
	log.Warn().
		Str("restaurant_id", restaurantID).
		Int("event_count", report.EventCount).
		Str("adjustment", report.Adjustment.String()).
		Time("new_start_date", report.EarliestDate).
		Msg("reconciliation boundary adjusted")

	if _, err := uc.balances.RebuildAll(ctx, principal, restaurantID); err != nil {
		return report, fmt.Errorf("boundary adjusted but balance rebuild failed: %w", err)
	}

	return report, nil
}

func boundaryEventPayload(r *domain.ViolationReport) domain.BoundaryEvent {
	payload := domain.BoundaryEvent{
		CashAccountID:     r.CashAccountID,
		BalanceStartDate:  r.BalanceStartDate.Format(time.DateOnly),
		EarliestDate:      r.EarliestDate.Format(time.DateOnly),
		EventCount:        r.EventCount,
		Adjustment:        r.Adjustment.String(),
		NewOpeningBalance: r.NewOpeningBalance.String(),
	}
	if r.EntryID != nil {
		payload.EntryID = *r.EntryID
	}
	return payload
}

// ReconciliationResult compares an account's cached balance with the one
// derived from its journal lines.
type ReconciliationResult struct {
	AccountID         string
	Code              string
	RecordedBalance   decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	IsReconciled      bool
	LastChecked       time.Time
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	RestaurantID       string
	TotalAccounts      int
	ReconciledAccounts int
	Discrepancies      []*ReconciliationResult
	LedgerConsistent   bool
	Violation          *domain.ViolationReport
	Signals            []*domain.OutboxEvent
	CheckedAt          time.Time
}

// reportSignalLimit caps the ops signals attached to a report.
const reportSignalLimit = 20

// GenerateReconciliationReport checks every active account for cached
// balance drift and the ledger for balance. It also checks the boundary and
// attaches the most recent ops signals.
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context, restaurantID string) (*ReconciliationReport, error) {
	accounts, err := uc.accountRepo.List(ctx, restaurantID, false)
	if err != nil {
		return nil, err
	}

	totals, err := uc.ledgerRepo.SumLinesByAccount(ctx, restaurantID, domain.EndOfTime)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	report := &ReconciliationReport{
		RestaurantID:     restaurantID,
		TotalAccounts:    len(accounts),
		Discrepancies:    make([]*ReconciliationResult, 0),
		LedgerConsistent: uc.ledger.CheckConsistency(ctx, restaurantID) == nil,
		CheckedAt:        now,
	}

	for _, account := range accounts {
		t := totals[account.ID]
		calculated := account.SignedAmount(t.Debit, t.Credit)
		result := &ReconciliationResult{
			AccountID:         account.ID,
			Code:              account.Code,
			RecordedBalance:   account.Balance,
			CalculatedBalance: calculated,
			Difference:        account.Balance.Sub(calculated),
			IsReconciled:      account.Balance.Equal(calculated),
			LastChecked:       now,
		}
		if result.IsReconciled {
			report.ReconciledAccounts++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}

	report.Violation, err = uc.CheckBoundary(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	report.Signals, err = uc.outboxRepo.ListSignals(ctx, restaurantID, reportSignalLimit)
	if err != nil {
		return nil, err
	}

	return report, nil
}
