package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/infrastructure/metrics"
)

// ErrInconsistentLedger is returned when the ledger is not balanced.
var ErrInconsistentLedger = errors.New("ledger is inconsistent: debits do not equal credits")

// LedgerUseCase owns journal entries: posting, reversal and lookup.
type LedgerUseCase struct {
	txManager   TransactionManager
	retrier     Retrier
	authz       Authorizer
	accountRepo AccountRepository
	entryRepo   EntryRepository
	ledgerRepo  LedgerRepository
	outboxRepo  OutboxRepository
	auditRepo   AuditRepository
	balances    BalanceRefresher
	idGen       IDGenerator
	logger      zerolog.Logger
	metrics     *metrics.Metrics
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(
	txManager TransactionManager,
	retrier Retrier,
	authz Authorizer,
	accountRepo AccountRepository,
	entryRepo EntryRepository,
	ledgerRepo LedgerRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	balances BalanceRefresher,
	idGen IDGenerator,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) *LedgerUseCase {
	return &LedgerUseCase{
		txManager:   txManager,
		retrier:     retrier,
		authz:       authz,
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		ledgerRepo:  ledgerRepo,
		outboxRepo:  outboxRepo,
		auditRepo:   auditRepo,
		balances:    balances,
		idGen:       idGen,
		logger:      logger,
		metrics:     metrics,
	}
}

// PostEntryInput represents input for posting a journal entry.
type PostEntryInput struct {
	RestaurantID    string
	EntryDate       time.Time
	Description     string
	Reference       domain.Reference
	Lines           []domain.JournalLine
	ReversesEntryID *string
	CreatedBy       string
}

// PostEntry posts a manual journal entry as its own unit of work.
func (uc *LedgerUseCase) PostEntry(ctx context.Context, principal domain.Principal, input PostEntryInput) (*domain.JournalEntry, error) {
	if err := requireBookkeeper(ctx, uc.authz, principal, input.RestaurantID); err != nil {
		return nil, err
	}

	// Event-driven reference kinds are reserved for the state machine.
	input.Reference.Kind = domain.RefManual
	input.CreatedBy = principalID(principal)

	// Reject malformed entries before touching the database.
	probe := &domain.JournalEntry{Lines: input.Lines}
	if err := probe.Validate(); err != nil {
		uc.recordPostingError(err)
		return nil, err
	}

	var entry *domain.JournalEntry
	err := retryInTx(ctx, uc.retrier, uc.txManager, func(ctx context.Context, tx Transaction) error {
		var err error
		entry, err = uc.PostInTx(ctx, tx, input)
		if err != nil {
			return err
		}

		audit := newAuditLog(ctx, uc.idGen.Generate(), principal, entry.RestaurantID,
			domain.AuditActionEntryPost, domain.AggregateTypeEntry, entry.ID, nil, entry)
		return uc.auditRepo.CreateTx(ctx, tx, audit)
	})
	if err != nil {
		return nil, err
	}

	refreshAfterCommit(ctx, uc.logger, uc.balances, entry.RestaurantID, entry.AccountIDs())

	return entry, nil
}

// PostInTx validates and appends an entry inside the caller's transaction.
// Nothing is written unless the entry balances exactly and every account is
// active and belongs to the entry's restaurant.
func (uc *LedgerUseCase) PostInTx(ctx context.Context, tx Transaction, input PostEntryInput) (*domain.JournalEntry, error) {
	start := time.Now()
	now := start.UTC()

	entryDate := input.EntryDate
	if entryDate.IsZero() {
		entryDate = now
	}

	entry := &domain.JournalEntry{
		ID:              uc.idGen.Generate(),
		RestaurantID:    input.RestaurantID,
		EntryDate:       domain.DateOf(entryDate),
		Description:     input.Description,
		Reference:       input.Reference,
		ReversesEntryID: input.ReversesEntryID,
		CreatedBy:       input.CreatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
		Lines:           make([]domain.JournalLine, len(input.Lines)),
	}
	copy(entry.Lines, input.Lines)

	if entry.Reference.Kind == "" {
		entry.Reference.Kind = domain.RefManual
	}
	if entry.Reference.ID == "" {
		entry.Reference.ID = entry.ID
	}

	if err := entry.Validate(); err != nil {
		uc.recordPostingError(err)
		return nil, err
	}

	if err := uc.checkAccounts(ctx, tx, entry); err != nil {
		uc.recordPostingError(err)
		return nil, err
	}

	seq, err := uc.entryRepo.NextEntryNumber(ctx, tx, entry.RestaurantID)
	if err != nil {
		return nil, err
	}
	entry.EntryNumber = domain.FormatEntryNumber(seq)

	for i := range entry.Lines {
		entry.Lines[i].ID = uc.idGen.Generate()
		entry.Lines[i].EntryID = entry.ID
		entry.Lines[i].LineNo = i + 1
	}

	if err := uc.entryRepo.Create(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := uc.entryRepo.ClaimReference(ctx, tx, entry.RestaurantID, entry.Reference, entry.ID); err != nil {
		return nil, err
	}

	event := newOutboxEvent(uc.idGen.Generate(), entry.RestaurantID, domain.AggregateTypeEntry, entry.ID,
		domain.EventTypeEntryPosted, domain.EntryPostedEvent{
			EntryID:       entry.ID,
			EntryNumber:   entry.EntryNumber,
			ReferenceKind: string(entry.Reference.Kind),
			ReferenceID:   entry.Reference.ID,
			Total:         entry.TotalDebit.String(),
			AccountIDs:    entry.AccountIDs(),
			EntryDate:     entry.EntryDate.Format(time.DateOnly),
		})
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.EntriesPosted.WithLabelValues(string(entry.Reference.Kind)).Inc()
		uc.metrics.PostingDuration.Observe(time.Since(start).Seconds())
	}

	return entry, nil
}

func (uc *LedgerUseCase) checkAccounts(ctx context.Context, tx Transaction, entry *domain.JournalEntry) error {
	ids := entry.AccountIDs()

	accounts, err := uc.accountRepo.GetByIDsForShare(ctx, tx, ids)
	if err != nil {
		return err
	}

	byID := make(map[string]*domain.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}

	for _, id := range ids {
		if !byID[id].UsableBy(entry.RestaurantID) {
			return fmt.Errorf("%w: %s", domain.ErrUnknownAccount, id)
		}
	}

	return nil
}

// ReverseEntry posts the reversal of a manual entry as its own unit of work.
// Event-driven entries are corrected through their event instead.
func (uc *LedgerUseCase) ReverseEntry(ctx context.Context, principal domain.Principal, entryID, reason string) (*domain.JournalEntry, error) {
	original, err := uc.entryRepo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	if err := requireBookkeeper(ctx, uc.authz, principal, original.RestaurantID); err != nil {
		return nil, err
	}

	if !original.ReversibleByHand() {
		return nil, fmt.Errorf("%w: %s entry %s is owned by its event", domain.ErrInvalidTransition,
			original.Reference.Kind, original.ID)
	}

	var reversal *domain.JournalEntry
	err = retryInTx(ctx, uc.retrier, uc.txManager, func(ctx context.Context, tx Transaction) error {
		var err error
		reversal, err = uc.ReverseInTx(ctx, tx, original, reason, principalID(principal))
		if err != nil {
			return err
		}

		audit := newAuditLog(ctx, uc.idGen.Generate(), principal, original.RestaurantID,
			domain.AuditActionEntryReverse, domain.AggregateTypeEntry, original.ID, original, reversal)
		audit.Reason = reason
		return uc.auditRepo.CreateTx(ctx, tx, audit)
	})
	if err != nil {
		return nil, err
	}

	refreshAfterCommit(ctx, uc.logger, uc.balances, original.RestaurantID, reversal.AccountIDs())

	return reversal, nil
}

// ReverseInTx appends an entry swapping every line of original and releases
// the original's reference. The original row is never modified. The
// reversal carries the original's entry date so historical balances net out.
func (uc *LedgerUseCase) ReverseInTx(
	ctx context.Context,
	tx Transaction,
	original *domain.JournalEntry,
	reason, createdBy string,
) (*domain.JournalEntry, error) {
	if original.IsReversal() {
		return nil, fmt.Errorf("%w: entry %s is itself a reversal", domain.ErrInvalidTransition, original.ID)
	}

	reversalRef := domain.Reference{Kind: domain.RefReversal, ID: original.ID}
	_, err := uc.entryRepo.FindByReference(ctx, tx, original.RestaurantID, reversalRef)
	if err == nil {
		return nil, domain.ErrAlreadyReversed
	}
	if !errors.Is(err, domain.ErrEntryNotFound) {
		return nil, err
	}

	if err := uc.entryRepo.ReleaseReference(ctx, tx, original.RestaurantID, original.Reference); err != nil {
		return nil, err
	}

	description := "Reversal of " + original.EntryNumber
	if reason != "" {
		description += ": " + reason
	}

	reversal, err := uc.PostInTx(ctx, tx, PostEntryInput{
		RestaurantID:    original.RestaurantID,
		EntryDate:       original.EntryDate,
		Description:     description,
		Reference:       reversalRef,
		Lines:           original.ReversedLines(),
		ReversesEntryID: &original.ID,
		CreatedBy:       createdBy,
	})
	if err != nil {
		return nil, err
	}

	event := newOutboxEvent(uc.idGen.Generate(), original.RestaurantID, domain.AggregateTypeEntry, original.ID,
		domain.EventTypeEntryReversed, domain.EntryReversedEvent{
			ReversalEntryID: reversal.ID,
			OriginalEntryID: original.ID,
			Total:           reversal.TotalDebit.String(),
		})
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.EntriesReversed.Inc()
	}

	return reversal, nil
}

// FindByReference returns the active entry for (kind, id).
func (uc *LedgerUseCase) FindByReference(ctx context.Context, restaurantID string, ref domain.Reference) (*domain.JournalEntry, error) {
	return uc.entryRepo.FindByReference(ctx, nil, restaurantID, ref)
}

// GetEntry retrieves an entry with its lines.
func (uc *LedgerUseCase) GetEntry(ctx context.Context, id string) (*domain.JournalEntry, error) {
	return uc.entryRepo.GetByID(ctx, id)
}

// ListEntriesInput represents input for listing entries.
type ListEntriesInput struct {
	RestaurantID string
	Limit        int
	Offset       int
}

// ListEntries lists a restaurant's entries, newest first.
func (uc *LedgerUseCase) ListEntries(ctx context.Context, input ListEntriesInput) ([]*domain.JournalEntry, error) {
	limit, offset, _ := domain.ValidatePagination(input.Limit, input.Offset)
	return uc.entryRepo.List(ctx, input.RestaurantID, limit, offset)
}

// CheckConsistency verifies that the restaurant's debits equal its credits.
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context, restaurantID string) error {
	totalDebits, totalCredits, err := uc.ledgerRepo.CheckConsistency(ctx, restaurantID)
	if err != nil {
		return err
	}

	if !totalDebits.Equal(totalCredits) {
		return fmt.Errorf(
			"%w: debits=%s credits=%s difference=%s",
			ErrInconsistentLedger,
			totalDebits.String(),
			totalCredits.String(),
			totalDebits.Sub(totalCredits).String(),
		)
	}

	return nil
}

func (uc *LedgerUseCase) recordPostingError(err error) {
	if uc.metrics != nil {
		uc.metrics.PostingErrors.WithLabelValues(string(domain.ErrorKind(err))).Inc()
	}
}
