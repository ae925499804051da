package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/infrastructure/postgres/generated"
	"github.com/iho/tableledger/internal/usecase"
)

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	db      generated.DBTX
	queries *generated.Queries
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(db generated.DBTX) *EntryRepository {
	return &EntryRepository{
		db:      db,
		queries: generated.New(db),
	}
}

// Create inserts the entry header and its lines. The balance trigger checks
// the lines at commit.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error {
	q := queries(r.db, tx)

	err := q.CreateJournalEntry(ctx, generated.CreateJournalEntryParams{
		ID:              entry.ID,
		RestaurantID:    entry.RestaurantID,
		EntryNumber:     entry.EntryNumber,
		EntryDate:       timeToPgDate(entry.EntryDate),
		Description:     entry.Description,
		ReferenceKind:   string(entry.Reference.Kind),
		ReferenceID:     entry.Reference.ID,
		TotalDebit:      decimalToNumeric(entry.TotalDebit),
		TotalCredit:     decimalToNumeric(entry.TotalCredit),
		ReversesEntryID: stringPtrToText(entry.ReversesEntryID),
		CreatedBy:       entry.CreatedBy,
		CreatedAt:       timeToPgTimestamptz(entry.CreatedAt),
		UpdatedAt:       timeToPgTimestamptz(entry.UpdatedAt),
	})
	if err != nil {
		if isUniqueViolation(err) && entry.ReversesEntryID != nil {
			return domain.ErrAlreadyReversed
		}
		return err
	}

	for _, line := range entry.Lines {
		err := q.CreateJournalLine(ctx, generated.CreateJournalLineParams{
			ID:          line.ID,
			EntryID:     entry.ID,
			AccountID:   line.AccountID,
			Debit:       decimalToNumeric(line.Debit),
			Credit:      decimalToNumeric(line.Credit),
			Description: line.Description,
			LineNo:      int32(line.LineNo),
		})
		if err != nil {
			return fmt.Errorf("line %d: %w", line.LineNo, err)
		}
	}

	return nil
}

// GetByID retrieves an entry with its lines.
func (r *EntryRepository) GetByID(ctx context.Context, id string) (*domain.JournalEntry, error) {
	return r.getByID(ctx, r.queries, id)
}

func (r *EntryRepository) getByID(ctx context.Context, q *generated.Queries, id string) (*domain.JournalEntry, error) {
	row, err := q.GetJournalEntryByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}

	entry := rowToJournalEntry(row)
	if err := r.loadLines(ctx, q, entry); err != nil {
		return nil, err
	}

	return entry, nil
}

func (r *EntryRepository) loadLines(ctx context.Context, q *generated.Queries, entry *domain.JournalEntry) error {
	lines, err := q.GetJournalLinesByEntry(ctx, entry.ID)
	if err != nil {
		return err
	}

	entry.Lines = make([]domain.JournalLine, 0, len(lines))
	for _, l := range lines {
		entry.Lines = append(entry.Lines, domain.JournalLine{
			ID:          l.ID,
			EntryID:     l.EntryID,
			AccountID:   l.AccountID,
			Debit:       numericToDecimal(l.Debit),
			Credit:      numericToDecimal(l.Credit),
			Description: l.Description,
			LineNo:      int(l.LineNo),
		})
	}

	return nil
}

// FindByReference returns the entry holding the active claim on ref.
func (r *EntryRepository) FindByReference(ctx context.Context, tx usecase.Transaction, restaurantID string, ref domain.Reference) (*domain.JournalEntry, error) {
	q := queries(r.db, tx)

	entryID, err := q.GetEntryReference(ctx, generated.GetEntryReferenceParams{
		RestaurantID: restaurantID,
		Kind:         string(ref.Kind),
		ReferenceID:  ref.ID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}

	return r.getByID(ctx, q, entryID)
}

// ClaimReference records entryID as the active entry for ref. A concurrent
// claimant blocks on the primary key until the first commits, then sees the
// conflict.
func (r *EntryRepository) ClaimReference(ctx context.Context, tx usecase.Transaction, restaurantID string, ref domain.Reference, entryID string) error {
	n, err := queries(r.db, tx).ClaimEntryReference(ctx, generated.ClaimEntryReferenceParams{
		RestaurantID: restaurantID,
		Kind:         string(ref.Kind),
		ReferenceID:  ref.ID,
		EntryID:      entryID,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrReferenceConflict, ref)
	}

	return nil
}

// ReleaseReference drops the active claim on ref, if any.
func (r *EntryRepository) ReleaseReference(ctx context.Context, tx usecase.Transaction, restaurantID string, ref domain.Reference) error {
	return queries(r.db, tx).ReleaseEntryReference(ctx, generated.ReleaseEntryReferenceParams{
		RestaurantID: restaurantID,
		Kind:         string(ref.Kind),
		ReferenceID:  ref.ID,
	})
}

// NextEntryNumber increments the restaurant's entry counter. The counter row
// stays locked until tx ends, so numbers are gap-free per restaurant.
func (r *EntryRepository) NextEntryNumber(ctx context.Context, tx usecase.Transaction, restaurantID string) (int64, error) {
	return queries(r.db, tx).NextEntryNumber(ctx, restaurantID)
}

// List lists a restaurant's entries, newest first.
func (r *EntryRepository) List(ctx context.Context, restaurantID string, limit, offset int) ([]*domain.JournalEntry, error) {
	rows, err := r.queries.ListJournalEntries(ctx, generated.ListJournalEntriesParams{
		RestaurantID: restaurantID,
		Limit:        int32(limit),
		Offset:       int32(offset),
	})
	if err != nil {
		return nil, err
	}

	entries := make([]*domain.JournalEntry, 0, len(rows))
	for _, row := range rows {
		entry := rowToJournalEntry(row)
		if err := r.loadLines(ctx, r.queries, entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// SumByAccount totals the account's lines on entries dated on or before asOf.
func (r *EntryRepository) SumByAccount(ctx context.Context, accountID string, asOf time.Time) (usecase.LineTotals, error) {
	row, err := r.queries.SumLinesByAccount(ctx, generated.SumLinesByAccountParams{
		AccountID: accountID,
		EntryDate: timeToPgDate(asOf),
	})
	if err != nil {
		return usecase.LineTotals{}, err
	}

	return usecase.LineTotals{
		Debit:  numericToDecimal(row.TotalDebit),
		Credit: numericToDecimal(row.TotalCredit),
	}, nil
}

func rowToJournalEntry(row generated.JournalEntry) *domain.JournalEntry {
	entry := &domain.JournalEntry{
		ID:              row.ID,
		RestaurantID:    row.RestaurantID,
		EntryNumber:     row.EntryNumber,
		EntryDate:       pgDateToTime(row.EntryDate),
		Description:     row.Description,
		Reference:       domain.Reference{Kind: domain.ReferenceKind(row.ReferenceKind), ID: row.ReferenceID},
		TotalDebit:      numericToDecimal(row.TotalDebit),
		TotalCredit:     numericToDecimal(row.TotalCredit),
		ReversesEntryID: textToStringPtr(row.ReversesEntryID),
		CreatedBy:       row.CreatedBy,
		CreatedAt:       row.CreatedAt.Time,
		UpdatedAt:       row.UpdatedAt.Time,
	}
	entry.Balanced = entry.TotalDebit.Equal(entry.TotalCredit)
	return entry
}
