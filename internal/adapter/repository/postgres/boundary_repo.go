package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/infrastructure/postgres/generated"
	"github.com/iho/tableledger/internal/usecase"
)

// BoundaryRepository implements usecase.BoundaryRepository.
type BoundaryRepository struct {
	db generated.DBTX
}

// NewBoundaryRepository creates a new BoundaryRepository.
func NewBoundaryRepository(db generated.DBTX) *BoundaryRepository {
	return &BoundaryRepository{db: db}
}

const selectBoundary = `
	SELECT restaurant_id, balance_start_date, opening_balance, opening_entry_id, cash_account_id, equity_account_id, updated_at
	FROM reconciliation_boundaries
	WHERE restaurant_id = $1
`

// Get retrieves a restaurant's boundary.
func (r *BoundaryRepository) Get(ctx context.Context, restaurantID string) (*domain.ReconciliationBoundary, error) {
	return scanBoundary(r.db.QueryRow(ctx, selectBoundary, restaurantID))
}

// GetForUpdate retrieves a restaurant's boundary and locks it until tx ends.
func (r *BoundaryRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, restaurantID string) (*domain.ReconciliationBoundary, error) {
	return scanBoundary(conn(r.db, tx).QueryRow(ctx, selectBoundary+" FOR UPDATE", restaurantID))
}

// Upsert creates or replaces a restaurant's boundary.
func (r *BoundaryRepository) Upsert(ctx context.Context, tx usecase.Transaction, b *domain.ReconciliationBoundary) error {
	query := `
		INSERT INTO reconciliation_boundaries
			(restaurant_id, balance_start_date, opening_balance, opening_entry_id, cash_account_id, equity_account_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (restaurant_id) DO UPDATE SET
			balance_start_date = EXCLUDED.balance_start_date,
			opening_balance = EXCLUDED.opening_balance,
			opening_entry_id = EXCLUDED.opening_entry_id,
			cash_account_id = EXCLUDED.cash_account_id,
			equity_account_id = EXCLUDED.equity_account_id,
			updated_at = EXCLUDED.updated_at
	`

	_, err := conn(r.db, tx).Exec(ctx, query,
		b.RestaurantID,
		timeToPgDate(b.BalanceStartDate),
		decimalToNumeric(b.OpeningBalance),
		stringPtrToText(b.OpeningEntryID),
		b.CashAccountID,
		b.EquityAccountID,
		timeToPgTimestamptz(b.UpdatedAt),
	)

	return err
}

func scanBoundary(row pgx.Row) (*domain.ReconciliationBoundary, error) {
	var (
		b         domain.ReconciliationBoundary
		start     pgtype.Date
		opening   pgtype.Numeric
		entryID   pgtype.Text
		updatedAt pgtype.Timestamptz
	)

	err := row.Scan(&b.RestaurantID, &start, &opening, &entryID, &b.CashAccountID, &b.EquityAccountID, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBoundaryNotFound
		}
		return nil, err
	}

	b.BalanceStartDate = pgDateToTime(start)
	b.OpeningBalance = numericToDecimal(opening)
	b.OpeningEntryID = textToStringPtr(entryID)
	b.UpdatedAt = updatedAt.Time

	return &b, nil
}
