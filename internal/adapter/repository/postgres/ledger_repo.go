package postgres

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tableledger/internal/infrastructure/postgres/generated"
	"github.com/iho/tableledger/internal/usecase"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	queries *generated.Queries
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(db generated.DBTX) *LedgerRepository {
	return &LedgerRepository{queries: generated.New(db)}
}

// CheckConsistency totals every line of the restaurant's ledger.
func (r *LedgerRepository) CheckConsistency(ctx context.Context, restaurantID string) (totalDebit, totalCredit decimal.Decimal, err error) {
	result, err := r.queries.SumAllLines(ctx, restaurantID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	return numericToDecimal(result.TotalDebit), numericToDecimal(result.TotalCredit), nil
}

// SumLinesByAccount totals lines per account for entries dated on or before asOf.
func (r *LedgerRepository) SumLinesByAccount(ctx context.Context, restaurantID string, asOf time.Time) (map[string]usecase.LineTotals, error) {
	rows, err := r.queries.SumLinesByRestaurant(ctx, generated.SumLinesByRestaurantParams{
		RestaurantID: restaurantID,
		EntryDate:    timeToPgDate(asOf),
	})
	if err != nil {
		return nil, err
	}

	totals := make(map[string]usecase.LineTotals, len(rows))
	for _, row := range rows {
		totals[row.AccountID] = usecase.LineTotals{
			Debit:  numericToDecimal(row.TotalDebit),
			Credit: numericToDecimal(row.TotalCredit),
		}
	}

	return totals, nil
}
