package postgres

import (
	"context"
	"time"

	"github.com/iho/tableledger/internal/infrastructure/postgres/generated"
)

// FiscalCalendar implements usecase.FiscalCalendar over fiscal_periods.
type FiscalCalendar struct {
	db generated.DBTX
}

// NewFiscalCalendar creates a new FiscalCalendar.
func NewFiscalCalendar(db generated.DBTX) *FiscalCalendar {
	return &FiscalCalendar{db: db}
}

// IsClosed reports whether date falls in a closed period of the restaurant.
func (c *FiscalCalendar) IsClosed(ctx context.Context, restaurantID string, date time.Time) (bool, error) {
	var closed bool
	err := c.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM fiscal_periods
			WHERE restaurant_id = $1 AND closed AND $2 BETWEEN start_date AND end_date
		)
	`, restaurantID, timeToPgDate(date)).Scan(&closed)

	return closed, err
}

// ClosePeriod records [start, end] as a closed period.
func (c *FiscalCalendar) ClosePeriod(ctx context.Context, id, restaurantID string, start, end, closedAt time.Time) error {
	_, err := c.db.Exec(ctx, `
		INSERT INTO fiscal_periods (id, restaurant_id, start_date, end_date, closed, closed_at)
		VALUES ($1, $2, $3, $4, TRUE, $5)
	`, id, restaurantID, timeToPgDate(start), timeToPgDate(end), timeToPgTimestamptz(closedAt))

	return err
}
