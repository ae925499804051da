package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationBoundary is the per-restaurant date before which balances are
// fixed by the opening balance.
type ReconciliationBoundary struct {
	RestaurantID     string
	BalanceStartDate time.Time
	OpeningBalance   decimal.Decimal
	OpeningEntryID   *string
	CashAccountID    string
	EquityAccountID  string
	UpdatedAt        time.Time
}

// ViolationReport describes posted events that predate the boundary.
type ViolationReport struct {
	RestaurantID      string
	CashAccountID     string
	BalanceStartDate  time.Time
	EarliestDate      time.Time
	EventCount        int
	EventIDs          []string
	SignedSum         decimal.Decimal
	Adjustment        decimal.Decimal
	OpeningBalance    decimal.Decimal
	NewOpeningBalance decimal.Decimal
	EntryID           *string
}

// DetectViolation builds a report from events on the boundary's cash account.
// It returns nil when no posted event is dated before the start date.
func (b *ReconciliationBoundary) DetectViolation(events []*ExternalEvent) *ViolationReport {
	var report *ViolationReport
	for _, e := range events {
		if !e.IsPosted() || e.CashAccountID != b.CashAccountID || !e.Date.Before(b.BalanceStartDate) {
			continue
		}
		if report == nil {
			report = &ViolationReport{
				RestaurantID:     b.RestaurantID,
				CashAccountID:    b.CashAccountID,
				BalanceStartDate: b.BalanceStartDate,
				EarliestDate:     e.Date,
				SignedSum:        decimal.Zero,
				OpeningBalance:   b.OpeningBalance,
			}
		}
		if e.Date.Before(report.EarliestDate) {
			report.EarliestDate = e.Date
		}
		report.EventCount++
		report.EventIDs = append(report.EventIDs, e.ID)
		report.SignedSum = report.SignedSum.Add(e.Amount)
	}
	if report == nil {
		return nil
	}
	report.Adjustment = report.SignedSum.Neg()
	report.NewOpeningBalance = b.OpeningBalance.Add(report.Adjustment)
	return report
}

// AdjustmentLines posts amount to cash against equity. A positive amount
// debits cash. Zero yields no lines.
func (b *ReconciliationBoundary) AdjustmentLines(amount decimal.Decimal, description string) []JournalLine {
	switch {
	case amount.IsPositive():
		return []JournalLine{
			DebitLine(b.CashAccountID, amount, description),
			CreditLine(b.EquityAccountID, amount, description),
		}
	case amount.IsNegative():
		return []JournalLine{
			DebitLine(b.EquityAccountID, amount.Abs(), description),
			CreditLine(b.CashAccountID, amount.Abs(), description),
		}
	default:
		return nil
	}
}
