package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestReconciliationBoundary_DetectViolation(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	b := &ReconciliationBoundary{
		RestaurantID:     "rest-1",
		BalanceStartDate: start,
		OpeningBalance:   decimal.NewFromInt(1000),
		CashAccountID:    "cash",
		EquityAccountID:  "equity",
	}

	posted := func(id, amount string, date time.Time) *ExternalEvent {
		e := newTestEvent(amount)
		e.ID = id
		e.Date = date
		e.MarkCategorized("food", "", date)
		return e
	}

	t.Run("no violation", func(t *testing.T) {
		events := []*ExternalEvent{posted("a", "-10", start), posted("b", "-10", start.AddDate(0, 0, 5))}
		if report := b.DetectViolation(events); report != nil {
			t.Fatalf("expected no violation, got %+v", report)
		}
	})

	t.Run("events before start date", func(t *testing.T) {
		early := posted("a", "-30", start.AddDate(0, 0, -10))
		earlier := posted("b", "50", start.AddDate(0, 0, -20))
		unposted := newTestEvent("-500")
		unposted.Date = start.AddDate(0, 0, -30)
		otherCash := posted("c", "-7", start.AddDate(0, 0, -3))
		otherCash.CashAccountID = "petty"

		report := b.DetectViolation([]*ExternalEvent{early, earlier, unposted, otherCash})

		if report == nil {
			t.Fatal("expected violation report")
		}
		if report.EventCount != 2 {
			t.Errorf("expected 2 offending events, got %d", report.EventCount)
		}
		if !report.EarliestDate.Equal(earlier.Date) {
			t.Errorf("expected earliest %s, got %s", earlier.Date, report.EarliestDate)
		}
		if !report.SignedSum.Equal(decimal.NewFromInt(20)) {
			t.Errorf("expected signed sum 20, got %s", report.SignedSum)
		}
		if !report.Adjustment.Equal(decimal.NewFromInt(-20)) {
			t.Errorf("expected adjustment -20, got %s", report.Adjustment)
		}
		if !report.NewOpeningBalance.Equal(decimal.NewFromInt(980)) {
			t.Errorf("expected new opening balance 980, got %s", report.NewOpeningBalance)
		}
	})
}

func TestReconciliationBoundary_AdjustmentLines(t *testing.T) {
	b := &ReconciliationBoundary{CashAccountID: "cash", EquityAccountID: "equity"}

	lines := b.AdjustmentLines(decimal.NewFromInt(-20), "adjust")
	if len(lines) != 2 || lines[0].AccountID != "equity" || lines[1].AccountID != "cash" {
		t.Fatalf("expected Dr equity / Cr cash, got %+v", lines)
	}
	if !lines[1].Credit.Equal(decimal.NewFromInt(20)) {
		t.Errorf("expected cash credit 20, got %s", lines[1].Credit)
	}

	lines = b.AdjustmentLines(decimal.NewFromInt(15), "adjust")
	if lines[0].AccountID != "cash" || !lines[0].Debit.Equal(decimal.NewFromInt(15)) {
		t.Errorf("expected Dr cash 15, got %+v", lines[0])
	}

	if lines := b.AdjustmentLines(decimal.Zero, "adjust"); lines != nil {
		t.Errorf("expected no lines for zero adjustment, got %+v", lines)
	}
}
