package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/tableledger/internal/domain"
)

var ruleRowColumns = []string{
	"id", "restaurant_id", "name", "pattern", "match_type", "match_field", "amount_min", "amount_max",
	"counterparty_id", "direction", "source", "target_account_id", "split_targets", "auto_apply", "priority", "is_active",
	"match_count", "apply_count", "last_applied_at", "created_at", "updated_at",
}

func TestRuleRepositoryCreateEncodesSplitTargets(t *testing.T) {
	pool := newMockPool(t)
	now := testTime()
	rule := &domain.CategorizationRule{
		ID:           "rule-1",
		RestaurantID: "rest-1",
		Name:         "Costco",
		Pattern:      "COSTCO",
		MatchType:    domain.MatchContains,
		MatchField:   domain.FieldDescription,
		Direction:    domain.DirectionOutflow,
		SplitTargets: []domain.SplitTarget{
			{AccountID: "food", Percentage: decimal.NewFromInt(70)},
			{AccountID: "supplies", Percentage: decimal.NewFromInt(30)},
		},
		AutoApply: true,
		Priority:  5,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	targets, err := marshalSplitTargets(rule.SplitTargets)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	pool.ExpectExec("INSERT INTO categorization_rules").
		WithArgs("rule-1", "rest-1", "Costco", "COSTCO", "contains", "description", pgtype.Numeric{}, pgtype.Numeric{},
			pgtype.Text{}, "outflow", "", pgtype.Text{}, targets, true, 5, true, int64(0), int64(0),
			pgtype.Timestamptz{}, timeToPgTimestamptz(now), timeToPgTimestamptz(now)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := NewRuleRepository(pool).Create(context.Background(), rule); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertExpectations(t, pool)
}

func TestRuleRepositoryListDecodesRules(t *testing.T) {
	pool := newMockPool(t)
	now := testTime()

	targets := []byte(`[{"account_id":"food","percentage":"70"},{"account_id":"supplies","percentage":"30","description":"paper"}]`)
	pool.ExpectQuery("FROM categorization_rules").
		WithArgs("rest-1", false).
		WillReturnRows(pgxmock.NewRows(ruleRowColumns).
			AddRow("rule-1", "rest-1", "Costco", "COSTCO", "contains", "description", num("10"), pgtype.Numeric{},
				pgtype.Text{}, "outflow", "bank_transaction", pgtype.Text{}, targets, true, int32(5), true,
				int64(3), int64(1), timeToPgTimestamptz(now), timeToPgTimestamptz(now), timeToPgTimestamptz(now)).
			AddRow("rule-2", "rest-1", "Payroll", "ADP", "prefix", "payee", pgtype.Numeric{}, pgtype.Numeric{},
				pgtype.Text{}, "any", "", pgtype.Text{String: "wages", Valid: true}, []byte(nil), false, int32(0), true,
				int64(0), int64(0), pgtype.Timestamptz{}, timeToPgTimestamptz(now), timeToPgTimestamptz(now)))

	rules, err := NewRuleRepository(pool).List(context.Background(), "rest-1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}

	split := rules[0]
	if !split.IsSplitRule() || len(split.SplitTargets) != 2 || split.SplitTargets[1].Description != "paper" {
		t.Fatalf("unexpected split targets: %+v", split.SplitTargets)
	}
	if !split.SplitTargets[0].Percentage.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("unexpected percentage: %s", split.SplitTargets[0].Percentage)
	}
	if split.AmountMin == nil || split.AmountMax != nil {
		t.Fatalf("unexpected amount bounds: %v %v", split.AmountMin, split.AmountMax)
	}
	if split.Source != domain.SourceBankTransaction || split.Priority != 5 || split.LastAppliedAt == nil {
		t.Fatalf("unexpected rule: %+v", split)
	}

	plain := rules[1]
	if plain.IsSplitRule() || plain.TargetAccountID == nil || *plain.TargetAccountID != "wages" {
		t.Fatalf("unexpected rule: %+v", plain)
	}
	if plain.LastAppliedAt != nil {
		t.Fatalf("last applied should be nil")
	}

	assertExpectations(t, pool)
}

func TestRuleRepositoryGetByIDNotFound(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectQuery("FROM categorization_rules").WithArgs("nope").WillReturnError(pgx.ErrNoRows)

	_, err := NewRuleRepository(pool).GetByID(context.Background(), "nope")
	if !errors.Is(err, domain.ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestRuleRepositoryCounters(t *testing.T) {
	pool := newMockPool(t)
	now := testTime()

	pool.ExpectExec("match_count = match_count \\+ \\$2").
		WithArgs("rule-1", 4).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec("apply_count = apply_count \\+ 1").
		WithArgs("rule-1", timeToPgTimestamptz(now)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewRuleRepository(pool)
	if err := repo.IncrementMatchCount(context.Background(), "rule-1", 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.IncrementApplyCount(context.Background(), "rule-1", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertExpectations(t, pool)
}
