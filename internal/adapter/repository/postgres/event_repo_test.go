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
	"github.com/iho/tableledger/internal/usecase"
)

var eventRowColumns = []string{
	"id", "restaurant_id", "source", "cash_account_id", "amount", "event_date", "description", "item_name", "payee",
	"counterparty_id", "status", "category_account_id", "is_split", "is_transfer", "transfer_pair_id", "is_reconciled",
	"matched_rule_id", "rule_evaluated_at", "note", "excluded_reason", "created_at", "updated_at",
}

func eventRows() *pgxmock.Rows {
	now := testTime()
	return pgxmock.NewRows(eventRowColumns).
		AddRow("evt-1", "rest-1", "bank_transaction", "cash", num("-80.00"), timeToPgDate(now), "SYSCO #4411", "", "Sysco",
			pgtype.Text{}, "categorized", pgtype.Text{String: "food", Valid: true}, false, false, pgtype.Text{}, false,
			pgtype.Text{String: "rule-1", Valid: true}, timeToPgTimestamptz(now), "", "", timeToPgTimestamptz(now), timeToPgTimestamptz(now))
}

func TestEventRepositoryGetByIDForUpdate(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectBegin()
	pool.ExpectQuery("FROM external_events WHERE id = \\$1 FOR UPDATE").
		WithArgs("evt-1").
		WillReturnRows(eventRows())
	pool.ExpectRollback()

	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}

	event, err := NewEventRepository(pool).GetByIDForUpdate(context.Background(), tx, "evt-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if event.Status != domain.EventStatusCategorized || event.Source != domain.SourceBankTransaction {
		t.Fatalf("unexpected state: %s/%s", event.Status, event.Source)
	}
	if !event.Amount.Equal(decimal.NewFromInt(-80)) || !event.IsOutflow() {
		t.Fatalf("unexpected amount %s", event.Amount)
	}
	if event.CategoryAccountID == nil || *event.CategoryAccountID != "food" {
		t.Fatalf("unexpected category %v", event.CategoryAccountID)
	}
	if event.CounterpartyID != nil || event.TransferPairID != nil {
		t.Fatalf("null columns should read as nil")
	}
	if event.RuleEvaluatedAt == nil || event.MatchedRuleID == nil {
		t.Fatalf("rule match should be loaded")
	}

	_ = tx.Rollback(context.Background())
	assertExpectations(t, pool)
}

func TestEventRepositoryGetByIDNotFound(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectQuery("FROM external_events").WithArgs("nope").WillReturnError(pgx.ErrNoRows)

	_, err := NewEventRepository(pool).GetByID(context.Background(), "nope")
	if !errors.Is(err, domain.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestEventRepositoryUpdateMissing(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectExec("UPDATE external_events SET").WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := NewEventRepository(pool).Update(context.Background(), nil, &domain.ExternalEvent{ID: "gone", Status: domain.EventStatusExcluded})
	if !errors.Is(err, domain.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestEventRepositoryListFiltersByStatus(t *testing.T) {
	pool := newMockPool(t)
	status := domain.EventStatusCategorized

	pool.ExpectQuery("FROM external_events").
		WithArgs("rest-1", pgtype.Text{String: "categorized", Valid: true}, 50, 0).
		WillReturnRows(eventRows())
	pool.ExpectQuery("FROM external_events").
		WithArgs("rest-1", pgtype.Text{}, 10, 20).
		WillReturnRows(pgxmock.NewRows(eventRowColumns))

	repo := NewEventRepository(pool)
	events, err := repo.List(context.Background(), usecase.EventFilter{RestaurantID: "rest-1", Status: &status, Limit: 50})
	if err != nil || len(events) != 1 {
		t.Fatalf("unexpected result: %v %v", events, err)
	}

	events, err = repo.List(context.Background(), usecase.EventFilter{RestaurantID: "rest-1", Limit: 10, Offset: 20})
	if err != nil || len(events) != 0 {
		t.Fatalf("unexpected result: %v %v", events, err)
	}

	assertExpectations(t, pool)
}

func TestEventRepositorySetRuleMatchClears(t *testing.T) {
	pool := newMockPool(t)
	now := testTime()

	pool.ExpectExec("UPDATE external_events SET matched_rule_id").
		WithArgs("evt-1", pgtype.Text{}, timeToPgTimestamptz(now)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := NewEventRepository(pool).SetRuleMatch(context.Background(), "evt-1", nil, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertExpectations(t, pool)
}

func TestEventRepositoryListMatchedPassesRuleIDs(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectQuery("matched_rule_id = ANY").
		WithArgs("rest-1", []string{"rule-1", "rule-2"}, 100).
		WillReturnRows(eventRows())

	events, err := NewEventRepository(pool).ListMatched(context.Background(), "rest-1", []string{"rule-1", "rule-2"}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || *events[0].MatchedRuleID != "rule-1" {
		t.Fatalf("unexpected events: %+v", events)
	}

	assertExpectations(t, pool)
}

func TestEventRepositorySplits(t *testing.T) {
	pool := newMockPool(t)
	now := testTime()
	splits := []*domain.EventSplit{
		{ID: "sp-1", EventID: "evt-1", RestaurantID: "rest-1", AccountID: "food", Amount: decimal.NewFromInt(60), EntryID: "je-1", CreatedAt: now},
		{ID: "sp-2", EventID: "evt-1", RestaurantID: "rest-1", AccountID: "supplies", Amount: decimal.NewFromInt(20), EntryID: "je-1", CreatedAt: now},
	}

	pool.ExpectBegin()
	pool.ExpectExec("INSERT INTO event_splits").
		WithArgs("sp-1", "evt-1", "rest-1", "food", num("60"), "", "je-1", timeToPgTimestamptz(now)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectExec("INSERT INTO event_splits").
		WithArgs("sp-2", "evt-1", "rest-1", "supplies", num("20"), "", "je-1", timeToPgTimestamptz(now)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectExec("UPDATE event_splits").
		WithArgs("evt-1", "je-9").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	pool.ExpectCommit()

	repo := NewEventRepository(pool)
	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}

	if err := repo.CreateSplits(context.Background(), tx, splits); err != nil {
		t.Fatalf("create splits failed: %v", err)
	}
	if err := repo.ReleaseSplits(context.Background(), tx, "evt-1", "je-9"); err != nil {
		t.Fatalf("release splits failed: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	pool.ExpectQuery("reversed_entry_id IS NULL").
		WithArgs("evt-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "event_id", "restaurant_id", "account_id", "amount", "description", "entry_id", "created_at"}).
			AddRow("sp-1", "evt-1", "rest-1", "food", num("60"), "", "je-1", timeToPgTimestamptz(now)))

	listed, err := repo.ListSplits(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("list splits failed: %v", err)
	}
	if len(listed) != 1 || !listed[0].Amount.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("unexpected splits: %+v", listed)
	}

	assertExpectations(t, pool)
}

func TestEventRepositoryReclassifications(t *testing.T) {
	pool := newMockPool(t)
	now := testTime()

	pool.ExpectExec("INSERT INTO reclassifications").
		WithArgs("rc-1", "rest-1", "evt-1", "food", "supplies", "wrong bucket", "je-2", "user-1", timeToPgTimestamptz(now)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectQuery("FROM reclassifications").
		WithArgs("evt-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "restaurant_id", "event_id", "old_account_id", "new_account_id", "reason", "entry_id", "created_by", "created_at"}).
			AddRow("rc-1", "rest-1", "evt-1", "food", "supplies", "wrong bucket", "je-2", "user-1", timeToPgTimestamptz(now)))

	repo := NewEventRepository(pool)
	err := repo.CreateReclassification(context.Background(), nil, &domain.Reclassification{
		ID:           "rc-1",
		RestaurantID: "rest-1",
		EventID:      "evt-1",
		OldAccountID: "food",
		NewAccountID: "supplies",
		Reason:       "wrong bucket",
		EntryID:      "je-2",
		CreatedBy:    "user-1",
		CreatedAt:    now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	list, err := repo.ListReclassifications(context.Background(), nil, "evt-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].NewAccountID != "supplies" || !list[0].CreatedAt.Equal(now) {
		t.Fatalf("unexpected reclassifications: %+v", list)
	}

	assertExpectations(t, pool)
}
