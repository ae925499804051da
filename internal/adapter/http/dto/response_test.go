package dto

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/usecase"
)

func TestAccountFromDomain(t *testing.T) {
	now := time.Now()
	account := &domain.Account{
		ID:            "acc-1",
		RestaurantID:  "rest-1",
		Code:          "1000",
		Name:          "Cash",
		Type:          domain.AccountTypeAsset,
		Subtype:       domain.SubtypeCash,
		NormalBalance: domain.NormalDebit,
		Balance:       decimal.RequireFromString("123.45"),
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	resp := AccountFromDomain(account)
	if resp.ID != account.ID || resp.Balance.String() != "123.45" || resp.Type != "asset" {
		t.Fatalf("unexpected account response: %+v", resp)
	}

	list := AccountsFromDomain([]*domain.Account{account})
	if len(list) != 1 || list[0].ID != account.ID {
		t.Fatalf("AccountsFromDomain returned %+v", list)
	}
}

func TestEntryFromDomain(t *testing.T) {
	reverses := "je-0"
	entry := &domain.JournalEntry{
		ID:              "je-1",
		EntryNumber:     "JE-000001",
		EntryDate:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Reference:       domain.Reference{Kind: domain.RefReversal, ID: "je-0"},
		TotalDebit:      decimal.NewFromInt(10),
		TotalCredit:     decimal.NewFromInt(10),
		Balanced:        true,
		ReversesEntryID: &reverses,
		Lines: []domain.JournalLine{
			{AccountID: "a", Debit: decimal.NewFromInt(10), LineNo: 1},
			{AccountID: "b", Credit: decimal.NewFromInt(10), LineNo: 2},
		},
	}

	resp := EntryFromDomain(entry)
	if resp.EntryDate != "2024-03-01" || resp.ReferenceKind != "reversal" || !resp.Balanced {
		t.Fatalf("unexpected entry response: %+v", resp)
	}
	if len(resp.Lines) != 2 || resp.Lines[1].AccountID != "b" {
		t.Fatalf("unexpected lines: %+v", resp.Lines)
	}
}

func TestViolationFromDomain(t *testing.T) {
	if resp := ViolationFromDomain(nil); resp.Violated {
		t.Fatalf("nil report should not be a violation")
	}

	resp := ViolationFromDomain(&domain.ViolationReport{
		EventCount:   2,
		EventIDs:     []string{"e1", "e2"},
		EarliestDate: time.Date(2023, 12, 20, 0, 0, 0, 0, time.UTC),
		SignedSum:    decimal.NewFromInt(-150),
		Adjustment:   decimal.NewFromInt(150),
	})
	if !resp.Violated || resp.EarliestDate != "2023-12-20" || resp.EventCount != 2 {
		t.Fatalf("unexpected violation response: %+v", resp)
	}
}

func TestReconciliationReportFromUseCase(t *testing.T) {
	report := &usecase.ReconciliationReport{
		RestaurantID:       "rest-1",
		TotalAccounts:      3,
		ReconciledAccounts: 2,
		Discrepancies: []*usecase.ReconciliationResult{
			{AccountID: "a", Code: "1000", Difference: decimal.NewFromInt(5)},
		},
		LedgerConsistent: true,
	}

	resp := ReconciliationReportFromUseCase(report)
	if len(resp.Discrepancies) != 1 || resp.Discrepancies[0].Code != "1000" {
		t.Fatalf("unexpected discrepancies: %+v", resp.Discrepancies)
	}
	if resp.Boundary == nil || resp.Boundary.Violated {
		t.Fatalf("boundary should be reported as intact: %+v", resp.Boundary)
	}
}
