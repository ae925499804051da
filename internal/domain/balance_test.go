package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTrialBalance_Totals(t *testing.T) {
	tb := &TrialBalance{Lines: []TrialBalanceLine{
		{Code: "1000", Type: AccountTypeAsset, NormalBalance: NormalDebit, Balance: decimal.NewFromInt(70)},
		{Code: "3900", Type: AccountTypeEquity, NormalBalance: NormalCredit, Balance: decimal.NewFromInt(100)},
		{Code: "4000", Type: AccountTypeRevenue, NormalBalance: NormalCredit, Balance: decimal.NewFromInt(20)},
		{Code: "5010", Type: AccountTypeCOGS, NormalBalance: NormalDebit, Balance: decimal.NewFromInt(50)},
	}}

	debit, credit := tb.Totals()
	if !debit.Equal(decimal.NewFromInt(120)) || !credit.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected 120/120, got %s/%s", debit, credit)
	}
	if !tb.IsBalanced() {
		t.Error("expected trial balance to balance")
	}
	if !tb.NetIncome().Equal(decimal.NewFromInt(-30)) {
		t.Errorf("expected net income -30, got %s", tb.NetIncome())
	}
}

func TestTrialBalanceLine_NegativeBalanceFlipsColumn(t *testing.T) {
	overdrawn := TrialBalanceLine{NormalBalance: NormalDebit, Balance: decimal.NewFromInt(-15)}

	if !overdrawn.CreditBalance().Equal(decimal.NewFromInt(15)) {
		t.Errorf("expected credit column 15, got %s", overdrawn.CreditBalance())
	}
	if !overdrawn.DebitBalance().IsZero() {
		t.Errorf("expected empty debit column, got %s", overdrawn.DebitBalance())
	}
}
