package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAccount_SignedAmount(t *testing.T) {
	tests := []struct {
		name     string
		normal   NormalBalance
		debit    decimal.Decimal
		credit   decimal.Decimal
		expected decimal.Decimal
	}{
		{
			name:     "debit normal - debit increases",
			normal:   NormalDebit,
			debit:    decimal.NewFromInt(100),
			credit:   decimal.Zero,
			expected: decimal.NewFromInt(100),
		},
		{
			name:     "debit normal - credit decreases",
			normal:   NormalDebit,
			debit:    decimal.Zero,
			credit:   decimal.NewFromInt(40),
			expected: decimal.NewFromInt(-40),
		},
		{
			name:     "credit normal - credit increases",
			normal:   NormalCredit,
			debit:    decimal.Zero,
			credit:   decimal.NewFromInt(75),
			expected: decimal.NewFromInt(75),
		},
		{
			name:     "credit normal - debit decreases",
			normal:   NormalCredit,
			debit:    decimal.NewFromInt(10),
			credit:   decimal.Zero,
			expected: decimal.NewFromInt(-10),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := &Account{NormalBalance: tt.normal}

			got := acc.SignedAmount(tt.debit, tt.credit)

			if !got.Equal(tt.expected) {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestDefaultNormalBalance(t *testing.T) {
	debitTypes := []AccountType{AccountTypeAsset, AccountTypeExpense, AccountTypeCOGS}
	for _, typ := range debitTypes {
		if DefaultNormalBalance(typ) != NormalDebit {
			t.Errorf("expected %s to be debit-normal", typ)
		}
	}

	creditTypes := []AccountType{AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue}
	for _, typ := range creditTypes {
		if DefaultNormalBalance(typ) != NormalCredit {
			t.Errorf("expected %s to be credit-normal", typ)
		}
	}
}

func TestAccount_UsableBy(t *testing.T) {
	acc := &Account{ID: "acc-1", RestaurantID: "r-1", IsActive: true}

	if !acc.UsableBy("r-1") {
		t.Error("expected active account to be usable by its restaurant")
	}
	if acc.UsableBy("r-2") {
		t.Error("expected account to be unusable by a foreign restaurant")
	}

	acc.IsActive = false
	if acc.UsableBy("r-1") {
		t.Error("expected inactive account to be unusable")
	}

	var missing *Account
	if missing.UsableBy("r-1") {
		t.Error("expected nil account to be unusable")
	}
}

func TestAccount_IsCashLike(t *testing.T) {
	tests := []struct {
		acc  Account
		want bool
	}{
		{Account{Type: AccountTypeAsset, Subtype: SubtypeBank}, true},
		{Account{Type: AccountTypeAsset, Subtype: SubtypeUndepositedFunds}, true},
		{Account{Type: AccountTypeAsset, Subtype: "inventory"}, false},
		{Account{Type: AccountTypeExpense, Subtype: SubtypeCash}, false},
	}

	for _, tt := range tests {
		if got := tt.acc.IsCashLike(); got != tt.want {
			t.Errorf("IsCashLike(%s/%s) = %v, want %v", tt.acc.Type, tt.acc.Subtype, got, tt.want)
		}
	}
}
