package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType is the accounting classification of an account.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
	AccountTypeCOGS      AccountType = "cogs"
)

// IsValid reports whether t is a known account type.
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity,
		AccountTypeRevenue, AccountTypeExpense, AccountTypeCOGS:
		return true
	}
	return false
}

// IsProfitAndLoss reports whether the type is reported on the P&L.
func (t AccountType) IsProfitAndLoss() bool {
	return t == AccountTypeRevenue || t == AccountTypeExpense || t == AccountTypeCOGS
}

// NormalBalance is the side on which an account balance is positive.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "debit"
	NormalCredit NormalBalance = "credit"
)

// IsValid reports whether n is debit or credit.
func (n NormalBalance) IsValid() bool {
	return n == NormalDebit || n == NormalCredit
}

// DefaultNormalBalance returns the conventional normal side for t.
func DefaultNormalBalance(t AccountType) NormalBalance {
	switch t {
	case AccountTypeAsset, AccountTypeExpense, AccountTypeCOGS:
		return NormalDebit
	default:
		return NormalCredit
	}
}

// Common subtypes used by the ledger itself.
const (
	SubtypeCash              = "cash"
	SubtypeBank              = "bank"
	SubtypeUndepositedFunds  = "undeposited_funds"
	SubtypeOwnersEquity      = "owners_equity"
	SubtypeOpeningBalance    = "opening_balance_equity"
	SubtypeUncategorized     = "uncategorized"
	SubtypeSales             = "sales"
	SubtypeFoodCost          = "food_cost"
	SubtypeBeverageCost      = "beverage_cost"
	SubtypePayroll           = "payroll"
	SubtypeOperatingExpenses = "operating_expenses"
)

// Account is a chart-of-accounts entry for one restaurant.
type Account struct {
	ID            string
	RestaurantID  string
	Code          string
	Name          string
	Type          AccountType
	Subtype       string
	ParentID      *string
	NormalBalance NormalBalance
	Balance       decimal.Decimal // cached current balance, healed by RebuildAll
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SignedAmount converts a debit/credit pair into a balance delta, positive on
// the account's normal side.
func (a *Account) SignedAmount(debit, credit decimal.Decimal) decimal.Decimal {
	if a.NormalBalance == NormalCredit {
		return credit.Sub(debit)
	}
	return debit.Sub(credit)
}

// IsCashLike reports whether the account can back an external event.
func (a *Account) IsCashLike() bool {
	if a.Type != AccountTypeAsset {
		return false
	}
	switch a.Subtype {
	case SubtypeCash, SubtypeBank, SubtypeUndepositedFunds:
		return true
	}
	return false
}

// UsableBy reports whether the account may receive lines for restaurantID.
func (a *Account) UsableBy(restaurantID string) bool {
	return a != nil && a.IsActive && a.RestaurantID == restaurantID
}

// Validate checks the static fields of an account.
func (a *Account) Validate() error {
	if err := ValidateAccountCode(a.Code); err != nil {
		return err
	}
	if err := ValidateAccountName(a.Name); err != nil {
		return err
	}
	if !a.Type.IsValid() {
		return ErrInvalidAccountType
	}
	if !a.NormalBalance.IsValid() {
		return ErrInvalidAccountType
	}
	return nil
}
