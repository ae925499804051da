package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrialBalanceLine is one account's balance in a trial balance.
type TrialBalanceLine struct {
	AccountID     string
	Code          string
	Name          string
	Type          AccountType
	NormalBalance NormalBalance
	Balance       decimal.Decimal
}

// DebitBalance is the line's balance presented in the debit column.
func (l TrialBalanceLine) DebitBalance() decimal.Decimal {
	if l.NormalBalance == NormalDebit && l.Balance.IsPositive() {
		return l.Balance
	}
	if l.NormalBalance == NormalCredit && l.Balance.IsNegative() {
		return l.Balance.Neg()
	}
	return decimal.Zero
}

// CreditBalance is the line's balance presented in the credit column.
func (l TrialBalanceLine) CreditBalance() decimal.Decimal {
	if l.NormalBalance == NormalCredit && l.Balance.IsPositive() {
		return l.Balance
	}
	if l.NormalBalance == NormalDebit && l.Balance.IsNegative() {
		return l.Balance.Neg()
	}
	return decimal.Zero
}

// TrialBalance lists every account balance as of a date.
type TrialBalance struct {
	RestaurantID string
	AsOf         time.Time
	Lines        []TrialBalanceLine
}

// Totals returns the debit and credit column totals.
func (tb *TrialBalance) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range tb.Lines {
		debit = debit.Add(l.DebitBalance())
		credit = credit.Add(l.CreditBalance())
	}
	return debit, credit
}

// IsBalanced reports whether the debit and credit columns agree.
func (tb *TrialBalance) IsBalanced() bool {
	debit, credit := tb.Totals()
	return debit.Equal(credit)
}

// NetIncome is revenue less cost of goods and expenses.
func (tb *TrialBalance) NetIncome() decimal.Decimal {
	net := decimal.Zero
	for _, l := range tb.Lines {
		switch l.Type {
		case AccountTypeRevenue:
			net = net.Add(l.Balance)
		case AccountTypeCOGS, AccountTypeExpense:
			net = net.Sub(l.Balance)
		}
	}
	return net
}

// RebuildResult summarizes a balance replay.
type RebuildResult struct {
	Recomputed int
	Changed    int
}
