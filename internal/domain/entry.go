package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ReferenceKind identifies what caused a journal entry.
type ReferenceKind string

const (
	RefBankTransaction          ReferenceKind = "bank_transaction"
	RefPOSSale                  ReferenceKind = "pos_sale"
	RefSplit                    ReferenceKind = "split"
	RefTransfer                 ReferenceKind = "transfer"
	RefReversal                 ReferenceKind = "reversal"
	RefReclassification         ReferenceKind = "reclassification"
	RefReconciliationAdjustment ReferenceKind = "reconciliation_adjustment"
	RefOpeningBalance           ReferenceKind = "opening_balance"
	RefManual                   ReferenceKind = "manual"
)

// Reference links an entry to the event that caused it. At most one active
// entry exists per (restaurant, kind, id).
type Reference struct {
	Kind ReferenceKind
	ID   string
}

func (r Reference) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// JournalEntry is a balanced set of postings. Entries are immutable once
// posted; corrections are new entries.
type JournalEntry struct {
	ID              string
	RestaurantID    string
	EntryDate       time.Time
	EntryNumber     string
	Description     string
	Reference       Reference
	TotalDebit      decimal.Decimal
	TotalCredit     decimal.Decimal
	Balanced        bool
	ReversesEntryID *string
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Lines           []JournalLine
}

// JournalLine posts one side of an amount to one account.
type JournalLine struct {
	ID          string
	EntryID     string
	AccountID   string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
	LineNo      int
}

// DebitLine builds a debit line.
func DebitLine(accountID string, amount decimal.Decimal, description string) JournalLine {
	return JournalLine{AccountID: accountID, Debit: amount, Credit: decimal.Zero, Description: description}
}

// CreditLine builds a credit line.
func CreditLine(accountID string, amount decimal.Decimal, description string) JournalLine {
	return JournalLine{AccountID: accountID, Debit: decimal.Zero, Credit: amount, Description: description}
}

// Validate checks a single line.
func (l JournalLine) Validate() error {
	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		return ErrInvalidLine
	}
	if l.Debit.IsZero() == l.Credit.IsZero() {
		return ErrInvalidLine
	}
	if l.AccountID == "" {
		return ErrUnknownAccount
	}
	if err := ValidateScale(l.Debit); err != nil {
		return err
	}
	return ValidateScale(l.Credit)
}

// ComputeTotals sums the lines and sets the balanced flag.
func (e *JournalEntry) ComputeTotals() {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	e.TotalDebit = debit
	e.TotalCredit = credit
	e.Balanced = debit.Equal(credit)
}

// Validate checks the entry's lines and that debits equal credits exactly.
func (e *JournalEntry) Validate() error {
	if len(e.Lines) < 2 {
		return ErrTooFewLines
	}
	for i, l := range e.Lines {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	e.ComputeTotals()
	if !e.Balanced {
		return fmt.Errorf("%w: debits %s, credits %s", ErrUnbalanced, e.TotalDebit, e.TotalCredit)
	}
	return nil
}

// AccountIDs returns the distinct account ids referenced by the lines, sorted.
func (e *JournalEntry) AccountIDs() []string {
	return LineAccountIDs(e.Lines)
}

// IsReversal reports whether the entry reverses another entry.
func (e *JournalEntry) IsReversal() bool {
	return e.ReversesEntryID != nil
}

// ReversibleByHand reports whether the entry may be reversed directly.
// Only manual entries qualify; the rest belong to an event or boundary.
func (e *JournalEntry) ReversibleByHand() bool {
	return e.Reference.Kind == RefManual && !e.IsReversal()
}

// ReversedLines returns copies of the lines with debit and credit swapped.
func (e *JournalEntry) ReversedLines() []JournalLine {
	lines := make([]JournalLine, len(e.Lines))
	for i, l := range e.Lines {
		lines[i] = JournalLine{
			AccountID:   l.AccountID,
			Debit:       l.Credit,
			Credit:      l.Debit,
			Description: l.Description,
		}
	}
	return lines
}

// LineAccountIDs returns the distinct account ids in lines, sorted so that
// callers lock rows in a stable order.
func LineAccountIDs(lines []JournalLine) []string {
	seen := make(map[string]bool, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if !seen[l.AccountID] {
			seen[l.AccountID] = true
			ids = append(ids, l.AccountID)
		}
	}
	sort.Strings(ids)
	return ids
}

// FormatEntryNumber renders a per-restaurant sequence number.
func FormatEntryNumber(seq int64) string {
	return fmt.Sprintf("JE-%06d", seq)
}

// EndOfTime is the as-of date used for current balances.
var EndOfTime = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// DateOf truncates t to its calendar date in UTC. Entry dates carry no time.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
