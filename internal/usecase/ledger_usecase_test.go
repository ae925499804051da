package usecase_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/usecase"
)

func manualEntry(debitAccount, creditAccount, amount string) usecase.PostEntryInput {
	return usecase.PostEntryInput{
		RestaurantID: restaurantID,
		EntryDate:    day(15),
		Description:  "manual adjustment",
		Lines: []domain.JournalLine{
			domain.DebitLine(debitAccount, dec(amount), ""),
			domain.CreditLine(creditAccount, dec(amount), ""),
		},
	}
}

func TestLedgerUseCase_PostEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.ledger.PostEntry(ctx, bookkeeper, manualEntry(foodID, cashID, "120.00"))
	require.NoError(t, err)

	assert.Equal(t, "JE-000001", entry.EntryNumber)
	assert.Equal(t, domain.RefManual, entry.Reference.Kind)
	assert.Equal(t, entry.ID, entry.Reference.ID)
	assert.True(t, entry.Balanced)
	assert.Equal(t, day(15), entry.EntryDate)
	assert.Equal(t, bookkeeper.UserID, entry.CreatedBy)
	requireDecimal(t, "120", entry.TotalDebit)
	for i, line := range entry.Lines {
		assert.Equal(t, i+1, line.LineNo)
		assert.Equal(t, entry.ID, line.EntryID)
	}

	requireDecimal(t, "120", f.balance(t, foodID))
	requireDecimal(t, "-120", f.balance(t, cashID))

	assert.Len(t, f.outbox.ByType(domain.EventTypeEntryPosted), 1)
	assert.Len(t, f.audit.ByAction(domain.AuditActionEntryPost), 1)
	require.NoError(t, f.ledger.CheckConsistency(ctx, restaurantID))
}

func TestLedgerUseCase_PostEntry_ReservesEventReferenceKinds(t *testing.T) {
	f := newFixture(t)

	input := manualEntry(foodID, cashID, "10")
	input.Reference = domain.Reference{Kind: domain.RefBankTransaction, ID: "evt-1"}

	entry, err := f.ledger.PostEntry(context.Background(), bookkeeper, input)
	require.NoError(t, err)
	assert.Equal(t, domain.RefManual, entry.Reference.Kind)
}

func TestLedgerUseCase_PostEntry_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		input   func() usecase.PostEntryInput
		role    domain.Role
		wantErr error
	}{
		{
			name: "unbalanced by one cent",
			input: func() usecase.PostEntryInput {
				in := manualEntry(foodID, cashID, "100.00")
				in.Lines[1].Credit = dec("99.99")
				return in
			},
			wantErr: domain.ErrUnbalanced,
		},
		{
			name: "single line",
			input: func() usecase.PostEntryInput {
				in := manualEntry(foodID, cashID, "100.00")
				in.Lines = in.Lines[:1]
				return in
			},
			wantErr: domain.ErrTooFewLines,
		},
		{
			name: "line with both sides",
			input: func() usecase.PostEntryInput {
				in := manualEntry(foodID, cashID, "100.00")
				in.Lines[0].Credit = dec("1")
				in.Lines[1].Debit = dec("1")
				return in
			},
			wantErr: domain.ErrInvalidLine,
		},
		{
			name:    "unknown account",
			input:   func() usecase.PostEntryInput { return manualEntry("acc-missing", cashID, "5") },
			wantErr: domain.ErrUnknownAccount,
		},
		{
			name:    "inactive account",
			input:   func() usecase.PostEntryInput { return manualEntry(inactiveID, cashID, "5") },
			wantErr: domain.ErrUnknownAccount,
		},
		{
			name:    "account of another restaurant",
			input:   func() usecase.PostEntryInput { return manualEntry(foodID, foreignID, "5") },
			wantErr: domain.ErrUnknownAccount,
		},
		{
			name:    "staff cannot post",
			input:   func() usecase.PostEntryInput { return manualEntry(foodID, cashID, "5") },
			role:    domain.RoleStaff,
			wantErr: domain.ErrUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.role != "" {
				f.role = tt.role
			}

			entry, err := f.ledger.PostEntry(context.Background(), bookkeeper, tt.input())

			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, entry)
			assert.Empty(t, f.entries.Entries(restaurantID))
			assert.Empty(t, f.outbox.ByType(domain.EventTypeEntryPosted))
			requireDecimal(t, "0", f.balance(t, cashID))
		})
	}
}

func TestLedgerUseCase_PostEntry_AnonymousPrincipal(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.PostEntry(context.Background(), domain.Principal{}, manualEntry(foodID, cashID, "5"))
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLedgerUseCase_ReverseEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	original, err := f.ledger.PostEntry(ctx, bookkeeper, manualEntry(foodID, cashID, "75.25"))
	require.NoError(t, err)

	reversal, err := f.ledger.ReverseEntry(ctx, bookkeeper, original.ID, "posted twice")
	require.NoError(t, err)

	require.NotNil(t, reversal.ReversesEntryID)
	assert.Equal(t, original.ID, *reversal.ReversesEntryID)
	assert.Equal(t, original.EntryDate, reversal.EntryDate)
	assert.Equal(t, domain.Reference{Kind: domain.RefReversal, ID: original.ID}, reversal.Reference)
	assert.Contains(t, reversal.Description, "posted twice")
	require.Len(t, reversal.Lines, 2)
	assert.Equal(t, foodID, reversal.Lines[0].AccountID)
	requireDecimal(t, "75.25", reversal.Lines[0].Credit)
	requireDecimal(t, "75.25", reversal.Lines[1].Debit)

	requireDecimal(t, "0", f.balance(t, foodID))
	requireDecimal(t, "0", f.balance(t, cashID))

	stored, err := f.ledger.GetEntry(ctx, original.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ReversesEntryID)
	requireDecimal(t, "75.25", stored.Lines[0].Debit)

	_, err = f.ledger.ReverseEntry(ctx, bookkeeper, original.ID, "again")
	require.ErrorIs(t, err, domain.ErrAlreadyReversed)

	_, err = f.ledger.ReverseEntry(ctx, bookkeeper, reversal.ID, "undo the undo")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	assert.Len(t, f.entries.Entries(restaurantID), 2)
	assert.Len(t, f.outbox.ByType(domain.EventTypeEntryReversed), 1)
	assert.Len(t, f.audit.ByAction(domain.AuditActionEntryReverse), 1)
}

func TestLedgerUseCase_ReverseEntry_RejectsEventEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addEvent("evt-1", bankID, "-42.50", day(4), "SYSCO #4411")

	categorized, err := f.categorization.Categorize(ctx, bookkeeper, usecase.CategorizeInput{EventID: "evt-1", AccountID: foodID})
	require.NoError(t, err)

	_, err = f.ledger.ReverseEntry(ctx, bookkeeper, categorized.ID, "wrong account")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	requireDecimal(t, "42.50", f.balance(t, foodID))
	assert.Empty(t, f.outbox.ByType(domain.EventTypeEntryReversed))

	// The event still owns its entry, so retrying the same category is a no-op.
	again, err := f.categorization.Categorize(ctx, bookkeeper, usecase.CategorizeInput{EventID: "evt-1", AccountID: foodID})
	require.NoError(t, err)
	assert.Equal(t, categorized.ID, again.ID)

	_, err = f.categorization.Reclassify(ctx, bookkeeper, usecase.ReclassifyInput{
		EventID:      "evt-1",
		NewAccountID: suppliesID,
		Reason:       "supplies, not food",
	})
	require.NoError(t, err)
	requireDecimal(t, "0", f.balance(t, foodID))
	requireDecimal(t, "42.50", f.balance(t, suppliesID))
	require.NoError(t, f.ledger.CheckConsistency(ctx, restaurantID))
}

func TestLedgerUseCase_ReverseEntry_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.ReverseEntry(context.Background(), bookkeeper, "missing", "")
	require.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestLedgerUseCase_ListEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.ledger.PostEntry(ctx, bookkeeper, manualEntry(foodID, cashID, "1"))
		require.NoError(t, err)
	}

	entries, err := f.ledger.ListEntries(ctx, usecase.ListEntriesInput{RestaurantID: restaurantID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "JE-000003", entries[0].EntryNumber)
}

func TestLedgerUseCase_CheckConsistency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ledger.CheckConsistency(ctx, restaurantID))

	f.ledgerRepo.CheckConsistencyFunc = func(ctx context.Context, restaurantID string) (decimal.Decimal, decimal.Decimal, error) {
		return dec("100"), dec("99"), nil
	}

	err := f.ledger.CheckConsistency(ctx, restaurantID)
	require.ErrorIs(t, err, usecase.ErrInconsistentLedger)
	assert.Contains(t, err.Error(), "difference=1")
}

func TestLedgerUseCase_PostInTx_RollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.outbox.CreateFunc = func(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
		return assert.AnError
	}

	_, err := f.ledger.PostEntry(ctx, bookkeeper, manualEntry(foodID, cashID, "5"))
	require.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, f.entries.Entries(restaurantID))

	_, err = f.ledger.FindByReference(ctx, restaurantID, domain.Reference{Kind: domain.RefManual, ID: "mock-id-00001"})
	require.ErrorIs(t, err, domain.ErrEntryNotFound)
}
