package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/infrastructure/metrics"
	"github.com/iho/tableledger/internal/usecase"
	"github.com/iho/tableledger/internal/usecase/mocks"
)

const (
	restaurantID = "rest-1"
	otherRestID  = "rest-2"

	cashID     = "acc-cash"
	bankID     = "acc-bank"
	salesID    = "acc-sales"
	foodID     = "acc-food"
	suppliesID = "acc-supplies"
	equityID   = "acc-equity"
	inactiveID = "acc-inactive"
	foreignID  = "acc-foreign"
)

var bookkeeper = domain.Principal{UserID: "user-1", Email: "books@example.com"}

// day returns midnight UTC of the given date in March 2024.
func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	accounts   *mocks.MockAccountRepository
	entries    *mocks.MockEntryRepository
	ledgerRepo *mocks.MockLedgerRepository
	events     *mocks.MockEventRepository
	rules      *mocks.MockRuleRepository
	boundaries *mocks.MockBoundaryRepository
	outbox     *mocks.MockOutboxRepository
	audit      *mocks.MockAuditRepository
	txManager  *mocks.MockTransactionManager
	retrier    *mocks.MockRetrier
	idGen      *mocks.MockIDGenerator
	metrics    *metrics.Metrics

	// role is what the authorizer grants every principal.
	role domain.Role
	// closedThrough closes every fiscal period up to and including it.
	closedThrough time.Time

	ledger         *usecase.LedgerUseCase
	balances       *usecase.BalanceUseCase
	accountUC      *usecase.AccountUseCase
	categorization *usecase.CategorizationUseCase
	split          *usecase.SplitUseCase
	transfer       *usecase.TransferUseCase
	ruleUC         *usecase.RuleUseCase
	reconciliation *usecase.ReconciliationUseCase
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithCache(t, nil)
}

func newFixtureWithCache(t *testing.T, cache usecase.BalanceCache) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)

	f := &fixture{
		accounts:   mocks.NewMockAccountRepository(),
		entries:    mocks.NewMockEntryRepository(),
		events:     mocks.NewMockEventRepository(),
		rules:      mocks.NewMockRuleRepository(),
		boundaries: mocks.NewMockBoundaryRepository(),
		outbox:     mocks.NewMockOutboxRepository(),
		audit:      mocks.NewMockAuditRepository(),
		txManager:  mocks.NewMockTransactionManager(),
		retrier:    mocks.NewMockRetrier(),
		idGen:      mocks.NewMockIDGenerator(),
		metrics:    metrics.NewWithRegisterer(prometheus.NewRegistry()),
		role:       domain.RoleAccountant,
	}
	f.ledgerRepo = mocks.NewMockLedgerRepository(f.entries)

	authz := mocks.NewMockAuthorizer(ctrl)
	authz.EXPECT().RoleFor(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, domain.Principal, string) (domain.Role, error) {
			return f.role, nil
		}).AnyTimes()

	calendar := mocks.NewMockFiscalCalendar(ctrl)
	calendar.EXPECT().IsClosed(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, date time.Time) (bool, error) {
			return !f.closedThrough.IsZero() && !date.After(f.closedThrough), nil
		}).AnyTimes()

	log := zerolog.Nop()

	f.balances = usecase.NewBalanceUseCase(f.txManager, authz, f.accounts, f.entries, f.ledgerRepo,
		f.audit, cache, f.idGen, log, f.metrics)
	f.ledger = usecase.NewLedgerUseCase(f.txManager, f.retrier, authz, f.accounts, f.entries, f.ledgerRepo,
		f.outbox, f.audit, f.balances, f.idGen, log, f.metrics)
	f.accountUC = usecase.NewAccountUseCase(f.txManager, authz, f.accounts, f.outbox, f.audit, f.idGen, log, f.metrics)
	f.categorization = usecase.NewCategorizationUseCase(f.txManager, f.retrier, authz, calendar, f.accounts,
		f.events, f.entries, f.ledger, f.outbox, f.audit, f.balances, f.idGen, log, f.metrics)
	f.split = usecase.NewSplitUseCase(f.txManager, f.retrier, authz, calendar, f.events, f.entries, f.ledger,
		f.outbox, f.audit, f.balances, f.idGen, log, f.metrics)
	f.transfer = usecase.NewTransferUseCase(f.txManager, f.retrier, authz, calendar, f.events, f.entries, f.ledger,
		f.outbox, f.audit, f.balances, f.idGen, log, f.metrics)
	f.ruleUC = usecase.NewRuleUseCase(authz, f.accounts, f.rules, f.events, f.outbox, f.audit, f.categorization,
		f.split, f.idGen, log, f.metrics)
	f.reconciliation = usecase.NewReconciliationUseCase(f.txManager, f.retrier, authz, f.accounts, f.boundaries,
		f.events, f.entries, f.ledgerRepo, f.ledger, f.balances, f.outbox, f.audit, f.idGen, log, f.metrics)

	f.seedAccounts()

	return f
}

func (f *fixture) seedAccounts() {
	now := time.Now().UTC()
	seed := []domain.Account{
		{ID: cashID, RestaurantID: restaurantID, Code: "1010", Name: "Cash on Hand", Type: domain.AccountTypeAsset, Subtype: domain.SubtypeCash, NormalBalance: domain.NormalDebit, IsActive: true},
		{ID: bankID, RestaurantID: restaurantID, Code: "1000", Name: "Operating Cash", Type: domain.AccountTypeAsset, Subtype: domain.SubtypeBank, NormalBalance: domain.NormalDebit, IsActive: true},
		{ID: equityID, RestaurantID: restaurantID, Code: "3900", Name: "Opening Balance Equity", Type: domain.AccountTypeEquity, Subtype: domain.SubtypeOpeningBalance, NormalBalance: domain.NormalCredit, IsActive: true},
		{ID: salesID, RestaurantID: restaurantID, Code: "4000", Name: "Food Sales", Type: domain.AccountTypeRevenue, Subtype: domain.SubtypeSales, NormalBalance: domain.NormalCredit, IsActive: true},
		{ID: foodID, RestaurantID: restaurantID, Code: "5000", Name: "Food Cost", Type: domain.AccountTypeCOGS, Subtype: domain.SubtypeFoodCost, NormalBalance: domain.NormalDebit, IsActive: true},
		{ID: suppliesID, RestaurantID: restaurantID, Code: "6100", Name: "Supplies", Type: domain.AccountTypeExpense, Subtype: domain.SubtypeOperatingExpenses, NormalBalance: domain.NormalDebit, IsActive: true},
		{ID: inactiveID, RestaurantID: restaurantID, Code: "6900", Name: "Old Expenses", Type: domain.AccountTypeExpense, NormalBalance: domain.NormalDebit, IsActive: false},
		{ID: foreignID, RestaurantID: otherRestID, Code: "1010", Name: "Cash on Hand", Type: domain.AccountTypeAsset, Subtype: domain.SubtypeCash, NormalBalance: domain.NormalDebit, IsActive: true},
	}
	for i := range seed {
		seed[i].Balance = decimal.Zero
		seed[i].CreatedAt = now
		seed[i].UpdatedAt = now
		f.accounts.Add(&seed[i])
	}
}

// addEvent seeds a for_review bank transaction.
func (f *fixture) addEvent(id, cashAccountID, amount string, date time.Time, description string) *domain.ExternalEvent {
	ev := &domain.ExternalEvent{
		ID:            id,
		RestaurantID:  restaurantID,
		Source:        domain.SourceBankTransaction,
		CashAccountID: cashAccountID,
		Amount:        dec(amount),
		Date:          date,
		Description:   description,
		Status:        domain.EventStatusForReview,
		CreatedAt:     date,
		UpdatedAt:     date,
	}
	f.events.Add(ev)
	return ev
}

func (f *fixture) event(t *testing.T, id string) *domain.ExternalEvent {
	t.Helper()
	ev, err := f.events.GetByID(context.Background(), id)
	require.NoError(t, err)
	return ev
}

// balance returns the account's stored current balance.
func (f *fixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	acc, err := f.accounts.GetByID(context.Background(), id)
	require.NoError(t, err)
	return acc.Balance
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "expected %s, got %s", want, got)
}
