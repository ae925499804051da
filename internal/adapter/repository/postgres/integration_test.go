package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/tableledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/tableledger/internal/adapter/repository/redis"
	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/infrastructure/metrics"
	infraPostgres "github.com/iho/tableledger/internal/infrastructure/postgres"
	"github.com/iho/tableledger/internal/usecase"
)

const migrationsSource = "file://../../../infrastructure/postgres/migrations"

var allTables = []string{
	"audit_logs", "outbox_events", "reconciliation_boundaries", "categorization_rules",
	"reclassifications", "event_splits", "external_events", "entry_references",
	"journal_lines", "journal_entries", "entry_sequences", "accounts",
	"fiscal_periods", "restaurant_members",
}

type ledgerEnv struct {
	pool           *pgxpool.Pool
	authz          *postgres.MembershipAuthorizer
	accounts       *usecase.AccountUseCase
	ledger         *usecase.LedgerUseCase
	balances       *usecase.BalanceUseCase
	categorization *usecase.CategorizationUseCase
	transfers      *usecase.TransferUseCase
}

func newLedgerEnv(t *testing.T) *ledgerEnv {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	log := zerolog.Nop()
	require.NoError(t, infraPostgres.RunMigrations(log, dbURL, migrationsSource))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := infraPostgres.NewPool(ctx, dbURL, 20, 2)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	for _, table := range allTables {
		_, err := pool.Exec(ctx, "TRUNCATE "+table+" CASCADE")
		require.NoError(t, err, table)
	}

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	m := metrics.NewWithRegisterer(prometheus.NewRegistry())

	txManager := postgres.NewTxManager(pool)
	retrier := postgres.NewRetrier(log, m)
	authz := postgres.NewMembershipAuthorizer(pool)
	calendar := postgres.NewFiscalCalendar(pool)
	accountRepo := postgres.NewAccountRepository(pool)
	entryRepo := postgres.NewEntryRepository(pool)
	eventRepo := postgres.NewEventRepository(pool)
	ledgerRepo := postgres.NewLedgerRepository(pool)
	outboxRepo := postgres.NewOutboxRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	idGen := postgres.NewULIDGenerator()
	cache := redisRepo.NewBalanceCache(rdb, time.Minute)

	balanceUC := usecase.NewBalanceUseCase(txManager, authz, accountRepo, entryRepo, ledgerRepo, auditRepo, cache, idGen, log, m)
	ledgerUC := usecase.NewLedgerUseCase(txManager, retrier, authz, accountRepo, entryRepo, ledgerRepo, outboxRepo, auditRepo, balanceUC, idGen, log, m)

	return &ledgerEnv{
		pool:           pool,
		authz:          authz,
		accounts:       usecase.NewAccountUseCase(txManager, authz, accountRepo, outboxRepo, auditRepo, idGen, log, m),
		ledger:         ledgerUC,
		balances:       balanceUC,
		categorization: usecase.NewCategorizationUseCase(txManager, retrier, authz, calendar, accountRepo, eventRepo, entryRepo, ledgerUC, outboxRepo, auditRepo, balanceUC, idGen, log, m),
		transfers:      usecase.NewTransferUseCase(txManager, retrier, authz, calendar, eventRepo, entryRepo, ledgerUC, outboxRepo, auditRepo, balanceUC, idGen, log, m),
	}
}

// seed creates the default chart for restaurantID and returns it by code.
func (e *ledgerEnv) seed(t *testing.T, restaurantID string, principal domain.Principal) map[string]*domain.Account {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, e.authz.AddMember(ctx, restaurantID, principal.UserID, domain.RoleOwner))

	chart, err := domain.DefaultChart()
	require.NoError(t, err)

	accounts, err := e.accounts.SeedChartOfAccounts(ctx, principal, restaurantID, chart)
	require.NoError(t, err)

	byCode := make(map[string]*domain.Account, len(accounts))
	for _, a := range accounts {
		byCode[a.Code] = a
	}
	return byCode
}

func (e *ledgerEnv) ingest(t *testing.T, principal domain.Principal, restaurantID, cashAccountID, amount string, date time.Time) *domain.ExternalEvent {
	t.Helper()

	event, err := e.categorization.IngestEvent(context.Background(), principal, usecase.IngestEventInput{
		RestaurantID:  restaurantID,
		Source:        domain.SourceBankTransaction,
		CashAccountID: cashAccountID,
		Amount:        decimal.RequireFromString(amount),
		Date:          date,
		Description:   "integration",
	})
	require.NoError(t, err)
	return event
}

func (e *ledgerEnv) balance(t *testing.T, accountID string) decimal.Decimal {
	t.Helper()

	b, err := e.balances.BalanceAsOf(context.Background(), accountID, domain.EndOfTime)
	require.NoError(t, err)
	return b
}

func TestIntegration_ConcurrentCategorizeHasOneWinner(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	principal := domain.Principal{UserID: "owner-1"}
	accounts := env.seed(t, "rest-concurrent", principal)
	bank := accounts["1000"]

	event := env.ingest(t, principal, "rest-concurrent", bank.ID, "-42.50", time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))

	targets := []string{"5010", "5000"}
	const workers = 10

	var (
		wg      sync.WaitGroup
		success atomic.Int32
		blocked atomic.Int32
	)
	wg.Add(workers)
	for i := range workers {
		go func() {
			defer wg.Done()

			_, err := env.categorization.Categorize(ctx, principal, usecase.CategorizeInput{
				EventID:   event.ID,
				AccountID: accounts[targets[i%len(targets)]].ID,
			})
			switch {
			case err == nil:
				success.Add(1)
			case errors.Is(err, domain.ErrAlreadyCategorized):
				blocked.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// Repeating the winning target is idempotent and counts as success.
	assert.GreaterOrEqual(t, success.Load(), int32(1))
	assert.Equal(t, int32(workers), success.Load()+blocked.Load())

	assert.True(t, decimal.RequireFromString("-42.50").Equal(env.balance(t, bank.ID)))
	sum := env.balance(t, accounts["5010"].ID).Add(env.balance(t, accounts["5000"].ID))
	assert.True(t, decimal.RequireFromString("42.50").Equal(sum), "posted %s", sum)

	require.NoError(t, env.ledger.CheckConsistency(ctx, "rest-concurrent"))
}

func TestIntegration_ReclassifyThenUncategorize(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	principal := domain.Principal{UserID: "owner-2"}
	accounts := env.seed(t, "rest-flow", principal)
	bank, food, cogs := accounts["1000"], accounts["5010"], accounts["5000"]

	event := env.ingest(t, principal, "rest-flow", bank.ID, "-120.00", time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC))

	_, err := env.categorization.Categorize(ctx, principal, usecase.CategorizeInput{EventID: event.ID, AccountID: food.ID})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(120).Equal(env.balance(t, food.ID)))

	_, err = env.categorization.Reclassify(ctx, principal, usecase.ReclassifyInput{
		EventID:      event.ID,
		NewAccountID: cogs.ID,
		Reason:       "supplier invoice",
	})
	require.NoError(t, err)
	assert.True(t, env.balance(t, food.ID).IsZero())
	assert.True(t, decimal.NewFromInt(120).Equal(env.balance(t, cogs.ID)))

	reverted, err := env.categorization.Uncategorize(ctx, principal, event.ID, "wrong month")
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusForReview, reverted.Status)

	for _, a := range []*domain.Account{bank, food, cogs} {
		assert.True(t, env.balance(t, a.ID).IsZero(), "account %s", a.Code)
	}
	require.NoError(t, env.ledger.CheckConsistency(ctx, "rest-flow"))

	tb, err := env.balances.TrialBalance(ctx, "rest-flow", domain.EndOfTime)
	require.NoError(t, err)
	debit, credit := tb.Totals()
	assert.True(t, debit.Equal(credit))
}

func TestIntegration_TransferPairing(t *testing.T) {
	env := newLedgerEnv(t)
	ctx := context.Background()

	principal := domain.Principal{UserID: "owner-3"}
	accounts := env.seed(t, "rest-transfer", principal)
	bank, till := accounts["1000"], accounts["1010"]

	day := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	out := env.ingest(t, principal, "rest-transfer", bank.ID, "-300.00", day)
	in := env.ingest(t, principal, "rest-transfer", till.ID, "300.00", day.Add(24*time.Hour))

	candidates, err := env.transfers.FindTransferCandidates(ctx, out.ID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, in.ID, candidates[0].ID)

	entry, err := env.transfers.MarkAsTransfer(ctx, principal, out.ID, in.ID)
	require.NoError(t, err)

	again, err := env.transfers.MarkAsTransfer(ctx, principal, in.ID, out.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, again.ID)

	assert.True(t, decimal.NewFromInt(-300).Equal(env.balance(t, bank.ID)))
	assert.True(t, decimal.NewFromInt(300).Equal(env.balance(t, till.ID)))

	_, err = env.categorization.Uncategorize(ctx, principal, out.ID, "undo")
	assert.Error(t, err)

	require.NoError(t, env.ledger.CheckConsistency(ctx, "rest-transfer"))
}
