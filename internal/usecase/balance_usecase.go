package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/infrastructure/logger"
	"github.com/iho/tableledger/internal/infrastructure/metrics"
)

// BalanceUseCase derives account balances by replaying journal lines.
type BalanceUseCase struct {
	txManager   TransactionManager
	authz       Authorizer
	accountRepo AccountRepository
	entryRepo   EntryRepository
	ledgerRepo  LedgerRepository
	auditRepo   AuditRepository
	cache       BalanceCache
	idGen       IDGenerator
	logger      zerolog.Logger
	metrics     *metrics.Metrics
}

// NewBalanceUseCase creates a new BalanceUseCase. cache may be nil.
func NewBalanceUseCase(
	txManager TransactionManager,
	authz Authorizer,
	accountRepo AccountRepository,
	entryRepo EntryRepository,
	ledgerRepo LedgerRepository,
	auditRepo AuditRepository,
	cache BalanceCache,
	idGen IDGenerator,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) *BalanceUseCase {
	return &BalanceUseCase{
		txManager:   txManager,
		authz:       authz,
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		ledgerRepo:  ledgerRepo,
		auditRepo:   auditRepo,
		cache:       cache,
		idGen:       idGen,
		logger:      logger,
		metrics:     metrics,
	}
}

// BalanceAsOf returns the account balance over entries dated on or before
// date, positive on the account's normal side. It reads committed state only.
func (uc *BalanceUseCase) BalanceAsOf(ctx context.Context, accountID string, date time.Time) (decimal.Decimal, error) {
	account, err := uc.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	asOf := domain.DateOf(date)
	log := logger.WithContext(ctx, uc.logger)

	var version int64
	if uc.cache != nil {
		cached, v, found, err := uc.cache.Get(ctx, accountID, asOf)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("account_id", accountID).Msg("balance cache read failed")
		case found:
			if uc.metrics != nil {
				uc.metrics.BalanceCacheHits.Inc()
			}
			return cached, nil
		default:
			version = v
		}
	}

	if uc.metrics != nil {
		uc.metrics.BalanceCacheMisses.Inc()
	}

	totals, err := uc.entryRepo.SumByAccount(ctx, accountID, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	balance := account.SignedAmount(totals.Debit, totals.Credit)

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, accountID, version, asOf, balance); err != nil {
			log.Warn().Err(err).Str("account_id", accountID).Msg("balance cache write failed")
		}
	}

	return balance, nil
}

// Refresh invalidates cached balances of the touched accounts and recomputes
// their stored current balance.
func (uc *BalanceUseCase) Refresh(ctx context.Context, restaurantID string, accountIDs []string) error {
	if len(accountIDs) == 0 {
		return nil
	}

	if uc.cache != nil {
		if err := uc.cache.Invalidate(ctx, accountIDs...); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	for _, id := range accountIDs {
		account, err := uc.accountRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if account.RestaurantID != restaurantID {
			continue
		}

		totals, err := uc.entryRepo.SumByAccount(ctx, id, domain.EndOfTime)
		if err != nil {
			return err
		}

		balance := account.SignedAmount(totals.Debit, totals.Credit)
		if balance.Equal(account.Balance) {
			continue
		}
		if err := uc.accountRepo.UpdateBalance(ctx, nil, id, balance, now); err != nil {
			return err
		}
	}

	return nil
}

// RebuildAll replays every active account of the restaurant and persists
// the cached current balance where it drifted. A second run without
// intervening postings reports no changes.
func (uc *BalanceUseCase) RebuildAll(ctx context.Context, principal domain.Principal, restaurantID string) (*domain.RebuildResult, error) {
	if err := requireBookkeeper(ctx, uc.authz, principal, restaurantID); err != nil {
		return nil, err
	}

	accounts, err := uc.accountRepo.List(ctx, restaurantID, false)
	if err != nil {
		return nil, err
	}

	totals, err := uc.ledgerRepo.SumLinesByAccount(ctx, restaurantID, domain.EndOfTime)
	if err != nil {
		return nil, err
	}

	result := &domain.RebuildResult{}
	ids := make([]string, 0, len(accounts))

	err = runInTx(ctx, uc.txManager, func(ctx context.Context, tx Transaction) error {
		now := time.Now().UTC()
		for _, account := range accounts {
			t := totals[account.ID]
			balance := account.SignedAmount(t.Debit, t.Credit)
			result.Recomputed++
			ids = append(ids, account.ID)

			if balance.Equal(account.Balance) {
				continue
			}
			if err := uc.accountRepo.UpdateBalance(ctx, tx, account.ID, balance, now); err != nil {
				return err
			}
			result.Changed++
		}

		audit := newAuditLog(ctx, uc.idGen.Generate(), principal, restaurantID,
			domain.AuditActionBalanceRebuild, "restaurant", restaurantID, nil, result)
		return uc.auditRepo.CreateTx(ctx, tx, audit)
	})
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if err := uc.cache.Invalidate(ctx, ids...); err != nil {
			log := logger.WithContext(ctx, uc.logger)
			log.Warn().Err(err).Str("restaurant_id", restaurantID).Msg("balance cache invalidation failed")
		}
	}

	if uc.metrics != nil {
		uc.metrics.BalancesRebuilt.Add(float64(result.Recomputed))
		uc.metrics.BalancesChanged.Add(float64(result.Changed))
	}

	return result, nil
}

// TrialBalance lists every account balance as of date.
func (uc *BalanceUseCase) TrialBalance(ctx context.Context, restaurantID string, date time.Time) (*domain.TrialBalance, error) {
	asOf := domain.DateOf(date)

	accounts, err := uc.accountRepo.List(ctx, restaurantID, true)
	if err != nil {
		return nil, err
	}

	totals, err := uc.ledgerRepo.SumLinesByAccount(ctx, restaurantID, asOf)
	if err != nil {
		return nil, err
	}

	tb := &domain.TrialBalance{RestaurantID: restaurantID, AsOf: asOf}
	for _, account := range accounts {
		t, ok := totals[account.ID]
		if !ok && !account.IsActive {
			continue
		}
		tb.Lines = append(tb.Lines, domain.TrialBalanceLine{
			AccountID:     account.ID,
			Code:          account.Code,
			Name:          account.Name,
			Type:          account.Type,
			NormalBalance: account.NormalBalance,
			Balance:       account.SignedAmount(t.Debit, t.Credit),
		})
	}

	return tb, nil
}
