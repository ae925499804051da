package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/infrastructure/metrics"
)

// AccountUseCase handles the chart of accounts.
type AccountUseCase struct {
	txManager   TransactionManager
	authz       Authorizer
	accountRepo AccountRepository
	outboxRepo  OutboxRepository
	auditRepo   AuditRepository
	idGen       IDGenerator
	logger      zerolog.Logger
	metrics     *metrics.Metrics
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(
	txManager TransactionManager,
	authz Authorizer,
	accountRepo AccountRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) *AccountUseCase {
	return &AccountUseCase{
		txManager:   txManager,
		authz:       authz,
		accountRepo: accountRepo,
		outboxRepo:  outboxRepo,
		auditRepo:   auditRepo,
		idGen:       idGen,
		logger:      logger,
		metrics:     metrics,
	}
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	RestaurantID  string
	Code          string
	Name          string
	Type          domain.AccountType
	Subtype       string
	ParentID      *string
	NormalBalance domain.NormalBalance // defaults from Type when empty
}

// CreateAccount creates a new account. Codes are unique per restaurant.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, principal domain.Principal, input CreateAccountInput) (*domain.Account, error) {
	if err := requireBookkeeper(ctx, uc.authz, principal, input.RestaurantID); err != nil {
		return nil, err
	}

	var account *domain.Account
	err := runInTx(ctx, uc.txManager, func(ctx context.Context, tx Transaction) error {
		var err error
		account, err = uc.createInTx(ctx, tx, principal, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

func (uc *AccountUseCase) createInTx(ctx context.Context, tx Transaction, principal domain.Principal, input CreateAccountInput) (*domain.Account, error) {
	now := time.Now().UTC()

	normal := input.NormalBalance
	if normal == "" {
		normal = domain.DefaultNormalBalance(input.Type)
	}

	account := &domain.Account{
		ID:            uc.idGen.Generate(),
		RestaurantID:  input.RestaurantID,
		Code:          input.Code,
		Name:          input.Name,
		Type:          input.Type,
		Subtype:       input.Subtype,
		ParentID:      input.ParentID,
		NormalBalance: normal,
		Balance:       decimal.Zero,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := account.Validate(); err != nil {
		return nil, err
	}

	_, err := uc.accountRepo.GetByCode(ctx, input.RestaurantID, input.Code)
	if err == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateCode, input.Code)
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	if input.ParentID != nil {
		parent, err := uc.accountRepo.GetByID(ctx, *input.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.RestaurantID != input.RestaurantID {
			return nil, domain.ErrCrossRestaurant
		}
	}

	if err := uc.accountRepo.Create(ctx, tx, account); err != nil {
		return nil, err
	}

	event := newOutboxEvent(uc.idGen.Generate(), account.RestaurantID, domain.AggregateTypeAccount, account.ID,
		domain.EventTypeAccountCreated, map[string]any{
			"code": account.Code,
			"name": account.Name,
			"type": string(account.Type),
		})
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	audit := newAuditLog(ctx, uc.idGen.Generate(), principal, account.RestaurantID,
		domain.AuditActionAccountCreate, domain.AggregateTypeAccount, account.ID, nil, account)
	if err := uc.auditRepo.CreateTx(ctx, tx, audit); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.AccountsCreated.Inc()
	}

	return account, nil
}

// SeedChartOfAccounts creates the accounts of chart that the restaurant does
// not have yet, matched by code. It returns only the accounts it created.
func (uc *AccountUseCase) SeedChartOfAccounts(ctx context.Context, principal domain.Principal, restaurantID string, chart *domain.ChartTemplate) ([]*domain.Account, error) {
	if err := requireBookkeeper(ctx, uc.authz, principal, restaurantID); err != nil {
		return nil, err
	}

	if chart == nil {
		var err error
		if chart, err = domain.DefaultChart(); err != nil {
			return nil, err
		}
	}

	existing, err := uc.accountRepo.List(ctx, restaurantID, true)
	if err != nil {
		return nil, err
	}

	idByCode := make(map[string]string, len(existing))
	for _, a := range existing {
		idByCode[a.Code] = a.ID
	}

	var created []*domain.Account
	err = runInTx(ctx, uc.txManager, func(ctx context.Context, tx Transaction) error {
		created = created[:0]
		for _, ca := range chart.Accounts {
			if _, ok := idByCode[ca.Code]; ok {
				continue
			}

			input := CreateAccountInput{
				RestaurantID:  restaurantID,
				Code:          ca.Code,
				Name:          ca.Name,
				Type:          ca.Type,
				Subtype:       ca.Subtype,
				NormalBalance: ca.NormalBalance,
			}
			if ca.ParentCode != "" {
				parentID := idByCode[ca.ParentCode]
				input.ParentID = &parentID
			}

			account, err := uc.createInTx(ctx, tx, principal, input)
			if err != nil {
				return fmt.Errorf("seeding %s: %w", ca.Code, err)
			}
			idByCode[account.Code] = account.ID
			created = append(created, account)
		}

		audit := newAuditLog(ctx, uc.idGen.Generate(), principal, restaurantID,
			domain.AuditActionChartSeed, "restaurant", restaurantID, nil, map[string]int{"created": len(created)})
		return uc.auditRepo.CreateTx(ctx, tx, audit)
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info().
		Str("restaurant_id", restaurantID).
		Int("created", len(created)).
		Msg("chart of accounts seeded")

	return created, nil
}

// DeactivateAccount soft-deactivates an account. Existing lines are kept.
func (uc *AccountUseCase) DeactivateAccount(ctx context.Context, principal domain.Principal, accountID string) (*domain.Account, error) {
	return uc.setActive(ctx, principal, accountID, false)
}

// ActivateAccount re-enables a deactivated account.
func (uc *AccountUseCase) ActivateAccount(ctx context.Context, principal domain.Principal, accountID string) (*domain.Account, error) {
	return uc.setActive(ctx, principal, accountID, true)
}

func (uc *AccountUseCase) setActive(ctx context.Context, principal domain.Principal, accountID string, active bool) (*domain.Account, error) {
	account, err := uc.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := requireBookkeeper(ctx, uc.authz, principal, account.RestaurantID); err != nil {
		return nil, err
	}

	if account.IsActive == active {
		return account, nil
	}

	before := *account
	account.IsActive = active
	account.UpdatedAt = time.Now().UTC()

	if err := uc.accountRepo.SetActive(ctx, account.ID, active, account.UpdatedAt); err != nil {
		return nil, err
	}

	action := domain.AuditActionAccountDeactivate
	if active {
		action = domain.AuditActionAccountActivate
	}
	audit := newAuditLog(ctx, uc.idGen.Generate(), principal, account.RestaurantID,
		action, domain.AggregateTypeAccount, account.ID, before, account)
	if err := uc.auditRepo.Create(ctx, audit); err != nil {
		uc.logger.Warn().Err(err).Str("account_id", account.ID).Msg("failed to write audit log")
	}

	return account, nil
}

// GetAccount retrieves an account by ID.
func (uc *AccountUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.accountRepo.GetByID(ctx, id)
}

// GetAccountByCode retrieves an account by its restaurant-scoped code.
func (uc *AccountUseCase) GetAccountByCode(ctx context.Context, restaurantID, code string) (*domain.Account, error) {
	return uc.accountRepo.GetByCode(ctx, restaurantID, code)
}

// ListAccounts lists a restaurant's chart ordered by code.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, restaurantID string, includeInactive bool) ([]*domain.Account, error) {
	return uc.accountRepo.List(ctx, restaurantID, includeInactive)
}
