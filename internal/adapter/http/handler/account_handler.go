package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/tableledger/internal/adapter/http/dto"
	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/usecase"
)

// AccountService defines the behavior needed by AccountHandler.
type AccountService interface {
	CreateAccount(ctx context.Context, principal domain.Principal, input usecase.CreateAccountInput) (*domain.Account, error)
	SeedChartOfAccounts(ctx context.Context, principal domain.Principal, restaurantID string, chart *domain.ChartTemplate) ([]*domain.Account, error)
	ActivateAccount(ctx context.Context, principal domain.Principal, accountID string) (*domain.Account, error)
	DeactivateAccount(ctx context.Context, principal domain.Principal, accountID string) (*domain.Account, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListAccounts(ctx context.Context, restaurantID string, includeInactive bool) ([]*domain.Account, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	accountUC AccountService
	chart     *domain.ChartTemplate
}

// NewAccountHandler creates a new AccountHandler. chart is the template
// used by Seed.
func NewAccountHandler(accountUC AccountService, chart *domain.ChartTemplate) *AccountHandler {
	return &AccountHandler{accountUC: accountUC, chart: chart}
}

// Create creates a new account.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req dto.CreateAccountRequest
	if !decode(w, r, &req) {
		return
	}

	account, err := h.accountUC.CreateAccount(r.Context(), p, req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, "failed to create account", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.AccountFromDomain(account))
}

// Seed creates the chart of accounts for a restaurant. Existing codes are
// left alone.
func (h *AccountHandler) Seed(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req dto.SeedChartRequest
	if !decode(w, r, &req) {
		return
	}

	accounts, err := h.accountUC.SeedChartOfAccounts(r.Context(), p, req.RestaurantID, h.chart)
	if err != nil {
		writeDomainError(w, "failed to seed chart of accounts", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ListAccountsResponse{
		Accounts: dto.AccountsFromDomain(accounts),
		Total:    int64(len(accounts)),
	})
}

// Get retrieves an account by ID.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	account, err := h.accountUC.GetAccount(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to get account", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// List lists a restaurant's accounts by code.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := requireQuery(w, r, "restaurant_id")
	if !ok {
		return
	}
	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	accounts, err := h.accountUC.ListAccounts(r.Context(), restaurantID, includeInactive)
	if err != nil {
		writeDomainError(w, "failed to list accounts", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListAccountsResponse{
		Accounts: dto.AccountsFromDomain(accounts),
		Total:    int64(len(accounts)),
	})
}

// Activate re-enables an account for posting.
func (h *AccountHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, h.accountUC.ActivateAccount)
}

// Deactivate stops new postings to an account.
func (h *AccountHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, h.accountUC.DeactivateAccount)
}

func (h *AccountHandler) setActive(
	w http.ResponseWriter,
	r *http.Request,
	fn func(context.Context, domain.Principal, string) (*domain.Account, error),
) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	account, err := fn(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to update account", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}
