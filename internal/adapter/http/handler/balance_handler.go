package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/tableledger/internal/adapter/http/dto"
	"github.com/iho/tableledger/internal/domain"
)

// BalanceService defines the behavior needed by BalanceHandler.
type BalanceService interface {
	BalanceAsOf(ctx context.Context, accountID string, date time.Time) (decimal.Decimal, error)
	TrialBalance(ctx context.Context, restaurantID string, date time.Time) (*domain.TrialBalance, error)
	RebuildAll(ctx context.Context, principal domain.Principal, restaurantID string) (*domain.RebuildResult, error)
}

// BalanceHandler handles balance queries.
type BalanceHandler struct {
	balanceUC BalanceService
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(balanceUC BalanceService) *BalanceHandler {
	return &BalanceHandler{balanceUC: balanceUC}
}

// AccountBalance returns an account's balance as of ?as_of (default today).
func (h *BalanceHandler) AccountBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDateQuery(r, "as_of")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of", err.Error())
		return
	}

	accountID := chi.URLParam(r, "id")
	balance, err := h.balanceUC.BalanceAsOf(r.Context(), accountID, asOf)
	if err != nil {
		writeDomainError(w, "failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceResponse{
		AccountID: accountID,
		AsOf:      asOf.Format(dto.DateLayout),
		Balance:   balance,
	})
}

// TrialBalance returns every account's balance as of ?as_of.
func (h *BalanceHandler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDateQuery(r, "as_of")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of", err.Error())
		return
	}

	tb, err := h.balanceUC.TrialBalance(r.Context(), chi.URLParam(r, "restaurantID"), asOf)
	if err != nil {
		writeDomainError(w, "failed to build trial balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TrialBalanceFromDomain(tb))
}

// Rebuild recomputes cached balances from journal lines.
func (h *BalanceHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	result, err := h.balanceUC.RebuildAll(r.Context(), p, chi.URLParam(r, "restaurantID"))
	if err != nil {
		writeDomainError(w, "failed to rebuild balances", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RebuildResponse{Recomputed: result.Recomputed, Changed: result.Changed})
}
