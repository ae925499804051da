package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/iho/tableledger/internal/usecase"
)

// ConsistencyChecker verifies a restaurant's debits equal its credits.
type ConsistencyChecker interface {
	CheckConsistency(ctx context.Context, restaurantID string) error
}

// LedgerHandler handles ledger-wide operations.
type LedgerHandler struct {
	ledgerUC ConsistencyChecker
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerUC ConsistencyChecker) *LedgerHandler {
	return &LedgerHandler{ledgerUC: ledgerUC}
}

// CheckConsistency checks if the restaurant's ledger is balanced.
func (h *LedgerHandler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := requireQuery(w, r, "restaurant_id")
	if !ok {
		return
	}

	if err := h.ledgerUC.CheckConsistency(r.Context(), restaurantID); err != nil {
		if errors.Is(err, usecase.ErrInconsistentLedger) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"status":     "inconsistent",
				"consistent": false,
				"message":    err.Error(),
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to check consistency", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "consistent",
		"consistent": true,
	})
}
