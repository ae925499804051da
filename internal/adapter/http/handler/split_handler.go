package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/tableledger/internal/adapter/http/dto"
	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/usecase"
)

// SplitService defines the behavior needed by SplitHandler.
type SplitService interface {
	Split(ctx context.Context, principal domain.Principal, input usecase.SplitInput) (*domain.JournalEntry, error)
	ListSplits(ctx context.Context, eventID string) ([]*domain.EventSplit, error)
}

// SplitHandler handles split allocation requests.
type SplitHandler struct {
	splitUC SplitService
}

// NewSplitHandler creates a new SplitHandler.
func NewSplitHandler(splitUC SplitService) *SplitHandler {
	return &SplitHandler{splitUC: splitUC}
}

// Split spreads an event over several category accounts.
func (h *SplitHandler) Split(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req dto.SplitRequest
	if !decode(w, r, &req) {
		return
	}

	entry, err := h.splitUC.Split(r.Context(), p, req.ToUseCaseInput(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "failed to split event", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// List returns the stored allocations of a split event.
func (h *SplitHandler) List(w http.ResponseWriter, r *http.Request) {
	splits, err := h.splitUC.ListSplits(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to list splits", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SplitsFromDomain(splits))
}
