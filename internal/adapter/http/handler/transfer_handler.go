package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/tableledger/internal/adapter/http/dto"
	"github.com/iho/tableledger/internal/domain"
)

// TransferService defines the behavior needed by TransferHandler.
type TransferService interface {
	MarkAsTransfer(ctx context.Context, principal domain.Principal, eventAID, eventBID string) (*domain.JournalEntry, error)
	FindTransferCandidates(ctx context.Context, eventID string) ([]*domain.ExternalEvent, error)
}

// TransferHandler handles transfer pairing requests.
type TransferHandler struct {
	transferUC TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferUC TransferService) *TransferHandler {
	return &TransferHandler{transferUC: transferUC}
}

// Create links two offsetting events as an internal transfer.
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req dto.TransferRequest
	if !decode(w, r, &req) {
		return
	}
	if req.EventAID == "" || req.EventBID == "" {
		writeError(w, http.StatusBadRequest, "invalid request body", "event_a_id and event_b_id are required")
		return
	}

	entry, err := h.transferUC.MarkAsTransfer(r.Context(), p, req.EventAID, req.EventBID)
	if err != nil {
		writeDomainError(w, "failed to mark transfer", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// Candidates lists events that could pair with the given one.
func (h *TransferHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	events, err := h.transferUC.FindTransferCandidates(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to find transfer candidates", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EventsFromDomain(events))
}
