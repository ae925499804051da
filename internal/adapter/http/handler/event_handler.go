package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/tableledger/internal/adapter/http/dto"
	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/usecase"
)

// EventService defines the categorization behavior needed by EventHandler.
type EventService interface {
	IngestEvent(ctx context.Context, principal domain.Principal, input usecase.IngestEventInput) (*domain.ExternalEvent, error)
	Categorize(ctx context.Context, principal domain.Principal, input usecase.CategorizeInput) (*domain.JournalEntry, error)
	Reclassify(ctx context.Context, principal domain.Principal, input usecase.ReclassifyInput) (*domain.Reclassification, error)
	Exclude(ctx context.Context, principal domain.Principal, eventID, reason string) (*domain.ExternalEvent, error)
	MarkReconciled(ctx context.Context, principal domain.Principal, eventID string) (*domain.ExternalEvent, error)
	Uncategorize(ctx context.Context, principal domain.Principal, eventID, reason string) (*domain.ExternalEvent, error)
	GetEvent(ctx context.Context, id string) (*domain.ExternalEvent, error)
	ListEvents(ctx context.Context, filter usecase.EventFilter) ([]*domain.ExternalEvent, error)
	ListReclassifications(ctx context.Context, eventID string) ([]*domain.Reclassification, error)
}

// EventHandler handles external event HTTP requests.
type EventHandler struct {
	eventUC EventService
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(eventUC EventService) *EventHandler {
	return &EventHandler{eventUC: eventUC}
}

// Ingest stores a new event in for_review.
func (h *EventHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req dto.IngestEventRequest
	if !decode(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	event, err := h.eventUC.IngestEvent(r.Context(), p, input)
	if err != nil {
		writeDomainError(w, "failed to ingest event", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EventFromDomain(event))
}

// Get retrieves an event.
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.eventUC.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get event", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EventFromDomain(event))
}

// List lists a restaurant's events, optionally by status.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := requireQuery(w, r, "restaurant_id")
	if !ok {
		return
	}

	filter := usecase.EventFilter{
		RestaurantID: restaurantID,
		Limit:        parseIntQuery(r, "limit", 50),
		Offset:       parseIntQuery(r, "offset", 0),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.EventStatus(s)
		filter.Status = &status
	}

	events, err := h.eventUC.ListEvents(r.Context(), filter)
	if err != nil {
		writeDomainError(w, "failed to list events", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EventsFromDomain(events))
}

// Categorize posts the event against a category account.
func (h *EventHandler) Categorize(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req dto.CategorizeRequest
	if !decode(w, r, &req) {
		return
	}

	entry, err := h.eventUC.Categorize(r.Context(), p, usecase.CategorizeInput{
		EventID:   chi.URLParam(r, "id"),
		AccountID: req.AccountID,
		Note:      req.Note,
	})
	if err != nil {
		writeDomainError(w, "failed to categorize event", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// Reclassify moves a categorized event to another account. Moving it to
// its current account answers 204.
func (h *EventHandler) Reclassify(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req dto.ReclassifyRequest
	if !decode(w, r, &req) {
		return
	}

	reclass, err := h.eventUC.Reclassify(r.Context(), p, usecase.ReclassifyInput{
		EventID:      chi.URLParam(r, "id"),
		NewAccountID: req.NewAccountID,
		Reason:       req.Reason,
	})
	if err != nil {
		writeDomainError(w, "failed to reclassify event", err)
		return
	}
	if reclass == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ReclassificationFromDomain(reclass))
}

// ListReclassifications lists an event's reclassification history.
func (h *EventHandler) ListReclassifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.eventUC.ListReclassifications(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to list reclassifications", err)
		return
	}

	resp := make([]*dto.ReclassificationResponse, len(list))
	for i, rc := range list {
		resp[i] = dto.ReclassificationFromDomain(rc)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Exclude marks a for_review event as excluded.
func (h *EventHandler) Exclude(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req dto.ReasonRequest
	if !decode(w, r, &req) {
		return
	}

	event, err := h.eventUC.Exclude(r.Context(), p, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeDomainError(w, "failed to exclude event", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EventFromDomain(event))
}

// Reconcile marks a categorized event as reconciled.
func (h *EventHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	event, err := h.eventUC.MarkReconciled(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to reconcile event", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EventFromDomain(event))
}

// Uncategorize reverses the event's postings and returns it to for_review.
func (h *EventHandler) Uncategorize(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req dto.ReasonRequest
	if !decode(w, r, &req) {
		return
	}

	event, err := h.eventUC.Uncategorize(r.Context(), p, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeDomainError(w, "failed to uncategorize event", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EventFromDomain(event))
}
