package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/tableledger/internal/adapter/http/dto"
	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/usecase"
)

// BoundaryService defines the behavior needed by BoundaryHandler.
type BoundaryService interface {
	SetBoundary(ctx context.Context, principal domain.Principal, input usecase.SetBoundaryInput) (*domain.ReconciliationBoundary, error)
	GetBoundary(ctx context.Context, restaurantID string) (*domain.ReconciliationBoundary, error)
	CheckBoundary(ctx context.Context, restaurantID string) (*domain.ViolationReport, error)
	ApplyAdjustment(ctx context.Context, principal domain.Principal, restaurantID string) (*domain.ViolationReport, error)
	GenerateReconciliationReport(ctx context.Context, restaurantID string) (*usecase.ReconciliationReport, error)
}

// BoundaryHandler handles reconciliation boundary requests.
type BoundaryHandler struct {
	reconUC BoundaryService
}

// NewBoundaryHandler creates a new BoundaryHandler.
func NewBoundaryHandler(reconUC BoundaryService) *BoundaryHandler {
	return &BoundaryHandler{reconUC: reconUC}
}

// Set stores the boundary and posts the opening balance.
func (h *BoundaryHandler) Set(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req dto.SetBoundaryRequest
	if !decode(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "restaurantID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	boundary, err := h.reconUC.SetBoundary(r.Context(), p, input)
	if err != nil {
		writeDomainError(w, "failed to set boundary", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BoundaryFromDomain(boundary))
}

// Get returns the restaurant's boundary.
func (h *BoundaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	boundary, err := h.reconUC.GetBoundary(r.Context(), chi.URLParam(r, "restaurantID"))
	if err != nil {
		writeDomainError(w, "failed to get boundary", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BoundaryFromDomain(boundary))
}

// Check reports events posted before the boundary without changing anything.
func (h *BoundaryHandler) Check(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconUC.CheckBoundary(r.Context(), chi.URLParam(r, "restaurantID"))
	if err != nil {
		writeDomainError(w, "failed to check boundary", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ViolationFromDomain(report))
}

// Adjust moves the boundary back over pre-boundary activity. The adjustment
// is committed even when the follow-up rebuild fails.
func (h *BoundaryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	report, err := h.reconUC.ApplyAdjustment(r.Context(), p, chi.URLParam(r, "restaurantID"))
	if err != nil && report == nil {
		writeDomainError(w, "failed to apply adjustment", err)
		return
	}

	resp := dto.AdjustmentResponse{ViolationResponse: dto.ViolationFromDomain(report)}
	if err != nil {
		resp.RebuildError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Report returns the restaurant's reconciliation report.
func (h *BoundaryHandler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconUC.GenerateReconciliationReport(r.Context(), chi.URLParam(r, "restaurantID"))
	if err != nil {
		writeDomainError(w, "failed to generate reconciliation report", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationReportFromUseCase(report))
}
