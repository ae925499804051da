package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/tableledger/internal/adapter/http/dto"
	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/usecase"
)

// RuleService defines the behavior needed by RuleHandler.
type RuleService interface {
	CreateRule(ctx context.Context, principal domain.Principal, input usecase.RuleInput) (*domain.CategorizationRule, error)
	UpdateRule(ctx context.Context, principal domain.Principal, ruleID string, input usecase.RuleInput) (*domain.CategorizationRule, error)
	DeactivateRule(ctx context.Context, principal domain.Principal, ruleID string) (*domain.CategorizationRule, error)
	GetRule(ctx context.Context, id string) (*domain.CategorizationRule, error)
	ListRules(ctx context.Context, restaurantID string, includeInactive bool) ([]*domain.CategorizationRule, error)
	EvaluatePending(ctx context.Context, principal domain.Principal, restaurantID string, limit int) (evaluated, matched int, err error)
	ApplyBatch(ctx context.Context, principal domain.Principal, restaurantID string, batchLimit int) (*usecase.BatchResult, error)
}

// RuleHandler handles categorization rule requests.
type RuleHandler struct {
	ruleUC     RuleService
	batchLimit int
}

// NewRuleHandler creates a new RuleHandler. batchLimit bounds batches whose
// request does not name a limit.
func NewRuleHandler(ruleUC RuleService, batchLimit int) *RuleHandler {
	return &RuleHandler{ruleUC: ruleUC, batchLimit: batchLimit}
}

// Create creates a rule.
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req dto.RuleRequest
	if !decode(w, r, &req) {
		return
	}

	rule, err := h.ruleUC.CreateRule(r.Context(), p, req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, "failed to create rule", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.RuleFromDomain(rule))
}

// Update replaces a rule's matching criteria and targets.
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req dto.RuleRequest
	if !decode(w, r, &req) {
		return
	}

	rule, err := h.ruleUC.UpdateRule(r.Context(), p, chi.URLParam(r, "id"), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, "failed to update rule", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RuleFromDomain(rule))
}

// Deactivate disables a rule.
func (h *RuleHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	rule, err := h.ruleUC.DeactivateRule(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to deactivate rule", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RuleFromDomain(rule))
}

// Get retrieves a rule.
func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	rule, err := h.ruleUC.GetRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get rule", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RuleFromDomain(rule))
}

// List lists a restaurant's rules in evaluation order.
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := requireQuery(w, r, "restaurant_id")
	if !ok {
		return
	}

	rules, err := h.ruleUC.ListRules(r.Context(), restaurantID, r.URL.Query().Get("include_inactive") == "true")
	if err != nil {
		writeDomainError(w, "failed to list rules", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RulesFromDomain(rules))
}

// Evaluate records the best matching rule on unevaluated events.
func (h *RuleHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req dto.RuleBatchRequest
	if !decode(w, r, &req) {
		return
	}

	evaluated, matched, err := h.ruleUC.EvaluatePending(r.Context(), p, req.RestaurantID, h.limit(req.Limit))
	if err != nil {
		writeDomainError(w, "failed to evaluate rules", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EvaluateResponse{Evaluated: evaluated, Matched: matched})
}

// Apply runs one auto-apply batch. Partial failures still answer 200 with
// the failed count.
func (h *RuleHandler) Apply(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req dto.RuleBatchRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.ruleUC.ApplyBatch(r.Context(), p, req.RestaurantID, h.limit(req.Limit))
	if err != nil {
		writeDomainError(w, "failed to apply rules", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BatchResultFromUseCase(result))
}

func (h *RuleHandler) limit(requested int) int {
	if requested > 0 {
		return requested
	}
	return h.batchLimit
}
