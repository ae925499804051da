package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iho/tableledger/internal/adapter/http/dto"
	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/usecase"
)

type ruleServiceStub struct {
	createFn   func(ctx context.Context, input usecase.RuleInput) (*domain.CategorizationRule, error)
	updateFn   func(ctx context.Context, ruleID string, input usecase.RuleInput) (*domain.CategorizationRule, error)
	evaluateFn func(ctx context.Context, restaurantID string, limit int) (int, int, error)
	applyFn    func(ctx context.Context, restaurantID string, limit int) (*usecase.BatchResult, error)
}

func (s *ruleServiceStub) CreateRule(ctx context.Context, _ domain.Principal, input usecase.RuleInput) (*domain.CategorizationRule, error) {
	return s.createFn(ctx, input)
}

func (s *ruleServiceStub) UpdateRule(ctx context.Context, _ domain.Principal, ruleID string, input usecase.RuleInput) (*domain.CategorizationRule, error) {
	return s.updateFn(ctx, ruleID, input)
}

func (s *ruleServiceStub) DeactivateRule(ctx context.Context, _ domain.Principal, ruleID string) (*domain.CategorizationRule, error) {
	return &domain.CategorizationRule{ID: ruleID}, nil
}

func (s *ruleServiceStub) GetRule(ctx context.Context, id string) (*domain.CategorizationRule, error) {
	return nil, domain.ErrRuleNotFound
}

func (s *ruleServiceStub) ListRules(ctx context.Context, restaurantID string, includeInactive bool) ([]*domain.CategorizationRule, error) {
	return []*domain.CategorizationRule{}, nil
}

func (s *ruleServiceStub) EvaluatePending(ctx context.Context, _ domain.Principal, restaurantID string, limit int) (int, int, error) {
	return s.evaluateFn(ctx, restaurantID, limit)
}

func (s *ruleServiceStub) ApplyBatch(ctx context.Context, _ domain.Principal, restaurantID string, batchLimit int) (*usecase.BatchResult, error) {
	return s.applyFn(ctx, restaurantID, batchLimit)
}

func TestRuleHandler_Create_InvalidRule(t *testing.T) {
	handler := NewRuleHandler(&ruleServiceStub{
		createFn: func(ctx context.Context, input usecase.RuleInput) (*domain.CategorizationRule, error) {
			return nil, domain.ErrInvalidRule
		},
	}, 100)

	req := httptest.NewRequest(http.MethodPost, "/rules", bytes.NewBufferString(`{"restaurant_id":"r","pattern":"(","match_type":"regex"}`))
	rec := httptest.NewRecorder()

	handler.Create(rec, withPrincipal(req))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestRuleHandler_Update(t *testing.T) {
	var gotID string
	var gotInput usecase.RuleInput
	handler := NewRuleHandler(&ruleServiceStub{
		updateFn: func(ctx context.Context, ruleID string, input usecase.RuleInput) (*domain.CategorizationRule, error) {
			gotID, gotInput = ruleID, input
			return &domain.CategorizationRule{ID: ruleID, Priority: input.Priority}, nil
		},
	}, 100)

	req := httptest.NewRequest(http.MethodPut, "/rules/rule-1", bytes.NewBufferString(`{"restaurant_id":"r","name":"Sysco","pattern":"SYSCO","match_type":"contains","match_field":"description","target_account_id":"food","priority":7}`))
	req = withPrincipal(setChiURLParam(req, "id", "rule-1"))
	rec := httptest.NewRecorder()

	handler.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotID != "rule-1" || gotInput.Priority != 7 || gotInput.TargetAccountID == nil {
		t.Fatalf("unexpected update: %s %+v", gotID, gotInput)
	}
}

func TestRuleHandler_Get_NotFound(t *testing.T) {
	handler := NewRuleHandler(&ruleServiceStub{}, 100)

	req := setChiURLParam(httptest.NewRequest(http.MethodGet, "/rules/nope", nil), "id", "nope")
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRuleHandler_ApplyUsesDefaultLimit(t *testing.T) {
	var gotLimit int
	handler := NewRuleHandler(&ruleServiceStub{
		applyFn: func(ctx context.Context, restaurantID string, limit int) (*usecase.BatchResult, error) {
			gotLimit = limit
			return &usecase.BatchResult{Applied: 3, Failed: 1, Total: 4}, nil
		},
	}, 100)

	req := httptest.NewRequest(http.MethodPost, "/rules/apply", bytes.NewBufferString(`{"restaurant_id":"rest-1"}`))
	rec := httptest.NewRecorder()

	handler.Apply(rec, withPrincipal(req))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotLimit != 100 {
		t.Fatalf("expected default limit 100, got %d", gotLimit)
	}

	var resp dto.BatchResultResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Applied != 3 || resp.Failed != 1 || resp.Total != 4 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRuleHandler_EvaluateHonoursRequestLimit(t *testing.T) {
	var gotLimit int
	handler := NewRuleHandler(&ruleServiceStub{
		evaluateFn: func(ctx context.Context, restaurantID string, limit int) (int, int, error) {
			gotLimit = limit
			return 5, 2, nil
		},
	}, 100)

	req := httptest.NewRequest(http.MethodPost, "/rules/evaluate", bytes.NewBufferString(`{"restaurant_id":"rest-1","limit":5}`))
	rec := httptest.NewRecorder()

	handler.Evaluate(rec, withPrincipal(req))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotLimit != 5 {
		t.Fatalf("expected limit 5, got %d", gotLimit)
	}

	var resp dto.EvaluateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Evaluated != 5 || resp.Matched != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
