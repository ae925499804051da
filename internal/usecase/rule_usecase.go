package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/infrastructure/logger"
	"github.com/iho/tableledger/internal/infrastructure/metrics"
)

// RuleUseCase manages categorization rules and applies them in batches.
type RuleUseCase struct {
	authz          Authorizer
	accountRepo    AccountRepository
	ruleRepo       RuleRepository
	eventRepo      EventRepository
	outboxRepo     OutboxRepository
	auditRepo      AuditRepository
	categorization *CategorizationUseCase
	split          *SplitUseCase
	idGen          IDGenerator
	logger         zerolog.Logger
	metrics        *metrics.Metrics
}

// NewRuleUseCase creates a new RuleUseCase.
func NewRuleUseCase(
	authz Authorizer,
	accountRepo AccountRepository,
	ruleRepo RuleRepository,
	eventRepo EventRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	categorization *CategorizationUseCase,
	split *SplitUseCase,
	idGen IDGenerator,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) *RuleUseCase {
	return &RuleUseCase{
		authz:          authz,
		accountRepo:    accountRepo,
		ruleRepo:       ruleRepo,
		eventRepo:      eventRepo,
		outboxRepo:     outboxRepo,
		auditRepo:      auditRepo,
		categorization: categorization,
		split:          split,
		idGen:          idGen,
		logger:         logger,
		metrics:        metrics,
	}
}

// RuleInput is the editable definition of a rule.
type RuleInput struct {
	RestaurantID    string
	Name            string
	Pattern         string
	MatchType       domain.MatchType
	MatchField      domain.MatchField
	AmountMin       *decimal.Decimal
	AmountMax       *decimal.Decimal
	CounterpartyID  *string
	Direction       domain.Direction
	Source          domain.EventSource
	TargetAccountID *string
	SplitTargets    []domain.SplitTarget
	AutoApply       bool
	Priority        int
}

func (in RuleInput) apply(rule *domain.CategorizationRule) {
	rule.Name = in.Name
	rule.Pattern = in.Pattern
	rule.MatchType = in.MatchType
	rule.MatchField = in.MatchField
	rule.AmountMin = in.AmountMin
	rule.AmountMax = in.AmountMax
	rule.CounterpartyID = in.CounterpartyID
	rule.Direction = in.Direction
	rule.Source = in.Source
	rule.TargetAccountID = in.TargetAccountID
	rule.SplitTargets = in.SplitTargets
	rule.AutoApply = in.AutoApply
	rule.Priority = in.Priority

	if rule.MatchType == "" {
		rule.MatchType = domain.MatchContains
	}
	if rule.MatchField == "" {
		rule.MatchField = domain.FieldDescription
	}
	if rule.Direction == "" {
		rule.Direction = domain.DirectionAny
	}
}

// CreateRule validates and stores a new active rule.
func (uc *RuleUseCase) CreateRule(ctx context.Context, principal domain.Principal, input RuleInput) (*domain.CategorizationRule, error) {
	if err := requireBookkeeper(ctx, uc.authz, principal, input.RestaurantID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rule := &domain.CategorizationRule{
		ID:           uc.idGen.Generate(),
		RestaurantID: input.RestaurantID,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	input.apply(rule)

	if err := uc.validate(ctx, rule); err != nil {
		return nil, err
	}

	if err := uc.ruleRepo.Create(ctx, rule); err != nil {
		return nil, err
	}

	uc.audit(ctx, principal, rule, domain.AuditActionRuleCreate, nil)

	return rule, nil
}

// UpdateRule replaces the definition of a rule. Usage counters are kept.
func (uc *RuleUseCase) UpdateRule(ctx context.Context, principal domain.Principal, ruleID string, input RuleInput) (*domain.CategorizationRule, error) {
	rule, err := uc.ruleRepo.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if err := requireBookkeeper(ctx, uc.authz, principal, rule.RestaurantID); err != nil {
		return nil, err
	}

	before := *rule
	input.apply(rule)
	rule.UpdatedAt = time.Now().UTC()

	if err := uc.validate(ctx, rule); err != nil {
		return nil, err
	}

	if err := uc.ruleRepo.Update(ctx, rule); err != nil {
		return nil, err
	}

	uc.audit(ctx, principal, rule, domain.AuditActionRuleUpdate, before)

	return rule, nil
}

// DeactivateRule stops a rule from matching. Stored matches pointing at it
// are skipped by ApplyBatch.
func (uc *RuleUseCase) DeactivateRule(ctx context.Context, principal domain.Principal, ruleID string) (*domain.CategorizationRule, error) {
	rule, err := uc.ruleRepo.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if err := requireBookkeeper(ctx, uc.authz, principal, rule.RestaurantID); err != nil {
		return nil, err
	}
	if !rule.IsActive {
		return rule, nil
	}

	before := *rule
	rule.IsActive = false
	rule.UpdatedAt = time.Now().UTC()
	if err := uc.ruleRepo.Update(ctx, rule); err != nil {
		return nil, err
	}

	uc.audit(ctx, principal, rule, domain.AuditActionRuleDeactivate, before)

	return rule, nil
}

func (uc *RuleUseCase) validate(ctx context.Context, rule *domain.CategorizationRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	for _, id := range rule.AccountIDs() {
		account, err := uc.accountRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				return fmt.Errorf("%w: %s", domain.ErrUnknownAccount, id)
			}
			return err
		}
		if !account.UsableBy(rule.RestaurantID) {
			return fmt.Errorf("%w: %s", domain.ErrUnknownAccount, id)
		}
	}

	return nil
}

func (uc *RuleUseCase) audit(ctx context.Context, principal domain.Principal, rule *domain.CategorizationRule, action domain.AuditAction, before any) {
	audit := newAuditLog(ctx, uc.idGen.Generate(), principal, rule.RestaurantID,
		action, domain.AggregateTypeRule, rule.ID, before, rule)
	if err := uc.auditRepo.Create(ctx, audit); err != nil {
		log := logger.WithContext(ctx, uc.logger)
		log.Warn().Err(err).Str("rule_id", rule.ID).Msg("failed to write audit log")
	}
}

// GetRule retrieves a rule by ID.
func (uc *RuleUseCase) GetRule(ctx context.Context, id string) (*domain.CategorizationRule, error) {
	return uc.ruleRepo.GetByID(ctx, id)
}

// ListRules lists a restaurant's rules in evaluation order.
func (uc *RuleUseCase) ListRules(ctx context.Context, restaurantID string, includeInactive bool) ([]*domain.CategorizationRule, error) {
	rules, err := uc.ruleRepo.List(ctx, restaurantID, includeInactive)
	if err != nil {
		return nil, err
	}
	domain.SortRules(rules)
	return rules, nil
}

// FindMatch returns the first active rule matching event, or nil.
func (uc *RuleUseCase) FindMatch(ctx context.Context, restaurantID string, event *domain.ExternalEvent) (*domain.CategorizationRule, error) {
	rules, err := uc.ruleRepo.List(ctx, restaurantID, false)
	if err != nil {
		return nil, err
	}
	return domain.FirstMatch(rules, event), nil
}

// EvaluatePending matches up to limit unevaluated for_review events against
// the active rules and stores the result on each event, match or not, so
// later batches never recompute it.
func (uc *RuleUseCase) EvaluatePending(ctx context.Context, principal domain.Principal, restaurantID string, limit int) (evaluated, matched int, err error) {
	if err := requireBookkeeper(ctx, uc.authz, principal, restaurantID); err != nil {
		return 0, 0, err
	}
	if limit <= 0 {
		limit = DefaultRuleBatchLimit
	}

	rules, err := uc.ruleRepo.List(ctx, restaurantID, false)
	if err != nil {
		return 0, 0, err
	}
	domain.SortRules(rules)

	events, err := uc.eventRepo.ListUnevaluated(ctx, restaurantID, limit)
	if err != nil {
		return 0, 0, err
	}

	counts := make(map[string]int)
	now := time.Now().UTC()
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return evaluated, matched, err
		}

		var ruleID *string
		if rule := domain.FirstMatch(rules, ev); rule != nil {
			ruleID = &rule.ID
			counts[rule.ID]++
			matched++
		}
		if err := uc.eventRepo.SetRuleMatch(ctx, ev.ID, ruleID, now); err != nil {
			return evaluated, matched, err
		}
		evaluated++
	}

	for id, n := range counts {
		if err := uc.ruleRepo.IncrementMatchCount(ctx, id, n); err != nil {
			return evaluated, matched, err
		}
	}

	if uc.metrics != nil {
		uc.metrics.RuleMatches.Add(float64(matched))
	}

	return evaluated, matched, nil
}

// BatchResult summarizes one ApplyBatch call. Callers re-invoke until
// Total is below the batch limit.
type BatchResult struct {
	Applied int
	// Skipped counts events someone else categorized the same way while
	// the batch ran.
	Skipped int
	Failed  int
	Total   int
}

// ApplyBatch applies stored auto-apply matches to at most batchLimit
// for_review events. Per-event failures are logged, signalled and counted;
// the failed event's match is cleared so it is not retried forever.
func (uc *RuleUseCase) ApplyBatch(ctx context.Context, principal domain.Principal, restaurantID string, batchLimit int) (*BatchResult, error) {
	start := time.Now()

	if err := requireBookkeeper(ctx, uc.authz, principal, restaurantID); err != nil {
		return nil, err
	}
	if batchLimit <= 0 {
		batchLimit = DefaultRuleBatchLimit
	}

	rules, err := uc.ruleRepo.List(ctx, restaurantID, false)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.CategorizationRule, len(rules))
	ids := make([]string, 0, len(rules))
	for _, r := range rules {
		if r.IsActive && r.AutoApply {
			byID[r.ID] = r
			ids = append(ids, r.ID)
		}
	}

	result := &BatchResult{}
	if len(ids) == 0 {
		return result, nil
	}

	events, err := uc.eventRepo.ListMatched(ctx, restaurantID, ids, batchLimit)
	if err != nil {
		return nil, err
	}
	result.Total = len(events)

	log := logger.WithContext(ctx, uc.logger)

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var rule *domain.CategorizationRule
		if ev.MatchedRuleID != nil {
			rule = byID[*ev.MatchedRuleID]
		}

		// The rule may have been edited since the match was stored.
		if rule == nil || !rule.Matches(ev) {
			if err := uc.eventRepo.SetRuleMatch(ctx, ev.ID, nil, time.Now().UTC()); err != nil {
				return result, err
			}
			continue
		}

		created, err := uc.applyRule(ctx, principal, rule, ev)
		if err != nil {
			result.Failed++
			uc.recordFailure(ctx, log, rule, ev, err)
			continue
		}
		if !created {
			result.Skipped++
			continue
		}

		result.Applied++
		if err := uc.ruleRepo.IncrementApplyCount(ctx, rule.ID, time.Now().UTC()); err != nil {
			log.Warn().Err(err).Str("rule_id", rule.ID).Msg("failed to increment rule usage")
		}
	}

	if uc.metrics != nil {
		uc.metrics.RuleBatches.Inc()
		uc.metrics.RuleBatchApplied.Add(float64(result.Applied))
		uc.metrics.RuleBatchFailed.Add(float64(result.Failed))
		uc.metrics.RuleBatchDuration.Observe(time.Since(start).Seconds())
	}

	log.Info().
		Str("restaurant_id", restaurantID).
		Int("applied", result.Applied).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Int("total", result.Total).
		Msg("rule batch applied")

	return result, nil
}

// applyRule reports whether the rule posted a new entry for ev.
func (uc *RuleUseCase) applyRule(ctx context.Context, principal domain.Principal, rule *domain.CategorizationRule, ev *domain.ExternalEvent) (bool, error) {
	if rule.IsSplitRule() {
		_, created, err := uc.split.split(ctx, principal, SplitInput{
			EventID:     ev.ID,
			Allocations: rule.Allocate(ev.Amount),
		})
		return created, err
	}

	_, created, err := uc.categorization.categorize(ctx, principal, CategorizeInput{
		EventID:   ev.ID,
		AccountID: *rule.TargetAccountID,
		Note:      "rule: " + rule.Name,
	}, OriginRule)
	return created, err
}

func (uc *RuleUseCase) recordFailure(ctx context.Context, log zerolog.Logger, rule *domain.CategorizationRule, ev *domain.ExternalEvent, cause error) {
	log.Error().Err(cause).
		Str("restaurant_id", ev.RestaurantID).
		Str("event_id", ev.ID).
		Str("rule_id", rule.ID).
		Str("error_kind", string(domain.ErrorKind(cause))).
		Msg("rule application failed")

	if err := uc.eventRepo.SetRuleMatch(ctx, ev.ID, nil, time.Now().UTC()); err != nil {
		log.Warn().Err(err).Str("event_id", ev.ID).Msg("failed to clear rule match")
	}

	signal := newOutboxEvent(uc.idGen.Generate(), ev.RestaurantID, domain.AggregateTypeRule, rule.ID,
		domain.EventTypeRuleBatchFailure, domain.RuleBatchFailureEvent{
			EventID:   ev.ID,
			RuleID:    rule.ID,
			ErrorKind: string(domain.ErrorKind(cause)),
			Message:   cause.Error(),
		})
	if err := uc.outboxRepo.Create(ctx, nil, signal); err != nil {
		log.Warn().Err(err).Str("event_id", ev.ID).Msg("failed to emit rule failure signal")
	}
}
