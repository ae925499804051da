package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/infrastructure/postgres/generated"
)

const ruleColumns = `id, restaurant_id, name, pattern, match_type, match_field, amount_min, amount_max,
	counterparty_id, direction, source, target_account_id, split_targets, auto_apply, priority, is_active,
	match_count, apply_count, last_applied_at, created_at, updated_at`

// splitTargetRow is the JSONB shape of a split target.
type splitTargetRow struct {
	AccountID   string          `json:"account_id"`
	Percentage  decimal.Decimal `json:"percentage"`
	Description string          `json:"description,omitempty"`
}

// RuleRepository implements usecase.RuleRepository.
type RuleRepository struct {
	db generated.DBTX
}

// NewRuleRepository creates a new RuleRepository.
func NewRuleRepository(db generated.DBTX) *RuleRepository {
	return &RuleRepository{db: db}
}

// Create inserts a new rule.
func (r *RuleRepository) Create(ctx context.Context, rule *domain.CategorizationRule) error {
	targets, err := marshalSplitTargets(rule.SplitTargets)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO categorization_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	_, err = r.db.Exec(ctx, query,
		rule.ID,
		rule.RestaurantID,
		rule.Name,
		rule.Pattern,
		string(rule.MatchType),
		string(rule.MatchField),
		decimalPtrToNumeric(rule.AmountMin),
		decimalPtrToNumeric(rule.AmountMax),
		stringPtrToText(rule.CounterpartyID),
		string(rule.Direction),
		string(rule.Source),
		stringPtrToText(rule.TargetAccountID),
		targets,
		rule.AutoApply,
		rule.Priority,
		rule.IsActive,
		rule.MatchCount,
		rule.ApplyCount,
		timePtrToPgTimestamptz(rule.LastAppliedAt),
		timeToPgTimestamptz(rule.CreatedAt),
		timeToPgTimestamptz(rule.UpdatedAt),
	)

	return err
}

// Update writes the rule's editable fields. Counters are left alone.
func (r *RuleRepository) Update(ctx context.Context, rule *domain.CategorizationRule) error {
	targets, err := marshalSplitTargets(rule.SplitTargets)
	if err != nil {
		return err
	}

	query := `
		UPDATE categorization_rules SET
			name = $2, pattern = $3, match_type = $4, match_field = $5, amount_min = $6, amount_max = $7,
			counterparty_id = $8, direction = $9, source = $10, target_account_id = $11, split_targets = $12,
			auto_apply = $13, priority = $14, is_active = $15, updated_at = $16
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		rule.ID,
		rule.Name,
		rule.Pattern,
		string(rule.MatchType),
		string(rule.MatchField),
		decimalPtrToNumeric(rule.AmountMin),
		decimalPtrToNumeric(rule.AmountMax),
		stringPtrToText(rule.CounterpartyID),
		string(rule.Direction),
		string(rule.Source),
		stringPtrToText(rule.TargetAccountID),
		targets,
		rule.AutoApply,
		rule.Priority,
		rule.IsActive,
		timeToPgTimestamptz(rule.UpdatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRuleNotFound
	}

	return nil
}

// GetByID retrieves a rule by ID.
func (r *RuleRepository) GetByID(ctx context.Context, id string) (*domain.CategorizationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM categorization_rules WHERE id = $1`

	rule, err := scanRule(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, err
	}

	return rule, nil
}

// List lists a restaurant's rules in evaluation order.
func (r *RuleRepository) List(ctx context.Context, restaurantID string, includeInactive bool) ([]*domain.CategorizationRule, error) {
	query := `
		SELECT ` + ruleColumns + ` FROM categorization_rules
		WHERE restaurant_id = $1 AND (is_active OR $2::bool)
		ORDER BY priority DESC, created_at, id
	`

	rows, err := r.db.Query(ctx, query, restaurantID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]*domain.CategorizationRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// IncrementMatchCount adds n to the rule's match counter.
func (r *RuleRepository) IncrementMatchCount(ctx context.Context, id string, n int) error {
	_, err := r.db.Exec(ctx, `UPDATE categorization_rules SET match_count = match_count + $2 WHERE id = $1`, id, n)
	return err
}

// IncrementApplyCount records one application of the rule.
func (r *RuleRepository) IncrementApplyCount(ctx context.Context, id string, appliedAt time.Time) error {
	query := `UPDATE categorization_rules SET apply_count = apply_count + 1, last_applied_at = $2 WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, timeToPgTimestamptz(appliedAt))
	return err
}

func marshalSplitTargets(targets []domain.SplitTarget) ([]byte, error) {
	if len(targets) == 0 {
		return nil, nil
	}

	rows := make([]splitTargetRow, 0, len(targets))
	for _, t := range targets {
		rows = append(rows, splitTargetRow(t))
	}

	return json.Marshal(rows)
}

func scanRule(row pgx.Row) (*domain.CategorizationRule, error) {
	var (
		rule                                 domain.CategorizationRule
		matchType, matchField, dir, source   string
		amountMin, amountMax                 pgtype.Numeric
		counterpartyID, targetAccountID      pgtype.Text
		targets                              []byte
		priority                             int32
		lastAppliedAt, createdAt, updatedAt  pgtype.Timestamptz
	)

	err := row.Scan(
		&rule.ID,
		&rule.RestaurantID,
		&rule.Name,
		&rule.Pattern,
		&matchType,
		&matchField,
		&amountMin,
		&amountMax,
		&counterpartyID,
		&dir,
		&source,
		&targetAccountID,
		&targets,
		&rule.AutoApply,
		&priority,
		&rule.IsActive,
		&rule.MatchCount,
		&rule.ApplyCount,
		&lastAppliedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.MatchType = domain.MatchType(matchType)
	rule.MatchField = domain.MatchField(matchField)
	rule.Direction = domain.Direction(dir)
	rule.Source = domain.EventSource(source)
	rule.AmountMin = numericToDecimalPtr(amountMin)
	rule.AmountMax = numericToDecimalPtr(amountMax)
	rule.CounterpartyID = textToStringPtr(counterpartyID)
	rule.TargetAccountID = textToStringPtr(targetAccountID)
	rule.Priority = int(priority)
	rule.LastAppliedAt = pgTimestamptzToTimePtr(lastAppliedAt)
	rule.CreatedAt = createdAt.Time
	rule.UpdatedAt = updatedAt.Time

	if len(targets) > 0 {
		var rows []splitTargetRow
		if err := json.Unmarshal(targets, &rows); err != nil {
			return nil, err
		}
		for _, t := range rows {
			rule.SplitTargets = append(rule.SplitTargets, domain.SplitTarget(t))
		}
	}

	return &rule, nil
}
