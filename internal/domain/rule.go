package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MatchType is how a rule pattern is compared against event text.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchContains MatchType = "contains"
	MatchPrefix   MatchType = "prefix"
	MatchSuffix   MatchType = "suffix"
	MatchRegex    MatchType = "regex"
)

// MatchField selects the event text a rule pattern is applied to.
type MatchField string

const (
	FieldDescription MatchField = "description"
	FieldItemName    MatchField = "item_name"
	FieldPayee       MatchField = "payee"
)

// Direction restricts a rule to inflows or outflows.
type Direction string

const (
	DirectionAny     Direction = "any"
	DirectionInflow  Direction = "inflow"
	DirectionOutflow Direction = "outflow"
)

var hundred = decimal.NewFromInt(100)

// SplitTarget is one percentage slice of a split rule.
type SplitTarget struct {
	AccountID   string
	Percentage  decimal.Decimal
	Description string
}

// CategorizationRule proposes a category, or a split, for matching events.
type CategorizationRule struct {
	ID              string
	RestaurantID    string
	Name            string
	Pattern         string
	MatchType       MatchType
	MatchField      MatchField
	AmountMin       *decimal.Decimal
	AmountMax       *decimal.Decimal
	CounterpartyID  *string
	Direction       Direction
	Source          EventSource // empty matches any source
	TargetAccountID *string
	SplitTargets    []SplitTarget
	AutoApply       bool
	Priority        int
	IsActive        bool
	MatchCount      int64
	ApplyCount      int64
	LastAppliedAt   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsSplitRule reports whether the rule allocates across several accounts.
func (r *CategorizationRule) IsSplitRule() bool {
	return len(r.SplitTargets) > 0
}

// AccountIDs returns every account the rule can post to.
func (r *CategorizationRule) AccountIDs() []string {
	if r.TargetAccountID != nil {
		return []string{*r.TargetAccountID}
	}
	ids := make([]string, 0, len(r.SplitTargets))
	for _, t := range r.SplitTargets {
		ids = append(ids, t.AccountID)
	}
	return ids
}

// Validate checks the rule definition.
func (r *CategorizationRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if r.Pattern == "" && r.AmountMin == nil && r.AmountMax == nil && r.CounterpartyID == nil {
		return fmt.Errorf("%w: at least one predicate is required", ErrInvalidRule)
	}

	switch r.MatchType {
	case MatchExact, MatchContains, MatchPrefix, MatchSuffix:
	case MatchRegex:
		if _, err := compilePattern(r.Pattern); err != nil {
			return fmt.Errorf("%w: pattern does not compile: %v", ErrInvalidRule, err)
		}
	default:
		return fmt.Errorf("%w: unknown match type %q", ErrInvalidRule, r.MatchType)
	}

	switch r.MatchField {
	case FieldDescription, FieldItemName, FieldPayee:
	default:
		return fmt.Errorf("%w: unknown match field %q", ErrInvalidRule, r.MatchField)
	}

	switch r.Direction {
	case DirectionAny, DirectionInflow, DirectionOutflow:
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidRule, r.Direction)
	}

	if r.Source != "" && !r.Source.IsValid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidRule, r.Source)
	}

	if r.AmountMin != nil && r.AmountMin.IsNegative() || r.AmountMax != nil && r.AmountMax.IsNegative() {
		return fmt.Errorf("%w: amount range must be non-negative", ErrInvalidRule)
	}
	if r.AmountMin != nil && r.AmountMax != nil && r.AmountMin.GreaterThan(*r.AmountMax) {
		return fmt.Errorf("%w: amount min exceeds max", ErrInvalidRule)
	}

	hasTarget := r.TargetAccountID != nil && *r.TargetAccountID != ""
	if hasTarget == r.IsSplitRule() {
		return fmt.Errorf("%w: exactly one of target account or split targets is required", ErrInvalidRule)
	}

	if r.IsSplitRule() {
		total := decimal.Zero
		for _, t := range r.SplitTargets {
			if t.AccountID == "" || !t.Percentage.IsPositive() {
				return fmt.Errorf("%w: split targets need an account and a positive percentage", ErrInvalidRule)
			}
			total = total.Add(t.Percentage)
		}
		if !total.Equal(hundred) {
			return fmt.Errorf("%w: split percentages sum to %s, not 100", ErrInvalidRule, total)
		}
	}

	return nil
}

// Matches reports whether every predicate of the rule holds for e. Text
// comparison is case-insensitive; amount bounds apply to the magnitude.
func (r *CategorizationRule) Matches(e *ExternalEvent) bool {
	if !r.IsActive || e == nil {
		return false
	}
	if r.Source != "" && r.Source != e.Source {
		return false
	}

	switch r.Direction {
	case DirectionInflow:
		if e.IsOutflow() {
			return false
		}
	case DirectionOutflow:
		if !e.IsOutflow() {
			return false
		}
	}

	magnitude := e.Magnitude()
	if r.AmountMin != nil && magnitude.LessThan(*r.AmountMin) {
		return false
	}
	if r.AmountMax != nil && magnitude.GreaterThan(*r.AmountMax) {
		return false
	}

	if r.CounterpartyID != nil && (e.CounterpartyID == nil || *e.CounterpartyID != *r.CounterpartyID) {
		return false
	}

	if r.Pattern == "" {
		return true
	}
	return r.matchText(r.fieldValue(e))
}

func (r *CategorizationRule) fieldValue(e *ExternalEvent) string {
	switch r.MatchField {
	case FieldItemName:
		return e.ItemName
	case FieldPayee:
		return e.Payee
	default:
		return e.Description
	}
}

func (r *CategorizationRule) matchText(value string) bool {
	if r.MatchType == MatchRegex {
		re, err := compilePattern(r.Pattern)
		if err != nil {
			return false
		}
		return re.MatchString(value)
	}

	value = strings.ToLower(strings.TrimSpace(value))
	pattern := strings.ToLower(strings.TrimSpace(r.Pattern))
	switch r.MatchType {
	case MatchExact:
		return value == pattern
	case MatchPrefix:
		return strings.HasPrefix(value, pattern)
	case MatchSuffix:
		return strings.HasSuffix(value, pattern)
	default:
		return strings.Contains(value, pattern)
	}
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}

// Allocate converts split percentages into amounts against total. Every
// target but the last is rounded to cents; the last takes the remainder.
func (r *CategorizationRule) Allocate(total decimal.Decimal) []SplitAllocation {
	total = total.Abs()
	allocations := make([]SplitAllocation, len(r.SplitTargets))
	allocated := decimal.Zero
	for i, t := range r.SplitTargets {
		amount := total.Sub(allocated)
		if i < len(r.SplitTargets)-1 {
			amount = total.Mul(t.Percentage).Div(hundred).Round(2)
			allocated = allocated.Add(amount)
		}
		allocations[i] = SplitAllocation{AccountID: t.AccountID, Amount: amount, Description: t.Description}
	}
	return allocations
}

// SortRules orders rules by priority descending, then creation time, then id.
func SortRules(rules []*CategorizationRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// FirstMatch returns the highest-precedence rule matching e, or nil.
func FirstMatch(rules []*CategorizationRule, e *ExternalEvent) *CategorizationRule {
	ordered := make([]*CategorizationRule, len(rules))
	copy(ordered, rules)
	SortRules(ordered)
	for _, r := range ordered {
		if r.Matches(e) {
			return r
		}
	}
	return nil
}
