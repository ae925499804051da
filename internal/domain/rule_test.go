package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newTestRule(id string, priority int, created time.Time) *CategorizationRule {
	return &CategorizationRule{
		ID:              id,
		RestaurantID:    "rest-1",
		Name:            "rule " + id,
		Pattern:         "sysco",
		MatchType:       MatchContains,
		MatchField:      FieldDescription,
		Direction:       DirectionAny,
		TargetAccountID: strPtr("food"),
		Priority:        priority,
		IsActive:        true,
		CreatedAt:       created,
	}
}

func TestCategorizationRule_Matches(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(r *CategorizationRule, e *ExternalEvent)
		want   bool
	}{
		{name: "contains is case-insensitive", mutate: func(r *CategorizationRule, e *ExternalEvent) {}, want: true},
		{name: "exact", mutate: func(r *CategorizationRule, e *ExternalEvent) {
			r.MatchType = MatchExact
			r.Pattern = "Sysco Foods 1234"
		}, want: true},
		{name: "exact mismatch", mutate: func(r *CategorizationRule, e *ExternalEvent) {
			r.MatchType = MatchExact
		}, want: false},
		{name: "prefix", mutate: func(r *CategorizationRule, e *ExternalEvent) {
			r.MatchType = MatchPrefix
			r.Pattern = "SYSCO F"
		}, want: true},
		{name: "suffix", mutate: func(r *CategorizationRule, e *ExternalEvent) {
			r.MatchType = MatchSuffix
			r.Pattern = "1234"
		}, want: true},
		{name: "regex", mutate: func(r *CategorizationRule, e *ExternalEvent) {
			r.MatchType = MatchRegex
			r.Pattern = `^sysco\s+foods\s+\d+$`
		}, want: true},
		{name: "item name field", mutate: func(r *CategorizationRule, e *ExternalEvent) {
			r.MatchField = FieldItemName
			r.Pattern = "burger"
			e.ItemName = "Classic Burger"
		}, want: true},
		{name: "payee field", mutate: func(r *CategorizationRule, e *ExternalEvent) {
			r.MatchField = FieldPayee
			r.Pattern = "sysco"
			e.Payee = ""
		}, want: false},
		{name: "amount range on magnitude", mutate: func(r *CategorizationRule, e *ExternalEvent) {
			r.AmountMin = decPtr("40")
			r.AmountMax = decPtr("50")
		}, want: true},
		{name: "amount above max", mutate: func(r *CategorizationRule, e *ExternalEvent) {
			r.AmountMax = decPtr("40")
		}, want: false},
		{name: "direction inflow rejects outflow", mutate: func(r *CategorizationRule, e *ExternalEvent) {
			r.Direction = DirectionInflow
		}, want: false},
		{name: "counterparty required", mutate: func(r *CategorizationRule, e *ExternalEvent) {
			r.CounterpartyID = strPtr("sup-1")
		}, want: false},
		{name: "counterparty matches", mutate: func(r *CategorizationRule, e *ExternalEvent) {
			r.CounterpartyID = strPtr("sup-1")
			e.CounterpartyID = strPtr("sup-1")
		}, want: true},
		{name: "source filter", mutate: func(r *CategorizationRule, e *ExternalEvent) {
			r.Source = SourcePOSSale
		}, want: false},
		{name: "inactive", mutate: func(r *CategorizationRule, e *ExternalEvent) {
			r.IsActive = false
		}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRule("r1", 0, base)
			e := newTestEvent("-42.50")
			tt.mutate(r, e)

			assert.Equal(t, tt.want, r.Matches(e))
		})
	}
}

func TestFirstMatch_PriorityThenCreationOrder(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	low := newTestRule("low", 1, base)
	olderHigh := newTestRule("older", 10, base)
	newerHigh := newTestRule("newer", 10, base.Add(time.Hour))
	nonMatching := newTestRule("other", 100, base)
	nonMatching.Pattern = "us foods"

	got := FirstMatch([]*CategorizationRule{low, newerHigh, nonMatching, olderHigh}, newTestEvent("-10"))

	require.NotNil(t, got)
	assert.Equal(t, "older", got.ID)
}

func TestFirstMatch_NoMatch(t *testing.T) {
	r := newTestRule("r1", 0, time.Now())
	r.Pattern = "costco"

	assert.Nil(t, FirstMatch([]*CategorizationRule{r}, newTestEvent("-10")))
}

func TestCategorizationRule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *CategorizationRule)
		wantErr bool
	}{
		{name: "valid", mutate: func(r *CategorizationRule) {}},
		{name: "bad regex", mutate: func(r *CategorizationRule) {
			r.MatchType = MatchRegex
			r.Pattern = "("
		}, wantErr: true},
		{name: "min above max", mutate: func(r *CategorizationRule) {
			r.AmountMin = decPtr("10")
			r.AmountMax = decPtr("5")
		}, wantErr: true},
		{name: "both target and split", mutate: func(r *CategorizationRule) {
			r.SplitTargets = []SplitTarget{{AccountID: "a", Percentage: decimal.NewFromInt(100)}}
		}, wantErr: true},
		{name: "neither target nor split", mutate: func(r *CategorizationRule) {
			r.TargetAccountID = nil
		}, wantErr: true},
		{name: "split percentages must total 100", mutate: func(r *CategorizationRule) {
			r.TargetAccountID = nil
			r.SplitTargets = []SplitTarget{
				{AccountID: "a", Percentage: decimal.NewFromInt(60)},
				{AccountID: "b", Percentage: decimal.NewFromInt(30)},
			}
		}, wantErr: true},
		{name: "valid split", mutate: func(r *CategorizationRule) {
			r.TargetAccountID = nil
			r.SplitTargets = []SplitTarget{
				{AccountID: "a", Percentage: decimal.NewFromInt(60)},
				{AccountID: "b", Percentage: decimal.NewFromInt(40)},
			}
		}},
		{name: "unknown match type", mutate: func(r *CategorizationRule) {
			r.MatchType = "fuzzy"
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRule("r1", 0, time.Now())
			tt.mutate(r)

			err := r.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidRule))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestCategorizationRule_AllocateLastTakesRemainder(t *testing.T) {
	r := newTestRule("r1", 0, time.Now())
	r.TargetAccountID = nil
	r.SplitTargets = []SplitTarget{
		{AccountID: "a", Percentage: decimal.RequireFromString("33.333")},
		{AccountID: "b", Percentage: decimal.RequireFromString("33.333")},
		{AccountID: "c", Percentage: decimal.RequireFromString("33.334")},
	}

	allocs := r.Allocate(decimal.RequireFromString("-100.00"))

	require.Len(t, allocs, 3)
	assert.True(t, allocs[0].Amount.Equal(decimal.RequireFromString("33.33")))
	assert.True(t, allocs[1].Amount.Equal(decimal.RequireFromString("33.33")))
	assert.True(t, allocs[2].Amount.Equal(decimal.RequireFromString("33.34")))

	sum := decimal.Zero
	for _, a := range allocs {
		sum = sum.Add(a.Amount)
	}
	assert.True(t, sum.Equal(decimal.RequireFromString("100")))
}
