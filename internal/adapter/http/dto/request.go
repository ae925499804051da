package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/usecase"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date into a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected %s", s, DateLayout)
	}
	return domain.DateOf(t), nil
}

// CreateAccountRequest represents a request to create an account.
type CreateAccountRequest struct {
	RestaurantID  string `json:"restaurant_id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Subtype       string `json:"subtype,omitempty"`
	ParentID      string `json:"parent_id,omitempty"`
	NormalBalance string `json:"normal_balance,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAccountRequest) ToUseCaseInput() usecase.CreateAccountInput {
	return usecase.CreateAccountInput{
		RestaurantID:  r.RestaurantID,
		Code:          r.Code,
		Name:          r.Name,
		Type:          domain.AccountType(r.Type),
		Subtype:       r.Subtype,
		ParentID:      optionalString(r.ParentID),
		NormalBalance: domain.NormalBalance(r.NormalBalance),
	}
}

// SeedChartRequest asks for the default chart to be created for a restaurant.
type SeedChartRequest struct {
	RestaurantID string `json:"restaurant_id"`
}

// JournalLineRequest is one line of a manual entry.
type JournalLineRequest struct {
	AccountID   string          `json:"account_id"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
}

// PostEntryRequest represents a request to post a manual journal entry.
type PostEntryRequest struct {
	RestaurantID string               `json:"restaurant_id"`
	EntryDate    string               `json:"entry_date"`
	Description  string               `json:"description"`
	ReferenceID  string               `json:"reference_id,omitempty"`
	Lines        []JournalLineRequest `json:"lines"`
}

// ToUseCaseInput converts to use case input.
func (r *PostEntryRequest) ToUseCaseInput(createdBy string) (usecase.PostEntryInput, error) {
	date, err := ParseDate(r.EntryDate)
	if err != nil {
		return usecase.PostEntryInput{}, err
	}

	lines := make([]domain.JournalLine, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = domain.JournalLine{
			AccountID:   l.AccountID,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Description: l.Description,
			LineNo:      i + 1,
		}
	}

	return usecase.PostEntryInput{
		RestaurantID: r.RestaurantID,
		EntryDate:    date,
		Description:  r.Description,
		Reference:    domain.Reference{Kind: domain.RefManual, ID: r.ReferenceID},
		Lines:        lines,
		CreatedBy:    createdBy,
	}, nil
}

// ReasonRequest carries a free-text reason for reversals, exclusions and
// uncategorizations.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// IngestEventRequest represents a bank transaction or POS sale to store.
type IngestEventRequest struct {
	RestaurantID   string          `json:"restaurant_id"`
	Source         string          `json:"source"`
	CashAccountID  string          `json:"cash_account_id"`
	Amount         decimal.Decimal `json:"amount"`
	Date           string          `json:"date"`
	Description    string          `json:"description"`
	ItemName       string          `json:"item_name,omitempty"`
	Payee          string          `json:"payee,omitempty"`
	CounterpartyID string          `json:"counterparty_id,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *IngestEventRequest) ToUseCaseInput() (usecase.IngestEventInput, error) {
	date, err := ParseDate(r.Date)
	if err != nil {
		return usecase.IngestEventInput{}, err
	}

	return usecase.IngestEventInput{
		RestaurantID:   r.RestaurantID,
		Source:         domain.EventSource(r.Source),
		CashAccountID:  r.CashAccountID,
		Amount:         r.Amount,
		Date:           date,
		Description:    r.Description,
		ItemName:       r.ItemName,
		Payee:          r.Payee,
		CounterpartyID: optionalString(r.CounterpartyID),
	}, nil
}

// CategorizeRequest assigns an event to a category account.
type CategorizeRequest struct {
	AccountID string `json:"account_id"`
	Note      string `json:"note,omitempty"`
}

// ReclassifyRequest moves a categorized event to another account.
type ReclassifyRequest struct {
	NewAccountID string `json:"new_account_id"`
	Reason       string `json:"reason"`
}

// SplitAllocationRequest is one slice of a split.
type SplitAllocationRequest struct {
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

// SplitRequest spreads an event over several accounts.
type SplitRequest struct {
	Allocations []SplitAllocationRequest `json:"allocations"`
}

// ToUseCaseInput converts to use case input.
func (r *SplitRequest) ToUseCaseInput(eventID string) usecase.SplitInput {
	allocs := make([]domain.SplitAllocation, len(r.Allocations))
	for i, a := range r.Allocations {
		allocs[i] = domain.SplitAllocation{AccountID: a.AccountID, Amount: a.Amount, Description: a.Description}
	}
	return usecase.SplitInput{EventID: eventID, Allocations: allocs}
}

// TransferRequest pairs two events as an internal transfer.
type TransferRequest struct {
	EventAID string `json:"event_a_id"`
	EventBID string `json:"event_b_id"`
}

// SplitTargetRequest is a percentage target of a split rule.
type SplitTargetRequest struct {
	AccountID   string          `json:"account_id"`
	Percentage  decimal.Decimal `json:"percentage"`
	Description string          `json:"description,omitempty"`
}

// RuleRequest creates or replaces a categorization rule.
type RuleRequest struct {
	RestaurantID    string               `json:"restaurant_id"`
	Name            string               `json:"name"`
	Pattern         string               `json:"pattern"`
	MatchType       string               `json:"match_type"`
	MatchField      string               `json:"match_field"`
	AmountMin       *decimal.Decimal     `json:"amount_min,omitempty"`
	AmountMax       *decimal.Decimal     `json:"amount_max,omitempty"`
	CounterpartyID  string               `json:"counterparty_id,omitempty"`
	Direction       string               `json:"direction,omitempty"`
	Source          string               `json:"source,omitempty"`
	TargetAccountID string               `json:"target_account_id,omitempty"`
	SplitTargets    []SplitTargetRequest `json:"split_targets,omitempty"`
	AutoApply       bool                 `json:"auto_apply"`
	Priority        int                  `json:"priority"`
}

// ToUseCaseInput converts to use case input.
func (r *RuleRequest) ToUseCaseInput() usecase.RuleInput {
	var targets []domain.SplitTarget
	for _, t := range r.SplitTargets {
		targets = append(targets, domain.SplitTarget{AccountID: t.AccountID, Percentage: t.Percentage, Description: t.Description})
	}

	direction := domain.Direction(r.Direction)
	if direction == "" {
		direction = domain.DirectionAny
	}

	return usecase.RuleInput{
		RestaurantID:    r.RestaurantID,
		Name:            r.Name,
		Pattern:         r.Pattern,
		MatchType:       domain.MatchType(r.MatchType),
		MatchField:      domain.MatchField(r.MatchField),
		AmountMin:       r.AmountMin,
		AmountMax:       r.AmountMax,
		CounterpartyID:  optionalString(r.CounterpartyID),
		Direction:       direction,
		Source:          domain.EventSource(r.Source),
		TargetAccountID: optionalString(r.TargetAccountID),
		SplitTargets:    targets,
		AutoApply:       r.AutoApply,
		Priority:        r.Priority,
	}
}

// RuleBatchRequest runs the rule engine for one restaurant.
type RuleBatchRequest struct {
	RestaurantID string `json:"restaurant_id"`
	Limit        int    `json:"limit,omitempty"`
}

// SetBoundaryRequest sets a restaurant's reconciliation boundary.
type SetBoundaryRequest struct {
	CashAccountID    string          `json:"cash_account_id"`
	EquityAccountID  string          `json:"equity_account_id"`
	BalanceStartDate string          `json:"balance_start_date"`
	OpeningBalance   decimal.Decimal `json:"opening_balance"`
}

// ToUseCaseInput converts to use case input.
func (r *SetBoundaryRequest) ToUseCaseInput(restaurantID string) (usecase.SetBoundaryInput, error) {
	date, err := ParseDate(r.BalanceStartDate)
	if err != nil {
		return usecase.SetBoundaryInput{}, err
	}

	return usecase.SetBoundaryInput{
		RestaurantID:     restaurantID,
		CashAccountID:    r.CashAccountID,
		EquityAccountID:  r.EquityAccountID,
		BalanceStartDate: date,
		OpeningBalance:   r.OpeningBalance,
	}, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
