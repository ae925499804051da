package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/usecase"
)

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID            string          `json:"id"`
	RestaurantID  string          `json:"restaurant_id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	Subtype       string          `json:"subtype,omitempty"`
	ParentID      *string         `json:"parent_id,omitempty"`
	NormalBalance string          `json:"normal_balance"`
	Balance       decimal.Decimal `json:"balance"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:            a.ID,
		RestaurantID:  a.RestaurantID,
		Code:          a.Code,
		Name:          a.Name,
		Type:          string(a.Type),
		Subtype:       a.Subtype,
		ParentID:      a.ParentID,
		NormalBalance: string(a.NormalBalance),
		Balance:       a.Balance,
		IsActive:      a.IsActive,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// ListAccountsResponse represents a list of accounts.
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Total    int64              `json:"total"`
}

// JournalLineResponse represents one line of an entry.
type JournalLineResponse struct {
	LineNo      int             `json:"line_no"`
	AccountID   string          `json:"account_id"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
}

// EntryResponse represents a journal entry in API responses.
type EntryResponse struct {
	ID              string                `json:"id"`
	RestaurantID    string                `json:"restaurant_id"`
	EntryNumber     string                `json:"entry_number"`
	EntryDate       string                `json:"entry_date"`
	Description     string                `json:"description"`
	ReferenceKind   string                `json:"reference_kind"`
	ReferenceID     string                `json:"reference_id"`
	TotalDebit      decimal.Decimal       `json:"total_debit"`
	TotalCredit     decimal.Decimal       `json:"total_credit"`
	Balanced        bool                  `json:"balanced"`
	ReversesEntryID *string               `json:"reverses_entry_id,omitempty"`
	CreatedBy       string                `json:"created_by"`
	CreatedAt       time.Time             `json:"created_at"`
	Lines           []JournalLineResponse `json:"lines"`
}

// EntryFromDomain converts a journal entry to response.
func EntryFromDomain(e *domain.JournalEntry) *EntryResponse {
	lines := make([]JournalLineResponse, len(e.Lines))
	for i, l := range e.Lines {
		lines[i] = JournalLineResponse{
			LineNo:      l.LineNo,
			AccountID:   l.AccountID,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Description: l.Description,
		}
	}

	return &EntryResponse{
		ID:              e.ID,
		RestaurantID:    e.RestaurantID,
		EntryNumber:     e.EntryNumber,
		EntryDate:       e.EntryDate.Format(DateLayout),
		Description:     e.Description,
		ReferenceKind:   string(e.Reference.Kind),
		ReferenceID:     e.Reference.ID,
		TotalDebit:      e.TotalDebit,
		TotalCredit:     e.TotalCredit,
		Balanced:        e.Balanced,
		ReversesEntryID: e.ReversesEntryID,
		CreatedBy:       e.CreatedBy,
		CreatedAt:       e.CreatedAt,
		Lines:           lines,
	}
}

// EntriesFromDomain converts journal entries to responses.
func EntriesFromDomain(entries []*domain.JournalEntry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// EventResponse represents an external event in API responses.
type EventResponse struct {
	ID                string          `json:"id"`
	RestaurantID      string          `json:"restaurant_id"`
	Source            string          `json:"source"`
	CashAccountID     string          `json:"cash_account_id"`
	Amount            decimal.Decimal `json:"amount"`
	Date              string          `json:"date"`
	Description       string          `json:"description"`
	ItemName          string          `json:"item_name,omitempty"`
	Payee             string          `json:"payee,omitempty"`
	CounterpartyID    *string         `json:"counterparty_id,omitempty"`
	Status            string          `json:"status"`
	CategoryAccountID *string         `json:"category_account_id,omitempty"`
	IsSplit           bool            `json:"is_split"`
	IsTransfer        bool            `json:"is_transfer"`
	TransferPairID    *string         `json:"transfer_pair_id,omitempty"`
	IsReconciled      bool            `json:"is_reconciled"`
	MatchedRuleID     *string         `json:"matched_rule_id,omitempty"`
	Note              string          `json:"note,omitempty"`
	ExcludedReason    string          `json:"excluded_reason,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// EventFromDomain converts an external event to response.
func EventFromDomain(e *domain.ExternalEvent) *EventResponse {
	return &EventResponse{
		ID:                e.ID,
		RestaurantID:      e.RestaurantID,
		Source:            string(e.Source),
		CashAccountID:     e.CashAccountID,
		Amount:            e.Amount,
		Date:              e.Date.Format(DateLayout),
		Description:       e.Description,
		ItemName:          e.ItemName,
		Payee:             e.Payee,
		CounterpartyID:    e.CounterpartyID,
		Status:            string(e.Status),
		CategoryAccountID: e.CategoryAccountID,
		IsSplit:           e.IsSplit,
		IsTransfer:        e.IsTransfer,
		TransferPairID:    e.TransferPairID,
		IsReconciled:      e.IsReconciled,
		MatchedRuleID:     e.MatchedRuleID,
		Note:              e.Note,
		ExcludedReason:    e.ExcludedReason,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

// EventsFromDomain converts events to responses.
func EventsFromDomain(events []*domain.ExternalEvent) []*EventResponse {
	result := make([]*EventResponse, len(events))
	for i, e := range events {
		result[i] = EventFromDomain(e)
	}
	return result
}

// ReclassificationResponse represents a reclassification record.
type ReclassificationResponse struct {
	ID           string    `json:"id"`
	EventID      string    `json:"event_id"`
	OldAccountID string    `json:"old_account_id"`
	NewAccountID string    `json:"new_account_id"`
	Reason       string    `json:"reason"`
	EntryID      string    `json:"entry_id"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// ReclassificationFromDomain converts a reclassification to response.
func ReclassificationFromDomain(r *domain.Reclassification) *ReclassificationResponse {
	return &ReclassificationResponse{
		ID:           r.ID,
		EventID:      r.EventID,
		OldAccountID: r.OldAccountID,
		NewAccountID: r.NewAccountID,
		Reason:       r.Reason,
		EntryID:      r.EntryID,
		CreatedBy:    r.CreatedBy,
		CreatedAt:    r.CreatedAt,
	}
}

// SplitResponse represents one stored split allocation.
type SplitResponse struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	EntryID     string          `json:"entry_id"`
}

// SplitsFromDomain converts split allocations to responses.
func SplitsFromDomain(splits []*domain.EventSplit) []*SplitResponse {
	result := make([]*SplitResponse, len(splits))
	for i, s := range splits {
		result[i] = &SplitResponse{
			ID:          s.ID,
			AccountID:   s.AccountID,
			Amount:      s.Amount,
			Description: s.Description,
			EntryID:     s.EntryID,
		}
	}
	return result
}

// RuleResponse represents a categorization rule.
type RuleResponse struct {
	ID              string               `json:"id"`
	RestaurantID    string               `json:"restaurant_id"`
	Name            string               `json:"name"`
	Pattern         string               `json:"pattern"`
	MatchType       string               `json:"match_type"`
	MatchField      string               `json:"match_field"`
	AmountMin       *decimal.Decimal     `json:"amount_min,omitempty"`
	AmountMax       *decimal.Decimal     `json:"amount_max,omitempty"`
	CounterpartyID  *string              `json:"counterparty_id,omitempty"`
	Direction       string               `json:"direction"`
	Source          string               `json:"source,omitempty"`
	TargetAccountID *string              `json:"target_account_id,omitempty"`
	SplitTargets    []SplitTargetRequest `json:"split_targets,omitempty"`
	AutoApply       bool                 `json:"auto_apply"`
	Priority        int                  `json:"priority"`
	IsActive        bool                 `json:"is_active"`
	MatchCount      int64                `json:"match_count"`
	ApplyCount      int64                `json:"apply_count"`
	LastAppliedAt   *time.Time           `json:"last_applied_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// RuleFromDomain converts a rule to response.
func RuleFromDomain(r *domain.CategorizationRule) *RuleResponse {
	var targets []SplitTargetRequest
	for _, t := range r.SplitTargets {
		targets = append(targets, SplitTargetRequest{AccountID: t.AccountID, Percentage: t.Percentage, Description: t.Description})
	}

	return &RuleResponse{
		ID:              r.ID,
		RestaurantID:    r.RestaurantID,
		Name:            r.Name,
		Pattern:         r.Pattern,
		MatchType:       string(r.MatchType),
		MatchField:      string(r.MatchField),
		AmountMin:       r.AmountMin,
		AmountMax:       r.AmountMax,
		CounterpartyID:  r.CounterpartyID,
		Direction:       string(r.Direction),
		Source:          string(r.Source),
		TargetAccountID: r.TargetAccountID,
		SplitTargets:    targets,
		AutoApply:       r.AutoApply,
		Priority:        r.Priority,
		IsActive:        r.IsActive,
		MatchCount:      r.MatchCount,
		ApplyCount:      r.ApplyCount,
		LastAppliedAt:   r.LastAppliedAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// RulesFromDomain converts rules to responses.
func RulesFromDomain(rules []*domain.CategorizationRule) []*RuleResponse {
	result := make([]*RuleResponse, len(rules))
	for i, r := range rules {
		result[i] = RuleFromDomain(r)
	}
	return result
}

// EvaluateResponse reports a rule evaluation pass.
type EvaluateResponse struct {
	Evaluated int `json:"evaluated"`
	Matched   int `json:"matched"`
}

// BatchResultResponse reports an auto-apply batch.
type BatchResultResponse struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Total   int `json:"total"`
}

// BatchResultFromUseCase converts a batch result to response.
func BatchResultFromUseCase(r *usecase.BatchResult) *BatchResultResponse {
	return &BatchResultResponse{Applied: r.Applied, Skipped: r.Skipped, Failed: r.Failed, Total: r.Total}
}

// BoundaryResponse represents a reconciliation boundary.
type BoundaryResponse struct {
	RestaurantID     string          `json:"restaurant_id"`
	BalanceStartDate string          `json:"balance_start_date"`
	OpeningBalance   decimal.Decimal `json:"opening_balance"`
	OpeningEntryID   *string         `json:"opening_entry_id,omitempty"`
	CashAccountID    string          `json:"cash_account_id"`
	EquityAccountID  string          `json:"equity_account_id"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// BoundaryFromDomain converts a boundary to response.
func BoundaryFromDomain(b *domain.ReconciliationBoundary) *BoundaryResponse {
	return &BoundaryResponse{
		RestaurantID:     b.RestaurantID,
		BalanceStartDate: b.BalanceStartDate.Format(DateLayout),
		OpeningBalance:   b.OpeningBalance,
		OpeningEntryID:   b.OpeningEntryID,
		CashAccountID:    b.CashAccountID,
		EquityAccountID:  b.EquityAccountID,
		UpdatedAt:        b.UpdatedAt,
	}
}

// ViolationResponse reports events dated before the boundary.
type ViolationResponse struct {
	Violated          bool            `json:"violated"`
	CashAccountID     string          `json:"cash_account_id,omitempty"`
	BalanceStartDate  string          `json:"balance_start_date,omitempty"`
	EarliestDate      string          `json:"earliest_date,omitempty"`
	EventCount        int             `json:"event_count"`
	EventIDs          []string        `json:"event_ids,omitempty"`
	SignedSum         decimal.Decimal `json:"signed_sum"`
	Adjustment        decimal.Decimal `json:"adjustment"`
	OpeningBalance    decimal.Decimal `json:"opening_balance"`
	NewOpeningBalance decimal.Decimal `json:"new_opening_balance"`
	EntryID           *string         `json:"entry_id,omitempty"`
}

// ViolationFromDomain converts a violation report to response. A nil
// report means the boundary holds.
func ViolationFromDomain(v *domain.ViolationReport) *ViolationResponse {
	if v == nil {
		return &ViolationResponse{}
	}

	return &ViolationResponse{
		Violated:          true,
		CashAccountID:     v.CashAccountID,
		BalanceStartDate:  v.BalanceStartDate.Format(DateLayout),
		EarliestDate:      v.EarliestDate.Format(DateLayout),
		EventCount:        v.EventCount,
		EventIDs:          v.EventIDs,
		SignedSum:         v.SignedSum,
		Adjustment:        v.Adjustment,
		OpeningBalance:    v.OpeningBalance,
		NewOpeningBalance: v.NewOpeningBalance,
		EntryID:           v.EntryID,
	}
}

// AdjustmentResponse reports an applied boundary adjustment. RebuildError
// is set when the adjustment committed but the balance rebuild failed.
type AdjustmentResponse struct {
	*ViolationResponse
	RebuildError string `json:"rebuild_error,omitempty"`
}

// BalanceResponse is an account balance at a date.
type BalanceResponse struct {
	AccountID string          `json:"account_id"`
	AsOf      string          `json:"as_of"`
	Balance   decimal.Decimal `json:"balance"`
}

// TrialBalanceLineResponse is one account row of a trial balance.
type TrialBalanceLineResponse struct {
	AccountID     string          `json:"account_id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	NormalBalance string          `json:"normal_balance"`
	Balance       decimal.Decimal `json:"balance"`
}

// TrialBalanceResponse represents a trial balance.
type TrialBalanceResponse struct {
	RestaurantID string                     `json:"restaurant_id"`
	AsOf         string                     `json:"as_of"`
	Lines        []TrialBalanceLineResponse `json:"lines"`
}

// TrialBalanceFromDomain converts a trial balance to response.
func TrialBalanceFromDomain(tb *domain.TrialBalance) *TrialBalanceResponse {
	lines := make([]TrialBalanceLineResponse, len(tb.Lines))
	for i, l := range tb.Lines {
		lines[i] = TrialBalanceLineResponse{
			AccountID:     l.AccountID,
			Code:          l.Code,
			Name:          l.Name,
			Type:          string(l.Type),
			NormalBalance: string(l.NormalBalance),
			Balance:       l.Balance,
		}
	}

	return &TrialBalanceResponse{
		RestaurantID: tb.RestaurantID,
		AsOf:         tb.AsOf.Format(DateLayout),
		Lines:        lines,
	}
}

// RebuildResponse reports a balance rebuild.
type RebuildResponse struct {
	Recomputed int `json:"recomputed"`
	Changed    int `json:"changed"`
}

// DiscrepancyResponse is one account whose cached balance drifted.
type DiscrepancyResponse struct {
	AccountID         string          `json:"account_id"`
	Code              string          `json:"code"`
	RecordedBalance   decimal.Decimal `json:"recorded_balance"`
	CalculatedBalance decimal.Decimal `json:"calculated_balance"`
	Difference        decimal.Decimal `json:"difference"`
}

// ReconciliationReportResponse represents a reconciliation report.
type ReconciliationReportResponse struct {
	RestaurantID       string                 `json:"restaurant_id"`
	TotalAccounts      int                    `json:"total_accounts"`
	ReconciledAccounts int                    `json:"reconciled_accounts"`
	Discrepancies      []*DiscrepancyResponse `json:"discrepancies"`
	LedgerConsistent   bool                   `json:"ledger_consistent"`
	Boundary           *ViolationResponse     `json:"boundary"`
	Signals            []*SignalResponse      `json:"signals"`
	CheckedAt          time.Time              `json:"checked_at"`
}

// SignalResponse is an ops signal raised by a rule batch or boundary check.
type SignalResponse struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	AggregateID string         `json:"aggregate_id"`
	Payload     map[string]any `json:"payload,omitempty"`
	Published   bool           `json:"published"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ReconciliationReportFromUseCase converts a reconciliation report to response.
func ReconciliationReportFromUseCase(r *usecase.ReconciliationReport) *ReconciliationReportResponse {
	discrepancies := make([]*DiscrepancyResponse, len(r.Discrepancies))
	for i, d := range r.Discrepancies {
		discrepancies[i] = &DiscrepancyResponse{
			AccountID:         d.AccountID,
			Code:              d.Code,
			RecordedBalance:   d.RecordedBalance,
			CalculatedBalance: d.CalculatedBalance,
			Difference:        d.Difference,
		}
	}

	signals := make([]*SignalResponse, len(r.Signals))
	for i, s := range r.Signals {
		signals[i] = &SignalResponse{
			ID:          s.ID,
			Type:        s.EventType,
			AggregateID: s.AggregateID,
			Payload:     s.Payload,
			Published:   s.Published,
			CreatedAt:   s.CreatedAt,
		}
	}

	return &ReconciliationReportResponse{
		RestaurantID:       r.RestaurantID,
		TotalAccounts:      r.TotalAccounts,
		ReconciledAccounts: r.ReconciledAccounts,
		Discrepancies:      discrepancies,
		LedgerConsistent:   r.LedgerConsistent,
		Boundary:           ViolationFromDomain(r.Violation),
		Signals:            signals,
		CheckedAt:          r.CheckedAt,
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}
