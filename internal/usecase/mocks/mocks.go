package mocks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/usecase"
)

// trackUndo registers undo on tx when it is a *MockTransaction, so a
// rollback without commit reverts the write.
func trackUndo(tx usecase.Transaction, undo func()) {
	if t, ok := tx.(*MockTransaction); ok {
		t.onRollback(undo)
	}
}

// MockAccountRepository is a mock implementation of AccountRepository.
type MockAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account

	CreateFunc           func(ctx context.Context, tx usecase.Transaction, account *domain.Account) error
	GetByIDFunc          func(ctx context.Context, id string) (*domain.Account, error)
	GetByIDsForShareFunc func(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error)
	UpdateBalanceFunc    func(ctx context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error
	ListFunc             func(ctx context.Context, restaurantID string, includeInactive bool) ([]*domain.Account, error)
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{
		accounts: make(map[string]*domain.Account),
	}
}

// Add seeds an account.
func (m *MockAccountRepository) Add(account *domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *account
	m.accounts[account.ID] = &c
}

func (m *MockAccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, account)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.RestaurantID == account.RestaurantID && a.Code == account.Code {
			return domain.ErrDuplicateCode
		}
	}
	c := *account
	m.accounts[account.ID] = &c
	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.accounts, account.ID)
	})
	return nil
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if acc, ok := m.accounts[id]; ok {
		c := *acc
		return &c, nil
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByCode(ctx context.Context, restaurantID, code string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, acc := range m.accounts {
		if acc.RestaurantID == restaurantID && acc.Code == code {
			c := *acc
			return &c, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByIDsForShare(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error) {
	if m.GetByIDsForShareFunc != nil {
		return m.GetByIDsForShareFunc(ctx, tx, ids)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accounts []*domain.Account
	for _, id := range ids {
		if acc, ok := m.accounts[id]; ok {
			c := *acc
			accounts = append(accounts, &c)
		}
	}
	return accounts, nil
}

func (m *MockAccountRepository) List(ctx context.Context, restaurantID string, includeInactive bool) ([]*domain.Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, restaurantID, includeInactive)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accounts []*domain.Account
	for _, acc := range m.accounts {
		if acc.RestaurantID != restaurantID || !includeInactive && !acc.IsActive {
			continue
		}
		c := *acc
		accounts = append(accounts, &c)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	return accounts, nil
}

func (m *MockAccountRepository) SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	acc.IsActive = active
	acc.UpdatedAt = updatedAt
	return nil
}

func (m *MockAccountRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, updatedAt time.Time) error {
	if m.UpdateBalanceFunc != nil {
		return m.UpdateBalanceFunc(ctx, tx, id, balance, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	previous := acc.Balance
	acc.Balance = balance
	acc.UpdatedAt = updatedAt
	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		acc.Balance = previous
	})
	return nil
}

type refKey struct {
	restaurantID string
	ref          domain.Reference
}

// MockEntryRepository is a mock implementation of EntryRepository.
type MockEntryRepository struct {
	mu       sync.RWMutex
	entries  map[string]*domain.JournalEntry
	refs     map[refKey]string
	counters map[string]int64

	CreateFunc         func(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error
	ClaimReferenceFunc func(ctx context.Context, tx usecase.Transaction, restaurantID string, ref domain.Reference, entryID string) error
}

func NewMockEntryRepository() *MockEntryRepository {
	return &MockEntryRepository{
		entries:  make(map[string]*domain.JournalEntry),
		refs:     make(map[refKey]string),
		counters: make(map[string]int64),
	}
}

func (m *MockEntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.JournalEntry) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *entry
	c.Lines = append([]domain.JournalLine(nil), entry.Lines...)
	m.entries[entry.ID] = &c
	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.entries, entry.ID)
	})
	return nil
}

func (m *MockEntryRepository) GetByID(ctx context.Context, id string) (*domain.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[id]; ok {
		c := *e
		return &c, nil
	}
	return nil, domain.ErrEntryNotFound
}

func (m *MockEntryRepository) FindByReference(ctx context.Context, tx usecase.Transaction, restaurantID string, ref domain.Reference) (*domain.JournalEntry, error) {
	m.mu.RLock()
	id, ok := m.refs[refKey{restaurantID, ref}]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	return m.GetByID(ctx, id)
}

func (m *MockEntryRepository) ClaimReference(ctx context.Context, tx usecase.Transaction, restaurantID string, ref domain.Reference, entryID string) error {
	if m.ClaimReferenceFunc != nil {
		return m.ClaimReferenceFunc(ctx, tx, restaurantID, ref, entryID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := refKey{restaurantID, ref}
	if _, ok := m.refs[key]; ok {
		return domain.ErrReferenceConflict
	}
	m.refs[key] = entryID
	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.refs, key)
	})
	return nil
}

func (m *MockEntryRepository) ReleaseReference(ctx context.Context, tx usecase.Transaction, restaurantID string, ref domain.Reference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := refKey{restaurantID, ref}
	previous, ok := m.refs[key]
	if !ok {
		return nil
	}
	delete(m.refs, key)
	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.refs[key] = previous
	})
	return nil
}

func (m *MockEntryRepository) NextEntryNumber(ctx context.Context, tx usecase.Transaction, restaurantID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[restaurantID]++
	return m.counters[restaurantID], nil
}

func (m *MockEntryRepository) List(ctx context.Context, restaurantID string, limit, offset int) ([]*domain.JournalEntry, error) {
	entries := m.Entries(restaurantID)
	sort.Slice(entries, func(i, j int) bool { return entries[i].EntryNumber > entries[j].EntryNumber })
	if offset >= len(entries) {
		return []*domain.JournalEntry{}, nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *MockEntryRepository) SumByAccount(ctx context.Context, accountID string, asOf time.Time) (usecase.LineTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	totals := usecase.LineTotals{Debit: decimal.Zero, Credit: decimal.Zero}
	for _, e := range m.entries {
		if e.EntryDate.After(asOf) {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountID == accountID {
				totals.Debit = totals.Debit.Add(l.Debit)
				totals.Credit = totals.Credit.Add(l.Credit)
			}
		}
	}
	return totals, nil
}

// Entries returns every stored entry of the restaurant, in entry number order.
func (m *MockEntryRepository) Entries(restaurantID string) []*domain.JournalEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []*domain.JournalEntry
	for _, e := range m.entries {
		if e.RestaurantID == restaurantID {
			c := *e
			entries = append(entries, &c)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].EntryNumber < entries[j].EntryNumber })
	return entries
}

// CountByKind counts stored entries of the restaurant with the given reference kind.
func (m *MockEntryRepository) CountByKind(restaurantID string, kind domain.ReferenceKind) int {
	n := 0
	for _, e := range m.Entries(restaurantID) {
		if e.Reference.Kind == kind {
			n++
		}
	}
	return n
}

// MockLedgerRepository computes aggregates over a MockEntryRepository.
type MockLedgerRepository struct {
	entries *MockEntryRepository

	CheckConsistencyFunc func(ctx context.Context, restaurantID string) (decimal.Decimal, decimal.Decimal, error)
}

func NewMockLedgerRepository(entries *MockEntryRepository) *MockLedgerRepository {
	return &MockLedgerRepository{entries: entries}
}

func (m *MockLedgerRepository) CheckConsistency(ctx context.Context, restaurantID string) (decimal.Decimal, decimal.Decimal, error) {
	if m.CheckConsistencyFunc != nil {
		return m.CheckConsistencyFunc(ctx, restaurantID)
	}
	debit, credit := decimal.Zero, decimal.Zero
	for _, e := range m.entries.Entries(restaurantID) {
		for _, l := range e.Lines {
			debit = debit.Add(l.Debit)
			credit = credit.Add(l.Credit)
		}
	}
	return debit, credit, nil
}

func (m *MockLedgerRepository) SumLinesByAccount(ctx context.Context, restaurantID string, asOf time.Time) (map[string]usecase.LineTotals, error) {
	out := make(map[string]usecase.LineTotals)
	for _, e := range m.entries.Entries(restaurantID) {
		if e.EntryDate.After(asOf) {
			continue
		}
		for _, l := range e.Lines {
			t := out[l.AccountID]
			t.Debit = t.Debit.Add(l.Debit)
			t.Credit = t.Credit.Add(l.Credit)
			out[l.AccountID] = t
		}
	}
	return out, nil
}

// MockEventRepository is a mock implementation of EventRepository.
type MockEventRepository struct {
	mu      sync.RWMutex
	events  map[string]*domain.ExternalEvent
	splits  map[string][]*domain.EventSplit
	reclass map[string][]*domain.Reclassification

	GetByIDForUpdateFunc func(ctx context.Context, tx usecase.Transaction, id string) (*domain.ExternalEvent, error)
	UpdateFunc           func(ctx context.Context, tx usecase.Transaction, event *domain.ExternalEvent) error
	SetRuleMatchFunc     func(ctx context.Context, eventID string, ruleID *string, evaluatedAt time.Time) error
}

func NewMockEventRepository() *MockEventRepository {
	return &MockEventRepository{
		events:  make(map[string]*domain.ExternalEvent),
		splits:  make(map[string][]*domain.EventSplit),
		reclass: make(map[string][]*domain.Reclassification),
	}
}

// Add seeds an event.
func (m *MockEventRepository) Add(event *domain.ExternalEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *event
	m.events[event.ID] = &c
}

func (m *MockEventRepository) Create(ctx context.Context, event *domain.ExternalEvent) error {
	m.Add(event)
	return nil
}

func (m *MockEventRepository) GetByID(ctx context.Context, id string) (*domain.ExternalEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.events[id]; ok {
		c := *e
		return &c, nil
	}
	return nil, domain.ErrEventNotFound
}

func (m *MockEventRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.ExternalEvent, error) {
	if m.GetByIDForUpdateFunc != nil {
		return m.GetByIDForUpdateFunc(ctx, tx, id)
	}
	return m.GetByID(ctx, id)
}

func (m *MockEventRepository) Update(ctx context.Context, tx usecase.Transaction, event *domain.ExternalEvent) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	previous, ok := m.events[event.ID]
	if !ok {
		return domain.ErrEventNotFound
	}
	c := *event
	m.events[event.ID] = &c
	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.events[event.ID] = previous
	})
	return nil
}

func (m *MockEventRepository) List(ctx context.Context, filter usecase.EventFilter) ([]*domain.ExternalEvent, error) {
	events := m.filter(func(e *domain.ExternalEvent) bool {
		return e.RestaurantID == filter.RestaurantID && (filter.Status == nil || e.Status == *filter.Status)
	})
	if filter.Offset >= len(events) {
		return []*domain.ExternalEvent{}, nil
	}
	events = events[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(events) {
		events = events[:filter.Limit]
	}
	return events, nil
}

func (m *MockEventRepository) ListUnevaluated(ctx context.Context, restaurantID string, limit int) ([]*domain.ExternalEvent, error) {
	events := m.filter(func(e *domain.ExternalEvent) bool {
		return e.RestaurantID == restaurantID && e.Status == domain.EventStatusForReview && e.RuleEvaluatedAt == nil
	})
	return limitEvents(events, limit), nil
}

func (m *MockEventRepository) SetRuleMatch(ctx context.Context, eventID string, ruleID *string, evaluatedAt time.Time) error {
	if m.SetRuleMatchFunc != nil {
		return m.SetRuleMatchFunc(ctx, eventID, ruleID, evaluatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	c := *e
	c.MatchedRuleID = ruleID
	c.RuleEvaluatedAt = &evaluatedAt
	m.events[eventID] = &c
	return nil
}

func (m *MockEventRepository) ListMatched(ctx context.Context, restaurantID string, ruleIDs []string, limit int) ([]*domain.ExternalEvent, error) {
	wanted := make(map[string]bool, len(ruleIDs))
	for _, id := range ruleIDs {
		wanted[id] = true
	}
	events := m.filter(func(e *domain.ExternalEvent) bool {
		return e.RestaurantID == restaurantID && e.Status == domain.EventStatusForReview &&
			e.MatchedRuleID != nil && wanted[*e.MatchedRuleID]
	})
	return limitEvents(events, limit), nil
}

func (m *MockEventRepository) ListPostedBefore(ctx context.Context, restaurantID, cashAccountID string, before time.Time) ([]*domain.ExternalEvent, error) {
	return m.filter(func(e *domain.ExternalEvent) bool {
		return e.RestaurantID == restaurantID && e.CashAccountID == cashAccountID && e.IsPosted() && e.Date.Before(before)
	}), nil
}

func (m *MockEventRepository) ListForReviewBetween(ctx context.Context, restaurantID string, from, to time.Time) ([]*domain.ExternalEvent, error) {
	return m.filter(func(e *domain.ExternalEvent) bool {
		return e.RestaurantID == restaurantID && e.Status == domain.EventStatusForReview &&
			!e.Date.Before(from) && !e.Date.After(to)
	}), nil
}

func (m *MockEventRepository) CreateSplits(ctx context.Context, tx usecase.Transaction, splits []*domain.EventSplit) error {
	if len(splits) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	eventID := splits[0].EventID
	previous := m.splits[eventID]
	m.splits[eventID] = append(append([]*domain.EventSplit(nil), previous...), splits...)
	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.splits[eventID] = previous
	})
	return nil
}

func (m *MockEventRepository) ReleaseSplits(ctx context.Context, tx usecase.Transaction, eventID, reversalEntryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	previous := m.splits[eventID]
	released := make([]*domain.EventSplit, len(previous))
	for i, s := range previous {
		c := *s
		if c.ReversedEntryID == nil {
			c.ReversedEntryID = &reversalEntryID
		}
		released[i] = &c
	}
	m.splits[eventID] = released
	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.splits[eventID] = previous
	})
	return nil
}

func (m *MockEventRepository) ListSplits(ctx context.Context, eventID string) ([]*domain.EventSplit, error) {
	return m.filterSplits(eventID, true), nil
}

// AllSplits returns every split row of the event, released ones included.
func (m *MockEventRepository) AllSplits(eventID string) []*domain.EventSplit {
	return m.filterSplits(eventID, false)
}

func (m *MockEventRepository) filterSplits(eventID string, activeOnly bool) []*domain.EventSplit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.EventSplit, 0, len(m.splits[eventID]))
	for _, s := range m.splits[eventID] {
		if activeOnly && s.ReversedEntryID != nil {
			continue
		}
		c := *s
		out = append(out, &c)
	}
	return out
}

func (m *MockEventRepository) CreateReclassification(ctx context.Context, tx usecase.Transaction, r *domain.Reclassification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	previous := m.reclass[r.EventID]
	m.reclass[r.EventID] = append(append([]*domain.Reclassification(nil), previous...), r)
	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.reclass[r.EventID] = previous
	})
	return nil
}

func (m *MockEventRepository) ListReclassifications(ctx context.Context, tx usecase.Transaction, eventID string) ([]*domain.Reclassification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.Reclassification(nil), m.reclass[eventID]...), nil
}

func (m *MockEventRepository) filter(keep func(e *domain.ExternalEvent) bool) []*domain.ExternalEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := make([]*domain.ExternalEvent, 0)
	for _, e := range m.events {
		if keep(e) {
			c := *e
			events = append(events, &c)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		return events[i].ID < events[j].ID
	})
	return events
}

func limitEvents(events []*domain.ExternalEvent, limit int) []*domain.ExternalEvent {
	if limit > 0 && limit < len(events) {
		return events[:limit]
	}
	return events
}

// MockRuleRepository is a mock implementation of RuleRepository.
type MockRuleRepository struct {
	mu    sync.RWMutex
	rules map[string]*domain.CategorizationRule

	IncrementApplyCountFunc func(ctx context.Context, id string, appliedAt time.Time) error
}

func NewMockRuleRepository() *MockRuleRepository {
	return &MockRuleRepository{
		rules: make(map[string]*domain.CategorizationRule),
	}
}

func (m *MockRuleRepository) Create(ctx context.Context, rule *domain.CategorizationRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *rule
	m.rules[rule.ID] = &c
	return nil
}

func (m *MockRuleRepository) Update(ctx context.Context, rule *domain.CategorizationRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[rule.ID]; !ok {
		return domain.ErrRuleNotFound
	}
	c := *rule
	m.rules[rule.ID] = &c
	return nil
}

func (m *MockRuleRepository) GetByID(ctx context.Context, id string) (*domain.CategorizationRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.rules[id]; ok {
		c := *r
		return &c, nil
	}
	return nil, domain.ErrRuleNotFound
}

func (m *MockRuleRepository) List(ctx context.Context, restaurantID string, includeInactive bool) ([]*domain.CategorizationRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var rules []*domain.CategorizationRule
	for _, r := range m.rules {
		if r.RestaurantID != restaurantID || !includeInactive && !r.IsActive {
			continue
		}
		c := *r
		rules = append(rules, &c)
	}
	domain.SortRules(rules)
	return rules, nil
}

func (m *MockRuleRepository) IncrementMatchCount(ctx context.Context, id string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rules[id]; ok {
		r.MatchCount += int64(n)
	}
	return nil
}

func (m *MockRuleRepository) IncrementApplyCount(ctx context.Context, id string, appliedAt time.Time) error {
	if m.IncrementApplyCountFunc != nil {
		return m.IncrementApplyCountFunc(ctx, id, appliedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rules[id]; ok {
		r.ApplyCount++
		r.LastAppliedAt = &appliedAt
	}
	return nil
}

// MockBoundaryRepository is a mock implementation of BoundaryRepository.
type MockBoundaryRepository struct {
	mu         sync.RWMutex
	boundaries map[string]*domain.ReconciliationBoundary
}

func NewMockBoundaryRepository() *MockBoundaryRepository {
	return &MockBoundaryRepository{
		boundaries: make(map[string]*domain.ReconciliationBoundary),
	}
}

func (m *MockBoundaryRepository) Get(ctx context.Context, restaurantID string) (*domain.ReconciliationBoundary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.boundaries[restaurantID]; ok {
		c := *b
		return &c, nil
	}
	return nil, domain.ErrBoundaryNotFound
}

func (m *MockBoundaryRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, restaurantID string) (*domain.ReconciliationBoundary, error) {
	return m.Get(ctx, restaurantID)
}

func (m *MockBoundaryRepository) Upsert(ctx context.Context, tx usecase.Transaction, boundary *domain.ReconciliationBoundary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	previous, existed := m.boundaries[boundary.RestaurantID]
	c := *boundary
	m.boundaries[boundary.RestaurantID] = &c
	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if existed {
			m.boundaries[boundary.RestaurantID] = previous
		} else {
			delete(m.boundaries, boundary.RestaurantID)
		}
	})
	return nil
}

// MockOutboxRepository is a mock implementation of OutboxRepository.
type MockOutboxRepository struct {
	mu     sync.RWMutex
	events []*domain.OutboxEvent

	CreateFunc func(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	n := len(m.events)
	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if len(m.events) >= n {
			m.events = append(m.events[:n-1], m.events[n:]...)
		}
	})
	return nil
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.OutboxEvent
	for _, e := range m.events {
		if !e.Published {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			e.Published = true
			e.PublishedAt = &publishedAt
		}
	}
	return nil
}

func (m *MockOutboxRepository) ListSignals(ctx context.Context, restaurantID string, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.OutboxEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if e := m.events[i]; e.RestaurantID == restaurantID && e.IsOpsSignal() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[:0]
	for _, e := range m.events {
		if !e.Published || e.PublishedAt == nil || !e.PublishedAt.Before(before) {
			kept = append(kept, e)
		}
	}
	m.events = kept
	return nil
}

// ByType returns stored events of the given type.
func (m *MockOutboxRepository) ByType(eventType string) []*domain.OutboxEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.OutboxEvent
	for _, e := range m.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// MockAuditRepository is a mock implementation of AuditRepository.
type MockAuditRepository struct {
	mu   sync.RWMutex
	logs []*domain.AuditLog
}

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

func (m *MockAuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	return m.CreateTx(ctx, nil, log)
}

func (m *MockAuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	n := len(m.logs)
	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if len(m.logs) >= n {
			m.logs = append(m.logs[:n-1], m.logs[n:]...)
		}
	})
	return nil
}

func (m *MockAuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.AuditLog
	for _, l := range m.logs {
		if filter.RestaurantID != "" && l.RestaurantID != filter.RestaurantID {
			continue
		}
		if filter.Action != "" && l.Action != filter.Action {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (m *MockAuditRepository) GetByResourceID(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.AuditLog
	for _, l := range m.logs {
		if l.ResourceType == resourceType && l.ResourceID == resourceID {
			out = append(out, l)
		}
	}
	return out, nil
}

// ByAction returns stored logs with the given action.
func (m *MockAuditRepository) ByAction(action domain.AuditAction) []*domain.AuditLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.AuditLog
	for _, l := range m.logs {
		if l.Action == action {
			out = append(out, l)
		}
	}
	return out
}

// MockTransactionManager is a mock implementation of TransactionManager.
// Transactions are serialized, standing in for the row locks a real
// database takes.
type MockTransactionManager struct {
	mu sync.Mutex

	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	m.mu.Lock()
	return &MockTransaction{release: m.mu.Unlock}, nil
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	mu        sync.Mutex
	undo      []func()
	committed bool
	once      sync.Once
	release   func()

	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (m *MockTransaction) onRollback(undo func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = append(m.undo, undo)
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		if err := m.CommitFunc(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.committed = true
	m.undo = nil
	m.mu.Unlock()
	m.finish()
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		if err := m.RollbackFunc(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	undo := m.undo
	m.undo = nil
	committed := m.committed
	m.mu.Unlock()
	if !committed {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}
	m.finish()
	return nil
}

func (m *MockTransaction) finish() {
	m.once.Do(func() {
		if m.release != nil {
			m.release()
		}
	})
}

// MockRetrier is a mock implementation of Retrier. It re-runs operations
// that fail with a reference conflict, like the postgres retrier.
type MockRetrier struct {
	MaxAttempts int
	Attempts    int
	mu          sync.Mutex
}

func NewMockRetrier() *MockRetrier {
	return &MockRetrier{MaxAttempts: 3}
}

func (m *MockRetrier) Retry(ctx context.Context, operation func() error) error {
	var err error
	for i := 0; i < m.MaxAttempts; i++ {
		m.mu.Lock()
		m.Attempts++
		m.mu.Unlock()
		if err = operation(); err == nil || !errors.Is(err, domain.ErrReferenceConflict) {
			return err
		}
	}
	return err
}

// MockIDGenerator is a mock implementation of IDGenerator.
type MockIDGenerator struct {
	GenerateFunc func() string
	counter      int
	mu           sync.Mutex
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("mock-id-%05d", m.counter)
}

// MockIdempotencyStore is a mock implementation of IdempotencyStore.
type MockIdempotencyStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	UpdateFunc      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
	Released        []string
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{
		data: make(map[string][]byte),
	}
}

func (m *MockIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if m.CheckAndSetFunc != nil {
		return m.CheckAndSetFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return true, existing, nil
	}
	if response != nil {
		m.data[key] = response
	} else {
		m.data[key] = []byte("processing")
	}
	return false, nil, nil
}

func (m *MockIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = response
	return nil
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.Released = append(m.Released, key)
	return nil
}
