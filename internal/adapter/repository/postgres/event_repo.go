package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/infrastructure/postgres/generated"
	"github.com/iho/tableledger/internal/usecase"
)

const eventColumns = `id, restaurant_id, source, cash_account_id, amount, event_date, description, item_name, payee,
	counterparty_id, status, category_account_id, is_split, is_transfer, transfer_pair_id, is_reconciled,
	matched_rule_id, rule_evaluated_at, note, excluded_reason, created_at, updated_at`

// EventRepository implements usecase.EventRepository.
type EventRepository struct {
	db generated.DBTX
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db generated.DBTX) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new external event.
func (r *EventRepository) Create(ctx context.Context, event *domain.ExternalEvent) error {
	query := `
		INSERT INTO external_events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`

	_, err := r.db.Exec(ctx, query,
		event.ID,
		event.RestaurantID,
		string(event.Source),
		event.CashAccountID,
		decimalToNumeric(event.Amount),
		timeToPgDate(event.Date),
		event.Description,
		event.ItemName,
		event.Payee,
		stringPtrToText(event.CounterpartyID),
		string(event.Status),
		stringPtrToText(event.CategoryAccountID),
		event.IsSplit,
		event.IsTransfer,
		stringPtrToText(event.TransferPairID),
		event.IsReconciled,
		stringPtrToText(event.MatchedRuleID),
		timePtrToPgTimestamptz(event.RuleEvaluatedAt),
		event.Note,
		event.ExcludedReason,
		timeToPgTimestamptz(event.CreatedAt),
		timeToPgTimestamptz(event.UpdatedAt),
	)

	return err
}

// GetByID retrieves an event by ID.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*domain.ExternalEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM external_events WHERE id = $1`

	return r.getOne(ctx, r.db, query, id)
}

// GetByIDForUpdate retrieves an event and locks its row until tx ends.
func (r *EventRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.ExternalEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM external_events WHERE id = $1 FOR UPDATE`

	return r.getOne(ctx, conn(r.db, tx), query, id)
}

func (r *EventRepository) getOne(ctx context.Context, db generated.DBTX, query string, args ...any) (*domain.ExternalEvent, error) {
	event, err := scanEvent(db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, err
	}

	return event, nil
}

// Update writes the event's mutable state.
func (r *EventRepository) Update(ctx context.Context, tx usecase.Transaction, event *domain.ExternalEvent) error {
	query := `
		UPDATE external_events SET
			status = $2, category_account_id = $3, is_split = $4, is_transfer = $5, transfer_pair_id = $6,
			is_reconciled = $7, matched_rule_id = $8, rule_evaluated_at = $9, note = $10, excluded_reason = $11,
			updated_at = $12
		WHERE id = $1
	`

	tag, err := conn(r.db, tx).Exec(ctx, query,
		event.ID,
		string(event.Status),
		stringPtrToText(event.CategoryAccountID),
		event.IsSplit,
		event.IsTransfer,
		stringPtrToText(event.TransferPairID),
		event.IsReconciled,
		stringPtrToText(event.MatchedRuleID),
		timePtrToPgTimestamptz(event.RuleEvaluatedAt),
		event.Note,
		event.ExcludedReason,
		timeToPgTimestamptz(event.UpdatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}

	return nil
}

// List lists events by restaurant and optional status.
func (r *EventRepository) List(ctx context.Context, filter usecase.EventFilter) ([]*domain.ExternalEvent, error) {
	var status pgtype.Text
	if filter.Status != nil {
		status = pgtype.Text{String: string(*filter.Status), Valid: true}
	}

	query := `
		SELECT ` + eventColumns + ` FROM external_events
		WHERE restaurant_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY event_date, id
		LIMIT NULLIF($3::int, 0) OFFSET $4
	`

	return r.queryEvents(ctx, query, filter.RestaurantID, status, filter.Limit, filter.Offset)
}

// ListUnevaluated returns for_review events the rule engine has not seen.
func (r *EventRepository) ListUnevaluated(ctx context.Context, restaurantID string, limit int) ([]*domain.ExternalEvent, error) {
	query := `
		SELECT ` + eventColumns + ` FROM external_events
		WHERE restaurant_id = $1 AND status = 'for_review' AND rule_evaluated_at IS NULL
		ORDER BY event_date, id
		LIMIT NULLIF($2::int, 0)
	`

	return r.queryEvents(ctx, query, restaurantID, limit)
}

// SetRuleMatch stores the rule engine's verdict for an event.
func (r *EventRepository) SetRuleMatch(ctx context.Context, eventID string, ruleID *string, evaluatedAt time.Time) error {
	query := `UPDATE external_events SET matched_rule_id = $2, rule_evaluated_at = $3 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, eventID, stringPtrToText(ruleID), timeToPgTimestamptz(evaluatedAt))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}

	return nil
}

// ListMatched returns for_review events whose stored match is one of ruleIDs.
func (r *EventRepository) ListMatched(ctx context.Context, restaurantID string, ruleIDs []string, limit int) ([]*domain.ExternalEvent, error) {
	query := `
		SELECT ` + eventColumns + ` FROM external_events
		WHERE restaurant_id = $1 AND status = 'for_review' AND matched_rule_id = ANY($2::text[])
		ORDER BY event_date, id
		LIMIT NULLIF($3::int, 0)
	`

	return r.queryEvents(ctx, query, restaurantID, ruleIDs, limit)
}

// ListPostedBefore returns categorized or reconciled events on the cash
// account dated strictly before the given date.
func (r *EventRepository) ListPostedBefore(ctx context.Context, restaurantID, cashAccountID string, before time.Time) ([]*domain.ExternalEvent, error) {
	query := `
		SELECT ` + eventColumns + ` FROM external_events
		WHERE restaurant_id = $1 AND cash_account_id = $2
			AND status IN ('categorized', 'reconciled') AND event_date < $3
		ORDER BY event_date, id
	`

	return r.queryEvents(ctx, query, restaurantID, cashAccountID, timeToPgDate(before))
}

// ListForReviewBetween returns for_review events dated within [from, to].
func (r *EventRepository) ListForReviewBetween(ctx context.Context, restaurantID string, from, to time.Time) ([]*domain.ExternalEvent, error) {
	query := `
		SELECT ` + eventColumns + ` FROM external_events
		WHERE restaurant_id = $1 AND status = 'for_review' AND event_date BETWEEN $2 AND $3
		ORDER BY event_date, id
	`

	return r.queryEvents(ctx, query, restaurantID, timeToPgDate(from), timeToPgDate(to))
}

func (r *EventRepository) queryEvents(ctx context.Context, query string, args ...any) ([]*domain.ExternalEvent, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*domain.ExternalEvent, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// CreateSplits inserts the allocation rows of a split event.
func (r *EventRepository) CreateSplits(ctx context.Context, tx usecase.Transaction, splits []*domain.EventSplit) error {
	if len(splits) == 0 {
		return nil
	}

	query := `
		INSERT INTO event_splits (id, event_id, restaurant_id, account_id, amount, description, entry_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	db := conn(r.db, tx)
	for _, s := range splits {
		_, err := db.Exec(ctx, query,
			s.ID,
			s.EventID,
			s.RestaurantID,
			s.AccountID,
			decimalToNumeric(s.Amount),
			s.Description,
			s.EntryID,
			timeToPgTimestamptz(s.CreatedAt),
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// ReleaseSplits marks an event's active allocation rows as reversed.
func (r *EventRepository) ReleaseSplits(ctx context.Context, tx usecase.Transaction, eventID, reversalEntryID string) error {
	query := `
		UPDATE event_splits
		SET reversed_entry_id = $2
		WHERE event_id = $1 AND reversed_entry_id IS NULL
	`

	_, err := conn(r.db, tx).Exec(ctx, query, eventID, reversalEntryID)
	return err
}

// ListSplits lists an event's active allocation rows.
func (r *EventRepository) ListSplits(ctx context.Context, eventID string) ([]*domain.EventSplit, error) {
	query := `
		SELECT id, event_id, restaurant_id, account_id, amount, description, entry_id, created_at
		FROM event_splits
		WHERE event_id = $1 AND reversed_entry_id IS NULL
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	splits := make([]*domain.EventSplit, 0)
	for rows.Next() {
		var (
			s         domain.EventSplit
			amount    pgtype.Numeric
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&s.ID, &s.EventID, &s.RestaurantID, &s.AccountID, &amount, &s.Description, &s.EntryID, &createdAt); err != nil {
			return nil, err
		}
		s.Amount = numericToDecimal(amount)
		s.CreatedAt = createdAt.Time
		splits = append(splits, &s)
	}

	return splits, rows.Err()
}

// CreateReclassification records a category change.
func (r *EventRepository) CreateReclassification(ctx context.Context, tx usecase.Transaction, rc *domain.Reclassification) error {
	query := `
		INSERT INTO reclassifications (id, restaurant_id, event_id, old_account_id, new_account_id, reason, entry_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := conn(r.db, tx).Exec(ctx, query,
		rc.ID,
		rc.RestaurantID,
		rc.EventID,
		rc.OldAccountID,
		rc.NewAccountID,
		rc.Reason,
		rc.EntryID,
		rc.CreatedBy,
		timeToPgTimestamptz(rc.CreatedAt),
	)

	return err
}

// ListReclassifications lists an event's category changes, oldest first.
func (r *EventRepository) ListReclassifications(ctx context.Context, tx usecase.Transaction, eventID string) ([]*domain.Reclassification, error) {
	query := `
		SELECT id, restaurant_id, event_id, old_account_id, new_account_id, reason, entry_id, created_by, created_at
		FROM reclassifications
		WHERE event_id = $1
		ORDER BY created_at, id
	`

	rows, err := conn(r.db, tx).Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.Reclassification, 0)
	for rows.Next() {
		var (
			rc        domain.Reclassification
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&rc.ID, &rc.RestaurantID, &rc.EventID, &rc.OldAccountID, &rc.NewAccountID,
			&rc.Reason, &rc.EntryID, &rc.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		rc.CreatedAt = createdAt.Time
		out = append(out, &rc)
	}

	return out, rows.Err()
}

func scanEvent(row pgx.Row) (*domain.ExternalEvent, error) {
	var (
		e                                                      domain.ExternalEvent
		source, status                                         string
		amount                                                 pgtype.Numeric
		date                                                   pgtype.Date
		counterpartyID, categoryID, transferPairID, matchedRule pgtype.Text
		evaluatedAt, createdAt, updatedAt                      pgtype.Timestamptz
	)

	err := row.Scan(
		&e.ID,
		&e.RestaurantID,
		&source,
		&e.CashAccountID,
		&amount,
		&date,
		&e.Description,
		&e.ItemName,
		&e.Payee,
		&counterpartyID,
		&status,
		&categoryID,
		&e.IsSplit,
		&e.IsTransfer,
		&transferPairID,
		&e.IsReconciled,
		&matchedRule,
		&evaluatedAt,
		&e.Note,
		&e.ExcludedReason,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Source = domain.EventSource(source)
	e.Status = domain.EventStatus(status)
	e.Amount = numericToDecimal(amount)
	e.Date = pgDateToTime(date)
	e.CounterpartyID = textToStringPtr(counterpartyID)
	e.CategoryAccountID = textToStringPtr(categoryID)
	e.TransferPairID = textToStringPtr(transferPairID)
	e.MatchedRuleID = textToStringPtr(matchedRule)
	e.RuleEvaluatedAt = pgTimestamptzToTimePtr(evaluatedAt)
	e.CreatedAt = createdAt.Time
	e.UpdatedAt = updatedAt.Time

	return &e, nil
}
