package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/infrastructure/postgres/generated"
	"github.com/iho/tableledger/internal/usecase"
)

// OutboxRepository stores domain events next to the postings that caused
// them. The relay in eventpublisher drains it.
type OutboxRepository struct {
	db generated.DBTX
	q  *generated.Queries
}

func NewOutboxRepository(db generated.DBTX) *OutboxRepository {
	return &OutboxRepository{db: db, q: generated.New(db)}
}

// Create writes the event inside tx; it becomes visible to the relay only
// when tx commits.
func (r *OutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event.EventType, err)
	}

	return queries(r.db, tx).CreateOutboxEvent(ctx, generated.CreateOutboxEventParams{
		ID:            event.ID,
		RestaurantID:  event.RestaurantID,
		AggregateID:   event.AggregateID,
		AggregateType: event.AggregateType,
		EventType:     event.EventType,
		Payload:       payload,
		CreatedAt:     timeToPgTimestamptz(event.CreatedAt),
		Published:     event.Published,
	})
}

// GetUnpublished returns the oldest pending events.
func (r *OutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := r.q.GetUnpublishedEvents(ctx, int32(limit))
	if err != nil {
		return nil, err
	}
	return outboxEvents(rows), nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	return r.q.MarkEventPublished(ctx, generated.MarkEventPublishedParams{
		ID:          id,
		PublishedAt: timeToPgTimestamptz(publishedAt),
	})
}

// ListSignals returns the restaurant's batch failures and boundary
// violations/adjustments, newest first, published or not.
func (r *OutboxRepository) ListSignals(ctx context.Context, restaurantID string, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := r.q.ListRestaurantEvents(ctx, generated.ListRestaurantEventsParams{
		RestaurantID: restaurantID,
		EventTypes:   domain.OpsSignalTypes,
		Limit:        int32(limit),
	})
	if err != nil {
		return nil, err
	}
	return outboxEvents(rows), nil
}

// DeletePublished prunes events the relay published before the cutoff.
func (r *OutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	return r.q.DeletePublishedEvents(ctx, timeToPgTimestamptz(before))
}

func outboxEvents(rows []generated.OutboxEvent) []*domain.OutboxEvent {
	events := make([]*domain.OutboxEvent, len(rows))
	for i, row := range rows {
		// payloads are written by Create, a decode failure leaves it nil
		var payload map[string]any
		_ = json.Unmarshal(row.Payload, &payload)

		events[i] = &domain.OutboxEvent{
			ID:            row.ID,
			RestaurantID:  row.RestaurantID,
			AggregateID:   row.AggregateID,
			AggregateType: row.AggregateType,
			EventType:     row.EventType,
			Payload:       payload,
			CreatedAt:     row.CreatedAt.Time,
			PublishedAt:   pgTimestamptzToTimePtr(row.PublishedAt),
			Published:     row.Published,
		}
	}
	return events
}
