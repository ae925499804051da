package eventpublisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/tableledger/internal/domain"
)

// Message is the wire form of a published outbox event.
type Message struct {
	ID            string         `json:"id"`
	RestaurantID  string         `json:"restaurant_id"`
	EventType     string         `json:"event_type"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   string         `json:"aggregate_id"`
	Payload       map[string]any `json:"payload"`
	CreatedAt     time.Time      `json:"created_at"`
}

// RedisPublisher publishes events on a Redis pub/sub channel. Ops signals
// (rule batch failures, boundary violations) are also sent to the ops channel.
type RedisPublisher struct {
	client        *redis.Client
	eventsChannel string
	opsChannel    string
}

// NewRedisPublisher creates a new RedisPublisher.
func NewRedisPublisher(client *redis.Client, eventsChannel, opsChannel string) *RedisPublisher {
	return &RedisPublisher{
		client:        client,
		eventsChannel: eventsChannel,
		opsChannel:    opsChannel,
	}
}

// Publish sends the event.
func (p *RedisPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	data, err := json.Marshal(Message{
		ID:            event.ID,
		RestaurantID:  event.RestaurantID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		CreatedAt:     event.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}

	if err := p.client.Publish(ctx, p.eventsChannel, data).Err(); err != nil {
		return err
	}

	if event.IsOpsSignal() && p.opsChannel != "" {
		if err := p.client.Publish(ctx, p.opsChannel, data).Err(); err != nil {
			return err
		}
	}

	return nil
}
