package eventpublisher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/iho/tableledger/internal/domain"
)

func TestRedisPublisherRoutesOpsSignals(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, "events", "ops")
	defer sub.Close()
	for i := 0; i < 2; i++ {
		if _, err := sub.Receive(ctx); err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}
	}

	pub := NewRedisPublisher(client, "events", "ops")

	posted := &domain.OutboxEvent{ID: "o-1", RestaurantID: "rest-1", EventType: domain.EventTypeEntryPosted, AggregateID: "je-1"}
	violation := &domain.OutboxEvent{ID: "o-2", RestaurantID: "rest-1", EventType: domain.EventTypeBoundaryViolation, AggregateID: "rest-1"}

	if err := pub.Publish(ctx, posted); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if err := pub.Publish(ctx, violation); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	counts := map[string][]string{}
	for i := 0; i < 3; i++ {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			t.Fatalf("receive failed: %v", err)
		}
		var decoded Message
		if err := json.Unmarshal([]byte(msg.Payload), &decoded); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		counts[msg.Channel] = append(counts[msg.Channel], decoded.ID)
	}

	if len(counts["events"]) != 2 {
		t.Fatalf("expected both events on the events channel, got %v", counts["events"])
	}
	if len(counts["ops"]) != 1 || counts["ops"][0] != "o-2" {
		t.Fatalf("expected only the violation on the ops channel, got %v", counts["ops"])
	}
}
