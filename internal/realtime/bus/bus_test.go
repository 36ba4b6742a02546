package bus

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/contractlens-backend/internal/platform/logger"
	"github.com/yungbote/contractlens-backend/internal/realtime"
)

func TestMemoryBusForwardsToHub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := realtime.NewSSEHub(logger.NewNop())
	b := NewMemoryBus(logger.NewNop())
	if err := b.StartForwarder(ctx, hub.Broadcast); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	channel := realtime.DocumentChannel(uuid.New())
	client := hub.NewSSEClient()
	hub.AddChannel(client, channel)

	if err := b.Publish(ctx, realtime.SSEMessage{Channel: channel, Event: realtime.SSEEventJobDone}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case msg := <-client.Outbound:
		if msg.Event != realtime.SSEEventJobDone {
			t.Fatalf("event: %s", msg.Event)
		}
	case <-time.After(time.Second):
		t.Fatalf("message not forwarded")
	}
}

// Runs against a real Redis when TEST_REDIS_ADDR is set.
func TestRedisBusRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis bus integration tests")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := NewRedisBus(logger.NewNop(), RedisConfig{Addr: addr, Channel: "contractlens:test:" + uuid.NewString()})
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	defer b.Close()

	got := make(chan realtime.SSEMessage, 1)
	if err := b.StartForwarder(ctx, func(m realtime.SSEMessage) { got <- m }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	want := realtime.SSEMessage{Channel: "document:x", Event: realtime.SSEEventDocumentStatus}
	if err := b.Publish(ctx, want); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case msg := <-got:
		if msg.Channel != want.Channel || msg.Event != want.Event {
			t.Fatalf("got %+v", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("message not received")
	}
}
