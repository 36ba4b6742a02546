package services

import (
	"context"

	"github.com/yungbote/contractlens-backend/internal/platform/logger"
	"github.com/yungbote/contractlens-backend/internal/realtime"
	"github.com/yungbote/contractlens-backend/internal/realtime/bus"
)

type SSEEmitter interface {
	Emit(ctx context.Context, msg realtime.SSEMessage)
}

// BusEmitter publishes through the realtime bus so every instance's hub sees the message.
type BusEmitter struct {
	Bus bus.Bus
	Log *logger.Logger
}

func (e *BusEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	if e == nil || e.Bus == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := e.Bus.Publish(context.WithoutCancel(ctx), msg); err != nil && e.Log != nil {
		e.Log.Warn("realtime publish failed", "event", msg.Event, "channel", msg.Channel, "error", err)
	}
}

// HubEmitter broadcasts to the local hub only.
type HubEmitter struct{ Hub *realtime.SSEHub }

func (e *HubEmitter) Emit(_ context.Context, msg realtime.SSEMessage) {
	if e == nil || e.Hub == nil {
		return
	}
	e.Hub.Broadcast(msg)
}
