package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/contractlens-backend/internal/platform/logger"
	"github.com/yungbote/contractlens-backend/internal/realtime"
)

// Bus carries realtime messages between instances. Every instance runs one
// forwarder that hands received messages to its local hub.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}

type memoryBus struct {
	log *logger.Logger

	mu       sync.RWMutex
	handlers []func(m realtime.SSEMessage)
}

// NewMemoryBus delivers messages within the process only. Used when no
// Redis address is configured.
func NewMemoryBus(log *logger.Logger) Bus {
	return &memoryBus{log: log.With("service", "MemorySSEBus")}
}

func (b *memoryBus) Publish(_ context.Context, msg realtime.SSEMessage) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.handlers {
		h(msg)
	}
	return nil
}

func (b *memoryBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	b.mu.Lock()
	b.handlers = append(b.handlers, onMsg)
	idx := len(b.handlers) - 1
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if idx < len(b.handlers) {
			b.handlers[idx] = func(realtime.SSEMessage) {}
		}
	}()
	return nil
}

func (b *memoryBus) Close() error { return nil }
