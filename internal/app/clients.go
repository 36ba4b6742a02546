package app

import (
	"fmt"

	"github.com/yungbote/contractlens-backend/internal/platform/filestore"
	"github.com/yungbote/contractlens-backend/internal/platform/gcp"
	"github.com/yungbote/contractlens-backend/internal/platform/logger"
	"github.com/yungbote/contractlens-backend/internal/platform/openai"
	"github.com/yungbote/contractlens-backend/internal/realtime/bus"
)

type Clients struct {
	Model       openai.Client
	Files       filestore.Store
	GcpDocument gcp.Document
	Bus         bus.Bus
	RedisBus    *bus.RedisBus
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Realtime bus: Redis when configured, in-process otherwise.
	var (
		b        bus.Bus
		redisBus *bus.RedisBus
	)
	if cfg.Redis.Addr != "" {
		rb, err := bus.NewRedisBus(log, cfg.Redis)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis SSE bus: %w", err)
		}
		b, redisBus = rb, rb
	} else {
		if cfg.RunServer != cfg.RunWorker {
			log.Warn("REDIS_ADDR unset; events from a split worker will not reach API clients")
		}
		b = bus.NewMemoryBus(log)
	}

	files, err := filestore.New(log, cfg.Storage)
	if err != nil {
		_ = b.Close()
		return Clients{}, fmt.Errorf("init file store: %w", err)
	}

	model, err := openai.NewClient(log)
	if err != nil {
		_ = b.Close()
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	var document gcp.Document
	if cfg.DocumentAI.Enabled() {
		document, err = gcp.NewDocument(log, cfg.DocumentAI)
		if err != nil {
			_ = b.Close()
			return Clients{}, fmt.Errorf("init document client: %w", err)
		}
	} else {
		log.Warn("Document AI not configured; PDF uploads will fail extraction")
	}

	return Clients{
		Model:       model,
		Files:       files,
		GcpDocument: document,
		Bus:         b,
		RedisBus:    redisBus,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.GcpDocument != nil {
		_ = c.GcpDocument.Close()
	}
	if closer, ok := c.Files.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}
