package app

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/contractlens-backend/internal/http"
	httpH "github.com/yungbote/contractlens-backend/internal/http/handlers"
	"github.com/yungbote/contractlens-backend/internal/observability"
	"github.com/yungbote/contractlens-backend/internal/platform/logger"
	"github.com/yungbote/contractlens-backend/internal/realtime"
)

type Handlers struct {
	Health    *httpH.HealthHandler
	Document  *httpH.DocumentHandler
	Clause    *httpH.ClauseHandler
	Amendment *httpH.AmendmentHandler
	Analytics *httpH.AnalyticsHandler
	Realtime  *httpH.RealtimeHandler
	Job       *httpH.JobHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, cfg Config, services Services, sseHub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	pipeline := services.Orchestrator
	return Handlers{
		Health:    httpH.NewHealthHandler(db),
		Document:  httpH.NewDocumentHandler(services.Contracts, services.JobService, pipeline, cfg.MaxUploadBytes, cfg.DefaultRiskThreshold),
		Clause:    httpH.NewClauseHandler(services.Contracts, pipeline),
		Amendment: httpH.NewAmendmentHandler(services.Contracts, pipeline),
		Analytics: httpH.NewAnalyticsHandler(services.Contracts),
		Realtime:  httpH.NewRealtimeHandler(log, sseHub, services.Contracts),
		Job:       httpH.NewJobHandler(services.JobService),
	}
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers) *gin.Engine {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return http.NewRouter(http.RouterConfig{
		Log:              log,
		Metrics:          metrics,
		ServiceName:      serviceName,
		AllowedOrigins:   cfg.AllowedOrigins,
		HealthHandler:    handlers.Health,
		DocumentHandler:  handlers.Document,
		ClauseHandler:    handlers.Clause,
		AmendmentHandler: handlers.Amendment,
		AnalyticsHandler: handlers.Analytics,
		RealtimeHandler:  handlers.Realtime,
		JobHandler:       handlers.Job,
	})
}
