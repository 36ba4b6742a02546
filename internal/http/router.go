package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/contractlens-backend/internal/http/handlers"
	httpMW "github.com/yungbote/contractlens-backend/internal/http/middleware"
	"github.com/yungbote/contractlens-backend/internal/observability"
	"github.com/yungbote/contractlens-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	AllowedOrigins []string

	DocumentHandler  *httpH.DocumentHandler
	ClauseHandler    *httpH.ClauseHandler
	AmendmentHandler *httpH.AmendmentHandler
	AnalyticsHandler *httpH.AnalyticsHandler
	RealtimeHandler  *httpH.RealtimeHandler
	JobHandler       *httpH.JobHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	if cfg.Metrics != nil {
		r.Use(httpMW.Metrics(cfg.Metrics))
	}
	r.Use(httpMW.CORS(cfg.AllowedOrigins))
	r.Use(gin.Recovery())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		if cfg.DocumentHandler != nil {
			api.POST("/documents", cfg.DocumentHandler.Upload)
			api.GET("/documents", cfg.DocumentHandler.List)
			api.GET("/documents/:id", cfg.DocumentHandler.Get)
			api.GET("/documents/:id/status", cfg.DocumentHandler.Status)
			api.DELETE("/documents/:id", cfg.DocumentHandler.Delete)
			api.POST("/documents/:id/analyze", cfg.DocumentHandler.Analyze)
			api.POST("/documents/:id/assess-risks", cfg.DocumentHandler.AssessRisks)
			api.POST("/documents/:id/amendments/generate", cfg.DocumentHandler.GenerateAmendments)
			api.GET("/documents/:id/clauses", cfg.DocumentHandler.ListClauses)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			api.GET("/documents/:id/events", cfg.RealtimeHandler.DocumentEvents)
		}

		if cfg.ClauseHandler != nil {
			api.GET("/clauses/:id", cfg.ClauseHandler.Get)
			api.DELETE("/clauses/:id", cfg.ClauseHandler.Delete)
			api.POST("/clauses/:id/assess-risk", cfg.ClauseHandler.AssessRisk)
			api.POST("/clauses/:id/amendments/generate", cfg.ClauseHandler.GenerateAmendment)
		}

		if cfg.AmendmentHandler != nil {
			api.GET("/amendments", cfg.AmendmentHandler.List)
			api.GET("/amendments/:id", cfg.AmendmentHandler.Get)
			api.PATCH("/amendments/:id/status", cfg.AmendmentHandler.UpdateStatus)
			api.DELETE("/amendments/:id", cfg.AmendmentHandler.Delete)
		}

		if cfg.AnalyticsHandler != nil {
			api.GET("/analytics/stats", cfg.AnalyticsHandler.Stats)
			api.GET("/analytics", cfg.AnalyticsHandler.Breakdown)
		}

		// Job
		if cfg.JobHandler != nil {
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
		}
	}

	return r
}
