package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/contractlens-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *GaugeVec

	llmRequests *CounterVec
	llmLatency  *HistogramVec
	llmTokens   *CounterVec

	stageRuns    *CounterVec
	stageLatency *HistogramVec
	decodeSkips  *CounterVec

	jobRuns    *CounterVec
	jobLatency *HistogramVec
	queueDepth *GaugeVec

	documentsByStatus *GaugeVec
	dbStats           *GaugeVec
	redisUp           *GaugeVec

	scrapeInterval time.Duration
}

var (
	initMu   sync.Mutex
	instance *Metrics
)

// Current returns the process-wide metrics, or nil when metrics are disabled.
// Every Metrics method is nil-safe.
func Current() *Metrics {
	initMu.Lock()
	defer initMu.Unlock()
	return instance
}

// Init creates the process-wide metrics registry. Calling it again returns the existing one.
func Init(enabled bool, scrapeInterval time.Duration) *Metrics {
	if !enabled {
		return nil
	}
	initMu.Lock()
	defer initMu.Unlock()
	if instance != nil {
		return instance
	}
	instance = newMetrics(scrapeInterval)
	return instance
}

func newMetrics(scrapeInterval time.Duration) *Metrics {
	if scrapeInterval <= 0 {
		scrapeInterval = 10 * time.Second
	}
	latencyBuckets := []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}
	llmBuckets := []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 180, 300}
	return &Metrics{
		apiRequests: NewCounterVec("cl_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("cl_api_request_duration_seconds", "API request latency.", []string{"method", "route"}, latencyBuckets),
		apiInflight: NewGaugeVec("cl_api_inflight_requests", "In-flight API requests.", nil),

		llmRequests: NewCounterVec("cl_llm_requests_total", "Model requests by model/endpoint/status.", []string{"model", "endpoint", "status"}),
		llmLatency:  NewHistogramVec("cl_llm_request_duration_seconds", "Model request latency including retries.", []string{"model", "endpoint"}, llmBuckets),
		llmTokens:   NewCounterVec("cl_llm_tokens_total", "Model tokens by model/kind.", []string{"model", "kind"}),

		stageRuns:    NewCounterVec("cl_stage_runs_total", "Model-backed stage invocations by stage/status.", []string{"stage", "status"}),
		stageLatency: NewHistogramVec("cl_stage_duration_seconds", "Model-backed stage latency.", []string{"stage"}, llmBuckets),
		decodeSkips:  NewCounterVec("cl_decode_skipped_items_total", "Malformed list items dropped during normalization.", []string{"stage"}),

		jobRuns:    NewCounterVec("cl_job_runs_total", "Finished job runs by type/status.", []string{"job_type", "status"}),
		jobLatency: NewHistogramVec("cl_job_duration_seconds", "Job run latency.", []string{"job_type"}, llmBuckets),
		queueDepth: NewGaugeVec("cl_job_queue_depth", "Job runs by status.", []string{"status"}),

		documentsByStatus: NewGaugeVec("cl_documents", "Documents by lifecycle status.", []string{"status"}),
		dbStats:           NewGaugeVec("cl_db_pool", "database/sql pool stats.", []string{"stat"}),
		redisUp:           NewGaugeVec("cl_redis_up", "Redis reachability (1 up, 0 down).", nil),

		scrapeInterval: scrapeInterval,
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.stageRuns, m.stageLatency, m.decodeSkips,
		m.jobRuns, m.jobLatency, m.queueDepth,
		m.documentsByStatus, m.dbStats, m.redisUp,
	}
	for _, wr := range writers {
		if err := wr.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflight(delta float64) {
	if m == nil {
		return
	}
	m.apiInflight.Add(delta)
}

func (m *Metrics) ObserveLLMRequest(model, endpoint, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	model = strings.TrimSpace(model)
	m.llmRequests.Inc(model, endpoint, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), model, endpoint)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), model, "input")
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), model, "output")
	}
}

func (m *Metrics) ObserveStage(stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.stageRuns.Inc(stage, status)
	m.stageLatency.Observe(dur.Seconds(), stage)
}

func (m *Metrics) StageRuns(stage, status string) float64 {
	if m == nil {
		return 0
	}
	return m.stageRuns.Value(stage, status)
}

func (m *Metrics) AddDecodeSkips(stage string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.decodeSkips.Add(float64(n), stage)
}

func (m *Metrics) ObserveJob(jobType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.Inc(jobType, status)
	m.jobLatency.Observe(dur.Seconds(), jobType)
}

// StartDBCollector samples pool stats, job queue depth and document lifecycle counts.
func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.collectDB(ctx, log, db)
			}
		}
	}()
}

type statusCount struct {
	Status string
	Count  int64
}

func (m *Metrics) collectDB(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		stats := sqlDB.Stats()
		m.dbStats.Set(float64(stats.OpenConnections), "open_connections")
		m.dbStats.Set(float64(stats.InUse), "in_use")
		m.dbStats.Set(float64(stats.Idle), "idle")
		m.dbStats.Set(float64(stats.WaitCount), "wait_count")
	}
	for table, gauge := range map[string]*GaugeVec{"job_run": m.queueDepth, "document": m.documentsByStatus} {
		var rows []statusCount
		if err := db.WithContext(ctx).Table(table).Select("status, count(*) as count").Group("status").Scan(&rows).Error; err != nil {
			if log != nil {
				log.Warn("metrics: status count query failed", "table", table, "error", err)
			}
			continue
		}
		for _, row := range rows {
			gauge.Set(float64(row.Count), row.Status)
		}
	}
}

// StartRedisCollector pings the realtime bus backend.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
			}
		}
	}()
}
