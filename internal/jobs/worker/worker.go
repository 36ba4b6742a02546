package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	jobrepos "github.com/yungbote/contractlens-backend/internal/data/repos/jobs"
	"github.com/yungbote/contractlens-backend/internal/domain/jobs"
	"github.com/yungbote/contractlens-backend/internal/jobs/runtime"
	"github.com/yungbote/contractlens-backend/internal/observability"
	"github.com/yungbote/contractlens-backend/internal/platform/dbctx"
	"github.com/yungbote/contractlens-backend/internal/platform/envutil"
	"github.com/yungbote/contractlens-backend/internal/platform/logger"
	"github.com/yungbote/contractlens-backend/internal/services"
)

type Config struct {
	Concurrency  int
	PollInterval time.Duration
	MaxAttempts  int
	RetryDelay   time.Duration
	StaleRunning time.Duration
	// Heartbeat defaults to a third of StaleRunning.
	Heartbeat    time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Concurrency:  envutil.Int("WORKER_CONCURRENCY", 4),
		PollInterval: envutil.Duration("WORKER_POLL_INTERVAL", time.Second),
		MaxAttempts:  envutil.Int("JOB_MAX_ATTEMPTS", 1),
		RetryDelay:   envutil.Duration("JOB_RETRY_DELAY", 30*time.Second),
		StaleRunning: envutil.Duration("JOB_STALE_RUNNING", 30*time.Minute),
		Heartbeat:    envutil.Duration("JOB_HEARTBEAT_INTERVAL", 0),
	}
}

func (c Config) normalized() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.StaleRunning <= 0 {
		c.StaleRunning = 30 * time.Minute
	}
	if c.Heartbeat <= 0 || c.Heartbeat >= c.StaleRunning {
		c.Heartbeat = c.StaleRunning / 3
	}
	return c
}

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     jobrepos.JobRunRepo
	registry *runtime.Registry
	notify   services.JobNotifier
	cfg      Config
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo jobrepos.JobRunRepo, registry *runtime.Registry, notify services.JobNotifier, cfg Config) *Worker {
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
		cfg:      cfg.normalized(),
	}
}

// Run starts the pool and blocks until ctx is done and every loop has returned.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting job worker pool",
		"concurrency", w.cfg.Concurrency,
		"max_attempts", w.cfg.MaxAttempts,
		"job_types", w.registry.Types(),
	)
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.runLoop(ctx, workerID)
		}(i + 1)
	}
	wg.Wait()
	return nil
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// drain the queue before waiting for the next tick
			for ctx.Err() == nil && w.RunOnce(ctx, workerID) {
			}
		}
	}
}

// RunOnce reaps stale runs, then claims and executes at most one job.
// It reports whether a job was executed.
func (w *Worker) RunOnce(ctx context.Context, workerID int) bool {
	w.reapStale(ctx, workerID)

	job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx, Tx: w.db}, w.cfg.MaxAttempts, w.cfg.RetryDelay, w.cfg.StaleRunning)
	if err != nil {
		w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
		return false
	}
	if job == nil {
		return false
	}
	w.execute(ctx, workerID, job)
	return true
}

func (w *Worker) reapStale(ctx context.Context, workerID int) {
	stale, err := w.repo.FailStale(dbctx.Context{Ctx: ctx, Tx: w.db}, w.cfg.MaxAttempts, w.cfg.StaleRunning)
	if err != nil {
		w.log.Warn("FailStale failed", "worker_id", workerID, "error", err)
		return
	}
	for _, job := range stale {
		w.log.Warn("Abandoned stale job", "worker_id", workerID, "job_id", job.ID, "job_type", job.JobType)
		if w.notify != nil {
			w.notify.JobFailed(job, job.Stage, job.Error)
		}
		observability.Current().ObserveJob(job.JobType, jobs.StatusFailed, 0)
		h, ok := w.registry.Get(job.JobType)
		if !ok {
			continue
		}
		if ab, ok := h.(runtime.Abandoner); ok {
			if err := ab.Abandon(ctx, job); err != nil {
				w.log.Warn("Abandon hook failed", "job_id", job.ID, "job_type", job.JobType, "error", err)
			}
		}
	}
}

func (w *Worker) execute(ctx context.Context, workerID int, job *jobs.JobRun) {
	start := time.Now()
	jc := runtime.NewContext(ctx, w.db, job, w.repo, w.notify)
	defer func() {
		observability.Current().ObserveJob(job.JobType, job.Status, time.Since(start))
	}()

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Warn("No handler registered for job_type",
			"worker_id", workerID,
			"job_type", job.JobType,
			"job_id", job.ID,
		)
		jc.Fail("dispatch", &missingHandlerError{JobType: job.JobType})
		return
	}

	stopBeat := w.heartbeat(ctx, workerID, job)
	defer stopBeat()

	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("Job handler panic",
					"worker_id", workerID,
					"job_id", job.ID,
					"job_type", job.JobType,
					"panic", r,
				)
				jc.Fail("panic", errFromRecover(r))
			}
		}()

		if runErr := h.Run(jc); runErr != nil {
			jc.Fail("run", runErr)
			return
		}
		if !jc.Finished() {
			jc.Succeed("done", nil)
		}
	}()
}

// heartbeat keeps a claimed run's heartbeat_at fresh while its handler runs so
// the stale sweep only reaps runs whose worker is gone. The returned func stops
// the ticker and waits for it to exit.
func (w *Worker) heartbeat(ctx context.Context, workerID int, job *jobs.JobRun) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(w.cfg.Heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.repo.Heartbeat(dbctx.Context{Ctx: ctx, Tx: w.db}, job.ID); err != nil {
					w.log.Warn("Job heartbeat failed", "worker_id", workerID, "job_id", job.ID, "error", err)
				}
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
