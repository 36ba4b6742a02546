package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	jobrepos "github.com/yungbote/contractlens-backend/internal/data/repos/jobs"
	"github.com/yungbote/contractlens-backend/internal/data/repos/testutil"
	"github.com/yungbote/contractlens-backend/internal/domain/jobs"
	"github.com/yungbote/contractlens-backend/internal/jobs/runtime"
	"github.com/yungbote/contractlens-backend/internal/platform/dbctx"
)

type fakeHandler struct {
	jobType   string
	run       func(jc *runtime.Context) error
	abandoned []uuid.UUID
}

func (h *fakeHandler) Type() string { return h.jobType }

func (h *fakeHandler) Run(jc *runtime.Context) error { return h.run(jc) }

func (h *fakeHandler) Abandon(_ context.Context, job *jobs.JobRun) error {
	h.abandoned = append(h.abandoned, job.ID)
	return nil
}

type recordingNotifier struct {
	created, done int
	failed        []string
}

func (n *recordingNotifier) JobCreated(*jobs.JobRun) { n.created++ }

func (n *recordingNotifier) JobProgress(*jobs.JobRun, string, int, string) {}

func (n *recordingNotifier) JobFailed(_ *jobs.JobRun, stage string, _ string) {
	n.failed = append(n.failed, stage)
}

func (n *recordingNotifier) JobDone(*jobs.JobRun) { n.done++ }

func seedJob(t *testing.T, db *gorm.DB, jobType string) *jobs.JobRun {
	t.Helper()
	entityID := uuid.New()
	job := &jobs.JobRun{
		JobType:    jobType,
		EntityType: jobs.EntityTypeDocument,
		EntityID:   &entityID,
		Payload:    datatypes.JSON([]byte(`{"document_id":"` + entityID.String() + `"}`)),
		Result:     datatypes.JSON([]byte(`{}`)),
	}
	if err := db.Create(job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return job
}

func newTestWorker(t *testing.T, db *gorm.DB, handlers ...runtime.Handler) (*Worker, jobrepos.JobRunRepo, *recordingNotifier) {
	t.Helper()
	repo := jobrepos.NewJobRunRepo(db, testutil.Logger(t))
	reg := runtime.NewRegistry()
	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	notify := &recordingNotifier{}
	w := NewWorker(db, testutil.Logger(t), repo, reg, notify, Config{Concurrency: 1, MaxAttempts: 1, StaleRunning: time.Minute})
	return w, repo, notify
}

func reload(t *testing.T, repo jobrepos.JobRunRepo, id uuid.UUID) *jobs.JobRun {
	t.Helper()
	job, err := repo.GetByID(dbctx.New(context.Background()), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return job
}

func TestRunOnceOutcomes(t *testing.T) {
	cases := []struct {
		name   string
		run    func(jc *runtime.Context) error
		status string
		stage  string
	}{
		{
			name: "explicit succeed",
			run: func(jc *runtime.Context) error {
				jc.Progress("working", 50, "halfway")
				jc.Succeed("done", map[string]any{"ok": true})
				return nil
			},
			status: jobs.StatusSucceeded,
			stage:  "done",
		},
		{
			name:   "implicit succeed",
			run:    func(jc *runtime.Context) error { return nil },
			status: jobs.StatusSucceeded,
			stage:  "done",
		},
		{
			name:   "returned error",
			run:    func(jc *runtime.Context) error { return errors.New("boom") },
			status: jobs.StatusFailed,
			stage:  "run",
		},
		{
			name: "handler fails itself",
			run: func(jc *runtime.Context) error {
				jc.Fail("parse", errors.New("bad pdf"))
				return nil
			},
			status: jobs.StatusFailed,
			stage:  "parse",
		},
		{
			name:   "panic",
			run:    func(jc *runtime.Context) error { panic("kaboom") },
			status: jobs.StatusFailed,
			stage:  "panic",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := testutil.DB(t)
			h := &fakeHandler{jobType: jobs.TypeDocumentIngest, run: tc.run}
			w, repo, _ := newTestWorker(t, db, h)
			job := seedJob(t, db, jobs.TypeDocumentIngest)

			if !w.RunOnce(context.Background(), 1) {
				t.Fatalf("expected a job to run")
			}
			got := reload(t, repo, job.ID)
			if got.Status != tc.status || got.Stage != tc.stage {
				t.Fatalf("status/stage: %s/%s want %s/%s", got.Status, got.Stage, tc.status, tc.stage)
			}
			if got.Attempts != 1 {
				t.Fatalf("attempts: %d", got.Attempts)
			}
			if got.FinishedAt == nil {
				t.Fatalf("finished_at not set")
			}
			if w.RunOnce(context.Background(), 1) {
				t.Fatalf("single-attempt job must not be retried")
			}
		})
	}
}

func TestRunOnceMissingHandler(t *testing.T) {
	db := testutil.DB(t)
	w, repo, notify := newTestWorker(t, db)
	job := seedJob(t, db, "unknown_type")

	if !w.RunOnce(context.Background(), 1) {
		t.Fatalf("expected the job to be claimed")
	}
	got := reload(t, repo, job.ID)
	if got.Status != jobs.StatusFailed || got.Stage != "dispatch" {
		t.Fatalf("got %s/%s", got.Status, got.Stage)
	}
	if len(notify.failed) != 1 {
		t.Fatalf("failed notifications: %v", notify.failed)
	}
}

func TestRunOnceIdle(t *testing.T) {
	db := testutil.DB(t)
	w, _, _ := newTestWorker(t, db)
	if w.RunOnce(context.Background(), 1) {
		t.Fatalf("empty queue should not run anything")
	}
}

func TestStaleRunningJobIsAbandoned(t *testing.T) {
	db := testutil.DB(t)
	h := &fakeHandler{jobType: jobs.TypeDocumentReanalyze, run: func(*runtime.Context) error {
		t.Fatalf("stale job must not be re-run")
		return nil
	}}
	w, repo, notify := newTestWorker(t, db, h)
	job := seedJob(t, db, jobs.TypeDocumentReanalyze)

	old := time.Now().UTC().Add(-time.Hour)
	if err := db.Model(&jobs.JobRun{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
		"status":       jobs.StatusRunning,
		"attempts":     1,
		"heartbeat_at": old,
	}).Error; err != nil {
		t.Fatalf("mark running: %v", err)
	}

	if w.RunOnce(context.Background(), 1) {
		t.Fatalf("nothing should be claimable")
	}
	got := reload(t, repo, job.ID)
	if got.Status != jobs.StatusFailed || got.Stage != "stale" {
		t.Fatalf("got %s/%s", got.Status, got.Stage)
	}
	if len(h.abandoned) != 1 || h.abandoned[0] != job.ID {
		t.Fatalf("abandon hook: %v", h.abandoned)
	}
	if len(notify.failed) != 1 || notify.failed[0] != "stale" {
		t.Fatalf("failed notifications: %v", notify.failed)
	}
}

func TestLongRunKeepsHeartbeat(t *testing.T) {
	db := testutil.DB(t)
	var claimed, latest time.Time
	h := &fakeHandler{jobType: jobs.TypeDocumentIngest}
	w, repo, _ := newTestWorker(t, db, h)
	w.cfg.Heartbeat = 10 * time.Millisecond
	h.run = func(jc *runtime.Context) error {
		claimed = *jc.Job.HeartbeatAt
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			time.Sleep(20 * time.Millisecond)
			cur := reload(t, repo, jc.Job.ID)
			if cur.HeartbeatAt != nil && cur.HeartbeatAt.After(claimed) {
				latest = *cur.HeartbeatAt
				return nil
			}
		}
		return errors.New("heartbeat never advanced")
	}
	job := seedJob(t, db, jobs.TypeDocumentIngest)

	if !w.RunOnce(context.Background(), 1) {
		t.Fatalf("expected a job to run")
	}
	got := reload(t, repo, job.ID)
	if got.Status != jobs.StatusSucceeded {
		t.Fatalf("status %s: %s", got.Status, got.Error)
	}
	if !latest.After(claimed) {
		t.Fatalf("heartbeat %v not after claim %v", latest, claimed)
	}
}

func TestHeartbeatDefaultsToThirdOfStale(t *testing.T) {
	cfg := Config{StaleRunning: 9 * time.Minute}.normalized()
	if cfg.Heartbeat != 3*time.Minute {
		t.Fatalf("heartbeat = %v", cfg.Heartbeat)
	}
	cfg = Config{StaleRunning: time.Minute, Heartbeat: 2 * time.Minute}.normalized()
	if cfg.Heartbeat != 20*time.Second {
		t.Fatalf("heartbeat longer than stale window kept: %v", cfg.Heartbeat)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	db := testutil.DB(t)
	ran := make(chan struct{}, 1)
	h := &fakeHandler{jobType: jobs.TypeAmendmentGenerate, run: func(*runtime.Context) error {
		ran <- struct{}{}
		return nil
	}}
	w, _, _ := newTestWorker(t, db, h)
	w.cfg.PollInterval = 10 * time.Millisecond
	seedJob(t, db, jobs.TypeAmendmentGenerate)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("job was not picked up")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
