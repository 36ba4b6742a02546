package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/contractlens-backend/internal/data/repos/testutil"
	domain "github.com/yungbote/contractlens-backend/internal/domain/jobs"
	errs "github.com/yungbote/contractlens-backend/internal/pkg/errors"
	"github.com/yungbote/contractlens-backend/internal/platform/dbctx"
)

func TestJobRunRepo(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.New(context.Background())
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()

	queued := &domain.JobRun{
		ID:         uuid.New(),
		JobType:    domain.TypeDocumentIngest,
		EntityType: domain.EntityTypeDocument,
		EntityID:   ptrUUID(uuid.New()),
		Status:     domain.StatusQueued,
		Stage:      domain.StatusQueued,
		Payload:    datatypes.JSON([]byte("{}")),
		Result:     datatypes.JSON([]byte("{}")),
		CreatedAt:  now.Add(-3 * time.Hour),
		UpdatedAt:  now.Add(-3 * time.Hour),
	}
	failed := &domain.JobRun{
		ID:          uuid.New(),
		JobType:     domain.TypeDocumentReanalyze,
		EntityType:  domain.EntityTypeDocument,
		EntityID:    ptrUUID(uuid.New()),
		Status:      domain.StatusFailed,
		Stage:       domain.StatusFailed,
		Attempts:    0,
		LastErrorAt: ptrTime(now.Add(-2 * time.Hour)),
		Payload:     datatypes.JSON([]byte("{}")),
		Result:      datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-2 * time.Hour),
		UpdatedAt:   now.Add(-2 * time.Hour),
	}
	staleRunning := &domain.JobRun{
		ID:          uuid.New(),
		JobType:     domain.TypeClauseRiskBatch,
		EntityType:  domain.EntityTypeDocument,
		EntityID:    ptrUUID(uuid.New()),
		Status:      domain.StatusRunning,
		Stage:       domain.StatusRunning,
		Attempts:    0,
		HeartbeatAt: ptrTime(now.Add(-10 * time.Hour)),
		Payload:     datatypes.JSON([]byte("{}")),
		Result:      datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-1 * time.Hour),
		UpdatedAt:   now.Add(-1 * time.Hour),
	}

	created, err := repo.Create(dbc, []*domain.JobRun{queued, failed, staleRunning})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("Create: expected 3, got %d", len(created))
	}

	if got, err := repo.GetByID(dbc, queued.ID); err != nil || got.JobType != domain.TypeDocumentIngest {
		t.Fatalf("GetByID: err=%v got=%v", err, got)
	}
	if _, err := repo.GetByID(dbc, uuid.New()); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("GetByID missing: want ErrNotFound, got %v", err)
	}

	// ClaimNextRunnable walks the runnable set in created_at ASC order.
	for i, want := range []uuid.UUID{queued.ID, failed.ID, staleRunning.ID} {
		claimed, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour)
		if err != nil {
			t.Fatalf("ClaimNextRunnable #%d: %v", i+1, err)
		}
		if claimed == nil || claimed.ID != want {
			t.Fatalf("ClaimNextRunnable #%d: expected %v got %v", i+1, want, claimed)
		}
		if claimed.Status != domain.StatusRunning || claimed.Attempts != 1 {
			t.Fatalf("ClaimNextRunnable #%d: claimed row not updated: %+v", i+1, claimed)
		}
	}
	if claimed, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour); err != nil || claimed != nil {
		t.Fatalf("ClaimNextRunnable #4: expected nil, got %v (err=%v)", claimed, err)
	}

	if err := repo.UpdateFields(dbc, queued.ID, map[string]interface{}{"status": domain.StatusFailed, "stage": "error"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if err := repo.Heartbeat(dbc, failed.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	ok, err := repo.UpdateFieldsUnlessStatus(dbc, queued.ID, []string{domain.StatusFailed}, map[string]interface{}{"stage": "ignored"})
	if err != nil || ok {
		t.Fatalf("UpdateFieldsUnlessStatus should be rejected: ok=%v err=%v", ok, err)
	}

	entityID := uuid.New()
	older := &domain.JobRun{JobType: domain.TypeDocumentIngest, EntityType: domain.EntityTypeDocument, EntityID: &entityID, Status: domain.StatusSucceeded, CreatedAt: now.Add(-5 * time.Hour), UpdatedAt: now}
	newer := &domain.JobRun{JobType: domain.TypeAmendmentGenerate, EntityType: domain.EntityTypeDocument, EntityID: &entityID, Status: domain.StatusQueued, CreatedAt: now.Add(-4 * time.Hour), UpdatedAt: now}
	if _, err := repo.Create(dbc, []*domain.JobRun{older, newer}); err != nil {
		t.Fatalf("seed latest: %v", err)
	}
	latest, err := repo.GetLatestByEntity(dbc, domain.EntityTypeDocument, entityID, "")
	if err != nil || latest == nil || latest.ID != newer.ID {
		t.Fatalf("GetLatestByEntity: err=%v latest=%v", err, latest)
	}
	has, err := repo.HasRunnableForEntity(dbc, domain.EntityTypeDocument, entityID)
	if err != nil || !has {
		t.Fatalf("HasRunnableForEntity: expected true (err=%v)", err)
	}
	if has, _ := repo.HasRunnableForEntity(dbc, domain.EntityTypeDocument, uuid.New()); has {
		t.Fatalf("HasRunnableForEntity: unrelated entity reported runnable")
	}
}

func TestJobRunRepoSingleAttempt(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.New(context.Background())
	repo := NewJobRunRepo(db, testutil.Logger(t))
	now := time.Now().UTC()

	failedOnce := &domain.JobRun{JobType: domain.TypeDocumentIngest, Status: domain.StatusFailed, Attempts: 1, LastErrorAt: ptrTime(now.Add(-time.Hour)), CreatedAt: now, UpdatedAt: now}
	abandoned := &domain.JobRun{JobType: domain.TypeDocumentIngest, Status: domain.StatusRunning, Attempts: 1, HeartbeatAt: ptrTime(now.Add(-time.Hour)), CreatedAt: now, UpdatedAt: now}
	if _, err := repo.Create(dbc, []*domain.JobRun{failedOnce, abandoned}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if claimed, err := repo.ClaimNextRunnable(dbc, 1, time.Second, time.Minute); err != nil || claimed != nil {
		t.Fatalf("exhausted jobs must not be claimed: %v %v", claimed, err)
	}

	stale, err := repo.FailStale(dbc, 1, time.Minute)
	if err != nil {
		t.Fatalf("FailStale: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != abandoned.ID || stale[0].Status != domain.StatusFailed {
		t.Fatalf("FailStale: %+v", stale)
	}
	got, _ := repo.GetByID(dbc, abandoned.ID)
	if got.Status != domain.StatusFailed || got.FinishedAt == nil {
		t.Fatalf("stale job not persisted as failed: %+v", got)
	}
}

func ptrUUID(id uuid.UUID) *uuid.UUID  { return &id }
func ptrTime(t time.Time) *time.Time { return &t }
