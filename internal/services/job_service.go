package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	jobrepos "github.com/yungbote/contractlens-backend/internal/data/repos/jobs"
	"github.com/yungbote/contractlens-backend/internal/domain/jobs"
	errs "github.com/yungbote/contractlens-backend/internal/pkg/errors"
	"github.com/yungbote/contractlens-backend/internal/platform/ctxutil"
	"github.com/yungbote/contractlens-backend/internal/platform/dbctx"
	"github.com/yungbote/contractlens-backend/internal/platform/logger"
)

type JobService interface {
	Enqueue(dbc dbctx.Context, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*jobs.JobRun, error)
	GetByID(dbc dbctx.Context, jobID uuid.UUID) (*jobs.JobRun, error)
	GetLatestForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (*jobs.JobRun, error)
}

type jobService struct {
	db     *gorm.DB
	log    *logger.Logger
	repo   jobrepos.JobRunRepo
	notify JobNotifier
}

func NewJobService(db *gorm.DB, baseLog *logger.Logger, repo jobrepos.JobRunRepo, notify JobNotifier) JobService {
	return &jobService{
		db:     db,
		log:    baseLog.With("service", "JobService"),
		repo:   repo,
		notify: notify,
	}
}

// Enqueue inserts a queued job for the worker pool. An entity may have at most
// one queued or running job; a second request is a precondition failure.
func (s *jobService) Enqueue(dbc dbctx.Context, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*jobs.JobRun, error) {
	if jobType == "" {
		return nil, fmt.Errorf("missing job_type: %w", errs.ErrInvalidArgument)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if td := ctxutil.GetTraceData(dbc.Ctx); td != nil {
		if td.TraceID != "" {
			if _, ok := payload["trace_id"]; !ok {
				payload["trace_id"] = td.TraceID
			}
		}
		if td.RequestID != "" {
			if _, ok := payload["request_id"]; !ok {
				payload["request_id"] = td.RequestID
			}
		}
	}
	transaction := dbc.DB(s.db)
	tdbc := dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}

	if entityID != nil && entityType != "" {
		busy, err := s.repo.HasRunnableForEntity(tdbc, entityType, *entityID)
		if err != nil {
			return nil, fmt.Errorf("check runnable jobs: %w", err)
		}
		if busy {
			return nil, fmt.Errorf("%s %s already has a job in progress: %w", entityType, entityID, errs.ErrPrecondition)
		}
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	now := time.Now().UTC()
	job := &jobs.JobRun{
		ID:         uuid.New(),
		JobType:    jobType,
		EntityType: entityType,
		EntityID:   entityID,
		Status:     jobs.StatusQueued,
		Stage:      jobs.StatusQueued,
		Message:    "Queued",
		Payload:    datatypes.JSON(b),
		Result:     datatypes.JSON([]byte(`{}`)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.repo.Create(tdbc, []*jobs.JobRun{job}); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.log.Debug("Job enqueued", "job_id", job.ID, "job_type", job.JobType, "entity_id", entityID)
	if s.notify != nil {
		s.notify.JobCreated(job)
	}
	return job, nil
}

func (s *jobService) GetByID(dbc dbctx.Context, jobID uuid.UUID) (*jobs.JobRun, error) {
	if jobID == uuid.Nil {
		return nil, fmt.Errorf("missing job id: %w", errs.ErrInvalidArgument)
	}
	return s.repo.GetByID(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}, jobID)
}

// GetLatestForEntity returns nil, nil when the entity never had a job.
func (s *jobService) GetLatestForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (*jobs.JobRun, error) {
	if entityType == "" || entityID == uuid.Nil {
		return nil, fmt.Errorf("missing entity info: %w", errs.ErrInvalidArgument)
	}
	return s.repo.GetLatestByEntity(dbctx.Context{Ctx: dbc.Ctx, Tx: dbc.DB(s.db)}, entityType, entityID, jobType)
}
