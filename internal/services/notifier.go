package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/contractlens-backend/internal/domain/contracts"
	"github.com/yungbote/contractlens-backend/internal/domain/jobs"
	"github.com/yungbote/contractlens-backend/internal/realtime"
)

// =========================
// Job notifier
// =========================

type JobNotifier interface {
	JobCreated(job *jobs.JobRun)
	JobProgress(job *jobs.JobRun, stage string, progress int, message string)
	JobFailed(job *jobs.JobRun, stage string, errorMessage string)
	JobDone(job *jobs.JobRun)
}

type jobNotifier struct {
	emit SSEEmitter
}

func NewJobNotifier(emit SSEEmitter) JobNotifier {
	return &jobNotifier{emit: emit}
}

// Job events go to the channel of the entity the job works on.
func jobChannel(job *jobs.JobRun) string {
	if job == nil || job.EntityID == nil || *job.EntityID == uuid.Nil {
		return ""
	}
	if job.EntityType == jobs.EntityTypeDocument {
		return realtime.DocumentChannel(*job.EntityID)
	}
	return job.EntityType + ":" + job.EntityID.String()
}

func (n *jobNotifier) send(job *jobs.JobRun, event realtime.SSEEvent, data map[string]any) {
	if n == nil || n.emit == nil {
		return
	}
	channel := jobChannel(job)
	if channel == "" {
		return
	}
	data["job_id"] = job.ID
	data["job_type"] = job.JobType
	data["job"] = job
	n.emit.Emit(context.Background(), realtime.SSEMessage{Channel: channel, Event: event, Data: data})
}

func (n *jobNotifier) JobCreated(job *jobs.JobRun) {
	n.send(job, realtime.SSEEventJobCreated, map[string]any{})
}

func (n *jobNotifier) JobProgress(job *jobs.JobRun, stage string, progress int, message string) {
	n.send(job, realtime.SSEEventJobProgress, map[string]any{
		"stage":    stage,
		"progress": progress,
		"message":  message,
	})
}

func (n *jobNotifier) JobFailed(job *jobs.JobRun, stage string, errorMessage string) {
	n.send(job, realtime.SSEEventJobFailed, map[string]any{
		"stage": stage,
		"error": errorMessage,
	})
}

func (n *jobNotifier) JobDone(job *jobs.JobRun) {
	n.send(job, realtime.SSEEventJobDone, map[string]any{})
}

// =========================
// Document notifier
// =========================

type DocumentNotifier interface {
	StatusChanged(ctx context.Context, doc *contracts.Document, from contracts.DocumentStatus)
	ClausesAssessed(ctx context.Context, documentID uuid.UUID, assessed, total, failed int)
	AmendmentsGenerated(ctx context.Context, documentID uuid.UUID, count int)
}

type documentNotifier struct {
	emit SSEEmitter
}

func NewDocumentNotifier(emit SSEEmitter) DocumentNotifier {
	return &documentNotifier{emit: emit}
}

func (n *documentNotifier) StatusChanged(ctx context.Context, doc *contracts.Document, from contracts.DocumentStatus) {
	if n == nil || n.emit == nil || doc == nil {
		return
	}
	data := map[string]any{
		"document_id": doc.ID,
		"from":        from,
		"status":      doc.Status,
	}
	if doc.LastError != "" {
		data["error"] = doc.LastError
	}
	n.emit.Emit(ctx, realtime.SSEMessage{
		Channel: realtime.DocumentChannel(doc.ID),
		Event:   realtime.SSEEventDocumentStatus,
		Data:    data,
	})
}

func (n *documentNotifier) ClausesAssessed(ctx context.Context, documentID uuid.UUID, assessed, total, failed int) {
	if n == nil || n.emit == nil {
		return
	}
	n.emit.Emit(ctx, realtime.SSEMessage{
		Channel: realtime.DocumentChannel(documentID),
		Event:   realtime.SSEEventClausesAssessed,
		Data: map[string]any{
			"document_id": documentID,
			"assessed":    assessed,
			"total":       total,
			"failed":      failed,
		},
	})
}

func (n *documentNotifier) AmendmentsGenerated(ctx context.Context, documentID uuid.UUID, count int) {
	if n == nil || n.emit == nil {
		return
	}
	n.emit.Emit(ctx, realtime.SSEMessage{
		Channel: realtime.DocumentChannel(documentID),
		Event:   realtime.SSEEventAmendmentsGenerated,
		Data: map[string]any{
			"document_id": documentID,
			"count":       count,
		},
	})
}
