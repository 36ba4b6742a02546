package contract_analysis

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/contractlens-backend/internal/domain/contracts"
	"github.com/yungbote/contractlens-backend/internal/domain/jobs"
	"github.com/yungbote/contractlens-backend/internal/modules/analysis"
	"github.com/yungbote/contractlens-backend/internal/platform/logger"
)

// Orchestrator is the part of analysis.Orchestrator the document jobs drive.
type Orchestrator interface {
	Parse(ctx context.Context, documentID uuid.UUID) (*contracts.Document, error)
	Reanalyze(ctx context.Context, documentID uuid.UUID) (*contracts.Document, error)
	AssessAllRisks(ctx context.Context, documentID uuid.UUID, opts ...analysis.RunOption) (analysis.RiskBatchResult, error)
	GenerateAmendments(ctx context.Context, documentID uuid.UUID, threshold contracts.RiskLevel) (analysis.AmendmentBatchResult, error)
	MarkAbandoned(ctx context.Context, documentID uuid.UUID, reason string) error
}

const (
	PayloadDocumentID    = "document_id"
	PayloadRiskThreshold = "risk_threshold"
)

type base struct {
	orch Orchestrator
	log  *logger.Logger
}

func newBase(orch Orchestrator, baseLog *logger.Logger, job string) base {
	return base{orch: orch, log: baseLog.With("job", job)}
}

// abandon moves the job's document out of its in-progress status.
func (b base) abandon(ctx context.Context, job *jobs.JobRun) error {
	if job == nil || job.EntityID == nil {
		return nil
	}
	b.log.Warn("abandoning document run", "job_id", job.ID, "document_id", *job.EntityID)
	return b.orch.MarkAbandoned(ctx, *job.EntityID, "worker stopped before "+job.JobType+" finished")
}

type Ingest struct{ base }

func NewIngest(orch Orchestrator, baseLog *logger.Logger) *Ingest {
	return &Ingest{newBase(orch, baseLog, jobs.TypeDocumentIngest)}
}

func (p *Ingest) Type() string { return jobs.TypeDocumentIngest }

func (p *Ingest) Abandon(ctx context.Context, job *jobs.JobRun) error { return p.abandon(ctx, job) }

type Reanalyze struct{ base }

func NewReanalyze(orch Orchestrator, baseLog *logger.Logger) *Reanalyze {
	return &Reanalyze{newBase(orch, baseLog, jobs.TypeDocumentReanalyze)}
}

func (p *Reanalyze) Type() string { return jobs.TypeDocumentReanalyze }

func (p *Reanalyze) Abandon(ctx context.Context, job *jobs.JobRun) error { return p.abandon(ctx, job) }

type RiskBatch struct{ base }

func NewRiskBatch(orch Orchestrator, baseLog *logger.Logger) *RiskBatch {
	return &RiskBatch{newBase(orch, baseLog, jobs.TypeClauseRiskBatch)}
}

func (p *RiskBatch) Type() string { return jobs.TypeClauseRiskBatch }

type AmendmentBatch struct{ base }

func NewAmendmentBatch(orch Orchestrator, baseLog *logger.Logger) *AmendmentBatch {
	return &AmendmentBatch{newBase(orch, baseLog, jobs.TypeAmendmentGenerate)}
}

func (p *AmendmentBatch) Type() string { return jobs.TypeAmendmentGenerate }
