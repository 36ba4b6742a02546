package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	repos "github.com/yungbote/contractlens-backend/internal/data/repos/contracts"
	"github.com/yungbote/contractlens-backend/internal/domain/contracts"
	"github.com/yungbote/contractlens-backend/internal/modules/analysis/extractor"
	"github.com/yungbote/contractlens-backend/internal/modules/analysis/steps"
	"github.com/yungbote/contractlens-backend/internal/normalization"
	"github.com/yungbote/contractlens-backend/internal/platform/ctxutil"
	"github.com/yungbote/contractlens-backend/internal/platform/dbctx"
	"github.com/yungbote/contractlens-backend/internal/platform/filestore"
	"github.com/yungbote/contractlens-backend/internal/platform/logger"
	"github.com/yungbote/contractlens-backend/internal/services"
)

type Deps struct {
	DB  *gorm.DB
	Log *logger.Logger

	Stages    *steps.Stages
	Extractor extractor.Extractor
	Files     filestore.Store

	Documents  repos.DocumentRepo
	Clauses    repos.ClauseRepo
	Amendments repos.AmendmentRepo

	// Optional.
	Notify services.DocumentNotifier
}

/*
Orchestrator sequences the model-backed stages over one document and owns the
document lifecycle. It is the only writer of Document.Status, of clause risk
fields and of generated amendments.

Every status change is a conditional update from the status the orchestrator
last observed, so two concurrent triggers on one document cannot both win.
Intermediate results are persisted as soon as each stage returns.
*/
type Orchestrator struct {
	deps Deps
	log  *logger.Logger
	now  func() time.Time
}

func New(deps Deps) (*Orchestrator, error) {
	if deps.DB == nil || deps.Stages == nil || deps.Extractor == nil || deps.Files == nil {
		return nil, fmt.Errorf("analysis: missing deps")
	}
	if deps.Documents == nil || deps.Clauses == nil || deps.Amendments == nil {
		return nil, fmt.Errorf("analysis: missing repos")
	}
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	return &Orchestrator{
		deps: deps,
		log:  deps.Log.With("component", "AnalysisOrchestrator"),
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// RunOption customizes a long-running document operation.
type RunOption func(*runOptions)

type runOptions struct {
	progress func(done, total int)
}

// WithProgress is called after each unit of work with the running count.
func WithProgress(fn func(done, total int)) RunOption {
	return func(o *runOptions) { o.progress = fn }
}

func collectOptions(opts []RunOption) runOptions {
	var o runOptions
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func (o runOptions) report(done, total int) {
	if o.progress != nil {
		o.progress(done, total)
	}
}

func (o *Orchestrator) dbc(ctx context.Context) dbctx.Context {
	return dbctx.Context{Ctx: ctxutil.Default(ctx)}
}

func (o *Orchestrator) logFor(ctx context.Context, kv ...interface{}) *logger.Logger {
	fields := append(ctxutil.LogFields(ctx), kv...)
	if len(fields) == 0 {
		return o.log
	}
	return o.log.With(fields...)
}

// transition moves doc from its current status to next and publishes the change.
func (o *Orchestrator) transition(ctx context.Context, doc *contracts.Document, next contracts.DocumentStatus, updates map[string]interface{}) error {
	from := doc.Status
	if err := o.deps.Documents.TransitionStatus(o.dbc(ctx), doc.ID, from, next, updates); err != nil {
		return err
	}
	doc.Status = next
	if le, ok := updates["last_error"].(string); ok {
		doc.LastError = le
	}
	o.publishStatus(ctx, doc, from)
	return nil
}

func (o *Orchestrator) publishStatus(ctx context.Context, doc *contracts.Document, from contracts.DocumentStatus) {
	if o.deps.Notify != nil {
		o.deps.Notify.StatusChanged(ctx, doc, from)
	}
}

// fail moves doc from its in-progress status to ERROR and returns cause.
// The ERROR write survives a cancelled caller context.
func (o *Orchestrator) fail(ctx context.Context, doc *contracts.Document, step string, cause error) error {
	wctx := context.WithoutCancel(ctxutil.Default(ctx))
	msg := fmt.Sprintf("%s: %v", step, cause)
	if err := o.transition(wctx, doc, contracts.DocumentError, map[string]interface{}{"last_error": msg}); err != nil {
		o.logFor(ctx).Error("could not record document failure",
			"document_id", doc.ID, "step", step, "cause", cause, "error", err)
	} else {
		o.logFor(ctx).Warn("document moved to error", "document_id", doc.ID, "step", step, "error", cause)
	}
	return cause
}

// MarkAbandoned moves a document stuck in an in-progress status to ERROR.
// It is used when the run that owned the document died without finishing.
func (o *Orchestrator) MarkAbandoned(ctx context.Context, documentID uuid.UUID, reason string) error {
	doc, err := o.deps.Documents.GetByID(o.dbc(ctx), documentID)
	if err != nil {
		return err
	}
	if !doc.Status.InProgress() {
		return nil
	}
	return o.transition(ctx, doc, contracts.DocumentError, map[string]interface{}{"last_error": reason})
}

func analysisUpdates(a normalization.DocumentAnalysis, at time.Time) map[string]interface{} {
	return map[string]interface{}{
		"summary":            a.Summary,
		"contract_type":      a.ContractType,
		"parties":            jsonList(a.Parties),
		"effective_date":     a.EffectiveDate,
		"expiration_date":    a.ExpirationDate,
		"risk_rating":        a.RiskRating,
		"overall_assessment": a.OverallAssessment,
		"key_terms":          jsonList(a.KeyTerms),
		"recommendations":    jsonList(a.Recommendations),
		"analyzed_at":        at,
	}
}

func jsonList(ss []string) datatypes.JSONSlice[string] {
	if ss == nil {
		ss = []string{}
	}
	return datatypes.NewJSONSlice(ss)
}
