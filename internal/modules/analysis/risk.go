package analysis

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	repos "github.com/yungbote/contractlens-backend/internal/data/repos/contracts"
	"github.com/yungbote/contractlens-backend/internal/domain/contracts"
	"github.com/yungbote/contractlens-backend/internal/modules/analysis/steps"
	errs "github.com/yungbote/contractlens-backend/internal/pkg/errors"
)

type ClauseFailure struct {
	ClauseID uuid.UUID `json:"clause_id"`
	Error    string    `json:"error"`
}

type RiskBatchResult struct {
	DocumentID uuid.UUID       `json:"document_id"`
	Assessed   int             `json:"assessed"`
	Total      int             `json:"total"`
	Failed     []ClauseFailure `json:"failed"`
}

// AssessRisk scores one clause with the owning document's summary as context.
// Document status is not touched.
func (o *Orchestrator) AssessRisk(ctx context.Context, clauseID uuid.UUID) (*contracts.Clause, error) {
	clause, err := o.deps.Clauses.GetByID(o.dbc(ctx), clauseID)
	if err != nil {
		return nil, err
	}
	doc, err := o.deps.Documents.GetByID(o.dbc(ctx), clause.DocumentID)
	if err != nil {
		return nil, err
	}
	if err := o.assess(ctx, doc, clause); err != nil {
		return nil, err
	}
	return clause, nil
}

func (o *Orchestrator) assess(ctx context.Context, doc *contracts.Document, clause *contracts.Clause) error {
	r, err := o.deps.Stages.Risk.Run(ctx, steps.RiskInput{
		Category:        clause.Category,
		Title:           clause.Title,
		SectionLabel:    clause.SectionLabel,
		Text:            clause.Text,
		ContractContext: doc.Summary,
	})
	if err != nil {
		return err
	}
	clause.ApplyRisk(r.Level, r.Score, r.Factors, r.Recommendations, r.Analysis, o.now())
	return o.deps.Clauses.UpdateRisk(o.dbc(ctx), clause)
}

// AssessAllRisks scores every clause of the document in position order, one at
// a time. A failed clause is recorded in the result and skipped; model failures
// never fail the batch, even when no clause could be assessed.
func (o *Orchestrator) AssessAllRisks(ctx context.Context, documentID uuid.UUID, opts ...RunOption) (RiskBatchResult, error) {
	res := RiskBatchResult{DocumentID: documentID, Failed: []ClauseFailure{}}
	ro := collectOptions(opts)

	doc, err := o.deps.Documents.GetByID(o.dbc(ctx), documentID)
	if err != nil {
		return res, err
	}
	clauses, err := o.deps.Clauses.ListByDocument(o.dbc(ctx), documentID, repos.ClauseFilter{})
	if err != nil {
		return res, err
	}
	if len(clauses) == 0 {
		return res, fmt.Errorf("%w: document %s has no clauses", errs.ErrPrecondition, documentID)
	}
	res.Total = len(clauses)
	log := o.logFor(ctx, "document_id", documentID)

	for i, c := range clauses {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := o.assess(ctx, doc, c); err != nil {
			log.Warn("clause risk assessment failed", "clause_id", c.ID, "error", err)
			res.Failed = append(res.Failed, ClauseFailure{ClauseID: c.ID, Error: err.Error()})
		} else {
			res.Assessed++
		}
		ro.report(i+1, res.Total)
	}

	if res.Assessed == 0 {
		log.Warn("no clause could be assessed", "total", res.Total, "first_error", res.Failed[0].Error)
	} else {
		log.Info("clause risks assessed", "assessed", res.Assessed, "total", res.Total, "failed", len(res.Failed))
	}
	if o.deps.Notify != nil {
		o.deps.Notify.ClausesAssessed(ctx, documentID, res.Assessed, res.Total, len(res.Failed))
	}
	return res, nil
}
