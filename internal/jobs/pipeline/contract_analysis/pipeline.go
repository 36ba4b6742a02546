package contract_analysis

import (
	"fmt"

	"github.com/google/uuid"

	jobrt "github.com/yungbote/contractlens-backend/internal/jobs/runtime"
	"github.com/yungbote/contractlens-backend/internal/modules/analysis"
)

func documentID(jc *jobrt.Context) (uuid.UUID, bool) {
	id, ok := jc.PayloadUUID(PayloadDocumentID)
	if !ok {
		jc.Fail("validate", fmt.Errorf("missing %s", PayloadDocumentID))
	}
	return id, ok
}

func (p *Ingest) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	docID, ok := documentID(jc)
	if !ok {
		return nil
	}

	jc.Progress("parse", 10, "Extracting text and clauses")
	doc, err := p.orch.Parse(jc.Ctx, docID)
	if err != nil {
		jc.Fail("parse", err)
		return nil
	}
	jc.Succeed("done", map[string]any{
		"document_id": doc.ID.String(),
		"status":      doc.Status,
	})
	return nil
}

func (p *Reanalyze) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	docID, ok := documentID(jc)
	if !ok {
		return nil
	}

	jc.Progress("analyze", 10, "Re-running document analysis")
	doc, err := p.orch.Reanalyze(jc.Ctx, docID)
	if err != nil {
		jc.Fail("analyze", err)
		return nil
	}
	jc.Succeed("done", map[string]any{
		"document_id": doc.ID.String(),
		"status":      doc.Status,
	})
	return nil
}

func (p *RiskBatch) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	docID, ok := documentID(jc)
	if !ok {
		return nil
	}

	jc.Progress("assess", 1, "Assessing clause risks")
	res, err := p.orch.AssessAllRisks(jc.Ctx, docID, analysis.WithProgress(func(done, total int) {
		pct := 1 + done*98/total
		jc.Progress("assess", pct, fmt.Sprintf("Assessed %d of %d clauses", done, total))
	}))
	if err != nil {
		jc.Fail("assess", err)
		return nil
	}
	if len(res.Failed) > 0 {
		p.log.Warn("some clauses were not assessed", "document_id", docID, "failed", len(res.Failed))
	}
	jc.Succeed("done", res)
	return nil
}

func (p *AmendmentBatch) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	docID, ok := documentID(jc)
	if !ok {
		return nil
	}
	threshold, err := analysis.ParseThreshold(jc.PayloadString(PayloadRiskThreshold), analysis.DefaultRiskThreshold)
	if err != nil {
		jc.Fail("validate", err)
		return nil
	}

	jc.Progress("generate", 10, "Drafting amendments")
	res, err := p.orch.GenerateAmendments(jc.Ctx, docID, threshold)
	if err != nil {
		jc.Fail("generate", err)
		return nil
	}
	ids := make([]string, 0, len(res.Amendments))
	for _, a := range res.Amendments {
		ids = append(ids, a.ID.String())
	}
	jc.Succeed("done", map[string]any{
		"document_id":        docID.String(),
		"amendment_ids":      ids,
		"clauses_considered": res.ClausesConsidered,
		"message":            res.Message,
	})
	return nil
}
