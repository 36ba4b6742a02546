package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	repos "github.com/yungbote/contractlens-backend/internal/data/repos/contracts"
	"github.com/yungbote/contractlens-backend/internal/domain/contracts"
	"github.com/yungbote/contractlens-backend/internal/modules/analysis/steps"
	"github.com/yungbote/contractlens-backend/internal/normalization"
	errs "github.com/yungbote/contractlens-backend/internal/pkg/errors"
)

const NoQualifyingClausesMessage = "No high-risk clauses found requiring amendments"

type AmendmentBatchResult struct {
	DocumentID        uuid.UUID              `json:"document_id"`
	Amendments        []*contracts.Amendment `json:"amendments"`
	ClausesConsidered int                    `json:"clauses_considered"`
	Message           string                 `json:"message"`
}

// DefaultRiskThreshold selects MEDIUM, HIGH and CRITICAL clauses.
const DefaultRiskThreshold = contracts.RiskLevelMedium

// ParseThreshold reads a risk level for amendment selection. Empty means def.
func ParseThreshold(raw string, def contracts.RiskLevel) (contracts.RiskLevel, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	lvl, ok := contracts.Parse(raw, contracts.RiskLevels)
	if !ok {
		return "", fmt.Errorf("%w: unknown risk level %q", errs.ErrInvalidArgument, raw)
	}
	return lvl, nil
}

// qualifying returns the assessed clauses at or above threshold, in position order.
func qualifying(clauses []*contracts.Clause, threshold contracts.RiskLevel) []*contracts.Clause {
	out := []*contracts.Clause{}
	for _, c := range clauses {
		if !c.Assessed() {
			continue
		}
		if c.RiskLevel.Rank() >= threshold.Rank() {
			out = append(out, c)
		}
	}
	return out
}

// GenerateAmendments asks for amendments covering every clause at or above
// threshold in one model call, and stores them all or none.
func (o *Orchestrator) GenerateAmendments(ctx context.Context, documentID uuid.UUID, threshold contracts.RiskLevel) (AmendmentBatchResult, error) {
	res := AmendmentBatchResult{DocumentID: documentID, Amendments: []*contracts.Amendment{}}
	if threshold.Rank() == 0 {
		return res, fmt.Errorf("%w: unknown risk level %q", errs.ErrInvalidArgument, threshold)
	}

	doc, err := o.deps.Documents.GetByID(o.dbc(ctx), documentID)
	if err != nil {
		return res, err
	}
	clauses, err := o.deps.Clauses.ListByDocument(o.dbc(ctx), documentID, repos.ClauseFilter{})
	if err != nil {
		return res, err
	}
	selected := qualifying(clauses, threshold)
	res.ClausesConsidered = len(selected)
	if len(selected) == 0 {
		res.Message = NoQualifyingClausesMessage
		return res, nil
	}

	in := steps.AmendmentBatchInput{
		ContractType:    doc.ContractType,
		ContractSummary: doc.Summary,
		Clauses:         make([]steps.ClauseRisk, 0, len(selected)),
	}
	for _, c := range selected {
		in.Clauses = append(in.Clauses, steps.ClauseRisk{
			Category: c.Category,
			Title:    c.Title,
			Text:     c.Text,
			Level:    c.RiskLevel,
			Factors:  []string(c.RiskFactors),
			Analysis: c.Analysis,
		})
	}
	suggestions, err := o.deps.Stages.Amendments.Run(ctx, in)
	if err != nil {
		return res, err
	}

	rows := make([]*contracts.Amendment, 0, len(suggestions))
	for _, s := range suggestions {
		rows = append(rows, newAmendment(documentID, linkClause(s.OriginalText, selected), s))
	}
	created, err := o.deps.Amendments.CreateBatch(o.dbc(ctx), rows)
	if err != nil {
		return res, fmt.Errorf("store amendments: %w", err)
	}
	res.Amendments = created
	res.Message = fmt.Sprintf("Generated %d amendments", len(created))

	o.logFor(ctx).Info("amendments generated", "document_id", documentID, "clauses", len(selected), "amendments", len(created))
	if o.deps.Notify != nil {
		o.deps.Notify.AmendmentsGenerated(ctx, documentID, len(created))
	}
	return res, nil
}

// GenerateAmendmentForClause produces exactly one amendment tied to the clause.
func (o *Orchestrator) GenerateAmendmentForClause(ctx context.Context, clauseID uuid.UUID) (*contracts.Amendment, error) {
	clause, err := o.deps.Clauses.GetByID(o.dbc(ctx), clauseID)
	if err != nil {
		return nil, err
	}
	s, err := o.deps.Stages.SingleAmendment.Run(ctx, steps.SingleAmendmentInput{
		Category:     clause.Category,
		Text:         clause.Text,
		RiskAnalysis: clause.Analysis,
	})
	if err != nil {
		return nil, err
	}
	id := clause.ID
	created, err := o.deps.Amendments.CreateBatch(o.dbc(ctx), []*contracts.Amendment{newAmendment(clause.DocumentID, &id, s)})
	if err != nil {
		return nil, fmt.Errorf("store amendment: %w", err)
	}
	if o.deps.Notify != nil {
		o.deps.Notify.AmendmentsGenerated(ctx, clause.DocumentID, 1)
	}
	return created[0], nil
}

// UpdateAmendmentStatus accepts only exact status values.
func (o *Orchestrator) UpdateAmendmentStatus(ctx context.Context, amendmentID uuid.UUID, status string) (*contracts.Amendment, error) {
	parsed, ok := contracts.Parse(status, contracts.AmendmentStatuses)
	if !ok {
		return nil, fmt.Errorf("%w: unknown amendment status %q", errs.ErrInvalidArgument, status)
	}
	return o.deps.Amendments.UpdateStatus(o.dbc(ctx), amendmentID, parsed)
}

func newAmendment(documentID uuid.UUID, clauseID *uuid.UUID, s normalization.AmendmentSuggestion) *contracts.Amendment {
	return &contracts.Amendment{
		DocumentID:        documentID,
		ClauseID:          clauseID,
		Kind:              s.Kind,
		Status:            contracts.AmendmentDraft,
		Priority:          s.Priority,
		OriginalText:      s.OriginalText,
		ProposedText:      s.ProposedText,
		Rationale:         s.Rationale,
		RiskMitigation:    s.RiskMitigation,
		NegotiationPoints: jsonList(s.NegotiationPoints),
	}
}

// linkClause finds the selected clause a suggestion was written against: an
// exact match after collapsing whitespace, else the only clause containing it.
func linkClause(original string, selected []*contracts.Clause) *uuid.UUID {
	want := collapseSpace(original)
	if want == "" {
		return nil
	}
	for _, c := range selected {
		if collapseSpace(c.Text) == want {
			id := c.ID
			return &id
		}
	}
	var match *uuid.UUID
	for _, c := range selected {
		if strings.Contains(collapseSpace(c.Text), want) {
			if match != nil {
				return nil
			}
			id := c.ID
			match = &id
		}
	}
	return match
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
