package steps

import (
	"errors"
	"strings"

	"github.com/yungbote/contractlens-backend/internal/domain/contracts"
	"github.com/yungbote/contractlens-backend/internal/modules/analysis/prompts"
	"github.com/yungbote/contractlens-backend/internal/normalization"
	"github.com/yungbote/contractlens-backend/internal/platform/logger"
)

const (
	StageDocumentAnalysis = "document_analysis"
	StageClauseExtraction = "clause_extraction"
	StageRiskAssessment   = "risk_assessment"
	StageAmendmentBatch   = "amendment_batch"
	StageAmendmentSingle  = "amendment_single"
)

type (
	DocumentAnalyzer         = Stage[string, normalization.DocumentAnalysis]
	ClauseExtractor          = Stage[string, []normalization.ExtractedClause]
	RiskAssessor             = Stage[RiskInput, normalization.RiskAssessment]
	AmendmentGenerator       = Stage[AmendmentBatchInput, []normalization.AmendmentSuggestion]
	SingleAmendmentGenerator = Stage[SingleAmendmentInput, normalization.AmendmentSuggestion]
)

func NewDocumentAnalyzer(model ModelClient, log *logger.Logger) *DocumentAnalyzer {
	return newStage[string, normalization.DocumentAnalysis](StageDocumentAnalysis, prompts.PromptDocumentAnalysis, model, log,
		func(text string) prompts.Input {
			return prompts.Input{ContractText: Truncate(text)}
		},
		func(_ string, raw normalization.Raw) (normalization.DocumentAnalysis, int, error) {
			return normalization.NormalizeDocumentAnalysis(raw), 0, nil
		},
	)
}

// NewClauseExtractor returns the clause extraction stage. An empty clause list
// is a valid result.
func NewClauseExtractor(model ModelClient, log *logger.Logger) *ClauseExtractor {
	return newStage[string, []normalization.ExtractedClause](StageClauseExtraction, prompts.PromptClauseExtraction, model, log,
		func(text string) prompts.Input {
			return prompts.Input{ContractText: Truncate(text)}
		},
		func(_ string, raw normalization.Raw) ([]normalization.ExtractedClause, int, error) {
			clauses, skipped := normalization.NormalizeClauses(raw)
			return clauses, skipped, nil
		},
	)
}

type RiskInput struct {
	Category        contracts.ClauseCategory
	Title           string
	SectionLabel    string
	Text            string
	ContractContext string
}

func NewRiskAssessor(model ModelClient, log *logger.Logger) *RiskAssessor {
	return newStage[RiskInput, normalization.RiskAssessment](StageRiskAssessment, prompts.PromptRiskAssessment, model, log,
		func(in RiskInput) prompts.Input {
			return prompts.Input{
				ClauseCategory:  orDefault(string(in.Category), string(contracts.ClauseOther)),
				ClauseTitle:     orDefault(in.Title, "Untitled"),
				SectionLabel:    orDefault(in.SectionLabel, "N/A"),
				ClauseText:      Truncate(in.Text),
				ContractContext: orDefault(in.ContractContext, "No additional context provided"),
			}
		},
		func(_ RiskInput, raw normalization.Raw) (normalization.RiskAssessment, int, error) {
			return normalization.NormalizeRiskAssessment(raw), 0, nil
		},
	)
}

// ClauseRisk is one assessed clause offered to batch amendment generation.
type ClauseRisk struct {
	Category contracts.ClauseCategory
	Title    string
	Text     string
	Level    *contracts.RiskLevel
	Factors  []string
	Analysis string
}

type AmendmentBatchInput struct {
	ContractType    contracts.ContractType
	ContractSummary string
	Clauses         []ClauseRisk
}

// FormatClausesWithRisks renders the clause blocks of the batch prompt.
func FormatClausesWithRisks(clauses []ClauseRisk) string {
	blocks := make([]string, 0, len(clauses))
	for _, c := range clauses {
		level := "unknown"
		if c.Level != nil && *c.Level != "" {
			level = string(*c.Level)
		}
		var b strings.Builder
		b.WriteString("Clause: " + orDefault(c.Title, "Untitled") + " (" + string(c.Category) + ")\n")
		b.WriteString("Risk Level: " + level + "\n")
		b.WriteString("Risk Factors: " + strings.Join(c.Factors, ", ") + "\n")
		b.WriteString("Text: " + c.Text + "\n")
		b.WriteString("Analysis: " + orDefault(c.Analysis, "No analysis"))
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

func NewAmendmentGenerator(model ModelClient, log *logger.Logger) *AmendmentGenerator {
	return newStage[AmendmentBatchInput, []normalization.AmendmentSuggestion](StageAmendmentBatch, prompts.PromptAmendmentBatch, model, log,
		func(in AmendmentBatchInput) prompts.Input {
			return prompts.Input{
				ContractType:     orDefault(string(in.ContractType), string(contracts.ContractTypeOther)),
				ContractSummary:  orDefault(in.ContractSummary, "No summary available"),
				ClausesWithRisks: Truncate(FormatClausesWithRisks(in.Clauses)),
			}
		},
		func(_ AmendmentBatchInput, raw normalization.Raw) ([]normalization.AmendmentSuggestion, int, error) {
			out, skipped := normalization.NormalizeAmendments(raw)
			return out, skipped, nil
		},
	)
}

type SingleAmendmentInput struct {
	Category     contracts.ClauseCategory
	Text         string
	RiskAnalysis string
}

var errNoProposal = errors.New("model returned no proposed text")

func NewSingleAmendmentGenerator(model ModelClient, log *logger.Logger) *SingleAmendmentGenerator {
	return newStage[SingleAmendmentInput, normalization.AmendmentSuggestion](StageAmendmentSingle, prompts.PromptAmendmentSingle, model, log,
		func(in SingleAmendmentInput) prompts.Input {
			return prompts.Input{
				ClauseCategory: orDefault(string(in.Category), string(contracts.ClauseOther)),
				ClauseText:     Truncate(in.Text),
				RiskAnalysis:   orDefault(in.RiskAnalysis, "No risk analysis available"),
			}
		},
		func(in SingleAmendmentInput, raw normalization.Raw) (normalization.AmendmentSuggestion, int, error) {
			a, ok := normalization.FirstAmendment(raw)
			if !ok {
				return normalization.AmendmentSuggestion{}, 0, errNoProposal
			}
			if a.OriginalText == "" {
				a.OriginalText = in.Text
			}
			return a, 0, nil
		},
	)
}

// Stages bundles one instance of every stage around a shared model client.
type Stages struct {
	Analyzer        *DocumentAnalyzer
	Extractor       *ClauseExtractor
	Risk            *RiskAssessor
	Amendments      *AmendmentGenerator
	SingleAmendment *SingleAmendmentGenerator
}

func NewStages(model ModelClient, log *logger.Logger) *Stages {
	return &Stages{
		Analyzer:        NewDocumentAnalyzer(model, log),
		Extractor:       NewClauseExtractor(model, log),
		Risk:            NewRiskAssessor(model, log),
		Amendments:      NewAmendmentGenerator(model, log),
		SingleAmendment: NewSingleAmendmentGenerator(model, log),
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
