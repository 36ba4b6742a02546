package prompts

type PromptName string

const (
	PromptDocumentAnalysis PromptName = "document_analysis"
	PromptClauseExtraction PromptName = "clause_extraction"
	PromptRiskAssessment   PromptName = "risk_assessment"
	PromptAmendmentBatch   PromptName = "amendment_batch"
	PromptAmendmentSingle  PromptName = "amendment_single"
)
