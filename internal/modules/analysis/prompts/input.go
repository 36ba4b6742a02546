package prompts

// Input is the union of fields any analysis prompt renders.
// Missing fields render as empty strings.
type Input struct {
	ContractText    string
	ContractType    string
	ContractSummary string
	ContractContext string

	ClauseCategory string
	ClauseTitle    string
	SectionLabel   string
	ClauseText     string
	RiskAnalysis   string

	ClausesWithRisks string
}
