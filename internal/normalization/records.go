package normalization

import (
	"time"

	"github.com/yungbote/contractlens-backend/internal/domain/contracts"
)

// Validated records produced from model output. Every field is present and
// every enum is a member of its set; Raw() gives back the canonical raw form,
// which normalizes to an identical record.

type DocumentAnalysis struct {
	Summary           string
	ContractType      contracts.ContractType
	Parties           []string
	EffectiveDate     *time.Time
	ExpirationDate    *time.Time
	KeyTerms          []string
	RiskRating        contracts.RiskRating
	OverallAssessment string
	Recommendations   []string
}

type ExtractedClause struct {
	Category     contracts.ClauseCategory
	Title        string
	Text         string
	SectionLabel string
	KeyTerms     []string
}

type RiskAssessment struct {
	Level           contracts.RiskLevel
	Score           float64
	Factors         []string
	Analysis        string
	Recommendations []string
}

type AmendmentSuggestion struct {
	OriginalText      string
	ProposedText      string
	Kind              contracts.AmendmentKind
	Rationale         string
	RiskMitigation    string
	NegotiationPoints []string
	Priority          contracts.Priority
}

var contractTypeAliases = map[string]contracts.ContractType{
	"non_disclosure":           contracts.ContractTypeNDA,
	"non_disclosure_agreement": contracts.ContractTypeNDA,
	"confidentiality":          contracts.ContractTypeNDA,
	"services":                 contracts.ContractTypeService,
	"licensing":                contracts.ContractTypeLicense,
	"rental":                   contracts.ContractTypeLease,
	"sale":                     contracts.ContractTypePurchase,
	"sales":                    contracts.ContractTypePurchase,
}

func NormalizeDocumentAnalysis(raw Raw) DocumentAnalysis {
	return DocumentAnalysis{
		Summary:           String(raw["summary"]),
		ContractType:      EnumAlias(raw["contract_type"], contracts.ContractTypes, contractTypeAliases, contracts.ContractTypeOther),
		Parties:           StringList(raw["parties"]),
		EffectiveDate:     OptionalDate(raw["effective_date"]),
		ExpirationDate:    OptionalDate(raw["expiration_date"]),
		KeyTerms:          StringList(raw["key_terms"]),
		RiskRating:        Enum(raw["risk_rating"], contracts.RiskRatings, contracts.RiskRatingMedium),
		OverallAssessment: String(raw["overall_assessment"]),
		Recommendations:   StringList(raw["recommendations"]),
	}
}

func (a DocumentAnalysis) Raw() Raw {
	return Raw{
		"summary":            a.Summary,
		"contract_type":      string(a.ContractType),
		"parties":            toAnyList(a.Parties),
		"effective_date":     FormatDate(a.EffectiveDate),
		"expiration_date":    FormatDate(a.ExpirationDate),
		"key_terms":          toAnyList(a.KeyTerms),
		"risk_rating":        string(a.RiskRating),
		"overall_assessment": a.OverallAssessment,
		"recommendations":    toAnyList(a.Recommendations),
	}
}

// NormalizeClause decodes one extracted clause. Items that are not objects
// or carry no clause text are malformed.
func NormalizeClause(v any) (ExtractedClause, bool) {
	raw, ok := Object(v)
	if !ok {
		return ExtractedClause{}, false
	}
	text := String(raw["text"])
	if text == "" {
		return ExtractedClause{}, false
	}
	return ExtractedClause{
		Category:     Enum(first(raw, "clause_type", "category"), contracts.ClauseCategories, contracts.ClauseOther),
		Title:        String(raw["title"]),
		Text:         text,
		SectionLabel: String(first(raw, "section_number", "section")),
		KeyTerms:     StringList(raw["key_terms"]),
	}, true
}

// NormalizeClauses decodes the "clauses" list, skipping malformed items.
// It never fails; skipped reports how many items were dropped.
func NormalizeClauses(raw Raw) (clauses []ExtractedClause, skipped int) {
	clauses = []ExtractedClause{}
	items, _ := raw["clauses"].([]any)
	for _, item := range items {
		c, ok := NormalizeClause(item)
		if !ok {
			skipped++
			continue
		}
		clauses = append(clauses, c)
	}
	return clauses, skipped
}

func (c ExtractedClause) Raw() Raw {
	return Raw{
		"clause_type":    string(c.Category),
		"title":          c.Title,
		"text":           c.Text,
		"section_number": c.SectionLabel,
		"key_terms":      toAnyList(c.KeyTerms),
	}
}

func NormalizeRiskAssessment(raw Raw) RiskAssessment {
	return RiskAssessment{
		Level:           Enum(raw["risk_level"], contracts.RiskLevels, contracts.RiskLevelMedium),
		Score:           Score(raw["risk_score"]),
		Factors:         StringList(raw["risk_factors"]),
		Analysis:        String(raw["analysis"]),
		Recommendations: StringList(raw["recommendations"]),
	}
}

func (r RiskAssessment) Raw() Raw {
	return Raw{
		"risk_level":      string(r.Level),
		"risk_score":      r.Score,
		"risk_factors":    toAnyList(r.Factors),
		"analysis":        r.Analysis,
		"recommendations": toAnyList(r.Recommendations),
	}
}

// NormalizeAmendment decodes one suggestion. Items that are not objects or
// carry no proposed text are malformed.
func NormalizeAmendment(v any) (AmendmentSuggestion, bool) {
	raw, ok := Object(v)
	if !ok {
		return AmendmentSuggestion{}, false
	}
	proposed := String(raw["proposed_text"])
	if proposed == "" {
		return AmendmentSuggestion{}, false
	}
	return AmendmentSuggestion{
		OriginalText:      String(raw["original_text"]),
		ProposedText:      proposed,
		Kind:              Enum(first(raw, "amendment_type", "kind"), contracts.AmendmentKinds, contracts.AmendmentModification),
		Rationale:         String(raw["rationale"]),
		RiskMitigation:    String(raw["risk_mitigation"]),
		NegotiationPoints: StringList(raw["negotiation_points"]),
		Priority:          Enum(raw["priority"], contracts.Priorities, contracts.PriorityMedium),
	}, true
}

// NormalizeAmendments decodes the "amendments" list, skipping malformed items.
func NormalizeAmendments(raw Raw) (amendments []AmendmentSuggestion, skipped int) {
	amendments = []AmendmentSuggestion{}
	items, _ := raw["amendments"].([]any)
	for _, item := range items {
		a, ok := NormalizeAmendment(item)
		if !ok {
			skipped++
			continue
		}
		amendments = append(amendments, a)
	}
	return amendments, skipped
}

// FirstAmendment accepts either {"amendments":[...]} or a bare amendment
// object and returns the first well-formed suggestion.
func FirstAmendment(raw Raw) (AmendmentSuggestion, bool) {
	if items, ok := raw["amendments"].([]any); ok {
		for _, item := range items {
			if a, ok := NormalizeAmendment(item); ok {
				return a, true
			}
		}
		return AmendmentSuggestion{}, false
	}
	return NormalizeAmendment(raw)
}

func (a AmendmentSuggestion) Raw() Raw {
	return Raw{
		"original_text":      a.OriginalText,
		"proposed_text":      a.ProposedText,
		"amendment_type":     string(a.Kind),
		"rationale":          a.Rationale,
		"risk_mitigation":    a.RiskMitigation,
		"negotiation_points": toAnyList(a.NegotiationPoints),
		"priority":           string(a.Priority),
	}
}

func toAnyList(ss []string) []any {
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}
