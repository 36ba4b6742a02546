package prompts

import (
	"sort"

	"github.com/yungbote/contractlens-backend/internal/domain/contracts"
)

func StringSchema() map[string]any {
	return map[string]any{"type": "string"}
}

func StringArraySchema() map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
}

func StringOrNullSchema() map[string]any {
	return map[string]any{"type": []any{"string", "null"}}
}

func NumberSchema() map[string]any {
	return map[string]any{"type": "number"}
}

func EnumSchema[T ~string](values []T) map[string]any {
	arr := make([]any, 0, len(values))
	for _, v := range values {
		arr = append(arr, string(v))
	}
	return map[string]any{"type": "string", "enum": arr}
}

// ObjectSchema builds a strict object: every property required, nothing extra.
func ObjectSchema(properties map[string]any) map[string]any {
	req := make([]any, 0, len(properties))
	for _, k := range sortedKeys(properties) {
		req = append(req, k)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             req,
		"additionalProperties": false,
	}
}

func ArrayOf(item map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": item}
}

func DocumentAnalysisSchema() map[string]any {
	return ObjectSchema(map[string]any{
		"summary":            StringSchema(),
		"contract_type":      EnumSchema(contracts.ContractTypes),
		"parties":            StringArraySchema(),
		"effective_date":     StringOrNullSchema(),
		"expiration_date":    StringOrNullSchema(),
		"key_terms":          StringArraySchema(),
		"risk_rating":        EnumSchema(contracts.RiskRatings),
		"overall_assessment": StringSchema(),
		"recommendations":    StringArraySchema(),
	})
}

func ClauseExtractionSchema() map[string]any {
	return ObjectSchema(map[string]any{
		"clauses": ArrayOf(ObjectSchema(map[string]any{
			"clause_type":    EnumSchema(contracts.ClauseCategories),
			"title":          StringSchema(),
			"text":           StringSchema(),
			"section_number": StringSchema(),
			"key_terms":      StringArraySchema(),
		})),
	})
}

func RiskAssessmentSchema() map[string]any {
	return ObjectSchema(map[string]any{
		"risk_level":      EnumSchema(contracts.RiskLevels),
		"risk_score":      NumberSchema(),
		"risk_factors":    StringArraySchema(),
		"analysis":        StringSchema(),
		"recommendations": StringArraySchema(),
	})
}

func amendmentObjectSchema() map[string]any {
	return ObjectSchema(map[string]any{
		"original_text":      StringSchema(),
		"proposed_text":      StringSchema(),
		"amendment_type":     EnumSchema(contracts.AmendmentKinds),
		"rationale":          StringSchema(),
		"risk_mitigation":    StringSchema(),
		"negotiation_points": StringArraySchema(),
		"priority":           EnumSchema(contracts.Priorities),
	})
}

func AmendmentBatchSchema() map[string]any {
	return ObjectSchema(map[string]any{"amendments": ArrayOf(amendmentObjectSchema())})
}

func AmendmentSingleSchema() map[string]any {
	return amendmentObjectSchema()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
