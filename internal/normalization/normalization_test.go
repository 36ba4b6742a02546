package normalization

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/yungbote/contractlens-backend/internal/domain/contracts"
)

func TestScoreClampsAndDefaults(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{0.42, 0.42},
		{1.7, 1},
		{-3, 0},
		{"0.9", 0.9},
		{json.Number("0.25"), 0.25},
		{"high", DefaultRiskScore},
		{nil, DefaultRiskScore},
		{math.NaN(), DefaultRiskScore},
		{map[string]any{"v": 1}, DefaultRiskScore},
	}
	for _, tc := range cases {
		if got := Score(tc.in); got != tc.want {
			t.Fatalf("Score(%#v)=%v want %v", tc.in, got, tc.want)
		}
	}
}

func TestEnumFallbacks(t *testing.T) {
	if got := Enum("Non-Compete", contracts.ClauseCategories, contracts.ClauseOther); got != contracts.ClauseNonCompete {
		t.Fatalf("category folding: got %q", got)
	}
	if got := Enum("SEVERE", contracts.RiskLevels, contracts.RiskLevelMedium); got != contracts.RiskLevelMedium {
		t.Fatalf("risk level fallback: got %q", got)
	}
	if got := Enum(nil, contracts.AmendmentKinds, contracts.AmendmentModification); got != contracts.AmendmentModification {
		t.Fatalf("kind fallback: got %q", got)
	}
	if got := EnumAlias("Non-Disclosure Agreement", contracts.ContractTypes, contractTypeAliases, contracts.ContractTypeOther); got != contracts.ContractTypeNDA {
		t.Fatalf("contract type alias: got %q", got)
	}
	if got := Enum(42, contracts.ContractTypes, contracts.ContractTypeOther); got != contracts.ContractTypeOther {
		t.Fatalf("numeric enum should fall back: got %q", got)
	}
}

func TestNormalizeDocumentAnalysisDefaults(t *testing.T) {
	got := NormalizeDocumentAnalysis(Raw{
		"summary":        "  A services agreement. ",
		"contract_type":  "consulting",
		"parties":        "Acme Corp",
		"effective_date": "2024-03-01",
		"risk_rating":    "HIGH",
	})
	if got.Summary != "A services agreement." {
		t.Fatalf("summary: %q", got.Summary)
	}
	if got.ContractType != contracts.ContractTypeOther {
		t.Fatalf("contract type: %q", got.ContractType)
	}
	if !reflect.DeepEqual(got.Parties, []string{"Acme Corp"}) {
		t.Fatalf("parties: %#v", got.Parties)
	}
	if got.EffectiveDate == nil || !got.EffectiveDate.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("effective date: %v", got.EffectiveDate)
	}
	if got.ExpirationDate != nil {
		t.Fatalf("expiration date should be absent: %v", got.ExpirationDate)
	}
	if got.RiskRating != contracts.RiskRatingHigh {
		t.Fatalf("risk rating: %q", got.RiskRating)
	}
	if got.KeyTerms == nil || len(got.KeyTerms) != 0 {
		t.Fatalf("missing list should be empty, got %#v", got.KeyTerms)
	}
	empty := NormalizeDocumentAnalysis(Raw{})
	if empty.RiskRating != contracts.RiskRatingMedium || empty.ContractType != contracts.ContractTypeOther {
		t.Fatalf("empty defaults: %+v", empty)
	}
	clauseKeys := NormalizeDocumentAnalysis(Raw{"risk_score": 0.9, "risk_level": "high"})
	if clauseKeys.RiskRating != contracts.RiskRatingMedium {
		t.Fatalf("clause risk keys must not set the document rating: %q", clauseKeys.RiskRating)
	}
}

func TestNormalizeClausesSkipsMalformed(t *testing.T) {
	raw := Raw{"clauses": []any{
		map[string]any{"clause_type": "payment", "title": "Fees", "text": "Client pays within 30 days.", "section_number": "4.1"},
		map[string]any{"clause_type": "termination", "text": "Either party may terminate."},
		"not an object",
		map[string]any{"clause_type": "liability", "title": "Cap"},
		map[string]any{"clause_type": "unknown-kind", "text": "Misc.", "key_terms": []any{"misc", "", 3.0}},
		map[string]any{"clause_type": "Governing Law", "text": "Laws of Delaware."},
	}}
	clauses, skipped := NormalizeClauses(raw)
	if len(clauses) != 4 || skipped != 2 {
		t.Fatalf("got %d clauses, %d skipped; want 4 and 2", len(clauses), skipped)
	}
	if clauses[0].SectionLabel != "4.1" || clauses[0].Category != contracts.ClausePayment {
		t.Fatalf("first clause: %+v", clauses[0])
	}
	if clauses[2].Category != contracts.ClauseOther || !reflect.DeepEqual(clauses[2].KeyTerms, []string{"misc", "3"}) {
		t.Fatalf("third clause: %+v", clauses[2])
	}
	if clauses[3].Category != contracts.ClauseGoverningLaw {
		t.Fatalf("fourth clause category: %q", clauses[3].Category)
	}

	none, skipped := NormalizeClauses(Raw{"clauses": "oops"})
	if none == nil || len(none) != 0 || skipped != 0 {
		t.Fatalf("non-list clauses should give empty result: %#v %d", none, skipped)
	}
}

func TestNormalizeAmendments(t *testing.T) {
	raw := Raw{"amendments": []any{
		map[string]any{"original_text": "a", "proposed_text": "b", "amendment_type": "Replacement", "priority": "urgent"},
		map[string]any{"original_text": "c", "proposed_text": "  "},
		map[string]any{"proposed_text": "d", "negotiation_points": []any{"first", "second"}},
	}}
	got, skipped := NormalizeAmendments(raw)
	if len(got) != 2 || skipped != 1 {
		t.Fatalf("got %d amendments, %d skipped", len(got), skipped)
	}
	if got[0].Kind != contracts.AmendmentReplacement || got[0].Priority != contracts.PriorityMedium {
		t.Fatalf("first amendment: %+v", got[0])
	}
	if got[1].Kind != contracts.AmendmentModification || !reflect.DeepEqual(got[1].NegotiationPoints, []string{"first", "second"}) {
		t.Fatalf("second amendment: %+v", got[1])
	}
}

func TestFirstAmendmentAcceptsBothShapes(t *testing.T) {
	wrapped := Raw{"amendments": []any{
		map[string]any{"proposed_text": ""},
		map[string]any{"proposed_text": "new text", "amendment_type": "addition"},
	}}
	a, ok := FirstAmendment(wrapped)
	if !ok || a.ProposedText != "new text" || a.Kind != contracts.AmendmentAddition {
		t.Fatalf("wrapped: %+v %v", a, ok)
	}
	bare := Raw{"proposed_text": "bare", "rationale": "why"}
	a, ok = FirstAmendment(bare)
	if !ok || a.ProposedText != "bare" || a.Rationale != "why" {
		t.Fatalf("bare: %+v %v", a, ok)
	}
	if _, ok := FirstAmendment(Raw{"amendments": []any{}}); ok {
		t.Fatalf("empty list should not yield an amendment")
	}
}

func TestNormalizationIsIdempotent(t *testing.T) {
	doc := NormalizeDocumentAnalysis(Raw{
		"summary":         "s",
		"contract_type":   "NDA",
		"parties":         []any{"A", "B"},
		"effective_date":  "January 5, 2024",
		"expiration_date": "2026-01-05T10:30:00+02:00",
		"risk_rating":     "weird",
	})
	if again := NormalizeDocumentAnalysis(doc.Raw()); !reflect.DeepEqual(doc, again) {
		t.Fatalf("document analysis not idempotent:\n%+v\n%+v", doc, again)
	}

	clause, ok := NormalizeClause(map[string]any{"clause_type": "force majeure", "text": "Acts of God.", "key_terms": "storm"})
	if !ok {
		t.Fatalf("clause rejected")
	}
	if again, ok := NormalizeClause(clause.Raw()); !ok || !reflect.DeepEqual(clause, again) {
		t.Fatalf("clause not idempotent:\n%+v\n%+v", clause, again)
	}

	risk := NormalizeRiskAssessment(Raw{"risk_level": "CRITICAL", "risk_score": 4, "risk_factors": []any{"x"}})
	if risk.Score != 1 || risk.Level != contracts.RiskLevelCritical {
		t.Fatalf("risk: %+v", risk)
	}
	if again := NormalizeRiskAssessment(risk.Raw()); !reflect.DeepEqual(risk, again) {
		t.Fatalf("risk not idempotent:\n%+v\n%+v", risk, again)
	}

	am, ok := NormalizeAmendment(map[string]any{"proposed_text": "p", "amendment_type": "strike"})
	if !ok {
		t.Fatalf("amendment rejected")
	}
	if again, ok := NormalizeAmendment(am.Raw()); !ok || !reflect.DeepEqual(am, again) {
		t.Fatalf("amendment not idempotent:\n%+v\n%+v", am, again)
	}
}

func TestOptionalDate(t *testing.T) {
	for _, s := range []string{"", "N/A", "sometime next year", "2024-13-45"} {
		if d := OptionalDate(s); d != nil {
			t.Fatalf("OptionalDate(%q)=%v want nil", s, d)
		}
	}
	d := OptionalDate("2025-06-30T12:00:00-05:00")
	if d == nil || d.Hour() != 17 || d.Location() != time.UTC {
		t.Fatalf("RFC3339 date not normalized to UTC: %v", d)
	}
}
