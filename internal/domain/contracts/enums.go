package contracts

import "strings"

type ContractType string

const (
	ContractTypeNDA         ContractType = "nda"
	ContractTypeEmployment  ContractType = "employment"
	ContractTypeService     ContractType = "service"
	ContractTypeLicense     ContractType = "license"
	ContractTypeLease       ContractType = "lease"
	ContractTypePurchase    ContractType = "purchase"
	ContractTypePartnership ContractType = "partnership"
	ContractTypeOther       ContractType = "other"
)

var ContractTypes = []ContractType{
	ContractTypeNDA, ContractTypeEmployment, ContractTypeService, ContractTypeLicense,
	ContractTypeLease, ContractTypePurchase, ContractTypePartnership, ContractTypeOther,
}

// RiskRating is the whole-document rating produced by the document analyzer.
type RiskRating string

const (
	RiskRatingLow    RiskRating = "low"
	RiskRatingMedium RiskRating = "medium"
	RiskRatingHigh   RiskRating = "high"
)

var RiskRatings = []RiskRating{RiskRatingLow, RiskRatingMedium, RiskRatingHigh}

// RiskLevel is the per-clause severity. Levels are ordered.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

var RiskLevels = []RiskLevel{RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelCritical}

// Rank orders levels LOW < MEDIUM < HIGH < CRITICAL. Unknown levels rank 0.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLevelLow:
		return 1
	case RiskLevelMedium:
		return 2
	case RiskLevelHigh:
		return 3
	case RiskLevelCritical:
		return 4
	default:
		return 0
	}
}

// AtLeast returns the levels ranked at or above l, lowest first.
func (l RiskLevel) AtLeast() []RiskLevel {
	out := make([]RiskLevel, 0, len(RiskLevels))
	for _, lvl := range RiskLevels {
		if l.Rank() > 0 && lvl.Rank() >= l.Rank() {
			out = append(out, lvl)
		}
	}
	return out
}

type ClauseCategory string

const (
	ClauseTermination          ClauseCategory = "termination"
	ClauseConfidentiality      ClauseCategory = "confidentiality"
	ClauseIndemnification      ClauseCategory = "indemnification"
	ClauseLiability            ClauseCategory = "liability"
	ClauseIntellectualProperty ClauseCategory = "intellectual_property"
	ClauseNonCompete           ClauseCategory = "non_compete"
	ClauseNonSolicitation      ClauseCategory = "non_solicitation"
	ClausePayment              ClauseCategory = "payment"
	ClauseWarranty             ClauseCategory = "warranty"
	ClauseDisputeResolution    ClauseCategory = "dispute_resolution"
	ClauseForceMajeure         ClauseCategory = "force_majeure"
	ClauseGoverningLaw         ClauseCategory = "governing_law"
	ClauseAssignment           ClauseCategory = "assignment"
	ClauseAmendment            ClauseCategory = "amendment"
	ClauseNotices              ClauseCategory = "notices"
	ClauseEntireAgreement      ClauseCategory = "entire_agreement"
	ClauseSeverability         ClauseCategory = "severability"
	ClauseOther                ClauseCategory = "other"
)

var ClauseCategories = []ClauseCategory{
	ClauseTermination, ClauseConfidentiality, ClauseIndemnification, ClauseLiability,
	ClauseIntellectualProperty, ClauseNonCompete, ClauseNonSolicitation, ClausePayment,
	ClauseWarranty, ClauseDisputeResolution, ClauseForceMajeure, ClauseGoverningLaw,
	ClauseAssignment, ClauseAmendment, ClauseNotices, ClauseEntireAgreement,
	ClauseSeverability, ClauseOther,
}

type AmendmentKind string

const (
	AmendmentModification AmendmentKind = "modification"
	AmendmentAddition     AmendmentKind = "addition"
	AmendmentDeletion     AmendmentKind = "deletion"
	AmendmentReplacement  AmendmentKind = "replacement"
)

var AmendmentKinds = []AmendmentKind{AmendmentModification, AmendmentAddition, AmendmentDeletion, AmendmentReplacement}

type AmendmentStatus string

const (
	AmendmentDraft         AmendmentStatus = "draft"
	AmendmentPendingReview AmendmentStatus = "pending_review"
	AmendmentApproved      AmendmentStatus = "approved"
	AmendmentRejected      AmendmentStatus = "rejected"
	AmendmentApplied       AmendmentStatus = "applied"
)

var AmendmentStatuses = []AmendmentStatus{
	AmendmentDraft, AmendmentPendingReview, AmendmentApproved, AmendmentRejected, AmendmentApplied,
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Parse matches raw against allowed exactly (after trimming and lower-casing).
// It never falls back; callers handling untrusted model output use the normalizer instead.
func Parse[T ~string](raw string, allowed []T) (T, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	for _, v := range allowed {
		if string(v) == key {
			return v, true
		}
	}
	var zero T
	return zero, false
}
