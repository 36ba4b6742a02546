package contracts

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DocumentStatus string

const (
	DocumentUploaded  DocumentStatus = "uploaded"
	DocumentParsing   DocumentStatus = "parsing"
	DocumentParsed    DocumentStatus = "parsed"
	DocumentAnalyzing DocumentStatus = "analyzing"
	DocumentAnalyzed  DocumentStatus = "analyzed"
	DocumentError     DocumentStatus = "error"
)

var DocumentStatuses = []DocumentStatus{
	DocumentUploaded, DocumentParsing, DocumentParsed, DocumentAnalyzing, DocumentAnalyzed, DocumentError,
}

// transitions lists every legal edge of the document lifecycle.
// ERROR is terminal except for an explicit re-trigger: re-parse when clause
// extraction never completed, re-analysis when raw text exists.
var transitions = map[DocumentStatus][]DocumentStatus{
	DocumentUploaded:  {DocumentParsing},
	DocumentParsing:   {DocumentParsed, DocumentError},
	DocumentParsed:    {DocumentAnalyzing},
	DocumentAnalyzing: {DocumentAnalyzed, DocumentError},
	DocumentAnalyzed:  {DocumentAnalyzing},
	DocumentError:     {DocumentParsing, DocumentAnalyzing},
}

func CanTransition(from, to DocumentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InProgress reports whether a pipeline step currently owns the document.
func (s DocumentStatus) InProgress() bool {
	return s == DocumentParsing || s == DocumentAnalyzing
}

type Document struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Filename   string         `gorm:"column:filename;not null" json:"filename"`
	Title      string         `gorm:"column:title" json:"title"`
	FileExt    string         `gorm:"column:file_ext;not null" json:"file_ext"`
	SizeBytes  int64          `gorm:"column:size_bytes" json:"size_bytes"`
	StorageKey string         `gorm:"column:storage_key;not null" json:"-"`
	Status     DocumentStatus `gorm:"column:status;not null;index" json:"status"`
	LastError  string         `gorm:"column:last_error" json:"last_error,omitempty"`

	RawText *string `gorm:"column:raw_text;type:text" json:"-"`

	ContractType      ContractType                `gorm:"column:contract_type;not null;default:'other';index" json:"contract_type"`
	Summary           string                      `gorm:"column:summary;type:text" json:"summary"`
	Parties           datatypes.JSONSlice[string] `gorm:"column:parties;default:'[]'" json:"parties"`
	EffectiveDate     *time.Time                  `gorm:"column:effective_date" json:"effective_date,omitempty"`
	ExpirationDate    *time.Time                  `gorm:"column:expiration_date" json:"expiration_date,omitempty"`
	RiskRating        *RiskRating                 `gorm:"column:risk_rating" json:"risk_rating,omitempty"`
	OverallAssessment string                      `gorm:"column:overall_assessment;type:text" json:"overall_assessment"`
	KeyTerms          datatypes.JSONSlice[string] `gorm:"column:key_terms;default:'[]'" json:"key_terms"`
	Recommendations   datatypes.JSONSlice[string] `gorm:"column:recommendations;default:'[]'" json:"recommendations"`
	AnalyzedAt        *time.Time                  `gorm:"column:analyzed_at" json:"analyzed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Document) TableName() string { return "document" }

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = DocumentUploaded
	}
	if d.ContractType == "" {
		d.ContractType = ContractTypeOther
	}
	return nil
}

// HasText reports whether extraction has produced raw text.
func (d *Document) HasText() bool {
	return d != nil && d.RawText != nil
}
