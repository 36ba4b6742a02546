package contracts

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Clause struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index" json:"document_id"`
	Document   *Document `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"-"`
	Position   int       `gorm:"column:position;not null;default:0" json:"position"`

	Category     ClauseCategory `gorm:"column:category;not null;default:'other';index" json:"category"`
	Title        string         `gorm:"column:title" json:"title"`
	Text         string         `gorm:"column:text;type:text;not null" json:"text"`
	SectionLabel string         `gorm:"column:section_label" json:"section_label,omitempty"`

	RiskLevel       *RiskLevel                  `gorm:"column:risk_level;index" json:"risk_level,omitempty"`
	RiskScore       *float64                    `gorm:"column:risk_score" json:"risk_score,omitempty"`
	RiskFactors     datatypes.JSONSlice[string] `gorm:"column:risk_factors;default:'[]'" json:"risk_factors"`
	KeyTerms        datatypes.JSONSlice[string] `gorm:"column:key_terms;default:'[]'" json:"key_terms"`
	Recommendations datatypes.JSONSlice[string] `gorm:"column:recommendations;default:'[]'" json:"recommendations"`
	Analysis        string                      `gorm:"column:analysis;type:text" json:"analysis,omitempty"`
	AssessedAt      *time.Time                  `gorm:"column:assessed_at" json:"assessed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Clause) TableName() string { return "clause" }

func (c *Clause) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Category == "" {
		c.Category = ClauseOther
	}
	return nil
}

// Assessed reports whether risk assessment has run on the clause.
func (c *Clause) Assessed() bool {
	return c != nil && c.RiskLevel != nil && c.RiskScore != nil
}

// ApplyRisk is the only writer of the risk fields, so level and score are set together.
func (c *Clause) ApplyRisk(level RiskLevel, score float64, factors, recommendations []string, analysis string, at time.Time) {
	lvl := level
	sc := score
	c.RiskLevel = &lvl
	c.RiskScore = &sc
	c.RiskFactors = datatypes.NewJSONSlice(factors)
	c.Recommendations = datatypes.NewJSONSlice(recommendations)
	c.Analysis = analysis
	t := at
	c.AssessedAt = &t
}
