package contracts

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Amendment struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID uuid.UUID  `gorm:"type:uuid;not null;index" json:"document_id"`
	Document   *Document  `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"-"`
	ClauseID   *uuid.UUID `gorm:"type:uuid;index" json:"clause_id,omitempty"`
	Clause     *Clause    `gorm:"constraint:OnDelete:SET NULL;foreignKey:ClauseID;references:ID" json:"-"`

	Kind              AmendmentKind               `gorm:"column:kind;not null;default:'modification'" json:"kind"`
	Status            AmendmentStatus             `gorm:"column:status;not null;default:'draft';index" json:"status"`
	Priority          Priority                    `gorm:"column:priority;not null;default:'medium'" json:"priority"`
	OriginalText      string                      `gorm:"column:original_text;type:text" json:"original_text"`
	ProposedText      string                      `gorm:"column:proposed_text;type:text;not null" json:"proposed_text"`
	Rationale         string                      `gorm:"column:rationale;type:text" json:"rationale"`
	RiskMitigation    string                      `gorm:"column:risk_mitigation;type:text" json:"risk_mitigation"`
	NegotiationPoints datatypes.JSONSlice[string] `gorm:"column:negotiation_points;default:'[]'" json:"negotiation_points"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Amendment) TableName() string { return "amendment" }

func (a *Amendment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Kind == "" {
		a.Kind = AmendmentModification
	}
	if a.Status == "" {
		a.Status = AmendmentDraft
	}
	if a.Priority == "" {
		a.Priority = PriorityMedium
	}
	return nil
}
