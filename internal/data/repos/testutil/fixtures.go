package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/contractlens-backend/internal/domain/contracts"
)

func SeedDocument(tb testing.TB, ctx context.Context, tx *gorm.DB, status contracts.DocumentStatus, rawText *string) *contracts.Document {
	tb.Helper()
	d := &contracts.Document{
		ID:         uuid.New(),
		Filename:   "contract.txt",
		Title:      "contract.txt",
		FileExt:    "txt",
		StorageKey: "uploads/" + uuid.NewString() + ".txt",
		Status:     status,
		RawText:    rawText,
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed document: %v", err)
	}
	return d
}

func SeedClause(tb testing.TB, ctx context.Context, tx *gorm.DB, documentID uuid.UUID, position int, category contracts.ClauseCategory, text string) *contracts.Clause {
	tb.Helper()
	c := &contracts.Clause{
		ID:         uuid.New(),
		DocumentID: documentID,
		Position:   position,
		Category:   category,
		Title:      string(category),
		Text:       text,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed clause: %v", err)
	}
	return c
}

// SeedAssessedClause seeds a clause that already carries a risk assessment.
func SeedAssessedClause(tb testing.TB, ctx context.Context, tx *gorm.DB, documentID uuid.UUID, position int, category contracts.ClauseCategory, text string, level contracts.RiskLevel, score float64) *contracts.Clause {
	tb.Helper()
	c := &contracts.Clause{
		ID:         uuid.New(),
		DocumentID: documentID,
		Position:   position,
		Category:   category,
		Title:      string(category),
		Text:       text,
	}
	c.ApplyRisk(level, score, []string{"seeded"}, nil, "seeded analysis", time.Now().UTC())
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed assessed clause: %v", err)
	}
	return c
}

func SeedAmendment(tb testing.TB, ctx context.Context, tx *gorm.DB, documentID uuid.UUID, clauseID *uuid.UUID, status contracts.AmendmentStatus) *contracts.Amendment {
	tb.Helper()
	a := &contracts.Amendment{
		ID:                uuid.New(),
		DocumentID:        documentID,
		ClauseID:          clauseID,
		Status:            status,
		OriginalText:      "original",
		ProposedText:      "proposed",
		NegotiationPoints: datatypes.NewJSONSlice([]string{}),
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed amendment: %v", err)
	}
	return a
}

func StrPtr(s string) *string { return &s }
