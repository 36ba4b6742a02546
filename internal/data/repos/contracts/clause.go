package contracts

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/yungbote/contractlens-backend/internal/domain/contracts"
	errs "github.com/yungbote/contractlens-backend/internal/pkg/errors"
	"github.com/yungbote/contractlens-backend/internal/platform/dbctx"
	"github.com/yungbote/contractlens-backend/internal/platform/logger"
)

type ClauseFilter struct {
	Category  *domain.ClauseCategory
	RiskLevel *domain.RiskLevel
}

type ClauseRepo interface {
	CreateBatch(dbc dbctx.Context, clauses []*domain.Clause) ([]*domain.Clause, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Clause, error)
	ListByDocument(dbc dbctx.Context, documentID uuid.UUID, filter ClauseFilter) ([]*domain.Clause, error)
	CountByDocument(dbc dbctx.Context, documentID uuid.UUID) (int64, error)
	UpdateRisk(dbc dbctx.Context, clause *domain.Clause) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type clauseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClauseRepo(db *gorm.DB, baseLog *logger.Logger) ClauseRepo {
	return &clauseRepo{
		db:  db,
		log: baseLog.With("repo", "ClauseRepo"),
	}
}

func (r *clauseRepo) CreateBatch(dbc dbctx.Context, clauses []*domain.Clause) ([]*domain.Clause, error) {
	if len(clauses) == 0 {
		return []*domain.Clause{}, nil
	}
	if err := dbc.DB(r.db).Create(&clauses).Error; err != nil {
		return nil, err
	}
	return clauses, nil
}

func (r *clauseRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Clause, error) {
	var c domain.Clause
	err := dbc.DB(r.db).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("clause %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *clauseRepo) ListByDocument(dbc dbctx.Context, documentID uuid.UUID, filter ClauseFilter) ([]*domain.Clause, error) {
	q := dbc.DB(r.db).Where("document_id = ?", documentID)
	if filter.Category != nil {
		q = q.Where("category = ?", *filter.Category)
	}
	if filter.RiskLevel != nil {
		q = q.Where("risk_level = ?", *filter.RiskLevel)
	}
	out := []*domain.Clause{}
	if err := q.Order("position ASC").Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *clauseRepo) CountByDocument(dbc dbctx.Context, documentID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&domain.Clause{}).Where("document_id = ?", documentID).Count(&n).Error
	return n, err
}

// UpdateRisk persists the risk fields set by Clause.ApplyRisk and nothing else.
func (r *clauseRepo) UpdateRisk(dbc dbctx.Context, clause *domain.Clause) error {
	if clause == nil || !clause.Assessed() {
		return fmt.Errorf("%w: clause has no risk assessment", errs.ErrInvalidArgument)
	}
	res := dbc.DB(r.db).Model(&domain.Clause{}).
		Where("id = ?", clause.ID).
		Updates(map[string]interface{}{
			"risk_level":      *clause.RiskLevel,
			"risk_score":      *clause.RiskScore,
			"risk_factors":    clause.RiskFactors,
			"recommendations": clause.Recommendations,
			"analysis":        clause.Analysis,
			"assessed_at":     clause.AssessedAt,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("clause %s: %w", clause.ID, errs.ErrNotFound)
	}
	return nil
}

// Delete removes the clause. Amendments that referenced it keep their row
// with clause_id cleared.
func (r *clauseRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	return dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Amendment{}).
			Where("clause_id = ?", id).
			Updates(map[string]interface{}{"clause_id": nil, "updated_at": time.Now().UTC()}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Clause{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("clause %s: %w", id, errs.ErrNotFound)
		}
		return nil
	})
}
