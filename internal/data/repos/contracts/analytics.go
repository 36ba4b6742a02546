package contracts

import (
	"gorm.io/gorm"

	domain "github.com/yungbote/contractlens-backend/internal/domain/contracts"
	"github.com/yungbote/contractlens-backend/internal/platform/dbctx"
	"github.com/yungbote/contractlens-backend/internal/platform/logger"
)

// KeyCount is one row of a grouped count.
type KeyCount struct {
	Key   string `gorm:"column:bucket" json:"key"`
	Count int64  `gorm:"column:count" json:"count"`
}

type Totals struct {
	Documents         int64
	AnalyzedDocuments int64
	Clauses           int64
	HighRiskClauses   int64
	PendingAmendments int64
}

type AnalyticsRepo interface {
	Totals(dbc dbctx.Context) (Totals, error)
	DocumentsByType(dbc dbctx.Context) ([]KeyCount, error)
	ClausesByCategory(dbc dbctx.Context) ([]KeyCount, error)
	RiskDistribution(dbc dbctx.Context) ([]KeyCount, error)
	AmendmentsByStatus(dbc dbctx.Context) ([]KeyCount, error)
	RiskiestCategories(dbc dbctx.Context, limit int) ([]KeyCount, error)
}

type analyticsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalyticsRepo(db *gorm.DB, baseLog *logger.Logger) AnalyticsRepo {
	return &analyticsRepo{
		db:  db,
		log: baseLog.With("repo", "AnalyticsRepo"),
	}
}

var (
	highRiskLevels   = []domain.RiskLevel{domain.RiskLevelHigh, domain.RiskLevelCritical}
	pendingAmendment = []domain.AmendmentStatus{domain.AmendmentDraft, domain.AmendmentPendingReview}
)

func (r *analyticsRepo) Totals(dbc dbctx.Context) (Totals, error) {
	var t Totals
	db := dbc.DB(r.db)
	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&t.Documents, db.Model(&domain.Document{})},
		{&t.AnalyzedDocuments, db.Model(&domain.Document{}).Where("status = ?", domain.DocumentAnalyzed)},
		{&t.Clauses, db.Model(&domain.Clause{})},
		{&t.HighRiskClauses, db.Model(&domain.Clause{}).Where("risk_level IN ?", highRiskLevels)},
		{&t.PendingAmendments, db.Model(&domain.Amendment{}).Where("status IN ?", pendingAmendment)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return Totals{}, err
		}
	}
	return t, nil
}

func (r *analyticsRepo) DocumentsByType(dbc dbctx.Context) ([]KeyCount, error) {
	return r.groupCount(dbc.DB(r.db).Model(&domain.Document{}), "contract_type", 0)
}

func (r *analyticsRepo) ClausesByCategory(dbc dbctx.Context) ([]KeyCount, error) {
	return r.groupCount(dbc.DB(r.db).Model(&domain.Clause{}), "category", 0)
}

func (r *analyticsRepo) RiskDistribution(dbc dbctx.Context) ([]KeyCount, error) {
	return r.groupCount(dbc.DB(r.db).Model(&domain.Clause{}).Where("risk_level IS NOT NULL"), "risk_level", 0)
}

func (r *analyticsRepo) AmendmentsByStatus(dbc dbctx.Context) ([]KeyCount, error) {
	return r.groupCount(dbc.DB(r.db).Model(&domain.Amendment{}), "status", 0)
}

// RiskiestCategories ranks clause categories by their number of HIGH or
// CRITICAL clauses, most first.
func (r *analyticsRepo) RiskiestCategories(dbc dbctx.Context, limit int) ([]KeyCount, error) {
	if limit <= 0 {
		limit = 5
	}
	q := dbc.DB(r.db).Model(&domain.Clause{}).Where("risk_level IN ?", highRiskLevels)
	return r.groupCount(q, "category", limit)
}

// groupCount runs SELECT column, count(*) ... GROUP BY column ordered by count
// descending, then key for a stable order.
func (r *analyticsRepo) groupCount(q *gorm.DB, column string, limit int) ([]KeyCount, error) {
	out := []KeyCount{}
	q = q.Select(column + " AS bucket, count(*) AS count").
		Group(column).
		Order("count DESC").
		Order("bucket ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
