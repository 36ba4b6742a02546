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

type AmendmentFilter struct {
	DocumentID *uuid.UUID
	Status     *domain.AmendmentStatus
	Page
}

type AmendmentRepo interface {
	CreateBatch(dbc dbctx.Context, amendments []*domain.Amendment) ([]*domain.Amendment, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Amendment, error)
	List(dbc dbctx.Context, filter AmendmentFilter) ([]*domain.Amendment, int64, error)
	UpdateStatus(dbc dbctx.Context, id uuid.UUID, status domain.AmendmentStatus) (*domain.Amendment, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type amendmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAmendmentRepo(db *gorm.DB, baseLog *logger.Logger) AmendmentRepo {
	return &amendmentRepo{
		db:  db,
		log: baseLog.With("repo", "AmendmentRepo"),
	}
}

// CreateBatch inserts every amendment or none.
func (r *amendmentRepo) CreateBatch(dbc dbctx.Context, amendments []*domain.Amendment) ([]*domain.Amendment, error) {
	if len(amendments) == 0 {
		return []*domain.Amendment{}, nil
	}
	for _, a := range amendments {
		if a == nil || a.ProposedText == "" {
			return nil, fmt.Errorf("%w: amendment without proposed text", errs.ErrInvalidArgument)
		}
	}
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&amendments).Error
	})
	if err != nil {
		return nil, err
	}
	return amendments, nil
}

func (r *amendmentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Amendment, error) {
	var a domain.Amendment
	err := dbc.DB(r.db).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("amendment %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *amendmentRepo) List(dbc dbctx.Context, filter AmendmentFilter) ([]*domain.Amendment, int64, error) {
	page := filter.Page.Normalized()
	q := dbc.DB(r.db).Model(&domain.Amendment{})
	if filter.DocumentID != nil {
		q = q.Where("document_id = ?", *filter.DocumentID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	out := []*domain.Amendment{}
	if err := q.Order("created_at DESC").Order("id ASC").Offset(page.Offset).Limit(page.Limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *amendmentRepo) UpdateStatus(dbc dbctx.Context, id uuid.UUID, status domain.AmendmentStatus) (*domain.Amendment, error) {
	parsed, ok := domain.Parse(string(status), domain.AmendmentStatuses)
	if !ok {
		return nil, fmt.Errorf("%w: unknown amendment status %q", errs.ErrInvalidArgument, status)
	}
	status = parsed
	res := dbc.DB(r.db).Model(&domain.Amendment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("amendment %s: %w", id, errs.ErrNotFound)
	}
	return r.GetByID(dbc, id)
}

func (r *amendmentRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&domain.Amendment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("amendment %s: %w", id, errs.ErrNotFound)
	}
	return nil
}
