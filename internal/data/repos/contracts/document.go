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

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

type Page struct {
	Offset int
	Limit  int
}

// Normalized clamps the page to the list defaults.
func (p Page) Normalized() Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultListLimit
	}
	if p.Limit > MaxListLimit {
		p.Limit = MaxListLimit
	}
	return p
}

type DocumentFilter struct {
	Status       *domain.DocumentStatus
	ContractType *domain.ContractType
	Page
}

type DocumentRepo interface {
	Create(dbc dbctx.Context, doc *domain.Document) (*domain.Document, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Document, error)
	List(dbc dbctx.Context, filter DocumentFilter) ([]*domain.Document, int64, error)
	TransitionStatus(dbc dbctx.Context, id uuid.UUID, from, to domain.DocumentStatus, updates map[string]interface{}) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{
		db:  db,
		log: baseLog.With("repo", "DocumentRepo"),
	}
}

func (r *documentRepo) Create(dbc dbctx.Context, doc *domain.Document) (*domain.Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", errs.ErrInvalidArgument)
	}
	if err := dbc.DB(r.db).Create(doc).Error; err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *documentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	err := dbc.DB(r.db).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("document %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepo) List(dbc dbctx.Context, filter DocumentFilter) ([]*domain.Document, int64, error) {
	page := filter.Page.Normalized()
	q := dbc.DB(r.db).Model(&domain.Document{})
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.ContractType != nil {
		q = q.Where("contract_type = ?", *filter.ContractType)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	out := []*domain.Document{}
	if err := q.Order("created_at DESC").Offset(page.Offset).Limit(page.Limit).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// TransitionStatus moves the document from -> to only if it is still in from.
// A missing document is ErrNotFound; any other lost race is ErrPrecondition.
func (r *documentRepo) TransitionStatus(dbc dbctx.Context, id uuid.UUID, from, to domain.DocumentStatus, updates map[string]interface{}) error {
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("%w: document cannot move from %s to %s", errs.ErrPrecondition, from, to)
	}
	values := map[string]interface{}{}
	for k, v := range updates {
		values[k] = v
	}
	values["status"] = to
	if _, ok := values["updated_at"]; !ok {
		values["updated_at"] = time.Now().UTC()
	}
	res := dbc.DB(r.db).Model(&domain.Document{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	current, err := r.GetByID(dbc, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: document %s is %s, expected %s", errs.ErrPrecondition, id, current.Status, from)
}

func (r *documentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := dbc.DB(r.db).Model(&domain.Document{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("document %s: %w", id, errs.ErrNotFound)
	}
	return nil
}

// Delete removes the document with its amendments and clauses in one transaction.
func (r *documentRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	return dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&domain.Amendment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", id).Delete(&domain.Clause{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Document{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("document %s: %w", id, errs.ErrNotFound)
		}
		r.log.Debug("document deleted", "document_id", id)
		return nil
	})
}
