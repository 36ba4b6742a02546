package services

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	repos "github.com/yungbote/contractlens-backend/internal/data/repos/contracts"
	"github.com/yungbote/contractlens-backend/internal/domain/contracts"
	errs "github.com/yungbote/contractlens-backend/internal/pkg/errors"
	"github.com/yungbote/contractlens-backend/internal/platform/dbctx"
	"github.com/yungbote/contractlens-backend/internal/platform/filestore"
	"github.com/yungbote/contractlens-backend/internal/platform/logger"
)

const riskiestCategoryLimit = 5

type DocumentStatusView struct {
	DocumentID  uuid.UUID                `json:"document_id"`
	Status      contracts.DocumentStatus `json:"status"`
	LastError   string                   `json:"last_error,omitempty"`
	ClauseCount int64                    `json:"clause_count"`
}

type DashboardStats struct {
	TotalDocuments    int64   `json:"total_documents"`
	AnalyzedDocuments int64   `json:"analyzed_documents"`
	TotalClauses      int64   `json:"total_clauses"`
	HighRiskClauses   int64   `json:"high_risk_clauses"`
	PendingAmendments int64   `json:"pending_amendments"`
	AnalysisRate      float64 `json:"analysis_rate"`
}

type Analytics struct {
	DocumentsByType    []repos.KeyCount `json:"documents_by_type"`
	ClausesByCategory  []repos.KeyCount `json:"clauses_by_category"`
	RiskDistribution   []repos.KeyCount `json:"risk_distribution"`
	AmendmentsByStatus []repos.KeyCount `json:"amendments_by_status"`
	RiskiestCategories []repos.KeyCount `json:"riskiest_categories"`
}

// ContractService is the read and delete surface over documents, clauses and
// amendments. Pipeline writes go through the analysis orchestrator instead.
type ContractService interface {
	GetDocument(dbc dbctx.Context, id uuid.UUID) (*contracts.Document, error)
	ListDocuments(dbc dbctx.Context, filter repos.DocumentFilter) ([]*contracts.Document, int64, error)
	DocumentStatus(dbc dbctx.Context, id uuid.UUID) (*DocumentStatusView, error)
	DeleteDocument(dbc dbctx.Context, id uuid.UUID) error

	ListClauses(dbc dbctx.Context, documentID uuid.UUID, filter repos.ClauseFilter) ([]*contracts.Clause, error)
	GetClause(dbc dbctx.Context, id uuid.UUID) (*contracts.Clause, error)
	DeleteClause(dbc dbctx.Context, id uuid.UUID) error

	ListAmendments(dbc dbctx.Context, filter repos.AmendmentFilter) ([]*contracts.Amendment, int64, error)
	GetAmendment(dbc dbctx.Context, id uuid.UUID) (*contracts.Amendment, error)
	DeleteAmendment(dbc dbctx.Context, id uuid.UUID) error

	Stats(dbc dbctx.Context) (*DashboardStats, error)
	Analytics(dbc dbctx.Context) (*Analytics, error)
}

type contractService struct {
	db         *gorm.DB
	log        *logger.Logger
	documents  repos.DocumentRepo
	clauses    repos.ClauseRepo
	amendments repos.AmendmentRepo
	analytics  repos.AnalyticsRepo
	files      filestore.Store
}

func NewContractService(
	db *gorm.DB,
	baseLog *logger.Logger,
	documents repos.DocumentRepo,
	clauses repos.ClauseRepo,
	amendments repos.AmendmentRepo,
	analytics repos.AnalyticsRepo,
	files filestore.Store,
) ContractService {
	return &contractService{
		db:         db,
		log:        baseLog.With("service", "ContractService"),
		documents:  documents,
		clauses:    clauses,
		amendments: amendments,
		analytics:  analytics,
		files:      files,
	}
}

func (s *contractService) GetDocument(dbc dbctx.Context, id uuid.UUID) (*contracts.Document, error) {
	return s.documents.GetByID(dbc, id)
}

func (s *contractService) ListDocuments(dbc dbctx.Context, filter repos.DocumentFilter) ([]*contracts.Document, int64, error) {
	return s.documents.List(dbc, filter)
}

func (s *contractService) DocumentStatus(dbc dbctx.Context, id uuid.UUID) (*DocumentStatusView, error) {
	doc, err := s.documents.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	n, err := s.clauses.CountByDocument(dbc, id)
	if err != nil {
		return nil, err
	}
	return &DocumentStatusView{DocumentID: doc.ID, Status: doc.Status, LastError: doc.LastError, ClauseCount: n}, nil
}

// DeleteDocument refuses while a pipeline step owns the document. The stored
// file is removed after the rows; a leftover file is only logged.
func (s *contractService) DeleteDocument(dbc dbctx.Context, id uuid.UUID) error {
	doc, err := s.documents.GetByID(dbc, id)
	if err != nil {
		return err
	}
	if doc.Status.InProgress() {
		return fmt.Errorf("%w: document %s is %s", errs.ErrPrecondition, id, doc.Status)
	}
	if err := s.documents.Delete(dbc, id); err != nil {
		return err
	}
	if s.files != nil && doc.StorageKey != "" {
		if err := s.files.Delete(dbc.Ctx, doc.StorageKey); err != nil {
			s.log.Warn("stored file not removed", "document_id", id, "key", doc.StorageKey, "error", err)
		}
	}
	s.log.Info("document deleted", "document_id", id)
	return nil
}

func (s *contractService) ListClauses(dbc dbctx.Context, documentID uuid.UUID, filter repos.ClauseFilter) ([]*contracts.Clause, error) {
	if _, err := s.documents.GetByID(dbc, documentID); err != nil {
		return nil, err
	}
	return s.clauses.ListByDocument(dbc, documentID, filter)
}

func (s *contractService) GetClause(dbc dbctx.Context, id uuid.UUID) (*contracts.Clause, error) {
	return s.clauses.GetByID(dbc, id)
}

func (s *contractService) DeleteClause(dbc dbctx.Context, id uuid.UUID) error {
	return s.clauses.Delete(dbc, id)
}

func (s *contractService) ListAmendments(dbc dbctx.Context, filter repos.AmendmentFilter) ([]*contracts.Amendment, int64, error) {
	return s.amendments.List(dbc, filter)
}

func (s *contractService) GetAmendment(dbc dbctx.Context, id uuid.UUID) (*contracts.Amendment, error) {
	return s.amendments.GetByID(dbc, id)
}

func (s *contractService) DeleteAmendment(dbc dbctx.Context, id uuid.UUID) error {
	return s.amendments.Delete(dbc, id)
}

func (s *contractService) Stats(dbc dbctx.Context) (*DashboardStats, error) {
	t, err := s.analytics.Totals(dbc)
	if err != nil {
		return nil, err
	}
	return &DashboardStats{
		TotalDocuments:    t.Documents,
		AnalyzedDocuments: t.AnalyzedDocuments,
		TotalClauses:      t.Clauses,
		HighRiskClauses:   t.HighRiskClauses,
		PendingAmendments: t.PendingAmendments,
		AnalysisRate:      analysisRate(t.AnalyzedDocuments, t.Documents),
	}, nil
}

// analysisRate is the analyzed share in percent, rounded to one decimal.
func analysisRate(analyzed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(analyzed)*1000/float64(total)) / 10
}

func (s *contractService) Analytics(dbc dbctx.Context) (*Analytics, error) {
	var (
		out Analytics
		err error
	)
	if out.DocumentsByType, err = s.analytics.DocumentsByType(dbc); err != nil {
		return nil, err
	}
	if out.ClausesByCategory, err = s.analytics.ClausesByCategory(dbc); err != nil {
		return nil, err
	}
	if out.RiskDistribution, err = s.analytics.RiskDistribution(dbc); err != nil {
		return nil, err
	}
	if out.AmendmentsByStatus, err = s.analytics.AmendmentsByStatus(dbc); err != nil {
		return nil, err
	}
	if out.RiskiestCategories, err = s.analytics.RiskiestCategories(dbc, riskiestCategoryLimit); err != nil {
		return nil, err
	}
	return &out, nil
}
