package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	repos "github.com/yungbote/contractlens-backend/internal/data/repos/contracts"
	"github.com/yungbote/contractlens-backend/internal/domain/contracts"
	"github.com/yungbote/contractlens-backend/internal/domain/jobs"
	"github.com/yungbote/contractlens-backend/internal/http/response"
	"github.com/yungbote/contractlens-backend/internal/modules/analysis"
	errs "github.com/yungbote/contractlens-backend/internal/pkg/errors"
	"github.com/yungbote/contractlens-backend/internal/platform/apierr"
	"github.com/yungbote/contractlens-backend/internal/services"
)

// Pipeline is the synchronous part of the analysis orchestrator the API calls.
type Pipeline interface {
	CreateDocument(ctx context.Context, up analysis.Upload) (*contracts.Document, error)
	AssessRisk(ctx context.Context, clauseID uuid.UUID) (*contracts.Clause, error)
	GenerateAmendmentForClause(ctx context.Context, clauseID uuid.UUID) (*contracts.Amendment, error)
	UpdateAmendmentStatus(ctx context.Context, amendmentID uuid.UUID, status string) (*contracts.Amendment, error)
}

// multipartSlack covers form boundaries and the title field on top of the file.
const multipartSlack = 1 << 20

type DocumentHandler struct {
	contracts services.ContractService
	jobs      services.JobService
	pipeline  Pipeline

	maxUploadBytes   int64
	defaultThreshold contracts.RiskLevel
}

func NewDocumentHandler(contractSvc services.ContractService, jobSvc services.JobService, pipeline Pipeline, maxUploadBytes int64, defaultThreshold contracts.RiskLevel) *DocumentHandler {
	if defaultThreshold == "" {
		defaultThreshold = analysis.DefaultRiskThreshold
	}
	return &DocumentHandler{
		contracts:        contractSvc,
		jobs:             jobSvc,
		pipeline:         pipeline,
		maxUploadBytes:   maxUploadBytes,
		defaultThreshold: defaultThreshold,
	}
}

func (h *DocumentHandler) tooLarge() error {
	return apierr.New(http.StatusRequestEntityTooLarge, apierr.CodePayloadTooLarge,
		fmt.Errorf("file exceeds the %d byte upload limit", h.maxUploadBytes))
}

// POST /api/documents
func (h *DocumentHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartSlack)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			response.RespondErr(c, h.tooLarge())
			return
		}
		response.RespondErr(c, fmt.Errorf("%w: multipart field \"file\" is required", errs.ErrInvalidArgument))
		return
	}
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		response.RespondErr(c, h.tooLarge())
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	doc, err := h.pipeline.CreateDocument(ctx, analysis.Upload{
		Filename: fh.Filename,
		Title:    c.PostForm("title"),
		Body:     f,
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	job, err := h.enqueue(c, jobs.TypeDocumentIngest, doc.ID, nil)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"document": doc, "job": job})
}

func (h *DocumentHandler) enqueue(c *gin.Context, jobType string, documentID uuid.UUID, extra map[string]any) (*jobs.JobRun, error) {
	payload := map[string]any{"document_id": documentID.String()}
	for k, v := range extra {
		payload[k] = v
	}
	return h.jobs.Enqueue(requestDBC(c), jobType, jobs.EntityTypeDocument, &documentID, payload)
}

// GET /api/documents
func (h *DocumentHandler) List(c *gin.Context) {
	var (
		filter repos.DocumentFilter
		err    error
	)
	if filter.Status, err = queryEnum(c, "status", contracts.DocumentStatuses); err != nil {
		response.RespondErr(c, err)
		return
	}
	if filter.ContractType, err = queryEnum(c, "contract_type", contracts.ContractTypes); err != nil {
		response.RespondErr(c, err)
		return
	}
	if filter.Page, err = queryPage(c); err != nil {
		response.RespondErr(c, err)
		return
	}
	docs, total, err := h.contracts.ListDocuments(requestDBC(c), filter)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	page := filter.Page.Normalized()
	response.RespondOK(c, gin.H{"documents": docs, "total": total, "offset": page.Offset, "limit": page.Limit})
}

// GET /api/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	doc, err := h.contracts.GetDocument(requestDBC(c), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"document": doc})
}

// GET /api/documents/:id/status
func (h *DocumentHandler) Status(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	view, err := h.contracts.DocumentStatus(requestDBC(c), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	job, err := h.jobs.GetLatestForEntity(requestDBC(c), jobs.EntityTypeDocument, id, "")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"status": view, "job": job})
}

// DELETE /api/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if err := h.contracts.DeleteDocument(requestDBC(c), id); err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true, "id": id})
}

// POST /api/documents/:id/analyze
//
// A document whose clauses were never extracted is parsed from its upload;
// otherwise the stored text is analyzed again.
func (h *DocumentHandler) Analyze(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	view, err := h.contracts.DocumentStatus(requestDBC(c), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if view.Status.InProgress() {
		response.RespondErr(c, fmt.Errorf("%w: document is %s", errs.ErrPrecondition, view.Status))
		return
	}
	jobType := jobs.TypeDocumentReanalyze
	if view.Status == contracts.DocumentUploaded || (view.Status == contracts.DocumentError && view.ClauseCount == 0) {
		jobType = jobs.TypeDocumentIngest
	}
	job, err := h.enqueue(c, jobType, id, nil)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"job": job})
}

// POST /api/documents/:id/assess-risks
func (h *DocumentHandler) AssessRisks(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	view, err := h.contracts.DocumentStatus(requestDBC(c), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if view.ClauseCount == 0 {
		response.RespondErr(c, fmt.Errorf("%w: document has no clauses", errs.ErrPrecondition))
		return
	}
	job, err := h.enqueue(c, jobs.TypeClauseRiskBatch, id, nil)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"job": job})
}

// POST /api/documents/:id/amendments/generate
func (h *DocumentHandler) GenerateAmendments(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	threshold, err := analysis.ParseThreshold(c.Query("risk_threshold"), h.defaultThreshold)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if _, err := h.contracts.GetDocument(requestDBC(c), id); err != nil {
		response.RespondErr(c, err)
		return
	}
	job, err := h.enqueue(c, jobs.TypeAmendmentGenerate, id, map[string]any{"risk_threshold": string(threshold)})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"job": job})
}

// GET /api/documents/:id/clauses
func (h *DocumentHandler) ListClauses(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	var filter repos.ClauseFilter
	if filter.Category, err = queryEnum(c, "category", contracts.ClauseCategories); err != nil {
		response.RespondErr(c, err)
		return
	}
	if filter.RiskLevel, err = queryEnum(c, "risk_level", contracts.RiskLevels); err != nil {
		response.RespondErr(c, err)
		return
	}
	clauses, err := h.contracts.ListClauses(requestDBC(c), id, filter)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"clauses": clauses, "total": len(clauses)})
}
