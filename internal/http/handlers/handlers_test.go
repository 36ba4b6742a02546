package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	repos "github.com/yungbote/contractlens-backend/internal/data/repos/contracts"
	jobrepos "github.com/yungbote/contractlens-backend/internal/data/repos/jobs"
	"github.com/yungbote/contractlens-backend/internal/data/repos/testutil"
	"github.com/yungbote/contractlens-backend/internal/domain/contracts"
	"github.com/yungbote/contractlens-backend/internal/domain/jobs"
	"github.com/yungbote/contractlens-backend/internal/modules/analysis"
	"github.com/yungbote/contractlens-backend/internal/modules/analysis/steps"
	errs "github.com/yungbote/contractlens-backend/internal/pkg/errors"
	"github.com/yungbote/contractlens-backend/internal/platform/dbctx"
	"github.com/yungbote/contractlens-backend/internal/services"
)

type fakePipeline struct {
	docs       repos.DocumentRepo
	assessErr  error
	statusSeen string
}

func (p *fakePipeline) CreateDocument(ctx context.Context, up analysis.Upload) (*contracts.Document, error) {
	if _, err := io.ReadAll(up.Body); err != nil {
		return nil, err
	}
	return p.docs.Create(dbctx.Context{Ctx: ctx}, &contracts.Document{
		ID:         uuid.New(),
		Filename:   up.Filename,
		Title:      up.Title,
		FileExt:    "txt",
		StorageKey: "documents/x.txt",
		Status:     contracts.DocumentUploaded,
	})
}

func (p *fakePipeline) AssessRisk(context.Context, uuid.UUID) (*contracts.Clause, error) {
	return nil, p.assessErr
}

func (p *fakePipeline) GenerateAmendmentForClause(context.Context, uuid.UUID) (*contracts.Amendment, error) {
	return nil, fmt.Errorf("%w: clause", errs.ErrNotFound)
}

func (p *fakePipeline) UpdateAmendmentStatus(_ context.Context, id uuid.UUID, status string) (*contracts.Amendment, error) {
	p.statusSeen = status
	return &contracts.Amendment{ID: id, Status: contracts.AmendmentStatus(status)}, nil
}

type apiFixture struct {
	db       *gorm.DB
	engine   *gin.Engine
	pipeline *fakePipeline
}

func newAPIFixture(t *testing.T, maxUpload int64) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)

	docs := repos.NewDocumentRepo(db, log)
	contractSvc := services.NewContractService(db, log, docs, repos.NewClauseRepo(db, log),
		repos.NewAmendmentRepo(db, log), repos.NewAnalyticsRepo(db, log), nil)
	jobSvc := services.NewJobService(db, log, jobrepos.NewJobRunRepo(db, log), nil)
	pipeline := &fakePipeline{docs: docs}

	dh := NewDocumentHandler(contractSvc, jobSvc, pipeline, maxUpload, "")
	ch := NewClauseHandler(contractSvc, pipeline)
	ah := NewAmendmentHandler(contractSvc, pipeline)
	an := NewAnalyticsHandler(contractSvc)
	jh := NewJobHandler(jobSvc)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/documents", dh.Upload)
	api.GET("/documents", dh.List)
	api.GET("/documents/:id", dh.Get)
	api.GET("/documents/:id/status", dh.Status)
	api.DELETE("/documents/:id", dh.Delete)
	api.POST("/documents/:id/analyze", dh.Analyze)
	api.POST("/documents/:id/assess-risks", dh.AssessRisks)
	api.POST("/documents/:id/amendments/generate", dh.GenerateAmendments)
	api.GET("/documents/:id/clauses", dh.ListClauses)
	api.POST("/clauses/:id/assess-risk", ch.AssessRisk)
	api.POST("/clauses/:id/amendments/generate", ch.GenerateAmendment)
	api.GET("/amendments", ah.List)
	api.PATCH("/amendments/:id/status", ah.UpdateStatus)
	api.GET("/analytics/stats", an.Stats)
	api.GET("/jobs/:id", jh.GetJob)

	return &apiFixture{db: db, engine: r, pipeline: pipeline}
}

func (f *apiFixture) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	var body map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s: %v", w.Body.String(), err)
		}
	}
	return w, body
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func multipartUpload(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(content))
	_ = mw.WriteField("title", "Supply agreement")
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadEnqueuesIngestJob(t *testing.T) {
	f := newAPIFixture(t, 1<<20)

	w, body := f.do(t, multipartUpload(t, "supply.txt", "The supplier shall deliver."))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%v", w.Code, body)
	}
	job, _ := body["job"].(map[string]any)
	if job["job_type"] != jobs.TypeDocumentIngest || job["status"] != jobs.StatusQueued {
		t.Fatalf("job = %v", job)
	}
	doc, _ := body["document"].(map[string]any)
	if doc["status"] != string(contracts.DocumentUploaded) || doc["title"] != "Supply agreement" {
		t.Fatalf("document = %v", doc)
	}

	w, body = f.do(t, httptest.NewRequest(http.MethodGet, "/api/jobs/"+job["id"].(string), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get job status = %d body=%v", w.Code, body)
	}

	// A second job for the same document is refused while the first is queued.
	w, body = f.do(t, httptest.NewRequest(http.MethodPost, "/api/documents/"+doc["id"].(string)+"/analyze", nil))
	if w.Code != http.StatusBadRequest || errorCode(body) != "precondition_failed" {
		t.Fatalf("duplicate enqueue: status=%d body=%v", w.Code, body)
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	f := newAPIFixture(t, 16)

	w, body := f.do(t, multipartUpload(t, "big.txt", "this body is longer than sixteen bytes"))
	if w.Code != http.StatusRequestEntityTooLarge || errorCode(body) != "payload_too_large" {
		t.Fatalf("status=%d body=%v", w.Code, body)
	}
}

func TestUploadRequiresFile(t *testing.T) {
	f := newAPIFixture(t, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/api/documents", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	w, body := f.do(t, req)
	if w.Code != http.StatusBadRequest || errorCode(body) != "invalid_argument" {
		t.Fatalf("status=%d body=%v", w.Code, body)
	}
}

func TestListDocumentsFilters(t *testing.T) {
	f := newAPIFixture(t, 1<<20)
	ctx := context.Background()
	testutil.SeedDocument(t, ctx, f.db, contracts.DocumentParsed, testutil.StrPtr("text"))
	testutil.SeedDocument(t, ctx, f.db, contracts.DocumentUploaded, nil)

	w, body := f.do(t, httptest.NewRequest(http.MethodGet, "/api/documents?status=parsed", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%v", w.Code, body)
	}
	if body["total"].(float64) != 1 || body["limit"].(float64) != repos.DefaultListLimit {
		t.Fatalf("body = %v", body)
	}

	for _, q := range []string{"status=done", "contract_type=rental", "limit=abc", "offset=-1"} {
		w, body = f.do(t, httptest.NewRequest(http.MethodGet, "/api/documents?"+q, nil))
		if w.Code != http.StatusBadRequest || errorCode(body) != "invalid_argument" {
			t.Fatalf("%s: status=%d body=%v", q, w.Code, body)
		}
	}
}

func TestDocumentRoutesMapErrors(t *testing.T) {
	f := newAPIFixture(t, 1<<20)
	ctx := context.Background()
	empty := testutil.SeedDocument(t, ctx, f.db, contracts.DocumentParsed, testutil.StrPtr("text"))
	running := testutil.SeedDocument(t, ctx, f.db, contracts.DocumentParsing, nil)

	cases := []struct {
		name, method, path string
		status             int
		code               string
	}{
		{"bad id", http.MethodGet, "/api/documents/nope", http.StatusBadRequest, "invalid_argument"},
		{"missing", http.MethodGet, "/api/documents/" + uuid.NewString(), http.StatusNotFound, "not_found"},
		{"no clauses to assess", http.MethodPost, "/api/documents/" + empty.ID.String() + "/assess-risks", http.StatusBadRequest, "precondition_failed"},
		{"analyze while running", http.MethodPost, "/api/documents/" + running.ID.String() + "/analyze", http.StatusBadRequest, "precondition_failed"},
		{"delete while running", http.MethodDelete, "/api/documents/" + running.ID.String(), http.StatusBadRequest, "precondition_failed"},
		{"bad threshold", http.MethodPost, "/api/documents/" + empty.ID.String() + "/amendments/generate?risk_threshold=severe", http.StatusBadRequest, "invalid_argument"},
		{"clauses of missing document", http.MethodGet, "/api/documents/" + uuid.NewString() + "/clauses", http.StatusNotFound, "not_found"},
		{"missing job", http.MethodGet, "/api/jobs/" + uuid.NewString(), http.StatusNotFound, "not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := f.do(t, httptest.NewRequest(tc.method, tc.path, nil))
			if w.Code != tc.status || errorCode(body) != tc.code {
				t.Fatalf("status=%d body=%v", w.Code, body)
			}
		})
	}
}

func TestAnalyzePicksJobByState(t *testing.T) {
	f := newAPIFixture(t, 1<<20)
	ctx := context.Background()
	failedEarly := testutil.SeedDocument(t, ctx, f.db, contracts.DocumentError, nil)
	parsed := testutil.SeedDocument(t, ctx, f.db, contracts.DocumentParsed, testutil.StrPtr("text"))
	testutil.SeedClause(t, ctx, f.db, parsed.ID, 0, contracts.ClausePayment, "Pay in 30 days.")

	for id, want := range map[uuid.UUID]string{failedEarly.ID: jobs.TypeDocumentIngest, parsed.ID: jobs.TypeDocumentReanalyze} {
		w, body := f.do(t, httptest.NewRequest(http.MethodPost, "/api/documents/"+id.String()+"/analyze", nil))
		if w.Code != http.StatusAccepted {
			t.Fatalf("status=%d body=%v", w.Code, body)
		}
		if got := body["job"].(map[string]any)["job_type"]; got != want {
			t.Fatalf("job_type = %v, want %s", got, want)
		}
	}

	w, body := f.do(t, httptest.NewRequest(http.MethodGet, "/api/documents/"+parsed.ID.String()+"/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%v", w.Code, body)
	}
	st := body["status"].(map[string]any)
	if st["clause_count"].(float64) != 1 || body["job"] == nil {
		t.Fatalf("status body = %v", body)
	}
}

func TestGenerateAmendmentsDefaultsThreshold(t *testing.T) {
	f := newAPIFixture(t, 1<<20)
	doc := testutil.SeedDocument(t, context.Background(), f.db, contracts.DocumentAnalyzed, testutil.StrPtr("text"))

	w, body := f.do(t, httptest.NewRequest(http.MethodPost, "/api/documents/"+doc.ID.String()+"/amendments/generate", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%v", w.Code, body)
	}
	job := body["job"].(map[string]any)
	payload := job["payload"].(map[string]any)
	if payload["risk_threshold"] != string(contracts.RiskLevelMedium) || payload["document_id"] != doc.ID.String() {
		t.Fatalf("payload = %v", payload)
	}
}

func TestClauseAndAmendmentRoutes(t *testing.T) {
	f := newAPIFixture(t, 1<<20)
	f.pipeline.assessErr = &steps.StageError{Stage: steps.StageRiskAssessment, Err: fmt.Errorf("timeout")}

	w, body := f.do(t, httptest.NewRequest(http.MethodPost, "/api/clauses/"+uuid.NewString()+"/assess-risk", nil))
	if w.Code != http.StatusBadGateway || errorCode(body) != "model_error" {
		t.Fatalf("assess: status=%d body=%v", w.Code, body)
	}
	w, body = f.do(t, httptest.NewRequest(http.MethodPost, "/api/clauses/"+uuid.NewString()+"/amendments/generate", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("amend: status=%d body=%v", w.Code, body)
	}

	req := httptest.NewRequest(http.MethodPatch, "/api/amendments/"+uuid.NewString()+"/status", bytes.NewBufferString(`{"status":"approved"}`))
	req.Header.Set("Content-Type", "application/json")
	w, body = f.do(t, req)
	if w.Code != http.StatusOK || f.pipeline.statusSeen != "approved" {
		t.Fatalf("patch: status=%d body=%v seen=%q", w.Code, body, f.pipeline.statusSeen)
	}

	w, body = f.do(t, httptest.NewRequest(http.MethodGet, "/api/amendments?document_id=zzz", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("list: status=%d body=%v", w.Code, body)
	}
	w, body = f.do(t, httptest.NewRequest(http.MethodGet, "/api/analytics/stats", nil))
	if w.Code != http.StatusOK || body["stats"] == nil {
		t.Fatalf("stats: status=%d body=%v", w.Code, body)
	}
}
