package analysis

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/contractlens-backend/internal/domain/contracts"
	"github.com/yungbote/contractlens-backend/internal/modules/analysis/extractor"
	"github.com/yungbote/contractlens-backend/internal/modules/analysis/steps"
	errs "github.com/yungbote/contractlens-backend/internal/pkg/errors"
	"github.com/yungbote/contractlens-backend/internal/platform/dbctx"
)

// Upload is one received contract file.
type Upload struct {
	Filename string
	Title    string
	Body     io.Reader
}

func storageKey(id uuid.UUID, ext string) string {
	return fmt.Sprintf("documents/%s.%s", id, ext)
}

// CreateDocument stores the upload and records it as UPLOADED. The extension is
// checked before anything is written.
func (o *Orchestrator) CreateDocument(ctx context.Context, up Upload) (*contracts.Document, error) {
	name := strings.TrimSpace(filepath.Base(up.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: filename required", errs.ErrInvalidArgument)
	}
	ext := extractor.NormalizeExt(name)
	if err := extractor.CheckSupported(ext); err != nil {
		return nil, err
	}
	if up.Body == nil {
		return nil, fmt.Errorf("%w: empty upload", errs.ErrInvalidArgument)
	}

	title := strings.TrimSpace(up.Title)
	if title == "" {
		title = name
	}
	doc := &contracts.Document{
		ID:       uuid.New(),
		Filename: name,
		Title:    title,
		FileExt:  ext,
		Status:   contracts.DocumentUploaded,
	}
	doc.StorageKey = storageKey(doc.ID, ext)

	n, err := o.deps.Files.Put(ctx, doc.StorageKey, up.Body)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	doc.SizeBytes = n

	created, err := o.deps.Documents.Create(o.dbc(ctx), doc)
	if err != nil {
		if derr := o.deps.Files.Delete(context.WithoutCancel(ctx), doc.StorageKey); derr != nil {
			o.logFor(ctx).Warn("orphaned upload left in storage", "key", doc.StorageKey, "error", derr)
		}
		return nil, fmt.Errorf("create document: %w", err)
	}
	o.logFor(ctx).Info("document uploaded", "document_id", created.ID, "ext", ext, "size_bytes", n)
	o.publishStatus(ctx, created, "")
	return created, nil
}

// Ingest is CreateDocument followed by Parse. A parse failure still returns the
// created document, now in ERROR.
func (o *Orchestrator) Ingest(ctx context.Context, up Upload) (*contracts.Document, error) {
	doc, err := o.CreateDocument(ctx, up)
	if err != nil {
		return nil, err
	}
	parsed, err := o.Parse(ctx, doc.ID)
	if err != nil {
		if cur, gerr := o.deps.Documents.GetByID(o.dbc(context.WithoutCancel(ctx)), doc.ID); gerr == nil {
			return cur, err
		}
		return doc, err
	}
	return parsed, nil
}

func (o *Orchestrator) canParse(ctx context.Context, doc *contracts.Document) error {
	switch doc.Status {
	case contracts.DocumentUploaded:
		return nil
	case contracts.DocumentError:
		n, err := o.deps.Clauses.CountByDocument(o.dbc(ctx), doc.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: document %s already has clauses; reanalyze instead", errs.ErrPrecondition, doc.ID)
		}
		return nil
	default:
		return fmt.Errorf("%w: document %s is %s, parse needs uploaded", errs.ErrPrecondition, doc.ID, doc.Status)
	}
}

// Parse extracts the text, runs document analysis and clause extraction, and
// leaves the document PARSED. Each stage's output is stored as soon as it
// returns; any failure moves the document to ERROR.
func (o *Orchestrator) Parse(ctx context.Context, documentID uuid.UUID) (*contracts.Document, error) {
	doc, err := o.deps.Documents.GetByID(o.dbc(ctx), documentID)
	if err != nil {
		return nil, err
	}
	if err := o.canParse(ctx, doc); err != nil {
		return nil, err
	}
	if err := o.transition(ctx, doc, contracts.DocumentParsing, map[string]interface{}{"last_error": ""}); err != nil {
		return nil, err
	}
	log := o.logFor(ctx, "document_id", doc.ID)

	text, err := o.deps.Extractor.Extract(ctx, doc.StorageKey, doc.FileExt)
	if err != nil {
		return nil, o.fail(ctx, doc, "extract", err)
	}
	text = steps.Truncate(text)
	if err := o.deps.Documents.UpdateFields(o.dbc(ctx), doc.ID, map[string]interface{}{"raw_text": text}); err != nil {
		return nil, o.fail(ctx, doc, "store text", err)
	}
	doc.RawText = &text

	analysis, err := o.deps.Stages.Analyzer.Run(ctx, text)
	if err != nil {
		return nil, o.fail(ctx, doc, steps.StageDocumentAnalysis, err)
	}
	at := o.now()
	if err := o.deps.Documents.UpdateFields(o.dbc(ctx), doc.ID, analysisUpdates(analysis, at)); err != nil {
		return nil, o.fail(ctx, doc, "store analysis", err)
	}

	extracted, err := o.deps.Stages.Extractor.Run(ctx, text)
	if err != nil {
		return nil, o.fail(ctx, doc, steps.StageClauseExtraction, err)
	}
	clauses := make([]*contracts.Clause, 0, len(extracted))
	for i, c := range extracted {
		clauses = append(clauses, &contracts.Clause{
			DocumentID:      doc.ID,
			Position:        i,
			Category:        c.Category,
			Title:           c.Title,
			Text:            c.Text,
			SectionLabel:    c.SectionLabel,
			KeyTerms:        jsonList(c.KeyTerms),
			RiskFactors:     datatypes.NewJSONSlice([]string{}),
			Recommendations: datatypes.NewJSONSlice([]string{}),
		})
	}

	err = o.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := o.deps.Clauses.CreateBatch(dbc, clauses); err != nil {
			return fmt.Errorf("insert clauses: %w", err)
		}
		return o.deps.Documents.TransitionStatus(dbc, doc.ID, contracts.DocumentParsing, contracts.DocumentParsed, nil)
	})
	if err != nil {
		return nil, o.fail(ctx, doc, "store clauses", err)
	}
	doc.Status = contracts.DocumentParsed
	o.publishStatus(ctx, doc, contracts.DocumentParsing)
	log.Info("document parsed", "clauses", len(clauses), "contract_type", analysis.ContractType)

	return o.deps.Documents.GetByID(o.dbc(ctx), doc.ID)
}

// Reanalyze reruns document analysis on the stored text. Clauses are kept.
func (o *Orchestrator) Reanalyze(ctx context.Context, documentID uuid.UUID) (*contracts.Document, error) {
	doc, err := o.deps.Documents.GetByID(o.dbc(ctx), documentID)
	if err != nil {
		return nil, err
	}
	if !doc.HasText() {
		return nil, fmt.Errorf("%w: document %s has no extracted text", errs.ErrPrecondition, doc.ID)
	}
	if doc.Status.InProgress() {
		return nil, fmt.Errorf("%w: document %s is %s", errs.ErrPrecondition, doc.ID, doc.Status)
	}
	if err := o.transition(ctx, doc, contracts.DocumentAnalyzing, map[string]interface{}{"last_error": ""}); err != nil {
		return nil, err
	}

	analysis, err := o.deps.Stages.Analyzer.Run(ctx, *doc.RawText)
	if err != nil {
		return nil, o.fail(ctx, doc, steps.StageDocumentAnalysis, err)
	}
	if err := o.transition(ctx, doc, contracts.DocumentAnalyzed, analysisUpdates(analysis, o.now())); err != nil {
		return nil, o.fail(ctx, doc, "store analysis", err)
	}
	o.logFor(ctx).Info("document reanalyzed", "document_id", doc.ID, "risk_rating", analysis.RiskRating)
	return o.deps.Documents.GetByID(o.dbc(ctx), doc.ID)
}
