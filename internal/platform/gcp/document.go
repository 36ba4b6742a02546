package gcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/fieldmaskpb"

	"github.com/yungbote/contractlens-backend/internal/platform/ctxutil"
	"github.com/yungbote/contractlens-backend/internal/platform/envutil"
	"github.com/yungbote/contractlens-backend/internal/platform/logger"
)

// ErrInvalidDocument marks content Document AI rejected outright; retrying will not help.
var ErrInvalidDocument = errors.New("document rejected by processor")

type DocumentAIConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
	MaxRetries       int
	Timeout          time.Duration
}

func DocumentAIConfigFromEnv() DocumentAIConfig {
	return DocumentAIConfig{
		ProjectID:        strings.TrimSpace(envutil.String("DOCUMENTAI_PROJECT_ID", "")),
		Location:         strings.TrimSpace(envutil.String("DOCUMENTAI_LOCATION", "us")),
		ProcessorID:      strings.TrimSpace(envutil.String("DOCUMENTAI_PROCESSOR_ID", "")),
		ProcessorVersion: strings.TrimSpace(envutil.String("DOCUMENTAI_PROCESSOR_VERSION", "")),
		MaxRetries:       envutil.Int("DOCUMENTAI_MAX_RETRIES", 3),
		Timeout:          envutil.Duration("DOCUMENTAI_TIMEOUT", 3*time.Minute),
	}
}

// Enabled reports whether a processor is configured.
func (c DocumentAIConfig) Enabled() bool {
	return processorName(c.ProjectID, c.Location, c.ProcessorID, c.ProcessorVersion) != ""
}

type Document interface {
	ProcessBytes(ctx context.Context, mimeType string, data []byte) (*DocAIResult, error)
	ProcessGCS(ctx context.Context, mimeType string, gcsURI string) (*DocAIResult, error)
	Close() error
}

type DocAIResult struct {
	Processor   string   `json:"processor"`
	MimeType    string   `json:"mime_type"`
	PrimaryText string   `json:"primary_text"`
	PageTexts   []string `json:"page_texts,omitempty"`
}

type documentService struct {
	log       *logger.Logger
	docClient *documentai.DocumentProcessorClient
	processor string

	maxRetries int
	timeout    time.Duration
	backoff    time.Duration
}

func NewDocument(log *logger.Logger, cfg DocumentAIConfig) (Document, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if !cfg.Enabled() {
		return nil, fmt.Errorf("document ai requires DOCUMENTAI_PROJECT_ID and DOCUMENTAI_PROCESSOR_ID")
	}
	slog := log.With("service", "gcp.Document")
	if cfg.Location == "" {
		cfg.Location = "us"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	// Document AI is regional; Storage is not.
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
	docOpts := append([]option.ClientOption{option.WithEndpoint(endpoint)}, ClientOptionsFromEnv()...)
	c, err := documentai.NewDocumentProcessorClient(context.Background(), docOpts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}

	name := processorName(cfg.ProjectID, cfg.Location, cfg.ProcessorID, cfg.ProcessorVersion)
	slog.Info("Document AI initialized", "endpoint", endpoint, "processor", name)

	return &documentService{
		log:        slog,
		docClient:  c,
		processor:  name,
		maxRetries: cfg.MaxRetries,
		timeout:    cfg.Timeout,
		backoff:    750 * time.Millisecond,
	}, nil
}

func (s *documentService) Close() error {
	if s == nil || s.docClient == nil {
		return nil
	}
	return s.docClient.Close()
}

func (s *documentService) ProcessBytes(ctx context.Context, mimeType string, data []byte) (*DocAIResult, error) {
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	if len(data) == 0 {
		return &DocAIResult{Processor: s.processor, MimeType: mimeType}, nil
	}
	return s.process(ctx, mimeType, &documentaipb.ProcessRequest{
		Name: s.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{Content: data, MimeType: mimeType},
		},
	})
}

func (s *documentService) ProcessGCS(ctx context.Context, mimeType string, gcsURI string) (*DocAIResult, error) {
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	return s.process(ctx, mimeType, &documentaipb.ProcessRequest{
		Name: s.processor,
		Source: &documentaipb.ProcessRequest_GcsDocument{
			GcsDocument: &documentaipb.GcsDocument{GcsUri: gcsURI, MimeType: mimeType},
		},
	})
}

func (s *documentService) process(ctx context.Context, mimeType string, req *documentaipb.ProcessRequest) (*DocAIResult, error) {
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), s.timeout)
	defer cancel()

	req.FieldMask = &fieldmaskpb.FieldMask{Paths: []string{"text", "pages.page_number", "pages.layout"}}

	var resp *documentaipb.ProcessResponse
	err := retryTransient(ctx, s.maxRetries, s.backoff, func() error {
		var callErr error
		resp, callErr = s.docClient.ProcessDocument(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, classifyDocAIError(err)
	}
	if resp == nil {
		return &DocAIResult{Processor: s.processor, MimeType: mimeType}, nil
	}
	return buildDocAIResult(resp.Document, s.processor, mimeType), nil
}

// retryTransient retries fn on Unavailable, ResourceExhausted and DeadlineExceeded
// with exponential backoff capped at 10s.
func retryTransient(ctx context.Context, maxRetries int, backoff time.Duration, fn func() error) error {
	var last error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			if last != nil {
				return last
			}
			return ctx.Err()
		}
		err := fn()
		if err == nil {
			return nil
		}
		last = err

		if !isTransientCode(status.Code(err)) {
			return err
		}
		if attempt == maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return last
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
	}
	return last
}

func isTransientCode(code codes.Code) bool {
	return code == codes.Unavailable || code == codes.ResourceExhausted || code == codes.DeadlineExceeded
}

func classifyDocAIError(err error) error {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return fmt.Errorf("documentai ProcessDocument: %w: %v", ErrInvalidDocument, err)
	default:
		return fmt.Errorf("documentai ProcessDocument: %w", err)
	}
}

func buildDocAIResult(doc *documentaipb.Document, processor string, mimeType string) *DocAIResult {
	out := &DocAIResult{Processor: processor, MimeType: mimeType}
	if doc == nil {
		return out
	}
	out.PrimaryText = strings.TrimSpace(doc.Text)
	for _, p := range doc.Pages {
		if p == nil || p.Layout == nil {
			continue
		}
		out.PageTexts = append(out.PageTexts, strings.TrimSpace(textFromAnchor(doc.Text, p.Layout.TextAnchor)))
	}
	return out
}

func textFromAnchor(full string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil || len(anchor.TextSegments) == 0 || full == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range anchor.TextSegments {
		if seg == nil {
			continue
		}
		start := int(seg.StartIndex)
		end := int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > len(full) {
			end = len(full)
		}
		if start >= end {
			continue
		}
		b.WriteString(full[start:end])
	}
	return b.String()
}

func processorName(project, location, processorID, version string) string {
	project = strings.TrimSpace(project)
	location = strings.TrimSpace(location)
	processorID = strings.TrimSpace(processorID)
	version = strings.TrimSpace(version)

	if project == "" || location == "" || processorID == "" {
		return ""
	}
	base := fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processorID)
	if version != "" {
		return base + "/processorVersions/" + version
	}
	return base
}
