package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	errs "github.com/yungbote/contractlens-backend/internal/pkg/errors"
	"github.com/yungbote/contractlens-backend/internal/platform/filestore"
	"github.com/yungbote/contractlens-backend/internal/platform/gcp"
	"github.com/yungbote/contractlens-backend/internal/platform/logger"
)

const (
	ExtPDF  = "pdf"
	ExtDOCX = "docx"
	ExtDOC  = "doc"
	ExtTXT  = "txt"
)

var SupportedExtensions = []string{ExtPDF, ExtDOCX, ExtDOC, ExtTXT}

// ErrNoText is returned when a supported file yields no readable text.
var ErrNoText = errors.New("no text could be extracted")

type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return "unsupported file type: missing extension"
	}
	return fmt.Sprintf("unsupported file type: .%s", e.Ext)
}

func (e *UnsupportedFormatError) Unwrap() error { return errs.ErrUnsupportedFormat }

// NormalizeExt lowercases an extension or filename suffix without the dot.
func NormalizeExt(nameOrExt string) string {
	s := strings.TrimSpace(nameOrExt)
	if ext := filepath.Ext(s); ext != "" {
		s = ext
	}
	return strings.ToLower(strings.TrimPrefix(s, "."))
}

// CheckSupported fails with *UnsupportedFormatError for anything outside SupportedExtensions.
func CheckSupported(ext string) error {
	ext = NormalizeExt(ext)
	for _, s := range SupportedExtensions {
		if ext == s {
			return nil
		}
	}
	return &UnsupportedFormatError{Ext: ext}
}

type Extractor interface {
	Extract(ctx context.Context, key string, ext string) (string, error)
}

// PDFTextSource turns PDF bytes into text. gcp.Document satisfies it.
type PDFTextSource interface {
	ProcessBytes(ctx context.Context, mimeType string, data []byte) (*gcp.DocAIResult, error)
	ProcessGCS(ctx context.Context, mimeType string, gcsURI string) (*gcp.DocAIResult, error)
}

// uriStore is implemented by stores whose objects Document AI can read in place.
type uriStore interface {
	URI(key string) string
}

type Service struct {
	log      *logger.Logger
	store    filestore.Store
	pdf      PDFTextSource
	maxBytes int64
}

// New builds an extractor over store. pdf may be nil, in which case PDF uploads
// are accepted but fail extraction.
func New(log *logger.Logger, store filestore.Store, pdf PDFTextSource, maxBytes int64) *Service {
	return &Service{
		log:      log.With("component", "TextExtractor"),
		store:    store,
		pdf:      pdf,
		maxBytes: maxBytes,
	}
}

func (s *Service) Extract(ctx context.Context, key string, ext string) (string, error) {
	ext = NormalizeExt(ext)
	if err := CheckSupported(ext); err != nil {
		return "", err
	}

	var (
		text string
		err  error
	)
	switch ext {
	case ExtPDF:
		text, err = s.extractPDF(ctx, key)
	case ExtDOCX, ExtDOC:
		var data []byte
		if data, err = s.read(ctx, key); err == nil {
			text, err = DocxText(data)
		}
	case ExtTXT:
		var data []byte
		if data, err = s.read(ctx, key); err == nil {
			text = PlainText(data)
		}
	}
	if err != nil {
		return "", fmt.Errorf("extract .%s: %w", ext, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("extract .%s: %w", ext, ErrNoText)
	}
	s.log.Debug("Text extracted", "ext", ext, "runes", utf8.RuneCountInString(text))
	return text, nil
}

func (s *Service) read(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	r := io.Reader(rc)
	if s.maxBytes > 0 {
		r = io.LimitReader(rc, s.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("file exceeds %d bytes: %w", s.maxBytes, errs.ErrInvalidArgument)
	}
	return data, nil
}

func (s *Service) extractPDF(ctx context.Context, key string) (string, error) {
	if s.pdf == nil {
		return "", fmt.Errorf("pdf extraction is not configured (DOCUMENTAI_PROCESSOR_ID)")
	}
	var (
		res *gcp.DocAIResult
		err error
	)
	if us, ok := s.store.(uriStore); ok {
		res, err = s.pdf.ProcessGCS(ctx, "application/pdf", us.URI(key))
	} else {
		var data []byte
		if data, err = s.read(ctx, key); err != nil {
			return "", err
		}
		res, err = s.pdf.ProcessBytes(ctx, "application/pdf", data)
	}
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", nil
	}
	if len(res.PageTexts) > 0 {
		return strings.Join(res.PageTexts, "\n"), nil
	}
	return res.PrimaryText, nil
}

// PlainText decodes text file bytes, dropping a UTF-8 BOM and replacing invalid sequences.
func PlainText(data []byte) string {
	s := string(data)
	s = strings.TrimPrefix(s, "\ufeff")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	return strings.ReplaceAll(s, "\r\n", "\n")
}
