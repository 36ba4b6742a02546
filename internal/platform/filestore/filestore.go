package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	errs "github.com/yungbote/contractlens-backend/internal/pkg/errors"
	"github.com/yungbote/contractlens-backend/internal/platform/gcp"
	"github.com/yungbote/contractlens-backend/internal/platform/logger"
)

// Store holds uploaded contract files by key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New returns the store selected by cfg.Mode.
func New(log *logger.Logger, cfg gcp.ObjectStorageConfig) (Store, error) {
	if cfg.IsBucketMode() {
		bs, err := gcp.NewBucketService(log, cfg)
		if err != nil {
			return nil, err
		}
		return bs, nil
	}
	return NewLocal(log, cfg.UploadDir)
}

type Local struct {
	log  *logger.Logger
	root string
}

func NewLocal(log *logger.Logger, root string) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("upload dir required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	l := log.With("service", "LocalFileStore")
	l.Info("Local file storage initialized", "root", abs)
	return &Local{log: l, root: abs}, nil
}

// Path resolves key inside the root; keys escaping it are rejected.
func (s *Local) Path(key string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	p := filepath.Join(s.root, clean)
	if p == s.root || !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage key %q: %w", key, errs.ErrInvalidArgument)
	}
	return p, nil
}

func (s *Local) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	p, err := s.Path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return 0, fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("write upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("move upload: %w", err)
	}
	return n, nil
}

func (s *Local) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("file %s: %w", key, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Delete is a no-op for a missing file.
func (s *Local) Delete(ctx context.Context, key string) error {
	p, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}
