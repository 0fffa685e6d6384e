// Package storage holds procedure report files. Keys are opaque paths such as
// "reports/<uuid>_scan.pdf"; the database stores only the key.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/medtrack-api/internal/config"
	"github.com/jwalitptl/medtrack-api/pkg/security"
)

var ErrNotFound = errors.New("file not found")

// Storage is the file-storage collaborator used for procedure reports.
type Storage interface {
	Save(ctx context.Context, key string, r io.Reader, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

const reportPrefix = "reports/"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ReportKey builds a unique key for an uploaded report, keeping a sanitized
// copy of the client filename for readability.
func ReportKey(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	if base == "" || base == "." || base == "/" {
		base = "report.pdf"
	}
	if len(base) > 100 {
		base = base[len(base)-100:]
	}
	return reportPrefix + uuid.New().String() + "_" + base
}

// New builds the backend selected by cfg.Backend and wraps it with at-rest
// encryption when an encryption key is configured.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	var (
		s   Storage
		err error
	)
	switch cfg.Backend {
	case config.StorageLocal:
		s, err = NewLocal(cfg.LocalDir)
	case config.StorageS3:
		s, err = NewS3(ctx, cfg.S3)
	case config.StorageMemory:
		s = NewMemory()
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.EncryptionKey == "" {
		return s, nil
	}
	enc, err := security.NewAESEncryptorFromHex(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	return NewEncrypted(s, enc), nil
}
