package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/jwalitptl/medtrack-api/pkg/security"
)

// Encrypted seals report bytes with enc before handing them to the
// underlying backend. Reports are bounded by storage.max_upload_bytes, so
// whole-blob sealing is acceptable.
type Encrypted struct {
	next Storage
	enc  security.Encryptor
}

func NewEncrypted(next Storage, enc security.Encryptor) *Encrypted {
	return &Encrypted{next: next, enc: enc}
}

func (e *Encrypted) Save(ctx context.Context, key string, r io.Reader, _ int64) error {
	plain, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("storage: read %q: %w", key, err)
	}
	sealed, err := e.enc.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("storage: encrypt %q: %w", key, err)
	}
	return e.next.Save(ctx, key, bytes.NewReader(sealed), int64(len(sealed)))
}

func (e *Encrypted) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := e.next.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	sealed, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("storage: read %q: %w", key, err)
	}
	plain, err := e.enc.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("storage: decrypt %q: %w", key, err)
	}
	return io.NopCloser(bytes.NewReader(plain)), nil
}

func (e *Encrypted) Delete(ctx context.Context, key string) error {
	return e.next.Delete(ctx, key)
}
