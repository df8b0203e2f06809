// Package file stores credentials as one file per key in a private
// directory, optionally sealed with age.
package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"github.com/utafrali/fieldsales/internal/tokenstore"
)

const (
	dirMode  = 0o700
	fileMode = 0o600
)

// writeOrder puts the token last so a crash mid-save never leaves a new
// token without any user snapshot. It can leave the previous token next to
// the new snapshot; the next revalidation replaces that snapshot.
var writeOrder = []string{tokenstore.KeyUser, tokenstore.KeyTimestamp, tokenstore.KeyToken}

// Backend implements tokenstore.Backend on the local filesystem.
type Backend struct {
	dir       string
	identity  *age.X25519Identity
	recipient age.Recipient
}

// Option configures a Backend.
type Option func(*Backend)

// WithIdentity seals every value to id's recipient and opens it with id.
func WithIdentity(id *age.X25519Identity) Option {
	return func(b *Backend) {
		b.identity = id
		b.recipient = id.Recipient()
	}
}

// New creates dir if needed and returns a Backend rooted there.
func New(dir string, opts ...Option) (*Backend, error) {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("create token dir: %w", err)
	}
	b := &Backend{dir: dir}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// LoadIdentity reads an age X25519 identity file. Comment lines are skipped.
func LoadIdentity(path string) (*age.X25519Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read identity: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, err := age.ParseX25519Identity(line)
		if err != nil {
			return nil, fmt.Errorf("parse identity: %w", err)
		}
		return id, nil
	}
	return nil, fmt.Errorf("identity file %s has no key", path)
}

// Sealed reports whether values are encrypted at rest.
func (b *Backend) Sealed() bool { return b.identity != nil }

func (b *Backend) path(key string) string { return filepath.Join(b.dir, key) }

func (b *Backend) Get(_ context.Context, key string) (string, bool, error) {
	data, err := os.ReadFile(b.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	if b.identity != nil {
		data, err = b.open(data)
		if err != nil {
			return "", false, fmt.Errorf("open %s: %w", key, err)
		}
	}
	return string(data), true, nil
}

func (b *Backend) SetAll(_ context.Context, values map[string]string) error {
	written := make(map[string]bool, len(values))
	for _, key := range writeOrder {
		if v, ok := values[key]; ok {
			if err := b.write(key, v); err != nil {
				return err
			}
			written[key] = true
		}
	}
	for key, v := range values {
		if written[key] {
			continue
		}
		if err := b.write(key, v); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) Delete(_ context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if err := os.Remove(b.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// write replaces key atomically via a temp file and rename.
func (b *Backend) write(key, value string) error {
	data := []byte(value)
	if b.recipient != nil {
		sealed, err := b.seal(data)
		if err != nil {
			return fmt.Errorf("seal %s: %w", key, err)
		}
		data = sealed
	}

	tmp, err := os.CreateTemp(b.dir, "."+key+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod %s: %w", key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmpName, b.path(key)); err != nil {
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

func (b *Backend) seal(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, b.recipient)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing encryption: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *Backend) open(ciphertext []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(ciphertext), b.identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	return io.ReadAll(r)
}
