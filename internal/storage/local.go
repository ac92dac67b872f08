package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/yoockh/scribe/internal/utils"
)

// LocalStore keeps uploads in a directory, created on demand.
type LocalStore struct {
	dir string
	now func() time.Time
}

func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir, now: time.Now}
}

func (s *LocalStore) Save(ctx context.Context, originalName string, r io.Reader) (*Object, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	base := StoredName(s.now(), originalName)
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := withSuffix(base, attempt)
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", name, err)
		}

		n, err := io.Copy(f, r)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
			return nil, fmt.Errorf("write %s: %w", name, err)
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		return &Object{Name: name, Path: abs, Size: n}, nil
	}
	return nil, fmt.Errorf("no free name for %s after %d attempts", base, maxNameAttempts)
}

func (s *LocalStore) Open(_ context.Context, name string) (*ObjectReader, error) {
	if !ValidName(name) {
		return nil, utils.ErrNotFound
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, utils.ErrNotFound
	}
	return &ObjectReader{ReadCloser: f, Size: st.Size()}, nil
}

func (s *LocalStore) Delete(_ context.Context, name string) error {
	if !ValidName(name) {
		return utils.ErrNotFound
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
