package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/waftester/vulnprobe/pkg/defaults"
	"github.com/waftester/vulnprobe/pkg/output/writers"
)

var _ Store = (*FS)(nil)

// FS stores reports as <dir>/<id>.<ext>.
type FS struct {
	dir string
}

// NewFS creates the directory if needed. An empty dir means
// defaults.ReportsDir.
func NewFS(dir string) (*FS, error) {
	if dir == "" {
		dir = defaults.ReportsDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dir, err)
	}
	return &FS{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *FS) Dir() string { return s.dir }

func (s *FS) path(id string, f writers.Format) string {
	return filepath.Join(s.dir, id+"."+f.Ext())
}

// Save writes atomically via a temp file and rename.
func (s *FS) Save(_ context.Context, id string, f writers.Format, data []byte) error {
	if err := validate(id, f); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "."+id+"-*")
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(id, f)); err != nil {
		return fmt.Errorf("store: rename: %w", err)
	}
	return nil
}

// Load reads a stored report.
func (s *FS) Load(_ context.Context, id string, f writers.Format) ([]byte, error) {
	if err := validate(id, f); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(id, f))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s.%s", ErrNotFound, id, f.Ext())
	}
	if err != nil {
		return nil, fmt.Errorf("store: read: %w", err)
	}
	return data, nil
}

// Close is a no-op.
func (s *FS) Close() error { return nil }
