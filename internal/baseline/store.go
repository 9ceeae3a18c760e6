package baseline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// Store persists encoded profiles keyed by installation id.
type Store interface {
	SaveProfile(ctx context.Context, installationID string, data []byte) error
	// LoadProfile returns ErrProfileNotFound when nothing was saved.
	LoadProfile(ctx context.Context, installationID string) ([]byte, error)
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileStore keeps one JSON file per installation under Dir.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) path(installationID string) string {
	name := unsafeName.ReplaceAllString(installationID, "_")
	if name == "" {
		name = "default"
	}
	return filepath.Join(s.Dir, "baseline_"+name+".json")
}

// SaveProfile writes through a temp file and rename so a crash never leaves
// a truncated profile behind.
func (s *FileStore) SaveProfile(ctx context.Context, installationID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, ".baseline-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp profile: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write profile: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close profile: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(installationID)); err != nil {
		return fmt.Errorf("rename profile: %w", err)
	}
	return nil
}

func (s *FileStore) LoadProfile(ctx context.Context, installationID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(installationID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return data, nil
}
