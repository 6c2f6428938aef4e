package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/lingua/internal/domain"
)

// Archive keeps transcripts of ended sessions
type Archive interface {
	Save(ctx context.Context, v *View) error
	Get(ctx context.Context, id string) (*View, error)
}

// FileArchive stores one JSON transcript per session under a directory
type FileArchive struct {
	dir string
}

// NewFileArchive creates the archive directory if needed
func NewFileArchive(dir string) (*FileArchive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &FileArchive{dir: dir}, nil
}

func (a *FileArchive) Save(ctx context.Context, v *View) error {
	path, err := a.path(v.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename transcript: %w", err)
	}
	return nil
}

func (a *FileArchive) Get(ctx context.Context, id string) (*View, error) {
	path, err := a.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	var v View
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode transcript %s: %w", id, err)
	}
	return &v, nil
}

func (a *FileArchive) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", domain.Invalidf("invalid session id %q", id)
	}
	return filepath.Join(a.dir, id+".json"), nil
}
