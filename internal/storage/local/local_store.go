package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"certos/internal/port"
)

// Store is a FileStore backed by a local scratch directory. Artifact names
// carry a timestamp and a random suffix so concurrent requests never contend.
type Store struct {
	dir string
}

// NewStore creates a local FileStore rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Save(ctx context.Context, data []byte, ext string) (string, error) {
	ext = strings.TrimPrefix(ext, ".")
	name := fmt.Sprintf("%d-%s.%s", time.Now().UnixNano(), uuid.New().String(), ext)
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	return path, nil
}

func (s *Store) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	return data, nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting artifact: %w", err)
	}
	return nil
}

var _ port.FileStore = (*Store)(nil)
