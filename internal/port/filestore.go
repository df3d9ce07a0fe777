package port

import "context"

// FileStore abstracts the durable scratch storage that holds request-scoped
// artifacts (uploads, truncated documents, rasterized pages).
type FileStore interface {
	// Save writes bytes to a new uniquely named file with the given
	// extension and returns its path.
	Save(ctx context.Context, data []byte, ext string) (string, error)
	Read(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}
