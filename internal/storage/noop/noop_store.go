package noop

import (
	"context"

	"certos/internal/port"
)

// Storage is an ObjectStorage that archives nothing. Used when upload
// archival is disabled.
type Storage struct{}

// NewStorage creates a no-op ObjectStorage.
func NewStorage() port.ObjectStorage {
	return &Storage{}
}

func (s *Storage) Upload(ctx context.Context, input port.UploadInput) (*port.UploadOutput, error) {
	return &port.UploadOutput{}, nil
}

func (s *Storage) Delete(ctx context.Context, bucket, key string) error {
	return nil
}
