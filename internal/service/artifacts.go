package service

import (
	"context"
	"log"

	"certos/internal/port"
)

// artifactSet tracks every durable artifact created while handling one
// request. Paths are registered at creation time and deleted together in one
// finalization step that runs on every exit path.
type artifactSet struct {
	store port.FileStore
	paths []string
}

func newArtifactSet(store port.FileStore) *artifactSet {
	return &artifactSet{store: store}
}

// add registers a path for end-of-request deletion.
func (a *artifactSet) add(path string) {
	a.paths = append(a.paths, path)
}

// forget drops a path whose file no longer exists (e.g. an original replaced
// by its truncated copy).
func (a *artifactSet) forget(path string) {
	for i, p := range a.paths {
		if p == path {
			a.paths = append(a.paths[:i], a.paths[i+1:]...)
			return
		}
	}
}

// cleanup deletes all registered artifacts. Failures are logged and never
// override the primary result or error.
func (a *artifactSet) cleanup(ctx context.Context) {
	for _, path := range a.paths {
		if err := a.store.Delete(ctx, path); err != nil {
			log.Printf("service.artifactSet: failed to delete artifact %s: %v", path, err)
		}
	}
	a.paths = nil
}
