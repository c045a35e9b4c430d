// Package memory stores artifacts in-memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/gfw-catalog-pipeline/internal/catalog"
)

type object struct {
	data        []byte
	contentType string
}

// ArtifactStore keeps artifacts in a map keyed by path and returns pseudo URIs.
type ArtifactStore struct {
	mu      sync.RWMutex
	objects map[string]object
}

// NewArtifactStore creates a new in-memory artifact store.
func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{
		objects: make(map[string]object),
	}
}

// PutObject replaces the content stored at path.
func (s *ArtifactStore) PutObject(_ context.Context, path string, contentType string, data []byte) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[path] = object{
		data:        append([]byte(nil), data...),
		contentType: contentType,
	}
	return "memory://" + path, nil
}

// GetObject returns a copy of the content stored at path.
func (s *ArtifactStore) GetObject(_ context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[path]
	if !ok {
		return nil, fmt.Errorf("memory://%s: %w", path, catalog.ErrObjectNotFound)
	}
	return append([]byte(nil), obj.data...), nil
}

// ContentType reports the content type recorded for path.
func (s *ArtifactStore) ContentType(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[path]
	return obj.contentType, ok
}
