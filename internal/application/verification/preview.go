package verification

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/oksasatya/campus-identity/internal/domain/entity"
)

var ErrPreviewNotFound = errors.New("preview not found")

// PreviewStore holds the preview resource shown for a selected artifact.
// Every Create must be matched by exactly one Release.
type PreviewStore interface {
	Create(ctx context.Context, a entity.Artifact, content io.Reader) (entity.PreviewRef, error)
	Release(ctx context.Context, ref entity.PreviewRef) error
}

// MemoryPreviewStore keeps previews in process memory, like a browser object URL.
type MemoryPreviewStore struct {
	mu       sync.Mutex
	previews map[entity.PreviewRef][]byte
	created  int
	released int
}

func NewMemoryPreviewStore() *MemoryPreviewStore {
	return &MemoryPreviewStore{previews: make(map[entity.PreviewRef][]byte)}
}

func (s *MemoryPreviewStore) Create(_ context.Context, _ entity.Artifact, content io.Reader) (entity.PreviewRef, error) {
	var b []byte
	if content != nil {
		var err error
		if b, err = io.ReadAll(content); err != nil {
			return "", err
		}
	}
	ref := entity.PreviewRef("mem:" + uuid.NewString())
	s.mu.Lock()
	s.previews[ref] = b
	s.created++
	s.mu.Unlock()
	return ref, nil
}

func (s *MemoryPreviewStore) Release(_ context.Context, ref entity.PreviewRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.previews[ref]; !ok {
		return ErrPreviewNotFound
	}
	delete(s.previews, ref)
	s.released++
	return nil
}

// Open returns the preview bytes for ref.
func (s *MemoryPreviewStore) Open(ref entity.PreviewRef) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.previews[ref]
	return b, ok
}

// Live is the number of previews created and not yet released.
func (s *MemoryPreviewStore) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.previews)
}

// Stats returns how many previews were created and released.
func (s *MemoryPreviewStore) Stats() (created, released int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created, s.released
}
