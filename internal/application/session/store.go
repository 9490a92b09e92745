// Package session holds the process-wide record of who is signed in and the
// manager that is its only writer.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/campus-identity/internal/domain/entity"
	"github.com/oksasatya/campus-identity/internal/domain/repository"
)

// DefaultKey is the persisted key holding the serialized Identity.
const DefaultKey = "campus_identity_user"

var ErrOperationInFlight = errors.New("operation already in progress")

// Store is the single-owner session container. Presentation code reads it;
// only Manager mutates it.
type Store struct {
	mu       sync.Mutex
	kv       repository.KeyValueStore
	key      string
	logger   *logrus.Logger
	identity *entity.Identity
	loading  bool
}

// NewStore rehydrates the session from kv. Missing or malformed data means
// nobody is signed in; it is never reported as an error.
func NewStore(ctx context.Context, kv repository.KeyValueStore, key string, logger *logrus.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = discardLogger()
	}
	s := &Store{kv: kv, key: key, logger: logger}
	s.identity = s.readPersisted(ctx)
	return s
}

func (s *Store) readPersisted(ctx context.Context) *entity.Identity {
	if s.kv == nil {
		return nil
	}
	raw, found, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.logger.WithError(err).WithField("key", s.key).Warn("read persisted session failed")
		return nil
	}
	if !found || len(raw) == 0 {
		return nil
	}
	var u entity.Identity
	if err := json.Unmarshal(raw, &u); err != nil || u.ID == "" {
		s.logger.WithField("key", s.key).Warn("persisted session is malformed, ignoring")
		return nil
	}
	return &u
}

// Snapshot returns the current session by value.
func (s *Store) Snapshot() entity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return entity.Session{Identity: cloneIdentity(s.identity), Loading: s.loading}
}

// Identity returns a copy of the signed-in identity, if any.
func (s *Store) Identity() (*entity.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneIdentity(s.identity), s.identity != nil
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Store) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return ErrOperationInFlight
	}
	s.loading = true
	return nil
}

func (s *Store) abort() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

// commit installs u as the active identity and persists it. The lock is held
// across the write so persisted and in-memory state move together.
func (s *Store) commit(ctx context.Context, u *entity.Identity) entity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = cloneIdentity(u)
	s.loading = false
	if s.kv != nil {
		if b, err := json.Marshal(u); err != nil {
			s.logger.WithError(err).Warn("encode session failed")
		} else if err := s.kv.Set(ctx, s.key, b); err != nil {
			s.logger.WithError(err).WithField("key", s.key).Warn("persist session failed")
		}
	}
	return entity.Session{Identity: cloneIdentity(s.identity)}
}

// clear drops the identity and the persisted key. It reports whether an
// identity was active.
func (s *Store) clear(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	had := s.identity != nil
	s.identity = nil
	if s.kv != nil {
		if err := s.kv.Delete(ctx, s.key); err != nil {
			s.logger.WithError(err).WithField("key", s.key).Warn("delete persisted session failed")
		}
	}
	return had
}

func cloneIdentity(u *entity.Identity) *entity.Identity {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
