// Package memory is an in-process engine.Store for tests and local runs
// without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/DoyleJ11/bot-draft-backend/internal/engine"
)

type Store struct {
	mu       sync.RWMutex
	sessions map[string]engine.Session
}

func New() *Store {
	return &Store{sessions: make(map[string]engine.Session)}
}

func (s *Store) Create(ctx context.Context, sess engine.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return fmt.Errorf("%w: draft %s already exists", engine.ErrInvalidConfig, sess.ID)
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *Store) Load(_ context.Context, id string) (engine.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return engine.Session{}, fmt.Errorf("%w: %s", engine.ErrSessionNotFound, id)
	}
	return sess.Clone(), nil
}

func (s *Store) Save(ctx context.Context, sess engine.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// List returns every session ordered by id.
func (s *Store) List(_ context.Context) ([]engine.Session, error) {
	return s.filter(func(engine.Session) bool { return true }), nil
}

func (s *Store) ListActive(_ context.Context) ([]engine.Session, error) {
	return s.filter(func(sess engine.Session) bool { return sess.Status.Running() }), nil
}

func (s *Store) filter(keep func(engine.Session) bool) []engine.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]engine.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if keep(sess) {
			out = append(out, sess.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
