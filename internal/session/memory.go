package session

import (
	"context"
	"sync"
	"time"
)

// memoryStore is a mutex-guarded in-process Store. It backs tests and
// single-node deployments that run without Postgres.
type memoryStore struct {
	mu      sync.Mutex
	records map[int64]*Record
}

func NewMemoryStore() Store {
	return &memoryStore{records: make(map[int64]*Record)}
}

func (s *memoryStore) Upsert(_ context.Context, userID int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[userID] = &Record{
		UserID:      userID,
		RefreshHash: hash,
		RotatedAt:   time.Now().UTC(),
	}
	return nil
}

func (s *memoryStore) Get(_ context.Context, userID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok || rec.RefreshHash == "" {
		return "", ErrNotFound
	}
	return rec.RefreshHash, nil
}

func (s *memoryStore) Replace(_ context.Context, userID int64, oldHash, newHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok || rec.RefreshHash != oldHash {
		return false, nil
	}
	rec.RefreshHash = newHash
	rec.RotatedAt = time.Now().UTC()
	return true, nil
}

func (s *memoryStore) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[userID]; ok {
		rec.RefreshHash = ""
		rec.RotatedAt = time.Now().UTC()
	}
	return nil
}
