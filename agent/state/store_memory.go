package state

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRecord struct {
	blob      []byte
	updatedAt time.Time
}

// MemoryStore keeps sessions in a process-local map. Nothing expires and
// everything is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryRecord
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryRecord),
		now:      time.Now,
	}
}

func (s *MemoryStore) Save(ctx context.Context, sessionID string, blob []byte) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = memoryRecord{
		blob:      cloneBytes(blob),
		updatedAt: s.now().UTC(),
	}
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrStateNotFound
	}
	return cloneBytes(rec.blob), nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrStateNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// ListIDs returns session ids, most recently written first.
func (s *MemoryStore) ListIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.sessions[ids[i]].updatedAt, s.sessions[ids[j]].updatedAt
		if a.Equal(b) {
			return ids[i] < ids[j]
		}
		return a.After(b)
	})
	return ids, nil
}

func (s *MemoryStore) ClearAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]memoryRecord)
	return nil
}
