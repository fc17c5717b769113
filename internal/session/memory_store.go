package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps encoded records so callers never share state with it.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte), now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, rec Record) (Record, error) {
	id, err := normalizeID(rec.ID)
	if err != nil {
		return Record{}, err
	}
	rec.ID = id
	rec.Version = 1
	now := s.now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	raw, err := encode(rec)
	if err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[id]; exists {
		return Record{}, fmt.Errorf("session %s already exists", id)
	}
	s.data[id] = raw
	return decode(raw)
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	id, err := normalizeID(id)
	if err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	raw, ok := s.data[id]
	s.mu.RUnlock()
	if !ok {
		return Record{}, ErrNotFound
	}
	return decode(raw)
}

func (s *MemoryStore) Update(_ context.Context, rec Record) (Record, error) {
	id, err := normalizeID(rec.ID)
	if err != nil {
		return Record{}, err
	}
	rec.ID = id

	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	cur, err := decode(raw)
	if err != nil {
		return Record{}, err
	}
	if cur.Version != rec.Version {
		return Record{}, ErrVersionConflict
	}
	rec.Version++
	rec.CreatedAt = cur.CreatedAt
	rec.UpdatedAt = s.now().UTC()
	next, err := encode(rec)
	if err != nil {
		return Record{}, err
	}
	s.data[id] = next
	return decode(next)
}

func (s *MemoryStore) List(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	out := make([]Record, 0, len(s.data))
	for _, raw := range s.data {
		rec, err := decode(raw)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		out = append(out, rec)
	}
	s.mu.RUnlock()
	sortRecords(out)
	return out, nil
}

func sortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}
