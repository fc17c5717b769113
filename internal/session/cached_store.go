package session

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultCacheSize = 1024
	DefaultCacheTTL  = 5 * time.Minute
)

// CachedStore is a read-through cache in front of another Store. Writes go to
// the origin first; a version conflict evicts the cached entry.
type CachedStore struct {
	origin Store
	cache  *expirable.LRU[string, []byte]
}

func NewCachedStore(origin Store, size int, ttl time.Duration) *CachedStore {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{origin: origin, cache: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (s *CachedStore) remember(rec Record) {
	if raw, err := encode(rec); err == nil {
		s.cache.Add(rec.ID, raw)
	}
}

func (s *CachedStore) Create(ctx context.Context, rec Record) (Record, error) {
	out, err := s.origin.Create(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	s.remember(out)
	return out, nil
}

func (s *CachedStore) Get(ctx context.Context, id string) (Record, error) {
	if raw, ok := s.cache.Get(id); ok {
		if rec, err := decode(raw); err == nil {
			return rec, nil
		}
		s.cache.Remove(id)
	}
	rec, err := s.origin.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	s.remember(rec)
	return rec, nil
}

func (s *CachedStore) Update(ctx context.Context, rec Record) (Record, error) {
	out, err := s.origin.Update(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrNotFound) {
			s.cache.Remove(rec.ID)
		}
		return Record{}, err
	}
	s.remember(out)
	return out, nil
}

// List always reads the origin.
func (s *CachedStore) List(ctx context.Context) ([]Record, error) {
	return s.origin.List(ctx)
}

// Len is the number of cached records.
func (s *CachedStore) Len() int { return s.cache.Len() }
