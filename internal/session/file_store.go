package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore is a MemoryStore mirrored to a single JSON file, for local runs.
// It is not safe for use by several processes at once.
type FileStore struct {
	mem  *MemoryStore
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{mem: NewMemoryStore(), path: path}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	var rows map[string]json.RawMessage
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	for id, raw := range rows {
		s.mem.data[id] = []byte(raw)
	}
	return s, nil
}

func (s *FileStore) Create(ctx context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.mem.Create(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	return out, s.save()
}

func (s *FileStore) Get(ctx context.Context, id string) (Record, error) {
	return s.mem.Get(ctx, id)
}

func (s *FileStore) Update(ctx context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.mem.Update(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	return out, s.save()
}

func (s *FileStore) List(ctx context.Context) ([]Record, error) {
	return s.mem.List(ctx)
}

func (s *FileStore) save() error {
	s.mem.mu.RLock()
	rows := make(map[string]json.RawMessage, len(s.mem.data))
	for id, raw := range s.mem.data {
		rows[id] = json.RawMessage(raw)
	}
	s.mem.mu.RUnlock()

	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}
