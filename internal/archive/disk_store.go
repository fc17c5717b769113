package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiskStore keeps artifacts under root/<session>/<path>.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) *DiskStore {
	return &DiskStore{root: strings.TrimSpace(root)}
}

func (s *DiskStore) Put(_ context.Context, sessionID, path string, content []byte) error {
	full, err := s.pathFor(sessionID, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, content, 0o644)
}

func (s *DiskStore) Get(_ context.Context, sessionID, path string) ([]byte, error) {
	full, err := s.pathFor(sessionID, path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *DiskStore) GetURL(_ context.Context, sessionID, path string) (string, error) {
	full, err := s.pathFor(sessionID, path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(abs), nil
}

func (s *DiskStore) List(_ context.Context, sessionID string) ([]string, error) {
	root, err := s.sessionRoot(sessionID)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, 4)
	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, walkErr
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *DiskStore) sessionRoot(sessionID string) (string, error) {
	if s.root == "" {
		return "", fmt.Errorf("root is required")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", fmt.Errorf("session_id is required")
	}
	if strings.Contains(sessionID, "..") || filepath.IsAbs(sessionID) {
		return "", fmt.Errorf("invalid session_id: %s", sessionID)
	}
	return filepath.Join(s.root, sessionID), nil
}

func (s *DiskStore) pathFor(sessionID, path string) (string, error) {
	sessionID, path, err := validate(sessionID, path)
	if err != nil {
		return "", err
	}
	root, err := s.sessionRoot(sessionID)
	if err != nil {
		return "", err
	}
	if strings.Contains(path, "..") || filepath.IsAbs(path) {
		return "", fmt.Errorf("invalid path: %s", path)
	}
	return filepath.Join(root, filepath.FromSlash(path)), nil
}
