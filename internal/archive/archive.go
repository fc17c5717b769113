// Package archive stores write-once JSON artifacts for completed sessions.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"flowforge/internal/util/jsonutil"
)

// Artifact names within a session.
const (
	InterviewResult      = "interview_result.json"
	ReflectionTranscript = "reflection_transcript.json"
	EnhancedResult       = "enhanced_result.json"
)

var ErrNotFound = errors.New("artifact not found")

// Store persists artifacts keyed by session and path.
type Store interface {
	Put(ctx context.Context, sessionID, path string, content []byte) error
	Get(ctx context.Context, sessionID, path string) ([]byte, error)
	GetURL(ctx context.Context, sessionID, path string) (string, error)
	List(ctx context.Context, sessionID string) ([]string, error)
}

// PutJSON encodes v with indentation and stores it.
func PutJSON(ctx context.Context, s Store, sessionID, path string, v any) error {
	b, err := jsonutil.MarshalNoEscapeIndent(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := s.Put(ctx, sessionID, path, b); err != nil {
		return fmt.Errorf("archive %s/%s: %w", sessionID, path, err)
	}
	return nil
}

// GetJSON loads and decodes an artifact.
func GetJSON(ctx context.Context, s Store, sessionID, path string, v any) error {
	b, err := s.Get(ctx, sessionID, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s/%s: %w", sessionID, path, err)
	}
	return nil
}

func validate(sessionID, path string) (string, string, error) {
	sessionID = strings.TrimSpace(sessionID)
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if sessionID == "" {
		return "", "", fmt.Errorf("session_id is required")
	}
	if path == "" {
		return "", "", fmt.Errorf("path is required")
	}
	return sessionID, path, nil
}

func objectKey(sessionID, path string) string {
	return sessionID + "/" + path
}
