// Package session persists assessment sessions: interview state, reflection
// state and both transcripts, guarded by an optimistic version.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"flowforge/internal/conversation"
	"flowforge/internal/enhancement"
	"flowforge/internal/interview"
	"flowforge/internal/llm"
	"flowforge/internal/reflection"
)

var (
	ErrNotFound = errors.New("session not found")
	// ErrVersionConflict means the record changed since it was loaded.
	ErrVersionConflict = errors.New("session version conflict")
)

// Record is one participant's assessment.
type Record struct {
	ID                   string                      `json:"id"`
	TenantID             string                      `json:"tenant_id"`
	ParticipantName      string                      `json:"participant_name"`
	Interview            interview.State             `json:"interview"`
	Transcript           []conversation.Message      `json:"transcript"`
	Reflection           *reflection.State           `json:"reflection,omitempty"`
	ReflectionTranscript []conversation.Message      `json:"reflection_transcript,omitempty"`
	Enhanced             *enhancement.EnhancedResult `json:"enhanced,omitempty"`
	Version              int64                       `json:"version"`
	CreatedAt            time.Time                   `json:"created_at"`
	UpdatedAt            time.Time                   `json:"updated_at"`
}

// Store is the session storage collaborator. Update succeeds only when
// rec.Version matches the stored version and returns the record with the
// incremented version.
type Store interface {
	Create(ctx context.Context, rec Record) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	Update(ctx context.Context, rec Record) (Record, error)
	List(ctx context.Context) ([]Record, error)
}

// Skip reasons reported by EnhancementPending.
const (
	ReasonEnhanced             = "already enhanced"
	ReasonNoResults            = "interview not scored"
	ReasonNoReflection         = "no reflection messages"
	ReasonReflectionIncomplete = "reflection not completed"
)

// EnhancementPending reports whether the record can be enhanced, and if not,
// why. Only a completed reflection is synthesized, so the enhancement always
// sees the full transcript.
func (r Record) EnhancementPending() (bool, string) {
	switch {
	case r.Enhanced != nil:
		return false, ReasonEnhanced
	case !r.Interview.Scored():
		return false, ReasonNoResults
	case !r.hasReflectionMessage():
		return false, ReasonNoReflection
	case r.Reflection == nil || !r.Reflection.IsComplete:
		return false, ReasonReflectionIncomplete
	}
	return true, ""
}

func (r Record) hasReflectionMessage() bool {
	for _, m := range r.ReflectionTranscript {
		if m.Role == llm.RoleUser && strings.TrimSpace(m.Content) != "" {
			return true
		}
	}
	return false
}

func normalizeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("session id is required")
	}
	return id, nil
}

func encode(rec Record) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", rec.ID, err)
	}
	return b, nil
}

func decode(raw []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("decode session: %w", err)
	}
	return rec, nil
}
