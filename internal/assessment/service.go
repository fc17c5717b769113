// Package assessment wires the conversational agents to session storage: each
// call loads a session, runs one agent turn and saves the result.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flowforge/internal/archive"
	"flowforge/internal/conversation"
	"flowforge/internal/enhancement"
	"flowforge/internal/interview"
	"flowforge/internal/reflection"
	"flowforge/internal/session"
	"flowforge/internal/tenant"
)

var (
	ErrInterviewIncomplete = errors.New("assessment: interview not complete")
	ErrNoResults           = errors.New("assessment: interview has no scored results")
	ErrAlreadyEnhanced     = errors.New("assessment: session already enhanced")
	ErrReflectionOpen      = errors.New("assessment: reflection not completed")
)

// Reply is what a caller shows after a turn.
type Reply struct {
	SessionID  string `json:"session_id"`
	Message    string `json:"message"`
	Phase      string `json:"phase"`
	IsComplete bool   `json:"is_complete"`
	Version    int64  `json:"version"`
}

type Deps struct {
	Sessions    session.Store
	Archive     archive.Store
	Tenants     tenant.Directory
	Interview   *interview.Agent
	Reflection  *reflection.Agent
	Synthesizer *enhancement.Synthesizer
	Logger      *zap.Logger
	// AutoEnhance runs the synthesizer when a reflection completes.
	AutoEnhance bool
	NewID       func() string
}

type Service struct {
	sessions    session.Store
	archive     archive.Store
	tenants     tenant.Directory
	interview   *interview.Agent
	reflection  *reflection.Agent
	synth       *enhancement.Synthesizer
	log         *zap.Logger
	autoEnhance bool
	newID       func() string
}

func New(d Deps) *Service {
	s := &Service{
		sessions:    d.Sessions,
		archive:     d.Archive,
		tenants:     d.Tenants,
		interview:   d.Interview,
		reflection:  d.Reflection,
		synth:       d.Synthesizer,
		log:         d.Logger,
		autoEnhance: d.AutoEnhance,
		newID:       d.NewID,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.tenants == nil {
		s.tenants = tenant.NewStaticDirectory()
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Start creates a session and produces the interview greeting.
func (s *Service) Start(ctx context.Context, tenantID, participant string) (Reply, error) {
	rec, err := s.sessions.Create(ctx, session.Record{
		ID:              s.newID(),
		TenantID:        strings.TrimSpace(tenantID),
		ParticipantName: strings.TrimSpace(participant),
		Interview:       interview.NewState(),
	})
	if err != nil {
		return Reply{}, fmt.Errorf("create session: %w", err)
	}
	s.log.Info("session started", zap.String("session", rec.ID), zap.String("tenant", rec.TenantID))
	return s.interviewTurn(ctx, rec, interview.Input{})
}

// Get returns the stored session.
func (s *Service) Get(ctx context.Context, id string) (session.Record, error) {
	return s.sessions.Get(ctx, id)
}

// Artifacts lists the archived artifacts of a session.
func (s *Service) Artifacts(ctx context.Context, id string) ([]string, error) {
	if s.archive == nil {
		return nil, nil
	}
	return s.archive.List(ctx, id)
}

// Link is an archived artifact and the URL it can be fetched from. URL is
// empty when the backend cannot address artifacts.
type Link struct {
	Path string `json:"path"`
	URL  string `json:"url,omitempty"`
}

// ArtifactLinks lists the archived artifacts of a session with their URLs.
// For S3 these are presigned and expire.
func (s *Service) ArtifactLinks(ctx context.Context, id string) ([]Link, error) {
	paths, err := s.Artifacts(ctx, id)
	if err != nil {
		return nil, err
	}
	links := make([]Link, 0, len(paths))
	for _, p := range paths {
		u, err := s.archive.GetURL(ctx, id, p)
		if err != nil {
			return nil, fmt.Errorf("artifact url %s/%s: %w", id, p, err)
		}
		links = append(links, Link{Path: p, URL: u})
	}
	return links, nil
}

// InterviewTurn runs one interview turn for a stored session.
func (s *Service) InterviewTurn(ctx context.Context, id string, in interview.Input) (Reply, error) {
	rec, err := s.sessions.Get(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	return s.interviewTurn(ctx, rec, in)
}

func (s *Service) interviewTurn(ctx context.Context, rec session.Record, in interview.Input) (Reply, error) {
	res, err := s.interview.ProcessTurn(ctx, interview.TurnRequest{
		Input:           in,
		State:           rec.Interview,
		History:         rec.Transcript,
		Tenant:          s.tenants.Lookup(rec.TenantID),
		ParticipantName: rec.ParticipantName,
	})
	if err != nil {
		return Reply{}, err
	}

	wasScored := rec.Interview.Scored()
	rec.Interview = res.State
	rec.Transcript = conversation.Append(rec.Transcript, res.Appended...)
	saved, err := s.sessions.Update(ctx, rec)
	if err != nil {
		return Reply{}, fmt.Errorf("save session %s: %w", rec.ID, err)
	}

	if !wasScored {
		if result, ok := saved.Interview.Result(); ok {
			s.log.Info("interview scored",
				zap.String("session", saved.ID),
				zap.String("default", string(result.DefaultArchetype)),
				zap.String("authentic", string(result.AuthenticArchetype)),
				zap.Bool("aligned", result.IsAligned))
			s.store(ctx, saved.ID, archive.InterviewResult, result)
		}
	}
	return Reply{
		SessionID:  saved.ID,
		Message:    res.Message,
		Phase:      string(saved.Interview.Phase),
		IsComplete: res.IsComplete,
		Version:    saved.Version,
	}, nil
}

// ReflectionTurn runs one reflection turn. The interview must be scored.
func (s *Service) ReflectionTurn(ctx context.Context, id, message string) (Reply, error) {
	rec, err := s.sessions.Get(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	if !rec.Interview.IsComplete() {
		return Reply{}, ErrInterviewIncomplete
	}
	result, ok := rec.Interview.Result()
	if !ok {
		return Reply{}, ErrNoResults
	}
	state := reflection.NewState()
	if rec.Reflection != nil {
		state = *rec.Reflection
	}

	res, err := s.reflection.ProcessTurn(ctx, reflection.TurnRequest{
		Message:         message,
		State:           state,
		History:         rec.ReflectionTranscript,
		Results:         result,
		Tenant:          s.tenants.Lookup(rec.TenantID),
		ParticipantName: rec.ParticipantName,
	})
	if err != nil {
		return Reply{}, err
	}

	rec.Reflection = &res.State
	rec.ReflectionTranscript = conversation.Append(rec.ReflectionTranscript, res.Appended...)
	saved, err := s.sessions.Update(ctx, rec)
	if err != nil {
		return Reply{}, fmt.Errorf("save session %s: %w", rec.ID, err)
	}

	if res.IsComplete && s.autoEnhance && s.synth != nil {
		out, err := s.Enhance(ctx, saved.ID)
		switch {
		case err != nil:
			s.log.Warn("enhancement skipped", zap.String("session", saved.ID), zap.Error(err))
		case !out.Success:
			s.log.Warn("enhancement failed", zap.String("session", saved.ID), zap.String("error", out.Error))
		}
	}

	return Reply{
		SessionID:  saved.ID,
		Message:    res.Message,
		Phase:      string(res.State.Phase),
		IsComplete: res.IsComplete,
		Version:    saved.Version,
	}, nil
}

// Enhance synthesizes and stores the enhanced result of a session. It
// returns a skip error when the session is already enhanced, lacks a scored
// result or reflection messages, or its reflection is still in progress. An unsuccessful synthesis is
// reported through the Outcome and leaves the session unchanged.
func (s *Service) Enhance(ctx context.Context, id string) (enhancement.Outcome, error) {
	if s.synth == nil {
		return enhancement.Outcome{}, fmt.Errorf("assessment: no synthesizer configured")
	}
	rec, err := s.sessions.Get(ctx, id)
	if err != nil {
		return enhancement.Outcome{}, err
	}
	if pending, reason := rec.EnhancementPending(); !pending {
		return enhancement.Outcome{}, skipError(reason)
	}
	result, _ := rec.Interview.Result()

	out := s.synth.Synthesize(ctx, enhancement.Request{
		Original:        result,
		Transcript:      rec.ReflectionTranscript,
		ParticipantName: rec.ParticipantName,
		Tenant:          s.tenants.Lookup(rec.TenantID),
	})
	if !out.Success {
		return out, nil
	}

	rec.Enhanced = out.Enhanced
	saved, err := s.sessions.Update(ctx, rec)
	if err != nil {
		return enhancement.Outcome{}, fmt.Errorf("save session %s: %w", rec.ID, err)
	}
	s.store(ctx, saved.ID, archive.ReflectionTranscript, saved.ReflectionTranscript)
	s.store(ctx, saved.ID, archive.EnhancedResult, saved.Enhanced)
	s.log.Info("session enhanced", zap.String("session", saved.ID))
	return out, nil
}

// IsSkip reports whether err means a session needs no enhancement.
func IsSkip(err error) bool {
	return errors.Is(err, ErrAlreadyEnhanced) || errors.Is(err, ErrNoResults) ||
		errors.Is(err, ErrReflectionOpen) || errors.Is(err, enhancement.ErrNoReflection)
}

func skipError(reason string) error {
	switch reason {
	case session.ReasonEnhanced:
		return ErrAlreadyEnhanced
	case session.ReasonNoResults:
		return ErrNoResults
	case session.ReasonReflectionIncomplete:
		return ErrReflectionOpen
	default:
		return enhancement.ErrNoReflection
	}
}

// store archives v. Archive failures are logged; the session is authoritative.
func (s *Service) store(ctx context.Context, id, path string, v any) {
	if s.archive == nil {
		return
	}
	if err := archive.PutJSON(ctx, s.archive, id, path, v); err != nil {
		s.log.Warn("archive write failed", zap.String("session", id), zap.String("path", path), zap.Error(err))
	}
}
