package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowforge/internal/archive"
	"flowforge/internal/assessment"
	"flowforge/internal/backfill"
	"flowforge/internal/config"
	"flowforge/internal/session"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Env:             "local",
		LogLevel:        "error",
		MetricsTextfile: filepath.Join(dir, "flowforge.prom"),
		LLM:             config.LLMConfig{Provider: "fake", RetryAttempts: 1},
		Artifact:        config.ArtifactConfig{Dir: filepath.Join(dir, "artifacts")},
		Session:         config.SessionConfig{File: filepath.Join(dir, "sessions.json"), CacheSize: 16, CacheTTL: time.Minute},
		Backfill:        config.BackfillConfig{Delay: 0},
	}
}

func run(t *testing.T, cfg *config.Config, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(func() (*config.Config, error) { return cfg, nil })
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	require.NoError(t, cmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func runReply(t *testing.T, cfg *config.Config, args ...string) assessment.Reply {
	t.Helper()
	var r assessment.Reply
	require.NoError(t, json.Unmarshal([]byte(run(t, cfg, append([]string{"--json"}, args...)...)), &r))
	return r
}

func TestFullSessionAcrossInvocations(t *testing.T) {
	cfg := testConfig(t)

	start := runReply(t, cfg, "start", "--name", "Jo")
	require.NotEmpty(t, start.SessionID)
	assert.Equal(t, "context", start.Phase)
	id := start.SessionID

	var r assessment.Reply
	for i := 0; i < 19; i++ {
		r = runReply(t, cfg, "interview", id, "--select", "b,a")
	}
	assert.True(t, r.IsComplete)
	assert.Equal(t, "closing", r.Phase)

	for _, msg := range []string{"", "It fits", "At work mostly", "Delegate more", "Thanks"} {
		args := []string{"reflect", id}
		if msg != "" {
			args = append(args, msg)
		}
		r = runReply(t, cfg, args...)
	}
	assert.True(t, r.IsComplete)

	var rec session.Record
	require.NoError(t, json.Unmarshal([]byte(run(t, cfg, "show", id)), &rec))
	assert.Equal(t, "Jo", rec.ParticipantName)
	assert.True(t, rec.Interview.Scored())
	require.NotNil(t, rec.Enhanced, "reflection completion enhances by default")

	listing := run(t, cfg, "show", id, "--artifacts")
	assert.Contains(t, listing, archive.InterviewResult)
	assert.Contains(t, listing, archive.EnhancedResult)

	var links []assessment.Link
	require.NoError(t, json.Unmarshal([]byte(run(t, cfg, "--json", "show", id, "--artifacts", "--urls")), &links))
	require.Len(t, links, 3)
	for _, l := range links {
		assert.True(t, strings.HasPrefix(l.URL, "file://"), l.URL)
		assert.True(t, strings.HasSuffix(l.URL, "/"+id+"/"+l.Path), l.URL)
	}

	var rep backfill.Report
	require.NoError(t, json.Unmarshal([]byte(run(t, cfg, "backfill")), &rep))
	assert.Equal(t, backfill.Report{Skipped: 1}, rep)

	prom, err := os.ReadFile(cfg.MetricsTextfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "flowforge_backfill_sessions_total")
}

func TestBackfillEnhancesWhenAutoEnhanceDisabled(t *testing.T) {
	cfg := testConfig(t)
	id := runReply(t, cfg, "start").SessionID
	for i := 0; i < 19; i++ {
		runReply(t, cfg, "interview", id, "--select", "C")
	}
	for _, msg := range []string{"", "yes", "no", "maybe", "bye"} {
		runReply(t, cfg, "--auto-enhance=false", "reflect", id, msg)
	}

	var rep backfill.Report
	require.NoError(t, json.Unmarshal([]byte(run(t, cfg, "backfill")), &rep))
	assert.Equal(t, 1, rep.Processed)

	var rec session.Record
	require.NoError(t, json.Unmarshal([]byte(run(t, cfg, "show", id)), &rec))
	assert.NotNil(t, rec.Enhanced)
}

func TestInterviewUnknownSessionFails(t *testing.T) {
	cfg := testConfig(t)
	cmd := newRootCmd(func() (*config.Config, error) { return cfg, nil })
	cmd.SetArgs([]string{"interview", "nope", "A"})
	cmd.SetOut(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	assert.ErrorIs(t, err, session.ErrNotFound)
}
