package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore keeps each record as a JSONB document next to its version.
type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

// OpenPostgres opens dsn with the pgx driver and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresStore(db), nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS assessment_sessions (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL DEFAULT '',
  data JSONB NOT NULL,
  version BIGINT NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_assessment_sessions_tenant ON assessment_sessions (tenant_id);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Create(ctx context.Context, rec Record) (Record, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return Record{}, err
	}
	id, err := normalizeID(rec.ID)
	if err != nil {
		return Record{}, err
	}
	now := time.Now().UTC()
	rec.ID, rec.Version, rec.CreatedAt, rec.UpdatedAt = id, 1, now, now
	raw, err := encode(rec)
	if err != nil {
		return Record{}, err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO assessment_sessions (id, tenant_id, data, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)`,
		rec.ID, rec.TenantID, raw, rec.Version, now)
	if err != nil {
		return Record{}, fmt.Errorf("insert session %s: %w", id, err)
	}
	return rec, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return Record{}, err
	}
	id, err := normalizeID(id)
	if err != nil {
		return Record{}, err
	}
	var (
		raw     []byte
		version int64
	)
	err = s.db.QueryRowContext(ctx, `SELECT data, version FROM assessment_sessions WHERE id = $1`, id).
		Scan(&raw, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load session %s: %w", id, err)
	}
	rec, err := decode(raw)
	if err != nil {
		return Record{}, err
	}
	rec.Version = version
	return rec, nil
}

func (s *PostgresStore) Update(ctx context.Context, rec Record) (Record, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return Record{}, err
	}
	id, err := normalizeID(rec.ID)
	if err != nil {
		return Record{}, err
	}
	expected := rec.Version
	rec.ID = id
	rec.Version = expected + 1
	rec.UpdatedAt = time.Now().UTC()
	raw, err := encode(rec)
	if err != nil {
		return Record{}, err
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE assessment_sessions
SET data = $2, version = $3, updated_at = $4
WHERE id = $1 AND version = $5`,
		id, raw, rec.Version, rec.UpdatedAt, expected)
	if err != nil {
		return Record{}, fmt.Errorf("update session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Record{}, fmt.Errorf("update session %s: %w", id, err)
	}
	if n == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM assessment_sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
			return Record{}, fmt.Errorf("update session %s: %w", id, err)
		}
		if !exists {
			return Record{}, ErrNotFound
		}
		return Record{}, ErrVersionConflict
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT data, version FROM assessment_sessions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 32)
	for rows.Next() {
		var (
			raw     []byte
			version int64
		)
		if err := rows.Scan(&raw, &version); err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		rec, err := decode(raw)
		if err != nil {
			return nil, err
		}
		rec.Version = version
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}
