package conceptstate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the durable Store backend.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn, verifies connectivity, and ensures
// the concept_state schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("conceptstate: postgres DSN is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("conceptstate: create postgres pool: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("conceptstate: postgres not initialized")
	}
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS concept_state (
			concept TEXT NOT NULL,
			key TEXT NOT NULL,
			value JSONB NOT NULL,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ,
			PRIMARY KEY (concept, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_concept_state_concept_key ON concept_state(concept, key)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("conceptstate: ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, concept, key string) (*Entry, error) {
	var e Entry
	var value []byte
	err := s.pool.QueryRow(ctx, `
		SELECT concept, key, value, version, created_at, updated_at, expires_at
		FROM concept_state
		WHERE concept = $1 AND key = $2 AND (expires_at IS NULL OR expires_at > NOW())
	`, concept, key).Scan(&e.Concept, &e.Key, &value, &e.Version, &e.CreatedAt, &e.UpdatedAt, &e.ExpiresAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conceptstate: get: %w", err)
	}
	e.Value = value
	return &e, nil
}

func (s *PostgresStore) Put(ctx context.Context, concept, key string, value json.RawMessage, opts *PutOptions) (*Entry, error) {
	now := time.Now().UTC()
	var expiresAt *time.Time
	var expectedVersion int64
	if opts != nil {
		if opts.TTL > 0 {
			t := now.Add(opts.TTL)
			expiresAt = &t
		}
		expectedVersion = opts.ExpectedVersion
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("conceptstate: begin put: %w", err)
	}
	defer tx.Rollback(ctx)

	var currentVersion int64
	var createdAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT version, created_at FROM concept_state WHERE concept = $1 AND key = $2
			AND (expires_at IS NULL OR expires_at > NOW())
	`, concept, key).Scan(&currentVersion, &createdAt)
	switch {
	case err == pgx.ErrNoRows:
		if expectedVersion != 0 {
			return nil, ErrVersionConflict
		}
		createdAt = now
		currentVersion = 0
	case err != nil:
		return nil, fmt.Errorf("conceptstate: put lookup: %w", err)
	default:
		if expectedVersion != 0 && expectedVersion != currentVersion {
			return nil, ErrVersionConflict
		}
	}

	nextVersion := currentVersion + 1
	_, err = tx.Exec(ctx, `
		INSERT INTO concept_state (concept, key, value, version, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3::jsonb, $4, $5, $6, $7)
		ON CONFLICT (concept, key) DO UPDATE SET
			value = EXCLUDED.value,
			version = EXCLUDED.version,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at
	`, concept, key, []byte(value), nextVersion, createdAt, now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("conceptstate: put: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("conceptstate: commit put: %w", err)
	}

	return &Entry{
		Concept:   concept,
		Key:       key,
		Value:     value,
		Version:   nextVersion,
		CreatedAt: createdAt,
		UpdatedAt: now,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *PostgresStore) Delete(ctx context.Context, concept, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM concept_state WHERE concept = $1 AND key = $2`, concept, key)
	if err != nil {
		return fmt.Errorf("conceptstate: delete: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, concept string, opts *ListOptions) ([]*Entry, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT concept, key, value, version, created_at, updated_at, expires_at
		FROM concept_state WHERE concept = $1 AND (expires_at IS NULL OR expires_at > NOW())`)
	args := []interface{}{concept}

	if opts != nil && opts.Prefix != "" {
		args = append(args, opts.Prefix+"%")
		query.WriteString(fmt.Sprintf(" AND key LIKE $%d", len(args)))
	}
	query.WriteString(" ORDER BY key ASC")
	if opts != nil && opts.Limit > 0 {
		args = append(args, opts.Limit)
		query.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	if opts != nil && opts.Offset > 0 {
		args = append(args, opts.Offset)
		query.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}

	rows, err := s.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("conceptstate: list: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		var value []byte
		if err := rows.Scan(&e.Concept, &e.Key, &value, &e.Version, &e.CreatedAt, &e.UpdatedAt, &e.ExpiresAt); err != nil {
			return nil, fmt.Errorf("conceptstate: scan: %w", err)
		}
		e.Value = value
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conceptstate: list rows: %w", err)
	}
	return out, nil
}
