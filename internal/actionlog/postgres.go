package actionlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/concordhq/concord/internal/model"
)

// PostgresLog is the durable action log backend (§4.1, "A durable-log
// variant (configured for serverless engines) fails only if the durable
// backend is unavailable").
type PostgresLog struct {
	pool *pgxpool.Pool
}

// NewPostgresLog connects to dsn, verifies connectivity, and ensures the
// action-log schema exists.
func NewPostgresLog(ctx context.Context, dsn string) (*PostgresLog, error) {
	if dsn == "" {
		return nil, fmt.Errorf("actionlog: postgres DSN is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("actionlog: create postgres pool: %w", err)
	}
	l := &PostgresLog{pool: pool}
	if err := l.pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := l.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return l, nil
}

func (l *PostgresLog) Close() error {
	if l.pool != nil {
		l.pool.Close()
	}
	return nil
}

func (l *PostgresLog) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS action_records (
			id TEXT NOT NULL,
			flow TEXT NOT NULL,
			kind TEXT NOT NULL,
			concept TEXT NOT NULL,
			action TEXT NOT NULL,
			input JSONB,
			variant TEXT,
			output JSONB,
			parent TEXT,
			sync_name TEXT,
			diagnostic TEXT,
			seq BIGSERIAL,
			timestamp TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (flow, id, kind)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_action_records_flow_seq ON action_records(flow, seq)`,
		`CREATE TABLE IF NOT EXISTS sync_firings (
			matched_key TEXT NOT NULL,
			sync_name TEXT NOT NULL,
			PRIMARY KEY (matched_key, sync_name)
		)`,
		`CREATE TABLE IF NOT EXISTS sync_firing_edges (
			trigger_id TEXT NOT NULL,
			sync_name TEXT NOT NULL,
			invocation_id TEXT NOT NULL,
			seq BIGSERIAL,
			PRIMARY KEY (trigger_id, sync_name, invocation_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_firing_edges_trigger ON sync_firing_edges(trigger_id, seq)`,
	}
	for _, stmt := range stmts {
		if _, err := l.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("actionlog: ensure schema: %w", err)
		}
	}
	return nil
}

func (l *PostgresLog) Append(ctx context.Context, c model.Completion, parent string) (model.Record, error) {
	rec := c.ToRecord(nowUTC(), parent)
	if err := l.insert(ctx, rec); err != nil {
		return model.Record{}, err
	}
	return rec, nil
}

func (l *PostgresLog) AppendInvocation(ctx context.Context, inv model.Invocation, parent string) (model.Record, error) {
	rec := inv.ToRecord(nowUTC())
	if parent != "" {
		rec.Parent = parent
	}
	if err := l.insert(ctx, rec); err != nil {
		return model.Record{}, err
	}
	return rec, nil
}

func (l *PostgresLog) insert(ctx context.Context, rec model.Record) error {
	input, err := json.Marshal(rec.Input)
	if err != nil {
		return fmt.Errorf("actionlog: marshal input: %w", err)
	}
	output, err := json.Marshal(rec.Output)
	if err != nil {
		return fmt.Errorf("actionlog: marshal output: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO action_records
			(id, flow, kind, concept, action, input, variant, output, parent, sync_name, diagnostic, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8::jsonb, $9, $10, $11, $12)
	`, rec.ID, rec.Flow, string(rec.Kind), rec.Concept, rec.Action, input, rec.Variant, output,
		rec.Parent, rec.Sync, rec.Diagnostic, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: append record: %v", ErrUnavailable, err)
	}
	return nil
}

func (l *PostgresLog) CompletionsForFlow(ctx context.Context, flow string) ([]model.Record, error) {
	return l.recordsForFlow(ctx, flow, true)
}

func (l *PostgresLog) RecordsForFlow(ctx context.Context, flow string) ([]model.Record, error) {
	return l.recordsForFlow(ctx, flow, false)
}

func (l *PostgresLog) recordsForFlow(ctx context.Context, flow string, completionsOnly bool) ([]model.Record, error) {
	query := `SELECT id, flow, kind, concept, action, input, variant, output, parent, sync_name, diagnostic, timestamp
		FROM action_records WHERE flow = $1`
	if completionsOnly {
		query += ` AND kind = 'completion'`
	}
	query += ` ORDER BY seq ASC`

	rows, err := l.pool.Query(ctx, query, flow)
	if err != nil {
		return nil, fmt.Errorf("%w: list records: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		var rec model.Record
		var kind string
		var input, output []byte
		if err := rows.Scan(&rec.ID, &rec.Flow, &kind, &rec.Concept, &rec.Action, &input,
			&rec.Variant, &output, &rec.Parent, &rec.Sync, &rec.Diagnostic, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("actionlog: scan record: %w", err)
		}
		rec.Kind = model.RecordKind(kind)
		if len(input) > 0 {
			if err := json.Unmarshal(input, &rec.Input); err != nil {
				return nil, fmt.Errorf("actionlog: unmarshal input: %w", err)
			}
		}
		if len(output) > 0 {
			if err := json.Unmarshal(output, &rec.Output); err != nil {
				return nil, fmt.Errorf("actionlog: unmarshal output: %w", err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

func (l *PostgresLog) RecordSyncFiring(ctx context.Context, matchedIDs []string, syncName string) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO sync_firings (matched_key, sync_name) VALUES ($1, $2)
		ON CONFLICT (matched_key, sync_name) DO NOTHING
	`, firingKey(matchedIDs), syncName)
	if err != nil {
		return fmt.Errorf("%w: record sync firing: %v", ErrUnavailable, err)
	}
	return nil
}

func (l *PostgresLog) HasFired(ctx context.Context, matchedIDs []string, syncName string) (bool, error) {
	var exists bool
	err := l.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM sync_firings WHERE matched_key = $1 AND sync_name = $2)
	`, firingKey(matchedIDs), syncName).Scan(&exists)
	if err != nil && err != pgx.ErrNoRows {
		return false, fmt.Errorf("%w: has fired: %v", ErrUnavailable, err)
	}
	return exists, nil
}

func (l *PostgresLog) RecordFiringEdge(ctx context.Context, triggerID, syncName, invocationID string) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO sync_firing_edges (trigger_id, sync_name, invocation_id) VALUES ($1, $2, $3)
		ON CONFLICT (trigger_id, sync_name, invocation_id) DO NOTHING
	`, triggerID, syncName, invocationID)
	if err != nil {
		return fmt.Errorf("%w: record firing edge: %v", ErrUnavailable, err)
	}
	return nil
}

func (l *PostgresLog) EdgesForTrigger(ctx context.Context, triggerID string) ([]TriggerEdge, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT sync_name, invocation_id FROM sync_firing_edges WHERE trigger_id = $1 ORDER BY seq ASC
	`, triggerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list firing edges: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []TriggerEdge
	for rows.Next() {
		var e TriggerEdge
		if err := rows.Scan(&e.SyncName, &e.InvocationID); err != nil {
			return nil, fmt.Errorf("actionlog: scan firing edge: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}
