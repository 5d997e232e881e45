package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore persists audit records in the audit_records table.
type PostgresStore struct {
	db pgDB
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool}
}

// EnsureSchema creates the audit table if it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS audit_records (
			id             BIGSERIAL PRIMARY KEY,
			correlation_id TEXT        NOT NULL,
			subject        TEXT        NOT NULL DEFAULT '',
			intent         TEXT        NOT NULL DEFAULT '',
			stage_reached  TEXT        NOT NULL,
			outcome        TEXT        NOT NULL,
			reason         TEXT        NOT NULL DEFAULT '',
			client_ip      TEXT        NOT NULL DEFAULT '',
			user_agent     TEXT        NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS audit_records_correlation_idx
			ON audit_records (correlation_id);
	`)
	if err != nil {
		return fmt.Errorf("audit: ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, record Record) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO audit_records
		(correlation_id, subject, intent, stage_reached, outcome, reason, client_ip, user_agent, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, record.CorrelationID, record.Subject, record.Intent, string(record.Stage),
		string(record.Outcome), record.Reason, record.ClientIP, record.UserAgent, record.Timestamp)
	if err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByCorrelation(ctx context.Context, correlationID string) ([]Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT correlation_id, subject, intent, stage_reached, outcome, reason, client_ip, user_agent, created_at
		FROM audit_records WHERE correlation_id=$1 ORDER BY id
	`, correlationID)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var record Record
		var stage, outcome string
		if err := rows.Scan(&record.CorrelationID, &record.Subject, &record.Intent,
			&stage, &outcome, &record.Reason, &record.ClientIP, &record.UserAgent, &record.Timestamp); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		record.Stage = Stage(stage)
		record.Outcome = Outcome(outcome)
		out = append(out, record)
	}
	return out, rows.Err()
}
