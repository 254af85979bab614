package repository

import (
	"context"
	"database/sql"

	"github.com/akylbek/payment-system/agent-tools/internal/models"
)

// InvocationRepository stores the tool audit trail in PostgreSQL.
type InvocationRepository struct {
	db *sql.DB
}

func NewInvocationRepository(db *sql.DB) *InvocationRepository {
	return &InvocationRepository{db: db}
}

func (r *InvocationRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS tool_invocations (
			id VARCHAR(255) PRIMARY KEY,
			tool VARCHAR(100) NOT NULL,
			success BOOLEAN NOT NULL,
			error TEXT,
			idempotency_key VARCHAR(255),
			transaction_id VARCHAR(255),
			duration_ms BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tool_invocations_tool ON tool_invocations(tool)`,
		`CREATE INDEX IF NOT EXISTS idx_tool_invocations_idempotency_key ON tool_invocations(idempotency_key)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (r *InvocationRepository) Record(ctx context.Context, inv *models.Invocation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tool_invocations (id, tool, success, error, idempotency_key, transaction_id, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, inv.ID, inv.Tool, inv.Success, nullString(inv.Error), nullString(inv.IdempotencyKey),
		nullString(inv.TransactionID), inv.DurationMs, inv.CreatedAt)
	return err
}

func (r *InvocationRepository) ListByIdempotencyKey(ctx context.Context, key string) ([]models.Invocation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tool, success, COALESCE(error, ''), COALESCE(idempotency_key, ''),
			COALESCE(transaction_id, ''), duration_ms, created_at
		FROM tool_invocations WHERE idempotency_key = $1 ORDER BY created_at
	`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Invocation
	for rows.Next() {
		var inv models.Invocation
		if err := rows.Scan(&inv.ID, &inv.Tool, &inv.Success, &inv.Error, &inv.IdempotencyKey,
			&inv.TransactionID, &inv.DurationMs, &inv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
