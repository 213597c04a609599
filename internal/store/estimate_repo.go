package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/TheFermiSea/crystalmath/internal/domain"
)

// EstimateRepo handles persistence for ResourceEstimate records.
type EstimateRepo struct{}

// Save records the resource estimate computed before a session's first
// submission. One estimate per session.
func (r *EstimateRepo) Save(ctx context.Context, db *sql.DB, sessionID string, est domain.ResourceEstimate) error {
	const q = `INSERT OR REPLACE INTO resource_estimates (session_id, memory_mb, num_cores, walltime_seconds, created_at)
VALUES (?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q, sessionID, est.MemoryMb, est.NumCores, est.WalltimeSeconds, time.Now().Unix())
	if err != nil {
		return domain.WrapEngineError(domain.ErrStoreWrite.Code, "save estimate", err)
	}
	return nil
}

// GetBySession returns the estimate recorded for a session.
func (r *EstimateRepo) GetBySession(ctx context.Context, db *sql.DB, sessionID string) (*domain.ResourceEstimate, error) {
	const q = `SELECT memory_mb, num_cores, walltime_seconds FROM resource_estimates WHERE session_id = ?`
	row := db.QueryRowContext(ctx, q, sessionID)

	var est domain.ResourceEstimate
	if err := row.Scan(&est.MemoryMb, &est.NumCores, &est.WalltimeSeconds); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrSessionNotFound
		}
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "get estimate", err)
	}
	return &est, nil
}
