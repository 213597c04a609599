package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/TheFermiSea/crystalmath/internal/domain"
	"github.com/TheFermiSea/crystalmath/internal/params"
)

// SessionRepo handles persistence for RestartSession records.
type SessionRepo struct{}

// SessionSummary is a listing row for archived sessions.
type SessionSummary struct {
	SessionID      string
	MaxAttempts    int
	TerminalKind   domain.TerminalKind
	TerminalReason string
	AttemptCount   int
	CreatedAtUnix  int64
}

// Archive writes a terminal session and its attempts in one transaction.
// Sessions without a terminal result are rejected: live sessions belong to
// the orchestrator, not the archive.
func (r *SessionRepo) Archive(ctx context.Context, db *sql.DB, session *domain.RestartSession) error {
	if session.Terminal == nil {
		return domain.NewEngineError(domain.ErrStoreWrite.Code, "refusing to archive a session without a terminal result")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapEngineError(domain.ErrStoreWrite.Code, "begin tx", err)
	}
	defer tx.Rollback()

	const q = `INSERT INTO sessions (session_id, max_attempts, terminal_kind, terminal_attempt, terminal_reason, created_at, archived_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, q,
		session.SessionID,
		session.MaxAttempts,
		string(session.Terminal.Kind),
		session.Terminal.AttemptNumber,
		session.Terminal.Reason,
		session.CreatedAtUnix,
		time.Now().Unix(),
	)
	if err != nil {
		return domain.WrapEngineError(domain.ErrStoreWrite.Code, "insert session", err)
	}

	for _, att := range session.Attempts {
		if err := insertAttemptTx(ctx, tx, session.SessionID, att); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertAttemptTx(ctx context.Context, tx *sql.Tx, sessionID string, att *domain.CalculationAttempt) error {
	paramsJSON, err := json.Marshal(att.Parameters)
	if err != nil {
		return domain.WrapEngineError(domain.ErrStoreWrite.Code, "encode parameters", err)
	}
	modsJSON, err := json.Marshal(att.Modifications)
	if err != nil {
		return domain.WrapEngineError(domain.ErrStoreWrite.Code, "encode modifications", err)
	}

	var pattern, reason string
	var confidence float64
	var amp, rate, gap sql.NullFloat64
	recsJSON := []byte("[]")
	if d := att.Diagnosis; d != nil {
		pattern = string(d.Pattern)
		reason = string(d.Reason)
		confidence = d.Confidence
		amp = nullable(d.OscillationAmplitude)
		rate = nullable(d.SlowDecayRate)
		gap = nullable(d.HomoLumoGapEv)
		if recsJSON, err = json.Marshal(d.Recommendations); err != nil {
			return domain.WrapEngineError(domain.ErrStoreWrite.Code, "encode recommendations", err)
		}
	}

	const q = `INSERT INTO attempts (session_id, attempt_number, status, params_json, params_checksum, restart_handle,
	pattern, reason, confidence, oscillation_amplitude, slow_decay_rate, homo_lumo_gap_ev,
	recommendations_json, modifications_json, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, q,
		sessionID,
		att.AttemptNumber,
		string(att.Status),
		string(paramsJSON),
		params.FromMap(att.Parameters).Fingerprint(),
		att.RestartHandle,
		pattern,
		reason,
		confidence,
		amp,
		rate,
		gap,
		string(recsJSON),
		string(modsJSON),
		att.StartedAtUnix,
		att.FinishedAtUnix,
	)
	if err != nil {
		return domain.WrapEngineError(domain.ErrStoreWrite.Code, "insert attempt", err)
	}
	return nil
}

// GetByID loads an archived session with its full attempt history.
func (r *SessionRepo) GetByID(ctx context.Context, db *sql.DB, sessionID string) (*domain.RestartSession, error) {
	const q = `SELECT session_id, max_attempts, terminal_kind, terminal_attempt, terminal_reason, created_at
FROM sessions WHERE session_id = ?`
	row := db.QueryRowContext(ctx, q, sessionID)

	var s domain.RestartSession
	var kind string
	var terminal domain.TerminalResult
	err := row.Scan(&s.SessionID, &s.MaxAttempts, &kind, &terminal.AttemptNumber, &terminal.Reason, &s.CreatedAtUnix)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrSessionNotFound
		}
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "get session", err)
	}
	terminal.Kind = domain.TerminalKind(kind)
	s.Terminal = &terminal

	attempts, err := r.listAttempts(ctx, db, sessionID)
	if err != nil {
		return nil, err
	}
	s.Attempts = attempts
	return &s, nil
}

func (r *SessionRepo) listAttempts(ctx context.Context, db *sql.DB, sessionID string) ([]*domain.CalculationAttempt, error) {
	const q = `SELECT attempt_number, status, params_json, restart_handle, pattern, reason, confidence,
	oscillation_amplitude, slow_decay_rate, homo_lumo_gap_ev, recommendations_json, modifications_json,
	started_at, finished_at
FROM attempts WHERE session_id = ? ORDER BY attempt_number ASC`

	rows, err := db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "list attempts", err)
	}
	defer rows.Close()

	var attempts []*domain.CalculationAttempt
	for rows.Next() {
		var att domain.CalculationAttempt
		var status, paramsJSON, pattern, reason, recsJSON, modsJSON string
		var confidence float64
		var amp, rate, gap sql.NullFloat64

		err := rows.Scan(&att.AttemptNumber, &status, &paramsJSON, &att.RestartHandle,
			&pattern, &reason, &confidence, &amp, &rate, &gap, &recsJSON, &modsJSON,
			&att.StartedAtUnix, &att.FinishedAtUnix)
		if err != nil {
			return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "scan attempt", err)
		}
		att.Status = domain.AttemptStatus(status)
		if err := json.Unmarshal([]byte(paramsJSON), &att.Parameters); err != nil {
			return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "decode parameters", err)
		}
		if err := json.Unmarshal([]byte(modsJSON), &att.Modifications); err != nil {
			return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "decode modifications", err)
		}

		if pattern != "" {
			diag := domain.ConvergenceDiagnosis{
				Pattern:              domain.Pattern(pattern),
				Reason:               domain.Reason(reason),
				Confidence:           confidence,
				OscillationAmplitude: optional(amp),
				SlowDecayRate:        optional(rate),
				HomoLumoGapEv:        optional(gap),
			}
			if err := json.Unmarshal([]byte(recsJSON), &diag.Recommendations); err != nil {
				return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "decode recommendations", err)
			}
			att.Diagnosis = &diag
		}
		attempts = append(attempts, &att)
	}
	return attempts, rows.Err()
}

// List returns summaries of archived sessions, newest first.
func (r *SessionRepo) List(ctx context.Context, db *sql.DB, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT s.session_id, s.max_attempts, s.terminal_kind, s.terminal_reason, s.created_at,
	(SELECT COUNT(*) FROM attempts a WHERE a.session_id = s.session_id)
FROM sessions s ORDER BY s.created_at DESC, s.session_id DESC LIMIT ?`

	rows, err := db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "list sessions", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		var kind string
		if err := rows.Scan(&s.SessionID, &s.MaxAttempts, &kind, &s.TerminalReason, &s.CreatedAtUnix, &s.AttemptCount); err != nil {
			return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "scan session summary", err)
		}
		s.TerminalKind = domain.TerminalKind(kind)
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func optional(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
