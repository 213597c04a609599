package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/TheFermiSea/crystalmath/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSession() *domain.RestartSession {
	amp := 0.05
	return &domain.RestartSession{
		SessionID:   "01JTESTSESSION0000000000",
		MaxAttempts: 3,
		Terminal: &domain.TerminalResult{
			Kind:          domain.TerminalExhausted,
			AttemptNumber: 2,
			Reason:        string(domain.ReasonChargeSloshing),
		},
		CreatedAtUnix: 1700000000,
		Attempts: []*domain.CalculationAttempt{
			{
				AttemptNumber: 1,
				Parameters:    map[string]any{"scf": map[string]any{"mixing_percent": 30.0}},
				Status:        domain.AttemptFinished,
				Diagnosis: &domain.ConvergenceDiagnosis{
					Pattern:              domain.PatternOscillating,
					Reason:               domain.ReasonChargeSloshing,
					Confidence:           0.95,
					OscillationAmplitude: &amp,
					Recommendations:      []string{"increase density mixing damping to suppress charge sloshing"},
				},
				Modifications: []domain.ParameterModification{
					{ParameterPath: "scf.mixing_percent", OldValue: 30.0, NewValue: 40.0, Rationale: "raise mixing damping"},
				},
				StartedAtUnix:  1700000100,
				FinishedAtUnix: 1700000400,
			},
			{
				AttemptNumber: 2,
				Parameters:    map[string]any{"scf": map[string]any{"mixing_percent": 40.0}},
				RestartHandle: "wfn-0001.chk",
				Status:        domain.AttemptFinished,
				Diagnosis: &domain.ConvergenceDiagnosis{
					Pattern:    domain.PatternOscillating,
					Reason:     domain.ReasonChargeSloshing,
					Confidence: 0.95,
				},
				StartedAtUnix:  1700000500,
				FinishedAtUnix: 1700000900,
			},
		},
	}
}

func TestSessionRepo_ArchiveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Archive(ctx, sampleSession()); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	got, err := s.Sessions.GetByID(ctx, s.DB, "01JTESTSESSION0000000000")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	if got.Terminal.Kind != domain.TerminalExhausted {
		t.Errorf("Terminal.Kind = %q, want exhausted_retries", got.Terminal.Kind)
	}
	if len(got.Attempts) != 2 {
		t.Fatalf("Attempts = %d, want 2", len(got.Attempts))
	}

	first := got.Attempts[0]
	if first.Diagnosis == nil || first.Diagnosis.Reason != domain.ReasonChargeSloshing {
		t.Errorf("Diagnosis = %+v, want charge_sloshing", first.Diagnosis)
	}
	if first.Diagnosis.OscillationAmplitude == nil || *first.Diagnosis.OscillationAmplitude != 0.05 {
		t.Errorf("OscillationAmplitude = %v, want 0.05", first.Diagnosis.OscillationAmplitude)
	}
	if len(first.Modifications) != 1 || first.Modifications[0].ParameterPath != "scf.mixing_percent" {
		t.Errorf("Modifications = %+v", first.Modifications)
	}
	if got.Attempts[1].RestartHandle != "wfn-0001.chk" {
		t.Errorf("RestartHandle = %q", got.Attempts[1].RestartHandle)
	}
}

func TestSessionRepo_ArchiveRejectsLiveSession(t *testing.T) {
	s := newTestStore(t)

	live := sampleSession()
	live.Terminal = nil
	if err := s.Archive(context.Background(), live); err == nil {
		t.Error("expected error archiving a session without a terminal result")
	}
}

func TestSessionRepo_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Sessions.GetByID(context.Background(), s.DB, "nope")
	if err != domain.ErrSessionNotFound {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionRepo_List(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := sampleSession()
	b := sampleSession()
	b.SessionID = "01JTESTSESSION0000000001"
	b.CreatedAtUnix = 1700001000

	if err := s.Archive(ctx, a); err != nil {
		t.Fatalf("Archive a: %v", err)
	}
	if err := s.Archive(ctx, b); err != nil {
		t.Fatalf("Archive b: %v", err)
	}

	summaries, err := s.Sessions.List(ctx, s.DB, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries = %d, want 2", len(summaries))
	}
	if summaries[0].SessionID != b.SessionID {
		t.Errorf("newest first: got %q", summaries[0].SessionID)
	}
	if summaries[0].AttemptCount != 2 {
		t.Errorf("AttemptCount = %d, want 2", summaries[0].AttemptCount)
	}
}

func TestEstimateRepo_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	est := domain.ResourceEstimate{MemoryMb: 4512, NumCores: 16, WalltimeSeconds: 7200}
	if err := s.Estimates.Save(ctx, s.DB, "sess-1", est); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Estimates.GetBySession(ctx, s.DB, "sess-1")
	if err != nil {
		t.Fatalf("GetBySession: %v", err)
	}
	if *got != est {
		t.Errorf("estimate = %+v, want %+v", got, est)
	}

	if _, err := s.Estimates.GetBySession(ctx, s.DB, "missing"); err != domain.ErrSessionNotFound {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}
