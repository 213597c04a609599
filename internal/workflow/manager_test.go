package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/TheFermiSea/crystalmath/internal/domain"
	"github.com/TheFermiSea/crystalmath/internal/solver"
)

// blockingBackend parks Await until the context is cancelled or release is
// closed, mimicking a long remote solver run.
type blockingBackend struct {
	release   chan struct{}
	mu        sync.Mutex
	cancelled int
}

type blockingHandle struct{}

func (blockingHandle) ID() string { return "blocking" }

func (b *blockingBackend) Submit(ctx context.Context, snapshot map[string]any, restartHandle string) (solver.AttemptHandle, error) {
	return blockingHandle{}, nil
}

func (b *blockingBackend) Await(ctx context.Context, h solver.AttemptHandle, timeout time.Duration) (solver.Outcome, error) {
	select {
	case <-b.release:
		return solver.Outcome{Kind: solver.OutcomeFinished, RawOutput: []byte{0}}, nil
	case <-ctx.Done():
		return solver.Outcome{}, ctx.Err()
	}
}

func (b *blockingBackend) Cancel(h solver.AttemptHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelled++
	return nil
}

// memArchiver records archived sessions.
type memArchiver struct {
	mu       sync.Mutex
	sessions []*domain.RestartSession
}

func (a *memArchiver) Archive(ctx context.Context, s *domain.RestartSession) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions = append(a.sessions, s)
	return nil
}

func TestManager_LaunchAndWait(t *testing.T) {
	backend := &scriptedBackend{outcomes: finishedOutcomes(1)}
	parser := &scriptedParser{reports: []*domain.SolverReport{convergedReport()}}
	arch := &memArchiver{}
	m := NewManager(newTestOrchestrator(backend, parser), arch, 4)

	id, err := m.Launch(context.Background(), Input{Parameters: baseParams()}, 3)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	session, err := m.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if session.Terminal == nil || session.Terminal.Kind != domain.TerminalSucceeded {
		t.Fatalf("Terminal = %+v, want succeeded", session.Terminal)
	}

	status, err := m.Status(id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Running || status.Session == nil {
		t.Errorf("Status = %+v, want finished with session", status)
	}

	// Archival may lag Wait by a beat; the archive happens after done-map update.
	deadline := time.Now().Add(2 * time.Second)
	for {
		arch.mu.Lock()
		n := len(arch.sessions)
		arch.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("terminal session was not archived")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestManager_CancelLiveSession(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{})}
	m := NewManager(newTestOrchestrator(backend, &scriptedParser{}), nil, 4)

	id, err := m.Launch(context.Background(), Input{Parameters: baseParams()}, 3)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	status, err := m.Status(id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running {
		t.Fatal("session should still be running")
	}

	if err := m.Cancel(id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	session, err := m.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if session.Terminal == nil || session.Terminal.Kind != domain.TerminalFatal {
		t.Fatalf("Terminal = %+v, want fatal after cancellation", session.Terminal)
	}
	if session.Terminal.Reason != "session cancelled" {
		t.Errorf("Reason = %q", session.Terminal.Reason)
	}

	// Cancelling a finished session is an error.
	if err := m.Cancel(id); err == nil {
		t.Error("expected error cancelling a terminal session")
	}
}

func TestManager_UnknownSession(t *testing.T) {
	m := NewManager(newTestOrchestrator(&scriptedBackend{}, &scriptedParser{}), nil, 4)

	if _, err := m.Status("nope"); err == nil {
		t.Error("expected error for unknown session status")
	}
	if err := m.Cancel("nope"); err == nil {
		t.Error("expected error cancelling unknown session")
	}
}

func TestManager_ConcurrencyLimit(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{})}
	m := NewManager(newTestOrchestrator(backend, &scriptedParser{}), nil, 1)

	id, err := m.Launch(context.Background(), Input{Parameters: baseParams()}, 3)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if _, err := m.Launch(context.Background(), Input{Parameters: baseParams()}, 3); err == nil {
		t.Error("expected session limit error")
	}

	_ = m.Cancel(id)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := m.Wait(ctx, id); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestManager_RunBatch(t *testing.T) {
	backend := &scriptedBackend{outcomes: finishedOutcomes(3)}
	parser := &scriptedParser{reports: []*domain.SolverReport{
		convergedReport(), convergedReport(), convergedReport(),
	}}
	arch := &memArchiver{}
	m := NewManager(newTestOrchestrator(backend, parser), arch, 2)

	inputs := []Input{
		{Parameters: baseParams()},
		{Parameters: baseParams()},
		{Parameters: baseParams()},
	}
	sessions, err := m.RunBatch(context.Background(), inputs, 2)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("sessions = %d, want 3", len(sessions))
	}
	for i, s := range sessions {
		if s == nil || s.Terminal == nil || s.Terminal.Kind != domain.TerminalSucceeded {
			t.Errorf("session %d terminal = %+v, want succeeded", i, s.Terminal)
		}
	}
	if len(arch.sessions) != 3 {
		t.Errorf("archived = %d, want 3", len(arch.sessions))
	}
}
