package workflow

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/TheFermiSea/crystalmath/internal/domain"
)

// Archiver persists a terminal session. Persistence is the caller's concern;
// the orchestrator itself holds sessions only in memory.
type Archiver interface {
	Archive(ctx context.Context, session *domain.RestartSession) error
}

// SessionStatus is a race-free view of a tracked session. The full session
// object becomes readable once the run has finished.
type SessionStatus struct {
	SessionID string
	Running   bool
	Session   *domain.RestartSession
}

type liveRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager runs sessions as independent tasks, tracks the live ones, and
// archives completed ones. Sessions share no mutable state; the manager's
// lock guards only its own bookkeeping maps.
type Manager struct {
	Orchestrator  *Orchestrator
	Archiver      Archiver
	MaxConcurrent int

	mu   sync.RWMutex
	live map[string]*liveRun
	done map[string]*domain.RestartSession
}

// NewManager creates a manager. archiver may be nil to skip persistence.
func NewManager(o *Orchestrator, archiver Archiver, maxConcurrent int) *Manager {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Manager{
		Orchestrator:  o,
		Archiver:      archiver,
		MaxConcurrent: maxConcurrent,
		live:          make(map[string]*liveRun),
		done:          make(map[string]*domain.RestartSession),
	}
}

// Launch starts a session in the background and returns its ID immediately.
func (m *Manager) Launch(ctx context.Context, in Input, maxAttempts int) (string, error) {
	if maxAttempts < 1 {
		return "", domain.ErrMaxAttemptsInvalid
	}

	session := newSession(maxAttempts)

	m.mu.Lock()
	if len(m.live) >= m.MaxConcurrent {
		m.mu.Unlock()
		return "", domain.ErrSessionLimit
	}
	runCtx, cancel := context.WithCancel(ctx)
	lr := &liveRun{cancel: cancel, done: make(chan struct{})}
	m.live[session.SessionID] = lr
	m.mu.Unlock()

	go func() {
		defer close(lr.done)
		defer cancel()

		if err := m.Orchestrator.runSession(runCtx, session, in); err != nil {
			log.Printf("session %s aborted: %v", session.SessionID, err)
		}

		m.mu.Lock()
		delete(m.live, session.SessionID)
		m.done[session.SessionID] = session
		m.mu.Unlock()

		if m.Archiver != nil && session.Terminal != nil {
			if err := m.Archiver.Archive(context.Background(), session); err != nil {
				log.Printf("archive session %s: %v", session.SessionID, err)
			}
		}
	}()

	return session.SessionID, nil
}

// Cancel aborts a live session. The in-flight attempt is cancelled through
// the backend and the session ends Fatal with a cancellation reason.
func (m *Manager) Cancel(sessionID string) error {
	m.mu.RLock()
	lr, isLive := m.live[sessionID]
	_, isDone := m.done[sessionID]
	m.mu.RUnlock()

	if isLive {
		lr.cancel()
		return nil
	}
	if isDone {
		return domain.ErrSessionTerminal
	}
	return domain.ErrSessionNotFound
}

// Status reports whether a session is still running; for finished sessions it
// includes the full history.
func (m *Manager) Status(sessionID string) (SessionStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.live[sessionID]; ok {
		return SessionStatus{SessionID: sessionID, Running: true}, nil
	}
	if s, ok := m.done[sessionID]; ok {
		return SessionStatus{SessionID: sessionID, Session: s}, nil
	}
	return SessionStatus{}, domain.ErrSessionNotFound
}

// Wait blocks until the session finishes or ctx is cancelled.
func (m *Manager) Wait(ctx context.Context, sessionID string) (*domain.RestartSession, error) {
	m.mu.RLock()
	lr, isLive := m.live[sessionID]
	s, isDone := m.done[sessionID]
	m.mu.RUnlock()

	if isDone {
		return s, nil
	}
	if !isLive {
		return nil, domain.ErrSessionNotFound
	}

	select {
	case <-lr.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.done[sessionID], nil
}

// RunBatch converges independent inputs concurrently, at most MaxConcurrent
// at a time, and returns sessions in input order. The first structural error
// cancels the remaining runs.
func (m *Manager) RunBatch(ctx context.Context, inputs []Input, maxAttempts int) ([]*domain.RestartSession, error) {
	sessions := make([]*domain.RestartSession, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.MaxConcurrent)
	for i, in := range inputs {
		g.Go(func() error {
			session, err := m.Orchestrator.Run(gctx, in, maxAttempts)
			sessions[i] = session
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return sessions, err
	}

	if m.Archiver != nil {
		for _, s := range sessions {
			if s != nil && s.Terminal != nil {
				if err := m.Archiver.Archive(ctx, s); err != nil {
					log.Printf("archive session %s: %v", s.SessionID, err)
				}
			}
		}
	}
	return sessions, nil
}
