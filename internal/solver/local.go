package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/TheFermiSea/crystalmath/internal/domain"
)

// LocalBackend runs the solver as a subprocess. Each submission gets its own
// scratch directory with the parameter snapshot written as params.json; the
// restart handle, when present, is exported via CRYSTALMATH_RESTART.
type LocalBackend struct {
	Command string
	Args    []string
	WorkDir string

	mu  sync.Mutex
	seq int
}

// NewLocalBackend creates a backend that launches command under workDir.
func NewLocalBackend(command string, args []string, workDir string) *LocalBackend {
	return &LocalBackend{Command: command, Args: args, WorkDir: workDir}
}

type localHandle struct {
	id       string
	cmd      *exec.Cmd
	output   *bytes.Buffer
	done     chan struct{}
	doneOnce sync.Once
	waitErr  error
}

func (h *localHandle) ID() string { return h.id }

func (h *localHandle) markDone() {
	h.doneOnce.Do(func() { close(h.done) })
}

// Submit writes the snapshot to disk and starts the solver process.
func (b *LocalBackend) Submit(ctx context.Context, snapshot map[string]any, restartHandle string) (AttemptHandle, error) {
	b.mu.Lock()
	b.seq++
	id := fmt.Sprintf("local-%d-%d", time.Now().UnixNano(), b.seq)
	b.mu.Unlock()

	runDir, err := os.MkdirTemp(b.WorkDir, "attempt-")
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrSubmitFailed.Code, "create run directory", err)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrSubmitFailed.Code, "encode parameters", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "params.json"), data, 0o644); err != nil {
		return nil, domain.WrapEngineError(domain.ErrSubmitFailed.Code, "write parameters", err)
	}

	cmd := exec.Command(b.Command, b.Args...)
	cmd.Dir = runDir
	cmd.Env = append(os.Environ(), "CRYSTALMATH_RESTART="+restartHandle)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Start(); err != nil {
		return nil, domain.WrapEngineError(domain.ErrSubmitFailed.Code, "start solver", err)
	}

	h := &localHandle{id: id, cmd: cmd, output: &buf, done: make(chan struct{})}
	go func() {
		h.waitErr = cmd.Wait()
		h.markDone()
	}()
	return h, nil
}

// Await blocks until the process exits, the per-attempt timeout elapses, or
// ctx is cancelled. On timeout the process is killed and TimedOut returned;
// ctx cancellation is reported to the caller, who decides whether to Cancel.
func (b *LocalBackend) Await(ctx context.Context, handle AttemptHandle, timeout time.Duration) (Outcome, error) {
	h, ok := handle.(*localHandle)
	if !ok {
		return Outcome{}, domain.ErrHandleUnknown
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
		out := append([]byte(nil), h.output.Bytes()...)
		if h.waitErr != nil {
			return Outcome{Kind: OutcomeFailed, RawOutput: out, ExitCode: h.cmd.ProcessState.ExitCode()}, nil
		}
		return Outcome{Kind: OutcomeFinished, RawOutput: out}, nil
	case <-timer.C:
		_ = b.Cancel(h)
		<-h.done
		return Outcome{Kind: OutcomeTimedOut, RawOutput: append([]byte(nil), h.output.Bytes()...)}, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Cancel kills the solver process. Wait is reclaimed by the Submit goroutine.
func (b *LocalBackend) Cancel(handle AttemptHandle) error {
	h, ok := handle.(*localHandle)
	if !ok {
		return domain.ErrHandleUnknown
	}
	if h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Kill()
}
