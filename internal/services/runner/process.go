// -----------------------------------------------------------------------
// Process handle - one launched pipeline worker and its lifecycle
// -----------------------------------------------------------------------

package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
	"github.com/gairiksingha-pixel/intelliextract-runner/internal/progress"
)

// Handle wraps one running worker process. Stop requests a graceful
// termination (SIGTERM); the worker is expected to checkpoint and exit.
type Handle struct {
	runID    string
	caseID   string
	cmd      *exec.Cmd
	decoder  *progress.Decoder
	stdout   bytes.Buffer
	stderr   bytes.Buffer
	done     chan struct{}
	result   *models.RunResult
	stopOnce sync.Once
	stopped  atomic.Bool // written by Stop, read by the wait goroutine
	logger   arbor.ILogger
}

// Stop signals the worker to terminate. Safe to call more than once and
// after the process has already exited: racing a natural exit is expected
// and tolerated.
func (h *Handle) Stop() error {
	var err error
	h.stopOnce.Do(func() {
		h.stopped.Store(true)
		if h.cmd.Process != nil {
			err = h.cmd.Process.Signal(syscall.SIGTERM)
		}
		h.logger.Info().
			Str("run_id", h.runID).
			Str("case_id", h.caseID).
			Msg("Stop signal sent to worker process")
	})
	if err != nil && (errors.Is(err, syscall.ESRCH) || errors.Is(err, os.ErrProcessDone)) {
		return nil
	}
	return err
}

// Done returns a channel closed once the process has exited and its result
// is available
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the terminal outcome. Only valid after Done is closed.
func (h *Handle) Result() *models.RunResult {
	return h.result
}

// launch starts the worker binary with the assembled argv. Stdout is teed
// through the progress decoder so counter lines become events while the full
// transcript is still captured for the result.
func launch(ctx context.Context, runID, caseID, workerBin string, args []string, emit progress.EmitFunc, logger arbor.ILogger) (*Handle, error) {
	h := &Handle{
		runID:   runID,
		caseID:  caseID,
		done:    make(chan struct{}),
		decoder: progress.NewDecoder(emit),
		logger:  logger,
	}

	// deliberately not CommandContext: cancellation sends SIGTERM below so
	// the worker can checkpoint, instead of the default SIGKILL
	cmd := exec.Command(workerBin, args...)
	cmd.Stdout = io.MultiWriter(&h.stdout, h.decoder)
	cmd.Stderr = &h.stderr
	h.cmd = cmd

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker %s: %w", workerBin, err)
	}

	logger.Info().
		Str("run_id", runID).
		Str("case_id", caseID).
		Str("command", commandLine(workerBin, args)).
		Int("pid", cmd.Process.Pid).
		Msg("Worker process started")

	ctxDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			h.Stop()
		case <-ctxDone:
		}
	}()

	go func() {
		defer close(h.done)
		waitErr := cmd.Wait()
		close(ctxDone)
		h.decoder.Flush()

		exitCode := 0
		signalled := false
		if waitErr != nil {
			var exitErr *exec.ExitError
			if errors.As(waitErr, &exitErr) {
				exitCode = exitErr.ExitCode()
				// -1 means the process was terminated by a signal
				signalled = exitCode == -1
			} else {
				exitCode = -1
			}
		}

		h.result = &models.RunResult{
			RunID:       runID,
			CaseID:      caseID,
			ExitCode:    exitCode,
			Stdout:      h.stdout.String(),
			Stderr:      h.stderr.String(),
			Command:     commandLine(workerBin, args),
			Interrupted: h.stopped.Load() || signalled || ctx.Err() != nil,
		}

		logger.Info().
			Str("run_id", runID).
			Str("case_id", caseID).
			Int("exit_code", exitCode).
			Bool("interrupted", h.result.Interrupted).
			Msg("Worker process exited")
	}()

	return h, nil
}

func commandLine(bin string, args []string) string {
	return bin + " " + strings.Join(args, " ")
}
