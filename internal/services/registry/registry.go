// -----------------------------------------------------------------------
// Run lifecycle registry - in-memory set of currently active runs
// -----------------------------------------------------------------------

package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
)

// ErrRunActive is returned by Register while any run holds the execution
// slot. The checkpoint ledger and staging storage are single-writer, so
// execution is serialized process-wide.
var ErrRunActive = errors.New("a run is already active")

// Stopper lets the registry cancel an active run's process without knowing
// about the orchestrator package
type Stopper interface {
	Stop() error
}

// ActiveRun is one registered in-flight run
type ActiveRun struct {
	RunID     string           `json:"run_id"`
	CaseID    string           `json:"case_id"`
	Origin    models.RunOrigin `json:"origin"`
	StartedAt time.Time        `json:"started_at"`
	Handle    Stopper          `json:"-"`
}

// Registry tracks active runs keyed by (caseID, origin). The composite key
// identifies runs for stop and status lookups, but Register enforces a
// stricter policy: at most one run may be active at a time, whatever its key,
// because the underlying checkpoint/staging storage is not designed for
// concurrent multi-writer access. Claiming the slot and checking for an
// active run happen under one lock so two callers cannot both pass.
//
// Always an explicitly owned instance injected into its consumers, with
// lifecycle tied to service start/stop, never an ambient singleton.
type Registry struct {
	mu     sync.RWMutex
	active map[string]*ActiveRun
	logger arbor.ILogger
}

// New creates a new run lifecycle registry
func New(logger arbor.ILogger) *Registry {
	return &Registry{
		active: make(map[string]*ActiveRun),
		logger: logger,
	}
}

func key(caseID string, origin models.RunOrigin) string {
	return caseID + "/" + string(origin)
}

// Register claims the execution slot for a run. Registration fails with
// ErrRunActive while any run is registered. Callers register before spawning
// the worker so the busy check and the claim are atomic; the run id and
// process handle follow via Bind once the process exists.
func (r *Registry) Register(run *ActiveRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.active {
		return fmt.Errorf("%w: case %s (%s)", ErrRunActive, existing.CaseID, existing.Origin)
	}

	r.active[key(run.CaseID, run.Origin)] = run

	r.logger.Info().
		Str("case_id", run.CaseID).
		Str("origin", string(run.Origin)).
		Msg("Run registered")

	return nil
}

// Bind attaches the run identity and process handle to a registered run.
// A no-op if the (caseID, origin) pair is no longer registered.
func (r *Registry) Bind(caseID string, origin models.RunOrigin, runID string, handle Stopper) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run, exists := r.active[key(caseID, origin)]; exists {
		run.RunID = runID
		run.Handle = handle
	}
}

// Unregister removes a run by (caseID, origin). Removing an absent pair is a
// no-op so completion and cancellation paths can both finalize safely.
func (r *Registry) Unregister(caseID string, origin models.RunOrigin) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(caseID, origin)
	if run, exists := r.active[k]; exists {
		delete(r.active, k)
		r.logger.Info().
			Str("run_id", run.RunID).
			Str("case_id", caseID).
			Str("origin", string(origin)).
			Msg("Run unregistered")
	}
}

// Find returns the active run for (caseID, origin), or nil
func (r *Registry) Find(caseID string, origin models.RunOrigin) *ActiveRun {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active[key(caseID, origin)]
}

// FindByCase returns the active run for a case regardless of origin, or nil
func (r *Registry) FindByCase(caseID string) *ActiveRun {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, origin := range []models.RunOrigin{models.OriginManual, models.OriginScheduled} {
		if run, exists := r.active[key(caseID, origin)]; exists {
			return run
		}
	}
	return nil
}

// List returns all active runs ordered by start time
func (r *Registry) List() []ActiveRun {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]ActiveRun, 0, len(r.active))
	for _, run := range r.active {
		runs = append(runs, *run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})
	return runs
}

// IsBusy reports whether any run is active. All pipeline execution is
// serialized process-wide on this check.
func (r *Registry) IsBusy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active) > 0
}
