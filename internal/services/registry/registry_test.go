package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
)

func TestRegisterSerializesGlobally(t *testing.T) {
	r := New(arbor.NewLogger())

	manual := &ActiveRun{RunID: "run-1", CaseID: "sync-only", Origin: models.OriginManual, StartedAt: time.Now()}
	scheduled := &ActiveRun{RunID: "run-2", CaseID: "full-pipeline", Origin: models.OriginScheduled, StartedAt: time.Now()}

	if err := r.Register(manual); err != nil {
		t.Fatalf("Failed to register manual run: %v", err)
	}

	// a different (case, origin) key must still be refused while any run holds
	// the slot
	err := r.Register(scheduled)
	if !errors.Is(err, ErrRunActive) {
		t.Fatalf("Expected ErrRunActive for second run, got %v", err)
	}
	if len(r.List()) != 1 {
		t.Fatalf("Expected 1 active run, got %d", len(r.List()))
	}

	r.Unregister("sync-only", models.OriginManual)
	if err := r.Register(scheduled); err != nil {
		t.Fatalf("Expected registration after slot release, got %v", err)
	}
}

func TestConcurrentRegisterAdmitsOne(t *testing.T) {
	r := New(arbor.NewLogger())

	const attempts = 16
	start := make(chan struct{})
	errs := make(chan error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		run := &ActiveRun{CaseID: "sync-only", Origin: models.RunOrigin(fmt.Sprintf("origin-%d", i)), StartedAt: time.Now()}
		go func() {
			defer wg.Done()
			<-start
			errs <- r.Register(run)
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	admitted := 0
	for err := range errs {
		if err == nil {
			admitted++
		}
	}
	if admitted != 1 {
		t.Errorf("Expected exactly 1 admitted registration, got %d", admitted)
	}
	if len(r.List()) != 1 {
		t.Errorf("Expected 1 active run, got %d", len(r.List()))
	}
}

func TestBindAttachesIdentityAndHandle(t *testing.T) {
	r := New(arbor.NewLogger())

	run := &ActiveRun{CaseID: "sync-only", Origin: models.OriginManual, StartedAt: time.Now()}
	if err := r.Register(run); err != nil {
		t.Fatal(err)
	}

	stopper := &recordingStopper{}
	r.Bind("sync-only", models.OriginManual, "run-1", stopper)

	found := r.Find("sync-only", models.OriginManual)
	if found == nil || found.RunID != "run-1" || found.Handle == nil {
		t.Fatalf("Bind did not attach identity and handle: %+v", found)
	}

	// binding an unregistered pair is a no-op
	r.Bind("full-pipeline", models.OriginManual, "run-2", stopper)
	if r.Find("full-pipeline", models.OriginManual) != nil {
		t.Error("Bind must not create entries")
	}
}

type recordingStopper struct{ calls int }

func (s *recordingStopper) Stop() error {
	s.calls++
	return nil
}

func TestIsBusyGlobal(t *testing.T) {
	r := New(arbor.NewLogger())

	if r.IsBusy() {
		t.Error("Empty registry must not be busy")
	}

	run := &ActiveRun{RunID: "run-1", CaseID: "extract-only", Origin: models.OriginScheduled, StartedAt: time.Now()}
	if err := r.Register(run); err != nil {
		t.Fatal(err)
	}

	// Any active run blocks every other trigger
	if !r.IsBusy() {
		t.Error("Registry with an active run must be busy")
	}

	r.Unregister("extract-only", models.OriginScheduled)
	if r.IsBusy() {
		t.Error("Registry must be idle after unregister")
	}

	// Unregister of an absent pair is a no-op
	r.Unregister("extract-only", models.OriginScheduled)
}

func TestFind(t *testing.T) {
	r := New(arbor.NewLogger())

	run := &ActiveRun{RunID: "run-1", CaseID: "full-pipeline", Origin: models.OriginManual, StartedAt: time.Now()}
	if err := r.Register(run); err != nil {
		t.Fatal(err)
	}

	if found := r.Find("full-pipeline", models.OriginManual); found == nil || found.RunID != "run-1" {
		t.Errorf("Find returned %+v, expected run-1", found)
	}
	if found := r.Find("full-pipeline", models.OriginScheduled); found != nil {
		t.Error("Find must not match a different origin")
	}
	if found := r.FindByCase("full-pipeline"); found == nil || found.RunID != "run-1" {
		t.Error("FindByCase must match regardless of origin")
	}
}
