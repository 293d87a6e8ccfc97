package processing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"photoflow/internal/models"
)

func TestRunTickStartsAndAdvancesPending(t *testing.T) {
	queued := queuedPhoto("p1")
	inflight := queuedPhoto("p2")
	inflight.Status = models.PhotoStatusProcessing
	inflight.UploadedAt = inflight.UploadedAt.Add(time.Minute)
	settled := queuedPhoto("p3")
	settled.Status = models.PhotoStatusDone

	store := newMemStore(queued, inflight, settled)
	sim, _ := testSimulator(store)
	driver := NewDriver(sim, store, zerolog.Nop())

	if err := driver.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick: %v", err)
	}

	for _, id := range []string{"p1", "p2"} {
		if _, ok := sim.jobs[id]; !ok {
			t.Errorf("no job for %s after tick", id)
		}
		if got := store.get(id).Status; got != models.PhotoStatusProcessing {
			t.Errorf("%s status = %s, want processing", id, got)
		}
	}
	if _, ok := sim.jobs["p3"]; ok {
		t.Error("tick touched a done photo")
	}

	snapshot, err := driver.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snapshot) != 2 {
		t.Errorf("snapshot size = %d, want 2", len(snapshot))
	}
}

func TestRunTickAbortsOnStoreFailure(t *testing.T) {
	store := newMemStore(queuedPhoto("p1"))
	store.failUpd = errors.New("connection reset")
	sim, _ := testSimulator(store)
	driver := NewDriver(sim, store, zerolog.Nop())

	if err := driver.RunTick(context.Background()); err == nil {
		t.Error("RunTick swallowed store failure")
	}
}
