package processing

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"photoflow/internal/models"
)

const testDuration = 10 * time.Second

func testSimulator(store PhotoStore) (*Simulator, *time.Time) {
	sim := NewSimulator(store, Config{
		MinDuration: testDuration,
		MaxDuration: testDuration,
		FailureRate: 0,
		MaxRetries:  3,
	}, zerolog.Nop())

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sim.now = func() time.Time { return now }
	sim.rng = rand.New(rand.NewSource(1))
	return sim, &now
}

func queuedPhoto(id string) models.Photo {
	return models.Photo{
		ID:         id,
		Name:       id + ".jpg",
		Status:     models.PhotoStatusQueued,
		UploadedAt: time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC),
	}
}

func logMessages(entries []models.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func TestStartIdempotent(t *testing.T) {
	store := newMemStore(queuedPhoto("p1"))
	sim, _ := testSimulator(store)
	ctx := context.Background()

	if err := sim.Start(ctx, "p1"); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := sim.Start(ctx, "p1"); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	if len(sim.jobs) != 1 {
		t.Fatalf("job count = %d, want 1", len(sim.jobs))
	}

	photo := store.get("p1")
	if photo.Status != models.PhotoStatusProcessing {
		t.Errorf("status = %s, want processing", photo.Status)
	}
	if photo.Progress != 0 {
		t.Errorf("progress = %d, want 0", photo.Progress)
	}
	if got := logMessages(photo.Logs); len(got) != 1 || got[0] != "Processing started" {
		t.Errorf("logs = %v, want exactly one start line", got)
	}
}

func TestAdvanceToCompletion(t *testing.T) {
	store := newMemStore(queuedPhoto("p1"))
	sim, now := testSimulator(store)
	ctx := context.Background()

	if err := sim.Start(ctx, "p1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	*now = now.Add(testDuration)
	continuing, err := sim.Advance(ctx, "p1")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if continuing {
		t.Error("continuing = true, want false after completion")
	}

	photo := store.get("p1")
	if photo.Status != models.PhotoStatusDone {
		t.Errorf("status = %s, want done", photo.Status)
	}
	if photo.Progress != 100 {
		t.Errorf("progress = %d, want 100", photo.Progress)
	}
	if photo.ProcessedAt == nil || !photo.ProcessedAt.Equal(*now) {
		t.Errorf("processed_at = %v, want %v", photo.ProcessedAt, *now)
	}
	msgs := logMessages(photo.Logs)
	if msgs[len(msgs)-1] != "Processing completed successfully" {
		t.Errorf("last log = %q, want completion line", msgs[len(msgs)-1])
	}
	if _, ok := sim.jobs["p1"]; ok {
		t.Error("job still live after completion")
	}
}

func TestMilestonesEmittedOncePerBand(t *testing.T) {
	store := newMemStore(queuedPhoto("p1"))
	sim, now := testSimulator(store)
	ctx := context.Background()

	if err := sim.Start(ctx, "p1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	lastProgress := 0
	advance := func(elapsed time.Duration) models.Photo {
		t.Helper()
		*now = sim.jobs["p1"].startedAt.Add(elapsed)
		if _, err := sim.Advance(ctx, "p1"); err != nil {
			t.Fatalf("Advance at %v: %v", elapsed, err)
		}
		photo := store.get("p1")
		if photo.Progress < lastProgress {
			t.Errorf("progress dropped from %d to %d", lastProgress, photo.Progress)
		}
		lastProgress = photo.Progress
		return photo
	}

	steps := []struct {
		elapsed time.Duration
		want    string
	}{
		{1 * time.Second, "Analyzing image metadata"},
		{3 * time.Second, "Extracting features"},
		{5 * time.Second, "Applying enhancements"},
		{7500 * time.Millisecond, "Optimizing image"},
		{9 * time.Second, "Finalizing output"},
	}

	for i, step := range steps {
		photo := advance(step.elapsed)
		msgs := logMessages(photo.Logs)
		// "Processing started" plus one milestone per band so far.
		if len(msgs) != i+2 {
			t.Fatalf("after step %d: logs = %v, want %d entries", i, msgs, i+2)
		}
		if msgs[len(msgs)-1] != step.want {
			t.Errorf("after step %d: last log = %q, want %q", i, msgs[len(msgs)-1], step.want)
		}

		// Re-advancing inside the same band must not duplicate the line.
		photo = advance(step.elapsed)
		if got := logMessages(photo.Logs); len(got) != i+2 {
			t.Errorf("after repeat of step %d: logs grew to %v", i, got)
		}
	}
}

func TestMilestoneBandsSkippedOnJumpAreNotBackfilled(t *testing.T) {
	store := newMemStore(queuedPhoto("p1"))
	sim, now := testSimulator(store)
	ctx := context.Background()

	if err := sim.Start(ctx, "p1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	*now = now.Add(1 * time.Second) // 10%
	if _, err := sim.Advance(ctx, "p1"); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	*now = sim.jobs["p1"].startedAt.Add(9 * time.Second) // jump to 90%
	if _, err := sim.Advance(ctx, "p1"); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	msgs := logMessages(store.get("p1").Logs)
	want := []string{"Processing started", "Analyzing image metadata"}
	if len(msgs) != len(want) {
		t.Fatalf("logs = %v, want %v", msgs, want)
	}
}

func TestFailureRequeuesWithRetryBudget(t *testing.T) {
	store := newMemStore(queuedPhoto("p1"))
	sim, now := testSimulator(store)
	ctx := context.Background()

	if err := sim.Start(ctx, "p1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sim.jobs["p1"].willFail = true

	*now = now.Add(5 * time.Second) // 50%, inside the failure window
	continuing, err := sim.Advance(ctx, "p1")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if !continuing {
		t.Error("continuing = false, want true on re-queue")
	}

	photo := store.get("p1")
	if photo.Status != models.PhotoStatusProcessing {
		t.Errorf("status = %s, want processing (fresh job started)", photo.Status)
	}
	if photo.Progress != 0 {
		t.Errorf("progress = %d, want 0 after re-queue", photo.Progress)
	}
	if photo.RetryCount != 1 {
		t.Errorf("retry_count = %d, want 1", photo.RetryCount)
	}
	if photo.Error != nil {
		t.Errorf("error = %v, want nil after re-queue", *photo.Error)
	}

	j, ok := sim.jobs["p1"]
	if !ok {
		t.Fatal("no fresh job after re-queue")
	}
	if j.willFail {
		t.Error("fresh job doomed despite zero failure rate")
	}
	if !j.startedAt.Equal(*now) {
		t.Errorf("fresh job startedAt = %v, want %v", j.startedAt, *now)
	}
}

func TestFailureTerminalAfterRetriesExhausted(t *testing.T) {
	photo := queuedPhoto("p1")
	photo.RetryCount = 2
	store := newMemStore(photo)
	sim, now := testSimulator(store)
	ctx := context.Background()

	if err := sim.Start(ctx, "p1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sim.jobs["p1"].willFail = true

	*now = now.Add(5 * time.Second)
	continuing, err := sim.Advance(ctx, "p1")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if continuing {
		t.Error("continuing = true, want false on terminal failure")
	}

	got := store.get("p1")
	if got.Status != models.PhotoStatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.Error == nil {
		t.Fatal("error not set on terminal failure")
	}
	if got.RetryCount != 3 {
		t.Errorf("retry_count = %d, want 3", got.RetryCount)
	}
	if got.Progress != 50 {
		t.Errorf("progress = %d, want 50 (value at failure)", got.Progress)
	}
	msgs := logMessages(got.Logs)
	if !strings.Contains(msgs[len(msgs)-1], "Attempt 3/3") {
		t.Errorf("last log = %q, want attempt 3/3 line", msgs[len(msgs)-1])
	}
	if _, ok := sim.jobs["p1"]; ok {
		t.Error("job still live after terminal failure")
	}
}

func TestAdvanceRehydratesLostJob(t *testing.T) {
	photo := queuedPhoto("p1")
	photo.Status = models.PhotoStatusProcessing
	photo.Progress = 42
	store := newMemStore(photo)
	sim, _ := testSimulator(store)

	continuing, err := sim.Advance(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if !continuing {
		t.Error("continuing = false, want true after rehydration")
	}
	if _, ok := sim.jobs["p1"]; !ok {
		t.Fatal("no job created by rehydration")
	}

	got := store.get("p1")
	if got.Status != models.PhotoStatusProcessing {
		t.Errorf("status = %s, want processing", got.Status)
	}
	if got.Progress != 0 {
		t.Errorf("progress = %d, want simulated reset to 0", got.Progress)
	}
	if msgs := logMessages(got.Logs); len(msgs) != 1 || msgs[0] != "Processing started" {
		t.Errorf("logs = %v, want fresh start line only", msgs)
	}
}

func TestAdvanceIgnoresSettledPhotos(t *testing.T) {
	done := queuedPhoto("p1")
	done.Status = models.PhotoStatusDone
	store := newMemStore(done)
	sim, _ := testSimulator(store)
	ctx := context.Background()

	continuing, err := sim.Advance(ctx, "p1")
	if err != nil {
		t.Fatalf("Advance done photo: %v", err)
	}
	if continuing {
		t.Error("continuing = true for done photo")
	}

	continuing, err = sim.Advance(ctx, "missing")
	if err != nil {
		t.Fatalf("Advance missing photo: %v", err)
	}
	if continuing {
		t.Error("continuing = true for missing photo")
	}
}

func TestStoreFailurePropagates(t *testing.T) {
	store := newMemStore(queuedPhoto("p1"))
	store.failUpd = errors.New("connection reset")
	sim, _ := testSimulator(store)

	if err := sim.Start(context.Background(), "p1"); err == nil {
		t.Error("Start swallowed store failure")
	}
}
