package processing

import (
	"time"

	"photoflow/internal/models"
)

// milestones are the synthetic pipeline stages surfaced in the photo log.
// Each fires at most once per job, in order, while progress is below the bound.
var milestones = []struct {
	below   int
	message string
}{
	{20, "Analyzing image metadata"},
	{40, "Extracting features"},
	{60, "Applying enhancements"},
	{80, "Optimizing image"},
	{95, "Finalizing output"},
}

// job is the transient state of one photo's simulated processing run. It
// lives only in the owning Simulator's map and is discarded on completion,
// terminal failure, or re-queue.
type job struct {
	startedAt time.Time
	duration  time.Duration
	willFail  bool
	logs      []models.LogEntry
	// stagesEmitted counts milestone lines already written, so a stage is
	// never logged twice even when ticks race or progress skips a band.
	stagesEmitted int
}

func (j *job) appendLog(at time.Time, message string) {
	j.logs = append(j.logs, models.LogEntry{Timestamp: at, Message: message})
}

// snapshotLogs returns a copy safe to hand to the store after the
// simulator's lock is released.
func (j *job) snapshotLogs() []models.LogEntry {
	out := make([]models.LogEntry, len(j.logs))
	copy(out, j.logs)
	return out
}

// emitMilestone appends at most one milestone line for the band containing
// progress. Bands skipped by a large jump are not backfilled.
func (j *job) emitMilestone(at time.Time, progress int) {
	for i, stage := range milestones {
		if progress < stage.below {
			if j.stagesEmitted == i {
				j.appendLog(at, stage.message)
				j.stagesEmitted++
			}
			return
		}
	}
}
