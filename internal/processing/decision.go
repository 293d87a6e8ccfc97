package processing

import "time"

// Outcome is the fate of a single advancement of a simulated job.
type Outcome int

const (
	// OutcomeRunning means the job is still in flight.
	OutcomeRunning Outcome = iota
	// OutcomeRetry means the job failed mid-flight with retry budget left.
	OutcomeRetry
	// OutcomeTerminal means the job failed mid-flight with no retries left.
	OutcomeTerminal
	// OutcomeDone means the job reached full progress.
	OutcomeDone
)

// Verdict is the result of evaluating one advancement.
type Verdict struct {
	Progress int
	Outcome  Outcome
}

// Progress derives the percent complete, capped to [0,100].
func Progress(elapsed, duration time.Duration) int {
	if duration <= 0 {
		return 100
	}
	p := int(float64(elapsed) / float64(duration) * 100)
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	return p
}

// inFailureWindow reports whether a doomed job fails at this progress.
// Failures land strictly between 30% and 70%.
func inFailureWindow(progress int) bool {
	return progress > 30 && progress < 70
}

// Evaluate is the pure decision core of the simulator: given how far a job
// has run, whether it was doomed at creation, and how many attempts have
// already failed, it decides what happens on this advancement. Keeping it
// free of clocks and randomness makes every transition reproducible.
func Evaluate(elapsed, duration time.Duration, willFail bool, retryCount, maxRetries int) Verdict {
	progress := Progress(elapsed, duration)

	if willFail && inFailureWindow(progress) {
		if retryCount+1 < maxRetries {
			return Verdict{Progress: progress, Outcome: OutcomeRetry}
		}
		return Verdict{Progress: progress, Outcome: OutcomeTerminal}
	}

	if progress >= 100 {
		return Verdict{Progress: progress, Outcome: OutcomeDone}
	}

	return Verdict{Progress: progress, Outcome: OutcomeRunning}
}
