package pipeline

import (
	"context"
	"errors"
)

// BatchResult pairs a job with its outcome.
type BatchResult struct {
	Job     Job
	Outcome Outcome
	Err     error
}

// Failed counts results that ended with an error.
func Failed(results []BatchResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// RunBatch executes jobs one after another. A failing job does not stop the
// batch; cancellation does, and every job not yet started is reported with
// the context error.
func (r *Runner) RunBatch(ctx context.Context, jobs []Job) []BatchResult {
	results := make([]BatchResult, 0, len(jobs))
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			for _, rest := range jobs[i:] {
				results = append(results, BatchResult{Job: rest, Err: err})
			}
			break
		}
		r.log.Info("batch job started", "job", i+1, "of", len(jobs), "locator", job.Locator)
		out, err := r.Run(ctx, job)
		if err != nil && !errors.Is(err, context.Canceled) {
			r.log.Error("batch job failed", "job", i+1, "error", err)
		}
		results = append(results, BatchResult{Job: job, Outcome: out, Err: err})
	}
	return results
}
