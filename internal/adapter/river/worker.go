package river

import (
	"context"
	"errors"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/fleetpulse/internal/app"
)

// TransitionWorker processes recorded stage changes from the River queue.
// For now it logs the transition; future versions will dispatch to
// webhooks or external CRM systems.
type TransitionWorker struct {
	river.WorkerDefaults[TransitionJobArgs]
}

// Work processes a single transition job.
func (w *TransitionWorker) Work(ctx context.Context, job *river.Job[TransitionJobArgs]) error {
	slog.InfoContext(ctx, "processing transition",
		"tenant_id", job.Args.TenantID,
		"from", job.Args.FromStage,
		"to", job.Args.ToStage,
		"trigger", job.Args.TriggerType,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}

// Runner executes one batch run. Satisfied by *app.Job and its
// instrumentation decorators.
type Runner interface {
	Run(ctx context.Context) (app.RunSummary, error)
}

// RunWorker executes the scheduled batch runs enqueued by the periodic
// job. The runner is injected after client construction (SetRunner)
// because the batch job itself publishes through the same client.
type RunWorker struct {
	river.WorkerDefaults[RunJobArgs]

	runner Runner
}

// SetRunner injects the batch runner. Must be called before the client
// starts working jobs.
func (w *RunWorker) SetRunner(r Runner) {
	w.runner = r
}

// Work executes one scheduled batch run.
func (w *RunWorker) Work(ctx context.Context, job *river.Job[RunJobArgs]) error {
	if w.runner == nil {
		return errors.New("run worker has no runner configured")
	}

	sum, err := w.runner.Run(ctx)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "scheduled run complete",
		"job_id", job.ID,
		"checked", sum.Checked,
		"transitioned", sum.Transitioned,
		"notified", sum.Notified,
		"errors", len(sum.Errors),
	)
	return nil
}
