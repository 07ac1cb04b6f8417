package pipeline

import (
	"context"
	"time"

	"github.com/tracklet-io/tracklet/internal/apperr"
	"github.com/tracklet-io/tracklet/internal/model"
)

// UpdateStatus advances the run's status. With an explicit status the
// value is written as-is; with nil the current status is fetched and
// incremented by one. Every call also logs milestoneMessage and records
// an elapsed-time outcome.
//
// The read-then-increment is not atomic; within one request's lifetime
// updates are sequential, which is the only usage this system has.
func (b *Builder) UpdateStatus(ctx context.Context, rc *RunContext, status *int, milestoneMessage string) error {
	const op = "pipeline.UpdateStatus"

	if !rc.UseDB || rc.IDRun == nil {
		return nil
	}

	next := status
	if next == nil {
		run, err := b.Runs.GetRun(ctx, *rc.IDRun)
		if err != nil {
			return err
		}
		if run.Status == nil {
			return apperr.Validationf(op, "run %d has no current status to increment", *rc.IDRun)
		}
		n := *run.Status + 1
		next = &n
	}

	if err := b.Runs.UpdateRunStatus(ctx, model.UpdateRunStatusRequest{
		IDRun:  *rc.IDRun,
		Status: next,
		IDUser: rc.IDUser,
	}); err != nil {
		return err
	}

	b.Log(ctx, rc, milestoneMessage)
	elapsed := time.Since(rc.Start).Milliseconds()
	return b.SaveOutcome(ctx, rc, model.Outcome{
		IDCategory: model.CategoryExecution,
		IDType:     model.TypeExecutionTime,
		VInteger:   &elapsed,
	})
}

// GetRun fetches the context's run row from the store.
func (b *Builder) GetRun(ctx context.Context, rc *RunContext) (model.Run, error) {
	const op = "pipeline.GetRun"

	if rc.IDRun == nil {
		return model.Run{}, apperr.Validation(op, "context has no run id")
	}
	return b.Runs.GetRun(ctx, *rc.IDRun)
}

// SaveOutcome appends an outcome row for the context's run. Skipped
// entirely when persistence is off.
func (b *Builder) SaveOutcome(ctx context.Context, rc *RunContext, outcome model.Outcome) error {
	if !rc.UseDB || rc.IDRun == nil {
		return nil
	}
	outcome.IDRun = *rc.IDRun
	return b.Runs.SaveOutcome(ctx, outcome)
}

// Log appends an info log line to the run. Logging is best-effort: when
// persistence is off or the store call fails, the line goes to the
// local logger and the caller's operation is never aborted.
func (b *Builder) Log(ctx context.Context, rc *RunContext, message string) {
	b.log(ctx, rc, message, false, false, false)
}

// LogDebug appends a debug-flagged log line.
func (b *Builder) LogDebug(ctx context.Context, rc *RunContext, message string) {
	b.log(ctx, rc, message, true, false, false)
}

// LogError appends an error-flagged log line.
func (b *Builder) LogError(ctx context.Context, rc *RunContext, message string) {
	b.log(ctx, rc, message, false, false, true)
}

func (b *Builder) log(ctx context.Context, rc *RunContext, message string, debug, warning, isErr bool) {
	// The store expects the caller to stamp a millisecond timestamp.
	stamped := time.Now().Format("15:04:05:000") + " " + message

	if rc == nil || !rc.UseDB || rc.IDRun == nil {
		b.Logger.InfoContext(ctx, message, "service", b.ServiceName)
		return
	}

	err := b.Runs.InsertLog(ctx, model.LogEntry{
		IDRun:   *rc.IDRun,
		Log:     stamped,
		Debug:   debug,
		Warning: warning,
		Error:   isErr,
	})
	if err != nil {
		b.Logger.WarnContext(ctx, "run log write failed, falling back to local log",
			"error", err, "id_run", *rc.IDRun, "message", message)
	}
}

// FailRun records the failing HTTP status on the run before an error
// response is sent. Best-effort: a failure to update status never
// changes the response.
func (b *Builder) FailRun(ctx context.Context, rc *RunContext, statusCode int) {
	if rc == nil || !rc.UseDB || rc.IDRun == nil {
		return
	}
	if err := b.Runs.UpdateRunStatus(ctx, model.UpdateRunStatusRequest{
		IDRun:  *rc.IDRun,
		Status: &statusCode,
	}); err != nil {
		b.Logger.WarnContext(ctx, "failed to record failing status on run",
			"error", err, "id_run", *rc.IDRun, "status", statusCode)
	}
}
