package logx

import (
	"context"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/vibaverify/schema"
)

type contextKey int

const (
	runKey contextKey = iota
)

// WithRun annotates the context logger with the run id and stores both on the context.
func WithRun(ctx context.Context, runID schema.RunID) (context.Context, pslog.Logger) {
	log := pslog.Ctx(ctx)
	if runID == "" {
		return ctx, log
	}
	if current, ok := ctx.Value(runKey).(schema.RunID); ok && current == runID {
		return ctx, log
	}
	log = log.With("run", runID)
	ctx = pslog.ContextWithLogger(ctx, log)
	return context.WithValue(ctx, runKey, runID), log
}

// RunID returns the run id stored on ctx, if any.
func RunID(ctx context.Context) schema.RunID {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runKey).(schema.RunID)
	return id
}

// WithStep annotates the logger with a flow step name.
func WithStep(log pslog.Logger, step string) pslog.Logger {
	if step != "" {
		log = log.With("step", step)
	}
	return log
}

// WithRepo annotates the logger with repo metadata when available.
func WithRepo(log pslog.Logger, repo schema.RepoRef) pslog.Logger {
	if repo.Name != "" {
		log = log.With("repo", repo.Name)
	}
	return log
}

// StepDone logs the completion of a step with its duration.
func StepDone(log pslog.Logger, step string, start time.Time, err error) {
	log = WithStep(log, step).With("duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		log.Warn("step failed", "err", err)
		return
	}
	log.Info("step ok")
}

// Leveled adapts a pslog logger to the Error/Info/Debug/Warn(msg, kv...)
// shape used by HTTP client libraries.
type Leveled struct {
	Log pslog.Logger
}

func (l Leveled) Error(msg string, kv ...any) { l.Log.Error(msg, kv...) }
func (l Leveled) Info(msg string, kv ...any) { l.Log.Info(msg, kv...) }
func (l Leveled) Debug(msg string, kv ...any) { l.Log.Debug(msg, kv...) }
func (l Leveled) Warn(msg string, kv ...any) { l.Log.Warn(msg, kv...) }
