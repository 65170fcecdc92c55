// Package verify runs one end-to-end session-creation check against the app.
package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pkt.systems/pslog"
	"pkt.systems/vibaverify/internal/appconfig"
	"pkt.systems/vibaverify/internal/artifact"
	"pkt.systems/vibaverify/internal/browser"
	"pkt.systems/vibaverify/internal/evidence"
	"pkt.systems/vibaverify/internal/flow"
	"pkt.systems/vibaverify/internal/logx"
	"pkt.systems/vibaverify/schema"
)

// Phases outside the interaction sequence.
const (
	StepRequest    = "request"
	StepBaseline   = "baseline"
	StepLaunch     = "launch"
	StepTransition = "await-session-view"
	StepSettle     = "settle"
	StepScreenshot = "screenshot"
	StepArtifact   = "verify-artifact"
)

// Run executes the full check and returns its outcome. It never panics on
// app misbehaviour; every failure is classified into the outcome.
func Run(ctx context.Context, cfg appconfig.Config) schema.Outcome {
	start := time.Now()
	runID := schema.RunID(uuid.NewString())
	ctx, logger := logx.WithRun(ctx, runID)

	out := schema.Outcome{RunID: logx.RunID(ctx)}
	err := run(ctx, cfg, &out)
	out.Duration = time.Since(start)
	if err != nil {
		out.Passed = false
		out.Kind = schema.KindOf(err)
		out.Step = schema.StepOf(err)
		out.Message = err.Error()
		logger.Error("verification failed", "kind", out.Kind, "step", out.Step, "err", err, "duration", out.Duration)
		return out
	}
	out.Passed = true
	logger.Info("verification passed", "url", out.URL, "screenshot", out.Screenshot, "artifacts", out.Artifacts, "duration", out.Duration)
	return out
}

func run(ctx context.Context, cfg appconfig.Config, out *schema.Outcome) error {
	logger := pslog.Ctx(ctx)

	req, err := schema.NormalizeSessionRequest(cfg.App.Repo, cfg.App.Title)
	if err != nil {
		return &schema.StepError{Step: StepRequest, Err: err}
	}
	logger = logx.WithRepo(logger, req.Repo)
	ctx = pslog.ContextWithLogger(ctx, logger)

	before, err := artifact.Take(cfg.Sessions.Dir)
	if err != nil {
		return &schema.StepError{Step: StepBaseline, Err: fmt.Errorf("%w: %v", schema.ErrArtifactMissing, err)}
	}
	logger.Debug("session baseline", "dir", before.Dir, "exists", before.Exists, "count", len(before.Names))

	sess, err := browser.Launch(ctx, browser.Options{
		Headless:      cfg.Browser.Headless,
		NoSandbox:     cfg.Browser.NoSandbox,
		ExecPath:      cfg.Browser.ExecPath,
		WindowWidth:   cfg.Browser.WindowWidth,
		WindowHeight:  cfg.Browser.WindowHeight,
		UserAgent:     cfg.Browser.UserAgent,
		LaunchTimeout: cfg.Timeouts.Launch,
	})
	if err != nil {
		return &schema.StepError{Step: StepLaunch, Err: err}
	}
	defer sess.Close()
	console := sess.ListenConsole()

	capturer := evidence.Capturer{
		Dir:         cfg.Evidence.Dir,
		SuccessName: cfg.Evidence.SuccessName,
		FailureName: cfg.Evidence.FailureName,
		HTML:        cfg.Evidence.FailureHTML,
	}

	err = drive(sess.Context(), cfg, req, before, capturer, out)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return err
		}
		arts, cerr := capturer.Failure(sess.Context())
		if cerr != nil {
			logger.Warn("failure evidence incomplete", "err", cerr)
		}
		out.Screenshot = arts.Screenshot
		out.HTML = arts.HTML
		logConsole(logger, console)
	}
	return err
}

// drive runs everything that needs the tab, bounded by the run timeout.
func drive(tab context.Context, cfg appconfig.Config, req schema.SessionRequest, before artifact.Snapshot, capturer evidence.Capturer, out *schema.Outcome) (err error) {
	ctx := tab
	if cfg.Timeouts.Run > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(tab, cfg.Timeouts.Run)
		defer cancel()
		defer func() {
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && tab.Err() == nil {
				err = fmt.Errorf("run timeout %s exceeded: %w", cfg.Timeouts.Run, err)
			}
		}()
	}
	logger := pslog.Ctx(ctx)

	seq := flow.Sequencer{
		URL:     cfg.App.URL,
		Request: req,
		Labels: flow.Labels{
			TitlePlaceholder: cfg.App.TitlePlaceholder,
			SubmitName:       cfg.App.SubmitName,
		},
		ElementTimeout:  cfg.Timeouts.Element,
		NavigateTimeout: cfg.Timeouts.Navigate,
	}
	if err := seq.Run(ctx); err != nil {
		return err
	}

	pattern := flow.Pattern{Path: cfg.Transition.PathPattern, RequireQuery: cfg.Transition.RequireQuery}
	err = phase(ctx, StepTransition, func() error {
		loc, err := flow.WaitForTransition(ctx, pattern, cfg.Transition.Timeout)
		out.URL = loc
		return err
	})
	if err != nil {
		return err
	}

	settle := flow.Settle{Selector: cfg.Settle.Selector, Timeout: cfg.Settle.Timeout, Delay: cfg.Settle.Delay}
	if err := phase(ctx, StepSettle, func() error { return settle.Wait(ctx) }); err != nil {
		return err
	}

	err = phase(ctx, StepScreenshot, func() error {
		path, err := capturer.Success(ctx)
		out.Screenshot = path
		return err
	})
	if err != nil {
		return err
	}

	return phase(ctx, StepArtifact, func() error {
		res, err := artifact.Await(ctx, before, cfg.Sessions.Dir, artifact.Options{
			Suffix:     cfg.Sessions.Suffix,
			RequireNew: cfg.Sessions.RequireNew,
			Wait:       cfg.Sessions.Wait,
		})
		if err != nil {
			return err
		}
		out.Artifacts = res.New
		if !cfg.Sessions.RequireNew {
			out.Artifacts = res.Matching
		}
		logger.Info("session artifact found", "dir", cfg.Sessions.Dir, "new", res.New, "total", len(res.Matching))
		return nil
	})
}

func phase(ctx context.Context, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	logx.StepDone(pslog.Ctx(ctx), name, start, err)
	if err != nil {
		return &schema.StepError{Step: name, Err: err}
	}
	return nil
}

func logConsole(logger pslog.Logger, console *browser.Console) {
	entries := console.Entries()
	if len(entries) == 0 {
		return
	}
	if dropped := console.Dropped(); dropped > 0 {
		logger.Warn("page console truncated", "dropped", dropped)
	}
	for _, line := range entries {
		logger.Warn("page console", "line", line)
	}
}
