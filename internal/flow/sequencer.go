// Package flow drives the session-creation workflow in the browser tab and
// detects the navigation that follows it.
package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"pkt.systems/pslog"
	"pkt.systems/vibaverify/internal/domcheck"
	"pkt.systems/vibaverify/internal/locator"
	"pkt.systems/vibaverify/internal/logx"
	"pkt.systems/vibaverify/schema"
)

// Step names, in execution order.
const (
	StepNavigate  = "navigate"
	StepFindRepo  = "find-repo"
	StepOpenRepo  = "open-repo"
	StepFillTitle = "fill-title"
	StepSubmit    = "submit"
)

const snapshotTimeout = 3 * time.Second

// Labels are the accessible labels the app exposes on its session form.
type Labels struct {
	TitlePlaceholder string
	SubmitName       string
}

// Sequencer runs the interaction steps strictly in order.
type Sequencer struct {
	URL             string
	Request         schema.SessionRequest
	Labels          Labels
	ElementTimeout  time.Duration
	NavigateTimeout time.Duration
}

type step struct {
	name string
	run  func(ctx context.Context) error
}

// Run executes every step, stopping at the first failure. The returned error
// is a *schema.StepError naming the failed step.
func (s Sequencer) Run(ctx context.Context) error {
	logger := logx.WithRepo(pslog.Ctx(ctx), s.Request.Repo)
	for _, st := range s.steps() {
		start := time.Now()
		err := st.run(ctx)
		logx.StepDone(logger, st.name, start, err)
		if err != nil {
			return &schema.StepError{Step: st.name, Err: err}
		}
	}
	return nil
}

// Steps lists the step names in execution order.
func (s Sequencer) Steps() []string {
	steps := s.steps()
	names := make([]string, len(steps))
	for i, st := range steps {
		names[i] = st.name
	}
	return names
}

func (s Sequencer) steps() []step {
	repo := locator.Text(string(s.Request.Repo.Name)).First()
	title := locator.Placeholder(s.Labels.TitlePlaceholder)
	submit := locator.Role("button", s.Labels.SubmitName)
	return []step{
		{name: StepNavigate, run: s.navigate},
		{name: StepFindRepo, run: func(ctx context.Context) error {
			if err := s.waitVisible(ctx, repo); err != nil {
				return fmt.Errorf("repository list did not render: %w", err)
			}
			return nil
		}},
		{name: StepOpenRepo, run: func(ctx context.Context) error {
			return s.click(ctx, repo)
		}},
		{name: StepFillTitle, run: func(ctx context.Context) error {
			if err := s.waitVisible(ctx, title); err != nil {
				return err
			}
			return s.fill(ctx, title, s.Request.Title)
		}},
		{name: StepSubmit, run: func(ctx context.Context) error {
			if err := s.waitVisible(ctx, submit); err != nil {
				return err
			}
			return s.click(ctx, submit)
		}},
	}
}

func (s Sequencer) navigate(ctx context.Context) error {
	nctx, cancel := withTimeout(ctx, s.NavigateTimeout)
	defer cancel()
	if err := chromedp.Run(nctx, chromedp.Navigate(s.URL)); err != nil {
		return fmt.Errorf("navigate to %s: %w", s.URL, err)
	}
	return nil
}

// waitVisible blocks until the locator's target is visible, then applies the
// locator's disambiguation policy to the live match count.
func (s Sequencer) waitVisible(ctx context.Context, loc locator.Locator) error {
	wctx, cancel := withTimeout(ctx, s.ElementTimeout)
	defer cancel()
	err := chromedp.Run(wctx, chromedp.WaitVisible(loc.Target(), chromedp.BySearch))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s within %s; %s", schema.ErrElementNotVisible, loc, s.ElementTimeout, explain(ctx, loc))
		}
		return fmt.Errorf("wait for %s: %w", loc, err)
	}
	n, err := loc.Count(ctx)
	if err != nil {
		return err
	}
	return loc.Check(n)
}

func (s Sequencer) click(ctx context.Context, loc locator.Locator) error {
	cctx, cancel := withTimeout(ctx, s.ElementTimeout)
	defer cancel()
	if err := chromedp.Run(cctx, chromedp.Click(loc.Target(), chromedp.BySearch)); err != nil {
		return fmt.Errorf("click %s: %w", loc, err)
	}
	return nil
}

func (s Sequencer) fill(ctx context.Context, loc locator.Locator, value string) error {
	fctx, cancel := withTimeout(ctx, s.ElementTimeout)
	defer cancel()
	err := chromedp.Run(fctx,
		chromedp.Clear(loc.Target(), chromedp.BySearch),
		chromedp.SendKeys(loc.Target(), value, chromedp.BySearch),
	)
	if err != nil {
		return fmt.Errorf("fill %s: %w", loc, err)
	}
	return nil
}

// explain inspects a fresh DOM snapshot to tell an absent element from a hidden one.
func explain(ctx context.Context, q domcheck.Query) string {
	sctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()
	var page string
	if err := chromedp.Run(sctx, chromedp.OuterHTML("html", &page, chromedp.ByQuery)); err != nil {
		return fmt.Sprintf("page snapshot unavailable (%v)", err)
	}
	return domcheck.Explain(page, q)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
