package flow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/chromedp/chromedp"

	"pkt.systems/pslog"
	"pkt.systems/vibaverify/schema"
)

const pollInterval = 100 * time.Millisecond

// Pattern matches the URL of the session view. Path is a doublestar glob
// applied to the URL path without its leading slash.
type Pattern struct {
	Path         string
	RequireQuery bool
}

// Match reports whether raw is a URL the pattern accepts.
func (p Pattern) Match(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if p.RequireQuery && u.RawQuery == "" {
		return false
	}
	ok, err := doublestar.Match(strings.TrimPrefix(p.Path, "/"), strings.TrimPrefix(u.Path, "/"))
	return err == nil && ok
}

func (p Pattern) String() string {
	s := "/" + strings.TrimPrefix(p.Path, "/")
	if p.RequireQuery {
		s += "?*"
	}
	return s
}

// WaitForTransition blocks until the tab's location matches p and returns
// that location. Expiry yields schema.ErrNavigationTimeout.
func WaitForTransition(ctx context.Context, p Pattern, timeout time.Duration) (string, error) {
	wctx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var last string
	for {
		var loc string
		if err := chromedp.Run(wctx, chromedp.Location(&loc)); err == nil {
			last = loc
			if p.Match(loc) {
				pslog.Ctx(ctx).Info("session view reached", "url", loc)
				return loc, nil
			}
		}
		select {
		case <-wctx.Done():
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			return last, fmt.Errorf("%w: no navigation to %s within %s (last url %q)", schema.ErrNavigationTimeout, p, timeout, last)
		case <-ticker.C:
		}
	}
}

// Settle waits for dependent UI to finish initializing after navigation.
type Settle struct {
	// Selector, when set, is a CSS selector that must become visible.
	Selector string
	Timeout  time.Duration
	// Delay is a fixed grace period applied after the selector wait. It is an
	// approximation of "UI is idle" for apps that expose no better signal.
	Delay time.Duration
}

// Wait applies the selector wait and then the fixed delay.
func (s Settle) Wait(ctx context.Context) error {
	if s.Selector != "" {
		wctx, cancel := withTimeout(ctx, s.Timeout)
		err := chromedp.Run(wctx, chromedp.WaitVisible(s.Selector, chromedp.ByQuery))
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("%w: settle selector %q within %s", schema.ErrElementNotVisible, s.Selector, s.Timeout)
			}
			return fmt.Errorf("settle selector %q: %w", s.Selector, err)
		}
	}
	if s.Delay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
