// Package browser owns the automated Chrome instance and the single tab a
// verification run drives.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"pkt.systems/pslog"
	"pkt.systems/vibaverify/schema"
)

// Options configures the browser launch.
type Options struct {
	Headless      bool
	NoSandbox     bool
	ExecPath      string
	WindowWidth   int
	WindowHeight  int
	UserAgent     string
	LaunchTimeout time.Duration
}

// Session is one browser plus one tab, exclusively owned by a run.
type Session struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	closeOnce   sync.Once
}

// Launch starts the browser and opens the tab. Failures are wrapped in
// schema.ErrResourceFault and are not retried.
func Launch(ctx context.Context, opts Options) (*Session, error) {
	logger := pslog.Ctx(ctx)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(opts)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug("chrome", "msg", fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Warn("chrome error", "msg", fmt.Sprintf(format, args...))
		}),
	)
	s := &Session{ctx: tabCtx, cancelTab: cancelTab, cancelAlloc: cancelAlloc}

	// The first Run allocates the browser; it must not carry a deadline or the
	// tab would be torn down when the deadline fires.
	errCh := make(chan error, 1)
	go func() {
		errCh <- chromedp.Run(tabCtx)
	}()

	var timeout <-chan time.Time
	if opts.LaunchTimeout > 0 {
		timer := time.NewTimer(opts.LaunchTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case err := <-errCh:
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%w: start browser: %v", schema.ErrResourceFault, err)
		}
	case <-timeout:
		s.Close()
		return nil, fmt.Errorf("%w: browser did not start within %s", schema.ErrResourceFault, opts.LaunchTimeout)
	case <-ctx.Done():
		s.Close()
		return nil, fmt.Errorf("%w: %v", schema.ErrResourceFault, ctx.Err())
	}
	logger.Info("browser started", "headless", opts.Headless, "exec", opts.ExecPath)
	return s, nil
}

// Context returns the tab context. Derive per-step deadlines from it.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Close releases the tab and the browser process. Safe to call repeatedly.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		if s.cancelTab != nil {
			s.cancelTab()
		}
		if s.cancelAlloc != nil {
			s.cancelAlloc()
		}
	})
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	out = append(out,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.NoSandbox {
		out = append(out, chromedp.Flag("no-sandbox", true))
	}
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		out = append(out, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		out = append(out, chromedp.UserAgent(opts.UserAgent))
	}
	return out
}

var chromeBinaries = []string{
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"chrome",
}

// ErrChromeNotFound indicates no Chrome-compatible binary is on PATH.
var ErrChromeNotFound = errors.New("no chrome binary found on PATH")

// LookPath finds a Chrome-compatible binary, preferring explicit when set.
func LookPath(explicit string) (string, error) {
	if explicit != "" {
		return exec.LookPath(explicit)
	}
	for _, name := range chromeBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrChromeNotFound
}
