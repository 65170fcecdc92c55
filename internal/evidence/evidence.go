// Package evidence captures screenshots and DOM snapshots of the tab.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"pkt.systems/pslog"
	"pkt.systems/vibaverify/schema"
)

const failureCaptureTimeout = 10 * time.Second

// Capturer writes evidence files into Dir.
type Capturer struct {
	Dir         string
	SuccessName string
	FailureName string
	// HTML also saves the page DOM next to the failure screenshot.
	HTML bool
}

// Artifacts lists the evidence files written by a capture.
type Artifacts struct {
	Screenshot string
	HTML       string
}

// Success captures the viewport after a completed flow. Any error is wrapped
// in schema.ErrEvidence; a pass without a screenshot is not a pass.
func (c Capturer) Success(ctx context.Context) (string, error) {
	path, err := c.screenshot(ctx, c.SuccessName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", schema.ErrEvidence, err)
	}
	pslog.Ctx(ctx).Info("screenshot saved", "path", path)
	return path, nil
}

// Failure captures the page state after a failed run. It derives a fresh
// deadline from ctx so an expired run deadline does not prevent the capture.
// Errors are returned for logging only; they never change the run's outcome.
func (c Capturer) Failure(ctx context.Context) (Artifacts, error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureCaptureTimeout)
	defer cancel()
	logger := pslog.Ctx(ctx)

	var out Artifacts
	var errs []error
	path, err := c.screenshot(cctx, c.FailureName)
	if err != nil {
		errs = append(errs, fmt.Errorf("failure screenshot: %w", err))
	} else {
		out.Screenshot = path
		logger.Info("failure screenshot saved", "path", path)
	}
	if c.HTML {
		var page string
		if err := chromedp.Run(cctx, chromedp.OuterHTML("html", &page, chromedp.ByQuery)); err != nil {
			errs = append(errs, fmt.Errorf("failure html: %w", err))
		} else if path, err := c.write(htmlName(c.FailureName), []byte(page)); err != nil {
			errs = append(errs, fmt.Errorf("failure html: %w", err))
		} else {
			out.HTML = path
			logger.Info("failure html saved", "path", path)
		}
	}
	return out, errors.Join(errs...)
}

func (c Capturer) screenshot(ctx context.Context, name string) (string, error) {
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return "", fmt.Errorf("capture screenshot: %w", err)
	}
	return c.write(name, buf)
}

// write stores data as Dir/name, creating Dir as needed. Empty payloads are
// rejected so a blank capture never counts as evidence.
func (c Capturer) write(name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("refusing to write empty %s", name)
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create evidence dir: %w", err)
	}
	path := filepath.Join(c.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func htmlName(screenshotName string) string {
	return strings.TrimSuffix(screenshotName, filepath.Ext(screenshotName)) + ".html"
}
