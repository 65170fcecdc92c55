package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/vibaverify/internal/appconfig"
	"pkt.systems/vibaverify/internal/browser"
	"pkt.systems/vibaverify/internal/logx"
)

func newDoctorCmd() *cobra.Command {
	var cfgPath string
	var httpTimeout time.Duration
	var httpRetries int
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the browser starts and the app answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := pslog.Ctx(ctx)

			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			configPath := cfgPath
			if strings.TrimSpace(configPath) == "" {
				path, err := appconfig.DefaultConfigPath()
				if err != nil {
					return err
				}
				configPath = path
			}
			logger.Info("doctor start", "config", configPath, "url", cfg.App.URL)

			chrome, err := browser.LookPath(cfg.Browser.ExecPath)
			if err != nil {
				return fmt.Errorf("chrome: %w", err)
			}
			logger.Info("doctor chrome found", "path", chrome)

			if err := checkApp(ctx, cfg.App.URL, httpTimeout, httpRetries); err != nil {
				return err
			}
			logger.Info("doctor app ok", "url", cfg.App.URL)

			if err := checkBrowser(ctx, cfg, chrome); err != nil {
				return err
			}
			logger.Info("doctor browser ok")

			if info, err := os.Stat(cfg.Sessions.Dir); err != nil || !info.IsDir() {
				logger.Warn("doctor sessions dir missing; the app creates it on first save", "dir", cfg.Sessions.Dir)
			} else {
				logger.Info("doctor sessions dir ok", "dir", cfg.Sessions.Dir)
			}
			logger.Info("doctor complete")
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().DurationVar(&httpTimeout, "http-timeout", 5*time.Second, "timeout per app reachability attempt")
	cmd.Flags().IntVar(&httpRetries, "http-retries", 3, "retries for the app reachability check")
	return cmd
}

// checkApp GETs url, retrying connection errors and 5xx answers while the
// app may still be starting.
func checkApp(ctx context.Context, url string, timeout time.Duration, retries int) error {
	client := retryablehttp.NewClient()
	client.RetryMax = retries
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = logx.Leveled{Log: pslog.Ctx(ctx)}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("app unreachable at %s: %w", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("app at %s answered %s", url, resp.Status)
	}
	return nil
}

func checkBrowser(ctx context.Context, cfg appconfig.Config, chrome string) error {
	sess, err := browser.Launch(ctx, browser.Options{
		Headless:      true,
		NoSandbox:     cfg.Browser.NoSandbox,
		ExecPath:      chrome,
		WindowWidth:   cfg.Browser.WindowWidth,
		WindowHeight:  cfg.Browser.WindowHeight,
		UserAgent:     cfg.Browser.UserAgent,
		LaunchTimeout: cfg.Timeouts.Launch,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	nctx, cancel := context.WithTimeout(sess.Context(), cfg.Timeouts.Navigate)
	defer cancel()
	var title string
	if err := chromedp.Run(nctx, chromedp.Navigate(cfg.App.URL), chromedp.Title(&title)); err != nil {
		return fmt.Errorf("browser could not load %s: %w", cfg.App.URL, err)
	}
	pslog.Ctx(ctx).Info("doctor page loaded", "title", title)
	return nil
}
