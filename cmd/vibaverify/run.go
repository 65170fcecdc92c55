package main

import (
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/vibaverify/internal/appconfig"
	"pkt.systems/vibaverify/internal/verify"
)

type runFlags struct {
	configPath   string
	url          string
	repo         string
	title        string
	sessionsDir  string
	sessionsWait time.Duration
	evidenceDir  string
	chrome       string
	headless     bool
	timeout      time.Duration
	jsonOut      bool
}

func newRunCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create a session through the web UI and verify it was persisted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(flags.configPath)
			if err != nil {
				return err
			}
			applyRunFlags(&cfg, flags, cmd.Flags().Changed)
			if err := appconfig.Validate(cfg); err != nil {
				return err
			}

			out := verify.Run(cmd.Context(), cfg)
			if flags.jsonOut {
				err = verify.ReportJSON(cmd.OutOrStdout(), out)
			} else {
				err = verify.Report(cmd.OutOrStdout(), out)
			}
			if err != nil {
				return err
			}
			if out.ExitCode() != 0 {
				return errVerificationFailed
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&flags.configPath, "config", "c", "", "path to config file")
	f.StringVar(&flags.url, "url", "", "base URL of the app under test")
	f.StringVar(&flags.repo, "repo", "", "repository entry to select")
	f.StringVar(&flags.title, "title", "", "task title to submit")
	f.StringVar(&flags.sessionsDir, "sessions-dir", "", "directory the app persists sessions to")
	f.DurationVar(&flags.sessionsWait, "sessions-wait", 0, "how long to watch for a late session file")
	f.StringVar(&flags.evidenceDir, "evidence-dir", "", "directory for screenshots")
	f.StringVar(&flags.chrome, "chrome", "", "path to the Chrome binary")
	f.BoolVar(&flags.headless, "headless", true, "run the browser headless")
	f.DurationVar(&flags.timeout, "timeout", 0, "overall run timeout")
	f.BoolVar(&flags.jsonOut, "json", false, "print the outcome as JSON")
	return cmd
}

// applyRunFlags copies explicitly set flags over the loaded config.
func applyRunFlags(cfg *appconfig.Config, flags runFlags, changed func(string) bool) {
	if changed("url") {
		cfg.App.URL = flags.url
	}
	if changed("repo") {
		cfg.App.Repo = flags.repo
	}
	if changed("title") {
		cfg.App.Title = flags.title
	}
	if changed("sessions-dir") {
		cfg.Sessions.Dir = flags.sessionsDir
	}
	if changed("sessions-wait") {
		cfg.Sessions.Wait = flags.sessionsWait
	}
	if changed("evidence-dir") {
		cfg.Evidence.Dir = flags.evidenceDir
	}
	if changed("chrome") {
		cfg.Browser.ExecPath = flags.chrome
	}
	if changed("headless") {
		cfg.Browser.Headless = flags.headless
	}
	if changed("timeout") {
		cfg.Timeouts.Run = flags.timeout
	}
}
