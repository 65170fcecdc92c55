package main

import (
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/vibaverify/internal/appconfig"
	"pkt.systems/vibaverify/internal/stubapp"
)

func newStubCmd() *cobra.Command {
	var cfgPath string
	var addr string
	var repos []string
	var sessionsDir string
	var noRedirect bool
	var noPersist bool
	var persistDelay time.Duration
	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Serve a minimal Viba-like app for exercising the check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("sessions-dir") {
				sessionsDir = cfg.Sessions.Dir
			}
			logger := pslog.Ctx(cmd.Context()).With("component", "stub")
			srv, err := stubapp.NewServer(stubapp.Config{
				Repos:            repos,
				SessionsDir:      sessionsDir,
				TitlePlaceholder: cfg.App.TitlePlaceholder,
				SubmitName:       cfg.App.SubmitName,
				NoRedirect:       noRedirect,
				NoPersist:        noPersist,
				PersistDelay:     persistDelay,
			}, logger)
			if err != nil {
				return err
			}
			logger.Info("stub config", "repos", repos, "sessions_dir", sessionsDir, "no_redirect", noRedirect, "no_persist", noPersist)
			ctx := pslog.ContextWithLogger(cmd.Context(), logger)
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:3000", "listen address")
	cmd.Flags().StringSliceVar(&repos, "repo", []string{"test-repo"}, "repositories to list (repeatable)")
	cmd.Flags().StringVar(&sessionsDir, "sessions-dir", "", "directory to persist sessions to (default from config)")
	cmd.Flags().BoolVar(&noRedirect, "no-redirect", false, "do not navigate to the session view after creation")
	cmd.Flags().BoolVar(&noPersist, "no-persist", false, "do not write session files")
	cmd.Flags().DurationVar(&persistDelay, "persist-delay", 0, "delay before writing the session file")
	return cmd
}
