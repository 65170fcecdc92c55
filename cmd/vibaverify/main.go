package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pkt.systems/psi"
	"pkt.systems/pslog"
)

// errVerificationFailed signals a failed check that has already been reported.
var errVerificationFailed = errors.New("verification failed")

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	root := newRootCmd()
	args := withDefaultCommand(root, os.Args)
	root.SetArgs(args[1:])

	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errVerificationFailed) {
			pslog.Ctx(ctx).With("err", err).Error("vibaverify command failed")
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "vibaverify",
		Short:         "End-to-end check that the Viba web UI creates and persists a session",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(cmd.Context(), envFile, cmd.Flags().Changed("env-file"))
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with VIBAVERIFY_* overrides")

	root.AddCommand(newRunCmd())
	root.AddCommand(newStubCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// loadEnvFile applies a dotenv file without overriding variables already set.
// A missing default file is ignored; a missing explicit one is an error.
func loadEnvFile(ctx context.Context, path string, explicit bool) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("env file %s: %w", path, err)
	}
	pslog.Ctx(ctx).Debug("env file loaded", "path", path)
	return nil
}

// withDefaultCommand inserts "run" when args resolve to no subcommand, so a
// bare invocation, one with only run flags, or a verify-session symlink runs
// the check. Root flags such as --env-file may precede a subcommand.
func withDefaultCommand(root *cobra.Command, args []string) []string {
	if len(args) == 0 {
		return args
	}
	if len(args) > 1 && (args[1] == cobra.ShellCompRequestCmd || args[1] == cobra.ShellCompNoDescRequestCmd) {
		return args
	}
	for _, arg := range args[1:] {
		if arg == "-h" || arg == "--help" {
			return args
		}
	}
	root.InitDefaultHelpCmd()
	root.InitDefaultCompletionCmd()
	// Run flags are unknown to the root, so Find may report the value after a
	// run bool flag as an unknown command; only the resolved command matters.
	if cmd, _, _ := root.Find(args[1:]); cmd != root {
		return args
	}
	out := make([]string, 0, len(args)+1)
	out = append(out, args[0], "run")
	out = append(out, args[1:]...)
	return out
}
