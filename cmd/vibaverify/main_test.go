package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pkt.systems/vibaverify/internal/appconfig"
)

func TestWithDefaultCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "empty", args: nil, want: nil},
		{name: "bare", args: []string{"vibaverify"}, want: []string{"vibaverify", "run"}},
		{name: "flags only", args: []string{"vibaverify", "--url", "http://x"}, want: []string{"vibaverify", "run", "--url", "http://x"}},
		{name: "help", args: []string{"vibaverify", "--help"}, want: []string{"vibaverify", "--help"}},
		{name: "subcommand", args: []string{"vibaverify", "stub"}, want: []string{"vibaverify", "stub"}},
		{name: "alias", args: []string{"/usr/bin/verify-session", "-c", "cfg.yaml"}, want: []string{"/usr/bin/verify-session", "run", "-c", "cfg.yaml"}},
		{name: "alias explicit run", args: []string{"viba-verify", "run"}, want: []string{"viba-verify", "run"}},
		{name: "env file before subcommand", args: []string{"vibaverify", "--env-file", "ci.env", "stub"}, want: []string{"vibaverify", "--env-file", "ci.env", "stub"}},
		{name: "env file before config init", args: []string{"vibaverify", "--env-file=ci.env", "config", "init"}, want: []string{"vibaverify", "--env-file=ci.env", "config", "init"}},
		{name: "env file only", args: []string{"vibaverify", "--env-file", "ci.env"}, want: []string{"vibaverify", "run", "--env-file", "ci.env"}},
		{name: "subcommand help", args: []string{"vibaverify", "stub", "--help"}, want: []string{"vibaverify", "stub", "--help"}},
		{name: "help command", args: []string{"vibaverify", "help", "stub"}, want: []string{"vibaverify", "help", "stub"}},
		{name: "completion", args: []string{"vibaverify", "completion", "bash"}, want: []string{"vibaverify", "completion", "bash"}},
		{name: "shell completion request", args: []string{"vibaverify", "__complete", "st"}, want: []string{"vibaverify", "__complete", "st"}},
		{name: "run bool flag first", args: []string{"vibaverify", "--json", "--url", "http://x"}, want: []string{"vibaverify", "run", "--json", "--url", "http://x"}},
	}
	for _, tc := range tests {
		got := withDefaultCommand(newRootCmd(), tc.args)
		if strings.Join(got, " ") != strings.Join(tc.want, " ") || len(got) != len(tc.want) {
			t.Fatalf("%s: withDefaultCommand(%v) = %v, want %v", tc.name, tc.args, got, tc.want)
		}
	}
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"run": false, "stub": false, "doctor": false, "config": false, "version": false}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("expected root command to include %s", name)
		}
	}
}

func TestApplyRunFlags(t *testing.T) {
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	origTitle := cfg.App.Title
	flags := runFlags{
		url:         "http://127.0.0.1:9999",
		repo:        "other-repo",
		title:       "ignored",
		sessionsDir: "/tmp/sessions",
		headless:    false,
		timeout:     time.Minute,
	}
	changed := map[string]bool{"url": true, "repo": true, "sessions-dir": true, "headless": true, "timeout": true}
	applyRunFlags(&cfg, flags, func(name string) bool { return changed[name] })

	if cfg.App.URL != flags.url || cfg.App.Repo != flags.repo || cfg.Sessions.Dir != flags.sessionsDir {
		t.Fatalf("expected overrides applied, got %+v", cfg.App)
	}
	if cfg.App.Title != origTitle {
		t.Fatalf("expected unchanged title to keep default, got %q", cfg.App.Title)
	}
	if cfg.Browser.Headless || cfg.Timeouts.Run != time.Minute {
		t.Fatalf("expected headless and timeout overrides, got %+v %+v", cfg.Browser, cfg.Timeouts)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verify.yaml")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config", "init", "-c", path})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if strings.TrimSpace(out.String()) != path {
		t.Fatalf("expected written path, got %q", out.String())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file: %v", err)
	}

	root = newRootCmd()
	root.SetArgs([]string{"config", "init", "-c", path})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("expected error when config exists")
	}

	root = newRootCmd()
	out.Reset()
	root.SetOut(&out)
	root.SetArgs([]string{"config", "show", "-c", path})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out.String(), "repo: test-repo") {
		t.Fatalf("expected effective config, got %s", out.String())
	}
}

func TestRunReportsFailureWithoutBrowser(t *testing.T) {
	dir := t.TempDir()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{
		"run",
		"-c", filepath.Join(dir, "missing.yaml"),
		"--chrome", filepath.Join(dir, "no-such-chrome"),
		"--sessions-dir", filepath.Join(dir, "sessions"),
		"--evidence-dir", filepath.Join(dir, "verification"),
	})
	err := root.ExecuteContext(context.Background())
	if err != errVerificationFailed {
		t.Fatalf("expected verification failure, got %v", err)
	}
	if !strings.HasPrefix(out.String(), "Verification failed: ") {
		t.Fatalf("unexpected report %q", out.String())
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	if err := loadEnvFile(context.Background(), filepath.Join(dir, ".env"), false); err != nil {
		t.Fatalf("expected missing default env file to be ignored: %v", err)
	}
	if err := loadEnvFile(context.Background(), filepath.Join(dir, "custom.env"), true); err == nil {
		t.Fatalf("expected missing explicit env file to fail")
	}

	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("VIBAVERIFY_TEST_DOTENV=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("VIBAVERIFY_TEST_DOTENV", "")
	os.Unsetenv("VIBAVERIFY_TEST_DOTENV")
	if err := loadEnvFile(context.Background(), path, false); err != nil {
		t.Fatalf("load env file: %v", err)
	}
	if got := os.Getenv("VIBAVERIFY_TEST_DOTENV"); got != "from-file" {
		t.Fatalf("expected value from env file, got %q", got)
	}
}

func TestCheckApp(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	if err := checkApp(context.Background(), ok.URL, time.Second, 0); err != nil {
		t.Fatalf("expected reachable app, got %v", err)
	}

	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()
	if err := checkApp(context.Background(), missing.URL, time.Second, 0); err == nil {
		t.Fatalf("expected 404 to fail the check")
	}

	var calls atomic.Int32
	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer flaky.Close()
	if err := checkApp(context.Background(), flaky.URL, time.Second, 2); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("expected two attempts, got %d", n)
	}
}
