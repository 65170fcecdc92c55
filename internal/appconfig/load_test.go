package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.URL != "http://localhost:3000" {
		t.Fatalf("expected default url, got %q", cfg.App.URL)
	}
	if cfg.Transition.Timeout != 30*time.Second {
		t.Fatalf("expected default transition timeout, got %v", cfg.Transition.Timeout)
	}
}

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 9
app:
  url: http://localhost:3000
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRequiresConfigVersion(t *testing.T) {
	path := writeConfig(t, `
app:
  repo: demo
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected config_version required error, got %v", err)
	}
}

func TestLoadParsesDurationsAndPaths(t *testing.T) {
	t.Setenv("VIBA_HOME", "/srv/viba")
	path := writeConfig(t, `
config_version: 1
app:
  url: http://127.0.0.1:4000
  repo: other-repo
transition:
  timeout: 12s
settle:
  selector: .xterm
  delay: 250ms
sessions:
  dir: $VIBA_HOME/sessions
  require_new: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Repo != "other-repo" || cfg.App.Title != "Test Session" {
		t.Fatalf("unexpected app config: %+v", cfg.App)
	}
	if cfg.Transition.Timeout != 12*time.Second {
		t.Fatalf("expected 12s, got %v", cfg.Transition.Timeout)
	}
	if cfg.Settle.Delay != 250*time.Millisecond || cfg.Settle.Selector != ".xterm" {
		t.Fatalf("unexpected settle config: %+v", cfg.Settle)
	}
	if cfg.Sessions.Dir != "/srv/viba/sessions" {
		t.Fatalf("expected expanded sessions dir, got %q", cfg.Sessions.Dir)
	}
	if cfg.Sessions.RequireNew {
		t.Fatalf("expected require_new false")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("VIBAVERIFY_APP_REPO", "env-repo")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Repo != "env-repo" {
		t.Fatalf("expected env override, got %q", cfg.App.Repo)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$MISSING_VIBA_VAR")
	if value != "bar/$MISSING_VIBA_VAR" {
		t.Fatalf("unexpected expansion %q", value)
	}
}

func TestExpandPathTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	if got := expandPath("~/x"); got != filepath.Join(home, "x") {
		t.Fatalf("expected tilde expansion, got %q", got)
	}
}

func TestWriteDefaultRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "verify.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("written default should load: %v", err)
	}
	if cfg.Timeouts.Element != 5*time.Second {
		t.Fatalf("expected round-tripped element timeout, got %v", cfg.Timeouts.Element)
	}
}

func TestMarshalWritesReadableDurations(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Timeouts.Launch = 30 * time.Second
	cfg.Settle.Delay = 1500 * time.Millisecond
	data, err := Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(data)
	for _, want := range []string{"launch: 30s", "delay: 1.5s"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "30000000000") {
		t.Fatalf("expected no nanosecond counts in output:\n%s", out)
	}

	path := filepath.Join(t.TempDir(), "verify.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load marshalled config: %v", err)
	}
	if loaded.Timeouts.Launch != cfg.Timeouts.Launch || loaded.Settle.Delay != cfg.Settle.Delay {
		t.Fatalf("durations did not round-trip: %+v %+v", loaded.Timeouts, loaded.Settle)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "verify.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
