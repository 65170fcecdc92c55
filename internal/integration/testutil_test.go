package integration

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pkt.systems/vibaverify/internal/appconfig"
	"pkt.systems/vibaverify/internal/browser"
	"pkt.systems/vibaverify/internal/stubapp"
)

func requireLong(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

func requireChrome(t *testing.T) string {
	t.Helper()
	path, err := browser.LookPath(os.Getenv("VIBAVERIFY_BROWSER_EXEC_PATH"))
	if err != nil {
		t.Skipf("chrome not available: %v", err)
	}
	return path
}

// startStub serves the stub app on a loopback port until the test ends.
func startStub(t *testing.T, cfg stubapp.Config) string {
	t.Helper()
	if cfg.Repos == nil {
		cfg.Repos = []string{"test-repo", "other-repo"}
	}
	srv, err := stubapp.NewServer(cfg, nil)
	if err != nil {
		t.Fatalf("stub server: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("stub serve: %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Errorf("stub did not shut down")
		}
	})
	return "http://" + ln.Addr().String()
}

type harness struct {
	cfg         appconfig.Config
	sessionsDir string
	evidenceDir string
}

func newHarness(t *testing.T, chrome string) harness {
	t.Helper()
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	root := t.TempDir()
	h := harness{
		sessionsDir: filepath.Join(root, "home", ".viba", "sessions"),
		evidenceDir: filepath.Join(root, "verification"),
	}
	cfg.Browser.ExecPath = chrome
	cfg.Sessions.Dir = h.sessionsDir
	cfg.Evidence.Dir = h.evidenceDir
	cfg.Timeouts.Element = 3 * time.Second
	cfg.Timeouts.Run = time.Minute
	cfg.Transition.Timeout = 3 * time.Second
	cfg.Settle.Delay = 200 * time.Millisecond
	cfg.Settle.Selector = ""
	h.cfg = cfg
	return h
}

func (h harness) stubConfig() stubapp.Config {
	return stubapp.Config{
		SessionsDir:      h.sessionsDir,
		TitlePlaceholder: h.cfg.App.TitlePlaceholder,
		SubmitName:       h.cfg.App.SubmitName,
	}
}

func jsonFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	return matches
}

func requireNonEmptyFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected %s: %v", path, err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected %s to be non-empty", path)
	}
}
