package browser

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"pkt.systems/vibaverify/schema"
)

func TestLaunchMissingBinaryIsResourceFault(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := Launch(ctx, Options{
		Headless:      true,
		ExecPath:      filepath.Join(t.TempDir(), "no-such-chrome"),
		LaunchTimeout: 5 * time.Second,
	})
	if err == nil {
		t.Fatalf("expected launch failure")
	}
	if !errors.Is(err, schema.ErrResourceFault) {
		t.Fatalf("expected resource fault, got %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	calls := 0
	s := &Session{
		cancelTab:   func() { calls++ },
		cancelAlloc: func() { calls++ },
	}
	s.Close()
	s.Close()
	if calls != 2 {
		t.Fatalf("expected each cancel once, got %d calls", calls)
	}
	var nilSession *Session
	nilSession.Close()
}

func TestAllocatorOptionsOptional(t *testing.T) {
	base := len(allocatorOptions(Options{}))
	full := len(allocatorOptions(Options{
		NoSandbox:    true,
		WindowWidth:  800,
		WindowHeight: 600,
		ExecPath:     "/usr/bin/chromium",
		UserAgent:    "vibaverify",
	}))
	if full != base+4 {
		t.Fatalf("expected 4 extra options, got base=%d full=%d", base, full)
	}
}

func TestLookPathExplicitMissing(t *testing.T) {
	if _, err := LookPath(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing explicit binary")
	}
}
