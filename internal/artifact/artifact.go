// Package artifact checks the app's session store for newly persisted
// session files. It only reads the directory.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"pkt.systems/pslog"
	"pkt.systems/vibaverify/schema"
)

// Snapshot is a listing of the session directory at one point in time.
type Snapshot struct {
	Dir    string
	Exists bool
	Names  []string
}

// Has reports whether name was present in the snapshot.
func (s Snapshot) Has(name string) bool {
	_, found := slices.BinarySearch(s.Names, name)
	return found
}

// Options controls what counts as a session artifact.
type Options struct {
	Suffix string
	// RequireNew demands an artifact absent from the baseline snapshot.
	RequireNew bool
	// Wait bounds how long Await watches the directory for a late artifact.
	Wait time.Duration
}

// Result lists the qualifying artifacts found.
type Result struct {
	Matching []string
	New      []string
}

// Take lists dir. A missing directory is not an error here; it yields a
// snapshot with Exists unset.
func Take(dir string) (Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{Dir: dir}, nil
		}
		return Snapshot{}, fmt.Errorf("list %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return Snapshot{Dir: dir, Exists: true, Names: names}, nil
}

// Verify lists dir and checks it against the baseline. It fails with
// schema.ErrArtifactMissing when the directory is missing or holds no
// qualifying entry.
func Verify(before Snapshot, dir string, opts Options) (Result, error) {
	after, err := Take(dir)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", schema.ErrArtifactMissing, err)
	}
	if !after.Exists {
		return Result{}, fmt.Errorf("%w: session directory %s does not exist", schema.ErrArtifactMissing, dir)
	}
	var res Result
	for _, name := range after.Names {
		if !strings.HasSuffix(name, opts.Suffix) {
			continue
		}
		res.Matching = append(res.Matching, name)
		if !before.Has(name) {
			res.New = append(res.New, name)
		}
	}
	if len(res.Matching) == 0 {
		return res, fmt.Errorf("%w: no *%s file in %s (found %s)", schema.ErrArtifactMissing, opts.Suffix, dir, describe(after.Names))
	}
	if opts.RequireNew && len(res.New) == 0 {
		return res, fmt.Errorf("%w: no new *%s file in %s since the run started (found %s)", schema.ErrArtifactMissing, opts.Suffix, dir, describe(after.Names))
	}
	return res, nil
}

// Await verifies dir, watching it for up to opts.Wait for a qualifying
// artifact to appear. While dir does not exist yet its nearest existing
// ancestor is watched instead, so a first save that creates the directory
// still counts. With no wait configured it verifies once.
func Await(ctx context.Context, before Snapshot, dir string, opts Options) (Result, error) {
	res, err := Verify(before, dir, opts)
	if err == nil || opts.Wait <= 0 {
		return res, err
	}

	watcher, werr := fsnotify.NewWatcher()
	if werr != nil {
		return res, errors.Join(err, fmt.Errorf("watch %s: %w", dir, werr))
	}
	defer func() { _ = watcher.Close() }()
	dw := &dirWatch{watcher: watcher, target: dir}
	if werr := dw.arm(); werr != nil {
		return res, errors.Join(err, werr)
	}

	logger := pslog.Ctx(ctx).With("dir", dir)
	logger.Debug("waiting for session artifact", "wait", opts.Wait, "watching", dw.watched)

	// Re-check once the watch is armed; a file may have landed in between.
	if res, err = Verify(before, dir, opts); err == nil {
		return res, nil
	}

	timer := time.NewTimer(opts.Wait)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return res, err
		case <-timer.C:
			return res, err
		case ev, ok := <-watcher.Events:
			if !ok {
				return res, err
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			logger.Debug("session dir changed", "name", ev.Name, "op", ev.Op.String())
			if werr := dw.arm(); werr != nil {
				logger.Warn("session dir watch error", "err", werr)
			}
			if res, err = Verify(before, dir, opts); err == nil {
				return res, nil
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return res, err
			}
			logger.Warn("session dir watch error", "err", werr)
		}
	}
}

// dirWatch keeps a single fsnotify watch on target, or on its nearest
// existing ancestor while target is missing.
type dirWatch struct {
	watcher *fsnotify.Watcher
	target  string
	watched string
}

// arm moves the watch down to the nearest existing directory, repeating
// until it settles so a level created between stat and Add is not missed.
func (d *dirWatch) arm() error {
	for {
		path := nearestDir(d.target)
		if path == d.watched {
			return nil
		}
		if err := d.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		if d.watched != "" {
			_ = d.watcher.Remove(d.watched)
		}
		d.watched = path
	}
}

func nearestDir(path string) string {
	for {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}

func describe(names []string) string {
	if len(names) == 0 {
		return "an empty directory"
	}
	const limit = 20
	if len(names) > limit {
		return fmt.Sprintf("[%s ... %d more]", strings.Join(names[:limit], " "), len(names)-limit)
	}
	return "[" + strings.Join(names, " ") + "]"
}
