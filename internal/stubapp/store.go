package stubapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"pkt.systems/pslog"
)

// SessionRecord is what the stub persists for each created session.
type SessionRecord struct {
	ID        string    `json:"id"`
	Repo      string    `json:"repo"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists session records as <dir>/<id>.json.
type Store struct {
	dir string
	log pslog.Logger
}

// NewStore constructs a session store. The directory is created on first save.
func NewStore(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("sessions directory is required")
	}
	if logger != nil {
		logger = logger.With("sessions_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// Save writes rec atomically and returns the file path.
func (s *Store) Save(rec SessionRecord) (string, error) {
	if _, err := uuid.Parse(rec.ID); err != nil {
		return "", fmt.Errorf("invalid session id %q: %w", rec.ID, err)
	}
	path := s.pathFor(rec.ID)
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		s.warn("session save failed", rec.ID, err)
		return "", err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		s.warn("session save failed", rec.ID, err)
		return "", err
	}
	// The temp name must not carry the .json suffix or a watcher could see a
	// half-written session.
	tmp, err := os.CreateTemp(s.dir, ".session-*.tmp")
	if err != nil {
		s.warn("session save failed", rec.ID, err)
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		s.warn("session save failed", rec.ID, err)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		s.warn("session save failed", rec.ID, err)
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		s.warn("session save failed", rec.ID, err)
		return "", err
	}
	if s.log != nil {
		s.log.Info("session saved", "id", rec.ID, "repo", rec.Repo, "path", path)
	}
	return path, nil
}

// Load reads a session record. The bool is false when it does not exist.
func (s *Store) Load(id string) (SessionRecord, bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return SessionRecord{}, false, nil
	}
	data, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return SessionRecord{}, false, nil
		}
		return SessionRecord{}, false, err
	}
	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return SessionRecord{}, false, err
	}
	return rec, true, nil
}

func (s *Store) pathFor(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) warn(msg, id string, err error) {
	if s.log != nil {
		s.log.Warn(msg, "id", id, "err", err)
	}
}
