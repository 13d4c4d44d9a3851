package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.etcd.io/bbolt"
)

const bucketRuns = "runs"

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// Store is a bbolt-backed run history. Keys are UUIDv7 run IDs, so cursor
// order is chronological.
type Store struct {
	db   *bbolt.DB
	path string
}

// DefaultPath returns ~/.dashload/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".dashload", "history.db"), nil
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores run, assigning a new ID when it has none, and returns the ID.
func (s *Store) Save(run Run) (string, error) {
	if run.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return "", err
		}
		run.ID = id.String()
	}

	data, err := json.Marshal(run)
	if err != nil {
		return "", err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketRuns)).Put([]byte(run.ID), data)
	})
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// Get returns the run with the given ID.
func (s *Store) Get(id string) (*Run, error) {
	var run Run
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketRuns)).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(v, &run)
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns up to limit runs, newest first (limit <= 0 means all).
func (s *Store) List(limit int) ([]Run, error) {
	return s.list(limit, nil)
}

// ListByTeam is List restricted to runs with at least one scenario against
// teamID. The match runs on the stored JSON before decoding.
func (s *Store) ListByTeam(teamID, limit int) ([]Run, error) {
	return s.list(limit, func(raw []byte) bool {
		for _, id := range gjson.GetBytes(raw, "scenarios.#.teamId").Array() {
			if id.Int() == int64(teamID) {
				return true
			}
		}
		return false
	})
}

func (s *Store) list(limit int, match func([]byte) bool) ([]Run, error) {
	var runs []Run

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketRuns)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			if match != nil && !match(v) {
				continue
			}
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("corrupt run %s: %w", k, err)
			}
			runs = append(runs, run)
		}
		return nil
	})
	return runs, err
}

// Delete removes a run. Deleting an unknown ID is not an error.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketRuns)).Delete([]byte(id))
	})
}
