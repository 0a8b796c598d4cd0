// Package store persists the appointment book as two independently keyed
// JSON blobs under the data directory, mirroring the two-key layout of the
// original browser storage.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	appLog "turnero/internal/log"
	"turnero/internal/model"
)

const (
	patientsFile     = "patients.json"
	appointmentsFile = "appointments.json"

	// LogicalBudgetBytes is the soft storage ceiling. Exceeding it never
	// blocks writes; the percentage is advisory for the UI only.
	LogicalBudgetBytes = 5 * 1024 * 1024
)

// Store reads and writes the two snapshot blobs.
type Store struct {
	dir string
}

// Usage reports the serialized footprint of the book against the logical
// budget.
type Usage struct {
	Bytes   int64   `json:"bytes"`
	Budget  int64   `json:"budget"`
	Percent float64 `json:"percent"`
}

// Open prepares a store rooted at dir, creating it if needed.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("store: data dir is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the data directory root.
func (s *Store) Dir() string { return s.dir }

// Load reads both blobs into a snapshot. Missing files are a normal first
// run and yield empty halves. A parse failure is logged and that half falls
// back to empty; the error is returned so the caller can surface it.
func (s *Store) Load() (model.AppState, error) {
	var st model.AppState
	var firstErr error

	if err := s.loadBlob(patientsFile, &st.Patients); err != nil {
		appLog.Error("failed to load patients blob, starting empty", err, "file", patientsFile)
		st.Patients = nil
		firstErr = err
	}
	if err := s.loadBlob(appointmentsFile, &st.Appointments); err != nil {
		appLog.Error("failed to load appointments blob, starting empty", err, "file", appointmentsFile)
		st.Appointments = nil
		if firstErr == nil {
			firstErr = err
		}
	}
	return st, firstErr
}

// Save writes both blobs atomically (temp file + rename, 0600), one file per
// half so each can be imported/exported independently.
func (s *Store) Save(st model.AppState) error {
	if err := s.saveBlob(patientsFile, st.Patients); err != nil {
		return err
	}
	return s.saveBlob(appointmentsFile, st.Appointments)
}

// Usage computes the on-disk footprint of both blobs.
func (s *Store) Usage() (Usage, error) {
	var total int64
	for _, name := range []string{patientsFile, appointmentsFile} {
		info, err := os.Stat(filepath.Join(s.dir, name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Usage{}, err
		}
		total += info.Size()
	}
	return Usage{
		Bytes:   total,
		Budget:  LogicalBudgetBytes,
		Percent: float64(total) / float64(LogicalBudgetBytes) * 100,
	}, nil
}

func (s *Store) loadBlob(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *Store) saveBlob(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	// Atomic write: temp file in the same directory, then rename.
	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, filepath.Join(s.dir, name))
}
