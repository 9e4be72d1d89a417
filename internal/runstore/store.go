// Package runstore persists run records under:
//
//	<baseDir>/.upon/runs/<run-id>/
//	    run.json       run metadata and outcome
//	    snapshot.json  final instance state
//	    trace.json     canonical execution trace
//	    failure.json   classified failure, when the run failed
//
// All writes are atomic and durable (file sync + atomic rename + dir sync).
package runstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"upon/internal/engine"
	"upon/internal/trace"
)

type Store struct {
	baseDir string
}

func NewStore(baseDir string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("baseDir is required")
	}
	return &Store{baseDir: baseDir}, nil
}

// NewRunID returns a time-ordered run identifier, so sorted IDs are also
// chronological.
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (s *Store) runsRootDir() string {
	return filepath.Join(s.baseDir, ".upon", "runs")
}

// ListRunIDs returns all run IDs currently present on disk, sorted.
func (s *Store) ListRunIDs() ([]string, error) {
	if s == nil {
		return nil, errors.New("nil Store")
	}
	entries, err := os.ReadDir(s.runsRootDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := strings.TrimSpace(e.Name())
		if name == "" {
			continue
		}
		ids = append(ids, name)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) runDir(runID string) string { return filepath.Join(s.runsRootDir(), runID) }
func (s *Store) runPath(runID string) string { return filepath.Join(s.runDir(runID), "run.json") }
func (s *Store) snapshotPath(runID string) string { return filepath.Join(s.runDir(runID), "snapshot.json") }
func (s *Store) tracePath(runID string) string { return filepath.Join(s.runDir(runID), "trace.json") }
func (s *Store) failurePath(runID string) string { return filepath.Join(s.runDir(runID), "failure.json") }

func checkRunID(runID string) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("runID is required")
	}
	if strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return fmt.Errorf("invalid runID %q", runID)
	}
	return nil
}

func (s *Store) SaveRun(run Run) error {
	if run.Outputs == nil {
		run.Outputs = []engine.Output{}
	}
	if run.Signals == nil {
		run.Signals = []string{}
	}
	if err := checkRunID(run.RunID); err != nil {
		return err
	}
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	if err := ensureDirDurable(s.runDir(run.RunID), 0o755); err != nil {
		return fmt.Errorf("ensure run dir: %w", err)
	}
	data, err := jsonMarshalStable(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if err := writeFileAtomicDurable(s.runPath(run.RunID), data, 0o644); err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

func (s *Store) LoadRun(runID string) (Run, error) {
	var run Run
	if err := checkRunID(runID); err != nil {
		return Run{}, err
	}
	if err := readJSONStrict(s.runPath(runID), &run); err != nil {
		return Run{}, err
	}
	if err := run.Validate(); err != nil {
		return Run{}, fmt.Errorf("invalid run on disk: %w", err)
	}
	return run, nil
}

func (s *Store) SaveSnapshot(runID string, snap engine.Snapshot) error {
	if err := checkRunID(runID); err != nil {
		return err
	}
	data, err := jsonMarshalStable(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := writeFileAtomicDurable(s.snapshotPath(runID), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (s *Store) LoadSnapshot(runID string) (engine.Snapshot, error) {
	var snap engine.Snapshot
	if err := checkRunID(runID); err != nil {
		return snap, err
	}
	if err := readJSONStrict(s.snapshotPath(runID), &snap); err != nil {
		return engine.Snapshot{}, err
	}
	return snap, nil
}

// SaveTrace writes the canonical JSON encoding of tr.
func (s *Store) SaveTrace(runID string, tr trace.ExecutionTrace) error {
	if err := checkRunID(runID); err != nil {
		return err
	}
	return WriteTrace(s.tracePath(runID), tr)
}

// WriteTrace atomically and durably writes the canonical JSON encoding of tr
// to path, creating parent directories as needed.
func WriteTrace(path string, tr trace.ExecutionTrace) error {
	data, err := tr.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("canonical trace: %w", err)
	}
	if err := writeFileAtomicDurable(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	return nil
}

func (s *Store) LoadTrace(runID string) (trace.ExecutionTrace, error) {
	var tr trace.ExecutionTrace
	if err := checkRunID(runID); err != nil {
		return tr, err
	}
	if err := readJSONStrict(s.tracePath(runID), &tr); err != nil {
		return trace.ExecutionTrace{}, err
	}
	if err := tr.Validate(); err != nil {
		return trace.ExecutionTrace{}, fmt.Errorf("invalid trace on disk: %w", err)
	}
	return tr, nil
}

func (s *Store) SaveFailure(runID string, failure Failure) error {
	if err := checkRunID(runID); err != nil {
		return err
	}
	if err := failure.Validate(); err != nil {
		return fmt.Errorf("invalid failure: %w", err)
	}
	if err := ensureDirDurable(s.runDir(runID), 0o755); err != nil {
		return fmt.Errorf("ensure run dir: %w", err)
	}
	data, err := jsonMarshalStable(failure)
	if err != nil {
		return fmt.Errorf("marshal failure: %w", err)
	}
	if err := writeFileAtomicDurable(s.failurePath(runID), data, 0o644); err != nil {
		return fmt.Errorf("write failure: %w", err)
	}
	return nil
}

// LoadFailure returns the recorded failure. ok is false when the run has none.
func (s *Store) LoadFailure(runID string) (failure Failure, ok bool, err error) {
	if err := checkRunID(runID); err != nil {
		return Failure{}, false, err
	}
	if err := readJSONStrict(s.failurePath(runID), &failure); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Failure{}, false, nil
		}
		return Failure{}, false, err
	}
	if err := failure.Validate(); err != nil {
		return Failure{}, false, fmt.Errorf("invalid failure on disk: %w", err)
	}
	return failure, true, nil
}

func jsonMarshalStable(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func readJSONStrict(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON: trailing content")
	}
	return nil
}

func ensureDirDurable(dir string, perm os.FileMode) error {
	if err := os.MkdirAll(dir, perm); err != nil {
		return err
	}
	if err := fsyncDir(dir); err != nil {
		return err
	}
	parent := filepath.Dir(dir)
	if parent != dir {
		if err := fsyncDir(parent); err != nil {
			return err
		}
	}
	return nil
}

func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
