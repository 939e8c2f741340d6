// Package runstore persists gather runs as versioned JSON files.
package runstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sauna-briefing/internal/model"
)

const (
	// IDLayout is the time layout of run ids (UTC).
	IDLayout = "20060102_150405"
	// LatestAlias resolves to the newest run in the store.
	LatestAlias = "latest"

	fileSuffix = "_candidates.json"
)

var (
	ErrRunNotFound = errors.New("run not found")
	ErrRunExists   = errors.New("run already exists")
	ErrInvalidID   = errors.New("invalid run id")
)

// Store reads and writes run files under Dir.
type Store struct {
	Dir string
}

func New(dir string) *Store {
	return &Store{Dir: dir}
}

// NewRunID formats t as a run id.
func NewRunID(t time.Time) string {
	return t.UTC().Format(IDLayout)
}

// ParseRunID returns the timestamp embedded in a run id.
func ParseRunID(id string) (time.Time, bool) {
	t, err := time.Parse(IDLayout, id)
	return t, err == nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.Dir, id+fileSuffix)
}

// Save writes a new run. Existing runs are never overwritten and readers
// never observe a partially written file.
func (s *Store) Save(run model.Run) (string, error) {
	if _, ok := ParseRunID(run.RunID); !ok {
		return "", fmt.Errorf("%w %q", ErrInvalidID, run.RunID)
	}
	for _, c := range run.Candidates {
		if err := c.Validate(); err != nil {
			return "", fmt.Errorf("run %s: %w", run.RunID, err)
		}
	}
	if run.SchemaVersion == 0 {
		run.SchemaVersion = model.RunSchemaVersion
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(s.Dir, ".run-*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	dst := s.path(run.RunID)
	if err := os.Link(tmp.Name(), dst); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrRunExists, run.RunID)
		}
		return "", err
	}
	return dst, nil
}

// Load reads a run by id; the "latest" alias is resolved first.
func (s *Store) Load(id string) (model.Run, error) {
	id, err := s.Resolve(id)
	if err != nil {
		return model.Run{}, err
	}
	b, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return model.Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return model.Run{}, err
	}
	var run model.Run
	if err := json.Unmarshal(b, &run); err != nil {
		return model.Run{}, fmt.Errorf("decode run %s: %w", id, err)
	}
	if _, ok := ParseRunID(run.RunID); !ok {
		return model.Run{}, fmt.Errorf("run file %s: %w %q", id, ErrInvalidID, run.RunID)
	}
	if run.SchemaVersion > model.RunSchemaVersion {
		return model.Run{}, fmt.Errorf("run %s has schema version %d, newer than supported %d", id, run.SchemaVersion, model.RunSchemaVersion)
	}
	return run, nil
}

// Resolve maps "latest" (or an empty id) to a concrete run id. Anything else
// must be a well-formed run id, which also keeps paths inside Dir.
func (s *Store) Resolve(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id != "" && id != LatestAlias {
		if _, ok := ParseRunID(id); !ok {
			return "", fmt.Errorf("%w %q", ErrInvalidID, id)
		}
		return id, nil
	}
	ids, err := s.IDs()
	if err != nil {
		return "", err
	}
	latest, ok := Latest(ids)
	if !ok {
		return "", fmt.Errorf("%w: store %s is empty", ErrRunNotFound, s.Dir)
	}
	return latest, nil
}

// IDs lists run ids found in the store directory, in directory order.
func (s *Store) IDs() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, fileSuffix))
	}
	return ids, nil
}

// Latest picks the id with the greatest embedded timestamp. Ids that do not
// parse are ignored.
func Latest(ids []string) (string, bool) {
	var best string
	var bestT time.Time
	for _, id := range ids {
		t, ok := ParseRunID(id)
		if !ok {
			continue
		}
		if best == "" || t.After(bestT) {
			best, bestT = id, t
		}
	}
	return best, best != ""
}

// List returns run summaries, newest first. Unreadable files are skipped.
func (s *Store) List() ([]model.RunSummary, error) {
	ids, err := s.IDs()
	if err != nil {
		return nil, err
	}
	out := make([]model.RunSummary, 0, len(ids))
	for _, id := range ids {
		t, ok := ParseRunID(id)
		if !ok {
			continue
		}
		run, err := s.Load(id)
		if err != nil {
			continue
		}
		out = append(out, model.RunSummary{RunID: id, CreatedAt: t, CandidateCount: len(run.Candidates)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Spotlighted returns venue names already spotlighted in stored runs.
func (s *Store) Spotlighted() (map[string]bool, error) {
	ids, err := s.IDs()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, id := range ids {
		run, err := s.Load(id)
		if err != nil {
			continue
		}
		if sp := run.Metadata.Spotlight; sp != nil && sp.Venue != "" {
			seen[sp.Venue] = true
		}
	}
	return seen, nil
}
