// Package history keeps one YAML manifest per dispatched run under
// .voxsweep/state/runs. The external programs own the heavyweight artifacts
// (checkpoints, renders); the manifest records what was asked for and how
// the run went, which is otherwise only reconstructable from scrollback.
package history

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voxsweep/voxsweep/internal/runspec"
)

// Record is the manifest for one dispatched run.
type Record struct {
	RunName    string       `yaml:"run_name"`
	Sweep      string       `yaml:"sweep"`
	GPU        int          `yaml:"gpu"`
	Spec       runspec.Spec `yaml:"spec"`
	Status     string       `yaml:"status"`
	StartedAt  time.Time    `yaml:"started_at"`
	FinishedAt time.Time    `yaml:"finished_at"`

	// Exit codes are nil when the step never ran (dry-run, skipped render).
	TrainExit  *int   `yaml:"train_exit,omitempty"`
	RenderExit *int   `yaml:"render_exit,omitempty"`
	Error      string `yaml:"error,omitempty"`
}

// Store reads and writes run manifests in a single directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created lazily
// on first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save writes the record as <run name>.yaml, replacing any earlier manifest
// for the same run.
func (s *Store) Save(rec Record) error {
	if s == nil {
		return fmt.Errorf("history: nil store")
	}
	if strings.TrimSpace(rec.RunName) == "" {
		return fmt.Errorf("history: record has no run name")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("history: ensure dir: %w", err)
	}
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("history: encode %s: %w", rec.RunName, err)
	}
	path := s.path(rec.RunName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("history: write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("history: replace %s: %w", path, err)
	}
	return nil
}

// Load reads the manifest for a run name.
func (s *Store) Load(runName string) (Record, error) {
	data, err := os.ReadFile(s.path(runName))
	if err != nil {
		return Record{}, fmt.Errorf("history: read %s: %w", runName, err)
	}
	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("history: parse %s: %w", runName, err)
	}
	return rec, nil
}

// List returns all manifests, most recently finished first. A missing
// directory means no history yet.
func (s *Store) List() ([]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: read %s: %w", s.dir, err)
	}
	var records []Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		rec, err := s.Load(strings.TrimSuffix(entry.Name(), ".yaml"))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].FinishedAt.After(records[j].FinishedAt)
	})
	return records, nil
}

func (s *Store) path(runName string) string {
	return filepath.Join(s.dir, runName+".yaml")
}
