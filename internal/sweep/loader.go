package sweep

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// File pairs a parsed sweep with its on-disk source.
type File struct {
	Sweep Sweep
	Path  string
}

// ParseYAML decodes and validates a single sweep payload.
func ParseYAML(data []byte) (Sweep, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Sweep{}, fmt.Errorf("sweep: payload is empty")
	}
	var s Sweep
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Sweep{}, fmt.Errorf("sweep: decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Sweep{}, err
	}
	return s, nil
}

// LoadFile reads a YAML file from disk and returns the parsed sweep. A file
// without an explicit name takes its base filename.
func LoadFile(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("sweep: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("sweep: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("sweep: read %s: %w", path, err)
	}
	var s Sweep
	if err := yaml.Unmarshal(data, &s); err != nil {
		return File{}, fmt.Errorf("sweep: %s: decode: %w", path, err)
	}
	if strings.TrimSpace(s.Name) == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := s.Validate(); err != nil {
		return File{}, fmt.Errorf("sweep: %s: %w", path, err)
	}
	return File{Sweep: s, Path: filepath.Clean(path)}, nil
}

// LoadDir scans a directory for *.yaml sweeps and returns them sorted by
// path. Missing directories are treated as "no sweeps" to simplify startup.
func LoadDir(dir string) ([]File, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("sweep: read %s: %w", trimmed, err)
	}
	var files []File
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !isYAMLFile(name) {
			continue
		}
		f, err := LoadFile(filepath.Join(trimmed, name))
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return nil, nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// LoadInto registers every sweep file under dir, shadowing built-ins with
// the same name.
func LoadInto(reg *Registry, dir string) error {
	files, err := LoadDir(dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := reg.Register(f.Sweep); err != nil {
			return fmt.Errorf("sweep: %s: %w", f.Path, err)
		}
	}
	return nil
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
