// internal/config/config.go
//
// This package handles configuration and the .voxsweep directory structure.
// Every project that dispatches sweeps gets a .voxsweep/ folder created in
// its root, next to the artifact roots the external programs write to.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// WorkspaceDir is the name of the directory we create in each project.
	WorkspaceDir = ".voxsweep"

	defaultSweepID  = "glasses-dog"
	defaultPython   = "python3"
	defaultDataRoot = "data"

	defaultTrainScript  = "run_sds_on_high_res_model.py"
	defaultEditScript   = "edit_pretrained_relu_field.py"
	defaultRenderScript = "render_sh_based_voxel_grid.py"
)

const defaultProjectConfigYAML = `# voxsweep project configuration
version: 1

# Interpreter and external programs. Paths are resolved relative to the
# project root unless absolute.
python: python3
scripts:
  train: run_sds_on_high_res_model.py
  edit: edit_pretrained_relu_field.py
  render: render_sh_based_voxel_grid.py

# Scene datasets live under <data_root>/<scene>.
data_root: data

sweeps:
  default: glasses-dog
`

// ScriptPaths names the external Python programs a sweep invokes.
type ScriptPaths struct {
	Train  string `yaml:"train"`
	Edit   string `yaml:"edit"`
	Render string `yaml:"render"`
}

// SweepPrefs captures sweep selection preferences.
type SweepPrefs struct {
	Default   string   `yaml:"default"`
	Available []string `yaml:"available,omitempty"`
}

// ProjectConfig models .voxsweep/config.yaml.
type ProjectConfig struct {
	Version  int         `yaml:"version"`
	Python   string      `yaml:"python"`
	Scripts  ScriptPaths `yaml:"scripts"`
	DataRoot string      `yaml:"data_root"`
	Sweeps   SweepPrefs  `yaml:"sweeps"`
}

// Config holds the runtime configuration for voxsweep.
type Config struct {
	// ProjectDir is the directory the user ran voxsweep from. Checkpoints
	// land under <ProjectDir>/logs/rf and renders under
	// <ProjectDir>/output_renders, by the external programs' convention.
	ProjectDir string

	// WorkspacePath is ProjectDir/.voxsweep.
	WorkspacePath string

	Project ProjectConfig
}

// InitWorkspace creates the .voxsweep directory structure plus the artifact
// roots the external programs expect.
//
// Structure created:
//
//	.voxsweep/
//	├── sweeps/       <- user sweep files (*.yaml)
//	├── logs/         <- dispatcher logbook
//	└── state/
//	    └── runs/     <- per-run manifests
//	logs/rf/          <- trainer checkpoints
//	output_renders/   <- rendered frames/videos
func InitWorkspace(projectDir string) error {
	workspace := filepath.Join(projectDir, WorkspaceDir)
	dirs := []string{
		filepath.Join(workspace, "sweeps"),
		filepath.Join(workspace, "logs"),
		filepath.Join(workspace, "state", "runs"),
		filepath.Join(projectDir, "logs", "rf"),
		filepath.Join(projectDir, "output_renders"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(workspace, "config.yaml"))
}

// NewConfig creates a Config populated from the project's config.yaml, or
// from defaults when none exists yet.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:    projectDir,
		WorkspacePath: filepath.Join(projectDir, WorkspaceDir),
		Project:       defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SweepsDir returns the directory scanned for user sweep files.
func (c *Config) SweepsDir() string {
	return filepath.Join(c.WorkspacePath, "sweeps")
}

// LogsDir returns the dispatcher's own log directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.WorkspacePath, "logs")
}

// RunsDir returns the directory holding per-run manifests.
func (c *Config) RunsDir() string {
	return filepath.Join(c.WorkspacePath, "state", "runs")
}

// ProjectConfigPath returns the on-disk location of the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.WorkspacePath, "config.yaml")
}

// Python returns the configured interpreter.
func (c *Config) Python() string {
	return c.Project.Python
}

// DataRoot returns the root directory holding scene datasets, relative to
// the project root.
func (c *Config) DataRoot() string {
	return c.Project.DataRoot
}

// Scripts returns the external program paths.
func (c *Config) Scripts() ScriptPaths {
	return c.Project.Scripts
}

// DefaultSweep returns the configured default sweep identifier.
func (c *Config) DefaultSweep() string {
	return c.Project.Sweeps.Default
}

// SetDefaultSweep updates the default sweep identifier and persists the
// value back to .voxsweep/config.yaml. The sweep ID is also appended to the
// available list so the picker can surface it on future launches.
func (c *Config) SetDefaultSweep(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("config: sweep id is required")
	}
	c.Project.Sweeps.Default = id
	if !contains(c.Project.Sweeps.Available, id) {
		c.Project.Sweeps.Available = append(c.Project.Sweeps.Available, id)
	}
	return c.saveProjectConfig()
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Python:  defaultPython,
		Scripts: ScriptPaths{
			Train:  defaultTrainScript,
			Edit:   defaultEditScript,
			Render: defaultRenderScript,
		},
		DataRoot: defaultDataRoot,
		Sweeps: SweepPrefs{
			Default: defaultSweepID,
		},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.Python == "" {
		pc.Python = defaultPython
	}
	if pc.Scripts.Train == "" {
		pc.Scripts.Train = defaultTrainScript
	}
	if pc.Scripts.Edit == "" {
		pc.Scripts.Edit = defaultEditScript
	}
	if pc.Scripts.Render == "" {
		pc.Scripts.Render = defaultRenderScript
	}
	if pc.DataRoot == "" {
		pc.DataRoot = defaultDataRoot
	}
}

func (pc *ProjectConfig) normalize() {
	pc.Python = strings.TrimSpace(pc.Python)
	pc.Scripts.Train = strings.TrimSpace(pc.Scripts.Train)
	pc.Scripts.Edit = strings.TrimSpace(pc.Scripts.Edit)
	pc.Scripts.Render = strings.TrimSpace(pc.Scripts.Render)
	pc.DataRoot = strings.TrimSpace(pc.DataRoot)
	pc.Sweeps.Default = strings.TrimSpace(pc.Sweeps.Default)
	if pc.Sweeps.Default == "" {
		pc.Sweeps.Default = defaultSweepID
	}
	if len(pc.Sweeps.Available) > 0 && !contains(pc.Sweeps.Available, pc.Sweeps.Default) {
		pc.Sweeps.Available = append(pc.Sweeps.Available, pc.Sweeps.Default)
	}
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if pc.Python == "" {
		return fmt.Errorf("python interpreter is required")
	}
	if pc.Scripts.Train == "" || pc.Scripts.Edit == "" || pc.Scripts.Render == "" {
		return fmt.Errorf("scripts.train, scripts.edit and scripts.render are required")
	}
	if pc.DataRoot == "" {
		return fmt.Errorf("data_root is required")
	}
	if pc.Sweeps.Default == "" {
		return fmt.Errorf("sweeps.default is required")
	}
	return nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return true
		}
	}
	return false
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644)
}

func (c *Config) saveProjectConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	c.Project.normalize()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.WorkspacePath, 0o755); err != nil {
		return fmt.Errorf("config: ensure workspace dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}
