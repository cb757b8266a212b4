// Package runspec defines the Run Specification: one (scene, prompt,
// hyperparameter-set) tuple consumed by the dispatcher to build a training
// invocation and a rendering invocation. The external training and rendering
// programs are opaque; everything here is record keeping and path derivation.
package runspec

import (
	"fmt"
	"strings"
)

// Kind selects which external training program a run uses and how its
// checkpoint paths are derived.
type Kind string

const (
	// KindGenerate trains a fresh SDS voxel grid from the scene dataset.
	KindGenerate Kind = "generate"
	// KindEdit edits a pretrained relu field using an attention index.
	KindEdit Kind = "edit"
	// KindRefine re-trains on top of a reference model and saves the
	// refined checkpoint alongside it.
	KindRefine Kind = "refine"
)

// Hyperparams carries the numeric knobs forwarded to the external trainer.
// Zero values are replaced by the trainer's own defaults via ApplyDefaults.
type Hyperparams struct {
	DensityCorrelationWeight float64 `yaml:"density_correlation_weight"`
	LRDecayStart             int     `yaml:"lr_decay_start"`
	LRGamma                  float64 `yaml:"lr_gamma"`
	LRFreq                   int     `yaml:"lr_freq"`
	SDSTStart                int     `yaml:"sds_t_start"`
	SDSTFreq                 int     `yaml:"sds_t_freq"`
	SDSTGamma                float64 `yaml:"sds_t_gamma"`
	NumIterations            int     `yaml:"num_iterations"`
	SHDegree                 int     `yaml:"sh_degree"`
	SaveFreq                 int     `yaml:"save_freq"`
}

// Spec is one Run Specification. It is constructed from a built-in sweep or
// a YAML sweep file, validated once, and then read-only for the rest of its
// life.
type Spec struct {
	Scene       string `yaml:"scene"`
	Prompt      string `yaml:"prompt"`
	Directional bool   `yaml:"directional"`
	LogName     string `yaml:"log_name"`
	Kind        Kind   `yaml:"kind"`

	// Skip marks an inactive entry. Skipped specs stay in the sweep for
	// provenance but are never dispatched.
	Skip bool `yaml:"skip"`

	// EditIndex is the attention index passed to the edit program. Only
	// meaningful for edit runs.
	EditIndex int `yaml:"edit_index"`

	Hyperparams `yaml:",inline"`
}

// Trainer defaults, mirrored from the external training program.
const (
	DefaultLRDecayStart  = 5000
	DefaultLRGamma       = 0.8
	DefaultLRFreq        = 400
	DefaultSDSTStart     = 1500
	DefaultSDSTFreq      = 200
	DefaultSDSTGamma     = 1.0
	DefaultNumIterations = 2000
	DefaultSaveFreq      = 50
)

// ApplyDefaults fills unset fields with the external trainer's defaults so a
// sweep entry only has to name what it overrides.
func (s *Spec) ApplyDefaults() {
	if s.Kind == "" {
		s.Kind = KindGenerate
	}
	if s.LRDecayStart == 0 {
		s.LRDecayStart = DefaultLRDecayStart
	}
	if s.LRGamma == 0 {
		s.LRGamma = DefaultLRGamma
	}
	if s.LRFreq == 0 {
		s.LRFreq = DefaultLRFreq
	}
	if s.SDSTStart == 0 {
		s.SDSTStart = DefaultSDSTStart
	}
	if s.SDSTFreq == 0 {
		s.SDSTFreq = DefaultSDSTFreq
	}
	if s.SDSTGamma == 0 {
		s.SDSTGamma = DefaultSDSTGamma
	}
	if s.NumIterations == 0 {
		s.NumIterations = DefaultNumIterations
	}
	if s.SaveFreq == 0 {
		s.SaveFreq = DefaultSaveFreq
	}
}

// Validate checks the spec before dispatch. The external programs would fail
// later anyway, but failing here names the offending field instead of
// surfacing as a Python stack trace minutes into a sweep.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Scene) == "" {
		return fmt.Errorf("runspec: scene is required")
	}
	if strings.TrimSpace(s.Prompt) == "" {
		return fmt.Errorf("runspec: prompt is required for scene %q", s.Scene)
	}
	if strings.TrimSpace(s.LogName) == "" {
		return fmt.Errorf("runspec: log_name is required for scene %q", s.Scene)
	}
	switch s.Kind {
	case KindGenerate, KindEdit, KindRefine:
	default:
		return fmt.Errorf("runspec: unknown kind %q for scene %q", s.Kind, s.Scene)
	}
	if s.Kind == KindEdit && s.EditIndex < 0 {
		return fmt.Errorf("runspec: edit_index must be >= 0 for scene %q", s.Scene)
	}
	if s.DensityCorrelationWeight < 0 {
		return fmt.Errorf("runspec: density_correlation_weight must be >= 0 for scene %q", s.Scene)
	}
	for name, v := range map[string]int{
		"lr_decay_start": s.LRDecayStart,
		"lr_freq":        s.LRFreq,
		"sds_t_start":    s.SDSTStart,
		"sds_t_freq":     s.SDSTFreq,
		"num_iterations": s.NumIterations,
		"sh_degree":      s.SHDegree,
		"save_freq":      s.SaveFreq,
	} {
		if v < 0 {
			return fmt.Errorf("runspec: %s must be >= 0 for scene %q", name, s.Scene)
		}
	}
	if s.LRGamma <= 0 || s.SDSTGamma <= 0 {
		return fmt.Errorf("runspec: lr_gamma and sds_t_gamma must be > 0 for scene %q", s.Scene)
	}
	return nil
}

// UsesReference reports whether this run reads a previously trained
// reference checkpoint as its input.
func (s Spec) UsesReference() bool {
	return s.Kind == KindEdit || s.Kind == KindRefine
}
