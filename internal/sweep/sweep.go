// Package sweep names ordered lists of run specifications. A sweep is the
// unit the dispatcher executes: its active specs run back to back on one
// GPU, in source order.
package sweep

import (
	"fmt"
	"sort"
	"strings"

	"github.com/voxsweep/voxsweep/internal/runspec"
)

// Sweep is a named, ordered list of run specifications.
type Sweep struct {
	Name  string         `yaml:"name"`
	Specs []runspec.Spec `yaml:"runs"`
}

// Active returns the specs that will actually be dispatched, in order.
func (s Sweep) Active() []runspec.Spec {
	var active []runspec.Spec
	for _, spec := range s.Specs {
		if spec.Skip {
			continue
		}
		active = append(active, spec)
	}
	return active
}

// Validate applies defaults to every entry and checks the sweep is
// dispatchable. Skipped entries are validated too so a sweep file does not
// rot silently while an entry is parked.
func (s *Sweep) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("sweep: name is required")
	}
	if len(s.Specs) == 0 {
		return fmt.Errorf("sweep: %s has no runs", s.Name)
	}
	for i := range s.Specs {
		s.Specs[i].ApplyDefaults()
		if err := s.Specs[i].Validate(); err != nil {
			return fmt.Errorf("sweep: %s run %d: %w", s.Name, i, err)
		}
	}
	return nil
}

// Registry holds the known sweeps, built-in and loaded.
type Registry struct {
	sweeps map[string]Sweep
}

// NewRegistry returns a registry pre-populated with the built-in sweeps.
func NewRegistry() *Registry {
	r := &Registry{sweeps: map[string]Sweep{}}
	for _, s := range builtins() {
		r.sweeps[s.Name] = s
	}
	return r
}

// Register adds or replaces a sweep. Loaded sweep files shadow built-ins of
// the same name so a project can pin its own hyperparameters.
func (r *Registry) Register(s Sweep) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.sweeps[s.Name] = s
	return nil
}

// Resolve returns the sweep with the given name.
func (r *Registry) Resolve(name string) (Sweep, error) {
	s, ok := r.sweeps[strings.TrimSpace(name)]
	if !ok {
		return Sweep{}, fmt.Errorf("sweep: unknown sweep %q (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	return s, nil
}

// Names lists registered sweep names, sorted for stable display.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sweeps))
	for name := range r.sweeps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
