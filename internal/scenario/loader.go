// Package scenario provides scenario definition loading and validation.
// Scenario definitions specify what to run against a target (adapter
// category, adapter options, ordered operations) as opposed to how the
// run executes (see benchmark.Runner for execution).
package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/betateam/betabench/internal/adapter"
	"github.com/betateam/betabench/internal/benchmark"
)

var (
	errNameRequired      = errors.New("scenario name is required")
	errCategoryRequired  = errors.New("category is required")
	errStepsRequired     = errors.New("scenario must have at least one step")
	errOperationRequired = errors.New("step operation is required")
)

// Definition represents a complete scenario file: which adapter
// category it targets, how that adapter is configured, and the ordered
// operations to run.
type Definition struct {
	Name     string           `yaml:"name"`
	Category adapter.Category `yaml:"category"`
	Target   string           `yaml:"target"`
	Options  yaml.Node        `yaml:"options"`
	Steps    []*StepDef       `yaml:"steps"`
}

// StepDef is one operation entry in a scenario file.
type StepDef struct {
	Operation string            `yaml:"operation"`
	Params    map[string]string `yaml:"params,omitempty"`
}

// AdapterOptions decodes the scenario's options block into the typed
// options struct for its category. A missing options block yields the
// category's defaults.
func (d *Definition) AdapterOptions() (adapter.Options, error) {
	var node *yaml.Node
	if d.Options.Kind != 0 {
		node = &d.Options
	}

	opts, err := adapter.UnmarshalOptions(d.Category, node)
	if err != nil {
		return nil, fmt.Errorf("decoding options for scenario %s: %w", d.Name, err)
	}

	return opts, nil
}

// Scenario converts the definition into a runnable benchmark scenario.
func (d *Definition) Scenario() benchmark.Scenario {
	steps := make([]benchmark.Step, 0, len(d.Steps))
	for _, s := range d.Steps {
		steps = append(steps, benchmark.Step{
			Operation: s.Operation,
			Params:    adapter.Params(s.Params),
		})
	}

	return benchmark.Scenario{Name: d.Name, Steps: steps}
}

// Descriptor builds the target descriptor the adapter connects to.
func (d *Definition) Descriptor() adapter.TargetDescriptor {
	return adapter.TargetDescriptor{
		Location: d.Target,
		Category: d.Category,
	}
}

// Loader loads scenario definition files.
type Loader interface {
	Load(name string) (*Definition, error)
	LoadAll() (map[string]*Definition, error)
	Names() ([]string, error)
}

type loader struct {
	baseDir string
	log     logrus.FieldLogger
}

// NewLoader creates a scenario loader rooted at baseDir.
func NewLoader(log logrus.FieldLogger, baseDir string) Loader {
	return &loader{
		baseDir: baseDir,
		log:     log.WithField("component", "scenario_loader"),
	}
}

// Load loads a single scenario by name.
func (l *loader) Load(name string) (*Definition, error) {
	path := filepath.Join(l.baseDir, name+".yaml")

	l.log.WithFields(logrus.Fields{
		"scenario": name,
		"path":     path,
	}).Debug("loading scenario definition")

	def, err := l.loadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading scenario from %s: %w", path, err)
	}

	if err := l.validateDefinition(def); err != nil {
		return nil, fmt.Errorf("validating scenario %s: %w", name, err)
	}

	return def, nil
}

// LoadAll loads every scenario definition under the base directory.
// Invalid files are logged and skipped rather than failing the whole
// set.
func (l *loader) LoadAll() (map[string]*Definition, error) {
	entries, err := os.ReadDir(l.baseDir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", l.baseDir, err)
	}

	defs := make(map[string]*Definition)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".yaml")
		path := filepath.Join(l.baseDir, entry.Name())

		def, err := l.loadFile(path)
		if err != nil {
			l.log.WithError(err).WithField("file", entry.Name()).Warn("failed to load scenario, skipping")
			continue
		}

		if err := l.validateDefinition(def); err != nil {
			l.log.WithError(err).WithField("scenario", name).Warn("invalid scenario, skipping")
			continue
		}

		defs[name] = def
	}

	return defs, nil
}

// Names lists the scenario names available under the base directory,
// sorted.
func (l *loader) Names() ([]string, error) {
	entries, err := os.ReadDir(l.baseDir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", l.baseDir, err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
	}

	sort.Strings(names)

	return names, nil
}

func (l *loader) loadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	return &def, nil
}

func (l *loader) validateDefinition(def *Definition) error {
	if def.Name == "" {
		return errNameRequired
	}

	if def.Category == "" {
		return errCategoryRequired
	}

	if !def.Category.Known() {
		return &adapter.UnknownCategoryError{Category: def.Category}
	}

	if len(def.Steps) == 0 {
		return errStepsRequired
	}

	for i, step := range def.Steps {
		if step.Operation == "" {
			return fmt.Errorf("step %d: %w", i, errOperationRequired)
		}
	}

	return nil
}
