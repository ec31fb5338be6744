// Package scenario loads fleet simulation descriptions from yaml.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/robolibs/consens"
	"github.com/robolibs/consens/internal/geo"
)

type Scenario struct {
	Name  string  `yaml:"name"`
	Ticks int     `yaml:"ticks"`
	Dt    float64 `yaml:"dt"`

	Settings Settings `yaml:"settings"`
	Agents   []Agent  `yaml:"agents"`
	Tasks    []Task   `yaml:"tasks"`
}

type Settings struct {
	MaxBundleSize      int     `yaml:"max_bundle_size"`
	SpatialQueryRadius float64 `yaml:"spatial_query_radius"`
	BundleMode         string  `yaml:"bundle_mode"` // ADD | FULL
	Metric             string  `yaml:"metric"`      // RPT | TDR
	Lambda             float64 `yaml:"lambda"`
}

type Agent struct {
	ID       string  `yaml:"id"`
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Heading  float64 `yaml:"heading"`
	Velocity float64 `yaml:"velocity"`
}

type Coord struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Task is a point task when head/tail are absent, a geometric task otherwise.
type Task struct {
	ID       string  `yaml:"id"`
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Head     *Coord  `yaml:"head"`
	Tail     *Coord  `yaml:"tail"`
	Duration float64 `yaml:"duration"`
}

func Load(path string) (Scenario, error) {
	var s Scenario
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("scenario %s: %w", path, err)
	}
	return s, nil
}

func (s Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("missing name")
	}
	if s.Ticks <= 0 {
		return fmt.Errorf("ticks must be positive")
	}
	if s.Dt <= 0 {
		return fmt.Errorf("dt must be positive")
	}
	if len(s.Agents) == 0 {
		return fmt.Errorf("no agents")
	}
	if len(s.Tasks) == 0 {
		return fmt.Errorf("no tasks")
	}
	switch s.Settings.BundleMode {
	case "", "ADD", "FULL":
	default:
		return fmt.Errorf("unknown bundle_mode %q", s.Settings.BundleMode)
	}
	switch s.Settings.Metric {
	case "", "RPT", "TDR":
	default:
		return fmt.Errorf("unknown metric %q", s.Settings.Metric)
	}
	seen := map[string]bool{}
	for _, a := range s.Agents {
		if a.ID == "" {
			return fmt.Errorf("agent with empty id")
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
	}
	seenTask := map[string]bool{}
	for _, t := range s.Tasks {
		if t.ID == "" {
			return fmt.Errorf("task with empty id")
		}
		if seenTask[t.ID] {
			return fmt.Errorf("duplicate task id %q", t.ID)
		}
		seenTask[t.ID] = true
		if (t.Head == nil) != (t.Tail == nil) {
			return fmt.Errorf("task %q: head and tail must come together", t.ID)
		}
		if t.Duration < 0 {
			return fmt.Errorf("task %q: negative duration", t.ID)
		}
	}
	return nil
}

// EngineConfig maps the scenario settings onto one agent's engine config.
// Unset fields fall back to the engine defaults.
func (s Scenario) EngineConfig(agentID string) consens.Config {
	cfg := consens.DefaultConfig(agentID)
	if s.Settings.MaxBundleSize > 0 {
		cfg.MaxBundleSize = s.Settings.MaxBundleSize
	}
	if s.Settings.SpatialQueryRadius > 0 {
		cfg.SpatialQueryRadius = s.Settings.SpatialQueryRadius
	}
	if s.Settings.BundleMode == "FULL" {
		cfg.BundleMode = consens.BundleModeFull
	}
	if s.Settings.Metric == "TDR" {
		cfg.Metric = consens.MetricTDR
	}
	if s.Settings.Lambda > 0 && s.Settings.Lambda < 1 {
		cfg.Lambda = s.Settings.Lambda
	}
	return cfg
}

// BuildTask converts the yaml record into an engine task.
func (t Task) BuildTask() consens.Task {
	if t.Head != nil && t.Tail != nil {
		return consens.NewGeometricTask(t.ID,
			geo.Point{X: t.Head.X, Y: t.Head.Y},
			geo.Point{X: t.Tail.X, Y: t.Tail.Y},
			t.Duration)
	}
	return consens.NewPointTask(t.ID, geo.Point{X: t.X, Y: t.Y}, t.Duration)
}

// Pose returns the agent's starting pose.
func (a Agent) Pose() consens.Pose {
	return consens.Pose{Position: geo.Point{X: a.X, Y: a.Y}, Heading: a.Heading}
}
