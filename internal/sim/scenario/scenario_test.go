package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/robolibs/consens"
)

func TestLoadCrossField(t *testing.T) {
	sc, err := Load(filepath.Join("..", "..", "..", "configs", "scenarios", "cross_field.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sc.Name != "cross_field" || len(sc.Agents) != 3 || len(sc.Tasks) != 7 {
		t.Fatalf("scenario = %+v", sc)
	}

	cfg := sc.EngineConfig("robot_1")
	if cfg.MaxBundleSize != 4 || cfg.SpatialQueryRadius != 150 {
		t.Fatalf("engine config = %+v", cfg)
	}
	if cfg.Metric != consens.MetricRPT || cfg.BundleMode != consens.BundleModeAdd {
		t.Fatalf("engine config metric/mode = %+v", cfg)
	}

	// Geometric task conversion.
	var row *Task
	for i := range sc.Tasks {
		if sc.Tasks[i].ID == "row_a" {
			row = &sc.Tasks[i]
		}
	}
	if row == nil {
		t.Fatalf("row_a missing")
	}
	built := row.BuildTask()
	if !built.HasGeometry || built.Length() != 60 {
		t.Fatalf("row_a built = %+v", built)
	}
}

func TestScenarioMatchesSchema(t *testing.T) {
	schema, err := jsonschema.Compile(filepath.Join("..", "..", "..", "schemas", "scenario.schema.json"))
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join("..", "..", "..", "configs", "scenarios", "cross_field.yaml"))
	if err != nil {
		t.Fatalf("read scenario: %v", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := schema.Validate(doc); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	base := func() Scenario {
		return Scenario{
			Name:  "s",
			Ticks: 10,
			Dt:    0.1,
			Agents: []Agent{
				{ID: "a1", Velocity: 2},
			},
			Tasks: []Task{
				{ID: "t1", X: 1, Y: 1, Duration: 1},
			},
		}
	}

	cases := []struct {
		name   string
		mutate func(*Scenario)
	}{
		{"no name", func(s *Scenario) { s.Name = "" }},
		{"zero ticks", func(s *Scenario) { s.Ticks = 0 }},
		{"zero dt", func(s *Scenario) { s.Dt = 0 }},
		{"no agents", func(s *Scenario) { s.Agents = nil }},
		{"no tasks", func(s *Scenario) { s.Tasks = nil }},
		{"bad mode", func(s *Scenario) { s.Settings.BundleMode = "SOME" }},
		{"bad metric", func(s *Scenario) { s.Settings.Metric = "XXX" }},
		{"dup agent", func(s *Scenario) { s.Agents = append(s.Agents, Agent{ID: "a1"}) }},
		{"dup task", func(s *Scenario) { s.Tasks = append(s.Tasks, Task{ID: "t1"}) }},
		{"half geometry", func(s *Scenario) { s.Tasks[0].Head = &Coord{X: 1, Y: 1} }},
		{"negative duration", func(s *Scenario) { s.Tasks[0].Duration = -1 }},
	}
	for _, tc := range cases {
		s := base()
		tc.mutate(&s)
		if err := s.Validate(); err == nil {
			t.Fatalf("%s: validation passed", tc.name)
		}
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("base scenario invalid: %v", err)
	}
}
