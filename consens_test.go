package consens_test

import (
	"errors"
	"testing"

	"github.com/robolibs/consens"
	"github.com/robolibs/consens/internal/geo"
	"github.com/robolibs/consens/internal/transport/membus"
)

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*consens.Config)
	}{
		{"empty agent id", func(c *consens.Config) { c.AgentID = "" }},
		{"zero bundle size", func(c *consens.Config) { c.MaxBundleSize = 0 }},
		{"negative radius", func(c *consens.Config) { c.SpatialQueryRadius = -1 }},
		{"lambda zero", func(c *consens.Config) { c.Lambda = 0 }},
		{"lambda one", func(c *consens.Config) { c.Lambda = 1 }},
	}
	for _, tc := range cases {
		cfg := consens.DefaultConfig("a1")
		tc.mutate(&cfg)
		if _, err := consens.New(cfg); !errors.Is(err, consens.ErrConfigInvalid) {
			t.Fatalf("%s: err = %v, want ErrConfigInvalid", tc.name, err)
		}
	}

	if _, err := consens.New(consens.DefaultConfig("a1")); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
}

func newEngine(t *testing.T, id string, bus *membus.Bus, x, y float64) *consens.Engine {
	t.Helper()
	cfg := consens.DefaultConfig(id)
	cfg.Send, cfg.Receive = bus.Endpoint(id)
	eng, err := consens.New(cfg)
	if err != nil {
		t.Fatalf("engine %s: %v", id, err)
	}
	eng.UpdatePose(consens.Pose{Position: consens.Point{X: x, Y: y}})
	eng.UpdateVelocity(2)
	return eng
}

func TestTwoAgentsConvergeConflictFree(t *testing.T) {
	bus := membus.New()
	a := newEngine(t, "robot_1", bus, 0, 0)
	b := newEngine(t, "robot_2", bus, 100, 0)

	tasks := []consens.Task{
		consens.NewPointTask("west_1", consens.Point{X: 10, Y: 0}, 5),
		consens.NewPointTask("west_2", consens.Point{X: 20, Y: 5}, 5),
		consens.NewPointTask("east_1", consens.Point{X: 90, Y: 0}, 5),
		consens.NewPointTask("east_2", consens.Point{X: 80, Y: 5}, 5),
	}
	for _, tk := range tasks {
		a.AddTask(tk)
		b.AddTask(tk)
	}

	for i := 0; i < 40; i++ {
		a.Tick(0.1)
		b.Tick(0.1)
		if a.HasConverged() && b.HasConverged() {
			break
		}
	}

	if !a.HasConverged() || !b.HasConverged() {
		t.Fatalf("agents did not converge: a=%v b=%v", a.HasConverged(), b.HasConverged())
	}

	// Conflict-free: no task in both bundles.
	held := map[string]string{}
	for _, eng := range []*consens.Engine{a, b} {
		for _, id := range eng.Bundle() {
			if other, ok := held[id]; ok {
				t.Fatalf("task %s claimed by both %s and %s", id, other, eng.AgentID())
			}
			held[id] = eng.AgentID()
		}
	}
	if len(held) == 0 {
		t.Fatalf("nothing was assigned")
	}

	// Agents agree on every winner both know about.
	for _, id := range []string{"west_1", "west_2", "east_1", "east_2"} {
		wa, wb := a.Winner(id), b.Winner(id)
		if wa != "" && wb != "" && wa != wb {
			t.Fatalf("disagreement on %s: %q vs %q", id, wa, wb)
		}
	}

	// Near tasks go to the near agent.
	if w := a.Winner("west_1"); w != "robot_1" {
		t.Fatalf("west_1 winner = %q, want robot_1", w)
	}
	if w := a.Winner("east_1"); w != "robot_2" {
		t.Fatalf("east_1 winner = %q, want robot_2", w)
	}
}

func TestEngineInvariantsDuringRun(t *testing.T) {
	bus := membus.New()
	a := newEngine(t, "robot_1", bus, 0, 0)
	b := newEngine(t, "robot_2", bus, 30, 0)

	for i := 0; i < 6; i++ {
		id := string(rune('a' + i))
		tk := consens.NewPointTask(id, consens.Point{X: float64(5 * i), Y: 0}, 2)
		a.AddTask(tk)
		b.AddTask(tk)
	}

	for i := 0; i < 30; i++ {
		a.Tick(0.1)
		b.Tick(0.1)
		for _, eng := range []*consens.Engine{a, b} {
			bundle := eng.Bundle()
			if len(bundle) > 10 {
				t.Fatalf("bundle exceeds capacity: %d", len(bundle))
			}
			inPath := map[string]bool{}
			for _, id := range eng.Path() {
				inPath[id] = true
			}
			for _, id := range bundle {
				if !inPath[id] {
					t.Fatalf("bundle task %s missing from path", id)
				}
			}
		}
	}
}

func TestMarkTaskCompleted(t *testing.T) {
	cfg := consens.DefaultConfig("a1")
	eng, err := consens.New(cfg)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	eng.UpdateVelocity(2)
	eng.AddTask(consens.NewPointTask("t1", consens.Point{X: 5, Y: 0}, 1))

	eng.Tick(0.1)
	if len(eng.Bundle()) != 1 {
		t.Fatalf("bundle = %v, want [t1]", eng.Bundle())
	}

	eng.MarkTaskCompleted("t1")
	if len(eng.Bundle()) != 0 || len(eng.Path()) != 0 {
		t.Fatalf("completed task still claimed")
	}
	// Bid and winner records stay so neighbors learn the wind-down.
	if eng.Winner("t1") != "a1" {
		t.Fatalf("winner record dropped on completion")
	}
	tk, ok := eng.GetTask("t1")
	if !ok || !tk.Completed {
		t.Fatalf("completion flag not set: %+v ok=%v", tk, ok)
	}

	// The completed task is never re-claimed.
	eng.Tick(0.1)
	if len(eng.Bundle()) != 0 {
		t.Fatalf("completed task re-claimed")
	}
}

func TestRemoveTask(t *testing.T) {
	eng, err := consens.New(consens.DefaultConfig("a1"))
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	eng.UpdateVelocity(2)
	eng.AddTask(consens.NewPointTask("t1", consens.Point{X: 5, Y: 0}, 1))
	eng.Tick(0.1)

	eng.RemoveTask("t1")
	if _, ok := eng.GetTask("t1"); ok {
		t.Fatalf("removed task still in the index")
	}
	if len(eng.Bundle()) != 0 || len(eng.Path()) != 0 {
		t.Fatalf("removed task still claimed")
	}
}

func TestStatisticsAndReset(t *testing.T) {
	eng, err := consens.New(consens.DefaultConfig("a1"))
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	eng.UpdatePose(consens.Pose{Position: geo.Point{X: 0, Y: 0}})
	eng.UpdateVelocity(2)
	eng.AddTask(consens.NewPointTask("t1", consens.Point{X: 10, Y: 0}, 5))

	eng.Tick(0.1)
	eng.Tick(0.1)

	stats := eng.Statistics()
	if stats.IterationCount != 2 {
		t.Fatalf("iterations = %d, want 2", stats.IterationCount)
	}
	if stats.BundleSize != 1 || stats.TotalTasks != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.TotalPathScore != -10 {
		t.Fatalf("path score = %v, want -10", stats.TotalPathScore)
	}

	next, ok := eng.NextTask()
	if !ok || next != "t1" {
		t.Fatalf("next task = %q ok=%v", next, ok)
	}

	eng.Reset()
	stats = eng.Statistics()
	if stats.IterationCount != 0 || stats.BundleSize != 0 {
		t.Fatalf("reset left stats: %+v", stats)
	}
	// The task store survives a reset.
	if stats.TotalTasks != 1 {
		t.Fatalf("reset dropped tasks: %+v", stats)
	}
	if eng.Pose().Position != (geo.Point{X: 0, Y: 0}) || eng.Velocity() != 2 {
		t.Fatalf("reset dropped pose or velocity")
	}
}

func TestMalformedMessagesDropped(t *testing.T) {
	inbox := [][]byte{{0x01}, {0xff, 0xff, 0xff, 0xff}}
	cfg := consens.DefaultConfig("a1")
	cfg.Receive = func() [][]byte {
		out := inbox
		inbox = nil
		return out
	}
	eng, err := consens.New(cfg)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	eng.Tick(0.1)
	if eng.DecodeFailures() != 2 {
		t.Fatalf("decode failures = %d, want 2", eng.DecodeFailures())
	}
}
