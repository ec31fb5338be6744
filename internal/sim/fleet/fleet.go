// Package fleet drives a set of engines over an in-memory bus until the
// allocation settles or the scenario's tick count runs out.
package fleet

import (
	"fmt"
	"log"

	"github.com/robolibs/consens"
	"github.com/robolibs/consens/internal/metrics"
	"github.com/robolibs/consens/internal/sim/scenario"
	"github.com/robolibs/consens/internal/transport/membus"
)

// Event is one allocation change, written to the run log as it happens.
type Event struct {
	Tick  int     `json:"tick"`
	Agent string  `json:"agent"`
	Kind  string  `json:"kind"` // claim | release | converged
	Task  string  `json:"task,omitempty"`
	Score float64 `json:"score,omitempty"`
}

// EventSink receives events during a run. runlog.Writer satisfies it.
type EventSink interface {
	Write(v any) error
}

// TickStats summarizes one fleet tick.
type TickStats struct {
	Tick            int
	AssignedTasks   int
	ConvergedAgents int
}

// Result is the outcome of a run.
type Result struct {
	TicksRun    int
	Converged   bool
	Assignments map[string]string // task -> agent
	Paths       map[string][]string
	Scores      map[string]float64
}

type Fleet struct {
	log *log.Logger
	sc  scenario.Scenario
	bus *membus.Bus

	engines []*consens.Engine

	// Optional hooks.
	Sink      EventSink
	Collector *metrics.Collector
	OnTick    func(TickStats)

	prevBundles map[string]map[string]bool
	prevCounts  map[string]uint64
}

func New(sc scenario.Scenario, logger *log.Logger) (*Fleet, error) {
	f := &Fleet{
		log:         logger,
		sc:          sc,
		bus:         membus.New(),
		prevBundles: make(map[string]map[string]bool),
		prevCounts:  make(map[string]uint64),
	}
	for _, a := range sc.Agents {
		cfg := sc.EngineConfig(a.ID)
		cfg.Send, cfg.Receive = f.bus.Endpoint(a.ID)
		eng, err := consens.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", a.ID, err)
		}
		eng.UpdatePose(a.Pose())
		eng.UpdateVelocity(a.Velocity)
		for _, t := range sc.Tasks {
			eng.AddTask(t.BuildTask())
		}
		f.engines = append(f.engines, eng)
		f.prevBundles[a.ID] = make(map[string]bool)
	}
	return f, nil
}

func (f *Fleet) Engines() []*consens.Engine { return f.engines }

// Run ticks every engine in lockstep. It stops early once every agent reports
// a converged winners table.
func (f *Fleet) Run() Result {
	ticksRun := 0
	allConverged := false
	for tick := 1; tick <= f.sc.Ticks; tick++ {
		ticksRun = tick
		for _, eng := range f.engines {
			eng.Tick(f.sc.Dt)
			f.countMessages(eng)
		}
		stats := f.collectTick(tick)
		if f.OnTick != nil {
			f.OnTick(stats)
		}
		if stats.ConvergedAgents == len(f.engines) {
			allConverged = true
			break
		}
	}
	if allConverged {
		f.emit(Event{Tick: ticksRun, Kind: "converged"})
		f.log.Printf("fleet converged after %d ticks", ticksRun)
	} else {
		f.log.Printf("fleet did not converge within %d ticks", f.sc.Ticks)
	}
	return f.result(ticksRun, allConverged)
}

func (f *Fleet) countMessages(eng *consens.Engine) {
	if f.Collector == nil {
		return
	}
	f.Collector.MessagesSent.WithLabelValues(eng.AgentID()).Inc()
	failures := eng.DecodeFailures()
	if prev := f.prevCounts[eng.AgentID()]; failures > prev {
		f.Collector.DecodeFailures.WithLabelValues(eng.AgentID()).Add(float64(failures - prev))
		f.prevCounts[eng.AgentID()] = failures
	}
}

// collectTick diffs bundles for claim/release events and tallies the tick.
func (f *Fleet) collectTick(tick int) TickStats {
	stats := TickStats{Tick: tick}
	assigned := make(map[string]bool)

	for _, eng := range f.engines {
		id := eng.AgentID()
		current := make(map[string]bool)
		for _, taskID := range eng.Bundle() {
			current[taskID] = true
			assigned[taskID] = true
		}
		prev := f.prevBundles[id]
		for taskID := range current {
			if !prev[taskID] {
				f.emit(Event{Tick: tick, Agent: id, Kind: "claim", Task: taskID})
			}
		}
		for taskID := range prev {
			if !current[taskID] {
				f.emit(Event{Tick: tick, Agent: id, Kind: "release", Task: taskID})
			}
		}
		f.prevBundles[id] = current

		if eng.HasConverged() {
			stats.ConvergedAgents++
		}
	}

	stats.AssignedTasks = len(assigned)
	if f.Collector != nil {
		f.Collector.TicksTotal.Inc()
		f.Collector.ConvergedAgents.Set(float64(stats.ConvergedAgents))
		f.Collector.AssignedTasks.Set(float64(stats.AssignedTasks))
	}
	return stats
}

func (f *Fleet) emit(ev Event) {
	if f.Sink == nil {
		return
	}
	if err := f.Sink.Write(ev); err != nil {
		f.log.Printf("event sink: %v", err)
	}
}

func (f *Fleet) result(ticksRun int, converged bool) Result {
	res := Result{
		TicksRun:    ticksRun,
		Converged:   converged,
		Assignments: make(map[string]string),
		Paths:       make(map[string][]string),
		Scores:      make(map[string]float64),
	}
	for _, eng := range f.engines {
		id := eng.AgentID()
		res.Paths[id] = eng.Path()
		res.Scores[id] = eng.TotalScore()
		for _, taskID := range eng.Bundle() {
			res.Assignments[taskID] = id
		}
	}
	return res
}
