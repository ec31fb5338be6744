// Package consens is a decentralized multi-agent task allocation engine.
// Each agent runs its own Engine; engines exchange opaque message bytes
// through host-supplied callbacks and converge on a conflict-free assignment
// using the consensus-based bundle algorithm.
package consens

import (
	"errors"
	"fmt"
	"log"

	"github.com/robolibs/consens/internal/cbba"
	"github.com/robolibs/consens/internal/geo"
	"github.com/robolibs/consens/internal/protocol"
	"github.com/robolibs/consens/internal/spatial"
	"github.com/robolibs/consens/internal/task"
)

// Re-exported core types. Hosts construct tasks and poses with these.
type (
	Point       = geo.Point
	Pose        = geo.Pose
	BoundingBox = geo.BoundingBox
	Task        = task.Task
)

type Metric = cbba.Metric

const (
	MetricRPT = cbba.MetricRPT
	MetricTDR = cbba.MetricTDR
)

type BundleMode = cbba.Mode

const (
	BundleModeAdd  = cbba.ModeAdd
	BundleModeFull = cbba.ModeFull
)

// NewPointTask creates a task at a single location.
func NewPointTask(id string, position Point, duration float64) Task {
	return task.NewPoint(id, position, duration)
}

// NewGeometricTask creates a head/tail task such as a row or swath.
func NewGeometricTask(id string, head, tail Point, duration float64) Task {
	return task.NewGeometric(id, head, tail, duration)
}

// SendFunc broadcasts one encoded snapshot to all neighbors, fire-and-forget.
type SendFunc func(data []byte)

// ReceiveFunc returns the opaque message blobs received since the last call.
type ReceiveFunc func() [][]byte

// ErrConfigInvalid wraps all construction-time configuration rejections.
var ErrConfigInvalid = errors.New("consens: invalid config")

type Config struct {
	AgentID string

	MaxBundleSize      int
	SpatialQueryRadius float64
	BundleMode         BundleMode
	Metric             Metric
	Lambda             float64

	EnableConvergenceDetection bool

	Send    SendFunc
	Receive ReceiveFunc

	// Logger is optional; nil keeps the engine silent.
	Logger *log.Logger
}

// DefaultConfig returns the baseline configuration for one agent.
func DefaultConfig(agentID string) Config {
	return Config{
		AgentID:                    agentID,
		MaxBundleSize:              10,
		SpatialQueryRadius:         100,
		BundleMode:                 BundleModeAdd,
		Metric:                     MetricRPT,
		Lambda:                     0.95,
		EnableConvergenceDetection: true,
	}
}

func (c Config) validate() error {
	if c.AgentID == "" {
		return fmt.Errorf("%w: agent id required", ErrConfigInvalid)
	}
	if c.MaxBundleSize <= 0 {
		return fmt.Errorf("%w: max bundle size must be positive", ErrConfigInvalid)
	}
	if c.SpatialQueryRadius <= 0 {
		return fmt.Errorf("%w: spatial query radius must be positive", ErrConfigInvalid)
	}
	if c.Lambda <= 0 || c.Lambda >= 1 {
		return fmt.Errorf("%w: lambda must be in (0,1)", ErrConfigInvalid)
	}
	return nil
}

// Statistics is the host-facing progress snapshot.
type Statistics struct {
	IterationCount int
	BundleSize     int
	TotalTasks     int
	TotalPathScore float64
	Converged      bool
}

// Engine hosts one agent's allocation state. It is single-threaded: Tick and
// every other method must be called from one goroutine; callbacks fire on the
// calling goroutine and a tick completes synchronously.
type Engine struct {
	cfg Config

	state    *cbba.State
	index    *spatial.Index
	builder  cbba.Builder
	resolver cbba.Resolver

	iterationCount int
	currentTime    float64
	decodeFailures uint64
}

func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg}
	e.initAgent()
	if cfg.Logger != nil {
		cfg.Logger.Printf("agent %s initialized", cfg.AgentID)
	}
	return e, nil
}

func (e *Engine) initAgent() {
	e.state = cbba.NewState(e.cfg.AgentID, e.cfg.MaxBundleSize)
	if e.index == nil {
		e.index = spatial.NewIndex()
	}
	e.builder = cbba.Builder{
		Scorer:      cbba.Scorer{Metric: e.cfg.Metric, Lambda: e.cfg.Lambda},
		Index:       e.index,
		QueryRadius: e.cfg.SpatialQueryRadius,
		Mode:        e.cfg.BundleMode,
	}
}

func (e *Engine) AgentID() string { return e.cfg.AgentID }

func (e *Engine) UpdatePose(pose Pose) { e.state.Pose = pose }

func (e *Engine) UpdateVelocity(velocity float64) { e.state.Velocity = velocity }

func (e *Engine) Pose() Pose { return e.state.Pose }

func (e *Engine) Velocity() float64 { return e.state.Velocity }

// AddTask inserts or replaces the task in the spatial index.
func (e *Engine) AddTask(t Task) { e.index.Insert(t) }

// RemoveTask drops the task from the index and from this agent's bundle and
// path. Winning-bid and winner records stay until reset or eviction.
func (e *Engine) RemoveTask(id string) {
	e.index.Remove(id)
	e.state.RemoveFromBundle(id)
}

// MarkTaskCompleted flags the task and releases it locally while leaving the
// bid and winner records intact so neighbors can learn it is being wound down.
func (e *Engine) MarkTaskCompleted(id string) {
	t, ok := e.index.Get(id)
	if !ok {
		return
	}
	t.Completed = true
	e.index.Insert(t)
	e.state.RemoveFromBundle(id)
}

// Tick runs one allocation round: grow the bundle, broadcast the snapshot,
// drain and resolve inbound messages, then diff the winners table for
// convergence.
func (e *Engine) Tick(dt float64) {
	e.iterationCount++
	e.currentTime += dt
	e.state.SetOwnTimestamp(e.currentTime)

	e.builder.Build(e.state, e.availableTasks())

	if e.cfg.Send != nil {
		e.cfg.Send(protocol.Encode(cbba.Snapshot(e.state, e.currentTime)))
	}

	if e.cfg.Receive != nil {
		blobs := e.cfg.Receive()
		msgs := make([]cbba.Message, 0, len(blobs))
		for _, blob := range blobs {
			m, err := protocol.Decode(blob)
			if err != nil {
				e.decodeFailures++
				continue
			}
			msgs = append(msgs, m)
		}
		e.resolver.Resolve(e.state, msgs)
	}

	if e.cfg.EnableConvergenceDetection {
		e.state.CheckConvergence()
	}
}

// availableTasks lists tasks that are not completed and not already claimed
// in this agent's bundle.
func (e *Engine) availableTasks() []string {
	var out []string
	for _, t := range e.index.AllTasks() {
		if t.Completed {
			continue
		}
		if e.state.Bundle.Contains(t.ID) {
			continue
		}
		out = append(out, t.ID)
	}
	return out
}

func (e *Engine) Bundle() []string { return e.state.Bundle.Tasks() }

func (e *Engine) Path() []string { return e.state.Path.Tasks() }

// NextTask is the first path entry, ok=false when the path is empty.
func (e *Engine) NextTask() (string, bool) {
	if e.state.Path.Empty() {
		return "", false
	}
	return e.state.Path.Front(), true
}

func (e *Engine) GetTask(id string) (Task, bool) { return e.index.Get(id) }

func (e *Engine) AllTasks() []Task { return e.index.AllTasks() }

func (e *Engine) Winner(taskID string) string { return e.state.Winner(taskID) }

func (e *Engine) HasConverged() bool { return e.state.Converged }

// TotalScore sums this agent's own marginal gains over its path, skipping
// entries without a local bid.
func (e *Engine) TotalScore() float64 {
	total := 0.0
	for _, id := range e.state.Path.Tasks() {
		if s := e.state.LocalBid(id); s > cbba.MinScore {
			total += s
		}
	}
	return total
}

// DecodeFailures counts inbound blobs dropped as malformed.
func (e *Engine) DecodeFailures() uint64 { return e.decodeFailures }

func (e *Engine) Statistics() Statistics {
	return Statistics{
		IterationCount: e.iterationCount,
		BundleSize:     e.state.Bundle.Size(),
		TotalTasks:     e.index.Size(),
		TotalPathScore: e.TotalScore(),
		Converged:      e.state.Converged,
	}
}

// Reset wipes bundle, path, bids, timestamps and counters. The agent keeps
// its identity, configuration and task store.
func (e *Engine) Reset() {
	pose := e.state.Pose
	velocity := e.state.Velocity
	e.initAgent()
	e.state.Pose = pose
	e.state.Velocity = velocity
	e.iterationCount = 0
	e.currentTime = 0
	e.decodeFailures = 0
	if e.cfg.Logger != nil {
		e.cfg.Logger.Printf("agent %s reset", e.cfg.AgentID)
	}
}
