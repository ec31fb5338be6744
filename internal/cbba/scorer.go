package cbba

import (
	"math"

	"github.com/robolibs/consens/internal/geo"
	"github.com/robolibs/consens/internal/spatial"
)

// Metric selects how a path is scored. Higher is always better.
type Metric int

const (
	// MetricRPT scores a path as the negated total completion time.
	MetricRPT Metric = iota
	// MetricTDR sums lambda^t over the cumulative completion time of each task.
	MetricTDR
)

// DefaultVelocity is the floor applied when an agent reports a non-positive
// velocity.
const DefaultVelocity = 2.0

type Scorer struct {
	Metric Metric
	Lambda float64
}

// EvaluatePath scores the ordered path from the agent's current position.
// Task IDs missing from the index are skipped: the path may transiently hold
// stale entries while the resolver is rearranging claims.
func (sc Scorer) EvaluatePath(st *State, p *Path, index *spatial.Index) float64 {
	if p.Empty() {
		return 0
	}
	if sc.Metric == MetricRPT {
		return -sc.totalTime(st, p, index)
	}
	return sc.discountedReward(st, p, index)
}

// MarginalGain is the score delta from inserting taskID at position.
func (sc Scorer) MarginalGain(st *State, taskID string, p *Path, position int, index *spatial.Index) float64 {
	tmp := Path{tasks: make([]string, 0, p.Size()+1)}
	tmp.tasks = append(tmp.tasks, p.tasks...)
	tmp.Insert(taskID, position)
	return sc.EvaluatePath(st, &tmp, index) - sc.EvaluatePath(st, p, index)
}

// FindOptimalInsertion tries every position in [0, len(path)] and returns the
// best marginal gain with its position. Ties resolve to the smallest index.
func (sc Scorer) FindOptimalInsertion(st *State, taskID string, p *Path, index *spatial.Index) (float64, int) {
	bestScore := math.Inf(-1)
	bestPos := 0
	for pos := 0; pos <= p.Size(); pos++ {
		gain := sc.MarginalGain(st, taskID, p, pos, index)
		if gain > bestScore {
			bestScore = gain
			bestPos = pos
		}
	}
	return bestScore, bestPos
}

func velocityOf(st *State) float64 {
	if st.Velocity <= 0 {
		return DefaultVelocity
	}
	return st.Velocity
}

func travelTime(from, to geo.Point, velocity float64) float64 {
	return from.DistanceTo(to) / velocity
}

func (sc Scorer) totalTime(st *State, p *Path, index *spatial.Index) float64 {
	total := 0.0
	pos := st.Pose.Position
	v := velocityOf(st)
	for _, id := range p.tasks {
		t, ok := index.Get(id)
		if !ok {
			continue
		}
		total += travelTime(pos, t.Position, v)
		total += t.Duration
		pos = t.EndPoint()
	}
	return total
}

func (sc Scorer) discountedReward(st *State, p *Path, index *spatial.Index) float64 {
	reward := 0.0
	elapsed := 0.0
	pos := st.Pose.Position
	v := velocityOf(st)
	for _, id := range p.tasks {
		t, ok := index.Get(id)
		if !ok {
			continue
		}
		elapsed += travelTime(pos, t.Position, v)
		elapsed += t.Duration
		reward += math.Pow(sc.Lambda, elapsed)
		pos = t.EndPoint()
	}
	return reward
}
