package cbba

import (
	"reflect"
	"testing"

	"github.com/robolibs/consens/internal/geo"
	"github.com/robolibs/consens/internal/spatial"
	"github.com/robolibs/consens/internal/task"
)

func newTestBuilder(idx *spatial.Index, mode Mode) *Builder {
	return &Builder{
		Scorer:      Scorer{Metric: MetricRPT},
		Index:       idx,
		QueryRadius: 100,
		Mode:        mode,
	}
}

func TestBuildAddsClosestFirst(t *testing.T) {
	idx := spatial.NewIndex()
	idx.Insert(task.NewPoint("near", geo.Point{X: 10, Y: 0}, 5))
	idx.Insert(task.NewPoint("far", geo.Point{X: 50, Y: 0}, 5))

	st := newTestAgent(0, 0, 2)
	b := newTestBuilder(idx, ModeAdd)

	if added := b.Build(st, []string{"near", "far"}); added != 1 {
		t.Fatalf("added = %d, want 1", added)
	}
	if !reflect.DeepEqual(st.Bundle.Tasks(), []string{"near"}) {
		t.Fatalf("bundle = %v, want [near]", st.Bundle.Tasks())
	}
	if st.Winner("near") != st.ID {
		t.Fatalf("winner = %q, want self", st.Winner("near"))
	}
	if st.LocalBid("near") == MinScore {
		t.Fatalf("local bid not recorded")
	}
	if !st.Path.Contains("near") {
		t.Fatalf("path missing the claimed task")
	}
}

func TestBuildFullFillsBundle(t *testing.T) {
	idx := spatial.NewIndex()
	ids := []string{"t1", "t2", "t3", "t4"}
	for i, id := range ids {
		idx.Insert(task.NewPoint(id, geo.Point{X: float64(10 * (i + 1)), Y: 0}, 1))
	}

	st := NewState("a1", 3)
	st.Velocity = 2
	b := newTestBuilder(idx, ModeFull)

	if added := b.Build(st, ids); added != 3 {
		t.Fatalf("added = %d, want capacity 3", added)
	}
	if !st.Bundle.Full() {
		t.Fatalf("bundle should be full")
	}
	// Greedy insertion on a line keeps execution order by distance.
	if !reflect.DeepEqual(st.Path.Tasks(), []string{"t1", "t2", "t3"}) {
		t.Fatalf("path = %v", st.Path.Tasks())
	}
}

func TestBuildRespectsQueryRadius(t *testing.T) {
	idx := spatial.NewIndex()
	idx.Insert(task.NewPoint("outside", geo.Point{X: 500, Y: 0}, 1))

	st := newTestAgent(0, 0, 2)
	b := newTestBuilder(idx, ModeFull)

	if added := b.Build(st, []string{"outside"}); added != 0 {
		t.Fatalf("added distant task beyond the query radius")
	}
}

func TestBuildSkipsUnavailable(t *testing.T) {
	idx := spatial.NewIndex()
	idx.Insert(task.NewPoint("t1", geo.Point{X: 10, Y: 0}, 1))
	idx.Insert(task.NewPoint("t2", geo.Point{X: 20, Y: 0}, 1))

	st := newTestAgent(0, 0, 2)
	b := newTestBuilder(idx, ModeFull)

	b.Build(st, []string{"t2"})
	if st.Bundle.Contains("t1") {
		t.Fatalf("claimed a task outside the available list")
	}
	if !st.Bundle.Contains("t2") {
		t.Fatalf("available task not claimed")
	}
}

func TestBuildDoesNotOutbidBetterBid(t *testing.T) {
	idx := spatial.NewIndex()
	idx.Insert(task.NewPoint("t1", geo.Point{X: 10, Y: 0}, 5))

	st := newTestAgent(0, 0, 2)
	// Someone else already holds it with an unbeatable score.
	st.UpdateWinningBid("t1", Bid{AgentID: "other", Score: 1000, Timestamp: 1})

	b := newTestBuilder(idx, ModeAdd)
	if added := b.Build(st, []string{"t1"}); added != 0 {
		t.Fatalf("outbid a strictly better bid")
	}
	if st.Winner("t1") != "other" {
		t.Fatalf("winner overwritten")
	}
}

func TestBuildOverridesInvalidBid(t *testing.T) {
	idx := spatial.NewIndex()
	idx.Insert(task.NewPoint("t1", geo.Point{X: 10, Y: 0}, 5))

	st := newTestAgent(0, 0, 2)
	st.UpdateWinningBid("t1", InvalidBid())

	b := newTestBuilder(idx, ModeAdd)
	if added := b.Build(st, []string{"t1"}); added != 1 {
		t.Fatalf("invalid bid should not block a claim")
	}
}

func TestBuildStopsAtCapacity(t *testing.T) {
	idx := spatial.NewIndex()
	idx.Insert(task.NewPoint("t1", geo.Point{X: 10, Y: 0}, 1))

	st := NewState("a1", 1)
	st.Velocity = 2
	st.Bundle.Add("already")

	b := newTestBuilder(idx, ModeAdd)
	if added := b.Build(st, []string{"t1"}); added != 0 {
		t.Fatalf("added into a full bundle")
	}
}

func TestBuildSkipsTasksMissingFromIndex(t *testing.T) {
	idx := spatial.NewIndex()
	idx.Insert(task.NewPoint("t1", geo.Point{X: 10, Y: 0}, 1))

	st := newTestAgent(0, 0, 2)
	b := newTestBuilder(idx, ModeFull)

	// "ghost" is available but unknown to the index.
	if added := b.Build(st, []string{"t1", "ghost"}); added != 1 {
		t.Fatalf("added = %d, want 1", added)
	}
}
