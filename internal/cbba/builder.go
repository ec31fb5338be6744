package cbba

import "github.com/robolibs/consens/internal/spatial"

// Mode controls how much of the bundle one Build call may fill.
type Mode int

const (
	// ModeAdd grows the bundle by at most one task per call, interleaving
	// growth with consensus rounds.
	ModeAdd Mode = iota
	// ModeFull keeps adding until the bundle is full or no candidate passes.
	ModeFull
)

// Builder grows an agent's bundle greedily: the candidate set is the spatial
// neighborhood intersected with the caller's available list, and each pick is
// the task with the best optimal-insertion marginal gain.
type Builder struct {
	Scorer      Scorer
	Index       *spatial.Index
	QueryRadius float64
	Mode        Mode
}

// Build returns the number of tasks added.
func (b *Builder) Build(st *State, available []string) int {
	if b.Mode == ModeAdd {
		if b.addOne(st, available) {
			return 1
		}
		return 0
	}
	added := 0
	for !st.Bundle.Full() {
		if !b.addOne(st, available) {
			break
		}
		added++
	}
	return added
}

func (b *Builder) candidates(st *State, available []string) []string {
	avail := make(map[string]bool, len(available))
	for _, id := range available {
		avail[id] = true
	}
	nearby := b.Index.QueryRadius(st.Pose.Position, b.QueryRadius)
	out := nearby[:0]
	for _, id := range nearby {
		if avail[id] {
			out = append(out, id)
		}
	}
	return out
}

func (b *Builder) addOne(st *State, available []string) bool {
	if st.Bundle.Full() {
		return false
	}

	candidates := b.candidates(st, available)
	if len(candidates) == 0 {
		return false
	}

	bestID := ""
	bestScore := MinScore
	bestPos := 0
	for _, id := range candidates {
		if st.Bundle.Contains(id) {
			continue
		}
		if !b.Index.Has(id) {
			continue
		}
		score, pos := b.Scorer.FindOptimalInsertion(st, id, &st.Path, b.Index)
		if score > bestScore {
			bestID = id
			bestScore = score
			bestPos = pos
		}
	}
	if bestID == "" {
		return false
	}

	if !b.shouldBid(st, bestID, bestScore) {
		return false
	}

	st.AddToBundle(bestID, bestScore, bestPos)
	return true
}

// shouldBid admits the task when nobody holds it yet or our tentative bid
// wins the auction order.
func (b *Builder) shouldBid(st *State, taskID string, score float64) bool {
	current := st.WinningBid(taskID)
	if !current.Valid() {
		return true
	}
	tentative := Bid{AgentID: st.ID, Score: score, Timestamp: st.TimestampFor(st.ID)}
	return tentative.Beats(current)
}
