package cbba

import "github.com/robolibs/consens/internal/geo"

// State is one agent's local view of the auction. It is a closed unit: agents
// influence each other only through decoded messages fed to the resolver.
type State struct {
	ID       string
	Pose     geo.Pose
	Velocity float64

	Bundle Bundle
	Path   Path

	// WinningBids is the best bid this agent knows of per task (the y vector);
	// Winners is its agent-id projection (z) and is kept consistent with it.
	WinningBids map[string]Bid
	Winners     map[string]string

	// LocalBids holds this agent's own computed marginal gains for tasks it
	// added to its bundle.
	LocalBids map[string]float64

	// Timestamps tracks the freshest known clock per agent (the s vector),
	// used for multi-hop freshness in conflict resolution.
	Timestamps map[string]float64

	PreviousWinners map[string]string
	Converged       bool
}

func NewState(id string, capacity int) *State {
	return &State{
		ID:              id,
		Bundle:          NewBundle(capacity),
		WinningBids:     make(map[string]Bid),
		Winners:         make(map[string]string),
		LocalBids:       make(map[string]float64),
		Timestamps:      map[string]float64{id: 0},
		PreviousWinners: make(map[string]string),
	}
}

// AddToBundle claims a task: bundle membership, path insertion at position,
// and the winning-bid tables all move together.
func (s *State) AddToBundle(taskID string, score float64, position int) {
	s.Bundle.Add(taskID)
	s.Path.Insert(taskID, position)
	s.UpdateWinningBid(taskID, Bid{AgentID: s.ID, Score: score, Timestamp: s.Timestamps[s.ID]})
	s.LocalBids[taskID] = score
}

// RemoveFromBundle drops the task locally. The winning-bid tables are global
// knowledge and are left alone.
func (s *State) RemoveFromBundle(taskID string) {
	s.Bundle.Remove(taskID)
	s.Path.Remove(taskID)
}

func (s *State) UpdateWinningBid(taskID string, bid Bid) {
	s.WinningBids[taskID] = bid
	s.Winners[taskID] = bid.AgentID
}

// ResetTask invalidates the task's bid and releases it locally.
func (s *State) ResetTask(taskID string) {
	s.WinningBids[taskID] = InvalidBid()
	s.Winners[taskID] = NoAgent
	s.RemoveFromBundle(taskID)
	delete(s.LocalBids, taskID)
}

func (s *State) WinningBid(taskID string) Bid {
	if b, ok := s.WinningBids[taskID]; ok {
		return b
	}
	return InvalidBid()
}

func (s *State) Winner(taskID string) string {
	if w, ok := s.Winners[taskID]; ok {
		return w
	}
	return NoAgent
}

func (s *State) LocalBid(taskID string) float64 {
	if v, ok := s.LocalBids[taskID]; ok {
		return v
	}
	return MinScore
}

// TimestampFor treats unknown agents as time zero.
func (s *State) TimestampFor(agentID string) float64 {
	return s.Timestamps[agentID]
}

func (s *State) SetTimestamp(agentID string, ts float64) {
	s.Timestamps[agentID] = ts
}

func (s *State) SetOwnTimestamp(ts float64) {
	s.Timestamps[s.ID] = ts
}

// CheckConvergence compares the winners table against the previous snapshot
// and then advances the snapshot.
func (s *State) CheckConvergence() {
	s.Converged = winnersEqual(s.Winners, s.PreviousWinners)
	s.PreviousWinners = make(map[string]string, len(s.Winners))
	for k, v := range s.Winners {
		s.PreviousWinners[k] = v
	}
}

func winnersEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
