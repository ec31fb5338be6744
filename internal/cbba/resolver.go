package cbba

import "sort"

// Resolver applies the CBBA conflict-resolution rules to inbound messages.
// Messages are processed in list order; task resolution within a message is
// commutative across task IDs, iterated sorted for reproducibility.
type Resolver struct{}

func (r Resolver) Resolve(st *State, msgs []Message) {
	for _, msg := range msgs {
		r.process(st, msg)
	}
}

func (r Resolver) process(st *State, msg Message) {
	r.mergeTimestamps(st, msg)

	seen := make(map[string]bool, len(st.WinningBids)+len(msg.WinningBids))
	tasks := make([]string, 0, len(st.WinningBids)+len(msg.WinningBids))
	for id := range st.WinningBids {
		if !seen[id] {
			seen[id] = true
			tasks = append(tasks, id)
		}
	}
	for id := range msg.WinningBids {
		if !seen[id] {
			seen[id] = true
			tasks = append(tasks, id)
		}
	}
	sort.Strings(tasks)

	for _, id := range tasks {
		r.resolveTask(st, msg, id)
	}
}

// mergeTimestamps adopts the sender's clock directly and any strictly fresher
// knowledge it carries about third parties. Our own clock is never overwritten.
func (r Resolver) mergeTimestamps(st *State, msg Message) {
	st.SetTimestamp(msg.SenderID, msg.Timestamp)
	for agentID, ts := range msg.Timestamps {
		if agentID == st.ID {
			continue
		}
		if ts > st.TimestampFor(agentID) {
			st.SetTimestamp(agentID, ts)
		}
	}
}

// resolveTask is the UPDATE / RESET / LEAVE decision table over one task.
func (r Resolver) resolveTask(st *State, msg Message, taskID string) {
	mine := st.WinningBid(taskID)
	theirs := msg.WinningBid(taskID)
	myWinner := mine.AgentID
	theirWinner := theirs.AgentID

	// One side has no assignment: adopt theirs or keep ours.
	if myWinner == NoAgent {
		if theirWinner != NoAgent {
			st.UpdateWinningBid(taskID, theirs)
		}
		return
	}
	if theirWinner == NoAgent {
		return
	}

	// Same winner: freshness decides.
	if myWinner == theirWinner {
		if theirs.Timestamp > mine.Timestamp {
			st.UpdateWinningBid(taskID, theirs)
		}
		return
	}

	// Different winners: freshness first, auction order on equal timestamps.
	switch {
	case theirs.Timestamp > mine.Timestamp:
		st.UpdateWinningBid(taskID, theirs)
		if myWinner == st.ID {
			r.releaseSuffix(st, taskID)
		}
	case mine.Timestamp > theirs.Timestamp:
		// keep ours
	case theirs.Beats(mine):
		st.UpdateWinningBid(taskID, theirs)
		if myWinner == st.ID {
			r.releaseSuffix(st, taskID)
		}
	}
}

// releaseSuffix enforces the prefix property: every path entry at the lost
// task's position and after is removed from bundle and path. The winning bids
// of those later tasks are kept; any knowledge adopted by UPDATE in this pass
// must survive the release.
func (r Resolver) releaseSuffix(st *State, taskID string) {
	position := st.Path.FindPosition(taskID)
	for _, id := range st.Path.Suffix(position) {
		st.RemoveFromBundle(id)
	}
}
