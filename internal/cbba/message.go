package cbba

// Message is the per-tick consensus snapshot exchanged between agents. The
// binary wire form lives in internal/protocol.
type Message struct {
	SenderID  string
	Timestamp float64

	Bundle []string
	Path   []string

	WinningBids map[string]Bid
	Winners     map[string]string
	Timestamps  map[string]float64
}

// Snapshot captures the sender's current consensus state.
func Snapshot(st *State, now float64) Message {
	m := Message{
		SenderID:    st.ID,
		Timestamp:   now,
		Bundle:      st.Bundle.Tasks(),
		Path:        st.Path.Tasks(),
		WinningBids: make(map[string]Bid, len(st.WinningBids)),
		Winners:     make(map[string]string, len(st.Winners)),
		Timestamps:  make(map[string]float64, len(st.Timestamps)),
	}
	for k, v := range st.WinningBids {
		m.WinningBids[k] = v
	}
	for k, v := range st.Winners {
		m.Winners[k] = v
	}
	for k, v := range st.Timestamps {
		m.Timestamps[k] = v
	}
	return m
}

func (m Message) WinningBid(taskID string) Bid {
	if b, ok := m.WinningBids[taskID]; ok {
		return b
	}
	return InvalidBid()
}

func (m Message) Winner(taskID string) string {
	if w, ok := m.Winners[taskID]; ok {
		return w
	}
	return NoAgent
}

func (m Message) TimestampFor(agentID string) float64 {
	return m.Timestamps[agentID]
}
