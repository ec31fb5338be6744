// Package membus is an in-process broadcast bus wiring a fleet of engines
// together for simulation and tests. Delivery is best-effort and non-FIFO
// semantics are tolerated by the consensus rules, but the bus itself keeps
// per-endpoint FIFO queues.
package membus

import "sync"

type Bus struct {
	mu     sync.Mutex
	queues map[string][][]byte
}

func New() *Bus {
	return &Bus{queues: make(map[string][][]byte)}
}

// Register creates the endpoint's queue so broadcasts reach it even before
// its first drain.
func (b *Bus) Register(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.queues[id]; !ok {
		b.queues[id] = nil
	}
}

// Broadcast copies data into every queue except the sender's own.
func (b *Bus) Broadcast(from string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id := range b.queues {
		if id == from {
			continue
		}
		msg := make([]byte, len(data))
		copy(msg, data)
		b.queues[id] = append(b.queues[id], msg)
	}
}

// Drain returns and clears the endpoint's pending messages.
func (b *Bus) Drain(id string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.queues[id]
	b.queues[id] = nil
	return msgs
}

// Endpoint returns send/receive callbacks bound to one agent, shaped for the
// engine's transport configuration.
func (b *Bus) Endpoint(id string) (send func([]byte), receive func() [][]byte) {
	b.Register(id)
	return func(data []byte) { b.Broadcast(id, data) },
		func() [][]byte { return b.Drain(id) }
}
