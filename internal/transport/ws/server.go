// Package ws moves consensus message bytes between agent processes over
// websockets. The relay server fans every binary frame out to all other
// connected agents; the client adapts a connection to the engine's send and
// receive callbacks.
package ws

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
)

// Relay is a best-effort broadcast hub. It holds no consensus state; agents
// tolerate dropped frames.
type Relay struct {
	log *log.Logger

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]chan []byte
}

func NewRelay(logger *log.Logger) *Relay {
	return &Relay{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		conns: make(map[string]chan []byte),
	}
}

func (s *Relay) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		agentID := r.URL.Query().Get("agent")
		if agentID == "" {
			http.Error(rw, "missing agent", http.StatusBadRequest)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		out := make(chan []byte, 256)
		s.attach(agentID, out)
		defer s.detach(agentID)
		s.log.Printf("agent %s connected", agentID)

		done := make(chan struct{})

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-done:
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
						return
					}
				}
			}
		}()

		// Reader loop: every binary frame is relayed to everyone else.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			kind, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if kind != websocket.BinaryMessage {
				continue
			}
			s.broadcast(agentID, msg)
		}

		close(done)
		s.log.Printf("agent %s disconnected", agentID)
	}
}

func (s *Relay) attach(agentID string, out chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.conns[agentID]; ok {
		close(prev)
	}
	s.conns[agentID] = out
}

func (s *Relay) detach(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, agentID)
}

func (s *Relay) broadcast(from string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, out := range s.conns {
		if id == from {
			continue
		}
		msg := make([]byte, len(data))
		copy(msg, data)
		select {
		case out <- msg:
		default:
			// Slow consumer: drop rather than stall the relay.
		}
	}
}
