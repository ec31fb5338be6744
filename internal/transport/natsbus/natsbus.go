// Package natsbus adapts a NATS subject to the engine's transport callbacks.
// Every agent publishes its snapshot to the fleet subject and drains what the
// others published. NATS may redeliver during reconnects; a short dedup
// window suppresses repeats so the resolver is not fed the same blob twice
// (it tolerates repeats, the window just keeps the inbox small).
package natsbus

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	gocache "github.com/patrickmn/go-cache"
)

const dedupWindow = 5 * time.Second

type Bus struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	subject string
	agentID string

	mu    sync.Mutex
	inbox [][]byte

	seen *gocache.Cache
}

// Connect joins the fleet subject as agentID. Each agent publishes on
// <subject>.<agentID> and subscribes to <subject>.*, so the sender is known
// from the subject suffix and agents skip their own echoes.
func Connect(natsURL, subject, agentID string) (*Bus, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name("consens-"+agentID),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	b := &Bus{
		conn:    conn,
		subject: subject,
		agentID: agentID,
		seen:    gocache.New(dedupWindow, dedupWindow),
	}

	sub, err := conn.Subscribe(subject+".*", func(msg *nats.Msg) {
		b.ingest(msg.Subject, msg.Data)
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	b.sub = sub
	return b, nil
}

// ingest buffers a frame unless it came from this agent or was seen within
// the dedup window.
func (b *Bus) ingest(subject string, data []byte) {
	if subject == b.ownSubject() {
		return
	}
	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])
	if _, dup := b.seen.Get(key); dup {
		return
	}
	b.seen.Set(key, struct{}{}, gocache.DefaultExpiration)

	msg := make([]byte, len(data))
	copy(msg, data)
	b.mu.Lock()
	b.inbox = append(b.inbox, msg)
	b.mu.Unlock()
}

func (b *Bus) ownSubject() string {
	return b.subject + "." + b.agentID
}

// Send publishes one encoded snapshot, fire-and-forget.
func (b *Bus) Send(data []byte) {
	_ = b.conn.Publish(b.ownSubject(), data)
}

// Receive drains the messages buffered since the last call.
func (b *Bus) Receive() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.inbox
	b.inbox = nil
	return msgs
}

func (b *Bus) Close() {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	b.conn.Close()
}
