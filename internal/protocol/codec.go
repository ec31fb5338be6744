// Package protocol carries the bit-exact binary wire form of the consensus
// snapshot. Layout, little-endian throughout:
//
//	string      := uint32 length ++ raw bytes
//	double      := IEEE-754 binary64
//	sequence<T> := uint32 count ++ count * T
//	bid         := string agent_id ++ double score ++ double timestamp
//	map<K,V>    := uint32 count ++ count * (K ++ V)
//
// Message := sender_id ++ timestamp ++ bundle ++ path ++ winning_bids ++
// winners ++ timestamps. Decoding is strict: short buffers and trailing bytes
// are both malformed.
package protocol

import (
	"encoding/binary"
	"errors"
	"math"
	"sort"

	"github.com/robolibs/consens/internal/cbba"
)

// ErrMalformed is returned for any byte blob that does not parse exactly.
var ErrMalformed = errors.New("protocol: malformed message")

type writer struct {
	buf []byte
}

func (w *writer) uint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *writer) double(v float64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
}

func (w *writer) string(s string) {
	w.uint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) taskIDs(ids []string) {
	w.uint32(uint32(len(ids)))
	for _, id := range ids {
		w.string(id)
	}
}

func (w *writer) bid(b cbba.Bid) {
	w.string(b.AgentID)
	w.double(b.Score)
	w.double(b.Timestamp)
}

// Encode serializes m. Maps are emitted in sorted key order; the protocol does
// not require an order, but a deterministic one keeps encodings comparable.
func Encode(m cbba.Message) []byte {
	w := &writer{buf: make([]byte, 0, 256)}

	w.string(m.SenderID)
	w.double(m.Timestamp)
	w.taskIDs(m.Bundle)
	w.taskIDs(m.Path)

	w.uint32(uint32(len(m.WinningBids)))
	for _, id := range sortedKeys(m.WinningBids) {
		w.string(id)
		w.bid(m.WinningBids[id])
	}

	w.uint32(uint32(len(m.Winners)))
	for _, id := range sortedKeys(m.Winners) {
		w.string(id)
		w.string(m.Winners[id])
	}

	w.uint32(uint32(len(m.Timestamps)))
	for _, id := range sortedKeys(m.Timestamps) {
		w.string(id)
		w.double(m.Timestamps[id])
	}

	return w.buf
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) remaining() int { return len(r.data) - r.pos }

func (r *reader) uint32() (uint32, bool) {
	if r.remaining() < 4 {
		return 0, false
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, true
}

func (r *reader) double() (float64, bool) {
	if r.remaining() < 8 {
		return 0, false
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(r.data[r.pos:]))
	r.pos += 8
	return v, true
}

func (r *reader) string() (string, bool) {
	n, ok := r.uint32()
	if !ok || uint32(r.remaining()) < n {
		return "", false
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, true
}

func (r *reader) taskIDs() ([]string, bool) {
	n, ok := r.uint32()
	if !ok {
		return nil, false
	}
	ids := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		id, ok := r.string()
		if !ok {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

func (r *reader) bid() (cbba.Bid, bool) {
	var b cbba.Bid
	var ok bool
	if b.AgentID, ok = r.string(); !ok {
		return b, false
	}
	if b.Score, ok = r.double(); !ok {
		return b, false
	}
	if b.Timestamp, ok = r.double(); !ok {
		return b, false
	}
	return b, true
}

// Decode parses data into a consensus message. It fails on any length prefix
// exceeding the remaining bytes, on truncation, and on trailing bytes.
func Decode(data []byte) (cbba.Message, error) {
	r := &reader{data: data}
	var m cbba.Message
	var ok bool

	if m.SenderID, ok = r.string(); !ok {
		return cbba.Message{}, ErrMalformed
	}
	if m.Timestamp, ok = r.double(); !ok {
		return cbba.Message{}, ErrMalformed
	}
	if m.Bundle, ok = r.taskIDs(); !ok {
		return cbba.Message{}, ErrMalformed
	}
	if m.Path, ok = r.taskIDs(); !ok {
		return cbba.Message{}, ErrMalformed
	}

	n, ok := r.uint32()
	if !ok {
		return cbba.Message{}, ErrMalformed
	}
	m.WinningBids = make(map[string]cbba.Bid, n)
	for i := uint32(0); i < n; i++ {
		id, ok := r.string()
		if !ok {
			return cbba.Message{}, ErrMalformed
		}
		b, ok := r.bid()
		if !ok {
			return cbba.Message{}, ErrMalformed
		}
		m.WinningBids[id] = b
	}

	if n, ok = r.uint32(); !ok {
		return cbba.Message{}, ErrMalformed
	}
	m.Winners = make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		id, ok := r.string()
		if !ok {
			return cbba.Message{}, ErrMalformed
		}
		w, ok := r.string()
		if !ok {
			return cbba.Message{}, ErrMalformed
		}
		m.Winners[id] = w
	}

	if n, ok = r.uint32(); !ok {
		return cbba.Message{}, ErrMalformed
	}
	m.Timestamps = make(map[string]float64, n)
	for i := uint32(0); i < n; i++ {
		id, ok := r.string()
		if !ok {
			return cbba.Message{}, ErrMalformed
		}
		ts, ok := r.double()
		if !ok {
			return cbba.Message{}, ErrMalformed
		}
		m.Timestamps[id] = ts
	}

	if r.remaining() != 0 {
		return cbba.Message{}, ErrMalformed
	}
	return m, nil
}
