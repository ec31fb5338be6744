package protocol

import (
	"errors"
	"reflect"
	"testing"

	"pgregory.net/rapid"

	"github.com/robolibs/consens/internal/cbba"
)

func genID() *rapid.Generator[string] {
	return rapid.StringMatching(`[a-z0-9_]{0,12}`)
}

func genMessage() *rapid.Generator[cbba.Message] {
	return rapid.Custom(func(t *rapid.T) cbba.Message {
		bundle := rapid.SliceOfN(genID(), 0, 8).Draw(t, "bundle")
		if bundle == nil {
			bundle = []string{}
		}
		path := rapid.SliceOfN(genID(), 0, 8).Draw(t, "path")
		if path == nil {
			path = []string{}
		}
		m := cbba.Message{
			SenderID:    genID().Draw(t, "sender"),
			Timestamp:   rapid.Float64Range(-1e6, 1e6).Draw(t, "ts"),
			Bundle:      bundle,
			Path:        path,
			WinningBids: map[string]cbba.Bid{},
			Winners:     map[string]string{},
			Timestamps:  map[string]float64{},
		}
		for _, id := range rapid.SliceOfNDistinct(genID(), 0, 8, rapid.ID[string]).Draw(t, "bidKeys") {
			m.WinningBids[id] = cbba.Bid{
				AgentID:   genID().Draw(t, "bidAgent"),
				Score:     rapid.Float64Range(-1e9, 1e9).Draw(t, "bidScore"),
				Timestamp: rapid.Float64Range(0, 1e6).Draw(t, "bidTs"),
			}
		}
		for _, id := range rapid.SliceOfNDistinct(genID(), 0, 8, rapid.ID[string]).Draw(t, "winnerKeys") {
			m.Winners[id] = genID().Draw(t, "winnerAgent")
		}
		for _, id := range rapid.SliceOfNDistinct(genID(), 0, 8, rapid.ID[string]).Draw(t, "tsKeys") {
			m.Timestamps[id] = rapid.Float64Range(0, 1e6).Draw(t, "tsVal")
		}
		return m
	})
}

func TestProperty_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := genMessage().Draw(t, "msg")
		got, err := Decode(Encode(m))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !reflect.DeepEqual(got, m) {
			t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, m)
		}
	})
}

func TestProperty_TruncationAlwaysRejected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		enc := Encode(genMessage().Draw(t, "msg"))
		k := rapid.IntRange(0, len(enc)-1).Draw(t, "cut")
		if _, err := Decode(enc[:k]); !errors.Is(err, ErrMalformed) {
			t.Fatalf("prefix of %d/%d bytes decoded", k, len(enc))
		}
	})
}
