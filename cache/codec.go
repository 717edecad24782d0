package cache

import (
	"encoding/json"
	"time"
)

// Codec converts values to and from the bytes kept by a [Store].
type Codec[V any] interface {
	Marshal(V) ([]byte, error)
	Unmarshal([]byte) (V, error)
}

// JSONCodec encodes values with encoding/json.
type JSONCodec[V any] struct{}

// Marshal implements [Codec].
func (JSONCodec[V]) Marshal(v V) ([]byte, error) { return json.Marshal(v) }

// Unmarshal implements [Codec].
func (JSONCodec[V]) Unmarshal(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}

// envelope is the stored form of a revalidating-tier entry. Not-found
// outcomes are stored too, with Found false and no Value.
type envelope struct {
	Gen      uint64 `json:"g"`
	StoredAt int64  `json:"t"`
	Found    bool   `json:"f"`
	Value    []byte `json:"v,omitempty"`
}

func (e envelope) age(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, e.StoredAt))
}

func encodeEnvelope(e envelope) ([]byte, error) { return json.Marshal(e) }

func decodeEnvelope(b []byte) (envelope, error) {
	var e envelope
	err := json.Unmarshal(b, &e)
	return e, err
}
