package codec

import (
	"bytes"
	"encoding/json"
)

// JSON is a Codec over encoding/json. The zero value is ready to use.
// Strict rejects payloads carrying fields V does not declare, which
// surfaces schema drift between processes sharing a region as cache misses.
type JSON[V any] struct {
	Strict bool
}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }

func (c JSON[V]) Decode(b []byte) (V, error) {
	var v V
	if !c.Strict {
		err := json.Unmarshal(b, &v)
		return v, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	err := dec.Decode(&v)
	return v, err
}
