// Package wire frames cached values before they reach the store.
//
// Frame: magic(4) | ver(1) | gen(u64 be) | vlen(u32 be) | payload(vlen)
//
// The generation is the one the entry was written under. A reader holding a
// different generation for the same data key is looking at a foreign or
// damaged value and drops it.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

const (
	version byte = 1
	header       = 4 + 1 + 8 + 4
)

var (
	ErrCorrupt  = errors.New("regioncache: corrupt entry")
	ErrTooLarge = errors.New("regioncache: payload exceeds frame limit")

	magic = [...]byte{'R', 'G', 'N', 'C'}
)

// Encode frames payload written under gen.
func Encode(gen int64, payload []byte) ([]byte, error) {
	if gen < 0 {
		return nil, ErrCorrupt
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, ErrTooLarge
	}
	out := make([]byte, header+len(payload))
	copy(out, magic[:])
	out[4] = version
	binary.BigEndian.PutUint64(out[5:13], uint64(gen))
	binary.BigEndian.PutUint32(out[13:17], uint32(len(payload)))
	copy(out[header:], payload)
	return out, nil
}

// Decode returns the generation and a payload slice aliasing b.
func Decode(b []byte) (gen int64, payload []byte, err error) {
	if len(b) < header || !bytes.Equal(b[:4], magic[:]) || b[4] != version {
		return 0, nil, ErrCorrupt
	}
	g := binary.BigEndian.Uint64(b[5:13])
	if g > math.MaxInt64 {
		return 0, nil, ErrCorrupt
	}
	vlen := uint64(binary.BigEndian.Uint32(b[13:17]))
	if vlen != uint64(len(b)-header) {
		return 0, nil, ErrCorrupt
	}
	return int64(g), b[header:], nil
}
