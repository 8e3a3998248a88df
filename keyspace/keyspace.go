// Package keyspace computes the store keys used by one cache region and
// tracks the region generation this process believes is current.
//
// Layout, for prefix "{<keyPrefix>:<region>}":
//
//	<prefix>:v<gen>:<key>       data entry
//	<prefix>:v<gen>:<key>:lock  lock for the entry
//	<prefix>:generation         region generation counter
//	<prefix>:keys               active data keys (bookkeeping set)
//
// Region names and caller keys are escaped so that ':' never appears inside
// a component; a caller key such as "x:lock" cannot alias the lock of "x".
//
// The prefix is a Redis Cluster hash tag, so every key of a region hashes to
// one slot and the generation WATCH, data writes and Clear stay in a single
// transaction. Braces are escaped so the tag always spans the whole prefix.
package keyspace

import (
	"strconv"
	"strings"
	"sync"
)

const (
	// Unknown is the generation of a namespace that has not talked to the store yet.
	Unknown int64 = -1

	lockSuffix    = ":lock"
	generationKey = ":generation"
	activeKeysKey = ":keys"
)

var escaper = strings.NewReplacer("%", "%25", ":", "%3A", "{", "%7B", "}", "%7D")

// Namespace is safe for concurrent use. The generation is a cached copy of the
// server counter and may lag it until the next conflict or Clear raises it.
type Namespace struct {
	prefix string

	mu  sync.RWMutex
	gen int64
}

// New returns a namespace for region under keyPrefix with generation Unknown.
func New(keyPrefix, region string) *Namespace {
	return &Namespace{
		prefix: "{" + escaper.Replace(keyPrefix) + ":" + escaper.Replace(region) + "}",
		gen:    Unknown,
	}
}

func (n *Namespace) Prefix() string { return n.prefix }

// Generation returns the locally cached generation.
func (n *Namespace) Generation() int64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.gen
}

// SetHigherGeneration raises the cached generation to g. Lower or equal values
// are ignored. Reports whether the generation changed.
func (n *Namespace) SetHigherGeneration(g int64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if g <= n.gen {
		return false
	}
	n.gen = g
	return true
}

// Key returns the data key for key at the cached generation.
func (n *Namespace) Key(key string) string { return n.KeyAt(n.Generation(), key) }

// LockKey returns the lock key guarding Key(key).
func (n *Namespace) LockKey(key string) string { return n.LockKeyAt(n.Generation(), key) }

// KeyAt computes the data key at an explicit generation.
func (n *Namespace) KeyAt(gen int64, key string) string {
	var b strings.Builder
	esc := escaper.Replace(key)
	b.Grow(len(n.prefix) + len(esc) + 24)
	b.WriteString(n.prefix)
	b.WriteString(":v")
	b.WriteString(strconv.FormatInt(gen, 10))
	b.WriteByte(':')
	b.WriteString(esc)
	return b.String()
}

func (n *Namespace) LockKeyAt(gen int64, key string) string { return n.KeyAt(gen, key) + lockSuffix }

// GenerationKey is generation independent.
func (n *Namespace) GenerationKey() string { return n.prefix + generationKey }

// ActiveKeysKey is generation independent.
func (n *Namespace) ActiveKeysKey() string { return n.prefix + activeKeysKey }
