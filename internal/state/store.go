// Package state holds the per-device, per-line shift accumulators.
package state

import (
	"sync"

	"github.com/ernestoguevaraa/celima-iot/internal/domain"
)

// Slot is the runtime state of one named PLC counter field.
type Slot struct {
	// LastRaw is the last observed register value, masked to the slot width.
	LastRaw uint16

	// Acc is the shift accumulator. Integer counter slots carry exact whole
	// values; scaled slots (deciseconds) carry fractions.
	Acc float64

	// Corrupt records the pre-mask high bit of the last observation.
	Corrupt bool
}

// DeviceState is the accumulated state for one (kind, line) pair. Mutated
// only under the owning shard's mutex.
type DeviceState struct {
	Shift       domain.Shift
	Initialized bool
	Slots       map[string]*Slot
}

// Slot returns the named slot, creating it on first use.
func (ds *DeviceState) Slot(name string) *Slot {
	s, ok := ds.Slots[name]
	if !ok {
		s = &Slot{}
		ds.Slots[name] = s
	}
	return s
}

// shard guards the line map of a single device kind. One mutex per kind so
// processors for different kinds proceed in parallel.
type shard struct {
	mu    sync.Mutex
	lines map[int]*DeviceState
}

// Store maps (DeviceKind, line) to DeviceState. Entries are created lazily on
// first message and never evicted; the line cardinality is bounded by the
// plant layout.
type Store struct {
	shards map[domain.DeviceKind]*shard
}

// NewStore creates a store with one shard per known device kind.
func NewStore() *Store {
	s := &Store{shards: make(map[domain.DeviceKind]*shard, len(domain.AllKinds))}
	for _, k := range domain.AllKinds {
		s.shards[k] = &shard{lines: make(map[int]*DeviceState)}
	}
	return s
}

// WithState runs fn with the DeviceState for (kind, line) under the kind's
// mutex, creating the state on first use. fn must not perform I/O or call
// back into another processor.
func (s *Store) WithState(kind domain.DeviceKind, line int, fn func(*DeviceState)) {
	sh := s.shards[kind]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	ds, ok := sh.lines[line]
	if !ok {
		ds = &DeviceState{Slots: make(map[string]*Slot)}
		sh.lines[line] = ds
	}
	fn(ds)
}

// ResetAll clears every line map across all kinds. Used by tests and by the
// administrative reset endpoint.
func (s *Store) ResetAll() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.lines = make(map[int]*DeviceState)
		sh.mu.Unlock()
	}
}

// LineCounts reports how many lines hold state per kind, keyed by machine
// slug. Feeds the /status endpoint.
func (s *Store) LineCounts() map[string]int {
	out := make(map[string]int, len(s.shards))
	for kind, sh := range s.shards {
		sh.mu.Lock()
		out[kind.Slug()] = len(sh.lines)
		sh.mu.Unlock()
	}
	return out
}
