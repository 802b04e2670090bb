package entity

import (
	"sort"
	"sync"
)

// Identity is one live entity slot. Address points at the entity object in
// remote memory; its layout is only known once the class has been checked.
type Identity struct {
	Index      uint32
	Generation uint32
	ClassInfo  uint64
	Address    uint64
}

// Handle returns a handle referencing this identity.
func (i Identity) Handle() Handle {
	return NewHandle(i.Index, i.Generation)
}

// Directory enumerates live entities and resolves handles against them.
type Directory interface {
	// Entities returns the live identities for the current tick.
	Entities() []Identity
	// Resolve returns the identity referenced by h, or false if h is invalid,
	// out of range, or its generation does not match the live slot.
	Resolve(h Handle) (Identity, bool)
}

// Table is an in-memory Directory keyed by index.
type Table struct {
	mu      sync.RWMutex
	entries map[uint32]Identity
}

// NewTable creates a table holding the given identities.
func NewTable(identities ...Identity) *Table {
	t := &Table{entries: make(map[uint32]Identity, len(identities))}
	for _, id := range identities {
		t.entries[id.Index] = id
	}
	return t
}

// Put stores id in its slot, replacing whatever lived there.
func (t *Table) Put(id Identity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id.Index] = id
}

// Remove frees the slot at index.
func (t *Table) Remove(index uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, index)
}

func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[uint32]Identity)
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Entities returns identities in ascending index order.
func (t *Table) Entities() []Identity {
	t.mu.RLock()
	out := make([]Identity, 0, len(t.entries))
	for _, id := range t.entries {
		out = append(out, id)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func (t *Table) Resolve(h Handle) (Identity, bool) {
	if !h.Valid() {
		return Identity{}, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	id, ok := t.entries[h.Index]
	if !ok || id.Generation != h.Generation {
		return Identity{}, false
	}
	return id, true
}
