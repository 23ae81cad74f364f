// Package collection provides a generic keyed collection with a maintained
// secondary ordering and an optional filter. It backs the label list: lookups
// go through the ID map, display order comes from a balanced tree over a
// derived sort key, and the sorted/filtered view is materialized eagerly so
// readers never observe a stale array.
package collection

import (
	"cmp"

	"github.com/bradenaw/juniper/container/tree"
)

// Config supplies the derivation functions for a Collection.
type Config[ID cmp.Ordered, V any, S cmp.Ordered] struct {
	// SortKey derives the ordering key for a value.
	SortKey func(V) S
	// Filter is the predicate applied when materializing SortedFiltered.
	// A nil Filter admits everything.
	Filter func(V) bool
}

// orderKey keys the ordering tree. The ID tie-break keeps the ordering
// stable when two values share a sort key.
type orderKey[ID cmp.Ordered, S cmp.Ordered] struct {
	sort S
	id   ID
}

// Collection is a keyed map with a balanced-tree secondary ordering and a
// materialized sorted/filtered array. It is not safe for concurrent use;
// the owning service serializes access.
type Collection[ID cmp.Ordered, V any, S cmp.Ordered] struct {
	cfg      Config[ID, V, S]
	byID     map[ID]V
	order    tree.Map[orderKey[ID, S], ID]
	sorted   []V
	filterOn bool
	version  uint64
}

func orderKeyLess[ID cmp.Ordered, S cmp.Ordered](a, b orderKey[ID, S]) bool {
	if a.sort != b.sort {
		return a.sort < b.sort
	}
	return a.id < b.id
}

// New creates an empty Collection with filtering enabled.
func New[ID cmp.Ordered, V any, S cmp.Ordered](cfg Config[ID, V, S]) *Collection[ID, V, S] {
	return &Collection[ID, V, S]{
		cfg:      cfg,
		byID:     make(map[ID]V),
		order:    tree.NewMap[orderKey[ID, S], ID](orderKeyLess[ID, S]),
		filterOn: true,
	}
}

// SetEntries replaces the entire collection contents.
func (c *Collection[ID, V, S]) SetEntries(entries map[ID]V) {
	c.byID = make(map[ID]V, len(entries))
	c.order = tree.NewMap[orderKey[ID, S], ID](orderKeyLess[ID, S])
	for id, v := range entries {
		c.byID[id] = v
		c.order.Put(orderKey[ID, S]{sort: c.cfg.SortKey(v), id: id}, id)
	}
	c.rebuild()
}

// Insert adds or replaces the value stored under id.
func (c *Collection[ID, V, S]) Insert(id ID, v V) {
	if old, ok := c.byID[id]; ok {
		c.order.Delete(orderKey[ID, S]{sort: c.cfg.SortKey(old), id: id})
	}
	c.byID[id] = v
	c.order.Put(orderKey[ID, S]{sort: c.cfg.SortKey(v), id: id}, id)
	c.rebuild()
}

// Delete removes the value stored under id, reporting whether it existed.
func (c *Collection[ID, V, S]) Delete(id ID) bool {
	old, ok := c.byID[id]
	if !ok {
		return false
	}
	delete(c.byID, id)
	c.order.Delete(orderKey[ID, S]{sort: c.cfg.SortKey(old), id: id})
	c.rebuild()
	return true
}

// Patch applies a field-level update to the value under id as a
// delete+insert pair, so the ordering tree sees any sort-key change.
// It reports whether the id existed.
func (c *Collection[ID, V, S]) Patch(id ID, apply func(V) V) bool {
	old, ok := c.byID[id]
	if !ok {
		return false
	}
	c.Delete(id)
	c.Insert(id, apply(old))
	return true
}

// SetFilterEnabled toggles whether the configured predicate is applied when
// materializing the sorted array. It reports whether a rebuild actually
// occurred, so callers can skip redundant downstream notifications.
func (c *Collection[ID, V, S]) SetFilterEnabled(enabled bool) bool {
	if c.filterOn == enabled {
		return false
	}
	c.filterOn = enabled
	c.rebuild()
	return true
}

// Get looks up a value by ID, independent of filter and sort state.
func (c *Collection[ID, V, S]) Get(id ID) (V, bool) {
	v, ok := c.byID[id]
	return v, ok
}

// SortedFiltered returns the materialized view: current values admitted by
// the active predicate, in ascending sort-key order. Callers must not
// mutate the returned slice.
func (c *Collection[ID, V, S]) SortedFiltered() []V {
	return c.sorted
}

// Len reports the number of stored values, ignoring the filter.
func (c *Collection[ID, V, S]) Len() int {
	return len(c.byID)
}

// Version returns the identity stamp of this collection instance.
func (c *Collection[ID, V, S]) Version() uint64 {
	return c.version
}

// Bump returns a new Collection sharing all internal state with a fresh
// identity. Consumers compare Version values to detect change instead of
// deep-comparing the materialized array; every mutation must be followed
// by a Bump for consumers to observe it.
func (c *Collection[ID, V, S]) Bump() *Collection[ID, V, S] {
	next := *c
	next.version++
	return &next
}

func (c *Collection[ID, V, S]) rebuild() {
	out := make([]V, 0, len(c.byID))
	iter := c.order.Iterate()
	for {
		kv, ok := iter.Next()
		if !ok {
			break
		}
		v := c.byID[kv.Value]
		if c.filterOn && c.cfg.Filter != nil && !c.cfg.Filter(v) {
			continue
		}
		out = append(out, v)
	}
	c.sorted = out
}
