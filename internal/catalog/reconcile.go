package catalog

import (
	"maps"
	"reflect"
)

// Diff is the outcome of reconciling two keyed lists.
type Diff[T any] struct {
	Merged  []T
	Added   []T
	Removed []T
	Updated []T
}

// Changed reports whether any item was added, removed, or updated.
func (d Diff[T]) Changed() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Updated) > 0
}

// Counts summarizes a diff for reporting.
type Counts struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Updated int `json:"updated"`
}

// Counts returns the sizes of the diff sets.
func (d Diff[T]) Counts() Counts {
	return Counts{Added: len(d.Added), Removed: len(d.Removed), Updated: len(d.Updated)}
}

// Add accumulates other into c.
func (c *Counts) Add(other Counts) {
	c.Added += other.Added
	c.Removed += other.Removed
	c.Updated += other.Updated
}

// Changed reports whether the counts describe any change.
func (c Counts) Changed() bool {
	return c.Added > 0 || c.Removed > 0 || c.Updated > 0
}

// Keyed describes how to reconcile a list of T.
type Keyed[T any] struct {
	// Key returns the identity of an item. Items with an empty key are dropped.
	Key func(T) string
	// Equal compares the wire-carried fields of two items with the same key.
	Equal func(existing, fresh T) bool
	// Apply copies the wire-carried fields of fresh onto existing.
	Apply func(existing, fresh T)
}

// Reconcile merges fresh into old. The merge starts from old so local state
// the wire payload does not carry survives: removed items are dropped, updated
// items are modified in place through Apply, and added items are appended in
// fresh order. Duplicate keys keep their first occurrence on both sides.
func Reconcile[T any](old, fresh []T, k Keyed[T]) Diff[T] {
	incoming := make(map[string]T, len(fresh))
	order := make([]string, 0, len(fresh))
	for _, item := range fresh {
		key := k.Key(item)
		if key == "" {
			continue
		}
		if _, dup := incoming[key]; dup {
			continue
		}
		incoming[key] = item
		order = append(order, key)
	}

	var diff Diff[T]
	kept := make(map[string]struct{}, len(old))
	diff.Merged = make([]T, 0, len(order))
	for _, item := range old {
		key := k.Key(item)
		if _, dup := kept[key]; dup || key == "" {
			continue
		}
		next, ok := incoming[key]
		if !ok {
			diff.Removed = append(diff.Removed, item)
			continue
		}
		kept[key] = struct{}{}
		if !k.Equal(item, next) {
			k.Apply(item, next)
			diff.Updated = append(diff.Updated, item)
		}
		diff.Merged = append(diff.Merged, item)
	}
	for _, key := range order {
		if _, ok := kept[key]; ok {
			continue
		}
		item := incoming[key]
		diff.Added = append(diff.Added, item)
		diff.Merged = append(diff.Merged, item)
	}
	return diff
}

// ChannelKeys reconciles channels by address.
var ChannelKeys = Keyed[*Channel]{
	Key: func(c *Channel) string { return c.Address },
	Equal: func(existing, fresh *Channel) bool {
		return existing.Name == fresh.Name && extraEqual(existing.Extra, fresh.Extra)
	},
	Apply: func(existing, fresh *Channel) {
		existing.Name = fresh.Name
		existing.Extra = maps.Clone(fresh.Extra)
	},
}

// PlatformKeys reconciles platforms by resolved address. Only fields carried
// by the source index are compared; Result and Channels are local state.
var PlatformKeys = Keyed[*Platform]{
	Key: func(p *Platform) string { return p.Address },
	Equal: func(existing, fresh *Platform) bool {
		return extraEqual(existing.Extra, fresh.Extra)
	},
	Apply: func(existing, fresh *Platform) {
		existing.Extra = maps.Clone(fresh.Extra)
	},
}

func extraEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}
