package textutil

import (
	"bytes"
	"slices"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultTag is the collation locale used when none is configured.
var DefaultTag = language.Chinese

// Collator produces comparable sort keys for names. It is safe for concurrent use.
type Collator struct {
	mu  sync.Mutex
	col *collate.Collator
	buf collate.Buffer
}

// NewCollator builds a collator for tag. Case and width differences are ignored.
func NewCollator(tag language.Tag) *Collator {
	return &Collator{col: collate.New(tag, collate.IgnoreCase, collate.IgnoreWidth)}
}

// Key returns the collation key for name with digit runs removed.
func (c *Collator) Key(name string) []byte {
	stripped := StripDigits(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.col.KeyFromString(&c.buf, stripped)
	out := bytes.Clone(key)
	c.buf.Reset()
	return out
}

// SortStableBy orders items by the collation key of name(item). Items with equal
// keys keep their relative order.
func SortStableBy[T any](c *Collator, items []T, name func(T) string) {
	if len(items) < 2 {
		return
	}
	keys := make(map[int][]byte, len(items))
	indexed := make([]int, len(items))
	for i, item := range items {
		indexed[i] = i
		keys[i] = c.Key(name(item))
	}
	slices.SortStableFunc(indexed, func(a, b int) int {
		return bytes.Compare(keys[a], keys[b])
	})
	sorted := make([]T, len(items))
	for i, idx := range indexed {
		sorted[i] = items[idx]
	}
	copy(items, sorted)
}

// StripDigits removes every decimal digit from s and trims surrounding space.
func StripDigits(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return -1
		}
		return r
	}, s))
}
