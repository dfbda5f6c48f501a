package catalog

import (
	"net/url"
	"path"
	"strings"
)

// IsAbsolute reports whether address carries a scheme.
func IsAbsolute(address string) bool {
	u, err := url.Parse(strings.TrimSpace(address))
	return err == nil && u.Scheme != "" && u.Host != ""
}

// JoinSource resolves a platform address against its source by concatenation,
// the way catalogue publishers lay out their indexes. Absolute addresses and
// addresses already carrying the source prefix are returned unchanged, so the
// operation is idempotent.
func JoinSource(source, address string) string {
	address = strings.TrimSpace(address)
	if address == "" || IsAbsolute(address) || strings.HasPrefix(address, source) {
		return address
	}
	if strings.HasSuffix(source, "/") {
		address = strings.TrimPrefix(address, "/")
	}
	return source + address
}

// ResolveChannel resolves a relative channel address against its platform's
// URL. Absolute and unparseable addresses are returned unchanged.
func ResolveChannel(platform, address string) string {
	address = strings.TrimSpace(address)
	if address == "" || IsAbsolute(address) {
		return address
	}
	base, err := url.Parse(platform)
	if err != nil || !base.IsAbs() {
		return address
	}
	ref, err := url.Parse(address)
	if err != nil {
		return address
	}
	return base.ResolveReference(ref).String()
}

// IgnoreSet holds addresses, or final path segments, that are never merged.
type IgnoreSet struct {
	entries map[string]struct{}
}

// NewIgnoreSet builds an IgnoreSet from configured entries.
func NewIgnoreSet(entries []string) IgnoreSet {
	set := IgnoreSet{entries: make(map[string]struct{}, len(entries))}
	for _, entry := range entries {
		if entry = strings.TrimSpace(entry); entry != "" {
			set.entries[entry] = struct{}{}
		}
	}
	return set
}

// Len returns the number of entries.
func (s IgnoreSet) Len() int { return len(s.entries) }

// Match reports whether any of the address forms, or the final path segment
// of any of them, is in the set.
func (s IgnoreSet) Match(addresses ...string) bool {
	if len(s.entries) == 0 {
		return false
	}
	for _, address := range addresses {
		if address == "" {
			continue
		}
		if _, ok := s.entries[address]; ok {
			return true
		}
		if seg := lastSegment(address); seg != "" {
			if _, ok := s.entries[seg]; ok {
				return true
			}
		}
	}
	return false
}

func lastSegment(address string) string {
	p := address
	if u, err := url.Parse(address); err == nil && u.Path != "" {
		p = u.Path
	}
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		return ""
	}
	seg := path.Base(p)
	if seg == "." || seg == "/" {
		return ""
	}
	return seg
}
