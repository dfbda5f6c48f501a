package catalog

import "maps"

// Channel is a single streamable endpoint. Address is its identity.
type Channel struct {
	Address string
	Name    string
	Extra   map[string]any
}

// Platform groups channels under one source. Address is absolute once merged.
type Platform struct {
	Address  string
	Result   int
	Channels []*Channel
	Extra    map[string]any
}

// Source is a configured root feed. Result is 0 for dead or stale, 1 for a
// refresh that changed the subtree, and counts unchanged refreshes mod 100.
type Source struct {
	Address   string
	Result    int
	Platforms []*Platform
	Extra     map[string]any
}

// ResultModulus bounds the unchanged-refresh counter.
const ResultModulus = 100

// NextResult returns the counter value after an unchanged successful refresh.
func NextResult(prev int) int {
	if prev < 0 {
		prev = 0
	}
	return (prev + 1) % ResultModulus
}

// Clone returns a deep copy of the channel.
func (c *Channel) Clone() *Channel {
	if c == nil {
		return nil
	}
	return &Channel{Address: c.Address, Name: c.Name, Extra: maps.Clone(c.Extra)}
}

// CountChannels returns the number of channel records across the tree.
func CountChannels(sources []*Source) int {
	total := 0
	for _, src := range sources {
		for _, pf := range src.Platforms {
			total += len(pf.Channels)
		}
	}
	return total
}

// ProbeCandidates returns channel records from sources and platforms whose
// last refresh succeeded (result != 0). Records are returned by pointer in
// tree order; addresses may repeat across platforms.
func ProbeCandidates(sources []*Source) []*Channel {
	var out []*Channel
	for _, src := range sources {
		if src == nil || src.Result == 0 {
			continue
		}
		for _, pf := range src.Platforms {
			if pf == nil || pf.Result == 0 {
				continue
			}
			out = append(out, pf.Channels...)
		}
	}
	return out
}

// SyncRoots aligns the tree with the configured roots: sources whose address
// is no longer configured are dropped and new roots are appended with result 0.
// Existing sources keep their order and state.
func SyncRoots(sources []*Source, roots []string) (synced []*Source, added, removed []string) {
	configured := make(map[string]struct{}, len(roots))
	for _, root := range roots {
		configured[root] = struct{}{}
	}
	present := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		if src == nil {
			continue
		}
		if _, ok := configured[src.Address]; !ok {
			removed = append(removed, src.Address)
			continue
		}
		if _, dup := present[src.Address]; dup {
			continue
		}
		present[src.Address] = struct{}{}
		synced = append(synced, src)
	}
	for _, root := range roots {
		if _, ok := present[root]; ok {
			continue
		}
		present[root] = struct{}{}
		synced = append(synced, &Source{Address: root})
		added = append(added, root)
	}
	return synced, added, removed
}
