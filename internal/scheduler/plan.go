package scheduler

import "livemon/internal/catalog"

type span struct {
	lo, hi int
}

// dedupe returns the unique addresses of channels in first-seen order and,
// for each, the indexes of the records that share it.
func dedupe(channels []*catalog.Channel) ([]string, [][]int) {
	seen := make(map[string]int, len(channels))
	var addresses []string
	var owners [][]int
	for i, ch := range channels {
		if ch == nil || ch.Address == "" {
			continue
		}
		idx, ok := seen[ch.Address]
		if !ok {
			idx = len(addresses)
			seen[ch.Address] = idx
			addresses = append(addresses, ch.Address)
			owners = append(owners, nil)
		}
		owners[idx] = append(owners[idx], i)
	}
	return addresses, owners
}

// partition splits n items into consecutive spans of at most size items.
// A non-positive size yields a single span.
func partition(n, size int) []span {
	if n == 0 {
		return nil
	}
	if size <= 0 || size >= n {
		return []span{{0, n}}
	}
	spans := make([]span, 0, (n+size-1)/size)
	for lo := 0; lo < n; lo += size {
		spans = append(spans, span{lo, min(lo+size, n)})
	}
	return spans
}
