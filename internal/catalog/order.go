package catalog

import "livemon/internal/textutil"

// SortChannels orders channels by the phonetic key of their names with digit
// runs ignored. Channels whose keys tie keep their relative order.
func SortChannels(collator *textutil.Collator, channels []*Channel) {
	textutil.SortStableBy(collator, channels, func(c *Channel) string { return c.Name })
}
