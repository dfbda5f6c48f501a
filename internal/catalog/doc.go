// Package catalog models the source/platform/channel tree and the keyed
// reconciliation that merges freshly fetched lists into it.
//
// Items are held by pointer so in-place updates keep the identity that probe
// tasks and callers already hold. Wire field names are configurable, so the
// Codec decodes through generic maps and keeps unknown fields in Extra.
package catalog
