// Package remote fetches catalogue documents over HTTP and gates them on
// freshness before they reach reconciliation.
//
// A payload is stale when its Last-Modified header is missing or older than
// the configured threshold. With the fingerprint gate enabled, a body whose
// xxh3 fingerprint has not changed for the threshold is stale as well.
package remote
