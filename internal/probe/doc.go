// Package probe decides whether a channel address is live.
//
// Each address walks a small state machine, Start → Tier1 → (Tier2) →
// Live | Dead, with no backward transitions. Tier 1 is chosen by scheme: an
// RTMP transport handshake or an HTTP range request. Tier 2 runs the external
// demuxer for addresses whose transport check cannot prove media is flowing.
// Recordings identified by suffix are live without any I/O.
package probe
