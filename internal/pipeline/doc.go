// Package pipeline runs one livemon cycle end to end.
//
// A cycle takes the data directory lock, loads the persisted source tree,
// reconciles it against the remote catalogues, writes the tree back, probes
// the channels of every healthy source and platform, writes the live list,
// and records the cycle in the run history. Refresh-only and probe-only
// cycles skip the corresponding half. Per-source and per-channel failures are
// counted in the Summary; only lock, load, and save failures abort a cycle.
package pipeline
