// Package preflight verifies the environment before a cycle runs: data and
// log directories are usable, the demuxer binary is on PATH when tier-2
// probing is enabled, and the configured source roots answer.
package preflight
