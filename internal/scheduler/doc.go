// Package scheduler fans liveness probes out over a bounded worker pool.
//
// Channel records are deduplicated by address before scheduling, so every
// unique address is probed exactly once per cycle and the verdict is applied
// to every record that shares it. Unique addresses are split into fixed-size
// batches that run one after another; inside a batch at most Workers probes
// are in flight. Each probe runs under a hard wall-clock ceiling that wraps
// every tier, and a probe that outlives the ceiling is reported as
// probe_timeout no matter which tier was running.
package scheduler
