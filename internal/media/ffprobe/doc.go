// Package ffprobe wraps the ffprobe binary for stream liveness checks.
//
// Key types:
//   - Prober: runs ffprobe against a stream address with a bounded capture window
//   - Result: parsed ffprobe output containing streams and format metadata
//
// The subprocess runs in its own process group and the whole group is killed
// when the context expires, so protocol helpers spawned by ffprobe cannot
// outlive the probe.
package ffprobe
