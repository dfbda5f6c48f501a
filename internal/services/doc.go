// Package services defines shared utilities consumed by the refresh and probe
// components.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, source addresses, and channel
//     addresses for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the kinds reported in the cycle summary (fetch, stale, parse,
//     probe timeout, probe rejected, process failure).
//
// Use these helpers when wiring new components so failures are recovered at
// the smallest scope and reported with the same vocabulary everywhere.
package services
