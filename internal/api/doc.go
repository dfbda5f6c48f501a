// Package api serves a read-only HTTP view of livemon state.
//
// Routes:
//
//	GET /healthz       liveness of the process itself
//	GET /api/status    watch loop counters
//	GET /api/live      the persisted live channel list, as written to disk
//	GET /api/tree      the persisted source tree, as written to disk
//	GET /api/history   recent cycles from the run history (?limit=N)
//
// When a token is configured every /api route requires a bearer token.
package api
