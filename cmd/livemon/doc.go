// Package main hosts the livemon CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once per invocation, builds
// the structured logger, and hands off to the pipeline, preflight, and history
// packages. Commands print human-readable tables by default and JSON with
// --json so the output can feed other tooling.
package main
