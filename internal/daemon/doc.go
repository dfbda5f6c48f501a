// Package daemon repeats livemon cycles on a fixed interval until cancelled.
//
// Each tick runs one pipeline cycle and publishes its outcome through the
// notifications service. A tick that finds the data directory locked by
// another process is skipped rather than treated as a failure.
package daemon
