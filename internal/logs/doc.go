// Package logs reads the daily JSON log files written by livemon.
//
// Tail returns the last lines of a file (optionally filtered by run id or
// minimum level) along with an offset, and can block for new lines in follow
// mode. Latest locates the newest daily file in the log directory.
package logs
