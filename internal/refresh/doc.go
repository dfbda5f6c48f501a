// Package refresh runs one reconciliation pass over the persisted source tree.
//
// Source indexes are fetched concurrently, then platform channel lists for
// every source whose index was accepted. Network work fans out; every tree
// mutation happens afterwards on the calling goroutine, so the tree has a
// single writer.
package refresh
