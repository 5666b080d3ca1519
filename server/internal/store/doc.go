// Package store keeps the server's view of every source.
//
// Store holds each source's latest Report in memory with TTL eviction.
// History is the optional SQLite log (modernc.org/sqlite, no cgo) of every
// report received, queried per source for timelines and pruned by age.
package store
