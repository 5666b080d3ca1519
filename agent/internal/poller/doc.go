// Package poller schedules source reads for the agent.
//
// A Poller holds one pipeline (config.Source + source.Reader) per source and
// shares a single compute.Engine across them. PollAll fans reads out with an
// errgroup capped at 8 concurrent sources; each result goes through
// Engine.Process and the resulting Report is handed to a Sink (the shipper).
//
// Apply is called once at startup and again on every config hot-reload. It
// diffs the new source list against the running pipelines so unchanged
// sources keep their digest and uptime history.
package poller
