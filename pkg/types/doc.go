// Package types defines shared Go types used by both the agent and server.
// Report is the JSON wire format the agent POSTs to /api/v1/reports and the
// server stores, streams, and serves back from its REST API.
package types
