// Package ws implements the WebSocket hub for bitdiag-server, mounted at
// /ws/stream.
//
// Hub pushes the same document as GET /api/v1/snapshot to every connected
// client: once on connect, then every interval (5s in production):
//
//	{
//	  "event": "snapshot",
//	  "data":  { "reports": [...], "alerts": [...], "generated_at": "..." }
//	}
//
// Run(ctx) drives the ticker and closes every connection when ctx ends.
// A client whose send buffer fills up is dropped.
package ws
