// Package api implements the HTTP REST API for bitdiag-server.
//
// New(store, history, alerts) returns a Handler that serves:
//
//	GET  /api/v1/health                    - per-state counts and overall state
//	GET  /api/v1/reports                   - latest report of every live source
//	GET  /api/v1/reports/{id}              - single source; 404 if unknown or stale
//	GET  /api/v1/reports/{id}/history      - SQLite history (?limit=N&since=RFC3339)
//	POST /api/v1/diagnose                  - diagnose raw record text; 422 on failure
//	GET  /api/v1/alerts                    - firing and recently resolved alerts
//	GET  /api/v1/snapshot                  - reports + alerts + generated_at
//
// POST /api/v1/reports (agent ingest) lives in package receiver.
//
// Every report carries hints: short notes on tie positions, underflow,
// invalid input, unreachable sources, low uptime and changed input.
//
// All endpoints respond with Content-Type: application/json and return 405
// for the wrong method. JSON types are defined in types.go.
package api
