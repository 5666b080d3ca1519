// Package receiver implements POST /api/v1/reports, the endpoint that accepts
// Reports from bitdiag-agent instances.
//
// The body is one Report or a JSON array of Reports (the agent shipper sends
// arrays). Each report needs a source_id and a known state; an "ok" report
// must also carry records and width. A malformed batch is rejected as a whole
// with 400. Accepted reports are stored in the live store, appended to the
// SQLite history when enabled, and evaluated by the alert engine. The
// response is 202 with {"accepted": n}.
package receiver
