// Package shipper sends diagnostic Reports to bitdiag-server over HTTP
// (POST /api/v1/reports with a JSON array body).
//
// Shipper.Ship() is non-blocking: reports are placed in an in-memory channel
// (default capacity 1000). When the buffer is full the oldest entry is evicted
// so the latest data is always preserved.
//
// Shipper.Run() drains the buffer in batches of up to 100, retrying a failed
// batch with truncated exponential backoff (1s→60s, ±25% jitter). Responses
// 400, 401, 403, 413 and 422 are permanent: the batch is discarded instead of
// retried.
//
// Auth reuses the source package's transport: API key header, bearer, basic,
// or an mTLS client certificate from agent.server_auth.
package shipper
