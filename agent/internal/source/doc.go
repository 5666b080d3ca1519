// Package source reads raw diagnostic record text from configured inputs.
//
// Each source type has its own Reader:
//   - file.go - reads a local file; WatchFile re-triggers a poll on change
//   - http.go - GETs a plain-text endpoint
//   - prometheus.go - scrapes a Prometheus text exposition and rebuilds the
//     record list from diagnostic_record{bits="..."} samples
//   - inline records live directly in config.yaml
//
// base.go holds the shared HTTP plumbing: an auth-injecting RoundTripper
// (apikey | bearer | basic) and mTLS client configuration.
//
// Transport failures never surface as the returned error. They are recorded
// in ReadResult.Err so the compute engine can report the source as
// unreachable and keep polling.
package source
