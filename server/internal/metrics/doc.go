// Package metrics exposes the server's live reports at GET /metrics in the
// Prometheus text format.
//
// Families are built from the store on every scrape using the client_model
// protobuf types and written with expfmt. All per-source gauges carry a
// source_id label; numeric gauges are emitted only for sources whose latest
// report is ok, while bitdiag_uptime_pct and bitdiag_state cover every source.
package metrics
