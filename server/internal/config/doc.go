// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `agent:` key is ignored by the server binary).
//
// Config fields:
//   - HTTPPort          - port for the receiver, REST API, /metrics and WebSocket hub (default 8080)
//   - LogLevel          - debug | info | warn | error (default info)
//   - Auth.Mode         - "apikey" or "none"
//   - Auth.KeyEnv       - environment variable holding the expected API key
//   - Auth.Header       - HTTP header name (default "x-api-key")
//   - Report.TTL        - how long a source's latest report remains live (default 5m)
//   - Storage.Backend   - "sqlite" enables report history; empty disables it
//   - Storage.Path      - SQLite database file
//   - Storage.Retention - history age limit (default 7 days)
//   - Alerts            - rules and webhook targets
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
