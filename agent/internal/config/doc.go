// Package config loads and watches the agent configuration file (config.yaml).
//
// Top-level types:
//   - Config{Agent} - agent section parsed from YAML; `server:` is ignored
//   - AgentConfig - server_endpoint, poll_interval, buffer_size,
//     log_level, sources [], server_auth
//   - Source - id, type (file|http|inline|prometheus), path, watch, endpoint,
//     data, auth, tls
//   - AuthConfig - mode (mtls|apikey|bearer|basic|none), cert/key/ca files,
//     header, key_env, token_env, username, password_env; Key(), Token() and
//     Password() resolve secrets from environment variables
//
// Load(path) reads the YAML file, applies defaults (30s poll, 1000 buffer,
// info logging), then validates required fields and enums.
//
// Watch(ctx, path, onChange) uses fswatch (fsnotify on the parent directory)
// to detect file changes and calls onChange with the newly parsed Config, so
// the rename→create pattern of atomic-save editors (vim, VS Code) is handled.
package config
