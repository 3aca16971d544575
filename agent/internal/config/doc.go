// Package config loads and watches the agent configuration file (config.yaml).
//
// Top-level types:
//   - Config{Agent} — config tree parsed from YAML
//   - AgentConfig — id, server_endpoint, poll_interval, buffer_size, workers,
//     max_samples, analysis_timeout, history_size, sources [], server_auth
//   - Source — id, type (spool|http), path/archive_dir or endpoint,
//     velocity_endpoint, format (csv|phm|json), column, axis, sampling_rate,
//     velocity, guide{spec_id, series, preload}, auth, tls
//   - AuthConfig — mode (mtls|apikey|bearer|basic|none), cert/key/ca files,
//     header, key_env, token_env, password_env; Key(), Token() and
//     Password() resolve secrets from environment variables
//
// Load(path) reads the YAML file, applies defaults (30s poll, 1000 buffer,
// 4 workers, csv format), then validates required fields and enums.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It handles the rename→create pattern
// used by atomic-save editors (vim, VS Code) by re-adding the watch after
// each reload.
package config
