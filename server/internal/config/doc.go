// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `agent:` key is ignored by the server binary).
//
// Config fields:
//   - GRPCPort      — port for the gRPC receiver (default 50051)
//   - HTTPPort      — port for the REST API and WebSocket hub (default 8080)
//   - Auth.Mode     — "apikey" or "none"; "mtls" behind a TLS terminator
//   - Auth.KeyEnv   — environment variable holding the expected API key
//   - Auth.Header   — gRPC metadata/HTTP header name (default "x-api-key")
//   - Retention     — report age (default 30 days) and cap per guide
//   - Analysis      — sample cap and timeout for POST /api/v1/analyze
//   - Alerts        — rules over report fields plus webhook targets
//   - Guides        — guide-spec catalog seeded into the store at startup
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
