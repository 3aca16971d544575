// Package capture acquires vibration waveforms for each configured source
// and hands them to the compute engine as Capture values.
//
// Implemented capturers: spool directories watched with fsnotify
// (spool.go) and polled sensor gateways (http.go). Factory: New(config.Source)
// returns the correct Capturer.
//
// HTTP authentication (mTLS, API key, bearer token, basic) is handled by the
// shared authRoundTripper in base.go. A gateway may also expose a Prometheus
// text endpoint whose guide_velocity_mps gauge overrides the configured
// traverse velocity.
package capture
