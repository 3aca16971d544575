// Package security inspects the TLS certificate presented by each https
// sensor gateway so the agent can warn before a gateway certificate expiry
// stops captures.
package security
