// Package types defines the shared Go types used by the agent, the server
// and the guidectl CLI. DiagnosisReport and its feature bundles are the
// stable interchange contract: the JSON field names below are consumed by
// the server store, the REST API, the WebSocket stream and any external
// persistence or trend-charting collaborator.
package types
