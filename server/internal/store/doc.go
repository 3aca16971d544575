// Package store holds diagnosis reports and the guide-spec registry in
// memory for the REST API, WebSocket hub, alert engine and metrics.
package store
