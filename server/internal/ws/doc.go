// Package ws implements the WebSocket live stream for guidesense-server.
//
// Hub manages a set of connected clients. Every accepted report is pushed
// to all of them as it arrives (Hub.Publish), and a fleet summary built from
// the newest report of each guide is broadcast on a configurable interval.
//
// Message format sent to clients:
//
//	{"event": "report",  "data": { /* full DiagnosisReport */ }}
//	{"event": "summary", "data": {"guides": [...], "report_count": n, "generated_at": "..."}}
//
// Hub.ServeHTTP sends a summary immediately on connect. Hub.Run(ctx) blocks
// until ctx is cancelled, then closes all active connections.
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The endpoint is mounted at /ws/stream by the server.
package ws
