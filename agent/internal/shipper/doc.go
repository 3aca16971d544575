// Package shipper sends diagnosis reports to guidesense-server via gRPC
// (ReportService.SendReport unary RPC, JSON codec from pkg/reportrpc).
//
// Shipper.Ship() is non-blocking: reports are wrapped in a SendRequest and
// placed in an in-memory channel (default capacity 1000). When the buffer is
// full the oldest entry is evicted so the latest diagnosis is always kept.
//
// Shipper.Run() drains the buffer in a loop, reconnecting with truncated
// exponential backoff (1s→60s, ±25% jitter) on connection or send errors.
// Permanent gRPC errors (Unauthenticated, PermissionDenied, InvalidArgument)
// discard the report immediately rather than retrying.
//
// Auth: mTLS via credentials.NewTLS(), API key via gRPC metadata header,
// or insecure (plaintext) for local development.
//
// The dialFn field is injectable for testing (net.Listen on 127.0.0.1:0).
package shipper
