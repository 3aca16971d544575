// Package reportrpc defines ReportService, the unary gRPC API the agent uses
// to deliver diagnosis reports to the server.
//
// Messages are plain Go structs carried by a JSON codec registered under the
// content subtype "json" (wire content-type application/grpc+json), so the
// report schema stays the single JSON contract in pkg/types. The client
// stub selects the codec on every call; the server picks it up from the
// request's content-type.
//
// The service descriptor, server registration and client stub follow the
// shape of protoc-generated code so the transport can move to protobuf
// messages without touching callers.
package reportrpc
