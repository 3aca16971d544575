// Package receiver implements reportrpc.ReportServiceServer, the gRPC
// endpoint that accepts diagnosis reports from guidesense-agent instances.
//
// Receiver.SendReport validates the report (id, timestamp, score range,
// severity tier, non-empty findings and recommendations; codes.InvalidArgument
// otherwise), then calls store.Put and notifies the registered observers.
// Authentication is enforced upstream by the gRPC server interceptor (see
// package auth), so the receiver itself only performs structural validation.
//
// New(st, observers...) wires the receiver to the report store.
package receiver
