// Package auth provides authentication middleware for guidesense-server.
//
// APIKeyInterceptor(mode, header, key) returns a gRPC UnaryServerInterceptor
// that validates the API key from the named gRPC metadata header.
// HTTPMiddleware applies the same policy to the REST API and the WebSocket
// endpoint.
//
// When mode != "apikey" or key == "", all calls pass through (useful for local
// development with auth disabled). When the key is incorrect or absent,
// the interceptor returns codes.Unauthenticated and the middleware answers
// 401 immediately.
package auth
