package auth

import (
	"context"
	"crypto/subtle"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// policy is the API key check shared by the gRPC and HTTP entry points.
type policy struct {
	header string
	key    string
}

// newPolicy returns nil when mode is not "apikey" or no key is configured;
// a nil policy admits every caller.
func newPolicy(mode, header, key string) *policy {
	if mode != "apikey" || key == "" {
		return nil
	}
	if header == "" {
		header = "x-api-key"
	}
	return &policy{header: header, key: key}
}

func (p *policy) admits(presented string) bool {
	return presented != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(p.key)) == 1
}

// fromMetadata extracts the presented key from incoming gRPC metadata. The
// configured header wins; "authorization: Bearer <key>" is the fallback.
// gRPC lowercases metadata keys on the wire, so the lookup does as well.
func (p *policy) fromMetadata(md metadata.MD) string {
	if vals := md.Get(strings.ToLower(p.header)); len(vals) > 0 && vals[0] != "" {
		return vals[0]
	}
	for _, v := range md.Get("authorization") {
		if k, ok := strings.CutPrefix(v, "Bearer "); ok {
			return k
		}
	}
	return ""
}

// APIKeyInterceptor returns a unary interceptor that rejects report
// submissions without the configured key with codes.Unauthenticated.
// Modes other than "apikey", or an empty key, disable the check.
func APIKeyInterceptor(mode, header, key string) grpc.UnaryServerInterceptor {
	p := newPolicy(mode, header, key)
	return func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if p == nil {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		presented := p.fromMetadata(md)
		switch {
		case presented == "":
			return nil, status.Error(codes.Unauthenticated, "missing api key")
		case !p.admits(presented):
			return nil, status.Error(codes.Unauthenticated, "invalid api key")
		}
		return handler(ctx, req)
	}
}
