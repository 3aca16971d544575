package reportrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/guidesense/guidesense/pkg/types"
)

// Service and method names.
const (
	ServiceName          = "guidesense.v1.ReportService"
	FullMethodSendReport = "/" + ServiceName + "/SendReport"
)

// SendRequest carries one report from an agent.
type SendRequest struct {
	AgentID string                 `json:"agent_id"`
	Report  *types.DiagnosisReport `json:"report"`
}

// SendResponse acknowledges a report.
type SendResponse struct {
	Ok      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// ReportServiceServer is the server API for ReportService.
type ReportServiceServer interface {
	SendReport(context.Context, *SendRequest) (*SendResponse, error)
}

// UnimplementedReportServiceServer can be embedded for forward
// compatibility.
type UnimplementedReportServiceServer struct{}

func (UnimplementedReportServiceServer) SendReport(context.Context, *SendRequest) (*SendResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SendReport not implemented")
}

// RegisterReportServiceServer registers srv on s.
func RegisterReportServiceServer(s grpc.ServiceRegistrar, srv ReportServiceServer) {
	s.RegisterService(&ReportService_ServiceDesc, srv)
}

func sendReportHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SendRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReportServiceServer).SendReport(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethodSendReport}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReportServiceServer).SendReport(ctx, req.(*SendRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ReportService_ServiceDesc is the grpc.ServiceDesc for ReportService.
var ReportService_ServiceDesc = grpc.ServiceDesc{ //nolint:revive // generated-code naming
	ServiceName: ServiceName,
	HandlerType: (*ReportServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendReport", Handler: sendReportHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "guidesense/v1/report.json",
}

// ReportServiceClient is the client API for ReportService.
type ReportServiceClient interface {
	SendReport(ctx context.Context, in *SendRequest, opts ...grpc.CallOption) (*SendResponse, error)
}

type reportServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewReportServiceClient returns a client that always uses the JSON codec.
func NewReportServiceClient(cc grpc.ClientConnInterface) ReportServiceClient {
	return &reportServiceClient{cc: cc}
}

func (c *reportServiceClient) SendReport(ctx context.Context, in *SendRequest, opts ...grpc.CallOption) (*SendResponse, error) {
	out := new(SendResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, FullMethodSendReport, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
