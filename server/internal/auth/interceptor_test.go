package auth

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/guidesense/guidesense/pkg/reportrpc"
	"github.com/guidesense/guidesense/pkg/types"
)

// countingServer accepts every report and counts the calls that reached it.
type countingServer struct {
	reportrpc.UnimplementedReportServiceServer
	calls chan string
}

func (s *countingServer) SendReport(_ context.Context, req *reportrpc.SendRequest) (*reportrpc.SendResponse, error) {
	s.calls <- req.Report.ID
	return &reportrpc.SendResponse{Ok: true}, nil
}

// startGuarded serves ReportService behind APIKeyInterceptor and returns a
// client plus the channel of reports that passed the check.
func startGuarded(t *testing.T, mode, header, key string) (reportrpc.ReportServiceClient, chan string) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &countingServer{calls: make(chan string, 4)}
	gs := grpc.NewServer(grpc.UnaryInterceptor(APIKeyInterceptor(mode, header, key)))
	reportrpc.RegisterReportServiceServer(gs, srv)
	go gs.Serve(lis) //nolint:errcheck
	t.Cleanup(gs.Stop)

	conn, err := grpc.Dial(lis.Addr().String(), //nolint:staticcheck
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return reportrpc.NewReportServiceClient(conn), srv.calls
}

func sendWith(t *testing.T, client reportrpc.ReportServiceClient, kv ...string) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if len(kv) > 0 {
		ctx = metadata.AppendToOutgoingContext(ctx, kv...)
	}
	_, err := client.SendReport(ctx, &reportrpc.SendRequest{
		AgentID: "edge-1",
		Report:  &types.DiagnosisReport{ID: "r-1", GuideSpecID: 3, HealthScore: 82, Severity: types.SeverityMild},
	})
	return err
}

func TestAPIKeyInterceptor_SendReport(t *testing.T) {
	tests := []struct {
		name   string
		mode   string
		header string
		key    string
		md     []string
		want   codes.Code
	}{
		{"mode none admits without key", "none", "x-api-key", "secret", nil, codes.OK},
		{"empty key admits without key", "apikey", "x-api-key", "", nil, codes.OK},
		{"valid key", "apikey", "x-api-key", "secret", []string{"x-api-key", "secret"}, codes.OK},
		{"bearer fallback", "apikey", "x-api-key", "secret", []string{"authorization", "Bearer secret"}, codes.OK},
		{"mixed-case configured header", "apikey", "X-Guide-Token", "secret", []string{"x-guide-token", "secret"}, codes.OK},
		{"wrong key", "apikey", "x-api-key", "secret", []string{"x-api-key", "secreT"}, codes.Unauthenticated},
		{"key prefix only", "apikey", "x-api-key", "secret", []string{"x-api-key", "sec"}, codes.Unauthenticated},
		{"missing key", "apikey", "x-api-key", "secret", nil, codes.Unauthenticated},
		{"key under another header", "apikey", "x-guide-token", "secret", []string{"x-api-key", "secret"}, codes.Unauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, calls := startGuarded(t, tt.mode, tt.header, tt.key)
			err := sendWith(t, client, tt.md...)
			if got := status.Code(err); got != tt.want {
				t.Fatalf("code: got %v, want %v (err %v)", got, tt.want, err)
			}
			if tt.want == codes.OK {
				if id := <-calls; id != "r-1" {
					t.Errorf("report id: got %q", id)
				}
				return
			}
			if len(calls) != 0 {
				t.Error("rejected call reached the service")
			}
		})
	}
}

func TestAPIKeyInterceptor_MissingAndInvalidMessages(t *testing.T) {
	client, _ := startGuarded(t, "apikey", "x-api-key", "secret")

	if err := sendWith(t, client); status.Convert(err).Message() != "missing api key" {
		t.Errorf("missing: got %v", err)
	}
	if err := sendWith(t, client, "x-api-key", "nope"); status.Convert(err).Message() != "invalid api key" {
		t.Errorf("invalid: got %v", err)
	}
}

func TestPolicy_Admits(t *testing.T) {
	if newPolicy("none", "", "k") != nil || newPolicy("apikey", "", "") != nil {
		t.Fatal("disabled modes should yield a nil policy")
	}
	p := newPolicy("apikey", "", "k3y")
	if p.header != "x-api-key" {
		t.Errorf("default header: got %q", p.header)
	}
	for _, tc := range []struct {
		in   string
		want bool
	}{{"k3y", true}, {"", false}, {"k3", false}, {"k3yy", false}, {"K3Y", false}} {
		if got := p.admits(tc.in); got != tc.want {
			t.Errorf("admits(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
