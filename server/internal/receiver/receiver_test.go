package receiver_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/guidesense/guidesense/pkg/reportrpc"
	"github.com/guidesense/guidesense/pkg/types"
	"github.com/guidesense/guidesense/server/internal/auth"
	"github.com/guidesense/guidesense/server/internal/receiver"
	"github.com/guidesense/guidesense/server/internal/store"
)

// recorder collects reports passed to an observer.
type recorder struct {
	mu   sync.Mutex
	seen []*types.DiagnosisReport
}

func (r *recorder) observe(rep *types.DiagnosisReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, rep)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// startServer starts a gRPC server with the given interceptor and returns a
// connected client. Uses a random TCP port.
func startServer(t *testing.T, interceptor grpc.UnaryServerInterceptor) (reportrpc.ReportServiceClient, *store.Store, *recorder) {
	t.Helper()

	st := store.New(time.Hour, 100)
	rec := &recorder{}
	r := receiver.New(st, rec.observe)

	srv := grpc.NewServer(grpc.UnaryInterceptor(interceptor))
	reportrpc.RegisterReportServiceServer(srv, r)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go srv.Serve(lis) //nolint:errcheck

	t.Cleanup(func() {
		srv.Stop()
		lis.Close()
	})

	conn, err := grpc.Dial(lis.Addr().String(), //nolint:staticcheck
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return reportrpc.NewReportServiceClient(conn), st, rec
}

// allowAll is a no-op interceptor that passes every call through.
func allowAll(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	return handler(ctx, req)
}

func validReport(id string) *types.DiagnosisReport {
	return &types.DiagnosisReport{
		ID:              id,
		GuideSpecID:     4,
		Series:          "HRC25",
		Preload:         "V1",
		Timestamp:       time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
		SamplingRate:    25600,
		HealthScore:     72.5,
		Severity:        types.SeverityModerate,
		Findings:        []string{"envelope detected BPF harmonics"},
		Recommendations: []string{"perform detailed inspection"},
	}
}

func TestSendReport_StoresReport(t *testing.T) {
	client, st, rec := startServer(t, allowAll)

	resp, err := client.SendReport(context.Background(), &reportrpc.SendRequest{AgentID: "agent-1", Report: validReport("r1")})
	if err != nil {
		t.Fatalf("SendReport: %v", err)
	}
	if !resp.Ok {
		t.Errorf("Ok: got false, want true")
	}

	got, ok := st.Get("r1")
	if !ok {
		t.Fatal("store.Get: expected report, got none")
	}
	if got.HealthScore != 72.5 || got.Severity != types.SeverityModerate {
		t.Errorf("report: got score=%v severity=%q", got.HealthScore, got.Severity)
	}
	if got.Source != "agent-1" {
		t.Errorf("Source defaults to agent id: got %q", got.Source)
	}
	if !got.Timestamp.Equal(validReport("").Timestamp) {
		t.Errorf("Timestamp: got %v", got.Timestamp)
	}
	if rec.count() != 1 {
		t.Errorf("observer calls: got %d, want 1", rec.count())
	}
}

func TestSendReport_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *types.DiagnosisReport) *types.DiagnosisReport
	}{
		{"nil report", func(*types.DiagnosisReport) *types.DiagnosisReport { return nil }},
		{"missing id", func(r *types.DiagnosisReport) *types.DiagnosisReport { r.ID = ""; return r }},
		{"zero timestamp", func(r *types.DiagnosisReport) *types.DiagnosisReport { r.Timestamp = time.Time{}; return r }},
		{"score above 100", func(r *types.DiagnosisReport) *types.DiagnosisReport { r.HealthScore = 101; return r }},
		{"unknown severity", func(r *types.DiagnosisReport) *types.DiagnosisReport { r.Severity = "catastrophic"; return r }},
		{"no findings", func(r *types.DiagnosisReport) *types.DiagnosisReport { r.Findings = nil; return r }},
		{"no recommendations", func(r *types.DiagnosisReport) *types.DiagnosisReport { r.Recommendations = []string{}; return r }},
		{"negative guide", func(r *types.DiagnosisReport) *types.DiagnosisReport { r.GuideSpecID = -1; return r }},
	}
	client, st, rec := startServer(t, allowAll)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.SendReport(context.Background(), &reportrpc.SendRequest{Report: tc.mutate(validReport("bad"))})
			if code := status.Code(err); code != codes.InvalidArgument {
				t.Errorf("code: got %v, want InvalidArgument", code)
			}
		})
	}
	if st.Count() != 0 || rec.count() != 0 {
		t.Errorf("invalid reports must not be stored: count=%d observed=%d", st.Count(), rec.count())
	}
}

func TestSendReport_MultipleReports_AllStored(t *testing.T) {
	client, st, _ := startServer(t, allowAll)

	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		if _, err := client.SendReport(context.Background(), &reportrpc.SendRequest{Report: validReport(id)}); err != nil {
			t.Fatalf("SendReport %q: %v", id, err)
		}
	}
	if n := st.Count(); n != 3 {
		t.Errorf("store.Count: got %d, want 3", n)
	}
}

func TestSendReport_WithAPIKeyInterceptor_CorrectKey_Passes(t *testing.T) {
	i := auth.APIKeyInterceptor("apikey", "x-api-key", "testkey")
	client, st, _ := startServer(t, i)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "testkey")
	if _, err := client.SendReport(ctx, &reportrpc.SendRequest{Report: validReport("r1")}); err != nil {
		t.Fatalf("SendReport with correct key: %v", err)
	}
	if st.Count() != 1 {
		t.Errorf("store.Count: got %d, want 1", st.Count())
	}
}

func TestSendReport_WithAPIKeyInterceptor_WrongKey_Rejected(t *testing.T) {
	i := auth.APIKeyInterceptor("apikey", "x-api-key", "testkey")
	client, _, _ := startServer(t, i)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "wrongkey")
	_, err := client.SendReport(ctx, &reportrpc.SendRequest{Report: validReport("r1")})
	if code := status.Code(err); code != codes.Unauthenticated {
		t.Errorf("code: got %v, want Unauthenticated", code)
	}
}

func TestSendReport_WithAPIKeyInterceptor_MissingKey_Rejected(t *testing.T) {
	i := auth.APIKeyInterceptor("apikey", "x-api-key", "testkey")
	client, _, _ := startServer(t, i)

	_, err := client.SendReport(context.Background(), &reportrpc.SendRequest{Report: validReport("r1")})
	if code := status.Code(err); code != codes.Unauthenticated {
		t.Errorf("code: got %v, want Unauthenticated", code)
	}
}
