package receiver

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/guidesense/guidesense/pkg/reportrpc"
	"github.com/guidesense/guidesense/pkg/types"
	"github.com/guidesense/guidesense/server/internal/store"
)

// Observer is notified of every accepted report after it is stored.
type Observer func(*types.DiagnosisReport)

// Receiver implements reportrpc.ReportServiceServer.
// It validates each incoming report, stores it and notifies observers
// (alert engine, WebSocket hub, metrics).
type Receiver struct {
	reportrpc.UnimplementedReportServiceServer
	store     *store.Store
	observers []Observer
}

// New creates a Receiver that writes accepted reports to st.
func New(st *store.Store, observers ...Observer) *Receiver {
	return &Receiver{store: st, observers: observers}
}

// SendReport is the unary RPC handler called by guidesense-agent instances.
// It validates the report, stores it, and returns a confirmation.
// Authentication is enforced by the gRPC server interceptor before this is called.
func (r *Receiver) SendReport(ctx context.Context, req *reportrpc.SendRequest) (*reportrpc.SendResponse, error) {
	if err := Validate(req.Report); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	rep := req.Report
	if rep.Source == "" {
		rep.Source = req.AgentID
	}

	r.Accept(rep)

	slog.Debug("receiver: report stored",
		"agent", req.AgentID,
		"source", rep.Source,
		"guide_spec_id", rep.GuideSpecID,
		"severity", rep.Severity,
		"score", rep.HealthScore,
	)

	return &reportrpc.SendResponse{Ok: true}, nil
}

// Accept stores a validated report and notifies observers. The REST analyze
// endpoint uses it for reports produced on the server.
func (r *Receiver) Accept(rep *types.DiagnosisReport) {
	r.store.Put(rep)
	for _, o := range r.observers {
		o(rep)
	}
}

// Validate checks the structural invariants every stored report must hold.
func Validate(rep *types.DiagnosisReport) error {
	switch {
	case rep == nil:
		return fmt.Errorf("report is required")
	case rep.ID == "":
		return fmt.Errorf("report.id is required")
	case rep.Timestamp.IsZero():
		return fmt.Errorf("report.timestamp is required")
	case rep.GuideSpecID < 0:
		return fmt.Errorf("report.guide_spec_id must not be negative")
	case math.IsNaN(rep.HealthScore) || rep.HealthScore < 0 || rep.HealthScore > 100:
		return fmt.Errorf("report.health_score %v out of range [0, 100]", rep.HealthScore)
	case types.SeverityRank(rep.Severity) < 0:
		return fmt.Errorf("report.severity %q unknown", rep.Severity)
	case len(rep.Findings) == 0:
		return fmt.Errorf("report.findings must not be empty")
	case len(rep.Recommendations) == 0:
		return fmt.Errorf("report.recommendations must not be empty")
	}
	return nil
}
