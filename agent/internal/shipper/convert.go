package shipper

import (
	"github.com/guidesense/guidesense/pkg/reportrpc"
	"github.com/guidesense/guidesense/pkg/types"
)

// toRequest wraps a report for SendReport. The server validates that the
// finding and recommendation lists are present, so nil slices from a
// hand-built report are replaced with empty ones.
func toRequest(agentID string, r *types.DiagnosisReport) *reportrpc.SendRequest {
	if r.Findings == nil {
		r.Findings = []string{}
	}
	if r.Recommendations == nil {
		r.Recommendations = []string{}
	}
	if r.EnvelopeFeatures.Detections == nil {
		r.EnvelopeFeatures.Detections = []types.EnvelopeDetection{}
	}
	if r.PreloadStatus.Warnings == nil {
		r.PreloadStatus.Warnings = []string{}
	}
	return &reportrpc.SendRequest{AgentID: agentID, Report: r}
}
