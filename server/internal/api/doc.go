// Package api implements the HTTP REST API for guidesense-server.
//
// New(store, opts) returns an http.Handler that serves:
//
//	GET  /api/v1/health                      fleet score, severity counts, firing alerts
//	GET  /api/v1/guide-specs                 registered guide specs
//	POST /api/v1/guide-specs                 register a guide spec (201, 409 on id clash)
//	GET  /api/v1/guide-specs/{id}            single spec; 404 if unknown
//	POST /api/v1/calculate-frequencies       BPF/BSF/cage + five BPF harmonics
//	POST /api/v1/analyze                     analyse a waveform, store the report
//	GET  /api/v1/results?guide_spec_id=&limit=  newest reports first (default 50)
//	GET  /api/v1/results/{id}                full report with diagnostic hints
//	GET  /api/v1/health-trend/{id}?days=     score/velocity series (default 30 days)
//	POST /api/v1/rul                         baseline remaining-useful-life estimate
//	GET  /api/v1/alerts                      firing and recently resolved alerts
//
// All endpoints respond with Content-Type: application/json and return 405
// for unsupported methods.
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
