package metrics

import (
	"bytes"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/guidesense/guidesense/pkg/types"
	"github.com/guidesense/guidesense/server/internal/store"
)

const namespace = "guidesense_"

// Exporter renders guide health and server counters in the Prometheus text
// exposition format.
//
// Per-guide gauges are read from the store's newest report of each guide at
// scrape time; counters accumulate from Observe.
type Exporter struct {
	store   *store.Store
	firing  func() int
	clients func() int

	mu       sync.Mutex
	received map[string]float64 // by severity
	defects  float64
}

// New creates an Exporter. firing and clients may be nil.
func New(st *store.Store, firing, clients func() int) *Exporter {
	return &Exporter{
		store:    st,
		firing:   firing,
		clients:  clients,
		received: make(map[string]float64),
	}
}

// Observe counts one accepted report.
func (e *Exporter) Observe(r *types.DiagnosisReport) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.received[r.Severity]++
	if r.EnvelopeFeatures.DefectDetected {
		e.defects++
	}
}

// Families returns the current metric families sorted by name.
func (e *Exporter) Families() []*dto.MetricFamily {
	latest := e.store.Latest()

	score := gaugeFamily("guide_health_score", "Health score of the newest report per guide (0-100).")
	severity := gaugeFamily("guide_severity", "Severity rank of the newest report per guide (0 healthy .. 3 severe).")
	kurtosis := gaugeFamily("guide_kurtosis", "Time-domain kurtosis of the newest report per guide.")
	rms := gaugeFamily("guide_rms", "Time-domain RMS of the newest report per guide.")
	defect := gaugeFamily("guide_defect_detected", "1 when the newest envelope analysis found BPF harmonics.")
	last := gaugeFamily("guide_last_report_timestamp_seconds", "Unix time of the newest report per guide.")

	for _, r := range latest {
		labels := guideLabels(r)
		score.Metric = append(score.Metric, gauge(r.HealthScore, labels))
		severity.Metric = append(severity.Metric, gauge(float64(types.SeverityRank(r.Severity)), labels))
		kurtosis.Metric = append(kurtosis.Metric, gauge(r.TimeFeatures.Kurtosis, labels))
		rms.Metric = append(rms.Metric, gauge(r.TimeFeatures.RMS, labels))
		defect.Metric = append(defect.Metric, gauge(boolValue(r.EnvelopeFeatures.DefectDetected), labels))
		last.Metric = append(last.Metric, gauge(float64(r.Timestamp.Unix()), labels))
	}

	stored := gaugeFamily("reports_stored", "Reports currently held in memory.")
	stored.Metric = append(stored.Metric, gauge(float64(e.store.Count()), nil))

	received := counterFamily("reports_received_total", "Reports accepted, by severity.")
	defects := counterFamily("defects_detected_total", "Accepted reports with an envelope defect.")
	e.mu.Lock()
	sevs := make([]string, 0, len(e.received))
	for s := range e.received {
		sevs = append(sevs, s)
	}
	sort.Strings(sevs)
	for _, s := range sevs {
		received.Metric = append(received.Metric, counter(e.received[s], []*dto.LabelPair{label("severity", s)}))
	}
	defects.Metric = append(defects.Metric, counter(e.defects, nil))
	e.mu.Unlock()

	out := []*dto.MetricFamily{score, severity, kurtosis, rms, defect, last, stored, received, defects}
	if e.firing != nil {
		f := gaugeFamily("alerts_firing", "Alerts currently firing.")
		f.Metric = append(f.Metric, gauge(float64(e.firing()), nil))
		out = append(out, f)
	}
	if e.clients != nil {
		f := gaugeFamily("ws_clients", "Connected WebSocket clients.")
		f.Metric = append(f.Metric, gauge(float64(e.clients()), nil))
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

// ServeHTTP writes all families in the text exposition format.
func (e *Exporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var buf bytes.Buffer
	for _, mf := range e.Families() {
		if len(mf.Metric) == 0 {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			slog.Error("metrics: encode family", "name", mf.GetName(), "err", err)
			http.Error(w, "encode metrics", http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	w.Write(buf.Bytes()) //nolint:errcheck
}

func guideLabels(r *types.DiagnosisReport) []*dto.LabelPair {
	return []*dto.LabelPair{
		label("guide_spec_id", strconv.FormatInt(r.GuideSpecID, 10)),
		label("series", r.Series),
	}
}

func gaugeFamily(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(namespace + name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

func counterFamily(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(namespace + name),
		Help: proto.String(help),
		Type: dto.MetricType_COUNTER.Enum(),
	}
}

func gauge(v float64, labels []*dto.LabelPair) *dto.Metric {
	return &dto.Metric{Label: labels, Gauge: &dto.Gauge{Value: proto.Float64(v)}}
}

func counter(v float64, labels []*dto.LabelPair) *dto.Metric {
	return &dto.Metric{Label: labels, Counter: &dto.Counter{Value: proto.Float64(v)}}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
