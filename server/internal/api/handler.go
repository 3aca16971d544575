package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/guidesense/guidesense/pkg/diagnosis"
	"github.com/guidesense/guidesense/pkg/guide"
	"github.com/guidesense/guidesense/pkg/rul"
	"github.com/guidesense/guidesense/pkg/types"
	"github.com/guidesense/guidesense/server/internal/alerts"
	"github.com/guidesense/guidesense/server/internal/config"
	"github.com/guidesense/guidesense/server/internal/store"
)

const (
	defaultResultLimit = 50
	maxResultLimit     = 1000
	defaultTrendDays   = 30
	harmonicCount      = 5
	bytesPerSample     = 32
)

// AlertSource lists the current alerts. *alerts.Engine implements it.
type AlertSource interface {
	Active() []*alerts.Alert
}

// Options configures the optional collaborators of a Handler.
type Options struct {
	// Analyzer runs POST /api/v1/analyze. Defaults to diagnosis.New().
	Analyzer *diagnosis.Analyzer

	// Accept stores a report produced by POST /api/v1/analyze and notifies
	// the live subsystems. Defaults to store.Put.
	Accept func(*types.DiagnosisReport)

	// Alerts backs GET /api/v1/alerts. Nil yields an empty list.
	Alerts AlertSource

	// MaxSamples caps the analysed signal length. Zero disables the cap.
	MaxSamples int

	// Timeout bounds one analysis. Zero disables it.
	Timeout time.Duration

	Version string
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads report history and guide specs from the store and returns JSON
// responses.
type Handler struct {
	store *store.Store
	opts  Options
	now   func() time.Time
	mux   *http.ServeMux
}

// New creates a Handler wired to the given store and registers all routes.
func New(st *store.Store, opts Options) http.Handler {
	if opts.Analyzer == nil {
		opts.Analyzer = diagnosis.New()
	}
	if opts.Accept == nil {
		opts.Accept = st.Put
	}
	h := &Handler{store: st, opts: opts, now: time.Now, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/guide-specs", h.guideSpecs)
	h.mux.HandleFunc("/api/v1/guide-specs/", h.getGuideSpec) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/calculate-frequencies", h.calculateFrequencies)
	h.mux.HandleFunc("/api/v1/analyze", h.analyze)
	h.mux.HandleFunc("/api/v1/results", h.listResults)
	h.mux.HandleFunc("/api/v1/results/", h.getResult)
	h.mux.HandleFunc("/api/v1/health-trend/", h.healthTrend)
	h.mux.HandleFunc("/api/v1/rul", h.predictRUL)
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: fleet score, severity counts and alerts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	latest := h.store.Latest()
	resp := HealthResponse{
		Status:      "running",
		Version:     h.opts.Version,
		GuideCount:  len(latest),
		ReportCount: h.store.Count(),
	}
	if h.opts.Alerts != nil {
		for _, a := range h.opts.Alerts.Active() {
			if a.State == alerts.StateFiring {
				resp.AlertCount++
			}
		}
	}

	if len(latest) == 0 {
		resp.State = "unknown"
		jsonResp(w, http.StatusOK, resp)
		return
	}

	var total float64
	for _, rep := range latest {
		total += rep.HealthScore
		switch rep.Severity {
		case types.SeverityHealthy:
			resp.HealthyCount++
		case types.SeverityMild:
			resp.MildCount++
		case types.SeverityModerate:
			resp.ModerateCount++
		default:
			resp.SevereCount++
		}
	}
	resp.OverallScore = total / float64(len(latest))
	resp.State = worstSeverity(latest)
	jsonResp(w, http.StatusOK, resp)
}

// guideSpecs serves GET and POST /api/v1/guide-specs.
func (h *Handler) guideSpecs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jsonResp(w, http.StatusOK, h.store.Specs())
	case http.MethodPost:
		var g types.GuideSpec
		if !decodeBody(w, r, 1<<16, &g) {
			return
		}
		g.Series = strings.TrimSpace(g.Series)
		g.Preload = strings.ToUpper(strings.TrimSpace(g.Preload))
		if g.Preload == "" {
			g.Preload = guide.DefaultPreloadClass
		}
		if g.ID < 0 {
			jsonErr(w, http.StatusBadRequest, "id must not be negative")
			return
		}
		if err := config.ValidateGuideSpec(g); err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		created, err := h.store.CreateSpec(g)
		if errors.Is(err, store.ErrSpecExists) {
			jsonErr(w, http.StatusConflict, err.Error())
			return
		}
		if err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Info("api: guide spec created", "id", created.ID, "series", created.Series)
		jsonResp(w, http.StatusCreated, CreatedResponse{ID: created.ID, Message: "guide specification created"})
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// getGuideSpec returns GET /api/v1/guide-specs/{id}.
func (h *Handler) getGuideSpec(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/api/v1/guide-specs/")
	if raw == "" {
		h.guideSpecs(w, r)
		return
	}
	id, ok := parseID(w, raw)
	if !ok {
		return
	}
	g, found := h.store.Spec(id)
	if !found {
		jsonErr(w, http.StatusNotFound, "guide specification not found")
		return
	}
	jsonResp(w, http.StatusOK, g)
}

// calculateFrequencies returns POST /api/v1/calculate-frequencies.
func (h *Handler) calculateFrequencies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req FrequencyRequest
	if !decodeBody(w, r, 1<<12, &req) {
		return
	}
	if req.V < 0 || !finite(req.V) {
		jsonErr(w, http.StatusBadRequest, "v must be finite and non-negative")
		return
	}
	if req.D < 0 || req.L < 0 || req.NBalls < 0 {
		jsonErr(w, http.StatusBadRequest, "D, L and n_balls must not be negative")
		return
	}

	geom, _ := guide.Resolve(req.Series)
	if req.D > 0 {
		geom.BallDiameterMM = req.D
	}
	if req.L > 0 {
		geom.RacewayLengthMM = req.L
	}
	if req.NBalls > 0 {
		geom.BallCount = req.NBalls
	}
	if req.ContactAngle > 0 {
		geom.ContactAngleDeg = req.ContactAngle
	}

	set := guide.Frequencies(geom, req.V)
	harmonics := guide.Harmonics(set, harmonicCount)
	for i := range harmonics {
		harmonics[i].Frequency = round2(harmonics[i].Frequency)
	}
	jsonResp(w, http.StatusOK, FrequencyResponse{
		BPF:       round2(set.BPF),
		BSF:       round2(set.BSF),
		CageFreq:  round2(set.CageFreq),
		BPF2x:     round2(set.BPF2x),
		BPF3x:     round2(set.BPF3x),
		Harmonics: harmonics,
		Geometry:  geom,
	})
}

// analyze runs POST /api/v1/analyze: one waveform in, one stored report out.
func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := int64(1 << 20)
	if h.opts.MaxSamples > 0 {
		limit = int64(h.opts.MaxSamples)*bytesPerSample + 1<<12
	}
	var req AnalyzeRequest
	if !decodeBody(w, r, limit, &req) {
		return
	}
	if h.opts.MaxSamples > 0 && len(req.SignalData) > h.opts.MaxSamples {
		jsonErr(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("signal has %d samples, limit is %d", len(req.SignalData), h.opts.MaxSamples))
		return
	}

	identity := types.GuideIdentity{SpecID: req.GuideSpecID, Series: req.Series, Preload: req.Preload}
	if req.GuideSpecID != 0 {
		g, ok := h.store.Spec(req.GuideSpecID)
		if !ok {
			jsonErr(w, http.StatusNotFound, "guide specification not found")
			return
		}
		identity = g.Identity()
	}

	ctx := r.Context()
	if h.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.Timeout)
		defer cancel()
	}

	rep, err := h.opts.Analyzer.Analyze(ctx, types.Sample{
		Samples:      req.SignalData,
		SamplingRate: req.Fs,
		Velocity:     req.Velocity,
		Guide:        identity,
	})
	var inputErr *diagnosis.InputError
	if errors.As(err, &inputErr) {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("api: analysis failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	h.opts.Accept(rep)
	slog.Info("api: analysis stored",
		"id", rep.ID,
		"guide_spec_id", rep.GuideSpecID,
		"score", rep.HealthScore,
		"severity", rep.Severity,
	)
	jsonResp(w, http.StatusCreated, ResultResponse{DiagnosisReport: rep, Diagnostics: computeDiagnostics(rep)})
}

// listResults returns GET /api/v1/results?guide_spec_id=&limit=, newest first.
func (h *Handler) listResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := r.URL.Query()

	var guideID int64
	if raw := q.Get("guide_spec_id"); raw != "" {
		id, ok := parseID(w, raw)
		if !ok {
			return
		}
		guideID = id
	}
	limit := defaultResultLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxResultLimit {
			jsonErr(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxResultLimit))
			return
		}
		limit = n
	}

	reports := h.store.Results(guideID, limit)
	out := make([]ResultSummary, 0, len(reports))
	for _, rep := range reports {
		out = append(out, toSummary(rep))
	}
	jsonResp(w, http.StatusOK, out)
}

// getResult returns GET /api/v1/results/{id}: the full report.
func (h *Handler) getResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/results/")
	if id == "" {
		h.listResults(w, r)
		return
	}
	rep, ok := h.store.Get(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "result not found")
		return
	}
	jsonResp(w, http.StatusOK, ResultResponse{DiagnosisReport: rep, Diagnostics: computeDiagnostics(rep)})
}

// healthTrend returns GET /api/v1/health-trend/{guide_spec_id}?days=.
func (h *Handler) healthTrend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, ok := parseID(w, strings.TrimPrefix(r.URL.Path, "/api/v1/health-trend/"))
	if !ok {
		return
	}
	days := defaultTrendDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			jsonErr(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}

	trend := h.store.Trend(id, h.now().Add(-time.Duration(days)*24*time.Hour))
	if trend == nil {
		trend = []types.TrendPoint{}
	}
	jsonResp(w, http.StatusOK, HealthTrendResponse{
		GuideSpecID: id,
		Days:        days,
		DataPoints:  len(trend),
		Trend:       trend,
	})
}

// predictRUL returns POST /api/v1/rul: the baseline RUL estimate.
func (h *Handler) predictRUL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req RULRequest
	if !decodeBody(w, r, 1<<20, &req) {
		return
	}

	history := req.Kurtosis
	if len(history) == 0 && req.GuideSpecID != 0 {
		if _, ok := h.store.Spec(req.GuideSpecID); !ok && len(h.store.KurtosisHistory(req.GuideSpecID)) == 0 {
			jsonErr(w, http.StatusNotFound, "guide specification not found")
			return
		}
		history = h.store.KurtosisHistory(req.GuideSpecID)
	}
	for _, k := range history {
		if !finite(k) {
			jsonErr(w, http.StatusBadRequest, "kurtosis values must be finite")
			return
		}
	}

	resp := RULResponse{Estimate: rul.Baseline(history), GuideSpecID: req.GuideSpecID}
	if req.Bearing != "" {
		actual, ok := rul.ActualRUL(req.Bearing)
		if !ok {
			jsonErr(w, http.StatusBadRequest, fmt.Sprintf("unknown training bearing %q", req.Bearing))
			return
		}
		score := rul.Score(resp.PredictedMinutes, actual)
		resp.Bearing = req.Bearing
		resp.ActualMinutes = &actual
		resp.Score = &score
	}
	jsonResp(w, http.StatusOK, resp)
}

// alerts returns GET /api/v1/alerts: firing and recently resolved alerts.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.opts.Alerts == nil {
		jsonResp(w, http.StatusOK, []*alerts.Alert{})
		return
	}
	jsonResp(w, http.StatusOK, h.opts.Alerts.Active())
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// decodeBody decodes a JSON request body of at most limit bytes into v and
// writes the error response itself when that fails.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonErr(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		jsonErr(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func parseID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		jsonErr(w, http.StatusBadRequest, fmt.Sprintf("invalid id %q", raw))
		return 0, false
	}
	return id, true
}

// worstSeverity returns the most severe tier among reports.
func worstSeverity(reports []*types.DiagnosisReport) string {
	worst := types.SeverityHealthy
	for _, r := range reports {
		if types.SeverityRank(r.Severity) > types.SeverityRank(worst) {
			worst = r.Severity
		}
	}
	return worst
}

func toSummary(r *types.DiagnosisReport) ResultSummary {
	return ResultSummary{
		ID:                r.ID,
		GuideSpecID:       r.GuideSpecID,
		Timestamp:         r.Timestamp.UTC().Format(time.RFC3339),
		Velocity:          r.Velocity,
		HealthScore:       r.HealthScore,
		Severity:          r.Severity,
		Source:            r.Source,
		TimeFeatures:      r.TimeFeatures,
		FrequencyFeatures: r.FrequencyFeatures,
		Findings:          r.Findings,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
