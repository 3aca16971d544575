package api

import (
	"github.com/guidesense/guidesense/pkg/guide"
	"github.com/guidesense/guidesense/pkg/rul"
	"github.com/guidesense/guidesense/pkg/types"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	OverallScore  float64 `json:"overall_score"`
	State         string  `json:"state"`
	GuideCount    int     `json:"guide_count"`
	ReportCount   int     `json:"report_count"`
	HealthyCount  int     `json:"healthy_count"`
	MildCount     int     `json:"mild_count"`
	ModerateCount int     `json:"moderate_count"`
	SevereCount   int     `json:"severe_count"`
	AlertCount    int     `json:"alert_count"`
}

// CreatedResponse is the payload for POST /api/v1/guide-specs.
type CreatedResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// FrequencyRequest is the body of POST /api/v1/calculate-frequencies.
// Either Series or the explicit geometry (D, L, n_balls) is given; explicit
// values override the series catalog.
type FrequencyRequest struct {
	V            float64 `json:"v"`       // m/s
	D            float64 `json:"D"`       // ball diameter, mm
	L            float64 `json:"L"`       // raceway length, mm
	NBalls       int     `json:"n_balls"` // balls in the loaded zone
	ContactAngle float64 `json:"contact_angle"`
	Series       string  `json:"series"`
}

// FrequencyResponse carries frequencies rounded to two decimals.
type FrequencyResponse struct {
	BPF       float64          `json:"BPF"`
	BSF       float64          `json:"BSF"`
	CageFreq  float64          `json:"Cage_Freq"`
	BPF2x     float64          `json:"2xBPF"`
	BPF3x     float64          `json:"3xBPF"`
	Harmonics []guide.Harmonic `json:"harmonics"`
	Geometry  types.Geometry   `json:"geometry"`
}

// AnalyzeRequest is the body of POST /api/v1/analyze. When GuideSpecID
// names a registered spec, its series and preload take precedence.
type AnalyzeRequest struct {
	SignalData  []float64 `json:"signal_data"`
	Fs          int       `json:"fs"`
	Velocity    float64   `json:"velocity"`
	GuideSpecID int64     `json:"guide_spec_id"`
	Series      string    `json:"series"`
	Preload     string    `json:"preload"`
}

// ResultSummary is one entry of GET /api/v1/results.
type ResultSummary struct {
	ID                string                  `json:"id"`
	GuideSpecID       int64                   `json:"guide_spec_id"`
	Timestamp         string                  `json:"timestamp"` // RFC3339
	Velocity          float64                 `json:"velocity"`
	HealthScore       float64                 `json:"health_score"`
	Severity          string                  `json:"severity"`
	Source            string                  `json:"source,omitempty"`
	TimeFeatures      types.TimeFeatures      `json:"time_features"`
	FrequencyFeatures types.FrequencyFeatures `json:"frequency_features"`
	Findings          []string                `json:"findings"`
}

// ResultResponse is the payload for GET /api/v1/results/{id} and
// POST /api/v1/analyze: the full report plus diagnostic hints.
type ResultResponse struct {
	*types.DiagnosisReport
	Diagnostics []DiagnosticHint `json:"diagnostics"`
}

// HealthTrendResponse is the payload for GET /api/v1/health-trend/{id}.
type HealthTrendResponse struct {
	GuideSpecID int64              `json:"guide_spec_id"`
	Days        int                `json:"days"`
	DataPoints  int                `json:"data_points"`
	Trend       []types.TrendPoint `json:"trend"`
}

// RULRequest is the body of POST /api/v1/rul. Kurtosis takes precedence
// over the stored history of GuideSpecID. Bearing names a PHM 2012 training
// bearing whose known RUL is used to score the prediction.
type RULRequest struct {
	Kurtosis    []float64 `json:"kurtosis"`
	GuideSpecID int64     `json:"guide_spec_id"`
	Bearing     string    `json:"bearing"`
}

// RULResponse is the payload for POST /api/v1/rul.
type RULResponse struct {
	rul.Estimate
	GuideSpecID   int64    `json:"guide_spec_id,omitempty"`
	Bearing       string   `json:"bearing,omitempty"`
	ActualMinutes *float64 `json:"actual_rul_min,omitempty"`
	Score         *float64 `json:"score,omitempty"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
