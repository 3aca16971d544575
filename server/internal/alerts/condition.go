package alerts

import (
	"strconv"
	"strings"

	"github.com/guidesense/guidesense/pkg/guide"
	"github.com/guidesense/guidesense/pkg/types"
)

// evalCondition evaluates a rule condition string against a DiagnosisReport.
//
// Supported expressions (field operator value):
//
//	health_score < 60
//	kurtosis > 8
//	na4 > 5
//	cwt_np4 > 10
//	max_snr >= 6
//	rul_min < 1440
//	severity >= moderate
//	severity == severe
//	defect_detected == true
//	preload_abnormal == true
//	preload_level == V2
//
// Any key of the report's feature metric maps (time, frequency, envelope,
// higher-order and wavelet bundles) is a valid numeric field. rul_min,
// score_slope_per_hour and uptime_pct read the report outlook and never fire
// on reports without one.
//
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed or the field is unknown.
func evalCondition(cond string, r *types.DiagnosisReport) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	switch field {
	case "severity":
		want := types.SeverityRank(rhs)
		got := types.SeverityRank(r.Severity)
		if want < 0 || got < 0 {
			return false, 0
		}
		return compareFloat(float64(got), op, float64(want)), float64(got)

	case "defect_detected", "bpf_detected", "preload_abnormal":
		b, err := strconv.ParseBool(rhs)
		if err != nil || (op != "==" && op != "!=") {
			return false, 0
		}
		var got bool
		switch field {
		case "defect_detected":
			got = r.EnvelopeFeatures.DefectDetected
		case "bpf_detected":
			got = r.FrequencyFeatures.BPFDetected
		default:
			got = r.PreloadStatus.Condition != guide.ConditionNormal
		}
		v := 0.0
		if got {
			v = 1
		}
		return (got == b) == (op == "=="), v

	case "preload_level":
		switch op {
		case "==":
			return strings.EqualFold(r.PreloadStatus.Level, rhs), 0
		case "!=":
			return !strings.EqualFold(r.PreloadStatus.Level, rhs), 0
		}
		return false, 0

	default:
		v, ok := numericField(field, r)
		if !ok {
			return false, 0
		}
		threshold, err := strconv.ParseFloat(rhs, 64)
		if err != nil {
			return false, 0
		}
		return compareFloat(v, op, threshold), v
	}
}

// numericField maps a field name to its value in the report.
func numericField(field string, r *types.DiagnosisReport) (float64, bool) {
	switch field {
	case "health_score":
		return r.HealthScore, true
	case "velocity":
		return r.Velocity, true
	case "rul_min", "score_slope_per_hour", "uptime_pct":
		if r.Outlook == nil {
			return 0, false
		}
		switch field {
		case "rul_min":
			return r.Outlook.RULMinutes, true
		case "score_slope_per_hour":
			return r.Outlook.ScoreSlopePerHour, true
		default:
			return r.Outlook.UptimePct, true
		}
	}
	for _, m := range []map[string]float64{
		r.TimeFeatures.Metrics(),
		r.FrequencyFeatures.Metrics(),
		r.EnvelopeFeatures.Metrics(),
		r.HigherOrderFeatures.Metrics(),
		r.WaveletFeatures.Metrics(),
	} {
		if v, ok := m[field]; ok {
			return v, true
		}
	}
	return 0, false
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
