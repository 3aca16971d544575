package diagnosis

import (
	"github.com/guidesense/guidesense/pkg/guide"
	"github.com/guidesense/guidesense/pkg/types"
)

// Rule thresholds.
const (
	KurtosisSevere = 8.0
	KurtosisMild   = 5.0
	NA4Limit       = 3.0
	CWTNP4Limit    = 4.0
)

// Rule penalties.
const (
	penaltyKurtosisSevere = 30.0
	penaltyKurtosisMild   = 15.0
	penaltyPreload        = 20.0
	penaltyEnvelope       = 25.0
	penaltyNA4            = 15.0
	penaltyCWT            = 10.0
)

// Severity thresholds on the clamped score.
const (
	ThresholdHealthy  = 90.0
	ThresholdMild     = 75.0
	ThresholdModerate = 60.0
)

// Finding and recommendation texts.
const (
	FindingKurtosisSevere = "severe kurtosis elevation, possible rolling-element/race defect"
	FindingKurtosisMild   = "mild kurtosis elevation, light impacting"
	FindingEnvelope       = "envelope spectrum indicates rolling-element/race defect"
	FindingNA4            = "higher-order statistics abnormal, possible early fault"
	FindingCWT            = "transient impact detected"
	FindingNone           = "no significant anomaly"

	RecommendReplace   = "schedule replacement"
	RecommendMonitor   = "increase monitoring frequency"
	RecommendInspect   = "perform detailed inspection"
	RecommendSpares    = "keep monitoring, prepare spare parts"
	RecommendDebris    = "check for debris or localized defects"
	RecommendRoutine   = "continue routine monitoring"
	findingPreloadStem = "preload condition: "
)

// Input holds the stage results the rule engine reads.
type Input struct {
	Time        types.TimeFeatures
	Preload     types.PreloadStatus
	Envelope    types.EnvelopeFeatures
	HigherOrder types.HigherOrderFeatures
	Wavelet     types.WaveletFeatures
}

// Verdict is the fused result.
type Verdict struct {
	HealthScore     float64
	Severity        string
	Findings        []string
	Recommendations []string
}

// Fuse applies the penalty rules to in. Degraded stages carry zero-filled
// values, so they never trigger a rule. Findings and Recommendations are
// never empty.
func Fuse(in Input) Verdict {
	score := 100.0
	var findings, recs []string

	switch k := in.Time.Kurtosis; {
	case k > KurtosisSevere:
		score -= penaltyKurtosisSevere
		findings = append(findings, FindingKurtosisSevere)
		recs = append(recs, RecommendReplace)
	case k > KurtosisMild:
		score -= penaltyKurtosisMild
		findings = append(findings, FindingKurtosisMild)
		recs = append(recs, RecommendMonitor)
	}

	if c := in.Preload.Condition; c != "" && c != guide.ConditionNormal {
		score -= penaltyPreload
		findings = append(findings, findingPreloadStem+c)
		recs = append(recs, in.Preload.Warnings...)
	}

	if in.Envelope.DefectDetected {
		score -= penaltyEnvelope
		findings = append(findings, FindingEnvelope)
		recs = append(recs, RecommendInspect)
	}

	if in.HigherOrder.NA4 > NA4Limit {
		score -= penaltyNA4
		findings = append(findings, FindingNA4)
		recs = append(recs, RecommendSpares)
	}

	if in.Wavelet.CWTNP4 > CWTNP4Limit {
		score -= penaltyCWT
		findings = append(findings, FindingCWT)
		recs = append(recs, RecommendDebris)
	}

	score = clampScore(score)
	if len(findings) == 0 {
		findings = []string{FindingNone}
	}
	if len(recs) == 0 {
		recs = []string{RecommendRoutine}
	}
	return Verdict{
		HealthScore:     score,
		Severity:        severityFromScore(score),
		Findings:        findings,
		Recommendations: recs,
	}
}

// severityFromScore maps a clamped score to its severity tier.
func severityFromScore(score float64) string {
	switch {
	case score >= ThresholdHealthy:
		return types.SeverityHealthy
	case score >= ThresholdMild:
		return types.SeverityMild
	case score >= ThresholdModerate:
		return types.SeverityModerate
	default:
		return types.SeveritySevere
	}
}

func clampScore(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
