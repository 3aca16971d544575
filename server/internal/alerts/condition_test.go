package alerts

import (
	"testing"

	"github.com/guidesense/guidesense/pkg/guide"
	"github.com/guidesense/guidesense/pkg/types"
)

func sampleReport() *types.DiagnosisReport {
	return &types.DiagnosisReport{
		ID:           "r1",
		GuideSpecID:  3,
		Series:       "HRC25",
		HealthScore:  55,
		Severity:     types.SeverityModerate,
		TimeFeatures: types.TimeFeatures{Kurtosis: 9.2, RMS: 0.4},
		PreloadStatus: types.PreloadStatus{
			Level:     "V1",
			Condition: guide.ConditionLoss,
		},
		EnvelopeFeatures: types.EnvelopeFeatures{
			DefectDetected: true,
			Detections:     []types.EnvelopeDetection{{Order: 1, Frequency: 190, Amplitude: 0.3, SNR: 7.5}},
		},
		HigherOrderFeatures: types.HigherOrderFeatures{NA4: 4.1},
		WaveletFeatures:     types.WaveletFeatures{CWTNP4: 12},
	}
}

func TestEvalCondition(t *testing.T) {
	withOutlook := sampleReport()
	withOutlook.Outlook = &types.Outlook{RULMinutes: 600, UptimePct: 95}

	tests := []struct {
		cond      string
		r         *types.DiagnosisReport
		wantFire  bool
		wantValue float64
	}{
		{"health_score < 60", sampleReport(), true, 55},
		{"health_score < 50", sampleReport(), false, 55},
		{"kurtosis > 8", sampleReport(), true, 9.2},
		{"na4 >= 4.1", sampleReport(), true, 4.1},
		{"cwt_np4 > 20", sampleReport(), false, 12},
		{"max_snr > 6", sampleReport(), true, 7.5},
		{"severity >= moderate", sampleReport(), true, 2},
		{"severity == severe", sampleReport(), false, 2},
		{"severity >= bogus", sampleReport(), false, 0},
		{"defect_detected == true", sampleReport(), true, 1},
		{"defect_detected != true", sampleReport(), false, 1},
		{"bpf_detected == false", sampleReport(), true, 0},
		{"preload_level == v1", sampleReport(), true, 0},
		{"preload_level != V1", sampleReport(), false, 0},
		{"preload_abnormal == true", sampleReport(), true, 1},
		{"rul_min < 1440", sampleReport(), false, 0},
		{"rul_min < 1440", withOutlook, true, 600},
		{"uptime_pct < 99", withOutlook, true, 95},
		{"unknown_field > 1", sampleReport(), false, 0},
		{"kurtosis > notanumber", sampleReport(), false, 0},
		{"kurtosis ~ 3", sampleReport(), false, 9.2},
		{"kurtosis >", sampleReport(), false, 0},
	}
	for _, tc := range tests {
		t.Run(tc.cond, func(t *testing.T) {
			fires, v := evalCondition(tc.cond, tc.r)
			if fires != tc.wantFire {
				t.Errorf("fires: got %v, want %v", fires, tc.wantFire)
			}
			if fires && v != tc.wantValue {
				t.Errorf("value: got %v, want %v", v, tc.wantValue)
			}
		})
	}
}
