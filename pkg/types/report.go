package types

import "time"

// Severity tiers returned by the diagnosis rule engine, ordered from best
// to worst.
const (
	SeverityHealthy  = "healthy"
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

// SeverityRank maps a severity tier to its ordinal position (0 = healthy).
// Unknown values rank as -1.
func SeverityRank(s string) int {
	switch s {
	case SeverityHealthy:
		return 0
	case SeverityMild:
		return 1
	case SeverityModerate:
		return 2
	case SeveritySevere:
		return 3
	default:
		return -1
	}
}

// GuideIdentity names the linear guide a waveform was captured on.
type GuideIdentity struct {
	// SpecID is the guide-spec record id assigned by the persistence side.
	// Zero when the caller has no registered spec.
	SpecID int64 `json:"guide_spec_id"`

	// Series is the guide series code, e.g. "HRC25" or "MR15".
	Series string `json:"series"`

	// Preload is the nominal preload class: VC | V0 | V1 | V2.
	Preload string `json:"preload"`
}

// Sample is one single-axis vibration capture. The analysis pipeline never
// mutates it.
type Sample struct {
	Samples      []float64     `json:"samples"`
	SamplingRate int           `json:"sampling_rate"` // Hz, > 0
	Velocity     float64       `json:"velocity"`      // m/s, >= 0
	Guide        GuideIdentity `json:"guide"`
}

// Geometry is the physical description of a guide series used to derive
// theoretical fault frequencies.
type Geometry struct {
	Series          string  `json:"series"`
	BallDiameterMM  float64 `json:"ball_diameter_mm"`
	RacewayLengthMM float64 `json:"raceway_length_mm"`
	BallCount       int     `json:"ball_count"`
	ContactAngleDeg float64 `json:"contact_angle_deg"`
}

// FrequencySet holds the theoretical fault frequencies in Hz.
// Every field is finite and non-negative.
type FrequencySet struct {
	BPF      float64 `json:"bpf"`
	BSF      float64 `json:"bsf"`
	CageFreq float64 `json:"cage_freq"`
	BPF2x    float64 `json:"bpf_2x"`
	BPF3x    float64 `json:"bpf_3x"`
}

// Outcome records whether a stage produced its result normally or fell
// back to the zero-filled bundle.
type Outcome struct {
	Degraded bool   `json:"degraded"`
	Note     string `json:"note,omitempty"`
}

// Degrade marks the outcome degraded with the given note. Later notes are
// appended so that multiple degenerate computations stay visible.
func (o *Outcome) Degrade(note string) {
	if o.Degraded && o.Note != "" {
		o.Note += "; " + note
	} else {
		o.Note = note
	}
	o.Degraded = true
}

// TimeFeatures are the whole-window time-domain statistics.
type TimeFeatures struct {
	Outcome
	Peak        float64 `json:"peak"`
	Avg         float64 `json:"avg"`
	RMS         float64 `json:"rms"`
	Kurtosis    float64 `json:"kurtosis"`
	CrestFactor float64 `json:"crest_factor"`
}

// Metrics returns the bundle as a flat metric map with a fixed key set.
func (f TimeFeatures) Metrics() map[string]float64 {
	return map[string]float64{
		"peak":         f.Peak,
		"avg":          f.Avg,
		"rms":          f.RMS,
		"kurtosis":     f.Kurtosis,
		"crest_factor": f.CrestFactor,
	}
}

// PreloadStatus is the preload assessment for one analysis.
type PreloadStatus struct {
	Level     string   `json:"level"`
	Condition string   `json:"condition"`
	Warnings  []string `json:"warnings"`
}

// FrequencyFeatures are the spectral indices of the raw signal.
type FrequencyFeatures struct {
	Outcome
	FM0             float64 `json:"fm0"`
	MotorGearEnergy float64 `json:"motor_gear_energy"`
	BeltEnergy      float64 `json:"belt_energy"`
	BPFDetected     bool    `json:"bpf_detected"`
	BPFAmplitude    float64 `json:"bpf_amplitude"`
}

// Metrics returns the bundle as a flat metric map with a fixed key set.
// BPFDetected is encoded as 0 or 1.
func (f FrequencyFeatures) Metrics() map[string]float64 {
	return map[string]float64{
		"fm0":               f.FM0,
		"motor_gear_energy": f.MotorGearEnergy,
		"belt_energy":       f.BeltEnergy,
		"bpf_detected":      boolMetric(f.BPFDetected),
		"bpf_amplitude":     f.BPFAmplitude,
	}
}

// EnvelopeDetection is one BPF harmonic found in the envelope spectrum.
type EnvelopeDetection struct {
	Order     int     `json:"order"`
	Frequency float64 `json:"frequency"`
	Amplitude float64 `json:"amplitude"`
	SNR       float64 `json:"snr"`
}

// EnvelopeFeatures are the results of resonance-band demodulation.
type EnvelopeFeatures struct {
	Outcome
	// ResonanceBand is the selected band in Hz before Nyquist clamping.
	// (0, 0) when the analysis degraded.
	ResonanceBand  [2]float64          `json:"resonance_band"`
	Detections     []EnvelopeDetection `json:"detections"`
	DefectDetected bool                `json:"defect_detected"`
}

// Metrics returns the bundle as a flat metric map with a fixed key set.
// The strongest detection's SNR is reported as max_snr.
func (f EnvelopeFeatures) Metrics() map[string]float64 {
	var maxSNR float64
	for _, d := range f.Detections {
		if d.SNR > maxSNR {
			maxSNR = d.SNR
		}
	}
	return map[string]float64{
		"band_low":        f.ResonanceBand[0],
		"band_high":       f.ResonanceBand[1],
		"detections":      float64(len(f.Detections)),
		"defect_detected": boolMetric(f.DefectDetected),
		"max_snr":         maxSNR,
	}
}

// HigherOrderFeatures are the normalized moment indices.
type HigherOrderFeatures struct {
	Outcome
	NA4 float64 `json:"na4"`
	FM4 float64 `json:"fm4"`
	M6A float64 `json:"m6a"`
	M8A float64 `json:"m8a"`
}

// Metrics returns the bundle as a flat metric map with a fixed key set.
func (f HigherOrderFeatures) Metrics() map[string]float64 {
	return map[string]float64{
		"na4": f.NA4,
		"fm4": f.FM4,
		"m6a": f.M6A,
		"m8a": f.M8A,
	}
}

// WaveletFeatures are the time-frequency peakiness indices.
type WaveletFeatures struct {
	Outcome
	STFTFlatNP4 float64 `json:"stft_flat_np4"`
	STFTHannNP4 float64 `json:"stft_hann_np4"`
	CWTNP4      float64 `json:"cwt_np4"`
}

// Metrics returns the bundle as a flat metric map with a fixed key set.
func (f WaveletFeatures) Metrics() map[string]float64 {
	return map[string]float64{
		"stft_flat_np4": f.STFTFlatNP4,
		"stft_hann_np4": f.STFTHannNP4,
		"cwt_np4":       f.CWTNP4,
	}
}

// DiagnosisReport is the full result of one analysis. It is created fresh
// per call; the receiver owns it afterwards.
type DiagnosisReport struct {
	ID           string    `json:"id"`
	GuideSpecID  int64     `json:"guide_spec_id"`
	Series       string    `json:"series"`
	Preload      string    `json:"preload"`
	Timestamp    time.Time `json:"timestamp"`
	Velocity     float64   `json:"velocity"`
	SamplingRate int       `json:"sampling_rate"`
	SampleCount  int       `json:"sample_count"`

	Geometry            Geometry            `json:"geometry"`
	Frequencies         FrequencySet        `json:"theoretical_frequencies"`
	TimeFeatures        TimeFeatures        `json:"time_features"`
	PreloadStatus       PreloadStatus       `json:"preload_status"`
	FrequencyFeatures   FrequencyFeatures   `json:"frequency_features"`
	EnvelopeFeatures    EnvelopeFeatures    `json:"envelope_features"`
	HigherOrderFeatures HigherOrderFeatures `json:"higher_order_features"`
	WaveletFeatures     WaveletFeatures     `json:"wavelet_features"`

	HealthScore     float64  `json:"health_score"`
	Severity        string   `json:"severity"`
	Findings        []string `json:"findings"`
	Recommendations []string `json:"recommendations"`

	// Source is the agent-side capture source id. Empty for direct API calls.
	Source string `json:"source,omitempty"`

	// Outlook summarises the source's recent history. Only agents that keep
	// per-source state fill it.
	Outlook *Outlook `json:"outlook,omitempty"`
}

// Trend labels of an Outlook.
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendWorsening = "worsening"
	TrendUnknown   = "unknown"
)

// Outlook is the rolling view of one source across analyses.
type Outlook struct {
	Points            int     `json:"points"`
	Trend             string  `json:"trend"`
	ScoreSlopePerHour float64 `json:"score_slope_per_hour"`
	MeanScore         float64 `json:"mean_score"`
	RULMinutes        float64 `json:"rul_min"`
	RULConfidence     float64 `json:"rul_confidence"`
	UptimePct         float64 `json:"uptime_pct"`
}

// TrendPoint is the subset of a report read by trend views.
type TrendPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	HealthScore float64   `json:"health_score"`
	Velocity    float64   `json:"velocity"`
}

// Trend returns the trend-view projection of r.
func (r *DiagnosisReport) Trend() TrendPoint {
	return TrendPoint{Timestamp: r.Timestamp, HealthScore: r.HealthScore, Velocity: r.Velocity}
}

func boolMetric(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
