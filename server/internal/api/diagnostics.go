package api

import (
	"fmt"
	"sort"
	"strings"

	"github.com/guidesense/guidesense/pkg/diagnosis"
	"github.com/guidesense/guidesense/pkg/guide"
	"github.com/guidesense/guidesense/pkg/types"
)

// DiagnosticHint is one human-readable insight about a guide's condition.
// The UI displays these as chips on the result card; clicking one shows
// Detail, a plain-language explanation of what the numbers mean.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label shown on the chip (≤ 5 words).
	Title string `json:"title"`
	// Detail is the full explanation shown on click/hover.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint (e.g. kurtosis).
	Value *float64 `json:"value,omitempty"`
}

var levelOrder = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

// computeDiagnostics derives human-readable diagnostic hints from a report.
// Diagnostics are ordered: critical first, then warnings, then info.
func computeDiagnostics(r *types.DiagnosisReport) []DiagnosticHint {
	var hints []DiagnosticHint

	// ── Envelope defect ──────────────────────────────────────────────────────
	if r.EnvelopeFeatures.DefectDetected {
		orders := make([]string, 0, len(r.EnvelopeFeatures.Detections))
		for _, d := range r.EnvelopeFeatures.Detections {
			orders = append(orders, fmt.Sprintf("%d×BPF at %.1f Hz (SNR %.1f)", d.Order, d.Frequency, d.SNR))
		}
		n := float64(len(r.EnvelopeFeatures.Detections))
		hints = append(hints, DiagnosticHint{
			Key:   "envelope_defect",
			Level: "critical",
			Title: "Ball-pass pattern found",
			Detail: fmt.Sprintf(
				"The demodulated signal repeats at the ball pass frequency: %s. "+
					"Impacts spaced exactly one ball apart point at a damaged raceway or ball. "+
					"Inspect the block and rail before the damage spreads.",
				strings.Join(orders, ", "),
			),
			Value: &n,
		})
	}

	// ── Kurtosis ─────────────────────────────────────────────────────────────
	if k := r.TimeFeatures.Kurtosis; k > diagnosis.KurtosisMild {
		v := k
		level, title := "warning", fmt.Sprintf("Kurtosis %.1f", k)
		if k > diagnosis.KurtosisSevere {
			level = "critical"
		}
		hints = append(hints, DiagnosticHint{
			Key:   "kurtosis",
			Level: level,
			Title: title,
			Detail: fmt.Sprintf(
				"A healthy guide produces Gaussian-like vibration with kurtosis near 3. "+
					"This capture reads %.1f, which means short sharp impacts dominate the signal. "+
					"Above %.0f this usually indicates spalling or a contaminated raceway.",
				k, diagnosis.KurtosisSevere,
			),
			Value: &v,
		})
	}

	// ── Preload ──────────────────────────────────────────────────────────────
	if r.PreloadStatus.Condition != "" && r.PreloadStatus.Condition != guide.ConditionNormal {
		th := guide.Threshold(r.PreloadStatus.Level)
		v := r.TimeFeatures.RMS
		hints = append(hints, DiagnosticHint{
			Key:   "preload",
			Level: "warning",
			Title: "Preload out of range",
			Detail: fmt.Sprintf(
				"Preload class %s expects RMS of at least %.2f and kurtosis below %.1f; "+
					"this capture reads RMS %.3f and kurtosis %.2f (%s). "+
					"Lost preload lets the balls rattle in the block and accelerates wear.",
				r.PreloadStatus.Level, th.RMSMin, th.KurtMax,
				r.TimeFeatures.RMS, r.TimeFeatures.Kurtosis, r.PreloadStatus.Condition,
			),
			Value: &v,
		})
	}

	// ── Higher-order statistics / transients ────────────────────────────────
	if na4 := r.HigherOrderFeatures.NA4; na4 > diagnosis.NA4Limit {
		v := na4
		hints = append(hints, DiagnosticHint{
			Key:   "na4",
			Level: "warning",
			Title: "Early fault indicator",
			Detail: fmt.Sprintf(
				"NA4 is %.2f (limit %.0f). It reacts to isolated peaks long before overall "+
					"vibration rises, so this is often the first sign of a developing defect.",
				na4, diagnosis.NA4Limit,
			),
			Value: &v,
		})
	}
	if np4 := r.WaveletFeatures.CWTNP4; np4 > diagnosis.CWTNP4Limit {
		v := np4
		hints = append(hints, DiagnosticHint{
			Key:   "transients",
			Level: "info",
			Title: "Transient impacts",
			Detail: fmt.Sprintf(
				"Wavelet energy is concentrated in a few short bursts (NP4 %.1f). "+
					"Look for debris on the rail or a localized dent the carriage passes over.",
				np4,
			),
			Value: &v,
		})
	}

	// ── Outlook (agent reports) ─────────────────────────────────────────────
	if o := r.Outlook; o != nil {
		if o.Trend == types.TrendWorsening {
			v := o.ScoreSlopePerHour
			hints = append(hints, DiagnosticHint{
				Key:   "trend",
				Level: "warning",
				Title: "Health declining",
				Detail: fmt.Sprintf(
					"Across the last %d captures the health score is falling by %.1f points per hour. "+
						"Estimated remaining life at the current kurtosis is about %.0f minutes.",
					o.Points, -o.ScoreSlopePerHour, o.RULMinutes,
				),
				Value: &v,
			})
		}
		if o.UptimePct > 0 && o.UptimePct < 90 {
			v := o.UptimePct
			hints = append(hints, DiagnosticHint{
				Key:   "capture_uptime",
				Level: "info",
				Title: fmt.Sprintf("%.0f%% capture success", o.UptimePct),
				Detail: "Some recent captures from this source failed to load or analyse. " +
					"Check the sensor gateway and the spool directory for unreadable files.",
				Value: &v,
			})
		}
	}

	// ── Analysis quality ────────────────────────────────────────────────────
	if r.Velocity == 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "no_velocity",
			Level: "info",
			Title: "No velocity given",
			Detail: "Fault frequencies scale with carriage speed. Without a velocity the " +
				"ball-pass search is skipped, so only time-domain indicators were judged.",
		})
	}
	if stages := degradedStages(r); len(stages) > 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "degraded",
			Level: "info",
			Title: "Partial analysis",
			Detail: fmt.Sprintf(
				"These stages could not compute on this capture and were reported as zero: %s. "+
					"Short or constant signals are the usual cause.",
				strings.Join(stages, "; "),
			),
		})
	}

	// ── All clear ───────────────────────────────────────────────────────────
	if len(hints) == 0 {
		score := r.HealthScore
		hints = append(hints, DiagnosticHint{
			Key:   "healthy",
			Level: "ok",
			Title: "All clear",
			Detail: fmt.Sprintf(
				"The guide scores %.0f/100 with no impact pattern, normal preload and "+
					"kurtosis in the healthy range. Keep the routine capture schedule.",
				score,
			),
			Value: &score,
		})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelOrder[hints[i].Level] < levelOrder[hints[j].Level]
	})
	return hints
}

// degradedStages names the feature stages that fell back to zero values.
func degradedStages(r *types.DiagnosisReport) []string {
	var out []string
	for _, s := range []struct {
		name string
		o    types.Outcome
	}{
		{"time", r.TimeFeatures.Outcome},
		{"frequency", r.FrequencyFeatures.Outcome},
		{"envelope", r.EnvelopeFeatures.Outcome},
		{"higher-order", r.HigherOrderFeatures.Outcome},
		{"wavelet", r.WaveletFeatures.Outcome},
	} {
		if s.o.Degraded {
			out = append(out, s.name+" ("+s.o.Note+")")
		}
	}
	return out
}
