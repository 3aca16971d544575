package guide

import (
	"strings"

	"github.com/guidesense/guidesense/pkg/types"
)

// Preload conditions reported by AssessPreload.
const (
	ConditionNormal    = "normal"
	ConditionLoss      = "preload loss"
	ConditionClearance = "preload insufficient / excess clearance"
)

// Warnings attached to abnormal preload conditions.
const (
	WarningCheckPreload = "check preload setting"
	WarningClearance    = "possible clearance in the block"
)

// DefaultPreloadClass is used for unknown preload classes.
const DefaultPreloadClass = "V1"

// lossFactor scales rms_min into the preload-loss threshold.
const lossFactor = 0.7

// PreloadThreshold is the per-class limit pair.
type PreloadThreshold struct {
	RMSMin  float64 `json:"rms_min"`
	KurtMax float64 `json:"kurt_max"`
}

var preloadThresholds = map[string]PreloadThreshold{
	"VC": {RMSMin: 0.05, KurtMax: 4.0},
	"V0": {RMSMin: 0.08, KurtMax: 4.5},
	"V1": {RMSMin: 0.12, KurtMax: 5.0},
	"V2": {RMSMin: 0.15, KurtMax: 5.5},
}

// Threshold returns the limits for class, falling back to the middle class
// (V1) when class is unknown.
func Threshold(class string) PreloadThreshold {
	if th, ok := preloadThresholds[strings.ToUpper(strings.TrimSpace(class))]; ok {
		return th
	}
	return preloadThresholds[DefaultPreloadClass]
}

// AssessPreload classifies the preload condition from whole-window RMS and
// kurtosis. Both rules are evaluated independently; when both fire the
// clearance condition is reported and both warnings are kept.
func AssessPreload(rms, kurtosis float64, class string) types.PreloadStatus {
	th := Threshold(class)
	st := types.PreloadStatus{
		Level:     class,
		Condition: ConditionNormal,
		Warnings:  []string{},
	}

	if rms < th.RMSMin*lossFactor {
		st.Condition = ConditionLoss
		st.Warnings = append(st.Warnings, WarningCheckPreload)
	}
	if kurtosis > th.KurtMax {
		st.Condition = ConditionClearance
		st.Warnings = append(st.Warnings, WarningClearance)
	}
	return st
}
