// Package guide holds the static knowledge about linear-guide series used
// by the diagnosis pipeline:
//
//   - Resolve(series) maps a series code to its Geometry. Unknown codes
//     resolve to DefaultGeometry (HRC25-like) with ok == false; this is
//     not an error.
//   - Frequencies(geom, velocity) derives BPF, BSF, cage frequency and the
//     2×/3× BPF harmonics. All divisions are guarded; the result is always
//     finite and non-negative.
//   - AssessPreload(rms, kurtosis, class) classifies the preload condition
//     against per-class (rms_min, kurt_max) thresholds.
//   - ResonanceBand(series) is the heuristic demodulation band used by the
//     envelope stage.
//
// The lookup tables are package-level values built once at init and never
// mutated, so every function here is safe for concurrent use.
package guide
