// Package diagnosis runs the full analysis pipeline and fuses the stage
// results into a health verdict.
//
// analyzer.go provides Analyzer.Analyze, which validates the sample once,
// derives theoretical frequencies from the guide geometry, runs the five
// extractor stages of pkg/features concurrently and joins them before
// fusion. Only invalid input aborts an analysis; every other failure is a
// degraded stage inside an otherwise complete report.
//
// fusion.go provides the pure Fuse(Input) function. The health score starts
// at 100 and loses a fixed penalty per rule that fires:
//
//	kurtosis > 8            -30   (else kurtosis > 5  -15)
//	preload not normal      -20
//	envelope defect         -25
//	NA4 > 3                 -15
//	CWT NP4 > 4             -10
//
// The score is clamped to 0–100 and mapped to a severity tier:
// healthy ≥90, mild ≥75, moderate ≥60, severe below.
package diagnosis
