// Package compute turns captures into diagnosis reports and keeps the
// per-source state that single analyses cannot see.
//
// engine.go provides the stateful Engine: it runs diagnosis.Analyzer under
// the configured timeout, records each source's health score and kurtosis
// history, and tracks the share of recent captures that could be analysed.
// Engine.Process accepts an injectable time.Time so tests are deterministic.
//
// outlook.go provides the pure Outlook(history, uptime) function: mean
// score, least-squares score slope per hour (improving above +0.5,
// worsening below -0.5, unknown with fewer than three points) and the
// kurtosis-threshold RUL estimate from pkg/rul.
package compute
