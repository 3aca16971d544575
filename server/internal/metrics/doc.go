// Package metrics exposes guide health and server counters at /metrics in
// the Prometheus text format, so an existing Prometheus can scrape
// guidesense-server and drive its own dashboards and alerting.
package metrics
