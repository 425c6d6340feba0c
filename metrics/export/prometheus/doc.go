// Package prometheus provides Prometheus collectors for grantcore metrics.
//
// [NewPrometheusExporter] accepts a [grantcore.Engine] and exposes an [http.Handler]
// that renders all grantcore counters and histograms in Prometheus text exposition format.
// Counter names are prefixed grantcore_*_total; the single histogram is
// grantcore_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
