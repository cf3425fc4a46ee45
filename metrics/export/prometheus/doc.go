// Package prometheus renders stateformat metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] reads a [stateformat.Service] and exposes an
// [http.Handler]. Counters are named stateformat_*_total; the Protect and
// Unprotect histograms are stateformat_protect_latency_seconds and
// stateformat_unprotect_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global registry. Callers mount the Handler.
//   - Mutate service state.
package prometheus
