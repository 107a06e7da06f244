// Package prometheus renders taskdesk client metrics in the Prometheus text
// exposition format.
//
// Counters are named taskdesk_*_total. The refresh exchange latency is
// published as the taskdesk_refresh_latency_seconds histogram.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate client state.
package prometheus
