package internaldefs

import (
	"github.com/courtregistry/taskdesk"
)

// CounterDef maps a client counter to its exported name.
type CounterDef struct {
	ID   taskdesk.MetricID
	Name string
	Help string
}

// HistogramDef maps a client histogram to its exported name.
type HistogramDef struct {
	ID   taskdesk.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: taskdesk.MetricRequest, Name: "taskdesk_request_total", Help: "Logical API requests issued."},
	{ID: taskdesk.MetricRequestFailure, Name: "taskdesk_request_failure_total", Help: "Requests that received no HTTP response."},
	{ID: taskdesk.MetricHTTPError, Name: "taskdesk_http_error_total", Help: "Non-2xx responses other than 401."},
	{ID: taskdesk.MetricUnauthorized, Name: "taskdesk_unauthorized_total", Help: "401 responses on any attempt."},
	{ID: taskdesk.MetricReplay, Name: "taskdesk_replay_total", Help: "Requests replayed after a token refresh."},
	{ID: taskdesk.MetricRetryExhausted, Name: "taskdesk_retry_exhausted_total", Help: "Replayed requests rejected with 401 again."},
	{ID: taskdesk.MetricRefreshStarted, Name: "taskdesk_refresh_started_total", Help: "Refresh exchanges started."},
	{ID: taskdesk.MetricRefreshSuccess, Name: "taskdesk_refresh_success_total", Help: "Refresh exchanges that produced a token."},
	{ID: taskdesk.MetricRefreshFailure, Name: "taskdesk_refresh_failure_total", Help: "Refresh exchanges that failed."},
	{ID: taskdesk.MetricRefreshWaitTimeout, Name: "taskdesk_refresh_wait_timeout_total", Help: "Requests that gave up waiting on a refresh."},
	{ID: taskdesk.MetricEarlyRefresh, Name: "taskdesk_early_refresh_total", Help: "Refreshes started because the token was about to expire."},
	{ID: taskdesk.MetricSessionStarted, Name: "taskdesk_session_started_total", Help: "Sessions started by OTP login or restore."},
	{ID: taskdesk.MetricSessionEnded, Name: "taskdesk_session_ended_total", Help: "Sessions ended by an unrecoverable 401."},
	{ID: taskdesk.MetricLogout, Name: "taskdesk_logout_total", Help: "Explicit logouts."},
	{ID: taskdesk.MetricForbiddenLocal, Name: "taskdesk_forbidden_local_total", Help: "Operations refused by the client role guard."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: taskdesk.MetricRefreshLatency, Name: "taskdesk_refresh_latency_seconds", Help: "Refresh exchange latency."},
}

// HistogramBounds are the upper bounds of the client latency buckets, in seconds.
var HistogramBounds = []string{
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"+Inf",
}

// HistogramBoundSuffix names each bucket where "." and "+" are not allowed.
var HistogramBoundSuffix = []string{
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size bucket array, zero-filling
// missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into the running totals both
// exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
