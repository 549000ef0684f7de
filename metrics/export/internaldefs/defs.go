package internaldefs

import (
	goBankID "github.com/MrEthical07/goBankID"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goBankID.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   goBankID.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in output order.
var CounterDefs = []CounterDef{
	{ID: goBankID.MetricBeginSuccess, Name: "gobankid_begin_success_total", Help: "Identification orders started."},
	{ID: goBankID.MetricBeginFailure, Name: "gobankid_begin_failure_total", Help: "Identification orders that could not be started."},
	{ID: goBankID.MetricBeginRateLimited, Name: "gobankid_begin_rate_limited_total", Help: "Rate-limited begin attempts."},
	{ID: goBankID.MetricCollect, Name: "gobankid_collect_total", Help: "Provider collect calls."},
	{ID: goBankID.MetricCollectProviderError, Name: "gobankid_collect_provider_error_total", Help: "Collect calls that failed at the provider."},
	{ID: goBankID.MetricOrderComplete, Name: "gobankid_order_complete_total", Help: "Orders completed for a known user."},
	{ID: goBankID.MetricOrderCompleteNoUser, Name: "gobankid_order_complete_no_user_total", Help: "Orders completed without a bound user."},
	{ID: goBankID.MetricOrderFailed, Name: "gobankid_order_failed_total", Help: "Orders failed at the provider."},
	{ID: goBankID.MetricOrderStartFailed, Name: "gobankid_order_start_failed_total", Help: "Orders failed with startFailed."},
	{ID: goBankID.MetricOrderExpired, Name: "gobankid_order_expired_total", Help: "Orders expired before completion."},
	{ID: goBankID.MetricOrderSuperseded, Name: "gobankid_order_superseded_total", Help: "Collects rejected for superseded orders."},
	{ID: goBankID.MetricSessionCreated, Name: "gobankid_session_created_total", Help: "Created sessions."},
	{ID: goBankID.MetricSessionCreationFailed, Name: "gobankid_session_creation_failed_total", Help: "Completed orders whose session could not be created."},
	{ID: goBankID.MetricLogout, Name: "gobankid_logout_total", Help: "Logout operations."},
	{ID: goBankID.MetricIdentityBound, Name: "gobankid_identity_bound_total", Help: "Personal numbers bound to users."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goBankID.MetricCollectLatency, Name: "gobankid_collect_latency_seconds", Help: "Provider collect latency histogram."},
}

// HistogramBounds are the upper bounds of the engine latency buckets in seconds.
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

// NormalizeBuckets copies raw into a fixed eight bucket array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
