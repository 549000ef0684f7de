// Package prometheus renders goBankID engine metrics in the Prometheus text
// exposition format.
//
// [New] wraps any [Source] (an *goBankID.Engine in practice) and [Exporter.Handler]
// serves the rendering, typically on /metrics. Counters are named
// gobankid_*_total; the collect latency histogram is
// gobankid_collect_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate engine state.
package prometheus
