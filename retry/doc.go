// Package retry provides context-aware retry helpers with linear capped
// backoff.
//
// The delay before attempt N+1 grows linearly with N and is clamped to a
// maximum, which keeps worst-case latency bounded while still backing off
// under sustained upstream throttling.
package retry
