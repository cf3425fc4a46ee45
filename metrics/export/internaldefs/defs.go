package internaldefs

import (
	"github.com/MrEthical07/stateformat"
)

// CounterDef names one stateformat counter for every exporter.
type CounterDef struct {
	ID   stateformat.MetricID
	Name string
	Help string
}

// HistogramDef names one stateformat latency histogram.
type HistogramDef struct {
	ID   stateformat.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: stateformat.MetricProtectSuccess, Name: "stateformat_protect_success_total", Help: "Issued state tickets."},
	{ID: stateformat.MetricProtectFailure, Name: "stateformat_protect_failure_total", Help: "Protect calls that returned an error."},
	{ID: stateformat.MetricUnprotectSuccess, Name: "stateformat_unprotect_success_total", Help: "Resolved state tickets."},
	{ID: stateformat.MetricUnprotectInvalid, Name: "stateformat_unprotect_invalid_total", Help: "Tickets rejected as tampered, foreign, or malformed."},
	{ID: stateformat.MetricUnprotectNotFound, Name: "stateformat_unprotect_not_found_total", Help: "Authentic tickets whose state had expired or been evicted."},
	{ID: stateformat.MetricUnprotectCorrupt, Name: "stateformat_unprotect_corrupt_total", Help: "Stored state that failed to decode."},
	{ID: stateformat.MetricCacheFailure, Name: "stateformat_cache_failure_total", Help: "Cache backend errors."},
	{ID: stateformat.MetricFormatBound, Name: "stateformat_format_bound_total", Help: "Markers bound to a formatter."},
}

var HistogramDefs = []HistogramDef{
	{ID: stateformat.MetricProtectLatency, Name: "stateformat_protect_latency_seconds", Help: "Protect latency histogram."},
	{ID: stateformat.MetricUnprotectLatency, Name: "stateformat_unprotect_latency_seconds", Help: "Unprotect latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the core histogram
// buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// AuditDroppedName is the counter for events dropped by the audit dispatcher.
const AuditDroppedName = "stateformat_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."

// NormalizeBuckets copies raw into a fixed eight bucket array, zero filling
// missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
