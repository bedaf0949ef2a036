package internaldefs

import (
	dashAuth "github.com/MrEthical07/dashAuth"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   dashAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   dashAuth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for events discarded by the audit dispatcher.
const (
	AuditDroppedName = "dashauth_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

var CounterDefs = []CounterDef{
	{ID: dashAuth.MetricLoginSuccess, Name: "dashauth_login_success_total", Help: "Sessions started with a valid credential."},
	{ID: dashAuth.MetricLoginRejected, Name: "dashauth_login_rejected_total", Help: "Login attempts rejected locally or by the backend."},
	{ID: dashAuth.MetricLogout, Name: "dashauth_logout_total", Help: "Sessions ended."},
	{ID: dashAuth.MetricSessionRestored, Name: "dashauth_session_restored_total", Help: "Sessions restored from storage at startup."},
	{ID: dashAuth.MetricSessionRestoreEmpty, Name: "dashauth_session_restore_empty_total", Help: "Startups without a usable persisted session."},
	{ID: dashAuth.MetricCredentialPurged, Name: "dashauth_credential_purged_total", Help: "Persisted credentials purged as expired, malformed or rejected."},
	{ID: dashAuth.MetricSessionInvalidated, Name: "dashauth_session_invalidated_total", Help: "Invalidation signals broadcast."},
	{ID: dashAuth.MetricForcedLogout, Name: "dashauth_forced_logout_total", Help: "Sessions ended by a 401 or force_logout response."},
	{ID: dashAuth.MetricRefetchSuccess, Name: "dashauth_profile_refetch_success_total", Help: "Successful profile fetches."},
	{ID: dashAuth.MetricRefetchFailure, Name: "dashauth_profile_refetch_failure_total", Help: "Failed profile fetches."},
	{ID: dashAuth.MetricCredentialAttached, Name: "dashauth_credential_attached_total", Help: "Outbound requests carrying the session credential."},
	{ID: dashAuth.MetricGuardAllowed, Name: "dashauth_guard_allowed_total", Help: "Guard decisions that allowed access."},
	{ID: dashAuth.MetricGuardPending, Name: "dashauth_guard_pending_total", Help: "Guard decisions deferred for a missing profile."},
	{ID: dashAuth.MetricGuardDeniedUnauthenticated, Name: "dashauth_guard_denied_unauthenticated_total", Help: "Guard decisions denied for a missing session."},
	{ID: dashAuth.MetricGuardDeniedForbidden, Name: "dashauth_guard_denied_forbidden_total", Help: "Guard decisions denied for insufficient level or role."},
	{ID: dashAuth.MetricRequestFailure, Name: "dashauth_request_failure_total", Help: "API requests that failed in transport or with a 5xx status."},
}

var HistogramDefs = []HistogramDef{
	{ID: dashAuth.MetricRequestLatency, Name: "dashauth_request_latency_seconds", Help: "API request latency."},
}

// HistogramBounds are the finite upper bounds, in seconds, of the first seven
// buckets. The eighth bucket is +Inf.
var HistogramBounds = []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// HistogramBoundSuffix names every bucket, +Inf included, for exporters without
// native histograms.
var HistogramBoundSuffix = []string{
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to eight buckets.
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
