package internaldefs

import (
	authkit "github.com/hexkit/authkit"
)

// CounterDef names a core counter for exposition.
type CounterDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// HistogramDef names a core latency histogram for exposition.
type HistogramDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// CounterDefs maps every core counter to its exposition name. Both
// exporters iterate this slice so the two surfaces stay in sync.
var CounterDefs = []CounterDef{
	{ID: authkit.MetricLoginSuccess, Name: "authkit_login_success_total", Help: "Successful login attempts."},
	{ID: authkit.MetricLoginFailure, Name: "authkit_login_failure_total", Help: "Failed login attempts."},
	{ID: authkit.MetricRefreshSuccess, Name: "authkit_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authkit.MetricRefreshFailure, Name: "authkit_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: authkit.MetricReplayDetected, Name: "authkit_replay_detected_total", Help: "Refresh tokens presented after rotation or revocation."},
	{ID: authkit.MetricFamilyRevoked, Name: "authkit_family_revoked_total", Help: "Token families revoked after replay detection."},
	{ID: authkit.MetricLogout, Name: "authkit_logout_total", Help: "Logout operations."},
	{ID: authkit.MetricTokenRevoked, Name: "authkit_token_revoked_total", Help: "Individual tokens revoked by explicit request."},
	{ID: authkit.MetricUserTokensRevoked, Name: "authkit_user_tokens_revoked_total", Help: "Bulk per-user revocation operations."},
	{ID: authkit.MetricDeviceTokensRevoked, Name: "authkit_device_tokens_revoked_total", Help: "Bulk per-device revocation operations."},
	{ID: authkit.MetricDeviceMismatch, Name: "authkit_device_mismatch_total", Help: "Refresh attempts from a device other than the issuing one."},
	{ID: authkit.MetricValidateSuccess, Name: "authkit_validate_success_total", Help: "Access tokens that passed validation."},
	{ID: authkit.MetricValidateFailure, Name: "authkit_validate_failure_total", Help: "Access tokens that failed signature or claims checks."},
	{ID: authkit.MetricValidateRevoked, Name: "authkit_validate_revoked_total", Help: "Access tokens rejected by the revocation list."},
	{ID: authkit.MetricCleanupRemoved, Name: "authkit_cleanup_removed_total", Help: "Records removed by cleanup sweeps."},
}

// HistogramDefs maps every core histogram to its exposition name.
var HistogramDefs = []HistogramDef{
	{ID: authkit.MetricValidateLatency, Name: "authkit_validate_latency_seconds", Help: "Access token validation latency."},
}

// HistogramBounds are the upper bounds of the core histogram buckets,
// in seconds, as Prometheus le label values.
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

// HistogramBoundSuffix carries the same bounds in a form legal inside
// an instrument name.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed
// core width so exporters never index out of range.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative
// form both Prometheus and OpenTelemetry expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
