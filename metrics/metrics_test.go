package metrics

import (
	"testing"
)

// Global metrics instance (reused across enabled tests to avoid Prometheus registry conflicts)
var globalMetrics *Metrics

func init() {
	globalMetrics = New(true)
}

func TestMetricsEnabled(t *testing.T) {
	if globalMetrics == nil {
		t.Fatal("metrics should not be nil")
	}
}

func TestMetricsDisabled(t *testing.T) {
	m := New(false)

	if m == nil {
		t.Fatal("metrics should not be nil (noop)")
	}

	// These should not panic even though they're noop
	m.RecordAuthSuccess(0.001)
	m.RecordAuthFailure("invalid_credential")
	m.RecordSessionCreated()
	m.RecordSessionDestroyed()
	m.RecordClaimsMutation("success")
	m.RecordRateLimited()
}

func TestRecordAuthMetrics(t *testing.T) {
	// Should not panic
	globalMetrics.RecordAuthSuccess(0.002)
	globalMetrics.RecordAuthFailure("missing_credential")
	globalMetrics.RecordAuthFailure("upstream_unavailable")
}

func TestRecordLifecycleMetrics(t *testing.T) {
	globalMetrics.RecordSessionCreated()
	globalMetrics.RecordSessionDestroyed()
	globalMetrics.RecordClaimsMutation("denied")
	globalMetrics.RecordRateLimited()
}
