package metrics

import (
	"time"

	"github.com/marmos91/tgtkeep/pkg/kerberos"
)

// NewKerberosMetrics creates a new Prometheus-backed kerberos.Metrics
// instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
// When nil is returned, callers should pass nil to the ticket manager,
// which results in zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	metrics.InitRegistry()
//	krbMetrics := metrics.NewKerberosMetrics()
//	mgr, err := kerberos.NewManager(cfg, krbMetrics)
//
//	// Without metrics (zero overhead)
//	mgr, err := kerberos.NewManager(cfg, nil)
func NewKerberosMetrics() kerberos.Metrics {
	if !IsEnabled() {
		return nil
	}

	// Import the prometheus subpackage to access the implementation.
	// This indirection breaks the import cycle by using an interface
	// return type.
	return newPrometheusKerberosMetrics()
}

// newPrometheusKerberosMetrics is implemented in
// pkg/metrics/prometheus/kerberos.go, which registers itself during
// package initialization.
var newPrometheusKerberosMetrics func() kerberos.Metrics

// RegisterKerberosMetricsConstructor registers the Prometheus kerberos
// metrics constructor. Called by pkg/metrics/prometheus during package
// initialization.
func RegisterKerberosMetricsConstructor(constructor func() kerberos.Metrics) {
	newPrometheusKerberosMetrics = constructor
}

// RecordAcquisition records a kinit invocation on m if metrics are
// enabled.
func RecordAcquisition(m kerberos.Metrics, trigger, status string, duration time.Duration) {
	if m != nil {
		m.RecordAcquisition(trigger, status, duration)
	}
}

// RecordRefresh records a refresh outcome on m if metrics are enabled.
func RecordRefresh(m kerberos.Metrics, outcome string) {
	if m != nil {
		m.RecordRefresh(outcome)
	}
}

// RecordResolution records a KDC resolution attempt on m if metrics are
// enabled.
func RecordResolution(m kerberos.Metrics, source, status string) {
	if m != nil {
		m.RecordResolution(source, status)
	}
}
