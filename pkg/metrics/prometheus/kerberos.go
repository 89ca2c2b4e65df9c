// Package prometheus contains the Prometheus-backed implementations of
// the metric interfaces defined in pkg/metrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/tgtkeep/pkg/kerberos"
	"github.com/marmos91/tgtkeep/pkg/metrics"
)

func init() {
	metrics.RegisterKerberosMetricsConstructor(NewKerberosMetrics)
}

// kerberosMetrics is the Prometheus implementation of kerberos.Metrics.
type kerberosMetrics struct {
	acquisitionsTotal   *prometheus.CounterVec
	acquisitionDuration *prometheus.HistogramVec
	refreshTotal        *prometheus.CounterVec
	resolutionsTotal    *prometheus.CounterVec
	ticketExpiry        prometheus.Gauge
	lastAcquired        prometheus.Gauge
}

// NewKerberosMetrics creates a new Prometheus-backed kerberos.Metrics
// instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewKerberosMetrics() kerberos.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &kerberosMetrics{
		acquisitionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tgtkeep_kerberos_acquisitions_total",
				Help: "Total number of kinit invocations by trigger and status",
			},
			[]string{"trigger", "status"},
		),
		acquisitionDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "tgtkeep_kerberos_acquisition_duration_milliseconds",
				Help: "Duration of kinit invocations in milliseconds",
				Buckets: []float64{
					50,    // 50ms - warm KDC, local network
					100,   // 100ms
					250,   // 250ms
					500,   // 500ms
					1000,  // 1s - cross-AZ KDC
					2500,  // 2.5s
					5000,  // 5s
					15000, // 15s - approaching timeout
					60000, // 60s - default acquire timeout
				},
			},
			[]string{"trigger"},
		),
		refreshTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tgtkeep_kerberos_refresh_total",
				Help: "Total number of refresh checks by outcome",
			},
			[]string{"outcome"},
		),
		resolutionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tgtkeep_kerberos_kdc_resolutions_total",
				Help: "Total number of KDC resolution attempts by source and status",
			},
			[]string{"source", "status"},
		),
		ticketExpiry: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "tgtkeep_kerberos_ticket_expiry_timestamp_seconds",
				Help: "Unix timestamp at which the current TGT expires",
			},
		),
		lastAcquired: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "tgtkeep_kerberos_last_acquired_timestamp_seconds",
				Help: "Unix timestamp of the last successful TGT acquisition",
			},
		),
	}
}

func (m *kerberosMetrics) RecordAcquisition(trigger, status string, duration time.Duration) {
	if m == nil {
		return
	}

	m.acquisitionsTotal.WithLabelValues(trigger, status).Inc()
	m.acquisitionDuration.WithLabelValues(trigger).Observe(duration.Seconds() * 1000)
}

func (m *kerberosMetrics) RecordRefresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(outcome).Inc()
}

func (m *kerberosMetrics) RecordResolution(source, status string) {
	if m == nil {
		return
	}
	m.resolutionsTotal.WithLabelValues(source, status).Inc()
}

func (m *kerberosMetrics) SetTicketExpiry(t time.Time) {
	if m == nil || t.IsZero() {
		return
	}
	m.ticketExpiry.Set(float64(t.Unix()))
}

func (m *kerberosMetrics) SetLastAcquired(t time.Time) {
	if m == nil || t.IsZero() {
		return
	}
	m.lastAcquired.Set(float64(t.Unix()))
}
