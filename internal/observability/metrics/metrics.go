package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for widget sessions and invoice links.
type BookingMetrics struct {
	activeSessions     prometheus.Gauge
	sessionsTotal      *prometheus.CounterVec
	eventsTotal        *prometheus.CounterVec
	confirmationsTotal *prometheus.CounterVec
	linkRequestsTotal  *prometheus.CounterVec
	linkLatency        *prometheus.HistogramVec
	endpointTotal      *prometheus.CounterVec
	endpointLatency    *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "booking",
			Subsystem: "widget",
			Name:      "active_sessions",
			Help:      "Widget sessions currently connected",
		}),
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "widget",
			Name:      "sessions_total",
			Help:      "Total widget sessions by how they started",
		}, []string{"status"}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "widget",
			Name:      "events_total",
			Help:      "Total widget events by type and outcome",
		}, []string{"type", "outcome"}),
		confirmationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "widget",
			Name:      "confirmations_total",
			Help:      "Total booking confirmations by outcome",
		}, []string{"outcome"}),
		linkRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "invoice",
			Name:      "link_requests_total",
			Help:      "Total outbound invoice link requests",
		}, []string{"status"}),
		linkLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "invoice",
			Name:      "link_request_latency_seconds",
			Help:      "Latency of outbound invoice link requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		endpointTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Subsystem: "invoice",
			Name:      "link_endpoint_total",
			Help:      "Total create_invoice_link requests served",
		}, []string{"status", "cached"}),
		endpointLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "booking",
			Subsystem: "invoice",
			Name:      "link_endpoint_latency_seconds",
			Help:      "Latency of create_invoice_link processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.activeSessions,
		m.sessionsTotal,
		m.eventsTotal,
		m.confirmationsTotal,
		m.linkRequestsTotal,
		m.linkLatency,
		m.endpointTotal,
		m.endpointLatency,
	)
	return m
}

func (m *BookingMetrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
	m.sessionsTotal.WithLabelValues("opened").Inc()
}

func (m *BookingMetrics) SessionRejected(reason string) {
	if m == nil {
		return
	}
	m.sessionsTotal.WithLabelValues(reason).Inc()
}

func (m *BookingMetrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func (m *BookingMetrics) ObserveEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(eventType, outcome).Inc()
}

func (m *BookingMetrics) ObserveConfirmation(outcome string) {
	if m == nil {
		return
	}
	m.confirmationsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveInvoiceLinkRequest(status string, seconds float64) {
	if m == nil {
		return
	}
	m.linkRequestsTotal.WithLabelValues(status).Inc()
	m.linkLatency.WithLabelValues(status).Observe(seconds)
}

func (m *BookingMetrics) ObserveLinkEndpoint(status string, cached bool, seconds float64) {
	if m == nil {
		return
	}
	label := "false"
	if cached {
		label = "true"
	}
	m.endpointTotal.WithLabelValues(status, label).Inc()
	m.endpointLatency.WithLabelValues(status).Observe(seconds)
}
