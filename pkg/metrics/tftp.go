package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TFTPMetrics provides observability for the TFTP server.
//
// The interface is optional: passing nil to server.New selects a no-op
// implementation with zero overhead.
type TFTPMetrics interface {
	// RecordSessionStarted increments the total spawned-sessions counter.
	RecordSessionStarted()

	// RecordSessionFinished records a terminated session with its outcome
	// ("complete", "error" or "timed_out") and duration.
	RecordSessionFinished(outcome string, duration time.Duration)

	// RecordBytesSent adds to the total payload bytes sent on the wire.
	RecordBytesSent(bytes int64)

	// RecordRetransmits adds to the total retransmission counter.
	RecordRetransmits(count int64)

	// SetActiveSessions updates the current session count gauge.
	SetActiveSessions(count int32)

	// RecordRequestRejected increments the rejected-requests counter with
	// the rejection reason ("write_request", "rate_limited", "session_cap"
	// or "malformed").
	RecordRequestRejected(reason string)
}

// tftpMetrics is the Prometheus implementation of TFTPMetrics.
type tftpMetrics struct {
	sessionsStarted  prometheus.Counter
	sessionsFinished *prometheus.CounterVec
	sessionDuration  *prometheus.HistogramVec
	bytesSent        prometheus.Counter
	retransmits      prometheus.Counter
	activeSessions   prometheus.Gauge
	requestsRejected *prometheus.CounterVec
}

// NewTFTPMetrics creates a Prometheus-backed TFTPMetrics instance, or a
// no-op one when InitRegistry has not been called.
func NewTFTPMetrics() TFTPMetrics {
	if !IsEnabled() {
		return &noopTFTPMetrics{}
	}

	reg := GetRegistry()

	return &tftpMetrics{
		sessionsStarted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dtftp_sessions_started_total",
				Help: "Total number of transfer sessions spawned",
			},
		),
		sessionsFinished: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dtftp_sessions_finished_total",
				Help: "Total number of terminated sessions by outcome",
			},
			[]string{"outcome"},
		),
		sessionDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dtftp_session_duration_seconds",
				Help: "Duration of transfer sessions in seconds",
				Buckets: []float64{
					0.01, // 10ms
					0.05, // 50ms
					0.1,  // 100ms
					0.5,  // 500ms
					1.0,  // 1s
					5.0,  // 5s
					15.0, // 15s
					60.0, // 1m
					300,  // 5m
				},
			},
			[]string{"outcome"},
		),
		bytesSent: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dtftp_bytes_sent_total",
				Help: "Total payload bytes sent in DATA packets",
			},
		),
		retransmits: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dtftp_retransmits_total",
				Help: "Total number of retransmitted packets",
			},
		),
		activeSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dtftp_active_sessions",
				Help: "Current number of active transfer sessions",
			},
		),
		requestsRejected: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dtftp_requests_rejected_total",
				Help: "Total number of rejected requests by reason",
			},
			[]string{"reason"},
		),
	}
}

func (m *tftpMetrics) RecordSessionStarted() {
	m.sessionsStarted.Inc()
}

func (m *tftpMetrics) RecordSessionFinished(outcome string, duration time.Duration) {
	m.sessionsFinished.WithLabelValues(outcome).Inc()
	m.sessionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *tftpMetrics) RecordBytesSent(bytes int64) {
	m.bytesSent.Add(float64(bytes))
}

func (m *tftpMetrics) RecordRetransmits(count int64) {
	m.retransmits.Add(float64(count))
}

func (m *tftpMetrics) SetActiveSessions(count int32) {
	m.activeSessions.Set(float64(count))
}

func (m *tftpMetrics) RecordRequestRejected(reason string) {
	m.requestsRejected.WithLabelValues(reason).Inc()
}

// noopTFTPMetrics implements TFTPMetrics with no-op methods.
type noopTFTPMetrics struct{}

func (noopTFTPMetrics) RecordSessionStarted()                                 {}
func (noopTFTPMetrics) RecordSessionFinished(outcome string, d time.Duration) {}
func (noopTFTPMetrics) RecordBytesSent(bytes int64)                           {}
func (noopTFTPMetrics) RecordRetransmits(count int64)                         {}
func (noopTFTPMetrics) SetActiveSessions(count int32)                         {}
func (noopTFTPMetrics) RecordRequestRejected(reason string)                   {}

// NewNoopTFTPMetrics returns a TFTPMetrics that records nothing. Useful in
// tests and for explicit opt-out.
func NewNoopTFTPMetrics() TFTPMetrics {
	return &noopTFTPMetrics{}
}
