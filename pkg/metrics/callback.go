package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dtftp/pkg/stats"
)

// ServerStatsCallback builds a periodic-stats callback that republishes the
// server-wide counter set as Prometheus counters.
//
// Each tick it drains the counters with GetAndResetAllCounters and adds the
// values to a counter vector labeled by counter name, so the reset-on-read
// counters become regular monotonic Prometheus series.
//
// Returns nil when metrics are disabled, which the server treats as "no
// callback configured".
func ServerStatsCallback() func(*stats.ServerStats) {
	if !IsEnabled() {
		return nil
	}

	counters := promauto.With(GetRegistry()).NewCounterVec(
		prometheus.CounterOpts{
			Name: "dtftp_server_counters_total",
			Help: "Server-wide TFTP counters drained from the stats registry",
		},
		[]string{"counter"},
	)

	return func(s *stats.ServerStats) {
		for name, value := range s.GetAndResetAllCounters() {
			if value > 0 {
				counters.WithLabelValues(name).Add(float64(value))
			}
		}
	}
}
