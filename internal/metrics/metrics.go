package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RosterOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rosterd", Name: "roster_ops_total", Help: "Roster mutations by operation",
	}, []string{"op"})
	RosterOpErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rosterd", Name: "roster_op_errors_total", Help: "Failed roster mutations by operation",
	}, []string{"op"})
	SnapshotDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rosterd", Name: "snapshot_build_seconds", Help: "Dashboard snapshot build latency",
		Buckets: prometheus.DefBuckets,
	})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rosterd", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(RosterOps, RosterOpErrors, SnapshotDuration, DBPing)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }

func ObserveSnapshot(d time.Duration) { SnapshotDuration.Observe(d.Seconds()) }
