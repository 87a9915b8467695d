package obs

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfoOnce sync.Once

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "keno_admin",
			Name:      "build_info",
			Help:      "Build of the running admin API; the value is always 1.",
		},
		[]string{"version", "commit", "go_version"},
	)
	startTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "keno_admin",
		Name:      "start_time_seconds",
		Help:      "Unix time the admin API process started.",
	})
)

// InitBuildInfo publishes keno_admin_build_info and the process start time.
// Repeated calls only add label sets.
func InitBuildInfo(version, commit string) {
	buildInfoOnce.Do(func() {
		prometheus.MustRegister(buildInfo, startTime)
		startTime.Set(float64(time.Now().Unix()))
	})
	buildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}
