package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(buildInfo) }

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "giftcard_build_info",
		Help: "Always 1; labels identify the running giftcard service build.",
	},
	[]string{"version", "commit"},
)

// SetBuildInfo publishes the binary's version labels. Call once at startup.
func SetBuildInfo(version, commit string) {
	buildInfo.Reset()
	buildInfo.WithLabelValues(norm(version), norm(commit)).Set(1)
}
