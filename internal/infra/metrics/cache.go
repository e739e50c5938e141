package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(planCacheLookups) }

// planCacheLookups counts Redis read-through lookups in front of the plan
// catalog. view is "plan" for single plans and "plan_list" for the catalog.
var planCacheLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "plan_cache_requests_total",
		Help: "Plan catalog cache lookups by view and result (hit or miss).",
	},
	[]string{"view", "result"},
)

func IncCacheRequest(view, result string) {
	planCacheLookups.WithLabelValues(norm(view), norm(result)).Inc()
}
