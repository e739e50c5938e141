package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once
	pending      []prometheus.Collector
)

// register queues collectors declared by this package's init functions.
func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// MustRegister exposes every giftcard collector on the default registry
// served at /metrics. Later calls are no-ops.
func MustRegister() {
	registerOnce.Do(func() { prometheus.MustRegister(pending...) })
}
