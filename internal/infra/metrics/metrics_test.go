//go:build !integration

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// sample gathers c through a private registry and returns the value of the
// series with the given labels plus the total number of series.
func sample(t *testing.T, c prometheus.Collector, labels map[string]string) (float64, int) {
	t.Helper()
	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(c)
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var value float64
	series := 0
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			series++
			match := len(m.GetLabel()) == len(labels)
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					match = false
				}
			}
			if match {
				value = m.GetCounter().GetValue() + m.GetGauge().GetValue()
			}
		}
	}
	return value, series
}

func TestMustRegister(t *testing.T) {
	MustRegister()
	MustRegister()

	err := prometheus.Register(planCacheLookups)
	if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
		t.Fatalf("plan cache collector should already be registered, got %v", err)
	}
}

func TestIncCacheRequest(t *testing.T) {
	hit := map[string]string{"view": "plan", "result": "hit"}
	before, _ := sample(t, planCacheLookups, hit)
	IncCacheRequest(" Plan ", "HIT")
	if got, _ := sample(t, planCacheLookups, hit); got != before+1 {
		t.Errorf("plan hit counter = %v, want %v", got, before+1)
	}
}

func TestSetBuildInfo(t *testing.T) {
	SetBuildInfo("1.2.0", "abc123")
	SetBuildInfo("1.3.0", "")
	got, series := sample(t, buildInfo, map[string]string{"version": "1.3.0", "commit": "unknown"})
	if series != 1 {
		t.Fatalf("expected a single build series, got %d", series)
	}
	if got != 1 {
		t.Errorf("build info = %v, want 1", got)
	}
}
