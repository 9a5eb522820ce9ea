package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once       sync.Once
	collectors []prometheus.Collector
)

// register is called by init() in each metrics file to enqueue collectors.
func register(cs ...prometheus.Collector) {
	collectors = append(collectors, cs...)
}

// MustRegister registers all enqueued collectors with the default registry.
// Idempotent.
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(collectors...)
	})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
