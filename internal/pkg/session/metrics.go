// internal/pkg/session/metrics.go
package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "saot",
		Subsystem: "session",
		Name:      "active_total",
		Help:      "Number of device sessions currently marked active.",
	})

	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "saot",
		Subsystem: "session",
		Name:      "created_total",
		Help:      "Device sessions admitted since process start.",
	})

	sessionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "saot",
		Subsystem: "session",
		Name:      "expired_total",
		Help:      "Device sessions expired by the inactivity window.",
	})

	sessionsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "saot",
		Subsystem: "session",
		Name:      "evicted_total",
		Help:      "Device sessions terminated by cap-driven eviction.",
	})
)
