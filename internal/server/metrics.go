package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the daemon's Prometheus instruments. A dedicated
// registry keeps test servers from colliding on registration.
type metrics struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	uploads      prometheus.Counter
	uploadBytes  prometheus.Counter
	testsDeleted prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &metrics{
		registry: registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fieldcap",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"route", "status"}),
		uploads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fieldcap",
			Subsystem: "api",
			Name:      "video_uploads_total",
			Help:      "Video uploads accepted.",
		}),
		uploadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fieldcap",
			Subsystem: "api",
			Name:      "video_upload_bytes_total",
			Help:      "Bytes of video stored.",
		}),
		testsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fieldcap",
			Subsystem: "api",
			Name:      "tests_deleted_total",
			Help:      "Test records deleted.",
		}),
	}
}
