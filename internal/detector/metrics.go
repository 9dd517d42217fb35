package detector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	detectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docscan_detections_total",
			Help: "Total number of corner detections",
		},
		[]string{"result"}, // result: found, none, failed
	)

	detectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docscan_detection_duration_seconds",
			Help:    "Corner detection duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)
)
