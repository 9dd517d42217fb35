package rectify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	warpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docscan_warps_total",
			Help: "Total number of perspective warps",
		},
		[]string{"status"}, // status: success, error
	)

	warpDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docscan_warp_duration_seconds",
			Help:    "Perspective warp duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)
)
