package ingest

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	FramesDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "weighstation_frames_dropped_total",
		Help: "Frames discarded because they were not exactly one record long",
	})
	DecodeErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "weighstation_decode_errors_total",
		Help: "Records whose weight field could not be parsed",
	})
	AcceptedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "weighstation_accepted_total",
		Help: "Readings accepted by the stability filter",
	})
	CaptureFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "weighstation_capture_failures_total",
		Help: "Accepted readings stored without a snapshot because capture failed",
	})
	PersistFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "weighstation_persist_failures_total",
		Help: "Accepted readings that could not be written to the store",
	})
	LastAcceptedWeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "weighstation_last_accepted_weight_kg",
		Help: "Weight of the most recently accepted reading",
	})
	CaptureDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "weighstation_capture_duration_seconds",
		Help:    "Time spent grabbing a snapshot",
		Buckets: prometheus.DefBuckets,
	})

	registerOnce sync.Once
)

func init() {
	InitMetrics()
}

// InitMetrics registers the ingestion collectors with the default registry.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			FramesDroppedTotal,
			DecodeErrorsTotal,
			AcceptedTotal,
			CaptureFailuresTotal,
			PersistFailuresTotal,
			LastAcceptedWeight,
			CaptureDurationSeconds,
		)
	})
}
