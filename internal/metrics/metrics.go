// Package metrics holds the prometheus collectors of the service. Until Init
// is called every helper is a no-op.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "tom_"

	ResultSuccess   = "success"
	ResultError     = "error"
	ResultUpdated   = "updated"
	ResultUnchanged = "unchanged"

	SourceFacility = "facility"
	SourceManual   = "manual"
)

var (
	registerOnce sync.Once

	submissionsTotal    *prometheus.CounterVec
	recordsCreatedTotal *prometheus.CounterVec
	statusUpdatesTotal  *prometheus.CounterVec
	thumbnailLatency    *prometheus.HistogramVec
)

// Init registers the collectors with the default registry.
func Init() {
	registerOnce.Do(func() {
		submissionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "observation_submissions_total",
				Help: "Observation submissions to facilities by result",
			},
			[]string{"facility", "result"},
		)
		recordsCreatedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "observation_records_created_total",
				Help: "Observation records created by facility and source",
			},
			[]string{"facility", "source"},
		)
		statusUpdatesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "status_updates_total",
				Help: "Observation status queries by result",
			},
			[]string{"result"},
		)
		thumbnailLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "thumbnail_render_seconds",
				Help:    "FITS thumbnail render duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			submissionsTotal,
			recordsCreatedTotal,
			statusUpdatesTotal,
			thumbnailLatency,
		)
	})
}

func IncSubmission(facility, result string) {
	if submissionsTotal != nil {
		submissionsTotal.WithLabelValues(facility, result).Inc()
	}
}

// AddRecordsCreated counts n new observation records.
func AddRecordsCreated(facility, source string, n int) {
	if recordsCreatedTotal != nil && n > 0 {
		recordsCreatedTotal.WithLabelValues(facility, source).Add(float64(n))
	}
}

// IncStatusUpdate counts one status query. result is "updated", "unchanged"
// or "error".
func IncStatusUpdate(result string) {
	if result == "" {
		result = "unknown"
	}
	if statusUpdatesTotal != nil {
		statusUpdatesTotal.WithLabelValues(result).Inc()
	}
}

func ObserveThumbnail(result string, duration time.Duration) {
	if thumbnailLatency != nil {
		thumbnailLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}
