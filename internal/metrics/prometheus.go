package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jvs_submissions_total",
		Help: "Total number of video submissions, by resulting status",
	}, []string{"status"})

	SubmissionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jvs_submission_errors_total",
		Help: "Classified submission and degradation reports, by stage and kind",
	}, []string{"stage", "kind"})

	RemoteCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jvs_remote_call_duration_seconds",
		Help:    "Duration of calls to the remote video-analysis service",
		Buckets: []float64{0.05, 0.25, 1, 5, 15, 60, 180, 600},
	}, []string{"operation"})

	FrameCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jvs_frame_cache_total",
		Help: "Frame lookups, by result (hit, adopted, fetched, failed)",
	}, []string{"result"})

	FrameBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jvs_frame_bytes_fetched_total",
		Help: "Total bytes of frame images fetched from the remote service",
	})

	ManifestsPreparedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jvs_manifests_prepared_total",
		Help: "Attachment manifests prepared, by outcome (complete, partial)",
	}, []string{"outcome"})
)

// WriteTextfile dumps the default registry in the node_exporter textfile format
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
