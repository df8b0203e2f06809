package visit

import "github.com/prometheus/client_golang/prometheus"

var (
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldsales",
			Subsystem: "visit",
			Name:      "submissions_total",
			Help:      "Visit submissions by result.",
		},
		[]string{"kind", "result"},
	)

	compressionPasses = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fieldsales",
			Subsystem: "visit",
			Name:      "compression_passes",
			Help:      "Passes needed to compress a photo.",
			Buckets:   []float64{1, 2, 3},
		},
	)
)

func init() {
	prometheus.MustRegister(submissionsTotal, compressionPasses)
}
