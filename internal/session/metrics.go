package session

import "github.com/prometheus/client_golang/prometheus"

var (
	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldsales",
			Subsystem: "session",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		},
		[]string{"result"},
	)

	revalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldsales",
			Subsystem: "session",
			Name:      "revalidations_total",
			Help:      "Background identity revalidations by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(loginsTotal, revalidationsTotal)
}
