package metrics

import "github.com/prometheus/client_golang/prometheus"

// SignInMetrics counts sign-in attempts.
type SignInMetrics struct {
	AttemptsTotal *prometheus.CounterVec
}

func NewSignInMetrics(reg prometheus.Registerer) *SignInMetrics {
	m := &SignInMetrics{
		AttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "sign_in_attempts_total",
			Help:      "Total number of sign-in attempts, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.AttemptsTotal)
	return m
}
