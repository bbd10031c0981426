// Package prometheus provides Prometheus metrics for the chat engine.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "daeguchat"

var (
	// chatTurnsTotal is a counter of processed chat turns.
	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Total number of chat turns processed",
		},
		[]string{"stage", "status"}, // status: success, rejected, fallback
	)

	// chatTurnDuration is a histogram of full turn processing duration.
	chatTurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_turn_duration_seconds",
			Help:      "Histogram of chat turn processing duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	// sessionsActive is a gauge of sessions currently held by the store.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of active (non-terminated) sessions",
		},
	)

	// providerRequestDuration is a histogram of LLM provider API call duration.
	providerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of LLM provider API calls in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	// providerRequestsTotal is a counter of provider API calls.
	providerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of provider API calls",
		},
		[]string{"provider", "model", "status"}, // status: success, error
	)

	// providerTokensTotal is a counter of tokens consumed by provider calls.
	providerTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_tokens_total",
			Help:      "Total tokens consumed by provider calls",
		},
		[]string{"provider", "model", "type"}, // type: input, output
	)

	// safetyEventsTotal is a counter of safety policy hits.
	safetyEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "safety_events_total",
			Help:      "Total number of safety policy hits",
		},
		[]string{"kind", "scope"}, // scope: warning, session, platform
	)

	// terminationsTotal is a counter of session and platform terminations.
	terminationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminations_total",
			Help:      "Total number of terminations",
		},
		[]string{"scope", "reason"}, // scope: session, platform
	)

	// inputRejectionsTotal is a counter of rejected user inputs.
	inputRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_rejections_total",
			Help:      "Total number of user inputs rejected by validation",
		},
		[]string{"reason"},
	)

	// recommendationsTotal is a counter of issued destination recommendations.
	recommendationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_total",
			Help:      "Total number of destination recommendations issued",
		},
		[]string{"spot"},
	)

	// arrivalsTotal is a counter of confirmed arrivals.
	arrivalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "arrivals_total",
			Help:      "Total number of confirmed arrivals",
		},
		[]string{"spot"},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		chatTurnsTotal,
		chatTurnDuration,
		sessionsActive,
		providerRequestDuration,
		providerRequestsTotal,
		providerTokensTotal,
		safetyEventsTotal,
		terminationsTotal,
		inputRejectionsTotal,
		recommendationsTotal,
		arrivalsTotal,
	}
)

// RecordChatTurn records a processed chat turn.
func RecordChatTurn(stage, status string, durationSeconds float64) {
	chatTurnsTotal.WithLabelValues(stage, status).Inc()
	chatTurnDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// SetActiveSessions records the current active session count.
func SetActiveSessions(n int) {
	sessionsActive.Set(float64(n))
}

// RecordProviderRequest records a provider API call.
func RecordProviderRequest(provider, model, status string, durationSeconds float64) {
	providerRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	providerRequestsTotal.WithLabelValues(provider, model, status).Inc()
}

// RecordProviderTokens records token consumption.
func RecordProviderTokens(provider, model string, inputTokens, outputTokens int) {
	if inputTokens > 0 {
		providerTokensTotal.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		providerTokensTotal.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

// RecordSafetyEvent records a safety policy hit.
func RecordSafetyEvent(kind, scope string) {
	safetyEventsTotal.WithLabelValues(kind, scope).Inc()
}

// RecordTermination records a session or platform termination.
func RecordTermination(scope, reason string) {
	terminationsTotal.WithLabelValues(scope, reason).Inc()
}

// RecordInputRejection records a rejected user input.
func RecordInputRejection(reason string) {
	inputRejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordRecommendation records an issued recommendation.
func RecordRecommendation(spot string) {
	recommendationsTotal.WithLabelValues(spot).Inc()
}

// RecordArrival records a confirmed arrival.
func RecordArrival(spot string) {
	arrivalsTotal.WithLabelValues(spot).Inc()
}
