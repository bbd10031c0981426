// Package prometheus provides Prometheus metrics for the chat engine.
package prometheus

import (
	"github.com/daeguwebtoon/chatcore/events"
)

// Status constants for metric labels.
const (
	statusSuccess  = "success"
	statusError    = "error"
	statusFallback = "fallback"
)

// MetricsListener records engine events as Prometheus metrics.
// It implements the events.Listener signature and should be registered
// with an EventBus using SubscribeAll.
type MetricsListener struct{}

// NewMetricsListener creates a new MetricsListener.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{}
}

// Handle processes an event and records relevant metrics.
func (l *MetricsListener) Handle(event *events.Event) {
	switch event.Type {
	case events.EventTurnCompleted:
		l.handleTurnCompleted(event)
	case events.EventTurnRejected:
		l.handleTurnRejected(event)
	case events.EventProviderCallCompleted:
		l.handleProviderCallCompleted(event)
	case events.EventProviderCallFailed:
		l.handleProviderCallFailed(event)
	case events.EventSafetyTriggered:
		l.handleSafetyTriggered(event)
	case events.EventSessionTerminated:
		l.handleSessionTerminated(event)
	case events.EventPlatformTerminated:
		l.handlePlatformTerminated(event)
	case events.EventRecommendationIssued:
		l.handleRecommendationIssued(event)
	case events.EventArrivalConfirmed:
		l.handleArrivalConfirmed(event)
	default:
		// Ignore events that don't have metrics
	}
}

func (l *MetricsListener) handleTurnCompleted(event *events.Event) {
	if data, ok := event.Data.(events.TurnCompletedData); ok {
		status := statusSuccess
		if data.Fallback {
			status = statusFallback
		}
		RecordChatTurn(data.Stage, status, data.Duration.Seconds())
	}
}

func (l *MetricsListener) handleTurnRejected(event *events.Event) {
	if data, ok := event.Data.(events.TurnRejectedData); ok {
		RecordInputRejection(data.Reason)
	}
}

func (l *MetricsListener) handleProviderCallCompleted(event *events.Event) {
	if data, ok := event.Data.(events.ProviderCallCompletedData); ok {
		RecordProviderRequest(data.Provider, data.Model, statusSuccess, data.Duration.Seconds())
		RecordProviderTokens(data.Provider, data.Model, data.InputTokens, data.OutputTokens)
	}
}

func (l *MetricsListener) handleProviderCallFailed(event *events.Event) {
	if data, ok := event.Data.(events.ProviderCallFailedData); ok {
		RecordProviderRequest(data.Provider, data.Model, statusError, data.Duration.Seconds())
	}
}

func (l *MetricsListener) handleSafetyTriggered(event *events.Event) {
	if data, ok := event.Data.(events.SafetyTriggeredData); ok {
		RecordSafetyEvent(data.Kind, data.Scope)
	}
}

func (l *MetricsListener) handleSessionTerminated(event *events.Event) {
	if data, ok := event.Data.(events.SessionTerminatedData); ok {
		RecordTermination("session", data.Reason)
	}
}

func (l *MetricsListener) handlePlatformTerminated(event *events.Event) {
	if data, ok := event.Data.(events.PlatformTerminatedData); ok {
		RecordTermination("platform", data.Reason)
	}
}

func (l *MetricsListener) handleRecommendationIssued(event *events.Event) {
	if data, ok := event.Data.(events.RecommendationIssuedData); ok {
		RecordRecommendation(data.Spot)
	}
}

func (l *MetricsListener) handleArrivalConfirmed(event *events.Event) {
	if data, ok := event.Data.(events.ArrivalConfirmedData); ok {
		RecordArrival(data.Spot)
	}
}

// Listener returns an events.Listener function that can be registered with an EventBus.
func (l *MetricsListener) Listener() events.Listener {
	return l.Handle
}
