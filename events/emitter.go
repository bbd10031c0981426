package events

import "time"

// Emitter provides helpers for publishing engine events with shared metadata.
// A nil Emitter is valid and drops every event.
type Emitter struct {
	bus       *EventBus
	sessionID string
}

// NewEmitter creates a new event emitter bound to one session.
func NewEmitter(bus *EventBus, sessionID string) *Emitter {
	return &Emitter{
		bus:       bus,
		sessionID: sessionID,
	}
}

// emit publishes an event with shared context fields.
func (e *Emitter) emit(eventType EventType, data EventData) {
	if e == nil || e.bus == nil {
		return
	}

	e.bus.Publish(&Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		Data:      data,
	})
}

// TurnCompleted emits the turn.completed event.
func (e *Emitter) TurnCompleted(stage, emotion string, fallback bool, duration time.Duration) {
	e.emit(EventTurnCompleted, TurnCompletedData{
		Stage:    stage,
		Emotion:  emotion,
		Fallback: fallback,
		Duration: duration,
	})
}

// TurnRejected emits the turn.rejected event.
func (e *Emitter) TurnRejected(reason string) {
	e.emit(EventTurnRejected, TurnRejectedData{Reason: reason})
}

// ProviderCallCompleted emits the provider.call.completed event.
func (e *Emitter) ProviderCallCompleted(provider, model string, inputTokens, outputTokens int, duration time.Duration) {
	e.emit(EventProviderCallCompleted, ProviderCallCompletedData{
		Provider:     provider,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Duration:     duration,
	})
}

// ProviderCallFailed emits the provider.call.failed event.
func (e *Emitter) ProviderCallFailed(provider, model string, err error, duration time.Duration) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	e.emit(EventProviderCallFailed, ProviderCallFailedData{
		Provider: provider,
		Model:    model,
		Error:    msg,
		Duration: duration,
	})
}

// SafetyTriggered emits the safety.triggered event.
func (e *Emitter) SafetyTriggered(kind, scope, stage string, strikes int) {
	e.emit(EventSafetyTriggered, SafetyTriggeredData{
		Kind:    kind,
		Scope:   scope,
		Strikes: strikes,
		Stage:   stage,
	})
}

// SessionTerminated emits the session.terminated event.
func (e *Emitter) SessionTerminated(reason string, strikes int) {
	e.emit(EventSessionTerminated, SessionTerminatedData{
		Reason:  reason,
		Strikes: strikes,
	})
}

// PlatformTerminated emits the platform.terminated event.
func (e *Emitter) PlatformTerminated(reason string, sessions int) {
	e.emit(EventPlatformTerminated, PlatformTerminatedData{
		Reason:   reason,
		Sessions: sessions,
	})
}

// RecommendationIssued emits the recommendation.issued event.
func (e *Emitter) RecommendationIssued(spot string, turns int) {
	e.emit(EventRecommendationIssued, RecommendationIssuedData{
		Spot:  spot,
		Turns: turns,
	})
}

// ArrivalConfirmed emits the arrival.confirmed event.
func (e *Emitter) ArrivalConfirmed(spot string) {
	e.emit(EventArrivalConfirmed, ArrivalConfirmedData{Spot: spot})
}
