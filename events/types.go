package events

import (
	"time"
)

// EventType identifies the type of event emitted by the chat engine.
type EventType string

const (
	// EventTurnCompleted marks a chat turn that produced a reply.
	EventTurnCompleted EventType = "turn.completed"
	// EventTurnRejected marks a chat turn rejected by input validation.
	EventTurnRejected EventType = "turn.rejected"

	// EventProviderCallCompleted marks a generation call completion.
	EventProviderCallCompleted EventType = "provider.call.completed"
	// EventProviderCallFailed marks a generation call failure.
	EventProviderCallFailed EventType = "provider.call.failed"

	// EventSafetyTriggered marks a safety policy hit (profanity, jailbreak,
	// off-topic strike, store-name masking).
	EventSafetyTriggered EventType = "safety.triggered"
	// EventSessionTerminated marks a single session shutting down.
	EventSessionTerminated EventType = "session.terminated"
	// EventPlatformTerminated marks the platform-wide kill switch tripping.
	EventPlatformTerminated EventType = "platform.terminated"

	// EventRecommendationIssued marks the engine committing to a destination.
	EventRecommendationIssued EventType = "recommendation.issued"
	// EventArrivalConfirmed marks a session arriving at its destination.
	EventArrivalConfirmed EventType = "arrival.confirmed"
)

// EventData is a marker interface for event payloads.
type EventData interface {
	eventData()
}

// Event is a single engine event.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id,omitempty"`
	Data      EventData `json:"data,omitempty"`
}

// TurnCompletedData carries the outcome of a completed chat turn.
type TurnCompletedData struct {
	Stage    string        `json:"stage"`
	Emotion  string        `json:"emotion,omitempty"`
	Fallback bool          `json:"fallback,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (TurnCompletedData) eventData() {}

// TurnRejectedData carries the validation reason for a rejected turn.
type TurnRejectedData struct {
	Reason string `json:"reason"`
}

func (TurnRejectedData) eventData() {}

// ProviderCallCompletedData carries timing and token usage for a generation call.
type ProviderCallCompletedData struct {
	Provider     string        `json:"provider"`
	Model        string        `json:"model,omitempty"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Duration     time.Duration `json:"duration"`
}

func (ProviderCallCompletedData) eventData() {}

// ProviderCallFailedData carries the failure details of a generation call.
type ProviderCallFailedData struct {
	Provider string        `json:"provider"`
	Model    string        `json:"model,omitempty"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (ProviderCallFailedData) eventData() {}

// SafetyTriggeredData describes a safety policy hit.
//
// Kind names the trigger ("profanity", "critical_term", "jailbreak",
// "off_topic", "store_name_masked"). Scope is "warning", "session" or
// "platform" depending on the action taken.
type SafetyTriggeredData struct {
	Kind    string `json:"kind"`
	Scope   string `json:"scope"`
	Strikes int    `json:"strikes,omitempty"`
	Stage   string `json:"stage,omitempty"`
}

func (SafetyTriggeredData) eventData() {}

// SessionTerminatedData carries the reason a session was shut down.
type SessionTerminatedData struct {
	Reason  string `json:"reason"`
	Strikes int    `json:"strikes,omitempty"`
}

func (SessionTerminatedData) eventData() {}

// PlatformTerminatedData carries the reason the platform kill switch fired.
type PlatformTerminatedData struct {
	Reason   string `json:"reason"`
	Sessions int    `json:"sessions"`
}

func (PlatformTerminatedData) eventData() {}

// RecommendationIssuedData marks the destination the engine committed to.
type RecommendationIssuedData struct {
	Spot  string `json:"spot"`
	Turns int    `json:"turns"`
}

func (RecommendationIssuedData) eventData() {}

// ArrivalConfirmedData marks a confirmed arrival.
type ArrivalConfirmedData struct {
	Spot string `json:"spot"`
}

func (ArrivalConfirmedData) eventData() {}
