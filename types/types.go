// Package types defines the shared data model for the Daegu webtoon chat core.
//
// The central entities are Session (one per conversation, owning the stage
// state machine position and message history) and ChatResult (the structured
// outcome of a single chat turn handed to the presentation layer).
package types

import "time"

// Stage is the session's position in the canonical conversation arc.
type Stage string

const (
	StageGreeting       Stage = "greeting"
	StagePreference     Stage = "preference"
	StageRecommendation Stage = "recommendation"
	StageEnroute        Stage = "enroute"
	StageArrived        Stage = "arrived"
	StageTerminated     Stage = "terminated"
)

// Emotion classifies the character's display emotion for a turn.
// The frontend maps these to character animation assets.
type Emotion string

const (
	EmotionHappy     Emotion = "happy"
	EmotionExcited   Emotion = "excited"
	EmotionSad       Emotion = "sad"
	EmotionAngry     Emotion = "angry"
	EmotionWorry     Emotion = "worry"
	EmotionSurprised Emotion = "surprised"
	EmotionConfused  Emotion = "confused"
	EmotionThinking  Emotion = "thinking"
)

// Message represents a single message in a conversation.
type Message struct {
	Role      string    `json:"role"` // "system", "user", "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Session holds the full state of one conversation.
//
// Invariants maintained by the engine:
//   - CurrentLocation, once set, never changes (one destination per session).
//   - RecommendedSpot is one of the canonical destination keys, or empty.
//   - Terminated is monotonic; once true no further stage transitions occur.
type Session struct {
	ID                  string    `json:"id"`
	Stage               Stage     `json:"stage"`
	Messages            []Message `json:"messages"`
	RecommendedSpot     string    `json:"recommended_spot,omitempty"`
	CurrentLocation     string    `json:"current_location,omitempty"`
	ConversationTurns   int       `json:"conversation_turns"`
	OffTopicCount       int       `json:"off_topic_count"`
	StrikeCount         int       `json:"strike_count"`
	Terminated          bool      `json:"terminated"`
	UserName            string    `json:"user_name,omitempty"`
	LastSuggestionIndex int       `json:"last_suggestion_index"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// maxStoredMessages bounds the retained history per session.
const maxStoredMessages = 20

// AppendMessage appends a message to the session history, trimming the
// oldest entries once the retention bound is exceeded.
func (s *Session) AppendMessage(role, content string, now time.Time) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content, Timestamp: now})
	if len(s.Messages) > maxStoredMessages {
		s.Messages = s.Messages[len(s.Messages)-maxStoredMessages:]
	}
	s.UpdatedAt = now
}

// RecentMessages returns the last n messages for prompt construction.
func (s *Session) RecentMessages(n int) []Message {
	if n <= 0 || len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// Recommendation is the payload attached to a ChatResult once the engine
// commits to a destination.
type Recommendation struct {
	Spot     string   `json:"spot"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// Usage reports token consumption for a generated turn.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResult is the structured outcome of one chat turn.
//
// Message is always a human-readable, in-character reply except when Silent
// is set, in which case the conversational surface has been shut down and
// the body is intentionally empty.
type ChatResult struct {
	Success        bool            `json:"success"`
	Message        string          `json:"message"`
	SessionID      string          `json:"session_id"`
	Stage          Stage           `json:"stage"`
	Emotion        Emotion         `json:"emotion,omitempty"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
	Usage          *Usage          `json:"usage,omitempty"`
	Terminated     bool            `json:"terminated"`
	Warning        bool            `json:"warning"`
	Strikes        int             `json:"strikes"`
	Fallback       bool            `json:"fallback"`
	InvalidInput   bool            `json:"invalid_input"`
	EndCut         bool            `json:"end_cut"`
	Silent         bool            `json:"silent"`
}

// SessionInfo is the read-only session summary exposed to callers.
type SessionInfo struct {
	Exists          bool      `json:"exists"`
	Stage           Stage     `json:"stage,omitempty"`
	MessageCount    int       `json:"message_count"`
	RecommendedSpot string    `json:"recommended_spot,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}
