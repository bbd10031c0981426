// Package engine implements the conversation state machine for the Daegu
// webtoon chat character.
//
// Engine.Chat drives one user turn end to end: safety checks, stage
// transitions, prompt construction, generation, and output enforcement. All
// state transitions live in reduce (see reduce.go) so they stay testable
// without a provider or a store.
package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/daeguwebtoon/chatcore/classifier"
	"github.com/daeguwebtoon/chatcore/destinations"
	"github.com/daeguwebtoon/chatcore/events"
	"github.com/daeguwebtoon/chatcore/logger"
	"github.com/daeguwebtoon/chatcore/policy"
	"github.com/daeguwebtoon/chatcore/providers"
	"github.com/daeguwebtoon/chatcore/sessionstore"
	"github.com/daeguwebtoon/chatcore/types"
)

// ErrUnknownSpot is returned by SetArrival for a non-canonical destination key.
var ErrUnknownSpot = errors.New("unknown destination key")

// Canned replies. The character never breaks immersion: every degraded path
// still answers in voice.
const (
	alreadyEndedReply     = "대화가 이미 종료되었어. 다음에 다시 만나자!"
	policyViolationReply  = "정책 위반으로 대화를 종료합니다."
	offTopicRedirectReply = "앗, 그건 잘 모르겠는데? 우리 대구 여행 얘기하자! 어떤 곳 좋아해? 😄"
	offTopicWarnReply     = "음, 나는 대구 여행 얘기만 할 수 있어! 한 번만 더 딴 얘기하면 나 삐질지도 몰라 😅"
	offTopicFarewellReply = "오늘은 여기까지 해야겠다. 다음에 대구 여행 얘기하고 싶을 때 다시 와줘! 👋"

	// ResetMessage is returned to callers after a session reset.
	ResetMessage = "새로운 대화를 시작합니다!"
)

// invalidInputReplies are rotated for gibberish input.
var invalidInputReplies = []string{
	"?왜카노",
	"어디 아프니",
	"상태가 말이 아니구나",
	"집에 가고 싶니",
}

// Config tunes the engine's policy thresholds.
type Config struct {
	// SafetyEnabled gates every safety behavior: profanity and critical-term
	// termination, prompt preambles, and output enforcement.
	SafetyEnabled bool
	// OffTopicPolicy gates the off-topic/jailbreak strike ladder. It has no
	// effect when SafetyEnabled is false.
	OffTopicPolicy bool
	// RecommendTurnThreshold is the minimum conversation turn count before a
	// destination may be committed.
	RecommendTurnThreshold int
	// RecommendationPayloadThreshold is the turn count at which the structured
	// recommendation payload is attached to results.
	RecommendationPayloadThreshold int
	// RegressionTurns is the turn count a session is wound back to when the
	// user rejects a recommendation.
	RegressionTurns int
	// HistoryTail bounds how many prior messages accompany each generation
	// request.
	HistoryTail int
	// Persona is the character system prompt. Empty selects DefaultPersona.
	Persona string
	// Temperature and MaxTokens are passed through to the provider.
	Temperature float32
	MaxTokens   int
}

// DefaultConfig returns the production policy configuration.
func DefaultConfig() Config {
	return Config{
		SafetyEnabled:                  true,
		OffTopicPolicy:                 true,
		RecommendTurnThreshold:         3,
		RecommendationPayloadThreshold: 5,
		RegressionTurns:                2,
		HistoryTail:                    6,
		Persona:                        DefaultPersona,
		Temperature:                    0.85,
		MaxTokens:                      120,
	}
}

// Engine owns the conversation state machine and its collaborators.
type Engine struct {
	cfg        Config
	store      sessionstore.Store
	provider   providers.Provider
	classifier *classifier.Classifier
	policy     *policy.Engine
	dests      *destinations.Config
	term       *Termination
	bus        *events.EventBus
	now        func() time.Time

	// locks serializes turns per session so a slow provider call cannot
	// interleave with a concurrent turn for the same session. Entries are
	// never evicted; they are a mutex per live conversation and the session
	// sweep bounds how many conversations exist.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithDestinations replaces the embedded destination configuration. The
// classifier and policy engine are rebuilt from it.
func WithDestinations(cfg *destinations.Config) Option {
	return func(e *Engine) { e.dests = cfg }
}

// WithEventBus attaches a shared event bus. Without it the engine publishes
// to a private bus nobody listens on.
func WithEventBus(bus *events.EventBus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTermination injects a shared platform kill switch so several engines,
// or an external controller, observe the same termination state. Without it
// each engine owns a private switch.
func WithTermination(term *Termination) Option {
	return func(e *Engine) { e.term = term }
}

// New builds an engine over a session store and a text provider.
func New(store sessionstore.Store, provider providers.Provider, opts ...Option) *Engine {
	e := &Engine{
		cfg:      DefaultConfig(),
		store:    store,
		provider: provider,
		dests:    destinations.Default(),
		term:     NewTermination(),
		bus:      events.NewEventBus(),
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.Persona == "" {
		e.cfg.Persona = DefaultPersona
	}
	e.classifier = classifier.New(e.dests)
	e.policy = policy.New(e.dests)
	return e
}

// Bus returns the engine's event bus for listener registration.
func (e *Engine) Bus() *events.EventBus { return e.bus }

// Destinations returns the canonical destination configuration.
func (e *Engine) Destinations() *destinations.Config { return e.dests }

// TerminationState reports the platform kill-switch state.
func (e *Engine) TerminationState() TerminationState { return e.term.Snapshot() }

// ResetTermination clears the platform kill switch. Sessions terminated
// while it was active stay terminated.
func (e *Engine) ResetTermination() { e.term.Reset() }

func (e *Engine) lockSession(id string) func() {
	e.mu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	e.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Chat processes one user turn and always returns a usable result; the error
// is non-nil only for storage failures.
func (e *Engine) Chat(ctx context.Context, sessionID, userName, message string) (*types.ChatResult, error) {
	if e.term.Active() {
		return &types.ChatResult{
			Success:    true,
			SessionID:  sessionID,
			Stage:      types.StageTerminated,
			Terminated: true,
			EndCut:     true,
			Silent:     true,
		}, nil
	}

	unlock := e.lockSession(sessionID)
	defer unlock()

	sess, err := e.store.GetOrCreate(ctx, sessionID, userName)
	if err != nil {
		return nil, err
	}
	emit := events.NewEmitter(e.bus, sessionID)

	if sess.Terminated {
		return &types.ChatResult{
			Success:    true,
			Message:    alreadyEndedReply,
			SessionID:  sessionID,
			Stage:      sess.Stage,
			Terminated: true,
			EndCut:     true,
			Strikes:    sess.StrikeCount,
		}, nil
	}

	if verdict := e.classifier.ValidateInput(message); !verdict.Valid {
		emit.TurnRejected(verdict.Reason)
		return &types.ChatResult{
			Success:      true,
			Message:      invalidInputReplies[rand.IntN(len(invalidInputReplies))],
			SessionID:    sessionID,
			Stage:        sess.Stage,
			Emotion:      types.EmotionConfused,
			InvalidInput: true,
			Strikes:      sess.StrikeCount,
		}, nil
	}

	v := verdicts{
		OffTopic:       e.classifier.DetectOffTopic(message),
		Jailbreak:      e.classifier.DetectJailbreak(message),
		Profanity:      e.classifier.ContainsProfanity(message),
		Critical:       e.classifier.ContainsCriticalTerm(message),
		WantsDifferent: e.classifier.DetectChangeIntent(message),
		WantsReject:    e.classifier.DetectRejectIntent(message),
		PositiveIntent: e.classifier.DetectPositiveIntent(message),
		PreferredSpot:  e.classifier.ScorePreference(message),
		FoodQuery:      e.classifier.IsFoodQuery(message),
	}

	now := e.now()
	pl := e.reduce(sess, message, v, now)

	switch pl.Action {
	case actionOffTopicRedirect, actionOffTopicWarn:
		if err := e.store.Save(ctx, sess); err != nil {
			return nil, err
		}
		logger.SafetyEvent(pl.Reason, sessionID, "strikes", pl.Strikes)
		emit.SafetyTriggered(pl.Reason, "warning", string(sess.Stage), pl.Strikes)
		msg := offTopicRedirectReply
		if pl.Action == actionOffTopicWarn {
			msg = offTopicWarnReply
		}
		return &types.ChatResult{
			Success:   true,
			Message:   msg,
			SessionID: sessionID,
			Stage:     sess.Stage,
			Emotion:   types.EmotionWorry,
			Warning:   pl.Action == actionOffTopicWarn,
			Strikes:   pl.Strikes,
		}, nil

	case actionTerminateSession:
		if err := e.store.Save(ctx, sess); err != nil {
			return nil, err
		}
		logger.SafetyEvent(pl.Reason, sessionID, "strikes", pl.Strikes)
		emit.SafetyTriggered(pl.Reason, "session", string(sess.Stage), pl.Strikes)
		emit.SessionTerminated(pl.Reason, pl.Strikes)
		if pl.Reason == "profanity" {
			return &types.ChatResult{
				Success:    false,
				Message:    policyViolationReply,
				SessionID:  sessionID,
				Stage:      sess.Stage,
				Terminated: true,
				EndCut:     true,
				Strikes:    pl.Strikes,
			}, nil
		}
		return &types.ChatResult{
			Success:    true,
			Message:    offTopicFarewellReply,
			SessionID:  sessionID,
			Stage:      sess.Stage,
			Terminated: true,
			EndCut:     true,
			Strikes:    pl.Strikes,
		}, nil

	case actionTerminatePlatform:
		if err := e.store.Save(ctx, sess); err != nil {
			return nil, err
		}
		e.term.Trip(pl.Reason, now)
		count, err := e.store.TerminateAll(ctx)
		if err != nil {
			return nil, err
		}
		logger.SafetyEvent(pl.Reason, sessionID, "scope", "platform", "sessions", count)
		emit.SafetyTriggered(pl.Reason, "platform", string(sess.Stage), pl.Strikes)
		emit.PlatformTerminated(pl.Reason, count)
		return &types.ChatResult{
			Success:    true,
			SessionID:  sessionID,
			Stage:      sess.Stage,
			Terminated: true,
			EndCut:     true,
			Silent:     true,
			Strikes:    pl.Strikes,
		}, nil
	}

	result, err := e.generate(ctx, sess, message, v, emit)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// generate runs the provider round trip and output enforcement for a turn
// the reducer cleared for generation.
func (e *Engine) generate(ctx context.Context, sess *types.Session, message string, v verdicts, emit *events.Emitter) (*types.ChatResult, error) {
	req := providers.ChatRequest{
		System:      e.buildSystemPrompt(sess, v.FoodQuery),
		Messages:    e.promptMessages(sess),
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
	}

	start := e.now()
	resp, callErr := e.provider.Chat(ctx, req)
	elapsed := e.now().Sub(start)

	fallback := false
	text := resp.Content
	if callErr != nil {
		logger.LLMError(e.provider.ID(), e.provider.Model(), callErr)
		emit.ProviderCallFailed(e.provider.ID(), e.provider.Model(), callErr, elapsed)
		fallback = true
		text = ""
	} else {
		emit.ProviderCallCompleted(e.provider.ID(), e.provider.Model(),
			resp.Usage.PromptTokens, resp.Usage.CompletionTokens, elapsed)
	}
	if text == "" {
		fallback = true
		if v.FoodQuery {
			text = e.policy.FoodAreaReply(sess)
		} else {
			text = e.policy.SmallTalk(sess.UserName, sess.Stage == types.StageGreeting)
		}
	}

	if e.cfg.SafetyEnabled {
		text = e.policy.EnforceOutput(text, sess)
	}
	if sess.Stage != types.StageArrived && sess.Stage != types.StageEnroute &&
		sess.Stage != types.StageRecommendation &&
		sess.ConversationTurns < e.cfg.RecommendTurnThreshold {
		text = e.policy.MaskEarlySpots(text)
	}
	if e.cfg.SafetyEnabled && sess.Stage != types.StageArrived {
		text = e.policy.SanitizeFirstChat(text, sess.UserName, sess.Stage, sess.RecommendedSpot)
	}
	if sess.ConversationTurns >= e.cfg.RecommendTurnThreshold &&
		sess.Stage == types.StageRecommendation {
		text = e.policy.RecommendationCallout(text, sess, sess.UserName)
	}

	now := e.now()
	sess.AppendMessage("assistant", text, now)
	if sess.Stage == types.StageGreeting {
		sess.Stage = types.StagePreference
	}

	emotion := e.classifier.AnalyzeEmotion(text, sess.Stage, message)

	if err := e.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	emit.TurnCompleted(string(sess.Stage), string(emotion), fallback, elapsed)

	result := &types.ChatResult{
		Success:    true,
		Message:    text,
		SessionID:  sess.ID,
		Stage:      sess.Stage,
		Emotion:    emotion,
		Terminated: sess.Terminated,
		Strikes:    sess.StrikeCount,
		Fallback:   fallback,
	}
	if !fallback && resp.Usage.TotalTokens > 0 {
		usage := resp.Usage
		result.Usage = &usage
	}

	if sess.RecommendedSpot != "" &&
		sess.ConversationTurns >= e.cfg.RecommendationPayloadThreshold &&
		sess.Stage == types.StageRecommendation {
		if spot, ok := e.dests.Spot(sess.RecommendedSpot); ok {
			result.Recommendation = &types.Recommendation{
				Spot:     sess.RecommendedSpot,
				Name:     spot.Name,
				Keywords: spot.Keywords,
			}
			emit.RecommendationIssued(sess.RecommendedSpot, sess.ConversationTurns)
		}
	}
	return result, nil
}

// SetArrival marks the session as arrived at a canonical destination. The
// call is idempotent: repeating it with the same key is a no-op success.
func (e *Engine) SetArrival(ctx context.Context, sessionID, spotKey string) (*types.Session, error) {
	if !e.dests.IsCanonical(spotKey) {
		return nil, ErrUnknownSpot
	}

	unlock := e.lockSession(sessionID)
	defer unlock()

	sess, err := e.store.GetOrCreate(ctx, sessionID, "")
	if err != nil {
		return nil, err
	}
	if sess.CurrentLocation == spotKey && sess.Stage == types.StageArrived {
		return sess, nil
	}
	sess.CurrentLocation = spotKey
	sess.RecommendedSpot = spotKey
	sess.Stage = types.StageArrived
	sess.UpdatedAt = e.now()
	if err := e.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	events.NewEmitter(e.bus, sessionID).ArrivalConfirmed(spotKey)
	return sess, nil
}

// Reset deletes the session so the next turn starts a fresh conversation.
func (e *Engine) Reset(ctx context.Context, sessionID string) error {
	unlock := e.lockSession(sessionID)
	defer unlock()
	return e.store.Delete(ctx, sessionID)
}

// SessionInfo returns a read-only summary of a session. A missing session
// is not an error; Exists is false.
func (e *Engine) SessionInfo(ctx context.Context, sessionID string) (types.SessionInfo, error) {
	sess, err := e.store.Get(ctx, sessionID)
	if errors.Is(err, sessionstore.ErrNotFound) || errors.Is(err, sessionstore.ErrInvalidID) {
		return types.SessionInfo{}, nil
	}
	if err != nil {
		return types.SessionInfo{}, err
	}
	return types.SessionInfo{
		Exists:          true,
		Stage:           sess.Stage,
		MessageCount:    len(sess.Messages),
		RecommendedSpot: sess.RecommendedSpot,
		CreatedAt:       sess.CreatedAt,
	}, nil
}

// Stats reports session counts from the underlying store.
func (e *Engine) Stats(ctx context.Context) (sessionstore.Stats, error) {
	return e.store.Stats(ctx)
}
