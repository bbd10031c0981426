package engine

import (
	"time"

	"github.com/daeguwebtoon/chatcore/types"
)

// action is the effect class the reducer selects for one turn.
type action int

const (
	// actionGenerate runs the full generation path: prompt, provider call,
	// output enforcement.
	actionGenerate action = iota
	// actionOffTopicRedirect answers with a canned redirect, no generation.
	actionOffTopicRedirect
	// actionOffTopicWarn answers with a canned warning, Warning set.
	actionOffTopicWarn
	// actionTerminateSession ends this session (off-topic strikes exhausted
	// or profanity).
	actionTerminateSession
	// actionTerminatePlatform trips the platform kill switch.
	actionTerminatePlatform
)

// verdicts bundles every classifier decision for one user message, so the
// transition itself stays a pure function.
type verdicts struct {
	OffTopic       bool
	Jailbreak      bool
	Profanity      bool
	Critical       bool
	WantsDifferent bool
	WantsReject    bool
	PositiveIntent bool
	PreferredSpot  string
	FoodQuery      bool
}

// plan is the reducer's output: which effect path to take and the flags the
// final result needs.
type plan struct {
	Action action
	// Reason names the termination or strike trigger for logging/metrics.
	Reason string
	// Strikes is the session strike count after this turn.
	Strikes int
}

// reduce applies one user turn to a session and returns the effect plan.
//
// The session passed in is the engine's private copy; reduce mutates it
// freely and the caller persists it afterwards. No I/O happens here, which
// is what makes the whole state machine testable in isolation.
//
// The rule order is load-bearing: safety checks that bypass generation run
// before history and counters mutate, except the critical-term check, which
// deliberately runs after the user message lands in history so the audit
// trail retains what was said.
func (e *Engine) reduce(sess *types.Session, message string, v verdicts, now time.Time) plan {
	// Off-topic and jailbreak share the three-strike ladder. Critical terms
	// bypass it: the platform path below must always win, even when the same
	// message would also strike or terminate at session scope.
	if e.cfg.SafetyEnabled && e.cfg.OffTopicPolicy && !v.Critical {
		if v.OffTopic || v.Jailbreak {
			sess.OffTopicCount++
			sess.StrikeCount++
			sess.UpdatedAt = now
			switch {
			case sess.OffTopicCount == 1:
				return plan{Action: actionOffTopicRedirect, Reason: strikeReason(v), Strikes: sess.StrikeCount}
			case sess.OffTopicCount == 2:
				return plan{Action: actionOffTopicWarn, Reason: strikeReason(v), Strikes: sess.StrikeCount}
			default:
				sess.Terminated = true
				sess.Stage = types.StageTerminated
				return plan{Action: actionTerminateSession, Reason: "off_topic", Strikes: sess.StrikeCount}
			}
		}
		sess.OffTopicCount = 0
	}

	if e.cfg.SafetyEnabled && v.Profanity && !v.Critical {
		sess.Terminated = true
		sess.Stage = types.StageTerminated
		sess.StrikeCount++
		sess.UpdatedAt = now
		return plan{Action: actionTerminateSession, Reason: "profanity", Strikes: sess.StrikeCount}
	}

	sess.AppendMessage("user", message, now)
	if sess.CurrentLocation == "" {
		sess.ConversationTurns++
	}

	// Reject/change while a recommendation is on the table regresses to
	// preference and winds the turn counter back so one more exchange makes
	// a fresh recommendation eligible.
	if (v.WantsDifferent || v.WantsReject) &&
		sess.Stage == types.StageRecommendation && sess.CurrentLocation == "" {
		sess.Stage = types.StagePreference
		sess.ConversationTurns = e.cfg.RegressionTurns
		sess.RecommendedSpot = ""
	}

	canRecommend := sess.ConversationTurns >= e.cfg.RecommendTurnThreshold

	if canRecommend && v.PreferredSpot != "" && sess.CurrentLocation == "" {
		sess.RecommendedSpot = v.PreferredSpot
	}

	if canRecommend && sess.CurrentLocation == "" &&
		(sess.RecommendedSpot == "" || v.WantsDifferent) {
		sess.RecommendedSpot = e.resolveFallbackSpot(sess, v)
	}

	// Keep the rotation cursor pointing at whatever is on the table, however
	// it got there. A preference-scored spot that never touched the cursor
	// would otherwise come straight back from the rotation after the user
	// rejects it.
	if sess.RecommendedSpot != "" {
		e.syncSuggestionCursor(sess)
	}

	if canRecommend && sess.RecommendedSpot != "" &&
		(sess.Stage == types.StagePreference || sess.Stage == types.StageRecommendation) {
		sess.Stage = types.StageRecommendation
	}

	if v.PositiveIntent && sess.RecommendedSpot != "" && sess.Stage != types.StageArrived {
		sess.Stage = types.StageEnroute
	} else if sess.Stage == types.StagePreference && sess.RecommendedSpot != "" {
		sess.Stage = types.StageRecommendation
	}

	if e.cfg.SafetyEnabled && v.Critical {
		sess.Terminated = true
		sess.Stage = types.StageTerminated
		return plan{Action: actionTerminatePlatform, Reason: "critical_term", Strikes: sess.StrikeCount}
	}

	return plan{Action: actionGenerate, Strikes: sess.StrikeCount}
}

// resolveFallbackSpot picks a destination when scoring alone did not decide:
// explicit preference → sticky previous recommendation → rotation cursor.
// A change request always rotates so the user never hears the same fallback
// twice in a row.
func (e *Engine) resolveFallbackSpot(sess *types.Session, v verdicts) string {
	if v.WantsDifferent {
		return e.cycleFallbackSpot(sess)
	}
	if v.PreferredSpot != "" {
		return v.PreferredSpot
	}
	if sess.RecommendedSpot != "" && e.dests.IsCanonical(sess.RecommendedSpot) {
		return sess.RecommendedSpot
	}
	return e.cycleFallbackSpot(sess)
}

// cycleFallbackSpot advances the per-session rotation cursor.
func (e *Engine) cycleFallbackSpot(sess *types.Session) string {
	rotation := e.dests.Rotation
	if len(rotation) == 0 {
		return ""
	}
	if sess.LastSuggestionIndex < 0 {
		sess.LastSuggestionIndex = -1
	}
	sess.LastSuggestionIndex = (sess.LastSuggestionIndex + 1) % len(rotation)
	return rotation[sess.LastSuggestionIndex]
}

// syncSuggestionCursor points the rotation cursor at the current
// recommendation so the next cycle starts after it. Spots outside the
// rotation leave the cursor alone.
func (e *Engine) syncSuggestionCursor(sess *types.Session) {
	for i, key := range e.dests.Rotation {
		if key == sess.RecommendedSpot {
			sess.LastSuggestionIndex = i
			return
		}
	}
}

func strikeReason(v verdicts) string {
	if v.Jailbreak {
		return "jailbreak"
	}
	return "off_topic"
}
