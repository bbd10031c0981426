package classifier

import (
	"strings"

	"github.com/daeguwebtoon/chatcore/types"
)

// Emotion keyword tables. The user's emotional state takes priority over the
// assistant's wording so the character empathizes before it emotes.
var (
	sadEmoticons      = []string{"ㅠ", "ㅜ", "ㅡㅡ", "...", "흑"}
	sadKeywords       = []string{"슬퍼", "힘들어", "우울", "외로", "쓸쓸", "속상", "울고", "눈물"}
	angryKeywords     = []string{"화나", "짜증", "싫어", "별로", "안돼", "못해", "최악", "빡쳐"}
	worryKeywords     = []string{"걱정", "불안", "무서워", "두려워", "떨려"}
	excitedKeywords   = []string{"좋아", "최고", "굿", "완전", "너무", "신난다", "신나", "재밌", "재미", "좋다", "좋네", "끝내주", "짱"}
	surprisedCues     = []string{"!", "헉", "어머"}
	surprisedKeywords = []string{"대박", "진짜?", "정말?", "놀라", "어머", "헐"}
	aiExcitedKeywords = []string{"어때", "가볼래", "가자"}
	happyKeywords     = []string{"좋", "감사", "고마워", "반가", "안녕", "즐거", "행복"}
)

// AnalyzeEmotion picks the character emotion for a turn from the user
// message, the assistant reply, and the conversation stage, in that order.
func (c *Classifier) AnalyzeEmotion(aiMessage string, stage types.Stage, userMessage string) types.Emotion {
	msg := strings.ToLower(aiMessage)
	userMsg := strings.ToLower(userMessage)

	if aiMessage == "" {
		return types.EmotionConfused
	}

	// User emotion first: empathy beats the assistant's own tone.
	switch {
	case matchesAny(userMsg, sadEmoticons) || matchesAny(userMsg, sadKeywords):
		return types.EmotionSad
	case matchesAny(userMsg, angryKeywords):
		return types.EmotionAngry
	case matchesAny(userMsg, worryKeywords):
		return types.EmotionWorry
	case strings.Contains(userMsg, "ㅋㅋ") || strings.Contains(userMsg, "ㅎㅎ") || matchesAny(userMsg, excitedKeywords):
		return types.EmotionExcited
	case matchesAny(userMsg, surprisedCues) || matchesAny(userMsg, surprisedKeywords):
		return types.EmotionSurprised
	}

	// Then the assistant's reply content.
	switch {
	case matchesAny(msg, angryKeywords):
		return types.EmotionAngry
	case matchesAny(msg, sadKeywords):
		return types.EmotionSad
	case matchesAny(msg, worryKeywords):
		return types.EmotionWorry
	case matchesAny(msg, surprisedKeywords):
		return types.EmotionSurprised
	case stage == types.StageRecommendation || matchesAny(msg, aiExcitedKeywords):
		return types.EmotionExcited
	case strings.Contains(msg, "?") || strings.Contains(msg, "뭐") || strings.Contains(msg, "어떤"):
		return types.EmotionThinking
	case matchesAny(msg, happyKeywords):
		return types.EmotionHappy
	}

	// Stage default.
	switch stage {
	case types.StagePreference, types.StageEnroute:
		return types.EmotionThinking
	default:
		return types.EmotionHappy
	}
}

func matchesAny(text string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(text, cue) {
			return true
		}
	}
	return false
}
