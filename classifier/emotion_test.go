package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daeguwebtoon/chatcore/types"
)

func TestAnalyzeEmotion_UserEmotionWins(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name    string
		ai      string
		user    string
		emotion types.Emotion
	}{
		{"sad keyword", "괜찮아질 거야", "요즘 너무 우울해", types.EmotionSad},
		{"sad emoticon", "힘내!", "오늘 망했어 ㅠㅠ", types.EmotionSad},
		{"angry", "진정해", "아 진짜 짜증나", types.EmotionAngry},
		{"worry", "괜찮을 거야", "길 잃을까 봐 걱정돼", types.EmotionWorry},
		{"excited laughter", "재밌지", "ㅋㅋㅋ 완전 웃겨", types.EmotionExcited},
		{"surprised", "그치", "헐 대박", types.EmotionSurprised},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.emotion, c.AnalyzeEmotion(tt.ai, types.StagePreference, tt.user))
		})
	}
}

func TestAnalyzeEmotion_AssistantContent(t *testing.T) {
	c := newTestClassifier()

	// No user emotion cues: assistant wording decides.
	assert.Equal(t, types.EmotionExcited, c.AnalyzeEmotion("동성로 어때?", types.StagePreference, "그렇구나"))
	assert.Equal(t, types.EmotionThinking, c.AnalyzeEmotion("어떤 걸 말하는 거지", types.StageEnroute, "그렇구나"))
}

func TestAnalyzeEmotion_StageDefaults(t *testing.T) {
	c := newTestClassifier()

	assert.Equal(t, types.EmotionExcited, c.AnalyzeEmotion("음", types.StageRecommendation, "응응"))
	assert.Equal(t, types.EmotionConfused, c.AnalyzeEmotion("", types.StageGreeting, "안녕"))
}
