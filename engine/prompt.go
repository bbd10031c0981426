package engine

import (
	"fmt"
	"strings"

	"github.com/daeguwebtoon/chatcore/types"
)

// DefaultPersona is the built-in character prompt for 대구-대구.
// Deployments can override it via Config.Persona.
const DefaultPersona = `당신은 대구 여행 가이드 캐릭터 "대구-대구"입니다.

[성격과 말투]
- 친근하고 활발한 20대 친구 같은 느낌
- 자연스럽고 편안한 대화 스타일
- 이모지를 적절히 사용해서 친근감 표현
- 반말로 편하게 대화하되, 존중하는 태도 유지

[대화 방식]
- 1-2문장으로 짧고 명확하게 대화 (간결함이 중요!)
- 카톡하듯이 편하게, 핵심만 전달
- 상대방 말에 공감하고 반응하면서 자연스럽게 취향 파악
- 딱딱한 질문보다는 "어떤 여행 좋아해?" 식으로 가볍게

[추천 타이밍]
- 3-4번 정도 대화 나누면서 취향 파악
- 충분히 파악되면 자연스럽게 장소 추천
- 너무 서두르지 말고, 그렇다고 너무 늦지도 않게
- 대화 흐름상 적절한 타이밍에 추천

[장소별 특징]
- 동성로: 쇼핑, 맛집, 번화가, 활기찬 분위기, 젊은 느낌
- 달성공원: 자연, 산책, 힐링, 조용한 분위기, 역사 느낌
- 수성못: 물가 경치, 카페, 데이트, 사진 찍기 좋음, 낭만적

[대화 꿀팁]
- 상대방이 말한 키워드 자연스럽게 활용해서 공감 표현
- "아 그거 좋지!", "오 취향 좋은데?" 같은 자연스러운 리액션
- 추천할 때도 "이런 거 어때?" 식으로 부담 없이
- 거절해도 "그럼 이런 건?" 하면서 다른 옵션 제시

[대구에 없는 것 요청 시]
- 바다 → "바다는 없지만 수성못에서 물가 느낌 즐길 수 있어!"
- 산/등산 → "등산 코스는 없지만 달성공원에서 자연 산책 괜찮아!"
- 놀이공원 → "테마파크는 없지만 동성로 가면 활기찬 분위기 즐길 수 있어!"
- 억지로 추천하지 말고, 솔직하게 대안 제시`

// buildSystemPrompt assembles the generation prompt: persona, safety
// preamble, stage-specific guidance, and situational blocks.
func (e *Engine) buildSystemPrompt(sess *types.Session, foodQuery bool) string {
	var b strings.Builder
	b.WriteString(e.cfg.Persona)

	if e.cfg.SafetyEnabled {
		b.WriteString("\n\n")
		b.WriteString(e.policy.SafetyPreamble(sess))
	}

	b.WriteString(e.stageGuidance(sess))

	if e.cfg.SafetyEnabled && sess.Stage == types.StageArrived && sess.CurrentLocation != "" {
		if spot, ok := e.dests.Spot(sess.CurrentLocation); ok {
			fmt.Fprintf(&b, "\n\n현재 위치: %s\n- %s에서 뭐 할지 자연스럽게 제안\n- 구체적인 가게 이름 대신 \"이 근처\", \"메인 거리\", \"골목\" 같은 표현 사용\n- 1-2문장으로 간결하게 설명",
				spot.Name, spot.Name)
		}
	}

	if e.cfg.SafetyEnabled && foodQuery {
		b.WriteString("\n\n[맛집 안내]\n- 구체적인 가게 이름 대신 \"메인 거리 쪽\", \"골목 안\" 같은 위치로 안내\n- \"매운 거 좋아?\" 같은 취향 물어보기도 좋음")
	}

	return b.String()
}

// stageGuidance returns per-stage phrasing instructions. Early turns steer
// the model away from recommending; later stages pitch the committed spot.
func (e *Engine) stageGuidance(sess *types.Session) string {
	turns := sess.ConversationTurns

	if turns < e.cfg.RecommendTurnThreshold {
		return fmt.Sprintf("\n\n[초반 대화 - 현재 %d턴]\n- 자연스럽게 대화하면서 취향 파악\n- \"쇼핑 좋아해?\", \"조용한 곳 좋아해?\" 같은 질문으로 취향 알아보기\n- 1-2문장으로 짧게 대화\n- 아직 구체적인 장소 추천은 하지 말기", turns)
	}

	spot, hasSpot := e.dests.Spot(sess.RecommendedSpot)

	switch sess.Stage {
	case types.StageGreeting, types.StagePreference:
		if hasSpot {
			return fmt.Sprintf("\n\n[장소 추천하기 - 충분히 파악됨]\n- %s 추천하기\n- \"이런 거 어때?\" 식으로 부담 없이 제안\n- 장소의 매력 포인트 1-2가지 간결하게 설명\n- 예: \"%s 가볼래? 거기 분위기 좋아!\"", spot.Name, spot.Name)
		}
		return "\n\n[장소 추천하기]\n- 대화 내용 바탕으로 딱 한 곳만 추천\n- 동성로(쇼핑/맛집), 달성공원(자연/힐링), 수성못(경치/카페) 중 선택\n- 왜 어울릴지 이유와 함께 자연스럽게 제안"
	case types.StageRecommendation:
		if hasSpot {
			return fmt.Sprintf("\n\n[%s 추천 중]\n- %s의 좋은 점 자연스럽게 설명\n- \"거기 가면 이런 게 좋아\" 식으로 구체적으로\n- 1-2문장으로 간결하게 어필", spot.Name, spot.Name)
		}
	case types.StageEnroute:
		if hasSpot {
			return fmt.Sprintf("\n\n[%s 가는 중]\n- 도착 기대감 높이기\n- \"거기 가면 이것저것 해보자!\" 같은 톤\n- 자연스럽게 대화", spot.Name)
		}
	}
	return ""
}

// promptMessages returns the bounded history tail sent with each request.
func (e *Engine) promptMessages(sess *types.Session) []types.Message {
	return sess.RecentMessages(e.cfg.HistoryTail)
}
