// Package policy enforces the safety rules of the chat character.
//
// Every rule is applied twice: once as a prompt instruction the generator is
// asked to follow (SafetyPreamble), and once as a deterministic post-filter
// over whatever the generator actually produced (EnforceOutput,
// SanitizeFirstChat, MaskStoreNames). The post-filters are the hard
// guarantee; the generator is never trusted to comply.
//
// All functions are pure over their inputs so the rules are testable without
// a session store or generator.
package policy

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/daeguwebtoon/chatcore/destinations"
	"github.com/daeguwebtoon/chatcore/types"
)

// maskPlaceholder replaces anything that looks like a real establishment
// name. Venue names must never surface, only commercial areas.
const maskPlaceholder = "[상호명 생략]"

// anchorWindow is how deep into an arrived-stage reply the current
// destination's name must appear before an anchor clause is prepended.
const anchorWindow = 60

// Engine applies output policy for a fixed destination configuration.
type Engine struct {
	cfg           *destinations.Config
	quotePatterns []*regexp.Regexp
	nameLike      *regexp.Regexp
	firstSentence *regexp.Regexp
}

// New builds a policy engine over the destination configuration.
func New(cfg *destinations.Config) *Engine {
	return &Engine{
		cfg: cfg,
		quotePatterns: []*regexp.Regexp{
			regexp.MustCompile(`"([^"]{1,40})"`),
			regexp.MustCompile(`'([^']{1,40})'`),
			regexp.MustCompile(`“([^”]{1,40})”`),
			regexp.MustCompile(`‘([^’]{1,40})’`),
		},
		// Proper-noun-like token followed by a business-type suffix.
		nameLike:      regexp.MustCompile(`[가-힣A-Za-z0-9]{2,12}(점|카페|식당|막창집|고깃집|치킨집|호프|포차|바|펍|레스토랑|스시|오마카세|브런치|분식)`),
		firstSentence: regexp.MustCompile(`[\n.!?]`),
	}
}

// SafetyPreamble returns the safety instructions injected into the
// generation prompt for the session's current state.
func (e *Engine) SafetyPreamble(sess *types.Session) string {
	lines := []string{
		"[전역 안전 규칙]",
		"- 실제 상호명(가게 이름) 언급 금지. 상권/부근으로만 안내하고, 상호명은 \"" + maskPlaceholder + "\"으로 처리",
		"- 음식/맛집 질문에는 상권/부근(거리/골목/역 주변) 기준으로 간결히 답하고 취향을 재질문",
	}
	if sess.Stage != types.StageArrived {
		allowed := strings.Join(e.cfg.SpotNames(), ", ")
		lines = append(lines, fmt.Sprintf("[첫 대화 제한] 추천 후보는 %s 중에서만 선택. 리스트 외 장소는 언급/제안 금지, 자연스럽게 위 3곳으로 유도", allowed))
	} else if spot, ok := e.cfg.Spot(sess.CurrentLocation); ok {
		lines = append(lines, fmt.Sprintf("[도착 상태] 현재 위치(%s)의 정보만 제공. 다른 지역/이동 제안 금지. 대구 전체 정보도 금지.", spot.Name))
	}
	return strings.Join(lines, "\n")
}

// EnforceOutput post-processes generated text before it reaches the user.
//
// In the arrived state the reply is anchored to the current destination and
// any drift toward another spot, another city, or a move suggestion is
// replaced with a canned redirect. In every state, apparent establishment
// names are masked.
func (e *Engine) EnforceOutput(text string, sess *types.Session) string {
	out := text
	if sess.Stage == types.StageArrived && sess.CurrentLocation != "" {
		if spot, ok := e.cfg.Spot(sess.CurrentLocation); ok {
			out = e.lockToSpot(out, sess.CurrentLocation, spot)
		}
	}
	return e.MaskStoreNames(out)
}

// lockToSpot applies the arrival lock to one reply.
func (e *Engine) lockToSpot(text, currentKey string, spot destinations.Spot) string {
	out := text
	if !strings.Contains(head(out, anchorWindow), spot.Name) {
		out = fmt.Sprintf("지금은 %s에 있어. %s", spot.Name, out)
	}

	lower := strings.ToLower(out)
	drift := containsAny(lower, e.cfg.OtherCities) || containsAny(lower, e.cfg.MoveKeywords)
	if !drift {
		for key, other := range e.cfg.Spots {
			if key != currentKey && strings.Contains(lower, strings.ToLower(other.Name)) {
				drift = true
				break
			}
		}
	}
	if !drift {
		return out
	}

	parts := []string{
		fmt.Sprintf("지금은 %s에 있어.", spot.Name),
		"다른 지역 얘기는 나중에 하고, 우선 여기부터 즐겨보자!",
	}
	if len(spot.Highlights) > 0 {
		parts = append(parts, fmt.Sprintf("예를 들면 %s부터 가보자.", spot.Highlights[0]))
	}
	if len(spot.FoodAreas) > 0 {
		parts = append(parts, fmt.Sprintf("먹거리는 %s 쪽이 좋아.", spot.FoodAreas[0]))
	}
	parts = append(parts, "궁금한 건 더 물어봐!")
	return strings.Join(parts, " ")
}

// MaskStoreNames masks quoted substrings and establishment-like tokens.
// This runs on every reply regardless of stage, independent of whatever the
// prompt instructed.
func (e *Engine) MaskStoreNames(text string) string {
	if text == "" {
		return text
	}
	out := text
	for _, re := range e.quotePatterns {
		out = re.ReplaceAllString(out, `"`+maskPlaceholder+`"`)
	}
	return e.nameLike.ReplaceAllString(out, maskPlaceholder)
}

// SanitizeFirstChat guards every pre-arrival reply: no destinations outside
// the canonical three, no other cities, greeting etiquette (name callout,
// trailing question, no destination mentions at all).
func (e *Engine) SanitizeFirstChat(text, userName string, stage types.Stage, recommendedKey string) string {
	raw := strings.TrimSpace(text)
	allowed := e.cfg.SpotNames()
	hasRecommendation := recommendedKey != ""

	recommendationFallback := e.recommendationFallback(userName, recommendedKey)
	mentionsOtherCity := containsAny(strings.ToLower(raw), e.cfg.OtherCities)

	if stage == types.StageGreeting {
		if raw == "" || mentionsOtherCity || containsAnyName(raw, allowed) {
			return e.SmallTalk(userName, true)
		}
		greeting := e.ensureNameGreeting(raw, userName)
		if !strings.Contains(greeting, "?") {
			greeting += " 어떤 여행이 끌려?"
		}
		if containsAnyName(greeting, allowed) {
			return e.SmallTalk(userName, true)
		}
		return greeting
	}

	sanitized := raw
	if sanitized == "" || mentionsOtherCity {
		if hasRecommendation {
			sanitized = recommendationFallback
		} else {
			sanitized = e.SmallTalk(userName, false)
		}
	}

	if hasRecommendation {
		if containsAnyName(sanitized, allowed) {
			return sanitized
		}
		return recommendationFallback
	}

	if stage == types.StagePreference {
		if containsAnyName(sanitized, allowed) {
			sanitized = e.SmallTalk(userName, false)
		}
		if !strings.Contains(sanitized, "?") {
			sanitized += " 어떤 여행이 끌려?"
		}
	}
	return sanitized
}

// recommendationFallback is the canned reply substituted when a
// recommendation-stage generation went off the rails.
func (e *Engine) recommendationFallback(userName, recommendedKey string) string {
	nameCue := nameCallout(userName)
	if spot, ok := e.cfg.Spot(recommendedKey); ok {
		return fmt.Sprintf("%s%s 쪽이 딱 어울릴 것 같은데, 어떤 분위기로 둘러보고 싶어?", nameCue, spot.Name)
	}
	return fmt.Sprintf("대구에서라면 %s 중에 어때? 너 취향 알려주면 셋 중 딱 맞는 곳으로 안내할게!", strings.Join(e.cfg.SpotNames(), ", "))
}

// SmallTalk is the deterministic fallback reply used when nothing better is
// available. With greet set it doubles as the opening line.
func (e *Engine) SmallTalk(userName string, greet bool) string {
	nameCue := nameCallout(userName)
	if greet {
		return e.ensureNameGreeting("나는 대구-대구야! "+nameCue+"오늘 뭐 하고 싶어?", userName)
	}
	return nameCue + "오늘 기분이 어때? 뭐 하고 싶어?"
}

// ensureNameGreeting guarantees the user's name appears exactly once in the
// opening clause of a greeting.
func (e *Engine) ensureNameGreeting(text, userName string) string {
	name := strings.TrimSpace(userName)
	if name == "" {
		return text
	}
	original := strings.TrimSpace(text)
	if original == "" {
		return fmt.Sprintf("안녕 %s!", name)
	}

	opening := e.firstSentence.Split(original, 2)[0]
	if strings.Contains(strings.ToLower(opening), strings.ToLower(name)) {
		return text
	}

	if strings.HasPrefix(original, "안녕") {
		rest := strings.TrimLeft(strings.TrimPrefix(original, "안녕"), " !~,")
		if rest == "" {
			return fmt.Sprintf("안녕 %s!", name)
		}
		return fmt.Sprintf("안녕 %s! %s", name, rest)
	}
	return strings.TrimSpace(fmt.Sprintf("안녕 %s! %s", name, original))
}

// RecommendationCallout appends a go-see nudge when the reply for a
// recommendation-stage turn never names the recommended spot. Replies that
// already mention it are left alone so the character doesn't nag.
func (e *Engine) RecommendationCallout(text string, sess *types.Session, userName string) string {
	if sess.Stage == types.StageArrived || sess.RecommendedSpot == "" {
		return text
	}
	spot, ok := e.cfg.Spot(sess.RecommendedSpot)
	if !ok {
		return text
	}
	if strings.Contains(text, spot.Name) {
		return text
	}
	nameCue := nameCallout(userName)
	phrases := []string{
		fmt.Sprintf("%s%s 한 번 가볼래?", nameCue, spot.Name),
		fmt.Sprintf("%s%s 어때?", nameCue, spot.Name),
		fmt.Sprintf("%s로 가보자!", spot.Name),
	}
	addition := phrases[rand.IntN(len(phrases))]
	if text == "" {
		return addition
	}
	return text + "\n\n" + addition
}

// FoodAreaReply answers a food question with commercial areas instead of
// venue names, and re-asks for a taste preference.
func (e *Engine) FoodAreaReply(sess *types.Session) string {
	currentKey := sess.CurrentLocation
	if currentKey == "" {
		currentKey = sess.RecommendedSpot
	}
	const want = "매운맛/가성비/분위기 중에 뭐가 땡겨?"
	if spot, ok := e.cfg.Spot(currentKey); ok {
		areas := "메인 거리 주변, 역 근처, 골목 상권"
		if len(spot.FoodAreas) > 0 {
			areas = strings.Join(spot.FoodAreas, ", ")
		}
		return fmt.Sprintf("지금은 %s 기준으로 얘기해볼게. 이 근처는 %s 쪽에 그런 집들이 많아. %s", spot.Name, areas, want)
	}
	return fmt.Sprintf("맛집은 상호명 대신 상권으로 안내할게. %s 중 어디가 땡겨? 정하면 그 근처 메인 거리 주변, 역 근처, 골목 상권을 중심으로 알려줄게!", strings.Join(e.cfg.SpotNames(), ", "))
}

// MaskEarlySpots strips destination names from early small talk so the
// character never name-drops before the recommendation gate opens.
func (e *Engine) MaskEarlySpots(text string) string {
	out := text
	for _, name := range e.cfg.SpotNames() {
		out = strings.ReplaceAll(out, name, "그곳")
	}
	return out
}

func nameCallout(userName string) string {
	name := strings.TrimSpace(userName)
	if name == "" {
		return ""
	}
	return name + ", "
}

// head returns the first n runes of s.
func head(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func containsAny(lower string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func containsAnyName(text string, names []string) bool {
	for _, n := range names {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
