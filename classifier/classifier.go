// Package classifier provides rule-based classification of user utterances.
//
// This package implements the front-line checks that run before any text
// reaches the generator:
//   - Input validity (garbage, jamo-only, repeats, digit/symbol spam)
//   - Profanity and platform-critical term detection
//   - Off-topic and jailbreak detection
//   - Food-query detection and preference keyword scoring
//
// All predicates are pure functions over a single input string. Keyword
// lists come from the destinations configuration; patterns are compiled
// once at construction.
package classifier

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/daeguwebtoon/chatcore/destinations"
)

// Input rejection reasons returned by ValidateInput.
const (
	ReasonEmpty                = "empty"
	ReasonJamoOnly             = "jamo_only"
	ReasonIncompleteCharacters = "incomplete_characters"
	ReasonRepeat               = "repeat"
	ReasonNumbersOnly          = "numbers_only"
	ReasonSymbolsOnly          = "symbols_only"
)

// InputVerdict holds the result of an input validity check.
type InputVerdict struct {
	Valid  bool
	Reason string
}

// Classifier evaluates user utterances against the configured keyword lists.
type Classifier struct {
	cfg *destinations.Config

	jamoOnly    *regexp.Regexp
	numbersOnly *regexp.Regexp
	symbolsOnly *regexp.Regexp

	// criticalPatterns tolerate whitespace inserted between syllables,
	// the one evasion technique seen in the wild.
	criticalPatterns []*regexp.Regexp

	// obfuscatedProfanity catches censored and spaced-out variants
	// (f*ck, s h i t) that plain substring matching misses.
	obfuscatedProfanity []*regexp.Regexp

	altKeywords []string // alternative-topic keywords, deterministic order
}

// New builds a classifier from a destination configuration.
func New(cfg *destinations.Config) *Classifier {
	c := &Classifier{
		cfg:         cfg,
		jamoOnly:    regexp.MustCompile(`^[ㄱ-ㅎㅏ-ㅣ\s]+$`),
		numbersOnly: regexp.MustCompile(`^\d{5,}$`),
		symbolsOnly: regexp.MustCompile(`^[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?~` + "`" + `]+$`),
		obfuscatedProfanity: []*regexp.Regexp{
			regexp.MustCompile(`(?i)[fs]\*+k`),
			regexp.MustCompile(`(?i)sh\*+t`),
			regexp.MustCompile(`(?i)b\*+ch`),
			regexp.MustCompile(`(?i)f\W*u\W*c\W*k`),
			regexp.MustCompile(`(?i)s\W*h\W*i\W*t`),
			regexp.MustCompile(`(?i)b\W*i\W*t\W*c\W*h`),
		},
	}

	c.criticalPatterns = make([]*regexp.Regexp, 0, len(cfg.CriticalTerms))
	for _, term := range cfg.CriticalTerms {
		c.criticalPatterns = append(c.criticalPatterns, spacedPattern(term))
	}

	c.altKeywords = make([]string, 0, len(cfg.Alternatives))
	for keyword := range cfg.Alternatives {
		c.altKeywords = append(c.altKeywords, keyword)
	}
	// Longest keyword first so "놀이공원" wins over "물" when both occur,
	// and map iteration order never changes the result.
	sort.Slice(c.altKeywords, func(i, j int) bool {
		if len(c.altKeywords[i]) != len(c.altKeywords[j]) {
			return len(c.altKeywords[i]) > len(c.altKeywords[j])
		}
		return c.altKeywords[i] < c.altKeywords[j]
	})

	return c
}

// spacedPattern compiles a case-insensitive pattern matching term with
// arbitrary whitespace between its runes.
func spacedPattern(term string) *regexp.Regexp {
	runes := []rune(term)
	parts := make([]string, len(runes))
	for i, r := range runes {
		parts[i] = regexp.QuoteMeta(string(r))
	}
	return regexp.MustCompile(`(?i)` + strings.Join(parts, `\s*`))
}

// ValidateInput rejects messages that would only confuse the generator:
// empty or near-empty text, jamo-only fragments, heavy character repetition
// (laughter excepted), long digit runs, and symbol-only strings.
func (c *Classifier) ValidateInput(text string) InputVerdict {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)

	if len(runes) < 2 {
		return InputVerdict{Reason: ReasonEmpty}
	}

	if len(runes) > 3 && c.jamoOnly.MatchString(trimmed) {
		return InputVerdict{Reason: ReasonJamoOnly}
	}

	// Complete-syllable ratio: if less than 10% of the non-space characters
	// are complete Hangul syllables while jamo dominate, the input is noise.
	var complete, jamo, total int
	for _, r := range runes {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		switch {
		case r >= '가' && r <= '힣':
			complete++
		case (r >= 'ㄱ' && r <= 'ㅎ') || (r >= 'ㅏ' && r <= 'ㅣ'):
			jamo++
		}
	}
	if total > 3 && jamo > 0 && float64(complete)/float64(total) < 0.1 {
		return InputVerdict{Reason: ReasonIncompleteCharacters}
	}

	if hasLongRepeat(runes, 5) && !strings.ContainsAny(trimmed, "ㅋㅎ") {
		return InputVerdict{Reason: ReasonRepeat}
	}

	if c.numbersOnly.MatchString(trimmed) {
		return InputVerdict{Reason: ReasonNumbersOnly}
	}

	if c.symbolsOnly.MatchString(trimmed) {
		return InputVerdict{Reason: ReasonSymbolsOnly}
	}

	return InputVerdict{Valid: true}
}

// hasLongRepeat reports whether runes contains n or more identical
// consecutive characters.
func hasLongRepeat(runes []rune, n int) bool {
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

// ContainsProfanity reports whether text contains a profane or sexual term,
// including censored and spaced-out obfuscation variants.
func (c *Classifier) ContainsProfanity(text string) bool {
	lower := strings.ToLower(text)
	compact := compactText(lower)
	for _, term := range c.cfg.Profanity {
		t := strings.ToLower(term)
		if strings.Contains(lower, t) || strings.Contains(compact, t) {
			return true
		}
	}
	for _, re := range c.obfuscatedProfanity {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// ContainsCriticalTerm reports whether text contains a platform-critical
// term. Internal whitespace insertion does not evade the match.
func (c *Classifier) ContainsCriticalTerm(text string) bool {
	lower := strings.ToLower(text)
	compact := strings.Join(strings.Fields(lower), "")
	for _, term := range c.cfg.CriticalTerms {
		t := strings.ToLower(term)
		if strings.Contains(lower, t) || strings.Contains(compact, t) {
			return true
		}
	}
	for _, re := range c.criticalPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// DetectOffTopic reports whether text strays into provocative, adult,
// violent, or political territory. Travel-domain keywords and questions are
// never off-topic; the default is permissive to avoid breaking flow.
func (c *Classifier) DetectOffTopic(text string) bool {
	lower := strings.ToLower(text)
	if containsAny(lower, c.cfg.TravelKeywords) || strings.Contains(text, "?") {
		return false
	}
	return containsAny(lower, c.cfg.OffTopicKeywords)
}

// DetectJailbreak reports whether text looks like a prompt-injection
// attempt against the character persona.
func (c *Classifier) DetectJailbreak(text string) bool {
	return containsAny(strings.ToLower(text), c.cfg.JailbreakPhrases)
}

// IsFoodQuery reports whether text asks about food or dining.
func (c *Classifier) IsFoodQuery(text string) bool {
	return containsAny(strings.ToLower(text), c.cfg.FoodKeywords)
}

// ScorePreference infers a destination from a user message. The
// alternative-topic map (바다→수성못 etc.) overrides keyword scoring;
// otherwise the destination with the strictly highest nonzero keyword hit
// count wins. Ties are not broken; the caller falls back.
func (c *Classifier) ScorePreference(text string) string {
	lower := strings.ToLower(text)

	for _, keyword := range c.altKeywords {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			return c.cfg.Alternatives[keyword]
		}
	}

	best, bestScore, tied := "", 0, false
	for _, key := range c.cfg.Rotation {
		spot, ok := c.cfg.Spot(key)
		if !ok {
			continue
		}
		score := 0
		for _, keyword := range spot.Keywords {
			if strings.Contains(lower, strings.ToLower(keyword)) {
				score++
			}
		}
		switch {
		case score > bestScore:
			best, bestScore, tied = key, score, false
		case score == bestScore && score > 0:
			tied = true
		}
	}
	if bestScore == 0 || tied {
		return ""
	}
	return best
}

var (
	positiveIntent = regexp.MustCompile(`(?i)(가자|가볼까|가볼게|출발|좋아|좋지|콜|고고|ㄱㄱ|레츠고|lets go|let's go|응|그래|ㅇㅋ|ok|오케이|함께가|가줄래|go)`)
	changeIntent   = regexp.MustCompile(`(?i)(다른\s?(곳|데)|다른거|말고|바꿔|싫어|별로|change|another)`)
	rejectIntent   = regexp.MustCompile(`(?i)(아니|싫어|안\s?갈|관심\s?없|다른\s?얘기|아무거나|모르겠)`)
)

// DetectPositiveIntent reports whether text affirms going to the
// recommended destination.
func (c *Classifier) DetectPositiveIntent(text string) bool {
	return positiveIntent.MatchString(text)
}

// DetectChangeIntent reports whether text asks for a different destination.
func (c *Classifier) DetectChangeIntent(text string) bool {
	return changeIntent.MatchString(text)
}

// DetectRejectIntent reports whether text rejects the current
// recommendation.
func (c *Classifier) DetectRejectIntent(text string) bool {
	return rejectIntent.MatchString(text)
}

// compactText lowers text and strips everything except Hangul syllables,
// latin letters, and digits, defeating spacing and punctuation insertion.
func compactText(lower string) string {
	var b strings.Builder
	for _, r := range lower {
		if (r >= '가' && r <= '힣') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func containsAny(lower string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
