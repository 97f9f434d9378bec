// Package safety filters a live token stream: incremental keyword
// classification, per-level profanity masking, a hard refusal
// circuit-breaker, and size-bounded chunking for delivery.
package safety

import "strings"

// Category names a content classification axis.
type Category string

const (
	CategoryIllegal    Category = "illegal"
	CategoryHate       Category = "hate"
	CategoryHarassment Category = "harassment"
	CategorySexual     Category = "sexual"
	CategoryViolence   Category = "violence"
	CategorySelfHarm   Category = "self_harm"
	CategoryProfanity  Category = "profanity"
)

// Flags holds a 0-10 severity per category. Scores come from phrase
// membership, not model inference; classification stays cheap and
// deterministic so it can run on every fragment.
type Flags map[Category]int

var (
	illegalPhrases = []string{
		"child sexual", "csam", "bomb recipe", "make a bomb", "sell drugs", "hire a hitman",
	}
	hatePhrases       = []string{"kill all", "gas the", "nazi", "kkk"}
	harassmentPhrases = []string{"idiot", "moron", "stupid"}
	sexualPhrases     = []string{"sex", "porn", "nsfw"}
	violencePhrases   = []string{"kill", "murder", "stab"}
	selfHarmPhrases   = []string{"suicide", "kill myself"}
	profanityPhrases  = []string{"fuck", "shit", "bitch"}
)

// Classify scores the whole text against every category's phrase list.
// Callers pass accumulated text, not individual fragments, because
// disallowed content can span fragment boundaries.
func Classify(text string) Flags {
	lower := strings.ToLower(text)
	return Flags{
		CategoryIllegal:    phraseScore(lower, illegalPhrases, 10),
		CategoryHate:       phraseScore(lower, hatePhrases, 7),
		CategoryHarassment: phraseScore(lower, harassmentPhrases, 6),
		CategorySexual:     phraseScore(lower, sexualPhrases, 6),
		CategoryViolence:   phraseScore(lower, violencePhrases, 6),
		CategorySelfHarm:   phraseScore(lower, selfHarmPhrases, 8),
		CategoryProfanity:  phraseScore(lower, profanityPhrases, 3),
	}
}

func phraseScore(lower string, phrases []string, base int) int {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return base
		}
	}
	return 0
}
