package safety

import "regexp"

// illegalThreshold is the severity at which the illegal category
// triggers a refusal. Any phrase hit scores well above it.
const illegalThreshold = 1

// MaskThreshold is the moderation level at and above which profanity
// masking applies. Level 0 always passes content unmodified.
const MaskThreshold = 5

// refusal is the single fixed message emitted when a generation is
// refused.
const refusal = "I can't help with that. If you have another question, I'm happy to help."

// IsIllegal reports whether the flags cross the refusal threshold.
// This check outranks every other category.
func IsIllegal(flags Flags) bool {
	return flags[CategoryIllegal] >= illegalThreshold
}

// RefusalMessage returns the canned refusal text.
func RefusalMessage() string {
	return refusal
}

var maskPatterns = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)fuck`), "f**k"},
	{regexp.MustCompile(`(?i)shit`), "s**t"},
	{regexp.MustCompile(`(?i)bitch`), "b***h"},
}

// ApplyMasking replaces listed profane terms with partially-asterisked
// forms when the moderation level is at or above MaskThreshold.
// Surrounding text is preserved, matching is case-insensitive, and
// masking already-masked text changes nothing.
func ApplyMasking(text string, level int) string {
	if level < MaskThreshold {
		return text
	}
	for _, p := range maskPatterns {
		text = p.re.ReplaceAllString(text, p.replacement)
	}
	return text
}
