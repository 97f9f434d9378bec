package safety

import (
	"regexp"
	"unicode/utf8"
)

// DefaultMaxChunkLen keeps headroom under the platform's message-size
// ceiling.
const DefaultMaxChunkLen = 1900

// truncationMarker is appended to every chunk that was cut short of a
// natural boundary.
const truncationMarker = "…"

// segmentBoundary marks the preferred split points: paragraph breaks
// first, then sentence-ending punctuation. Delimiters are retained as
// their own segments so reassembly loses nothing.
var segmentBoundary = regexp.MustCompile(`\n\n|\.\s`)

// Chunk splits text into pieces of at most max runes. Text that fits
// is returned as a single identical chunk. Longer text accumulates
// boundary-split segments into a buffer flushed with a truncation
// marker; any single segment beyond the limit is hard-split at fixed
// offsets. The output is deterministic for a given input.
func Chunk(text string, max int) []string {
	if max <= 1 {
		max = DefaultMaxChunkLen
	}
	if utf8.RuneCountInString(text) <= max {
		return []string{text}
	}

	// Keep one rune of headroom so a flushed chunk plus its marker
	// still fits within max.
	budget := max - 1

	var chunks []string
	var buf []rune
	for _, part := range splitSegments(text) {
		r := []rune(part)
		if len(buf)+len(r) > budget {
			if len(buf) > 0 {
				chunks = append(chunks, string(buf)+truncationMarker)
				buf = buf[:0]
			}
			if len(r) > budget {
				for i := 0; i < len(r); i += budget {
					end := i + budget
					if end >= len(r) {
						chunks = append(chunks, string(r[i:]))
					} else {
						chunks = append(chunks, string(r[i:end])+truncationMarker)
					}
				}
			} else {
				buf = append(buf, r...)
			}
		} else {
			buf = append(buf, r...)
		}
	}
	if len(buf) > 0 {
		chunks = append(chunks, string(buf))
	}
	return chunks
}

// splitSegments cuts text at segmentBoundary matches, emitting the
// delimiters as standalone segments.
func splitSegments(text string) []string {
	matches := segmentBoundary.FindAllStringIndex(text, -1)
	if matches == nil {
		return []string{text}
	}

	var parts []string
	prev := 0
	for _, m := range matches {
		if m[0] > prev {
			parts = append(parts, text[prev:m[0]])
		}
		parts = append(parts, text[m[0]:m[1]])
		prev = m[1]
	}
	if prev < len(text) {
		parts = append(parts, text[prev:])
	}
	return parts
}
