// Package text provides utilities for text processing and analysis.
// It covers rune counting, markup stripping, tokenization and the title
// similarity measures used when grouping articles into stories.
package text

// CountRunes counts the number of Unicode characters (runes) in the given text.
// Multi-byte characters (Japanese, emoji, accented Latin) count as one each.
//
// Examples:
//
//	CountRunes("hello")     // returns 5
//	CountRunes("hello世界") // returns 7
//	CountRunes("")          // returns 0
func CountRunes(text string) int {
	return len([]rune(text))
}

// Truncate cuts text to at most maxRunes runes without splitting a character.
// A non-positive maxRunes returns the text unchanged.
func Truncate(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return text
	}
	count := 0
	for i := range text {
		if count == maxRunes {
			return text[:i]
		}
		count++
	}
	return text
}
