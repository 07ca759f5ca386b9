package text

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// minTokenRunes is the shortest token considered significant.
const minTokenRunes = 3

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "that": {}, "this": {},
	"are": {}, "was": {}, "were": {}, "has": {}, "have": {}, "had": {}, "its": {},
	"into": {}, "over": {}, "after": {}, "before": {}, "about": {}, "says": {},
	"said": {}, "will": {}, "can": {}, "not": {}, "but": {}, "out": {}, "more": {},
	"than": {}, "who": {}, "what": {}, "when": {}, "where": {}, "why": {}, "how": {},
	"all": {}, "been": {}, "also": {}, "amid": {}, "his": {}, "her": {}, "their": {},
	"they": {}, "them": {}, "you": {}, "our": {}, "off": {}, "per": {}, "via": {},
	"now": {}, "just": {}, "some": {},
}

// IsStopword reports whether the lowercase token carries no topical meaning.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// Tokenize splits s into letter/digit runs, preserving case.
func Tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// SignificantTokens returns the distinct lowercase tokens of s that are at least
// three runes long and not stopwords, in first-seen order.
func SignificantTokens(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range Tokenize(s) {
		lower := strings.ToLower(tok)
		if !significant(lower) {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, lower)
	}
	return out
}

// CapitalizedTokens returns the distinct significant tokens of s that start with an
// upper-case letter, in their original spelling and first-seen order.
// Duplicates are detected case-insensitively.
func CapitalizedTokens(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range Tokenize(s) {
		first, _ := utf8.DecodeRuneInString(tok)
		if !unicode.IsUpper(first) {
			continue
		}
		lower := strings.ToLower(tok)
		if !significant(lower) {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// ExtractEntities returns up to limit capitalised tokens found in the given texts.
func ExtractEntities(limit int, texts ...string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, limit)
	for _, t := range texts {
		for _, tok := range CapitalizedTokens(t) {
			if len(out) >= limit {
				return out
			}
			lower := strings.ToLower(tok)
			if _, dup := seen[lower]; dup {
				continue
			}
			seen[lower] = struct{}{}
			out = append(out, tok)
		}
	}
	return out
}

func significant(lower string) bool {
	return utf8.RuneCountInString(lower) >= minTokenRunes && !IsStopword(lower)
}
