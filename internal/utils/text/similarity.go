package text

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// fingerprintLength is the number of hex characters kept from the digest.
const fingerprintLength = 16

// Dice returns the Sørensen–Dice coefficient of two token sets: 2|A∩B| / (|A|+|B|).
func Dice(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := intersectionSize(a, b)
	return 2 * float64(inter) / float64(len(a)+len(b))
}

// Overlap returns the overlap coefficient of two token sets: |A∩B| / min(|A|,|B|).
func Overlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := intersectionSize(a, b)
	return float64(inter) / float64(min(len(a), len(b)))
}

// TitleSimilarity scores two titles in [0,1] as the mean of the Dice and overlap
// coefficients over their significant tokens.
//
// Example:
//
//	TitleSimilarity("Earthquake Strikes Northern Japan", "Japan Earthquake Update") // ≈ 0.62
func TitleSimilarity(a, b string) float64 {
	ta, tb := SignificantTokens(a), SignificantTokens(b)
	return (Dice(ta, tb) + Overlap(ta, tb)) / 2
}

// SharedCapitalized counts the capitalised tokens of title that also appear
// (case-insensitively) as capitalised tokens in any of others.
func SharedCapitalized(title string, others ...string) int {
	pool := make(map[string]struct{})
	for _, o := range others {
		for _, tok := range CapitalizedTokens(o) {
			pool[strings.ToLower(tok)] = struct{}{}
		}
	}
	n := 0
	for _, tok := range CapitalizedTokens(title) {
		if _, ok := pool[strings.ToLower(tok)]; ok {
			n++
		}
	}
	return n
}

// Fingerprint derives an event fingerprint from the sorted significant title tokens
// and the sorted lowercase entities. Titles that differ only in word order or
// stopwords produce the same fingerprint.
func Fingerprint(title string, entities []string) string {
	tokens := SignificantTokens(title)
	sort.Strings(tokens)

	ents := make([]string, 0, len(entities))
	seen := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		lower := strings.ToLower(e)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		ents = append(ents, lower)
	}
	sort.Strings(ents)

	sum := sha256.Sum256([]byte(strings.Join(tokens, " ") + "|" + strings.Join(ents, " ")))
	return hex.EncodeToString(sum[:])[:fingerprintLength]
}

func intersectionSize(a, b []string) int {
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	n := 0
	counted := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, ok := set[t]; !ok {
			continue
		}
		if _, dup := counted[t]; dup {
			continue
		}
		counted[t] = struct{}{}
		n++
	}
	return n
}
