// Package token implements lyric word normalization and the consonant-skeleton
// similarity used by the word aligner.
//
// Matching proceeds in two stages:
//
//  1. Normalization: tokens are case-folded and stripped of punctuation.
//     Normalized equality is the only correctness test — two words count as
//     the same word if and only if their normalized forms are identical.
//
//  2. Skeleton similarity: a coarse phonetic skeleton (digraphs reduced,
//     vowels deleted, repeated letters collapsed) is compared via normalized
//     Levenshtein distance. The skeleton only biases alignment so that
//     near-miss transcriptions ("lite" for "light") stay attached to the
//     right reference slot; it never upgrades a mismatch to correct.
//
// All functions are pure and safe for concurrent use.
package token

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// skeletonRules is the ordered digraph/letter reduction table applied after
// normalization. Order matters: "ght" must run before single-letter rules so
// "light" and "lite" converge on the same skeleton.
var skeletonRules = [...]struct{ from, to string }{
	{"ph", "f"},
	{"ght", "t"},
	{"ck", "k"},
	{"cq", "k"},
	{"qu", "k"},
	{"x", "ks"},
	{"kn", "n"},
	{"wr", "r"},
	{"wh", "w"},
}

// Normalize lower-cases s and strips everything that is not a letter or a
// digit. It is total: empty input yields empty output.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Skeleton returns the phonetic consonant skeleton of s: [Normalize], the
// ordered reduction table, vowel deletion (including y), and collapsing of
// immediately-repeated characters.
//
// The skeleton is a similarity aid only — see the package documentation.
func Skeleton(s string) string {
	w := Normalize(s)
	for _, rule := range skeletonRules {
		w = strings.ReplaceAll(w, rule.from, rule.to)
	}

	var b strings.Builder
	b.Grow(len(w))
	var prev rune
	for _, r := range w {
		switch r {
		case 'a', 'e', 'i', 'o', 'u', 'y':
			continue
		}
		if r == prev {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// Similarity returns the normalized edit-distance similarity of the two
// words' skeletons: 1 - levenshtein/maxLen, clamped to [0, 1]. It returns 0
// when either skeleton is empty (all-vowel or punctuation-only input carries
// no phonetic signal).
func Similarity(a, b string) float64 {
	sa, sb := Skeleton(a), Skeleton(b)
	if sa == "" || sb == "" {
		return 0
	}
	maxLen := len([]rune(sa))
	if n := len([]rune(sb)); n > maxLen {
		maxLen = n
	}
	sim := 1 - float64(matchr.Levenshtein(sa, sb))/float64(maxLen)
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
