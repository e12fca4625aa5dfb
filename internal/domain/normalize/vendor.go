package normalize

import (
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// similarityOptions weighs substitutions like insertions so the ratio stays in [0,1].
var similarityOptions = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

// VendorSimilarThreshold is the minimum similarity for two vendor names to
// count as compatible when their tokens do not overlap.
const VendorSimilarThreshold = 0.8

// VendorTokens splits a vendor name into comparable tokens, dropping legal
// forms and single characters.
func VendorTokens(s string) []string {
	fields := strings.Fields(Text(s))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 || legalForms[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// VendorKey is the canonical form of a vendor name.
func VendorKey(s string) string {
	return strings.Join(VendorTokens(s), " ")
}

// VendorOverlap counts the distinct tokens a and b share.
func VendorOverlap(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	n := 0
	for _, t := range b {
		if set[t] {
			n++
			delete(set, t)
		}
	}
	return n
}

// VendorMatch is the strict vendor check used for hard matches: at least two
// shared tokens, or a substring match when either side has at most two tokens.
func VendorMatch(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	if VendorOverlap(a, b) >= 2 {
		return true
	}
	if len(a) <= 2 || len(b) <= 2 {
		ja, jb := strings.Join(a, " "), strings.Join(b, " ")
		return strings.Contains(ja, jb) || strings.Contains(jb, ja)
	}
	return false
}

// VendorSimilarity returns a Levenshtein ratio in [0,1] between two token lists.
func VendorSimilarity(a, b []string) float64 {
	ja, jb := []rune(strings.Join(a, " ")), []rune(strings.Join(b, " "))
	longest := len(ja)
	if len(jb) > longest {
		longest = len(jb)
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.DistanceForStrings(ja, jb, similarityOptions)
	return 1 - float64(dist)/float64(longest)
}

// VendorStrength scores how well two vendor names agree: 1 for a strict
// match, the similarity ratio otherwise. Unknown vendors score 0.5.
func VendorStrength(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.5
	}
	if VendorMatch(a, b) {
		return 1
	}
	sim := VendorSimilarity(a, b)
	if VendorOverlap(a, b) > 0 && sim < 0.7 {
		sim = 0.7
	}
	return sim
}

// VendorCompatible is the soft vendor check used when building candidates.
// It only rejects when both parties are known and clearly different.
func VendorCompatible(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	if VendorOverlap(a, b) > 0 || VendorMatch(a, b) {
		return true
	}
	return VendorSimilarity(a, b) >= VendorSimilarThreshold
}
