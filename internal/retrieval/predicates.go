package retrieval

import (
	"regexp"
	"strings"
)

// Predicate classifies a paragraph or section of text.
type Predicate func(string) bool

var (
	criteriaCueRe = regexp.MustCompile(`(?i)criterios diagnósticos|diagnostic criteria`)
	// Only at paragraph start, so initials like "Dr. J. Pérez" do not count.
	letteredRe    = regexp.MustCompile(`^\s*[A-Z]\.\s`)
	numberedRe    = regexp.MustCompile(`^\s*\d+\.\s`)
	parenItemRe   = regexp.MustCompile(`(?i)^\s*[a-z]\)`)
	codeRe        = regexp.MustCompile(`(?i)[A-Z]?\d+(\.\d+)?`)

	// "Criterio A:" / "criterion B." headers.
	letteredCriterionRe = regexp.MustCompile(`(?i)criteri(o|on) [a-z][:.]`)
	letterListRe        = regexp.MustCompile(`(?m)^\s*[A-Z]\.\s`)
	numberListRe        = regexp.MustCompile(`(?m)^\s*\d+\.\s`)
)

// HasCriteriaCue reports whether text names a diagnostic-criteria block.
var HasCriteriaCue Predicate = func(s string) bool {
	return criteriaCueRe.MatchString(s)
}

// MentionsCriterion reports a "criterio " or "criterion " reference.
var MentionsCriterion Predicate = func(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "criterio ") || strings.Contains(lower, "criterion ")
}

// mentionsCriterionWord also matches the plural and trailing punctuation.
func mentionsCriterionWord(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "criterio") || strings.Contains(lower, "criterion")
}

// StartsLetteredItem matches paragraphs like "A. Ansiedad y preocupación".
var StartsLetteredItem Predicate = func(s string) bool {
	return letteredRe.MatchString(s)
}

// StartsNumberedItem matches paragraphs like "1. Inquietud".
var StartsNumberedItem Predicate = func(s string) bool {
	return numberedRe.MatchString(s)
}

// StartsParenItem matches paragraphs like "a) con ataques de pánico".
var StartsParenItem Predicate = func(s string) bool {
	return parenItemRe.MatchString(s)
}

// HasLetteredCriterion matches an explicit lettered criterion marker, or a
// lettered list alongside the word criterion.
var HasLetteredCriterion Predicate = func(s string) bool {
	if letteredCriterionRe.MatchString(s) {
		return true
	}
	return letterListRe.MatchString(s) && mentionsCriterionWord(s)
}

// HasNumberedDiagnosticItems matches numbered sub-items next to a criterion
// or diagnosis mention.
var HasNumberedDiagnosticItems Predicate = func(s string) bool {
	if !numberListRe.MatchString(s) {
		return false
	}
	lower := strings.ToLower(s)
	return mentionsCriterionWord(lower) ||
		strings.Contains(lower, "diagnóstico") ||
		strings.Contains(lower, "diagnosis")
}

// CodeTokens returns the diagnostic-code-like tokens of s, lowercased.
func CodeTokens(s string) []string {
	matches := codeRe.FindAllString(s, -1)
	for i := range matches {
		matches[i] = strings.ToLower(matches[i])
	}
	return matches
}
