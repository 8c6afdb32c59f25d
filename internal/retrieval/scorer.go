package retrieval

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ziadkadry99/clinrag/internal/config"
)

// ScoringWeights are the additive bonuses of the relevance heuristic.
type ScoringWeights struct {
	Phrase            float64
	Word              float64
	WordOccurrenceCap int
	Code              float64
	Criteria          float64
	Lettered          float64
	Numbered          float64

	// Vector is the share of embedding similarity in a blended score; the
	// keyword score takes the rest.
	Vector float64
}

// WeightsFromConfig copies the configured weights.
func WeightsFromConfig(c config.ScoringConfig) ScoringWeights {
	return ScoringWeights{
		Phrase:            c.Phrase,
		Word:              c.Word,
		WordOccurrenceCap: c.WordOccurrenceCap,
		Code:              c.Code,
		Criteria:          c.Criteria,
		Lettered:          c.Lettered,
		Numbered:          c.Numbered,
		Vector:            c.Vector,
	}
}

// Scorer rates how relevant a section is to a query, in [0,1].
type Scorer struct {
	w ScoringWeights
}

func NewScorer(w ScoringWeights) *Scorer {
	if w.WordOccurrenceCap <= 0 {
		w.WordOccurrenceCap = config.DefaultConfig().Scoring.WordOccurrenceCap
	}
	if w.Vector <= 0 || w.Vector > 1 {
		w.Vector = config.DefaultConfig().Scoring.Vector
	}
	return &Scorer{w: w}
}

// Score is case-insensitive. Criteria text earns bonuses on top of keyword
// overlap because it is what clinical reports quote.
func (s *Scorer) Score(section, query string) float64 {
	sectionLower := strings.ToLower(section)
	queryLower := strings.ToLower(strings.TrimSpace(query))

	var score float64
	if queryLower != "" && strings.Contains(sectionLower, queryLower) {
		score += s.w.Phrase
	}

	words := queryWords(queryLower)
	for _, word := range words {
		n := min(strings.Count(sectionLower, word), s.w.WordOccurrenceCap)
		score += s.w.Word * float64(n) / float64(len(words))
	}

	for _, code := range CodeTokens(queryLower) {
		if strings.Contains(sectionLower, code) {
			score += s.w.Code
			break
		}
	}

	if HasCriteriaCue(section) || MentionsCriterion(section) ||
		(mentionsCriterionWord(section) && (letterListRe.MatchString(section) || numberListRe.MatchString(section))) {
		score += s.w.Criteria
	}
	if HasLetteredCriterion(section) {
		score += s.w.Lettered
	}
	if HasNumberedDiagnosticItems(section) {
		score += s.w.Numbered
	}

	return clamp01(score)
}

// Blend mixes a cosine similarity in [-1,1] with a keyword score. The
// similarity is rescaled to [0,1] first, so the result stays in [0,1].
func (s *Scorer) Blend(similarity, keyword float64) float64 {
	scaled := clamp01((similarity + 1) / 2)
	return clamp01(s.w.Vector*scaled + (1-s.w.Vector)*keyword)
}

// queryWords splits on whitespace and punctuation and keeps words longer
// than three runes. Dots inside codes like f41.1 split too.
func queryWords(q string) []string {
	fields := strings.FieldsFunc(q, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) > 3 {
			out = append(out, f)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
