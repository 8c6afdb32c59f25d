package retrieval

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ziadkadry99/clinrag/internal/config"
)

// SplitterOptions holds the section thresholds, in characters, and the
// text classifiers. Nil predicates use the package defaults.
type SplitterOptions struct {
	SectionSize          int
	CriteriaMaxSize      int
	CriteriaEndMinSize   int
	CriteriaBlockMinSize int
	ShortParagraph       int

	CriteriaCue Predicate
	Mention     Predicate
	Lettered    Predicate
	Numbered    Predicate
	ParenItem   Predicate
}

// SplitterOptionsFromConfig copies the configured thresholds.
func SplitterOptionsFromConfig(c config.SplitterConfig) SplitterOptions {
	return SplitterOptions{
		SectionSize:          c.SectionSize,
		CriteriaMaxSize:      c.CriteriaMaxSize,
		CriteriaEndMinSize:   c.CriteriaEndMinSize,
		CriteriaBlockMinSize: c.CriteriaBlockMinSize,
		ShortParagraph:       c.ShortParagraph,
	}
}

// Splitter cuts a document into sections that keep diagnostic-criteria runs
// together.
type Splitter struct {
	opts SplitterOptions
}

// NewSplitter fills unset thresholds and predicates with defaults.
func NewSplitter(opts SplitterOptions) *Splitter {
	def := config.DefaultConfig().Splitter
	if opts.SectionSize <= 0 {
		opts.SectionSize = def.SectionSize
	}
	if opts.CriteriaMaxSize <= 0 {
		opts.CriteriaMaxSize = def.CriteriaMaxSize
	}
	if opts.CriteriaEndMinSize <= 0 {
		opts.CriteriaEndMinSize = def.CriteriaEndMinSize
	}
	if opts.CriteriaBlockMinSize <= 0 {
		opts.CriteriaBlockMinSize = def.CriteriaBlockMinSize
	}
	if opts.ShortParagraph <= 0 {
		opts.ShortParagraph = def.ShortParagraph
	}
	if opts.CriteriaCue == nil {
		opts.CriteriaCue = HasCriteriaCue
	}
	if opts.Mention == nil {
		opts.Mention = MentionsCriterion
	}
	if opts.Lettered == nil {
		opts.Lettered = StartsLetteredItem
	}
	if opts.Numbered == nil {
		opts.Numbered = StartsNumberedItem
	}
	if opts.ParenItem == nil {
		opts.ParenItem = StartsParenItem
	}
	return &Splitter{opts: opts}
}

// Split returns the document's sections in order. A section holding a
// criteria header is followed by a copy of just the criteria block; the
// duplicate is intentional so the block can rank on its own.
func (s *Splitter) Split(text string) []string {
	primary := s.sections(text)
	out := make([]string, 0, len(primary))
	for _, section := range primary {
		out = append(out, section)
		if block := s.criteriaBlock(section); block != "" {
			out = append(out, block)
		}
	}
	return out
}

// sections is the primary pass, without criteria duplicates.
func (s *Splitter) sections(text string) []string {
	var (
		sections   []string
		buf        strings.Builder
		inCriteria bool
	)

	flush := func() {
		if trimmed := strings.TrimSpace(buf.String()); trimmed != "" {
			sections = append(sections, trimmed)
		}
		buf.Reset()
		inCriteria = false
	}

	for _, para := range strings.Split(text, "\n\n") {
		criteriaLike := s.criteriaLike(para, buf.String())
		if criteriaLike {
			inCriteria = true
		}

		buf.WriteString(para)
		buf.WriteString("\n\n")
		size := utf8.RuneCountInString(buf.String())

		runEnded := inCriteria &&
			!criteriaLike &&
			!s.opts.Numbered(para) &&
			!s.opts.ParenItem(para) &&
			size > s.opts.CriteriaEndMinSize

		if (size >= s.opts.SectionSize && !inCriteria) ||
			(size >= s.opts.CriteriaMaxSize && inCriteria) ||
			runEnded {
			flush()
		}
	}
	flush()
	return sections
}

func (s *Splitter) criteriaLike(para, buffer string) bool {
	if s.opts.CriteriaCue(para) || s.opts.Mention(para) {
		return true
	}
	short := utf8.RuneCountInString(para) < s.opts.ShortParagraph
	if short && s.opts.Lettered(para) {
		return true
	}
	return short && s.opts.Numbered(para) && mentionsCriterionWord(buffer)
}

// blockEndRe marks the first blank-line boundary followed by a word character.
var blockEndRe = regexp.MustCompile(`\n\n\w`)

func (s *Splitter) criteriaBlock(section string) string {
	loc := criteriaCueRe.FindStringIndex(section)
	if loc == nil || !s.opts.CriteriaCue(section) {
		return ""
	}
	rest := section[loc[0]:]
	if end := blockEndRe.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}
	block := strings.TrimSpace(rest)
	if utf8.RuneCountInString(block) <= s.opts.CriteriaBlockMinSize {
		return ""
	}
	return block
}
