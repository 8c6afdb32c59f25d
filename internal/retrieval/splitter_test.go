package retrieval

import (
	"strings"
	"testing"
)

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func TestSplitEmptyInput(t *testing.T) {
	if got := NewSplitter(SplitterOptions{}).Split(""); len(got) != 0 {
		t.Errorf("expected no sections, got %q", got)
	}
	if got := NewSplitter(SplitterOptions{}).Split("\n\n  \n\n"); len(got) != 0 {
		t.Errorf("expected no sections for blank input, got %q", got)
	}
}

func TestSplitWithoutBlankLinesIsOneSection(t *testing.T) {
	text := strings.Repeat("una línea larga de texto clínico\n", 60)
	got := NewSplitter(SplitterOptions{}).Split(text)
	if len(got) != 1 {
		t.Fatalf("expected 1 section, got %d", len(got))
	}
}

func TestSplitReconstructsDocument(t *testing.T) {
	docs := []string{
		gadDocument,
		strings.Repeat("Párrafo narrativo corto.\n\n", 80),
		"A. uno\n\n1. dos\n\nCriterio C: tres\n\n\n\nfinal " + strings.Repeat("x", 700),
	}
	s := NewSplitter(SplitterOptions{})
	for i, doc := range docs {
		sections := s.sections(doc)
		for j, sec := range sections {
			if strings.TrimSpace(sec) == "" {
				t.Errorf("doc %d: section %d is empty", i, j)
			}
		}
		if normalizeSpace(strings.Join(sections, "\n\n")) != normalizeSpace(doc) {
			t.Errorf("doc %d: sections do not reconstruct the document", i)
		}

		// Split only adds criteria duplicates on top of the primary pass.
		full := s.Split(doc)
		k := 0
		for _, sec := range full {
			if k < len(sections) && sec == sections[k] {
				k++
			}
		}
		if k != len(sections) {
			t.Errorf("doc %d: Split lost primary sections", i)
		}
	}
}

func TestSplitSizeFlush(t *testing.T) {
	para := strings.Repeat("a", 300)
	text := strings.Join([]string{para, para, para, para}, "\n\n")
	got := NewSplitter(SplitterOptions{}).Split(text)
	// Two 300-char paragraphs cross the 500 threshold together.
	if len(got) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(got))
	}
}

func TestSplitKeepsCriteriaRunTogether(t *testing.T) {
	paras := []string{
		"Criterio A: " + strings.Repeat("síntoma ", 40),
		"1. Inquietud o sensación de estar atrapado.",
		"2. Facilidad para fatigarse.",
		"B. " + strings.Repeat("preocupación ", 10),
		"C. " + strings.Repeat("malestar ", 10),
	}
	text := strings.Join(paras, "\n\n")
	got := NewSplitter(SplitterOptions{}).Split(text)
	if len(got) != 1 {
		t.Fatalf("expected the criteria run in one section, got %d: %q", len(got), got)
	}
}

func TestSplitCriteriaRunEnds(t *testing.T) {
	paras := []string{
		"Criterio A: " + strings.Repeat("síntoma ", 40),
		"El curso del trastorno es variable y depende de muchos factores del entorno.",
		"Siguiente tema.",
	}
	got := NewSplitter(SplitterOptions{}).Split(strings.Join(paras, "\n\n"))
	if len(got) != 2 {
		t.Fatalf("expected the run to end after the narrative paragraph, got %d: %q", len(got), got)
	}
	if !strings.HasSuffix(got[0], "entorno.") || got[1] != "Siguiente tema." {
		t.Errorf("unexpected sections: %q", got)
	}
}

func TestSplitDuplicatesCriteriaBlock(t *testing.T) {
	text := "Trastorno de pánico.\nCriterios diagnósticos\nA. " + strings.Repeat("ataques de pánico recurrentes ", 5) +
		"\n\nNotas posteriores sobre prevalencia."
	got := NewSplitter(SplitterOptions{CriteriaEndMinSize: 10000}).Split(text)
	if len(got) != 2 {
		t.Fatalf("expected parent plus block, got %d: %q", len(got), got)
	}
	if !strings.HasPrefix(got[0], "Trastorno de pánico.") {
		t.Errorf("parent should come first: %q", got[0])
	}
	if !strings.HasPrefix(got[1], "Criterios diagnósticos") || strings.Contains(got[1], "prevalencia") {
		t.Errorf("block should stop at the paragraph boundary: %q", got[1])
	}
}

func TestSplitCustomPredicate(t *testing.T) {
	never := func(string) bool { return false }
	s := NewSplitter(SplitterOptions{
		SectionSize: 10,
		CriteriaCue: never,
		Mention:     never,
		Lettered:    never,
		Numbered:    never,
	})
	got := s.Split("Criterio A: algo largo aquí\n\nCriterio B: otra cosa larga")
	if len(got) != 2 {
		t.Errorf("custom predicates should disable criteria runs, got %q", got)
	}
}

func TestStartsLetteredItemOnlyAtParagraphStart(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"A. Ansiedad y preocupación excesiva.", true},
		{"  B. Al individuo le es difícil controlar la preocupación.", true},
		{"Derivado por el Dr. J. Pérez tras la consulta.", false},
		{"a. minúscula no abre un criterio", false},
	}
	for _, tt := range tests {
		if got := StartsLetteredItem(tt.text); got != tt.want {
			t.Errorf("StartsLetteredItem(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
