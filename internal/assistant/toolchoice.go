package assistant

import (
	"strings"
	"unicode"

	"github.com/ziadkadry99/clinrag/internal/llm"
	"github.com/ziadkadry99/clinrag/internal/tools"
)

type intent int

const (
	intentSchedule intent = iota
	intentSearch
	intentReminder
	intentReport
	intentExplicit
)

// intentKeywords are matched as word prefixes, so "agend" covers agenda,
// agendar and agendame.
var intentKeywords = map[intent][]string{
	intentSchedule: {"agend", "program", "cita", "reserv", "schedul", "appointment", "book"},
	intentSearch:   {"busc", "encuentr", "encontr", "list", "muestr", "muéstr", "search", "find", "look up", "show me"},
	intentReminder: {"recuérd", "recuerd", "recordatori", "alarm", "remind"},
	intentReport:   {"informe", "report", "reporte"},
	intentExplicit: {"usa la herramienta", "utiliza la herramienta", "ejecuta", "use the tool", "call the function", "herramienta"},
}

// ToolChoiceFor biases tool selection from the wording of message. Any
// administrative intent forces a call; a message dominated by search or
// listing wording is restricted to patient search.
func ToolChoiceFor(message string) *llm.ToolChoice {
	words := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	text := " " + strings.Join(words, " ")

	counts := make(map[intent]int, len(intentKeywords))
	total := 0
	for in, kws := range intentKeywords {
		for _, kw := range kws {
			counts[in] += strings.Count(text, " "+kw)
		}
		total += counts[in]
	}
	if total == 0 {
		return &llm.ToolChoice{Mode: llm.ToolModeAuto}
	}

	choice := &llm.ToolChoice{Mode: llm.ToolModeAny}
	search := counts[intentSearch]
	if search > 0 && search > counts[intentSchedule] && search > counts[intentReminder] && search > counts[intentReport] {
		choice.AllowedFunctions = []string{tools.FuncSearchPatients}
	}
	return choice
}
