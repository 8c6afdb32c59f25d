package assistant

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/ziadkadry99/clinrag/internal/memory"
)

//go:embed prompts/system.md
var systemPersona string

// Features lists what the platform offers; it is quoted to the model so it
// can point users at the right place.
var Features = []string{
	"Gestión de pacientes",
	"Evaluación psicológica",
	"Documentación clínica",
	"Planificación de tratamientos",
	"Agenda y citas",
	"Consultas AI",
}

const (
	defaultUserName = "Usuario"
	defaultUserRole = "Profesional"
)

// AssistantContext is everything the system prompt is rendered from.
type AssistantContext struct {
	UserName       string
	UserRole       string
	CurrentSection string
	CurrentPage    string
	PatientID      string
	PatientName    string
	RecentPatients []string
	Features       []string
	Memories       string
}

// NewContext merges UI parameters with recalled memories.
func NewContext(params ContextParams, memories []memory.Entry) AssistantContext {
	name := strings.TrimSpace(params.UserName)
	if name == "" {
		name = defaultUserName
	}
	return AssistantContext{
		UserName:       name,
		UserRole:       defaultUserRole,
		CurrentSection: params.CurrentSection,
		CurrentPage:    params.CurrentPage,
		PatientID:      params.PatientID,
		PatientName:    params.PatientName,
		RecentPatients: params.RecentPatients,
		Features:       Features,
		Memories:       FormatMemories(memories),
	}
}

// FormatMemories renders recalled memories as a bullet list. Empty input
// yields "".
func FormatMemories(entries []memory.Entry) string {
	var b strings.Builder
	for _, e := range entries {
		text := strings.TrimSpace(e.Memory)
		if text == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// BuildSystemPrompt renders the persona followed by the current context.
func BuildSystemPrompt(c AssistantContext) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(systemPersona))
	b.WriteString("\n\n# Contexto actual\n")

	if c.UserName != "" && c.UserName != defaultUserName {
		fmt.Fprintf(&b, "\n## Usuario\n- Nombre: %s\n- IMPORTANTE: Dirígete al usuario como %q en tus respuestas\n", c.UserName, c.UserName)
	} else {
		b.WriteString("\n## Usuario\n")
	}
	if c.UserRole != "" {
		fmt.Fprintf(&b, "- Rol: %s\n", c.UserRole)
	}

	if c.CurrentSection != "" || c.CurrentPage != "" {
		b.WriteString("\n## Ubicación en la plataforma\n")
		if c.CurrentSection != "" {
			fmt.Fprintf(&b, "- Sección: %s\n", c.CurrentSection)
		}
		if c.CurrentPage != "" {
			fmt.Fprintf(&b, "- Página: %s\n", c.CurrentPage)
		}
	}

	if c.PatientID != "" || c.PatientName != "" {
		b.WriteString("\n## Paciente actual\n")
		switch {
		case c.PatientName != "" && c.PatientID != "":
			fmt.Fprintf(&b, "- %s (ID: %s)\n", c.PatientName, c.PatientID)
		case c.PatientName != "":
			fmt.Fprintf(&b, "- %s\n", c.PatientName)
		default:
			fmt.Fprintf(&b, "- ID: %s\n", c.PatientID)
		}
		b.WriteString("- Usa esta información solo si es relevante para la consulta\n")
	}

	if len(c.RecentPatients) > 0 {
		b.WriteString("\n## Pacientes recientes\n")
		for _, p := range c.RecentPatients {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	if len(c.Features) > 0 {
		b.WriteString("\n## Funcionalidades de la plataforma\n")
		for _, f := range c.Features {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	if c.Memories != "" {
		b.WriteString("\n## Memorias relevantes de conversaciones anteriores\n")
		b.WriteString(c.Memories)
		b.WriteString("\n- Usa estas memorias solo cuando aporten a la respuesta; no las enumeres\n")
	}

	return b.String()
}
