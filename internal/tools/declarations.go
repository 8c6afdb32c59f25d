package tools

import "github.com/ziadkadry99/clinrag/internal/llm"

// Function names the assistant may call.
const (
	FuncScheduleSession = "schedule_session"
	FuncCreateReminder  = "create_reminder"
	FuncSearchPatients  = "search_patients"
	FuncGenerateReport  = "generate_report"
)

// Declarations returns the JSON-schema declarations attached to
// function-calling turns.
func Declarations() []llm.ToolDeclaration {
	return []llm.ToolDeclaration{
		{
			Name:        FuncScheduleSession,
			Description: "Programa una sesión terapéutica con un paciente en la agenda del profesional.",
			Parameters: object(map[string]any{
				"patientId": str("ID único del paciente con quien se programará la sesión"),
				"date":      pattern("Fecha de la sesión en formato YYYY-MM-DD; debe ser futura", `^\d{4}-\d{2}-\d{2}$`),
				"time":      pattern("Hora de la sesión en formato HH:MM (24 horas)", `^([01]\d|2[0-3]):([0-5]\d)$`),
				"duration":  num("Duración en minutos, entre 15 y 180 (por defecto 60)"),
				"notes":     str("Notas adicionales sobre la sesión (opcional)"),
			}, "patientId", "date", "time"),
		},
		{
			Name:        FuncCreateReminder,
			Description: "Crea un recordatorio para el profesional.",
			Parameters: object(map[string]any{
				"title":       str("Título descriptivo del recordatorio"),
				"description": str("Descripción detallada (opcional)"),
				"date":        pattern("Fecha en formato YYYY-MM-DD", `^\d{4}-\d{2}-\d{2}$`),
				"time":        pattern("Hora en formato HH:MM (24 horas)", `^([01]\d|2[0-3]):([0-5]\d)$`),
				"priority": map[string]any{
					"type":        "string",
					"enum":        []string{"low", "medium", "high"},
					"description": "Prioridad del recordatorio (por defecto medium)",
				},
			}, "title", "date", "time"),
		},
		{
			Name:        FuncSearchPatients,
			Description: "Busca pacientes por nombre, email, teléfono o ID.",
			Parameters: object(map[string]any{
				"query": str("Término de búsqueda; vacío o * lista todos los pacientes"),
				"limit": num("Número máximo de resultados, entre 1 y 20 (por defecto 10)"),
			}, "query"),
		},
		{
			Name:        FuncGenerateReport,
			Description: "Solicita la generación de un informe clínico para un paciente.",
			Parameters: object(map[string]any{
				"patientId": str("ID único del paciente"),
				"reportType": map[string]any{
					"type":        "string",
					"enum":        []string{"initial_evaluation", "progress_note", "discharge_summary"},
					"description": "Tipo de informe a generar",
				},
				"includeAssessment":    boolean("Incluir información de evaluación (por defecto true)"),
				"includeTreatmentPlan": boolean("Incluir plan de tratamiento (por defecto true)"),
			}, "patientId", "reportType"),
		},
	}
}

func object(props map[string]any, required ...string) map[string]any {
	return map[string]any{"type": "object", "properties": props, "required": required}
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func pattern(desc, re string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "pattern": re}
}

func num(desc string) map[string]any {
	return map[string]any{"type": "number", "description": desc}
}

func boolean(desc string) map[string]any {
	return map[string]any{"type": "boolean", "description": desc}
}
