// Package tools implements the administrative functions the assistant can
// call: scheduling, reminders, patient search and report requests.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ziadkadry99/clinrag/internal/llm"
	"github.com/ziadkadry99/clinrag/internal/logger"
	"github.com/ziadkadry99/clinrag/internal/records"
)

// Result codes.
const (
	CodeSessionScheduled   = "SESSION_SCHEDULED"
	CodePatientNotFound    = "PATIENT_NOT_FOUND"
	CodeInvalidDateTime    = "INVALID_DATETIME"
	CodeSchedulingConflict = "SCHEDULING_CONFLICT"
	CodeReminderCreated    = "REMINDER_CREATED"
	CodePatientsFound      = "PATIENTS_FOUND"
	CodeNoPatientsFound    = "NO_PATIENTS_FOUND"
	CodeReportRequested    = "REPORT_REQUESTED"
	CodeValidationError    = "VALIDATION_ERROR"
	CodeUnknownFunction    = "UNKNOWN_FUNCTION"
	CodeUnknownError       = "UNKNOWN_ERROR"
)

// Result is the structured outcome of a tool execution. Failures are
// reported here, never returned as errors.
type Result struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Code    string   `json:"code"`
	Data    any      `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// ValidationError lists the malformed arguments of a call.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid arguments: " + strings.Join(e.Fields, "; ")
}

type scheduleSessionArgs struct {
	PatientID string `json:"patientId" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Time      string `json:"time" validate:"required,datetime=15:04"`
	Duration  int    `json:"duration" validate:"omitempty,min=15,max=180"`
	Notes     string `json:"notes" validate:"max=500"`
}

type createReminderArgs struct {
	Title       string `json:"title" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string `json:"time" validate:"required,datetime=15:04"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high"`
}

type searchPatientsArgs struct {
	Query string `json:"query" validate:"max=50"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=20"`
}

type generateReportArgs struct {
	PatientID            string `json:"patientId" validate:"required"`
	ReportType           string `json:"reportType" validate:"required,oneof=initial_evaluation progress_note discharge_summary"`
	IncludeAssessment    *bool  `json:"includeAssessment"`
	IncludeTreatmentPlan *bool  `json:"includeTreatmentPlan"`
}

// Dispatcher validates function-call arguments and runs them against the
// records store.
type Dispatcher struct {
	records  *records.Store
	validate *validator.Validate
	now      func() time.Time
	loc      *time.Location
	log      *logger.Logger
}

// NewDispatcher creates a dispatcher. Dates and times in arguments are
// interpreted in loc; nil means time.Local.
func NewDispatcher(store *records.Store, loc *time.Location, log *logger.Logger) *Dispatcher {
	if loc == nil {
		loc = time.Local
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &Dispatcher{
		records:  store,
		validate: v,
		now:      time.Now,
		loc:      loc,
		log:      log.With("component", "tools"),
	}
}

// Execute runs one function call on behalf of userID.
func (d *Dispatcher) Execute(ctx context.Context, userID string, call llm.FunctionCall) Result {
	d.log.Info("executing tool", "function", call.Name, "user_id", userID)

	var (
		res Result
		err error
	)
	switch call.Name {
	case FuncScheduleSession:
		var args scheduleSessionArgs
		if err = d.bind(call.Args, &args); err == nil {
			res, err = d.scheduleSession(ctx, userID, args)
		}
	case FuncCreateReminder:
		var args createReminderArgs
		if err = d.bind(call.Args, &args); err == nil {
			res, err = d.createReminder(ctx, userID, args)
		}
	case FuncSearchPatients:
		var args searchPatientsArgs
		if err = d.bind(call.Args, &args); err == nil {
			res, err = d.searchPatients(ctx, userID, args)
		}
	case FuncGenerateReport:
		var args generateReportArgs
		if err = d.bind(call.Args, &args); err == nil {
			res, err = d.generateReport(ctx, userID, args)
		}
	default:
		return Result{Message: fmt.Sprintf("Unknown function %q", call.Name), Code: CodeUnknownFunction}
	}

	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		d.log.Warn("tool arguments rejected", "function", call.Name, "errors", verr.Fields)
		return Result{Message: "Validation error in " + call.Name + " parameters", Code: CodeValidationError, Errors: verr.Fields}
	case err != nil:
		d.log.Error("tool failed", "function", call.Name, "error", err)
		return Result{Message: fmt.Sprintf("Failed to execute %s: %v", call.Name, err), Code: CodeUnknownError}
	}
	return res
}

// bind decodes loosely typed model arguments into dst and validates them.
func (d *Dispatcher) bind(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return &ValidationError{Fields: []string{err.Error()}}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &ValidationError{Fields: []string{fmt.Sprintf("%s: expected %s", typeErr.Field, typeErr.Type)}}
		}
		return &ValidationError{Fields: []string{err.Error()}}
	}
	if err := d.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, describe(fe))
		}
		return &ValidationError{Fields: fields}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "datetime":
		return fmt.Sprintf("%s must match %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	case "min", "max":
		return fmt.Sprintf("%s violates %s=%s", fe.Field(), fe.Tag(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

func (d *Dispatcher) futureDateTime(date, clock string) (time.Time, bool) {
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, d.loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, t.After(d.now())
}

func (d *Dispatcher) scheduleSession(ctx context.Context, userID string, args scheduleSessionArgs) (Result, error) {
	if args.Duration == 0 {
		args.Duration = 60
	}
	start, ok := d.futureDateTime(args.Date, args.Time)
	if !ok {
		return Result{Message: "Invalid date or time. Please ensure the date and time are in the future.", Code: CodeInvalidDateTime}, nil
	}

	sess, err := d.records.ScheduleSession(ctx, userID, args.PatientID, start, time.Duration(args.Duration)*time.Minute, args.Notes)
	switch {
	case errors.Is(err, records.ErrPatientNotFound):
		return Result{Message: "Patient not found or does not belong to this therapist.", Code: CodePatientNotFound}, nil
	case errors.Is(err, records.ErrSchedulingConflict):
		return Result{Message: "There is already an appointment scheduled during this time slot.", Code: CodeSchedulingConflict}, nil
	case err != nil:
		return Result{}, err
	}

	patient, err := d.records.GetPatient(ctx, userID, args.PatientID)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("Session scheduled successfully for %s %s", args.Date, args.Time),
		Code:    CodeSessionScheduled,
		Data: map[string]any{
			"sessionId": sess.ID,
			"patient":   patient.Name,
			"date":      args.Date,
			"time":      args.Time,
			"duration":  args.Duration,
		},
	}, nil
}

func (d *Dispatcher) createReminder(ctx context.Context, userID string, args createReminderArgs) (Result, error) {
	if _, ok := d.futureDateTime(args.Date, args.Time); !ok {
		return Result{Message: "Invalid date or time. Please ensure the date and time are in the future.", Code: CodeInvalidDateTime}, nil
	}
	r, err := d.records.CreateReminder(ctx, records.Reminder{
		UserID:      userID,
		Title:       args.Title,
		Description: args.Description,
		DueDate:     args.Date,
		DueTime:     args.Time,
		Priority:    args.Priority,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("Reminder %q created successfully for %s %s", r.Title, r.DueDate, r.DueTime),
		Code:    CodeReminderCreated,
		Data:    r,
	}, nil
}

type patientSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
}

func (d *Dispatcher) searchPatients(ctx context.Context, userID string, args searchPatientsArgs) (Result, error) {
	if args.Limit == 0 {
		args.Limit = 10
	}
	found, err := d.records.SearchPatients(ctx, userID, args.Query, args.Limit)
	if err != nil {
		return Result{}, err
	}

	patients := make([]patientSummary, 0, len(found))
	for _, p := range found {
		patients = append(patients, patientSummary{ID: p.ID, Name: p.Name, Email: p.Email, Phone: p.Phone, DateOfBirth: p.DateOfBirth})
	}
	data := map[string]any{"patients": patients, "count": len(patients)}

	if len(patients) == 0 {
		return Result{Success: true, Message: fmt.Sprintf("No patients found matching %q", args.Query), Code: CodeNoPatientsFound, Data: data}, nil
	}
	msg := fmt.Sprintf("Found %d patients matching %q", len(patients), args.Query)
	if q := strings.TrimSpace(args.Query); q == "" || q == "*" {
		msg = fmt.Sprintf("Found %d patients in total", len(patients))
	}
	return Result{Success: true, Message: msg, Code: CodePatientsFound, Data: data}, nil
}

func (d *Dispatcher) generateReport(ctx context.Context, userID string, args generateReportArgs) (Result, error) {
	patient, err := d.records.GetPatient(ctx, userID, args.PatientID)
	if err != nil {
		return Result{}, err
	}
	if patient == nil {
		return Result{Message: "Patient not found or does not belong to this therapist.", Code: CodePatientNotFound}, nil
	}
	return Result{
		Success: true,
		Message: "Report generation requested for patient " + patient.Name,
		Code:    CodeReportRequested,
		Data: map[string]any{
			"patientId":            patient.ID,
			"patientName":          patient.Name,
			"reportType":           args.ReportType,
			"includeAssessment":    boolOr(args.IncludeAssessment, true),
			"includeTreatmentPlan": boolOr(args.IncludeTreatmentPlan, true),
		},
	}, nil
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
