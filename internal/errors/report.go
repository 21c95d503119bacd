package errors

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/crubit/bindgen/internal/ir"
)

// Report is the canonical structured error type for the binding generators.
// All error builders return *Report, which can be wrapped as ReportError.
type Report struct {
	Schema  string         `json:"schema"`         // Always "crubit.error/v1"
	Code    string         `json:"code"`           // Error code (TM003, FN001, etc.)
	Phase   string         `json:"phase"`          // Phase: "typemap", "funcgen", etc.
	Message string         `json:"message"`        // Human-readable message
	Span    *ir.Span       `json:"span,omitempty"` // Source location (optional)
	Data    map[string]any `json:"data,omitempty"` // Structured data (sorted keys)
	Fix     *Fix           `json:"fix,omitempty"`  // Suggested fix (optional)
}

// Fix is an optional machine-readable suggestion attached to a report.
type Fix struct {
	Suggestion string `json:"suggestion"`
}

// ReportError wraps a Report as an error.
// This allows structured reports to survive errors.As() unwrapping.
type ReportError struct {
	Rep *Report
}

// Error implements the error interface
func (e *ReportError) Error() string {
	if e.Rep == nil {
		return "unknown error"
	}
	return e.Rep.Code + ": " + e.Rep.Message
}

// AsReport attempts to extract a Report from an error chain.
// Returns the Report and true if found, nil and false otherwise.
func AsReport(err error) (*Report, bool) {
	var re *ReportError
	if errors.As(err, &re) {
		return re.Rep, true
	}
	return nil, false
}

// WrapReport wraps a Report as a ReportError.
func WrapReport(r *Report) error {
	if r == nil {
		return nil
	}
	return &ReportError{Rep: r}
}

// New builds a report for the given code with the registry's phase. Unknown
// codes get phase "unknown"; that only happens on programmer error.
func New(code string, span *ir.Span, format string, args ...any) *Report {
	phase := "unknown"
	if info, ok := GetErrorInfo(code); ok {
		phase = info.Phase
	}
	return &Report{
		Schema:  "crubit.error/v1",
		Code:    code,
		Phase:   phase,
		Message: fmt.Sprintf(format, args...),
		Span:    span,
	}
}

// Newf builds a report and immediately wraps it as an error.
func Newf(code string, span *ir.Span, format string, args ...any) error {
	return WrapReport(New(code, span, format, args...))
}

// WithData attaches a structured data value and returns the report for
// chaining.
func (r *Report) WithData(key string, value any) *Report {
	if r.Data == nil {
		r.Data = map[string]any{}
	}
	r.Data[key] = value
	return r
}

// ToJSON converts a Report to JSON (deterministic, sorted keys)
func (r *Report) ToJSON(compact bool) (string, error) {
	var data []byte
	var err error

	if compact {
		data, err = json.Marshal(r)
	} else {
		data, err = json.MarshalIndent(r, "", "  ")
	}

	if err != nil {
		return "", err
	}
	return string(data), nil
}

// NewGeneric creates a generic error report for unexpected failures
func NewGeneric(phase string, err error) *Report {
	return &Report{
		Schema:  "crubit.error/v1",
		Code:    "INTERNAL",
		Phase:   phase,
		Message: err.Error(),
		Data:    map[string]any{},
	}
}
