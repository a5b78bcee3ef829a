package models

import "fmt"

// DiagnosticKind classifies a non-fatal condition.
type DiagnosticKind int

const (
	DataUnavailable DiagnosticKind = iota
	UnknownDimension
	UnknownMeasure
	InvalidEdit
	FetchFailed
	// StaleResult marks a member fetch that arrived after its source was rebound; its result was discarded.
	StaleResult
)

func (k DiagnosticKind) String() string {
	switch k {
	case DataUnavailable:
		return "DataUnavailable"
	case UnknownDimension:
		return "UnknownDimension"
	case UnknownMeasure:
		return "UnknownMeasure"
	case InvalidEdit:
		return "InvalidEdit"
	case FetchFailed:
		return "FetchFailed"
	case StaleResult:
		return "StaleResult"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Diagnostic reports a degraded condition. Key is the dimension or measure concerned, if any;
// Row is -1 when the condition is not tied to a row.
type Diagnostic struct {
	Kind DiagnosticKind
	Key  string
	Row  int
	Err  error
}

func (d Diagnostic) String() string {
	s := d.Kind.String()
	if d.Key != "" {
		s += " key=" + d.Key
	}
	if d.Row >= 0 {
		s += fmt.Sprintf(" row=%d", d.Row)
	}
	if d.Err != nil {
		s += ": " + d.Err.Error()
	}
	return s
}

// LogData flattens the diagnostic into structured log fields.
func (d Diagnostic) LogData() map[string]interface{} {
	data := map[string]interface{}{
		"kind": d.Kind.String(),
	}
	if d.Key != "" {
		data["key"] = d.Key
	}
	if d.Row >= 0 {
		data["row"] = d.Row
	}
	if d.Err != nil {
		data["error"] = d.Err.Error()
	}
	return data
}
