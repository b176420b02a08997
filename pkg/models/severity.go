package models

import "fmt"

// Severity is the ordered severity scale shared by rules and alerts.
// The ordinal values are stored as-is in the database.
type Severity int

const (
	SeverityOK       Severity = 1
	SeverityWarning  Severity = 2
	SeverityDanger   Severity = 3
	SeverityCritical Severity = 4
)

// ParseSeverity converts a stored ordinal into a Severity.
func ParseSeverity(level int) (Severity, error) {
	switch Severity(level) {
	case SeverityOK, SeverityWarning, SeverityDanger, SeverityCritical:
		return Severity(level), nil
	default:
		return 0, fmt.Errorf("invalid severity level %d", level)
	}
}

// Label returns the human readable severity label used in notifications
// and API responses.
func (s Severity) Label() string {
	switch s {
	case SeverityOK:
		return "OK"
	case SeverityWarning:
		return "WARNING"
	case SeverityDanger:
		return "DANGER"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Color returns the hex theme color associated with the severity.
func (s Severity) Color() string {
	switch s {
	case SeverityOK:
		return "0070C0"
	case SeverityWarning:
		return "FFB900"
	case SeverityDanger:
		return "D13438"
	case SeverityCritical:
		return "A4373A"
	default:
		return "000000"
	}
}

func (s Severity) String() string { return s.Label() }
