package enums

// Severity classifies a user-facing notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// IsValid reports whether the value is a known Severity.
func (s Severity) IsValid() bool {
	return s == SeveritySuccess || s == SeverityError
}
