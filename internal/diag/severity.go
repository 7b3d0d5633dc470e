package diag

import "strings"

// Severity ranks a diagnostic. Whether a diagnostic is shown at all is
// decided by its code's strict level; severity only says how loudly.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

var severityLabels = [...]string{
	SevInfo:    "info",
	SevWarning: "warning",
	SevError:   "error",
}

// Label is the lower-case name used in short output.
func (s Severity) Label() string {
	if int(s) < len(severityLabels) {
		return severityLabels[s]
	}
	return "unknown"
}

// String is the upper-case name used in pretty and JSON output.
func (s Severity) String() string {
	return strings.ToUpper(s.Label())
}
