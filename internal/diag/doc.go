// Package diag defines the diagnostic model shared by every analysis phase.
//
// # Data model
//
// Diagnostic is the central record: Severity, a numbered Code, a Message,
// the Primary source.Loc, optional Notes and optional Fixes (structured text
// edits). Each Code carries a source.StrictLevel; a diagnostic is reported
// only when the strictness of the file it points into is at least that level.
//
// # Emitting diagnostics
//
// Phases report through a Reporter so emission stays decoupled from storage.
// NewReportBuilder (or the ReportError/ReportWarning shortcuts) lets a phase
// chain WithNote / WithFix before Emit. BagReporter collects into a Bag,
// which is single-goroutine; Queue is the shared, goroutine-safe sink owned
// by a global state.
//
// Reporting never aborts the current file: the phase degrades the offending
// value and keeps going, so one error does not hide the next.
//
// # Rendering
//
// FormatShortDiagnostics gives one line per entry for golden tests and
// terse CLI output; Pretty renders source excerpts with carets.
package diag
