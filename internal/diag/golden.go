package diag

import (
	"cmp"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"rbcheck/internal/source"
)

// shortLine is one rendered entry of the short form.
type shortLine struct {
	label   string
	code    string
	path    string
	line    uint32
	col     uint32
	message string
}

func (l shortLine) String() string {
	return fmt.Sprintf("%s %s %s:%d:%d %s", l.label, l.code, l.path, l.line, l.col, l.message)
}

func compareShort(a, b shortLine) int {
	return cmp.Or(
		cmp.Compare(a.path, b.path),
		cmp.Compare(a.line, b.line),
		cmp.Compare(a.col, b.col),
		cmp.Compare(a.label, b.label),
		cmp.Compare(a.code, b.code),
		cmp.Compare(a.message, b.message),
	)
}

// FormatShortDiagnostics renders "<sev> <CODE> <path>:<line>:<col> <message>"
// per entry, sorted by position, without a trailing newline. Notes become
// their own "note" lines when includeNotes is set. Entries whose location
// does not resolve in fs are left out.
func FormatShortDiagnostics(diags []Diagnostic, fs *source.FileSet, includeNotes bool) string {
	if fs == nil {
		return ""
	}
	var lines []shortLine
	for i := range diags {
		d := &diags[i]
		if l, ok := shortAt(fs, d.Primary); ok {
			l.label, l.code, l.message = d.Severity.Label(), d.Code.ID(), oneLine(d.Message)
			lines = append(lines, l)
		}
		if !includeNotes {
			continue
		}
		for _, n := range d.Notes {
			if l, ok := shortAt(fs, n.Loc); ok {
				l.label, l.code, l.message = "note", d.Code.ID(), oneLine(n.Msg)
				lines = append(lines, l)
			}
		}
	}
	slices.SortStableFunc(lines, compareShort)

	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.String()
	}
	return strings.Join(out, "\n")
}

// shortAt fills the position fields of a line for loc.
func shortAt(fs *source.FileSet, loc source.Loc) (shortLine, bool) {
	if !loc.Exists() {
		return shortLine{}, false
	}
	f := fs.Get(loc.File())
	if f == nil || int(loc.End()) > len(f.Content) {
		return shortLine{}, false
	}
	begin, _ := loc.Position(fs)
	path := filepath.ToSlash(f.DisplayPath(fs.BaseDir()))
	for strings.HasPrefix(path, "./") {
		path = path[2:]
	}
	return shortLine{path: path, line: begin.Line, col: begin.Col}, true
}

// oneLine folds line breaks into spaces.
func oneLine(msg string) string {
	msg = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(msg)
	return strings.TrimSpace(msg)
}
