package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"rbcheck/internal/source"
)

// PrettyOpts configures Pretty.
type PrettyOpts struct {
	Color     bool
	ShowNotes bool
	ShowFixes bool
}

// Pretty форматирует диагностики в человекочитаемый вид:
//
//	<path>:<line>:<col>: <SEV> <CODE>: <Message>
//	   <line> | source text
//	          |    ^~~~
//
// затем Notes в том же формате. Ожидается отсортированный срез.
func Pretty(w io.Writer, diags []Diagnostic, fs *source.FileSet, opts PrettyOpts) {
	sevColor := map[Severity]*color.Color{
		SevError:   color.New(color.FgRed, color.Bold),
		SevWarning: color.New(color.FgYellow, color.Bold),
		SevInfo:    color.New(color.FgCyan),
	}
	noteColor := color.New(color.FgBlue)
	caretColor := color.New(color.FgGreen, color.Bold)
	for _, c := range []*color.Color{sevColor[SevError], sevColor[SevWarning], sevColor[SevInfo], noteColor, caretColor} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	for i := range diags {
		d := &diags[i]
		fmt.Fprintf(w, "%s: %s %s\n",
			d.Primary.FilePosToString(fs),
			sevColor[d.Severity].Sprintf("%s %s", d.Severity, d.Code.ID()),
			d.Message)
		writeExcerpt(w, fs, d.Primary, caretColor)
		if opts.ShowNotes {
			for _, n := range d.Notes {
				fmt.Fprintf(w, "    %s %s: %s\n", noteColor.Sprint("note"), n.Loc.FilePosToString(fs), n.Msg)
				writeExcerpt(w, fs, n.Loc, caretColor)
			}
		}
		if opts.ShowFixes {
			for _, f := range d.Fixes {
				fmt.Fprintf(w, "    %s %s\n", noteColor.Sprint("fix"), f.Title)
				for _, e := range f.Edits {
					fmt.Fprintf(w, "      %s -> %q\n", e.Loc.FilePosToString(fs), e.NewText)
				}
			}
		}
	}
}

func writeExcerpt(w io.Writer, fs *source.FileSet, loc source.Loc, caret *color.Color) {
	if !loc.Exists() {
		return
	}
	f := fs.Get(loc.File())
	if f == nil || int(loc.End()) > len(f.Content) {
		return
	}
	begin, end := loc.Position(fs)
	line := f.GetLine(begin.Line)
	gutter := fmt.Sprintf("%5d | ", begin.Line)
	fmt.Fprintf(w, "%s%s\n", gutter, line)

	// ширина в колонках терминала, а не в байтах
	prefix := runewidth.StringWidth(safePrefix(line, begin.Col-1))
	width := 1
	if end.Line == begin.Line && end.Col > begin.Col {
		width = max(1, runewidth.StringWidth(safePrefix(line, end.Col-1))-prefix)
	}
	marks := "^" + strings.Repeat("~", width-1)
	fmt.Fprintf(w, "%s%s%s\n", strings.Repeat(" ", len(gutter)-2)+"| ", strings.Repeat(" ", prefix), caret.Sprint(marks))
}

func safePrefix(line string, n uint32) string {
	if int(n) > len(line) {
		return line
	}
	return line[:n]
}
