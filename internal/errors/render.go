package errors

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	codeColor = color.New(color.FgRed, color.Bold)
	locColor  = color.New(color.FgCyan)
	dimColor  = color.New(color.Faint)
)

// Render writes a human-readable rendering of the report to w, colorized
// when w is a terminal.
func Render(w io.Writer, r *Report) {
	codeColor.Fprintf(w, "%s", r.Code)
	fmt.Fprintf(w, " [%s] %s", r.Phase, r.Message)
	if r.Span != nil {
		fmt.Fprint(w, " at ")
		locColor.Fprintf(w, "%s", r.Span)
	}
	fmt.Fprintln(w)
	if r.Fix != nil {
		dimColor.Fprintf(w, "  fix: %s\n", r.Fix.Suggestion)
	}
}

// RenderAll renders every report and returns the count.
func RenderAll(w io.Writer, reports []*Report) int {
	for _, r := range reports {
		Render(w, r)
	}
	return len(reports)
}
