// Package output provides common output formatting utilities.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// JSON writes indented JSON to w.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// Table creates an aligned table writer.
// Remember to call Flush() when done writing.
func Table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// Pairs writes label/value rows as an aligned table with title-cased
// labels.
func Pairs(w io.Writer, rows [][2]string) error {
	title := cases.Title(language.English)
	tw := Table(w)
	for _, row := range rows {
		_, _ = fmt.Fprintf(tw, "  %s:\t%s\n", title.String(row[0]), row[1])
	}
	return tw.Flush()
}

// Heading writes a title-cased heading line.
func Heading(w io.Writer, s string) {
	_, _ = fmt.Fprintf(w, "%s\n", cases.Title(language.English).String(s))
}

// Warn prints a warning message to w.
func Warn(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, "Warning: "+format+"\n", args...)
}
