package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Format is a report rendering.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formats lists the accepted --format values.
var Formats = []Format{FormatCSV, FormatTable, FormatJSON, FormatMarkdown}

// ParseFormat validates and normalizes a format string. Empty means CSV.
func ParseFormat(value string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(value))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatTable, FormatJSON, FormatMarkdown:
		return f, nil
	}
	return "", fmt.Errorf("unsupported output format: %s", value)
}

// Report is a tabular command result.
type Report struct {
	// Comments are leading "# ..." lines, kept in CSV output only.
	Comments []string
	Header   []string
	Rows     [][]string
}

// Append adds a row.
func (r *Report) Append(cells ...string) {
	r.Rows = append(r.Rows, cells)
}

// Render writes r to w in format.
func Render(w io.Writer, r Report, format Format) error {
	if format == FormatJSON {
		return renderJSON(w, r)
	}

	t := table.NewWriter()
	if len(r.Header) > 0 {
		t.AppendHeader(row(r.Header))
	}
	for _, cells := range r.Rows {
		t.AppendRow(row(cells))
	}

	var out string
	switch format {
	case FormatTable:
		t.SetStyle(table.StyleRounded)
		out = t.Render()
	case FormatMarkdown:
		out = t.RenderMarkdown()
	default:
		for _, c := range r.Comments {
			if _, err := fmt.Fprintf(w, "# %s\n", c); err != nil {
				return err
			}
		}
		out = t.RenderCSV()
	}
	if out == "" {
		return nil
	}
	_, err := fmt.Fprintln(w, out)
	return err
}

func row(cells []string) table.Row {
	r := make(table.Row, len(cells))
	for i, c := range cells {
		r[i] = c
	}
	return r
}

// Emit renders r to stdout, or atomically to path when set.
func Emit(stdout io.Writer, path string, r Report, format Format) error {
	if path == "" {
		return Render(stdout, r, format)
	}
	var b strings.Builder
	if err := Render(&b, r, format); err != nil {
		return err
	}
	return WriteFileAtomic(path, []byte(b.String()))
}
