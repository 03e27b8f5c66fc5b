package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
)

// OutputFormat selects how command results are rendered.
type OutputFormat string

const (
	// FormatText is human-readable tabular output (default).
	FormatText OutputFormat = "text"
	// FormatJSON is machine-readable JSON output.
	FormatJSON OutputFormat = "json"
)

// Formatter renders command output to a writer.
type Formatter interface {
	FormatTo(w io.Writer, data any) error
}

// JSONFormatter renders output as indented JSON.
type JSONFormatter struct{}

func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// TextFormatter renders output as plain text. Table data renders as
// aligned columns; everything else prints with %v.
type TextFormatter struct{}

func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	if table, ok := data.(Table); ok {
		return writeTable(w, table)
	}
	_, err := fmt.Fprintf(w, "%v\n", data)
	return err
}

// Table is tabular command output: a header row plus data rows.
type Table struct {
	Headers []string
	Rows    [][]string
}

// SortRows orders table rows by the given column.
func (t *Table) SortRows(column int) {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return t.Rows[i][column] < t.Rows[j][column]
	})
}

func writeTable(w io.Writer, table Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if len(table.Headers) > 0 {
		fmt.Fprintln(tw, joinTab(table.Headers))
	}
	for _, row := range table.Rows {
		fmt.Fprintln(tw, joinTab(row))
	}
	return tw.Flush()
}

func joinTab(cells []string) string {
	out := ""
	for i, cell := range cells {
		if i > 0 {
			out += "\t"
		}
		out += cell
	}
	return out
}

// NewFormatter creates a formatter for the given format. Unknown
// formats fall back to text.
func NewFormatter(format OutputFormat) Formatter {
	if format == FormatJSON {
		return &JSONFormatter{}
	}
	return &TextFormatter{}
}
