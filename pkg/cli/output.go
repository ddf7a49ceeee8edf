package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
)

// OutputFormat selects how command results are rendered.
type OutputFormat string

const (
	// FormatText is plain text output (default).
	FormatText OutputFormat = "text"
	// FormatJSON is indented JSON output.
	FormatJSON OutputFormat = "json"
	// FormatCSV is CSV output for tabular data.
	FormatCSV OutputFormat = "csv"
)

// ParseOutputFormat converts a flag value into an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case FormatText, FormatJSON, FormatCSV:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q (supported: text, json, csv)", s)
	}
}

// Formatter renders command output to a writer.
type Formatter interface {
	FormatTo(w io.Writer, data interface{}) error
}

// TextFormatter renders output with fmt's default verbs.
type TextFormatter struct{}

// FormatTo writes data to w in plain text.
func (f *TextFormatter) FormatTo(w io.Writer, data interface{}) error {
	_, err := fmt.Fprintf(w, "%v\n", data)
	return err
}

// JSONFormatter renders output as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatTo writes data to w as JSON.
func (f *JSONFormatter) FormatTo(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// CSVFormatter renders tabular output as CSV. The data passed to
// FormatTo must be a [][]string of rows; the header row is written
// first when Headers is set.
type CSVFormatter struct {
	Headers []string
}

// FormatTo writes rows to w as CSV.
func (f *CSVFormatter) FormatTo(w io.Writer, data interface{}) error {
	rows, ok := data.([][]string)
	if !ok {
		return fmt.Errorf("csv output requires [][]string rows, got %T", data)
	}

	csvWriter := csv.NewWriter(w)
	defer csvWriter.Flush()

	if len(f.Headers) > 0 {
		if err := csvWriter.Write(f.Headers); err != nil {
			return err
		}
	}
	for _, row := range rows {
		if err := csvWriter.Write(row); err != nil {
			return err
		}
	}
	return csvWriter.Error()
}

// NewFormatter creates a formatter for the given format.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatCSV:
		return &CSVFormatter{}
	default:
		return &TextFormatter{}
	}
}
