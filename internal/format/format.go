package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Formatter abstracts output formatting.
type Formatter interface {
	Write(w io.Writer, payload any) error
}

// JSONFormatter writes JSON output.
type JSONFormatter struct{}

// Write writes JSON payload to a writer.
func (f JSONFormatter) Write(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	return enc.Encode(payload)
}

// Table is a header row plus data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// TextFormatter writes Tables as aligned columns and anything else with %v.
type TextFormatter struct{}

func (f TextFormatter) Write(w io.Writer, payload any) error {
	table, ok := payload.(Table)
	if !ok {
		_, err := fmt.Fprintf(w, "%v\n", payload)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(table.Header) > 0 {
		if _, err := fmt.Fprintln(tw, strings.Join(table.Header, "\t")); err != nil {
			return err
		}
	}
	for _, row := range table.Rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}
