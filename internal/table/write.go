package table

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Format names an output encoding.
type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
	PDF  Format = "pdf"
)

// ParseFormat accepts csv, json or pdf in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return CSV, nil
	case CSV, JSON, PDF:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want csv, json or pdf)", s)
	}
}

// ContentType returns the media type for f.
func (f Format) ContentType() string {
	switch f {
	case JSON:
		return "application/json"
	case PDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}

// Ext returns the file extension for f including the dot.
func (f Format) Ext() string {
	if f == "" {
		return ".csv"
	}
	return "." + string(f)
}

// Write encodes t to w in format f.
func Write(w io.Writer, t Table, f Format) error {
	switch f {
	case JSON:
		return WriteJSON(w, t)
	case PDF:
		return WritePDF(w, t)
	default:
		return WriteCSV(w, t)
	}
}

// WriteCSV writes a header row followed by one record per row. Padding is an
// empty field.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(Columns))
	for _, row := range t.Rows {
		for j, c := range row {
			rec[j] = c.Value
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes an array of row objects keyed by column name. Padding is
// null.
func WriteJSON(w io.Writer, t Table) error {
	rows := make([]map[string]*string, 0, len(t.Rows))
	for _, row := range t.Rows {
		obj := make(map[string]*string, len(Columns))
		for j, c := range row {
			if c.Valid {
				v := c.Value
				obj[Columns[j]] = &v
			} else {
				obj[Columns[j]] = nil
			}
		}
		rows = append(rows, obj)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
