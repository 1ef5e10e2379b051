package contacts

import (
	"encoding/csv"
	"io"
	"sort"
)

// Columns returns the union of field names across records, timestamp first
// and the rest sorted.
func Columns(records []Record) []string {
	seen := map[string]bool{TimestampField: true}
	var rest []string
	for _, rec := range records {
		for name := range rec {
			if !seen[name] {
				seen[name] = true
				rest = append(rest, name)
			}
		}
	}
	sort.Strings(rest)
	return append([]string{TimestampField}, rest...)
}

// WriteCSV writes records as CSV with a header row from Columns. Missing
// fields are empty cells.
func WriteCSV(w io.Writer, records []Record) error {
	cols := Columns(records)
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	row := make([]string, len(cols))
	for _, rec := range records {
		for i, col := range cols {
			row[i] = rec.String(col)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
