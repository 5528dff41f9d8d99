// Package table pads extraction results into a rectangular table and
// serializes it.
package table

import (
	"github.com/hyperifyio/contactx/internal/pipeline"
)

// Columns is the fixed column order of every table.
var Columns = []string{"Emails", "Phone Numbers", "Companies", "Persons"}

// Cell is one table value. Valid is false for padding.
type Cell struct {
	Value string
	Valid bool
}

// Table is a rectangular record set. Rows at the same index are only
// positionally aligned; values in one row are unrelated.
type Table struct {
	Rows [][]Cell
}

// Assemble pads the four lists on the right to the length of the longest.
func Assemble(r pipeline.Result) Table {
	cols := [][]string{r.Emails, r.PhoneNumbers, r.Companies, r.Persons}
	n := 0
	for _, c := range cols {
		if len(c) > n {
			n = len(c)
		}
	}
	rows := make([][]Cell, n)
	for i := range rows {
		row := make([]Cell, len(cols))
		for j, c := range cols {
			if i < len(c) {
				row[j] = Cell{Value: c[i], Valid: true}
			}
		}
		rows[i] = row
	}
	return Table{Rows: rows}
}

// Len returns the row count.
func (t Table) Len() int { return len(t.Rows) }

// Column returns the values of column j with padding included as "".
func (t Table) Column(j int) []string {
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[j].Value
	}
	return out
}
