package table

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
)

// Table is an ordered list of named columns of identical length.
type Table struct {
	Name    string
	Columns []*Column
}

// NewTable creates a table from the given columns. All columns must have the
// same length.
func NewTable(name string, columns ...*Column) *Table {
	if len(columns) > 1 {
		n := columns[0].Len()
		for _, col := range columns[1:] {
			if col.Len() != n {
				panic(fmt.Sprintf("column %s has %d rows, expected %d", col.Name, col.Len(), n))
			}
		}
	}
	return &Table{Name: name, Columns: columns}
}

// NumRows returns the common length of the table's columns.
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	for _, col := range t.Columns {
		if col.Name == name {
			return col
		}
	}
	return nil
}

// Print writes a fixed-width tabular rendering of the table.
func (t *Table) Print(w io.Writer) {
	if t == nil || len(t.Columns) == 0 {
		return
	}
	for _, col := range t.Columns {
		fmt.Fprintf(w, "%-14s", col.Name)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 14*len(t.Columns)))
	for i := 0; i < t.NumRows(); i++ {
		for _, col := range t.Columns {
			fmt.Fprintf(w, "%-14g", col.Data[i])
		}
		fmt.Fprintln(w)
	}
}

// Catalog is the process-wide table registry. It is filled once at startup and
// read-only during query execution.
type Catalog struct {
	tables []*Table
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// Register adds a table to the catalog. A table with a duplicate name replaces
// the earlier registration.
func (c *Catalog) Register(t *Table) {
	for i, existing := range c.tables {
		if existing.Name == t.Name {
			c.tables[i] = t
			return
		}
	}
	c.tables = append(c.tables, t)
}

// Table returns the registered table with the given name, or nil.
func (c *Catalog) Table(name string) *Table {
	for _, t := range c.tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Tables returns the registered tables in registration order.
func (c *Catalog) Tables() []*Table {
	return c.tables
}

// PrintTables writes a listing of every registered table with its column names
// and row count.
func (c *Catalog) PrintTables(w io.Writer) {
	for _, t := range c.tables {
		names := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			names[i] = col.Name
		}
		fmt.Fprintf(w, "%s (%s): %s rows\n", t.Name, strings.Join(names, ", "),
			humanize.Comma(int64(t.NumRows())))
	}
}
