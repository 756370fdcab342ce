package table

// Column is a densely stored float64 vector with a symbolic name. Columns are
// owned by their Table and live for the process lifetime; query results own
// their backing slice instead.
type Column struct {
	Name string
	Data []float64
}

// NewColumn creates a column over an existing backing slice.
func NewColumn(name string, data []float64) *Column {
	return &Column{Name: name, Data: data}
}

// Len returns the number of elements in the column.
func (c *Column) Len() int {
	return len(c.Data)
}
