package table

const demoRows = 20

// LoadDemo registers the built-in "demo" table: five float64 columns of twenty
// rows with small deterministic values.
func (c *Catalog) LoadDemo() *Table {
	a := make([]float64, demoRows)
	b := make([]float64, demoRows)
	cc := make([]float64, demoRows)
	x := make([]float64, demoRows)
	y := make([]float64, demoRows)
	for i := 0; i < demoRows; i++ {
		a[i] = float64(i + 1)
		b[i] = float64(10 * (i + 1))
		cc[i] = float64(i%5 + 1)
		x[i] = float64(i) / 2
		y[i] = float64(demoRows - i)
	}
	demo := NewTable("demo",
		NewColumn("a", a),
		NewColumn("b", b),
		NewColumn("c", cc),
		NewColumn("x", x),
		NewColumn("y", y),
	)
	c.Register(demo)
	return demo
}
