package compiler

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/stretchr/testify/require"

	"github.com/rembrandb/rembrandb/internal/parser"
	"github.com/rembrandb/rembrandb/internal/table"
)

func testCatalog() *table.Catalog {
	catalog := table.NewCatalog()
	catalog.Register(table.NewTable("demo",
		table.NewColumn("a", []float64{1, 2, 3, 4}),
		table.NewColumn("b", []float64{10, 20, 30, 40}),
	))
	return catalog
}

func compileStatement(t *testing.T, statement string) *Compiled {
	t.Helper()
	query, err := parser.Parse(statement, testCatalog())
	require.NoError(t, err)
	return New(query).Compile()
}

func blockNames(f *ir.Func) []string {
	names := make([]string, len(f.Blocks))
	for i, block := range f.Blocks {
		names[i] = block.Name()
	}
	return names
}

func TestCompileLayoutWithoutWhere(t *testing.T) {
	compiled := compileStatement(t, "SELECT a+b")

	require.Equal(t, "loop", compiled.Func.Name())
	require.Len(t, compiled.Func.Params, 3)
	require.Equal(t, []string{
		"entry", "condition", "body_main", "body_store", "increment", "end", "overflow_error",
	}, blockNames(compiled.Func))
	require.Equal(t, 4, compiled.Rows)
	require.Len(t, compiled.Columns, 2)
}

func TestCompileLayoutWithWhere(t *testing.T) {
	compiled := compileStatement(t, "SELECT a*b WHERE a>2")

	require.Equal(t, []string{
		"entry", "condition", "body_condition", "body_main", "body_store", "increment", "end", "overflow_error",
	}, blockNames(compiled.Func))
}

func TestCompileConstantQueryUsesTableLength(t *testing.T) {
	compiled := compileStatement(t, "SELECT 2.5")

	require.Empty(t, compiled.Columns)
	require.Equal(t, 4, compiled.Rows)
}

func TestCompileIsDeterministic(t *testing.T) {
	catalog := testCatalog()
	query1, err := parser.Parse("SELECT a*b WHERE a>2", catalog)
	require.NoError(t, err)
	query2, err := parser.Parse("SELECT a*b WHERE a>2", catalog)
	require.NoError(t, err)

	first := New(query1).Compile()
	second := New(query2).Compile()
	require.Equal(t, first.Module.String(), second.Module.String())
}

func TestCompileModulePrints(t *testing.T) {
	compiled := compileStatement(t, "SELECT a WHERE a>1 AND a<4")
	asm := compiled.Module.String()

	require.Contains(t, asm, "@loop")
	require.Contains(t, asm, "double** %inputs")
	require.Contains(t, asm, "i64 %size")
	require.Contains(t, asm, "body_condition")
	require.Contains(t, asm, "fcmp ogt")
	require.Contains(t, asm, "fcmp olt")
	require.Contains(t, asm, "and i1")
}

func TestFreshHandlesPerCompile(t *testing.T) {
	query, err := parser.Parse("SELECT a", testCatalog())
	require.NoError(t, err)

	c1 := New(query)
	c1.Compile()
	c2 := New(query)
	c2.Compile()

	col := query.Columns[0]
	require.NotNil(t, c1.handles[col])
	require.NotNil(t, c2.handles[col])
	require.NotSame(t, c1.handles[col], c2.handles[col])
}
