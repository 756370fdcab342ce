package jit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rembrandb/rembrandb/internal/errors"
	"github.com/rembrandb/rembrandb/internal/parser"
	"github.com/rembrandb/rembrandb/internal/table"
)

func smallCatalog() *table.Catalog {
	catalog := table.NewCatalog()
	catalog.Register(table.NewTable("demo",
		table.NewColumn("a", []float64{1, 2, 3, 4}),
		table.NewColumn("b", []float64{10, 20, 30, 40}),
	))
	return catalog
}

func execute(t *testing.T, catalog *table.Catalog, statement string, optimize bool) (*table.Table, error) {
	t.Helper()
	query, err := parser.Parse(statement, catalog)
	require.NoError(t, err)
	return Execute(query, Options{Optimize: optimize})
}

func resultValues(t *testing.T, result *table.Table) []float64 {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Columns, 1)
	require.Equal(t, "Result", result.Columns[0].Name)
	return result.Columns[0].Data
}

func TestQueryScenarios(t *testing.T) {
	tests := []struct {
		name      string
		statement string
		expected  []float64
	}{
		{"projection", "SELECT a+b", []float64{11, 22, 33, 44}},
		{"filtered projection", "SELECT a*b WHERE a>2", []float64{90, 160}},
		{"always false filter", "SELECT a/b WHERE a<a", []float64{}},
		{"constant projection", "SELECT 2.5", []float64{2.5, 2.5, 2.5, 2.5}},
		{"conjunctive filter", "SELECT a WHERE (a>1 AND a<4)", []float64{2, 3}},
		{"disjunctive filter", "SELECT a WHERE a<2 OR a>3", []float64{1, 4}},
		{"always true filter", "SELECT a+b WHERE a>0", []float64{11, 22, 33, 44}},
		{"constant filter", "SELECT a WHERE 1<2", []float64{1, 2, 3, 4}},
		{"division", "SELECT b/a", []float64{10, 10, 10, 10}},
		{"nested arithmetic", "SELECT (a+b)*(a-b)", []float64{-99, -396, -891, -1584}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			for _, optimize := range []bool{false, true} {
				result, err := execute(t, smallCatalog(), test.statement, optimize)
				require.NoError(t, err)
				values := resultValues(t, result)
				require.Equal(t, len(test.expected), len(values), "optimize=%v", optimize)
				for i := range test.expected {
					require.Equal(t, test.expected[i], values[i], "optimize=%v row=%d", optimize, i)
				}
			}
		})
	}
}

func TestOverflowSignalsSentinel(t *testing.T) {
	catalog := table.NewCatalog()
	catalog.Register(table.NewTable("demo",
		table.NewColumn("a", []float64{1e200}),
		table.NewColumn("b", []float64{1e200}),
	))

	for _, optimize := range []bool{false, true} {
		result, err := execute(t, catalog, "SELECT a*b", optimize)
		require.Error(t, err)
		require.True(t, errors.IsOverflow(err), "optimize=%v", optimize)
		require.Nil(t, result)
	}
}

func TestOverflowAbortsBeforePartialResults(t *testing.T) {
	// The overflow row is in the middle; nothing of the batch survives.
	catalog := table.NewCatalog()
	catalog.Register(table.NewTable("demo",
		table.NewColumn("a", []float64{1, 1e200, 2}),
		table.NewColumn("b", []float64{1, 1e200, 2}),
	))

	result, err := execute(t, catalog, "SELECT a*b", false)
	require.True(t, errors.IsOverflow(err))
	require.Nil(t, result)
}

func TestNegativeInfinityPassesThrough(t *testing.T) {
	// Only +Inf is detected; -Inf flows into the result unchanged.
	catalog := table.NewCatalog()
	catalog.Register(table.NewTable("demo",
		table.NewColumn("a", []float64{1e200, 1}),
		table.NewColumn("b", []float64{1e200, 1}),
	))

	result, err := execute(t, catalog, "SELECT 0-a*b", false)
	require.NoError(t, err)
	values := resultValues(t, result)
	require.Len(t, values, 2)
	require.True(t, math.IsInf(values[0], -1))
	require.Equal(t, -1.0, values[1])
}

func TestNaNComparisonsAreFalse(t *testing.T) {
	catalog := table.NewCatalog()
	nan := math.NaN()
	catalog.Register(table.NewTable("demo",
		table.NewColumn("a", []float64{nan, 2}),
		table.NewColumn("b", []float64{1, 1}),
	))

	// NaN fails every ordered comparison, so the NaN row is filtered out.
	result, err := execute(t, catalog, "SELECT b WHERE a>0 OR a<=0", false)
	require.NoError(t, err)
	values := resultValues(t, result)
	require.Len(t, values, 1)
	require.Equal(t, 1.0, values[0])
}

func TestEmptyColumn(t *testing.T) {
	catalog := table.NewCatalog()
	catalog.Register(table.NewTable("demo",
		table.NewColumn("a", nil),
	))

	for _, optimize := range []bool{false, true} {
		result, err := execute(t, catalog, "SELECT a", optimize)
		require.NoError(t, err)
		require.Empty(t, resultValues(t, result))
	}
}

func TestDeterministicExecution(t *testing.T) {
	first, err := execute(t, smallCatalog(), "SELECT a*b WHERE a>1", true)
	require.NoError(t, err)
	second, err := execute(t, smallCatalog(), "SELECT a*b WHERE a>1", true)
	require.NoError(t, err)

	require.Equal(t, resultValues(t, first), resultValues(t, second))
}

func TestDemoTableQuery(t *testing.T) {
	catalog := table.NewCatalog()
	catalog.LoadDemo()

	result, err := execute(t, catalog, "SELECT a+b WHERE a<3", true)
	require.NoError(t, err)
	values := resultValues(t, result)
	require.Equal(t, []float64{11, 22}, values)
}
