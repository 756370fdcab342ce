package repl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

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

func runShell(t *testing.T, input string, opts Options) (string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	shell := NewShell(testCatalog(), opts, strings.NewReader(input), &out, &errOut)
	shell.Start()
	return out.String(), errOut.String()
}

func TestShellExecutesStatement(t *testing.T) {
	out, errOut := runShell(t, "SELECT a+b;\n\\q\n", Options{PrintResult: true})
	require.Empty(t, errOut)
	require.Contains(t, out, "Total Runtime:")
	require.Contains(t, out, "Result")
	require.Contains(t, out, "11")
	require.Contains(t, out, "44")
}

func TestShellAccumulatesLinesUntilSemicolon(t *testing.T) {
	out, _ := runShell(t, "SELECT\na+b\nWHERE a>3;\n\\q\n", Options{PrintResult: true})
	require.Contains(t, out, "44")
}

func TestShellListsTables(t *testing.T) {
	out, _ := runShell(t, "\\d\n\\q\n", Options{})
	require.Contains(t, out, "demo (a, b): 4 rows")
}

func TestShellQuitCommands(t *testing.T) {
	for _, input := range []string{"\\q\n", "^\n", "^anything\n", ""} {
		out, errOut := runShell(t, input, Options{})
		require.Empty(t, out)
		require.Empty(t, errOut)
	}
}

func TestShellIgnoresSyntaxErrors(t *testing.T) {
	out, errOut := runShell(t, "SELEC nonsense;\nSELECT a WHERE a>3;\n\\q\n", Options{PrintResult: true})
	require.Empty(t, errOut)
	// the bad statement is skipped silently, the next one still runs
	require.Contains(t, out, "4")
	require.Equal(t, 1, strings.Count(out, "Total Runtime:"))
}

func TestShellReportsOverflow(t *testing.T) {
	catalog := table.NewCatalog()
	catalog.Register(table.NewTable("demo",
		table.NewColumn("a", []float64{1e200}),
		table.NewColumn("b", []float64{1e200}),
	))

	var out, errOut bytes.Buffer
	shell := NewShell(catalog, Options{PrintResult: true}, strings.NewReader("SELECT a*b;\n\\q\n"), &out, &errOut)
	shell.Start()

	require.Contains(t, errOut.String(), "ERROR: Overflow in calculation!")
	require.Contains(t, out.String(), "Total Runtime:")
	require.NotContains(t, out.String(), "Result")
}

func TestShellSuppressesResultPrinting(t *testing.T) {
	out, _ := runShell(t, "SELECT a;\n\\q\n", Options{PrintResult: false})
	require.Contains(t, out, "Total Runtime:")
	require.NotContains(t, out, "Result")
}

func TestShellDumpsIR(t *testing.T) {
	out, _ := runShell(t, "SELECT a;\n\\q\n", Options{DumpIR: true})
	require.Contains(t, out, "@loop")
}
