package jit

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/stretchr/testify/require"

	"github.com/rembrandb/rembrandb/internal/compiler"
	"github.com/rembrandb/rembrandb/internal/parser"
	"github.com/rembrandb/rembrandb/internal/table"
)

func TestPipelineOrder(t *testing.T) {
	names := []string{}
	for _, pass := range Pipeline(ir.NewModule()) {
		names = append(names, pass.Name())
	}
	require.Equal(t, []string{
		"target-machine",
		"simplifycfg",
		"mem2reg",
		"instcombine",
		"sroa",
		"instcombine",
		"jump-threading",
		"instcombine",
		"reassociate",
		"early-cse",
		"loop-idiom",
		"loop-rotate",
		"licm",
		"loop-unswitch",
		"instcombine",
		"indvars",
		"loop-deletion",
		"loop-unroll",
		"loop-vectorize",
		"instcombine",
		"gvn",
		"memcpyopt",
		"sccp",
		"instcombine",
		"slp-vectorizer",
		"adce",
		"instcombine",
	}, names)
}

func compileQuery(t *testing.T, statement string) *compiler.Compiled {
	t.Helper()
	catalog := table.NewCatalog()
	catalog.Register(table.NewTable("demo",
		table.NewColumn("a", []float64{1, 2, 3, 4}),
		table.NewColumn("b", []float64{10, 20, 30, 40}),
	))
	query, err := parser.Parse(statement, catalog)
	require.NoError(t, err)
	return compiler.New(query).Compile()
}

func countInsts[T ir.Instruction](f *ir.Func) int {
	n := 0
	for _, block := range f.Blocks {
		for _, inst := range block.Insts {
			if _, ok := inst.(T); ok {
				n++
			}
		}
	}
	return n
}

func TestMem2RegRemovesAllStackSlots(t *testing.T) {
	for _, statement := range []string{"SELECT a+b", "SELECT a*b WHERE a>2"} {
		compiled := compileQuery(t, statement)
		require.Greater(t, countInsts[*ir.InstAlloca](compiled.Func), 0)

		Optimize(compiled.Module, compiled.Func)
		require.Zero(t, countInsts[*ir.InstAlloca](compiled.Func), statement)
		require.Greater(t, countInsts[*ir.InstPhi](compiled.Func), 0, statement)
	}
}

func TestOptimizeStampsTarget(t *testing.T) {
	compiled := compileQuery(t, "SELECT a")
	require.Empty(t, compiled.Module.TargetTriple)

	Optimize(compiled.Module, compiled.Func)
	require.NotEmpty(t, compiled.Module.TargetTriple)
}

func TestOptimizedModuleStillVerifies(t *testing.T) {
	compiled := compileQuery(t, "SELECT a*b WHERE a>1 AND b<40")
	Optimize(compiled.Module, compiled.Func)

	_, err := NewEngine(compiled.Module)
	require.NoError(t, err)
}

func TestInstCombineFoldsConstants(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.I64)
	entry := f.NewBlock("entry")
	sum := entry.NewFAdd(constant.NewFloat(types.Double, 1), constant.NewFloat(types.Double, 2))
	entry.NewFCmp(enum.FPredOLT, sum, constant.NewFloat(types.Double, 4))
	entry.NewRet(constant.NewInt(types.I64, 0))

	require.True(t, instCombine(f))
	// both the fadd and the comparison folded into constants
	require.Zero(t, countInsts[*ir.InstFAdd](f))
	require.Zero(t, countInsts[*ir.InstFCmp](f))
}

func TestSimplifyCFGRemovesUnreachable(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.I64)
	entry := f.NewBlock("entry")
	dead := f.NewBlock("dead")
	exit := f.NewBlock("exit")
	entry.NewBr(exit)
	dead.NewBr(exit)
	exit.NewRet(constant.NewInt(types.I64, 0))

	require.True(t, simplifyCFG(f))
	for _, block := range f.Blocks {
		require.NotEqual(t, "dead", block.Name())
	}
}

func TestEngineRejectsMissingTerminator(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.I64)
	f.NewBlock("entry") // no terminator

	_, err := NewEngine(m)
	require.Error(t, err)
}

func TestResolveUnknownSymbol(t *testing.T) {
	compiled := compileQuery(t, "SELECT a")
	engine, err := NewEngine(compiled.Module)
	require.NoError(t, err)

	_, err = engine.Resolve("nosuch")
	require.Error(t, err)
}
