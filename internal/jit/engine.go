// Package jit finalizes a compiled module into an executable loop and applies
// the optimization pipeline. It stands in for an MCJIT-style execution engine:
// the module is verified and its symbols indexed, and resolving a symbol
// yields a callable that runs the function's SSA form over raw buffers.
package jit

import (
	"github.com/llir/llvm/ir"
	"github.com/pkg/errors"
)

// LoopFunc is the callable signature of the generated loop:
// loop(result *double, inputs **double, size i64) -> i64.
type LoopFunc func(result []float64, inputs [][]float64, size int64) int64

// Engine owns a finalized module and resolves its functions. It lives as long
// as its output is consumed; one engine executes one compiled query.
type Engine struct {
	module *ir.Module
	funcs  map[string]*ir.Func
}

// NewEngine finalizes the module: every function is verified and registered in
// the symbol index. Verification failure means the builder emitted a
// malformed CFG and is unrecoverable for this module.
func NewEngine(module *ir.Module) (*Engine, error) {
	e := &Engine{
		module: module,
		funcs:  make(map[string]*ir.Func, len(module.Funcs)),
	}
	for _, f := range module.Funcs {
		if err := verify(f); err != nil {
			return nil, errors.Wrapf(err, "verifying %s", f.Name())
		}
		e.funcs[f.Name()] = f
	}
	return e, nil
}

// Resolve returns the callable loop for the named symbol.
func (e *Engine) Resolve(name string) (LoopFunc, error) {
	fn, ok := e.funcs[name]
	if !ok {
		return nil, errors.Errorf("symbol %q not found in module", name)
	}
	if len(fn.Params) != 3 {
		return nil, errors.Errorf("symbol %q has %d parameters, want 3", name, len(fn.Params))
	}
	return func(result []float64, inputs [][]float64, size int64) int64 {
		ret, err := run(fn, []any{fptr{buf: result}, pptr{cols: inputs}, size})
		if err != nil {
			// A malformed function is an infrastructure failure, not a user
			// error; it must not be reachable past verification.
			panic(err)
		}
		return ret
	}, nil
}

// verify checks the structural invariants the evaluator relies on: at least
// one block, and a terminator closing every block.
func verify(f *ir.Func) error {
	if len(f.Blocks) == 0 {
		return errors.New("function has no basic blocks")
	}
	for _, block := range f.Blocks {
		if block.Term == nil {
			return errors.Errorf("block %q has no terminator", block.Name())
		}
	}
	return nil
}
