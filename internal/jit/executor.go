package jit

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rembrandb/rembrandb/internal/compiler"
	"github.com/rembrandb/rembrandb/internal/errors"
	"github.com/rembrandb/rembrandb/internal/parser"
	"github.com/rembrandb/rembrandb/internal/table"
)

// Options controls one compile+execute cycle.
type Options struct {
	Optimize bool      // run the optimization pipeline
	DumpIR   bool      // print the module before execution
	Out      io.Writer // destination for the IR dump and timing line
}

// Execute compiles the query, finalizes it into an engine, runs the loop over
// the column buffers and wraps the output in a single-column result table.
// The compiled module and its engine are dropped once the result is
// materialized.
//
// Engine creation and symbol resolution failures are infrastructure faults
// and abort the process.
func Execute(query *parser.Query, opts Options) (*table.Table, error) {
	start := time.Now()

	compiled := compiler.New(query).Compile()
	log := logrus.WithField("compile_id", compiled.ID)

	if opts.Optimize {
		Optimize(compiled.Module, compiled.Func)
	}
	if opts.DumpIR && opts.Out != nil {
		fmt.Fprintln(opts.Out, compiled.Module.String())
	}

	engine, err := NewEngine(compiled.Module)
	if err != nil {
		logrus.Fatalf("failed to create execution engine: %v", err)
	}
	loop, err := engine.Resolve(compiler.LoopFuncName)
	if err != nil {
		logrus.Fatalf("failed to get function pointer: %v", err)
	}

	elapsed := time.Since(start)
	log.WithField("elapsed", elapsed).Debug("query compiled")
	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Compilation: %f seconds\n", elapsed.Seconds())
	}

	inputs := make([][]float64, len(compiled.Columns))
	for i, col := range compiled.Columns {
		inputs[i] = col.Data
	}
	// The result can never exceed the scanned row count.
	result := make([]float64, compiled.Rows)

	count := loop(result, inputs, int64(compiled.Rows))
	if count == compiler.OverflowCode {
		return nil, errors.NewOverflowError()
	}
	return table.NewTable("Result", table.NewColumn("Result", result[:count])), nil
}
