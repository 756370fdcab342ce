// Package compiler translates a parsed query tree into an LLVM IR module
// containing a single fused filter+projection loop over raw column buffers.
package compiler

import (
	"math"

	"github.com/google/uuid"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/rembrandb/rembrandb/internal/parser"
	"github.com/rembrandb/rembrandb/internal/table"
)

// OverflowCode is the sentinel return value of the generated loop signaling
// that the projected expression produced +Inf. A legitimate count of 1 is
// indistinguishable from it; callers must reserve the value.
const OverflowCode = 1

// LoopFuncName is the symbol under which the generated function is registered
// in its module.
const LoopFuncName = "loop"

// Compiled is the output of one compilation: the IR module, the loop function
// inside it, and the runtime metadata the shim needs to invoke it.
type Compiled struct {
	ID      uuid.UUID
	Module  *ir.Module
	Func    *ir.Func
	Columns []*table.Column // inputs order
	Rows    int             // common column length N
}

// Compiler builds the loop function for one query. The handles table is the
// compile-scoped association between source columns and the stack slot caching
// their data pointer; it is valid only for this compilation.
type Compiler struct {
	query   *parser.Query
	handles map[*table.Column]*ir.InstAlloca
}

// New creates a compiler for a single query.
func New(query *parser.Query) *Compiler {
	return &Compiler{
		query:   query,
		handles: make(map[*table.Column]*ir.InstAlloca),
	}
}

// Compile lays out the loop CFG and lowers both operation trees into it.
//
// The emitted function has the signature
//
//	loop(result *double, inputs **double, size i64) -> i64
//
// and returns either the number of rows written to result, or OverflowCode
// when the projection produced +Inf.
func (c *Compiler) Compile() *Compiled {
	q := c.query

	m := ir.NewModule()
	double := types.Double
	doublePtr := types.NewPointer(double)
	doublePtrPtr := types.NewPointer(doublePtr)
	i64 := types.I64

	result := ir.NewParam("result", doublePtr)
	inputs := ir.NewParam("inputs", doublePtrPtr)
	size := ir.NewParam("size", i64)
	f := m.NewFunc(LoopFuncName, i64, result, inputs, size)

	entry := f.NewBlock("entry")
	condition := f.NewBlock("condition")
	var bodyCondition *ir.Block
	if q.Where != nil {
		bodyCondition = f.NewBlock("body_condition")
	}
	bodyMain := f.NewBlock("body_main")
	bodyStore := f.NewBlock("body_store")
	increment := f.NewBlock("increment")
	end := f.NewBlock("end")
	overflowError := f.NewBlock("overflow_error")

	// entry: stack slots for the row index, the result index (where-only) and
	// one cached data pointer per referenced column.
	var resultIndexAddr *ir.InstAlloca
	if q.Where != nil {
		resultIndexAddr = entry.NewAlloca(i64)
		resultIndexAddr.SetName("result_index")
		entry.NewStore(constant.NewInt(i64, 0), resultIndexAddr)
	}
	for i, col := range q.Columns {
		colPtrPtr := entry.NewGetElementPtr(doublePtr, inputs, constant.NewInt(i64, int64(i)))
		colPtr := entry.NewLoad(doublePtr, colPtrPtr)
		slot := entry.NewAlloca(doublePtr)
		slot.SetName("col." + col.Name)
		entry.NewStore(colPtr, slot)
		c.handles[col] = slot
	}
	indexAddr := entry.NewAlloca(i64)
	indexAddr.SetName("index")
	entry.NewStore(constant.NewInt(i64, 0), indexAddr)
	entry.NewBr(condition)

	// condition: index < size
	{
		index := condition.NewLoad(i64, indexAddr)
		cond := condition.NewICmp(enum.IPredSLT, index, size)
		if q.Where != nil {
			condition.NewCondBr(cond, bodyCondition, end)
		} else {
			condition.NewCondBr(cond, bodyMain, end)
		}
	}

	// body_condition: evaluate the filter, skip the row when it fails.
	if q.Where != nil {
		index := bodyCondition.NewLoad(i64, indexAddr)
		whereCond := c.lower(bodyCondition, q.Where, index)
		bodyCondition.NewCondBr(whereCond, bodyMain, increment)
	}

	// body_main: evaluate the projection and check it for +Inf.
	indexBody := bodyMain.NewLoad(i64, indexAddr)
	resultValue := c.lower(bodyMain, q.Select, indexBody)
	overflowOccurred := bodyMain.NewFCmp(enum.FPredOEQ, resultValue, constant.NewFloat(double, math.Inf(1)))
	bodyMain.NewCondBr(overflowOccurred, overflowError, bodyStore)

	// body_store: densely append the projected value.
	{
		var writeIndex value.Value = indexBody
		if q.Where != nil {
			writeIndex = bodyStore.NewLoad(i64, resultIndexAddr)
		}
		resultAddr := bodyStore.NewGetElementPtr(double, result, writeIndex)
		bodyStore.NewStore(resultValue, resultAddr)
		if q.Where != nil {
			next := bodyStore.NewAdd(writeIndex, constant.NewInt(i64, 1))
			bodyStore.NewStore(next, resultIndexAddr)
		}
		bodyStore.NewBr(increment)
	}

	// increment: index++
	{
		index := increment.NewLoad(i64, indexAddr)
		next := increment.NewAdd(index, constant.NewInt(i64, 1))
		increment.NewStore(next, indexAddr)
		increment.NewBr(condition)
	}

	// end: return the produced count.
	{
		var count value.Value
		if q.Where != nil {
			count = end.NewLoad(i64, resultIndexAddr)
		} else {
			count = end.NewLoad(i64, indexAddr)
		}
		end.NewRet(count)
	}

	overflowError.NewRet(constant.NewInt(i64, OverflowCode))

	rows := 0
	if len(q.Columns) > 0 {
		rows = q.Columns[0].Len()
	} else {
		rows = q.Table.NumRows()
	}

	return &Compiled{
		ID:      uuid.New(),
		Module:  m,
		Func:    f,
		Columns: q.Columns,
		Rows:    rows,
	}
}
