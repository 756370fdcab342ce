package compiler

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/rembrandb/rembrandb/internal/parser"
)

// lower recursively translates an operation tree into SSA values at the given
// row index, emitting straight-line instructions into block. Common
// subexpressions are emitted repeatedly; eliminating them is the optimization
// pipeline's job.
func (c *Compiler) lower(block *ir.Block, op parser.Operation, index value.Value) value.Value {
	switch n := op.(type) {
	case *parser.Constant:
		return constant.NewFloat(types.Double, n.Value)

	case *parser.ColumnRef:
		slot := c.handles[n.Column]
		if slot == nil {
			panic(fmt.Sprintf("column %q has no codegen handle", n.Name))
		}
		colPtr := block.NewLoad(types.NewPointer(types.Double), slot)
		elemPtr := block.NewGetElementPtr(types.Double, colPtr, index)
		return block.NewLoad(types.Double, elemPtr)

	case *parser.BinOp:
		left := c.lower(block, n.Left, index)
		right := c.lower(block, n.Right, index)
		switch n.Kind {
		case parser.OpMul:
			return block.NewFMul(left, right)
		case parser.OpDiv:
			return block.NewFDiv(left, right)
		case parser.OpAdd:
			return block.NewFAdd(left, right)
		case parser.OpSub:
			return block.NewFSub(left, right)
		case parser.OpLT:
			return block.NewFCmp(enum.FPredOLT, left, right)
		case parser.OpLE:
			return block.NewFCmp(enum.FPredOLE, left, right)
		case parser.OpEQ:
			return block.NewFCmp(enum.FPredOEQ, left, right)
		case parser.OpNE:
			return block.NewFCmp(enum.FPredONE, left, right)
		case parser.OpGT:
			return block.NewFCmp(enum.FPredOGT, left, right)
		case parser.OpGE:
			return block.NewFCmp(enum.FPredOGE, left, right)
		case parser.OpAnd:
			return block.NewAnd(left, right)
		case parser.OpOr:
			return block.NewOr(left, right)
		}
	}
	panic(fmt.Sprintf("cannot lower operation %T", op))
}
