package jit

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
)

// IR surgery helpers shared by the passes. llir carries no use lists, so use
// replacement walks every operand field of the instruction set the compiler
// can produce.

// replaceUses rewrites every operand equal to old into new, across the whole
// function.
func replaceUses(f *ir.Func, old, new value.Value) {
	swap := func(v value.Value) value.Value {
		if v == old {
			return new
		}
		return v
	}
	for _, block := range f.Blocks {
		for _, inst := range block.Insts {
			switch n := inst.(type) {
			case *ir.InstLoad:
				n.Src = swap(n.Src)
			case *ir.InstStore:
				n.Src = swap(n.Src)
				n.Dst = swap(n.Dst)
			case *ir.InstGetElementPtr:
				n.Src = swap(n.Src)
				for i := range n.Indices {
					n.Indices[i] = swap(n.Indices[i])
				}
			case *ir.InstFAdd:
				n.X, n.Y = swap(n.X), swap(n.Y)
			case *ir.InstFSub:
				n.X, n.Y = swap(n.X), swap(n.Y)
			case *ir.InstFMul:
				n.X, n.Y = swap(n.X), swap(n.Y)
			case *ir.InstFDiv:
				n.X, n.Y = swap(n.X), swap(n.Y)
			case *ir.InstAdd:
				n.X, n.Y = swap(n.X), swap(n.Y)
			case *ir.InstAnd:
				n.X, n.Y = swap(n.X), swap(n.Y)
			case *ir.InstOr:
				n.X, n.Y = swap(n.X), swap(n.Y)
			case *ir.InstFCmp:
				n.X, n.Y = swap(n.X), swap(n.Y)
			case *ir.InstICmp:
				n.X, n.Y = swap(n.X), swap(n.Y)
			case *ir.InstPhi:
				for _, inc := range n.Incs {
					inc.X = swap(inc.X)
				}
			}
		}
		switch t := block.Term.(type) {
		case *ir.TermCondBr:
			t.Cond = swap(t.Cond)
		case *ir.TermRet:
			if t.X != nil {
				t.X = swap(t.X)
			}
		}
	}
}

// operands lists the value operands of an instruction or terminator.
func operands(inst any) []value.Value {
	switch n := inst.(type) {
	case *ir.InstLoad:
		return []value.Value{n.Src}
	case *ir.InstStore:
		return []value.Value{n.Src, n.Dst}
	case *ir.InstGetElementPtr:
		ops := []value.Value{n.Src}
		return append(ops, n.Indices...)
	case *ir.InstFAdd:
		return []value.Value{n.X, n.Y}
	case *ir.InstFSub:
		return []value.Value{n.X, n.Y}
	case *ir.InstFMul:
		return []value.Value{n.X, n.Y}
	case *ir.InstFDiv:
		return []value.Value{n.X, n.Y}
	case *ir.InstAdd:
		return []value.Value{n.X, n.Y}
	case *ir.InstAnd:
		return []value.Value{n.X, n.Y}
	case *ir.InstOr:
		return []value.Value{n.X, n.Y}
	case *ir.InstFCmp:
		return []value.Value{n.X, n.Y}
	case *ir.InstICmp:
		return []value.Value{n.X, n.Y}
	case *ir.InstPhi:
		ops := make([]value.Value, 0, len(n.Incs))
		for _, inc := range n.Incs {
			ops = append(ops, inc.X)
		}
		return ops
	case *ir.TermCondBr:
		return []value.Value{n.Cond}
	case *ir.TermRet:
		if n.X != nil {
			return []value.Value{n.X}
		}
	}
	return nil
}

// hasUses reports whether v is an operand anywhere in the function.
func hasUses(f *ir.Func, v value.Value) bool {
	for _, block := range f.Blocks {
		for _, inst := range block.Insts {
			for _, op := range operands(inst) {
				if op == v {
					return true
				}
			}
		}
		for _, op := range operands(block.Term) {
			if op == v {
				return true
			}
		}
	}
	return false
}

// successors lists the blocks a block can branch to.
func successors(block *ir.Block) []*ir.Block {
	switch t := block.Term.(type) {
	case *ir.TermBr:
		return []*ir.Block{asBlock(t.Target)}
	case *ir.TermCondBr:
		return []*ir.Block{asBlock(t.TargetTrue), asBlock(t.TargetFalse)}
	default:
		return nil
	}
}

// predecessors computes the predecessor map of the function's CFG.
func predecessors(f *ir.Func) map[*ir.Block][]*ir.Block {
	preds := make(map[*ir.Block][]*ir.Block, len(f.Blocks))
	for _, block := range f.Blocks {
		for _, succ := range successors(block) {
			preds[succ] = append(preds[succ], block)
		}
	}
	return preds
}

// removeInsts drops the given instructions from their blocks.
func removeInsts(f *ir.Func, dead map[ir.Instruction]bool) {
	if len(dead) == 0 {
		return
	}
	for _, block := range f.Blocks {
		kept := block.Insts[:0]
		for _, inst := range block.Insts {
			if !dead[inst] {
				kept = append(kept, inst)
			}
		}
		block.Insts = kept
	}
}

// dropPhiPred removes the incoming for pred from every phi in block.
func dropPhiPred(block *ir.Block, pred *ir.Block) {
	for _, inst := range block.Insts {
		phi, ok := inst.(*ir.InstPhi)
		if !ok {
			continue
		}
		kept := phi.Incs[:0]
		for _, inc := range phi.Incs {
			if asBlock(inc.Pred) != pred {
				kept = append(kept, inc)
			}
		}
		phi.Incs = kept
	}
}
