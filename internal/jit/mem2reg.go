package jit

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/value"
)

// Mem-to-register promotion. Every alloca whose uses are plain loads and
// stores is rewritten into SSA form: a phi per block (maximal SSA), the
// running definition substituted for loads, then trivial and dead phis pruned
// away. On the loop skeleton this removes the index, result-index and column
// pointer slots the entry block allocates.

type mem2reg struct{}

func (mem2reg) Name() string { return "mem2reg" }

func (mem2reg) Run(f *ir.Func) bool {
	allocas := promotableAllocas(f)
	if len(allocas) == 0 {
		return false
	}
	preds := predecessors(f)
	for _, alloca := range allocas {
		promote(f, alloca, preds)
	}
	prunePhis(f)
	return true
}

// promotableAllocas collects allocas used only as load sources and store
// destinations.
func promotableAllocas(f *ir.Func) []*ir.InstAlloca {
	var allocas []*ir.InstAlloca
	for _, block := range f.Blocks {
		for _, inst := range block.Insts {
			alloca, ok := inst.(*ir.InstAlloca)
			if ok && onlyLoadStoreUses(f, alloca) {
				allocas = append(allocas, alloca)
			}
		}
	}
	return allocas
}

func onlyLoadStoreUses(f *ir.Func, alloca *ir.InstAlloca) bool {
	for _, block := range f.Blocks {
		for _, inst := range block.Insts {
			switch n := inst.(type) {
			case *ir.InstLoad:
				// load from the slot is fine
			case *ir.InstStore:
				if n.Src == value.Value(alloca) {
					return false // address escapes
				}
			default:
				for _, op := range operands(inst) {
					if op == value.Value(alloca) {
						return false
					}
				}
			}
		}
		for _, op := range operands(block.Term) {
			if op == value.Value(alloca) {
				return false
			}
		}
	}
	return true
}

// promote rewrites one alloca into SSA definitions.
func promote(f *ir.Func, alloca *ir.InstAlloca, preds map[*ir.Block][]*ir.Block) {
	entry := f.Blocks[0]

	// One placeholder phi per join-capable block; unreachable blocks and the
	// entry keep a direct definition instead.
	phis := make(map[*ir.Block]*ir.InstPhi)
	for _, block := range f.Blocks {
		if block == entry || len(preds[block]) == 0 {
			continue
		}
		phi := &ir.InstPhi{Typ: alloca.ElemType}
		phis[block] = phi
		block.Insts = append([]ir.Instruction{phi}, block.Insts...)
	}

	// Walk each block linearly, threading the running definition through
	// loads and stores of the slot.
	out := make(map[*ir.Block]value.Value, len(f.Blocks))
	dead := map[ir.Instruction]bool{alloca: true}
	for _, block := range f.Blocks {
		var cur value.Value
		if phi, ok := phis[block]; ok {
			cur = phi
		} else {
			cur = constant.NewUndef(alloca.ElemType)
		}
		for _, inst := range block.Insts {
			switch n := inst.(type) {
			case *ir.InstLoad:
				if n.Src == value.Value(alloca) {
					replaceUses(f, n, cur)
					dead[n] = true
				}
			case *ir.InstStore:
				if n.Dst == value.Value(alloca) {
					cur = n.Src
					dead[n] = true
				}
			}
		}
		out[block] = cur
	}
	removeInsts(f, dead)

	// Complete the phis now that every predecessor's outgoing definition is
	// known.
	for block, phi := range phis {
		for _, pred := range preds[block] {
			phi.Incs = append(phi.Incs, ir.NewIncoming(out[pred], pred))
		}
	}
}

// prunePhis removes trivial phis (a single distinct incoming value besides
// the phi itself) and dead phis until a fixed point.
func prunePhis(f *ir.Func) {
	for changed := true; changed; {
		changed = false
		for _, block := range f.Blocks {
			dead := make(map[ir.Instruction]bool)
			for _, inst := range block.Insts {
				phi, ok := inst.(*ir.InstPhi)
				if !ok {
					continue
				}
				if same, trivial := trivialPhiValue(phi); trivial {
					replaceUses(f, phi, same)
					dead[phi] = true
					changed = true
					continue
				}
				if !hasUses(f, phi) {
					dead[phi] = true
					changed = true
				}
			}
			removeInsts(f, dead)
		}
	}
}

// trivialPhiValue reports the unique incoming value of a phi that merges only
// one definition (self-references excluded).
func trivialPhiValue(phi *ir.InstPhi) (value.Value, bool) {
	var same value.Value
	for _, inc := range phi.Incs {
		if inc.X == value.Value(phi) {
			continue
		}
		if same != nil && inc.X != same {
			return nil, false
		}
		same = inc.X
	}
	if same == nil {
		return constant.NewUndef(phi.Typ), true
	}
	return same, true
}
