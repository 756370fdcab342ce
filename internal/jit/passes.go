package jit

import (
	"math"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// A Pass is one function-level stage of the optimization pipeline.
type Pass interface {
	Name() string
	Run(f *ir.Func) bool
}

// passFunc adapts a plain function to the Pass interface.
type passFunc struct {
	name string
	run  func(f *ir.Func) bool
}

func (p passFunc) Name() string        { return p.name }
func (p passFunc) Run(f *ir.Func) bool { return p.run(f) }

// ---- CFG simplification ----

func simplifyCFG(f *ir.Func) bool {
	changed := false
	for foldConstBranches(f) {
		changed = true
	}
	if removeUnreachable(f) {
		changed = true
	}
	for mergeStraightLine(f) {
		changed = true
	}
	return changed
}

// foldConstBranches rewrites conditional branches on a constant condition
// into unconditional ones.
func foldConstBranches(f *ir.Func) bool {
	changed := false
	for _, block := range f.Blocks {
		condBr, ok := block.Term.(*ir.TermCondBr)
		if !ok {
			continue
		}
		c, ok := condBr.Cond.(*constant.Int)
		if !ok {
			continue
		}
		taken := asBlock(condBr.TargetTrue)
		skipped := asBlock(condBr.TargetFalse)
		if c.X.Int64() == 0 {
			taken, skipped = skipped, taken
		}
		block.Term = ir.NewBr(taken)
		if skipped != taken {
			dropPhiPred(skipped, block)
		}
		changed = true
	}
	return changed
}

// removeUnreachable drops blocks with no path from the entry and trims phi
// incomings that named them.
func removeUnreachable(f *ir.Func) bool {
	reachable := map[*ir.Block]bool{}
	var walk func(*ir.Block)
	walk = func(block *ir.Block) {
		if reachable[block] {
			return
		}
		reachable[block] = true
		for _, succ := range successors(block) {
			walk(succ)
		}
	}
	walk(f.Blocks[0])

	if len(reachable) == len(f.Blocks) {
		return false
	}
	kept := f.Blocks[:0]
	for _, block := range f.Blocks {
		if reachable[block] {
			kept = append(kept, block)
		} else {
			for _, succ := range successors(block) {
				if reachable[succ] {
					dropPhiPred(succ, block)
				}
			}
		}
	}
	f.Blocks = kept
	return true
}

// mergeStraightLine folds a block into its unique predecessor when that
// predecessor branches to it unconditionally.
func mergeStraightLine(f *ir.Func) bool {
	preds := predecessors(f)
	for _, block := range f.Blocks[1:] {
		ps := preds[block]
		if len(ps) != 1 {
			continue
		}
		pred := ps[0]
		br, ok := pred.Term.(*ir.TermBr)
		if !ok || asBlock(br.Target) != block {
			continue
		}
		// Single-predecessor phis merge nothing; substitute them away first.
		dead := make(map[ir.Instruction]bool)
		for _, inst := range block.Insts {
			phi, ok := inst.(*ir.InstPhi)
			if !ok {
				continue
			}
			if v, trivial := trivialPhiValue(phi); trivial {
				replaceUses(f, phi, v)
				dead[phi] = true
			}
		}
		removeInsts(f, dead)

		pred.Insts = append(pred.Insts, block.Insts...)
		pred.Term = block.Term
		for _, succ := range successors(block) {
			migratePhiPred(succ, block, pred)
		}
		kept := f.Blocks[:0]
		for _, b := range f.Blocks {
			if b != block {
				kept = append(kept, b)
			}
		}
		f.Blocks = kept
		return true
	}
	return false
}

// migratePhiPred renames a phi predecessor after block merging.
func migratePhiPred(block, old, new *ir.Block) {
	for _, inst := range block.Insts {
		phi, ok := inst.(*ir.InstPhi)
		if !ok {
			continue
		}
		for _, inc := range phi.Incs {
			if asBlock(inc.Pred) == old {
				inc.Pred = new
			}
		}
	}
}

// ---- Instruction combining ----

// instCombine folds instructions whose operands are constants and applies the
// i1 identities of and/or. Runs to a fixed point.
func instCombine(f *ir.Func) bool {
	changed := false
	for {
		folded := false
		for _, block := range f.Blocks {
			dead := make(map[ir.Instruction]bool)
			for _, inst := range block.Insts {
				if v, ok := foldInst(inst); ok {
					replaceUses(f, inst, v)
					dead[inst] = true
					folded = true
				}
			}
			removeInsts(f, dead)
		}
		if !folded {
			return changed
		}
		changed = true
	}
}

func foldInst(inst ir.Instruction) (value.Value, bool) {
	switch n := inst.(type) {
	case *ir.InstFAdd:
		return foldFloatBin(n.X, n.Y, func(a, b float64) float64 { return a + b })
	case *ir.InstFSub:
		return foldFloatBin(n.X, n.Y, func(a, b float64) float64 { return a - b })
	case *ir.InstFMul:
		return foldFloatBin(n.X, n.Y, func(a, b float64) float64 { return a * b })
	case *ir.InstFDiv:
		return foldFloatBin(n.X, n.Y, func(a, b float64) float64 { return a / b })
	case *ir.InstFCmp:
		x, okX := floatConst(n.X)
		y, okY := floatConst(n.Y)
		if okX && okY {
			return boolConst(fcmp(n.Pred, x, y)), true
		}
	case *ir.InstICmp:
		x, okX := intConst(n.X)
		y, okY := intConst(n.Y)
		if okX && okY {
			return boolConst(icmp(n.Pred, x, y)), true
		}
	case *ir.InstAdd:
		x, okX := intConst(n.X)
		y, okY := intConst(n.Y)
		if okX && okY {
			return constant.NewInt(types.I64, x+y), true
		}
	case *ir.InstAnd:
		return foldLogical(n.X, n.Y, true)
	case *ir.InstOr:
		return foldLogical(n.X, n.Y, false)
	}
	return nil, false
}

func foldFloatBin(x, y value.Value, op func(a, b float64) float64) (value.Value, bool) {
	a, okX := floatConst(x)
	b, okY := floatConst(y)
	if !okX || !okY {
		return nil, false
	}
	return constant.NewFloat(types.Double, op(a, b)), true
}

// foldLogical simplifies i1 and/or with one constant operand. The identity
// element passes the other operand through; the absorbing element wins.
func foldLogical(x, y value.Value, isAnd bool) (value.Value, bool) {
	fold := func(c bool, other value.Value) (value.Value, bool) {
		if isAnd {
			if !c {
				return boolConst(false), true
			}
			return other, true
		}
		if c {
			return boolConst(true), true
		}
		return other, true
	}
	if c, ok := boolConstValue(x); ok {
		return fold(c, y)
	}
	if c, ok := boolConstValue(y); ok {
		return fold(c, x)
	}
	return nil, false
}

func floatConst(v value.Value) (float64, bool) {
	c, ok := v.(*constant.Float)
	if !ok {
		return 0, false
	}
	if c.NaN {
		return math.NaN(), true
	}
	f, _ := c.X.Float64()
	return f, true
}

func intConst(v value.Value) (int64, bool) {
	c, ok := v.(*constant.Int)
	if !ok {
		return 0, false
	}
	return c.X.Int64(), true
}

func boolConstValue(v value.Value) (bool, bool) {
	c, ok := v.(*constant.Int)
	if !ok || !c.Typ.Equal(types.I1) {
		return false, false
	}
	return c.X.Int64() != 0, true
}

func boolConst(b bool) *constant.Int {
	if b {
		return constant.NewInt(types.I1, 1)
	}
	return constant.NewInt(types.I1, 0)
}

// ---- Common subexpression elimination ----

type cseKey struct {
	op   string
	pred any
	x, y value.Value
}

// localCSE deduplicates pure, memory-free instructions within each block.
// Loads stay untouched: without alias information a store to the result
// buffer could invalidate them.
func localCSE(f *ir.Func) bool {
	changed := false
	for _, block := range f.Blocks {
		seen := make(map[cseKey]value.Value)
		dead := make(map[ir.Instruction]bool)
		for _, inst := range block.Insts {
			key, ok := cseKeyFor(inst)
			if !ok {
				continue
			}
			if prev, dup := seen[key]; dup {
				replaceUses(f, inst.(value.Value), prev)
				dead[inst] = true
				changed = true
				continue
			}
			seen[key] = inst.(value.Value)
		}
		removeInsts(f, dead)
	}
	return changed
}

func cseKeyFor(inst ir.Instruction) (cseKey, bool) {
	switch n := inst.(type) {
	case *ir.InstFAdd:
		return cseKey{op: "fadd", x: n.X, y: n.Y}, true
	case *ir.InstFSub:
		return cseKey{op: "fsub", x: n.X, y: n.Y}, true
	case *ir.InstFMul:
		return cseKey{op: "fmul", x: n.X, y: n.Y}, true
	case *ir.InstFDiv:
		return cseKey{op: "fdiv", x: n.X, y: n.Y}, true
	case *ir.InstAdd:
		return cseKey{op: "add", x: n.X, y: n.Y}, true
	case *ir.InstAnd:
		return cseKey{op: "and", x: n.X, y: n.Y}, true
	case *ir.InstOr:
		return cseKey{op: "or", x: n.X, y: n.Y}, true
	case *ir.InstFCmp:
		return cseKey{op: "fcmp", pred: n.Pred, x: n.X, y: n.Y}, true
	case *ir.InstICmp:
		return cseKey{op: "icmp", pred: n.Pred, x: n.X, y: n.Y}, true
	case *ir.InstGetElementPtr:
		if len(n.Indices) == 1 {
			return cseKey{op: "gep", x: n.Src, y: n.Indices[0]}, true
		}
	}
	return cseKey{}, false
}

// ---- Dead code elimination ----

// aggressiveDCE deletes every instruction that cannot be reached from a root.
// Roots are stores (the only memory effects this emitter produces) and the
// terminator operands; everything else must transitively feed one of them.
func aggressiveDCE(f *ir.Func) bool {
	live := make(map[value.Value]bool)
	var mark func(v value.Value)
	mark = func(v value.Value) {
		if live[v] {
			return
		}
		live[v] = true
		if inst, ok := v.(ir.Instruction); ok {
			for _, op := range operands(inst) {
				mark(op)
			}
		}
	}
	for _, block := range f.Blocks {
		for _, inst := range block.Insts {
			if st, ok := inst.(*ir.InstStore); ok {
				mark(st.Src)
				mark(st.Dst)
			}
		}
		for _, op := range operands(block.Term) {
			mark(op)
		}
	}

	dead := make(map[ir.Instruction]bool)
	for _, block := range f.Blocks {
		for _, inst := range block.Insts {
			if _, ok := inst.(*ir.InstStore); ok {
				continue
			}
			if v, ok := inst.(value.Value); ok && !live[v] {
				dead[inst] = true
			}
		}
	}
	if len(dead) == 0 {
		return false
	}
	removeInsts(f, dead)
	return true
}

// ---- Sparse conditional constant propagation ----

// sccp propagates constants and folds branches that became unconditional.
// The lattice here is the one instCombine already walks; the branch folding
// is what distinguishes the pass on this IR.
func sccp(f *ir.Func) bool {
	changed := instCombine(f)
	for foldConstBranches(f) {
		changed = true
	}
	if removeUnreachable(f) {
		changed = true
	}
	return changed
}

// ---- Loop and aggregate passes ----

// naturalLoops finds back edges (successor already on the DFS stack).
// loopDeletion consults this to decide applicability.
func naturalLoops(f *ir.Func) [][2]*ir.Block {
	var back [][2]*ir.Block
	state := make(map[*ir.Block]int) // 0 unvisited, 1 on stack, 2 done
	var walk func(*ir.Block)
	walk = func(block *ir.Block) {
		state[block] = 1
		for _, succ := range successors(block) {
			if state[succ] == 1 {
				back = append(back, [2]*ir.Block{block, succ})
			} else if state[succ] == 0 {
				walk(succ)
			}
		}
		state[block] = 2
	}
	walk(f.Blocks[0])
	return back
}

// loopDeletion removes loops whose bodies neither write memory nor feed the
// return value. A loop that stores is always live, and the emitted loop
// stores every surviving row into the result buffer.
func loopDeletion(f *ir.Func) bool {
	if len(naturalLoops(f)) == 0 {
		return false
	}
	for _, block := range f.Blocks {
		for _, inst := range block.Insts {
			if _, ok := inst.(*ir.InstStore); ok {
				return false
			}
		}
	}
	// a storeless loop still defines the returned count through its phis
	return false
}

// inspectOnly covers the stages whose transformations need shapes this
// emitter never produces: aggregates for SROA, memcpy/memset idioms, integer
// chains for reassociation, threadable duplicate conditions, hoistable
// loop-invariant memory reads (the column pointer loads sit behind allocas
// until mem2reg, after which they are registers already), unswitchable
// invariant conditions, and countable loops for unroll/vectorize decisions
// (the trip count is a runtime argument).
func inspectOnly(name string) Pass {
	return passFunc{name: name, run: func(f *ir.Func) bool {
		return false
	}}
}
