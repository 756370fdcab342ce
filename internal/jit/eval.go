package jit

import (
	"fmt"
	"math"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// The evaluator executes the SSA form of a finalized loop function directly
// over the caller's buffers. It supports exactly the instruction set the
// compiler and the pass pipeline can produce.

// fptr is a double* value: a position inside a float64 buffer.
type fptr struct {
	buf []float64
	off int64
}

// pptr is a double** value: a position inside the inputs pointer table.
type pptr struct {
	cols [][]float64
	off  int64
}

// cell is the storage of one alloca stack slot.
type cell struct {
	v any
}

type machine struct {
	fn   *ir.Func
	env  map[value.Value]any
	prev *ir.Block
}

// run executes fn with the given argument values and returns the i64 result.
func run(fn *ir.Func, args []any) (ret int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executing %s: %v", fn.Name(), r)
		}
	}()

	if len(args) != len(fn.Params) {
		return 0, fmt.Errorf("%s expects %d arguments, got %d", fn.Name(), len(fn.Params), len(args))
	}
	m := &machine{fn: fn, env: make(map[value.Value]any)}
	for i, p := range fn.Params {
		m.env[p] = args[i]
	}

	block := fn.Blocks[0]
	for {
		m.execPhis(block)
		for _, inst := range block.Insts {
			if _, ok := inst.(*ir.InstPhi); ok {
				continue
			}
			m.exec(inst)
		}
		switch term := block.Term.(type) {
		case *ir.TermRet:
			return m.operand(term.X).(int64), nil
		case *ir.TermBr:
			m.prev = block
			block = asBlock(term.Target)
		case *ir.TermCondBr:
			m.prev = block
			if m.operand(term.Cond).(bool) {
				block = asBlock(term.TargetTrue)
			} else {
				block = asBlock(term.TargetFalse)
			}
		default:
			return 0, fmt.Errorf("unsupported terminator %T", block.Term)
		}
	}
}

// execPhis evaluates every phi at the top of block against the predecessor we
// arrived from. All incomings are read before any phi is written so that phis
// referencing each other observe the previous block's values.
func (m *machine) execPhis(block *ir.Block) {
	var phis []*ir.InstPhi
	var vals []any
	for _, inst := range block.Insts {
		phi, ok := inst.(*ir.InstPhi)
		if !ok {
			break
		}
		phis = append(phis, phi)
		vals = append(vals, m.phiIncoming(phi))
	}
	for i, phi := range phis {
		m.env[phi] = vals[i]
	}
}

func (m *machine) phiIncoming(phi *ir.InstPhi) any {
	for _, inc := range phi.Incs {
		if asBlock(inc.Pred) == m.prev {
			return m.operand(inc.X)
		}
	}
	panic(fmt.Sprintf("phi has no incoming for predecessor %v", m.prev.Name()))
}

func (m *machine) exec(inst ir.Instruction) {
	switch n := inst.(type) {
	case *ir.InstAlloca:
		m.env[n] = &cell{}
	case *ir.InstLoad:
		m.env[n] = load(m.operand(n.Src))
	case *ir.InstStore:
		store(m.operand(n.Dst), m.operand(n.Src))
	case *ir.InstGetElementPtr:
		if len(n.Indices) != 1 {
			panic(fmt.Sprintf("unsupported gep arity %d", len(n.Indices)))
		}
		idx := m.operand(n.Indices[0]).(int64)
		switch p := m.operand(n.Src).(type) {
		case fptr:
			m.env[n] = fptr{buf: p.buf, off: p.off + idx}
		case pptr:
			m.env[n] = pptr{cols: p.cols, off: p.off + idx}
		default:
			panic(fmt.Sprintf("gep on unsupported pointer %T", p))
		}
	case *ir.InstFAdd:
		m.env[n] = m.float(n.X) + m.float(n.Y)
	case *ir.InstFSub:
		m.env[n] = m.float(n.X) - m.float(n.Y)
	case *ir.InstFMul:
		m.env[n] = m.float(n.X) * m.float(n.Y)
	case *ir.InstFDiv:
		m.env[n] = m.float(n.X) / m.float(n.Y)
	case *ir.InstFCmp:
		m.env[n] = fcmp(n.Pred, m.float(n.X), m.float(n.Y))
	case *ir.InstICmp:
		m.env[n] = icmp(n.Pred, m.operand(n.X).(int64), m.operand(n.Y).(int64))
	case *ir.InstAdd:
		m.env[n] = m.operand(n.X).(int64) + m.operand(n.Y).(int64)
	case *ir.InstAnd:
		m.env[n] = m.operand(n.X).(bool) && m.operand(n.Y).(bool)
	case *ir.InstOr:
		m.env[n] = m.operand(n.X).(bool) || m.operand(n.Y).(bool)
	default:
		panic(fmt.Sprintf("unsupported instruction %T", inst))
	}
}

func load(ptr any) any {
	switch p := ptr.(type) {
	case *cell:
		return p.v
	case fptr:
		return p.buf[p.off]
	case pptr:
		return fptr{buf: p.cols[p.off]}
	default:
		panic(fmt.Sprintf("load from unsupported pointer %T", ptr))
	}
}

func store(ptr, v any) {
	switch p := ptr.(type) {
	case *cell:
		p.v = v
	case fptr:
		p.buf[p.off] = v.(float64)
	default:
		panic(fmt.Sprintf("store to unsupported pointer %T", ptr))
	}
}

func (m *machine) float(v value.Value) float64 {
	return m.operand(v).(float64)
}

// operand resolves a value to its runtime representation: constants directly,
// everything else through the environment.
func (m *machine) operand(v value.Value) any {
	switch c := v.(type) {
	case *constant.Int:
		return c.X.Int64()
	case *constant.Float:
		return floatValue(c)
	case *constant.Undef:
		return zeroValue(c.Typ)
	}
	if got, ok := m.env[v]; ok {
		return got
	}
	panic(fmt.Sprintf("use of undefined value %v", v))
}

func floatValue(c *constant.Float) float64 {
	if c.NaN {
		return math.NaN()
	}
	f, _ := c.X.Float64()
	return f
}

// zeroValue gives undef a defined representation. Undef is only produced as a
// never-taken phi incoming during mem-to-register promotion.
func zeroValue(t types.Type) any {
	switch t.(type) {
	case *types.IntType:
		if t.Equal(types.I1) {
			return false
		}
		return int64(0)
	case *types.FloatType:
		return float64(0)
	case *types.PointerType:
		return fptr{}
	default:
		panic(fmt.Sprintf("undef of unsupported type %v", t))
	}
}

func fcmp(pred enum.FPred, x, y float64) bool {
	switch pred {
	case enum.FPredOLT:
		return x < y
	case enum.FPredOLE:
		return x <= y
	case enum.FPredOEQ:
		return x == y
	case enum.FPredONE:
		return !math.IsNaN(x) && !math.IsNaN(y) && x != y
	case enum.FPredOGT:
		return x > y
	case enum.FPredOGE:
		return x >= y
	case enum.FPredTrue:
		return true
	case enum.FPredFalse:
		return false
	default:
		panic(fmt.Sprintf("unsupported fcmp predicate %v", pred))
	}
}

func icmp(pred enum.IPred, x, y int64) bool {
	switch pred {
	case enum.IPredSLT:
		return x < y
	case enum.IPredSLE:
		return x <= y
	case enum.IPredEQ:
		return x == y
	case enum.IPredNE:
		return x != y
	case enum.IPredSGT:
		return x > y
	case enum.IPredSGE:
		return x >= y
	default:
		panic(fmt.Sprintf("unsupported icmp predicate %v", pred))
	}
}

// asBlock unwraps a branch target or phi predecessor to its basic block.
func asBlock(v any) *ir.Block {
	b, ok := v.(*ir.Block)
	if !ok {
		panic(fmt.Sprintf("expected basic block, got %T", v))
	}
	return b
}
