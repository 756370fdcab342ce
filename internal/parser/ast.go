package parser

import "github.com/rembrandb/rembrandb/internal/table"

// BinOpKind enumerates the binary operators of the operation tree.
type BinOpKind int

const (
	OpMul BinOpKind = iota
	OpDiv
	OpAdd
	OpSub
	OpLT
	OpLE
	OpEQ
	OpNE
	OpGT
	OpGE
	OpAnd
	OpOr
)

var binOpNames = map[BinOpKind]string{
	OpMul: "*", OpDiv: "/", OpAdd: "+", OpSub: "-",
	OpLT: "<", OpLE: "<=", OpEQ: "=", OpNE: "<>",
	OpGT: ">", OpGE: ">=", OpAnd: "AND", OpOr: "OR",
}

func (k BinOpKind) String() string {
	return binOpNames[k]
}

// IsComparison reports whether the operator produces a boolean from two
// float64 operands.
func (k BinOpKind) IsComparison() bool {
	return k >= OpLT && k <= OpGE
}

// IsLogical reports whether the operator combines two booleans.
func (k BinOpKind) IsLogical() bool {
	return k == OpAnd || k == OpOr
}

// Operation is a node of the expression tree handed to the compiler. The
// variants are Constant, ColumnRef and BinOp; the tree is assumed well-typed
// by the parser and the compiler does not re-check it.
type Operation interface {
	isOperation()
}

// Constant is a literal numeric value.
type Constant struct {
	Value float64
}

// ColumnRef reads the element of a column at the current row index. The
// column pointer is bound during resolution against the FROM table.
type ColumnRef struct {
	Name   string
	Column *table.Column
}

// BinOp applies a binary operator to two subtrees.
type BinOp struct {
	Kind  BinOpKind
	Left  Operation
	Right Operation
}

func (*Constant) isOperation()  {}
func (*ColumnRef) isOperation() {}
func (*BinOp) isOperation()     {}

// Query is one parsed statement: a projection tree, an optional filter tree,
// and the ordered set of distinct columns either tree references.
type Query struct {
	Table   *table.Table
	Columns []*table.Column
	Select  Operation
	Where   Operation
}
