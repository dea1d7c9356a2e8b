package logic

import (
	"strconv"
	"strings"
)

// Node is a parsed preprocessor conditional expression.
type Node interface {
	isNode()
	String() string
}

// Ident is an identifier left over after macro expansion.
type Ident struct {
	Name string
}

func (Ident) isNode() {}
func (e Ident) String() string {
	return e.Name
}

// Number is an integer or character constant.
type Number struct {
	Value int64
}

func (Number) isNode() {}
func (e Number) String() string {
	return strconv.FormatInt(e.Value, 10)
}

// DefinedExpr is `defined X` or `defined(X)`.
type DefinedExpr struct {
	Name string
}

func (DefinedExpr) isNode() {}
func (e DefinedExpr) String() string {
	return "defined(" + e.Name + ")"
}

// UnaryOp represents unary operators.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNeg
	OpPlus
	OpCompl
)

func (op UnaryOp) String() string {
	switch op {
	case OpNot:
		return "!"
	case OpNeg:
		return "-"
	case OpPlus:
		return "+"
	case OpCompl:
		return "~"
	default:
		return "?"
	}
}

// UnaryExpr represents a unary expression.
type UnaryExpr struct {
	Op      UnaryOp
	Operand Node
}

func (UnaryExpr) isNode() {}
func (e UnaryExpr) String() string {
	return "(" + e.Op.String() + e.Operand.String() + ")"
}

// BinaryOp represents binary operators.
type BinaryOp int

const (
	_ BinaryOp = iota
	OpMul
	OpDiv
	OpMod
	OpAdd
	OpSub
	OpShl
	OpShr
	OpLt
	OpLte
	OpGt
	OpGte
	OpEq
	OpNeq
	OpBitAnd
	OpXor
	OpBitOr
	OpAnd
	OpOr
)

var binaryOpText = map[BinaryOp]string{
	OpMul:    "*",
	OpDiv:    "/",
	OpMod:    "%",
	OpAdd:    "+",
	OpSub:    "-",
	OpShl:    "<<",
	OpShr:    ">>",
	OpLt:     "<",
	OpLte:    "<=",
	OpGt:     ">",
	OpGte:    ">=",
	OpEq:     "==",
	OpNeq:    "!=",
	OpBitAnd: "&",
	OpXor:    "^",
	OpBitOr:  "|",
	OpAnd:    "&&",
	OpOr:     "||",
}

func (op BinaryOp) String() string {
	if s, ok := binaryOpText[op]; ok {
		return s
	}
	return "?"
}

// BinaryExpr represents a binary expression.
type BinaryExpr struct {
	Op    BinaryOp
	Left  Node
	Right Node
}

func (BinaryExpr) isNode() {}
func (e BinaryExpr) String() string {
	return "(" + e.Left.String() + " " + e.Op.String() + " " + e.Right.String() + ")"
}

// CondExpr is `Cond ? Then : Else`.
type CondExpr struct {
	Cond Node
	Then Node
	Else Node
}

func (CondExpr) isNode() {}
func (e CondExpr) String() string {
	return "(" + e.Cond.String() + " ? " + e.Then.String() + " : " + e.Else.String() + ")"
}

// CallExpr is an invocation of a function-like macro that was not
// expanded. Its value is unknown.
type CallExpr struct {
	Func string
	Args []Node
}

func (CallExpr) isNode() {}
func (e CallExpr) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return e.Func + "(" + strings.Join(args, ", ") + ")"
}
