// Package query is a dialect independent SQL syntax tree. Statements are
// assembled with the factory functions and fluent builders of this package
// and rendered for a concrete database by package compile.
package query

import "sqlkit/internal/core"

// Expr is a value expression or condition.
type Expr interface {
	expr()
}

// Op is a binary operator.
type Op string

const (
	OpEq   Op = "="
	OpNe   Op = "<>"
	OpLt   Op = "<"
	OpLe   Op = "<="
	OpGt   Op = ">"
	OpGe   Op = ">="
	OpLike Op = "LIKE"
	OpAdd  Op = "+"
	OpSub  Op = "-"
	OpMul  Op = "*"
	OpDiv  Op = "/"
)

// LogicalOp combines conditions.
type LogicalOp string

const (
	OpAnd LogicalOp = "AND"
	OpOr  LogicalOp = "OR"
)

// Precedence levels used to decide where parentheses are required. Higher
// binds tighter.
const (
	PrecOr = iota + 1
	PrecAnd
	PrecNot
	PrecCompare
	PrecAdd
	PrecMul
	PrecAtom
)

// Precedence returns the binding strength of an operator.
func (o Op) Precedence() int {
	switch o {
	case OpAdd, OpSub:
		return PrecAdd
	case OpMul, OpDiv:
		return PrecMul
	}
	return PrecCompare
}

// ColumnRef references a column, optionally qualified by a table or alias.
type ColumnRef struct {
	Table string
	Name  string
}

// Literal is a constant rendered inline when the dialect can express it, and
// bound anonymously otherwise.
type Literal struct {
	Value any
}

// Param is a named bind parameter. Type drives value coercion at bind time;
// TypeUnknown leaves values untouched.
type Param struct {
	Name string
	Type core.DBType
}

// SetParam is a collection valued parameter. It only appears as the right
// side of IN and expands to one placeholder per element.
type SetParam struct {
	Name string
	Type core.DBType
}

// NullExpr is the NULL literal.
type NullExpr struct{}

// Star selects all columns, optionally of one table.
type Star struct {
	Table string
}

// Binary is a comparison, arithmetic or LIKE expression.
type Binary struct {
	Op    Op
	Left  Expr
	Right Expr
}

// Logical is an n-ary AND or OR.
type Logical struct {
	Op       LogicalOp
	Operands []Expr
}

// NotExpr negates a condition.
type NotExpr struct {
	Operand Expr
}

// IsNullExpr tests for NULL.
type IsNullExpr struct {
	Operand Expr
	Negate  bool
}

// InExpr tests membership in a value list, a set parameter or a subquery.
// Exactly one of Values, Set and Query is used.
type InExpr struct {
	Operand Expr
	Values  []Expr
	Set     *SetParam
	Query   *SelectStmt
	Negate  bool
}

// FuncCall is a function or aggregate call.
type FuncCall struct {
	Name     string
	Args     []Expr
	Distinct bool
}

// CastExpr converts a value to an abstract column type.
type CastExpr struct {
	Operand   Expr
	Type      core.DBType
	Size      int
	Precision int
}

// ExistsExpr tests whether a subquery returns rows.
type ExistsExpr struct {
	Query  *SelectStmt
	Negate bool
}

// SubqueryExpr is a scalar subquery.
type SubqueryExpr struct {
	Query *SelectStmt
}

// Aliased names an expression in a select list.
type Aliased struct {
	Expr  Expr
	Alias string
}

func (*ColumnRef) expr()    {}
func (*Literal) expr()      {}
func (*Param) expr()        {}
func (*SetParam) expr()     {}
func (*NullExpr) expr()     {}
func (*Star) expr()         {}
func (*Binary) expr()       {}
func (*Logical) expr()      {}
func (*NotExpr) expr()      {}
func (*IsNullExpr) expr()   {}
func (*InExpr) expr()       {}
func (*FuncCall) expr()     {}
func (*CastExpr) expr()     {}
func (*ExistsExpr) expr()   {}
func (*SubqueryExpr) expr() {}
func (*Aliased) expr()      {}
