package query

import "sqlkit/internal/core"

// Col references an unqualified column.
func Col(name string) *ColumnRef { return &ColumnRef{Name: name} }

// TCol references a column of a table or alias.
func TCol(table, name string) *ColumnRef { return &ColumnRef{Table: table, Name: name} }

// Lit wraps a constant. nil becomes NULL.
func Lit(v any) Expr {
	if v == nil {
		return &NullExpr{}
	}
	return &Literal{Value: v}
}

// P declares a named parameter of the given type.
func P(name string, t core.DBType) *Param { return &Param{Name: name, Type: t} }

// SetP declares a collection parameter of the given element type.
func SetP(name string, t core.DBType) *SetParam { return &SetParam{Name: name, Type: t} }

// Null is the NULL literal.
func Null() Expr { return &NullExpr{} }

// All selects every column; with a table argument only that table's columns.
func All(table ...string) *Star {
	if len(table) > 0 {
		return &Star{Table: table[0]}
	}
	return &Star{}
}

// As names an expression in the select list.
func As(e Expr, alias string) Expr { return &Aliased{Expr: e, Alias: alias} }

func bin(op Op, l, r Expr) Expr { return &Binary{Op: op, Left: l, Right: r} }

func Eq(l, r Expr) Expr   { return bin(OpEq, l, r) }
func Ne(l, r Expr) Expr   { return bin(OpNe, l, r) }
func Lt(l, r Expr) Expr   { return bin(OpLt, l, r) }
func Le(l, r Expr) Expr   { return bin(OpLe, l, r) }
func Gt(l, r Expr) Expr   { return bin(OpGt, l, r) }
func Ge(l, r Expr) Expr   { return bin(OpGe, l, r) }
func Like(l, r Expr) Expr { return bin(OpLike, l, r) }
func Add(l, r Expr) Expr  { return bin(OpAdd, l, r) }
func Sub(l, r Expr) Expr  { return bin(OpSub, l, r) }
func Mul(l, r Expr) Expr  { return bin(OpMul, l, r) }
func Div(l, r Expr) Expr  { return bin(OpDiv, l, r) }

// And combines conditions. nil operands are skipped, nested ANDs are
// flattened. No operands yield nil, one operand yields that operand.
func And(conds ...Expr) Expr { return logical(OpAnd, conds) }

// Or is the disjunction counterpart of And.
func Or(conds ...Expr) Expr { return logical(OpOr, conds) }

func logical(op LogicalOp, conds []Expr) Expr {
	var operands []Expr
	for _, c := range conds {
		if c == nil {
			continue
		}
		if l, ok := c.(*Logical); ok && l.Op == op {
			operands = append(operands, l.Operands...)
			continue
		}
		operands = append(operands, c)
	}
	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	}
	return &Logical{Op: op, Operands: operands}
}

// Not negates a condition. Not(nil) is nil.
func Not(e Expr) Expr {
	if e == nil {
		return nil
	}
	return &NotExpr{Operand: e}
}

func IsNull(e Expr) Expr    { return &IsNullExpr{Operand: e} }
func IsNotNull(e Expr) Expr { return &IsNullExpr{Operand: e, Negate: true} }

// In tests e against a fixed list of values.
func In(e Expr, values ...Expr) Expr { return &InExpr{Operand: e, Values: values} }

// NotIn is the negated form of In.
func NotIn(e Expr, values ...Expr) Expr { return &InExpr{Operand: e, Values: values, Negate: true} }

// InSet tests e against a collection parameter.
func InSet(e Expr, set *SetParam) Expr { return &InExpr{Operand: e, Set: set} }

// NotInSet is the negated form of InSet.
func NotInSet(e Expr, set *SetParam) Expr { return &InExpr{Operand: e, Set: set, Negate: true} }

// InQuery tests e against the rows of a subquery.
func InQuery(e Expr, q *SelectStmt) Expr { return &InExpr{Operand: e, Query: q} }

func Exists(q *SelectStmt) Expr    { return &ExistsExpr{Query: q} }
func NotExists(q *SelectStmt) Expr { return &ExistsExpr{Query: q, Negate: true} }

// Scalar wraps a select as a scalar value.
func Scalar(q *SelectStmt) Expr { return &SubqueryExpr{Query: q} }

// Func calls an arbitrary function.
func Func(name string, args ...Expr) *FuncCall { return &FuncCall{Name: name, Args: args} }

func Count(e Expr) Expr         { return Func("COUNT", e) }
func CountDistinct(e Expr) Expr { return &FuncCall{Name: "COUNT", Args: []Expr{e}, Distinct: true} }
func CountAll() Expr            { return Func("COUNT", &Star{}) }
func Max(e Expr) Expr           { return Func("MAX", e) }
func Min(e Expr) Expr           { return Func("MIN", e) }
func Sum(e Expr) Expr           { return Func("SUM", e) }
func Lower(e Expr) Expr         { return Func("LOWER", e) }
func Upper(e Expr) Expr         { return Func("UPPER", e) }
func Coalesce(e ...Expr) Expr   { return Func("COALESCE", e...) }

// CastTo converts e to an abstract type. size and precision are optional.
func CastTo(e Expr, t core.DBType, sizePrecision ...int) Expr {
	c := &CastExpr{Operand: e, Type: t}
	if len(sizePrecision) > 0 {
		c.Size = sizePrecision[0]
	}
	if len(sizePrecision) > 1 {
		c.Precision = sizePrecision[1]
	}
	return c
}

// Asc orders ascending by e.
func Asc(e Expr) OrderItem { return OrderItem{Expr: e} }

// Desc orders descending by e.
func Desc(e Expr) OrderItem { return OrderItem{Expr: e, Desc: true} }
