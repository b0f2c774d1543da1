package query

// Walk visits every expression reachable from node in the order it appears
// in rendered SQL. node is a Statement or an Expr. Returning false from fn
// skips the children of the visited expression. Subqueries are descended.
func Walk(node any, fn func(Expr) bool) {
	switch n := node.(type) {
	case nil:
	case *SelectStmt:
		walkSelect(n, fn)
	case *InsertStmt:
		for _, row := range n.Rows {
			walkAll(row, fn)
		}
		if n.Source != nil {
			walkSelect(n.Source, fn)
		}
	case *UpdateStmt:
		for _, a := range n.Assignments {
			walkExpr(a.Value, fn)
		}
		walkExpr(n.Filter, fn)
	case *DeleteStmt:
		walkExpr(n.Filter, fn)
	case Expr:
		walkExpr(n, fn)
	}
}

func walkSelect(s *SelectStmt, fn func(Expr) bool) {
	if s == nil {
		return
	}
	walkAll(s.Columns, fn)
	for _, j := range s.Joins {
		walkExpr(j.On, fn)
	}
	walkExpr(s.Filter, fn)
	walkAll(s.Groups, fn)
	walkExpr(s.HavingCond, fn)
	for _, o := range s.Order {
		walkExpr(o.Expr, fn)
	}
}

func walkAll(exprs []Expr, fn func(Expr) bool) {
	for _, e := range exprs {
		walkExpr(e, fn)
	}
}

func walkExpr(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch x := e.(type) {
	case *Binary:
		walkExpr(x.Left, fn)
		walkExpr(x.Right, fn)
	case *Logical:
		walkAll(x.Operands, fn)
	case *NotExpr:
		walkExpr(x.Operand, fn)
	case *IsNullExpr:
		walkExpr(x.Operand, fn)
	case *InExpr:
		walkExpr(x.Operand, fn)
		walkAll(x.Values, fn)
		if x.Set != nil {
			walkExpr(x.Set, fn)
		}
		walkSelect(x.Query, fn)
	case *FuncCall:
		walkAll(x.Args, fn)
	case *CastExpr:
		walkExpr(x.Operand, fn)
	case *ExistsExpr:
		walkSelect(x.Query, fn)
	case *SubqueryExpr:
		walkSelect(x.Query, fn)
	case *Aliased:
		walkExpr(x.Expr, fn)
	}
}
