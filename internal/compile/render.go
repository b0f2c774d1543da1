package compile

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
	"sqlkit/internal/query"
)

type segKind int

const (
	segText segKind = iota
	segParam
	segValue
	segSet
)

// segment is a piece of rendered SQL. Placeholders are numbered at bind
// time since set parameters change the number of placeholders.
type segment struct {
	kind  segKind
	text  string
	param string
	value any
	set   *setSegment
}

// setSegment is "left IN (...)" with the list supplied at bind time.
type setSegment struct {
	left   []segment
	param  string
	negate bool
}

type renderer struct {
	h    dialect.Helper
	segs []segment
}

func (r *renderer) write(parts ...string) {
	for _, s := range parts {
		if s == "" {
			continue
		}
		if n := len(r.segs); n > 0 && r.segs[n-1].kind == segText {
			r.segs[n-1].text += s
			continue
		}
		r.segs = append(r.segs, segment{kind: segText, text: s})
	}
}

func (r *renderer) ident(name string) string {
	return r.h.QuoteIdentifier(name)
}

func (r *renderer) tableRef(t query.TableName) {
	r.write(r.ident(t.Name))
	if t.Alias != "" {
		r.write(" ", r.ident(t.Alias))
	}
}

func (r *renderer) selectStmt(s *query.SelectStmt) error {
	r.write("SELECT ")
	if s.Unique {
		r.write("DISTINCT ")
	}
	if len(s.Columns) == 0 {
		r.write("*")
	}
	for i, col := range s.Columns {
		if i > 0 {
			r.write(", ")
		}
		if a, ok := col.(*query.Aliased); ok {
			if err := r.expr(a.Expr, 0); err != nil {
				return err
			}
			r.write(" AS ", r.ident(a.Alias))
			continue
		}
		if err := r.expr(col, 0); err != nil {
			return err
		}
	}

	switch {
	case s.Table != nil:
		r.write(" FROM ")
		r.tableRef(*s.Table)
	case len(s.Joins) > 0:
		return fmt.Errorf("compile: join without FROM table")
	case r.h.Name() == dialect.Oracle:
		r.write(" FROM DUAL")
	}
	for _, j := range s.Joins {
		r.write(" ", string(j.Kind), " ")
		r.tableRef(j.Table)
		if j.On == nil {
			return fmt.Errorf("compile: %s %s without ON condition", j.Kind, j.Table.Name)
		}
		r.write(" ON ")
		if err := r.expr(j.On, 0); err != nil {
			return err
		}
	}
	if err := r.clause(" WHERE ", s.Filter); err != nil {
		return err
	}
	if len(s.Groups) > 0 {
		r.write(" GROUP BY ")
		if err := r.list(s.Groups); err != nil {
			return err
		}
	}
	if err := r.clause(" HAVING ", s.HavingCond); err != nil {
		return err
	}
	if len(s.Order) > 0 {
		r.write(" ORDER BY ")
		for i, o := range s.Order {
			if i > 0 {
				r.write(", ")
			}
			if err := r.expr(o.Expr, 0); err != nil {
				return err
			}
			if o.Desc {
				r.write(" DESC")
			}
		}
	}
	if limit := r.h.LimitClause(s.RowLimit, s.RowOffset, len(s.Order) > 0); limit != "" {
		r.write(" ", limit)
	}
	if s.Lock && r.h.Capabilities().ForUpdate {
		r.write(" FOR UPDATE")
	}
	return nil
}

func (r *renderer) insert(s *query.InsertStmt) error {
	if s.Into == "" {
		return fmt.Errorf("compile: INSERT without table")
	}
	cols := ""
	if len(s.ColumnNames) > 0 {
		quoted := make([]string, len(s.ColumnNames))
		for i, c := range s.ColumnNames {
			quoted[i] = r.ident(c)
		}
		cols = " (" + strings.Join(quoted, ", ") + ")"
	}

	if s.Source != nil {
		if len(s.Rows) > 0 {
			return fmt.Errorf("compile: INSERT into %s has both VALUES and SELECT", s.Into)
		}
		r.write("INSERT INTO ", r.ident(s.Into), cols, " ")
		return r.selectStmt(s.Source)
	}
	if len(s.Rows) == 0 {
		return fmt.Errorf("compile: INSERT into %s without values", s.Into)
	}
	for i, row := range s.Rows {
		if len(s.ColumnNames) > 0 && len(row) != len(s.ColumnNames) {
			return fmt.Errorf("compile: INSERT into %s row %d has %d values for %d columns", s.Into, i+1, len(row), len(s.ColumnNames))
		}
	}

	// Oracle has no multi-row VALUES.
	if r.h.Name() == dialect.Oracle && len(s.Rows) > 1 {
		r.write("INSERT ALL")
		for _, row := range s.Rows {
			r.write(" INTO ", r.ident(s.Into), cols, " VALUES (")
			if err := r.list(row); err != nil {
				return err
			}
			r.write(")")
		}
		r.write(" SELECT 1 FROM DUAL")
		return nil
	}

	r.write("INSERT INTO ", r.ident(s.Into), cols, " VALUES ")
	for i, row := range s.Rows {
		if i > 0 {
			r.write(", ")
		}
		r.write("(")
		if err := r.list(row); err != nil {
			return err
		}
		r.write(")")
	}
	return nil
}

func (r *renderer) update(s *query.UpdateStmt) error {
	if len(s.Assignments) == 0 {
		return fmt.Errorf("compile: UPDATE %s without assignments", s.Table)
	}
	r.write("UPDATE ", r.ident(s.Table), " SET ")
	for i, a := range s.Assignments {
		if i > 0 {
			r.write(", ")
		}
		r.write(r.ident(a.Column), " = ")
		if err := r.expr(a.Value, 0); err != nil {
			return err
		}
	}
	return r.clause(" WHERE ", s.Filter)
}

func (r *renderer) delete(s *query.DeleteStmt) error {
	r.write("DELETE FROM ", r.ident(s.Table))
	return r.clause(" WHERE ", s.Filter)
}

func (r *renderer) clause(keyword string, cond query.Expr) error {
	if cond == nil {
		return nil
	}
	r.write(keyword)
	return r.expr(cond, 0)
}

func (r *renderer) list(exprs []query.Expr) error {
	for i, e := range exprs {
		if i > 0 {
			r.write(", ")
		}
		if err := r.expr(e, 0); err != nil {
			return err
		}
	}
	return nil
}

func precedence(e query.Expr) int {
	switch x := e.(type) {
	case *query.Logical:
		if x.Op == query.OpOr {
			return query.PrecOr
		}
		return query.PrecAnd
	case *query.NotExpr:
		return query.PrecNot
	case *query.Binary:
		return x.Op.Precedence()
	case *query.IsNullExpr, *query.InExpr, *query.ExistsExpr:
		return query.PrecCompare
	}
	return query.PrecAtom
}

// expr renders e, adding parentheses when e binds weaker than its context.
func (r *renderer) expr(e query.Expr, parent int) error {
	if e == nil {
		return fmt.Errorf("compile: missing expression")
	}
	wrap := precedence(e) < parent
	if wrap {
		r.write("(")
	}
	if err := r.bare(e); err != nil {
		return err
	}
	if wrap {
		r.write(")")
	}
	return nil
}

func (r *renderer) bare(e query.Expr) error {
	switch x := e.(type) {
	case *query.ColumnRef:
		if x.Table != "" {
			r.write(r.ident(x.Table), ".")
		}
		r.write(r.ident(x.Name))
	case *query.Star:
		if x.Table != "" {
			r.write(r.ident(x.Table), ".")
		}
		r.write("*")
	case *query.NullExpr:
		r.write("NULL")
	case *query.Literal:
		r.literal(x.Value)
	case *query.Param:
		r.segs = append(r.segs, segment{kind: segParam, param: x.Name})
	case *query.SetParam:
		return fmt.Errorf("compile: set parameter %q can only be used with IN", x.Name)
	case *query.Binary:
		prec := x.Op.Precedence()
		leftPrec := prec
		if prec == query.PrecCompare {
			leftPrec++
		}
		if err := r.expr(x.Left, leftPrec); err != nil {
			return err
		}
		r.write(" ", string(x.Op), " ")
		return r.expr(x.Right, prec+1)
	case *query.Logical:
		if len(x.Operands) == 0 {
			return fmt.Errorf("compile: empty %s", x.Op)
		}
		for i, op := range x.Operands {
			if i > 0 {
				r.write(" ", string(x.Op), " ")
			}
			// mixed AND/OR is always parenthesized
			if err := r.expr(op, query.PrecNot); err != nil {
				return err
			}
		}
	case *query.NotExpr:
		r.write("NOT (")
		if err := r.expr(x.Operand, 0); err != nil {
			return err
		}
		r.write(")")
	case *query.IsNullExpr:
		if err := r.expr(x.Operand, query.PrecCompare+1); err != nil {
			return err
		}
		if x.Negate {
			r.write(" IS NOT NULL")
		} else {
			r.write(" IS NULL")
		}
	case *query.InExpr:
		return r.in(x)
	case *query.FuncCall:
		r.write(strings.ToUpper(x.Name), "(")
		if x.Distinct {
			r.write("DISTINCT ")
		}
		if err := r.list(x.Args); err != nil {
			return err
		}
		r.write(")")
	case *query.CastExpr:
		typ, err := castType(r.h, x)
		if err != nil {
			return err
		}
		r.write("CAST(")
		if err := r.expr(x.Operand, 0); err != nil {
			return err
		}
		r.write(" AS ", typ, ")")
	case *query.ExistsExpr:
		if x.Negate {
			r.write("NOT ")
		}
		r.write("EXISTS (")
		if err := r.selectStmt(x.Query); err != nil {
			return err
		}
		r.write(")")
	case *query.SubqueryExpr:
		r.write("(")
		if err := r.selectStmt(x.Query); err != nil {
			return err
		}
		r.write(")")
	case *query.Aliased:
		return fmt.Errorf("compile: alias %q outside of select list", x.Alias)
	default:
		return fmt.Errorf("compile: unsupported expression %T", e)
	}
	return nil
}

func (r *renderer) in(x *query.InExpr) error {
	keyword := " IN ("
	if x.Negate {
		keyword = " NOT IN ("
	}

	switch {
	case x.Query != nil:
		if err := r.expr(x.Operand, query.PrecCompare+1); err != nil {
			return err
		}
		r.write(keyword)
		if err := r.selectStmt(x.Query); err != nil {
			return err
		}
		r.write(")")
		return nil

	case x.Set != nil:
		left := &renderer{h: r.h}
		if err := left.expr(x.Operand, query.PrecCompare+1); err != nil {
			return err
		}
		r.segs = append(r.segs, segment{kind: segSet, set: &setSegment{left: left.segs, param: x.Set.Name, negate: x.Negate}})
		return nil
	}

	if len(x.Values) == 0 {
		r.write(emptyIn(x.Negate))
		return nil
	}
	chunks := chunk(x.Values, r.h.MaxInListSize())
	if len(chunks) > 1 {
		r.write("(")
	}
	for i, values := range chunks {
		if i > 0 {
			r.write(chunkJoin(x.Negate))
		}
		if err := r.expr(x.Operand, query.PrecCompare+1); err != nil {
			return err
		}
		r.write(keyword)
		if err := r.list(values); err != nil {
			return err
		}
		r.write(")")
	}
	if len(chunks) > 1 {
		r.write(")")
	}
	return nil
}

// emptyIn is the constant condition for membership in an empty list.
func emptyIn(negate bool) string {
	if negate {
		return "1=1"
	}
	return "1=0"
}

func chunkJoin(negate bool) string {
	if negate {
		return " AND "
	}
	return " OR "
}

func chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) <= size {
		return [][]T{items}
	}
	var out [][]T
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	return append(out, items)
}

// literal inlines constants the dialect can express and binds the rest.
func (r *renderer) literal(v any) {
	switch x := v.(type) {
	case nil:
		r.write("NULL")
	case string:
		r.write(r.h.QuoteString(x))
	case bool:
		r.write(r.h.BoolLiteral(x))
	case int:
		r.write(strconv.FormatInt(int64(x), 10))
	case int8:
		r.write(strconv.FormatInt(int64(x), 10))
	case int16:
		r.write(strconv.FormatInt(int64(x), 10))
	case int32:
		r.write(strconv.FormatInt(int64(x), 10))
	case int64:
		r.write(strconv.FormatInt(x, 10))
	case uint:
		r.write(strconv.FormatUint(uint64(x), 10))
	case uint8:
		r.write(strconv.FormatUint(uint64(x), 10))
	case uint16:
		r.write(strconv.FormatUint(uint64(x), 10))
	case uint32:
		r.write(strconv.FormatUint(uint64(x), 10))
	case uint64:
		r.write(strconv.FormatUint(x, 10))
	case float32:
		r.float(float64(x), v)
	case float64:
		r.float(x, v)
	default:
		r.segs = append(r.segs, segment{kind: segValue, value: v})
	}
}

func (r *renderer) float(f float64, orig any) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		r.segs = append(r.segs, segment{kind: segValue, value: orig})
		return
	}
	r.write(strconv.FormatFloat(f, 'g', -1, 64))
}

// castType renders the target type of a CAST. MySQL only accepts a small
// set of cast targets.
func castType(h dialect.Helper, c *query.CastExpr) (string, error) {
	if h.Name() == dialect.MySQL {
		switch {
		case c.Type == core.TypeBoolean || c.Type.IsIntegral():
			return "SIGNED", nil
		case c.Type == core.TypeFloat:
			return "FLOAT", nil
		case c.Type == core.TypeDouble:
			return "DOUBLE", nil
		case c.Type == core.TypeDecimal:
			return fmt.Sprintf("DECIMAL(%d,%d)", c.Size, c.Precision), nil
		case c.Type.IsTextual():
			if c.Size > 0 && c.Type != core.TypeClob {
				return fmt.Sprintf("CHAR(%d)", c.Size), nil
			}
			return "CHAR", nil
		case c.Type == core.TypeBlob:
			return "BINARY", nil
		}
	}
	col := &core.Column{Name: "cast", Type: c.Type, Size: c.Size, Precision: c.Precision}
	if col.Type.SizeRequired() && col.Size == 0 {
		col.Size = 255
	}
	return h.SQLType(col)
}
