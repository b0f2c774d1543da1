package query

// Kind classifies statements.
type Kind string

const (
	KindSelect Kind = "select"
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
	KindDDL    Kind = "ddl"
)

// Statement is any compilable statement.
type Statement interface {
	Kind() Kind
}

// TableName is a table reference with an optional alias.
type TableName struct {
	Name  string
	Alias string
}

// JoinKind is the join type.
type JoinKind string

const (
	InnerJoin JoinKind = "INNER JOIN"
	LeftJoin  JoinKind = "LEFT JOIN"
	RightJoin JoinKind = "RIGHT JOIN"
)

// Join is one joined table.
type Join struct {
	Kind  JoinKind
	Table TableName
	On    Expr
}

// OrderItem is one ORDER BY key.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// SelectStmt is a SELECT. Field names differ from the builder methods so
// both can be used.
type SelectStmt struct {
	Unique     bool
	Columns    []Expr
	Table      *TableName
	Joins      []Join
	Filter     Expr
	Groups     []Expr
	HavingCond Expr
	Order      []OrderItem
	RowLimit   int64
	RowOffset  int64
	// Lock requests row locks (FOR UPDATE) on dialects that support it.
	Lock bool
}

// Select starts a SELECT of the given columns. No columns selects *.
func Select(cols ...Expr) *SelectStmt {
	return &SelectStmt{Columns: cols}
}

func (*SelectStmt) Kind() Kind { return KindSelect }

func (s *SelectStmt) Distinct() *SelectStmt {
	s.Unique = true
	return s
}

// From sets the source table, with an optional alias.
func (s *SelectStmt) From(table string, alias ...string) *SelectStmt {
	s.Table = tableName(table, alias)
	return s
}

func (s *SelectStmt) Join(kind JoinKind, table, alias string, on Expr) *SelectStmt {
	s.Joins = append(s.Joins, Join{Kind: kind, Table: TableName{Name: table, Alias: alias}, On: on})
	return s
}

func (s *SelectStmt) InnerJoin(table, alias string, on Expr) *SelectStmt {
	return s.Join(InnerJoin, table, alias, on)
}

func (s *SelectStmt) LeftJoin(table, alias string, on Expr) *SelectStmt {
	return s.Join(LeftJoin, table, alias, on)
}

// Where adds conditions, combined with AND with any existing ones.
func (s *SelectStmt) Where(conds ...Expr) *SelectStmt {
	s.Filter = And(append([]Expr{s.Filter}, conds...)...)
	return s
}

func (s *SelectStmt) GroupBy(exprs ...Expr) *SelectStmt {
	s.Groups = append(s.Groups, exprs...)
	return s
}

func (s *SelectStmt) Having(cond Expr) *SelectStmt {
	s.HavingCond = And(s.HavingCond, cond)
	return s
}

func (s *SelectStmt) OrderBy(items ...OrderItem) *SelectStmt {
	s.Order = append(s.Order, items...)
	return s
}

func (s *SelectStmt) Limit(n int64) *SelectStmt {
	s.RowLimit = n
	return s
}

func (s *SelectStmt) Offset(n int64) *SelectStmt {
	s.RowOffset = n
	return s
}

func (s *SelectStmt) ForUpdate() *SelectStmt {
	s.Lock = true
	return s
}

// InsertStmt inserts literal rows or the result of a query.
type InsertStmt struct {
	Into        string
	ColumnNames []string
	Rows        [][]Expr
	Source      *SelectStmt
}

// InsertInto starts an INSERT.
func InsertInto(table string) *InsertStmt {
	return &InsertStmt{Into: table}
}

func (*InsertStmt) Kind() Kind { return KindInsert }

func (i *InsertStmt) Columns(names ...string) *InsertStmt {
	i.ColumnNames = append(i.ColumnNames, names...)
	return i
}

// Values appends a row. Plain Go values are wrapped with Lit.
func (i *InsertStmt) Values(values ...any) *InsertStmt {
	row := make([]Expr, len(values))
	for n, v := range values {
		row[n] = toExpr(v)
	}
	i.Rows = append(i.Rows, row)
	return i
}

// FromSelect inserts the rows of q.
func (i *InsertStmt) FromSelect(q *SelectStmt) *InsertStmt {
	i.Source = q
	return i
}

// Assignment is one SET item of an UPDATE.
type Assignment struct {
	Column string
	Value  Expr
}

// UpdateStmt is an UPDATE.
type UpdateStmt struct {
	Table       string
	Assignments []Assignment
	Filter      Expr
}

// Update starts an UPDATE.
func Update(table string) *UpdateStmt {
	return &UpdateStmt{Table: table}
}

func (*UpdateStmt) Kind() Kind { return KindUpdate }

// Set assigns a value to a column. Plain Go values are wrapped with Lit.
func (u *UpdateStmt) Set(column string, value any) *UpdateStmt {
	u.Assignments = append(u.Assignments, Assignment{Column: column, Value: toExpr(value)})
	return u
}

func (u *UpdateStmt) Where(conds ...Expr) *UpdateStmt {
	u.Filter = And(append([]Expr{u.Filter}, conds...)...)
	return u
}

// DeleteStmt is a DELETE.
type DeleteStmt struct {
	Table  string
	Filter Expr
}

// DeleteFrom starts a DELETE.
func DeleteFrom(table string) *DeleteStmt {
	return &DeleteStmt{Table: table}
}

func (*DeleteStmt) Kind() Kind { return KindDelete }

func (d *DeleteStmt) Where(conds ...Expr) *DeleteStmt {
	d.Filter = And(append([]Expr{d.Filter}, conds...)...)
	return d
}

func tableName(name string, alias []string) *TableName {
	t := &TableName{Name: name}
	if len(alias) > 0 {
		t.Alias = alias[0]
	}
	return t
}

func toExpr(v any) Expr {
	if e, ok := v.(Expr); ok {
		return e
	}
	return Lit(v)
}
