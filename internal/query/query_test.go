package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlkit/internal/core"
)

func TestAndOr(t *testing.T) {
	a := Eq(Col("a"), Lit(1))
	b := Eq(Col("b"), Lit(2))
	c := Eq(Col("c"), Lit(3))

	assert.Nil(t, And())
	assert.Nil(t, Or(nil, nil))
	assert.Same(t, a, And(a))
	assert.Same(t, a, Or(nil, a))

	got, ok := And(And(a, b), c).(*Logical)
	require.True(t, ok)
	assert.Equal(t, OpAnd, got.Op)
	assert.Equal(t, []Expr{a, b, c}, got.Operands, "nested AND is flattened")

	mixed, ok := And(Or(a, b), c).(*Logical)
	require.True(t, ok)
	assert.Len(t, mixed.Operands, 2, "OR inside AND stays nested")

	assert.Nil(t, Not(nil))
}

func TestLitNil(t *testing.T) {
	assert.IsType(t, &NullExpr{}, Lit(nil))
	assert.IsType(t, &Literal{}, Lit(0))
}

func TestSelectBuilder(t *testing.T) {
	s := Select(Col("id"), As(CountAll(), "n")).
		From("users", "u").
		LeftJoin("orders", "o", Eq(TCol("o", "user_id"), TCol("u", "id"))).
		Where(Gt(Col("age"), P("min", core.TypeInt))).
		Where(IsNotNull(Col("email"))).
		GroupBy(Col("id")).
		OrderBy(Desc(Col("id"))).
		Limit(10).
		Offset(5).
		ForUpdate()

	assert.Equal(t, KindSelect, s.Kind())
	assert.Equal(t, &TableName{Name: "users", Alias: "u"}, s.Table)
	require.Len(t, s.Joins, 1)
	assert.Equal(t, LeftJoin, s.Joins[0].Kind)
	where, ok := s.Filter.(*Logical)
	require.True(t, ok)
	assert.Len(t, where.Operands, 2)
	assert.Equal(t, int64(10), s.RowLimit)
	assert.Equal(t, int64(5), s.RowOffset)
	assert.True(t, s.Lock)
	assert.True(t, s.Order[0].Desc)
}

func TestInsertUpdateDelete(t *testing.T) {
	ins := InsertInto("users").Columns("id", "name").Values(1, P("name", core.TypeString)).Values(2, nil)
	assert.Equal(t, KindInsert, ins.Kind())
	require.Len(t, ins.Rows, 2)
	assert.Equal(t, &Literal{Value: 1}, ins.Rows[0][0])
	assert.IsType(t, &Param{}, ins.Rows[0][1])
	assert.IsType(t, &NullExpr{}, ins.Rows[1][1])

	upd := Update("users").Set("name", "x").Where(Eq(Col("id"), Lit(1)))
	assert.Equal(t, KindUpdate, upd.Kind())
	assert.Equal(t, "name", upd.Assignments[0].Column)

	del := DeleteFrom("users").Where(nil)
	assert.Equal(t, KindDelete, del.Kind())
	assert.Nil(t, del.Filter)
}

func TestAlterTableActions(t *testing.T) {
	tbl := core.NewTable("users")
	stmt := AlterTable(tbl).
		AddColumn(&core.Column{Name: "a", Type: core.TypeInt}).
		DropColumn("b").
		RenameColumn("c", "d")

	assert.Equal(t, KindDDL, stmt.Kind())
	require.Len(t, stmt.Actions, 3)
	assert.IsType(t, &AddColumnAction{}, stmt.Actions[0])
	assert.Equal(t, &RenameColumnAction{From: "c", To: "d"}, stmt.Actions[2])
}

func TestWalkOrder(t *testing.T) {
	sub := Select(Col("user_id")).From("banned").Where(Eq(Col("reason"), P("reason", core.TypeString)))
	s := Select(Col("id")).
		From("users").
		Where(
			Eq(Col("tenant"), P("tenant", core.TypeLong)),
			InSet(Col("role"), SetP("roles", core.TypeString)),
			Not(InQuery(Col("id"), sub)),
		).
		OrderBy(Asc(Col("id")))

	var params []string
	Walk(s, func(e Expr) bool {
		switch p := e.(type) {
		case *Param:
			params = append(params, p.Name)
		case *SetParam:
			params = append(params, "set:"+p.Name)
		}
		return true
	})
	assert.Equal(t, []string{"tenant", "set:roles", "reason"}, params)
}

func TestWalkSkipsChildren(t *testing.T) {
	e := And(Eq(Col("a"), P("x", core.TypeInt)), Eq(Col("b"), P("y", core.TypeInt)))
	var seen int
	Walk(e, func(e Expr) bool {
		seen++
		_, isLogical := e.(*Logical)
		return isLogical
	})
	// the AND and its two comparisons
	assert.Equal(t, 3, seen)
}
