package query

import "sqlkit/internal/core"

// CreateTableStmt creates a table with its primary key. Indexes and, when
// WithForeignKeys is set, foreign keys are created along with it.
type CreateTableStmt struct {
	Table           *core.Table
	IfNotExists     bool
	WithForeignKeys bool
}

func CreateTable(t *core.Table) *CreateTableStmt { return &CreateTableStmt{Table: t} }

// DropTableStmt drops a table.
type DropTableStmt struct {
	Name     string
	IfExists bool
}

func DropTable(name string) *DropTableStmt { return &DropTableStmt{Name: name} }

// AlterAction is one change applied by ALTER TABLE.
type AlterAction interface {
	alterAction()
}

type AddColumnAction struct{ Column *core.Column }
type DropColumnAction struct{ Name string }
type ModifyColumnAction struct{ From, To *core.Column }
type RenameColumnAction struct{ From, To string }
type AddPrimaryKeyAction struct{ PrimaryKey *core.PrimaryKey }
type DropPrimaryKeyAction struct{ PrimaryKey *core.PrimaryKey }
type AddForeignKeyAction struct{ ForeignKey *core.ForeignKey }
type DropForeignKeyAction struct{ ForeignKey *core.ForeignKey }

// SetCommentAction replaces the table comment.
type SetCommentAction struct{ Comment string }

// SetEngineAction changes the storage engine on databases that have one.
type SetEngineAction struct{ Engine string }

func (*AddColumnAction) alterAction()      {}
func (*DropColumnAction) alterAction()     {}
func (*ModifyColumnAction) alterAction()   {}
func (*RenameColumnAction) alterAction()   {}
func (*AddPrimaryKeyAction) alterAction()  {}
func (*DropPrimaryKeyAction) alterAction() {}
func (*AddForeignKeyAction) alterAction()  {}
func (*DropForeignKeyAction) alterAction() {}
func (*SetCommentAction) alterAction()     {}
func (*SetEngineAction) alterAction()      {}

// AlterTableStmt applies actions to an existing table. Each action compiles
// to one or more statements of the batch.
type AlterTableStmt struct {
	Table   *core.Table
	Actions []AlterAction
}

// AlterTable starts an ALTER TABLE. The table supplies the name and the
// context some dialects need to render column changes.
func AlterTable(t *core.Table) *AlterTableStmt { return &AlterTableStmt{Table: t} }

func (a *AlterTableStmt) add(action AlterAction) *AlterTableStmt {
	a.Actions = append(a.Actions, action)
	return a
}

func (a *AlterTableStmt) AddColumn(col *core.Column) *AlterTableStmt {
	return a.add(&AddColumnAction{Column: col})
}

func (a *AlterTableStmt) DropColumn(name string) *AlterTableStmt {
	return a.add(&DropColumnAction{Name: name})
}

func (a *AlterTableStmt) ModifyColumn(from, to *core.Column) *AlterTableStmt {
	return a.add(&ModifyColumnAction{From: from, To: to})
}

func (a *AlterTableStmt) RenameColumn(from, to string) *AlterTableStmt {
	return a.add(&RenameColumnAction{From: from, To: to})
}

func (a *AlterTableStmt) AddPrimaryKey(pk *core.PrimaryKey) *AlterTableStmt {
	return a.add(&AddPrimaryKeyAction{PrimaryKey: pk})
}

func (a *AlterTableStmt) DropPrimaryKey(pk *core.PrimaryKey) *AlterTableStmt {
	return a.add(&DropPrimaryKeyAction{PrimaryKey: pk})
}

func (a *AlterTableStmt) AddForeignKey(fk *core.ForeignKey) *AlterTableStmt {
	return a.add(&AddForeignKeyAction{ForeignKey: fk})
}

func (a *AlterTableStmt) DropForeignKey(fk *core.ForeignKey) *AlterTableStmt {
	return a.add(&DropForeignKeyAction{ForeignKey: fk})
}

func (a *AlterTableStmt) SetComment(comment string) *AlterTableStmt {
	return a.add(&SetCommentAction{Comment: comment})
}

func (a *AlterTableStmt) SetEngine(engine string) *AlterTableStmt {
	return a.add(&SetEngineAction{Engine: engine})
}

// CreateIndexStmt creates an index on Table.
type CreateIndexStmt struct {
	Table string
	Index *core.Index
}

func CreateIndex(table string, idx *core.Index) *CreateIndexStmt {
	return &CreateIndexStmt{Table: table, Index: idx}
}

// DropIndexStmt drops an index of Table.
type DropIndexStmt struct {
	Table string
	Index *core.Index
}

func DropIndex(table string, idx *core.Index) *DropIndexStmt {
	return &DropIndexStmt{Table: table, Index: idx}
}

type RenameTableStmt struct {
	From, To string
}

func RenameTable(from, to string) *RenameTableStmt { return &RenameTableStmt{From: from, To: to} }

// TruncateStmt removes all rows of Tables. Tables referencing others are
// listed first.
type TruncateStmt struct {
	Tables []string
}

func Truncate(tables ...string) *TruncateStmt { return &TruncateStmt{Tables: tables} }

func (*CreateTableStmt) Kind() Kind { return KindDDL }
func (*DropTableStmt) Kind() Kind   { return KindDDL }
func (*AlterTableStmt) Kind() Kind  { return KindDDL }
func (*CreateIndexStmt) Kind() Kind { return KindDDL }
func (*DropIndexStmt) Kind() Kind   { return KindDDL }
func (*RenameTableStmt) Kind() Kind { return KindDDL }
func (*TruncateStmt) Kind() Kind    { return KindDDL }
