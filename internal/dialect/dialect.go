// Package dialect maps the abstract schema model onto the SQL syntax of a
// concrete database. Every supported database registers a Helper which the
// statement compiler, the migration generator and schema extraction use to
// quote names, render types and build DDL fragments.
package dialect

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"sqlkit/internal/core"
)

// Name identifies a supported SQL dialect.
type Name string

const (
	MySQL      Name = "mysql"
	PostgreSQL Name = "postgresql"
	SQLite     Name = "sqlite"
	MSSQL      Name = "mssql"
	Oracle     Name = "oracle"
)

// ParseName resolves a dialect name, accepting the common aliases.
func ParseName(s string) (Name, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mysql", "mariadb":
		return MySQL, nil
	case "postgresql", "postgres", "pg":
		return PostgreSQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mssql", "sqlserver":
		return MSSQL, nil
	case "oracle":
		return Oracle, nil
	}
	return "", fmt.Errorf("unsupported dialect %q", s)
}

// Capabilities describes which schema changes a database can express.
type Capabilities struct {
	// TransactionalDDL is set when DDL statements can be rolled back.
	TransactionalDDL bool
	// AlterColumn is set when a column type or nullability can be changed in place.
	AlterColumn bool
	// AlterConstraints is set when primary and foreign keys can be added or
	// dropped on an existing table.
	AlterConstraints bool
	DropColumn       bool
	RenameColumn     bool
	// IfExists covers DROP TABLE IF EXISTS, IfNotExists covers CREATE TABLE IF NOT EXISTS.
	IfExists    bool
	IfNotExists bool
	ForUpdate   bool
}

// ColumnType is the abstract type recovered from a database type name.
type ColumnType struct {
	Type          core.DBType
	Size          int
	Precision     int
	Binary        bool
	AutoIncrement bool
}

// Apply copies the recovered type into a column.
func (ct ColumnType) Apply(col *core.Column) {
	col.Type = ct.Type
	col.Size = ct.Size
	col.Precision = ct.Precision
	col.Binary = ct.Binary
	if ct.AutoIncrement {
		col.AutoIncrement = true
	}
}

// Helper is the per-database rendering boundary. Statement text is
// assembled by the compiler; everything that differs between databases goes
// through a Helper.
type Helper interface {
	Name() Name
	// DriverName is the database/sql driver registered for this dialect.
	DriverName() string
	// MaxIdentifierLength is the longest allowed identifier, 0 when unlimited.
	MaxIdentifierLength() int
	Capabilities() Capabilities
	// MaxInListSize is the maximum number of IN list elements, 0 when unlimited.
	MaxInListSize() int

	QuoteIdentifier(name string) string
	QuoteString(value string) string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder(n int) string
	BoolLiteral(v bool) string

	// SQLType renders the column type including size and collation.
	SQLType(col *core.Column) (string, error)
	// ParseSQLType maps a database type name back to the abstract model.
	ParseSQLType(raw string) (ColumnType, error)
	// ConvertArg maps a coerced Go value to what the driver expects.
	ConvertArg(t core.DBType, v any) (any, error)

	// ColumnDefinition renders a column as it appears in CREATE TABLE.
	ColumnDefinition(table *core.Table, col *core.Column) (string, error)
	// InlinePrimaryKey reports whether the primary key is declared on the
	// column itself, so no table level constraint must be rendered.
	InlinePrimaryKey(table *core.Table) bool
	PrimaryKeyClause(pk *core.PrimaryKey) string
	ForeignKeyClause(fk *core.ForeignKey) string
	// TableSuffix is appended after the closing parenthesis of CREATE TABLE.
	TableSuffix(table *core.Table) string
	// CommentStatements are issued after CREATE TABLE for databases without
	// inline comments.
	CommentStatements(table *core.Table) []string
	// LimitClause renders the row limiting clause. ordered tells whether the
	// statement already has an ORDER BY clause.
	LimitClause(limit, offset int64, ordered bool) string

	AddColumn(table *core.Table, col *core.Column) ([]string, error)
	DropColumn(table, column string) (string, error)
	ModifyColumn(table *core.Table, from, to *core.Column) ([]string, error)
	RenameColumn(table, from, to string) (string, error)
	AddPrimaryKey(table string, pk *core.PrimaryKey) (string, error)
	DropPrimaryKey(table string, pk *core.PrimaryKey) (string, error)
	AddForeignKey(table string, fk *core.ForeignKey) (string, error)
	DropForeignKey(table string, fk *core.ForeignKey) (string, error)
	CreateIndex(table string, idx *core.Index) (string, error)
	DropIndex(table string, idx *core.Index) (string, error)
	RenameTable(from, to string) (string, error)
	DropTable(table string, ifExists bool) (string, error)
	// TruncateTables removes all rows of tables, which are listed
	// referencing tables first.
	TruncateTables(tables []string) ([]string, error)
}

// TableCommenter is implemented by dialects that can change the comment of
// an existing table. An empty comment removes it.
type TableCommenter interface {
	SetTableComment(table, comment string) string
}

// ErrUnsupported is matched by every UnsupportedError.
var ErrUnsupported = errors.New("operation not supported by dialect")

// UnsupportedError is returned when a dialect cannot express an operation.
type UnsupportedError struct {
	Dialect   Name
	Operation string
	Reason    string
}

func (e *UnsupportedError) Error() string {
	msg := fmt.Sprintf("%s: %s is not supported", e.Dialect, e.Operation)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

// Unsupported builds an UnsupportedError.
func Unsupported(d Name, operation, reason string) error {
	return &UnsupportedError{Dialect: d, Operation: operation, Reason: reason}
}

var (
	registry = make(map[Name]func() Helper)
	mu       sync.RWMutex
)

// Register adds a dialect constructor to the registry. Dialect packages call
// it from init.
func Register(name Name, ctor func() Helper) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = ctor
}

// Get returns a new helper for the named dialect.
func Get(name Name) (Helper, error) {
	mu.RLock()
	ctor, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported dialect %q (registered: %v)", name, Names())
	}
	return ctor(), nil
}

// Lookup parses a dialect name and returns its helper.
func Lookup(s string) (Helper, error) {
	name, err := ParseName(s)
	if err != nil {
		return nil, err
	}
	return Get(name)
}

// Names lists the registered dialects in alphabetical order.
func Names() []Name {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]Name, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
