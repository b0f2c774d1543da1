package apply

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// ExecError reports the statement a migration stopped at.
type ExecError struct {
	// Index is the 0-based position of the failed statement.
	Index     int
	Statement string
	// Applied counts the statements committed before the failure.
	Applied    int
	RolledBack bool
	Err        error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("statement %d failed: %v", e.Index+1, e.Err)
	if hint := Hint(e.Err); hint != "" {
		msg += " (" + hint + ")"
	}
	msg += "\n  Statement: " + truncateSQL(e.Statement, 0)
	switch {
	case e.RolledBack:
		msg += "\n  transaction rolled back, no changes were applied"
	case e.Applied > 0:
		msg += fmt.Sprintf("\n  %d statements were already applied and cannot be automatically rolled back", e.Applied)
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }

var mysqlHints = map[uint16]string{
	1050: "table already exists",
	1051: "unknown table",
	1054: "unknown column",
	1060: "duplicate column name",
	1061: "duplicate index name",
	1062: "duplicate entry violates a unique index",
	1091: "column, index or constraint does not exist",
	1146: "table does not exist",
	1215: "cannot add foreign key constraint, check referenced column types",
	1451: "rows in another table still reference this row",
	1452: "referenced row does not exist",
	1822: "referenced columns are missing an index",
}

var postgresHints = map[string]string{
	"duplicate_table":          "table already exists",
	"undefined_table":          "table does not exist",
	"undefined_column":         "unknown column",
	"duplicate_column":         "duplicate column name",
	"duplicate_object":         "object already exists",
	"unique_violation":         "duplicate entry violates a unique index",
	"foreign_key_violation":    "foreign key violation",
	"not_null_violation":       "existing rows contain NULL",
	"insufficient_privilege":   "missing privilege",
	"active_sql_transaction":   "statement cannot run inside a transaction block",
	"invalid_table_definition": "invalid table definition",
}

// Hint explains a driver error in plain words, empty when the error is
// not recognized.
func Hint(err error) string {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return mysqlHints[myErr.Number]
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return postgresHints[pqErr.Code.Name()]
	}
	return ""
}
