package apply

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver" // registers the TiDB value expression driver

	"sqlkit/internal/dialect"
)

const (
	reasonDropTable      = "DROP TABLE will permanently delete the table and all its data"
	reasonDropDatabase   = "DROP DATABASE will permanently delete the entire database"
	reasonDropColumn     = "DROP COLUMN will permanently delete the column and its data"
	reasonTruncate       = "TRUNCATE TABLE will delete all rows from the table"
	reasonDelete         = "DELETE will remove rows from the table"
	lockCreateIndex      = "CREATE INDEX may lock the table for the duration of index creation"
	lockDropIndex        = "DROP INDEX may briefly lock the table"
	lockRename           = "RENAME TABLE acquires an exclusive lock but is typically fast"
	lockTruncate         = "TRUNCATE TABLE acquires an exclusive lock and removes all data instantly"
	lockAddColumn        = "ADD COLUMN may require a table rebuild depending on MySQL version and column position"
	lockDropColumn       = "DROP COLUMN typically requires a full table rebuild and will lock the table"
	lockModifyColumn     = "MODIFY COLUMN may require a table rebuild if changing column type or size"
	lockChangeColumn     = "CHANGE COLUMN may require a table rebuild"
	lockDropForeignKey   = "DROP FOREIGN KEY may briefly lock the table"
	lockDropConstraint   = "DROP CONSTRAINT may briefly lock the table"
	lockDropPrimaryKey   = "DROP PRIMARY KEY requires a full table rebuild and will lock the table"
	lockForce            = "FORCE rebuilds the table and will lock it"
	lockAddForeignKey    = "ADD FOREIGN KEY may lock the table while validating existing data"
	lockAddIndex         = "ADD INDEX may lock the table for the duration of index creation on large tables"
	lockAddConstraint    = "ADD CONSTRAINT may lock the table while validating existing data"
	lockRenameColumn     = "RENAME COLUMN acquires an exclusive lock but is typically fast"
	defaultNonTxReason   = "DDL statement causes implicit commit"
	statementUnparseable = "UNPARSEABLE"
)

// effect describes what a statement kind does independent of its contents.
type effect struct {
	ddl         bool
	destructive string
	blocking    string
}

var statementEffects = map[string]effect{
	"CREATE TABLE":     {ddl: true},
	"DROP TABLE":       {ddl: true, destructive: reasonDropTable},
	"ALTER TABLE":      {ddl: true},
	"RENAME TABLE":     {ddl: true, blocking: lockRename},
	"TRUNCATE TABLE":   {ddl: true, destructive: reasonTruncate, blocking: lockTruncate},
	"CREATE INDEX":     {ddl: true, blocking: lockCreateIndex},
	"DROP INDEX":       {ddl: true, blocking: lockDropIndex},
	"CREATE DATABASE":  {ddl: true},
	"DROP DATABASE":    {ddl: true, destructive: reasonDropDatabase},
	"ALTER DATABASE":   {ddl: true},
	"CREATE SCHEMA":    {ddl: true},
	"DROP SCHEMA":      {ddl: true, destructive: reasonDropDatabase},
	"CREATE VIEW":      {ddl: true},
	"DROP VIEW":        {ddl: true},
	"ALTER VIEW":       {ddl: true},
	"CREATE FUNCTION":  {ddl: true},
	"DROP FUNCTION":    {ddl: true},
	"ALTER FUNCTION":   {ddl: true},
	"CREATE PROCEDURE": {ddl: true},
	"DROP PROCEDURE":   {ddl: true},
	"ALTER PROCEDURE":  {ddl: true},
	"CREATE TRIGGER":   {ddl: true},
	"DROP TRIGGER":     {ddl: true},
	"CREATE EVENT":     {ddl: true},
	"DROP EVENT":       {ddl: true},
	"ALTER EVENT":      {ddl: true},
	"CREATE SEQUENCE":  {ddl: true},
	"DROP SEQUENCE":    {ddl: true},
	"ALTER SEQUENCE":   {ddl: true},
	"COMMENT":          {ddl: true},
	"RENAME OBJECT":    {ddl: true, blocking: lockRename},
	"DELETE":           {destructive: reasonDelete},
	"INSERT":           {},
	"UPDATE":           {},
	"SELECT":           {},
}

// objectKinds are the words following CREATE, DROP or ALTER that name the
// kind of object. Modifiers such as UNIQUE or OR REPLACE are skipped.
var objectKinds = map[string]bool{
	"TABLE": true, "INDEX": true, "VIEW": true, "DATABASE": true, "SCHEMA": true,
	"FUNCTION": true, "PROCEDURE": true, "TRIGGER": true, "EVENT": true, "SEQUENCE": true,
}

var dialectLabels = map[dialect.Name]string{
	dialect.MySQL:      "MySQL",
	dialect.PostgreSQL: "PostgreSQL",
	dialect.SQLite:     "SQLite",
	dialect.MSSQL:      "SQL Server",
	dialect.Oracle:     "Oracle",
}

var stringLiteral = regexp.MustCompile(`'(?:[^']|'')*'`)

// StatementAnalysis contains the results of analyzing a SQL statement.
type StatementAnalysis struct {
	IsBlocking        bool
	BlockingReasons   []string
	IsDestructive     bool
	DestructiveReason string
	IsTransactionSafe bool
	TxUnsafeReason    string
	StatementType     string
}

func (s *StatementAnalysis) block(reason string) {
	s.IsBlocking = true
	s.BlockingReasons = append(s.BlockingReasons, reason)
}

func (s *StatementAnalysis) destroy(reason string) {
	s.IsDestructive = true
	s.DestructiveReason = reason
}

// StatementAnalyzer classifies migration statements for the preflight
// report. MySQL statements are parsed with the TiDB parser, the other
// dialects are classified by their leading keywords.
type StatementAnalyzer struct {
	helper dialect.Helper
	parser *parser.Parser
}

// NewStatementAnalyzer creates an analyzer for the dialect of h.
func NewStatementAnalyzer(h dialect.Helper) *StatementAnalyzer {
	a := &StatementAnalyzer{helper: h}
	if h.Name() == dialect.MySQL {
		a.parser = parser.New()
	}
	return a
}

// AnalyzeStatement returns the analysis of a single statement.
func (a *StatementAnalyzer) AnalyzeStatement(sql string) *StatementAnalysis {
	analysis := &StatementAnalysis{IsTransactionSafe: true}
	ddl := false
	if a.parser != nil {
		ddl = a.analyzeMySQL(sql, analysis)
	} else {
		ddl = a.analyzeKeywords(sql, analysis)
	}
	if ddl {
		a.transactionSafety(sql, analysis)
	}
	return analysis
}

// AnalyzeStatements analyzes every statement and collects the warnings into
// a PreflightResult.
func (a *StatementAnalyzer) AnalyzeStatements(statements []string, unsafeAllowed bool) *PreflightResult {
	result := &PreflightResult{IsTransactional: true}
	for _, stmt := range statements {
		analysis := a.AnalyzeStatement(stmt)
		a.addBlockingWarnings(result, analysis, stmt)
		a.addDestructiveWarning(result, analysis, stmt, unsafeAllowed)
		a.addTransactionSafety(result, analysis, stmt)
	}
	return result
}

func (a *StatementAnalyzer) label() string {
	if l, ok := dialectLabels[a.helper.Name()]; ok {
		return l
	}
	return string(a.helper.Name())
}

// transactionSafety decides whether a DDL statement can run inside a
// transaction on this dialect.
func (a *StatementAnalyzer) transactionSafety(sql string, analysis *StatementAnalysis) {
	upper := strings.ToUpper(sql)
	switch {
	case !a.helper.Capabilities().TransactionalDDL:
		analysis.IsTransactionSafe = false
		analysis.TxUnsafeReason = fmt.Sprintf("%s causes an implicit commit in %s", analysis.StatementType, a.label())
	case strings.Contains(upper, " CONCURRENTLY "):
		analysis.IsTransactionSafe = false
		analysis.TxUnsafeReason = fmt.Sprintf("%s CONCURRENTLY cannot run inside a transaction block", analysis.StatementType)
	case strings.HasSuffix(analysis.StatementType, " DATABASE"):
		analysis.IsTransactionSafe = false
		analysis.TxUnsafeReason = fmt.Sprintf("%s cannot run inside a transaction block in %s", analysis.StatementType, a.label())
	}
}

func (a *StatementAnalyzer) addBlockingWarnings(result *PreflightResult, analysis *StatementAnalysis, stmt string) {
	for _, reason := range analysis.BlockingReasons {
		result.Warnings = append(result.Warnings, Warning{
			Level:   WarnCaution,
			Message: "Potentially blocking DDL: " + reason,
			SQL:     stmt,
		})
	}
}

func (a *StatementAnalyzer) addDestructiveWarning(result *PreflightResult, analysis *StatementAnalysis, stmt string, unsafeAllowed bool) {
	if !analysis.IsDestructive {
		return
	}
	msg := analysis.DestructiveReason
	if !unsafeAllowed {
		msg += " (requires --unsafe flag)"
	}
	result.Warnings = append(result.Warnings, Warning{Level: WarnDanger, Message: msg, SQL: stmt})
}

func (a *StatementAnalyzer) addTransactionSafety(result *PreflightResult, analysis *StatementAnalysis, stmt string) {
	if analysis.IsTransactionSafe {
		return
	}
	result.IsTransactional = false
	reason := analysis.TxUnsafeReason
	if reason == "" {
		reason = defaultNonTxReason
	}
	result.NonTxReasons = append(result.NonTxReasons, reason+": "+stmt)
}

// applyEffect copies the effect of kind onto the analysis and reports
// whether the kind is DDL.
func applyEffect(kind string, analysis *StatementAnalysis) bool {
	analysis.StatementType = kind
	e, ok := statementEffects[kind]
	if !ok {
		return false
	}
	if e.destructive != "" {
		analysis.destroy(e.destructive)
	}
	if e.blocking != "" {
		analysis.block(e.blocking)
	}
	return e.ddl
}

// statementKind names a statement by its leading keywords, for example
// "CREATE INDEX" for CREATE UNIQUE INDEX.
func statementKind(sql string) string {
	words := strings.Fields(strings.ToUpper(strings.TrimSpace(sql)))
	if len(words) == 0 {
		return "OTHER"
	}
	switch verb := words[0]; verb {
	case "CREATE", "DROP", "ALTER":
		for _, w := range words[1:min(len(words), 5)] {
			if objectKinds[w] {
				return verb + " " + w
			}
		}
		return verb
	case "TRUNCATE":
		return "TRUNCATE TABLE"
	case "RENAME":
		return "RENAME TABLE"
	case "EXEC", "EXECUTE":
		if len(words) > 1 && strings.EqualFold(words[1], "SP_RENAME") {
			return "RENAME OBJECT"
		}
		return "OTHER"
	case "WITH":
		return "SELECT"
	case "INSERT", "UPDATE", "DELETE", "SELECT", "COMMENT":
		return verb
	default:
		return "OTHER"
	}
}

func (a *StatementAnalyzer) analyzeKeywords(sql string, analysis *StatementAnalysis) bool {
	kind := statementKind(sql)
	ddl := applyEffect(kind, analysis)
	if kind == "CREATE" || kind == "DROP" || kind == "ALTER" {
		ddl = true
	}
	if kind == "ALTER TABLE" {
		alterClauses(sql, analysis)
	}
	return ddl
}

// alterClauses inspects the clauses of an ALTER TABLE statement written for
// a dialect the TiDB parser does not understand.
func alterClauses(sql string, analysis *StatementAnalysis) {
	upper := " " + strings.Join(strings.Fields(strings.ToUpper(stringLiteral.ReplaceAllString(sql, "''"))), " ") + " "
	switch {
	case strings.Contains(upper, " DROP COLUMN "):
		analysis.destroy(reasonDropColumn)
		analysis.block(lockDropColumn)
	case strings.Contains(upper, " RENAME COLUMN "):
		analysis.block(lockRenameColumn)
	case strings.Contains(upper, " RENAME TO "):
		analysis.block(lockRename)
	case strings.Contains(upper, " ALTER COLUMN "), strings.Contains(upper, " MODIFY "):
		analysis.block(lockModifyColumn)
	case strings.Contains(upper, " FOREIGN KEY "):
		if strings.Contains(upper, " ADD ") {
			analysis.block(lockAddForeignKey)
		} else {
			analysis.block(lockDropForeignKey)
		}
	case strings.Contains(upper, " ADD PRIMARY KEY "), strings.Contains(upper, " UNIQUE "):
		analysis.block(lockAddIndex)
	case strings.Contains(upper, " DROP PRIMARY KEY "):
		analysis.block(lockDropPrimaryKey)
	case strings.Contains(upper, " DROP CONSTRAINT "):
		analysis.block(lockDropConstraint)
	case strings.Contains(upper, " ADD CONSTRAINT "):
		analysis.block(lockAddConstraint)
	}
}

// analyzeMySQL classifies sql from its TiDB AST. Unparseable input falls
// back to keyword classification.
func (a *StatementAnalyzer) analyzeMySQL(sql string, analysis *StatementAnalysis) bool {
	nodes, _, err := a.parser.Parse(sql, "", "")
	if err != nil || len(nodes) == 0 {
		ddl := a.analyzeKeywords(sql, analysis)
		if err != nil && analysis.StatementType == "OTHER" {
			analysis.StatementType = statementUnparseable
		}
		return ddl
	}

	switch stmt := nodes[0].(type) {
	case *ast.CreateTableStmt:
		return applyEffect("CREATE TABLE", analysis)
	case *ast.DropTableStmt:
		if stmt.IsView {
			return applyEffect("DROP VIEW", analysis)
		}
		return applyEffect("DROP TABLE", analysis)
	case *ast.CreateIndexStmt:
		return applyEffect("CREATE INDEX", analysis)
	case *ast.DropIndexStmt:
		return applyEffect("DROP INDEX", analysis)
	case *ast.CreateViewStmt:
		return applyEffect("CREATE VIEW", analysis)
	case *ast.CreateDatabaseStmt:
		return applyEffect("CREATE DATABASE", analysis)
	case *ast.DropDatabaseStmt:
		return applyEffect("DROP DATABASE", analysis)
	case *ast.AlterDatabaseStmt:
		return applyEffect("ALTER DATABASE", analysis)
	case *ast.RenameTableStmt:
		return applyEffect("RENAME TABLE", analysis)
	case *ast.TruncateTableStmt:
		return applyEffect("TRUNCATE TABLE", analysis)
	case *ast.AlterTableStmt:
		ddl := applyEffect("ALTER TABLE", analysis)
		for _, spec := range stmt.Specs {
			alterSpec(spec, analysis)
		}
		return ddl
	case *ast.DeleteStmt:
		return applyEffect("DELETE", analysis)
	case *ast.InsertStmt:
		return applyEffect("INSERT", analysis)
	case *ast.UpdateStmt:
		return applyEffect("UPDATE", analysis)
	case *ast.SelectStmt, *ast.SetOprStmt:
		return applyEffect("SELECT", analysis)
	default:
		return a.analyzeKeywords(sql, analysis)
	}
}

var alterSpecEffects = map[ast.AlterTableType]effect{
	ast.AlterTableAddColumns:     {blocking: lockAddColumn},
	ast.AlterTableDropColumn:     {destructive: reasonDropColumn, blocking: lockDropColumn},
	ast.AlterTableModifyColumn:   {blocking: lockModifyColumn},
	ast.AlterTableChangeColumn:   {blocking: lockChangeColumn},
	ast.AlterTableRenameColumn:   {blocking: lockRenameColumn},
	ast.AlterTableDropIndex:      {blocking: lockDropIndex},
	ast.AlterTableDropForeignKey: {blocking: lockDropForeignKey},
	ast.AlterTableDropPrimaryKey: {blocking: lockDropPrimaryKey},
	ast.AlterTableRenameTable:    {blocking: lockRename},
	ast.AlterTableForce:          {blocking: lockForce},
}

func alterSpec(spec *ast.AlterTableSpec, analysis *StatementAnalysis) {
	if spec.Tp == ast.AlterTableAddConstraint {
		switch {
		case spec.Constraint == nil:
			analysis.block(lockAddConstraint)
		case spec.Constraint.Tp == ast.ConstraintForeignKey:
			analysis.block(lockAddForeignKey)
		case spec.Constraint.Tp == ast.ConstraintIndex, spec.Constraint.Tp == ast.ConstraintKey,
			spec.Constraint.Tp == ast.ConstraintUniq, spec.Constraint.Tp == ast.ConstraintUniqKey,
			spec.Constraint.Tp == ast.ConstraintUniqIndex, spec.Constraint.Tp == ast.ConstraintPrimaryKey:
			analysis.block(lockAddIndex)
		default:
			analysis.block(lockAddConstraint)
		}
		return
	}
	e, ok := alterSpecEffects[spec.Tp]
	if !ok {
		return
	}
	if e.destructive != "" {
		analysis.destroy(e.destructive)
	}
	if e.blocking != "" {
		analysis.block(e.blocking)
	}
}
