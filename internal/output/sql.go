package output

import (
	"io"
	"strings"

	"sqlkit/internal/core"
	"sqlkit/internal/diff"
	"sqlkit/internal/migration"
)

type sqlFormatter struct {
	palette palette
}

// FormatDiff formats a schema diff as a text report.
func (f sqlFormatter) FormatDiff(d *diff.SchemaDiff) (string, error) {
	if d == nil {
		return "", nil
	}
	return f.palette.formatDiffText(d), nil
}

// FormatMigration formats a migration as a SQL script. Notes are written
// as comments and the rollback follows as commented out statements.
func (sqlFormatter) FormatMigration(m *migration.Migration) (string, error) {
	if m == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("-- sqlkit migration")
	if m.Dialect != "" {
		sb.WriteString(" (" + m.Dialect + ")")
	}
	sb.WriteString("\n-- Review before running in production.\n")

	writeCommentSection(&sb, "BREAKING CHANGES (manual review required)", m.BreakingNotes())
	writeCommentSection(&sb, "UNRESOLVED (cannot auto-generate safely)", m.UnresolvedNotes())
	writeCommentSection(&sb, "NOTES", m.InfoNotes())

	sqlOps := getSQLOperations(m)
	rb := normalizeStatements(m.RollbackStatements())

	if len(sqlOps) == 0 {
		sb.WriteString("\n-- No SQL statements generated.\n")
		if len(rb) > 0 {
			sb.WriteString("\n-- ROLLBACK SQL (run separately if needed)\n")
			writeRollbackAsComments(&sb, rb)
		}
		return sb.String(), nil
	}

	sb.WriteString("\n-- SQL\n")
	for _, op := range sqlOps {
		writeRiskComment(&sb, op)
		sb.WriteString(terminate(op.SQL))
		sb.WriteString("\n")
	}

	if len(rb) > 0 {
		sb.WriteString("\n-- ROLLBACK SQL (run separately)\n")
		writeRollbackAsComments(&sb, rb)
	}
	return sb.String(), nil
}

func writeRiskComment(sb *strings.Builder, op core.Operation) {
	if op.Risk != "" && op.Risk != core.RiskInfo {
		sb.WriteString("-- [" + string(op.Risk) + "]")
		if op.RequiresLock {
			sb.WriteString(" (may acquire locks)")
		}
		sb.WriteString("\n")
	}
}

// FormatRollbackSQL formats a migration's rollback statements as a
// runnable script.
func FormatRollbackSQL(m *migration.Migration) string {
	if m == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("-- sqlkit rollback\n")
	sb.WriteString("-- Run to revert the migration (review carefully).\n")

	rb := normalizeStatements(m.RollbackStatements())
	if len(rb) == 0 {
		sb.WriteString("\n-- No rollback statements generated.\n")
		return sb.String()
	}

	sb.WriteString("\n-- SQL\n")
	for _, stmt := range rb {
		sb.WriteString(stmt)
		sb.WriteString("\n")
	}
	return sb.String()
}

// WriteMigration writes the SQL script of m to w.
func WriteMigration(m *migration.Migration, w io.Writer) error {
	content, err := sqlFormatter{}.FormatMigration(m)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, content)
	return err
}

// WriteRollback writes formatted rollback SQL to the given writer.
func WriteRollback(m *migration.Migration, w io.Writer) error {
	_, err := io.WriteString(w, FormatRollbackSQL(m))
	return err
}

func getSQLOperations(m *migration.Migration) []core.Operation {
	var ops []core.Operation
	for _, op := range m.Plan() {
		if op.Kind == core.OperationSQL && strings.TrimSpace(op.SQL) != "" {
			ops = append(ops, op)
		}
	}
	return ops
}

func terminate(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if !strings.HasSuffix(stmt, ";") {
		stmt += ";"
	}
	return stmt
}

func writeCommentSection(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString("\n-- " + title + "\n")
	for _, item := range items {
		for _, line := range splitCommentLines(item) {
			if line == "" {
				continue
			}
			sb.WriteString("-- - " + line + "\n")
		}
	}
}

func splitCommentLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return lines
}

func writeRollbackAsComments(sb *strings.Builder, rollback []string) {
	for _, stmt := range rollback {
		for _, line := range splitCommentLines(stmt) {
			if line == "" {
				continue
			}
			sb.WriteString("-- " + line + "\n")
		}
	}
}
