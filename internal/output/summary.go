package output

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"sqlkit/internal/diff"
	"sqlkit/internal/migration"
)

type summaryFormatter struct {
	palette palette
}

type counts struct {
	added, modified, removed int
}

func (c counts) String() string {
	return fmt.Sprintf("+%s, ~%s, -%s", humanize.Comma(int64(c.added)), humanize.Comma(int64(c.modified)), humanize.Comma(int64(c.removed)))
}

// FormatDiff formats a schema diff as a compact summary.
// Example output:
//
//	Tables:       +3, ~2, -0
//	Columns:      +5, ~2, -0
//	Indexes:      +1, ~0, -2
//	Foreign keys: +1, ~0, -0
func (f summaryFormatter) FormatDiff(d *diff.SchemaDiff) (string, error) {
	if d == nil || d.IsEmpty() {
		return "No changes detected.\n", nil
	}

	var sb strings.Builder
	sb.WriteString(f.palette.header.Sprint("Schema Diff Summary") + "\n")
	sb.WriteString("===================\n\n")

	tables := counts{added: len(d.AddedTables), modified: len(d.ModifiedTables), removed: len(d.RemovedTables)}
	fmt.Fprintf(&sb, "Tables:       %s\n", tables)
	fmt.Fprintf(&sb, "Columns:      %s\n", countColumns(d))
	fmt.Fprintf(&sb, "Indexes:      %s\n", countIndexes(d))
	fmt.Fprintf(&sb, "Foreign keys: %s\n", countForeignKeys(d))

	if len(d.Warnings) > 0 {
		fmt.Fprintf(&sb, "\nWarnings:     %d\n", len(d.Warnings))
	}

	sb.WriteString("\nDetails:\n")
	for _, t := range d.AddedTables {
		sb.WriteString(f.palette.added.Sprintf("  + %s (new table)", t.Name) + "\n")
	}
	for _, t := range d.RemovedTables {
		sb.WriteString(f.palette.removed.Sprintf("  - %s (removed table)", t.Name) + "\n")
	}
	for _, td := range d.ModifiedTables {
		sb.WriteString(f.palette.changed.Sprintf("  ~ %s (%s)", td.Name, countTableChanges(td)) + "\n")
	}
	return sb.String(), nil
}

func countColumns(d *diff.SchemaDiff) counts {
	var c counts
	for _, t := range d.AddedTables {
		c.added += len(t.Columns)
	}
	for _, t := range d.RemovedTables {
		c.removed += len(t.Columns)
	}
	for _, td := range d.ModifiedTables {
		c.added += len(td.AddedColumns)
		c.removed += len(td.RemovedColumns)
		c.modified += len(td.ModifiedColumns) + len(td.RenamedColumns)
	}
	return c
}

func countIndexes(d *diff.SchemaDiff) counts {
	var c counts
	for _, t := range d.AddedTables {
		c.added += len(t.Indexes)
	}
	for _, t := range d.RemovedTables {
		c.removed += len(t.Indexes)
	}
	for _, td := range d.ModifiedTables {
		c.added += len(td.AddedIndexes)
		c.removed += len(td.RemovedIndexes)
		c.modified += len(td.ModifiedIndexes)
	}
	return c
}

func countForeignKeys(d *diff.SchemaDiff) counts {
	var c counts
	for _, t := range d.AddedTables {
		c.added += len(t.ForeignKeys)
	}
	for _, t := range d.RemovedTables {
		c.removed += len(t.ForeignKeys)
	}
	for _, td := range d.ModifiedTables {
		c.added += len(td.AddedForeignKeys)
		c.removed += len(td.RemovedForeignKeys)
	}
	return c
}

var pluralOf = map[string]string{"index": "indexes"}

// countTableChanges returns a human-readable summary of changes in a table.
func countTableChanges(td *diff.TableDiff) string {
	var parts []string
	add := func(prefix string, n int, unit string) {
		if n > 0 {
			parts = append(parts, prefix+english.Plural(n, unit, pluralOf[unit]))
		}
	}
	add("+", len(td.AddedColumns), "column")
	add("-", len(td.RemovedColumns), "column")
	add("~", len(td.ModifiedColumns), "column")
	add("", len(td.RenamedColumns), "rename")
	add("+", len(td.AddedIndexes), "index")
	add("-", len(td.RemovedIndexes), "index")
	add("~", len(td.ModifiedIndexes), "index")
	add("+", len(td.AddedForeignKeys), "foreign key")
	add("-", len(td.RemovedForeignKeys), "foreign key")
	if td.PrimaryKey != nil {
		parts = append(parts, "primary key")
	}

	if len(parts) == 0 {
		return "options changed"
	}
	return strings.Join(parts, ", ")
}

// FormatMigration formats a migration as a compact summary.
func (f summaryFormatter) FormatMigration(m *migration.Migration) (string, error) {
	if m == nil || len(m.Operations) == 0 {
		return "No migration operations.\n", nil
	}

	var sb strings.Builder

	breaking := m.BreakingNotes()
	unresolved := m.UnresolvedNotes()
	notes := m.InfoNotes()

	sb.WriteString(f.palette.header.Sprint("Migration Summary") + "\n")
	sb.WriteString("=================\n\n")

	fmt.Fprintf(&sb, "SQL Statements:      %s\n", humanize.Comma(int64(len(normalizeStatements(m.SQLStatements())))))
	fmt.Fprintf(&sb, "Rollback Statements: %s\n", humanize.Comma(int64(len(normalizeStatements(m.RollbackStatements())))))

	writeSummaryList(&sb, f.palette.removed.Sprintf("Breaking Changes: %d", len(breaking)), breaking)
	writeSummaryList(&sb, f.palette.changed.Sprintf("Unresolved Issues: %d", len(unresolved)), unresolved)
	writeSummaryList(&sb, fmt.Sprintf("Notes: %d", len(notes)), notes)

	return sb.String(), nil
}

func writeSummaryList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString("\n" + title + "\n")
	for _, item := range items {
		fmt.Fprintf(sb, "   - %s\n", item)
	}
}
