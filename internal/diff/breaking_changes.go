package diff

import (
	"fmt"

	"sqlkit/internal/core"
)

// BreakingChange is one finding of the BreakingChangeAnalyzer.
type BreakingChange struct {
	Severity    ChangeSeverity `json:"severity" yaml:"severity"`
	Description string         `json:"description" yaml:"description"`
	Table       string         `json:"table" yaml:"table"`
	Object      string         `json:"object" yaml:"object"`
	ObjectType  string         `json:"objectType" yaml:"objectType"`
}

// ChangeSeverity orders findings from harmless to data destroying.
type ChangeSeverity int

const (
	SeverityInfo ChangeSeverity = iota
	SeverityWarning
	SeverityBreaking
	SeverityCritical
)

func (s ChangeSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityBreaking:
		return "BREAKING"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the severity name in JSON and YAML output.
func (s ChangeSeverity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Risk maps the severity onto the risk of a migration operation.
func (s ChangeSeverity) Risk() core.OperationRisk {
	switch s {
	case SeverityWarning:
		return core.RiskWarning
	case SeverityBreaking:
		return core.RiskBreaking
	case SeverityCritical:
		return core.RiskCritical
	default:
		return core.RiskInfo
	}
}

// BreakingChangeAnalyzer collects the changes of a diff that can fail on
// existing data or lose it.
type BreakingChangeAnalyzer struct {
	Changes []BreakingChange
}

func NewBreakingChangeAnalyzer() *BreakingChangeAnalyzer {
	return &BreakingChangeAnalyzer{}
}

func (a *BreakingChangeAnalyzer) Analyze(diff *SchemaDiff) []BreakingChange {
	if diff == nil {
		return nil
	}

	a.analyzeRemovedTables(diff.RemovedTables)
	a.analyzeModifiedTables(diff.ModifiedTables)

	return a.Changes
}

// MaxSeverity returns the highest severity found, SeverityInfo when none.
func MaxSeverity(changes []BreakingChange) ChangeSeverity {
	highest := SeverityInfo
	for _, c := range changes {
		if c.Severity > highest {
			highest = c.Severity
		}
	}
	return highest
}

func (a *BreakingChangeAnalyzer) analyzeRemovedTables(tables []*core.Table) {
	for _, t := range tables {
		a.add(BreakingChange{
			Severity:    SeverityCritical,
			Description: "Table will be dropped - all data will be lost",
			Table:       t.Name,
			Object:      t.Name,
			ObjectType:  "TABLE",
		})
	}
}

func (a *BreakingChangeAnalyzer) analyzeModifiedTables(tables []*TableDiff) {
	for _, td := range tables {
		a.analyzeRenamedColumns(td.Name, td.RenamedColumns)
		a.analyzeRemovedColumns(td.Name, td.RemovedColumns)
		a.analyzeModifiedColumns(td.Name, td.ModifiedColumns)
		a.analyzeAddedColumns(td.Name, td.AddedColumns)
		a.analyzePrimaryKey(td.Name, td.PrimaryKey)
		a.analyzeRemovedIndexes(td.Name, td.RemovedIndexes)
		a.analyzeModifiedIndexes(td.Name, td.ModifiedIndexes)
		a.analyzeAddedIndexes(td.Name, td.AddedIndexes)
		a.analyzeForeignKeys(td.Name, td.AddedForeignKeys, td.RemovedForeignKeys)
		a.analyzeModifiedOptions(td.Name, td.ModifiedOptions)
	}
}

func (a *BreakingChangeAnalyzer) analyzeRenamedColumns(table string, renames []*ColumnRename) {
	for _, r := range renames {
		a.add(BreakingChange{
			Severity:    SeverityBreaking,
			Description: fmt.Sprintf("Column rename detected: %s -> %s (queries using the old name will fail)", r.Old.Name, r.New.Name),
			Table:       table,
			Object:      fmt.Sprintf("%s->%s", r.Old.Name, r.New.Name),
			ObjectType:  "COLUMN_RENAME",
		})
	}
}

func (a *BreakingChangeAnalyzer) analyzeRemovedColumns(table string, columns []*core.Column) {
	for _, c := range columns {
		a.add(BreakingChange{
			Severity:    SeverityCritical,
			Description: "Column will be dropped - data will be lost",
			Table:       table,
			Object:      c.Name,
			ObjectType:  "COLUMN",
		})
	}
}

func (a *BreakingChangeAnalyzer) analyzeModifiedColumns(table string, changes []*ColumnChange) {
	for _, ch := range changes {
		a.analyzeTypeChange(table, ch)
		a.analyzeSizeChange(table, ch)
		a.analyzeNullabilityChange(table, ch)
		a.analyzeAutoIncrementChange(table, ch)
		a.analyzeDefaultValueChange(table, ch)
	}
}

func (a *BreakingChangeAnalyzer) analyzeTypeChange(table string, ch *ColumnChange) {
	oldType, newType := ch.Old.Type, ch.New.Type
	if oldType.Canonical() == newType.Canonical() {
		return
	}

	severity := SeverityInfo
	if oldType.Narrows(newType) {
		severity = SeverityCritical
	}
	a.add(BreakingChange{
		Severity:    severity,
		Description: fmt.Sprintf("Column type changes from %s to %s", ch.Old.TypeString(), ch.New.TypeString()),
		Table:       table,
		Object:      ch.Name,
		ObjectType:  "COLUMN",
	})
}

// analyzeSizeChange handles string lengths and decimal digits of columns
// keeping their type.
func (a *BreakingChangeAnalyzer) analyzeSizeChange(table string, ch *ColumnChange) {
	oldC, newC := ch.Old, ch.New
	if oldC.Type.Canonical() != newC.Type.Canonical() {
		return
	}
	if oldC.Size == newC.Size && oldC.Precision == newC.Precision {
		return
	}
	if oldC.Size == 0 || newC.Size == 0 {
		return
	}

	shrinks := newC.Size < oldC.Size
	if oldC.Type.SupportsPrecision() {
		intOld, intNew := oldC.Size-oldC.Precision, newC.Size-newC.Precision
		shrinks = intNew < intOld || newC.Precision < oldC.Precision
	}
	if shrinks {
		a.add(BreakingChange{
			Severity:    SeverityBreaking,
			Description: fmt.Sprintf("Column size shrinks from %s to %s - existing values may be truncated", oldC.TypeString(), newC.TypeString()),
			Table:       table,
			Object:      ch.Name,
			ObjectType:  "COLUMN",
		})
		return
	}

	a.add(BreakingChange{
		Severity:    SeverityInfo,
		Description: fmt.Sprintf("Column size increases from %s to %s", oldC.TypeString(), newC.TypeString()),
		Table:       table,
		Object:      ch.Name,
		ObjectType:  "COLUMN",
	})
}

func (a *BreakingChangeAnalyzer) analyzeNullabilityChange(table string, ch *ColumnChange) {
	if ch.Old.Mandatory || !ch.New.Mandatory {
		return
	}
	if ch.New.DefaultValue == nil {
		a.add(BreakingChange{
			Severity:    SeverityBreaking,
			Description: "Column becomes NOT NULL without default - existing NULL values will cause migration failure",
			Table:       table,
			Object:      ch.Name,
			ObjectType:  "COLUMN",
		})
		return
	}
	a.add(BreakingChange{
		Severity:    SeverityWarning,
		Description: "Column becomes NOT NULL - existing NULL values must be updated first",
		Table:       table,
		Object:      ch.Name,
		ObjectType:  "COLUMN",
	})
}

func (a *BreakingChangeAnalyzer) analyzeAutoIncrementChange(table string, ch *ColumnChange) {
	if ch.Old.AutoIncrement && !ch.New.AutoIncrement {
		a.add(BreakingChange{
			Severity:    SeverityWarning,
			Description: "Auto increment is being removed - new inserts will require explicit values",
			Table:       table,
			Object:      ch.Name,
			ObjectType:  "COLUMN",
		})
	}
}

func (a *BreakingChangeAnalyzer) analyzeDefaultValueChange(table string, ch *ColumnChange) {
	for _, fc := range ch.Changes {
		if fc.Field != "default" {
			continue
		}
		a.add(BreakingChange{
			Severity:    SeverityInfo,
			Description: fmt.Sprintf("Default value changes from %q to %q", fc.Old, fc.New),
			Table:       table,
			Object:      ch.Name,
			ObjectType:  "COLUMN",
		})
	}
}

func (a *BreakingChangeAnalyzer) analyzeAddedColumns(table string, columns []*core.Column) {
	for _, c := range columns {
		if c.Mandatory && c.DefaultValue == nil && !c.AutoIncrement {
			a.add(BreakingChange{
				Severity:    SeverityBreaking,
				Description: "Adding NOT NULL column without default - will fail if table has existing rows",
				Table:       table,
				Object:      c.Name,
				ObjectType:  "COLUMN",
			})
		}
	}
}

func (a *BreakingChangeAnalyzer) analyzePrimaryKey(table string, ch *PrimaryKeyChange) {
	if ch == nil {
		return
	}
	switch {
	case ch.New == nil:
		a.add(BreakingChange{
			Severity:    SeverityCritical,
			Description: "Primary key will be dropped - this affects table identity",
			Table:       table,
			Object:      ch.Old.Name,
			ObjectType:  "PRIMARY_KEY",
		})
	case ch.Old == nil:
		a.add(BreakingChange{
			Severity:    SeverityBreaking,
			Description: "Primary key added - will fail if duplicates or NULLs exist in key columns",
			Table:       table,
			Object:      ch.New.Name,
			ObjectType:  "PRIMARY_KEY",
		})
	default:
		a.add(BreakingChange{
			Severity:    SeverityBreaking,
			Description: fmt.Sprintf("Primary key columns change from %s to %s", formatNameList(ch.Old.Columns), formatNameList(ch.New.Columns)),
			Table:       table,
			Object:      ch.New.Name,
			ObjectType:  "PRIMARY_KEY",
		})
	}
}

func (a *BreakingChangeAnalyzer) analyzeRemovedIndexes(table string, indexes []*core.Index) {
	for _, idx := range indexes {
		if idx.Unique {
			a.add(BreakingChange{
				Severity:    SeverityWarning,
				Description: "Unique index will be dropped - duplicates will be allowed",
				Table:       table,
				Object:      idx.Name,
				ObjectType:  "INDEX",
			})
			continue
		}
		a.add(BreakingChange{
			Severity:    SeverityInfo,
			Description: "Index will be dropped - queries may become slower",
			Table:       table,
			Object:      idx.Name,
			ObjectType:  "INDEX",
		})
	}
}

func (a *BreakingChangeAnalyzer) analyzeAddedIndexes(table string, indexes []*core.Index) {
	for _, idx := range indexes {
		if idx.Unique {
			a.add(BreakingChange{
				Severity:    SeverityBreaking,
				Description: "Unique index added - will fail if duplicates exist",
				Table:       table,
				Object:      idx.Name,
				ObjectType:  "INDEX",
			})
			continue
		}
		a.add(BreakingChange{
			Severity:    SeverityInfo,
			Description: "Index added - may improve query performance but can slow writes",
			Table:       table,
			Object:      idx.Name,
			ObjectType:  "INDEX",
		})
	}
}

func (a *BreakingChangeAnalyzer) analyzeModifiedIndexes(table string, changes []*IndexChange) {
	for _, ch := range changes {
		severity := SeverityInfo
		if ch.New.Unique {
			severity = SeverityBreaking
		}
		a.add(BreakingChange{
			Severity:    severity,
			Description: "Index modified - the index is rebuilt and may fail on duplicates if unique",
			Table:       table,
			Object:      ch.Name,
			ObjectType:  "INDEX",
		})
	}
}

func (a *BreakingChangeAnalyzer) analyzeForeignKeys(table string, added, removed []*core.ForeignKey) {
	for _, fk := range removed {
		a.add(BreakingChange{
			Severity:    SeverityWarning,
			Description: "Foreign key will be dropped - referential integrity no longer enforced",
			Table:       table,
			Object:      fk.Name,
			ObjectType:  "FOREIGN_KEY",
		})
	}
	for _, fk := range added {
		a.add(BreakingChange{
			Severity:    SeverityBreaking,
			Description: "Foreign key added - will fail if orphan rows exist",
			Table:       table,
			Object:      fk.Name,
			ObjectType:  "FOREIGN_KEY",
		})
	}
}

func (a *BreakingChangeAnalyzer) analyzeModifiedOptions(table string, options []*TableOptionChange) {
	for _, opt := range options {
		if opt.Name != "ENGINE" {
			continue
		}
		a.add(BreakingChange{
			Severity:    SeverityBreaking,
			Description: fmt.Sprintf("Storage engine changes from %s to %s - table will be rebuilt", opt.Old, opt.New),
			Table:       table,
			Object:      table,
			ObjectType:  "TABLE",
		})
	}
}

func (a *BreakingChangeAnalyzer) add(bc BreakingChange) {
	a.Changes = append(a.Changes, bc)
}
