// Package diff compares two schema descriptions and reports the differences
// table by table. It also classifies changes that can break existing data.
package diff

import (
	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
)

const (
	// renameDetectionScoreThreshold is the minimum similarity score required to consider
	// a removed+added column pair as a rename. Type equality alone is worth 6 points, so
	// the remaining attributes must agree almost entirely.
	renameDetectionScoreThreshold = 9

	// renameSharedTokenMinLen is the minimum length of shared name tokens (e.g., "user" in
	// "user_id" and "user_name") required as additional evidence for rename detection.
	renameSharedTokenMinLen = 3
)

// SchemaDiff represents the differences between two schemas.
type SchemaDiff struct {
	Warnings       []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	AddedTables    []*core.Table `json:"addedTables,omitempty" yaml:"addedTables,omitempty"`
	RemovedTables  []*core.Table `json:"removedTables,omitempty" yaml:"removedTables,omitempty"`
	ModifiedTables []*TableDiff  `json:"modifiedTables,omitempty" yaml:"modifiedTables,omitempty"`
}

// TableDiff represents the differences between two versions of one table.
type TableDiff struct {
	Name string `json:"name" yaml:"name"`
	// Old and New are the compared tables. DDL for column changes needs the
	// full table on some databases.
	Old *core.Table `json:"-" yaml:"-"`
	New *core.Table `json:"-" yaml:"-"`

	Warnings           []string             `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	AddedColumns       []*core.Column       `json:"addedColumns,omitempty" yaml:"addedColumns,omitempty"`
	RemovedColumns     []*core.Column       `json:"removedColumns,omitempty" yaml:"removedColumns,omitempty"`
	RenamedColumns     []*ColumnRename      `json:"renamedColumns,omitempty" yaml:"renamedColumns,omitempty"`
	ModifiedColumns    []*ColumnChange      `json:"modifiedColumns,omitempty" yaml:"modifiedColumns,omitempty"`
	PrimaryKey         *PrimaryKeyChange    `json:"primaryKey,omitempty" yaml:"primaryKey,omitempty"`
	AddedIndexes       []*core.Index        `json:"addedIndexes,omitempty" yaml:"addedIndexes,omitempty"`
	RemovedIndexes     []*core.Index        `json:"removedIndexes,omitempty" yaml:"removedIndexes,omitempty"`
	ModifiedIndexes    []*IndexChange       `json:"modifiedIndexes,omitempty" yaml:"modifiedIndexes,omitempty"`
	AddedForeignKeys   []*core.ForeignKey   `json:"addedForeignKeys,omitempty" yaml:"addedForeignKeys,omitempty"`
	RemovedForeignKeys []*core.ForeignKey   `json:"removedForeignKeys,omitempty" yaml:"removedForeignKeys,omitempty"`
	ModifiedOptions    []*TableOptionChange `json:"modifiedOptions,omitempty" yaml:"modifiedOptions,omitempty"`
}

// ColumnChange represents the differences between two columns.
type ColumnChange struct {
	Name    string         `json:"name" yaml:"name"`
	Old     *core.Column   `json:"old" yaml:"old"`
	New     *core.Column   `json:"new" yaml:"new"`
	Changes []*FieldChange `json:"changes" yaml:"changes"`
}

// ColumnRename is a removed and an added column detected as the same column.
type ColumnRename struct {
	Old   *core.Column `json:"old" yaml:"old"`
	New   *core.Column `json:"new" yaml:"new"`
	Score int          `json:"score" yaml:"score"`
}

// PrimaryKeyChange describes an added, removed or changed primary key.
// Old is nil when the key is added and New is nil when it is removed.
type PrimaryKeyChange struct {
	Old     *core.PrimaryKey `json:"old,omitempty" yaml:"old,omitempty"`
	New     *core.PrimaryKey `json:"new,omitempty" yaml:"new,omitempty"`
	Changes []*FieldChange   `json:"changes,omitempty" yaml:"changes,omitempty"`
}

// IndexChange represents the differences between indexes of old table and new table.
type IndexChange struct {
	Name    string         `json:"name" yaml:"name"`
	Old     *core.Index    `json:"old" yaml:"old"`
	New     *core.Index    `json:"new" yaml:"new"`
	Changes []*FieldChange `json:"changes" yaml:"changes"`
}

// FieldChange represents the differences between two fields.
type FieldChange struct {
	Field string `json:"field" yaml:"field"`
	Old   string `json:"old" yaml:"old"`
	New   string `json:"new" yaml:"new"`
}

// TableOptionChange represents the differences between two table options.
type TableOptionChange struct {
	Name string `json:"name" yaml:"name"`
	Old  string `json:"old" yaml:"old"`
	New  string `json:"new" yaml:"new"`
}

// GetName methods implement the Named interface for type-safe sorting.
func (td *TableDiff) GetName() string          { return td.Name }
func (cc *ColumnChange) GetName() string       { return cc.Name }
func (ic *IndexChange) GetName() string        { return ic.Name }
func (toc *TableOptionChange) GetName() string { return toc.Name }

// Options control the comparison.
type Options struct {
	DetectColumnRenames bool
	// Helper, when set, makes column types compare by their rendered SQL
	// type, so that types stored identically (id and long) are equal.
	Helper dialect.Helper
	// IgnoreComments skips table and column comments. Databases that cannot
	// store comments would otherwise report them forever.
	IgnoreComments bool
}

// DefaultOptions compare abstract types and detect renames.
func DefaultOptions() Options {
	return Options{DetectColumnRenames: true}
}

// Diff compares two schemas and returns a SchemaDiff object.
func Diff(oldSchema, newSchema *core.Schema, opts Options) *SchemaDiff {
	d := &SchemaDiff{}
	oldTables, oldCollisions := mapTablesByName(tablesOf(oldSchema))
	newTables, newCollisions := mapTablesByName(tablesOf(newSchema))
	for _, c := range oldCollisions {
		d.Warnings = append(d.Warnings, "old schema: "+c)
	}
	for _, c := range newCollisions {
		d.Warnings = append(d.Warnings, "new schema: "+c)
	}

	for name, nt := range newTables {
		ot, ok := oldTables[name]
		if !ok {
			d.AddedTables = append(d.AddedTables, nt)
			continue
		}

		td := compareTable(ot, nt, opts)
		if td != nil {
			d.ModifiedTables = append(d.ModifiedTables, td)
		}
	}

	for name, ot := range oldTables {
		if _, ok := newTables[name]; !ok {
			d.RemovedTables = append(d.RemovedTables, ot)
		}
	}

	sortNamed(d.AddedTables)
	sortNamed(d.RemovedTables)
	sortNamed(d.ModifiedTables)

	return d
}

func tablesOf(s *core.Schema) []*core.Table {
	if s == nil {
		return nil
	}
	return s.Tables
}

// IsEmpty returns true if there are no differences in the schema diff.
func (d *SchemaDiff) IsEmpty() bool {
	return len(d.AddedTables) == 0 && len(d.RemovedTables) == 0 && len(d.ModifiedTables) == 0
}

// Table returns the diff of the named table or nil.
func (d *SchemaDiff) Table(name string) *TableDiff {
	for _, td := range d.ModifiedTables {
		if equalFold(td.Name, name) {
			return td
		}
	}
	return nil
}
