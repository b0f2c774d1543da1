package diff

import (
	"strconv"
	"strings"

	"sqlkit/internal/core"
)

func compareTable(oldT, newT *core.Table, opts Options) *TableDiff {
	td := &TableDiff{Name: newT.Name, Old: oldT, New: newT}
	cmp := columnComparer{helper: opts.Helper, ignoreComments: opts.IgnoreComments}

	compareColumns(oldT.Columns, newT.Columns, td, cmp, opts)
	comparePrimaryKey(oldT.PrimaryKey, newT.PrimaryKey, td)
	compareIndexes(oldT.Indexes, newT.Indexes, td)
	compareForeignKeys(oldT.ForeignKeys, newT.ForeignKeys, td)
	compareOptions(oldT, newT, td, opts)

	if td.isEmpty() {
		return nil
	}

	td.sort()
	return td
}

// compareColumns keeps the declaration order of the new table for added
// columns and of the old table for removed ones.
func compareColumns(oldItems, newItems []*core.Column, td *TableDiff, cmp columnComparer, opts Options) {
	oldMap, oldCollisions := mapColumnsByName(oldItems)
	newMap, newCollisions := mapColumnsByName(newItems)
	for _, c := range oldCollisions {
		td.Warnings = append(td.Warnings, "old table columns: "+c)
	}
	for _, c := range newCollisions {
		td.Warnings = append(td.Warnings, "new table columns: "+c)
	}

	for _, newItem := range newItems {
		key := strings.ToLower(newItem.Name)
		if newMap[key] != newItem {
			continue
		}
		oldItem, exists := oldMap[key]
		if !exists {
			td.AddedColumns = append(td.AddedColumns, newItem)
			continue
		}
		if !cmp.equal(oldItem, newItem) {
			td.ModifiedColumns = append(td.ModifiedColumns, &ColumnChange{
				Name:    newItem.Name,
				Old:     oldItem,
				New:     newItem,
				Changes: cmp.fieldChanges(oldItem, newItem),
			})
		}
	}

	for _, oldItem := range oldItems {
		key := strings.ToLower(oldItem.Name)
		if oldMap[key] != oldItem {
			continue
		}
		if _, exists := newMap[key]; !exists {
			td.RemovedColumns = append(td.RemovedColumns, oldItem)
		}
	}

	if opts.DetectColumnRenames {
		td.pairRenames(cmp)
	}
}

// pairRenames moves removed and added columns that look like one column
// under a new name to RenamedColumns. Each removed column is matched with
// the best scoring added column that is still free. The pair is kept when
// the score reaches renameDetectionScoreThreshold and sameColumnEvidence
// holds.
func (td *TableDiff) pairRenames(cmp columnComparer) {
	if len(td.RemovedColumns) == 0 || len(td.AddedColumns) == 0 {
		return
	}
	renamed := make([]bool, len(td.RemovedColumns))
	taken := make([]bool, len(td.AddedColumns))
	for i, oldC := range td.RemovedColumns {
		best, bestScore := -1, 0
		for j, newC := range td.AddedColumns {
			if taken[j] || strings.EqualFold(oldC.Name, newC.Name) {
				continue
			}
			if score := cmp.attrs(oldC, newC).similarityScore(); best < 0 || score > bestScore {
				best, bestScore = j, score
			}
		}
		if best < 0 || bestScore < renameDetectionScoreThreshold {
			continue
		}
		newC := td.AddedColumns[best]
		if !sameColumnEvidence(oldC, newC) {
			continue
		}
		renamed[i], taken[best] = true, true
		td.RenamedColumns = append(td.RenamedColumns, &ColumnRename{Old: oldC, New: newC, Score: bestScore})
	}
	td.RemovedColumns = unmarked(td.RemovedColumns, renamed)
	td.AddedColumns = unmarked(td.AddedColumns, taken)
}

// sameColumnEvidence requires more than matching attributes: both columns
// are identities, carry the same comment or share a name token.
func sameColumnEvidence(oldC, newC *core.Column) bool {
	if oldC.AutoIncrement && newC.AutoIncrement {
		return true
	}
	if comment := strings.TrimSpace(oldC.Comment); comment != "" && strings.EqualFold(comment, strings.TrimSpace(newC.Comment)) {
		return true
	}
	return shareNameToken(oldC.Name, newC.Name)
}

// shareNameToken reports whether a and b have a common alphanumeric token
// of at least renameSharedTokenMinLen characters, ignoring case.
func shareNameToken(a, b string) bool {
	tokens := nameTokens(a)
	for t := range nameTokens(b) {
		if tokens[t] {
			return true
		}
	}
	return false
}

func nameTokens(name string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})
	tokens := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len(f) >= renameSharedTokenMinLen {
			tokens[f] = true
		}
	}
	return tokens
}

// unmarked returns the items whose mark is false.
func unmarked[T any](items []T, marks []bool) []T {
	var out []T
	for i, item := range items {
		if !marks[i] {
			out = append(out, item)
		}
	}
	return out
}

func (cmp columnComparer) fieldChanges(oldC, newC *core.Column) []*FieldChange {
	c := &fieldChangeCollector{}

	c.Add("type", cmp.typeString(oldC), cmp.typeString(newC))
	c.Add("mandatory", strconv.FormatBool(oldC.Mandatory), strconv.FormatBool(newC.Mandatory))
	c.Add("auto_increment", strconv.FormatBool(oldC.AutoIncrement), strconv.FormatBool(newC.AutoIncrement))
	if cmp.helper == nil {
		c.Add("binary", strconv.FormatBool(oldC.Binary), strconv.FormatBool(newC.Binary))
	}
	if !cmp.sameDefault(oldC, newC) {
		c.Add("default", ptrStr(oldC.DefaultValue), ptrStr(newC.DefaultValue))
	}
	if !cmp.ignoreComments {
		c.Add("comment", oldC.Comment, newC.Comment)
	}

	return c.Changes
}

// compareOptions covers the table level attributes. The engine is only
// compared when both sides know it, because most databases do not report one.
func compareOptions(oldT, newT *core.Table, td *TableDiff, opts Options) {
	if !opts.IgnoreComments && oldT.Comment != newT.Comment {
		td.ModifiedOptions = append(td.ModifiedOptions, &TableOptionChange{Name: "COMMENT", Old: oldT.Comment, New: newT.Comment})
	}
	oldEngine, newEngine := strings.TrimSpace(oldT.Engine), strings.TrimSpace(newT.Engine)
	if oldEngine != "" && newEngine != "" && !strings.EqualFold(oldEngine, newEngine) {
		td.ModifiedOptions = append(td.ModifiedOptions, &TableOptionChange{Name: "ENGINE", Old: oldEngine, New: newEngine})
	}
}

func (td *TableDiff) sort() {
	sortByFunc(td.RenamedColumns, func(r *ColumnRename) string {
		if r == nil || r.New == nil {
			return ""
		}
		return r.New.Name
	})
	sortNamed(td.AddedIndexes)
	sortNamed(td.RemovedIndexes)
	sortNamed(td.ModifiedIndexes)
	sortNamed(td.AddedForeignKeys)
	sortNamed(td.RemovedForeignKeys)
	sortNamed(td.ModifiedOptions)
}

func (td *TableDiff) isEmpty() bool {
	return len(td.AddedColumns) == 0 &&
		len(td.RemovedColumns) == 0 &&
		len(td.RenamedColumns) == 0 &&
		len(td.ModifiedColumns) == 0 &&
		td.PrimaryKey == nil &&
		len(td.AddedIndexes) == 0 &&
		len(td.RemovedIndexes) == 0 &&
		len(td.ModifiedIndexes) == 0 &&
		len(td.AddedForeignKeys) == 0 &&
		len(td.RemovedForeignKeys) == 0 &&
		len(td.ModifiedOptions) == 0
}
