package diff

import (
	"strings"

	"sqlkit/internal/core"
)

// comparePrimaryKey compares key columns only. Constraint names differ
// between databases (MySQL always reports PRIMARY) and carry no meaning.
func comparePrimaryKey(oldPK, newPK *core.PrimaryKey, td *TableDiff) {
	oldCols, newCols := pkColumns(oldPK), pkColumns(newPK)
	if len(oldCols) == 0 && len(newCols) == 0 {
		return
	}
	if equalStringSliceCI(oldCols, newCols) {
		return
	}
	ch := &PrimaryKeyChange{}
	if len(oldCols) > 0 {
		ch.Old = oldPK
	}
	if len(newCols) > 0 {
		ch.New = newPK
	}
	c := &fieldChangeCollector{}
	c.Add("columns", formatNameList(oldCols), formatNameList(newCols))
	ch.Changes = c.Changes
	td.PrimaryKey = ch
}

func pkColumns(pk *core.PrimaryKey) []string {
	if pk == nil {
		return nil
	}
	return pk.Columns
}

// compareForeignKeys matches foreign keys by their signature. A key whose
// referential actions changed is reported as removed and added again.
func compareForeignKeys(oldItems, newItems []*core.ForeignKey, td *TableDiff) {
	oldMap := mapByKey(oldItems, foreignKeySignature)
	newMap := mapByKey(newItems, foreignKeySignature)

	for _, newItem := range newItems {
		oldItem, exists := oldMap[foreignKeySignature(newItem)]
		if exists && equalForeignKeyActions(oldItem, newItem) {
			continue
		}
		if exists {
			td.RemovedForeignKeys = append(td.RemovedForeignKeys, oldItem)
		}
		td.AddedForeignKeys = append(td.AddedForeignKeys, newItem)
	}

	for _, oldItem := range oldItems {
		if _, exists := newMap[foreignKeySignature(oldItem)]; !exists {
			td.RemovedForeignKeys = append(td.RemovedForeignKeys, oldItem)
		}
	}
}

// foreignKeySignature renders "cols->table(cols)" in lower case.
func foreignKeySignature(fk *core.ForeignKey) string {
	return strings.ToLower(strings.Join(fk.Columns, ",") + "->" + strings.TrimSpace(fk.RefTable) + "(" + strings.Join(fk.RefColumns, ",") + ")")
}

// equalForeignKeyActions treats a missing action as NO ACTION, which is what
// databases report for keys declared without one.
func equalForeignKeyActions(a, b *core.ForeignKey) bool {
	return normalizeAction(a.OnDelete) == normalizeAction(b.OnDelete) &&
		normalizeAction(a.OnUpdate) == normalizeAction(b.OnUpdate)
}

func normalizeAction(a core.ReferentialAction) core.ReferentialAction {
	switch a {
	case core.RefActionNone, core.RefActionRestrict:
		return core.RefActionNoAction
	}
	return a
}
