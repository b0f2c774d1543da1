package diff

import (
	"fmt"
	"sort"
	"strings"

	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
)

// columnComparer decides column equality. With a helper the rendered SQL
// type is authoritative, otherwise the abstract type, size and precision.
type columnComparer struct {
	helper         dialect.Helper
	ignoreComments bool
}

type columnAttrMatch struct {
	Type          bool
	BaseType      bool
	Mandatory     bool
	AutoIncrement bool
	Binary        bool
	DefaultValue  bool
	Comment       bool
}

func (cmp columnComparer) attrs(a, b *core.Column) columnAttrMatch {
	return columnAttrMatch{
		Type:          cmp.typeString(a) == cmp.typeString(b),
		BaseType:      a.Type.Canonical() == b.Type.Canonical(),
		Mandatory:     a.Mandatory == b.Mandatory,
		AutoIncrement: a.AutoIncrement == b.AutoIncrement,
		Binary:        cmp.helper != nil || a.Binary == b.Binary,
		DefaultValue:  cmp.sameDefault(a, b),
		Comment:       cmp.ignoreComments || strings.EqualFold(strings.TrimSpace(a.Comment), strings.TrimSpace(b.Comment)),
	}
}

func (cmp columnComparer) equal(a, b *core.Column) bool {
	return cmp.attrs(a, b).allMatch()
}

// typeString is the type as compared: the rendered SQL type, or the
// abstract type with its size when no helper is configured or it fails.
func (cmp columnComparer) typeString(c *core.Column) string {
	if cmp.helper != nil {
		if s, err := cmp.helper.SQLType(c); err == nil {
			return strings.ToUpper(s)
		}
	}
	canonical := *c
	canonical.Type = c.Type.Canonical()
	return canonical.TypeString()
}

func (cmp columnComparer) sameDefault(a, b *core.Column) bool {
	if cmp.helper != nil {
		return dialect.SameDefault(cmp.helper, a, b)
	}
	return ptrEq(a.DefaultValue, b.DefaultValue)
}

func (m columnAttrMatch) allMatch() bool {
	return m.Type && m.Mandatory && m.AutoIncrement && m.Binary && m.DefaultValue && m.Comment
}

// similarityScore calculates a similarity score between two column attribute sets.
// It is used to detect renames between two columns.
func (m columnAttrMatch) similarityScore() int {
	score := 0
	if m.Type {
		score += 4
	}
	if m.BaseType {
		score += 2
	}
	if m.Mandatory {
		score++
	}
	if m.AutoIncrement {
		score++
	}
	if m.Binary {
		score++
	}
	if m.DefaultValue {
		score++
	}
	if m.Comment {
		score++
	}
	return score
}

type fieldChangeCollector struct {
	Changes []*FieldChange
}

func (c *fieldChangeCollector) Add(field, oldV, newV string) {
	if oldV == newV {
		return
	}
	c.Changes = append(c.Changes, &FieldChange{Field: field, Old: oldV, New: newV})
}

// Named is implemented by types that have a name identifier.
type Named interface {
	GetName() string
}

// sortNamed sorts a slice of Named items by name (case-insensitive).
func sortNamed[T Named](items []T) {
	sortByFunc(items, func(item T) string { return item.GetName() })
}

// sortByFunc sorts items using a custom name extractor function.
func sortByFunc[T any](items []T, getName func(T) string) {
	if len(items) <= 1 {
		return
	}
	keys := make(map[int]string, len(items))
	idx := make([]int, len(items))
	for i, item := range items {
		idx[i] = i
		keys[i] = strings.ToLower(getName(item))
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return keys[idx[i]] < keys[idx[j]]
	})
	sorted := make([]T, len(items))
	for i, k := range idx {
		sorted[i] = items[k]
	}
	copy(items, sorted)
}

// mapTablesByName creates a lookup map of tables keyed by lowercase name.
// Returns the map and any case-insensitive name collisions found.
func mapTablesByName(tables []*core.Table) (map[string]*core.Table, []string) {
	return mapByName(tables)
}

// mapColumnsByName creates a lookup map of columns keyed by lowercase name.
func mapColumnsByName(columns []*core.Column) (map[string]*core.Column, []string) {
	return mapByName(columns)
}

func mapByName[T Named](items []T) (map[string]T, []string) {
	m := make(map[string]T, len(items))
	original := make(map[string]string, len(items))
	var collisions []string

	for _, item := range items {
		key := strings.ToLower(item.GetName())
		if prev, ok := original[key]; ok {
			collisions = append(collisions, fmt.Sprintf("case-insensitive name collision: %q vs %q", prev, item.GetName()))
			continue
		}
		original[key] = item.GetName()
		m[key] = item
	}
	return m, collisions
}

// mapByKey creates a lookup map keyed by a custom key function.
func mapByKey[T any](items []T, keyFn func(T) string) map[string]T {
	m := make(map[string]T, len(items))
	for _, item := range items {
		m[keyFn(item)] = item
	}
	return m
}

func equalStringSliceCI(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func ptrStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func ptrEq(a, b *string) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return ptrStr(a) == ptrStr(b)
}

func formatNameList(items []string) string {
	return "(" + strings.Join(items, ", ") + ")"
}

// EqualColumns reports whether two columns are equal under opts, ignoring
// their names.
func EqualColumns(a, b *core.Column, opts Options) bool {
	return columnComparer{helper: opts.Helper, ignoreComments: opts.IgnoreComments}.equal(a, b)
}
