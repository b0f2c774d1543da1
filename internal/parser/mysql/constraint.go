package mysql

import (
	"fmt"

	"github.com/pingcap/tidb/pkg/parser/ast"

	"sqlkit/internal/core"
)

func (p *Parser) parseConstraints(constraints []*ast.Constraint, table *core.Table) error {
	for _, constraint := range constraints {
		if err := p.applyConstraint(table, constraint); err != nil {
			return err
		}
	}
	return nil
}

// constraintColumns returns the key parts of a constraint. Functional key
// parts have no model counterpart.
func constraintColumns(constraint *ast.Constraint) ([]core.IndexColumn, error) {
	cols := make([]core.IndexColumn, 0, len(constraint.Keys))
	for _, key := range constraint.Keys {
		if key.Column == nil {
			return nil, fmt.Errorf("constraint %s: expression key parts are not supported", constraint.Name)
		}
		cols = append(cols, core.IndexColumn{Name: key.Column.Name.O, Desc: key.Desc})
	}
	return cols, nil
}

func columnNames(cols []core.IndexColumn) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func (p *Parser) applyConstraint(table *core.Table, constraint *ast.Constraint) error {
	if constraint == nil {
		return nil
	}

	switch constraint.Tp {
	case ast.ConstraintPrimaryKey:
		cols, err := constraintColumns(constraint)
		if err != nil {
			return err
		}
		table.SetPrimaryKey(columnNames(cols)...)
	case ast.ConstraintUniq, ast.ConstraintUniqKey, ast.ConstraintUniqIndex:
		return p.applyIndex(table, constraint, true)
	case ast.ConstraintIndex, ast.ConstraintKey:
		return p.applyIndex(table, constraint, false)
	case ast.ConstraintForeignKey:
		cols, err := constraintColumns(constraint)
		if err != nil {
			return err
		}
		fk, err := foreignKey(constraint.Name, columnNames(cols), constraint.Refer)
		if err != nil {
			return err
		}
		table.AddForeignKey(fk)
	case ast.ConstraintFulltext:
		return fmt.Errorf("fulltext index %s is not supported", constraint.Name)
	}
	// CHECK constraints are not part of the model.
	return nil
}

// applyIndex adds a key. Unnamed keys get the name MySQL gives them: the
// first column name.
func (p *Parser) applyIndex(table *core.Table, constraint *ast.Constraint, unique bool) error {
	cols, err := constraintColumns(constraint)
	if err != nil {
		return err
	}
	name := constraint.Name
	if name == "" && len(cols) > 0 {
		name = cols[0].Name
	}
	table.Indexes = append(table.Indexes, &core.Index{Name: name, Columns: cols, Unique: unique})
	return nil
}

func foreignKey(name string, columns []string, refer *ast.ReferenceDef) (*core.ForeignKey, error) {
	if refer == nil {
		return nil, fmt.Errorf("foreign key %s has no REFERENCES clause", name)
	}
	fk := &core.ForeignKey{
		Name:     name,
		Columns:  columns,
		RefTable: refer.Table.Name.O,
	}
	for _, spec := range refer.IndexPartSpecifications {
		if spec.Column != nil {
			fk.RefColumns = append(fk.RefColumns, spec.Column.Name.O)
		}
	}
	var err error
	if fk.OnDelete, fk.OnUpdate, err = referentialAction(refer.OnDelete, refer.OnUpdate); err != nil {
		return nil, fmt.Errorf("foreign key %s: %w", name, err)
	}
	return fk, nil
}
