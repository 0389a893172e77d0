package engine

import (
	"fmt"
	"strings"

	"github.com/minisql/minisql/internal/storage"
)

func executeInsert(cat *storage.Catalog, s *Insert) (*MutationReport, error) {
	name, ok := cat.CanonicalName(s.Table)
	if !ok {
		return nil, newSemanticError("no such table %q", s.Table)
	}
	schema, _ := cat.Schema(name)
	existing, err := cat.Rows(name)
	if err != nil {
		return nil, err
	}

	working := make([]storage.Row, len(existing))
	copy(working, existing)

	for _, values := range s.Rows {
		row, err := buildInsertRow(schema, s.Columns, values)
		if err != nil {
			return nil, err
		}
		if err := checkNotNull(schema, row); err != nil {
			return nil, err
		}
		if err := checkUniqueAgainst(schema, row, working, -1); err != nil {
			return nil, err
		}
		if err := checkForeignKeys(cat, schema, row); err != nil {
			return nil, err
		}
		working = append(working, row)
	}

	if err := cat.ReplaceRows(name, working); err != nil {
		return nil, err
	}
	n := len(s.Rows)
	return &MutationReport{AffectedRows: n, Message: fmt.Sprintf("Inserted %d row(s) into %s", n, name)}, nil
}

// buildInsertRow assembles one row from a VALUES tuple, honoring an
// explicit column list (missing columns become NULL) or, when omitted,
// strict positional assignment against the schema's declared order.
func buildInsertRow(schema storage.Schema, cols []string, values []Expr) (storage.Row, error) {
	row := make(storage.Row, len(schema.Columns))
	for _, c := range schema.Columns {
		row[c.Name] = storage.Null
	}

	if cols == nil {
		if len(values) != len(schema.Columns) {
			return nil, newSemanticError("INSERT has %d value(s) but table has %d column(s)", len(values), len(schema.Columns))
		}
		for i, c := range schema.Columns {
			v, err := coerceInsertValue(values[i], c)
			if err != nil {
				return nil, err
			}
			row[c.Name] = v
		}
		return row, nil
	}

	if len(cols) != len(values) {
		return nil, newSemanticError("INSERT column list has %d name(s) but VALUES has %d expression(s)", len(cols), len(values))
	}
	for i, colName := range cols {
		c, ok := schema.Column(colName)
		if !ok {
			return nil, newSemanticError("unknown column %q", colName)
		}
		v, err := coerceInsertValue(values[i], c)
		if err != nil {
			return nil, err
		}
		row[c.Name] = v
	}
	return row, nil
}

func coerceInsertValue(e Expr, col storage.Column) (storage.Value, error) {
	v, err := evalExpr(&scope{}, joinRow{}, e)
	if err != nil {
		return storage.Null, err
	}
	if !v.AssignableTo(col.Type) {
		return storage.Null, newTypeError("column %q is %s, cannot assign a %v", col.Name, col.Type, v.Any())
	}
	return v.CoerceTo(col.Type), nil
}

func checkNotNull(schema storage.Schema, row storage.Row) error {
	for _, c := range schema.Columns {
		if c.NotNull && row[c.Name].IsNull() {
			return newConstraintError("column %q may not be NULL", c.Name)
		}
	}
	return nil
}

// checkUniqueAgainst enforces PK/UNIQUE constraints for row against others,
// skipping the row at skipIdx (used by UPDATE to exclude the row being
// replaced from the comparison).
func checkUniqueAgainst(schema storage.Schema, row storage.Row, others []storage.Row, skipIdx int) error {
	for _, c := range schema.Columns {
		if !c.PrimaryKey && !c.Unique {
			continue
		}
		v := row[c.Name]
		if v.IsNull() {
			continue
		}
		for i, other := range others {
			if i == skipIdx {
				continue
			}
			if other[c.Name].Equal(v) {
				return newConstraintError("duplicate value for %s column %q", uniqueKind(c), c.Name)
			}
		}
	}
	return nil
}

func uniqueKind(c storage.Column) string {
	if c.PrimaryKey {
		return "PRIMARY KEY"
	}
	return "UNIQUE"
}

// checkForeignKeys enforces every FK column of row against its target
// table, skipping columns whose value is NULL.
func checkForeignKeys(cat *storage.Catalog, schema storage.Schema, row storage.Row) error {
	for _, c := range schema.ForeignKeys() {
		v := row[c.Name]
		if v.IsNull() {
			continue
		}
		targetRows, err := cat.Rows(c.References.Table)
		if err != nil {
			return newSemanticError("referenced table %q does not exist", c.References.Table)
		}
		found := false
		for _, tr := range targetRows {
			if tr[c.References.Column].Equal(v) {
				found = true
				break
			}
		}
		if !found {
			return newConstraintError("value for %q has no matching %s.%s", c.Name, c.References.Table, c.References.Column)
		}
	}
	return nil
}

func executeUpdate(cat *storage.Catalog, s *Update) (*MutationReport, error) {
	name, ok := cat.CanonicalName(s.Table)
	if !ok {
		return nil, newSemanticError("no such table %q", s.Table)
	}
	schema, _ := cat.Schema(name)
	rows, err := cat.Rows(name)
	if err != nil {
		return nil, err
	}

	sc := &scope{}
	sc.add(name, schema)

	candidates := make([]int, 0)
	for i, r := range rows {
		if s.Where == nil {
			candidates = append(candidates, i)
			continue
		}
		v, err := evalExpr(sc, rowFromTable(name, schema, r), s.Where)
		if err != nil {
			return nil, err
		}
		ok, err := boolOf(v)
		if err != nil {
			return nil, err
		}
		if ok {
			candidates = append(candidates, i)
		}
	}

	updated := make([]storage.Row, len(rows))
	copy(updated, rows)

	for _, idx := range candidates {
		original := rows[idx]
		newRow := original.Clone()
		for i, col := range s.SetCols {
			c, ok := schema.Column(col)
			if !ok {
				return nil, newSemanticError("unknown column %q", col)
			}
			v, err := evalExpr(sc, rowFromTable(name, schema, original), s.SetExprs[i])
			if err != nil {
				return nil, err
			}
			if !v.AssignableTo(c.Type) {
				return nil, newTypeError("column %q is %s, cannot assign a %v", c.Name, c.Type, v.Any())
			}
			newRow[c.Name] = v.CoerceTo(c.Type)
		}
		if err := checkNotNull(schema, newRow); err != nil {
			return nil, err
		}
		if err := checkUniqueAgainst(schema, newRow, updated, idx); err != nil {
			return nil, err
		}
		if err := checkForeignKeys(cat, schema, newRow); err != nil {
			return nil, err
		}
		for _, c := range schema.Columns {
			if (!c.PrimaryKey && !c.Unique) || original[c.Name].Equal(newRow[c.Name]) {
				continue
			}
			if err := checkNotOrphaning(cat, name, c.Name, original[c.Name]); err != nil {
				return nil, err
			}
		}
		updated[idx] = newRow
	}

	if err := cat.ReplaceRows(name, updated); err != nil {
		return nil, err
	}
	n := len(candidates)
	return &MutationReport{AffectedRows: n, Message: fmt.Sprintf("Updated %d row(s)", n)}, nil
}

func executeDelete(cat *storage.Catalog, s *Delete) (*MutationReport, error) {
	name, ok := cat.CanonicalName(s.Table)
	if !ok {
		return nil, newSemanticError("no such table %q", s.Table)
	}
	schema, _ := cat.Schema(name)
	rows, err := cat.Rows(name)
	if err != nil {
		return nil, err
	}

	sc := &scope{}
	sc.add(name, schema)

	kept := make([]storage.Row, 0, len(rows))
	deleted := 0
	for _, r := range rows {
		match := s.Where == nil
		if s.Where != nil {
			v, err := evalExpr(sc, rowFromTable(name, schema, r), s.Where)
			if err != nil {
				return nil, err
			}
			match, err = boolOf(v)
			if err != nil {
				return nil, err
			}
		}
		if !match {
			kept = append(kept, r)
			continue
		}
		for _, c := range schema.Columns {
			if !c.PrimaryKey && !c.Unique {
				continue
			}
			if err := checkNotOrphaning(cat, name, c.Name, r[c.Name]); err != nil {
				return nil, err
			}
		}
		deleted++
	}

	if err := cat.ReplaceRows(name, kept); err != nil {
		return nil, err
	}
	return &MutationReport{AffectedRows: deleted, Message: fmt.Sprintf("Deleted %d row(s)", deleted)}, nil
}

// checkNotOrphaning rejects a delete/key-mutation if some other table's
// foreign key still references (targetTable, targetCol) = value.
func checkNotOrphaning(cat *storage.Catalog, targetTable, targetCol string, value storage.Value) error {
	if value.IsNull() {
		return nil
	}
	for _, name := range cat.TableNames() {
		if strings.EqualFold(name, targetTable) {
			continue
		}
		schema, ok := cat.Schema(name)
		if !ok {
			continue
		}
		for _, fk := range schema.ForeignKeys() {
			if !strings.EqualFold(fk.References.Table, targetTable) || !strings.EqualFold(fk.References.Column, targetCol) {
				continue
			}
			rows, err := cat.Rows(name)
			if err != nil {
				return err
			}
			for _, r := range rows {
				if r[fk.Name].Equal(value) {
					return newConstraintError("row is referenced by %s.%s", name, fk.Name)
				}
			}
		}
	}
	return nil
}
