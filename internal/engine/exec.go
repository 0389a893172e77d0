package engine

import (
	"strings"

	"github.com/minisql/minisql/internal/storage"
)

// Execute dispatches stmt against cat and returns either a *ResultSet
// (SELECT) or a *MutationReport (everything else).
func Execute(cat *storage.Catalog, stmt Statement) (any, error) {
	switch s := stmt.(type) {
	case *CreateTable:
		return executeCreateTable(cat, s)
	case *DropTable:
		return executeDropTable(cat, s)
	case *Insert:
		return executeInsert(cat, s)
	case *Update:
		return executeUpdate(cat, s)
	case *Delete:
		return executeDelete(cat, s)
	case *Select:
		return executeSelect(cat, s)
	default:
		return nil, newSemanticError("unrecognized statement")
	}
}

func executeCreateTable(cat *storage.Catalog, s *CreateTable) (*MutationReport, error) {
	if cat.TableExists(s.Name) {
		return nil, newSemanticError("table %q already exists", s.Name)
	}
	pkSeen := false
	for _, c := range s.Columns {
		if c.PrimaryKey {
			if pkSeen {
				return nil, newSemanticError("table %q declares more than one PRIMARY KEY column", s.Name)
			}
			pkSeen = true
		}
		if c.References != nil {
			if err := validateForeignKeyTarget(cat, *c.References); err != nil {
				return nil, err
			}
		}
	}
	schema := storage.Schema{Columns: s.Columns}
	if err := cat.CreateTable(s.Name, schema); err != nil {
		return nil, err
	}
	return &MutationReport{AffectedRows: 0, Message: "Table " + s.Name + " created"}, nil
}

// validateForeignKeyTarget enforces that a REFERENCES target exists and
// that the referenced column is the target's primary key or UNIQUE.
func validateForeignKeyTarget(cat *storage.Catalog, ref storage.ForeignKeyRef) error {
	target, ok := cat.Schema(ref.Table)
	if !ok {
		return newSemanticError("referenced table %q does not exist", ref.Table)
	}
	col, ok := target.Column(ref.Column)
	if !ok {
		return newSemanticError("referenced column %q does not exist on %q", ref.Column, ref.Table)
	}
	if !col.PrimaryKey && !col.Unique {
		return newSemanticError("referenced column %q.%q must be PRIMARY KEY or UNIQUE", ref.Table, ref.Column)
	}
	return nil
}

func executeDropTable(cat *storage.Catalog, s *DropTable) (*MutationReport, error) {
	if !cat.TableExists(s.Name) {
		return nil, newSemanticError("no such table %q", s.Name)
	}
	if referrer, col := findReferrer(cat, s.Name); referrer != "" {
		return nil, newConstraintError("cannot drop %q: referenced by %s.%s", s.Name, referrer, col)
	}
	if err := cat.DropTable(s.Name); err != nil {
		return nil, err
	}
	return &MutationReport{AffectedRows: 0, Message: "Table " + s.Name + " dropped"}, nil
}

// findReferrer returns the name of a table (and column) other than target
// whose schema carries a foreign key pointing at target, or "" if none.
func findReferrer(cat *storage.Catalog, target string) (string, string) {
	for _, name := range cat.TableNames() {
		if strings.EqualFold(name, target) {
			continue
		}
		schema, ok := cat.Schema(name)
		if !ok {
			continue
		}
		for _, fk := range schema.ForeignKeys() {
			if strings.EqualFold(fk.References.Table, target) {
				return name, fk.Name
			}
		}
	}
	return "", ""
}
