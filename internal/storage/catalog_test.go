package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func testSchema() Schema {
	return Schema{Columns: []Column{
		{Name: "id", Type: IntType, PrimaryKey: true},
		{Name: "name", Type: TextType},
	}}
}

func TestCreateTableAndReopen(t *testing.T) {
	dir := t.TempDir()
	cat, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := cat.CreateTable("Users", testSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := cat.ReplaceRows("Users", []Row{
		{"id": IntValue(1), "name": TextValue("Ada")},
	}); err != nil {
		t.Fatalf("ReplaceRows: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	name, ok := reopened.CanonicalName("users")
	if !ok || name != "Users" {
		t.Fatalf("got (%q, %v), want (Users, true)", name, ok)
	}
	rows, err := reopened.Rows("users")
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"].Text != "Ada" {
		t.Fatalf("got %+v", rows)
	}
}

func TestCreateTableRejectsDuplicate(t *testing.T) {
	cat, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := cat.CreateTable("t", testSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := cat.CreateTable("T", testSchema()); err == nil {
		t.Fatal("expected an error creating a table under a case-insensitive duplicate name")
	}
}

func TestDropTableRemovesDataFile(t *testing.T) {
	dir := t.TempDir()
	cat, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := cat.CreateTable("t", testSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	dataPath := filepath.Join(dir, "t.json")
	if _, err := os.Stat(dataPath); err != nil {
		t.Fatalf("expected data file to exist after CreateTable: %v", err)
	}
	if err := cat.DropTable("t"); err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	if _, err := os.Stat(dataPath); !os.IsNotExist(err) {
		t.Fatalf("expected data file to be removed after DropTable, stat err: %v", err)
	}
	if cat.TableExists("t") {
		t.Fatal("expected TableExists to be false after DropTable")
	}
}

func TestRowsReturnsDefensiveCopies(t *testing.T) {
	cat, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := cat.CreateTable("t", testSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := cat.ReplaceRows("t", []Row{{"id": IntValue(1), "name": TextValue("a")}}); err != nil {
		t.Fatalf("ReplaceRows: %v", err)
	}
	rows, err := cat.Rows("t")
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	rows[0]["name"] = TextValue("mutated")

	again, err := cat.Rows("t")
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if again[0]["name"].Text != "a" {
		t.Fatalf("catalog state was mutated through a returned row: %+v", again[0])
	}
}

func TestRowCount(t *testing.T) {
	cat, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := cat.CreateTable("t", testSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := cat.ReplaceRows("t", []Row{
		{"id": IntValue(1), "name": TextValue("a")},
		{"id": IntValue(2), "name": TextValue("b")},
	}); err != nil {
		t.Fatalf("ReplaceRows: %v", err)
	}
	n, err := cat.RowCount("t")
	if err != nil {
		t.Fatalf("RowCount: %v", err)
	}
	if n != 2 {
		t.Fatalf("got %d, want 2", n)
	}
}

func TestResetClearsEverything(t *testing.T) {
	dir := t.TempDir()
	cat, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := cat.CreateTable("t", testSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := cat.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if cat.TableExists("t") {
		t.Fatal("expected no tables after Reset")
	}
	if len(cat.TableNames()) != 0 {
		t.Fatalf("got %v, want an empty slice", cat.TableNames())
	}
}

func TestMissingDataFileIsTreatedAsEmptyTable(t *testing.T) {
	dir := t.TempDir()
	cat, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := cat.CreateTable("t", testSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "t.json")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rows, err := reopened.Rows("t")
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("got %d rows, want 0", len(rows))
	}
}

func TestIOErrorUnwraps(t *testing.T) {
	inner := os.ErrNotExist
	e := &IOError{Op: "read", Path: "/x", Err: inner}
	if e.Unwrap() != inner {
		t.Fatal("expected Unwrap to return the wrapped error")
	}
}
