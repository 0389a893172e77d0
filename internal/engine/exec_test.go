package engine

import (
	"testing"

	"github.com/minisql/minisql/internal/storage"
)

func run(t *testing.T, cat *storage.Catalog, sql string) (any, error) {
	t.Helper()
	stmts, err := ParseStatements(sql)
	if err != nil {
		return nil, err
	}
	var last any
	for _, stmt := range stmts {
		res, err := Execute(cat, stmt)
		if err != nil {
			return nil, err
		}
		last = res
	}
	return last, nil
}

func mustRun(t *testing.T, cat *storage.Catalog, sql string) any {
	t.Helper()
	res, err := run(t, cat, sql)
	if err != nil {
		t.Fatalf("run %q: %v", sql, err)
	}
	return res
}

func openCatalog(t *testing.T) *storage.Catalog {
	t.Helper()
	cat, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	return cat
}

func TestCreateInsertSelect(t *testing.T) {
	cat := openCatalog(t)
	mustRun(t, cat, `CREATE TABLE users (id INT PRIMARY KEY, name TEXT NOT NULL)`)
	mustRun(t, cat, `INSERT INTO users (id, name) VALUES (1, 'Ada'), (2, 'Grace')`)

	res := mustRun(t, cat, `SELECT id, name FROM users ORDER BY id`).(*ResultSet)
	if len(res.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(res.Rows))
	}
	if res.Rows[0]["name"].Any() != "Ada" || res.Rows[1]["name"].Any() != "Grace" {
		t.Fatalf("got %+v", res.Rows)
	}
}

func TestPrimaryKeyDuplicateRejected(t *testing.T) {
	cat := openCatalog(t)
	mustRun(t, cat, `CREATE TABLE t (id INT PRIMARY KEY, v TEXT)`)
	mustRun(t, cat, `INSERT INTO t VALUES (1, 'a')`)

	_, err := run(t, cat, `INSERT INTO t VALUES (1, 'b')`)
	if err == nil {
		t.Fatal("expected a ConstraintError for the duplicate primary key")
	}
	if _, ok := err.(*ConstraintError); !ok {
		t.Fatalf("got %T, want *ConstraintError: %v", err, err)
	}
}

func TestForeignKeyViolationRejected(t *testing.T) {
	cat := openCatalog(t)
	mustRun(t, cat, `CREATE TABLE depts (id INT PRIMARY KEY, name TEXT)`)
	mustRun(t, cat, `CREATE TABLE employees (id INT PRIMARY KEY, dept_id INT REFERENCES depts(id))`)

	_, err := run(t, cat, `INSERT INTO employees VALUES (1, 99)`)
	if err == nil {
		t.Fatal("expected a ConstraintError for the dangling foreign key")
	}
	if _, ok := err.(*ConstraintError); !ok {
		t.Fatalf("got %T, want *ConstraintError: %v", err, err)
	}
}

func TestForeignKeyTargetMustBeKeyOrUnique(t *testing.T) {
	cat := openCatalog(t)
	mustRun(t, cat, `CREATE TABLE depts (id INT, name TEXT)`)

	_, err := run(t, cat, `CREATE TABLE employees (id INT PRIMARY KEY, dept_id INT REFERENCES depts(id))`)
	if err == nil {
		t.Fatal("expected a SemanticError: depts.id is neither PRIMARY KEY nor UNIQUE")
	}
}

func TestInnerJoinWithAggregate(t *testing.T) {
	cat := openCatalog(t)
	mustRun(t, cat, `CREATE TABLE depts (id INT PRIMARY KEY, name TEXT)`)
	mustRun(t, cat, `CREATE TABLE employees (id INT PRIMARY KEY, dept_id INT REFERENCES depts(id))`)
	mustRun(t, cat, `INSERT INTO depts VALUES (1, 'eng'), (2, 'sales')`)
	mustRun(t, cat, `INSERT INTO employees VALUES (1, 1), (2, 1), (3, 2)`)

	res := mustRun(t, cat, `
		SELECT d.name, COUNT(*) AS n
		FROM employees e
		INNER JOIN depts d ON e.dept_id = d.id
		GROUP BY d.name
		ORDER BY n DESC
	`).(*ResultSet)

	if len(res.Rows) != 2 {
		t.Fatalf("got %d groups, want 2: %+v", len(res.Rows), res.Rows)
	}
	if res.Rows[0]["name"].Any() != "eng" || res.Rows[0]["n"].Any() != int64(2) {
		t.Fatalf("got %+v", res.Rows[0])
	}
	if res.Rows[1]["name"].Any() != "sales" || res.Rows[1]["n"].Any() != int64(1) {
		t.Fatalf("got %+v", res.Rows[1])
	}
}

func TestLeftJoinPreservesUnmatchedRows(t *testing.T) {
	cat := openCatalog(t)
	mustRun(t, cat, `CREATE TABLE depts (id INT PRIMARY KEY, name TEXT)`)
	mustRun(t, cat, `CREATE TABLE employees (id INT PRIMARY KEY, dept_id INT)`)
	mustRun(t, cat, `INSERT INTO depts VALUES (1, 'eng')`)
	mustRun(t, cat, `INSERT INTO employees VALUES (1, 1), (2, 99)`)

	res := mustRun(t, cat, `
		SELECT e.id, d.name
		FROM employees e
		LEFT JOIN depts d ON e.dept_id = d.id
		ORDER BY e.id
	`).(*ResultSet)

	if len(res.Rows) != 2 {
		t.Fatalf("got %d rows, want 2: %+v", len(res.Rows), res.Rows)
	}
	if !res.Rows[1]["name"].IsNull() {
		t.Fatalf("expected row for unmatched employee to have NULL dept name, got %+v", res.Rows[1])
	}
}

func TestDeleteBlockedByReferrer(t *testing.T) {
	cat := openCatalog(t)
	mustRun(t, cat, `CREATE TABLE depts (id INT PRIMARY KEY, name TEXT)`)
	mustRun(t, cat, `CREATE TABLE employees (id INT PRIMARY KEY, dept_id INT REFERENCES depts(id))`)
	mustRun(t, cat, `INSERT INTO depts VALUES (1, 'eng')`)
	mustRun(t, cat, `INSERT INTO employees VALUES (1, 1)`)

	_, err := run(t, cat, `DELETE FROM depts WHERE id = 1`)
	if err == nil {
		t.Fatal("expected a ConstraintError: depts.1 is still referenced by employees")
	}
	if _, ok := err.(*ConstraintError); !ok {
		t.Fatalf("got %T, want *ConstraintError: %v", err, err)
	}
}

func TestDropTableBlockedByReferrer(t *testing.T) {
	cat := openCatalog(t)
	mustRun(t, cat, `CREATE TABLE depts (id INT PRIMARY KEY, name TEXT)`)
	mustRun(t, cat, `CREATE TABLE employees (id INT PRIMARY KEY, dept_id INT REFERENCES depts(id))`)

	_, err := run(t, cat, `DROP TABLE depts`)
	if err == nil {
		t.Fatal("expected a ConstraintError: depts is referenced by employees")
	}
}

func TestUpdateRejectsOrphaningPrimaryKey(t *testing.T) {
	cat := openCatalog(t)
	mustRun(t, cat, `CREATE TABLE depts (id INT PRIMARY KEY, name TEXT)`)
	mustRun(t, cat, `CREATE TABLE employees (id INT PRIMARY KEY, dept_id INT REFERENCES depts(id))`)
	mustRun(t, cat, `INSERT INTO depts VALUES (1, 'eng')`)
	mustRun(t, cat, `INSERT INTO employees VALUES (1, 1)`)

	_, err := run(t, cat, `UPDATE depts SET id = 2 WHERE id = 1`)
	if err == nil {
		t.Fatal("expected a ConstraintError: changing depts.id would orphan employees.dept_id")
	}
}

func TestDeleteBlockedByReferrerThroughUniqueColumn(t *testing.T) {
	cat := openCatalog(t)
	mustRun(t, cat, `CREATE TABLE users (id INT PRIMARY KEY, email TEXT UNIQUE)`)
	mustRun(t, cat, `CREATE TABLE sessions (id INT PRIMARY KEY, user_email TEXT REFERENCES users(email))`)
	mustRun(t, cat, `INSERT INTO users VALUES (1, 'a@x.com')`)
	mustRun(t, cat, `INSERT INTO sessions VALUES (1, 'a@x.com')`)

	_, err := run(t, cat, `DELETE FROM users WHERE id = 1`)
	if err == nil {
		t.Fatal("expected a ConstraintError: users.email is still referenced by sessions.user_email")
	}
	if _, ok := err.(*ConstraintError); !ok {
		t.Fatalf("got %T, want *ConstraintError: %v", err, err)
	}
}

func TestUpdateRejectsOrphaningUniqueColumn(t *testing.T) {
	cat := openCatalog(t)
	mustRun(t, cat, `CREATE TABLE users (id INT PRIMARY KEY, email TEXT UNIQUE)`)
	mustRun(t, cat, `CREATE TABLE sessions (id INT PRIMARY KEY, user_email TEXT REFERENCES users(email))`)
	mustRun(t, cat, `INSERT INTO users VALUES (1, 'a@x.com')`)
	mustRun(t, cat, `INSERT INTO sessions VALUES (1, 'a@x.com')`)

	_, err := run(t, cat, `UPDATE users SET email = 'b@x.com' WHERE id = 1`)
	if err == nil {
		t.Fatal("expected a ConstraintError: changing users.email would orphan sessions.user_email")
	}
	if _, ok := err.(*ConstraintError); !ok {
		t.Fatalf("got %T, want *ConstraintError: %v", err, err)
	}
}

func TestNotNullViolation(t *testing.T) {
	cat := openCatalog(t)
	mustRun(t, cat, `CREATE TABLE t (id INT PRIMARY KEY, v TEXT NOT NULL)`)

	_, err := run(t, cat, `INSERT INTO t (id) VALUES (1)`)
	if err == nil {
		t.Fatal("expected a ConstraintError for the missing NOT NULL column")
	}
}

func TestWhereNullComparisonIsFalseNotError(t *testing.T) {
	cat := openCatalog(t)
	mustRun(t, cat, `CREATE TABLE t (id INT PRIMARY KEY, v INT)`)
	mustRun(t, cat, `INSERT INTO t (id) VALUES (1)`)

	res := mustRun(t, cat, `SELECT id FROM t WHERE v = 5`).(*ResultSet)
	if len(res.Rows) != 0 {
		t.Fatalf("got %d rows, want 0 (NULL = 5 is false, not an error)", len(res.Rows))
	}
}

func TestDistinctDeduplicates(t *testing.T) {
	cat := openCatalog(t)
	mustRun(t, cat, `CREATE TABLE t (id INT PRIMARY KEY, category TEXT)`)
	mustRun(t, cat, `INSERT INTO t VALUES (1, 'a'), (2, 'a'), (3, 'b')`)

	res := mustRun(t, cat, `SELECT DISTINCT category FROM t ORDER BY category`).(*ResultSet)
	if len(res.Rows) != 2 {
		t.Fatalf("got %d rows, want 2: %+v", len(res.Rows), res.Rows)
	}
}

func TestUpdateSetExpression(t *testing.T) {
	cat := openCatalog(t)
	mustRun(t, cat, `CREATE TABLE t (id INT PRIMARY KEY, balance INT)`)
	mustRun(t, cat, `INSERT INTO t VALUES (1, 100)`)

	report := mustRun(t, cat, `UPDATE t SET balance = balance + 50 WHERE id = 1`).(*MutationReport)
	if report.AffectedRows != 1 {
		t.Fatalf("got %d affected rows, want 1", report.AffectedRows)
	}
	res := mustRun(t, cat, `SELECT balance FROM t WHERE id = 1`).(*ResultSet)
	if res.Rows[0]["balance"].Any() != int64(150) {
		t.Fatalf("got %+v", res.Rows[0])
	}
}

func TestFullOuterJoin(t *testing.T) {
	cat := openCatalog(t)
	mustRun(t, cat, `CREATE TABLE a (id INT PRIMARY KEY)`)
	mustRun(t, cat, `CREATE TABLE b (id INT PRIMARY KEY)`)
	mustRun(t, cat, `INSERT INTO a VALUES (1), (2)`)
	mustRun(t, cat, `INSERT INTO b VALUES (2), (3)`)

	res := mustRun(t, cat, `
		SELECT a.id AS aid, b.id AS bid
		FROM a
		FULL OUTER JOIN b ON a.id = b.id
		ORDER BY aid, bid
	`).(*ResultSet)

	if len(res.Rows) != 3 {
		t.Fatalf("got %d rows, want 3: %+v", len(res.Rows), res.Rows)
	}
}
