package engine

import "github.com/minisql/minisql/internal/storage"

// ResultSet is the output of a SELECT: an ordered column list plus the
// matching output rows, each keyed by the final (aliased) column name.
type ResultSet struct {
	Columns []string
	Rows    []storage.Row
}

// MutationReport is the output of CREATE/DROP/INSERT/UPDATE/DELETE.
type MutationReport struct {
	AffectedRows int
	Message      string
}
