package engine

import "github.com/minisql/minisql/internal/storage"

// Expr is the root interface for every expression node.
type Expr interface{}

// VarRef references a column, optionally qualified by a table alias.
type VarRef struct {
	Qualifier string // empty when unqualified
	Name      string
}

// Literal is a constant value produced by the lexer/parser (nil, int64,
// float64, string, or bool).
type Literal struct {
	Val any
}

// Unary is a prefix operator: -expr.
type Unary struct {
	Op   string
	Expr Expr
}

// Binary is an infix operator: arithmetic, comparison, AND, OR.
type Binary struct {
	Op          string
	Left, Right Expr
}

// IsNullExpr implements `expr IS [NOT] NULL`.
type IsNullExpr struct {
	Expr   Expr
	Negate bool
}

// AggCall is an aggregate function call: COUNT/SUM/AVG/MIN/MAX.
type AggCall struct {
	Name string
	Star bool // COUNT(*)
	Arg  Expr
}

// Statement is the root interface for every parsed statement.
type Statement interface{}

// CreateTable is `CREATE TABLE name (col_defs...)`.
type CreateTable struct {
	Name    string
	Columns []storage.Column
}

// DropTable is `DROP TABLE name`.
type DropTable struct {
	Name string
}

// Insert is `INSERT INTO name [(cols)] VALUES (row), ...`.
type Insert struct {
	Table   string
	Columns []string // nil when the column list was omitted
	Rows    [][]Expr
}

// Update is `UPDATE name SET col=expr, ... [WHERE pred]`.
type Update struct {
	Table    string
	SetCols  []string
	SetExprs []Expr
	Where    Expr
}

// Delete is `DELETE FROM name [WHERE pred]`.
type Delete struct {
	Table string
	Where Expr
}

// JoinKind enumerates the supported join variants.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFullOuter
)

// TableRef is a FROM/JOIN table reference with its optional alias.
type TableRef struct {
	Name  string
	Alias string // equals Name when no alias (with or without AS) was given
}

// JoinClause is one `[kind] JOIN table ON predicate`.
type JoinClause struct {
	Kind  JoinKind
	Table TableRef
	On    Expr
}

// SelectItem is one projected expression, with its optional output alias.
type SelectItem struct {
	Star  bool
	Expr  Expr
	Alias string // output column name override; empty uses the default label
}

// OrderItem is one `column_ref [ASC|DESC]`.
type OrderItem struct {
	Expr       Expr
	Descending bool
}

// Select is a full `SELECT ... FROM ... [JOIN...] [WHERE] [GROUP BY]
// [ORDER BY]` statement.
type Select struct {
	Distinct bool
	Items    []SelectItem
	From     TableRef
	Joins    []JoinClause
	Where    Expr
	GroupBy  []Expr
	OrderBy  []OrderItem
}
