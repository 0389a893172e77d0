package engine

import (
	"strings"

	"github.com/minisql/minisql/internal/storage"
)

// aliasBinding is one table in scope for a SELECT's FROM/JOIN chain,
// carrying its schema so unqualified column references can be resolved
// and checked for ambiguity.
type aliasBinding struct {
	Alias  string
	Schema storage.Schema
}

// scope is the set of aliases visible while evaluating an expression; it
// grows by one entry per JOIN.
type scope struct {
	bindings []aliasBinding
}

func (s *scope) add(alias string, schema storage.Schema) {
	s.bindings = append(s.bindings, aliasBinding{Alias: alias, Schema: schema})
}

func (s *scope) find(alias string) (aliasBinding, bool) {
	for _, b := range s.bindings {
		if strings.EqualFold(b.Alias, alias) {
			return b, true
		}
	}
	return aliasBinding{}, false
}

// resolve returns the single alias that owns column name, or a
// SemanticError if no binding has it (unknown column) or more than one
// does (ambiguous column).
func (s *scope) resolve(name string) (string, error) {
	var owner string
	matches := 0
	for _, b := range s.bindings {
		if b.Schema.ColumnIndex(name) >= 0 {
			matches++
			owner = b.Alias
		}
	}
	switch matches {
	case 0:
		return "", newSemanticError("unknown column %q", name)
	case 1:
		return owner, nil
	default:
		return "", newSemanticError("ambiguous column %q", name)
	}
}

// joinRow is one intermediate row flowing through the FROM/JOIN pipeline:
// a flat map from "alias.column" (lower-cased) to Value.
type joinRow map[string]storage.Value

func rowKey(alias, column string) string {
	return strings.ToLower(alias) + "." + strings.ToLower(column)
}

// rowFromTable lifts a storage.Row into a joinRow qualified by alias.
func rowFromTable(alias string, schema storage.Schema, r storage.Row) joinRow {
	out := make(joinRow, len(schema.Columns))
	for _, c := range schema.Columns {
		out[rowKey(alias, c.Name)] = r[c.Name]
	}
	return out
}

// merge combines a left and a right joinRow into one wider row.
func merge(l, r joinRow) joinRow {
	out := make(joinRow, len(l)+len(r))
	for k, v := range l {
		out[k] = v
	}
	for k, v := range r {
		out[k] = v
	}
	return out
}

// withNulls returns a copy of the alias/schema's columns all set to NULL,
// used to pad the unmatched side of an outer join.
func withNulls(alias string, schema storage.Schema) joinRow {
	out := make(joinRow, len(schema.Columns))
	for _, c := range schema.Columns {
		out[rowKey(alias, c.Name)] = storage.Null
	}
	return out
}

func (r joinRow) clone() joinRow {
	out := make(joinRow, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// literalValue converts a parsed literal's dynamic Go value (nil, int64,
// float64, string, bool) into a storage.Value.
func literalValue(v any) storage.Value {
	return storage.ValueFromAny(v)
}

// evalExpr evaluates e against row using scope to resolve unqualified
// column references. AggCall is only meaningful inside the aggregate
// pipeline and is rejected here.
func evalExpr(sc *scope, row joinRow, e Expr) (storage.Value, error) {
	switch ex := e.(type) {
	case *Literal:
		return literalValue(ex.Val), nil
	case *VarRef:
		return evalVarRef(sc, row, ex)
	case *Unary:
		return evalUnary(sc, row, ex)
	case *Binary:
		return evalBinary(sc, row, ex)
	case *IsNullExpr:
		return evalIsNull(sc, row, ex)
	case *AggCall:
		return storage.Null, newSemanticError("aggregate function %s not allowed here", ex.Name)
	default:
		return storage.Null, newSemanticError("unsupported expression")
	}
}

func evalVarRef(sc *scope, row joinRow, ex *VarRef) (storage.Value, error) {
	alias := ex.Qualifier
	if alias == "" {
		owner, err := sc.resolve(ex.Name)
		if err != nil {
			return storage.Null, err
		}
		alias = owner
	} else {
		b, ok := sc.find(alias)
		if !ok {
			return storage.Null, newSemanticError("unknown table alias %q", alias)
		}
		if b.Schema.ColumnIndex(ex.Name) < 0 {
			return storage.Null, newSemanticError("unknown column %q on %q", ex.Name, alias)
		}
	}
	v, ok := row[rowKey(alias, ex.Name)]
	if !ok {
		return storage.Null, nil
	}
	return v, nil
}

func evalUnary(sc *scope, row joinRow, ex *Unary) (storage.Value, error) {
	v, err := evalExpr(sc, row, ex.Expr)
	if err != nil {
		return storage.Null, err
	}
	if ex.Op != "-" {
		return storage.Null, newSemanticError("unsupported unary operator %q", ex.Op)
	}
	switch v.Kind {
	case storage.KindInt:
		return storage.IntValue(-v.Int), nil
	case storage.KindFloat:
		return storage.FloatValue(-v.Float), nil
	case storage.KindNull:
		return storage.Null, nil
	default:
		return storage.Null, newTypeError("cannot negate a non-numeric value")
	}
}

func evalIsNull(sc *scope, row joinRow, ex *IsNullExpr) (storage.Value, error) {
	v, err := evalExpr(sc, row, ex.Expr)
	if err != nil {
		return storage.Null, err
	}
	result := v.IsNull()
	if ex.Negate {
		result = !result
	}
	return storage.BoolValue(result), nil
}

func evalBinary(sc *scope, row joinRow, ex *Binary) (storage.Value, error) {
	switch ex.Op {
	case "AND", "OR":
		return evalLogical(sc, row, ex)
	case "=", "!=", "<>", "<", "<=", ">", ">=":
		return evalComparison(sc, row, ex)
	case "+", "-", "*", "/":
		return evalArithmetic(sc, row, ex)
	default:
		return storage.Null, newSemanticError("unsupported operator %q", ex.Op)
	}
}

func evalLogical(sc *scope, row joinRow, ex *Binary) (storage.Value, error) {
	lv, err := evalExpr(sc, row, ex.Left)
	if err != nil {
		return storage.Null, err
	}
	rv, err := evalExpr(sc, row, ex.Right)
	if err != nil {
		return storage.Null, err
	}
	l, err := boolOf(lv)
	if err != nil {
		return storage.Null, err
	}
	r, err := boolOf(rv)
	if err != nil {
		return storage.Null, err
	}
	if ex.Op == "AND" {
		return storage.BoolValue(l && r), nil
	}
	return storage.BoolValue(l || r), nil
}

// boolOf coerces a predicate operand to a plain bool under two-valued
// logic: NULL is false, everything else must already be boolean.
func boolOf(v storage.Value) (bool, error) {
	switch v.Kind {
	case storage.KindBool:
		return v.Bool, nil
	case storage.KindNull:
		return false, nil
	default:
		return false, newTypeError("expected a boolean expression")
	}
}

// evalComparison implements comparison-yields-false semantics: NULL
// operands and cross-type operands that are not orderable compare false
// for every operator, never an error.
func evalComparison(sc *scope, row joinRow, ex *Binary) (storage.Value, error) {
	lv, err := evalExpr(sc, row, ex.Left)
	if err != nil {
		return storage.Null, err
	}
	rv, err := evalExpr(sc, row, ex.Right)
	if err != nil {
		return storage.Null, err
	}
	c, ok := storage.CompareValues(lv, rv)
	if !ok {
		return storage.BoolValue(false), nil
	}
	var result bool
	switch ex.Op {
	case "=":
		result = c == 0
	case "!=", "<>":
		result = c != 0
	case "<":
		result = c < 0
	case "<=":
		result = c <= 0
	case ">":
		result = c > 0
	case ">=":
		result = c >= 0
	}
	return storage.BoolValue(result), nil
}

func evalArithmetic(sc *scope, row joinRow, ex *Binary) (storage.Value, error) {
	lv, err := evalExpr(sc, row, ex.Left)
	if err != nil {
		return storage.Null, err
	}
	rv, err := evalExpr(sc, row, ex.Right)
	if err != nil {
		return storage.Null, err
	}
	if lv.IsNull() || rv.IsNull() {
		return storage.Null, nil
	}
	lf, lok := asNumeric(lv)
	rf, rok := asNumeric(rv)
	if !lok || !rok {
		return storage.Null, newTypeError("arithmetic requires numeric operands")
	}
	if ex.Op == "/" && rf == 0 {
		return storage.Null, newTypeError("division by zero")
	}
	useFloat := lv.Kind == storage.KindFloat || rv.Kind == storage.KindFloat
	switch ex.Op {
	case "+":
		if useFloat {
			return storage.FloatValue(lf + rf), nil
		}
		return storage.IntValue(lv.Int + rv.Int), nil
	case "-":
		if useFloat {
			return storage.FloatValue(lf - rf), nil
		}
		return storage.IntValue(lv.Int - rv.Int), nil
	case "*":
		if useFloat {
			return storage.FloatValue(lf * rf), nil
		}
		return storage.IntValue(lv.Int * rv.Int), nil
	case "/":
		if useFloat {
			return storage.FloatValue(lf / rf), nil
		}
		if lv.Int%rv.Int == 0 {
			return storage.IntValue(lv.Int / rv.Int), nil
		}
		return storage.FloatValue(float64(lv.Int) / float64(rv.Int)), nil
	default:
		return storage.Null, newSemanticError("unsupported operator %q", ex.Op)
	}
}

func asNumeric(v storage.Value) (float64, bool) {
	switch v.Kind {
	case storage.KindInt:
		return float64(v.Int), true
	case storage.KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}
