package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/minisql/minisql/internal/storage"
)

// outputRow pairs one projected result row with the joinRow (or group
// representative) it was derived from, so ORDER BY can reach back to
// columns that weren't projected.
type outputRow struct {
	cols storage.Row
	src  joinRow
}

func executeSelect(cat *storage.Catalog, s *Select) (*ResultSet, error) {
	sc := &scope{}
	fromName, ok := cat.CanonicalName(s.From.Name)
	if !ok {
		return nil, newSemanticError("no such table %q", s.From.Name)
	}
	fromSchema, _ := cat.Schema(fromName)
	fromRows, err := cat.Rows(fromName)
	if err != nil {
		return nil, err
	}
	sc.add(s.From.Alias, fromSchema)

	rows := make([]joinRow, len(fromRows))
	for i, r := range fromRows {
		rows[i] = rowFromTable(s.From.Alias, fromSchema, r)
	}

	for _, j := range s.Joins {
		rightName, ok := cat.CanonicalName(j.Table.Name)
		if !ok {
			return nil, newSemanticError("no such table %q", j.Table.Name)
		}
		rightSchema, _ := cat.Schema(rightName)
		rightCatRows, err := cat.Rows(rightName)
		if err != nil {
			return nil, err
		}
		sc.add(j.Table.Alias, rightSchema)
		rightRows := make([]joinRow, len(rightCatRows))
		for i, r := range rightCatRows {
			rightRows[i] = rowFromTable(j.Table.Alias, rightSchema, r)
		}
		rows, err = applyJoin(sc, j, rows, rightRows, rightSchema)
		if err != nil {
			return nil, err
		}
	}

	rows, err = applyWhere(sc, s.Where, rows)
	if err != nil {
		return nil, err
	}

	outputs, cols, err := projectRows(sc, s, rows)
	if err != nil {
		return nil, err
	}

	if len(s.OrderBy) > 0 {
		if err := sortOutputs(sc, s.OrderBy, outputs); err != nil {
			return nil, err
		}
	}

	if s.Distinct {
		outputs = dedupeOutputs(outputs, cols)
	}

	result := &ResultSet{Columns: cols, Rows: make([]storage.Row, len(outputs))}
	for i, o := range outputs {
		result.Rows[i] = o.cols
	}
	return result, nil
}

// ---------------------------- joins ----------------------------

func applyJoin(sc *scope, j JoinClause, left, right []joinRow, rightSchema storage.Schema) ([]joinRow, error) {
	switch j.Kind {
	case JoinInner:
		return innerJoin(sc, left, right, j.On)
	case JoinLeft:
		return leftJoin(sc, left, right, j.On, j.Table.Alias, rightSchema)
	case JoinRight:
		return rightJoin(sc, left, right, j.On, leftAliases(sc, j.Table.Alias))
	case JoinFullOuter:
		return fullOuterJoin(sc, left, right, j.On, j.Table.Alias, rightSchema)
	default:
		return nil, newSemanticError("unsupported join kind")
	}
}

// leftAliases returns the schemas of every alias in scope other than
// exclude, used to pad the left side of a RIGHT JOIN's unmatched rows.
func leftAliases(sc *scope, exclude string) []aliasBinding {
	out := make([]aliasBinding, 0, len(sc.bindings))
	for _, b := range sc.bindings {
		if !strings.EqualFold(b.Alias, exclude) {
			out = append(out, b)
		}
	}
	return out
}

func matches(sc *scope, on Expr, row joinRow) (bool, error) {
	if on == nil {
		return true, nil
	}
	v, err := evalExpr(sc, row, on)
	if err != nil {
		return false, err
	}
	return boolOf(v)
}

func innerJoin(sc *scope, left, right []joinRow, on Expr) ([]joinRow, error) {
	out := make([]joinRow, 0, len(left))
	for _, l := range left {
		for _, r := range right {
			m := merge(l, r)
			ok, err := matches(sc, on, m)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func leftJoin(sc *scope, left, right []joinRow, on Expr, rightAlias string, rightSchema storage.Schema) ([]joinRow, error) {
	out := make([]joinRow, 0, len(left))
	nulls := withNulls(rightAlias, rightSchema)
	for _, l := range left {
		matched := false
		for _, r := range right {
			m := merge(l, r)
			ok, err := matches(sc, on, m)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, m)
				matched = true
			}
		}
		if !matched {
			out = append(out, merge(l, nulls))
		}
	}
	return out, nil
}

func rightJoin(sc *scope, left, right []joinRow, on Expr, leftBindings []aliasBinding) ([]joinRow, error) {
	out := make([]joinRow, 0, len(right))
	leftNulls := joinRow{}
	for _, b := range leftBindings {
		leftNulls = merge(leftNulls, withNulls(b.Alias, b.Schema))
	}
	for _, r := range right {
		matched := false
		for _, l := range left {
			m := merge(l, r)
			ok, err := matches(sc, on, m)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, m)
				matched = true
			}
		}
		if !matched {
			out = append(out, merge(leftNulls, r))
		}
	}
	return out, nil
}

// fullOuterJoin is the union of the LEFT and RIGHT outputs without
// duplicating matched pairs: inner-matched rows, plus unmatched left rows
// padded with right NULLs, plus unmatched right rows padded with left
// NULLs.
func fullOuterJoin(sc *scope, left, right []joinRow, on Expr, rightAlias string, rightSchema storage.Schema) ([]joinRow, error) {
	rightNulls := withNulls(rightAlias, rightSchema)
	leftMatched := make([]bool, len(left))
	rightMatched := make([]bool, len(right))
	var out []joinRow
	for li, l := range left {
		for ri, r := range right {
			m := merge(l, r)
			ok, err := matches(sc, on, m)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, m)
				leftMatched[li] = true
				rightMatched[ri] = true
			}
		}
	}
	for li, l := range left {
		if !leftMatched[li] {
			out = append(out, merge(l, rightNulls))
		}
	}
	leftNulls := joinRow{}
	for _, b := range leftAliases(sc, rightAlias) {
		leftNulls = merge(leftNulls, withNulls(b.Alias, b.Schema))
	}
	for ri, r := range right {
		if !rightMatched[ri] {
			out = append(out, merge(leftNulls, r))
		}
	}
	return out, nil
}

// ---------------------------- where ----------------------------

func applyWhere(sc *scope, where Expr, rows []joinRow) ([]joinRow, error) {
	if where == nil {
		return rows, nil
	}
	out := make([]joinRow, 0, len(rows))
	for _, r := range rows {
		v, err := evalExpr(sc, r, where)
		if err != nil {
			return nil, err
		}
		ok, err := boolOf(v)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// ---------------------------- group / aggregate / project ----------------------------

func anyAggregate(items []SelectItem) bool {
	for _, it := range items {
		if _, ok := it.Expr.(*AggCall); ok {
			return true
		}
	}
	return false
}

func projectRows(sc *scope, s *Select, rows []joinRow) ([]outputRow, []string, error) {
	if len(s.GroupBy) == 0 && !anyAggregate(s.Items) {
		return projectPlain(sc, s.Items, rows)
	}
	return projectAggregated(sc, s, rows)
}

func projectPlain(sc *scope, items []SelectItem, rows []joinRow) ([]outputRow, []string, error) {
	starCols := starColumns(sc)
	outputs := make([]outputRow, len(rows))
	var cols []string
	for i, r := range rows {
		cr, outCols, err := projectOne(sc, items, r, starCols)
		if err != nil {
			return nil, nil, err
		}
		outputs[i] = outputRow{cols: cr, src: r}
		if i == 0 {
			cols = outCols
		}
	}
	if len(rows) == 0 {
		_, outCols, err := projectOne(sc, items, joinRow{}, starCols)
		if err != nil {
			return nil, nil, err
		}
		cols = outCols
	}
	return outputs, cols, nil
}

func projectOne(sc *scope, items []SelectItem, r joinRow, starCols []labeledCol) (storage.Row, []string, error) {
	out := make(storage.Row)
	var names []string
	for _, item := range items {
		if item.Star {
			for _, lc := range starCols {
				v, err := evalExpr(sc, r, &VarRef{Qualifier: lc.alias, Name: lc.column})
				if err != nil {
					return nil, nil, err
				}
				out[lc.label] = v
				names = append(names, lc.label)
			}
			continue
		}
		v, err := evalExpr(sc, r, item.Expr)
		if err != nil {
			return nil, nil, err
		}
		label := itemLabel(item)
		out[label] = v
		names = append(names, label)
	}
	return out, names, nil
}

type labeledCol struct {
	alias, column, label string
}

// starColumns expands '*' to every column in scope, in join order,
// qualifying with alias.column only for names that collide across tables.
func starColumns(sc *scope) []labeledCol {
	counts := map[string]int{}
	for _, b := range sc.bindings {
		for _, c := range b.Schema.Columns {
			counts[strings.ToLower(c.Name)]++
		}
	}
	var out []labeledCol
	for _, b := range sc.bindings {
		for _, c := range b.Schema.Columns {
			label := c.Name
			if counts[strings.ToLower(c.Name)] > 1 {
				label = b.Alias + "." + c.Name
			}
			out = append(out, labeledCol{alias: b.Alias, column: c.Name, label: label})
		}
	}
	return out
}

func itemLabel(item SelectItem) string {
	if item.Alias != "" {
		return item.Alias
	}
	switch e := item.Expr.(type) {
	case *VarRef:
		return e.Name
	case *AggCall:
		arg := "*"
		if !e.Star {
			arg = exprText(e.Arg)
		}
		return fmt.Sprintf("%s(%s)", e.Name, arg)
	default:
		return exprText(e)
	}
}

func exprText(e Expr) string {
	switch ex := e.(type) {
	case *VarRef:
		if ex.Qualifier != "" {
			return ex.Qualifier + "." + ex.Name
		}
		return ex.Name
	case *Literal:
		return fmt.Sprintf("%v", ex.Val)
	case *AggCall:
		arg := "*"
		if !ex.Star {
			arg = exprText(ex.Arg)
		}
		return fmt.Sprintf("%s(%s)", ex.Name, arg)
	case *Unary:
		return ex.Op + exprText(ex.Expr)
	case *Binary:
		return exprText(ex.Left) + " " + ex.Op + " " + exprText(ex.Right)
	default:
		return "expr"
	}
}

// groupKey resolves a GROUP BY or select-position VarRef to a canonical
// "alias.column" string, independent of how the query spelled the
// qualifier, so membership checks aren't fooled by aliasing.
func groupKey(sc *scope, e Expr) (string, bool) {
	vr, ok := e.(*VarRef)
	if !ok {
		return "", false
	}
	alias := vr.Qualifier
	if alias == "" {
		owner, err := sc.resolve(vr.Name)
		if err != nil {
			return "", false
		}
		alias = owner
	}
	return strings.ToLower(alias) + "." + strings.ToLower(vr.Name), true
}

func projectAggregated(sc *scope, s *Select, rows []joinRow) ([]outputRow, []string, error) {
	groupKeys := map[string]bool{}
	for _, e := range s.GroupBy {
		if k, ok := groupKey(sc, e); ok {
			groupKeys[k] = true
		}
	}
	for _, item := range s.Items {
		if item.Star {
			return nil, nil, newSemanticError("'*' is not allowed with GROUP BY or aggregate functions")
		}
		if _, isAgg := item.Expr.(*AggCall); isAgg {
			continue
		}
		if k, ok := groupKey(sc, item.Expr); ok {
			if !groupKeys[k] {
				return nil, nil, newSemanticError("column %q must appear in the GROUP BY list", exprText(item.Expr))
			}
		}
	}

	type group struct {
		rows []joinRow
		key  []string
	}
	order := []string{}
	groups := map[string]*group{}
	for _, r := range rows {
		var keyParts []string
		for _, e := range s.GroupBy {
			v, err := evalExpr(sc, r, e)
			if err != nil {
				return nil, nil, err
			}
			keyParts = append(keyParts, valueGroupKey(v))
		}
		key := strings.Join(keyParts, "\x1f")
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, r)
	}
	if len(order) == 0 && len(s.GroupBy) == 0 {
		// No GROUP BY and no rows still yields one implicit group when
		// aggregates are requested over an empty input (e.g. COUNT(*) = 0).
		order = append(order, "")
		groups[""] = &group{}
	}

	outputs := make([]outputRow, 0, len(order))
	var cols []string
	for gi, key := range order {
		g := groups[key]
		rep := joinRow{}
		if len(g.rows) > 0 {
			rep = g.rows[0]
		}
		out := make(storage.Row)
		var names []string
		for _, item := range s.Items {
			label := itemLabel(item)
			names = append(names, label)
			if agg, ok := item.Expr.(*AggCall); ok {
				v, err := evalAggregate(sc, g.rows, agg)
				if err != nil {
					return nil, nil, err
				}
				out[label] = v
				continue
			}
			v, err := evalExpr(sc, rep, item.Expr)
			if err != nil {
				return nil, nil, err
			}
			out[label] = v
		}
		if gi == 0 {
			cols = names
		}
		outputs = append(outputs, outputRow{cols: out, src: rep})
	}
	return outputs, cols, nil
}

func valueGroupKey(v storage.Value) string {
	switch v.Kind {
	case storage.KindNull:
		return "N"
	case storage.KindInt:
		return fmt.Sprintf("F:%v", float64(v.Int))
	case storage.KindFloat:
		return fmt.Sprintf("F:%v", v.Float)
	case storage.KindText:
		return "S:" + v.Text
	case storage.KindBool:
		return fmt.Sprintf("B:%v", v.Bool)
	default:
		return "?"
	}
}

func evalAggregate(sc *scope, rows []joinRow, agg *AggCall) (storage.Value, error) {
	switch agg.Name {
	case "COUNT":
		if agg.Star {
			return storage.IntValue(int64(len(rows))), nil
		}
		n := 0
		for _, r := range rows {
			v, err := evalExpr(sc, r, agg.Arg)
			if err != nil {
				return storage.Null, err
			}
			if !v.IsNull() {
				n++
			}
		}
		return storage.IntValue(int64(n)), nil
	case "SUM", "AVG":
		sum := 0.0
		n := 0
		isFloat := false
		for _, r := range rows {
			v, err := evalExpr(sc, r, agg.Arg)
			if err != nil {
				return storage.Null, err
			}
			if v.IsNull() {
				continue
			}
			f, ok := asNumeric(v)
			if !ok {
				return storage.Null, newTypeError("%s requires a numeric column", agg.Name)
			}
			if v.Kind == storage.KindFloat {
				isFloat = true
			}
			sum += f
			n++
		}
		if n == 0 {
			return storage.Null, nil
		}
		if agg.Name == "AVG" {
			return storage.FloatValue(sum / float64(n)), nil
		}
		if isFloat {
			return storage.FloatValue(sum), nil
		}
		return storage.IntValue(int64(sum)), nil
	case "MIN", "MAX":
		var best storage.Value
		have := false
		for _, r := range rows {
			v, err := evalExpr(sc, r, agg.Arg)
			if err != nil {
				return storage.Null, err
			}
			if v.IsNull() {
				continue
			}
			if !have {
				best = v
				have = true
				continue
			}
			c, ok := storage.CompareValues(v, best)
			if !ok {
				continue
			}
			if (agg.Name == "MIN" && c < 0) || (agg.Name == "MAX" && c > 0) {
				best = v
			}
		}
		if !have {
			return storage.Null, nil
		}
		return best, nil
	default:
		return storage.Null, newSemanticError("unsupported aggregate %q", agg.Name)
	}
}

// ---------------------------- order / distinct ----------------------------

func sortOutputs(sc *scope, orderBy []OrderItem, outputs []outputRow) error {
	var sortErr error
	sort.SliceStable(outputs, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		for _, ob := range orderBy {
			vi, err := orderValue(sc, outputs[i], ob.Expr)
			if err != nil {
				sortErr = err
				return false
			}
			vj, err := orderValue(sc, outputs[j], ob.Expr)
			if err != nil {
				sortErr = err
				return false
			}
			c := compareForOrder(vi, vj, ob.Descending)
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	return sortErr
}

// orderValue resolves an ORDER BY key against the output row's projected
// columns first (so aliases like COUNT(...) AS n are reachable), falling
// back to the source join row for columns that weren't projected.
func orderValue(sc *scope, o outputRow, e Expr) (storage.Value, error) {
	if vr, ok := e.(*VarRef); ok && vr.Qualifier == "" {
		for k, v := range o.cols {
			if strings.EqualFold(k, vr.Name) {
				return v, nil
			}
		}
	}
	return evalExpr(sc, o.src, e)
}

// compareForOrder orders two values with NULLs last for ASC, first for
// DESC; same-type natural order, integer/float cross-compare numerically.
func compareForOrder(a, b storage.Value, desc bool) int {
	if a.IsNull() && b.IsNull() {
		return 0
	}
	if a.IsNull() {
		if desc {
			return -1
		}
		return 1
	}
	if b.IsNull() {
		if desc {
			return 1
		}
		return -1
	}
	c, ok := storage.CompareValues(a, b)
	if !ok {
		c = 0
	}
	if desc {
		return -c
	}
	return c
}

func dedupeOutputs(outputs []outputRow, cols []string) []outputRow {
	seen := map[string]bool{}
	out := make([]outputRow, 0, len(outputs))
	for _, o := range outputs {
		var parts []string
		for _, c := range cols {
			parts = append(parts, valueGroupKey(o.cols[c]))
		}
		sig := strings.Join(parts, "\x1f")
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, o)
	}
	return out
}
