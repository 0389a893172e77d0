package engine

import (
	"strconv"

	"github.com/minisql/minisql/internal/storage"
)

// Parser is a single-pass, one-token-lookahead recursive-descent parser
// over the token stream produced by the lexer.
type Parser struct {
	toks []token
	pos  int
}

// NewParser tokenizes sql and returns a ready Parser. A lex error surfaces
// immediately rather than lazily on the first ParseStatement call, since
// the parser needs the full token stream up front.
func NewParser(sql string) (*Parser, error) {
	toks, err := Tokenize(sql)
	if err != nil {
		return nil, err
	}
	return &Parser{toks: toks}, nil
}

func (p *Parser) cur() token  { return p.toks[p.pos] }
func (p *Parser) peek() token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}
func (p *Parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) atKeyword(kw string) bool {
	return p.cur().Kind == tKeyword && p.cur().Val == kw
}
func (p *Parser) atPunct(v string) bool {
	return p.cur().Kind == tPunct && p.cur().Val == v
}
func (p *Parser) atOperator(v string) bool {
	return p.cur().Kind == tOperator && p.cur().Val == v
}

func (p *Parser) expectKeyword(kw string) error {
	if p.atKeyword(kw) {
		p.advance()
		return nil
	}
	return p.errExpected(kw)
}

func (p *Parser) expectPunct(v string) error {
	if p.atPunct(v) {
		p.advance()
		return nil
	}
	return p.errExpected(v)
}

func (p *Parser) errExpected(expected string) error {
	t := p.cur()
	found := t.Val
	if t.Kind == tEOF {
		found = "<eof>"
	}
	return &ParseError{Pos: t.Pos, Expected: expected, Found: found}
}

// expectIdent consumes an identifier token, also accepting keyword
// lexemes used as bare identifiers (column names that collide with a
// reserved word) the way the teacher parser does.
func (p *Parser) expectIdent() (string, error) {
	t := p.cur()
	if t.Kind == tIdent {
		p.advance()
		return t.Val, nil
	}
	if t.Kind == tKeyword {
		p.advance()
		return t.Val, nil
	}
	return "", p.errExpected("identifier")
}

// ParseStatements parses every statement in sql, separated by ';'. A
// trailing ';' is optional; empty input yields an empty slice.
func ParseStatements(sql string) ([]Statement, error) {
	p, err := NewParser(sql)
	if err != nil {
		return nil, err
	}
	return p.ParseAll()
}

// ParseAll consumes the remaining token stream as a semicolon-separated
// list of statements.
func (p *Parser) ParseAll() ([]Statement, error) {
	var stmts []Statement
	for p.cur().Kind != tEOF {
		for p.atPunct(";") {
			p.advance()
		}
		if p.cur().Kind == tEOF {
			break
		}
		stmt, err := p.ParseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		for p.atPunct(";") {
			p.advance()
		}
	}
	return stmts, nil
}

// ParseStatement parses exactly one statement starting at the current
// token, leaving the cursor positioned just after it (before any ';').
func (p *Parser) ParseStatement() (Statement, error) {
	switch {
	case p.atKeyword("CREATE"):
		return p.parseCreateTable()
	case p.atKeyword("DROP"):
		return p.parseDropTable()
	case p.atKeyword("INSERT"):
		return p.parseInsert()
	case p.atKeyword("UPDATE"):
		return p.parseUpdate()
	case p.atKeyword("DELETE"):
		return p.parseDelete()
	case p.atKeyword("SELECT"):
		return p.parseSelect()
	default:
		return nil, p.errExpected("statement")
	}
}

// ------------------------------ DDL ------------------------------

func (p *Parser) parseCreateTable() (Statement, error) {
	if err := p.expectKeyword("CREATE"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var cols []storage.Column
	for {
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return &CreateTable{Name: name, Columns: cols}, nil
}

func (p *Parser) parseColumnDef() (storage.Column, error) {
	name, err := p.expectIdent()
	if err != nil {
		return storage.Column{}, err
	}
	typ, err := p.parseColType()
	if err != nil {
		return storage.Column{}, err
	}
	col := storage.Column{Name: name, Type: typ}
	for {
		switch {
		case p.atKeyword("PRIMARY"):
			p.advance()
			if err := p.expectKeyword("KEY"); err != nil {
				return storage.Column{}, err
			}
			col.PrimaryKey = true
			col.NotNull = true
			col.Unique = true
		case p.atKeyword("NOT"):
			p.advance()
			if err := p.expectKeyword("NULL"); err != nil {
				return storage.Column{}, err
			}
			col.NotNull = true
		case p.atKeyword("UNIQUE"):
			p.advance()
			col.Unique = true
		case p.atKeyword("REFERENCES"):
			p.advance()
			refTable, err := p.expectIdent()
			if err != nil {
				return storage.Column{}, err
			}
			if err := p.expectPunct("("); err != nil {
				return storage.Column{}, err
			}
			refCol, err := p.expectIdent()
			if err != nil {
				return storage.Column{}, err
			}
			if err := p.expectPunct(")"); err != nil {
				return storage.Column{}, err
			}
			col.References = &storage.ForeignKeyRef{Table: refTable, Column: refCol}
		default:
			return col, nil
		}
	}
}

func (p *Parser) parseColType() (storage.ColType, error) {
	t := p.cur()
	if t.Kind != tKeyword {
		return 0, p.errExpected("column type")
	}
	ct, ok := storage.ParseColType(t.Val)
	if !ok {
		return 0, p.errExpected("column type")
	}
	p.advance()
	return ct, nil
}

func (p *Parser) parseDropTable() (Statement, error) {
	if err := p.expectKeyword("DROP"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	return &DropTable{Name: name}, nil
}

// ------------------------------ DML ------------------------------

func (p *Parser) parseInsert() (Statement, error) {
	if err := p.expectKeyword("INSERT"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var cols []string
	if p.atPunct("(") {
		p.advance()
		for {
			c, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			cols = append(cols, c)
			if p.atPunct(",") {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	var rows [][]Expr
	for {
		row, err := p.parseValuesRow()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return &Insert{Table: name, Columns: cols, Rows: rows}, nil
}

func (p *Parser) parseValuesRow() ([]Expr, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var exprs []Expr
	for {
		e, err := p.parseLiteralExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return exprs, nil
}

// parseLiteralExpr parses one VALUES-row cell: a literal, optionally
// negated. Identifiers are not permitted here (spec §4.2).
func (p *Parser) parseLiteralExpr() (Expr, error) {
	if p.atOperator("-") {
		p.advance()
		inner, err := p.parseLiteralExpr()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "-", Expr: inner}, nil
	}
	t := p.cur()
	switch t.Kind {
	case tInt:
		p.advance()
		v, _ := strconv.ParseInt(t.Val, 10, 64)
		return &Literal{Val: v}, nil
	case tFloat:
		p.advance()
		v, _ := strconv.ParseFloat(t.Val, 64)
		return &Literal{Val: v}, nil
	case tString:
		p.advance()
		return &Literal{Val: t.Val}, nil
	case tKeyword:
		switch t.Val {
		case "TRUE":
			p.advance()
			return &Literal{Val: true}, nil
		case "FALSE":
			p.advance()
			return &Literal{Val: false}, nil
		case "NULL":
			p.advance()
			return &Literal{Val: nil}, nil
		}
	}
	return nil, p.errExpected("literal")
}

func (p *Parser) parseUpdate() (Statement, error) {
	if err := p.expectKeyword("UPDATE"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	u := &Update{Table: name}
	for {
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectOperator("="); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		u.SetCols = append(u.SetCols, col)
		u.SetExprs = append(u.SetExprs, e)
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if p.atKeyword("WHERE") {
		p.advance()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		u.Where = w
	}
	return u, nil
}

func (p *Parser) expectOperator(op string) error {
	if p.atOperator(op) {
		p.advance()
		return nil
	}
	return p.errExpected(op)
}

func (p *Parser) parseDelete() (Statement, error) {
	if err := p.expectKeyword("DELETE"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	d := &Delete{Table: name}
	if p.atKeyword("WHERE") {
		p.advance()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		d.Where = w
	}
	return d, nil
}

// ------------------------------ SELECT ------------------------------

func (p *Parser) parseSelect() (Statement, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	sel := &Select{}
	if p.atKeyword("DISTINCT") {
		p.advance()
		sel.Distinct = true
	}
	items, err := p.parseSelectList()
	if err != nil {
		return nil, err
	}
	sel.Items = items
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	from, err := p.parseTableRef()
	if err != nil {
		return nil, err
	}
	sel.From = from
	for p.startsJoin() {
		jc, err := p.parseJoinClause()
		if err != nil {
			return nil, err
		}
		sel.Joins = append(sel.Joins, jc)
	}
	if p.atKeyword("WHERE") {
		p.advance()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Where = w
	}
	if p.atKeyword("GROUP") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			sel.GroupBy = append(sel.GroupBy, e)
			if p.atPunct(",") {
				p.advance()
				continue
			}
			break
		}
	}
	if p.atKeyword("ORDER") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			desc := false
			if p.atKeyword("ASC") {
				p.advance()
			} else if p.atKeyword("DESC") {
				p.advance()
				desc = true
			}
			sel.OrderBy = append(sel.OrderBy, OrderItem{Expr: e, Descending: desc})
			if p.atPunct(",") {
				p.advance()
				continue
			}
			break
		}
	}
	return sel, nil
}

func (p *Parser) parseSelectList() ([]SelectItem, error) {
	var items []SelectItem
	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *Parser) parseSelectItem() (SelectItem, error) {
	if p.atPunct("*") {
		p.advance()
		return SelectItem{Star: true}, nil
	}
	e, err := p.parseSelectExpr()
	if err != nil {
		return SelectItem{}, err
	}
	alias := ""
	if p.atKeyword("AS") {
		p.advance()
		a, err := p.expectIdent()
		if err != nil {
			return SelectItem{}, err
		}
		alias = a
	} else if p.cur().Kind == tIdent {
		alias = p.advance().Val
	}
	return SelectItem{Expr: e, Alias: alias}, nil
}

// parseSelectExpr parses a select-position expression: a column ref, a
// literal, or an aggregate call. Plain arithmetic is not needed in select
// position for this grammar beyond what parseExpr already offers, so it
// simply delegates.
func (p *Parser) parseSelectExpr() (Expr, error) {
	if agg, ok := aggregateNames[p.cur().Val]; ok && p.cur().Kind == tKeyword {
		return p.parseAggCall(agg)
	}
	return p.parseExpr()
}

var aggregateNames = map[string]string{
	"COUNT": "COUNT", "SUM": "SUM", "AVG": "AVG", "MIN": "MIN", "MAX": "MAX",
}

func (p *Parser) parseAggCall(name string) (Expr, error) {
	p.advance()
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	agg := &AggCall{Name: name}
	if p.atPunct("*") {
		p.advance()
		agg.Star = true
	} else {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		agg.Arg = e
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return agg, nil
}

func (p *Parser) parseTableRef() (TableRef, error) {
	name, err := p.expectIdent()
	if err != nil {
		return TableRef{}, err
	}
	ref := TableRef{Name: name, Alias: name}
	if p.atKeyword("AS") {
		p.advance()
		a, err := p.expectIdent()
		if err != nil {
			return TableRef{}, err
		}
		ref.Alias = a
	} else if p.cur().Kind == tIdent {
		ref.Alias = p.advance().Val
	}
	return ref, nil
}

func (p *Parser) startsJoin() bool {
	if p.atKeyword("JOIN") || p.atKeyword("INNER") || p.atKeyword("LEFT") ||
		p.atKeyword("RIGHT") || p.atKeyword("FULL") {
		return true
	}
	return false
}

func (p *Parser) parseJoinClause() (JoinClause, error) {
	kind := JoinInner
	switch {
	case p.atKeyword("INNER"):
		p.advance()
	case p.atKeyword("LEFT"):
		p.advance()
		kind = JoinLeft
		if p.atKeyword("OUTER") {
			p.advance()
		}
	case p.atKeyword("RIGHT"):
		p.advance()
		kind = JoinRight
		if p.atKeyword("OUTER") {
			p.advance()
		}
	case p.atKeyword("FULL"):
		p.advance()
		if err := p.expectKeyword("OUTER"); err != nil {
			return JoinClause{}, err
		}
		kind = JoinFullOuter
	}
	if err := p.expectKeyword("JOIN"); err != nil {
		return JoinClause{}, err
	}
	table, err := p.parseTableRef()
	if err != nil {
		return JoinClause{}, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return JoinClause{}, err
	}
	on, err := p.parseExpr()
	if err != nil {
		return JoinClause{}, err
	}
	return JoinClause{Kind: kind, Table: table, On: on}, nil
}

// ------------------------------ expressions ------------------------------
//
// Precedence, low to high: OR, AND, comparison/IS/BETWEEN, additive,
// multiplicative, unary.

func (p *Parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("OR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("AND") {
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

var cmpOps = map[string]bool{"=": true, "!=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.atKeyword("IS") {
		p.advance()
		negate := false
		if p.atKeyword("NOT") {
			p.advance()
			negate = true
		}
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return &IsNullExpr{Expr: left, Negate: negate}, nil
	}
	if p.atKeyword("BETWEEN") {
		p.advance()
		lo, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return nil, err
		}
		hi, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		// BETWEEN a AND b desugars to e >= a AND e <= b.
		return &Binary{
			Op:   "AND",
			Left: &Binary{Op: ">=", Left: left, Right: lo},
			Right: &Binary{Op: "<=", Left: left, Right: hi},
		}, nil
	}
	if p.cur().Kind == tOperator && cmpOps[p.cur().Val] {
		op := p.advance().Val
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &Binary{Op: op, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == tOperator && (p.cur().Val == "+" || p.cur().Val == "-") {
		op := p.advance().Val
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	// '*' is lexed as punctuation (it also marks SELECT * and COUNT(*)),
	// so it's recognized here by value rather than by token kind.
	for p.cur().Val == "*" || (p.cur().Kind == tOperator && p.cur().Val == "/") {
		op := p.advance().Val
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.atOperator("-") {
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "-", Expr: inner}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expr, error) {
	t := p.cur()
	switch t.Kind {
	case tInt:
		p.advance()
		v, _ := strconv.ParseInt(t.Val, 10, 64)
		return &Literal{Val: v}, nil
	case tFloat:
		p.advance()
		v, _ := strconv.ParseFloat(t.Val, 64)
		return &Literal{Val: v}, nil
	case tString:
		p.advance()
		return &Literal{Val: t.Val}, nil
	case tPunct:
		if t.Val == "(" {
			p.advance()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return e, nil
		}
	case tKeyword:
		switch t.Val {
		case "TRUE":
			p.advance()
			return &Literal{Val: true}, nil
		case "FALSE":
			p.advance()
			return &Literal{Val: false}, nil
		case "NULL":
			p.advance()
			return &Literal{Val: nil}, nil
		}
		if agg, ok := aggregateNames[t.Val]; ok {
			return p.parseAggCall(agg)
		}
	case tIdent:
		return p.parseVarRef()
	}
	return nil, p.errExpected("expression")
}

func (p *Parser) parseVarRef() (Expr, error) {
	first, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if p.atPunct(".") {
		p.advance()
		second, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &VarRef{Qualifier: first, Name: second}, nil
	}
	return &VarRef{Name: first}, nil
}
