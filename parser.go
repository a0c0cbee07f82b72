package cfg

import "strings"

// parser is a single-token-lookahead recursive-descent parser with
// precedence climbing over the expression grammar. It holds the pending
// token in tok and never attempts error recovery: the first failure is
// returned straight to the caller.
type parser struct {
	tz  *tokenizer
	tok Token
}

func newParser(tz *tokenizer) (*parser, error) {
	p := &parser{tz: tz}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	t, err := p.tz.getToken()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) want(k Kind) error {
	if p.tok.Kind != k {
		return parseErr(p.tok.Start, "expected %s, but found %s", tokenRepr(k), tokenRepr(p.tok.Kind))
	}
	return p.advance()
}

func (p *parser) skipNewlines() error {
	for p.tok.Kind == NEWLINE {
		if err := p.advance(); err != nil {
			return err
		}
	}
	return nil
}

func containsKind(kinds []Kind, k Kind) bool {
	for _, kk := range kinds {
		if kk == k {
			return true
		}
	}
	return false
}

// container := NEWLINE* ( mapping | list | mappingBody ) NEWLINE*
func (p *parser) parseContainer() (Node, error) {
	if err := p.skipNewlines(); err != nil {
		return nil, err
	}

	var node Node
	var err error

	switch p.tok.Kind {
	case LCURLY:
		node, err = p.parseMapping()
	case LBRACK:
		node, err = p.parseList()
	default:
		node, err = p.parseMappingBody(p.tok.Start)
	}
	if err != nil {
		return nil, err
	}

	if err := p.skipNewlines(); err != nil {
		return nil, err
	}
	return node, nil
}

// mapping := '{' mappingBody '}'
func (p *parser) parseMapping() (*MappingNode, error) {
	start := p.tok.Start

	if err := p.want(LCURLY); err != nil {
		return nil, err
	}

	body, err := p.parseMappingBody(start)
	if err != nil {
		return nil, err
	}

	if err := p.want(RCURLY); err != nil {
		return nil, err
	}
	return body, nil
}

// mappingBody := NEWLINE* ( key (':'|'=') NEWLINE* expr (NEWLINE|',')? NEWLINE* )*
func (p *parser) parseMappingBody(start Location) (*MappingNode, error) {
	m := &MappingNode{Loc: start}

	if err := p.skipNewlines(); err != nil {
		return nil, err
	}

	for p.tok.Kind != RCURLY && p.tok.Kind != EOF {
		key, err := p.parseKey()
		if err != nil {
			return nil, err
		}

		if p.tok.Kind != COLON && p.tok.Kind != ASSIGN {
			return nil, parseErr(p.tok.Start, "Expected key-value separator, but found %s", tokenRepr(p.tok.Kind))
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}

		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		m.Elements = append(m.Elements, MappingEntry{Key: key, Value: val})

		if p.tok.Kind == NEWLINE || p.tok.Kind == COMMA {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// key := WORD | STRING+
func (p *parser) parseKey() (Token, error) {
	switch p.tok.Kind {
	case WORD:
		t := p.tok
		if err := p.advance(); err != nil {
			return Token{}, err
		}
		return t, nil
	case STRING:
		return p.parseConcatString()
	default:
		return Token{}, parseErr(p.tok.Start, "Unexpected type for key: %s", tokenRepr(p.tok.Kind))
	}
}

// parseConcatString merges adjacent STRING tokens into one, per the parser
// rule that 'a' "b" parses as a single string.
func (p *parser) parseConcatString() (Token, error) {
	tok := p.tok

	if err := p.advance(); err != nil {
		return Token{}, err
	}

	for p.tok.Kind == STRING {
		tok.Text += p.tok.Text
		tok.Value = tok.Value.(string) + p.tok.Value.(string)
		tok.End = p.tok.End

		if err := p.advance(); err != nil {
			return Token{}, err
		}
	}
	return tok, nil
}

// list := '[' listBody ']'
// listBody := NEWLINE* ( expr ((NEWLINE|',') NEWLINE*)? )*
func (p *parser) parseList() (*ListNode, error) {
	start := p.tok.Start

	if err := p.want(LBRACK); err != nil {
		return nil, err
	}

	n := &ListNode{Loc: start}

	if err := p.skipNewlines(); err != nil {
		return nil, err
	}

	for p.tok.Kind != RBRACK && p.tok.Kind != EOF {
		el, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		n.Elements = append(n.Elements, el)

		if p.tok.Kind == NEWLINE || p.tok.Kind == COMMA {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.skipNewlines(); err != nil {
				return nil, err
			}
		}
	}

	if err := p.want(RBRACK); err != nil {
		return nil, err
	}
	return n, nil
}

// parseIndexOrSlice implements the trailer rule for '[' ... ']': a plain
// list body with no colons is an index (or, with more than one element, an
// ill-typed index left for the evaluator to reject); any colon seen turns
// it into a slice, each of whose parts must be exactly one expression.
func (p *parser) parseIndexOrSlice(start Location) (Node, error) {
	var segments [][]Node
	cur := []Node{}
	colons := 0

	if err := p.skipNewlines(); err != nil {
		return nil, err
	}

	for p.tok.Kind != RBRACK && p.tok.Kind != EOF {
		if p.tok.Kind == COLON {
			colons++
			if colons > 2 {
				return nil, parseErr(p.tok.Start, "too many ':' in slice")
			}
			segments = append(segments, cur)
			cur = []Node{}

			if err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.skipNewlines(); err != nil {
				return nil, err
			}
			continue
		}

		el, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		cur = append(cur, el)

		if p.tok.Kind == NEWLINE || p.tok.Kind == COMMA {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.skipNewlines(); err != nil {
				return nil, err
			}
		}
	}
	segments = append(segments, cur)

	if colons == 0 {
		if len(segments[0]) == 1 {
			return segments[0][0], nil
		}
		return &ListNode{Elements: segments[0], Loc: start}, nil
	}

	exactlyOne := func(seg []Node) (Node, error) {
		if len(seg) == 0 {
			return nil, nil
		}
		if len(seg) != 1 {
			return nil, parseErr(start, "expected 1 expression, found %d", len(seg))
		}
		return seg[0], nil
	}

	sliceStart, err := exactlyOne(segments[0])
	if err != nil {
		return nil, err
	}

	var sliceStop, sliceStep Node

	if len(segments) > 1 {
		if sliceStop, err = exactlyOne(segments[1]); err != nil {
			return nil, err
		}
	}
	if len(segments) > 2 {
		if sliceStep, err = exactlyOne(segments[2]); err != nil {
			return nil, err
		}
	}

	return &SliceNode{Start: sliceStart, Stop: sliceStop, Step: sliceStep, Loc: start}, nil
}

// trailer := '.' WORD | '[' indexOrSlice ']'
func (p *parser) parseTrailer(base Node) (Node, error) {
	for {
		switch p.tok.Kind {
		case DOT:
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.tok.Kind != WORD {
				return nil, parseErr(p.tok.Start, "Unexpected type for key: %s", tokenRepr(p.tok.Kind))
			}
			name := p.tok
			if err := p.advance(); err != nil {
				return nil, err
			}
			base = &BinaryNode{Kind: DOT, Left: base, Right: &TokenNode{Tok: name}}
		case LBRACK:
			start := p.tok.Start
			if err := p.advance(); err != nil {
				return nil, err
			}
			idx, err := p.parseIndexOrSlice(start)
			if err != nil {
				return nil, err
			}
			if err := p.want(RBRACK); err != nil {
				return nil, err
			}
			if sl, ok := idx.(*SliceNode); ok {
				base = &BinaryNode{Kind: COLON, Left: base, Right: sl}
			} else {
				base = &BinaryNode{Kind: LBRACK, Left: base, Right: idx}
			}
		default:
			return base, nil
		}
	}
}

// atom := mapping | list | '${' primary '}' | '(' expr ')'
//       | WORD | INTEGER | FLOAT | COMPLEX | STRING+ | BACKTICK
//       | TRUE | FALSE | NULL
func (p *parser) parseAtom() (Node, error) {
	switch p.tok.Kind {
	case LCURLY:
		return p.parseMapping()
	case LBRACK:
		return p.parseList()
	case DOLLAR:
		loc := p.tok.Start
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.want(LCURLY); err != nil {
			return nil, err
		}
		inner, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if err := p.want(RCURLY); err != nil {
			return nil, err
		}
		return &UnaryNode{Kind: DOLLAR, Operand: inner, Loc: loc}, nil
	case LPAREN:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.want(RPAREN); err != nil {
			return nil, err
		}
		return inner, nil
	case WORD, INTEGER, FLOAT, COMPLEX, BACKTICK, TRUE, FALSE, NULL:
		t := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &TokenNode{Tok: t}, nil
	case STRING:
		t, err := p.parseConcatString()
		if err != nil {
			return nil, err
		}
		return &TokenNode{Tok: t}, nil
	default:
		return nil, parseErr(p.tok.Start, "unexpected %s", tokenRepr(p.tok.Kind))
	}
}

// primary := atom trailer*
func (p *parser) parsePrimary() (Node, error) {
	atom, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	return p.parseTrailer(atom)
}

// power := primary ( '**' unaryExpr )?    // right-associative
func (p *parser) parsePower() (Node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	if p.tok.Kind == POWER {
		if err := p.advance(); err != nil {
			return nil, err
		}
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &BinaryNode{Kind: POWER, Left: base, Right: exp}, nil
	}
	return base, nil
}

// unaryExpr := ('+'|'-'|'~'|'@') unaryExpr | power
func (p *parser) parseUnary() (Node, error) {
	switch p.tok.Kind {
	case PLUS, MINUS, TILDE, AT:
		k := p.tok.Kind
		loc := p.tok.Start

		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryNode{Kind: k, Operand: operand, Loc: loc}, nil
	default:
		return p.parsePower()
	}
}

func (p *parser) binaryChain(next func() (Node, error), kinds ...Kind) (Node, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}

	for containsKind(kinds, p.tok.Kind) {
		op := p.tok.Kind

		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Kind: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMul() (Node, error) { return p.binaryChain(p.parseUnary, STAR, SLASH, SLASHSLASH, MODULO) }
func (p *parser) parseAdd() (Node, error) { return p.binaryChain(p.parseMul, PLUS, MINUS) }
func (p *parser) parseShift() (Node, error) {
	return p.binaryChain(p.parseAdd, LSHIFT, RSHIFT)
}
func (p *parser) parseBitAnd() (Node, error) { return p.binaryChain(p.parseShift, BITAND) }
func (p *parser) parseBitXor() (Node, error) { return p.binaryChain(p.parseBitAnd, BITXOR) }
func (p *parser) parseBitOr() (Node, error)  { return p.binaryChain(p.parseBitXor, BITOR) }

// compOp := '<'|'<='|'>'|'>='|'=='|'!='|'<>'|'in'|'is'|'is not'|'not in'
func (p *parser) matchCompOp() (Kind, bool, error) {
	switch p.tok.Kind {
	case LT, LE, GT, GE, EQ, NEQ, ALTNEQ, IN:
		k := p.tok.Kind
		if err := p.advance(); err != nil {
			return 0, false, err
		}
		return k, true, nil
	case IS:
		if err := p.advance(); err != nil {
			return 0, false, err
		}
		if p.tok.Kind == NOT {
			if err := p.advance(); err != nil {
				return 0, false, err
			}
			return ISNOT, true, nil
		}
		return IS, true, nil
	case NOT:
		start := p.tok.Start

		if err := p.advance(); err != nil {
			return 0, false, err
		}
		if p.tok.Kind == IN {
			if err := p.advance(); err != nil {
				return 0, false, err
			}
			return NOTIN, true, nil
		}
		return 0, false, parseErr(start, "unexpected %s", tokenRepr(NOT))
	default:
		return 0, false, nil
	}
}

// comparison := bitorExpr ( compOp bitorExpr )*
func (p *parser) parseComparison() (Node, error) {
	left, err := p.parseBitOr()
	if err != nil {
		return nil, err
	}

	for {
		kind, matched, err := p.matchCompOp()
		if err != nil {
			return nil, err
		}
		if !matched {
			break
		}

		right, err := p.parseBitOr()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Kind: kind, Left: left, Right: right}
	}
	return left, nil
}

// notExpr := 'not' notExpr | comparison
func (p *parser) parseNot() (Node, error) {
	if p.tok.Kind == NOT {
		loc := p.tok.Start

		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryNode{Kind: NOT, Operand: operand, Loc: loc}, nil
	}
	return p.parseComparison()
}

// andExpr := notExpr ( 'and' notExpr )*
func (p *parser) parseAnd() (Node, error) { return p.binaryChain(p.parseNot, AND) }

// expr := andExpr ( 'or' andExpr )*
func (p *parser) parseExpr() (Node, error) { return p.binaryChain(p.parseAnd, OR) }

// Parse tokenizes and parses text under the named grammar rule
// ("container", "expr", or "primary") and returns its AST.
func Parse(text string, rule string) (Node, error) {
	cs, err := newCharSource("<text>", strings.NewReader(text))
	if err != nil {
		return nil, err
	}

	tz := newTokenizer("<text>", cs)

	p, err := newParser(tz)
	if err != nil {
		return nil, err
	}

	var node Node

	switch rule {
	case "", "container":
		node, err = p.parseContainer()
	case "expr":
		node, err = p.parseExpr()
	case "primary":
		node, err = p.parsePrimary()
	default:
		return nil, configErr(Location{}, "unknown parse rule: %s", rule)
	}
	if err != nil {
		return nil, err
	}

	if p.tok.Kind != EOF {
		return nil, parseErr(p.tok.Start, "unexpected %s", tokenRepr(p.tok.Kind))
	}
	return node, nil
}
