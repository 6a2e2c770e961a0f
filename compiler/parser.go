package compiler

// ---------------------------------------------------------------------------
// Parser: recursive descent over a TokenStream
// ---------------------------------------------------------------------------

// Parser builds an arena of nodes from source text. Each precedence
// level is one method; every binary level is left-associative.
type Parser struct {
	src    string
	tokens *TokenStream
	arena  *Arena
}

// NewParser creates a new parser for the given source.
func NewParser(src string) *Parser {
	return &Parser{
		src:    src,
		tokens: NewTokenStream(NewLexer(src)),
		arena:  NewArena(),
	}
}

// Parse parses src and returns the arena and the id of its Module node.
func Parse(src string) (*Arena, NodeID, error) {
	p := NewParser(src)
	root, err := p.Parse()
	return p.arena, root, err
}

// Arena returns the arena the parser allocates into.
func (p *Parser) Arena() *Arena {
	return p.arena
}

// Parse parses a whole module. The token stream must be consumed up to
// and including the ENDMARKER.
func (p *Parser) Parse() (NodeID, error) {
	body, err := p.statements(false)
	if err != nil {
		return NoNode, err
	}
	end, err := p.expect(TokenEndmarker, "end of input")
	if err != nil {
		return NoNode, err
	}
	span := end.Span
	if len(body) > 0 {
		span = p.arena.Span(body[0]).Merge(p.arena.Span(body[len(body)-1]))
	}
	return p.arena.Alloc(&Module{SpanVal: span, Body: body}), nil
}

// ---------------------------------------------------------------------------
// Token helpers
// ---------------------------------------------------------------------------

func (p *Parser) eof() Token {
	end := len(p.src)
	return Token{Type: TokenEndmarker, Span: Span{end, end}}
}

func (p *Parser) peek() (Token, error) {
	tok, ok, err := p.tokens.Peek(1)
	if err != nil {
		return Token{}, err
	}
	if !ok {
		return p.eof(), nil
	}
	return tok, nil
}

func (p *Parser) advance() (Token, error) {
	tok, ok, err := p.tokens.Next()
	if err != nil {
		return Token{}, err
	}
	if !ok {
		return p.eof(), nil
	}
	return tok, nil
}

// skip consumes a token that has already been peeked.
func (p *Parser) skip() error {
	_, err := p.advance()
	return err
}

func (p *Parser) expect(typ TokenType, what string) (Token, error) {
	tok, err := p.peek()
	if err != nil {
		return Token{}, err
	}
	if tok.Type != typ {
		if tok.Type == TokenIndent || tok.Type == TokenEndmarker {
			return Token{}, p.unexpected(tok)
		}
		return Token{}, errorAt(SyntaxError, tok.Span, "expected %s", what)
	}
	return p.advance()
}

func (p *Parser) unexpected(tok Token) error {
	switch tok.Type {
	case TokenIndent:
		return errorAt(IndentationError, tok.Span, "unexpected indent")
	case TokenDedent:
		return errorAt(IndentationError, tok.Span, "unindent does not match any outer indentation level")
	case TokenEndmarker:
		return errorAt(SyntaxError, tok.Span, "unexpected end of input")
	}
	return errorAt(SyntaxError, tok.Span, "invalid syntax")
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// statements parses statements until ENDMARKER, or until DEDENT inside a
// block.
func (p *Parser) statements(inBlock bool) ([]NodeID, error) {
	var body []NodeID
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case TokenNewline:
			if _, err := p.advance(); err != nil {
				return nil, err
			}
			continue
		case TokenEndmarker:
			return body, nil
		case TokenDedent:
			if inBlock {
				return body, nil
			}
			return nil, p.unexpected(tok)
		case TokenIndent:
			return nil, p.unexpected(tok)
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmt)
	}
}

func (p *Parser) statement() (NodeID, error) {
	id, ok, err := p.compoundStatement()
	if err != nil || ok {
		return id, err
	}
	return p.simpleStatement()
}

// compoundStatement parses if, while and def. ok is false when the next
// token does not start a compound statement.
func (p *Parser) compoundStatement() (id NodeID, ok bool, err error) {
	tok, err := p.peek()
	if err != nil || tok.Type != TokenName {
		return NoNode, false, err
	}
	switch tok.Literal {
	case "if":
		id, err = p.ifStatement()
	case "while":
		id, err = p.whileStatement()
	case "def":
		id, err = p.funcDef()
	default:
		return NoNode, false, nil
	}
	return id, true, err
}

func (p *Parser) simpleStatement() (NodeID, error) {
	tok, err := p.peek()
	if err != nil {
		return NoNode, err
	}

	var id NodeID
	switch {
	case tok.IsKeyword("pass"):
		if err := p.skip(); err != nil {
			return NoNode, err
		}
		id = p.arena.Alloc(&Pass{SpanVal: tok.Span})
	case tok.IsKeyword("break"):
		if err := p.skip(); err != nil {
			return NoNode, err
		}
		id = p.arena.Alloc(&Break{SpanVal: tok.Span})
	case tok.IsKeyword("continue"):
		if err := p.skip(); err != nil {
			return NoNode, err
		}
		id = p.arena.Alloc(&Continue{SpanVal: tok.Span})
	case tok.IsKeyword("return"):
		id, err = p.returnStatement()
	default:
		id, err = p.expressionStatement()
	}
	if err != nil {
		return NoNode, err
	}

	next, err := p.peek()
	if err != nil {
		return NoNode, err
	}
	switch next.Type {
	case TokenNewline:
		if _, err := p.advance(); err != nil {
			return NoNode, err
		}
	case TokenDedent, TokenEndmarker:
	default:
		return NoNode, p.unexpected(next)
	}
	return id, nil
}

func (p *Parser) returnStatement() (NodeID, error) {
	kw, err := p.advance()
	if err != nil {
		return NoNode, err
	}
	next, err := p.peek()
	if err != nil {
		return NoNode, err
	}
	switch next.Type {
	case TokenNewline, TokenDedent, TokenEndmarker:
		return p.arena.Alloc(&Return{SpanVal: kw.Span, Value: NoNode}), nil
	}
	value, err := p.expression()
	if err != nil {
		return NoNode, err
	}
	return p.arena.Alloc(&Return{SpanVal: kw.Span.Merge(p.arena.Span(value)), Value: value}), nil
}

// expressionStatement parses an expression statement or an assignment.
func (p *Parser) expressionStatement() (NodeID, error) {
	expr, err := p.expression()
	if err != nil {
		return NoNode, err
	}
	next, err := p.peek()
	if err != nil {
		return NoNode, err
	}

	if next.Type != TokenEqual {
		span := Span{p.arena.Span(expr).Start, next.Span.End}
		return p.arena.Alloc(&ExprStmt{SpanVal: span, Value: expr}), nil
	}

	if _, err := p.advance(); err != nil {
		return NoNode, err
	}
	value, err := p.expression()
	if err != nil {
		return NoNode, err
	}
	span := p.arena.Span(expr).Merge(p.arena.Span(value))
	switch target := p.arena.Get(expr).(type) {
	case *Name:
		return p.arena.Alloc(&Assign{SpanVal: span, Target: target.ID, Value: value}), nil
	case *Subscript:
		return p.arena.Alloc(&SubscriptAssign{SpanVal: span, Target: expr, Value: value}), nil
	}
	return NoNode, errorAt(SyntaxError, p.arena.Span(expr), "cannot assign to expression")
}

// block parses the suite after a compound statement header: either one
// simple statement on the same line, or NEWLINE INDENT statements DEDENT.
func (p *Parser) block() ([]NodeID, error) {
	if _, err := p.expect(TokenColon, "':'"); err != nil {
		return nil, err
	}
	next, err := p.peek()
	if err != nil {
		return nil, err
	}
	if next.Type != TokenNewline {
		stmt, err := p.simpleStatement()
		if err != nil {
			return nil, err
		}
		return []NodeID{stmt}, nil
	}
	if _, err := p.advance(); err != nil {
		return nil, err
	}

	next, err = p.peek()
	if err != nil {
		return nil, err
	}
	if next.Type != TokenIndent {
		return nil, errorAt(IndentationError, next.Span, "expected an indented block")
	}
	if _, err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.statements(true)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		return nil, errorAt(IndentationError, tok.Span, "expected an indented block")
	}
	if _, err := p.expect(TokenDedent, "dedent"); err != nil {
		return nil, err
	}
	return body, nil
}

func (p *Parser) lastSpan(start Token, body []NodeID) Span {
	if len(body) == 0 {
		return start.Span
	}
	return start.Span.Merge(p.arena.Span(body[len(body)-1]))
}

// ifStatement parses if and elif; an elif chain nests in Orelse.
func (p *Parser) ifStatement() (NodeID, error) {
	kw, err := p.advance()
	if err != nil {
		return NoNode, err
	}
	test, err := p.expression()
	if err != nil {
		return NoNode, err
	}
	body, err := p.block()
	if err != nil {
		return NoNode, err
	}

	var orelse []NodeID
	next, err := p.peek()
	if err != nil {
		return NoNode, err
	}
	switch {
	case next.IsKeyword("elif"):
		elif, err := p.ifStatement()
		if err != nil {
			return NoNode, err
		}
		orelse = []NodeID{elif}
	case next.IsKeyword("else"):
		if _, err := p.advance(); err != nil {
			return NoNode, err
		}
		if orelse, err = p.block(); err != nil {
			return NoNode, err
		}
	}

	span := p.lastSpan(kw, body)
	if len(orelse) > 0 {
		span = p.lastSpan(kw, orelse)
	}
	return p.arena.Alloc(&If{SpanVal: span, Test: test, Body: body, Orelse: orelse}), nil
}

func (p *Parser) whileStatement() (NodeID, error) {
	kw, err := p.advance()
	if err != nil {
		return NoNode, err
	}
	test, err := p.expression()
	if err != nil {
		return NoNode, err
	}
	body, err := p.block()
	if err != nil {
		return NoNode, err
	}
	return p.arena.Alloc(&While{SpanVal: p.lastSpan(kw, body), Test: test, Body: body}), nil
}

func (p *Parser) funcDef() (NodeID, error) {
	kw, err := p.advance()
	if err != nil {
		return NoNode, err
	}
	name, err := p.identifier("function name")
	if err != nil {
		return NoNode, err
	}
	if _, err := p.expect(TokenLPar, "'('"); err != nil {
		return NoNode, err
	}

	var params []Symbol
	seen := make(map[string]bool)
	for {
		tok, err := p.peek()
		if err != nil {
			return NoNode, err
		}
		if tok.Type == TokenRPar {
			break
		}
		param, err := p.identifier("parameter name")
		if err != nil {
			return NoNode, err
		}
		if seen[param.Literal] {
			return NoNode, errorAt(SyntaxError, param.Span, "duplicate argument '%s' in function definition", param.Literal)
		}
		seen[param.Literal] = true
		params = append(params, p.arena.Names.Intern(param.Literal))

		tok, err = p.peek()
		if err != nil {
			return NoNode, err
		}
		if tok.Type != TokenComma {
			break
		}
		if err := p.skip(); err != nil {
			return NoNode, err
		}
	}
	if _, err := p.expect(TokenRPar, "')'"); err != nil {
		return NoNode, err
	}

	body, err := p.block()
	if err != nil {
		return NoNode, err
	}
	return p.arena.Alloc(&FunctionDef{
		SpanVal: p.lastSpan(kw, body),
		Name:    p.arena.Names.Intern(name.Literal),
		Params:  params,
		Body:    body,
	}), nil
}

func (p *Parser) identifier(what string) (Token, error) {
	tok, err := p.peek()
	if err != nil {
		return Token{}, err
	}
	if tok.Type != TokenName || IsKeyword(tok.Literal) {
		return Token{}, errorAt(SyntaxError, tok.Span, "expected %s", what)
	}
	return p.advance()
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// opMatcher reports whether a token is one of a level's operators and the
// canonical token type to record for it.
type opMatcher func(Token) (TokenType, bool)

func ops(types ...TokenType) opMatcher {
	return func(tok Token) (TokenType, bool) {
		for _, t := range types {
			if tok.Type == t {
				return t, true
			}
		}
		return 0, false
	}
}

// keywordOp matches an operator token or its keyword spelling.
func keywordOp(typ TokenType, kw string) opMatcher {
	return func(tok Token) (TokenType, bool) {
		if tok.Type == typ || tok.IsKeyword(kw) {
			return typ, true
		}
		return 0, false
	}
}

// binaryLevel parses operand (op operand)* and folds left.
func (p *Parser) binaryLevel(operand func() (NodeID, error), match opMatcher) (NodeID, error) {
	left, err := operand()
	if err != nil {
		return NoNode, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return NoNode, err
		}
		typ, ok := match(tok)
		if !ok {
			return left, nil
		}
		if _, err := p.advance(); err != nil {
			return NoNode, err
		}
		tok.Type = typ
		right, err := operand()
		if err != nil {
			return NoNode, err
		}
		left = p.arena.Alloc(&BinOp{
			SpanVal: p.arena.Span(left).Merge(p.arena.Span(right)),
			Left:    left,
			Op:      tok,
			Right:   right,
		})
	}
}

func (p *Parser) expression() (NodeID, error) {
	return p.disjunction()
}

func (p *Parser) disjunction() (NodeID, error) {
	return p.binaryLevel(p.conjunction, keywordOp(TokenDoubleVBar, "or"))
}

func (p *Parser) conjunction() (NodeID, error) {
	return p.binaryLevel(p.inversion, keywordOp(TokenDoubleAmper, "and"))
}

// inversion is a right-recursive prefix "not".
func (p *Parser) inversion() (NodeID, error) {
	tok, err := p.peek()
	if err != nil {
		return NoNode, err
	}
	if _, ok := keywordOp(TokenExclamation, "not")(tok); !ok {
		return p.comparison()
	}
	if _, err := p.advance(); err != nil {
		return NoNode, err
	}
	tok.Type = TokenExclamation
	operand, err := p.inversion()
	if err != nil {
		return NoNode, err
	}
	return p.arena.Alloc(&UnaryOp{SpanVal: tok.Span.Merge(p.arena.Span(operand)), Op: tok, Operand: operand}), nil
}

func (p *Parser) comparison() (NodeID, error) {
	return p.binaryLevel(p.bitwiseOr, ops(TokenEqEqual, TokenNotEqual, TokenLess, TokenGreater, TokenLessEqual, TokenGreaterEqual))
}

func (p *Parser) bitwiseOr() (NodeID, error) {
	return p.binaryLevel(p.bitwiseXor, ops(TokenVBar))
}

func (p *Parser) bitwiseXor() (NodeID, error) {
	return p.binaryLevel(p.bitwiseAnd, ops(TokenCircumflex))
}

func (p *Parser) bitwiseAnd() (NodeID, error) {
	return p.binaryLevel(p.shift, ops(TokenAmper))
}

func (p *Parser) shift() (NodeID, error) {
	return p.binaryLevel(p.sum, ops(TokenLeftShift, TokenRightShift))
}

func (p *Parser) sum() (NodeID, error) {
	return p.binaryLevel(p.term, ops(TokenPlus, TokenMinus))
}

func (p *Parser) term() (NodeID, error) {
	return p.binaryLevel(p.factor, ops(TokenStar, TokenSlash, TokenDoubleSlash, TokenPercent, TokenAt))
}

// factor is a right-recursive unary + or -.
func (p *Parser) factor() (NodeID, error) {
	tok, err := p.peek()
	if err != nil {
		return NoNode, err
	}
	if tok.Type != TokenPlus && tok.Type != TokenMinus {
		return p.power()
	}
	if _, err := p.advance(); err != nil {
		return NoNode, err
	}
	operand, err := p.factor()
	if err != nil {
		return NoNode, err
	}
	return p.arena.Alloc(&UnaryOp{SpanVal: tok.Span.Merge(p.arena.Span(operand)), Op: tok, Operand: operand}), nil
}

func (p *Parser) power() (NodeID, error) {
	return p.binaryLevel(p.primary, ops(TokenDoubleStar))
}

// primary parses an atom followed by call and subscript trailers.
func (p *Parser) primary() (NodeID, error) {
	id, err := p.atom()
	if err != nil {
		return NoNode, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return NoNode, err
		}
		switch tok.Type {
		case TokenLPar:
			if err := p.skip(); err != nil {
				return NoNode, err
			}
			args, closer, err := p.sequence(TokenRPar, "')'")
			if err != nil {
				return NoNode, err
			}
			id = p.arena.Alloc(&Call{SpanVal: p.arena.Span(id).Merge(closer.Span), Func: id, Args: args})
		case TokenLSqb:
			if err := p.skip(); err != nil {
				return NoNode, err
			}
			index, err := p.expression()
			if err != nil {
				return NoNode, err
			}
			closer, err := p.expect(TokenRSqb, "']'")
			if err != nil {
				return NoNode, err
			}
			id = p.arena.Alloc(&Subscript{SpanVal: p.arena.Span(id).Merge(closer.Span), Value: id, Index: index})
		default:
			return id, nil
		}
	}
}

// sequence parses comma-separated expressions up to and including the
// closing token; a trailing comma is allowed.
func (p *Parser) sequence(closing TokenType, what string) ([]NodeID, Token, error) {
	var items []NodeID
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, Token{}, err
		}
		if tok.Type == closing {
			break
		}
		item, err := p.expression()
		if err != nil {
			return nil, Token{}, err
		}
		items = append(items, item)

		tok, err = p.peek()
		if err != nil {
			return nil, Token{}, err
		}
		if tok.Type != TokenComma {
			break
		}
		if err := p.skip(); err != nil {
			return nil, Token{}, err
		}
	}
	closer, err := p.expect(closing, what)
	return items, closer, err
}

func (p *Parser) atom() (NodeID, error) {
	tok, err := p.peek()
	if err != nil {
		return NoNode, err
	}

	switch tok.Type {
	case TokenInt, TokenFloat, TokenString:
		if err := p.skip(); err != nil {
			return NoNode, err
		}
		return p.arena.Alloc(&Constant{SpanVal: tok.Span, Value: tok}), nil

	case TokenName:
		switch {
		case tok.Literal == "True" || tok.Literal == "False" || tok.Literal == "None":
			if err := p.skip(); err != nil {
				return NoNode, err
			}
			return p.arena.Alloc(&Constant{SpanVal: tok.Span, Value: tok}), nil
		case IsKeyword(tok.Literal):
			return NoNode, errorAt(SyntaxError, tok.Span, "invalid atom")
		}
		if err := p.skip(); err != nil {
			return NoNode, err
		}
		return p.arena.Alloc(&Name{SpanVal: tok.Span, ID: p.arena.Names.Intern(tok.Literal)}), nil

	case TokenLPar:
		if err := p.skip(); err != nil {
			return NoNode, err
		}
		inner, err := p.expression()
		if err != nil {
			return NoNode, err
		}
		closer, err := p.expect(TokenRPar, "')'")
		if err != nil {
			return NoNode, err
		}
		p.arena.widen(inner, tok.Span.Merge(closer.Span))
		return inner, nil

	case TokenLSqb:
		if err := p.skip(); err != nil {
			return NoNode, err
		}
		elems, closer, err := p.sequence(TokenRSqb, "']'")
		if err != nil {
			return NoNode, err
		}
		return p.arena.Alloc(&List{SpanVal: tok.Span.Merge(closer.Span), Elements: elems}), nil

	case TokenLBrace:
		return p.dictDisplay()
	}

	return NoNode, errorAt(SyntaxError, tok.Span, "invalid atom")
}

func (p *Parser) dictDisplay() (NodeID, error) {
	open, err := p.advance()
	if err != nil {
		return NoNode, err
	}
	d := &Dict{}
	for {
		tok, err := p.peek()
		if err != nil {
			return NoNode, err
		}
		if tok.Type == TokenRBrace {
			break
		}
		key, err := p.expression()
		if err != nil {
			return NoNode, err
		}
		if _, err := p.expect(TokenColon, "':'"); err != nil {
			return NoNode, err
		}
		value, err := p.expression()
		if err != nil {
			return NoNode, err
		}
		d.Keys = append(d.Keys, key)
		d.Values = append(d.Values, value)

		tok, err = p.peek()
		if err != nil {
			return NoNode, err
		}
		if tok.Type != TokenComma {
			break
		}
		if err := p.skip(); err != nil {
			return NoNode, err
		}
	}
	closer, err := p.expect(TokenRBrace, "'}'")
	if err != nil {
		return NoNode, err
	}
	d.SpanVal = open.Span.Merge(closer.Span)
	return p.arena.Alloc(d), nil
}
