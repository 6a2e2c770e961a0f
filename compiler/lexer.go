package compiler

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: indentation-aware tokenizer
// ---------------------------------------------------------------------------

// Lexer tokenizes source text. Leading whitespace after each newline is
// measured against a stack of indentation widths and turned into
// synthetic INDENT and DEDENT tokens, queued in a small pending buffer
// that drains before scanning resumes.
type Lexer struct {
	input string
	pos   int // current byte offset

	pending []Token
	indents []int // active indentation widths, innermost last
	indentCh byte // ' ' or '\t' once established, else 0

	parenDepth int  // newlines inside brackets are implicit joins
	emitted    bool // a token has been produced
	done       bool // ENDMARKER has been queued
	err        error
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Next returns the next token. ok is false once the ENDMARKER has been
// returned; errors are sticky.
func (l *Lexer) Next() (tok Token, ok bool, err error) {
	if l.err != nil {
		return Token{}, false, l.err
	}
	if len(l.pending) == 0 && !l.done {
		if err := l.scan(); err != nil {
			l.err = err
			l.pending = nil
			return Token{}, false, err
		}
	}
	if len(l.pending) == 0 {
		return Token{}, false, nil
	}
	tok = l.pending[0]
	l.pending = l.pending[1:]
	l.emitted = true
	return tok, true, nil
}

// Tokenize returns every token of input up to and including the ENDMARKER.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok, ok, err := l.Next()
		if err != nil {
			return tokens, err
		}
		if !ok {
			return tokens, nil
		}
		tokens = append(tokens, tok)
	}
}

func (l *Lexer) push(tok Token) {
	l.pending = append(l.pending, tok)
}

// scan queues at least one token, or fails.
func (l *Lexer) scan() error {
	for {
		l.skipInlineWhitespace()
		if l.pos >= len(l.input) {
			l.finish()
			return nil
		}

		switch ch := l.input[l.pos]; {
		case ch == '#':
			l.skipComment()
		case ch == '\\' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '\n':
			l.pos += 2
		case ch == '\n':
			start := l.pos
			l.pos++
			if l.parenDepth > 0 {
				continue
			}
			if !l.emitted {
				// Leading blank lines: the first content line must not be indented.
				if err := l.indentation(true); err != nil {
					return err
				}
				continue
			}
			l.push(Token{Type: TokenNewline, Span: Span{start, start + 1}})
			return l.indentation(false)
		default:
			return l.scanToken()
		}
	}
}

// finish closes open indentation levels and queues the ENDMARKER.
func (l *Lexer) finish() {
	end := len(l.input)
	for len(l.indents) > 0 {
		l.push(Token{Type: TokenDedent, Span: Span{end, end}, Depth: len(l.indents)})
		l.indents = l.indents[:len(l.indents)-1]
	}
	l.push(Token{Type: TokenEndmarker, Span: Span{end, end}})
	l.done = true
}

func (l *Lexer) skipInlineWhitespace() {
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case ' ', '\t', '\r', '\f':
			l.pos++
		default:
			return
		}
	}
}

func (l *Lexer) skipComment() {
	for l.pos < len(l.input) && l.input[l.pos] != '\n' {
		l.pos++
	}
}

// ---------------------------------------------------------------------------
// Lexer: indentation
// ---------------------------------------------------------------------------

// indentation measures the leading whitespace of the next line with
// content, skipping blank and comment-only lines, and queues the
// INDENT/DEDENT tokens the change implies. atStart is set while no
// token has been produced yet.
func (l *Lexer) indentation(atStart bool) error {
	for {
		runStart := l.pos
		width := 0
		sawSpace, sawTab := false, false
		for l.pos < len(l.input) {
			c := l.input[l.pos]
			if c == ' ' {
				sawSpace = true
			} else if c == '\t' {
				sawTab = true
			} else if c != '\r' && c != '\f' {
				break
			}
			if c == ' ' || c == '\t' {
				width++
			}
			l.pos++
		}
		if l.pos >= len(l.input) {
			return nil
		}
		switch l.input[l.pos] {
		case '\n':
			l.pos++
			continue
		case '#':
			l.skipComment()
			continue
		}

		run := Span{runStart, l.pos}
		if sawSpace && sawTab {
			return errorAt(TabError, run, "inconsistent use of tabs and spaces in indentation")
		}
		if sawSpace || sawTab {
			ch := byte(' ')
			if sawTab {
				ch = '\t'
			}
			if l.indentCh != 0 && l.indentCh != ch {
				return errorAt(TabError, run, "inconsistent use of tabs and spaces in indentation")
			}
			l.indentCh = ch
		}

		if atStart {
			if width > 0 {
				return errorAt(IndentationError, run, "unexpected indent")
			}
			return nil
		}

		at := Span{l.pos, l.pos}
		for len(l.indents) > 0 && width < l.indents[len(l.indents)-1] {
			l.push(Token{Type: TokenDedent, Span: at, Depth: len(l.indents)})
			l.indents = l.indents[:len(l.indents)-1]
		}
		if width > 0 && (len(l.indents) == 0 || width > l.indents[len(l.indents)-1]) {
			l.indents = append(l.indents, width)
			l.push(Token{Type: TokenIndent, Span: run, Depth: len(l.indents)})
		}
		return nil
	}
}

// ---------------------------------------------------------------------------
// Lexer: tokens
// ---------------------------------------------------------------------------

var twoCharOps = map[string]TokenType{
	"//": TokenDoubleSlash,
	"**": TokenDoubleStar,
	"==": TokenEqEqual,
	"!=": TokenNotEqual,
	"<=": TokenLessEqual,
	">=": TokenGreaterEqual,
	"<<": TokenLeftShift,
	">>": TokenRightShift,
	"||": TokenDoubleVBar,
	"&&": TokenDoubleAmper,
}

var oneCharOps = map[byte]TokenType{
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenStar,
	'/': TokenSlash,
	'%': TokenPercent,
	'@': TokenAt,
	'<': TokenLess,
	'>': TokenGreater,
	'|': TokenVBar,
	'^': TokenCircumflex,
	'&': TokenAmper,
	'~': TokenTilde,
	'!': TokenExclamation,
	'=': TokenEqual,
	'(': TokenLPar,
	')': TokenRPar,
	'[': TokenLSqb,
	']': TokenRSqb,
	'{': TokenLBrace,
	'}': TokenRBrace,
	':': TokenColon,
	',': TokenComma,
	';': TokenSemi,
	'.': TokenDot,
}

func (l *Lexer) scanToken() error {
	start := l.pos
	ch := l.input[l.pos]

	switch {
	case isDigit(ch):
		return l.scanNumber()
	case isNameStart(ch):
		for l.pos < len(l.input) && isNameChar(l.input[l.pos]) {
			l.pos++
		}
		l.push(Token{Type: TokenName, Span: Span{start, l.pos}, Literal: l.input[start:l.pos]})
		return nil
	case ch == '\'' || ch == '"':
		return l.scanString()
	}

	if l.pos+1 < len(l.input) {
		if typ, ok := twoCharOps[l.input[l.pos:l.pos+2]]; ok {
			l.pos += 2
			l.push(Token{Type: typ, Span: Span{start, l.pos}})
			return nil
		}
	}
	if typ, ok := oneCharOps[ch]; ok {
		l.pos++
		switch typ {
		case TokenLPar, TokenLSqb, TokenLBrace:
			l.parenDepth++
		case TokenRPar, TokenRSqb, TokenRBrace:
			if l.parenDepth > 0 {
				l.parenDepth--
			}
		}
		l.push(Token{Type: typ, Span: Span{start, l.pos}})
		return nil
	}

	_, size := utf8.DecodeRuneInString(l.input[l.pos:])
	return errorAt(SyntaxError, Span{start, start + size}, "invalid character %q", l.input[start:start+size])
}

func (l *Lexer) scanNumber() error {
	start := l.pos
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
		text := l.input[start:l.pos]
		if _, err := strconv.ParseFloat(text, 64); err != nil {
			return errorAt(SyntaxError, Span{start, l.pos}, "invalid float literal %q", text)
		}
		l.push(Token{Type: TokenFloat, Span: Span{start, l.pos}, Literal: text})
		return nil
	}
	text := l.input[start:l.pos]
	if _, err := strconv.ParseInt(text, 10, 64); err != nil {
		return errorAt(SyntaxError, Span{start, l.pos}, "integer literal too large")
	}
	l.push(Token{Type: TokenInt, Span: Span{start, l.pos}, Literal: text})
	return nil
}

func (l *Lexer) scanString() error {
	start := l.pos
	quote := l.input[l.pos]
	l.pos++

	var sb strings.Builder
	for {
		if l.pos >= len(l.input) || l.input[l.pos] == '\n' {
			return errorAt(SyntaxError, Span{start, l.pos}, "unterminated string literal")
		}
		c := l.input[l.pos]
		if c == quote {
			l.pos++
			break
		}
		if c == '\\' && l.pos+1 < len(l.input) {
			esc := l.input[l.pos+1]
			l.pos += 2
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '0':
				sb.WriteByte(0)
			case '\\', '\'', '"':
				sb.WriteByte(esc)
			case '\n':
			default:
				sb.WriteByte('\\')
				sb.WriteByte(esc)
			}
			continue
		}
		sb.WriteByte(c)
		l.pos++
	}
	l.push(Token{Type: TokenString, Span: Span{start, l.pos}, Literal: sb.String()})
	return nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || isDigit(c)
}
