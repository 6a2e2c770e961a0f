package compiler

import (
	"strings"
	"testing"
)

type tokSpec struct {
	typ   TokenType
	start int
	end   int
}

func checkTokens(t *testing.T, input string, want []tokSpec) []Token {
	t.Helper()
	toks, err := Tokenize(input)
	if err != nil {
		t.Fatalf("Tokenize(%q): unexpected error: %v", input, err)
	}
	if len(toks) != len(want) {
		t.Fatalf("Tokenize(%q): got %d tokens %v, want %d", input, len(toks), toks, len(want))
	}
	for i, w := range want {
		if toks[i].Type != w.typ {
			t.Errorf("token[%d] type = %v, want %v", i, toks[i].Type, w.typ)
		}
		if toks[i].Span != (Span{w.start, w.end}) {
			t.Errorf("token[%d] (%v) span = %v, want %d..%d", i, toks[i].Type, toks[i].Span, w.start, w.end)
		}
	}
	return toks
}

func TestLexerEmptyInput(t *testing.T) {
	checkTokens(t, "", []tokSpec{{TokenEndmarker, 0, 0}})
}

func TestLexerWhitespaceOnly(t *testing.T) {
	checkTokens(t, "   \n\n  \n", []tokSpec{{TokenEndmarker, 8, 8}})
}

func TestLexerArithmeticSpans(t *testing.T) {
	input := "12 + 2 - 3"
	toks := checkTokens(t, input, []tokSpec{
		{TokenInt, 0, 2},
		{TokenPlus, 3, 4},
		{TokenInt, 5, 6},
		{TokenMinus, 7, 8},
		{TokenInt, 9, 10},
		{TokenEndmarker, 10, 10},
	})

	var parts []string
	for _, tok := range toks[:len(toks)-1] {
		parts = append(parts, tok.Span.Slice(input))
	}
	if got := strings.Join(parts, " "); got != input {
		t.Errorf("rejoined spans = %q, want %q", got, input)
	}
}

func TestLexerEndmarkerOnce(t *testing.T) {
	l := NewLexer("1")
	var types []TokenType
	for i := 0; i < 5; i++ {
		tok, ok, err := l.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			break
		}
		types = append(types, tok.Type)
	}
	if len(types) != 2 || types[1] != TokenEndmarker {
		t.Fatalf("types = %v, want [INT ENDMARKER]", types)
	}
	if _, ok, _ := l.Next(); ok {
		t.Error("Next after ENDMARKER returned a token")
	}
}

func TestLexerOperators(t *testing.T) {
	tests := []struct {
		input string
		want  TokenType
	}{
		{"+", TokenPlus},
		{"-", TokenMinus},
		{"*", TokenStar},
		{"/", TokenSlash},
		{"//", TokenDoubleSlash},
		{"%", TokenPercent},
		{"@", TokenAt},
		{"**", TokenDoubleStar},
		{"==", TokenEqEqual},
		{"!=", TokenNotEqual},
		{"<", TokenLess},
		{">", TokenGreater},
		{"<=", TokenLessEqual},
		{">=", TokenGreaterEqual},
		{"|", TokenVBar},
		{"^", TokenCircumflex},
		{"&", TokenAmper},
		{"<<", TokenLeftShift},
		{">>", TokenRightShift},
		{"~", TokenTilde},
		{"!", TokenExclamation},
		{"||", TokenDoubleVBar},
		{"&&", TokenDoubleAmper},
		{"=", TokenEqual},
		{":", TokenColon},
		{",", TokenComma},
		{";", TokenSemi},
		{".", TokenDot},
	}

	for _, tc := range tests {
		toks, err := Tokenize(tc.input)
		if err != nil {
			t.Errorf("Tokenize(%q): %v", tc.input, err)
			continue
		}
		if len(toks) != 2 || toks[0].Type != tc.want {
			t.Errorf("Tokenize(%q) = %v, want [%v ENDMARKER]", tc.input, toks, tc.want)
			continue
		}
		if toks[0].Span != (Span{0, len(tc.input)}) {
			t.Errorf("Tokenize(%q) span = %v", tc.input, toks[0].Span)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
	}{
		{"0", TokenInt},
		{"42", TokenInt},
		{"9223372036854775807", TokenInt},
		{"3.14", TokenFloat},
		{"1.", TokenFloat},
	}
	for _, tc := range tests {
		toks, err := Tokenize(tc.input)
		if err != nil {
			t.Errorf("Tokenize(%q): %v", tc.input, err)
			continue
		}
		if toks[0].Type != tc.typ || toks[0].Literal != tc.input {
			t.Errorf("Tokenize(%q)[0] = %v, want %v %q", tc.input, toks[0], tc.typ, tc.input)
		}
	}
}

func TestLexerIntegerOverflow(t *testing.T) {
	_, err := Tokenize("9223372036854775808")
	if !IsKind(err, SyntaxError) {
		t.Fatalf("err = %v, want SyntaxError", err)
	}
}

func TestLexerNamesAndKeywords(t *testing.T) {
	toks := checkTokens(t, "while not_x", []tokSpec{
		{TokenName, 0, 5},
		{TokenName, 6, 11},
		{TokenEndmarker, 11, 11},
	})
	if !toks[0].IsKeyword("while") {
		t.Errorf("%v should be the keyword while", toks[0])
	}
	if IsKeyword(toks[1].Literal) {
		t.Errorf("%q should not be a keyword", toks[1].Literal)
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"ab"`, "ab"},
		{`'ab'`, "ab"},
		{`"a\nb"`, "a\nb"},
		{`"tab\there"`, "tab\there"},
		{`"q\"q"`, `q"q`},
		{`'it\'s'`, "it's"},
		{`"back\\slash"`, `back\slash`},
		{`"\d"`, `\d`},
	}
	for _, tc := range tests {
		toks, err := Tokenize(tc.input)
		if err != nil {
			t.Errorf("Tokenize(%s): %v", tc.input, err)
			continue
		}
		if toks[0].Type != TokenString || toks[0].Literal != tc.want {
			t.Errorf("Tokenize(%s)[0] = %q, want %q", tc.input, toks[0].Literal, tc.want)
		}
		if toks[0].Span != (Span{0, len(tc.input)}) {
			t.Errorf("Tokenize(%s) span = %v", tc.input, toks[0].Span)
		}
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	for _, input := range []string{`"abc`, "'abc\n'"} {
		_, err := Tokenize(input)
		if !IsKind(err, SyntaxError) {
			t.Errorf("Tokenize(%q) err = %v, want SyntaxError", input, err)
		}
	}
}

func TestLexerInvalidCharacter(t *testing.T) {
	tests := []struct {
		input string
		span  Span
	}{
		{"1 $ 2", Span{2, 3}},
		{"x = é", Span{4, 6}},
		{"?", Span{0, 1}},
	}
	for _, tc := range tests {
		_, err := Tokenize(tc.input)
		e, ok := err.(*Error)
		if !ok || e.Kind != SyntaxError {
			t.Errorf("Tokenize(%q) err = %v, want SyntaxError", tc.input, err)
			continue
		}
		if e.Span != tc.span {
			t.Errorf("Tokenize(%q) error span = %v, want %v", tc.input, e.Span, tc.span)
		}
	}
}

func TestLexerErrorIsSticky(t *testing.T) {
	l := NewLexer("$ 1")
	_, _, err1 := l.Next()
	_, _, err2 := l.Next()
	if err1 == nil || err2 == nil {
		t.Fatalf("errors = %v, %v; want both non-nil", err1, err2)
	}
}

func TestLexerNewlines(t *testing.T) {
	checkTokens(t, "x\ny\n", []tokSpec{
		{TokenName, 0, 1},
		{TokenNewline, 1, 2},
		{TokenName, 2, 3},
		{TokenNewline, 3, 4},
		{TokenEndmarker, 4, 4},
	})
}

func TestLexerNoLeadingNewline(t *testing.T) {
	checkTokens(t, "\n\nx", []tokSpec{
		{TokenName, 2, 3},
		{TokenEndmarker, 3, 3},
	})
}

func TestLexerBlankLinesCollapse(t *testing.T) {
	checkTokens(t, "x\n\n   \n# note\ny", []tokSpec{
		{TokenName, 0, 1},
		{TokenNewline, 1, 2},
		{TokenName, 14, 15},
		{TokenEndmarker, 15, 15},
	})
}

func TestLexerComments(t *testing.T) {
	checkTokens(t, "x # trailing\n", []tokSpec{
		{TokenName, 0, 1},
		{TokenNewline, 12, 13},
		{TokenEndmarker, 13, 13},
	})
}

func TestLexerIndentDedent(t *testing.T) {
	toks := checkTokens(t, "if x:\n    y\nz\n", []tokSpec{
		{TokenName, 0, 2},
		{TokenName, 3, 4},
		{TokenColon, 4, 5},
		{TokenNewline, 5, 6},
		{TokenIndent, 6, 10},
		{TokenName, 10, 11},
		{TokenNewline, 11, 12},
		{TokenDedent, 12, 12},
		{TokenName, 12, 13},
		{TokenNewline, 13, 14},
		{TokenEndmarker, 14, 14},
	})
	if toks[4].Depth != 1 || toks[7].Depth != 1 {
		t.Errorf("depths = %d, %d; want 1, 1", toks[4].Depth, toks[7].Depth)
	}
}

func TestLexerNestedDedents(t *testing.T) {
	input := "a:\n b:\n  c\nd"
	toks, err := Tokenize(input)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}

	var indents, dedents []int
	for _, tok := range toks {
		switch tok.Type {
		case TokenIndent:
			indents = append(indents, tok.Depth)
		case TokenDedent:
			dedents = append(dedents, tok.Depth)
		}
	}
	if len(indents) != 2 || indents[0] != 1 || indents[1] != 2 {
		t.Errorf("indent depths = %v, want [1 2]", indents)
	}
	if len(dedents) != 2 || dedents[0] != 2 || dedents[1] != 1 {
		t.Errorf("dedent depths = %v, want [2 1]", dedents)
	}
}

func TestLexerDedentAtEOF(t *testing.T) {
	checkTokens(t, "if x:\n  y", []tokSpec{
		{TokenName, 0, 2},
		{TokenName, 3, 4},
		{TokenColon, 4, 5},
		{TokenNewline, 5, 6},
		{TokenIndent, 6, 8},
		{TokenName, 8, 9},
		{TokenDedent, 9, 9},
		{TokenEndmarker, 9, 9},
	})
}

func TestLexerUnexpectedIndentAtStart(t *testing.T) {
	for _, input := range []string{"  x", "\n  x"} {
		_, err := Tokenize(input)
		if !IsKind(err, IndentationError) {
			t.Errorf("Tokenize(%q) err = %v, want IndentationError", input, err)
		}
	}
}

func TestLexerTabError(t *testing.T) {
	tests := []string{
		"if x:\n \ty",
		"if x:\n\ty\nif z:\n  w",
	}
	for _, input := range tests {
		_, err := Tokenize(input)
		if !IsKind(err, TabError) {
			t.Errorf("Tokenize(%q) err = %v, want TabError", input, err)
		}
	}
}

func TestLexerTabsConsistently(t *testing.T) {
	_, err := Tokenize("if x:\n\ty\n\tz\n")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
}

func TestLexerImplicitLineJoining(t *testing.T) {
	checkTokens(t, "[1,\n   2]", []tokSpec{
		{TokenLSqb, 0, 1},
		{TokenInt, 1, 2},
		{TokenComma, 2, 3},
		{TokenInt, 7, 8},
		{TokenRSqb, 8, 9},
		{TokenEndmarker, 9, 9},
	})
}

func TestLexerBackslashContinuation(t *testing.T) {
	checkTokens(t, "1 + \\\n2", []tokSpec{
		{TokenInt, 0, 1},
		{TokenPlus, 2, 3},
		{TokenInt, 6, 7},
		{TokenEndmarker, 7, 7},
	})
}
