package compiler

import (
	"fmt"
	"strings"
	"testing"
)

func mustParse(t *testing.T, src string) (*Arena, *Module) {
	t.Helper()
	arena, root, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	mod, ok := arena.Get(root).(*Module)
	if !ok {
		t.Fatalf("Parse(%q): root is %T, want *Module", src, arena.Get(root))
	}
	return arena, mod
}

// firstExpr returns the value of the first statement, which must be an
// expression statement.
func firstExpr(t *testing.T, src string) (*Arena, NodeID) {
	t.Helper()
	arena, mod := mustParse(t, src)
	if len(mod.Body) == 0 {
		t.Fatalf("Parse(%q): empty module", src)
	}
	es, ok := arena.Get(mod.Body[0]).(*ExprStmt)
	if !ok {
		t.Fatalf("Parse(%q): first statement is %T", src, arena.Get(mod.Body[0]))
	}
	return arena, es.Value
}

func TestParseArithmeticSpans(t *testing.T) {
	src := "12 + 2 - 3"
	arena, root, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if root != 6 {
		t.Errorf("root = %d, want 6", root)
	}

	want := []struct {
		typ  string
		text string
	}{
		{"*compiler.Constant", "12"},
		{"*compiler.Constant", "2"},
		{"*compiler.BinOp", "12 + 2"},
		{"*compiler.Constant", "3"},
		{"*compiler.BinOp", "12 + 2 - 3"},
		{"*compiler.ExprStmt", "12 + 2 - 3"},
		{"*compiler.Module", "12 + 2 - 3"},
	}
	if arena.Len() != len(want) {
		t.Fatalf("arena has %d nodes, want %d", arena.Len(), len(want))
	}
	for i, w := range want {
		n := arena.Get(NodeID(i))
		if got := fmt.Sprintf("%T", n); got != w.typ {
			t.Errorf("node %d is %s, want %s", i, got, w.typ)
		}
		if got := n.Span().Slice(src); got != w.text {
			t.Errorf("node %d slices to %q, want %q", i, got, w.text)
		}
	}

	top := arena.Get(4).(*BinOp)
	if top.Left != 2 || top.Right != 3 || top.Op.Type != TokenMinus {
		t.Errorf("top BinOp = %+v, want (2 - 3)", top)
	}
}

func TestParseExprStmtSpanIncludesNextToken(t *testing.T) {
	src := "1 + 2\n"
	arena, mod := mustParse(t, src)
	es := arena.Get(mod.Body[0]).(*ExprStmt)
	if es.SpanVal != (Span{0, 6}) {
		t.Errorf("ExprStmt span = %v, want 0..6", es.SpanVal)
	}
}

func TestParseInvalidAtom(t *testing.T) {
	tests := []struct {
		src  string
		span Span
	}{
		{"1 + ", Span{4, 4}},
		{"1 + )", Span{4, 5}},
		{"* 2", Span{0, 1}},
		{"x = if", Span{4, 6}},
	}
	for _, tc := range tests {
		_, _, err := Parse(tc.src)
		e, ok := err.(*Error)
		if !ok || e.Kind != SyntaxError {
			t.Errorf("Parse(%q) err = %v, want SyntaxError", tc.src, err)
			continue
		}
		if e.Message != "invalid atom" {
			t.Errorf("Parse(%q) message = %q, want invalid atom", tc.src, e.Message)
		}
		if e.Span != tc.span {
			t.Errorf("Parse(%q) span = %v, want %v", tc.src, e.Span, tc.span)
		}
	}
}

func TestParseLexErrorPropagates(t *testing.T) {
	_, _, err := Parse("1 + $")
	e, ok := err.(*Error)
	if !ok || e.Kind != SyntaxError || e.Span != (Span{4, 5}) {
		t.Fatalf("err = %v, want SyntaxError at 4..5", err)
	}
}

// A lexer error right after a consumed token must surface as that
// error, not as a parse error at some later token.
func TestParseLexErrorAfterConsumedToken(t *testing.T) {
	tests := []struct {
		src  string
		span Span
	}{
		{"pass $", Span{5, 6}},
		{"while 1:\n    break $", Span{19, 20}},
		{"f($)", Span{2, 3}},
		{"x[$]", Span{2, 3}},
		{"[1, $]", Span{4, 5}},
		{"{'a': 1, $}", Span{9, 10}},
		{"($)", Span{1, 2}},
		{"def f(a, $): pass", Span{9, 10}},
		{"True $", Span{5, 6}},
		{"x $", Span{2, 3}},
	}
	for _, tc := range tests {
		_, _, err := Parse(tc.src)
		e, ok := err.(*Error)
		if !ok {
			t.Errorf("Parse(%q) err = %v, want *Error", tc.src, err)
			continue
		}
		if e.Kind != SyntaxError || e.Span != tc.span || !strings.HasPrefix(e.Message, "invalid character") {
			t.Errorf("Parse(%q) = %s %q at %s, want invalid character at %s", tc.src, e.Kind, e.Message, e.Span, tc.span)
		}
	}
}

func TestParseEmptyModule(t *testing.T) {
	_, mod := mustParse(t, "")
	if len(mod.Body) != 0 {
		t.Errorf("body = %v, want empty", mod.Body)
	}
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"1 * 2 + 3", "((1 * 2) + 3)"},
		{"1 - 2 - 3", "((1 - 2) - 3)"},
		{"2 ** 3 ** 2", "((2 ** 3) ** 2)"},
		{"-2 ** 2", "(-(2 ** 2))"},
		{"- - 1", "(-(-1))"},
		{"1 | 2 ^ 3 & 4", "(1 | (2 ^ (3 & 4)))"},
		{"1 << 2 + 3", "(1 << (2 + 3))"},
		{"1 < 2 == 3", "((1 < 2) == 3)"},
		{"a || b && c", "(a || (b && c))"},
		{"a or b and c", "(a || (b && c))"},
		{"!a == b", "(!(a == b))"},
		{"not not a", "(!(!a))"},
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
		{"f(1, 2)[0]", "f(1, 2)[0]"},
		{"[1, 2,]", "[1, 2]"},
		{"{'a': 1}", "{'a': 1}"},
		{"7 // 2 % 3", "((7 // 2) % 3)"},
	}
	for _, tc := range tests {
		arena, id := firstExpr(t, tc.src)
		if got := render(arena, id); got != tc.want {
			t.Errorf("Parse(%q) = %s, want %s", tc.src, got, tc.want)
		}
	}
}

// render prints an expression fully parenthesized.
func render(a *Arena, id NodeID) string {
	list := func(ids []NodeID) string {
		parts := make([]string, len(ids))
		for i, c := range ids {
			parts[i] = render(a, c)
		}
		return strings.Join(parts, ", ")
	}
	switch n := a.Get(id).(type) {
	case *Constant:
		if n.Value.Type == TokenString {
			return "'" + n.Value.Literal + "'"
		}
		return n.Value.Literal
	case *Name:
		return a.Names.Lookup(n.ID)
	case *BinOp:
		return "(" + render(a, n.Left) + " " + n.Op.Type.String() + " " + render(a, n.Right) + ")"
	case *UnaryOp:
		return "(" + n.Op.Type.String() + render(a, n.Operand) + ")"
	case *Call:
		return render(a, n.Func) + "(" + list(n.Args) + ")"
	case *Subscript:
		return render(a, n.Value) + "[" + render(a, n.Index) + "]"
	case *List:
		return "[" + list(n.Elements) + "]"
	case *Dict:
		parts := make([]string, len(n.Keys))
		for i := range n.Keys {
			parts[i] = render(a, n.Keys[i]) + ": " + render(a, n.Values[i])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "?"
}

func TestParseParenthesizedSpan(t *testing.T) {
	src := "(1 + 2) * 3"
	arena, id := firstExpr(t, src)
	top := arena.Get(id).(*BinOp)
	if got := arena.Span(top.Left).Slice(src); got != "(1 + 2)" {
		t.Errorf("left operand slices to %q, want %q", got, "(1 + 2)")
	}
	if got := top.SpanVal.Slice(src); got != src {
		t.Errorf("top slices to %q", got)
	}
}

func TestParseAssignments(t *testing.T) {
	arena, mod := mustParse(t, "x = 1\nxs[0] = 2\n")
	if len(mod.Body) != 2 {
		t.Fatalf("body has %d statements, want 2", len(mod.Body))
	}
	as, ok := arena.Get(mod.Body[0]).(*Assign)
	if !ok || arena.Names.Lookup(as.Target) != "x" {
		t.Errorf("stmt 0 = %#v, want Assign x", arena.Get(mod.Body[0]))
	}
	if _, ok := arena.Get(mod.Body[1]).(*SubscriptAssign); !ok {
		t.Errorf("stmt 1 = %T, want *SubscriptAssign", arena.Get(mod.Body[1]))
	}
}

func TestParseInvalidAssignTarget(t *testing.T) {
	_, _, err := Parse("1 + 2 = 3")
	if !IsKind(err, SyntaxError) {
		t.Fatalf("err = %v, want SyntaxError", err)
	}
}

func TestParseCompoundStatements(t *testing.T) {
	src := `def add(a, b):
    return a + b

x = 0
while x < 10:
    if x == 5:
        break
    elif x == 3:
        pass
    else:
        x = x + 1
        continue
`
	arena, mod := mustParse(t, src)
	if len(mod.Body) != 3 {
		t.Fatalf("body has %d statements, want 3", len(mod.Body))
	}

	fn, ok := arena.Get(mod.Body[0]).(*FunctionDef)
	if !ok {
		t.Fatalf("stmt 0 = %T, want *FunctionDef", arena.Get(mod.Body[0]))
	}
	if arena.Names.Lookup(fn.Name) != "add" || len(fn.Params) != 2 {
		t.Errorf("def = %s/%d", arena.Names.Lookup(fn.Name), len(fn.Params))
	}
	if _, ok := arena.Get(fn.Body[0]).(*Return); !ok {
		t.Errorf("def body[0] = %T, want *Return", arena.Get(fn.Body[0]))
	}

	loop, ok := arena.Get(mod.Body[2]).(*While)
	if !ok {
		t.Fatalf("stmt 2 = %T, want *While", arena.Get(mod.Body[2]))
	}
	ifs, ok := arena.Get(loop.Body[0]).(*If)
	if !ok {
		t.Fatalf("while body[0] = %T, want *If", arena.Get(loop.Body[0]))
	}
	if _, ok := arena.Get(ifs.Body[0]).(*Break); !ok {
		t.Errorf("if body[0] = %T, want *Break", arena.Get(ifs.Body[0]))
	}
	elif, ok := arena.Get(ifs.Orelse[0]).(*If)
	if !ok {
		t.Fatalf("orelse[0] = %T, want nested *If", arena.Get(ifs.Orelse[0]))
	}
	if len(elif.Orelse) != 2 {
		t.Errorf("else block has %d statements, want 2", len(elif.Orelse))
	}
}

func TestParseSingleLineSuite(t *testing.T) {
	arena, mod := mustParse(t, "if x: y = 1\nz")
	ifs := arena.Get(mod.Body[0]).(*If)
	if _, ok := arena.Get(ifs.Body[0]).(*Assign); !ok {
		t.Errorf("suite = %T, want *Assign", arena.Get(ifs.Body[0]))
	}
	if len(mod.Body) != 2 {
		t.Errorf("body has %d statements, want 2", len(mod.Body))
	}
}

func TestParseBlockErrors(t *testing.T) {
	tests := []struct {
		src  string
		kind ErrorKind
	}{
		{"if x:\ny", IndentationError},
		{"if x\n  y", SyntaxError},
		{"x\n  y", IndentationError},
		{"def f(a, a): pass", SyntaxError},
		{"def (a): pass", SyntaxError},
		{"f(1, 2", SyntaxError},
		{"1 2", SyntaxError},
	}
	for _, tc := range tests {
		_, _, err := Parse(tc.src)
		if !IsKind(err, tc.kind) {
			t.Errorf("Parse(%q) err = %v, want %v", tc.src, err, tc.kind)
		}
	}
}

func TestDump(t *testing.T) {
	arena, root, err := Parse("12 + 2")
	if err != nil {
		t.Fatal(err)
	}
	want := "Module 0..6\n" +
		"  Expr 0..6\n" +
		"    BinOp + 0..6\n" +
		"      Constant 12 0..2\n" +
		"      Constant 2 5..6\n"
	if got := Dump(arena, root); got != want {
		t.Errorf("Dump =\n%s\nwant\n%s", got, want)
	}
}
