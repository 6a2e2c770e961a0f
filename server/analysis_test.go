package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/cathon/compiler"
)

func TestAnalyzeClean(t *testing.T) {
	a := analyze("def add(a, b):\n    return a + b\ntotal = add(1, 2)\n")
	if a.err != nil {
		t.Fatalf("unexpected error: %v", a.err)
	}
	if d := a.diagnostics(""); len(d) != 0 {
		t.Errorf("diagnostics = %v, want none", d)
	}
	if got := strings.Join(a.names, ","); got != "a,add,b,total" {
		t.Errorf("names = %s", got)
	}
	def, ok := a.defs["add"]
	if !ok {
		t.Fatal("def add not found")
	}
	if def.signature() != "def add(a, b)" {
		t.Errorf("signature = %q", def.signature())
	}
}

func TestAnalyzeNestedDefs(t *testing.T) {
	src := `if True:
    def inner():
        pass
while False:
    def looped(x):
        def deeper():
            pass
`
	a := analyze(src)
	for _, name := range []string{"inner", "looped", "deeper"} {
		if _, ok := a.defs[name]; !ok {
			t.Errorf("def %s not collected", name)
		}
	}
}

func TestAnalyzeDiagnostics(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		kind    compiler.ErrorKind
		message string
		rng     protocol.Range
	}{
		{
			name:    "lex",
			src:     "x = $",
			kind:    compiler.SyntaxError,
			message: `SyntaxError: invalid character "$"`,
			rng:     protocol.Range{Start: protocol.Position{Line: 0, Character: 4}, End: protocol.Position{Line: 0, Character: 5}},
		},
		{
			name:    "parse",
			src:     "x = 1\ny = )",
			kind:    compiler.SyntaxError,
			message: "SyntaxError: invalid atom",
			rng:     protocol.Range{Start: protocol.Position{Line: 1, Character: 4}, End: protocol.Position{Line: 1, Character: 5}},
		},
		{
			name:    "compile",
			src:     "x = 1\nbreak\n",
			kind:    compiler.CompileError,
			message: "CompileError: 'break' outside loop",
			rng:     protocol.Range{Start: protocol.Position{Line: 1, Character: 0}, End: protocol.Position{Line: 1, Character: 5}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := analyze(tc.src)
			if a.err == nil || a.err.Kind != tc.kind {
				t.Fatalf("err = %v, want %v", a.err, tc.kind)
			}
			d := a.diagnostics(tc.src)
			if len(d) != 1 {
				t.Fatalf("got %d diagnostics, want 1", len(d))
			}
			if d[0].Message != tc.message {
				t.Errorf("message = %q, want %q", d[0].Message, tc.message)
			}
			if d[0].Range != tc.rng {
				t.Errorf("range = %+v, want %+v", d[0].Range, tc.rng)
			}
			if d[0].Severity == nil || *d[0].Severity != protocol.DiagnosticSeverityError {
				t.Error("severity should be Error")
			}
		})
	}
}

func TestAnalyzeNamesAfterError(t *testing.T) {
	a := analyze("alpha = 1\nbeta = (\n")
	if a.err == nil {
		t.Fatal("expected a parse error")
	}
	if got := strings.Join(a.names, ","); got != "alpha,beta" {
		t.Errorf("names = %s, want names from the token stream", got)
	}
}

func TestPositionAt(t *testing.T) {
	text := "ab\né😀x\n"
	tests := []struct {
		offset    int
		line      protocol.UInteger
		character protocol.UInteger
	}{
		{0, 0, 0},
		{2, 0, 2},
		{3, 1, 0},
		{5, 1, 1},
		{9, 1, 3},
		{len(text), 2, 0},
		{len(text) + 10, 2, 0},
	}
	for _, tc := range tests {
		pos := positionAt(text, tc.offset)
		if pos.Line != tc.line || pos.Character != tc.character {
			t.Errorf("positionAt(%d) = %d:%d, want %d:%d", tc.offset, pos.Line, pos.Character, tc.line, tc.character)
		}
	}
}

func TestLineAt(t *testing.T) {
	line, col, ok := lineAt("x\n😀yz", protocol.Position{Line: 1, Character: 3})
	if !ok || line != "😀yz" || col != 5 {
		t.Errorf("lineAt = %q, %d, %v; want \"😀yz\", 5, true", line, col, ok)
	}
	if _, _, ok := lineAt("x", protocol.Position{Line: 3}); ok {
		t.Error("lineAt past the last line should fail")
	}
}
