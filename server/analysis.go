package server

import (
	"errors"
	"sort"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/cathon/compiler"
)

// definition is a def statement found in a document.
type definition struct {
	name   string
	params []string
	span   compiler.Span
}

// signature renders the definition as it was written.
func (d definition) signature() string {
	return "def " + d.name + "(" + strings.Join(d.params, ", ") + ")"
}

// analysis is what the server knows about one document version.
type analysis struct {
	err   *compiler.Error
	names []string
	defs  map[string]definition
}

// analyze lexes, parses and compiles text. The first error of any phase
// becomes the document's diagnostic. Names come from the parse when it
// succeeds and from the token stream otherwise, so completion keeps
// working while the user is mid-edit.
func analyze(text string) *analysis {
	a := &analysis{defs: make(map[string]definition)}

	arena, root, err := compiler.Parse(text)
	if err != nil {
		a.setError(err)
		a.names = lexedNames(text)
		return a
	}

	a.names = internedNames(arena)
	if mod, ok := arena.Get(root).(*compiler.Module); ok {
		collectDefs(arena, mod.Body, a.defs)
	}

	c := compiler.NewCompiler(arena)
	c.SetLineIndex(compiler.NewLineIndex(text))
	if _, err := c.CompileModule(root); err != nil {
		a.setError(err)
	}
	return a
}

func (a *analysis) setError(err error) {
	var ce *compiler.Error
	if errors.As(err, &ce) {
		a.err = ce
	}
}

func internedNames(arena *compiler.Arena) []string {
	var names []string
	for _, n := range arena.Names.Names() {
		if !compiler.IsKeyword(n) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

func lexedNames(text string) []string {
	toks, _ := compiler.Tokenize(text)
	seen := make(map[string]bool)
	var names []string
	for _, tok := range toks {
		if tok.Type != compiler.TokenName || compiler.IsKeyword(tok.Literal) || seen[tok.Literal] {
			continue
		}
		seen[tok.Literal] = true
		names = append(names, tok.Literal)
	}
	sort.Strings(names)
	return names
}

// collectDefs records every def in body, including those nested in
// compound statements. A later def of the same name wins, as it does at
// run time.
func collectDefs(arena *compiler.Arena, body []compiler.NodeID, out map[string]definition) {
	for _, id := range body {
		switch n := arena.Get(id).(type) {
		case *compiler.FunctionDef:
			d := definition{name: arena.Names.Lookup(n.Name), span: n.SpanVal}
			for _, p := range n.Params {
				d.params = append(d.params, arena.Names.Lookup(p))
			}
			out[d.name] = d
			collectDefs(arena, n.Body, out)
		case *compiler.If:
			collectDefs(arena, n.Body, out)
			collectDefs(arena, n.Orelse, out)
		case *compiler.While:
			collectDefs(arena, n.Body, out)
		}
	}
}

// diagnostics converts the analysis error, if any, to LSP diagnostics.
func (a *analysis) diagnostics(text string) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	if a.err == nil {
		return diagnostics
	}
	severity := protocol.DiagnosticSeverityError
	source := lspName
	return append(diagnostics, protocol.Diagnostic{
		Range:    spanRange(text, a.err.Span),
		Severity: &severity,
		Source:   &source,
		Message:  a.err.Kind.String() + ": " + a.err.Message,
	})
}

// ---------------------------------------------------------------------------
// Positions: byte offsets <-> LSP line/UTF-16 character
// ---------------------------------------------------------------------------

func spanRange(text string, s compiler.Span) protocol.Range {
	return protocol.Range{Start: positionAt(text, s.Start), End: positionAt(text, s.End)}
}

// positionAt converts a byte offset into a 0-based LSP position.
func positionAt(text string, offset int) protocol.Position {
	if offset > len(text) {
		offset = len(text)
	}
	if offset < 0 {
		offset = 0
	}
	lineStart := strings.LastIndexByte(text[:offset], '\n') + 1
	line := strings.Count(text[:lineStart], "\n")
	char := 0
	for _, r := range text[lineStart:offset] {
		char += utf16.RuneLen(r)
	}
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(char)}
}

// lineAt returns line pos.Line of text and the byte index within it of
// pos.Character. ok is false when the line does not exist.
func lineAt(text string, pos protocol.Position) (line string, col int, ok bool) {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return "", 0, false
	}
	line = lines[pos.Line]
	units := 0
	for col < len(line) && units < int(pos.Character) {
		r, size := utf8.DecodeRuneInString(line[col:])
		units += utf16.RuneLen(r)
		col += size
	}
	return line, col, true
}
