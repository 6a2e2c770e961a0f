// Package server implements the cathon language server: diagnostics,
// completion, hover and go-to-definition over LSP.
package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/cathon/compiler"
	"github.com/chazu/cathon/vm"
)

const lspName = "cathon-lsp"

var log = commonlog.GetLogger("cathon.server")

// keywordDocs is the hover text for reserved words.
var keywordDocs = map[string]string{
	"if":       "`if test:` runs the block when test is truthy; may be followed by `elif` and `else`",
	"elif":     "`elif test:` is tried when every earlier branch was falsy",
	"else":     "`else:` runs when every earlier branch was falsy",
	"while":    "`while test:` repeats the block while test is truthy",
	"def":      "`def name(params):` defines a function bound to a global name",
	"return":   "`return [value]` leaves the current function; a bare return gives None",
	"pass":     "`pass` does nothing",
	"break":    "`break` leaves the innermost loop",
	"continue": "`continue` jumps back to the test of the innermost loop",
	"not":      "`not x` is True when x is falsy; same as `!x`",
	"and":      "`a and b` gives a if it is falsy, otherwise b; same as `a && b`",
	"or":       "`a or b` gives a if it is truthy, otherwise b; same as `a || b`",
	"True":     "the boolean true value",
	"False":    "the boolean false value",
	"None":     "the absence of a value",
}

// document is an open text document and its latest analysis.
type document struct {
	text     string
	analysis *analysis
}

// LanguageServer bridges LSP editor features to the compiler front end
// and, through a VMWorker, to the builtin registry of a VM.
type LanguageServer struct {
	worker *VMWorker

	mu   sync.Mutex
	docs map[string]*document // URI -> document

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// Option configures a LanguageServer.
type Option func(*LanguageServer)

// WithVM serves builtins from v instead of a fresh VM.
func WithVM(v *vm.VM) Option {
	return func(s *LanguageServer) { s.worker = NewVMWorker(v) }
}

// WithVersion sets the version reported to clients.
func WithVersion(version string) Option {
	return func(s *LanguageServer) { s.version = version }
}

// NewLanguageServer creates a language server. Call Run to serve.
func NewLanguageServer(opts ...Option) *LanguageServer {
	s := &LanguageServer{
		docs:    make(map[string]*document),
		version: "0.1.0",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.worker == nil {
		s.worker = NewVMWorker(vm.New())
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LanguageServer) Run() error {
	log.Infof("%s %s serving on stdio", lspName, s.version)
	return s.server.RunStdio()
}

// Close stops the VM worker.
func (s *LanguageServer) Close() {
	s.worker.Stop()
}

// --- LSP lifecycle handlers ---

func (s *LanguageServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	if params.ClientInfo != nil {
		log.Infof("initializing for %s", params.ClientInfo.Name)
	}

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LanguageServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LanguageServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LanguageServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LanguageServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.notifyDiagnostics(ctx, uri, s.update(string(uri), params.TextDocument.Text))
	return nil
}

func (s *LanguageServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.notifyDiagnostics(ctx, uri, s.update(string(uri), whole.Text))
		}
	}
	return nil
}

func (s *LanguageServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.forget(string(uri))

	// Clear diagnostics for the closed document
	s.notifyDiagnostics(ctx, uri, []protocol.Diagnostic{})
	return nil
}

// update stores a new version of a document and returns its diagnostics.
func (s *LanguageServer) update(uri, text string) []protocol.Diagnostic {
	a := analyze(text)

	s.mu.Lock()
	s.docs[uri] = &document{text: text, analysis: a}
	s.mu.Unlock()

	if a.err != nil {
		log.Debugf("%s: %s", uri, a.err)
	}
	return a.diagnostics(text)
}

func (s *LanguageServer) forget(uri string) {
	s.mu.Lock()
	delete(s.docs, uri)
	s.mu.Unlock()
}

func (s *LanguageServer) document(uri string) (*document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	return doc, ok
}

func (s *LanguageServer) notifyDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, diagnostics []protocol.Diagnostic) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// --- Language features ---

func (s *LanguageServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc, ok := s.document(string(params.TextDocument.URI))
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(doc.text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return s.complete(doc, prefix)
}

func (s *LanguageServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc, ok := s.document(string(params.TextDocument.URI))
	if !ok {
		return nil, nil
	}

	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	return s.hover(doc, word)
}

func (s *LanguageServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	doc, ok := s.document(string(uri))
	if !ok {
		return nil, nil
	}

	word := extractWord(doc.text, params.Position)
	def, ok := doc.analysis.defs[word]
	if word == "" || !ok {
		return nil, nil
	}
	return []protocol.Location{{URI: uri, Range: spanRange(doc.text, def.span)}}, nil
}

// builtins fetches the builtin names from the worker's VM.
func (s *LanguageServer) builtins() ([]string, error) {
	result, err := s.worker.Do(func(v *vm.VM) (interface{}, error) {
		return v.BuiltinNames(), nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (s *LanguageServer) complete(doc *document, prefix string) ([]protocol.CompletionItem, error) {
	builtins, err := s.builtins()
	if err != nil {
		return nil, err
	}

	var items []protocol.CompletionItem
	seen := make(map[string]bool)
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		if seen[label] || label == prefix || !strings.HasPrefix(label, prefix) {
			return
		}
		seen[label] = true
		labelCopy, detailCopy := label, detail
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detailCopy,
			InsertText: &labelCopy,
		})
	}

	keywords := compiler.Keywords()
	sort.Strings(keywords)
	for _, kw := range keywords {
		add(kw, protocol.CompletionItemKindKeyword, "keyword")
	}
	for _, name := range builtins {
		add(name, protocol.CompletionItemKindFunction, "builtin")
	}
	for _, name := range sortedDefs(doc.analysis.defs) {
		add(name, protocol.CompletionItemKindFunction, doc.analysis.defs[name].signature())
	}
	for _, name := range doc.analysis.names {
		add(name, protocol.CompletionItemKindVariable, "name")
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items, nil
}

func sortedDefs(defs map[string]definition) []string {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// hover explains word: a keyword, a def in the document, or a builtin,
// in that order. Document defs shadow builtins as they do at run time.
func (s *LanguageServer) hover(doc *document, word string) (*protocol.Hover, error) {
	var text string
	if help, ok := keywordDocs[word]; ok {
		text = fmt.Sprintf("**%s**\n\n%s", word, help)
	} else if def, ok := doc.analysis.defs[word]; ok {
		text = fmt.Sprintf("```\n%s\n```", def.signature())
	} else {
		result, err := s.worker.Do(func(v *vm.VM) (interface{}, error) {
			if _, ok := v.Builtin(word); !ok {
				return "", nil
			}
			return fmt.Sprintf("**%s** (builtin)\n\n%s", word, vm.BuiltinDocs[word]), nil
		})
		if err != nil {
			return nil, err
		}
		text = result.(string)
	}
	if text == "" {
		return nil, nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: text,
		},
	}, nil
}

// --- Text extraction helpers ---

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// identStart walks back from col to the first byte of the identifier
// that ends there.
func identStart(line string, col int) int {
	start := col
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(line[:start])
		if !isIdentRune(r) {
			break
		}
		start -= size
	}
	return start
}

// extractPrefix returns the identifier fragment before the cursor for
// completion.
func extractPrefix(text string, pos protocol.Position) string {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return ""
	}
	return line[identStart(line, col):col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return ""
	}

	end := col
	for end < len(line) {
		r, size := utf8.DecodeRuneInString(line[end:])
		if !isIdentRune(r) {
			break
		}
		end += size
	}
	return line[identStart(line, col):end]
}

func boolPtr(b bool) *bool {
	return &b
}
