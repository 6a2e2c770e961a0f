// cathon CLI - runs cathon scripts, one-liners and the interactive REPL
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/term"

	"github.com/chazu/cathon/compiler"
	"github.com/chazu/cathon/interp"
	"github.com/chazu/cathon/manifest"
	"github.com/chazu/cathon/pkg/codecache"
	"github.com/chazu/cathon/server"
	"github.com/chazu/cathon/vm"
)

const version = "0.1.0"

// Exit codes.
const (
	exitOK    = 0
	exitError = 1 // lex, parse, compile or runtime error
	exitUsage = 2 // bad flags or unreadable input
)

var log = commonlog.GetLogger("cathon.cli")

// env is the process environment run works against.
type env struct {
	stdin         io.Reader
	stdinTerminal bool
	stdout        io.Writer
	stderr        io.Writer
	workDir       string
}

// options holds the parsed command line.
type options struct {
	code        string
	interactive bool
	verbose     bool
	debug       bool
	trace       bool
	disassemble bool
	tokens      bool
	ast         bool
	lsp         bool
	noCache     bool
	config      string
	script      string
}

func main() {
	wd, _ := os.Getwd()
	os.Exit(run(os.Args[1:], env{
		stdin:         os.Stdin,
		stdinTerminal: term.IsTerminal(int(os.Stdin.Fd())),
		stdout:        os.Stdout,
		stderr:        os.Stderr,
		workDir:       wd,
	}))
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("cathon", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.code, "c", "", "Program passed in as string")
	fs.BoolVar(&opts.interactive, "i", false, "Start the REPL after running the program")
	fs.BoolVar(&opts.verbose, "v", false, "Verbose logging")
	fs.BoolVar(&opts.debug, "debug", false, "Debug logging")
	fs.BoolVar(&opts.trace, "trace", false, "Log every executed instruction (implies -debug)")
	fs.BoolVar(&opts.disassemble, "dis", false, "Print the disassembly before running")
	fs.BoolVar(&opts.tokens, "tokens", false, "Print the token stream before running")
	fs.BoolVar(&opts.ast, "ast", false, "Print the syntax tree before running")
	fs.BoolVar(&opts.lsp, "lsp", false, "Run the language server on stdio")
	fs.BoolVar(&opts.noCache, "no-cache", false, "Do not read or write the compiled code cache")
	fs.StringVar(&opts.config, "config", "", "Path to cathon.toml (default: search upwards from the working directory)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: cathon [options] [script]\n\n")
		fmt.Fprintf(stderr, "Runs a cathon program. The source is taken from, in order: piped\n")
		fmt.Fprintf(stderr, "standard input, -c, the script argument, the manifest entry.\n")
		fmt.Fprintf(stderr, "With none of these the REPL starts.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  cathon                      # Start REPL\n")
		fmt.Fprintf(stderr, "  cathon main.cy              # Run a script\n")
		fmt.Fprintf(stderr, "  cathon -c 'print(1 + 2)'    # Run a one-liner\n")
		fmt.Fprintf(stderr, "  echo '2 ** 10' | cathon     # Evaluate piped input\n")
		fmt.Fprintf(stderr, "  cathon -dis main.cy         # Show bytecode, then run\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch fs.NArg() {
	case 0:
	case 1:
		opts.script = fs.Arg(0)
	default:
		fs.Usage()
		return nil, fmt.Errorf("expected at most one script, got %d", fs.NArg())
	}
	return opts, nil
}

func run(args []string, e env) int {
	opts, err := parseFlags(args, e.stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	m, err := loadManifest(opts.config, e.workDir)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitUsage
	}
	configureLogging(opts, m)

	if opts.lsp {
		srv := server.NewLanguageServer(server.WithVersion(version))
		defer srv.Close()
		if err := srv.Run(); err != nil {
			fmt.Fprintf(e.stderr, "Server error: %v\n", err)
			return exitError
		}
		return exitOK
	}

	src, err := selectSource(opts, e, m)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return exitUsage
	}

	var interpOpts []interp.Option
	if store := openCache(opts, m); store != nil {
		defer store.Close()
		interpOpts = append(interpOpts, interp.WithCache(store))
	}
	interpOpts = append(interpOpts, interp.WithVMOptions(
		vm.WithStdout(e.stdout),
		vm.WithStdin(e.stdin),
		vm.WithTrace(opts.trace || m.Run.Trace),
	))
	in := interp.New(interpOpts...)

	if src == nil {
		return runREPL(in, opts, e)
	}

	status := execute(in, src, opts, m, e)
	if status == exitOK && opts.interactive {
		return runREPL(in, opts, e)
	}
	return status
}

func loadManifest(path, workDir string) (*manifest.Manifest, error) {
	if path != "" {
		return manifest.LoadFile(path)
	}
	m, err := manifest.FindAndLoad(workDir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(), nil
	}
	return m, nil
}

// configureLogging applies the manifest verbosity, raised by -v, -debug
// and -trace.
func configureLogging(opts *options, m *manifest.Manifest) {
	verbosity := m.Log.Verbosity
	if opts.verbose && verbosity < 1 {
		verbosity = 1
	}
	if (opts.debug || opts.trace || m.Run.Trace) && verbosity < 2 {
		verbosity = 2
	}
	var path *string
	if file := m.LogFile(); file != "" {
		path = &file
	}
	commonlog.Configure(verbosity, path)
}

func openCache(opts *options, m *manifest.Manifest) *codecache.Store {
	if opts.noCache || !m.Cache.Enabled {
		return nil
	}
	store, err := codecache.Open(m.CachePath())
	if err != nil {
		log.Warningf("running without a code cache: %s", err)
		return nil
	}
	return store
}

// source is a program to run.
type source struct {
	name string
	text string
	mode compiler.Mode
}

// selectSource picks the program: piped stdin, then -c, then the script
// argument, then the manifest entry. nil means start the REPL.
func selectSource(opts *options, e env, m *manifest.Manifest) (*source, error) {
	if !e.stdinTerminal && e.stdin != nil {
		data, err := io.ReadAll(e.stdin)
		if err != nil {
			return nil, fmt.Errorf("reading standard input: %w", err)
		}
		if strings.TrimSpace(string(data)) != "" {
			return &source{name: "<stdin>", text: string(data), mode: compiler.ModeInteractive}, nil
		}
	}
	if opts.code != "" {
		return &source{name: "<string>", text: opts.code, mode: compiler.ModeInteractive}, nil
	}

	path := opts.script
	if path == "" {
		path = m.EntryPath()
	}
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return &source{name: filepath.Base(path), text: string(data), mode: compiler.ModeModule}, nil
}

// execute runs src, printing the requested diagnostics first.
func execute(in *interp.Interpreter, src *source, opts *options, m *manifest.Manifest, e env) int {
	if opts.tokens {
		toks, err := interp.Tokens(src.text)
		for _, tok := range toks {
			fmt.Fprintln(e.stdout, tok)
		}
		if err != nil {
			fmt.Fprintln(e.stderr, formatError(src.name, src.text, err))
			return exitError
		}
	}
	if opts.ast {
		dump, err := interp.Parse(src.text)
		if err != nil {
			fmt.Fprintln(e.stderr, formatError(src.name, src.text, err))
			return exitError
		}
		fmt.Fprint(e.stdout, dump)
	}

	code, err := in.Compile(src.text, src.mode)
	if err != nil {
		fmt.Fprintln(e.stderr, formatError(src.name, src.text, err))
		return exitError
	}
	if opts.disassemble || m.Run.Disassemble {
		fmt.Fprint(e.stdout, code.Disassemble())
	}

	result, err := in.Run(code)
	if err != nil {
		fmt.Fprintln(e.stderr, formatError(src.name, src.text, err))
		return exitError
	}
	if _, isNone := result.(vm.NoneType); !isNone && src.mode == compiler.ModeInteractive {
		fmt.Fprintln(e.stdout, vm.Repr(result))
	}
	return exitOK
}

// formatError renders err for a terminal. Front-end errors point at the
// offending source line with a caret.
func formatError(name, text string, err error) string {
	var ce *compiler.Error
	if !errors.As(err, &ce) {
		return fmt.Sprintf("%s: %v", name, err)
	}

	li := compiler.NewLineIndex(text)
	line, col := li.Position(ce.Span.Start)
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d:%d: %s: %s", name, line, col, ce.Kind, ce.Message)

	lines := strings.Split(text, "\n")
	if line-1 < len(lines) {
		srcLine := strings.TrimRight(lines[line-1], "\r")
		if strings.TrimSpace(srcLine) != "" {
			fmt.Fprintf(&b, "\n    %s\n    %s^", srcLine, strings.Repeat(" ", col-1))
		}
	}
	return b.String()
}
