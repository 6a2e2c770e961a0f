package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pterm/pterm"

	"github.com/chazu/cathon/compiler"
	"github.com/chazu/cathon/interp"
	"github.com/chazu/cathon/vm"
)

const (
	primaryPrompt      = ">>> "
	continuationPrompt = "... "
)

// lineBuffer collects REPL lines into complete inputs. A line ending in
// ':' opens a block that runs until an empty line.
type lineBuffer struct {
	lines []string
}

// add feeds one line. ready is set when src holds a complete input.
func (b *lineBuffer) add(line string) (src string, ready bool) {
	if len(b.lines) == 0 {
		if strings.TrimSpace(line) == "" {
			return "", false
		}
		if !opensBlock(line) {
			return line, true
		}
		b.lines = append(b.lines, line)
		return "", false
	}
	if strings.TrimSpace(line) == "" {
		src = strings.Join(b.lines, "\n") + "\n"
		b.reset()
		return src, true
	}
	b.lines = append(b.lines, line)
	return "", false
}

func (b *lineBuffer) pending() bool {
	return len(b.lines) > 0
}

func (b *lineBuffer) reset() {
	b.lines = b.lines[:0]
}

// opensBlock reports whether line ends a compound statement header.
func opensBlock(line string) bool {
	if i := strings.IndexByte(line, '#'); i >= 0 && !strings.ContainsAny(line[:i], `'"`) {
		line = line[:i]
	}
	return strings.HasSuffix(strings.TrimSpace(line), ":")
}

// repl is an interactive session over one interpreter.
type repl struct {
	in  *interp.Interpreter
	out io.Writer

	showTokens bool
	showAST    bool
	showDis    bool
}

// We use pterm for moderately fancy output.
func initDisplay() {
	pterm.Info.Prefix = pterm.Prefix{
		Text:  " cathon ",
		Style: pterm.NewStyle(pterm.BgCyan, pterm.FgBlack),
	}
	pterm.Error.Prefix = pterm.Prefix{
		Text:  " Error ",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cathon_history")
}

func runREPL(in *interp.Interpreter, opts *options, e env) int {
	initDisplay()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          primaryPrompt,
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          e.stdout,
		Stderr:          e.stderr,
	})
	if err != nil {
		fmt.Fprintf(e.stderr, "Error: cannot start REPL: %v\n", err)
		return exitUsage
	}
	defer rl.Close()

	r := &repl{
		in:         in,
		out:        e.stdout,
		showTokens: opts.tokens,
		showAST:    opts.ast,
		showDis:    opts.disassemble,
	}

	pterm.Info.Printfln("cathon %s (type 'exit' to quit, ':help' for commands)", version)
	var buf lineBuffer
	for {
		if buf.pending() {
			rl.SetPrompt(continuationPrompt)
		} else {
			rl.SetPrompt(primaryPrompt)
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.reset()
			continue
		}
		if err != nil { // io.EOF
			break
		}

		if !buf.pending() {
			trimmed := strings.TrimSpace(line)
			if trimmed == "exit" || trimmed == "quit" {
				break
			}
			if strings.HasPrefix(trimmed, ":") {
				r.command(trimmed)
				continue
			}
		}

		if src, ready := buf.add(line); ready {
			r.eval(src)
		}
	}
	return exitOK
}

// command handles REPL meta-commands.
func (r *repl) command(cmd string) {
	switch cmd {
	case ":help", ":h", ":?":
		fmt.Fprintln(r.out, "REPL Commands:")
		fmt.Fprintln(r.out, "  :help, :h, :?     Show this help")
		fmt.Fprintln(r.out, "  :tokens           Toggle printing the token stream")
		fmt.Fprintln(r.out, "  :ast              Toggle printing the syntax tree")
		fmt.Fprintln(r.out, "  :dis              Toggle printing the disassembly")
		fmt.Fprintln(r.out, "  :globals          List defined globals")
		fmt.Fprintln(r.out, "  exit, quit        Exit REPL")
	case ":tokens":
		r.showTokens = !r.showTokens
		fmt.Fprintf(r.out, "tokens %s\n", onOff(r.showTokens))
	case ":ast":
		r.showAST = !r.showAST
		fmt.Fprintf(r.out, "ast %s\n", onOff(r.showAST))
	case ":dis":
		r.showDis = !r.showDis
		fmt.Fprintf(r.out, "disassembly %s\n", onOff(r.showDis))
	case ":globals":
		for _, name := range r.in.VM().GlobalNames() {
			v, _ := r.in.VM().Global(name)
			fmt.Fprintf(r.out, "%s = %s\n", name, vm.Repr(v))
		}
	default:
		pterm.Error.Printfln("unknown command %s (try :help)", cmd)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// eval runs one complete input and prints a non-None result.
func (r *repl) eval(src string) {
	if r.showTokens {
		toks, _ := interp.Tokens(src)
		for _, tok := range toks {
			fmt.Fprintln(r.out, tok)
		}
	}
	if r.showAST {
		if dump, err := interp.Parse(src); err == nil {
			fmt.Fprint(r.out, dump)
		}
	}

	code, err := r.in.Compile(src, compiler.ModeInteractive)
	if err != nil {
		pterm.Error.Println(formatError("<stdin>", src, err))
		return
	}
	if r.showDis {
		fmt.Fprint(r.out, code.Disassemble())
	}

	result, err := r.in.Run(code)
	if err != nil {
		pterm.Error.Println(err.Error())
		return
	}
	if _, isNone := result.(vm.NoneType); !isNone {
		fmt.Fprintln(r.out, vm.Repr(result))
	}
}
