// Package interp ties the compiler, the optional code cache and the VM
// into one pipeline: source in, value out.
package interp

import (
	"errors"

	"github.com/chazu/cathon/compiler"
	"github.com/chazu/cathon/pkg/bytecode"
	"github.com/chazu/cathon/pkg/codecache"
	"github.com/chazu/cathon/vm"
	"github.com/tliron/commonlog"
)

// Interpreter owns one VM, so globals persist across Exec and Eval
// calls. It is not safe for concurrent use.
type Interpreter struct {
	vm    *vm.VM
	cache *codecache.Store
	log   commonlog.Logger

	vmOpts []vm.Option
	hits   int
	misses int
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithCache makes compiles consult and fill store.
func WithCache(store *codecache.Store) Option {
	return func(in *Interpreter) { in.cache = store }
}

// WithVMOptions passes options through to the VM.
func WithVMOptions(opts ...vm.Option) Option {
	return func(in *Interpreter) { in.vmOpts = append(in.vmOpts, opts...) }
}

// New creates an interpreter with a fresh VM.
func New(opts ...Option) *Interpreter {
	in := &Interpreter{}
	for _, opt := range opts {
		opt(in)
	}
	in.vm = vm.New(in.vmOpts...)
	in.log = commonlog.NewKeyValueLogger(commonlog.GetLogger("cathon.interp"), "session", in.vm.ID().String())
	return in
}

// VM returns the underlying virtual machine.
func (in *Interpreter) VM() *vm.VM {
	return in.vm
}

// Exec runs src as a module. The result is always None unless a
// top-level return is compiled in, which the compiler rejects.
func (in *Interpreter) Exec(src string) (vm.Value, error) {
	return in.run(src, compiler.ModeModule)
}

// Eval runs src interactively: if its last statement is an expression,
// that expression's value is returned.
func (in *Interpreter) Eval(src string) (vm.Value, error) {
	return in.run(src, compiler.ModeInteractive)
}

func (in *Interpreter) run(src string, mode compiler.Mode) (vm.Value, error) {
	code, err := in.Compile(src, mode)
	if err != nil {
		return nil, err
	}
	return in.vm.Run(code)
}

// Run executes an already compiled code object.
func (in *Interpreter) Run(code *bytecode.CodeObject) (vm.Value, error) {
	return in.vm.Run(code)
}

// Compile turns src into a code object, reusing a cached compilation
// when one exists. Cache failures are logged and fall back to compiling.
func (in *Interpreter) Compile(src string, mode compiler.Mode) (*bytecode.CodeObject, error) {
	if in.cache == nil {
		return compiler.Compile(src, mode)
	}

	key := codecache.Key(int(mode), src)
	code, err := in.cache.Get(key)
	switch {
	case err == nil:
		in.hits++
		in.log.Debugf("cache hit %s", key[:12])
		return code, nil
	case errors.Is(err, codecache.ErrNotFound):
		in.misses++
	default:
		in.misses++
		in.log.Warningf("cache read failed, recompiling: %s", err)
	}

	code, err = compiler.Compile(src, mode)
	if err != nil {
		return nil, err
	}
	if err := in.cache.Put(key, int(mode), code); err != nil {
		in.log.Warningf("cache write failed: %s", err)
	} else {
		in.log.Debugf("cached %s", key[:12])
	}
	return code, nil
}

// CacheStats reports how many compiles were served from the cache and
// how many missed it.
func (in *Interpreter) CacheStats() (hits, misses int) {
	return in.hits, in.misses
}

// Tokens lexes src. On error the tokens produced before it are returned
// along with the error.
func Tokens(src string) ([]compiler.Token, error) {
	return compiler.Tokenize(src)
}

// Parse parses src and renders the tree with spans.
func Parse(src string) (string, error) {
	arena, root, err := compiler.Parse(src)
	if err != nil {
		return "", err
	}
	return compiler.Dump(arena, root), nil
}
