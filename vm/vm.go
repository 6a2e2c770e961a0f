package vm

import (
	"bufio"
	"errors"
	"io"
	"os"
	"sort"

	"github.com/chazu/cathon/pkg/bytecode"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// VM: stack-based bytecode interpreter
// ---------------------------------------------------------------------------

// VM executes code objects. Globals persist across Run calls, so one VM
// can serve a whole REPL session. A VM is not safe for concurrent use.
type VM struct {
	id       uuid.UUID
	globals  map[string]Value
	builtins map[string]Value

	// Call stack; the running frame is last. Nested calls push frames
	// here instead of recursing in Go.
	frames []*Frame

	stdout io.Writer
	stdin  *bufio.Reader
	trace  bool
	log    commonlog.Logger
}

// Option configures a VM.
type Option func(*VM)

// WithStdout directs print output to w.
func WithStdout(w io.Writer) Option {
	return func(vm *VM) { vm.stdout = w }
}

// WithStdin makes input read from r.
func WithStdin(r io.Reader) Option {
	return func(vm *VM) { vm.stdin = bufio.NewReader(r) }
}

// WithTrace logs every executed instruction at debug level.
func WithTrace(on bool) Option {
	return func(vm *VM) { vm.trace = on }
}

// WithLogger replaces the default "cathon.vm" logger.
func WithLogger(log commonlog.Logger) Option {
	return func(vm *VM) { vm.log = log }
}

// New creates a VM with the builtins installed.
func New(opts ...Option) *VM {
	vm := &VM{
		id:       uuid.New(),
		globals:  make(map[string]Value),
		builtins: make(map[string]Value),
		stdout:   os.Stdout,
		stdin:    bufio.NewReader(os.Stdin),
		log:      commonlog.GetLogger("cathon.vm"),
	}
	for _, opt := range opts {
		opt(vm)
	}
	vm.log = commonlog.NewKeyValueLogger(vm.log, "session", vm.id.String())
	vm.installBuiltins()
	return vm
}

// ID returns the session id used in log lines.
func (vm *VM) ID() uuid.UUID {
	return vm.id
}

// Global returns the global bound to name.
func (vm *VM) Global(name string) (Value, bool) {
	v, ok := vm.globals[name]
	return v, ok
}

// SetGlobal binds a global.
func (vm *VM) SetGlobal(name string, v Value) {
	vm.globals[name] = v
}

// GlobalNames returns the bound global names, sorted.
func (vm *VM) GlobalNames() []string {
	return sortedKeys(vm.globals)
}

// BuiltinNames returns the builtin names, sorted.
func (vm *VM) BuiltinNames() []string {
	return sortedKeys(vm.builtins)
}

// Builtin returns the builtin registered under name.
func (vm *VM) Builtin(name string) (*NativeFunction, bool) {
	v, ok := vm.builtins[name].(*NativeFunction)
	return v, ok
}

// RegisterBuiltin adds or replaces a builtin.
func (vm *VM) RegisterBuiltin(name string, fn NativeFunc) {
	vm.builtins[name] = &NativeFunction{Name: name, Fn: fn}
}

func sortedKeys(m map[string]Value) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Depth returns the number of active frames. It is zero outside Run.
func (vm *VM) Depth() int {
	return len(vm.frames)
}

// Run executes code as a top-level unit and returns the value of its
// final RETURN. After an error the call stack is discarded; globals
// assigned before the error remain.
func (vm *VM) Run(code *bytecode.CodeObject) (Value, error) {
	if code == nil {
		return nil, runtimeErrorf(BytecodeError, "no code to run")
	}
	vm.log.Debugf("run %s: %d bytes, %d constants", code.Name, len(code.Code), len(code.Constants))
	vm.frames = append(vm.frames[:0], newFrame(code, vm.globals))
	result, err := vm.execute()
	vm.frames = vm.frames[:0]
	return result, err
}

// Call invokes a callable value with args from Go.
func (vm *VM) Call(callee Value, args ...Value) (Value, error) {
	switch fn := callee.(type) {
	case *NativeFunction:
		return vm.callNative(fn, args)
	case *Function:
		frame, err := vm.enter(fn, args)
		if err != nil {
			return nil, err
		}
		saved := vm.frames
		vm.frames = []*Frame{frame}
		result, err := vm.execute()
		vm.frames = saved
		return result, err
	}
	return nil, runtimeErrorf(TypeError, "'%s' object is not callable", callee.TypeName())
}

// execute is the fetch-decode-execute loop. It returns when the last
// frame returns.
func (vm *VM) execute() (Value, error) {
	for {
		f := vm.frames[len(vm.frames)-1]
		code := f.Code.Code
		start := f.IP
		if start >= len(code) {
			return nil, vm.locate(runtimeErrorf(BytecodeError, "ran past the end of %s", f.Code.Name), f, start, bytecode.OpNop)
		}

		raw := code[start]
		op, ok := bytecode.Decode(raw)
		if !ok {
			err := runtimeErrorf(UnknownOpcode, "unknown opcode 0x%02X", raw)
			return nil, vm.locate(err, f, start, bytecode.Opcode(raw))
		}
		arg := 0
		if op.HasOperand() {
			if start+2 >= len(code) {
				return nil, vm.locate(runtimeErrorf(BytecodeError, "truncated %s", op), f, start, op)
			}
			arg = int(code[start+1])<<8 | int(code[start+2])
		}
		f.IP = start + op.InstructionLen()

		if vm.trace {
			vm.log.Debugf("%s %04d %-14s %5d  depth=%d stack=%d", f.Code.Name, start, op, arg, len(vm.frames), len(f.Stack))
		}

		result, done, err := vm.step(f, op, arg)
		if err != nil {
			return nil, vm.locate(err, f, start, op)
		}
		if done {
			return result, nil
		}
	}
}

// locate fills in where a runtime error happened.
func (vm *VM) locate(err error, f *Frame, offset int, op bytecode.Opcode) error {
	var re *RuntimeError
	if !errors.As(err, &re) {
		re = &RuntimeError{Kind: NativeError, Message: err.Error()}
	}
	if re.Code == "" {
		re.Code = f.Code.Name
		re.Line = f.Code.LineFor(offset)
		re.Opcode = op
	}
	vm.log.Debugf("%s at %s+%d: %s", re.Kind, re.Code, offset, re.Message)
	return re
}

// step executes one decoded instruction. done is set when the outermost
// frame returns.
func (vm *VM) step(f *Frame, op bytecode.Opcode, arg int) (result Value, done bool, err error) {
	switch op {
	case bytecode.OpNop:

	// --- Constants and variables ---
	case bytecode.OpLoadConst:
		if arg >= len(f.Code.Constants) {
			return nil, false, runtimeErrorf(BytecodeError, "constant index %d out of range", arg)
		}
		f.push(FromConstant(f.Code.Constants[arg]))

	case bytecode.OpLoadFast:
		if arg >= len(f.Locals) {
			return nil, false, runtimeErrorf(BytecodeError, "local slot %d out of range", arg)
		}
		f.push(f.Locals[arg])

	case bytecode.OpStoreFast:
		if arg >= len(f.Locals) {
			return nil, false, runtimeErrorf(BytecodeError, "local slot %d out of range", arg)
		}
		v, err := f.pop()
		if err != nil {
			return nil, false, err
		}
		f.Locals[arg] = v

	case bytecode.OpLoadName:
		name, err := nameAt(f, arg)
		if err != nil {
			return nil, false, err
		}
		v, ok := f.Globals[name]
		if !ok {
			v, ok = vm.builtins[name]
		}
		if !ok {
			return nil, false, runtimeErrorf(NameError, "name '%s' is not defined", name)
		}
		f.push(v)

	case bytecode.OpStoreName:
		name, err := nameAt(f, arg)
		if err != nil {
			return nil, false, err
		}
		v, err := f.pop()
		if err != nil {
			return nil, false, err
		}
		f.Globals[name] = v

	// --- Stack manipulation ---
	case bytecode.OpPop:
		if _, err := f.pop(); err != nil {
			return nil, false, err
		}

	case bytecode.OpDup:
		v, err := f.peek()
		if err != nil {
			return nil, false, err
		}
		f.push(v)

	case bytecode.OpSwap:
		vals, err := f.popN(2)
		if err != nil {
			return nil, false, err
		}
		f.push(vals[1])
		f.push(vals[0])

	// --- Operators ---
	case bytecode.OpBinaryAdd, bytecode.OpBinarySub, bytecode.OpBinaryMul,
		bytecode.OpBinaryDiv, bytecode.OpBinaryFloorDiv, bytecode.OpBinaryMod,
		bytecode.OpBinaryPow,
		bytecode.OpCompareEq, bytecode.OpCompareNe, bytecode.OpCompareLt,
		bytecode.OpCompareLe, bytecode.OpCompareGt, bytecode.OpCompareGe,
		bytecode.OpBinaryOr, bytecode.OpBinaryXor, bytecode.OpBinaryAnd,
		bytecode.OpBinaryLShift, bytecode.OpBinaryRShift:
		operands, err := f.popN(2)
		if err != nil {
			return nil, false, err
		}
		v, err := binaryOp(op, operands[0], operands[1])
		if err != nil {
			return nil, false, err
		}
		f.push(v)

	case bytecode.OpUnaryNeg, bytecode.OpUnaryNot, bytecode.OpUnaryPos:
		operand, err := f.pop()
		if err != nil {
			return nil, false, err
		}
		v, err := unaryOp(op, operand)
		if err != nil {
			return nil, false, err
		}
		f.push(v)

	// --- Jumps ---
	case bytecode.OpJump, bytecode.OpLoop:
		if err := jump(f, arg); err != nil {
			return nil, false, err
		}

	case bytecode.OpJumpIfFalse, bytecode.OpJumpIfTrue:
		cond, err := f.peek()
		if err != nil {
			return nil, false, err
		}
		if Truthy(cond) == (op == bytecode.OpJumpIfTrue) {
			if err := jump(f, arg); err != nil {
				return nil, false, err
			}
		}

	// --- Calls ---
	case bytecode.OpCall:
		if err := vm.call(f, arg); err != nil {
			return nil, false, err
		}

	case bytecode.OpReturn:
		v, err := f.pop()
		if err != nil {
			return nil, false, err
		}
		vm.frames[len(vm.frames)-1] = nil
		vm.frames = vm.frames[:len(vm.frames)-1]
		if len(vm.frames) == 0 {
			return v, true, nil
		}
		vm.frames[len(vm.frames)-1].push(v)

	case bytecode.OpMakeFunction:
		v, err := f.pop()
		if err != nil {
			return nil, false, err
		}
		fn, ok := v.(*Function)
		if !ok {
			return nil, false, runtimeErrorf(TypeError, "cannot make a function from '%s'", v.TypeName())
		}
		f.push(&Function{Code: fn.Code, Globals: f.Globals})

	// --- Containers ---
	case bytecode.OpBuildList:
		items, err := f.popN(arg)
		if err != nil {
			return nil, false, err
		}
		f.push(NewList(items...))

	case bytecode.OpBuildDict:
		v, err := f.pop()
		if err != nil {
			return nil, false, err
		}
		d, err := buildDict(v)
		if err != nil {
			return nil, false, err
		}
		f.push(d)

	case bytecode.OpBinarySubscr:
		operands, err := f.popN(2)
		if err != nil {
			return nil, false, err
		}
		v, err := subscript(operands[0], operands[1])
		if err != nil {
			return nil, false, err
		}
		f.push(v)

	case bytecode.OpStoreSubscr:
		operands, err := f.popN(3)
		if err != nil {
			return nil, false, err
		}
		if err := storeSubscript(operands[0], operands[1], operands[2]); err != nil {
			return nil, false, err
		}

	default:
		// Decodable but reserved: LOAD_GLOBAL, STORE_GLOBAL, BUILD_TUPLE,
		// GET_ATTR, SET_ATTR, GET_ITER, FOR_ITER.
		return nil, false, runtimeErrorf(UnknownOpcode, "opcode %s is not implemented", op)
	}
	return nil, false, nil
}

func nameAt(f *Frame, idx int) (string, error) {
	if idx >= len(f.Code.Names) {
		return "", runtimeErrorf(BytecodeError, "name index %d out of range", idx)
	}
	return f.Code.Names[idx], nil
}

func jump(f *Frame, target int) error {
	if target > len(f.Code.Code) {
		return runtimeErrorf(BytecodeError, "jump target %d out of range", target)
	}
	f.IP = target
	return nil
}

// buildDict converts a list of alternating keys and values.
func buildDict(v Value) (*Dict, error) {
	pairs, ok := v.(*List)
	if !ok || len(pairs.Items)%2 != 0 {
		return nil, runtimeErrorf(BytecodeError, "BUILD_DICT needs a list of key/value pairs, got '%s'", v.TypeName())
	}
	d := NewDict()
	for i := 0; i < len(pairs.Items); i += 2 {
		key, ok := pairs.Items[i].(String)
		if !ok {
			return nil, runtimeErrorf(TypeError, "dict keys must be strings, not '%s'", pairs.Items[i].TypeName())
		}
		d.Set(string(key), pairs.Items[i+1])
	}
	return d, nil
}

// call pops argc arguments and the callee from f. A Function gets a new
// frame; a NativeFunction runs in place and its result is pushed on f.
func (vm *VM) call(f *Frame, argc int) error {
	args, err := f.popN(argc)
	if err != nil {
		return err
	}
	callee, err := f.pop()
	if err != nil {
		return err
	}

	switch fn := callee.(type) {
	case *Function:
		frame, err := vm.enter(fn, args)
		if err != nil {
			return err
		}
		vm.frames = append(vm.frames, frame)
		return nil
	case *NativeFunction:
		result, err := vm.callNative(fn, args)
		if err != nil {
			return err
		}
		f.push(result)
		return nil
	}
	return runtimeErrorf(TypeError, "'%s' object is not callable", callee.TypeName())
}

// enter checks arity and builds the frame for a call to fn.
func (vm *VM) enter(fn *Function, args []Value) (*Frame, error) {
	if len(args) != fn.Code.ArgCount {
		return nil, runtimeErrorf(TypeError, "%s() takes %d positional arguments but %d were given",
			fn.Name(), fn.Code.ArgCount, len(args))
	}
	globals := fn.Globals
	if globals == nil {
		globals = vm.globals
	}
	frame := newFrame(fn.Code, globals)
	if len(frame.Locals) < len(args) {
		return nil, runtimeErrorf(BytecodeError, "%s has %d local slots for %d arguments",
			fn.Name(), len(frame.Locals), len(args))
	}
	copy(frame.Locals, args)
	return frame, nil
}

func (vm *VM) callNative(fn *NativeFunction, args []Value) (Value, error) {
	result, err := fn.Fn(vm, args)
	if err != nil {
		var re *RuntimeError
		if errors.As(err, &re) {
			return nil, re
		}
		return nil, runtimeErrorf(NativeError, "%s", err.Error())
	}
	if result == nil {
		result = None
	}
	return result, nil
}
