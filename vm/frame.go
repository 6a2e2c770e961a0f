package vm

import "github.com/chazu/cathon/pkg/bytecode"

// ---------------------------------------------------------------------------
// Frame: execution state of one code object activation
// ---------------------------------------------------------------------------

// Frame holds the operand stack, locals and instruction pointer of one
// activation. Globals is shared with every other frame of the VM.
type Frame struct {
	Code    *bytecode.CodeObject
	IP      int
	Stack   []Value
	Locals  []Value
	Globals map[string]Value
}

func newFrame(code *bytecode.CodeObject, globals map[string]Value) *Frame {
	locals := make([]Value, len(code.Varnames))
	for i := range locals {
		locals[i] = None
	}
	return &Frame{
		Code:    code,
		Stack:   make([]Value, 0, 16),
		Locals:  locals,
		Globals: globals,
	}
}

func (f *Frame) push(v Value) {
	f.Stack = append(f.Stack, v)
}

func (f *Frame) pop() (Value, error) {
	n := len(f.Stack)
	if n == 0 {
		return nil, runtimeErrorf(BytecodeError, "stack underflow")
	}
	v := f.Stack[n-1]
	f.Stack[n-1] = nil
	f.Stack = f.Stack[:n-1]
	return v, nil
}

// popN pops n values and returns them in push order.
func (f *Frame) popN(n int) ([]Value, error) {
	if n > len(f.Stack) {
		return nil, runtimeErrorf(BytecodeError, "stack underflow")
	}
	start := len(f.Stack) - n
	out := make([]Value, n)
	copy(out, f.Stack[start:])
	f.Stack = f.Stack[:start]
	return out, nil
}

func (f *Frame) peek() (Value, error) {
	if len(f.Stack) == 0 {
		return nil, runtimeErrorf(BytecodeError, "stack underflow")
	}
	return f.Stack[len(f.Stack)-1], nil
}
