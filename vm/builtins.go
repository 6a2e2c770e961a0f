package vm

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ---------------------------------------------------------------------------
// Builtins
// ---------------------------------------------------------------------------

// BuiltinDocs gives a one-line signature for each builtin, used for
// editor hover text.
var BuiltinDocs = map[string]string{
	"print": "print(*values) writes the values separated by spaces, then a newline",
	"len":   "len(obj) returns the number of characters, items or entries",
	"type":  "type(obj) returns the name of the value's type, e.g. <class 'int'>",
	"range": "range(stop), range(start, stop[, step]) returns a list of ints",
	"input": "input([prompt]) writes prompt and reads one line",
}

func (vm *VM) installBuiltins() {
	vm.RegisterBuiltin("print", builtinPrint)
	vm.RegisterBuiltin("len", builtinLen)
	vm.RegisterBuiltin("type", builtinType)
	vm.RegisterBuiltin("range", builtinRange)
	vm.RegisterBuiltin("input", builtinInput)
}

func builtinPrint(vm *VM, args []Value) (Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Str(a)
	}
	if _, err := fmt.Fprintln(vm.stdout, strings.Join(parts, " ")); err != nil {
		return nil, fmt.Errorf("print: %w", err)
	}
	return None, nil
}

func builtinLen(vm *VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("len() takes exactly one argument (%d given)", len(args))
	}
	switch x := args[0].(type) {
	case String:
		return Int(runeLen(x)), nil
	case *List:
		return Int(len(x.Items)), nil
	case *Dict:
		return Int(x.Len()), nil
	}
	return nil, fmt.Errorf("object of type '%s' has no len()", args[0].TypeName())
}

func builtinType(vm *VM, args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("type() takes exactly one argument (%d given)", len(args))
	}
	return String(fmt.Sprintf("<class '%s'>", args[0].TypeName())), nil
}

func builtinRange(vm *VM, args []Value) (Value, error) {
	bounds := make([]Int, len(args))
	for i, a := range args {
		n, ok := a.(Int)
		if !ok {
			return nil, fmt.Errorf("range() expects integers, got '%s'", a.TypeName())
		}
		bounds[i] = n
	}

	var start, stop, step Int = 0, 0, 1
	switch len(bounds) {
	case 1:
		stop = bounds[0]
	case 2:
		start, stop = bounds[0], bounds[1]
	case 3:
		start, stop, step = bounds[0], bounds[1], bounds[2]
	default:
		return nil, fmt.Errorf("range() takes 1 to 3 arguments (%d given)", len(args))
	}
	if step == 0 {
		return nil, errors.New("range() arg 3 must not be zero")
	}

	n := rangeLen(start, stop, step)
	if n > maxRangeLen {
		return nil, runtimeErrorf(ValueError, "range() result has too many items")
	}
	items := make([]Value, n)
	for k := range items {
		items[k] = start + Int(k)*step
	}
	return NewList(items...), nil
}

// maxRangeLen caps the list range() builds.
const maxRangeLen = 1 << 24

// rangeLen counts the items of range(start, stop, step) in unsigned
// arithmetic, so spans wider than MaxInt64 do not overflow.
func rangeLen(start, stop, step Int) uint64 {
	var span, stride uint64
	switch {
	case step > 0 && start < stop:
		span = uint64(stop) - uint64(start)
		stride = uint64(step)
	case step < 0 && start > stop:
		span = uint64(start) - uint64(stop)
		stride = -uint64(step)
	default:
		return 0
	}
	return (span-1)/stride + 1
}

func builtinInput(vm *VM, args []Value) (Value, error) {
	if len(args) > 1 {
		return nil, fmt.Errorf("input() takes at most 1 argument (%d given)", len(args))
	}
	if len(args) == 1 {
		if _, err := io.WriteString(vm.stdout, Str(args[0])); err != nil {
			return nil, fmt.Errorf("input: %w", err)
		}
	}
	line, err := vm.stdin.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return nil, errors.New("EOF when reading a line")
		}
		return nil, fmt.Errorf("input: %w", err)
	}
	return String(strings.TrimRight(line, "\r\n")), nil
}
