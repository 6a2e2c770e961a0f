package vm

import (
	"math"
	"strings"

	"github.com/chazu/cathon/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Typed operations
// ---------------------------------------------------------------------------

// binaryOp applies a binary arithmetic, bitwise or comparison opcode.
func binaryOp(op bytecode.Opcode, a, b Value) (Value, error) {
	switch op {
	case bytecode.OpBinaryAdd:
		return add(a, b)
	case bytecode.OpBinarySub:
		return arith("-", a, b,
			func(x, y Int) (Value, error) { return x - y, nil },
			func(x, y Float) (Value, error) { return x - y, nil })
	case bytecode.OpBinaryMul:
		return mul(a, b)
	case bytecode.OpBinaryDiv:
		return div(a, b)
	case bytecode.OpBinaryFloorDiv:
		return arith("//", a, b, floorDivInt, floorDivFloat)
	case bytecode.OpBinaryMod:
		return arith("%", a, b, modInt, modFloat)
	case bytecode.OpBinaryPow:
		return arith("**", a, b, powInt, powFloat)
	case bytecode.OpCompareEq:
		return Bool(Equal(a, b)), nil
	case bytecode.OpCompareNe:
		return Bool(!Equal(a, b)), nil
	case bytecode.OpCompareLt:
		return compare("<", a, b, func(c int) bool { return c < 0 })
	case bytecode.OpCompareLe:
		return compare("<=", a, b, func(c int) bool { return c <= 0 })
	case bytecode.OpCompareGt:
		return compare(">", a, b, func(c int) bool { return c > 0 })
	case bytecode.OpCompareGe:
		return compare(">=", a, b, func(c int) bool { return c >= 0 })
	case bytecode.OpBinaryOr:
		return bitwise("|", a, b, func(x, y Int) (Value, error) { return x | y, nil })
	case bytecode.OpBinaryXor:
		return bitwise("^", a, b, func(x, y Int) (Value, error) { return x ^ y, nil })
	case bytecode.OpBinaryAnd:
		return bitwise("&", a, b, func(x, y Int) (Value, error) { return x & y, nil })
	case bytecode.OpBinaryLShift:
		return bitwise("<<", a, b, func(x, y Int) (Value, error) {
			if y < 0 {
				return nil, runtimeErrorf(ValueError, "negative shift count")
			}
			return x << uint64(y), nil
		})
	case bytecode.OpBinaryRShift:
		return bitwise(">>", a, b, func(x, y Int) (Value, error) {
			if y < 0 {
				return nil, runtimeErrorf(ValueError, "negative shift count")
			}
			return x >> uint64(y), nil
		})
	}
	return nil, runtimeErrorf(UnknownOpcode, "%s is not a binary operation", op)
}

// arith dispatches a numeric operation, promoting a mixed Int/Float pair
// to Float.
func arith(sym string, a, b Value, ints func(x, y Int) (Value, error), floats func(x, y Float) (Value, error)) (Value, error) {
	switch x := a.(type) {
	case Int:
		switch y := b.(type) {
		case Int:
			return ints(x, y)
		case Float:
			return floats(Float(x), y)
		}
	case Float:
		switch y := b.(type) {
		case Int:
			return floats(x, Float(y))
		case Float:
			return floats(x, y)
		}
	}
	return nil, unsupportedOperands(sym, a, b)
}

func add(a, b Value) (Value, error) {
	if x, ok := a.(String); ok {
		if y, ok := b.(String); ok {
			return x + y, nil
		}
		return nil, unsupportedOperands("+", a, b)
	}
	return arith("+", a, b,
		func(x, y Int) (Value, error) { return x + y, nil },
		func(x, y Float) (Value, error) { return x + y, nil })
}

func mul(a, b Value) (Value, error) {
	switch x := a.(type) {
	case String:
		if n, ok := b.(Int); ok {
			return repeat(x, n)
		}
		return nil, unsupportedOperands("*", a, b)
	case Int:
		if s, ok := b.(String); ok {
			return repeat(s, x)
		}
	}
	return arith("*", a, b,
		func(x, y Int) (Value, error) { return x * y, nil },
		func(x, y Float) (Value, error) { return x * y, nil })
}

// repeat concatenates n copies of s; a negative count gives "".
func repeat(s String, n Int) (Value, error) {
	if n <= 0 || s == "" {
		return String(""), nil
	}
	if int64(n) > int64(math.MaxInt32)/int64(len(s)) {
		return nil, runtimeErrorf(ValueError, "repeated string is too long")
	}
	return String(strings.Repeat(string(s), int(n))), nil
}

// div is true division. Only Int/Int and Float/Float are accepted, and
// the result is always a Float.
func div(a, b Value) (Value, error) {
	switch x := a.(type) {
	case Int:
		if y, ok := b.(Int); ok {
			if y == 0 {
				return nil, runtimeErrorf(ZeroDivisionError, "division by zero")
			}
			return Float(float64(x) / float64(y)), nil
		}
	case Float:
		if y, ok := b.(Float); ok {
			if y == 0 {
				return nil, runtimeErrorf(ZeroDivisionError, "float division by zero")
			}
			return x / y, nil
		}
	}
	return nil, unsupportedOperands("/", a, b)
}

func floorDivInt(x, y Int) (Value, error) {
	if y == 0 {
		return nil, runtimeErrorf(ZeroDivisionError, "integer division or modulo by zero")
	}
	q := x / y
	if x%y != 0 && (x < 0) != (y < 0) {
		q--
	}
	return q, nil
}

func floorDivFloat(x, y Float) (Value, error) {
	if y == 0 {
		return nil, runtimeErrorf(ZeroDivisionError, "float floor division by zero")
	}
	return Float(math.Floor(float64(x / y))), nil
}

// modInt and modFloat give a result with the sign of the divisor.
func modInt(x, y Int) (Value, error) {
	if y == 0 {
		return nil, runtimeErrorf(ZeroDivisionError, "integer division or modulo by zero")
	}
	r := x % y
	if r != 0 && (r < 0) != (y < 0) {
		r += y
	}
	return r, nil
}

func modFloat(x, y Float) (Value, error) {
	if y == 0 {
		return nil, runtimeErrorf(ZeroDivisionError, "float modulo by zero")
	}
	r := Float(math.Mod(float64(x), float64(y)))
	if r != 0 && (r < 0) != (y < 0) {
		r += y
	}
	return r, nil
}

func powInt(x, y Int) (Value, error) {
	if y < 0 {
		if x == 0 {
			return nil, runtimeErrorf(ZeroDivisionError, "0 cannot be raised to a negative power")
		}
		return Float(math.Pow(float64(x), float64(y))), nil
	}
	result := Int(1)
	for base, exp := x, y; exp > 0; exp >>= 1 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
	}
	return result, nil
}

func powFloat(x, y Float) (Value, error) {
	if x == 0 && y < 0 {
		return nil, runtimeErrorf(ZeroDivisionError, "0.0 cannot be raised to a negative power")
	}
	return Float(math.Pow(float64(x), float64(y))), nil
}

// compare orders Int-Int and Float-Float pairs; nothing else is ordered.
func compare(sym string, a, b Value, test func(int) bool) (Value, error) {
	switch x := a.(type) {
	case Int:
		if y, ok := b.(Int); ok {
			return Bool(test(cmp3(x < y, x > y))), nil
		}
	case Float:
		if y, ok := b.(Float); ok {
			if math.IsNaN(float64(x)) || math.IsNaN(float64(y)) {
				return Bool(false), nil
			}
			return Bool(test(cmp3(x < y, x > y))), nil
		}
	}
	return nil, runtimeErrorf(TypeError, "'%s' not supported between instances of '%s' and '%s'",
		sym, a.TypeName(), b.TypeName())
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func bitwise(sym string, a, b Value, fn func(x, y Int) (Value, error)) (Value, error) {
	x, ok1 := a.(Int)
	y, ok2 := b.(Int)
	if !ok1 || !ok2 {
		return nil, unsupportedOperands(sym, a, b)
	}
	return fn(x, y)
}

// unaryOp applies UNARY_NEG, UNARY_POS or UNARY_NOT.
func unaryOp(op bytecode.Opcode, v Value) (Value, error) {
	switch op {
	case bytecode.OpUnaryNot:
		return Bool(!Truthy(v)), nil
	case bytecode.OpUnaryNeg:
		switch x := v.(type) {
		case Int:
			return -x, nil
		case Float:
			return -x, nil
		}
		return nil, runtimeErrorf(TypeError, "bad operand type for unary -: '%s'", v.TypeName())
	case bytecode.OpUnaryPos:
		switch v.(type) {
		case Int, Float:
			return v, nil
		}
		return nil, runtimeErrorf(TypeError, "bad operand type for unary +: '%s'", v.TypeName())
	}
	return nil, runtimeErrorf(UnknownOpcode, "%s is not a unary operation", op)
}

// ---------------------------------------------------------------------------
// Subscripts
// ---------------------------------------------------------------------------

// normalizeIndex resolves a possibly negative index against length n.
func normalizeIndex(i Int, n int) (int, bool) {
	idx := int64(i)
	if idx < 0 {
		idx += int64(n)
	}
	if idx < 0 || idx >= int64(n) {
		return 0, false
	}
	return int(idx), true
}

// subscript implements container[index] for List[Int] and String[Int].
func subscript(container, index Value) (Value, error) {
	switch c := container.(type) {
	case *List:
		i, ok := index.(Int)
		if !ok {
			return nil, runtimeErrorf(TypeError, "list indices must be integers, not '%s'", index.TypeName())
		}
		idx, ok := normalizeIndex(i, len(c.Items))
		if !ok {
			return nil, runtimeErrorf(IndexError, "list index out of range")
		}
		return c.Items[idx], nil
	case String:
		i, ok := index.(Int)
		if !ok {
			return nil, runtimeErrorf(TypeError, "string indices must be integers, not '%s'", index.TypeName())
		}
		runes := []rune(string(c))
		idx, ok := normalizeIndex(i, len(runes))
		if !ok {
			return nil, runtimeErrorf(IndexError, "string index out of range")
		}
		return String(runes[idx]), nil
	}
	return nil, runtimeErrorf(TypeError, "'%s' object is not subscriptable", container.TypeName())
}

// storeSubscript implements container[index] = value for List[Int] and
// Dict[String]. The container is mutated in place, so every alias sees
// the change.
func storeSubscript(container, index, value Value) error {
	switch c := container.(type) {
	case *List:
		i, ok := index.(Int)
		if !ok {
			return runtimeErrorf(TypeError, "list indices must be integers, not '%s'", index.TypeName())
		}
		idx, ok := normalizeIndex(i, len(c.Items))
		if !ok {
			return runtimeErrorf(IndexError, "list assignment index out of range")
		}
		c.Items[idx] = value
		return nil
	case *Dict:
		key, ok := index.(String)
		if !ok {
			return runtimeErrorf(TypeError, "dict keys must be strings, not '%s'", index.TypeName())
		}
		c.Set(string(key), value)
		return nil
	}
	return runtimeErrorf(TypeError, "'%s' object does not support item assignment", container.TypeName())
}
