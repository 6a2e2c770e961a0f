package vm

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/chazu/cathon/pkg/bytecode"
	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// ---------------------------------------------------------------------------
// Value: dynamically typed runtime values
// ---------------------------------------------------------------------------

// Value is a runtime value. The concrete types are NoneType, Bool, Int,
// Float, String, *List, *Dict, *Function and *NativeFunction.
//
// List and Dict are pointers: assignment, argument passing and storage in
// another container all alias the same underlying container, and a
// mutation through one alias is visible through every other. String is
// immutable, so sharing it by value is indistinguishable from sharing it
// by reference.
type Value interface {
	TypeName() string
}

// NoneType is the type of None.
type NoneType struct{}

// None is the only NoneType value.
var None Value = NoneType{}

// Bool is True or False.
type Bool bool

// Int is a 64-bit signed integer. Arithmetic wraps on overflow.
type Int int64

// Float is an IEEE 754 double.
type Float float64

// String is an immutable text value. Indexing and len count characters.
type String string

// List is a mutable sequence shared by reference.
type List struct {
	Items []Value
}

// NewList creates a list holding items.
func NewList(items ...Value) *List {
	return &List{Items: items}
}

// Dict is a mutable, string-keyed mapping shared by reference. Keys keep
// their insertion order.
type Dict struct {
	m *linkedhashmap.Map
}

// NewDict creates an empty dict.
func NewDict() *Dict {
	return &Dict{m: linkedhashmap.New()}
}

// Get returns the value stored under key.
func (d *Dict) Get(key string) (Value, bool) {
	v, ok := d.m.Get(key)
	if !ok {
		return nil, false
	}
	return v.(Value), true
}

// Set stores value under key. Replacing a key keeps its position.
func (d *Dict) Set(key string, value Value) {
	d.m.Put(key, value)
}

// Delete removes key.
func (d *Dict) Delete(key string) {
	d.m.Remove(key)
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	return d.m.Size()
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []string {
	keys := make([]string, 0, d.m.Size())
	for _, k := range d.m.Keys() {
		keys = append(keys, k.(string))
	}
	return keys
}

// Each calls fn for every entry in insertion order.
func (d *Dict) Each(fn func(key string, value Value)) {
	it := d.m.Iterator()
	for it.Next() {
		fn(it.Key().(string), it.Value().(Value))
	}
}

// Function is a compiled function bound to a global namespace. Every
// function of one VM shares that VM's globals map.
type Function struct {
	Code    *bytecode.CodeObject
	Globals map[string]Value
}

// Name returns the function's name.
func (f *Function) Name() string {
	return f.Code.Name
}

// NativeFunc implements a builtin. A returned error that is not already a
// *RuntimeError becomes a NativeError.
type NativeFunc func(vm *VM, args []Value) (Value, error)

// NativeFunction is a builtin implemented in Go.
type NativeFunction struct {
	Name string
	Fn   NativeFunc
}

func (NoneType) TypeName() string        { return "NoneType" }
func (Bool) TypeName() string            { return "bool" }
func (Int) TypeName() string             { return "int" }
func (Float) TypeName() string           { return "float" }
func (String) TypeName() string          { return "str" }
func (*List) TypeName() string           { return "list" }
func (*Dict) TypeName() string           { return "dict" }
func (*Function) TypeName() string       { return "function" }
func (*NativeFunction) TypeName() string { return "builtin_function" }

// ---------------------------------------------------------------------------
// Truthiness, equality and conversion
// ---------------------------------------------------------------------------

// Truthy reports whether v counts as true in a condition.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case NoneType, nil:
		return false
	case Bool:
		return bool(x)
	case Int:
		return x != 0
	case Float:
		return x != 0
	case String:
		return x != ""
	case *List:
		return len(x.Items) > 0
	case *Dict:
		return x.Len() > 0
	}
	return true
}

// Equal compares scalars by value. Values of different types, and all
// containers and functions, are unequal.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case NoneType:
		_, ok := b.(NoneType)
		return ok
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Int:
		y, ok := b.(Int)
		return ok && x == y
	case Float:
		y, ok := b.(Float)
		return ok && x == y
	case String:
		y, ok := b.(String)
		return ok && x == y
	}
	return false
}

// FromConstant converts a pool constant to a value. A code constant
// becomes an unbound Function; MAKE_FUNCTION binds it to the globals.
func FromConstant(k bytecode.Constant) Value {
	switch k.Kind {
	case bytecode.ConstBool:
		return Bool(k.Bool)
	case bytecode.ConstInt:
		return Int(k.Int)
	case bytecode.ConstFloat:
		return Float(k.Float)
	case bytecode.ConstString:
		return String(k.Str)
	case bytecode.ConstCode:
		return &Function{Code: k.Code}
	}
	return None
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

// Str renders v the way print shows it: strings appear raw.
func Str(v Value) string {
	if s, ok := v.(String); ok {
		return string(s)
	}
	return Repr(v)
}

// Repr renders v the way it appears inside a container: strings are
// single-quoted.
func Repr(v Value) string {
	var sb strings.Builder
	writeRepr(&sb, v)
	return sb.String()
}

func writeRepr(sb *strings.Builder, v Value) {
	switch x := v.(type) {
	case NoneType, nil:
		sb.WriteString("None")
	case Bool:
		if x {
			sb.WriteString("True")
		} else {
			sb.WriteString("False")
		}
	case Int:
		sb.WriteString(strconv.FormatInt(int64(x), 10))
	case Float:
		sb.WriteString(FormatFloat(float64(x)))
	case String:
		writeQuoted(sb, string(x))
	case *List:
		sb.WriteByte('[')
		for i, item := range x.Items {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeRepr(sb, item)
		}
		sb.WriteByte(']')
	case *Dict:
		sb.WriteByte('{')
		first := true
		x.Each(func(key string, value Value) {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			writeQuoted(sb, key)
			sb.WriteString(": ")
			writeRepr(sb, value)
		})
		sb.WriteByte('}')
	case *Function:
		sb.WriteString("<function ")
		sb.WriteString(x.Name())
		sb.WriteByte('>')
	case *NativeFunction:
		sb.WriteString("<built-in function ")
		sb.WriteString(x.Name)
		sb.WriteByte('>')
	default:
		sb.WriteString("<" + v.TypeName() + ">")
	}
}

func writeQuoted(sb *strings.Builder, s string) {
	quote := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}
	sb.WriteByte(quote)
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		case rune(quote):
			sb.WriteByte('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte(quote)
}

// FormatFloat renders f in its shortest round-tripping form. Integral
// values keep a ".0" suffix; very large and very small magnitudes use an
// exponent.
func FormatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	if abs := math.Abs(f); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// runeLen returns the length of s in characters.
func runeLen(s String) int {
	return utf8.RuneCountInString(string(s))
}
