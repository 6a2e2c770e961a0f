package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ModuleName is the name given to top-level code objects.
const ModuleName = "<module>"

// MaxOperand is the largest value a u16 operand can carry.
const MaxOperand = math.MaxUint16

// ConstKind discriminates the Constant variants.
type ConstKind uint8

const (
	ConstNone ConstKind = iota
	ConstBool
	ConstInt
	ConstFloat
	ConstString
	ConstCode
)

var constKindNames = [...]string{"None", "Bool", "Int", "Float", "String", "Code"}

func (k ConstKind) String() string {
	if int(k) < len(constKindNames) {
		return constKindNames[k]
	}
	return fmt.Sprintf("ConstKind(%d)", uint8(k))
}

// Constant is an entry in a code object's constant pool. Only the field
// matching Kind is meaningful.
type Constant struct {
	Kind  ConstKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Code  *CodeObject
}

func NoneConst() Constant { return Constant{Kind: ConstNone} }
func BoolConst(b bool) Constant { return Constant{Kind: ConstBool, Bool: b} }
func IntConst(n int64) Constant { return Constant{Kind: ConstInt, Int: n} }
func FloatConst(f float64) Constant { return Constant{Kind: ConstFloat, Float: f} }
func StringConst(s string) Constant { return Constant{Kind: ConstString, Str: s} }
func CodeConst(c *CodeObject) Constant { return Constant{Kind: ConstCode, Code: c} }

// Equal compares constants by kind and value. Int(1) and Float(1.0) are
// distinct pool entries. Code constants are equal only when they are the
// same object.
func (c Constant) Equal(o Constant) bool {
	if c.Kind != o.Kind {
		return false
	}
	switch c.Kind {
	case ConstNone:
		return true
	case ConstBool:
		return c.Bool == o.Bool
	case ConstInt:
		return c.Int == o.Int
	case ConstFloat:
		return math.Float64bits(c.Float) == math.Float64bits(o.Float)
	case ConstString:
		return c.Str == o.Str
	case ConstCode:
		return c.Code == o.Code
	}
	return false
}

// String renders the constant the way the disassembler shows it.
func (c Constant) String() string {
	switch c.Kind {
	case ConstNone:
		return "None"
	case ConstBool:
		if c.Bool {
			return "True"
		}
		return "False"
	case ConstInt:
		return fmt.Sprintf("%d", c.Int)
	case ConstFloat:
		return fmt.Sprintf("%g", c.Float)
	case ConstString:
		return fmt.Sprintf("%q", c.Str)
	case ConstCode:
		if c.Code == nil {
			return "<code ?>"
		}
		return fmt.Sprintf("<code %s>", c.Code.Name)
	}
	return "?"
}

// LineEntry maps the first bytecode offset of a statement to its source line.
type LineEntry struct {
	Offset int
	Line   int
}

// CodeObject is a compiled unit: the module body or one function.
// The constant, name and varname tables are append-only and deduplicated,
// so an index is stable for the lifetime of the object.
type CodeObject struct {
	Name      string
	Code      []byte
	Constants []Constant
	Names     []string
	Varnames  []string
	ArgCount  int
	LineTable []LineEntry
}

// NewCodeObject creates an empty code object.
func NewCodeObject(name string) *CodeObject {
	return &CodeObject{
		Name: name,
		Code: make([]byte, 0, 64),
	}
}

// AddConst adds a constant to the pool and returns its index.
// If an equal constant already exists, returns the existing index.
func (c *CodeObject) AddConst(k Constant) int {
	for i, existing := range c.Constants {
		if existing.Equal(k) {
			return i
		}
	}
	c.Constants = append(c.Constants, k)
	return len(c.Constants) - 1
}

// AddName adds a global name and returns its index.
func (c *CodeObject) AddName(name string) int {
	return addString(&c.Names, name)
}

// AddVarname adds a local variable name and returns its slot.
func (c *CodeObject) AddVarname(name string) int {
	return addString(&c.Varnames, name)
}

// Varname returns the slot of a local, or -1.
func (c *CodeObject) Varname(name string) int {
	for i, s := range c.Varnames {
		if s == name {
			return i
		}
	}
	return -1
}

func addString(table *[]string, s string) int {
	for i, existing := range *table {
		if existing == s {
			return i
		}
	}
	*table = append(*table, s)
	return len(*table) - 1
}

// Emit appends a single-byte opcode to the code section.
func (c *CodeObject) Emit(op Opcode) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	return offset
}

// EmitArg appends an opcode followed by its big-endian u16 operand.
func (c *CodeObject) EmitArg(op Opcode, arg uint16) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op), byte(arg>>8), byte(arg))
	return offset
}

// EmitJump emits a jump instruction with a placeholder target.
// Returns the offset of the jump instruction for later patching.
func (c *CodeObject) EmitJump(op Opcode) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op), 0xFF, 0xFF)
	return offset
}

// PatchJump points the jump at offset to the current end of code.
func (c *CodeObject) PatchJump(offset int) error {
	return c.PatchJumpTo(offset, len(c.Code))
}

// PatchJumpTo overwrites the placeholder of the jump at offset with an
// absolute target.
func (c *CodeObject) PatchJumpTo(offset, target int) error {
	if offset < 0 || offset+2 >= len(c.Code) {
		return fmt.Errorf("patch offset %d outside code of length %d", offset, len(c.Code))
	}
	if !Opcode(c.Code[offset]).IsJump() {
		return fmt.Errorf("patch offset %d is %s, not a jump", offset, Opcode(c.Code[offset]))
	}
	if target < 0 || target > MaxOperand {
		return fmt.Errorf("jump target %d out of range", target)
	}
	binary.BigEndian.PutUint16(c.Code[offset+1:], uint16(target))
	return nil
}

// CurrentOffset returns the current offset in the code section.
func (c *CodeObject) CurrentOffset() int {
	return len(c.Code)
}

// AddLine records that the instruction at offset starts source line line.
// Consecutive entries for the same line are collapsed.
func (c *CodeObject) AddLine(offset, line int) {
	if n := len(c.LineTable); n > 0 {
		last := &c.LineTable[n-1]
		if last.Line == line {
			return
		}
		if last.Offset == offset {
			last.Line = line
			return
		}
	}
	c.LineTable = append(c.LineTable, LineEntry{Offset: offset, Line: line})
}

// LineFor returns the source line of the instruction at offset, or 0 if
// no mapping exists.
func (c *CodeObject) LineFor(offset int) int {
	for i := len(c.LineTable) - 1; i >= 0; i-- {
		if c.LineTable[i].Offset <= offset {
			return c.LineTable[i].Line
		}
	}
	return 0
}

// ReadOperand reads the u16 operand of the instruction at offset.
func (c *CodeObject) ReadOperand(offset int) (uint16, error) {
	if offset+2 >= len(c.Code) {
		return 0, fmt.Errorf("unexpected end of bytecode reading operand at %d", offset)
	}
	return binary.BigEndian.Uint16(c.Code[offset+1:]), nil
}
