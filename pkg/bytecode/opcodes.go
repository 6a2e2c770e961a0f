package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category with gaps left for future
// instructions. The numeric values are part of the persisted format.
type Opcode byte

const (
	// ========================================================================
	// Constants (0)
	// ========================================================================

	OpLoadConst Opcode = 0 // Push constant from pool: OpLoadConst <index:u16>

	// ========================================================================
	// Variables (10-15)
	// ========================================================================

	OpLoadFast    Opcode = 10 // Push local slot: OpLoadFast <slot:u16>
	OpStoreFast   Opcode = 11 // Pop into local slot: OpStoreFast <slot:u16>
	OpLoadGlobal  Opcode = 12 // Reserved
	OpStoreGlobal Opcode = 13 // Reserved
	OpLoadName    Opcode = 14 // Push global or builtin: OpLoadName <name:u16>
	OpStoreName   Opcode = 15 // Pop into global: OpStoreName <name:u16>

	// ========================================================================
	// Stack manipulation (20-22)
	// ========================================================================

	OpPop  Opcode = 20 // Pop top of stack
	OpDup  Opcode = 21 // Duplicate top of stack
	OpSwap Opcode = 22 // Swap top two stack elements

	// ========================================================================
	// Binary arithmetic (30-36)
	// ========================================================================

	OpBinaryAdd      Opcode = 30
	OpBinarySub      Opcode = 31
	OpBinaryMul      Opcode = 32
	OpBinaryDiv      Opcode = 33 // True division, always float
	OpBinaryFloorDiv Opcode = 34
	OpBinaryMod      Opcode = 35
	OpBinaryPow      Opcode = 36

	// ========================================================================
	// Unary (40-42)
	// ========================================================================

	OpUnaryNeg Opcode = 40
	OpUnaryNot Opcode = 41
	OpUnaryPos Opcode = 42

	// ========================================================================
	// Comparison (50-55)
	// ========================================================================

	OpCompareEq Opcode = 50
	OpCompareNe Opcode = 51
	OpCompareLt Opcode = 52
	OpCompareLe Opcode = 53
	OpCompareGt Opcode = 54
	OpCompareGe Opcode = 55

	// ========================================================================
	// Jumps (60-63), operands are absolute code offsets
	// ========================================================================

	OpJump        Opcode = 60 // Unconditional: OpJump <target:u16>
	OpJumpIfFalse Opcode = 61 // Peek, jump if falsy: OpJumpIfFalse <target:u16>
	OpJumpIfTrue  Opcode = 62 // Peek, jump if truthy: OpJumpIfTrue <target:u16>
	OpLoop        Opcode = 63 // Backward jump: OpLoop <target:u16>

	// ========================================================================
	// Calls (70-72)
	// ========================================================================

	OpCall         Opcode = 70 // Pop argc args and callee: OpCall <argc:u16>
	OpReturn       Opcode = 71 // Pop frame, hand top of stack to caller
	OpMakeFunction Opcode = 72 // Rebind function on top of stack to globals

	// ========================================================================
	// Containers (80-84)
	// ========================================================================

	OpBuildList    Opcode = 80 // Pop count values into a list: OpBuildList <count:u16>
	OpBuildDict    Opcode = 81 // Pop a list of alternating keys and values
	OpBuildTuple   Opcode = 82 // Reserved
	OpBinarySubscr Opcode = 83 // Pop index and container, push item
	OpStoreSubscr  Opcode = 84 // Pop value, index and container, store item

	// ========================================================================
	// Attributes and iteration (90-93), reserved
	// ========================================================================

	OpGetAttr Opcode = 90
	OpSetAttr Opcode = 91
	OpGetIter Opcode = 92
	OpForIter Opcode = 93

	// ========================================================================
	// Bitwise (100-104)
	// ========================================================================

	OpBinaryOr     Opcode = 100
	OpBinaryXor    Opcode = 101
	OpBinaryAnd    Opcode = 102
	OpBinaryLShift Opcode = 103
	OpBinaryRShift Opcode = 104

	// ========================================================================
	// Misc
	// ========================================================================

	OpNop Opcode = 255
)

// OpcodeInfo contains metadata about an opcode.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // Number of values popped (-1 = variable)
	StackPush  int    // Number of values pushed
	OperandLen int    // Number of operand bytes (0 or 2)
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpLoadConst: {"LOAD_CONST", 0, 1, 2},

	OpLoadFast:    {"LOAD_FAST", 0, 1, 2},
	OpStoreFast:   {"STORE_FAST", 1, 0, 2},
	OpLoadGlobal:  {"LOAD_GLOBAL", 0, 1, 0},
	OpStoreGlobal: {"STORE_GLOBAL", 1, 0, 0},
	OpLoadName:    {"LOAD_NAME", 0, 1, 2},
	OpStoreName:   {"STORE_NAME", 1, 0, 2},

	OpPop:  {"POP", 1, 0, 0},
	OpDup:  {"DUP", 1, 2, 0},
	OpSwap: {"SWAP", 2, 2, 0},

	OpBinaryAdd:      {"BINARY_ADD", 2, 1, 0},
	OpBinarySub:      {"BINARY_SUB", 2, 1, 0},
	OpBinaryMul:      {"BINARY_MUL", 2, 1, 0},
	OpBinaryDiv:      {"BINARY_DIV", 2, 1, 0},
	OpBinaryFloorDiv: {"BINARY_FLOOR_DIV", 2, 1, 0},
	OpBinaryMod:      {"BINARY_MOD", 2, 1, 0},
	OpBinaryPow:      {"BINARY_POW", 2, 1, 0},

	OpUnaryNeg: {"UNARY_NEG", 1, 1, 0},
	OpUnaryNot: {"UNARY_NOT", 1, 1, 0},
	OpUnaryPos: {"UNARY_POS", 1, 1, 0},

	OpCompareEq: {"COMPARE_EQ", 2, 1, 0},
	OpCompareNe: {"COMPARE_NE", 2, 1, 0},
	OpCompareLt: {"COMPARE_LT", 2, 1, 0},
	OpCompareLe: {"COMPARE_LE", 2, 1, 0},
	OpCompareGt: {"COMPARE_GT", 2, 1, 0},
	OpCompareGe: {"COMPARE_GE", 2, 1, 0},

	OpJump:        {"JUMP", 0, 0, 2},
	OpJumpIfFalse: {"JUMP_IF_FALSE", 0, 0, 2},
	OpJumpIfTrue:  {"JUMP_IF_TRUE", 0, 0, 2},
	OpLoop:        {"LOOP", 0, 0, 2},

	OpCall:         {"CALL", -1, 1, 2}, // Pops callee + argc args
	OpReturn:       {"RETURN", 1, 0, 0},
	OpMakeFunction: {"MAKE_FUNCTION", 1, 1, 0},

	OpBuildList:    {"BUILD_LIST", -1, 1, 2},
	OpBuildDict:    {"BUILD_DICT", 1, 1, 0},
	OpBuildTuple:   {"BUILD_TUPLE", 0, 0, 0},
	OpBinarySubscr: {"BINARY_SUBSCR", 2, 1, 0},
	OpStoreSubscr:  {"STORE_SUBSCR", 3, 0, 0},

	OpGetAttr: {"GET_ATTR", 0, 0, 0},
	OpSetAttr: {"SET_ATTR", 0, 0, 0},
	OpGetIter: {"GET_ITER", 0, 0, 0},
	OpForIter: {"FOR_ITER", 0, 0, 0},

	OpBinaryOr:     {"BINARY_OR", 2, 1, 0},
	OpBinaryXor:    {"BINARY_XOR", 2, 1, 0},
	OpBinaryAnd:    {"BINARY_AND", 2, 1, 0},
	OpBinaryLShift: {"BINARY_LSHIFT", 2, 1, 0},
	OpBinaryRShift: {"BINARY_RSHIFT", 2, 1, 0},

	OpNop: {"NOP", 0, 0, 0},
}

// Decode maps a raw code byte to its opcode. ok is false for bytes that
// do not name a defined instruction.
func Decode(b byte) (op Opcode, ok bool) {
	_, ok = opcodeInfoTable[Opcode(b)]
	return Opcode(b), ok
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// HasOperand reports whether the opcode is followed by a u16 operand.
func (op Opcode) HasOperand() bool {
	return op.OperandLen() == 2
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsJump returns true if this opcode is a jump instruction.
func (op Opcode) IsJump() bool {
	return op >= OpJump && op <= OpLoop
}

// AllOpcodes returns a slice of all defined opcodes.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
