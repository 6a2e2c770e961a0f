// Package bytecode defines the instruction set and the compiled unit shared
// by the cathon compiler and virtual machine.
//
// The format is designed for:
//   - Compact representation (one opcode byte, optionally one u16 operand)
//   - Checked decoding (unknown bytes are reported, never reinterpreted)
//   - Easy serialization (code objects encode to canonical CBOR and can be
//     stored in SQLite by the code cache)
//
// # Instruction Format
//
// Every instruction is a single opcode byte. The opcodes LOAD_CONST,
// LOAD_NAME, STORE_NAME, LOAD_FAST, STORE_FAST, JUMP, JUMP_IF_FALSE,
// JUMP_IF_TRUE, LOOP, CALL and BUILD_LIST are followed by a big-endian
// u16 operand; all others are exactly one byte.
//
// Jump operands are absolute offsets into the code object. The compiler
// emits a jump with a 0xFFFF placeholder and patches it once the target
// is known:
//
//	at := code.EmitJump(OpJumpIfFalse)
//	// ... emit the body ...
//	code.PatchJump(at)
//
// # Code Objects
//
// A CodeObject holds the instruction bytes and three append-only,
// deduplicated tables: constants, global names and local variable names.
// Functions are code objects stored as Code constants of their parent.
// The line table maps the first instruction of each statement to its
// source line for runtime error reports.
//
// # Opcode Ranges
//
//	0        Constants
//	10-15    Variables
//	20-22    Stack manipulation
//	30-36    Binary arithmetic
//	40-42    Unary operators
//	50-55    Comparison
//	60-63    Jumps
//	70-72    Calls
//	80-84    Containers
//	90-93    Attributes and iteration (reserved)
//	100-104  Bitwise
//	255      NOP
package bytecode
