package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the code object followed
// by the listings of any code objects nested in its constant pool.
func (c *CodeObject) Disassemble() string {
	var sb strings.Builder
	c.disassembleInto(&sb)
	for _, k := range c.Constants {
		if k.Kind == ConstCode && k.Code != nil {
			sb.WriteString("\n")
			sb.WriteString(k.Code.Disassemble())
		}
	}
	return sb.String()
}

func (c *CodeObject) disassembleInto(sb *strings.Builder) {
	// Header
	fmt.Fprintf(sb, "Disassembly of %s:\n", c.Name)
	if c.ArgCount > 0 {
		fmt.Fprintf(sb, "Arguments: %d\n", c.ArgCount)
	}

	sb.WriteString("Constants:\n")
	for i, k := range c.Constants {
		fmt.Fprintf(sb, "  %3d: %s\n", i, k)
	}
	fmt.Fprintf(sb, "Names: [%s]\n", strings.Join(c.Names, ", "))
	if len(c.Varnames) > 0 {
		fmt.Fprintf(sb, "Varnames: [%s]\n", strings.Join(c.Varnames, ", "))
	}
	sb.WriteString("\n")

	for _, line := range c.DisassembleToLines() {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
}

// DisassembleToLines returns one line per instruction.
func (c *CodeObject) DisassembleToLines() []string {
	var lines []string
	offset := 0
	for offset < len(c.Code) {
		text, n := c.disassembleInstruction(offset)
		lines = append(lines, fmt.Sprintf("%04d  %s", offset, text))
		offset += n
	}
	return lines
}

// DisassembleInstruction returns a human-readable representation of a single instruction.
func (c *CodeObject) DisassembleInstruction(offset int) string {
	text, _ := c.disassembleInstruction(offset)
	return text
}

// disassembleInstruction disassembles a single instruction at the given offset.
// Returns the formatted string and the instruction length.
func (c *CodeObject) disassembleInstruction(offset int) (string, int) {
	if offset >= len(c.Code) {
		return "<end of code>", 0
	}
	op, ok := Decode(c.Code[offset])
	if !ok {
		return fmt.Sprintf("UNKNOWN(0x%02X)", c.Code[offset]), 1
	}
	if !op.HasOperand() {
		return op.String(), 1
	}
	arg, err := c.ReadOperand(offset)
	if err != nil {
		return fmt.Sprintf("%s <truncated>", op), len(c.Code) - offset
	}

	switch op {
	case OpLoadConst:
		if int(arg) < len(c.Constants) {
			return fmt.Sprintf("%s %d (%s)", op, arg, c.Constants[arg]), 3
		}
	case OpLoadName, OpStoreName:
		if int(arg) < len(c.Names) {
			return fmt.Sprintf("%s %d (%s)", op, arg, c.Names[arg]), 3
		}
	case OpLoadFast, OpStoreFast:
		if int(arg) < len(c.Varnames) {
			return fmt.Sprintf("%s %d (%s)", op, arg, c.Varnames[arg]), 3
		}
	}
	return fmt.Sprintf("%s %d", op, arg), 3
}

// InstructionCount returns the number of instructions in the code object.
func (c *CodeObject) InstructionCount() int {
	count := 0
	offset := 0
	for offset < len(c.Code) {
		op := Opcode(c.Code[offset])
		offset += op.InstructionLen()
		count++
	}
	return count
}
