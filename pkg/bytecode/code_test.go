package bytecode

import (
	"bytes"
	"errors"
	"testing"
)

// ============ Pool Tests ============

func TestAddConstDeduplicates(t *testing.T) {
	c := NewCodeObject(ModuleName)

	a := c.AddConst(IntConst(7))
	b := c.AddConst(StringConst("seven"))
	again := c.AddConst(IntConst(7))
	f := c.AddConst(FloatConst(7))

	if a != again {
		t.Errorf("duplicate int got index %d, want %d", again, a)
	}
	if b == a || f == a {
		t.Errorf("distinct constants share an index: int=%d str=%d float=%d", a, b, f)
	}
	if len(c.Constants) != 3 {
		t.Errorf("pool has %d entries, want 3", len(c.Constants))
	}
}

func TestCodeConstantsCompareByIdentity(t *testing.T) {
	c := NewCodeObject(ModuleName)
	f1 := NewCodeObject("f")
	f2 := NewCodeObject("f")

	if c.AddConst(CodeConst(f1)) == c.AddConst(CodeConst(f2)) {
		t.Error("distinct code objects were merged")
	}
	if c.AddConst(CodeConst(f1)) != 0 {
		t.Error("same code object was not deduplicated")
	}
}

func TestNameTables(t *testing.T) {
	c := NewCodeObject(ModuleName)
	if c.AddName("x") != 0 || c.AddName("y") != 1 || c.AddName("x") != 0 {
		t.Errorf("names = %v", c.Names)
	}
	if c.AddVarname("a") != 0 || c.AddVarname("a") != 0 {
		t.Errorf("varnames = %v", c.Varnames)
	}
	if c.Varname("a") != 0 || c.Varname("zz") != -1 {
		t.Error("Varname lookup wrong")
	}
}

// ============ Encoding Tests ============

func TestEmitArgBigEndian(t *testing.T) {
	c := NewCodeObject(ModuleName)
	c.EmitArg(OpCall, 0x0102)
	c.Emit(OpPop)

	want := []byte{byte(OpCall), 0x01, 0x02, byte(OpPop)}
	if !bytes.Equal(c.Code, want) {
		t.Errorf("code = %v, want %v", c.Code, want)
	}
	arg, err := c.ReadOperand(0)
	if err != nil || arg != 0x0102 {
		t.Errorf("ReadOperand = %d, %v", arg, err)
	}
	if _, err := c.ReadOperand(3); err == nil {
		t.Error("expected error reading operand past end")
	}
}

func TestPatchJumpAbsolute(t *testing.T) {
	c := NewCodeObject(ModuleName)
	c.Emit(OpNop)
	at := c.EmitJump(OpJumpIfFalse)
	if at != 1 {
		t.Fatalf("EmitJump returned %d, want 1", at)
	}
	if c.Code[2] != 0xFF || c.Code[3] != 0xFF {
		t.Fatal("placeholder not written")
	}
	c.Emit(OpPop)
	c.Emit(OpPop)
	if err := c.PatchJump(at); err != nil {
		t.Fatalf("PatchJump: %v", err)
	}
	target, _ := c.ReadOperand(at)
	if target != 6 {
		t.Errorf("target = %d, want 6", target)
	}
}

func TestPatchJumpRejectsNonJump(t *testing.T) {
	c := NewCodeObject(ModuleName)
	c.EmitArg(OpLoadConst, 0)
	if err := c.PatchJumpTo(0, 0); err == nil {
		t.Error("expected error patching a non-jump")
	}
	if err := c.PatchJumpTo(5, 0); err == nil {
		t.Error("expected error patching outside code")
	}
}

func TestLineTable(t *testing.T) {
	c := NewCodeObject(ModuleName)
	c.AddLine(0, 1)
	c.AddLine(4, 1)
	c.AddLine(8, 3)
	c.AddLine(8, 4)

	if len(c.LineTable) != 2 {
		t.Fatalf("line table = %v", c.LineTable)
	}
	tests := []struct{ offset, line int }{
		{0, 1}, {5, 1}, {8, 4}, {20, 4},
	}
	for _, tt := range tests {
		if got := c.LineFor(tt.offset); got != tt.line {
			t.Errorf("LineFor(%d) = %d, want %d", tt.offset, got, tt.line)
		}
	}
}

// ============ Wire Tests ============

func TestMarshalRoundTripNested(t *testing.T) {
	fn := NewCodeObject("f")
	fn.ArgCount = 2
	fn.AddVarname("a")
	fn.AddVarname("b")
	fn.EmitArg(OpLoadFast, 0)
	fn.EmitArg(OpLoadFast, 1)
	fn.Emit(OpBinaryAdd)
	fn.Emit(OpReturn)
	fn.AddLine(0, 2)

	mod := addOnePlusTwo()
	mod.AddConst(StringConst("hi"))
	mod.AddConst(FloatConst(2.5))
	mod.AddConst(BoolConst(true))
	mod.AddConst(CodeConst(fn))
	mod.AddName("f")
	mod.AddLine(0, 1)

	data, err := Marshal(mod)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.Disassemble() != mod.Disassemble() {
		t.Errorf("round trip changed disassembly:\n%s\nvs\n%s", got.Disassemble(), mod.Disassemble())
	}
	nested := got.Constants[len(got.Constants)-1].Code
	if nested == nil || nested.ArgCount != 2 || nested.LineFor(3) != 2 {
		t.Errorf("nested code not restored: %+v", nested)
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	a, err := Marshal(addOnePlusTwo())
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Marshal(addOnePlusTwo())
	if !bytes.Equal(a, b) {
		t.Error("encoding is not canonical")
	}
}

func TestUnmarshalRejectsForeignData(t *testing.T) {
	data, err := cborEncMode.Marshal(wireEnvelope{Magic: "TTBC", Version: WireVersion})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Unmarshal(data); !errors.Is(err, ErrBadMagic) {
		t.Errorf("err = %v, want ErrBadMagic", err)
	}

	data, _ = cborEncMode.Marshal(wireEnvelope{Magic: WireMagic, Version: WireVersion + 1})
	if _, err := Unmarshal(data); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("err = %v, want ErrVersionMismatch", err)
	}

	if _, err := Unmarshal([]byte{0xFF, 0x00}); err == nil {
		t.Error("expected error for garbage input")
	}
}
