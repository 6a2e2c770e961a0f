package bytecode

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

const (
	// WireMagic identifies an encoded code object.
	WireMagic = "CTBC"
	// WireVersion is bumped whenever the opcode numbering or the
	// envelope layout changes.
	WireVersion = 1
)

// ErrBadMagic is returned when decoding data that is not an encoded code object.
var ErrBadMagic = errors.New("bytecode: bad magic")

// ErrVersionMismatch is returned when decoding data from another format version.
var ErrVersionMismatch = errors.New("bytecode: version mismatch")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type wireEnvelope struct {
	Magic   string   `cbor:"1,keyasint"`
	Version int      `cbor:"2,keyasint"`
	Code    wireCode `cbor:"3,keyasint"`
}

type wireCode struct {
	Name      string      `cbor:"1,keyasint"`
	Code      []byte      `cbor:"2,keyasint"`
	Constants []wireConst `cbor:"3,keyasint,omitempty"`
	Names     []string    `cbor:"4,keyasint,omitempty"`
	Varnames  []string    `cbor:"5,keyasint,omitempty"`
	ArgCount  int         `cbor:"6,keyasint,omitempty"`
	Lines     [][2]int    `cbor:"7,keyasint,omitempty"`
}

type wireConst struct {
	Kind  uint8     `cbor:"1,keyasint"`
	Bool  bool      `cbor:"2,keyasint,omitempty"`
	Int   int64     `cbor:"3,keyasint,omitempty"`
	Float float64   `cbor:"4,keyasint,omitempty"`
	Str   string    `cbor:"5,keyasint,omitempty"`
	Code  *wireCode `cbor:"6,keyasint,omitempty"`
}

// Marshal serializes a code object, including nested code constants, to
// canonical CBOR.
func Marshal(c *CodeObject) ([]byte, error) {
	if c == nil {
		return nil, errors.New("bytecode: marshal nil code object")
	}
	env := wireEnvelope{Magic: WireMagic, Version: WireVersion, Code: toWire(c)}
	data, err := cborEncMode.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("bytecode: marshal %s: %w", c.Name, err)
	}
	return data, nil
}

// Unmarshal deserializes a code object produced by Marshal.
func Unmarshal(data []byte) (*CodeObject, error) {
	var env wireEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal code object: %w", err)
	}
	if env.Magic != WireMagic {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, env.Magic)
	}
	if env.Version != WireVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, env.Version, WireVersion)
	}
	return fromWire(&env.Code)
}

func toWire(c *CodeObject) wireCode {
	w := wireCode{
		Name:     c.Name,
		Code:     c.Code,
		Names:    c.Names,
		Varnames: c.Varnames,
		ArgCount: c.ArgCount,
	}
	for _, k := range c.Constants {
		wk := wireConst{Kind: uint8(k.Kind), Bool: k.Bool, Int: k.Int, Float: k.Float, Str: k.Str}
		if k.Kind == ConstCode && k.Code != nil {
			nested := toWire(k.Code)
			wk.Code = &nested
		}
		w.Constants = append(w.Constants, wk)
	}
	for _, e := range c.LineTable {
		w.Lines = append(w.Lines, [2]int{e.Offset, e.Line})
	}
	return w
}

func fromWire(w *wireCode) (*CodeObject, error) {
	c := &CodeObject{
		Name:     w.Name,
		Code:     w.Code,
		Names:    w.Names,
		Varnames: w.Varnames,
		ArgCount: w.ArgCount,
	}
	if c.Code == nil {
		c.Code = []byte{}
	}
	for i, wk := range w.Constants {
		k := Constant{Kind: ConstKind(wk.Kind), Bool: wk.Bool, Int: wk.Int, Float: wk.Float, Str: wk.Str}
		switch k.Kind {
		case ConstNone, ConstBool, ConstInt, ConstFloat, ConstString:
		case ConstCode:
			if wk.Code == nil {
				return nil, fmt.Errorf("bytecode: constant %d of %s: code constant without body", i, w.Name)
			}
			nested, err := fromWire(wk.Code)
			if err != nil {
				return nil, err
			}
			k.Code = nested
		default:
			return nil, fmt.Errorf("bytecode: constant %d of %s: unknown kind %d", i, w.Name, wk.Kind)
		}
		c.Constants = append(c.Constants, k)
	}
	for _, l := range w.Lines {
		c.LineTable = append(c.LineTable, LineEntry{Offset: l[0], Line: l[1]})
	}
	return c, nil
}
