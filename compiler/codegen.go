package compiler

import (
	"strconv"

	"github.com/chazu/cathon/pkg/bytecode"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("cathon.compiler")

// ---------------------------------------------------------------------------
// Codegen: Compile AST to bytecode
// ---------------------------------------------------------------------------

// Mode selects how the last top-level statement is compiled.
type Mode int

const (
	// ModeModule discards every expression statement's value; the module
	// returns None.
	ModeModule Mode = iota
	// ModeInteractive returns the value of a trailing expression
	// statement, as a REPL or -c invocation expects.
	ModeInteractive
)

func (m Mode) String() string {
	if m == ModeInteractive {
		return "interactive"
	}
	return "module"
}

var binaryOps = map[TokenType]bytecode.Opcode{
	TokenPlus:         bytecode.OpBinaryAdd,
	TokenMinus:        bytecode.OpBinarySub,
	TokenStar:         bytecode.OpBinaryMul,
	TokenSlash:        bytecode.OpBinaryDiv,
	TokenDoubleSlash:  bytecode.OpBinaryFloorDiv,
	TokenPercent:      bytecode.OpBinaryMod,
	TokenDoubleStar:   bytecode.OpBinaryPow,
	TokenEqEqual:      bytecode.OpCompareEq,
	TokenNotEqual:     bytecode.OpCompareNe,
	TokenLess:         bytecode.OpCompareLt,
	TokenLessEqual:    bytecode.OpCompareLe,
	TokenGreater:      bytecode.OpCompareGt,
	TokenGreaterEqual: bytecode.OpCompareGe,
	TokenVBar:         bytecode.OpBinaryOr,
	TokenCircumflex:   bytecode.OpBinaryXor,
	TokenAmper:        bytecode.OpBinaryAnd,
	TokenLeftShift:    bytecode.OpBinaryLShift,
	TokenRightShift:   bytecode.OpBinaryRShift,
}

var unaryOps = map[TokenType]bytecode.Opcode{
	TokenMinus:       bytecode.OpUnaryNeg,
	TokenPlus:        bytecode.OpUnaryPos,
	TokenExclamation: bytecode.OpUnaryNot,
}

// Compiler compiles an arena to a code object.
type Compiler struct {
	arena *Arena
	lines *LineIndex
	mode  Mode

	// Current compilation context
	unit *unit
}

// unit is the code object being emitted: the module or one function.
type unit struct {
	code     *bytecode.CodeObject
	function bool
	loops    []*loopContext
}

type loopContext struct {
	start  int
	breaks []int // jumps to patch to the loop exit
}

// NewCompiler creates a compiler over the nodes of arena.
func NewCompiler(arena *Arena) *Compiler {
	return &Compiler{arena: arena}
}

// SetLineIndex enables the line table; without one every line is 0.
func (c *Compiler) SetLineIndex(li *LineIndex) {
	c.lines = li
}

// SetMode selects module or interactive compilation.
func (c *Compiler) SetMode(m Mode) {
	c.mode = m
}

// Compile parses and compiles src.
func Compile(src string, mode Mode) (*bytecode.CodeObject, error) {
	arena, root, err := Parse(src)
	if err != nil {
		return nil, err
	}
	c := NewCompiler(arena)
	c.SetLineIndex(NewLineIndex(src))
	c.SetMode(mode)
	code, err := c.CompileModule(root)
	if err != nil {
		return nil, err
	}
	log.Debugf("compiled %d nodes in %s mode: %d bytes, %d constants",
		arena.Len(), mode, len(code.Code), len(code.Constants))
	return code, nil
}

// CompileModule compiles the Module node root.
func (c *Compiler) CompileModule(root NodeID) (*bytecode.CodeObject, error) {
	mod, ok := c.arena.Get(root).(*Module)
	if !ok {
		return nil, errorAt(CompileError, c.arena.Span(root), "expected a module node")
	}
	c.unit = &unit{code: bytecode.NewCodeObject(bytecode.ModuleName)}

	for i, stmt := range mod.Body {
		if c.mode == ModeInteractive && i == len(mod.Body)-1 {
			if es, ok := c.arena.Get(stmt).(*ExprStmt); ok {
				c.markLine(stmt)
				if err := c.compileExpr(es.Value); err != nil {
					return nil, err
				}
				c.emit(bytecode.OpReturn)
				continue
			}
		}
		if err := c.compileStmt(stmt); err != nil {
			return nil, err
		}
	}

	if err := c.emitReturnNone(mod.SpanVal); err != nil {
		return nil, err
	}
	return c.unit.code, nil
}

// ---------------------------------------------------------------------------
// Emission helpers
// ---------------------------------------------------------------------------

func (c *Compiler) emit(op bytecode.Opcode) {
	c.unit.code.Emit(op)
}

func (c *Compiler) emitArg(op bytecode.Opcode, arg int, span Span) error {
	if arg < 0 || arg > bytecode.MaxOperand {
		return errorAt(CompileError, span, "too many operands for %s", op)
	}
	c.unit.code.EmitArg(op, uint16(arg))
	return nil
}

func (c *Compiler) emitConst(k bytecode.Constant, span Span) error {
	return c.emitArg(bytecode.OpLoadConst, c.unit.code.AddConst(k), span)
}

func (c *Compiler) emitReturnNone(span Span) error {
	if err := c.emitConst(bytecode.NoneConst(), span); err != nil {
		return err
	}
	c.emit(bytecode.OpReturn)
	return nil
}

func (c *Compiler) patch(at int, span Span) error {
	if err := c.unit.code.PatchJump(at); err != nil {
		return errorAt(CompileError, span, "%v", err)
	}
	return nil
}

func (c *Compiler) markLine(id NodeID) {
	if c.lines == nil {
		return
	}
	c.unit.code.AddLine(c.unit.code.CurrentOffset(), c.lines.Line(c.arena.Span(id).Start))
}

func (c *Compiler) name(sym Symbol) string {
	return c.arena.Names.Lookup(sym)
}

func (c *Compiler) loadName(name string, span Span) error {
	if c.unit.function {
		if slot := c.unit.code.Varname(name); slot >= 0 {
			return c.emitArg(bytecode.OpLoadFast, slot, span)
		}
	}
	return c.emitArg(bytecode.OpLoadName, c.unit.code.AddName(name), span)
}

func (c *Compiler) storeName(name string, span Span) error {
	if c.unit.function {
		return c.emitArg(bytecode.OpStoreFast, c.unit.code.AddVarname(name), span)
	}
	return c.emitArg(bytecode.OpStoreName, c.unit.code.AddName(name), span)
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (c *Compiler) compileBlock(stmts []NodeID) error {
	for _, stmt := range stmts {
		if err := c.compileStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileStmt(id NodeID) error {
	c.markLine(id)

	switch n := c.arena.Get(id).(type) {
	case *ExprStmt:
		if err := c.compileExpr(n.Value); err != nil {
			return err
		}
		c.emit(bytecode.OpPop)

	case *Assign:
		if err := c.compileExpr(n.Value); err != nil {
			return err
		}
		return c.storeName(c.name(n.Target), n.SpanVal)

	case *SubscriptAssign:
		sub, ok := c.arena.Get(n.Target).(*Subscript)
		if !ok {
			return errorAt(CompileError, n.SpanVal, "invalid subscript target")
		}
		for _, part := range []NodeID{sub.Value, sub.Index, n.Value} {
			if err := c.compileExpr(part); err != nil {
				return err
			}
		}
		c.emit(bytecode.OpStoreSubscr)

	case *If:
		return c.compileIf(n)

	case *While:
		return c.compileWhile(n)

	case *Break:
		loop := c.innermostLoop()
		if loop == nil {
			return errorAt(CompileError, n.SpanVal, "'break' outside loop")
		}
		loop.breaks = append(loop.breaks, c.unit.code.EmitJump(bytecode.OpJump))

	case *Continue:
		loop := c.innermostLoop()
		if loop == nil {
			return errorAt(CompileError, n.SpanVal, "'continue' not properly in loop")
		}
		return c.emitArg(bytecode.OpLoop, loop.start, n.SpanVal)

	case *Pass:

	case *Return:
		if !c.unit.function {
			return errorAt(CompileError, n.SpanVal, "'return' outside function")
		}
		if n.Value == NoNode {
			return c.emitReturnNone(n.SpanVal)
		}
		if err := c.compileExpr(n.Value); err != nil {
			return err
		}
		c.emit(bytecode.OpReturn)

	case *FunctionDef:
		return c.compileFunction(n)

	case nil:
		return errorAt(CompileError, Span{}, "missing statement node %d", id)

	default:
		return errorAt(CompileError, n.Span(), "unsupported statement %T", n)
	}
	return nil
}

func (c *Compiler) innermostLoop() *loopContext {
	if n := len(c.unit.loops); n > 0 {
		return c.unit.loops[n-1]
	}
	return nil
}

// compileIf emits:
//
//	test; JUMP_IF_FALSE else; POP; body; JUMP end
//	else: POP; orelse
//	end:
func (c *Compiler) compileIf(n *If) error {
	if err := c.compileExpr(n.Test); err != nil {
		return err
	}
	elseJump := c.unit.code.EmitJump(bytecode.OpJumpIfFalse)
	c.emit(bytecode.OpPop)
	if err := c.compileBlock(n.Body); err != nil {
		return err
	}
	endJump := c.unit.code.EmitJump(bytecode.OpJump)
	if err := c.patch(elseJump, n.SpanVal); err != nil {
		return err
	}
	c.emit(bytecode.OpPop)
	if err := c.compileBlock(n.Orelse); err != nil {
		return err
	}
	return c.patch(endJump, n.SpanVal)
}

// compileWhile emits:
//
//	start: test; JUMP_IF_FALSE exit; POP; body; LOOP start
//	exit: POP
//
// break jumps past the exit POP.
func (c *Compiler) compileWhile(n *While) error {
	loop := &loopContext{start: c.unit.code.CurrentOffset()}
	if err := c.compileExpr(n.Test); err != nil {
		return err
	}
	exitJump := c.unit.code.EmitJump(bytecode.OpJumpIfFalse)
	c.emit(bytecode.OpPop)

	c.unit.loops = append(c.unit.loops, loop)
	err := c.compileBlock(n.Body)
	c.unit.loops = c.unit.loops[:len(c.unit.loops)-1]
	if err != nil {
		return err
	}

	if err := c.emitArg(bytecode.OpLoop, loop.start, n.SpanVal); err != nil {
		return err
	}
	if err := c.patch(exitJump, n.SpanVal); err != nil {
		return err
	}
	c.emit(bytecode.OpPop)
	for _, at := range loop.breaks {
		if err := c.patch(at, n.SpanVal); err != nil {
			return err
		}
	}
	return nil
}

// compileFunction compiles the body into a nested code object and binds
// it: LOAD_CONST <code>; MAKE_FUNCTION; store name.
func (c *Compiler) compileFunction(n *FunctionDef) error {
	name := c.name(n.Name)
	fn := bytecode.NewCodeObject(name)
	fn.ArgCount = len(n.Params)
	for _, p := range n.Params {
		fn.AddVarname(c.name(p))
	}
	c.collectLocals(n.Body, fn)
	if len(fn.Varnames) > bytecode.MaxOperand {
		return errorAt(CompileError, n.SpanVal, "too many local variables in %s", name)
	}

	parent := c.unit
	c.unit = &unit{code: fn, function: true}
	err := c.compileBlock(n.Body)
	if err == nil {
		err = c.emitReturnNone(n.SpanVal)
	}
	c.unit = parent
	if err != nil {
		return err
	}

	if err := c.emitConst(bytecode.CodeConst(fn), n.SpanVal); err != nil {
		return err
	}
	c.emit(bytecode.OpMakeFunction)
	return c.storeName(name, n.SpanVal)
}

// collectLocals adds every name bound in stmts to fn's varnames. Nested
// function bodies have their own scope.
func (c *Compiler) collectLocals(stmts []NodeID, fn *bytecode.CodeObject) {
	for _, id := range stmts {
		switch n := c.arena.Get(id).(type) {
		case *Assign:
			fn.AddVarname(c.name(n.Target))
		case *FunctionDef:
			fn.AddVarname(c.name(n.Name))
		case *If:
			c.collectLocals(n.Body, fn)
			c.collectLocals(n.Orelse, fn)
		case *While:
			c.collectLocals(n.Body, fn)
		}
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *Compiler) compileExpr(id NodeID) error {
	switch n := c.arena.Get(id).(type) {
	case *Constant:
		k, err := constantFor(n.Value)
		if err != nil {
			return err
		}
		return c.emitConst(k, n.SpanVal)

	case *Name:
		return c.loadName(c.name(n.ID), n.SpanVal)

	case *BinOp:
		return c.compileBinOp(n)

	case *UnaryOp:
		op, ok := unaryOps[n.Op.Type]
		if !ok {
			return errorAt(CompileError, n.Op.Span, "unsupported unary operator '%s'", n.Op.Type)
		}
		if err := c.compileExpr(n.Operand); err != nil {
			return err
		}
		c.emit(op)

	case *Call:
		if err := c.compileExpr(n.Func); err != nil {
			return err
		}
		for _, arg := range n.Args {
			if err := c.compileExpr(arg); err != nil {
				return err
			}
		}
		return c.emitArg(bytecode.OpCall, len(n.Args), n.SpanVal)

	case *Subscript:
		if err := c.compileExpr(n.Value); err != nil {
			return err
		}
		if err := c.compileExpr(n.Index); err != nil {
			return err
		}
		c.emit(bytecode.OpBinarySubscr)

	case *List:
		for _, elem := range n.Elements {
			if err := c.compileExpr(elem); err != nil {
				return err
			}
		}
		return c.emitArg(bytecode.OpBuildList, len(n.Elements), n.SpanVal)

	case *Dict:
		for i := range n.Keys {
			if err := c.compileExpr(n.Keys[i]); err != nil {
				return err
			}
			if err := c.compileExpr(n.Values[i]); err != nil {
				return err
			}
		}
		if err := c.emitArg(bytecode.OpBuildList, 2*len(n.Keys), n.SpanVal); err != nil {
			return err
		}
		c.emit(bytecode.OpBuildDict)

	case nil:
		return errorAt(CompileError, Span{}, "missing expression node %d", id)

	default:
		return errorAt(CompileError, n.Span(), "unsupported expression %T", n)
	}
	return nil
}

func (c *Compiler) compileBinOp(n *BinOp) error {
	switch n.Op.Type {
	case TokenDoubleVBar, TokenDoubleAmper:
		// Short-circuit: the deciding operand is the result.
		jumpOp := bytecode.OpJumpIfTrue
		if n.Op.Type == TokenDoubleAmper {
			jumpOp = bytecode.OpJumpIfFalse
		}
		if err := c.compileExpr(n.Left); err != nil {
			return err
		}
		end := c.unit.code.EmitJump(jumpOp)
		c.emit(bytecode.OpPop)
		if err := c.compileExpr(n.Right); err != nil {
			return err
		}
		return c.patch(end, n.SpanVal)
	}

	op, ok := binaryOps[n.Op.Type]
	if !ok {
		return errorAt(CompileError, n.Op.Span, "unsupported operator '%s'", n.Op.Type)
	}
	if err := c.compileExpr(n.Left); err != nil {
		return err
	}
	if err := c.compileExpr(n.Right); err != nil {
		return err
	}
	c.emit(op)
	return nil
}

// constantFor converts a literal token to a pool constant.
func constantFor(tok Token) (bytecode.Constant, error) {
	switch tok.Type {
	case TokenInt:
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return bytecode.Constant{}, errorAt(CompileError, tok.Span, "invalid integer literal %q", tok.Literal)
		}
		return bytecode.IntConst(n), nil
	case TokenFloat:
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return bytecode.Constant{}, errorAt(CompileError, tok.Span, "invalid float literal %q", tok.Literal)
		}
		return bytecode.FloatConst(f), nil
	case TokenString:
		return bytecode.StringConst(tok.Literal), nil
	case TokenName:
		switch tok.Literal {
		case "True":
			return bytecode.BoolConst(true), nil
		case "False":
			return bytecode.BoolConst(false), nil
		case "None":
			return bytecode.NoneConst(), nil
		}
	}
	return bytecode.Constant{}, errorAt(CompileError, tok.Span, "unsupported constant %s", tok.Type)
}
