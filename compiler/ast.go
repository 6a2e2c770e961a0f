package compiler

// ---------------------------------------------------------------------------
// AST: arena-allocated syntax tree
// ---------------------------------------------------------------------------

// NodeID indexes a node in its Arena. IDs are never reused or invalidated.
type NodeID int

// NoNode marks an absent optional child.
const NoNode NodeID = -1

// Symbol is an interned identifier.
type Symbol int

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	setSpan(Span)
	node() // marker method
}

// Arena owns every node produced by one parse. Children refer to each
// other by NodeID, never by pointer.
type Arena struct {
	nodes []Node
	Names *Interner
}

// NewArena creates an empty arena with its own interner.
func NewArena() *Arena {
	return &Arena{Names: NewInterner()}
}

// Alloc appends n and returns its id.
func (a *Arena) Alloc(n Node) NodeID {
	a.nodes = append(a.nodes, n)
	return NodeID(len(a.nodes) - 1)
}

// Get returns the node with the given id, or nil if id is out of range.
func (a *Arena) Get(id NodeID) Node {
	if id < 0 || int(id) >= len(a.nodes) {
		return nil
	}
	return a.nodes[id]
}

// Span returns the span of node id.
func (a *Arena) Span(id NodeID) Span {
	if n := a.Get(id); n != nil {
		return n.Span()
	}
	return Span{}
}

// Len returns the number of allocated nodes.
func (a *Arena) Len() int {
	return len(a.nodes)
}

func (a *Arena) widen(id NodeID, s Span) {
	if n := a.Get(id); n != nil {
		n.setSpan(s)
	}
}

// Interner maps identifier text to small integer symbols.
type Interner struct {
	ids   map[string]Symbol
	names []string
}

// NewInterner creates an empty interner.
func NewInterner() *Interner {
	return &Interner{ids: make(map[string]Symbol)}
}

// Intern returns the symbol for name, allocating one on first use.
func (in *Interner) Intern(name string) Symbol {
	if sym, ok := in.ids[name]; ok {
		return sym
	}
	sym := Symbol(len(in.names))
	in.ids[name] = sym
	in.names = append(in.names, name)
	return sym
}

// Lookup returns the text of sym.
func (in *Interner) Lookup(sym Symbol) string {
	if sym < 0 || int(sym) >= len(in.names) {
		return ""
	}
	return in.names[sym]
}

// Names returns every interned name in allocation order.
func (in *Interner) Names() []string {
	out := make([]string, len(in.names))
	copy(out, in.names)
	return out
}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Module is the root of a parsed source unit.
type Module struct {
	SpanVal Span
	Body    []NodeID
}

// ExprStmt is an expression evaluated for its side effects. Its span runs
// to the end of the token following the expression.
type ExprStmt struct {
	SpanVal Span
	Value   NodeID
}

// Assign binds a name.
type Assign struct {
	SpanVal Span
	Target  Symbol
	Value   NodeID
}

// SubscriptAssign stores into a container: target[index] = value.
type SubscriptAssign struct {
	SpanVal Span
	Target  NodeID // a *Subscript
	Value   NodeID
}

// If is an if/elif/else chain; elif is an If nested in Orelse.
type If struct {
	SpanVal Span
	Test    NodeID
	Body    []NodeID
	Orelse  []NodeID
}

// While loops while Test is truthy.
type While struct {
	SpanVal Span
	Test    NodeID
	Body    []NodeID
}

// FunctionDef defines a function bound to a global name.
type FunctionDef struct {
	SpanVal Span
	Name    Symbol
	Params  []Symbol
	Body    []NodeID
}

// Return leaves the current function. Value is NoNode for a bare return.
type Return struct {
	SpanVal Span
	Value   NodeID
}

// Pass does nothing.
type Pass struct {
	SpanVal Span
}

// Break leaves the innermost loop.
type Break struct {
	SpanVal Span
}

// Continue restarts the innermost loop.
type Continue struct {
	SpanVal Span
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Constant is a literal: INT, FLOAT or STRING token, or one of the names
// True, False and None.
type Constant struct {
	SpanVal Span
	Value   Token
}

// Name is a variable reference.
type Name struct {
	SpanVal Span
	ID      Symbol
}

// BinOp is a binary operation; || and && are BinOps that short-circuit.
type BinOp struct {
	SpanVal Span
	Left    NodeID
	Op      Token
	Right   NodeID
}

// UnaryOp is a prefix operation: -, + or !.
type UnaryOp struct {
	SpanVal Span
	Op      Token
	Operand NodeID
}

// Call applies Func to Args.
type Call struct {
	SpanVal Span
	Func    NodeID
	Args    []NodeID
}

// Subscript is value[index].
type Subscript struct {
	SpanVal Span
	Value   NodeID
	Index   NodeID
}

// List is a list display.
type List struct {
	SpanVal  Span
	Elements []NodeID
}

// Dict is a dict display.
type Dict struct {
	SpanVal Span
	Keys    []NodeID
	Values  []NodeID
}

func (n *Module) Span() Span          { return n.SpanVal }
func (n *ExprStmt) Span() Span        { return n.SpanVal }
func (n *Assign) Span() Span          { return n.SpanVal }
func (n *SubscriptAssign) Span() Span { return n.SpanVal }
func (n *If) Span() Span              { return n.SpanVal }
func (n *While) Span() Span           { return n.SpanVal }
func (n *FunctionDef) Span() Span     { return n.SpanVal }
func (n *Return) Span() Span          { return n.SpanVal }
func (n *Pass) Span() Span            { return n.SpanVal }
func (n *Break) Span() Span           { return n.SpanVal }
func (n *Continue) Span() Span        { return n.SpanVal }
func (n *Constant) Span() Span        { return n.SpanVal }
func (n *Name) Span() Span            { return n.SpanVal }
func (n *BinOp) Span() Span           { return n.SpanVal }
func (n *UnaryOp) Span() Span         { return n.SpanVal }
func (n *Call) Span() Span            { return n.SpanVal }
func (n *Subscript) Span() Span       { return n.SpanVal }
func (n *List) Span() Span            { return n.SpanVal }
func (n *Dict) Span() Span            { return n.SpanVal }

func (n *Module) setSpan(s Span)          { n.SpanVal = s }
func (n *ExprStmt) setSpan(s Span)        { n.SpanVal = s }
func (n *Assign) setSpan(s Span)          { n.SpanVal = s }
func (n *SubscriptAssign) setSpan(s Span) { n.SpanVal = s }
func (n *If) setSpan(s Span)              { n.SpanVal = s }
func (n *While) setSpan(s Span)           { n.SpanVal = s }
func (n *FunctionDef) setSpan(s Span)     { n.SpanVal = s }
func (n *Return) setSpan(s Span)          { n.SpanVal = s }
func (n *Pass) setSpan(s Span)            { n.SpanVal = s }
func (n *Break) setSpan(s Span)           { n.SpanVal = s }
func (n *Continue) setSpan(s Span)        { n.SpanVal = s }
func (n *Constant) setSpan(s Span)        { n.SpanVal = s }
func (n *Name) setSpan(s Span)            { n.SpanVal = s }
func (n *BinOp) setSpan(s Span)           { n.SpanVal = s }
func (n *UnaryOp) setSpan(s Span)         { n.SpanVal = s }
func (n *Call) setSpan(s Span)            { n.SpanVal = s }
func (n *Subscript) setSpan(s Span)       { n.SpanVal = s }
func (n *List) setSpan(s Span)            { n.SpanVal = s }
func (n *Dict) setSpan(s Span)            { n.SpanVal = s }

func (n *Module) node()          {}
func (n *ExprStmt) node()        {}
func (n *Assign) node()          {}
func (n *SubscriptAssign) node() {}
func (n *If) node()              {}
func (n *While) node()           {}
func (n *FunctionDef) node()     {}
func (n *Return) node()          {}
func (n *Pass) node()            {}
func (n *Break) node()           {}
func (n *Continue) node()        {}
func (n *Constant) node()        {}
func (n *Name) node()            {}
func (n *BinOp) node()           {}
func (n *UnaryOp) node()         {}
func (n *Call) node()            {}
func (n *Subscript) node()       {}
func (n *List) node()            {}
func (n *Dict) node()            {}
