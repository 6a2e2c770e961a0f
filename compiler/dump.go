package compiler

import (
	"fmt"
	"strings"
)

// Dump renders the subtree rooted at id as an indented outline, one node
// per line with its span.
func Dump(a *Arena, id NodeID) string {
	var sb strings.Builder
	dumpNode(&sb, a, id, 0)
	return sb.String()
}

func dumpNode(sb *strings.Builder, a *Arena, id NodeID, depth int) {
	indent := strings.Repeat("  ", depth)
	n := a.Get(id)
	if n == nil {
		fmt.Fprintf(sb, "%s<missing %d>\n", indent, id)
		return
	}
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(sb, "%s%s %s\n", indent, fmt.Sprintf(format, args...), n.Span())
	}
	children := func(label string, ids []NodeID) {
		if label != "" {
			fmt.Fprintf(sb, "%s  %s:\n", indent, label)
			for _, c := range ids {
				dumpNode(sb, a, c, depth+2)
			}
			return
		}
		for _, c := range ids {
			dumpNode(sb, a, c, depth+1)
		}
	}

	switch n := n.(type) {
	case *Module:
		line("Module")
		children("", n.Body)
	case *ExprStmt:
		line("Expr")
		dumpNode(sb, a, n.Value, depth+1)
	case *Assign:
		line("Assign %s", a.Names.Lookup(n.Target))
		dumpNode(sb, a, n.Value, depth+1)
	case *SubscriptAssign:
		line("SubscriptAssign")
		dumpNode(sb, a, n.Target, depth+1)
		dumpNode(sb, a, n.Value, depth+1)
	case *If:
		line("If")
		dumpNode(sb, a, n.Test, depth+1)
		children("then", n.Body)
		if len(n.Orelse) > 0 {
			children("else", n.Orelse)
		}
	case *While:
		line("While")
		dumpNode(sb, a, n.Test, depth+1)
		children("body", n.Body)
	case *FunctionDef:
		params := make([]string, len(n.Params))
		for i, s := range n.Params {
			params[i] = a.Names.Lookup(s)
		}
		line("FunctionDef %s(%s)", a.Names.Lookup(n.Name), strings.Join(params, ", "))
		children("body", n.Body)
	case *Return:
		line("Return")
		if n.Value != NoNode {
			dumpNode(sb, a, n.Value, depth+1)
		}
	case *Pass:
		line("Pass")
	case *Break:
		line("Break")
	case *Continue:
		line("Continue")
	case *Constant:
		if n.Value.Type == TokenString {
			line("Constant %q", n.Value.Literal)
		} else {
			line("Constant %s", n.Value.Literal)
		}
	case *Name:
		line("Name %s", a.Names.Lookup(n.ID))
	case *BinOp:
		line("BinOp %s", n.Op.Type)
		dumpNode(sb, a, n.Left, depth+1)
		dumpNode(sb, a, n.Right, depth+1)
	case *UnaryOp:
		line("UnaryOp %s", n.Op.Type)
		dumpNode(sb, a, n.Operand, depth+1)
	case *Call:
		line("Call")
		dumpNode(sb, a, n.Func, depth+1)
		children("args", n.Args)
	case *Subscript:
		line("Subscript")
		dumpNode(sb, a, n.Value, depth+1)
		dumpNode(sb, a, n.Index, depth+1)
	case *List:
		line("List")
		children("", n.Elements)
	case *Dict:
		line("Dict")
		for i := range n.Keys {
			dumpNode(sb, a, n.Keys[i], depth+1)
			dumpNode(sb, a, n.Values[i], depth+1)
		}
	default:
		line("%T", n)
	}
}
