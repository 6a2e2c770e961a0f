package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types
// ---------------------------------------------------------------------------

// TokenType represents the kind of a token.
type TokenType int

const (
	// Structural tokens
	TokenEndmarker TokenType = iota
	TokenNewline
	TokenIndent
	TokenDedent

	// Literals
	TokenInt    // 42
	TokenFloat  // 3.14, 3.
	TokenString // 'hi', "hi"
	TokenName   // foo, True, while

	// Delimiters
	TokenLPar   // (
	TokenRPar   // )
	TokenLSqb   // [
	TokenRSqb   // ]
	TokenLBrace // {
	TokenRBrace // }
	TokenColon  // :
	TokenComma  // ,
	TokenSemi   // ; (reserved)
	TokenDot    // . (reserved)

	// Operators
	TokenPlus         // +
	TokenMinus        // -
	TokenStar         // *
	TokenSlash        // /
	TokenDoubleSlash  // //
	TokenPercent      // %
	TokenAt           // @
	TokenDoubleStar   // **
	TokenEqEqual      // ==
	TokenNotEqual     // !=
	TokenLess         // <
	TokenGreater      // >
	TokenLessEqual    // <=
	TokenGreaterEqual // >=
	TokenVBar         // |
	TokenCircumflex   // ^
	TokenAmper        // &
	TokenLeftShift    // <<
	TokenRightShift   // >>
	TokenTilde        // ~ (reserved)
	TokenExclamation  // !
	TokenDoubleVBar   // ||
	TokenDoubleAmper  // &&
	TokenEqual        // =
)

var tokenNames = map[TokenType]string{
	TokenEndmarker:    "ENDMARKER",
	TokenNewline:      "NEWLINE",
	TokenIndent:       "INDENT",
	TokenDedent:       "DEDENT",
	TokenInt:          "INT",
	TokenFloat:        "FLOAT",
	TokenString:       "STRING",
	TokenName:         "NAME",
	TokenLPar:         "(",
	TokenRPar:         ")",
	TokenLSqb:         "[",
	TokenRSqb:         "]",
	TokenLBrace:       "{",
	TokenRBrace:       "}",
	TokenColon:        ":",
	TokenComma:        ",",
	TokenSemi:         ";",
	TokenDot:          ".",
	TokenPlus:         "+",
	TokenMinus:        "-",
	TokenStar:         "*",
	TokenSlash:        "/",
	TokenDoubleSlash:  "//",
	TokenPercent:      "%",
	TokenAt:           "@",
	TokenDoubleStar:   "**",
	TokenEqEqual:      "==",
	TokenNotEqual:     "!=",
	TokenLess:         "<",
	TokenGreater:      ">",
	TokenLessEqual:    "<=",
	TokenGreaterEqual: ">=",
	TokenVBar:         "|",
	TokenCircumflex:   "^",
	TokenAmper:        "&",
	TokenLeftShift:    "<<",
	TokenRightShift:   ">>",
	TokenTilde:        "~",
	TokenExclamation:  "!",
	TokenDoubleVBar:   "||",
	TokenDoubleAmper:  "&&",
	TokenEqual:        "=",
}

// String returns the name of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", t)
}

// ---------------------------------------------------------------------------
// Span and Token
// ---------------------------------------------------------------------------

// Span is a half-open range of byte offsets into the source.
type Span struct {
	Start int
	End   int
}

// Merge returns the span from s's start to o's end.
func (s Span) Merge(o Span) Span {
	return Span{Start: s.Start, End: o.End}
}

// Slice returns the source text covered by the span.
func (s Span) Slice(src string) string {
	if s.Start < 0 || s.End > len(src) || s.Start > s.End {
		return ""
	}
	return src[s.Start:s.End]
}

func (s Span) String() string {
	return fmt.Sprintf("%d..%d", s.Start, s.End)
}

// Token is a lexical token. Tokens are immutable once emitted.
type Token struct {
	Type    TokenType
	Span    Span
	Literal string // digits, decoded string contents or identifier text
	Depth   int    // indentation depth for INDENT and DEDENT
}

// String returns a debug representation of the token.
func (t Token) String() string {
	switch t.Type {
	case TokenInt, TokenFloat, TokenName:
		return fmt.Sprintf("%s(%s)@%s", t.Type, t.Literal, t.Span)
	case TokenString:
		return fmt.Sprintf("%s(%q)@%s", t.Type, t.Literal, t.Span)
	case TokenIndent, TokenDedent:
		return fmt.Sprintf("%s(%d)@%s", t.Type, t.Depth, t.Span)
	}
	return fmt.Sprintf("%s@%s", t.Type, t.Span)
}

// IsKeyword reports whether the token is the name token for kw.
func (t Token) IsKeyword(kw string) bool {
	return t.Type == TokenName && t.Literal == kw
}

// keywords are names the parser reserves.
var keywords = map[string]bool{
	"True": true, "False": true, "None": true,
	"if": true, "elif": true, "else": true, "while": true,
	"def": true, "return": true, "pass": true,
	"break": true, "continue": true,
	"not": true, "and": true, "or": true,
}

// IsKeyword reports whether name is reserved.
func IsKeyword(name string) bool {
	return keywords[name]
}

// Keywords returns the reserved names.
func Keywords() []string {
	out := make([]string, 0, len(keywords))
	for k := range keywords {
		out = append(out, k)
	}
	return out
}
