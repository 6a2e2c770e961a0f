package compiler

// TokenStream wraps a Lexer with bounded lookahead. Buffering stops once
// an ENDMARKER or an error has been buffered; nothing exists beyond either.
type TokenStream struct {
	lexer    *Lexer
	buf      []streamItem
	terminal bool
}

type streamItem struct {
	tok Token
	err error
}

// NewTokenStream creates a stream over l.
func NewTokenStream(l *Lexer) *TokenStream {
	return &TokenStream{lexer: l}
}

// Peek returns the n-th unconsumed token, counting from 1, without
// consuming it. ok is false when n < 1 or the stream ends first. A lexer
// error at that position is returned as err.
func (s *TokenStream) Peek(n int) (tok Token, ok bool, err error) {
	if n < 1 {
		return Token{}, false, nil
	}
	for len(s.buf) < n && !s.terminal {
		s.fill()
	}
	if n > len(s.buf) {
		return Token{}, false, nil
	}
	it := s.buf[n-1]
	if it.err != nil {
		return Token{}, false, it.err
	}
	return it.tok, true, nil
}

// Next consumes and returns the next token, draining the lookahead
// buffer before reading from the lexer.
func (s *TokenStream) Next() (tok Token, ok bool, err error) {
	if len(s.buf) == 0 {
		if s.terminal {
			return Token{}, false, nil
		}
		s.fill()
		if len(s.buf) == 0 {
			return Token{}, false, nil
		}
	}
	it := s.buf[0]
	s.buf = s.buf[1:]
	if it.err != nil {
		return Token{}, false, it.err
	}
	return it.tok, true, nil
}

// Buffered returns the number of tokens currently held in lookahead.
func (s *TokenStream) Buffered() int {
	return len(s.buf)
}

func (s *TokenStream) fill() {
	tok, ok, err := s.lexer.Next()
	switch {
	case err != nil:
		s.buf = append(s.buf, streamItem{err: err})
		s.terminal = true
	case !ok:
		s.terminal = true
	default:
		s.buf = append(s.buf, streamItem{tok: tok})
		if tok.Type == TokenEndmarker {
			s.terminal = true
		}
	}
}
