// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package style

import (
	"fmt"
	"strconv"
)

// TokenType is the kind of a lexical token.
type TokenType int

const (
	// EOF terminates every token stream.
	EOF TokenType = iota

	// NEWLINE separates declarations. Runs are not collapsed.
	NEWLINE

	// NUMBER is a numeric literal: 10, 0.5, .5, 1e3.
	NUMBER

	// IDENT is a bare identifier: a channel key, function name,
	// palette or named color.
	IDENT

	// PROPERTY is a feature property reference: $speed.
	PROPERTY

	// HEXCOLOR is a hex color literal: #f00, #336699aa.
	HEXCOLOR

	// Punctuation and operators.
	LPAREN
	RPAREN
	COMMA
	COLON
	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	CARET
)

// Token is one lexical token. Num is set for NUMBER tokens.
type Token struct {
	Type   TokenType
	Lexeme string
	Num    float64
	Line   int
	Col    int
}

// ParseError is a positioned style-source error. It wraps the
// underlying construction error when one exists, so callers can still
// match on the expression package's type errors.
type ParseError struct {
	Line int
	Col  int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geoviz: style %d:%d: %s: %v", e.Line, e.Col, e.Msg, e.Err)
	}
	return fmt.Sprintf("geoviz: style %d:%d: %s", e.Line, e.Col, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// lexer scans style source into tokens. Newlines are significant and
// emitted as tokens; other whitespace only separates.
type lexer struct {
	src   string
	start int
	cur   int
	line  int
	col   int

	tokLine int
	tokCol  int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1}
}

func (l *lexer) isAtEnd() bool { return l.cur >= len(l.src) }

func (l *lexer) peek() (byte, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	return l.src[l.cur], true
}

func (l *lexer) advance() (byte, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	ch := l.src[l.cur]
	l.cur++
	if ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	return ch, true
}

// rewindToStart backs up to the current token start. Only valid while
// no newline has been consumed since then.
func (l *lexer) rewindToStart() {
	l.cur = l.start
	l.col = l.tokCol
}

func (l *lexer) skipBlanks() {
	for {
		b, ok := l.peek()
		if !ok {
			return
		}
		switch b {
		case ' ', '\t', '\r':
			l.advance()
		case '/':
			// Line comment: // ... to end of line.
			if l.cur+1 < len(l.src) && l.src[l.cur+1] == '/' {
				for {
					b, ok := l.peek()
					if !ok || b == '\n' {
						return
					}
					l.advance()
				}
			}
			return
		default:
			return
		}
	}
}

func (l *lexer) err(msg string) error {
	return &ParseError{Line: l.tokLine, Col: l.tokCol, Msg: msg}
}

func (l *lexer) token(tt TokenType) Token {
	return Token{
		Type:   tt,
		Lexeme: l.src[l.start:l.cur],
		Line:   l.tokLine,
		Col:    l.tokCol,
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_'
}

func isAlphaNum(b byte) bool { return isAlpha(b) || isDigit(b) }

func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func (l *lexer) scanIdent() {
	for {
		b, ok := l.peek()
		if !ok || !isAlphaNum(b) {
			return
		}
		l.advance()
	}
}

func (l *lexer) scanNumber() (Token, error) {
	for {
		b, ok := l.peek()
		if !ok || !isDigit(b) {
			break
		}
		l.advance()
	}
	if b, ok := l.peek(); ok && b == '.' {
		l.advance()
		for {
			b, ok := l.peek()
			if !ok || !isDigit(b) {
				break
			}
			l.advance()
		}
	}
	if b, ok := l.peek(); ok && (b == 'e' || b == 'E') {
		save := l.cur
		l.advance()
		if b, ok := l.peek(); ok && (b == '+' || b == '-') {
			l.advance()
		}
		if b, ok := l.peek(); ok && isDigit(b) {
			for {
				b, ok := l.peek()
				if !ok || !isDigit(b) {
					break
				}
				l.advance()
			}
		} else {
			l.cur = save
		}
	}

	lex := l.src[l.start:l.cur]
	v, err := strconv.ParseFloat(lex, 64)
	if err != nil {
		return Token{}, l.err(fmt.Sprintf("invalid number %q", lex))
	}
	tok := l.token(NUMBER)
	tok.Num = v
	return tok, nil
}

func (l *lexer) scanToken() (Token, error) {
	l.skipBlanks()
	l.start = l.cur
	l.tokLine = l.line
	l.tokCol = l.col

	if l.isAtEnd() {
		return l.token(EOF), nil
	}

	ch, _ := l.advance()
	switch ch {
	case '\n':
		return l.token(NEWLINE), nil
	case '(':
		return l.token(LPAREN), nil
	case ')':
		return l.token(RPAREN), nil
	case ',':
		return l.token(COMMA), nil
	case ':':
		return l.token(COLON), nil
	case '+':
		return l.token(PLUS), nil
	case '-':
		return l.token(MINUS), nil
	case '*':
		return l.token(STAR), nil
	case '/':
		return l.token(SLASH), nil
	case '%':
		return l.token(PERCENT), nil
	case '^':
		return l.token(CARET), nil
	case '#':
		n := 0
		for {
			b, ok := l.peek()
			if !ok || !isHexDigit(b) {
				break
			}
			l.advance()
			n++
		}
		if n != 3 && n != 4 && n != 6 && n != 8 {
			return Token{}, l.err(fmt.Sprintf("invalid hex color %q", l.src[l.start:l.cur]))
		}
		return l.token(HEXCOLOR), nil
	case '$':
		b, ok := l.peek()
		if !ok || !isAlpha(b) {
			return Token{}, l.err("'$' must be followed by a property name")
		}
		l.scanIdent()
		tok := l.token(PROPERTY)
		tok.Lexeme = tok.Lexeme[1:] // drop '$'
		return tok, nil
	}

	if isDigit(ch) {
		l.rewindToStart()
		return l.scanNumber()
	}
	if ch == '.' {
		if b, ok := l.peek(); ok && isDigit(b) {
			l.rewindToStart()
			return l.scanNumber()
		}
		return Token{}, l.err("unexpected character '.'")
	}
	if isAlpha(ch) {
		l.scanIdent()
		return l.token(IDENT), nil
	}

	return Token{}, l.err(fmt.Sprintf("unexpected character %q", ch))
}

// scan tokenizes the whole source, EOF token included.
func (l *lexer) scan() ([]Token, error) {
	var toks []Token
	for {
		tok, err := l.scanToken()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == EOF {
			return toks, nil
		}
	}
}
