package sprite

import (
	"fmt"
	"strconv"
)

type TokenKind string

const (
	IDENT   TokenKind = "Identifier"
	KEYWORD TokenKind = "Keyword"
	PUNCT   TokenKind = "Punctuation"
	OP      TokenKind = "Operator"
	INT     TokenKind = "Integer"
	FLOAT   TokenKind = "Float"
	STRING  TokenKind = "String"
)

// Newline is the literal of the synthetic statement separator.
const Newline = "\n"

var (
	keywords = map[string]struct{}{
		"if":     {},
		"else":   {},
		"elif":   {},
		"end":    {},
		"while":  {},
		"for":    {},
		"break":  {},
		"func":   {},
		"sprite": {},
		"return": {},
		"True":   {},
		"False":  {},
		"nil":    {},
		"and":    {},
		"or":     {},
		"not":    {},
	}
	precedences = map[string]int{
		"=":  1,
		"||": 2,
		"&&": 3,
		"<":  7,
		">":  7,
		"<=": 7,
		">=": 7,
		"==": 7,
		"!=": 7,
		"+":  10,
		"-":  10,
		"*":  20,
		"/":  20,
		"%":  20,
	}
)

func lookupKeyword(ident string) TokenKind {
	if _, ok := keywords[ident]; ok {
		return KEYWORD
	}
	return IDENT
}

// IsKeyword reports whether ident is reserved.
func IsKeyword(ident string) bool {
	_, ok := keywords[ident]
	return ok
}

// Token is one lexical unit. Int and Float hold the decoded value for
// numeric kinds; Literal always holds the source text (or the decoded text
// for strings).
type Token struct {
	Kind    TokenKind
	Literal string
	Int     int64
	Float   float64
	Line    int
	Column  int
}

func (t Token) Is(kind TokenKind, literal string) bool {
	return t.Kind == kind && t.Literal == literal
}

// Precedence returns the binary precedence of an operator token, or 0.
func (t Token) Precedence() int {
	if t.Kind != OP {
		return 0
	}
	return precedences[t.Literal]
}

func (t Token) String() string {
	switch t.Kind {
	case INT:
		return fmt.Sprintf("Token(%s, %d, Line: %d, Column: %d)", t.Kind, t.Int, t.Line, t.Column)
	case FLOAT:
		return fmt.Sprintf("Token(%s, %s, Line: %d, Column: %d)", t.Kind, strconv.FormatFloat(t.Float, 'g', -1, 64), t.Line, t.Column)
	}
	return fmt.Sprintf("Token(%s, %q, Line: %d, Column: %d)", t.Kind, t.Literal, t.Line, t.Column)
}

func isIdentifierStart(ch byte) bool {
	return ch == '_' || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
}

func isIdentifierChar(ch byte) bool {
	return isIdentifierStart(ch) || isDigit(ch)
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isNumberChar(ch byte) bool {
	return isDigit(ch) || ch == '.'
}

func isOperatorChar(ch byte) bool {
	switch ch {
	case '+', '-', '*', '/', '%', '<', '>', '=', '!', '&', '|', '^', '~':
		return true
	}
	return false
}

func isPunctuation(ch byte) bool {
	switch ch {
	case '{', '}', '(', ')', '[', ']', '.', ',', ':', ';':
		return true
	}
	return false
}

func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\v' || ch == '\f'
}
