package sprite

import (
	"strconv"
	"strings"

	"github.com/oarkflow/errors"
)

// Lexer produces tokens on demand with a single token of lookahead.
type Lexer struct {
	input    string
	position int
	line     int
	column   int
	// newLine is true while no token has been produced since the last
	// separator, so blank and comment-only lines collapse.
	newLine bool
	current *Token
}

func NewLexer(input string) *Lexer {
	l := &Lexer{}
	l.Reset(input)
	return l
}

func (l *Lexer) Reset(input string) {
	if !strings.HasSuffix(input, Newline) {
		input += Newline
	}
	l.input = input
	l.position = 0
	l.line = 1
	l.column = 0
	l.newLine = true
	l.current = nil
}

// Peek returns the next token without consuming it, or nil at end of input.
func (l *Lexer) Peek() (*Token, error) {
	if l.current != nil {
		return l.current, nil
	}
	tok, err := l.readNext()
	if err != nil {
		return nil, err
	}
	l.current = tok
	return tok, nil
}

// Next returns and consumes the next token, or nil at end of input.
func (l *Lexer) Next() (*Token, error) {
	tok, err := l.Peek()
	if err != nil {
		return nil, err
	}
	l.current = nil
	return tok, nil
}

func (l *Lexer) HasNext() (bool, error) {
	tok, err := l.Peek()
	return tok != nil, err
}

func (l *Lexer) hasChar() bool {
	return l.position < len(l.input)
}

func (l *Lexer) peekChar() byte {
	if l.position >= len(l.input) {
		return 0
	}
	return l.input[l.position]
}

func (l *Lexer) readChar() byte {
	ch := l.input[l.position]
	l.position++
	if ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
	return ch
}

func (l *Lexer) readWhile(pred func(byte) bool) string {
	start := l.position
	for l.hasChar() && pred(l.peekChar()) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func (l *Lexer) token(kind TokenKind, literal string, line, column int) *Token {
	l.newLine = false
	return &Token{Kind: kind, Literal: literal, Line: line, Column: column}
}

func (l *Lexer) errorAt(line, column int, format string, args ...any) *ScriptError {
	err := newError(ErrCodeLex, format, args...)
	err.Line = line
	err.Column = column
	return err
}

func (l *Lexer) readNext() (*Token, error) {
	for {
		l.readWhile(isWhitespace)
		if !l.hasChar() {
			return nil, nil
		}
		line, column := l.line, l.column+1
		ch := l.peekChar()
		switch {
		case ch == '#':
			l.skipComment()
			if l.newLine {
				continue
			}
			l.newLine = true
			return &Token{Kind: PUNCT, Literal: Newline, Line: line, Column: column}, nil
		case ch == '\n':
			l.readChar()
			if l.newLine {
				continue
			}
			l.newLine = true
			return &Token{Kind: PUNCT, Literal: Newline, Line: line, Column: column}, nil
		case ch == '"':
			return l.readString(line, column)
		case isPunctuation(ch):
			return l.token(PUNCT, string(l.readChar()), line, column), nil
		case isIdentifierStart(ch):
			literal := l.readWhile(isIdentifierChar)
			return l.token(lookupKeyword(literal), literal, line, column), nil
		case isNumberChar(ch):
			return l.readNumber(line, column)
		case isOperatorChar(ch):
			return l.token(OP, l.readWhile(isOperatorChar), line, column), nil
		default:
			return nil, l.errorAt(line, column, "unexpected character %q", ch)
		}
	}
}

// skipComment consumes a line comment including its terminating newline.
func (l *Lexer) skipComment() {
	l.readWhile(func(ch byte) bool { return ch != '\n' })
	if l.hasChar() {
		l.readChar()
	}
}

func (l *Lexer) readNumber(line, column int) (*Token, error) {
	literal := l.readWhile(isNumberChar)
	dots := strings.Count(literal, ".")
	if dots == 0 {
		n, err := strconv.ParseInt(literal, 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			// Too wide for an integer; the nearest float stands in. Runs past
			// the float range become +Inf.
			f, _ := strconv.ParseFloat(literal, 64)
			tok := l.token(FLOAT, literal, line, column)
			tok.Float = f
			return tok, nil
		}
		if err != nil {
			return nil, l.errorAt(line, column, "invalid integer %s", literal)
		}
		tok := l.token(INT, literal, line, column)
		tok.Int = n
		return tok, nil
	}
	if dots > 1 || literal[0] == '.' || literal[len(literal)-1] == '.' {
		return nil, l.errorAt(line, column, "Invalid float %s", literal)
	}
	f, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return nil, l.errorAt(line, column, "Invalid float %s", literal)
	}
	tok := l.token(FLOAT, literal, line, column)
	tok.Float = f
	return tok, nil
}

// readString keeps backslashes verbatim; a backslash only stops the
// following quote from closing the literal.
func (l *Lexer) readString(line, column int) (*Token, error) {
	l.readChar()
	var sb strings.Builder
	escaped := false
	for l.hasChar() {
		ch := l.readChar()
		if ch == '"' && !escaped {
			return l.token(STRING, sb.String(), line, column), nil
		}
		escaped = ch == '\\'
		sb.WriteByte(ch)
	}
	return nil, l.errorAt(line, column, "unterminated string")
}
