package sprite

import (
	"fmt"
)

var (
	functionTerminators  = []string{"end"}
	whileTerminators     = []string{"end"}
	branchTerminators    = []string{"else", "elif", "end"}
	alternateTerminators = []string{"end"}
)

// Parser is a recursive descent parser with precedence climbing for binary
// operators. It stops at the first error.
type Parser struct {
	l        *Lexer
	lastLine int
	lastCol  int
}

func NewParser(l *Lexer) *Parser {
	return &Parser{l: l}
}

// ParseProgram consumes the whole token stream.
func (p *Parser) ParseProgram() (*Program, error) {
	program := &Program{}
	for {
		more, err := p.l.HasNext()
		if err != nil {
			return nil, err
		}
		if !more {
			return program, nil
		}
		stmt, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		program.Statements = append(program.Statements, stmt)
		if err := p.skipSeparator(); err != nil {
			return nil, err
		}
	}
}

// skipSeparator requires a newline unless the input is exhausted.
func (p *Parser) skipSeparator() error {
	more, err := p.l.HasNext()
	if err != nil || !more {
		return err
	}
	return p.skipPunctuation(Newline)
}

func (p *Parser) peek() (*Token, error) {
	return p.l.Peek()
}

func (p *Parser) next() (*Token, error) {
	tok, err := p.l.Next()
	if tok != nil {
		p.lastLine, p.lastCol = tok.Line, tok.Column
	}
	return tok, err
}

func (p *Parser) errorAt(tok *Token, format string, args ...any) *ScriptError {
	err := newError(ErrCodeSyntax, format, args...)
	if tok != nil {
		err.Line, err.Column = tok.Line, tok.Column
	} else {
		err.Message += " (unexpected end of input)"
		err.Line, err.Column = p.lastLine, p.lastCol
	}
	return err
}

func (p *Parser) peekIs(kind TokenKind, literal string) (bool, error) {
	tok, err := p.peek()
	if err != nil || tok == nil {
		return false, err
	}
	return tok.Is(kind, literal), nil
}

func (p *Parser) expect(kind TokenKind, literal string) error {
	tok, err := p.peek()
	if err != nil {
		return err
	}
	if tok == nil || !tok.Is(kind, literal) {
		return p.errorAt(tok, "expected %s %q, got %s", describeKind(kind), literal, describeToken(tok))
	}
	_, err = p.next()
	return err
}

func (p *Parser) skipPunctuation(punc string) error { return p.expect(PUNCT, punc) }
func (p *Parser) skipKeyword(keyword string) error  { return p.expect(KEYWORD, keyword) }

func describeKind(kind TokenKind) string {
	switch kind {
	case PUNCT:
		return "punctuation"
	case KEYWORD:
		return "keyword"
	case OP:
		return "operator"
	}
	return string(kind)
}

func describeToken(tok *Token) string {
	if tok == nil {
		return "end of input"
	}
	if tok.Kind == PUNCT && tok.Literal == Newline {
		return "newline"
	}
	return fmt.Sprintf("%s %q", describeKind(tok.Kind), tok.Literal)
}

func isTerminator(tok *Token, terminators []string) bool {
	if tok == nil || tok.Kind != KEYWORD {
		return false
	}
	for _, t := range terminators {
		if tok.Literal == t {
			return true
		}
	}
	return false
}

// parseBlock reads newline separated statements until a terminator keyword.
// Only "end" is consumed; "else"/"elif" are left for the caller.
func (p *Parser) parseBlock(terminators []string) (*Block, error) {
	block := &Block{}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok == nil {
			return nil, p.errorAt(nil, "expected keyword %q", terminators[len(terminators)-1])
		}
		if isTerminator(tok, terminators) {
			if tok.Literal == "end" {
				if _, err := p.next(); err != nil {
					return nil, err
				}
			}
			return block, nil
		}
		stmt, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		block.Statements = append(block.Statements, stmt)
		if err := p.skipSeparator(); err != nil {
			return nil, err
		}
	}
}

// parseBody parses a newline-introduced block or a single inline expression.
// An inline body may be closed by an optional "end". When asReturn is set an
// inline body is wrapped in a return.
func (p *Parser) parseBody(terminators []string, asReturn bool) (*Block, error) {
	isNewline, err := p.peekIs(PUNCT, Newline)
	if err != nil {
		return nil, err
	}
	if isNewline {
		if _, err := p.next(); err != nil {
			return nil, err
		}
		return p.parseBlock(terminators)
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if asReturn {
		expr = &ReturnExpression{Value: expr}
	}
	isEnd, err := p.peekIs(KEYWORD, "end")
	if err != nil {
		return nil, err
	}
	if isEnd {
		if _, err := p.next(); err != nil {
			return nil, err
		}
	}
	return &Block{Statements: []Node{expr}, Inline: true}, nil
}

func (p *Parser) parseExpression() (Node, error) {
	left, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	return p.maybeBinary(left, 0)
}

// maybeBinary climbs precedence: the right operand binds at the current
// operator's precedence and the result is fed back in, so equal precedence
// operators associate to the left.
func (p *Parser) maybeBinary(left Node, precedence int) (Node, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok == nil || tok.Kind != OP {
		return left, nil
	}
	current := tok.Precedence()
	if current == 0 {
		return nil, p.errorAt(tok, "unknown operator %q", tok.Literal)
	}
	if current <= precedence {
		return left, nil
	}
	if _, err := p.next(); err != nil {
		return nil, err
	}
	atom, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	right, err := p.maybeBinary(atom, current)
	if err != nil {
		return nil, err
	}
	var combined Node
	if tok.Literal == "=" {
		combined = &AssignExpression{Left: left, Right: right}
	} else {
		combined = &BinaryExpression{Operator: tok.Literal, Left: left, Right: right}
	}
	return p.maybeBinary(combined, precedence)
}

func (p *Parser) parseAtom() (Node, error) {
	atom, err := p.parseAtomNoCall()
	if err != nil {
		return nil, err
	}
	return p.maybeCall(atom)
}

func (p *Parser) maybeCall(callee Node) (Node, error) {
	for {
		isCall, err := p.peekIs(PUNCT, "(")
		if err != nil {
			return nil, err
		}
		if !isCall {
			return callee, nil
		}
		args, err := p.parseDelimited(func() (Node, error) { return p.parseExpression() })
		if err != nil {
			return nil, err
		}
		callee = &CallExpression{Callee: callee, Arguments: args}
	}
}

func (p *Parser) parseAtomNoCall() (Node, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, p.errorAt(nil, "expected expression")
	}
	switch tok.Kind {
	case PUNCT:
		if tok.Literal == "(" {
			return p.parseGrouped()
		}
	case OP:
		if tok.Literal == "!" || tok.Literal == "-" {
			return p.parseUnary()
		}
	case KEYWORD:
		switch tok.Literal {
		case "if":
			return p.parseConditional()
		case "True", "False":
			_, err := p.next()
			return &BooleanLiteral{Value: tok.Literal == "True"}, err
		case "func":
			return p.parseFunction()
		case "return":
			return p.parseReturn()
		case "while":
			return p.parseWhile()
		}
	case IDENT:
		_, err := p.next()
		return &Identifier{Name: tok.Literal}, err
	case STRING:
		_, err := p.next()
		return &StringLiteral{Value: tok.Literal}, err
	case INT:
		_, err := p.next()
		return &IntegerLiteral{Value: tok.Int}, err
	case FLOAT:
		_, err := p.next()
		return &FloatLiteral{Value: tok.Float}, err
	}
	return nil, p.errorAt(tok, "unexpected token %s", describeToken(tok))
}

func (p *Parser) parseGrouped() (Node, error) {
	if err := p.skipPunctuation("("); err != nil {
		return nil, err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.skipPunctuation(")"); err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *Parser) parseUnary() (Node, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	operand, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	return &UnaryExpression{Operator: tok.Literal, Operand: operand}, nil
}

// parseDelimited parses "(" item {"," item} [","] ")".
func (p *Parser) parseDelimited(item func() (Node, error)) ([]Node, error) {
	if err := p.skipPunctuation("("); err != nil {
		return nil, err
	}
	var items []Node
	first := true
	for {
		closing, err := p.peekIs(PUNCT, ")")
		if err != nil {
			return nil, err
		}
		if closing {
			break
		}
		if !first {
			if err := p.skipPunctuation(","); err != nil {
				return nil, err
			}
			closing, err := p.peekIs(PUNCT, ")")
			if err != nil {
				return nil, err
			}
			if closing {
				break
			}
		}
		first = false
		n, err := item()
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	if err := p.skipPunctuation(")"); err != nil {
		return nil, err
	}
	return items, nil
}

func (p *Parser) parseIdentifierName() (Node, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	if tok == nil || tok.Kind != IDENT {
		return nil, p.errorAt(tok, "expected identifier, got %s", describeToken(tok))
	}
	return &Identifier{Name: tok.Literal}, nil
}

func (p *Parser) parseFunction() (Node, error) {
	if err := p.skipKeyword("func"); err != nil {
		return nil, err
	}
	name, err := p.parseIdentifierName()
	if err != nil {
		return nil, err
	}
	paramTok, err := p.peek()
	if err != nil {
		return nil, err
	}
	params, err := p.parseDelimited(p.parseIdentifierName)
	if err != nil {
		return nil, err
	}
	fn := &FunctionDeclaration{Name: name.(*Identifier).Name}
	seen := make(map[string]struct{}, len(params))
	for _, param := range params {
		n := param.(*Identifier).Name
		if _, dup := seen[n]; dup {
			return nil, p.errorAt(paramTok, "duplicate parameter %q in function %s", n, fn.Name)
		}
		seen[n] = struct{}{}
		fn.Parameters = append(fn.Parameters, n)
	}
	fn.Body, err = p.parseBody(functionTerminators, true)
	if err != nil {
		return nil, err
	}
	return fn, nil
}

func (p *Parser) parseReturn() (Node, error) {
	if err := p.skipKeyword("return"); err != nil {
		return nil, err
	}
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ReturnExpression{Value: value}, nil
}

func (p *Parser) parseWhile() (Node, error) {
	if err := p.skipKeyword("while"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody(whileTerminators, false)
	if err != nil {
		return nil, err
	}
	return &WhileExpression{Condition: cond, Body: body}, nil
}

// parseConditional builds the if/elif chain and hangs a trailing else off
// its deepest node.
func (p *Parser) parseConditional() (Node, error) {
	if err := p.skipKeyword("if"); err != nil {
		return nil, err
	}
	root, err := p.parseBranch()
	if err != nil {
		return nil, err
	}
	deepest := root
	for {
		isElif, err := p.peekIs(KEYWORD, "elif")
		if err != nil {
			return nil, err
		}
		if !isElif {
			break
		}
		if _, err := p.next(); err != nil {
			return nil, err
		}
		branch, err := p.parseBranch()
		if err != nil {
			return nil, err
		}
		deepest.Alternative = branch
		deepest = branch
	}
	isElse, err := p.peekIs(KEYWORD, "else")
	if err != nil {
		return nil, err
	}
	if isElse {
		if _, err := p.next(); err != nil {
			return nil, err
		}
		body, err := p.parseBody(alternateTerminators, false)
		if err != nil {
			return nil, err
		}
		deepest.Alternative = &ElseBranch{Then: body}
	}
	return root, nil
}

func (p *Parser) parseBranch() (*IfExpression, error) {
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBody(branchTerminators, false)
	if err != nil {
		return nil, err
	}
	return &IfExpression{Condition: cond, Then: then}, nil
}
