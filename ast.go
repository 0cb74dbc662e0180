package sprite

import (
	"math"
	"strconv"
	"strings"
)

// Node is any element of the syntax tree. Every construct in the language
// is an expression, so there is no separate statement interface.
type Node interface {
	String() string
	node()
}

// Alternative is the tail of an if chain: another *IfExpression (elif) or
// an *ElseBranch.
type Alternative interface {
	Node
	alternative()
}

type Program struct {
	Statements []Node
}

func (p *Program) node() {}
func (p *Program) String() string {
	var out strings.Builder
	for _, s := range p.Statements {
		out.WriteString(s.String())
		out.WriteString(Newline)
	}
	return out.String()
}

// Block is a body: either one inline expression or a statement sequence.
type Block struct {
	Statements []Node
	Inline     bool
}

func (b *Block) node() {}
func (b *Block) String() string {
	if b.Inline && len(b.Statements) == 1 {
		return b.Statements[0].String()
	}
	var out strings.Builder
	out.WriteString(Newline)
	for _, s := range b.Statements {
		out.WriteString(s.String())
		out.WriteString(Newline)
	}
	return out.String()
}

type IntegerLiteral struct {
	Value int64
}

func (il *IntegerLiteral) node()          {}
func (il *IntegerLiteral) String() string { return strconv.FormatInt(il.Value, 10) }

type FloatLiteral struct {
	Value float64
}

func (fl *FloatLiteral) node() {}
func (fl *FloatLiteral) String() string {
	if math.IsInf(fl.Value, 1) {
		// A digit run past the float range lexes back to +Inf.
		return "1" + strings.Repeat("0", 309)
	}
	s := strconv.FormatFloat(fl.Value, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

type StringLiteral struct {
	Value string
}

func (sl *StringLiteral) node()          {}
func (sl *StringLiteral) String() string { return `"` + sl.Value + `"` }

type BooleanLiteral struct {
	Value bool
}

func (bl *BooleanLiteral) node() {}
func (bl *BooleanLiteral) String() string {
	if bl.Value {
		return "True"
	}
	return "False"
}

type Identifier struct {
	Name string
}

func (i *Identifier) node()          {}
func (i *Identifier) String() string { return i.Name }

type UnaryExpression struct {
	Operator string
	Operand  Node
}

func (ue *UnaryExpression) node() {}
func (ue *UnaryExpression) String() string {
	return "(" + ue.Operator + ue.Operand.String() + ")"
}

type BinaryExpression struct {
	Operator string
	Left     Node
	Right    Node
}

func (be *BinaryExpression) node() {}
func (be *BinaryExpression) String() string {
	return "(" + be.Left.String() + " " + be.Operator + " " + be.Right.String() + ")"
}

// AssignExpression does not constrain Left; the evaluator rejects targets
// that are not identifiers.
type AssignExpression struct {
	Left  Node
	Right Node
}

func (ae *AssignExpression) node() {}
func (ae *AssignExpression) String() string {
	return "(" + ae.Left.String() + " = " + ae.Right.String() + ")"
}

type CallExpression struct {
	Callee    Node
	Arguments []Node
}

func (ce *CallExpression) node() {}
func (ce *CallExpression) String() string {
	args := make([]string, len(ce.Arguments))
	for i, a := range ce.Arguments {
		args[i] = a.String()
	}
	return ce.Callee.String() + "(" + strings.Join(args, ", ") + ")"
}

type FunctionDeclaration struct {
	Name       string
	Parameters []string
	Body       *Block
}

func (fd *FunctionDeclaration) node() {}
func (fd *FunctionDeclaration) String() string {
	head := "func " + fd.Name + "(" + strings.Join(fd.Parameters, ", ") + ")"
	if fd.Body.Inline && len(fd.Body.Statements) == 1 {
		if ret, ok := fd.Body.Statements[0].(*ReturnExpression); ok {
			return head + " " + ret.Value.String()
		}
	}
	return head + " " + fd.Body.String() + "end"
}

type IfExpression struct {
	Condition   Node
	Then        *Block
	Alternative Alternative
}

func (ie *IfExpression) node()        {}
func (ie *IfExpression) alternative() {}
func (ie *IfExpression) String() string {
	return "if " + ie.chain()
}

func (ie *IfExpression) chain() string {
	var out strings.Builder
	out.WriteString(ie.Condition.String())
	out.WriteString(" ")
	out.WriteString(ie.Then.String())
	switch alt := ie.Alternative.(type) {
	case *IfExpression:
		out.WriteString(" elif ")
		out.WriteString(alt.chain())
		return out.String()
	case *ElseBranch:
		out.WriteString(" else ")
		out.WriteString(alt.Then.String())
	}
	out.WriteString(" end")
	return out.String()
}

type ElseBranch struct {
	Then *Block
}

func (eb *ElseBranch) node()          {}
func (eb *ElseBranch) alternative()   {}
func (eb *ElseBranch) String() string { return "else " + eb.Then.String() }

type WhileExpression struct {
	Condition Node
	Body      *Block
}

func (we *WhileExpression) node() {}
func (we *WhileExpression) String() string {
	return "while " + we.Condition.String() + " " + we.Body.String() + " end"
}

type ReturnExpression struct {
	Value Node
}

func (re *ReturnExpression) node()          {}
func (re *ReturnExpression) String() string { return "return " + re.Value.String() }
