package sprite

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/oarkflow/log"
)

type ValueType int

const (
	INTEGER_VALUE ValueType = iota
	FLOAT_VALUE
	BOOLEAN_VALUE
	STRING_VALUE
	CLOSURE_VALUE
	BUILTIN_VALUE
	RETURN_VALUE
)

func (vt ValueType) String() string {
	switch vt {
	case INTEGER_VALUE:
		return "integer"
	case FLOAT_VALUE:
		return "float"
	case BOOLEAN_VALUE:
		return "boolean"
	case STRING_VALUE:
		return "string"
	case CLOSURE_VALUE:
		return "function"
	case BUILTIN_VALUE:
		return "builtin"
	case RETURN_VALUE:
		return "return"
	default:
		return "unknown"
	}
}

type Value interface {
	Type() ValueType
	Inspect() string
}

type Integer struct {
	Value int64
}

func (i *Integer) Type() ValueType { return INTEGER_VALUE }
func (i *Integer) Inspect() string { return strconv.FormatInt(i.Value, 10) }

type Float struct {
	Value float64
}

func (f *Float) Type() ValueType { return FLOAT_VALUE }
func (f *Float) Inspect() string { return strconv.FormatFloat(f.Value, 'g', -1, 64) }

type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ValueType { return BOOLEAN_VALUE }
func (b *Boolean) Inspect() string { return strconv.FormatBool(b.Value) }

type String struct {
	Value string
}

func (s *String) Type() ValueType { return STRING_VALUE }
func (s *String) Inspect() string { return s.Value }

// Closure pairs a declaration with the scope it was declared in.
type Closure struct {
	Declaration *FunctionDeclaration
	Env         *Environment
}

func (c *Closure) Type() ValueType { return CLOSURE_VALUE }
func (c *Closure) Inspect() string {
	return "func " + c.Declaration.Name + "(" + strings.Join(c.Declaration.Parameters, ", ") + ")"
}

// CallContext is handed to host functions.
type CallContext struct {
	Context context.Context
	Output  io.Writer
	Logger  *log.Logger
}

type BuiltinFunction func(call *CallContext, args []Value) (Value, error)

type Builtin struct {
	Name string
	Fn   BuiltinFunction
}

func (b *Builtin) Type() ValueType { return BUILTIN_VALUE }
func (b *Builtin) Inspect() string { return "builtin " + b.Name }

// ReturnValue marks that a return expression ran; it unwinds enclosing
// blocks until the function call that owns it.
type ReturnValue struct {
	Value Value
}

func (rv *ReturnValue) Type() ValueType { return RETURN_VALUE }
func (rv *ReturnValue) Inspect() string { return rv.Value.Inspect() }

var (
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
)

func nativeBoolToBooleanValue(input bool) *Boolean {
	if input {
		return TRUE
	}
	return FALSE
}

// isFalse is the truthiness rule for &&, ||, if and while: only the boolean
// false is falsy.
func isFalse(v Value) bool {
	b, ok := v.(*Boolean)
	return ok && !b.Value
}

func isNumber(v Value) bool {
	switch v.(type) {
	case *Integer, *Float:
		return true
	}
	return false
}

func toFloat(v Value) float64 {
	switch n := v.(type) {
	case *Integer:
		return float64(n.Value)
	case *Float:
		return n.Value
	}
	return 0
}

func isZero(v Value) bool {
	switch n := v.(type) {
	case *Integer:
		return n.Value == 0
	case *Float:
		return n.Value == 0
	}
	return false
}

func unwrapReturnValue(v Value) Value {
	if rv, ok := v.(*ReturnValue); ok {
		return rv.Value
	}
	return v
}

// describe names a value for error messages.
func describe(v Value) string {
	if v.Type() == STRING_VALUE {
		return v.Type().String() + " " + strconv.Quote(v.Inspect())
	}
	return v.Type().String() + " " + v.Inspect()
}

// ValuesEqual compares without coercion across kinds; integers and floats
// are both numbers and compare numerically.
func ValuesEqual(a, b Value) bool {
	if isNumber(a) && isNumber(b) {
		ai, aInt := a.(*Integer)
		bi, bInt := b.(*Integer)
		if aInt && bInt {
			return ai.Value == bi.Value
		}
		return toFloat(a) == toFloat(b)
	}
	switch av := a.(type) {
	case *Boolean:
		bv, ok := b.(*Boolean)
		return ok && av.Value == bv.Value
	case *String:
		bv, ok := b.(*String)
		return ok && av.Value == bv.Value
	case *Closure:
		bv, ok := b.(*Closure)
		return ok && av == bv
	case *Builtin:
		bv, ok := b.(*Builtin)
		return ok && av == bv
	}
	return false
}
