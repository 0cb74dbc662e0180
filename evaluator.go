package sprite

import (
	"context"
	"math"
)

// evaluator walks one program. It is not safe for concurrent use; every
// run gets its own.
type evaluator struct {
	ctx    context.Context
	call   *CallContext
	cfg    RuntimeConfig
	depth  int
	checks bool
}

func newEvaluator(ctx context.Context, call *CallContext, cfg RuntimeConfig) *evaluator {
	return &evaluator{
		ctx:    ctx,
		call:   call,
		cfg:    cfg,
		checks: ctx.Done() != nil,
	}
}

func (ev *evaluator) interrupted() error {
	if !ev.checks {
		return nil
	}
	return wrapContextErr(ev.ctx.Err())
}

// Eval computes the value of node. A *ReturnValue result means a return is
// unwinding and must be passed up unchanged.
func (ev *evaluator) Eval(node Node, env *Environment) (Value, error) {
	switch node := node.(type) {
	case *Program:
		return ev.evalProgram(node, env)
	case *Block:
		return ev.evalBlock(node, env)
	case *IntegerLiteral:
		return &Integer{Value: node.Value}, nil
	case *FloatLiteral:
		return &Float{Value: node.Value}, nil
	case *StringLiteral:
		return &String{Value: node.Value}, nil
	case *BooleanLiteral:
		return nativeBoolToBooleanValue(node.Value), nil
	case *Identifier:
		return env.Get(node.Name)
	case *AssignExpression:
		return ev.evalAssign(node, env)
	case *UnaryExpression:
		operand, err := ev.Eval(node.Operand, env)
		if err != nil || isReturn(operand) {
			return operand, err
		}
		return evalUnary(node.Operator, operand)
	case *BinaryExpression:
		return ev.evalBinary(node, env)
	case *FunctionDeclaration:
		closure := &Closure{Declaration: node, Env: env}
		env.Def(node.Name, closure)
		return closure, nil
	case *CallExpression:
		return ev.evalCall(node, env)
	case *IfExpression:
		return ev.evalIf(node, env)
	case *WhileExpression:
		return ev.evalWhile(node, env)
	case *ReturnExpression:
		val, err := ev.Eval(node.Value, env)
		if err != nil || isReturn(val) {
			return val, err
		}
		return &ReturnValue{Value: val}, nil
	}
	return nil, typeError("cannot evaluate %T", node)
}

func isReturn(v Value) bool {
	_, ok := v.(*ReturnValue)
	return ok
}

func (ev *evaluator) evalProgram(program *Program, env *Environment) (Value, error) {
	var result Value = FALSE
	for _, stmt := range program.Statements {
		val, err := ev.Eval(stmt, env)
		if err != nil {
			return nil, err
		}
		if rv, ok := val.(*ReturnValue); ok {
			return rv.Value, nil
		}
		result = val
	}
	return result, nil
}

func (ev *evaluator) evalBlock(block *Block, env *Environment) (Value, error) {
	var result Value = FALSE
	for _, stmt := range block.Statements {
		val, err := ev.Eval(stmt, env)
		if err != nil {
			return nil, err
		}
		if isReturn(val) {
			return val, nil
		}
		result = val
	}
	return result, nil
}

func (ev *evaluator) evalAssign(node *AssignExpression, env *Environment) (Value, error) {
	ident, ok := node.Left.(*Identifier)
	if !ok {
		return nil, newError(ErrCodeSyntax, "left-hand side of an assignment must be an identifier, got %s", node.Left.String())
	}
	val, err := ev.Eval(node.Right, env)
	if err != nil || isReturn(val) {
		return val, err
	}
	return env.Set(ident.Name, val)
}

func (ev *evaluator) evalBinary(node *BinaryExpression, env *Environment) (Value, error) {
	left, err := ev.Eval(node.Left, env)
	if err != nil || isReturn(left) {
		return left, err
	}
	switch node.Operator {
	case "&&":
		if isFalse(left) {
			return FALSE, nil
		}
		return ev.Eval(node.Right, env)
	case "||":
		if !isFalse(left) {
			return left, nil
		}
		return ev.Eval(node.Right, env)
	}
	right, err := ev.Eval(node.Right, env)
	if err != nil || isReturn(right) {
		return right, err
	}
	return evalInfix(node.Operator, left, right)
}

func (ev *evaluator) evalIf(node *IfExpression, env *Environment) (Value, error) {
	var branch Alternative = node
	for branch != nil {
		switch b := branch.(type) {
		case *ElseBranch:
			return ev.Eval(b.Then, env)
		case *IfExpression:
			cond, err := ev.Eval(b.Condition, env)
			if err != nil || isReturn(cond) {
				return cond, err
			}
			if !isFalse(cond) {
				return ev.Eval(b.Then, env)
			}
			branch = b.Alternative
		}
	}
	return FALSE, nil
}

func (ev *evaluator) evalWhile(node *WhileExpression, env *Environment) (Value, error) {
	var result Value = FALSE
	for {
		if err := ev.interrupted(); err != nil {
			return nil, err
		}
		cond, err := ev.Eval(node.Condition, env)
		if err != nil || isReturn(cond) {
			return cond, err
		}
		if isFalse(cond) {
			return result, nil
		}
		result, err = ev.Eval(node.Body, env)
		if err != nil || isReturn(result) {
			return result, err
		}
	}
}

func (ev *evaluator) evalCall(node *CallExpression, env *Environment) (Value, error) {
	callee, err := ev.Eval(node.Callee, env)
	if err != nil || isReturn(callee) {
		return callee, err
	}
	args := make([]Value, 0, len(node.Arguments))
	for _, a := range node.Arguments {
		val, err := ev.Eval(a, env)
		if err != nil || isReturn(val) {
			return val, err
		}
		args = append(args, val)
	}
	return ev.apply(callee, args)
}

func (ev *evaluator) apply(fn Value, args []Value) (Value, error) {
	if err := ev.interrupted(); err != nil {
		return nil, err
	}
	switch fn := fn.(type) {
	case *Closure:
		if ev.cfg.MaxCallDepth > 0 && ev.depth >= ev.cfg.MaxCallDepth {
			return nil, newError(ErrCodeCallDepth, "maximum call depth %d exceeded calling %s", ev.cfg.MaxCallDepth, fn.Declaration.Name)
		}
		ev.depth++
		defer func() { ev.depth-- }()
		scope := extendFunctionEnv(fn, args)
		result, err := ev.Eval(fn.Declaration.Body, scope)
		if err != nil {
			return nil, err
		}
		if rv, ok := result.(*ReturnValue); ok {
			return rv.Value, nil
		}
		return FALSE, nil
	case *Builtin:
		result, err := fn.Fn(ev.call, args)
		if err != nil {
			if _, ok := ErrorCodeOf(err); ok {
				return nil, err
			}
			return nil, &ScriptError{Code: ErrCodeHost, Message: "builtin " + fn.Name + " failed", Cause: err}
		}
		if result == nil {
			return FALSE, nil
		}
		return result, nil
	}
	return nil, typeError("cannot call %s", describe(fn))
}

// extendFunctionEnv binds parameters positionally in a child of the
// defining scope. Missing arguments are false and extra ones are dropped.
func extendFunctionEnv(fn *Closure, args []Value) *Environment {
	env := fn.Env.Extend()
	for i, param := range fn.Declaration.Parameters {
		if i < len(args) {
			env.Def(param, args[i])
		} else {
			env.Def(param, FALSE)
		}
	}
	return env
}

// evalUnary: "!" is true for false and for numeric zero. The zero case is
// deliberately different from the truthiness used by &&, ||, if and while.
func evalUnary(operator string, operand Value) (Value, error) {
	switch operator {
	case "!":
		return nativeBoolToBooleanValue(isFalse(operand) || isZero(operand)), nil
	case "-":
		switch n := operand.(type) {
		case *Integer:
			return &Integer{Value: -n.Value}, nil
		case *Float:
			return &Float{Value: -n.Value}, nil
		}
		return nil, typeError("unary - expects a number but got %s", describe(operand))
	}
	return nil, typeError("unknown unary operator %s", operator)
}

func evalInfix(operator string, left, right Value) (Value, error) {
	switch operator {
	case "==":
		return nativeBoolToBooleanValue(ValuesEqual(left, right)), nil
	case "!=":
		return nativeBoolToBooleanValue(!ValuesEqual(left, right)), nil
	}
	if !isNumber(left) {
		return nil, typeError("operator %s expects a number but got %s", operator, describe(left))
	}
	if !isNumber(right) {
		return nil, typeError("operator %s expects a number but got %s", operator, describe(right))
	}
	if (operator == "/" || operator == "%") && isZero(right) {
		return nil, newError(ErrCodeArithmetic, "divide by zero: %s %s %s", left.Inspect(), operator, right.Inspect())
	}
	li, lInt := left.(*Integer)
	ri, rInt := right.(*Integer)
	if lInt && rInt {
		return evalIntegerInfix(operator, li.Value, ri.Value)
	}
	return evalFloatInfix(operator, toFloat(left), toFloat(right))
}

func evalIntegerInfix(operator string, l, r int64) (Value, error) {
	switch operator {
	case "+":
		sum := l + r
		if (l^sum)&(r^sum) < 0 {
			return &Float{Value: float64(l) + float64(r)}, nil
		}
		return &Integer{Value: sum}, nil
	case "-":
		diff := l - r
		if (l^r)&(l^diff) < 0 {
			return &Float{Value: float64(l) - float64(r)}, nil
		}
		return &Integer{Value: diff}, nil
	case "*":
		product := l * r
		if l != 0 && (product/l != r || (l == -1 && r == math.MinInt64)) {
			return &Float{Value: float64(l) * float64(r)}, nil
		}
		return &Integer{Value: product}, nil
	case "/":
		if l == math.MinInt64 && r == -1 {
			return &Float{Value: -float64(l)}, nil
		}
		if l%r == 0 {
			return &Integer{Value: l / r}, nil
		}
		return &Float{Value: float64(l) / float64(r)}, nil
	case "%":
		return &Integer{Value: l % r}, nil
	case "<":
		return nativeBoolToBooleanValue(l < r), nil
	case ">":
		return nativeBoolToBooleanValue(l > r), nil
	case "<=":
		return nativeBoolToBooleanValue(l <= r), nil
	case ">=":
		return nativeBoolToBooleanValue(l >= r), nil
	}
	return nil, typeError("can't apply operator %s", operator)
}

func evalFloatInfix(operator string, l, r float64) (Value, error) {
	switch operator {
	case "+":
		return &Float{Value: l + r}, nil
	case "-":
		return &Float{Value: l - r}, nil
	case "*":
		return &Float{Value: l * r}, nil
	case "/":
		return &Float{Value: l / r}, nil
	case "%":
		return &Float{Value: math.Mod(l, r)}, nil
	case "<":
		return nativeBoolToBooleanValue(l < r), nil
	case ">":
		return nativeBoolToBooleanValue(l > r), nil
	case "<=":
		return nativeBoolToBooleanValue(l <= r), nil
	case ">=":
		return nativeBoolToBooleanValue(l >= r), nil
	}
	return nil, typeError("can't apply operator %s", operator)
}
