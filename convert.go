package sprite

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/oarkflow/convert"
)

// ToValue converts a host value into the language value domain. nil maps to
// false because the language has no nil. Named scalar types are reduced to
// their underlying kind before conversion.
func ToValue(val any) (Value, error) {
	switch v := val.(type) {
	case nil:
		return FALSE, nil
	case Value:
		return v, nil
	case BuiltinFunction:
		return &Builtin{Name: "host", Fn: v}, nil
	case func(call *CallContext, args []Value) (Value, error):
		return &Builtin{Name: "host", Fn: v}, nil
	}
	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if i, ok := convert.ToInt64(rv.Int()); ok {
			return &Integer{Value: i}, nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, ok := convert.ToUint64(rv.Uint())
		if !ok {
			break
		}
		if u > math.MaxInt64 {
			f, _ := convert.ToFloat64(u)
			return &Float{Value: f}, nil
		}
		return &Integer{Value: int64(u)}, nil
	case reflect.Float32, reflect.Float64:
		if f, ok := convert.ToFloat64(rv.Float()); ok {
			return &Float{Value: f}, nil
		}
	case reflect.Bool:
		if b, ok := convert.ToBool(rv.Bool()); ok {
			return nativeBoolToBooleanValue(b), nil
		}
	case reflect.String:
		if str, ok := convert.ToString(rv.String()); ok {
			return &String{Value: str}, nil
		}
	}
	return nil, typeError("unsupported host value of type %T", val)
}

// FromValue converts a language value back to a plain Go value.
func FromValue(v Value) any {
	switch v := v.(type) {
	case *Integer:
		return v.Value
	case *Float:
		return v.Value
	case *Boolean:
		return v.Value
	case *String:
		return v.Value
	case *ReturnValue:
		return FromValue(v.Value)
	case nil:
		return nil
	}
	return v.Inspect()
}

// defineGlobals binds host values in env in a stable order.
func defineGlobals(env *Environment, globals map[string]any) error {
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !isValidIdentifier(name) || IsKeyword(name) {
			return newError(ErrCodeHost, "global name %q is not a valid identifier", name)
		}
		val, err := ToValue(globals[name])
		if err != nil {
			return fmt.Errorf("global %s: %w", name, err)
		}
		if b, ok := val.(*Builtin); ok && b.Name == "host" {
			val = &Builtin{Name: name, Fn: b.Fn}
		}
		env.Def(name, val)
	}
	return nil
}
