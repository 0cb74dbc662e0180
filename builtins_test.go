package sprite

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRegisterBuiltin(t *testing.T) {
	_ = UnregisterBuiltin("Reverse")
	if err := RegisterBuiltinE("Reverse", func(_ *CallContext, args []Value) (Value, error) {
		if len(args) == 0 {
			return &String{}, nil
		}
		runes := []rune(args[0].Inspect())
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return &String{Value: string(runes)}, nil
	}); err != nil {
		t.Fatalf("register builtin failed: %v", err)
	}
	t.Cleanup(func() { _ = UnregisterBuiltin("Reverse") })

	result, _ := runScript(t, `Reverse("abc")`)
	if result.Inspect() != "cba" {
		t.Fatalf("expected cba, got %s", result.Inspect())
	}
	fn, ok := LookupBuiltin("Reverse")
	if !ok || fn == nil {
		t.Fatalf("expected Reverse to be registered")
	}
	names := strings.Join(BuiltinNames(), ",")
	if !strings.Contains(names, "Out") || !strings.Contains(names, "Reverse") {
		t.Fatalf("unexpected builtin names %s", names)
	}
}

func TestBuiltinRegistryFreezeAndOverridePolicy(t *testing.T) {
	origOpts := GetBuiltinRegistryOptions()
	t.Cleanup(func() { SetBuiltinRegistryOptions(origOpts) })
	SetBuiltinRegistryOptions(BuiltinRegistryOptions{AllowOverride: false, Frozen: false})

	constant := func(v int64) BuiltinFunction {
		return func(_ *CallContext, _ []Value) (Value, error) { return &Integer{Value: v}, nil }
	}
	if err := RegisterBuiltinE("TmpA", constant(1)); err != nil {
		t.Fatalf("register should succeed: %v", err)
	}
	if err := RegisterBuiltinE("TmpA", constant(2)); err == nil {
		t.Fatalf("expected duplicate registration error when override disabled")
	}
	SetBuiltinRegistryOptions(BuiltinRegistryOptions{AllowOverride: true})
	if err := RegisterBuiltinE("TmpA", constant(3)); err != nil {
		t.Fatalf("override should succeed: %v", err)
	}
	result, _ := runScript(t, "TmpA()")
	if result.Inspect() != "3" {
		t.Fatalf("expected overridden builtin, got %s", result.Inspect())
	}
	FreezeBuiltinRegistry()
	err := RegisterBuiltinE("TmpB", constant(4))
	if code, ok := ErrorCodeOf(err); !ok || code != ErrCodeRegistry {
		t.Fatalf("expected registry frozen error, got %v", err)
	}
	if err := UnregisterBuiltin("TmpA"); err == nil {
		t.Fatalf("unregister should fail while frozen")
	}
	UnfreezeBuiltinRegistry()
	if err := UnregisterBuiltin("TmpA"); err != nil {
		t.Fatalf("unregister should succeed: %v", err)
	}
}

func TestRegisterBuiltinRejectsInvalidNames(t *testing.T) {
	noop := func(_ *CallContext, _ []Value) (Value, error) { return nil, nil }
	for _, name := range []string{"", "1abc", "has-dash", "return", "True"} {
		if err := RegisterBuiltinE(name, noop); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
	if err := RegisterBuiltinE("NilFn", nil); err == nil {
		t.Fatalf("expected nil function to be rejected")
	}
}

func TestBuiltinErrorsAreWrapped(t *testing.T) {
	boom := errors.New("boom")
	var out bytes.Buffer
	_, err := Run(context.Background(), "Fail(1)",
		WithOutput(&out),
		WithGlobals(map[string]any{
			"Fail": BuiltinFunction(func(_ *CallContext, _ []Value) (Value, error) { return nil, boom }),
		}),
	)
	if code, ok := ErrorCodeOf(err); !ok || code != ErrCodeHost {
		t.Fatalf("expected host error, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
	if !strings.Contains(err.Error(), "builtin Fail failed") {
		t.Fatalf("expected builtin name in error, got %v", err)
	}
}

func TestBuiltinNilResultIsFalse(t *testing.T) {
	result, err := Run(context.Background(), "Nothing()", WithGlobals(map[string]any{
		"Nothing": func(_ *CallContext, _ []Value) (Value, error) { return nil, nil },
	}))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result != FALSE {
		t.Fatalf("expected false, got %s", result.Inspect())
	}
}

func TestBuiltinReceivesCallContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "tenant-a")
	var seen string
	_, err := Run(ctx, "Who()", WithGlobals(map[string]any{
		"Who": func(call *CallContext, _ []Value) (Value, error) {
			seen, _ = call.Context.Value(key{}).(string)
			return TRUE, nil
		},
	}))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if seen != "tenant-a" {
		t.Fatalf("expected call context to carry the run context, got %q", seen)
	}
}

func TestGlobalEnvironmentsAreIndependent(t *testing.T) {
	a := NewGlobalEnvironment()
	b := NewGlobalEnvironment()
	a.Def("Out", TRUE)
	v, err := b.Get("Out")
	if err != nil {
		t.Fatalf("expected Out in fresh environment: %v", err)
	}
	if v.Type() != BUILTIN_VALUE {
		t.Fatalf("rebinding Out in one environment leaked into another")
	}
}
