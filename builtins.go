package sprite

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

type builtinRegistry struct {
	mu        sync.RWMutex
	functions map[string]BuiltinFunction
	opts      BuiltinRegistryOptions
}

type BuiltinRegistryOptions struct {
	AllowOverride bool
	Frozen        bool
}

var (
	builtinRegistryInitOnce sync.Once
	builtins                = &builtinRegistry{
		functions: make(map[string]BuiltinFunction),
	}
)

// RegisterBuiltin makes fn visible under name in every global environment
// created afterwards. Errors are ignored; use RegisterBuiltinE to see them.
func RegisterBuiltin(name string, fn BuiltinFunction) {
	ensureBuiltinRegistryInitialized()
	_ = builtins.register(name, fn, false)
}

func RegisterBuiltinE(name string, fn BuiltinFunction) error {
	ensureBuiltinRegistryInitialized()
	return builtins.register(name, fn, false)
}

func UnregisterBuiltin(name string) error {
	ensureBuiltinRegistryInitialized()
	return builtins.unregister(name)
}

func SetBuiltinRegistryOptions(opts BuiltinRegistryOptions) {
	ensureBuiltinRegistryInitialized()
	builtins.mu.Lock()
	builtins.opts = opts
	builtins.mu.Unlock()
}

func GetBuiltinRegistryOptions() BuiltinRegistryOptions {
	ensureBuiltinRegistryInitialized()
	builtins.mu.RLock()
	defer builtins.mu.RUnlock()
	return builtins.opts
}

func FreezeBuiltinRegistry() {
	ensureBuiltinRegistryInitialized()
	builtins.mu.Lock()
	builtins.opts.Frozen = true
	builtins.mu.Unlock()
}

func UnfreezeBuiltinRegistry() {
	ensureBuiltinRegistryInitialized()
	builtins.mu.Lock()
	builtins.opts.Frozen = false
	builtins.mu.Unlock()
}

func LookupBuiltin(name string) (BuiltinFunction, bool) {
	ensureBuiltinRegistryInitialized()
	builtins.mu.RLock()
	defer builtins.mu.RUnlock()
	fn, ok := builtins.functions[strings.TrimSpace(name)]
	return fn, ok
}

// BuiltinNames returns the registered names in sorted order.
func BuiltinNames() []string {
	ensureBuiltinRegistryInitialized()
	builtins.mu.RLock()
	defer builtins.mu.RUnlock()
	names := make([]string, 0, len(builtins.functions))
	for name := range builtins.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ensureBuiltinRegistryInitialized() {
	builtinRegistryInitOnce.Do(registerDefaultBuiltins)
}

func (r *builtinRegistry) register(name string, fn BuiltinFunction, internal bool) error {
	n := strings.TrimSpace(name)
	if n == "" || fn == nil {
		return &ScriptError{Code: ErrCodeRegistry, Message: "invalid builtin registration"}
	}
	if !isValidIdentifier(n) || IsKeyword(n) {
		return &ScriptError{Code: ErrCodeRegistry, Message: fmt.Sprintf("builtin name %q is not a valid identifier", n)}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opts.Frozen && !internal {
		return &ScriptError{Code: ErrCodeRegistry, Message: "builtin registry is frozen"}
	}
	if _, exists := r.functions[n]; exists && !r.opts.AllowOverride && !internal {
		return &ScriptError{Code: ErrCodeRegistry, Message: fmt.Sprintf("builtin %s already registered", n)}
	}
	r.functions[n] = fn
	return nil
}

func (r *builtinRegistry) unregister(name string) error {
	n := strings.TrimSpace(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opts.Frozen {
		return &ScriptError{Code: ErrCodeRegistry, Message: "builtin registry is frozen"}
	}
	if _, ok := r.functions[n]; !ok {
		return &ScriptError{Code: ErrCodeRegistry, Message: fmt.Sprintf("builtin %s is not registered", n)}
	}
	delete(r.functions, n)
	return nil
}

func (r *builtinRegistry) snapshot() map[string]BuiltinFunction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]BuiltinFunction, len(r.functions))
	for name, fn := range r.functions {
		out[name] = fn
	}
	return out
}

func isValidIdentifier(s string) bool {
	if s == "" || !isIdentifierStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentifierChar(s[i]) {
			return false
		}
	}
	return true
}

func registerDefaultBuiltins() {
	_ = builtins.register("Out", builtinOut, true)
}

// builtinOut prints its arguments separated by spaces.
func builtinOut(call *CallContext, args []Value) (Value, error) {
	var w io.Writer = os.Stdout
	if call != nil && call.Output != nil {
		w = call.Output
	}
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.Inspect()
	}
	if _, err := fmt.Fprintln(w, strings.Join(parts, " ")); err != nil {
		return nil, err
	}
	return FALSE, nil
}

// NewGlobalEnvironment returns a root scope seeded with every registered
// builtin.
func NewGlobalEnvironment() *Environment {
	ensureBuiltinRegistryInitialized()
	env := NewEnvironment()
	for name, fn := range builtins.snapshot() {
		env.Def(name, &Builtin{Name: name, Fn: fn})
	}
	return env
}
