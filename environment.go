package sprite

// Environment is one lexical scope. The outer link is fixed at construction
// and bindings are never removed.
type Environment struct {
	store map[string]Value
	outer *Environment
}

func NewEnvironment() *Environment {
	return &Environment{store: make(map[string]Value)}
}

func NewEnclosedEnvironment(outer *Environment) *Environment {
	env := NewEnvironment()
	env.outer = outer
	return env
}

// Extend creates a child scope of e.
func (e *Environment) Extend() *Environment {
	return NewEnclosedEnvironment(e)
}

func (e *Environment) Outer() *Environment {
	return e.outer
}

func (e *Environment) IsGlobal() bool {
	return e.outer == nil
}

// Lookup returns the nearest scope that owns a binding for name.
func (e *Environment) Lookup(name string) (*Environment, bool) {
	for scope := e; scope != nil; scope = scope.outer {
		if _, ok := scope.store[name]; ok {
			return scope, true
		}
	}
	return nil, false
}

// Get resolves name through the scope chain.
func (e *Environment) Get(name string) (Value, error) {
	scope, ok := e.Lookup(name)
	if !ok {
		return nil, nameError(name)
	}
	return scope.store[name], nil
}

// Set rebinds the nearest existing binding. Only the global scope may
// introduce a new name through assignment.
func (e *Environment) Set(name string, val Value) (Value, error) {
	scope, ok := e.Lookup(name)
	if !ok {
		if !e.IsGlobal() {
			return nil, nameError(name)
		}
		scope = e
	}
	scope.store[name] = val
	return val, nil
}

// Def binds name in this scope regardless of outer bindings.
func (e *Environment) Def(name string, val Value) Value {
	e.store[name] = val
	return val
}

// Names lists the bindings owned by this scope.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.store))
	for name := range e.store {
		names = append(names, name)
	}
	return names
}
