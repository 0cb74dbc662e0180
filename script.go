// Package sprite implements a small dynamically typed scripting language:
// a lexer, a precedence-climbing parser, lexical environments and a
// tree-walking evaluator.
package sprite

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/oarkflow/log"
)

// ProgramCache stores parsed programs by source text. Programs are
// immutable, so one parse may be shared by concurrent runs.
type ProgramCache interface {
	Get(source string) (*Program, bool)
	Set(source string, program *Program)
}

type Option func(*Interpreter) error

func WithOutput(w io.Writer) Option {
	return func(in *Interpreter) error {
		in.output = w
		return nil
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(in *Interpreter) error {
		in.logger = logger
		return nil
	}
}

// WithGlobals predeclares host values in the global scope.
func WithGlobals(globals map[string]any) Option {
	return func(in *Interpreter) error {
		return defineGlobals(in.env, globals)
	}
}

func WithProgramCache(cache ProgramCache) Option {
	return func(in *Interpreter) error {
		in.cache = cache
		return nil
	}
}

func WithRuntimeConfig(cfg RuntimeConfig) Option {
	return func(in *Interpreter) error {
		in.config = &cfg
		return nil
	}
}

// Interpreter owns one global environment. Successive runs share it, so
// definitions persist between calls to Run.
type Interpreter struct {
	env    *Environment
	output io.Writer
	logger *log.Logger
	cache  ProgramCache
	config *RuntimeConfig
}

func New(opts ...Option) (*Interpreter, error) {
	in := &Interpreter{
		env:    NewGlobalEnvironment(),
		output: os.Stdout,
		logger: &log.DefaultLogger,
	}
	for _, opt := range opts {
		if err := opt(in); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func (in *Interpreter) Env() *Environment {
	return in.env
}

func (in *Interpreter) runtimeConfig(ctx context.Context) RuntimeConfig {
	base := GetRuntimeConfig()
	if in.config != nil {
		base = *in.config
	}
	return effectiveRuntimeConfig(ctx, base)
}

func (in *Interpreter) parse(source string) (*Program, error) {
	if in.cache != nil {
		if program, ok := in.cache.Get(source); ok {
			return program, nil
		}
	}
	program, err := Parse(source)
	if err != nil {
		return nil, err
	}
	if in.cache != nil {
		in.cache.Set(source, program)
	}
	return program, nil
}

// Run parses and evaluates source against the interpreter's global scope
// and returns the value of the last top-level statement.
func (in *Interpreter) Run(ctx context.Context, source string) (Value, error) {
	cfg := in.runtimeConfig(ctx)
	start := time.Now()
	program, err := in.parse(source)
	if err != nil {
		in.logRun(cfg, 0, start, err)
		return nil, err
	}
	result, err := in.eval(ctx, cfg, program)
	in.logRun(cfg, len(program.Statements), start, err)
	return result, err
}

// Eval evaluates an already parsed node in the global scope.
func (in *Interpreter) Eval(ctx context.Context, node Node) (Value, error) {
	return in.eval(ctx, in.runtimeConfig(ctx), node)
}

func (in *Interpreter) eval(ctx context.Context, cfg RuntimeConfig, node Node) (Value, error) {
	ctx, cancel := withRunTimeout(ctx, cfg)
	defer cancel()
	call := &CallContext{Context: ctx, Output: in.output, Logger: in.logger}
	ev := newEvaluator(ctx, call, cfg)
	result, err := ev.Eval(node, in.env)
	if err != nil {
		return nil, err
	}
	return unwrapReturnValue(result), nil
}

func (in *Interpreter) logRun(cfg RuntimeConfig, statements int, start time.Time, err error) {
	if !cfg.LogExecution || in.logger == nil {
		return
	}
	if err != nil {
		code, _ := ErrorCodeOf(err)
		in.logger.Error().Err(err).Str("code", string(code)).Dur("duration", time.Since(start)).Msg("script run failed")
		return
	}
	in.logger.Info().Int("statements", statements).Dur("duration", time.Since(start)).Msg("script run completed")
}

// Tokenize returns every token of source.
func Tokenize(source string) ([]Token, error) {
	l := NewLexer(source)
	var tokens []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		if tok == nil {
			return tokens, nil
		}
		tokens = append(tokens, *tok)
	}
}

func Parse(source string) (*Program, error) {
	return NewParser(NewLexer(source)).ParseProgram()
}

// Run evaluates source in a fresh global environment.
func Run(ctx context.Context, source string, opts ...Option) (Value, error) {
	in, err := New(opts...)
	if err != nil {
		return nil, err
	}
	return in.Run(ctx, source)
}

func RunFile(ctx context.Context, path string, opts ...Option) (Value, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Run(ctx, string(content), opts...)
}
