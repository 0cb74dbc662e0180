package sprite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// RuntimeConfig bounds a run. Zero values disable the corresponding limit.
type RuntimeConfig struct {
	Timeout      time.Duration
	MaxCallDepth int
	LogExecution bool
}

var (
	runtimeConfigMu sync.RWMutex
	runtimeConfig   = RuntimeConfig{}
)

type runtimeConfigContextKey struct{}

type RuntimeConfigOverride struct {
	Timeout      *time.Duration
	MaxCallDepth *int
	LogExecution *bool
}

func SetRuntimeConfig(cfg RuntimeConfig) {
	runtimeConfigMu.Lock()
	defer runtimeConfigMu.Unlock()
	runtimeConfig = cfg
}

func GetRuntimeConfig() RuntimeConfig {
	runtimeConfigMu.RLock()
	defer runtimeConfigMu.RUnlock()
	return runtimeConfig
}

func WithRuntimeConfigOverride(ctx context.Context, override RuntimeConfigOverride) context.Context {
	return context.WithValue(ctx, runtimeConfigContextKey{}, override)
}

func effectiveRuntimeConfig(ctx context.Context, base RuntimeConfig) RuntimeConfig {
	cfg := base
	ov, ok := ctx.Value(runtimeConfigContextKey{}).(RuntimeConfigOverride)
	if !ok {
		return cfg
	}
	if ov.Timeout != nil {
		cfg.Timeout = *ov.Timeout
	}
	if ov.MaxCallDepth != nil {
		cfg.MaxCallDepth = *ov.MaxCallDepth
	}
	if ov.LogExecution != nil {
		cfg.LogExecution = *ov.LogExecution
	}
	return cfg
}

func withRunTimeout(ctx context.Context, cfg RuntimeConfig) (context.Context, context.CancelFunc) {
	if cfg.Timeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, cfg.Timeout)
}

func wrapContextErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ScriptError{
			Code:    ErrCodeTimeout,
			Message: "execution timed out",
			Cause:   err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &ScriptError{
			Code:    ErrCodeCanceled,
			Message: "execution canceled",
			Cause:   err,
		}
	}
	return err
}

type ErrorCode string

const (
	ErrCodeLex        ErrorCode = "LEX_ERROR"
	ErrCodeSyntax     ErrorCode = "SYNTAX_ERROR"
	ErrCodeName       ErrorCode = "NAME_ERROR"
	ErrCodeType       ErrorCode = "TYPE_ERROR"
	ErrCodeArithmetic ErrorCode = "ARITHMETIC_ERROR"
	ErrCodeCallDepth  ErrorCode = "CALL_DEPTH_EXCEEDED"
	ErrCodeTimeout    ErrorCode = "EXECUTION_TIMEOUT"
	ErrCodeCanceled   ErrorCode = "EXECUTION_CANCELED"
	ErrCodeRegistry   ErrorCode = "REGISTRY_ERROR"
	ErrCodeHost       ErrorCode = "HOST_ERROR"
)

// ScriptError is the single error type surfaced by every pipeline stage.
// Line and Column are set for lexical and syntax errors only.
type ScriptError struct {
	Code    ErrorCode
	Message string
	Line    int
	Column  int
	Cause   error
}

func (e *ScriptError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Line > 0 {
		msg = fmt.Sprintf("%s (line %d, column %d)", msg, e.Line, e.Column)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ScriptError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ErrorCodeOf returns the code of err when it is (or wraps) a ScriptError.
func ErrorCodeOf(err error) (ErrorCode, bool) {
	var se *ScriptError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return "", false
}

func newError(code ErrorCode, format string, args ...any) *ScriptError {
	return &ScriptError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func nameError(name string) *ScriptError {
	return newError(ErrCodeName, "variable not found: %s", name)
}

func typeError(format string, args ...any) *ScriptError {
	return newError(ErrCodeType, format, args...)
}
