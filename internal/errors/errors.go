// Package errors defines the error type shared by every compile and
// runtime phase: the scanner, parser, emitter, and VM all produce
// *AshError values carrying a source location and, for runtime errors, a
// reconstructed fiber call stack.
package errors

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// ErrorType classifies where in the pipeline an error originated.
type ErrorType string

const (
	SyntaxError    ErrorType = "SyntaxError"
	RuntimeError   ErrorType = "RuntimeError"
	TypeError      ErrorType = "TypeError"
	ReferenceError ErrorType = "ReferenceError"
	ImportError    ErrorType = "ImportError"
	CompileError   ErrorType = "CompileError"
)

// SourceLocation is a point in a source file.
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// StackFrame is one entry of a reconstructed fiber call stack.
type StackFrame struct {
	Function string
	File     string
	Line     int
	Column   int
}

// AshError carries a classified message, its source location, an
// optional call stack, and a github.com/pkg/errors-captured stack trace
// of the Go code that raised it (distinct from the CallStack, which is
// the *interpreted program's* call stack at the point of failure).
type AshError struct {
	Type      ErrorType
	Message   string
	Location  SourceLocation
	CallStack []StackFrame
	Source    string
	cause     error
}

func (e *AshError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s: %s\n", e.Type, e.Message))

	if e.Location.File != "" {
		sb.WriteString(fmt.Sprintf("  at %s:%d:%d\n", e.Location.File, e.Location.Line, e.Location.Column))

		if e.Source != "" {
			sb.WriteString(fmt.Sprintf("\n  %d | %s\n", e.Location.Line, e.Source))
			sb.WriteString(fmt.Sprintf("  %s", strings.Repeat(" ", len(fmt.Sprintf("%d | ", e.Location.Line)))))
			if e.Location.Column > 0 {
				sb.WriteString(strings.Repeat(" ", e.Location.Column-1))
			}
			sb.WriteString("^\n")
		}
	}

	if len(e.CallStack) > 0 {
		sb.WriteString("\nCall Stack:\n")
		for _, frame := range e.CallStack {
			if frame.Function != "" {
				sb.WriteString(fmt.Sprintf("  at %s (%s:%d:%d)\n", frame.Function, frame.File, frame.Line, frame.Column))
			} else {
				sb.WriteString(fmt.Sprintf("  at %s:%d:%d\n", frame.File, frame.Line, frame.Column))
			}
		}
	}

	return sb.String()
}

// Unwrap exposes the pkg/errors-captured cause so errors.Cause/errors.As
// keep working through an AshError.
func (e *AshError) Unwrap() error { return e.cause }

func newWithStack(t ErrorType, message, file string, line, column int) *AshError {
	return &AshError{
		Type:     t,
		Message:  message,
		Location: SourceLocation{File: file, Line: line, Column: column},
		cause:    pkgerrors.New(message),
	}
}

// NewSyntaxError builds a scanner/parser-phase error.
func NewSyntaxError(message, file string, line, column int) *AshError {
	return newWithStack(SyntaxError, message, file, line, column)
}

// NewCompileError builds an emitter-phase error (resolution failures,
// malformed `super`/`break`/`continue` usage, too-many-constants, ...).
func NewCompileError(message, file string, line, column int) *AshError {
	return newWithStack(CompileError, message, file, line, column)
}

// NewRuntimeError builds a VM-phase error.
func NewRuntimeError(message, file string, line, column int) *AshError {
	return newWithStack(RuntimeError, message, file, line, column)
}

// NewTypeError builds a VM type-mismatch error (wrong arity, non-callable
// invoked, subscript on a non-container, ...).
func NewTypeError(message, file string, line, column int) *AshError {
	return newWithStack(TypeError, message, file, line, column)
}

// NewReferenceError builds an undefined-name error (global, field,
// private, or module export that doesn't exist).
func NewReferenceError(message, file string, line, column int) *AshError {
	return newWithStack(ReferenceError, message, file, line, column)
}

// NewImportError builds a REQUIRE-resolution error.
func NewImportError(message, file string, line, column int) *AshError {
	return newWithStack(ImportError, message, file, line, column)
}

func (e *AshError) WithSource(source string) *AshError {
	e.Source = source
	return e
}

func (e *AshError) WithStack(stack []StackFrame) *AshError {
	e.CallStack = stack
	return e
}

func (e *AshError) AddStackFrame(function, file string, line, column int) *AshError {
	e.CallStack = append(e.CallStack, StackFrame{Function: function, File: file, Line: line, Column: column})
	return e
}

// Wrap attaches a pkg/errors stack trace to an arbitrary error, used at
// package boundaries (module loader, stdlib collaborators) where the
// underlying failure isn't already an *AshError.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, message)
}

// Cause unwraps a wrapped error to its root cause.
func Cause(err error) error {
	return pkgerrors.Cause(err)
}
