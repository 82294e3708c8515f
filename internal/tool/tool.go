// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

// Package tool maps tool names to schemas and handlers and turns every
// call, including malformed ones, into a model-visible result.
package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mosaic-dev/mosaic/internal/safewrite"
)

// Kind classifies a tool's side effects.
type Kind int

const (
	// KindRead tools only observe.
	KindRead Kind = iota
	// KindWrite tools create files; they receive the registry's Writer.
	KindWrite
)

func (k Kind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Call is what a handler receives for one invocation.
type Call struct {
	ID    string
	Input map[string]any
	// Writer is set for KindWrite tools only.
	Writer safewrite.Writer
}

// String returns the named string field of the input, or "".
func (c Call) String(key string) string {
	s, _ := c.Input[key].(string)
	return s
}

// Output is a handler's reply. IsError marks a result the model should
// read as a failure.
type Output struct {
	Content string
	IsError bool
}

// Text returns a successful Output.
func Text(s string) Output {
	return Output{Content: s}
}

// Handler executes one tool call.
type Handler func(ctx context.Context, call Call) (Output, error)

// Descriptor describes a tool to the registry and to providers.
type Descriptor struct {
	Name        string
	Description string
	// Schema is a JSON schema object for the tool input. Nil means any object.
	Schema  map[string]any
	Kind    Kind
	Handler Handler
}

// InputError reports tool arguments that failed schema validation.
type InputError struct {
	Tool     string
	Problems []string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input for %s: %s", e.Tool, strings.Join(e.Problems, "; "))
}

// ExecutionError reports a handler failure or panic.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// FatalError marks a handler error that must stop the agent loop instead
// of being reported back to the model.
type FatalError struct {
	Err error
}

// Fatal wraps err so Dispatch surfaces it as Result.Abort.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
