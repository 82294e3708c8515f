// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/mosaic-dev/mosaic/internal/conversation"
	"github.com/mosaic-dev/mosaic/internal/safewrite"
	"github.com/mosaic-dev/mosaic/internal/scanner"
	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

// RegistryConfig holds dependencies for Registry.
type RegistryConfig struct {
	// Writer is handed to KindWrite tools. Defaults to a SafeWriter.
	Writer safewrite.Writer
	// Timeout bounds each handler call. Zero disables it.
	Timeout time.Duration
	// Scanner inspects handler output under ScanMode. Nil disables it.
	Scanner  *scanner.Scanner
	ScanMode scanner.Mode
	Logger   *slog.Logger
}

type entry struct {
	desc   Descriptor
	schema *gojsonschema.Schema
}

// Registry is a thread-safe name to tool mapping. Descriptors are kept in
// registration order.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry

	writer   safewrite.Writer
	timeout  time.Duration
	scanner  *scanner.Scanner
	scanMode scanner.Mode
	logger   *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	writer := cfg.Writer
	if writer == nil {
		writer = safewrite.NewSafe(logger)
	}
	return &Registry{
		entries:  make(map[string]*entry),
		writer:   writer,
		timeout:  cfg.Timeout,
		scanner:  cfg.Scanner,
		scanMode: cfg.ScanMode,
		logger:   logger,
	}
}

// Register adds a tool. It fails if the name is taken, the handler is nil,
// or the schema does not compile.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return mosaicerr.New(mosaicerr.CodeToolRegisterInvalid, "tool name is required")
	}
	if d.Handler == nil {
		return mosaicerr.New(mosaicerr.CodeToolRegisterInvalid, "tool handler is required", mosaicerr.FieldTool(d.Name))
	}
	if d.Schema == nil {
		d.Schema = map[string]any{"type": "object"}
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(d.Schema))
	if err != nil {
		return mosaicerr.Wrap(err, mosaicerr.CodeToolRegisterInvalid, "compiling tool schema", mosaicerr.FieldTool(d.Name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[d.Name]; ok {
		return mosaicerr.New(mosaicerr.CodeToolRegisterConflict, fmt.Sprintf("tool %q already registered", d.Name), mosaicerr.FieldTool(d.Name))
	}
	r.entries[d.Name] = &entry{desc: d, schema: schema}
	r.order = append(r.order, d.Name)
	return nil
}

// MustRegister is Register for static tool tables.
func (r *Registry) MustRegister(ds ...Descriptor) {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Descriptor{}, false
	}
	return e.desc, true
}

// Descriptors returns all tools in registration order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].desc)
	}
	return out
}

// Result is the outcome of one dispatch.
type Result struct {
	Block conversation.ToolResult
	// Err is the InputError or ExecutionError behind an error Block, if any.
	Err error
	// Abort is set when the handler returned a FatalError. The loop must stop.
	Abort error
}

// Dispatch runs the tool named by use. It never returns an error: unknown
// tools, invalid input, handler errors and panics all become error-flagged
// results. Only FatalError handler failures are surfaced, through Abort.
func (r *Registry) Dispatch(ctx context.Context, use conversation.ToolUse) Result {
	logger := r.logger.With("tool", use.Name, "tool_use_id", use.ID)

	r.mu.RLock()
	e, ok := r.entries[use.Name]
	r.mu.RUnlock()
	if !ok {
		logger.Warn("unknown tool requested")
		err := mosaicerr.New(mosaicerr.CodeToolLookupNotFound, "unknown tool", mosaicerr.FieldTool(use.Name))
		return errorResult(use.ID, "Unknown tool: "+use.Name, err)
	}

	if use.InputErr != "" {
		inputErr := &InputError{Tool: use.Name, Problems: []string{use.InputErr}}
		logger.Debug("tool arguments undecodable", "error", use.InputErr)
		return errorResult(use.ID, "Error: "+inputErr.Error(), inputErr)
	}

	input := use.Input
	if input == nil {
		input = map[string]any{}
	}

	if problems, err := validate(e.schema, input); err != nil {
		logger.Warn("tool input validation failed", "error", err)
		return errorResult(use.ID, "Error: "+err.Error(), err)
	} else if len(problems) > 0 {
		inputErr := &InputError{Tool: use.Name, Problems: problems}
		logger.Debug("tool input rejected", "problems", problems)
		return errorResult(use.ID, "Error: "+inputErr.Error(), inputErr)
	}

	call := Call{ID: use.ID, Input: input}
	if e.desc.Kind == KindWrite {
		call.Writer = r.writer
	}

	start := time.Now()
	out, err := r.invoke(ctx, e.desc, call)
	logger.Debug("tool finished", "duration", time.Since(start), "is_error", err != nil || out.IsError)

	if err != nil {
		if IsFatal(err) {
			logger.Error("tool failed fatally", "error", err)
			return Result{
				Block: conversation.ToolResult{ToolUseID: use.ID, Content: "Error: " + err.Error(), IsError: true},
				Abort: err,
			}
		}
		execErr := &ExecutionError{Tool: use.Name, Err: err}
		logger.Warn("tool failed", "error", err)
		return errorResult(use.ID, "Error: "+execErr.Error(), execErr)
	}

	content, err := r.screen(logger, out.Content)
	if err != nil {
		return errorResult(use.ID, "Error: "+err.Error(), err)
	}
	return Result{Block: conversation.ToolResult{ToolUseID: use.ID, Content: content, IsError: out.IsError}}
}

// screen runs handler output through the scanner, if one is configured.
func (r *Registry) screen(logger *slog.Logger, content string) (string, error) {
	if r.scanner == nil || r.scanMode == "" || r.scanMode == scanner.ModeOff {
		return content, nil
	}
	res := r.scanner.Scan(content)
	if !res.Threat {
		return content, nil
	}
	logger.Warn("tool output matched scanner rules", "rules", res.Rules(), "mode", r.scanMode)
	return scanner.Apply(r.scanMode, content, res)
}

func (r *Registry) invoke(ctx context.Context, d Descriptor, call Call) (out Output, err error) {
	execCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			err = mosaicerr.Errorf(mosaicerr.CodeToolExecutionFailure, "panic: %v", p)
		}
	}()

	out, err = d.Handler(execCtx, call)
	if err != nil && !IsFatal(err) && errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = mosaicerr.Wrapf(err, mosaicerr.CodeToolExecutionTimeout, "tool %q execution timeout", d.Name)
	}
	return out, err
}

func validate(schema *gojsonschema.Schema, input map[string]any) ([]string, error) {
	res, err := schema.Validate(gojsonschema.NewGoLoader(input))
	if err != nil {
		return nil, mosaicerr.Wrap(err, mosaicerr.CodeToolInputInvalid, "validating tool input")
	}
	if res.Valid() {
		return nil, nil
	}
	problems := make([]string, 0, len(res.Errors()))
	for _, desc := range res.Errors() {
		problems = append(problems, desc.String())
	}
	return problems, nil
}

func errorResult(id, content string, err error) Result {
	return Result{
		Block: conversation.ToolResult{ToolUseID: id, Content: content, IsError: true},
		Err:   err,
	}
}
