// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

// Package conversation holds the append-only turn log shared by the agent
// loop and provider adapters.
package conversation

import (
	"strings"

	"github.com/google/uuid"

	mosaicerr "github.com/mosaic-dev/mosaic/pkg/errors"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool_result"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleToolResult:
		return true
	default:
		return false
	}
}

// Block is one content block inside a turn: Text, ToolUse or ToolResult.
type Block interface {
	block()
}

// Text is plain model or user text.
type Text struct {
	Value string
}

// ToolUse is a model-issued request to run a named tool.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
	// InputErr is set when the model's arguments could not be decoded.
	// Input is empty in that case and the call must not run.
	InputErr string
}

// ToolResult is the outcome of a ToolUse, correlated by ToolUseID.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

func (Text) block()       {}
func (ToolUse) block()    {}
func (ToolResult) block() {}

// Turn is an ordered group of blocks produced by one role.
type Turn struct {
	Role   Role
	Blocks []Block
}

// UserText builds a user turn holding a single text block.
func UserText(text string) Turn {
	return Turn{Role: RoleUser, Blocks: []Block{Text{Value: text}}}
}

// TextOf concatenates the Text blocks of blocks in order.
func TextOf(blocks []Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		if t, ok := b.(Text); ok {
			sb.WriteString(t.Value)
		}
	}
	return sb.String()
}

// ToolUses returns the ToolUse blocks of blocks in order.
func ToolUses(blocks []Block) []ToolUse {
	var uses []ToolUse
	for _, b := range blocks {
		if u, ok := b.(ToolUse); ok {
			uses = append(uses, u)
		}
	}
	return uses
}

// State is the append-only turn log of one agent run. It is owned by a
// single goroutine and is not safe for concurrent use.
type State struct {
	id    string
	turns []Turn
}

// New returns an empty State with a fresh run ID.
func New() *State {
	return &State{id: uuid.NewString()}
}

// ID returns the run identifier.
func (s *State) ID() string {
	return s.id
}

// Len returns the number of appended turns.
func (s *State) Len() int {
	return len(s.turns)
}

// Append validates turn against the log and appends a private copy of it.
//
// Ordering rules: the log starts with a user turn; an assistant turn
// follows a user or tool-result turn; an assistant turn carrying tool uses
// must be followed by a tool-result turn answering exactly those ids in
// the same order; an assistant turn without tool uses is followed by a user
// turn.
func (s *State) Append(turn Turn) error {
	if err := s.validate(turn); err != nil {
		return err
	}
	s.turns = append(s.turns, cloneTurn(turn))
	return nil
}

// Snapshot returns a copy of the full ordered turn sequence.
func (s *State) Snapshot() []Turn {
	out := make([]Turn, len(s.turns))
	for i, t := range s.turns {
		out[i] = cloneTurn(t)
	}
	return out
}

// Pending returns the tool uses of the last turn that still await results.
func (s *State) Pending() []ToolUse {
	if len(s.turns) == 0 {
		return nil
	}
	last := s.turns[len(s.turns)-1]
	if last.Role != RoleAssistant {
		return nil
	}
	return ToolUses(cloneTurn(last).Blocks)
}

func (s *State) validate(turn Turn) error {
	if !turn.Role.Valid() {
		return invalid("unknown role %q", turn.Role)
	}
	if len(turn.Blocks) == 0 {
		return invalid("%s turn has no blocks", turn.Role)
	}

	var prev *Turn
	if len(s.turns) > 0 {
		prev = &s.turns[len(s.turns)-1]
	}
	pending := s.Pending()

	switch turn.Role {
	case RoleUser:
		if len(pending) > 0 {
			return invalid("user turn while %d tool uses await results", len(pending))
		}
		if prev != nil && prev.Role == RoleUser {
			return invalid("user turn cannot follow a user turn")
		}
		for _, b := range turn.Blocks {
			if _, ok := b.(Text); !ok {
				return invalid("user turn may only hold text blocks, got %T", b)
			}
		}

	case RoleAssistant:
		if prev == nil || prev.Role == RoleAssistant {
			return invalid("assistant turn must follow a user or tool result turn")
		}
		seen := make(map[string]struct{})
		for _, b := range turn.Blocks {
			switch v := b.(type) {
			case Text:
			case ToolUse:
				if v.ID == "" {
					return invalid("tool use %q has an empty id", v.Name)
				}
				if v.Name == "" {
					return invalid("tool use %q has an empty name", v.ID)
				}
				if _, dup := seen[v.ID]; dup {
					return invalid("duplicate tool use id %q", v.ID)
				}
				seen[v.ID] = struct{}{}
			default:
				return invalid("assistant turn may not hold %T", b)
			}
		}

	case RoleToolResult:
		if len(pending) == 0 {
			return invalid("tool result turn without pending tool uses")
		}
		if len(turn.Blocks) != len(pending) {
			return invalid("expected %d tool results, got %d", len(pending), len(turn.Blocks))
		}
		for i, b := range turn.Blocks {
			r, ok := b.(ToolResult)
			if !ok {
				return invalid("tool result turn may only hold tool results, got %T", b)
			}
			if r.ToolUseID != pending[i].ID {
				return invalid("tool result %d answers %q, want %q", i, r.ToolUseID, pending[i].ID)
			}
		}
	}

	return nil
}

func invalid(format string, args ...any) error {
	return mosaicerr.Errorf(mosaicerr.CodeConversationAppendInvalid, "conversation: "+format, args...)
}

func cloneTurn(t Turn) Turn {
	blocks := make([]Block, len(t.Blocks))
	for i, b := range t.Blocks {
		if u, ok := b.(ToolUse); ok {
			u.Input = cloneMap(u.Input)
			b = u
		}
		blocks[i] = b
	}
	return Turn{Role: t.Role, Blocks: blocks}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
