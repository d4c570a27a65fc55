package task

import (
	"context"
	"fmt"
)

// BodyKind identifies which variant of a Body is set.
type BodyKind string

const (
	// KindInline is an in-process executable unit.
	KindInline BodyKind = "inline"
	// KindScript is a reference to an external script run as a subprocess.
	KindScript BodyKind = "script"
)

// InlineFunc is the signature of an inline task body. It reports output
// lines through emit; each emitted line is forwarded to observers and
// nudges the task's progress. The body must return promptly once ctx is
// cancelled.
type InlineFunc func(ctx context.Context, emit func(string)) error

// Body is a tagged variant holding the executable unit of a task:
// either an inline function or an external script reference. Exactly one
// variant must be set.
type Body struct {
	// Inline is the in-process variant.
	Inline InlineFunc `json:"-"`

	// Script is the path of the external script variant.
	Script string `json:"script,omitempty"`

	// Args are passed to the script.
	Args []string `json:"args,omitempty"`
}

// InlineBody builds an inline Body.
func InlineBody(fn InlineFunc) Body { return Body{Inline: fn} }

// ScriptBody builds an external script reference Body.
func ScriptBody(path string, args ...string) Body {
	return Body{Script: path, Args: args}
}

// Kind returns which variant is set, or "" when the body is invalid.
func (b Body) Kind() BodyKind {
	switch {
	case b.Inline != nil && b.Script == "":
		return KindInline
	case b.Inline == nil && b.Script != "":
		return KindScript
	default:
		return ""
	}
}

// Validate checks that exactly one variant is set.
func (b Body) Validate(taskName string) error {
	if b.Kind() == "" {
		return fmt.Errorf("task %q: body must set exactly one of inline or script", taskName)
	}
	return nil
}
