// Package flow implements the conversation flow engine: the transition
// table, component activation and the per-turn processing loop.
package flow

import (
	"context"
	"fmt"

	"github.com/vimbiso/vimbiso-chatserver/internal/state"
)

// OutcomeKind discriminates the result of a component activation.
type OutcomeKind int

const (
	// OutcomeSuccess means the component completed; Tag optionally carries
	// a branching outcome for the transition table.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeValidation means user input was rejected; the component is
	// retained and Message is shown to the user.
	OutcomeValidation
	// OutcomeRetry means the component failed in a way a specific earlier
	// component should handle (e.g. re-enter an account handle).
	OutcomeRetry
	// OutcomeFatal means the component failed unrecoverably for the
	// current position; the processor resets to the login flow.
	OutcomeFatal
)

// Outcome is the structured result of activating a component. Branching
// never relies on error type inspection: normal business failures are
// values, not panics.
type Outcome struct {
	Kind    OutcomeKind
	Tag     string // branching tag (OutcomeSuccess only)
	Message string // user-facing text (OutcomeValidation) or reason (OutcomeRetry)
	Err     error  // underlying cause (OutcomeFatal)
}

// Continue reports success with a branching tag.
func Continue(tag string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Tag: tag}
}

// Done reports success with no branching tag.
func Done() Outcome {
	return Outcome{Kind: OutcomeSuccess}
}

// Invalid reports a recoverable user-input rejection.
func Invalid(message string) Outcome {
	return Outcome{Kind: OutcomeValidation, Message: message}
}

// RetryStep reports a failure a designated earlier component should absorb.
func RetryStep(reason string) Outcome {
	return Outcome{Kind: OutcomeRetry, Message: reason}
}

// Fatal reports an unrecoverable failure for the current position.
func Fatal(err error) Outcome {
	return Outcome{Kind: OutcomeFatal, Err: err}
}

// Fatalf is Fatal with formatting.
func Fatalf(format string, args ...any) Outcome {
	return Outcome{Kind: OutcomeFatal, Err: fmt.Errorf(format, args...)}
}

// Component is one step of a conversation sub-flow. Process pulls its own
// input from the state manager's incoming message and scratch region,
// performs side effects (prompts, API calls) and reports an Outcome. A
// component that prompted the user marks the state as awaiting input and
// returns success without consuming anything.
type Component interface {
	Name() string
	Process(ctx context.Context, sm *state.Manager) Outcome
}

// Constructor builds a fresh component instance.
type Constructor func() Component

// Registry maps component names to constructors. It is built once at
// startup so an unknown component name is a wiring bug, not a runtime
// lookup surprise.
type Registry map[string]Constructor
