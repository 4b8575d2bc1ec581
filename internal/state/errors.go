// Package state implements the conversation state manager: the single
// owner of the per-channel state document.
package state

import "fmt"

// Error is the typed error returned for invalid state operations. Callers
// branch on Field/Component rather than string matching.
type Error struct {
	Component string
	Field     string
	Message   string
	Value     string
}

func (e *Error) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("state %s.%s: %s (value: %s)", e.Component, e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("state %s.%s: %s", e.Component, e.Field, e.Message)
}

func newError(field, message, value string) *Error {
	return &Error{Component: "state_manager", Field: field, Message: message, Value: value}
}
