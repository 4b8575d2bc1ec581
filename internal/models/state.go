// Package models defines state management structures for vimbiso-chatserver flows.
package models

// Auth holds the bearer credential for the CredEx API. Present only once
// the channel has authenticated.
type Auth struct {
	Token string `json:"token,omitempty"`
}

// Action is the outcome of the last CredEx API call, stored so later steps
// in a flow can branch on it (e.g. handle validation errors).
type Action struct {
	Type    string            `json:"type,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ComponentData is the flow-control envelope. Path, Component,
// ComponentResult and AwaitingInput are rewritten together through the state
// manager's UpdateFlowState; Data is the step-private scratch region the
// engine transports but never inspects.
type ComponentData struct {
	Path            string         `json:"path"`
	Component       string         `json:"component"`
	Data            map[string]any `json:"data,omitempty"`
	ComponentResult string         `json:"component_result,omitempty"`
	AwaitingInput   bool           `json:"awaiting_input"`
	IncomingMessage *Message       `json:"incoming_message,omitempty"`
}

// ConversationState is the single per-channel state document. It is owned
// by the state manager and persisted through the store as one JSON blob.
type ConversationState struct {
	Channel         *Channel       `json:"channel,omitempty"`
	MockTesting     bool           `json:"mock_testing,omitempty"`
	Auth            *Auth          `json:"auth,omitempty"`
	Dashboard       *Dashboard     `json:"dashboard,omitempty"`
	ActiveAccountID string         `json:"active_account_id,omitempty"`
	Action          *Action        `json:"action,omitempty"`
	ComponentData   *ComponentData `json:"component_data,omitempty"`
}

// Top-level state document keys accepted by the generic update path.
// "channel" is deliberately absent: it may only be written through
// InitializeChannel.
const (
	StateKeyChannel         = "channel"
	StateKeyMockTesting     = "mock_testing"
	StateKeyAuth            = "auth"
	StateKeyDashboard       = "dashboard"
	StateKeyActiveAccountID = "active_account_id"
	StateKeyAction          = "action"
	StateKeyComponentData   = "component_data"
)
