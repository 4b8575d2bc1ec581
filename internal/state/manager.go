package state

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vimbiso/vimbiso-chatserver/internal/messaging"
	"github.com/vimbiso/vimbiso-chatserver/internal/models"
	"github.com/vimbiso/vimbiso-chatserver/internal/store"
)

// KeyPrefix is the required prefix for conversation state keys.
const KeyPrefix = "channel:"

// Opts holds configuration options for the state manager.
type Opts struct {
	TTL       time.Duration // document expiry pushed down to the store
	JWTSecret []byte        // shared secret for verifying CredEx auth tokens
}

// Option defines a configuration option for the state manager.
type Option func(*Opts)

// WithTTL sets the document expiry.
func WithTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.TTL = ttl }
}

// WithJWTSecret sets the shared secret used by IsAuthenticated.
func WithJWTSecret(secret []byte) Option {
	return func(o *Opts) { o.JWTSecret = secret }
}

// Manager owns one conversation's state document. All reads and writes of
// conversation state go through it; the in-memory copy is authoritative for
// the current turn even when a persist fails (at-least-once semantics).
type Manager struct {
	key       string
	store     store.Store
	ttl       time.Duration
	jwtSecret []byte
	messaging messaging.Service
	doc       models.ConversationState
}

// NewManager loads (or initializes empty) the state document for key. A
// store read failure degrades to an empty document and is logged; it never
// fails the turn.
func NewManager(ctx context.Context, st store.Store, key string, opts ...Option) (*Manager, error) {
	if !strings.HasPrefix(key, KeyPrefix) {
		return nil, newError("key_prefix", "invalid key prefix format", key)
	}
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Manager{key: key, store: st, ttl: cfg.TTL, jwtSecret: cfg.JWTSecret}

	raw, err := st.Get(ctx, key)
	switch {
	case err == store.ErrNotFound:
		slog.Debug("StateManager no existing document", "key", key)
	case err != nil:
		slog.Error("StateManager load failed, degrading to empty document", "error", err, "key", key)
	default:
		if uerr := json.Unmarshal(raw, &m.doc); uerr != nil {
			slog.Error("StateManager corrupt document, degrading to empty", "error", uerr, "key", key)
			m.doc = models.ConversationState{}
		}
	}
	return m, nil
}

// SetMessaging injects the messaging capability components send through.
func (m *Manager) SetMessaging(svc messaging.Service) {
	m.messaging = svc
}

// Messaging returns the injected messaging service, or a typed error when
// the manager was not wired up properly.
func (m *Manager) Messaging() (messaging.Service, error) {
	if m.messaging == nil {
		return nil, newError("messaging", "messaging service not initialized", "")
	}
	return m.messaging, nil
}

// persist writes the current document. Persistence failures are reported
// and swallowed: the in-memory copy stays authoritative for the turn.
func (m *Manager) persist(ctx context.Context) {
	raw, err := json.Marshal(m.doc)
	if err != nil {
		slog.Error("StateManager marshal failed", "error", err, "key", m.key)
		return
	}
	if err := m.store.Set(ctx, m.key, raw, m.ttl); err != nil {
		slog.Error("StateManager persist failed", "error", err, "key", m.key)
	}
}

// InitializeChannel is the only operation allowed to set the channel field.
// It merges channel identity and the mock-testing flag into the document and
// persists immediately.
func (m *Manager) InitializeChannel(ctx context.Context, channelType models.ChannelType, identifier string, mockTesting bool) error {
	if identifier == "" {
		return newError("channel.identifier", "channel identifier required", "")
	}
	m.doc.Channel = &models.Channel{Type: channelType, Identifier: identifier}
	m.doc.MockTesting = mockTesting
	m.persist(ctx)
	return nil
}

// UpdateState validates and shallowly merges a partial document, then
// persists. Touching "channel" here is rejected with a typed error, as is
// any unknown key or malformed value.
func (m *Manager) UpdateState(ctx context.Context, updates map[string]any) error {
	if updates == nil {
		return newError("updates", "updates must be a mapping", "nil")
	}
	if _, ok := updates[models.StateKeyChannel]; ok {
		return newError("channel", "channel can only be modified through InitializeChannel", "")
	}

	// Apply onto a scratch copy first so a malformed value leaves the
	// document untouched.
	next := m.doc
	for key, value := range updates {
		var err error
		switch key {
		case models.StateKeyMockTesting:
			b, ok := value.(bool)
			if !ok {
				return newError(key, "mock_testing must be a boolean", "")
			}
			next.MockTesting = b
		case models.StateKeyAuth:
			err = assign(value, &next.Auth)
		case models.StateKeyDashboard:
			err = assign(value, &next.Dashboard)
		case models.StateKeyActiveAccountID:
			s, ok := value.(string)
			if !ok {
				return newError(key, "active_account_id must be a string", "")
			}
			next.ActiveAccountID = s
		case models.StateKeyAction:
			err = assign(value, &next.Action)
		case models.StateKeyComponentData:
			err = assign(value, &next.ComponentData)
		default:
			return newError(key, "unknown state key", key)
		}
		if err != nil {
			return newError(key, "malformed value: "+err.Error(), "")
		}
	}

	// active_account_id must resolve into the dashboard whenever both are set.
	if next.ActiveAccountID != "" && next.Dashboard != nil {
		if _, ok := next.Dashboard.AccountByID(next.ActiveAccountID); !ok {
			return newError(models.StateKeyActiveAccountID, "active account not present in dashboard", next.ActiveAccountID)
		}
	}

	m.doc = next
	m.persist(ctx)
	return nil
}

// assign decodes an arbitrary update value into a typed field via a JSON
// round trip. Typed values (e.g. *models.Dashboard) pass through unchanged.
func assign[T any](value any, target **T) error {
	if value == nil {
		*target = nil
		return nil
	}
	if typed, ok := value.(*T); ok {
		*target = typed
		return nil
	}
	if typed, ok := value.(T); ok {
		*target = &typed
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	decoded := new(T)
	if err := json.Unmarshal(raw, decoded); err != nil {
		return err
	}
	*target = decoded
	return nil
}

// GetStateValue returns a top-level field by key, or def when the field is
// unset. It never fails on a missing key.
func (m *Manager) GetStateValue(key string, def any) any {
	switch key {
	case models.StateKeyChannel:
		if m.doc.Channel == nil {
			return def
		}
		return m.doc.Channel
	case models.StateKeyMockTesting:
		return m.doc.MockTesting
	case models.StateKeyAuth:
		if m.doc.Auth == nil {
			return def
		}
		return m.doc.Auth
	case models.StateKeyDashboard:
		if m.doc.Dashboard == nil {
			return def
		}
		return m.doc.Dashboard
	case models.StateKeyActiveAccountID:
		if m.doc.ActiveAccountID == "" {
			return def
		}
		return m.doc.ActiveAccountID
	case models.StateKeyAction:
		if m.doc.Action == nil {
			return def
		}
		return m.doc.Action
	case models.StateKeyComponentData:
		if m.doc.ComponentData == nil {
			return def
		}
		return m.doc.ComponentData
	default:
		return def
	}
}

// UpdateFlowState is the single authorized writer of component_data. Path,
// component, component_result and awaiting_input are rewritten together; a
// nil data preserves the existing scratch region rather than clearing it.
func (m *Manager) UpdateFlowState(ctx context.Context, path, component string, data map[string]any, componentResult string, awaitingInput bool) error {
	cd := models.ComponentData{
		Path:            path,
		Component:       component,
		Data:            data,
		ComponentResult: componentResult,
		AwaitingInput:   awaitingInput,
	}
	if prev := m.doc.ComponentData; prev != nil {
		if data == nil {
			cd.Data = prev.Data
		}
		cd.IncomingMessage = prev.IncomingMessage
	}
	m.doc.ComponentData = &cd
	m.persist(ctx)
	return nil
}

// HasFlowState reports whether a flow position exists.
func (m *Manager) HasFlowState() bool {
	return m.doc.ComponentData != nil
}

// GetPath returns the current flow path.
func (m *Manager) GetPath() string {
	if m.doc.ComponentData == nil {
		return ""
	}
	return m.doc.ComponentData.Path
}

// GetComponent returns the current component name.
func (m *Manager) GetComponent() string {
	if m.doc.ComponentData == nil {
		return ""
	}
	return m.doc.ComponentData.Component
}

// GetComponentResult returns the last branching outcome tag.
func (m *Manager) GetComponentResult() string {
	if m.doc.ComponentData == nil {
		return ""
	}
	return m.doc.ComponentData.ComponentResult
}

// IsAwaitingInput reports whether the current component is waiting for
// more user input.
func (m *Manager) IsAwaitingInput() bool {
	return m.doc.ComponentData != nil && m.doc.ComponentData.AwaitingInput
}

// ComponentScratch returns the step-private scratch region (never nil).
// The engine transports this region but does not inspect it.
func (m *Manager) ComponentScratch() map[string]any {
	if m.doc.ComponentData == nil || m.doc.ComponentData.Data == nil {
		return map[string]any{}
	}
	return m.doc.ComponentData.Data
}

// SetComponentResult records the branching outcome for the current
// position without disturbing the rest of the envelope.
func (m *Manager) SetComponentResult(ctx context.Context, result string) {
	if m.doc.ComponentData == nil {
		m.doc.ComponentData = &models.ComponentData{}
	}
	m.doc.ComponentData.ComponentResult = result
	m.persist(ctx)
}

// SetAwaitingInput flips the waiting flag for the current position.
func (m *Manager) SetAwaitingInput(ctx context.Context, awaiting bool) {
	if m.doc.ComponentData == nil {
		m.doc.ComponentData = &models.ComponentData{}
	}
	m.doc.ComponentData.AwaitingInput = awaiting
	m.persist(ctx)
}

// SetIncomingMessage stashes the raw inbound message for the current turn.
func (m *Manager) SetIncomingMessage(ctx context.Context, msg *models.Message) error {
	if msg == nil {
		return newError("incoming_message", "message must be structured", "nil")
	}
	if msg.Type != models.MessageTypeText && msg.Type != models.MessageTypeInteractive {
		return newError("incoming_message", "unsupported message type", string(msg.Type))
	}
	if m.doc.ComponentData == nil {
		m.doc.ComponentData = &models.ComponentData{}
	}
	m.doc.ComponentData.IncomingMessage = msg
	m.persist(ctx)
	return nil
}

// GetIncomingMessage returns the stashed inbound message, if any.
func (m *Manager) GetIncomingMessage() *models.Message {
	if m.doc.ComponentData == nil {
		return nil
	}
	return m.doc.ComponentData.IncomingMessage
}

// ClearAllState resets the document, preserving only mock_testing. Used on
// greeting commands and corrupt state.
func (m *Manager) ClearAllState(ctx context.Context) {
	m.doc = models.ConversationState{MockTesting: m.doc.MockTesting}
	m.persist(ctx)
}

// GetChannelID returns the channel identifier, or a typed error when the
// channel was never initialized.
func (m *Manager) GetChannelID() (string, error) {
	if m.doc.Channel == nil || m.doc.Channel.Identifier == "" {
		return "", newError("channel.identifier", "channel identifier not found", "")
	}
	return m.doc.Channel.Identifier, nil
}

// GetChannelType returns the channel type, or a typed error when the
// channel was never initialized.
func (m *Manager) GetChannelType() (models.ChannelType, error) {
	if m.doc.Channel == nil || m.doc.Channel.Type == "" {
		return "", newError("channel.type", "channel type not found", "")
	}
	return m.doc.Channel.Type, nil
}

// AuthToken returns the stored bearer token, if any.
func (m *Manager) AuthToken() string {
	if m.doc.Auth == nil {
		return ""
	}
	return m.doc.Auth.Token
}

// IsAuthenticated reports whether the dashboard carries a member identity
// and the stored token verifies against the shared secret and is unexpired.
// Decode failures mean "not authenticated", never an error.
func (m *Manager) IsAuthenticated() bool {
	if m.doc.Dashboard == nil || m.doc.Dashboard.Member.MemberID == "" {
		return false
	}
	token := m.AuthToken()
	if token == "" || len(m.jwtSecret) == 0 {
		return false
	}
	_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return m.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	return err == nil
}

// GetMemberID returns the member id when authenticated, else "".
func (m *Manager) GetMemberID() string {
	if !m.IsAuthenticated() {
		return ""
	}
	return m.doc.Dashboard.Member.MemberID
}

// Dashboard returns the cached dashboard read model, if any.
func (m *Manager) Dashboard() *models.Dashboard {
	return m.doc.Dashboard
}

// ActiveAccount resolves the account currently in focus.
func (m *Manager) ActiveAccount() (models.Account, bool) {
	if m.doc.ActiveAccountID == "" || m.doc.Dashboard == nil {
		return models.Account{}, false
	}
	return m.doc.Dashboard.AccountByID(m.doc.ActiveAccountID)
}

// IsMockTesting reports whether mock testing mode is enabled.
func (m *Manager) IsMockTesting() bool {
	return m.doc.MockTesting
}

// Key returns the store key this manager owns.
func (m *Manager) Key() string {
	return m.key
}
