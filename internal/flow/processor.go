package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/vimbiso/vimbiso-chatserver/internal/messaging"
	"github.com/vimbiso/vimbiso-chatserver/internal/models"
	"github.com/vimbiso/vimbiso-chatserver/internal/state"
	"github.com/vimbiso/vimbiso-chatserver/internal/store"
)

// User-facing fallback texts. Everything else the user sees is sent by
// components as side effects.
const (
	genericErrorText = "⚠️ Something went wrong. Send \"hi\" to start again."
	loopAbortText    = "⚠️ We could not finish processing that. Send \"hi\" to start again."
)

// Inbound is the channel-agnostic result of extracting a webhook payload.
type Inbound struct {
	ChannelType models.ChannelType
	ChannelID   string
	MockTesting bool
	Message     *models.Message
}

// MessagingResolver picks the outbound service for a channel type.
type MessagingResolver func(models.ChannelType) messaging.Service

// Opts holds configuration options for the Processor.
type Opts struct {
	Table     TransitionFunc
	Resolver  MessagingResolver
	StateOpts []state.Option
	Retries   map[Position]Position
}

// Option defines a configuration option for the Processor.
type Option func(*Opts)

// WithTransitionTable overrides the transition table (tests use synthetic
// graphs to exercise the loop bound).
func WithTransitionTable(table TransitionFunc) Option {
	return func(o *Opts) { o.Table = table }
}

// WithMessaging uses one messaging service for every channel type.
func WithMessaging(svc messaging.Service) Option {
	return func(o *Opts) { o.Resolver = func(models.ChannelType) messaging.Service { return svc } }
}

// WithMessagingResolver sets a per-channel-type messaging resolver.
func WithMessagingResolver(resolver MessagingResolver) Option {
	return func(o *Opts) { o.Resolver = resolver }
}

// WithStateOptions forwards options to every state manager the processor
// constructs (TTL, JWT secret).
func WithStateOptions(opts ...state.Option) Option {
	return func(o *Opts) { o.StateOpts = append(o.StateOpts, opts...) }
}

// WithRetryTarget registers a position whose retry outcome returns the
// conversation to an earlier component instead of restarting login.
func WithRetryTarget(failing, target Position) Option {
	return func(o *Opts) {
		if o.Retries == nil {
			o.Retries = make(map[Position]Position)
		}
		o.Retries[failing] = target
	}
}

// Processor drives one turn of a conversation: it resolves the current
// position, activates components and follows the transition table until a
// component waits for input or the turn completes.
type Processor struct {
	store     store.Store
	activator *Activator
	table     TransitionFunc
	resolver  MessagingResolver
	stateOpts []state.Option
	retries   map[Position]Position
}

// NewProcessor creates a Processor. By default it uses the real transition
// table and the handle-validation retry route.
func NewProcessor(st store.Store, activator *Activator, opts ...Option) *Processor {
	cfg := Opts{
		Table: NextComponent,
		Retries: map[Position]Position{
			{PathOfferSecured, CompValidateAccountApiCall}: {PathOfferSecured, CompHandleInput},
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Processor{
		store:     st,
		activator: activator,
		table:     cfg.Table,
		resolver:  cfg.Resolver,
		stateOpts: cfg.StateOpts,
		retries:   cfg.Retries,
	}
}

// ProcessMessage runs one turn. The returned string is the direct reply for
// the turn: validation-error text or unexpected-error text. All other
// user-visible output is sent by components through the messaging service.
// An empty return means the turn produced no direct reply.
func (p *Processor) ProcessMessage(ctx context.Context, in *Inbound) (reply string) {
	// Nothing usable extracted: abort the turn silently.
	if in == nil || in.Message == nil || in.ChannelID == "" {
		slog.Debug("Processor no usable message extracted")
		return ""
	}

	// The processor never lets a panic escape to the webhook handler.
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Processor recovered from panic", "panic", r, "channel", in.ChannelID)
			reply = genericErrorText
		}
	}()

	msg := in.Message
	var text string
	if msg.Type == models.MessageTypeText {
		text = strings.ToLower(strings.TrimSpace(msg.Body))
		if text == "" {
			slog.Debug("Processor empty text message, ignoring")
			return ""
		}
	}

	key := state.KeyPrefix + in.ChannelID
	sm, err := state.NewManager(ctx, p.store, key, p.stateOpts...)
	if err != nil {
		slog.Error("Processor state manager init failed", "error", err, "channel", in.ChannelID)
		return genericErrorText
	}
	if p.resolver != nil {
		sm.SetMessaging(p.resolver(in.ChannelType))
	}

	mock := in.MockTesting || sm.IsMockTesting()
	if err := sm.InitializeChannel(ctx, in.ChannelType, in.ChannelID, mock); err != nil {
		slog.Error("Processor channel init failed", "error", err, "channel", in.ChannelID)
		return genericErrorText
	}

	// Greetings always start fresh; so does a conversation with no
	// position yet (first contact or corrupt/expired state).
	if (msg.Type == models.MessageTypeText && IsGreeting(text)) || !sm.HasFlowState() {
		slog.Debug("Processor starting fresh login flow", "channel", in.ChannelID, "greeting", IsGreeting(text))
		p.resetToLogin(ctx, sm, in)
	} else if err := sm.SetIncomingMessage(ctx, msg); err != nil {
		slog.Error("Processor failed to stash incoming message", "error", err)
		return genericErrorText
	}

	for depth := 0; depth <= MaxProcessingDepth; depth++ {
		path, comp := sm.GetPath(), sm.GetComponent()
		slog.Debug("Processor activating", "path", path, "component", comp, "depth", depth)

		out := p.activator.Activate(ctx, comp, sm)

		switch out.Kind {
		case OutcomeValidation:
			// Recoverable input rejection: component retained, message shown.
			slog.Debug("Processor validation failure", "path", path, "component", comp, "message", out.Message)
			return out.Message

		case OutcomeRetry:
			target, ok := p.retries[Position{path, comp}]
			if !ok {
				slog.Error("Processor retry outcome with no retry target", "path", path, "component", comp, "reason", out.Message)
				p.resetToLogin(ctx, sm, in)
				return genericErrorText
			}
			slog.Debug("Processor retry route", "from", comp, "to", target.Component, "reason", out.Message)
			if err := sm.UpdateFlowState(ctx, target.Path, target.Component, nil, "", false); err != nil {
				return genericErrorText
			}
			continue

		case OutcomeFatal:
			slog.Error("Processor component failed", "path", path, "component", comp, "error", out.Err)
			p.resetToLogin(ctx, sm, in)
			return genericErrorText
		}

		// Success. Record the branching tag for the table.
		if out.Tag != "" {
			sm.SetComponentResult(ctx, out.Tag)
		}

		// A waiting component ends the turn; the prompt already went out
		// as a side effect, so no transition lookup happens.
		if sm.IsAwaitingInput() {
			slog.Debug("Processor awaiting input", "path", path, "component", comp)
			return ""
		}

		next, ok := p.table(path, comp, sm.GetComponentResult())
		if !ok {
			slog.Debug("Processor no transition defined", "path", path, "component", comp, "result", sm.GetComponentResult())
			if path != PathLogin && path != PathOnboard {
				// Outside login/onboarding, fall back to a fresh login flow
				// so the next message recovers the conversation.
				_ = sm.UpdateFlowState(ctx, PathLogin, CompGreeting, nil, "", false)
			}
			return ""
		}
		if next.Path == path && next.Component == comp {
			return ""
		}

		slog.Info("Processor flow transition", "from_path", path, "from", comp, "to_path", next.Path, "to", next.Component)
		if err := sm.UpdateFlowState(ctx, next.Path, next.Component, nil, "", false); err != nil {
			slog.Error("Processor transition persist failed", "error", err)
			return genericErrorText
		}
	}

	slog.Error("Processor maximum processing depth exceeded", "channel", in.ChannelID)
	return loopAbortText
}

// resetToLogin clears all state (preserving mock_testing), reinitializes
// the channel, restores the inbound message and forces the position to
// (login, Greeting).
func (p *Processor) resetToLogin(ctx context.Context, sm *state.Manager, in *Inbound) {
	mock := sm.IsMockTesting() || in.MockTesting
	sm.ClearAllState(ctx)
	if err := sm.InitializeChannel(ctx, in.ChannelType, in.ChannelID, mock); err != nil {
		slog.Error("Processor reset channel init failed", "error", err)
	}
	if in.Message != nil {
		if err := sm.SetIncomingMessage(ctx, in.Message); err != nil {
			slog.Error("Processor reset message restore failed", "error", err)
		}
	}
	if err := sm.UpdateFlowState(ctx, PathLogin, CompGreeting, map[string]any{}, "", false); err != nil {
		slog.Error("Processor reset flow state failed", "error", err)
	}
	p.activator.EvictChannel(in.ChannelID)
}
