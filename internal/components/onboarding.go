package components

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/vimbiso/vimbiso-chatserver/internal/credex"
	"github.com/vimbiso/vimbiso-chatserver/internal/flow"
	"github.com/vimbiso/vimbiso-chatserver/internal/state"
)

// Welcome introduces onboarding to a member the ledger does not know yet.
type Welcome struct{}

// Name returns the registry name.
func (w *Welcome) Name() string { return flow.CompWelcome }

// Process sends the welcome notice and completes immediately.
func (w *Welcome) Process(ctx context.Context, sm *state.Manager) flow.Outcome {
	svc, to, err := sendTo(sm)
	if err != nil {
		return flow.Fatal(err)
	}
	if err := svc.SendText(ctx, to, "*Welcome!* 👋\n\nIt looks like you're new here. Let's get you set up."); err != nil {
		return flow.Fatal(err)
	}
	return flow.Done()
}

// NameInput collects one name part during onboarding. The same handler
// backs FirstNameInput and LastNameInput, parameterized by prompt and
// scratch key.
type NameInput struct {
	name       string
	scratchKey string
	prompt     string
}

// Name returns the registry name.
func (n *NameInput) Name() string { return n.name }

// Process prompts on first activation, then validates the reply: 3 to 50
// characters. Rejected input keeps the component waiting.
func (n *NameInput) Process(ctx context.Context, sm *state.Manager) flow.Outcome {
	svc, to, err := sendTo(sm)
	if err != nil {
		return flow.Fatal(err)
	}

	if !sm.IsAwaitingInput() {
		if err := svc.SendText(ctx, to, n.prompt); err != nil {
			return flow.Fatal(err)
		}
		sm.SetAwaitingInput(ctx, true)
		return flow.Done()
	}

	value := incomingText(sm)
	if l := utf8.RuneCountInString(value); l < 3 || l > 50 {
		return flow.Invalid("Please enter between 3 and 50 characters.")
	}
	if err := setScratch(ctx, sm, map[string]any{n.scratchKey: value}); err != nil {
		return flow.Fatal(err)
	}
	sm.SetAwaitingInput(ctx, false)
	return flow.Done()
}

// OnBoardMemberApiCall registers the new member on the ledger with the
// collected names and the channel phone number, then logs them in.
type OnBoardMemberApiCall struct {
	api credex.API
}

// Name returns the registry name.
func (c *OnBoardMemberApiCall) Name() string { return flow.CompOnBoardMemberApiCall }

// Process performs the onboarding call once per inbound message.
func (c *OnBoardMemberApiCall) Process(ctx context.Context, sm *state.Manager) flow.Outcome {
	if alreadyHandled(sm, "onboarded_msg") {
		slog.Debug("OnBoardMemberApiCall duplicate delivery, skipping")
		return flow.Done()
	}

	phone, err := sm.GetChannelID()
	if err != nil {
		return flow.Fatal(err)
	}
	firstName := scratchString(sm, "first_name")
	lastName := scratchString(sm, "last_name")
	if firstName == "" || lastName == "" {
		return flow.Fatalf("onboarding missing collected names")
	}

	res, err := c.api.OnboardMember(ctx, firstName, lastName, phone, DefaultDenom)
	if err != nil {
		return flow.Fatalf("onboard member: %w", err)
	}
	if !res.Success {
		return flow.Fatalf("onboarding rejected: %s", res.Message)
	}
	markHandled(ctx, sm, "onboarded_msg")

	out := storeSession(ctx, sm, res)
	if out.Kind != flow.OutcomeSuccess {
		return out
	}
	// The onboard path has a single successor; the branch tag is unused.
	return flow.Done()
}
