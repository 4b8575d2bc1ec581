package components

import (
	"context"
	"log/slog"

	"github.com/vimbiso/vimbiso-chatserver/internal/credex"
	"github.com/vimbiso/vimbiso-chatserver/internal/flow"
	"github.com/vimbiso/vimbiso-chatserver/internal/state"
)

// ConfirmUpgrade asks the member to confirm the tier upgrade.
type ConfirmUpgrade struct{}

// Name returns the registry name.
func (c *ConfirmUpgrade) Name() string { return flow.CompConfirmUpgrade }

// Process asks for confirmation; "no" cancels back to the dashboard.
func (c *ConfirmUpgrade) Process(ctx context.Context, sm *state.Manager) flow.Outcome {
	svc, to, err := sendTo(sm)
	if err != nil {
		return flow.Fatal(err)
	}

	if !sm.IsAwaitingInput() {
		if err := svc.SendInteractive(ctx, to, "Upgrade your member tier? This unlocks unsecured credex and higher limits.", confirmItems, "Confirm"); err != nil {
			return flow.Fatal(err)
		}
		sm.SetAwaitingInput(ctx, true)
		return flow.Done()
	}

	item, ok := selectMenuItem(incomingText(sm), confirmItems)
	if !ok {
		return flow.Invalid("Please answer yes or no.")
	}
	sm.SetAwaitingInput(ctx, false)
	if item.ID == "no" {
		return flow.Continue(flow.ResultCancelled)
	}
	return flow.Done()
}

// UpgradeMembertierApiCall performs the confirmed tier upgrade.
type UpgradeMembertierApiCall struct {
	api credex.API
}

// Name returns the registry name.
func (c *UpgradeMembertierApiCall) Name() string { return flow.CompUpgradeMembertierApiCall }

// Process upgrades the tier once per inbound message.
func (c *UpgradeMembertierApiCall) Process(ctx context.Context, sm *state.Manager) flow.Outcome {
	if alreadyHandled(sm, "upgraded_msg") {
		slog.Debug("UpgradeMembertierApiCall duplicate delivery, skipping")
		return flow.Done()
	}
	dash := sm.Dashboard()
	memberID := sm.GetMemberID()
	if dash == nil || memberID == "" {
		return flow.Fatalf("tier upgrade requires an authenticated session")
	}

	res, err := c.api.UpgradeMemberTier(ctx, sm.AuthToken(), memberID, dash.Member.MemberTier+1)
	if err != nil {
		return flow.Fatalf("upgrade member tier: %w", err)
	}
	markHandled(ctx, sm, "upgraded_msg")

	note := "✅ Your member tier was upgraded."
	if !res.Success {
		note = "❌ The upgrade could not be completed: " + res.Message
	}
	return finishOperation(ctx, sm, res, note)
}
