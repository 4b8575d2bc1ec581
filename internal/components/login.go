package components

import (
	"context"
	"log/slog"

	"github.com/vimbiso/vimbiso-chatserver/internal/credex"
	"github.com/vimbiso/vimbiso-chatserver/internal/flow"
	"github.com/vimbiso/vimbiso-chatserver/internal/models"
	"github.com/vimbiso/vimbiso-chatserver/internal/state"
)

// LoginApiCall authenticates the channel's phone number against the ledger.
// Unknown members branch into onboarding; members above the multi-account
// tier with several accounts land on the account picker.
type LoginApiCall struct {
	api credex.API
}

// Name returns the registry name.
func (c *LoginApiCall) Name() string { return flow.CompLoginApiCall }

// Process logs the member in and stores the refreshed session state.
func (c *LoginApiCall) Process(ctx context.Context, sm *state.Manager) flow.Outcome {
	phone, err := sm.GetChannelID()
	if err != nil {
		return flow.Fatal(err)
	}

	res, err := c.api.Login(ctx, phone)
	if err != nil {
		return flow.Fatalf("login: %w", err)
	}
	if res.NotFound {
		slog.Info("LoginApiCall member unknown, starting onboarding", "phone", phone)
		return flow.Continue(flow.ResultStartOnboarding)
	}
	if !res.Success {
		return flow.Fatalf("login rejected: %s", res.Message)
	}

	return storeSession(ctx, sm, res)
}

// storeSession persists a successful login/onboarding result: token,
// dashboard read model, last action and the active account, then picks the
// dashboard branch. Shared by LoginApiCall and OnBoardMemberApiCall.
func storeSession(ctx context.Context, sm *state.Manager, res *credex.Result) flow.Outcome {
	if res.Dashboard == nil || res.Dashboard.Member.MemberID == "" {
		return flow.Fatalf("login result missing dashboard")
	}

	updates := map[string]any{
		models.StateKeyAuth:      &models.Auth{Token: res.Token},
		models.StateKeyDashboard: res.Dashboard,
	}
	if res.Action != nil {
		updates[models.StateKeyAction] = res.Action
	}
	if err := sm.UpdateState(ctx, updates); err != nil {
		return flow.Fatal(err)
	}

	member := res.Dashboard.Member
	if member.MemberTier >= MultiAccountTier && len(res.Dashboard.Accounts) > 1 {
		return flow.Continue(flow.ResultSendMultiDashboard)
	}

	// Single-account members get their first account activated directly.
	if len(res.Dashboard.Accounts) > 0 {
		if err := sm.UpdateState(ctx, map[string]any{
			models.StateKeyActiveAccountID: res.Dashboard.Accounts[0].AccountID,
		}); err != nil {
			return flow.Fatal(err)
		}
	}
	return flow.Continue(flow.ResultSendDashboard)
}
