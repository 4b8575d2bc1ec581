package components

import (
	"context"
	"fmt"
	"strings"

	"github.com/vimbiso/vimbiso-chatserver/internal/flow"
	"github.com/vimbiso/vimbiso-chatserver/internal/models"
	"github.com/vimbiso/vimbiso-chatserver/internal/state"
)

// ProcessingNow is a one-way interstitial notice shown before slow API
// steps so the user knows the request was taken.
type ProcessingNow struct{}

// Name returns the registry name.
func (p *ProcessingNow) Name() string { return flow.CompProcessingNow }

// Process sends the notice and completes immediately.
func (p *ProcessingNow) Process(ctx context.Context, sm *state.Manager) flow.Outcome {
	svc, to, err := sendTo(sm)
	if err != nil {
		return flow.Fatal(err)
	}
	if err := svc.SendText(ctx, to, "⏳ Processing..."); err != nil {
		return flow.Fatal(err)
	}
	return flow.Done()
}

// AccountDashboard renders the active account and its action menu, then
// maps the member's selection onto a sub-flow branch.
type AccountDashboard struct{}

// Name returns the registry name.
func (d *AccountDashboard) Name() string { return flow.CompAccountDashboard }

// Process shows the dashboard on first activation and consumes the menu
// selection on the next one.
func (d *AccountDashboard) Process(ctx context.Context, sm *state.Manager) flow.Outcome {
	svc, to, err := sendTo(sm)
	if err != nil {
		return flow.Fatal(err)
	}
	if !sm.IsAuthenticated() {
		return flow.Fatalf("dashboard requires an authenticated session")
	}
	account, ok := sm.ActiveAccount()
	if !ok {
		return flow.Fatalf("no active account selected")
	}
	dash := sm.Dashboard()
	items := dashboardMenu(dash, account)

	if !sm.IsAwaitingInput() {
		if err := svc.SendInteractive(ctx, to, renderDashboard(sm, account), items, "Options"); err != nil {
			return flow.Fatal(err)
		}
		sm.SetAwaitingInput(ctx, true)
		return flow.Done()
	}

	item, ok := selectMenuItem(incomingText(sm), items)
	if !ok {
		return flow.Invalid("Please pick one of the menu options by number.")
	}
	sm.SetAwaitingInput(ctx, false)

	// Entering a sub-flow starts from clean scratch for its keys.
	if item.ID == flow.ResultViewLedger {
		if err := setScratch(ctx, sm, map[string]any{"ledger_offset": 0, "ledger_entries": nil, "ledger_has_more": false}); err != nil {
			return flow.Fatal(err)
		}
	}
	if item.ID == flow.ResultOfferSecured {
		if err := setScratch(ctx, sm, map[string]any{"amount": nil, "denom": nil, "handle": nil, "receiver_account_id": nil}); err != nil {
			return flow.Fatal(err)
		}
	}
	return flow.Continue(item.ID)
}

func dashboardMenu(dash *models.Dashboard, account models.Account) []models.MenuItem {
	items := []models.MenuItem{
		{ID: flow.ResultOfferSecured, Title: "💸 Offer secured credex"},
	}
	if len(account.IncomingOffers) > 0 {
		items = append(items,
			models.MenuItem{ID: flow.ResultAcceptOffer, Title: fmt.Sprintf("✅ Accept offers (%d)", len(account.IncomingOffers))},
			models.MenuItem{ID: flow.ResultDeclineOffer, Title: fmt.Sprintf("❌ Decline offers (%d)", len(account.IncomingOffers))},
		)
	}
	if len(account.OutgoingOffers) > 0 {
		items = append(items, models.MenuItem{ID: flow.ResultCancelOffer, Title: fmt.Sprintf("🚫 Cancel outgoing offers (%d)", len(account.OutgoingOffers))})
	}
	items = append(items, models.MenuItem{ID: flow.ResultViewLedger, Title: "📒 View ledger"})
	if dash != nil && dash.Member.MemberTier < MultiAccountTier {
		items = append(items, models.MenuItem{ID: flow.ResultUpgradeTier, Title: "⭐ Upgrade member tier"})
	}
	if dash != nil && len(dash.Accounts) > 1 {
		items = append(items, models.MenuItem{ID: flow.ResultSwitchAccount, Title: "🔄 Switch account"})
	}
	return items
}

func renderDashboard(sm *state.Manager, account models.Account) string {
	var b strings.Builder

	// A completed operation leaves its outcome note in the last action.
	if action, ok := sm.GetStateValue(models.StateKeyAction, nil).(*models.Action); ok && action != nil {
		if note := action.Details["message"]; note != "" {
			b.WriteString(note)
			b.WriteString("\n\n")
		}
	}

	fmt.Fprintf(&b, "*%s*\n@%s", account.AccountName, account.AccountHandle)
	for _, balance := range account.Balances {
		b.WriteString("\n  ")
		b.WriteString(balance)
	}
	if account.NetBalance != "" {
		fmt.Fprintf(&b, "\nNet: %s", account.NetBalance)
	}
	return b.String()
}

// MultiAccountDashboard is the account picker shown to high-tier members
// with more than one account. Selection activates the account.
type MultiAccountDashboard struct{}

// Name returns the registry name.
func (d *MultiAccountDashboard) Name() string { return flow.CompMultiAccountDashboard }

// Process lists the member's accounts and records the chosen one as active.
func (d *MultiAccountDashboard) Process(ctx context.Context, sm *state.Manager) flow.Outcome {
	svc, to, err := sendTo(sm)
	if err != nil {
		return flow.Fatal(err)
	}
	dash := sm.Dashboard()
	if dash == nil || len(dash.Accounts) == 0 {
		return flow.Fatalf("no accounts available to select")
	}

	items := make([]models.MenuItem, 0, len(dash.Accounts))
	for _, a := range dash.Accounts {
		items = append(items, models.MenuItem{ID: a.AccountID, Title: a.AccountName, Description: "@" + a.AccountHandle})
	}

	if !sm.IsAwaitingInput() {
		if err := svc.SendInteractive(ctx, to, "Which account would you like to use?", items, "Accounts"); err != nil {
			return flow.Fatal(err)
		}
		sm.SetAwaitingInput(ctx, true)
		return flow.Done()
	}

	item, ok := selectMenuItem(incomingText(sm), items)
	if !ok {
		return flow.Invalid("Please pick an account by number.")
	}
	if err := sm.UpdateState(ctx, map[string]any{models.StateKeyActiveAccountID: item.ID}); err != nil {
		return flow.Fatal(err)
	}
	sm.SetAwaitingInput(ctx, false)
	return flow.Continue(flow.ResultAccountSelected)
}
