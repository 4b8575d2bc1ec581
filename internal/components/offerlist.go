package components

import (
	"context"
	"log/slog"

	"github.com/vimbiso/vimbiso-chatserver/internal/credex"
	"github.com/vimbiso/vimbiso-chatserver/internal/flow"
	"github.com/vimbiso/vimbiso-chatserver/internal/models"
	"github.com/vimbiso/vimbiso-chatserver/internal/state"
)

// offersForPath picks the offer direction for the current sub-flow:
// incoming offers for accept/decline, outgoing for cancel.
func offersForPath(path string, account models.Account) []models.Offer {
	if path == flow.PathCancelOffer {
		return account.OutgoingOffers
	}
	return account.IncomingOffers
}

func offerVerb(path string) string {
	switch path {
	case flow.PathDeclineOffer:
		return "decline"
	case flow.PathCancelOffer:
		return "cancel"
	default:
		return "accept"
	}
}

// OfferListDisplay lists the pending offers for the current action and
// records the member's pick.
type OfferListDisplay struct{}

// Name returns the registry name.
func (o *OfferListDisplay) Name() string { return flow.CompOfferListDisplay }

// Process shows the offer menu; an empty list short-circuits back to the
// dashboard with a notice.
func (o *OfferListDisplay) Process(ctx context.Context, sm *state.Manager) flow.Outcome {
	svc, to, err := sendTo(sm)
	if err != nil {
		return flow.Fatal(err)
	}
	account, ok := sm.ActiveAccount()
	if !ok {
		return flow.Fatalf("no active account selected")
	}

	path := sm.GetPath()
	offers := offersForPath(path, account)
	if len(offers) == 0 {
		if err := svc.SendText(ctx, to, "There are no offers to "+offerVerb(path)+" right now."); err != nil {
			return flow.Fatal(err)
		}
		return flow.Continue(flow.ResultReturnToDashboard)
	}

	items := make([]models.MenuItem, 0, len(offers)+1)
	for _, offer := range offers {
		items = append(items, models.MenuItem{
			ID:          offer.CredexID,
			Title:       offer.FormattedAmount,
			Description: offer.CounterpartyAccountName,
		})
	}
	items = append(items, models.MenuItem{ID: "back", Title: "⬅️ Back to dashboard"})

	if !sm.IsAwaitingInput() {
		if err := svc.SendInteractive(ctx, to, "Which offer would you like to "+offerVerb(path)+"?", items, "Offers"); err != nil {
			return flow.Fatal(err)
		}
		sm.SetAwaitingInput(ctx, true)
		return flow.Done()
	}

	item, ok := selectMenuItem(incomingText(sm), items)
	if !ok {
		return flow.Invalid("Please pick an offer by number.")
	}
	sm.SetAwaitingInput(ctx, false)
	if item.ID == "back" {
		return flow.Continue(flow.ResultReturnToDashboard)
	}
	if err := setScratch(ctx, sm, map[string]any{"credex_id": item.ID}); err != nil {
		return flow.Fatal(err)
	}
	return flow.Continue(flow.ResultProcessOffer)
}

// ProcessOfferApiCall performs the accept/decline/cancel call for the
// selected offer. When more offers of the same direction remain it loops
// back to the list, otherwise it returns to the dashboard.
type ProcessOfferApiCall struct {
	api credex.API
}

// Name returns the registry name.
func (c *ProcessOfferApiCall) Name() string { return flow.CompProcessOfferApiCall }

// Process runs the ledger call once per inbound message.
func (c *ProcessOfferApiCall) Process(ctx context.Context, sm *state.Manager) flow.Outcome {
	credexID := scratchString(sm, "credex_id")
	if credexID == "" {
		return flow.Fatalf("no offer selected")
	}
	path := sm.GetPath()

	if !alreadyHandled(sm, "processed_msg") {
		var res *credex.Result
		var err error
		switch path {
		case flow.PathDeclineOffer:
			res, err = c.api.DeclineCredex(ctx, sm.AuthToken(), credexID)
		case flow.PathCancelOffer:
			res, err = c.api.CancelCredex(ctx, sm.AuthToken(), credexID)
		default:
			res, err = c.api.AcceptCredex(ctx, sm.AuthToken(), credexID)
		}
		if err != nil {
			return flow.Fatalf("%s offer: %w", offerVerb(path), err)
		}
		markHandled(ctx, sm, "processed_msg")

		note := "✅ Offer " + offerVerb(path) + "ed."
		if path == flow.PathCancelOffer {
			note = "✅ Offer cancelled."
		}
		if !res.Success {
			note = "❌ The offer could not be " + offerVerb(path) + "ed: " + res.Message
		}
		if out := finishOperation(ctx, sm, res, note); out.Kind != flow.OutcomeSuccess {
			return out
		}
	} else {
		slog.Debug("ProcessOfferApiCall duplicate delivery, skipping")
	}

	account, _ := sm.ActiveAccount()
	for _, offer := range offersForPath(path, account) {
		// A stale dashboard may still carry the processed offer.
		if offer.CredexID != credexID {
			return flow.Continue(flow.ResultReturnToList)
		}
	}
	return flow.Continue(flow.ResultSendDashboard)
}
