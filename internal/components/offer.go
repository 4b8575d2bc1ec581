package components

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vimbiso/vimbiso-chatserver/internal/credex"
	"github.com/vimbiso/vimbiso-chatserver/internal/flow"
	"github.com/vimbiso/vimbiso-chatserver/internal/models"
	"github.com/vimbiso/vimbiso-chatserver/internal/state"
)

// AmountInput collects the secured-offer amount, optionally suffixed with a
// denomination ("25" or "25 USD").
type AmountInput struct{}

// Name returns the registry name.
func (a *AmountInput) Name() string { return flow.CompAmountInput }

// Process prompts for the amount and validates the reply against the
// denomination whitelist. Bad input re-prompts without losing the step.
func (a *AmountInput) Process(ctx context.Context, sm *state.Manager) flow.Outcome {
	svc, to, err := sendTo(sm)
	if err != nil {
		return flow.Fatal(err)
	}

	if !sm.IsAwaitingInput() {
		if err := svc.SendText(ctx, to, "How much would you like to offer? (e.g. 25 or 25 USD)"); err != nil {
			return flow.Fatal(err)
		}
		sm.SetAwaitingInput(ctx, true)
		return flow.Done()
	}

	amount, denom, perr := parseAmount(incomingText(sm))
	if perr != "" {
		return flow.Invalid(perr)
	}
	if err := setScratch(ctx, sm, map[string]any{"amount": amount, "denom": denom}); err != nil {
		return flow.Fatal(err)
	}
	sm.SetAwaitingInput(ctx, false)
	return flow.Done()
}

// parseAmount splits "amount [denom]", defaulting the denomination. The
// returned string is a user-facing validation message, empty on success.
func parseAmount(input string) (float64, string, string) {
	fields := strings.Fields(input)
	if len(fields) == 0 || len(fields) > 2 {
		return 0, "", "Please send an amount, optionally followed by a denomination (e.g. 25 USD)."
	}
	amount, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, "", "That doesn't look like a number. Please send an amount like 25 or 25.50."
	}
	if amount <= 0 {
		return 0, "", "The amount must be positive."
	}
	denom := DefaultDenom
	if len(fields) == 2 {
		denom = strings.ToUpper(fields[1])
		if _, ok := AllowedDenoms[denom]; !ok {
			return 0, "", fmt.Sprintf("Unsupported denomination %q. Supported: USD, ZWG, XAU, CAD.", fields[1])
		}
	}
	return amount, denom, ""
}

// HandleInput collects the recipient account handle.
type HandleInput struct{}

// Name returns the registry name.
func (h *HandleInput) Name() string { return flow.CompHandleInput }

// Process prompts for the handle and validates it: non-empty, at most 30
// characters.
func (h *HandleInput) Process(ctx context.Context, sm *state.Manager) flow.Outcome {
	svc, to, err := sendTo(sm)
	if err != nil {
		return flow.Fatal(err)
	}

	if !sm.IsAwaitingInput() {
		if err := svc.SendText(ctx, to, "Which account should receive it? Send the account handle."); err != nil {
			return flow.Fatal(err)
		}
		sm.SetAwaitingInput(ctx, true)
		return flow.Done()
	}

	handle := strings.TrimPrefix(incomingText(sm), "@")
	if handle == "" || utf8.RuneCountInString(handle) > 30 {
		return flow.Invalid("Please send a handle of at most 30 characters.")
	}
	if err := setScratch(ctx, sm, map[string]any{"handle": handle}); err != nil {
		return flow.Fatal(err)
	}
	sm.SetAwaitingInput(ctx, false)
	return flow.Done()
}

// ValidateAccountApiCall resolves the collected handle against the ledger.
// An unknown handle is a retryable failure: the processor routes the
// conversation back to HandleInput.
type ValidateAccountApiCall struct {
	api credex.API
}

// Name returns the registry name.
func (c *ValidateAccountApiCall) Name() string { return flow.CompValidateAccountApiCall }

// Process validates the handle and records the resolved receiver account.
func (c *ValidateAccountApiCall) Process(ctx context.Context, sm *state.Manager) flow.Outcome {
	handle := scratchString(sm, "handle")
	if handle == "" {
		return flow.Fatalf("no handle collected to validate")
	}

	res, err := c.api.GetAccountByHandle(ctx, sm.AuthToken(), handle)
	if err != nil {
		return flow.Fatalf("validate handle: %w", err)
	}
	if res.NotFound || !res.Success {
		svc, to, serr := sendTo(sm)
		if serr == nil {
			_ = svc.SendText(ctx, to, fmt.Sprintf("❌ Account @%s was not found. Please try another handle.", handle))
		}
		return flow.RetryStep("account handle not found: " + handle)
	}

	if res.Action == nil || res.Action.Details["accountID"] == "" {
		return flow.Fatalf("handle validation response missing account id")
	}
	updates := map[string]any{
		"receiver_account_id": res.Action.Details["accountID"],
		"receiver_name":       res.Action.Details["accountName"],
	}
	if err := setScratch(ctx, sm, updates); err != nil {
		return flow.Fatal(err)
	}
	return flow.Done()
}

// ConfirmOfferSecured shows the offer summary and asks for a yes/no.
type ConfirmOfferSecured struct{}

// Name returns the registry name.
func (c *ConfirmOfferSecured) Name() string { return flow.CompConfirmOfferSecured }

var confirmItems = []models.MenuItem{
	{ID: "yes", Title: "Yes"},
	{ID: "no", Title: "No"},
}

// Process asks for confirmation; "no" cancels back to the dashboard.
func (c *ConfirmOfferSecured) Process(ctx context.Context, sm *state.Manager) flow.Outcome {
	svc, to, err := sendTo(sm)
	if err != nil {
		return flow.Fatal(err)
	}

	if !sm.IsAwaitingInput() {
		summary := fmt.Sprintf("Offer *%s %s* to *%s* (@%s)?",
			strconv.FormatFloat(scratchFloat(sm, "amount"), 'f', -1, 64),
			scratchString(sm, "denom"),
			scratchString(sm, "receiver_name"),
			scratchString(sm, "handle"))
		if err := svc.SendInteractive(ctx, to, summary, confirmItems, "Confirm"); err != nil {
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

func scratchFloat(sm *state.Manager, key string) float64 {
	switch v := sm.ComponentScratch()[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

// CreateCredexApiCall issues the confirmed secured offer on the ledger.
// The outcome note rides in the action state for the dashboard to show.
type CreateCredexApiCall struct {
	api credex.API
}

// Name returns the registry name.
func (c *CreateCredexApiCall) Name() string { return flow.CompCreateCredexApiCall }

// Process creates the offer once per inbound message.
func (c *CreateCredexApiCall) Process(ctx context.Context, sm *state.Manager) flow.Outcome {
	if alreadyHandled(sm, "created_msg") {
		slog.Debug("CreateCredexApiCall duplicate delivery, skipping")
		return flow.Done()
	}
	account, ok := sm.ActiveAccount()
	if !ok {
		return flow.Fatalf("no active account to issue from")
	}
	receiverID := scratchString(sm, "receiver_account_id")
	amount := scratchFloat(sm, "amount")
	if receiverID == "" || amount <= 0 {
		return flow.Fatalf("offer details incomplete")
	}

	res, err := c.api.CreateCredex(ctx, sm.AuthToken(), credex.CreateCredexRequest{
		IssuerAccountID:   account.AccountID,
		ReceiverAccountID: receiverID,
		Denomination:      scratchString(sm, "denom"),
		InitialAmount:     amount,
		CredexType:        "PURCHASE",
		OfferOrRequest:    "OFFER",
		SecuredCredex:     true,
	})
	if err != nil {
		return flow.Fatalf("create credex: %w", err)
	}
	markHandled(ctx, sm, "created_msg")

	note := "✅ Offer sent to " + scratchString(sm, "receiver_name") + "."
	if !res.Success {
		note = "❌ The offer could not be created: " + res.Message
	}
	return finishOperation(ctx, sm, res, note)
}

// finishOperation stores the refreshed dashboard (when the API returned
// one) and the outcome note for the next dashboard render.
func finishOperation(ctx context.Context, sm *state.Manager, res *credex.Result, note string) flow.Outcome {
	updates := map[string]any{
		models.StateKeyAction: &models.Action{Type: actionType(res), Details: map[string]string{"message": note}},
	}
	if res.Dashboard != nil {
		updates[models.StateKeyDashboard] = res.Dashboard
	}
	if err := sm.UpdateState(ctx, updates); err != nil {
		return flow.Fatal(err)
	}
	return flow.Done()
}

func actionType(res *credex.Result) string {
	if res.Action != nil {
		return res.Action.Type
	}
	return ""
}
