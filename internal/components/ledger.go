package components

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vimbiso/vimbiso-chatserver/internal/credex"
	"github.com/vimbiso/vimbiso-chatserver/internal/flow"
	"github.com/vimbiso/vimbiso-chatserver/internal/models"
	"github.com/vimbiso/vimbiso-chatserver/internal/state"
)

// GetLedgerApiCall fetches one ledger page for the active account into the
// scratch region; ViewLedger renders it.
type GetLedgerApiCall struct {
	api      credex.API
	pageSize int
}

// Name returns the registry name.
func (c *GetLedgerApiCall) Name() string { return flow.CompGetLedgerApiCall }

// Process fetches the page at the current offset and advances it.
func (c *GetLedgerApiCall) Process(ctx context.Context, sm *state.Manager) flow.Outcome {
	account, ok := sm.ActiveAccount()
	if !ok {
		return flow.Fatalf("no active account selected")
	}
	offset := scratchInt(sm, "ledger_offset")

	res, err := c.api.GetLedger(ctx, sm.AuthToken(), account.AccountID, offset, c.pageSize)
	if err != nil {
		return flow.Fatalf("get ledger: %w", err)
	}
	if !res.Success {
		return flow.Fatalf("ledger fetch rejected: %s", res.Message)
	}

	if err := setScratch(ctx, sm, map[string]any{
		"ledger_entries":  res.Ledger,
		"ledger_has_more": res.HasMore,
		"ledger_offset":   offset + len(res.Ledger),
	}); err != nil {
		return flow.Fatal(err)
	}
	return flow.Done()
}

// ViewLedger renders the fetched page and asks whether to fetch more.
type ViewLedger struct{}

// Name returns the registry name.
func (v *ViewLedger) Name() string { return flow.CompViewLedger }

// Process shows the page; "more" loops back through the fetch step, any
// other choice returns to the dashboard.
func (v *ViewLedger) Process(ctx context.Context, sm *state.Manager) flow.Outcome {
	svc, to, err := sendTo(sm)
	if err != nil {
		return flow.Fatal(err)
	}

	entries := scratchLedgerEntries(sm)
	hasMore, _ := sm.ComponentScratch()["ledger_has_more"].(bool)

	if !sm.IsAwaitingInput() {
		if len(entries) == 0 {
			if err := svc.SendText(ctx, to, "The ledger has no more entries."); err != nil {
				return flow.Fatal(err)
			}
			return flow.Continue(flow.ResultReturnToDashboard)
		}

		items := ledgerMenu(hasMore)
		if err := svc.SendInteractive(ctx, to, renderLedgerPage(entries), items, "Ledger"); err != nil {
			return flow.Fatal(err)
		}
		sm.SetAwaitingInput(ctx, true)
		return flow.Done()
	}

	item, ok := selectMenuItem(incomingText(sm), ledgerMenu(hasMore))
	if !ok {
		return flow.Invalid("Please pick an option by number.")
	}
	sm.SetAwaitingInput(ctx, false)
	if item.ID == "more" {
		return flow.Continue(flow.ResultFetchMore)
	}
	return flow.Continue(flow.ResultReturnToDashboard)
}

func ledgerMenu(hasMore bool) []models.MenuItem {
	items := []models.MenuItem{}
	if hasMore {
		items = append(items, models.MenuItem{ID: "more", Title: "➡️ More entries"})
	}
	return append(items, models.MenuItem{ID: "back", Title: "⬅️ Back to dashboard"})
}

func renderLedgerPage(entries []models.LedgerEntry) string {
	var b strings.Builder
	b.WriteString("*Ledger*")
	for _, e := range entries {
		fmt.Fprintf(&b, "\n%s  %s", e.FormattedAmount, e.CounterpartyAccountName)
		if e.DateTime != "" {
			fmt.Fprintf(&b, "  (%s)", e.DateTime)
		}
	}
	return b.String()
}

// scratchLedgerEntries decodes the fetched page out of scratch. The region
// holds typed values within a turn and JSON-decoded ones across turns.
func scratchLedgerEntries(sm *state.Manager) []models.LedgerEntry {
	raw, ok := sm.ComponentScratch()["ledger_entries"]
	if !ok || raw == nil {
		return nil
	}
	if typed, ok := raw.([]models.LedgerEntry); ok {
		return typed
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var entries []models.LedgerEntry
	if err := json.Unmarshal(encoded, &entries); err != nil {
		return nil
	}
	return entries
}
